package carryrequest_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"carryhub/internal/modules/carryrequest"
	"carryhub/internal/modules/consignment"
	"carryhub/internal/modules/payment"
	"carryhub/internal/notify"
	"carryhub/internal/store/memory"
	"carryhub/internal/types"
)

type recordingNotifier struct {
	events []notify.Event
}

func (r *recordingNotifier) Notify(_ context.Context, ev notify.Event) error {
	r.events = append(r.events, ev)
	return nil
}

type fixture struct {
	store     *memory.Store
	svc       *carryrequest.Service
	notifier  *recordingNotifier
	sender    types.ID
	traveller types.ID
	c         *consignment.Consignment
	travelID  types.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	n := &recordingNotifier{}
	svc := carryrequest.NewService(carryrequest.Deps{
		Repo:         st.CarryRequests(),
		Tx:           st,
		Consignments: st.Consignments(),
		Travels:      st.Travels(),
		Payments:     st.Payments(),
		Notifier:     n,
	})
	sender := st.SeedUser("Asha", "+919800000001")
	traveller := st.SeedUser("Ravi", "+919800000002")
	c := st.SeedConsignment(sender, "+919800000003")
	tr := st.SeedTravel(traveller, time.Now().Add(48*time.Hour))
	return &fixture{store: st, svc: svc, notifier: n, sender: sender, traveller: traveller, c: c, travelID: tr.ID}
}

func (f *fixture) bySender(t *testing.T) *carryrequest.CarryRequest {
	t.Helper()
	r, err := f.svc.CreateBySender(context.Background(), carryrequest.CreateBySenderCommand{
		SenderID: f.sender, ConsignmentID: f.c.ID, TravelID: f.travelID,
	})
	if err != nil {
		t.Fatalf("create by sender: %v", err)
	}
	return r
}

func TestCreateBySender(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r := f.bySender(t)
	if r.Status != carryrequest.StatusPending || r.Initiator != carryrequest.InitiatorSender {
		t.Fatalf("unexpected request %+v", r)
	}
	if !r.SenderPayAmount.Equal(f.c.Quotes["train"].SenderPay) {
		t.Errorf("sender pay = %s, want the train quote", r.SenderPayAmount)
	}
	c, _ := f.store.Consignments().Get(ctx, f.c.ID)
	if c.Status != consignment.StatusRequested {
		t.Errorf("consignment status = %s, want requested", c.Status)
	}
	if len(f.notifier.events) != 1 || f.notifier.events[0].UserID != f.traveller {
		t.Errorf("expected one notification to the traveller, got %+v", f.notifier.events)
	}

	_, err := f.svc.CreateBySender(ctx, carryrequest.CreateBySenderCommand{
		SenderID: f.sender, ConsignmentID: f.c.ID, TravelID: f.travelID,
	})
	if !errors.Is(err, carryrequest.ErrDuplicateRequest) {
		t.Errorf("second create: got %v, want ErrDuplicateRequest", err)
	}
}

func TestCreateRejectsStrangersAndBadRoutes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateBySender(ctx, carryrequest.CreateBySenderCommand{
		SenderID: f.traveller, ConsignmentID: f.c.ID, TravelID: f.travelID,
	})
	if !errors.Is(err, carryrequest.ErrNotParty) {
		t.Errorf("non-owner sender: got %v, want ErrNotParty", err)
	}

	other := f.store.SeedUser("Meera", "+919800000009")
	_, err = f.svc.CreateByTraveller(ctx, carryrequest.CreateByTravellerCommand{
		TravellerID: other, ConsignmentID: f.c.ID, TravelID: f.travelID,
	})
	if !errors.Is(err, carryrequest.ErrNotParty) {
		t.Errorf("foreign traveller: got %v, want ErrNotParty", err)
	}

	own := f.store.SeedTravel(f.sender, time.Now().Add(24*time.Hour))
	_, err = f.svc.CreateBySender(ctx, carryrequest.CreateBySenderCommand{
		SenderID: f.sender, ConsignmentID: f.c.ID, TravelID: own.ID,
	})
	if !errors.Is(err, carryrequest.ErrNotParty) {
		t.Errorf("self carry: got %v, want ErrNotParty", err)
	}

	gone := f.store.SeedTravel(f.traveller, time.Now().Add(24*time.Hour))
	f.store.SetDeparture(gone.ID, time.Now().Add(-time.Hour))
	_, err = f.svc.CreateByTraveller(ctx, carryrequest.CreateByTravellerCommand{
		TravellerID: f.traveller, ConsignmentID: f.c.ID, TravelID: gone.ID,
	})
	if !errors.Is(err, carryrequest.ErrTravelUnavailable) {
		t.Errorf("departed travel: got %v, want ErrTravelUnavailable", err)
	}
}

func TestAcceptOnlyByCounterparty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.bySender(t)

	_, err := f.svc.Accept(ctx, carryrequest.AcceptCommand{RequestID: r.ID, ActorID: f.sender})
	if !errors.Is(err, carryrequest.ErrNotParty) {
		t.Fatalf("requester accepting own request: got %v, want ErrNotParty", err)
	}

	got, err := f.svc.Accept(ctx, carryrequest.AcceptCommand{RequestID: r.ID, ActorID: f.traveller})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if got.Status != carryrequest.StatusAcceptedPendingPayment {
		t.Errorf("status = %s, want accepted_pending_payment", got.Status)
	}

	_, err = f.svc.Accept(ctx, carryrequest.AcceptCommand{RequestID: r.ID, ActorID: f.traveller})
	if !errors.Is(err, carryrequest.ErrInvalidState) {
		t.Errorf("second accept: got %v, want ErrInvalidState", err)
	}
}

func TestRejectCancelsPendingPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.bySender(t)
	if _, err := f.svc.Accept(ctx, carryrequest.AcceptCommand{RequestID: r.ID, ActorID: f.traveller}); err != nil {
		t.Fatalf("accept: %v", err)
	}

	orderID := "order_1"
	expires := time.Now().Add(10 * time.Minute)
	if err := f.store.Payments().Create(ctx, &payment.Payment{
		ID: types.NewID(), Type: payment.TypeSenderPay, Status: payment.StatusPending,
		CarryRequestID: r.ID, ConsignmentID: f.c.ID, TravelID: f.travelID, PayerID: f.sender,
		GatewayOrderID: &orderID, ExpiresAt: &expires, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("seed payment: %v", err)
	}

	got, err := f.svc.Reject(ctx, carryrequest.RejectCommand{RequestID: r.ID, ActorID: f.sender, Reason: "changed plans"})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got.Status != carryrequest.StatusRejected || got.Reason != "changed plans" {
		t.Errorf("unexpected request after reject: %+v", got)
	}
	p, err := f.store.Payments().GetByOrderID(ctx, orderID)
	if err != nil {
		t.Fatalf("payment lookup: %v", err)
	}
	if p.Status != payment.StatusCancelled {
		t.Errorf("payment status = %s, want cancelled", p.Status)
	}

	_, err = f.svc.Reject(ctx, carryrequest.RejectCommand{RequestID: r.ID, ActorID: f.sender})
	if !errors.Is(err, carryrequest.ErrInvalidState) {
		t.Errorf("reject twice: got %v, want ErrInvalidState", err)
	}
}

func TestListForConsignmentHidesOtherTravellers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.bySender(t)

	other := f.store.SeedUser("Meera", "+919800000009")
	otherTravel := f.store.SeedTravel(other, time.Now().Add(24*time.Hour))
	if _, err := f.svc.CreateByTraveller(ctx, carryrequest.CreateByTravellerCommand{
		TravellerID: other, ConsignmentID: f.c.ID, TravelID: otherTravel.ID,
	}); err != nil {
		t.Fatalf("create by traveller: %v", err)
	}

	all, err := f.svc.ListForConsignment(ctx, f.c.ID, f.sender, false)
	if err != nil || len(all) != 2 {
		t.Fatalf("sender list: %d requests, err %v", len(all), err)
	}
	mine, err := f.svc.ListForConsignment(ctx, f.c.ID, other, false)
	if err != nil || len(mine) != 1 || mine[0].TravellerID != other {
		t.Fatalf("traveller list: %+v, err %v", mine, err)
	}
}

func TestExpireDeparted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.bySender(t)

	f.store.SetDeparture(f.travelID, time.Now().Add(-time.Minute))
	n, err := f.svc.ExpireDeparted(ctx)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if n != 1 {
		t.Fatalf("expired %d, want 1", n)
	}
	got, _ := f.store.CarryRequests().Get(ctx, r.ID)
	if got.Status != carryrequest.StatusExpired {
		t.Errorf("status = %s, want expired", got.Status)
	}

	n, err = f.svc.ExpireDeparted(ctx)
	if err != nil || n != 0 {
		t.Errorf("second sweep: n=%d err=%v, want nothing to do", n, err)
	}
}
