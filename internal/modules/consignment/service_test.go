package consignment_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"carryhub/internal/maps"
	"carryhub/internal/modules/carryrequest"
	"carryhub/internal/modules/consignment"
	"carryhub/internal/modules/fare"
	"carryhub/internal/modules/handover"
	"carryhub/internal/modules/payment"
	"carryhub/internal/store/memory"
	"carryhub/internal/types"
)

type fakeDistance struct {
	km  float64
	err error
}

func (d fakeDistance) GetDistance(context.Context, string, string) (maps.Distance, error) {
	return maps.Distance{Km: d.km}, d.err
}

type fixture struct {
	store    *memory.Store
	svc      *consignment.Service
	requests *carryrequest.Service
	sender   types.ID
}

func newFixture(t *testing.T, dist fakeDistance) *fixture {
	t.Helper()
	st := memory.New()
	st.SeedFare()
	requests := carryrequest.NewService(carryrequest.Deps{
		Repo:         st.CarryRequests(),
		Tx:           st,
		Consignments: st.Consignments(),
		Travels:      st.Travels(),
		Payments:     st.Payments(),
	})
	handovers := handover.NewService(handover.Deps{
		Repo:         st.Handovers(),
		Tx:           st,
		Consignments: st.Consignments(),
		Earnings:     st.Earnings(),
	})
	svc := consignment.NewService(consignment.Deps{
		Repo:      st.Consignments(),
		Tx:        st,
		Distance:  dist,
		Fares:     fare.NewService(st.Fares()),
		Requests:  requests,
		Payments:  st.Payments(),
		Handovers: handovers,
	})
	return &fixture{store: st, svc: svc, requests: requests, sender: st.SeedUser("Asha", "+919800000001")}
}

func createCmd(sender types.ID) consignment.CreateCommand {
	return consignment.CreateCommand{
		SenderID: sender,
		From:     consignment.Address{City: "Pune", State: "Maharashtra"},
		To:       consignment.Address{City: "Mumbai", State: "Maharashtra"},
		Receiver: consignment.Receiver{Name: "Kiran", Phone: "+919800000003"},
		WeightKg: 2,
		LengthCm: 10,
		WidthCm:  10,
		HeightCm: 10,
	}
}

func TestCreateQuotesEveryMode(t *testing.T) {
	f := newFixture(t, fakeDistance{km: 150})
	c, err := f.svc.Create(context.Background(), createCmd(f.sender))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Status != consignment.StatusPublished || c.DistanceKm != 150 || c.EffectiveWeight != 2 {
		t.Errorf("unexpected consignment %+v", c)
	}
	want := map[fare.Mode]fare.Quote{
		fare.ModeTrain:  {TravelerEarn: decimal.NewFromInt(150), SenderPay: decimal.NewFromInt(180)},
		fare.ModeRoad:   {TravelerEarn: decimal.NewFromInt(150), SenderPay: decimal.NewFromInt(180)},
		fare.ModeFlight: {TravelerEarn: decimal.NewFromInt(380), SenderPay: decimal.NewFromInt(456)},
	}
	for m, q := range want {
		got := c.Quotes[m]
		if !got.TravelerEarn.Equal(q.TravelerEarn) || !got.SenderPay.Equal(q.SenderPay) {
			t.Errorf("%s quote = %+v, want %+v", m, got, q)
		}
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t, fakeDistance{km: 150})
	ctx := context.Background()

	cmd := createCmd(f.sender)
	cmd.WeightKg = 0
	if _, err := f.svc.Create(ctx, cmd); !errors.Is(err, consignment.ErrInvalidInput) {
		t.Errorf("zero weight: got %v", err)
	}
	cmd = createCmd(f.sender)
	cmd.Receiver.Phone = " "
	if _, err := f.svc.Create(ctx, cmd); !errors.Is(err, consignment.ErrInvalidInput) {
		t.Errorf("no receiver phone: got %v", err)
	}

	f = newFixture(t, fakeDistance{err: errors.New("ZERO_RESULTS")})
	if _, err := f.svc.Create(ctx, createCmd(f.sender)); !errors.Is(err, consignment.ErrDistanceFailure) {
		t.Errorf("distance failure: got %v", err)
	}
}

func TestCancelCascades(t *testing.T) {
	f := newFixture(t, fakeDistance{km: 150})
	ctx := context.Background()
	c, err := f.svc.Create(ctx, createCmd(f.sender))
	if err != nil {
		t.Fatal(err)
	}
	traveller := f.store.SeedUser("Ravi", "+919800000002")
	tr := f.store.SeedTravel(traveller, time.Now().Add(24*time.Hour))
	r, err := f.requests.CreateByTraveller(ctx, carryrequest.CreateByTravellerCommand{TravellerID: traveller, ConsignmentID: c.ID, TravelID: tr.ID})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.requests.Accept(ctx, carryrequest.AcceptCommand{RequestID: r.ID, ActorID: f.sender}); err != nil {
		t.Fatal(err)
	}
	orderID := "order_1"
	if err := f.store.Payments().Create(ctx, &payment.Payment{
		ID: types.NewID(), Type: payment.TypeSenderPay, Status: payment.StatusPending,
		CarryRequestID: r.ID, ConsignmentID: c.ID, PayerID: f.sender, GatewayOrderID: &orderID, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}

	if err := f.svc.Cancel(ctx, consignment.CancelCommand{ConsignmentID: c.ID, ActorID: traveller}); err == nil {
		t.Fatal("traveller cancelled someone else's consignment")
	}
	if err := f.svc.Cancel(ctx, consignment.CancelCommand{ConsignmentID: c.ID, ActorID: f.sender}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	got, _ := f.store.Consignments().Get(ctx, c.ID)
	if got.Status != consignment.StatusCancelled || got.CancelledAt == nil {
		t.Errorf("consignment = %s, want cancelled", got.Status)
	}
	req, _ := f.store.CarryRequests().Get(ctx, r.ID)
	if req.Status != carryrequest.StatusRejected || req.Reason != "consignment_cancelled" {
		t.Errorf("request = %s/%s, want rejected/consignment_cancelled", req.Status, req.Reason)
	}
	p, _ := f.store.Payments().GetByOrderID(ctx, orderID)
	if p.Status != payment.StatusCancelled {
		t.Errorf("payment = %s, want cancelled", p.Status)
	}

	if err := f.svc.Cancel(ctx, consignment.CancelCommand{ConsignmentID: c.ID, ActorID: f.sender}); !errors.Is(err, consignment.ErrInvalidState) {
		t.Errorf("cancel twice: got %v, want ErrInvalidState", err)
	}
}

func TestAdminCancelAfterAssignment(t *testing.T) {
	f := newFixture(t, fakeDistance{km: 150})
	ctx := context.Background()
	c := f.store.SeedConsignment(f.sender, "+919800000003")
	traveller := f.store.SeedUser("Ravi", "+919800000002")
	if ok, _ := f.store.Consignments().Assign(ctx, c.ID, traveller, []consignment.Status{consignment.StatusPublished}, time.Now()); !ok {
		t.Fatal("assign failed")
	}
	tc := &handover.TravelConsignment{
		ID: types.NewID(), ConsignmentID: c.ID, TravelID: types.NewID(), SenderID: f.sender, TravellerID: traveller,
		SenderOTP: "1111", ReceiverOTP: "2222", Status: handover.StatusToHandover, CreatedAt: time.Now(),
	}
	if err := f.store.Handovers().Create(ctx, tc); err != nil {
		t.Fatal(err)
	}

	if err := f.svc.Cancel(ctx, consignment.CancelCommand{ConsignmentID: c.ID, ActorID: f.sender}); !errors.Is(err, consignment.ErrInvalidState) {
		t.Fatalf("sender cancel after assignment: got %v, want ErrInvalidState", err)
	}
	if err := f.svc.Cancel(ctx, consignment.CancelCommand{ConsignmentID: c.ID, ActorID: "admin", IsAdmin: true}); err != nil {
		t.Fatalf("admin cancel: %v", err)
	}
	got, _ := f.store.Handovers().Get(ctx, tc.ID)
	if got.Status != handover.StatusCancelled {
		t.Errorf("travel consignment = %s, want cancelled", got.Status)
	}
	events := f.store.Handovers().Events(ctx, tc.ID)
	if len(events) != 1 || events[0].ActorType != "system" {
		t.Errorf("events = %+v", events)
	}
}
