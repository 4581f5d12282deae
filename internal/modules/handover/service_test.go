package handover_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"carryhub/internal/modules/consignment"
	"carryhub/internal/modules/earning"
	"carryhub/internal/modules/handover"
	"carryhub/internal/store/memory"
	"carryhub/internal/types"
)

type fixture struct {
	store     *memory.Store
	svc       *handover.Service
	sender    types.ID
	traveller types.ID
	c         *consignment.Consignment
	tc        *handover.TravelConsignment
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	svc := handover.NewService(handover.Deps{
		Repo:         st.Handovers(),
		Tx:           st,
		Consignments: st.Consignments(),
		Earnings:     st.Earnings(),
	})
	sender := st.SeedUser("Asha", "+919800000001")
	traveller := st.SeedUser("Ravi", "+919800000002")
	c := st.SeedConsignment(sender, "+919800000003")
	tr := st.SeedTravel(traveller, time.Now().Add(24*time.Hour))
	if ok, err := st.Consignments().Assign(ctx, c.ID, traveller, []consignment.Status{consignment.StatusPublished}, time.Now()); err != nil || !ok {
		t.Fatalf("assign: %v %v", ok, err)
	}
	tc := &handover.TravelConsignment{
		ID:                 types.NewID(),
		ConsignmentID:      c.ID,
		TravelID:           tr.ID,
		CarryRequestID:     types.NewID(),
		SenderID:           sender,
		TravellerID:        traveller,
		SenderOTP:          "4821",
		ReceiverOTP:        "7390",
		Status:             handover.StatusToHandover,
		TravellerEarning:   decimal.NewFromInt(150),
		SenderToPay:        decimal.NewFromInt(180),
		PlatformCommission: decimal.NewFromInt(36),
		CreatedAt:          time.Now(),
		UpdatedAt:          time.Now(),
	}
	if err := st.Handovers().Create(ctx, tc); err != nil {
		t.Fatal(err)
	}
	return &fixture{store: st, svc: svc, sender: sender, traveller: traveller, c: c, tc: tc}
}

func (f *fixture) pickup(t *testing.T) {
	t.Helper()
	if _, err := f.svc.VerifyPickup(context.Background(), handover.VerifyCommand{
		TravelConsignmentID: f.tc.ID, ActorID: f.traveller, OTP: "4821",
	}); err != nil {
		t.Fatalf("pickup: %v", err)
	}
}

func TestVerifyPickupWrongCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.VerifyPickup(ctx, handover.VerifyCommand{TravelConsignmentID: f.tc.ID, ActorID: f.traveller, OTP: "0000"})
	if !errors.Is(err, handover.ErrInvalidOTP) {
		t.Fatalf("got %v, want ErrInvalidOTP", err)
	}
	_, err = f.svc.VerifyPickup(ctx, handover.VerifyCommand{TravelConsignmentID: f.tc.ID, ActorID: f.traveller, OTP: "7390"})
	if !errors.Is(err, handover.ErrInvalidOTP) {
		t.Fatalf("receiver code at pickup: got %v, want ErrInvalidOTP", err)
	}

	tc, _ := f.store.Handovers().Get(ctx, f.tc.ID)
	if tc.Status != handover.StatusToHandover {
		t.Errorf("status = %s, want to_handover", tc.Status)
	}
	es, _ := f.store.Earnings().ListForTravelConsignment(ctx, f.tc.ID)
	if len(es) != 0 {
		t.Errorf("earnings after failed pickup = %d, want 0", len(es))
	}
}

func TestVerifyPickupOnlyTraveller(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.VerifyPickup(context.Background(), handover.VerifyCommand{TravelConsignmentID: f.tc.ID, ActorID: f.sender, OTP: "4821"})
	if !errors.Is(err, handover.ErrNotTraveller) {
		t.Errorf("sender confirming pickup: got %v, want ErrNotTraveller", err)
	}
}

func TestPickupThenDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.VerifyDelivery(ctx, handover.VerifyCommand{TravelConsignmentID: f.tc.ID, ActorID: f.traveller, OTP: "7390"})
	if !errors.Is(err, handover.ErrInvalidTransition) {
		t.Fatalf("delivery before pickup: got %v, want ErrInvalidTransition", err)
	}

	f.pickup(t)
	tc, _ := f.store.Handovers().Get(ctx, f.tc.ID)
	if tc.Status != handover.StatusInTransit || tc.PickupTime == nil {
		t.Errorf("after pickup: %s pickup=%v", tc.Status, tc.PickupTime)
	}
	c, _ := f.store.Consignments().Get(ctx, f.c.ID)
	if c.Status != consignment.StatusInTransit {
		t.Errorf("consignment = %s, want in_transit", c.Status)
	}
	es, _ := f.store.Earnings().ListForTravelConsignment(ctx, f.tc.ID)
	if len(es) != 1 || es[0].Status != earning.StatusPending || !es[0].Amount.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("earnings after pickup = %+v", es)
	}

	_, err = f.svc.VerifyPickup(ctx, handover.VerifyCommand{TravelConsignmentID: f.tc.ID, ActorID: f.traveller, OTP: "4821"})
	if !errors.Is(err, handover.ErrInvalidTransition) {
		t.Errorf("second pickup: got %v, want ErrInvalidTransition", err)
	}

	_, err = f.svc.VerifyDelivery(ctx, handover.VerifyCommand{TravelConsignmentID: f.tc.ID, ActorID: f.traveller, OTP: " 7390 "})
	if !errors.Is(err, handover.ErrInvalidOTP) {
		t.Fatalf("padded code: got %v, want ErrInvalidOTP", err)
	}

	out, err := f.svc.VerifyDelivery(ctx, handover.VerifyCommand{TravelConsignmentID: f.tc.ID, ActorID: f.traveller, OTP: "7390"})
	if err != nil {
		t.Fatalf("delivery: %v", err)
	}
	if out.Status != handover.StatusDelivered || out.DeliveryTime == nil {
		t.Errorf("after delivery: %+v", out)
	}
	c, _ = f.store.Consignments().Get(ctx, f.c.ID)
	if c.Status != consignment.StatusDelivered {
		t.Errorf("consignment = %s, want delivered", c.Status)
	}
	es, _ = f.store.Earnings().ListForTravelConsignment(ctx, f.tc.ID)
	if len(es) != 1 || es[0].Status != earning.StatusCompleted {
		t.Errorf("earnings after delivery = %+v", es)
	}

	events := f.store.Handovers().Events(ctx, f.tc.ID)
	if len(events) != 2 || events[0].ToStatus != handover.StatusInTransit || events[1].ToStatus != handover.StatusDelivered {
		t.Errorf("events = %+v", events)
	}
}

func TestViewHidesCodes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.svc.Get(ctx, f.tc.ID, f.traveller, false)
	if err != nil {
		t.Fatal(err)
	}
	if v.SenderOTP != nil || v.ReceiverOTP != nil {
		t.Error("traveller view exposes codes")
	}

	v, _ = f.svc.Get(ctx, f.tc.ID, f.sender, false)
	if v.SenderOTP == nil || *v.SenderOTP != "4821" {
		t.Errorf("sender pickup code = %v", v.SenderOTP)
	}
	if v.ReceiverOTP != nil {
		t.Error("sender sees receiver code before pickup")
	}

	if _, err := f.svc.Get(ctx, f.tc.ID, "stranger", false); !errors.Is(err, handover.ErrNotVisible) {
		t.Errorf("stranger read: got %v, want ErrNotVisible", err)
	}
	v, _ = f.svc.Get(ctx, f.tc.ID, "admin", true)
	if v.SenderOTP != nil || v.ReceiverOTP != nil {
		t.Error("admin view exposes codes")
	}

	f.pickup(t)
	v, _ = f.svc.Get(ctx, f.tc.ID, f.sender, false)
	if v.ReceiverOTP == nil || *v.ReceiverOTP != "7390" {
		t.Errorf("sender receiver code after pickup = %v", v.ReceiverOTP)
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.Cancel(ctx, handover.CancelCommand{TravelConsignmentID: f.tc.ID, ActorID: f.sender}); !errors.Is(err, handover.ErrAdminOnly) {
		t.Fatalf("sender cancel: got %v, want ErrAdminOnly", err)
	}

	f.pickup(t)
	if err := f.svc.Cancel(ctx, handover.CancelCommand{TravelConsignmentID: f.tc.ID, ActorID: "admin", IsAdmin: true}); err != nil {
		t.Fatalf("admin cancel: %v", err)
	}
	tc, _ := f.store.Handovers().Get(ctx, f.tc.ID)
	if tc.Status != handover.StatusCancelled || tc.CancelledAt == nil {
		t.Errorf("status = %s, want cancelled", tc.Status)
	}
	c, _ := f.store.Consignments().Get(ctx, f.c.ID)
	if c.Status != consignment.StatusCancelled {
		t.Errorf("consignment = %s, want cancelled", c.Status)
	}
	es, _ := f.store.Earnings().ListForTravelConsignment(ctx, f.tc.ID)
	if len(es) != 1 || es[0].Status != earning.StatusFailed {
		t.Errorf("earning after cancel = %+v", es)
	}

	if err := f.svc.Cancel(ctx, handover.CancelCommand{TravelConsignmentID: f.tc.ID, ActorID: "admin", IsAdmin: true}); !errors.Is(err, handover.ErrInvalidTransition) {
		t.Errorf("second cancel: got %v, want ErrInvalidTransition", err)
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to handover.Status
		want     bool
	}{
		{handover.StatusToHandover, handover.StatusInTransit, true},
		{handover.StatusToHandover, handover.StatusDelivered, false},
		{handover.StatusInTransit, handover.StatusDelivered, true},
		{handover.StatusInTransit, handover.StatusCancelled, true},
		{handover.StatusDelivered, handover.StatusCancelled, false},
		{handover.StatusCancelled, handover.StatusInTransit, false},
	}
	for _, tt := range tests {
		if got := handover.CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
