package payment_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"carryhub/internal/config"
	"carryhub/internal/gateway"
	"carryhub/internal/infra"
	"carryhub/internal/modules/carryrequest"
	"carryhub/internal/modules/payment"
	"carryhub/internal/store/memory"
	"carryhub/internal/types"
)

const keySecret = "test-key-secret"

type fakeGateway struct {
	calls atomic.Int64
	delay time.Duration
	err   error
}

func (g *fakeGateway) CreateOrder(_ context.Context, req gateway.OrderRequest) (*gateway.Order, error) {
	n := g.calls.Add(1)
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	if g.err != nil {
		return nil, g.err
	}
	return &gateway.Order{ID: fmt.Sprintf("order_%d", n), Amount: req.AmountMinor, Currency: req.Currency, Receipt: req.Receipt}, nil
}

type fixture struct {
	store   *memory.Store
	gw      *fakeGateway
	svc     *payment.Service
	sender  types.ID
	request *carryrequest.CarryRequest
}

func newFixture(t *testing.T, cfg config.PaymentConfig) *fixture {
	t.Helper()
	st := memory.New()
	gw := &fakeGateway{}
	svc := payment.NewService(payment.Deps{
		Repo:      st.Payments(),
		Tx:        st,
		Requests:  st.CarryRequests(),
		Gateway:   gw,
		Locker:    infra.NewLocalLocker(5 * time.Second),
		KeySecret: keySecret,
		Config:    cfg,
	})
	sender := st.SeedUser("Asha", "+919800000001")
	traveller := st.SeedUser("Ravi", "+919800000002")
	c := st.SeedConsignment(sender, "+919800000003")
	tr := st.SeedTravel(traveller, time.Now().Add(24*time.Hour))
	r := &carryrequest.CarryRequest{
		ID:               types.NewID(),
		ConsignmentID:    c.ID,
		TravelID:         tr.ID,
		SenderID:         sender,
		TravellerID:      traveller,
		RequestedBy:      traveller,
		Initiator:        carryrequest.InitiatorTraveller,
		Mode:             tr.Mode,
		SenderPayAmount:  c.Quotes[tr.Mode].SenderPay,
		TravellerEarning: c.Quotes[tr.Mode].TravelerEarn,
		Status:           carryrequest.StatusAcceptedPendingPayment,
		CreatedAt:        time.Now(),
	}
	if err := st.CarryRequests().Create(context.Background(), r); err != nil {
		t.Fatalf("seed request: %v", err)
	}
	return &fixture{store: st, gw: gw, svc: svc, sender: sender, request: r}
}

func (f *fixture) initiate(t *testing.T) *payment.InitiateResult {
	t.Helper()
	res, err := f.svc.Initiate(context.Background(), payment.InitiateCommand{CarryRequestID: f.request.ID, PayerID: f.sender})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	return res
}

func TestInitiateCreatesOrder(t *testing.T) {
	f := newFixture(t, config.PaymentConfig{})
	res := f.initiate(t)

	if res.Resumed {
		t.Error("first initiate reported resumed")
	}
	if res.Amount != 18000 {
		t.Errorf("amount = %d minor units, want 18000", res.Amount)
	}
	if res.Payment.Status != payment.StatusPending || res.Payment.Type != payment.TypeSenderPay {
		t.Errorf("unexpected payment %+v", res.Payment)
	}
	if res.Payment.ExpiresAt == nil || time.Until(*res.Payment.ExpiresAt) < 14*time.Minute {
		t.Errorf("expires_at = %v, want about 15 minutes out", res.Payment.ExpiresAt)
	}
}

func TestInitiateResumesOpenPayment(t *testing.T) {
	f := newFixture(t, config.PaymentConfig{})
	first := f.initiate(t)
	second := f.initiate(t)

	if !second.Resumed || second.OrderID != first.OrderID {
		t.Fatalf("second initiate = %+v, want resume of %s", second, first.OrderID)
	}
	if f.gw.calls.Load() != 1 {
		t.Errorf("gateway called %d times, want 1", f.gw.calls.Load())
	}
}

func TestInitiateReplacesNearlyExpiredPayment(t *testing.T) {
	f := newFixture(t, config.PaymentConfig{TTL: time.Minute, ResumeThreshold: 2 * time.Minute})
	first := f.initiate(t)
	second := f.initiate(t)

	if second.Resumed || second.OrderID == first.OrderID {
		t.Fatalf("expected a fresh order, got %+v", second)
	}
	old, err := f.store.Payments().Get(context.Background(), first.Payment.ID)
	if err != nil {
		t.Fatal(err)
	}
	if old.Status != payment.StatusCancelled {
		t.Errorf("replaced payment status = %s, want cancelled", old.Status)
	}
}

func TestInitiateConcurrentCallersShareOnePayment(t *testing.T) {
	f := newFixture(t, config.PaymentConfig{})
	f.gw.delay = 20 * time.Millisecond

	const callers = 8
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		orders = map[string]bool{}
		failed []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.Initiate(context.Background(), payment.InitiateCommand{CarryRequestID: f.request.ID, PayerID: f.sender})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, err)
				return
			}
			orders[res.OrderID] = true
		}()
	}
	wg.Wait()

	if len(failed) > 0 {
		t.Fatalf("unexpected errors: %v", failed)
	}
	if len(orders) != 1 {
		t.Fatalf("callers saw %d distinct orders, want 1", len(orders))
	}
	open := 0
	for _, p := range f.store.Payments().ListForConsignment(context.Background(), f.request.ConsignmentID) {
		if p.Open() {
			open++
		}
	}
	if open != 1 {
		t.Errorf("open payments = %d, want 1", open)
	}
}

func TestInitiateRejectsWrongPayerAndState(t *testing.T) {
	f := newFixture(t, config.PaymentConfig{})
	ctx := context.Background()

	_, err := f.svc.Initiate(ctx, payment.InitiateCommand{CarryRequestID: f.request.ID, PayerID: f.request.TravellerID})
	if !errors.Is(err, payment.ErrNotPayer) {
		t.Errorf("traveller paying: got %v, want ErrNotPayer", err)
	}

	if _, err := f.store.CarryRequests().UpdateStatus(ctx, f.request.ID,
		[]carryrequest.Status{carryrequest.StatusAcceptedPendingPayment}, carryrequest.StatusRejected, "x"); err != nil {
		t.Fatal(err)
	}
	_, err = f.svc.Initiate(ctx, payment.InitiateCommand{CarryRequestID: f.request.ID, PayerID: f.sender})
	if !errors.Is(err, payment.ErrNotPayable) {
		t.Errorf("rejected request: got %v, want ErrNotPayable", err)
	}
}

func TestInitiateGatewayFailure(t *testing.T) {
	f := newFixture(t, config.PaymentConfig{})
	f.gw.err = errors.New("connection reset")

	_, err := f.svc.Initiate(context.Background(), payment.InitiateCommand{CarryRequestID: f.request.ID, PayerID: f.sender})
	if !errors.Is(err, payment.ErrGateway) {
		t.Fatalf("got %v, want ErrGateway", err)
	}
	if got := f.store.Payments().ListForConsignment(context.Background(), f.request.ConsignmentID); len(got) != 0 {
		t.Errorf("gateway failure left %d payments behind", len(got))
	}
}

func TestCapture(t *testing.T) {
	f := newFixture(t, config.PaymentConfig{})
	ctx := context.Background()
	res := f.initiate(t)

	sig := gateway.Sign(keySecret, gateway.CapturePayload(res.OrderID, "pay_1"))

	_, err := f.svc.Capture(ctx, payment.CaptureCommand{PayerID: f.sender, OrderID: res.OrderID, PaymentID: "pay_1", Signature: "deadbeef"})
	if !errors.Is(err, payment.ErrInvalidSignature) {
		t.Fatalf("bad signature: got %v, want ErrInvalidSignature", err)
	}

	p, err := f.svc.Capture(ctx, payment.CaptureCommand{PayerID: f.sender, OrderID: res.OrderID, PaymentID: "pay_1", Signature: sig})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if p.Status != payment.StatusCompletedPendingWebhook || p.PaymentID() != "pay_1" {
		t.Errorf("unexpected payment after capture %+v", p)
	}

	// the capture never completes the request on its own
	r, _ := f.store.CarryRequests().Get(ctx, f.request.ID)
	if r.Status != carryrequest.StatusAcceptedPendingPayment {
		t.Errorf("request status = %s, want accepted_pending_payment", r.Status)
	}

	again, err := f.svc.Capture(ctx, payment.CaptureCommand{PayerID: f.sender, OrderID: res.OrderID, PaymentID: "pay_1", Signature: sig})
	if err != nil || again.Status != payment.StatusCompletedPendingWebhook {
		t.Errorf("repeat capture: %+v, %v", again, err)
	}

	otherSig := gateway.Sign(keySecret, gateway.CapturePayload(res.OrderID, "pay_2"))
	_, err = f.svc.Capture(ctx, payment.CaptureCommand{PayerID: f.sender, OrderID: res.OrderID, PaymentID: "pay_2", Signature: otherSig})
	if !errors.Is(err, payment.ErrPaymentMismatch) {
		t.Errorf("different payment id: got %v, want ErrPaymentMismatch", err)
	}

	_, err = f.svc.Initiate(ctx, payment.InitiateCommand{CarryRequestID: f.request.ID, PayerID: f.sender})
	if !errors.Is(err, payment.ErrAwaitingWebhook) {
		t.Errorf("initiate after capture: got %v, want ErrAwaitingWebhook", err)
	}
}

func TestCaptureAfterExpiry(t *testing.T) {
	f := newFixture(t, config.PaymentConfig{TTL: time.Millisecond, ResumeThreshold: time.Millisecond})
	ctx := context.Background()
	res := f.initiate(t)
	time.Sleep(5 * time.Millisecond)

	sig := gateway.Sign(keySecret, gateway.CapturePayload(res.OrderID, "pay_1"))
	_, err := f.svc.Capture(ctx, payment.CaptureCommand{PayerID: f.sender, OrderID: res.OrderID, PaymentID: "pay_1", Signature: sig})
	if !errors.Is(err, payment.ErrPaymentExpired) {
		t.Fatalf("got %v, want ErrPaymentExpired", err)
	}
	p, _ := f.store.Payments().Get(ctx, res.Payment.ID)
	if p.Status != payment.StatusCancelled {
		t.Errorf("status = %s, want cancelled", p.Status)
	}
}

func TestCancelExpired(t *testing.T) {
	f := newFixture(t, config.PaymentConfig{TTL: time.Millisecond, ResumeThreshold: time.Millisecond})
	res := f.initiate(t)
	time.Sleep(5 * time.Millisecond)

	n, err := f.svc.CancelExpired(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("cancel expired: n=%d err=%v", n, err)
	}
	p, _ := f.store.Payments().Get(context.Background(), res.Payment.ID)
	if p.Status != payment.StatusCancelled {
		t.Errorf("status = %s, want cancelled", p.Status)
	}
}

func TestGetRestrictedToPayer(t *testing.T) {
	f := newFixture(t, config.PaymentConfig{})
	res := f.initiate(t)
	ctx := context.Background()

	if _, err := f.svc.Get(ctx, res.Payment.ID, f.request.TravellerID, false); !errors.Is(err, payment.ErrNotPayer) {
		t.Errorf("traveller read: got %v, want ErrNotPayer", err)
	}
	if _, err := f.svc.Get(ctx, res.Payment.ID, "someone", true); err != nil {
		t.Errorf("admin read: %v", err)
	}
}
