package webhook_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"carryhub/internal/gateway"
	"carryhub/internal/infra"
	"carryhub/internal/modules/carryrequest"
	"carryhub/internal/modules/consignment"
	"carryhub/internal/modules/earning"
	"carryhub/internal/modules/fare"
	"carryhub/internal/modules/handover"
	"carryhub/internal/modules/payment"
	"carryhub/internal/modules/payout"
	"carryhub/internal/modules/travel"
	"carryhub/internal/modules/user"
	"carryhub/internal/modules/webhook"
	"carryhub/internal/otp"
	"carryhub/internal/types"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("CARRY_TEST_DSN"))
	if dsn == "" {
		t.Skip("CARRY_TEST_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := infra.NewDB(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(db.Close)
	schema, err := os.ReadFile("../../../migrations/0001_init.sql")
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if _, err := db.Exec(ctx, string(schema)); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}

type lockedOTP struct {
	mu sync.Mutex
	fakeOTP
}

func (l *lockedOTP) Generate() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fakeOTP.Generate()
}

func (l *lockedOTP) Deliver(ctx context.Context, purpose otp.Purpose, phone, code string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fakeOTP.Deliver(ctx, purpose, phone, code)
}

// seedAwaitingPayment stores a consignment, a travel, an accepted request and its pending payment.
func seedAwaitingPayment(t *testing.T, db *pgxpool.Pool, orderID string) *carryrequest.CarryRequest {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	suffix := fmt.Sprintf("%d", now.UnixNano())

	cfg := fare.Config{
		BaseFareTrain: decimal.NewFromInt(100), BaseFareFlight: decimal.NewFromInt(300),
		WeightRateTrain: decimal.NewFromInt(20), WeightRateFlight: decimal.NewFromInt(50),
		DistanceRateTrain: decimal.NewFromInt(10), AdditionalDistanceRateTrain: decimal.NewFromInt(5),
		DistanceSlabRateFlight: decimal.NewFromInt(100), TE: decimal.NewFromInt(30),
		Margin: decimal.RequireFromString("0.2"),
	}
	if err := fare.NewStore(db).Save(ctx, &cfg); err != nil {
		t.Fatalf("seed fare config: %v", err)
	}

	users := user.NewStore(db)
	sender := &user.User{ID: types.NewID(), Name: "Asha", Phone: "+91s" + suffix, Role: types.RoleUser, CreatedAt: now}
	traveller := &user.User{ID: types.NewID(), Name: "Ravi", Phone: "+91t" + suffix, Role: types.RoleUser, CreatedAt: now}
	for _, u := range []*user.User{sender, traveller} {
		if err := users.Upsert(ctx, u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	c := &consignment.Consignment{
		ID: types.NewID(), SenderID: sender.ID, Status: consignment.StatusRequested,
		From:     consignment.Address{City: "Pune", State: "Maharashtra"},
		To:       consignment.Address{City: "Mumbai", State: "Maharashtra"},
		Receiver: consignment.Receiver{Name: "Kiran", Phone: "+91r" + suffix},
		WeightKg: 2, LengthCm: 10, WidthCm: 10, HeightCm: 10, EffectiveWeight: 2, DistanceKm: 150,
		Quotes:    map[fare.Mode]fare.Quote{},
		CreatedAt: now,
	}
	if err := consignment.NewStore(db).Create(ctx, c); err != nil {
		t.Fatalf("seed consignment: %v", err)
	}
	tr := &travel.Travel{
		ID: types.NewID(), TravellerID: traveller.ID,
		From: travel.Place{City: "Pune", State: "Maharashtra"}, To: travel.Place{City: "Mumbai", State: "Maharashtra"},
		DepartureAt: now.Add(24 * time.Hour), ArrivalAt: now.Add(28 * time.Hour),
		Mode: fare.ModeTrain, Status: travel.StatusUpcoming, CreatedAt: now,
	}
	if err := travel.NewStore(db).Create(ctx, tr); err != nil {
		t.Fatalf("seed travel: %v", err)
	}
	r := &carryrequest.CarryRequest{
		ID: types.NewID(), ConsignmentID: c.ID, TravelID: tr.ID, SenderID: sender.ID, TravellerID: traveller.ID,
		RequestedBy: traveller.ID, Initiator: carryrequest.InitiatorTraveller, Mode: fare.ModeTrain,
		SenderPayAmount: decimal.NewFromInt(180), TravellerEarning: decimal.NewFromInt(150),
		Status: carryrequest.StatusAcceptedPendingPayment, CreatedAt: now,
	}
	if err := carryrequest.NewStore(db).Create(ctx, r); err != nil {
		t.Fatalf("seed request: %v", err)
	}
	exp := now.Add(15 * time.Minute)
	if err := payment.NewStore(db).Create(ctx, &payment.Payment{
		ID: types.NewID(), Type: payment.TypeSenderPay, Status: payment.StatusPending,
		Amount: r.SenderPayAmount, Currency: types.Currency,
		CarryRequestID: r.ID, ConsignmentID: c.ID, TravelID: tr.ID, PayerID: sender.ID,
		GatewayOrderID: &orderID, ExpiresAt: &exp, CreatedAt: now,
	}); err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	return r
}

func TestPostgresConcurrentCapturedDeliveriesApplyOnce(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	orderID := fmt.Sprintf("order_race_%d", time.Now().UnixNano())
	r := seedAwaitingPayment(t, db, orderID)

	rec := webhook.NewReconciler(webhook.Deps{
		Tx:           infra.NewTxManager(db),
		Payments:     payment.NewStore(db),
		Requests:     carryrequest.NewStore(db),
		Consignments: consignment.NewStore(db),
		Handovers:    handover.NewStore(db),
		Users:        user.NewStore(db),
		Fares:        fare.NewService(fare.NewStore(db)),
		Payouts:      payout.NewStore(db),
		Earnings:     earning.NewStore(db),
		OTP:          &lockedOTP{},
		Secret:       secret,
	})
	b := body(t, webhook.EventPaymentCaptured, "payment", map[string]any{
		"id": "pay_" + orderID, "order_id": orderID, "amount": 18000, "status": "captured",
	})

	const n = 10
	start := make(chan struct{})
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = map[webhook.Result]int{}
		errs    []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := rec.Handle(ctx, b, gateway.Sign(secret, b))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			results[res]++
		}()
	}
	close(start)
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("deliveries failed: %v", errs)
	}
	if results[webhook.Applied] != 1 || results[webhook.Duplicate] != n-1 {
		t.Fatalf("results = %v, want 1 applied and %d duplicate", results, n-1)
	}

	var handovers, commissions int
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM travel_consignments WHERE consignment_id = $1`, string(r.ConsignmentID)).Scan(&handovers); err != nil {
		t.Fatal(err)
	}
	if handovers != 1 {
		t.Errorf("travel consignments = %d, want 1", handovers)
	}
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM payments WHERE carry_request_id = $1 AND type = 'platform_commission'`, string(r.ID)).Scan(&commissions); err != nil {
		t.Fatal(err)
	}
	if commissions != 1 {
		t.Errorf("commission payments = %d, want 1", commissions)
	}
	got, err := carryrequest.NewStore(db).Get(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != carryrequest.StatusAccepted {
		t.Errorf("request = %s, want accepted", got.Status)
	}
	p, err := payment.NewStore(db).GetByOrderID(ctx, orderID)
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != payment.StatusCompleted {
		t.Errorf("payment = %s, want completed", p.Status)
	}
}
