// README: Payment orchestrator: idempotent gateway order creation, client capture, expiry sweep.
package payment

import (
	"context"
	"errors"
	"log"
	"time"

	"carryhub/internal/config"
	"carryhub/internal/errs"
	"carryhub/internal/gateway"
	"carryhub/internal/infra"
	"carryhub/internal/modules/carryrequest"
	"carryhub/internal/types"
)

type Repository interface {
	Create(ctx context.Context, p *Payment) error
	Get(ctx context.Context, id types.ID) (*Payment, error)
	GetByOrderID(ctx context.Context, orderID string) (*Payment, error)
	LockByOrderID(ctx context.Context, orderID string) (*Payment, error)
	LockByGatewayPaymentID(ctx context.Context, paymentID string) (*Payment, error)
	FindOpenForRequest(ctx context.Context, requestID types.ID) (*Payment, error)
	HasSettledForConsignment(ctx context.Context, consignmentID types.ID) (bool, error)
	UpdateStatus(ctx context.Context, id types.ID, from []Status, to Status, gatewayPaymentID *string) (bool, error)
	CancelPendingForRequest(ctx context.Context, requestID types.ID) (int64, error)
	CancelPendingForConsignment(ctx context.Context, consignmentID, exceptID types.ID) (int64, error)
	CancelExpired(ctx context.Context, now time.Time) (int64, error)
	SetRefund(ctx context.Context, id types.ID, r Refund, status *Status) error
}

type RequestReader interface {
	Get(ctx context.Context, id types.ID) (*carryrequest.CarryRequest, error)
}

type OrderCreator interface {
	CreateOrder(ctx context.Context, req gateway.OrderRequest) (*gateway.Order, error)
}

type Deps struct {
	Repo      Repository
	Tx        infra.TxRunner
	Requests  RequestReader
	Gateway   OrderCreator
	Locker    infra.Locker
	KeySecret string
	Config    config.PaymentConfig
}

type Service struct {
	repo      Repository
	tx        infra.TxRunner
	requests  RequestReader
	gateway   OrderCreator
	locker    infra.Locker
	keySecret string
	cfg       config.PaymentConfig
	now       func() time.Time
}

func NewService(d Deps) *Service {
	cfg := d.Config
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Minute
	}
	if cfg.ResumeThreshold <= 0 {
		cfg.ResumeThreshold = 2 * time.Minute
	}
	return &Service{
		repo:      d.Repo,
		tx:        d.Tx,
		requests:  d.Requests,
		gateway:   d.Gateway,
		locker:    d.Locker,
		keySecret: d.KeySecret,
		cfg:       cfg,
		now:       time.Now,
	}
}

// InitiateResult is what the client needs to open the gateway checkout.
type InitiateResult struct {
	Payment *Payment
	OrderID string
	Amount  int64
	Resumed bool
}

type InitiateCommand struct {
	CarryRequestID types.ID
	PayerID        types.ID
}

type CaptureCommand struct {
	PayerID   types.ID
	OrderID   string
	PaymentID string
	Signature string
}

// Initiate creates (or resumes) the single open sender_pay payment for an accepted request.
// Concurrent callers for one request are serialised by a keyed lock; the partial unique
// index catches anything that slips past it.
func (s *Service) Initiate(ctx context.Context, cmd InitiateCommand) (*InitiateResult, error) {
	r, err := s.requests.Get(ctx, cmd.CarryRequestID)
	if err != nil {
		return nil, err
	}
	if r.SenderID != cmd.PayerID {
		return nil, ErrNotPayer
	}
	if r.Status != carryrequest.StatusAcceptedPendingPayment {
		return nil, ErrNotPayable
	}

	release, err := s.locker.Acquire(ctx, "payment:init:"+string(r.ID), 30*time.Second)
	if err != nil {
		if errors.Is(err, infra.ErrLockBusy) {
			return nil, errs.New(errs.ErrConflict, "payment_in_progress", "another payment attempt is in progress")
		}
		return nil, err
	}
	defer release()

	existing, err := s.repo.FindOpenForRequest(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		switch existing.Status {
		case StatusCompletedPendingWebhook:
			return nil, ErrAwaitingWebhook
		case StatusPending:
			if existing.ExpiresAt != nil && existing.ExpiresAt.Sub(s.now()) > s.cfg.ResumeThreshold {
				return resumed(existing), nil
			}
			// too close to expiry to hand out; start a fresh order
			if _, err := s.repo.UpdateStatus(ctx, existing.ID, []Status{StatusPending}, StatusCancelled, nil); err != nil {
				return nil, err
			}
		}
	}

	paid, err := s.repo.HasSettledForConsignment(ctx, r.ConsignmentID)
	if err != nil {
		return nil, err
	}
	if paid {
		return nil, ErrAlreadyPaid
	}

	id := types.NewID()
	amount := types.Round2(r.SenderPayAmount)
	order, err := s.gateway.CreateOrder(ctx, gateway.OrderRequest{
		AmountMinor: types.ToMinor(amount),
		Currency:    types.Currency,
		Receipt:     string(id),
		Notes: map[string]string{
			"carry_request_id": string(r.ID),
			"consignment_id":   string(r.ConsignmentID),
		},
	})
	if err != nil {
		log.Printf("[payment] create order for request %s: %v", r.ID, err)
		return nil, errs.External("gateway", ErrGateway)
	}

	now := s.now()
	expires := now.Add(s.cfg.TTL)
	orderID := order.ID
	p := &Payment{
		ID:             id,
		Type:           TypeSenderPay,
		Status:         StatusPending,
		Amount:         amount,
		Currency:       types.Currency,
		CarryRequestID: r.ID,
		ConsignmentID:  r.ConsignmentID,
		TravelID:       r.TravelID,
		PayerID:        r.SenderID,
		GatewayOrderID: &orderID,
		ExpiresAt:      &expires,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	var winner *Payment
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.requests.Get(ctx, r.ID)
		if err != nil {
			return err
		}
		if current.Status != carryrequest.StatusAcceptedPendingPayment {
			return ErrNotPayable
		}
		err = s.repo.Create(ctx, p)
		if errors.Is(err, ErrOpenPaymentExists) {
			winner, err = s.repo.FindOpenForRequest(ctx, r.ID)
			if err == nil && winner == nil {
				return ErrOpenPaymentExists
			}
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if winner != nil {
		if winner.Status == StatusCompletedPendingWebhook {
			return nil, ErrAwaitingWebhook
		}
		return resumed(winner), nil
	}
	log.Printf("[payment] order %s created for request %s amount=%s", orderID, r.ID, amount)
	return &InitiateResult{Payment: p, OrderID: orderID, Amount: types.ToMinor(amount)}, nil
}

func resumed(p *Payment) *InitiateResult {
	return &InitiateResult{Payment: p, OrderID: p.OrderID(), Amount: types.ToMinor(p.Amount), Resumed: true}
}

// Capture records the client-side confirmation. It never completes a payment on its own:
// the captured webhook does that.
func (s *Service) Capture(ctx context.Context, cmd CaptureCommand) (*Payment, error) {
	if cmd.OrderID == "" || cmd.PaymentID == "" || cmd.Signature == "" {
		return nil, ErrInvalidInput
	}
	p, err := s.repo.GetByOrderID(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if p.PayerID != cmd.PayerID {
		return nil, ErrNotPayer
	}

	switch p.Status {
	case StatusCompleted:
		return p, nil
	case StatusCompletedPendingWebhook:
		if p.PaymentID() == cmd.PaymentID {
			return p, nil
		}
		return nil, ErrPaymentMismatch
	case StatusPending:
	default:
		return nil, ErrNotPending
	}

	if p.ExpiresAt != nil && !s.now().Before(*p.ExpiresAt) {
		if _, err := s.repo.UpdateStatus(ctx, p.ID, []Status{StatusPending}, StatusCancelled, nil); err != nil {
			return nil, err
		}
		return nil, ErrPaymentExpired
	}

	if !gateway.Verify(s.keySecret, gateway.CapturePayload(cmd.OrderID, cmd.PaymentID), cmd.Signature) {
		log.Printf("[payment] SECURITY: bad capture signature for order %s from %s", cmd.OrderID, cmd.PayerID)
		return nil, ErrInvalidSignature
	}

	paymentID := cmd.PaymentID
	ok, err := s.repo.UpdateStatus(ctx, p.ID, []Status{StatusPending}, StatusCompletedPendingWebhook, &paymentID)
	if err != nil {
		return nil, err
	}
	if !ok {
		// the webhook or a parallel capture got there first
		latest, err := s.repo.Get(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		switch {
		case latest.Status == StatusCompleted:
			return latest, nil
		case latest.Status == StatusCompletedPendingWebhook && latest.PaymentID() == cmd.PaymentID:
			return latest, nil
		case latest.Status == StatusCompletedPendingWebhook:
			return nil, ErrPaymentMismatch
		}
		return nil, ErrNotPending
	}
	p.Status = StatusCompletedPendingWebhook
	p.GatewayPaymentID = &paymentID
	return p, nil
}

// Get is restricted to the payer; admins pass isAdmin.
func (s *Service) Get(ctx context.Context, id, callerID types.ID, isAdmin bool) (*Payment, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && p.PayerID != callerID {
		return nil, ErrNotPayer
	}
	return p, nil
}

// CancelPendingForRequest and CancelPendingForConsignment serve the negotiation cascades.
func (s *Service) CancelPendingForRequest(ctx context.Context, requestID types.ID) (int64, error) {
	return s.repo.CancelPendingForRequest(ctx, requestID)
}

func (s *Service) CancelPendingForConsignment(ctx context.Context, consignmentID, exceptID types.ID) (int64, error) {
	return s.repo.CancelPendingForConsignment(ctx, consignmentID, exceptID)
}

func (s *Service) CancelExpired(ctx context.Context) (int64, error) {
	return s.repo.CancelExpired(ctx, s.now())
}

func (s *Service) RunExpiryMonitor(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.CancelExpired(ctx)
			if err != nil {
				log.Printf("[payment] expiry sweep: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("[payment] cancelled %d expired payments", n)
			}
		}
	}
}
