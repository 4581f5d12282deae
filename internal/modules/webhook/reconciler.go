// README: Webhook reconciler: verifies gateway signatures and dispatches events to their handlers.
package webhook

import (
	"context"
	"log"
	"time"

	"carryhub/internal/gateway"
	"carryhub/internal/infra"
	"carryhub/internal/modules/carryrequest"
	"carryhub/internal/modules/consignment"
	"carryhub/internal/modules/fare"
	"carryhub/internal/modules/handover"
	"carryhub/internal/modules/payment"
	"carryhub/internal/modules/payout"
	"carryhub/internal/modules/user"
	"carryhub/internal/notify"
	"carryhub/internal/otp"
	"carryhub/internal/types"
)

type RequestStore interface {
	Get(ctx context.Context, id types.ID) (*carryrequest.CarryRequest, error)
	UpdateStatus(ctx context.Context, id types.ID, from []carryrequest.Status, to carryrequest.Status, reason string) (bool, error)
	RejectSiblings(ctx context.Context, consignmentID, acceptedID types.ID, reason string) (int64, error)
}

type ConsignmentStore interface {
	Get(ctx context.Context, id types.ID) (*consignment.Consignment, error)
	Assign(ctx context.Context, id, travellerID types.ID, from []consignment.Status, at time.Time) (bool, error)
}

type HandoverStore interface {
	FindByPair(ctx context.Context, consignmentID, travelID types.ID) (*handover.TravelConsignment, error)
	Create(ctx context.Context, tc *handover.TravelConsignment) error
}

type UserReader interface {
	Get(ctx context.Context, id types.ID) (*user.User, error)
}

type FareConfig interface {
	Config(ctx context.Context) (*fare.Config, error)
}

type PayoutStore interface {
	FindAccountByFundAccount(ctx context.Context, fundAccountID string) (*payout.Account, error)
	LockByGatewayID(ctx context.Context, gatewayPayoutID string) (*payout.Payout, error)
	Create(ctx context.Context, p *payout.Payout) error
	UpdateStatus(ctx context.Context, id types.ID, from []payout.Status, to payout.Status, reason string) (bool, error)
}

type EarningMarker interface {
	MarkWithdrawn(ctx context.Context, userID, consignmentID types.ID, at time.Time) (int64, error)
	ReleasePayout(ctx context.Context, userID, consignmentID types.ID) (int64, error)
}

type OTPIssuer interface {
	Generate() (string, error)
	Deliver(ctx context.Context, purpose otp.Purpose, phone, code string) error
}

type Deps struct {
	Tx           infra.TxRunner
	Payments     payment.Repository
	Requests     RequestStore
	Consignments ConsignmentStore
	Handovers    HandoverStore
	Users        UserReader
	Fares        FareConfig
	Payouts      PayoutStore
	Earnings     EarningMarker
	OTP          OTPIssuer
	Notifier     notify.Notifier
	Secret       string
}

type Reconciler struct {
	tx           infra.TxRunner
	payments     payment.Repository
	requests     RequestStore
	consignments ConsignmentStore
	handovers    HandoverStore
	users        UserReader
	fares        FareConfig
	payouts      PayoutStore
	earnings     EarningMarker
	otp          OTPIssuer
	notifier     notify.Notifier
	secret       string
	now          func() time.Time
}

func NewReconciler(d Deps) *Reconciler {
	return &Reconciler{
		tx:           d.Tx,
		payments:     d.Payments,
		requests:     d.Requests,
		consignments: d.Consignments,
		handovers:    d.Handovers,
		users:        d.Users,
		fares:        d.Fares,
		payouts:      d.Payouts,
		earnings:     d.Earnings,
		otp:          d.OTP,
		notifier:     d.Notifier,
		secret:       d.Secret,
		now:          time.Now,
	}
}

// Handle verifies the raw body against the signature header and applies the event.
// Returned errors are retryable unless they wrap a validation or signature kind.
func (r *Reconciler) Handle(ctx context.Context, body []byte, signature string) (Result, error) {
	if !gateway.Verify(r.secret, body, signature) {
		log.Printf("[webhook] SECURITY: signature mismatch (%d bytes)", len(body))
		return "", ErrInvalidSignature
	}
	env, err := parse(body)
	if err != nil {
		return "", err
	}

	var res Result
	switch category(env.Event) {
	case "payment":
		res, err = r.handlePayment(ctx, env)
	case "payout":
		res, err = r.handlePayout(ctx, env)
	case "refund":
		res, err = r.handleRefund(ctx, env)
	default:
		res = Ignored
	}
	if err != nil {
		log.Printf("[webhook] %s failed: %v", env.Event, err)
		return "", err
	}
	log.Printf("[webhook] %s -> %s", env.Event, res)
	return res, nil
}

func (r *Reconciler) handlePayment(ctx context.Context, env *Envelope) (Result, error) {
	if env.Payload.Payment == nil || env.Payload.Payment.Entity.OrderID == "" {
		return "", ErrMalformed
	}
	ent := env.Payload.Payment.Entity
	switch env.Event {
	case EventPaymentCaptured:
		return r.paymentCaptured(ctx, ent)
	case EventPaymentFailed:
		return r.paymentFailed(ctx, ent)
	}
	return Ignored, nil
}

func (r *Reconciler) handlePayout(ctx context.Context, env *Envelope) (Result, error) {
	if env.Payload.Payout == nil || env.Payload.Payout.Entity.ID == "" {
		return "", ErrMalformed
	}
	ent := env.Payload.Payout.Entity
	switch env.Event {
	case EventPayoutProcessed:
		return r.payoutProcessed(ctx, ent)
	case EventPayoutFailed:
		return r.payoutFailed(ctx, ent)
	}
	return Ignored, nil
}

func (r *Reconciler) handleRefund(ctx context.Context, env *Envelope) (Result, error) {
	if env.Payload.Refund == nil || env.Payload.Refund.Entity.PaymentID == "" {
		return "", ErrMalformed
	}
	switch env.Event {
	case EventRefundCreated, EventRefundProcessed, EventRefundFailed:
		return r.refundUpdated(ctx, env.Event, env.Payload.Refund.Entity)
	}
	return Ignored, nil
}
