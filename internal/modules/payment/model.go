// README: Payment intents (sender_pay and platform_commission) and refund sub-record.
package payment

import (
	"time"

	"github.com/shopspring/decimal"

	"carryhub/internal/errs"
	"carryhub/internal/types"
)

type Type string

const (
	TypeSenderPay          Type = "sender_pay"
	TypePlatformCommission Type = "platform_commission"
)

type Status string

const (
	StatusPending                 Status = "pending"
	StatusCompletedPendingWebhook Status = "completed_pending_webhook"
	StatusCompleted               Status = "completed"
	StatusFailed                  Status = "failed"
	StatusRefunded                Status = "refunded"
	StatusCancelled               Status = "cancelled"
)

// OpenStatuses are the non-terminal sender_pay statuses; at most one per carry request.
var OpenStatuses = []Status{StatusPending, StatusCompletedPendingWebhook}

type RefundStatus string

const (
	RefundCreated   RefundStatus = "created"
	RefundProcessed RefundStatus = "processed"
	RefundFailed    RefundStatus = "failed"
)

// Rank orders refund statuses so late events never move a refund backwards.
func (s RefundStatus) Rank() int {
	switch s {
	case RefundCreated:
		return 1
	case RefundProcessed, RefundFailed:
		return 2
	}
	return 0
}

type Refund struct {
	RefundID  string          `json:"refund_id"`
	Amount    decimal.Decimal `json:"amount"`
	Status    RefundStatus    `json:"status"`
	Reason    string          `json:"reason,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type Payment struct {
	ID               types.ID
	Type             Type
	Status           Status
	Amount           decimal.Decimal
	Currency         string
	CarryRequestID   types.ID
	ConsignmentID    types.ID
	TravelID         types.ID
	PayerID          types.ID
	GatewayOrderID   *string
	GatewayPaymentID *string
	ExpiresAt        *time.Time
	Refund           *Refund
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (p *Payment) Open() bool {
	return p.Status == StatusPending || p.Status == StatusCompletedPendingWebhook
}

func (p *Payment) OrderID() string {
	if p.GatewayOrderID == nil {
		return ""
	}
	return *p.GatewayOrderID
}

func (p *Payment) PaymentID() string {
	if p.GatewayPaymentID == nil {
		return ""
	}
	return *p.GatewayPaymentID
}

var (
	ErrNotFound          = errs.New(errs.ErrNotFound, "payment_not_found", "payment not found")
	ErrOpenPaymentExists = errs.New(errs.ErrConflict, "open_payment_exists", "an open payment already exists for this carry request")
	ErrNotPayable        = errs.New(errs.ErrConflict, "request_not_payable", "carry request is not awaiting payment")
	ErrAlreadyPaid       = errs.New(errs.ErrConflict, "consignment_already_paid", "consignment already has a confirmed payment")
	ErrAwaitingWebhook   = errs.New(errs.ErrConflict, "payment_awaiting_confirmation", "payment is already confirmed and awaiting the gateway")
	ErrPaymentExpired    = errs.New(errs.ErrConflict, "payment_expired", "payment window expired")
	ErrNotPending        = errs.New(errs.ErrConflict, "payment_not_pending", "payment can no longer be confirmed")
	ErrPaymentMismatch   = errs.New(errs.ErrConflict, "payment_id_mismatch", "payment already confirmed with a different gateway payment id")
	ErrInvalidSignature  = errs.New(errs.ErrInvalidSignature, "invalid_signature", "payment signature verification failed")
	ErrNotPayer          = errs.New(errs.ErrForbidden, "not_payer", "only the sender may pay for this request")
	ErrInvalidInput      = errs.New(errs.ErrValidation, "invalid_payment_input", "order id, payment id and signature are required")
	ErrGateway           = errs.New(errs.ErrExternal, "gateway_error", "payment gateway request failed")
)
