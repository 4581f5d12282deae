// README: Gateway webhook envelope: event names, entity payloads and handling results.
package webhook

import (
	"encoding/json"
	"strings"

	"carryhub/internal/errs"
)

const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventPayoutProcessed = "payout.processed"
	EventPayoutFailed    = "payout.failed"
	EventRefundCreated   = "refund.created"
	EventRefundProcessed = "refund.processed"
	EventRefundFailed    = "refund.failed"
)

// Result tells the HTTP layer which 200 body to send. Errors are returned separately.
type Result string

const (
	Applied   Result = "applied"
	Duplicate Result = "duplicate"
	Ignored   Result = "ignored"
)

type Envelope struct {
	Event   string  `json:"event"`
	Payload Payload `json:"payload"`
}

type Payload struct {
	Payment *entityWrapper[PaymentEntity] `json:"payment,omitempty"`
	Payout  *entityWrapper[PayoutEntity]  `json:"payout,omitempty"`
	Refund  *entityWrapper[RefundEntity]  `json:"refund,omitempty"`
}

type entityWrapper[T any] struct {
	Entity T `json:"entity"`
}

type PaymentEntity struct {
	ID               string            `json:"id"`
	OrderID          string            `json:"order_id"`
	Amount           int64             `json:"amount"`
	Status           string            `json:"status"`
	ErrorDescription string            `json:"error_description"`
	Notes            map[string]string `json:"notes"`
}

type PayoutEntity struct {
	ID            string            `json:"id"`
	FundAccountID string            `json:"fund_account_id"`
	Amount        int64             `json:"amount"`
	Status        string            `json:"status"`
	FailureReason string            `json:"failure_reason"`
	Notes         map[string]string `json:"notes"`
}

type RefundEntity struct {
	ID        string            `json:"id"`
	PaymentID string            `json:"payment_id"`
	Amount    int64             `json:"amount"`
	Status    string            `json:"status"`
	Notes     map[string]string `json:"notes"`
}

var (
	ErrInvalidSignature = errs.New(errs.ErrInvalidSignature, "invalid_signature", "webhook signature verification failed")
	ErrMalformed        = errs.New(errs.ErrValidation, "malformed_webhook", "webhook body is not a valid event")
)

func parse(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, ErrMalformed
	}
	if env.Event == "" {
		return nil, ErrMalformed
	}
	return &env, nil
}

func category(event string) string {
	prefix, _, _ := strings.Cut(event, ".")
	return prefix
}
