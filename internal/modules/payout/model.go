// README: Payout accounts (user -> gateway fund account) and payouts reconciled by webhook.
package payout

import (
	"time"

	"github.com/shopspring/decimal"

	"carryhub/internal/errs"
	"carryhub/internal/types"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type Account struct {
	UserID        types.ID
	FundAccountID string
	IFSC          string
	AccountLast4  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Payout struct {
	ID              types.ID
	UserID          types.ID
	ConsignmentID   *types.ID
	GatewayPayoutID string
	FundAccountID   string
	Amount          decimal.Decimal
	Status          Status
	FailureReason   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

var (
	ErrNotFound          = errs.New(errs.ErrNotFound, "payout_not_found", "payout not found")
	ErrAccountNotFound   = errs.New(errs.ErrNotFound, "payout_account_not_found", "user has no payout account")
	ErrInvalidAccount    = errs.New(errs.ErrValidation, "invalid_payout_account", "ifsc and account number are required")
	ErrNothingToWithdraw = errs.New(errs.ErrConflict, "nothing_to_withdraw", "no completed earning awaiting payout for this consignment")
	ErrPayoutInProgress  = errs.New(errs.ErrConflict, "payout_in_progress", "a payout is already pending for this consignment")
	ErrAlreadyExists     = errs.New(errs.ErrConflict, "payout_exists", "payout already recorded for this gateway id")
	ErrAdminOnly         = errs.New(errs.ErrForbidden, "admin_only", "only admins may trigger payouts")
	ErrGateway           = errs.New(errs.ErrExternal, "gateway_error", "payment gateway request failed")
)
