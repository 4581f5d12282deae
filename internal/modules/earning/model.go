// README: Traveller earnings; one per travel consignment, created at pickup.
package earning

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"carryhub/internal/errs"
	"carryhub/internal/types"
)

type Status string

const (
	StatusPending       Status = "pending"
	StatusPayoutPending Status = "payout_pending"
	StatusCompleted     Status = "completed"
	StatusFailed        Status = "failed"
)

type Earning struct {
	ID                  types.ID
	UserID              types.ID
	ConsignmentID       types.ID
	TravelConsignmentID types.ID
	Amount              decimal.Decimal
	Status              Status
	IsWithdrawn         bool
	WithdrawnAt         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

var ErrAlreadyExists = errs.New(errs.ErrConflict, "earning_exists", "earning already recorded for this travel consignment")

// Repository is shared by the handover, payout and webhook modules.
type Repository interface {
	Create(ctx context.Context, e *Earning) error
	ListForTravelConsignment(ctx context.Context, tcID types.ID) ([]Earning, error)
	// Transition moves the travel consignment's earning between statuses; false when none matched.
	Transition(ctx context.Context, tcID types.ID, from, to Status) (bool, error)
	// ClaimForPayout moves the oldest withdrawable earning of (user, consignment) from completed to
	// payout_pending and returns it. Nil when nothing is left to claim.
	ClaimForPayout(ctx context.Context, userID, consignmentID types.ID) (*Earning, error)
	// ReleasePayout moves payout_pending earnings of (user, consignment) back to completed.
	ReleasePayout(ctx context.Context, userID, consignmentID types.ID) (int64, error)
	HasPayoutPending(ctx context.Context, userID, consignmentID types.ID) (bool, error)
	// MarkWithdrawn settles the completed or payout_pending, unwithdrawn earnings of (user, consignment)
	// and returns the count.
	MarkWithdrawn(ctx context.Context, userID, consignmentID types.ID, at time.Time) (int64, error)
}
