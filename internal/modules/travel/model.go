// README: Travel (a traveller's planned trip) and its status flow.
package travel

import (
	"time"

	"carryhub/internal/errs"
	"carryhub/internal/modules/fare"
	"carryhub/internal/types"
)

type Status string

const (
	StatusUpcoming  Status = "upcoming"
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

type Place struct {
	City  string
	State string
}

type Travel struct {
	ID          types.ID
	TravellerID types.ID
	From        Place
	To          Place
	DepartureAt time.Time
	ArrivalAt   time.Time
	Mode        fare.Mode
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

var (
	ErrNotFound     = errs.New(errs.ErrNotFound, "travel_not_found", "travel not found")
	ErrInvalidInput = errs.New(errs.ErrValidation, "invalid_travel", "travel details are incomplete")
	ErrInvalidState = errs.New(errs.ErrConflict, "invalid_travel_state", "travel can no longer be changed")
	ErrNotOwner     = errs.New(errs.ErrForbidden, "not_travel_owner", "only the traveller may change this travel")
)
