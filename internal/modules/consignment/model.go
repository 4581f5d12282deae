// README: Consignment aggregate, status flow and per-mode quotes.
package consignment

import (
	"time"

	"carryhub/internal/errs"
	"carryhub/internal/modules/fare"
	"carryhub/internal/types"
)

type Status string

const (
	StatusPublished Status = "published"
	StatusRequested Status = "requested"
	StatusAssigned  Status = "assigned"
	StatusInTransit Status = "in_transit"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// Address is the snapshot captured at submission; lookup and geocoding happen client side.
type Address struct {
	Line    string
	City    string
	State   string
	Pincode string
	Point   types.Point
}

func (a Address) Place() string {
	return a.City + ", " + a.State
}

type Receiver struct {
	Name  string
	Phone string
}

type Consignment struct {
	ID              types.ID
	SenderID        types.ID
	TravellerID     *types.ID
	From            Address
	To              Address
	Receiver        Receiver
	Description     string
	WeightKg        float64
	LengthCm        float64
	WidthCm         float64
	HeightCm        float64
	EffectiveWeight float64
	DistanceKm      float64
	Quotes          map[fare.Mode]fare.Quote
	Status          Status
	AssignedAt      *time.Time
	CancelledAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AllowedTransitions is the forward flow; cancelled is reachable from any non-terminal state.
var AllowedTransitions = map[Status][]Status{
	StatusPublished: {StatusRequested, StatusAssigned, StatusCancelled},
	StatusRequested: {StatusAssigned, StatusCancelled},
	StatusAssigned:  {StatusInTransit, StatusCancelled},
	StatusInTransit: {StatusDelivered, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Open reports whether travellers may still request the consignment.
func (c *Consignment) Open() bool {
	return c.Status == StatusPublished || c.Status == StatusRequested
}

func (c *Consignment) Terminal() bool {
	return c.Status == StatusDelivered || c.Status == StatusCancelled
}

var (
	ErrNotFound        = errs.New(errs.ErrNotFound, "consignment_not_found", "consignment not found")
	ErrInvalidInput    = errs.New(errs.ErrValidation, "invalid_consignment", "consignment details are incomplete")
	ErrInvalidState    = errs.New(errs.ErrConflict, "invalid_consignment_state", "invalid consignment state transition")
	ErrStateConflict   = errs.New(errs.ErrConflict, "consignment_state_conflict", "consignment state changed concurrently")
	ErrDistanceFailure = errs.New(errs.ErrExternal, "distance_lookup_failed", "distance lookup failed")
)
