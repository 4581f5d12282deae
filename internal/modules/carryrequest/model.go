// README: Carry request (consignment + travel proposal) and its status flow.
package carryrequest

import (
	"time"

	"github.com/shopspring/decimal"

	"carryhub/internal/errs"
	"carryhub/internal/modules/fare"
	"carryhub/internal/types"
)

type Status string

const (
	StatusPending                Status = "pending"
	StatusAcceptedPendingPayment Status = "accepted_pending_payment"
	StatusAccepted               Status = "accepted"
	StatusRejected               Status = "rejected"
	StatusExpired                Status = "expired"
)

// OpenStatuses are the statuses that still compete for the consignment.
var OpenStatuses = []Status{StatusPending, StatusAcceptedPendingPayment}

type Initiator string

const (
	InitiatorSender    Initiator = "sender"
	InitiatorTraveller Initiator = "traveller"
)

type CarryRequest struct {
	ID               types.ID
	ConsignmentID    types.ID
	TravelID         types.ID
	SenderID         types.ID
	TravellerID      types.ID
	RequestedBy      types.ID
	Initiator        Initiator
	Mode             fare.Mode
	SenderPayAmount  decimal.Decimal
	TravellerEarning decimal.Decimal
	Status           Status
	Reason           string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Counterparty is the user who must answer the request.
func (r *CarryRequest) Counterparty() types.ID {
	if r.Initiator == InitiatorSender {
		return r.TravellerID
	}
	return r.SenderID
}

func (r *CarryRequest) Open() bool {
	return r.Status == StatusPending || r.Status == StatusAcceptedPendingPayment
}

// Filter selects open requests by consignment or travel.
type Filter struct {
	ConsignmentID types.ID
	TravelID      types.ID
}

var (
	ErrNotFound          = errs.New(errs.ErrNotFound, "carry_request_not_found", "carry request not found")
	ErrDuplicateRequest  = errs.New(errs.ErrConflict, "duplicate_request", "a pending request already exists for this consignment and traveller")
	ErrInvalidState      = errs.New(errs.ErrConflict, "invalid_request_state", "invalid carry request state transition")
	ErrRouteMismatch     = errs.New(errs.ErrValidation, "route_mismatch", "travel route does not match the consignment route")
	ErrNotRequestable    = errs.New(errs.ErrConflict, "consignment_not_requestable", "consignment is no longer open for requests")
	ErrTravelUnavailable = errs.New(errs.ErrConflict, "travel_unavailable", "travel is no longer upcoming")
	ErrNotParty          = errs.New(errs.ErrForbidden, "not_request_party", "caller is not allowed to act on this request")
	ErrNoQuote           = errs.New(errs.ErrInvariant, "quote_missing", "consignment has no quote for the travel mode")
)
