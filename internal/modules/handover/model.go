// README: Travel consignment (paid carry arrangement) and its OTP-gated custody flow.
package handover

import (
	"time"

	"github.com/shopspring/decimal"

	"carryhub/internal/errs"
	"carryhub/internal/types"
)

type Status string

const (
	StatusToHandover Status = "to_handover"
	StatusInTransit  Status = "in_transit"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

type TravelConsignment struct {
	ID                 types.ID
	ConsignmentID      types.ID
	TravelID           types.ID
	CarryRequestID     types.ID
	SenderID           types.ID
	TravellerID        types.ID
	SenderOTP          string
	ReceiverOTP        string
	Status             Status
	TravellerEarning   decimal.Decimal
	SenderToPay        decimal.Decimal
	PlatformCommission decimal.Decimal
	PickupTime         *time.Time
	DeliveryTime       *time.Time
	CancelledAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (tc *TravelConsignment) Active() bool {
	return tc.Status == StatusToHandover || tc.Status == StatusInTransit
}

type Event struct {
	ID                  int64
	TravelConsignmentID types.ID
	FromStatus          Status
	ToStatus            Status
	ActorType           string
	ActorID             *types.ID
	CreatedAt           time.Time
}

// AllowedTransitions represents the custody flow as code.
var AllowedTransitions = map[Status][]Status{
	StatusToHandover: {StatusInTransit, StatusCancelled},
	StatusInTransit:  {StatusDelivered, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// View is the read model handed to clients. OTP fields are nil unless the viewer may see them.
type View struct {
	ID                 types.ID        `json:"id"`
	ConsignmentID      types.ID        `json:"consignment_id"`
	TravelID           types.ID        `json:"travel_id"`
	CarryRequestID     types.ID        `json:"carry_request_id"`
	SenderID           types.ID        `json:"sender_id"`
	TravellerID        types.ID        `json:"traveller_id"`
	Status             Status          `json:"status"`
	SenderOTP          *string         `json:"sender_otp"`
	ReceiverOTP        *string         `json:"receiver_otp"`
	TravellerEarning   decimal.Decimal `json:"traveller_earning"`
	SenderToPay        decimal.Decimal `json:"sender_to_pay"`
	PlatformCommission decimal.Decimal `json:"platform_commission"`
	PickupTime         *time.Time      `json:"pickup_time,omitempty"`
	DeliveryTime       *time.Time      `json:"delivery_time,omitempty"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// ViewFor applies the OTP visibility rule. The sender always sees the pickup code and sees the
// receiver code once the parcel has left their hands. Nobody else sees either code.
func ViewFor(tc *TravelConsignment, viewerID types.ID) View {
	v := View{
		ID:                 tc.ID,
		ConsignmentID:      tc.ConsignmentID,
		TravelID:           tc.TravelID,
		CarryRequestID:     tc.CarryRequestID,
		SenderID:           tc.SenderID,
		TravellerID:        tc.TravellerID,
		Status:             tc.Status,
		TravellerEarning:   tc.TravellerEarning,
		SenderToPay:        tc.SenderToPay,
		PlatformCommission: tc.PlatformCommission,
		PickupTime:         tc.PickupTime,
		DeliveryTime:       tc.DeliveryTime,
		CancelledAt:        tc.CancelledAt,
		CreatedAt:          tc.CreatedAt,
	}
	if viewerID == "" || viewerID != tc.SenderID || viewerID == tc.TravellerID {
		return v
	}
	pickup := tc.SenderOTP
	v.SenderOTP = &pickup
	if tc.Status == StatusInTransit || tc.Status == StatusDelivered {
		receiver := tc.ReceiverOTP
		v.ReceiverOTP = &receiver
	}
	return v
}

var (
	ErrNotFound           = errs.New(errs.ErrNotFound, "travel_consignment_not_found", "travel consignment not found")
	ErrInvalidTransition  = errs.New(errs.ErrConflict, "invalid_transition", "handover transition not allowed from the current status")
	ErrInvalidOTP         = errs.New(errs.ErrValidation, "invalid_otp", "otp does not match")
	ErrNotTraveller       = errs.New(errs.ErrForbidden, "not_traveller", "only the assigned traveller may confirm handover")
	ErrNotVisible         = errs.New(errs.ErrForbidden, "not_party", "caller is not a party to this travel consignment")
	ErrAdminOnly          = errs.New(errs.ErrForbidden, "admin_only", "only admins may cancel a travel consignment")
	ErrAlreadyProvisioned = errs.New(errs.ErrConflict, "already_provisioned", "travel consignment already exists for this consignment and travel")
)
