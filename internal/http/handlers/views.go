// README: JSON shapes returned by the API. Module models stay free of transport tags.
package handlers

import (
	"time"

	"github.com/shopspring/decimal"

	"carryhub/internal/modules/carryrequest"
	"carryhub/internal/modules/consignment"
	"carryhub/internal/modules/fare"
	"carryhub/internal/modules/payment"
	"carryhub/internal/modules/payout"
	"carryhub/internal/modules/travel"
	"carryhub/internal/modules/user"
	"carryhub/internal/types"
)

type addressJSON struct {
	Line    string  `json:"line,omitempty"`
	City    string  `json:"city"`
	State   string  `json:"state"`
	Pincode string  `json:"pincode,omitempty"`
	Lat     float64 `json:"lat,omitempty"`
	Lng     float64 `json:"lng,omitempty"`
}

func (a addressJSON) model() consignment.Address {
	return consignment.Address{
		Line:    a.Line,
		City:    a.City,
		State:   a.State,
		Pincode: a.Pincode,
		Point:   types.Point{Lat: a.Lat, Lng: a.Lng},
	}
}

func addressView(a consignment.Address) addressJSON {
	return addressJSON{Line: a.Line, City: a.City, State: a.State, Pincode: a.Pincode, Lat: a.Point.Lat, Lng: a.Point.Lng}
}

type consignmentView struct {
	ID              types.ID                 `json:"id"`
	SenderID        types.ID                 `json:"sender_id"`
	TravellerID     *types.ID                `json:"traveller_id,omitempty"`
	From            addressJSON              `json:"from"`
	To              addressJSON              `json:"to"`
	ReceiverName    string                   `json:"receiver_name"`
	ReceiverPhone   string                   `json:"receiver_phone"`
	Description     string                   `json:"description,omitempty"`
	WeightKg        float64                  `json:"weight_kg"`
	EffectiveWeight float64                  `json:"effective_weight"`
	DistanceKm      float64                  `json:"distance_km"`
	Quotes          map[fare.Mode]fare.Quote `json:"quotes"`
	Status          consignment.Status       `json:"status"`
	AssignedAt      *time.Time               `json:"assigned_at,omitempty"`
	CancelledAt     *time.Time               `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time                `json:"created_at"`
}

func newConsignmentView(c *consignment.Consignment) consignmentView {
	return consignmentView{
		ID:              c.ID,
		SenderID:        c.SenderID,
		TravellerID:     c.TravellerID,
		From:            addressView(c.From),
		To:              addressView(c.To),
		ReceiverName:    c.Receiver.Name,
		ReceiverPhone:   c.Receiver.Phone,
		Description:     c.Description,
		WeightKg:        c.WeightKg,
		EffectiveWeight: c.EffectiveWeight,
		DistanceKm:      c.DistanceKm,
		Quotes:          c.Quotes,
		Status:          c.Status,
		AssignedAt:      c.AssignedAt,
		CancelledAt:     c.CancelledAt,
		CreatedAt:       c.CreatedAt,
	}
}

type placeJSON struct {
	City  string `json:"city"`
	State string `json:"state"`
}

type travelView struct {
	ID          types.ID      `json:"id"`
	TravellerID types.ID      `json:"traveller_id"`
	From        placeJSON     `json:"from"`
	To          placeJSON     `json:"to"`
	DepartureAt time.Time     `json:"departure_at"`
	ArrivalAt   *time.Time    `json:"arrival_at,omitempty"`
	Mode        fare.Mode     `json:"mode"`
	Status      travel.Status `json:"status"`
}

func newTravelView(t *travel.Travel) travelView {
	v := travelView{
		ID:          t.ID,
		TravellerID: t.TravellerID,
		From:        placeJSON(t.From),
		To:          placeJSON(t.To),
		DepartureAt: t.DepartureAt,
		Mode:        t.Mode,
		Status:      t.Status,
	}
	if !t.ArrivalAt.IsZero() {
		at := t.ArrivalAt
		v.ArrivalAt = &at
	}
	return v
}

type carryRequestView struct {
	ID               types.ID               `json:"id"`
	ConsignmentID    types.ID               `json:"consignment_id"`
	TravelID         types.ID               `json:"travel_id"`
	SenderID         types.ID               `json:"sender_id"`
	TravellerID      types.ID               `json:"traveller_id"`
	Initiator        carryrequest.Initiator `json:"initiator"`
	Mode             fare.Mode              `json:"mode"`
	SenderPayAmount  decimal.Decimal        `json:"sender_pay_amount"`
	TravellerEarning decimal.Decimal        `json:"traveller_earning"`
	Status           carryrequest.Status    `json:"status"`
	Reason           string                 `json:"reason,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
}

func newCarryRequestView(r *carryrequest.CarryRequest) carryRequestView {
	return carryRequestView{
		ID:               r.ID,
		ConsignmentID:    r.ConsignmentID,
		TravelID:         r.TravelID,
		SenderID:         r.SenderID,
		TravellerID:      r.TravellerID,
		Initiator:        r.Initiator,
		Mode:             r.Mode,
		SenderPayAmount:  r.SenderPayAmount,
		TravellerEarning: r.TravellerEarning,
		Status:           r.Status,
		Reason:           r.Reason,
		CreatedAt:        r.CreatedAt,
	}
}

type paymentView struct {
	ID               types.ID        `json:"id"`
	Type             payment.Type    `json:"type"`
	Status           payment.Status  `json:"status"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	CarryRequestID   types.ID        `json:"carry_request_id"`
	ConsignmentID    types.ID        `json:"consignment_id"`
	GatewayOrderID   *string         `json:"gateway_order_id,omitempty"`
	GatewayPaymentID *string         `json:"gateway_payment_id,omitempty"`
	ExpiresAt        *time.Time      `json:"expires_at,omitempty"`
	Refund           *payment.Refund `json:"refund,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

func newPaymentView(p *payment.Payment) paymentView {
	return paymentView{
		ID:               p.ID,
		Type:             p.Type,
		Status:           p.Status,
		Amount:           p.Amount,
		Currency:         p.Currency,
		CarryRequestID:   p.CarryRequestID,
		ConsignmentID:    p.ConsignmentID,
		GatewayOrderID:   p.GatewayOrderID,
		GatewayPaymentID: p.GatewayPaymentID,
		ExpiresAt:        p.ExpiresAt,
		Refund:           p.Refund,
		CreatedAt:        p.CreatedAt,
	}
}

type payoutView struct {
	ID              types.ID        `json:"id"`
	UserID          types.ID        `json:"user_id"`
	ConsignmentID   *types.ID       `json:"consignment_id,omitempty"`
	GatewayPayoutID string          `json:"gateway_payout_id"`
	Amount          decimal.Decimal `json:"amount"`
	Status          payout.Status   `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
}

func newPayoutView(p *payout.Payout) payoutView {
	return payoutView{
		ID:              p.ID,
		UserID:          p.UserID,
		ConsignmentID:   p.ConsignmentID,
		GatewayPayoutID: p.GatewayPayoutID,
		Amount:          p.Amount,
		Status:          p.Status,
		CreatedAt:       p.CreatedAt,
	}
}

type userView struct {
	ID    types.ID   `json:"id"`
	Name  string     `json:"name"`
	Phone string     `json:"phone"`
	Email *string    `json:"email,omitempty"`
	Role  types.Role `json:"role"`
}

func newUserView(u *user.User) userView {
	return userView{ID: u.ID, Name: u.Name, Phone: u.Phone, Email: u.Email, Role: u.Role}
}
