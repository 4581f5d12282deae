// README: Carry request negotiator: symmetric create, accept into payment, reject, expiry.
package carryrequest

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"carryhub/internal/infra"
	"carryhub/internal/modules/consignment"
	"carryhub/internal/modules/travel"
	"carryhub/internal/notify"
	"carryhub/internal/types"
)

type Repository interface {
	Create(ctx context.Context, r *CarryRequest) error
	Get(ctx context.Context, id types.ID) (*CarryRequest, error)
	HasPending(ctx context.Context, consignmentID, travellerID, requestedBy types.ID) (bool, error)
	ListForConsignment(ctx context.Context, consignmentID types.ID) ([]CarryRequest, error)
	ListOpen(ctx context.Context, f Filter) ([]CarryRequest, error)
	UpdateStatus(ctx context.Context, id types.ID, from []Status, to Status, reason string) (bool, error)
	RejectSiblings(ctx context.Context, consignmentID, acceptedID types.ID, reason string) (int64, error)
	ListDeparted(ctx context.Context, now time.Time) ([]CarryRequest, error)
}

type ConsignmentStore interface {
	Get(ctx context.Context, id types.ID) (*consignment.Consignment, error)
	UpdateStatus(ctx context.Context, id types.ID, from []consignment.Status, to consignment.Status) (bool, error)
}

type TravelReader interface {
	Get(ctx context.Context, id types.ID) (*travel.Travel, error)
}

type PaymentCanceller interface {
	CancelPendingForRequest(ctx context.Context, requestID types.ID) (int64, error)
}

type Deps struct {
	Repo         Repository
	Tx           infra.TxRunner
	Consignments ConsignmentStore
	Travels      TravelReader
	Payments     PaymentCanceller
	Notifier     notify.Notifier
}

type Service struct {
	repo         Repository
	tx           infra.TxRunner
	consignments ConsignmentStore
	travels      TravelReader
	payments     PaymentCanceller
	notifier     notify.Notifier
	now          func() time.Time
}

func NewService(d Deps) *Service {
	return &Service{
		repo:         d.Repo,
		tx:           d.Tx,
		consignments: d.Consignments,
		travels:      d.Travels,
		payments:     d.Payments,
		notifier:     d.Notifier,
		now:          time.Now,
	}
}

type CreateBySenderCommand struct {
	SenderID      types.ID
	ConsignmentID types.ID
	TravelID      types.ID
}

type CreateByTravellerCommand struct {
	TravellerID   types.ID
	ConsignmentID types.ID
	TravelID      types.ID
}

type AcceptCommand struct {
	RequestID types.ID
	ActorID   types.ID
	IsAdmin   bool
}

type RejectCommand struct {
	RequestID types.ID
	ActorID   types.ID
	IsAdmin   bool
	Reason    string
}

func (s *Service) CreateBySender(ctx context.Context, cmd CreateBySenderCommand) (*CarryRequest, error) {
	c, t, err := s.load(ctx, cmd.ConsignmentID, cmd.TravelID)
	if err != nil {
		return nil, err
	}
	if c.SenderID != cmd.SenderID {
		return nil, ErrNotParty
	}
	return s.create(ctx, c, t, InitiatorSender, cmd.SenderID)
}

func (s *Service) CreateByTraveller(ctx context.Context, cmd CreateByTravellerCommand) (*CarryRequest, error) {
	c, t, err := s.load(ctx, cmd.ConsignmentID, cmd.TravelID)
	if err != nil {
		return nil, err
	}
	if t.TravellerID != cmd.TravellerID {
		return nil, ErrNotParty
	}
	return s.create(ctx, c, t, InitiatorTraveller, cmd.TravellerID)
}

func (s *Service) load(ctx context.Context, consignmentID, travelID types.ID) (*consignment.Consignment, *travel.Travel, error) {
	if consignmentID == "" || travelID == "" {
		return nil, nil, ErrNotFound
	}
	c, err := s.consignments.Get(ctx, consignmentID)
	if err != nil {
		return nil, nil, err
	}
	t, err := s.travels.Get(ctx, travelID)
	if err != nil {
		return nil, nil, err
	}
	return c, t, nil
}

func (s *Service) create(ctx context.Context, c *consignment.Consignment, t *travel.Travel, initiator Initiator, requester types.ID) (*CarryRequest, error) {
	if c.SenderID == t.TravellerID {
		return nil, ErrNotParty
	}
	if !c.Open() {
		return nil, ErrNotRequestable
	}
	if t.Status != travel.StatusUpcoming || !t.DepartureAt.After(s.now()) {
		return nil, ErrTravelUnavailable
	}
	if !sameState(t.From.State, c.From.State) || !sameState(t.To.State, c.To.State) {
		return nil, ErrRouteMismatch
	}
	quote, ok := c.Quotes[t.Mode]
	if !ok {
		return nil, ErrNoQuote
	}
	dup, err := s.repo.HasPending(ctx, c.ID, t.TravellerID, requester)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, ErrDuplicateRequest
	}

	now := s.now()
	r := &CarryRequest{
		ID:               types.NewID(),
		ConsignmentID:    c.ID,
		TravelID:         t.ID,
		SenderID:         c.SenderID,
		TravellerID:      t.TravellerID,
		RequestedBy:      requester,
		Initiator:        initiator,
		Mode:             t.Mode,
		SenderPayAmount:  quote.SenderPay,
		TravellerEarning: quote.TravelerEarn,
		Status:           StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, r); err != nil {
			return err
		}
		// already requested is fine; only the first request moves the consignment
		_, err := s.consignments.UpdateStatus(ctx, c.ID, []consignment.Status{consignment.StatusPublished}, consignment.StatusRequested)
		return err
	})
	if err != nil {
		return nil, err
	}

	notify.Send(ctx, s.notifier, notify.Event{
		Type:   notify.EventCarryRequestCreated,
		UserID: r.Counterparty(),
		Data:   map[string]string{"carry_request_id": string(r.ID), "consignment_id": string(c.ID)},
	})
	return r, nil
}

// Accept moves a pending request into accepted_pending_payment; the webhook finalises it.
func (s *Service) Accept(ctx context.Context, cmd AcceptCommand) (*CarryRequest, error) {
	r, err := s.repo.Get(ctx, cmd.RequestID)
	if err != nil {
		return nil, err
	}
	if !cmd.IsAdmin && cmd.ActorID != r.Counterparty() {
		return nil, ErrNotParty
	}
	if r.Status != StatusPending {
		return nil, ErrInvalidState
	}
	c, err := s.consignments.Get(ctx, r.ConsignmentID)
	if err != nil {
		return nil, err
	}
	if !c.Open() {
		return nil, ErrNotRequestable
	}
	ok, err := s.repo.UpdateStatus(ctx, r.ID, []Status{StatusPending}, StatusAcceptedPendingPayment, "")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidState
	}
	r.Status = StatusAcceptedPendingPayment

	notify.Send(ctx, s.notifier, notify.Event{
		Type:   notify.EventCarryRequestAccepted,
		UserID: r.RequestedBy,
		Data:   map[string]string{"carry_request_id": string(r.ID), "status": string(r.Status)},
	})
	return r, nil
}

// Reject is open to the counterparty, the requester (withdrawal) and admins.
func (s *Service) Reject(ctx context.Context, cmd RejectCommand) (*CarryRequest, error) {
	r, err := s.repo.Get(ctx, cmd.RequestID)
	if err != nil {
		return nil, err
	}
	if !cmd.IsAdmin && cmd.ActorID != r.SenderID && cmd.ActorID != r.TravellerID {
		return nil, ErrNotParty
	}
	if !r.Open() {
		return nil, ErrInvalidState
	}
	reason := cmd.Reason
	if reason == "" {
		reason = "rejected"
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.close(ctx, r, StatusRejected, reason)
	})
	if err != nil {
		return nil, err
	}

	other := r.SenderID
	if cmd.ActorID == r.SenderID {
		other = r.TravellerID
	}
	notify.Send(ctx, s.notifier, notify.Event{
		Type:   notify.EventCarryRequestRejected,
		UserID: other,
		Data:   map[string]string{"carry_request_id": string(r.ID), "reason": reason},
	})
	return r, nil
}

// close must run inside a transaction: the request and its open payments move together.
func (s *Service) close(ctx context.Context, r *CarryRequest, to Status, reason string) error {
	ok, err := s.repo.UpdateStatus(ctx, r.ID, OpenStatuses, to, reason)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidState
	}
	if _, err := s.payments.CancelPendingForRequest(ctx, r.ID); err != nil {
		return err
	}
	r.Status = to
	r.Reason = reason
	return nil
}

func (s *Service) Get(ctx context.Context, id, callerID types.ID, isAdmin bool) (*CarryRequest, error) {
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && callerID != r.SenderID && callerID != r.TravellerID {
		return nil, ErrNotParty
	}
	return r, nil
}

// ListForConsignment shows the sender every request; travellers only see their own.
func (s *Service) ListForConsignment(ctx context.Context, consignmentID, callerID types.ID, isAdmin bool) ([]CarryRequest, error) {
	c, err := s.consignments.Get(ctx, consignmentID)
	if err != nil {
		return nil, err
	}
	all, err := s.repo.ListForConsignment(ctx, consignmentID)
	if err != nil {
		return nil, err
	}
	if isAdmin || c.SenderID == callerID {
		return all, nil
	}
	out := make([]CarryRequest, 0, len(all))
	for _, r := range all {
		if r.TravellerID == callerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Service) RejectOpenForConsignment(ctx context.Context, consignmentID types.ID, reason string) (int64, error) {
	return s.closeOpen(ctx, Filter{ConsignmentID: consignmentID}, reason)
}

func (s *Service) RejectOpenForTravel(ctx context.Context, travelID types.ID, reason string) (int64, error) {
	return s.closeOpen(ctx, Filter{TravelID: travelID}, reason)
}

func (s *Service) closeOpen(ctx context.Context, f Filter, reason string) (int64, error) {
	var n int64
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		open, err := s.repo.ListOpen(ctx, f)
		if err != nil {
			return err
		}
		for i := range open {
			if err := s.close(ctx, &open[i], StatusRejected, reason); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

// ExpireDeparted expires open requests whose travel has left and returns how many moved.
func (s *Service) ExpireDeparted(ctx context.Context) (int, error) {
	departed, err := s.repo.ListDeparted(ctx, s.now())
	if err != nil {
		return 0, err
	}
	expired := 0
	for i := range departed {
		r := &departed[i]
		err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
			return s.close(ctx, r, StatusExpired, "travel_departed")
		})
		if errors.Is(err, ErrInvalidState) {
			continue // moved concurrently
		}
		if err != nil {
			return expired, err
		}
		expired++
	}
	return expired, nil
}

func (s *Service) RunExpiryMonitor(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.ExpireDeparted(ctx)
			if err != nil {
				log.Printf("[carryrequest] expiry sweep: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("[carryrequest] expired %d requests", n)
			}
		}
	}
}

func sameState(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
