// README: Handover service: OTP-verified pickup and delivery, admin cancel, party views.
package handover

import (
	"context"
	"crypto/subtle"
	"log"
	"time"

	"carryhub/internal/errs"
	"carryhub/internal/infra"
	"carryhub/internal/modules/consignment"
	"carryhub/internal/modules/earning"
	"carryhub/internal/notify"
	"carryhub/internal/types"
)

type Repository interface {
	Create(ctx context.Context, tc *TravelConsignment) error
	Get(ctx context.Context, id types.ID) (*TravelConsignment, error)
	FindByPair(ctx context.Context, consignmentID, travelID types.ID) (*TravelConsignment, error)
	ListActiveForConsignment(ctx context.Context, consignmentID types.ID) ([]TravelConsignment, error)
	UpdateStatus(ctx context.Context, id types.ID, from []Status, to Status, at time.Time) (bool, error)
	AppendEvent(ctx context.Context, e *Event) error
}

type ConsignmentStatusWriter interface {
	UpdateStatus(ctx context.Context, id types.ID, from []consignment.Status, to consignment.Status) (bool, error)
}

type Deps struct {
	Repo         Repository
	Tx           infra.TxRunner
	Consignments ConsignmentStatusWriter
	Earnings     earning.Repository
	Notifier     notify.Notifier
}

type Service struct {
	repo         Repository
	tx           infra.TxRunner
	consignments ConsignmentStatusWriter
	earnings     earning.Repository
	notifier     notify.Notifier
	now          func() time.Time
}

func NewService(d Deps) *Service {
	return &Service{
		repo:         d.Repo,
		tx:           d.Tx,
		consignments: d.Consignments,
		earnings:     d.Earnings,
		notifier:     d.Notifier,
		now:          time.Now,
	}
}

type VerifyCommand struct {
	TravelConsignmentID types.ID
	ActorID             types.ID
	IsAdmin             bool
	OTP                 string
}

type CancelCommand struct {
	TravelConsignmentID types.ID
	ActorID             types.ID
	IsAdmin             bool
}

// VerifyPickup moves to_handover -> in_transit on the sender's code and opens the traveller's earning.
func (s *Service) VerifyPickup(ctx context.Context, cmd VerifyCommand) (*TravelConsignment, error) {
	var out *TravelConsignment
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		tc, err := s.authorize(ctx, cmd)
		if err != nil {
			return err
		}
		if tc.Status != StatusToHandover || !CanTransition(tc.Status, StatusInTransit) {
			return ErrInvalidTransition
		}
		if !otpMatches(tc.SenderOTP, cmd.OTP) {
			return ErrInvalidOTP
		}
		now := s.now()
		if err := s.advance(ctx, tc, StatusInTransit, now, cmd); err != nil {
			return err
		}
		ok, err := s.consignments.UpdateStatus(ctx, tc.ConsignmentID, []consignment.Status{consignment.StatusAssigned}, consignment.StatusInTransit)
		if err != nil {
			return err
		}
		if !ok {
			return errs.Invariant("consignment %s not assigned at pickup of %s", tc.ConsignmentID, tc.ID)
		}
		if err := s.earnings.Create(ctx, &earning.Earning{
			ID:                  types.NewID(),
			UserID:              tc.TravellerID,
			ConsignmentID:       tc.ConsignmentID,
			TravelConsignmentID: tc.ID,
			Amount:              tc.TravellerEarning,
			Status:              earning.StatusPending,
			CreatedAt:           now,
			UpdatedAt:           now,
		}); err != nil {
			return err
		}
		tc.Status = StatusInTransit
		tc.PickupTime = &now
		out = tc
		return nil
	})
	if err != nil {
		return nil, err
	}

	notify.Send(ctx, s.notifier, notify.Event{
		Type:   notify.EventHandoverPickedUp,
		UserID: out.SenderID,
		Data:   map[string]string{"travel_consignment_id": string(out.ID), "consignment_id": string(out.ConsignmentID)},
	})
	return out, nil
}

// VerifyDelivery moves in_transit -> delivered on the receiver's code. The earning becomes payable.
func (s *Service) VerifyDelivery(ctx context.Context, cmd VerifyCommand) (*TravelConsignment, error) {
	var out *TravelConsignment
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		tc, err := s.authorize(ctx, cmd)
		if err != nil {
			return err
		}
		if tc.Status != StatusInTransit {
			return ErrInvalidTransition
		}
		if !otpMatches(tc.ReceiverOTP, cmd.OTP) {
			return ErrInvalidOTP
		}
		now := s.now()
		if err := s.advance(ctx, tc, StatusDelivered, now, cmd); err != nil {
			return err
		}
		ok, err := s.consignments.UpdateStatus(ctx, tc.ConsignmentID, []consignment.Status{consignment.StatusInTransit}, consignment.StatusDelivered)
		if err != nil {
			return err
		}
		if !ok {
			return errs.Invariant("consignment %s not in transit at delivery of %s", tc.ConsignmentID, tc.ID)
		}
		moved, err := s.earnings.Transition(ctx, tc.ID, earning.StatusPending, earning.StatusCompleted)
		if err != nil {
			return err
		}
		if !moved {
			return errs.Invariant("no pending earning for delivered travel consignment %s", tc.ID)
		}
		tc.Status = StatusDelivered
		tc.DeliveryTime = &now
		out = tc
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, uid := range []types.ID{out.SenderID, out.TravellerID} {
		notify.Send(ctx, s.notifier, notify.Event{
			Type:   notify.EventHandoverDelivered,
			UserID: uid,
			Data:   map[string]string{"travel_consignment_id": string(out.ID), "consignment_id": string(out.ConsignmentID)},
		})
	}
	return out, nil
}

// Cancel is admin only. The consignment follows the travel consignment into cancelled.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) error {
	if !cmd.IsAdmin {
		return ErrAdminOnly
	}
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		tc, err := s.repo.Get(ctx, cmd.TravelConsignmentID)
		if err != nil {
			return err
		}
		if err := s.cancel(ctx, tc, "admin", &cmd.ActorID); err != nil {
			return err
		}
		_, err = s.consignments.UpdateStatus(ctx, tc.ConsignmentID,
			[]consignment.Status{consignment.StatusAssigned, consignment.StatusInTransit}, consignment.StatusCancelled)
		return err
	})
}

// CancelActiveForConsignment serves the consignment cancel cascade; the caller owns the consignment row.
func (s *Service) CancelActiveForConsignment(ctx context.Context, consignmentID types.ID) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		active, err := s.repo.ListActiveForConsignment(ctx, consignmentID)
		if err != nil {
			return err
		}
		for i := range active {
			if err := s.cancel(ctx, &active[i], "system", nil); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) cancel(ctx context.Context, tc *TravelConsignment, actorType string, actorID *types.ID) error {
	if !CanTransition(tc.Status, StatusCancelled) {
		return ErrInvalidTransition
	}
	from := tc.Status
	now := s.now()
	ok, err := s.repo.UpdateStatus(ctx, tc.ID, []Status{from}, StatusCancelled, now)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidTransition
	}
	if _, err := s.earnings.Transition(ctx, tc.ID, earning.StatusPending, earning.StatusFailed); err != nil {
		return err
	}
	if err := s.repo.AppendEvent(ctx, &Event{
		TravelConsignmentID: tc.ID,
		FromStatus:          from,
		ToStatus:            StatusCancelled,
		ActorType:           actorType,
		ActorID:             actorID,
		CreatedAt:           now,
	}); err != nil {
		return err
	}
	log.Printf("[handover] %s cancelled from %s", tc.ID, from)
	tc.Status = StatusCancelled
	tc.CancelledAt = &now
	return nil
}

func (s *Service) authorize(ctx context.Context, cmd VerifyCommand) (*TravelConsignment, error) {
	tc, err := s.repo.Get(ctx, cmd.TravelConsignmentID)
	if err != nil {
		return nil, err
	}
	if !cmd.IsAdmin && cmd.ActorID != tc.TravellerID {
		return nil, ErrNotTraveller
	}
	return tc, nil
}

func (s *Service) advance(ctx context.Context, tc *TravelConsignment, to Status, at time.Time, cmd VerifyCommand) error {
	from := tc.Status
	ok, err := s.repo.UpdateStatus(ctx, tc.ID, []Status{from}, to, at)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidTransition
	}
	actorType := "traveller"
	if cmd.IsAdmin {
		actorType = "admin"
	}
	actor := cmd.ActorID
	return s.repo.AppendEvent(ctx, &Event{
		TravelConsignmentID: tc.ID,
		FromStatus:          from,
		ToStatus:            to,
		ActorType:           actorType,
		ActorID:             &actor,
		CreatedAt:           at,
	})
}

// Get returns the caller's view. Only the two parties and admins may read it.
func (s *Service) Get(ctx context.Context, id, callerID types.ID, isAdmin bool) (View, error) {
	tc, err := s.repo.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	if !isAdmin && callerID != tc.SenderID && callerID != tc.TravellerID {
		return View{}, ErrNotVisible
	}
	if isAdmin {
		return ViewFor(tc, ""), nil
	}
	return ViewFor(tc, callerID), nil
}

// otpMatches is exact equality; a padded or reformatted code does not match.
func otpMatches(stored, given string) bool {
	if stored == "" || given == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}
