// README: Travel service: create, get and cancel (rejecting the trip's open carry requests).
package travel

import (
	"context"
	"time"

	"carryhub/internal/infra"
	"carryhub/internal/modules/fare"
	"carryhub/internal/types"
)

type Repository interface {
	Create(ctx context.Context, t *Travel) error
	Get(ctx context.Context, id types.ID) (*Travel, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to Status) (bool, error)
}

type RequestRejecter interface {
	RejectOpenForTravel(ctx context.Context, travelID types.ID, reason string) (int64, error)
}

type Service struct {
	repo     Repository
	tx       infra.TxRunner
	requests RequestRejecter
}

func NewService(repo Repository, tx infra.TxRunner, requests RequestRejecter) *Service {
	return &Service{repo: repo, tx: tx, requests: requests}
}

type CreateCommand struct {
	TravellerID types.ID
	From        Place
	To          Place
	DepartureAt time.Time
	ArrivalAt   time.Time
	Mode        fare.Mode
}

type CancelCommand struct {
	TravelID types.ID
	ActorID  types.ID
	IsAdmin  bool
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Travel, error) {
	if cmd.TravellerID == "" || cmd.From.State == "" || cmd.To.State == "" || !cmd.Mode.Valid() {
		return nil, ErrInvalidInput
	}
	if cmd.DepartureAt.IsZero() || cmd.DepartureAt.Before(time.Now()) {
		return nil, ErrInvalidInput
	}
	if !cmd.ArrivalAt.IsZero() && cmd.ArrivalAt.Before(cmd.DepartureAt) {
		return nil, ErrInvalidInput
	}
	now := time.Now()
	t := &Travel{
		ID:          types.NewID(),
		TravellerID: cmd.TravellerID,
		From:        cmd.From,
		To:          cmd.To,
		DepartureAt: cmd.DepartureAt,
		ArrivalAt:   cmd.ArrivalAt,
		Mode:        cmd.Mode,
		Status:      StatusUpcoming,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Travel, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		t, err := s.repo.Get(ctx, cmd.TravelID)
		if err != nil {
			return err
		}
		if !cmd.IsAdmin && t.TravellerID != cmd.ActorID {
			return ErrNotOwner
		}
		if t.Status != StatusUpcoming {
			return ErrInvalidState
		}
		ok, err := s.repo.UpdateStatus(ctx, t.ID, StatusUpcoming, StatusCancelled)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidState
		}
		_, err = s.requests.RejectOpenForTravel(ctx, t.ID, "travel_cancelled")
		return err
	})
}
