// README: Consignment service: submission with quotes, reads, and cancellation cascade.
package consignment

import (
	"context"
	"log"
	"strings"
	"time"

	"carryhub/internal/errs"
	"carryhub/internal/infra"
	"carryhub/internal/maps"
	"carryhub/internal/modules/fare"
	"carryhub/internal/types"
)

type Repository interface {
	Create(ctx context.Context, c *Consignment) error
	Get(ctx context.Context, id types.ID) (*Consignment, error)
	UpdateStatus(ctx context.Context, id types.ID, from []Status, to Status) (bool, error)
	Assign(ctx context.Context, id, travellerID types.ID, from []Status, at time.Time) (bool, error)
}

type DistanceLookup interface {
	GetDistance(ctx context.Context, origin, destination string) (maps.Distance, error)
}

type Quoter interface {
	Quotes(ctx context.Context, weightKg, distanceKm float64) (map[fare.Mode]fare.Quote, error)
}

// Cascade targets, wired from the carry request, payment and handover modules.
type RequestRejecter interface {
	RejectOpenForConsignment(ctx context.Context, consignmentID types.ID, reason string) (int64, error)
}

type PaymentCanceller interface {
	CancelPendingForConsignment(ctx context.Context, consignmentID, exceptID types.ID) (int64, error)
}

type HandoverCanceller interface {
	CancelActiveForConsignment(ctx context.Context, consignmentID types.ID) error
}

type Deps struct {
	Repo      Repository
	Tx        infra.TxRunner
	Distance  DistanceLookup
	Fares     Quoter
	Requests  RequestRejecter
	Payments  PaymentCanceller
	Handovers HandoverCanceller
}

type Service struct {
	repo      Repository
	tx        infra.TxRunner
	distance  DistanceLookup
	fares     Quoter
	requests  RequestRejecter
	payments  PaymentCanceller
	handovers HandoverCanceller
}

func NewService(d Deps) *Service {
	return &Service{
		repo:      d.Repo,
		tx:        d.Tx,
		distance:  d.Distance,
		fares:     d.Fares,
		requests:  d.Requests,
		payments:  d.Payments,
		handovers: d.Handovers,
	}
}

type CreateCommand struct {
	SenderID    types.ID
	From        Address
	To          Address
	Receiver    Receiver
	Description string
	WeightKg    float64
	LengthCm    float64
	WidthCm     float64
	HeightCm    float64
}

type CancelCommand struct {
	ConsignmentID types.ID
	ActorID       types.ID
	IsAdmin       bool
	Reason        string
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Consignment, error) {
	if cmd.SenderID == "" || cmd.WeightKg <= 0 || cmd.LengthCm <= 0 || cmd.WidthCm <= 0 || cmd.HeightCm <= 0 {
		return nil, ErrInvalidInput
	}
	if cmd.From.City == "" || cmd.From.State == "" || cmd.To.City == "" || cmd.To.State == "" {
		return nil, ErrInvalidInput
	}
	if strings.TrimSpace(cmd.Receiver.Phone) == "" {
		return nil, ErrInvalidInput
	}

	dist, err := s.distance.GetDistance(ctx, cmd.From.Place(), cmd.To.Place())
	if err != nil {
		log.Printf("[consignment] distance %s -> %s: %v", cmd.From.Place(), cmd.To.Place(), err)
		return nil, ErrDistanceFailure
	}
	weight := fare.EffectiveWeight(cmd.WeightKg, cmd.LengthCm, cmd.WidthCm, cmd.HeightCm)
	quotes, err := s.fares.Quotes(ctx, weight, dist.Km)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	c := &Consignment{
		ID:              types.NewID(),
		SenderID:        cmd.SenderID,
		From:            cmd.From,
		To:              cmd.To,
		Receiver:        cmd.Receiver,
		Description:     cmd.Description,
		WeightKg:        cmd.WeightKg,
		LengthCm:        cmd.LengthCm,
		WidthCm:         cmd.WidthCm,
		HeightCm:        cmd.HeightCm,
		EffectiveWeight: weight,
		DistanceKm:      dist.Km,
		Quotes:          quotes,
		Status:          StatusPublished,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Consignment, error) {
	return s.repo.Get(ctx, id)
}

// Cancel ends the consignment and, in the same transaction, rejects open carry requests,
// cancels pending payments and cancels any active handover. Senders may only cancel before assignment.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		c, err := s.repo.Get(ctx, cmd.ConsignmentID)
		if err != nil {
			return err
		}
		if !cmd.IsAdmin {
			if c.SenderID != cmd.ActorID {
				return errs.New(errs.ErrForbidden, "not_consignment_owner", "only the sender may cancel this consignment")
			}
			if !c.Open() {
				return ErrInvalidState
			}
		}
		if !CanTransition(c.Status, StatusCancelled) {
			return ErrInvalidState
		}
		ok, err := s.repo.UpdateStatus(ctx, c.ID, []Status{c.Status}, StatusCancelled)
		if err != nil {
			return err
		}
		if !ok {
			return ErrStateConflict
		}

		reason := cmd.Reason
		if reason == "" {
			reason = "consignment_cancelled"
		}
		if _, err := s.requests.RejectOpenForConsignment(ctx, c.ID, reason); err != nil {
			return err
		}
		if _, err := s.payments.CancelPendingForConsignment(ctx, c.ID, ""); err != nil {
			return err
		}
		if err := s.handovers.CancelActiveForConsignment(ctx, c.ID); err != nil {
			return err
		}
		log.Printf("[consignment] %s cancelled from %s by %s", c.ID, c.Status, cmd.ActorID)
		return nil
	})
}
