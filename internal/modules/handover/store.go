// README: Travel consignment store backed by PostgreSQL, with an append-only state event log.
package handover

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"carryhub/internal/infra"
	"carryhub/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const selectTC = `
	SELECT id, consignment_id, travel_id, carry_request_id, sender_id, traveller_id, sender_otp, receiver_otp,
	       status, traveller_earning, sender_to_pay, platform_commission, pickup_time, delivery_time,
	       cancelled_at, created_at, updated_at
	FROM travel_consignments`

// Create relies on unique (consignment_id, travel_id).
func (s *Store) Create(ctx context.Context, tc *TravelConsignment) error {
	_, err := infra.Conn(ctx, s.db).Exec(ctx, `
		INSERT INTO travel_consignments (
			id, consignment_id, travel_id, carry_request_id, sender_id, traveller_id, sender_otp, receiver_otp,
			status, traveller_earning, sender_to_pay, platform_commission, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)`,
		string(tc.ID), string(tc.ConsignmentID), string(tc.TravelID), string(tc.CarryRequestID),
		string(tc.SenderID), string(tc.TravellerID), tc.SenderOTP, tc.ReceiverOTP, string(tc.Status),
		tc.TravellerEarning, tc.SenderToPay, tc.PlatformCommission, tc.CreatedAt,
	)
	if infra.IsUniqueViolation(err) {
		return ErrAlreadyProvisioned
	}
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*TravelConsignment, error) {
	return s.one(ctx, selectTC+` WHERE id = $1`, string(id))
}

// FindByPair returns nil when the pair has not been provisioned.
func (s *Store) FindByPair(ctx context.Context, consignmentID, travelID types.ID) (*TravelConsignment, error) {
	tc, err := s.one(ctx, selectTC+` WHERE consignment_id = $1 AND travel_id = $2`, string(consignmentID), string(travelID))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return tc, err
}

func (s *Store) ListActiveForConsignment(ctx context.Context, consignmentID types.ID) ([]TravelConsignment, error) {
	rows, err := infra.Conn(ctx, s.db).Query(ctx, selectTC+`
		WHERE consignment_id = $1 AND status IN ('to_handover', 'in_transit')`, string(consignmentID))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanTC)
}

func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from []Status, to Status, at time.Time) (bool, error) {
	tag, err := infra.Conn(ctx, s.db).Exec(ctx, `
		UPDATE travel_consignments
		SET status = $1::text,
		    pickup_time = CASE WHEN $1::text = 'in_transit' THEN $2 ELSE pickup_time END,
		    delivery_time = CASE WHEN $1::text = 'delivered' THEN $2 ELSE delivery_time END,
		    cancelled_at = CASE WHEN $1::text = 'cancelled' THEN $2 ELSE cancelled_at END,
		    updated_at = $2
		WHERE id = $3 AND status = ANY($4)`,
		string(to), at, string(id), statusStrings(from),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	var actor *string
	if e.ActorID != nil {
		v := string(*e.ActorID)
		actor = &v
	}
	_, err := infra.Conn(ctx, s.db).Exec(ctx, `
		INSERT INTO travel_consignment_events (
			travel_consignment_id, from_status, to_status, actor_type, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.TravelConsignmentID), string(e.FromStatus), string(e.ToStatus), e.ActorType, actor, e.CreatedAt,
	)
	return err
}

func (s *Store) one(ctx context.Context, sql string, args ...any) (*TravelConsignment, error) {
	rows, err := infra.Conn(ctx, s.db).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	tc, err := pgx.CollectOneRow(rows, scanTC)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tc, nil
}

func scanTC(row pgx.CollectableRow) (TravelConsignment, error) {
	var tc TravelConsignment
	err := row.Scan(&tc.ID, &tc.ConsignmentID, &tc.TravelID, &tc.CarryRequestID, &tc.SenderID, &tc.TravellerID,
		&tc.SenderOTP, &tc.ReceiverOTP, &tc.Status, &tc.TravellerEarning, &tc.SenderToPay, &tc.PlatformCommission,
		&tc.PickupTime, &tc.DeliveryTime, &tc.CancelledAt, &tc.CreatedAt, &tc.UpdatedAt)
	return tc, err
}

func statusStrings(in []Status) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}
