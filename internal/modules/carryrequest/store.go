// README: Carry request store backed by PostgreSQL.
package carryrequest

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

const selectRequest = `
	SELECT id, consignment_id, travel_id, sender_id, traveller_id, requested_by, initiator, mode,
	       sender_pay_amount, traveller_earning, status, reason, created_at, updated_at
	FROM carry_requests`

// Create relies on the partial unique index over pending (consignment, traveller, requester).
func (s *Store) Create(ctx context.Context, r *CarryRequest) error {
	_, err := infra.Conn(ctx, s.db).Exec(ctx, `
		INSERT INTO carry_requests (
			id, consignment_id, travel_id, sender_id, traveller_id, requested_by, initiator, mode,
			sender_pay_amount, traveller_earning, status, reason, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)`,
		string(r.ID), string(r.ConsignmentID), string(r.TravelID), string(r.SenderID), string(r.TravellerID),
		string(r.RequestedBy), string(r.Initiator), string(r.Mode),
		r.SenderPayAmount, r.TravellerEarning, string(r.Status), r.Reason, r.CreatedAt,
	)
	if infra.IsUniqueViolation(err) {
		return ErrDuplicateRequest
	}
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*CarryRequest, error) {
	rows, err := infra.Conn(ctx, s.db).Query(ctx, selectRequest+` WHERE id = $1`, string(id))
	if err != nil {
		return nil, err
	}
	r, err := pgx.CollectOneRow(rows, scanRequest)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) HasPending(ctx context.Context, consignmentID, travellerID, requestedBy types.ID) (bool, error) {
	var exists bool
	err := infra.Conn(ctx, s.db).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM carry_requests
			WHERE consignment_id = $1 AND traveller_id = $2 AND requested_by = $3 AND status = 'pending'
		)`, string(consignmentID), string(travellerID), string(requestedBy),
	).Scan(&exists)
	return exists, err
}

func (s *Store) ListForConsignment(ctx context.Context, consignmentID types.ID) ([]CarryRequest, error) {
	rows, err := infra.Conn(ctx, s.db).Query(ctx, selectRequest+` WHERE consignment_id = $1 ORDER BY created_at`, string(consignmentID))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanRequest)
}

func (s *Store) ListOpen(ctx context.Context, f Filter) ([]CarryRequest, error) {
	rows, err := infra.Conn(ctx, s.db).Query(ctx, selectRequest+`
		WHERE ($1 = '' OR consignment_id = $1)
		  AND ($2 = '' OR travel_id = $2)
		  AND status IN ('pending', 'accepted_pending_payment')
		ORDER BY created_at`, string(f.ConsignmentID), string(f.TravelID))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanRequest)
}

func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from []Status, to Status, reason string) (bool, error) {
	tag, err := infra.Conn(ctx, s.db).Exec(ctx, `
		UPDATE carry_requests SET status = $1, reason = $2, updated_at = NOW()
		WHERE id = $3 AND status = ANY($4)`,
		string(to), reason, string(id), statusStrings(from),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) RejectSiblings(ctx context.Context, consignmentID, acceptedID types.ID, reason string) (int64, error) {
	tag, err := infra.Conn(ctx, s.db).Exec(ctx, `
		UPDATE carry_requests SET status = 'rejected', reason = $1, updated_at = NOW()
		WHERE consignment_id = $2 AND id <> $3 AND status IN ('pending', 'accepted_pending_payment')`,
		reason, string(consignmentID), string(acceptedID),
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListDeparted returns open requests whose travel has already left.
func (s *Store) ListDeparted(ctx context.Context, now time.Time) ([]CarryRequest, error) {
	rows, err := infra.Conn(ctx, s.db).Query(ctx, `
		SELECT cr.id, cr.consignment_id, cr.travel_id, cr.sender_id, cr.traveller_id, cr.requested_by,
		       cr.initiator, cr.mode, cr.sender_pay_amount, cr.traveller_earning, cr.status, cr.reason,
		       cr.created_at, cr.updated_at
		FROM carry_requests cr
		JOIN travels t ON t.id = cr.travel_id
		WHERE cr.status IN ('pending', 'accepted_pending_payment')
		  AND t.departure_at <= $1`, now)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanRequest)
}

func scanRequest(row pgx.CollectableRow) (CarryRequest, error) {
	var r CarryRequest
	err := row.Scan(&r.ID, &r.ConsignmentID, &r.TravelID, &r.SenderID, &r.TravellerID, &r.RequestedBy,
		&r.Initiator, &r.Mode, &r.SenderPayAmount, &r.TravellerEarning, &r.Status, &r.Reason,
		&r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func statusStrings(in []Status) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}
