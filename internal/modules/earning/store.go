// README: Earning store backed by PostgreSQL.
package earning

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

const selectEarning = `
	SELECT id, user_id, consignment_id, travel_consignment_id, amount, status,
	       is_withdrawn, withdrawn_at, created_at, updated_at
	FROM earnings`

func (s *Store) Create(ctx context.Context, e *Earning) error {
	_, err := infra.Conn(ctx, s.db).Exec(ctx, `
		INSERT INTO earnings (
			id, user_id, consignment_id, travel_consignment_id, amount, status,
			is_withdrawn, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		string(e.ID), string(e.UserID), string(e.ConsignmentID), string(e.TravelConsignmentID),
		e.Amount, string(e.Status), e.IsWithdrawn, e.CreatedAt,
	)
	if infra.IsUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *Store) ListForTravelConsignment(ctx context.Context, tcID types.ID) ([]Earning, error) {
	rows, err := infra.Conn(ctx, s.db).Query(ctx, selectEarning+` WHERE travel_consignment_id = $1`, string(tcID))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanEarning)
}

func (s *Store) Transition(ctx context.Context, tcID types.ID, from, to Status) (bool, error) {
	tag, err := infra.Conn(ctx, s.db).Exec(ctx, `
		UPDATE earnings SET status = $1, updated_at = NOW()
		WHERE travel_consignment_id = $2 AND status = $3`,
		string(to), string(tcID), string(from),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ClaimForPayout skips rows another transaction holds, so concurrent claims never share an earning.
func (s *Store) ClaimForPayout(ctx context.Context, userID, consignmentID types.ID) (*Earning, error) {
	rows, err := infra.Conn(ctx, s.db).Query(ctx, `
		UPDATE earnings SET status = 'payout_pending', updated_at = NOW()
		WHERE id = (
			SELECT id FROM earnings
			WHERE user_id = $1 AND consignment_id = $2 AND status = 'completed' AND NOT is_withdrawn
			ORDER BY created_at LIMIT 1
			FOR UPDATE SKIP LOCKED
		) AND status = 'completed'
		RETURNING id, user_id, consignment_id, travel_consignment_id, amount, status,
		          is_withdrawn, withdrawn_at, created_at, updated_at`,
		string(userID), string(consignmentID),
	)
	if err != nil {
		return nil, err
	}
	e, err := pgx.CollectOneRow(rows, scanEarning)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) ReleasePayout(ctx context.Context, userID, consignmentID types.ID) (int64, error) {
	tag, err := infra.Conn(ctx, s.db).Exec(ctx, `
		UPDATE earnings SET status = 'completed', updated_at = NOW()
		WHERE user_id = $1 AND consignment_id = $2 AND status = 'payout_pending' AND NOT is_withdrawn`,
		string(userID), string(consignmentID),
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) HasPayoutPending(ctx context.Context, userID, consignmentID types.ID) (bool, error) {
	var ok bool
	err := infra.Conn(ctx, s.db).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM earnings
			WHERE user_id = $1 AND consignment_id = $2 AND status = 'payout_pending' AND NOT is_withdrawn
		)`, string(userID), string(consignmentID),
	).Scan(&ok)
	return ok, err
}

func (s *Store) MarkWithdrawn(ctx context.Context, userID, consignmentID types.ID, at time.Time) (int64, error) {
	tag, err := infra.Conn(ctx, s.db).Exec(ctx, `
		UPDATE earnings SET status = 'completed', is_withdrawn = TRUE, withdrawn_at = $1, updated_at = $1
		WHERE user_id = $2 AND consignment_id = $3
		  AND status IN ('completed', 'payout_pending') AND NOT is_withdrawn`,
		at, string(userID), string(consignmentID),
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanEarning(row pgx.CollectableRow) (Earning, error) {
	var e Earning
	err := row.Scan(&e.ID, &e.UserID, &e.ConsignmentID, &e.TravelConsignmentID, &e.Amount, &e.Status,
		&e.IsWithdrawn, &e.WithdrawnAt, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}
