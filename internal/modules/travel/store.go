// README: Travel store backed by PostgreSQL.
package travel

import (
	"context"
	"errors"

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

func (s *Store) Create(ctx context.Context, t *Travel) error {
	_, err := infra.Conn(ctx, s.db).Exec(ctx, `
		INSERT INTO travels (
			id, traveller_id, from_city, from_state, to_city, to_state,
			departure_at, arrival_at, mode, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`,
		string(t.ID), string(t.TravellerID), t.From.City, t.From.State, t.To.City, t.To.State,
		t.DepartureAt, t.ArrivalAt, string(t.Mode), string(t.Status), t.CreatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Travel, error) {
	row := infra.Conn(ctx, s.db).QueryRow(ctx, `
		SELECT id, traveller_id, from_city, from_state, to_city, to_state,
		       departure_at, arrival_at, mode, status, created_at, updated_at
		FROM travels WHERE id = $1`, string(id))

	var t Travel
	err := row.Scan(&t.ID, &t.TravellerID, &t.From.City, &t.From.State, &t.To.City, &t.To.State,
		&t.DepartureAt, &t.ArrivalAt, &t.Mode, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status) (bool, error) {
	tag, err := infra.Conn(ctx, s.db).Exec(ctx, `
		UPDATE travels SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		string(to), string(id), string(from),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
