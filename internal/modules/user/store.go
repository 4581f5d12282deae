// README: User store backed by PostgreSQL.
package user

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
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

// Upsert inserts or refreshes the profile keyed by the auth uid.
func (s *Store) Upsert(ctx context.Context, u *User) error {
	_, err := infra.Conn(ctx, s.db).Exec(ctx, `
		INSERT INTO users (id, name, phone, email, role, device_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    phone = EXCLUDED.phone,
		    email = EXCLUDED.email,
		    device_token = COALESCE(NULLIF(EXCLUDED.device_token, ''), users.device_token),
		    updated_at = EXCLUDED.updated_at`,
		string(u.ID), u.Name, u.Phone, u.Email, string(u.Role), u.DeviceToken, u.CreatedAt,
	)
	return mapUniqueErr(err)
}

func (s *Store) Get(ctx context.Context, id types.ID) (*User, error) {
	row := infra.Conn(ctx, s.db).QueryRow(ctx, `
		SELECT id, name, phone, email, role, device_token, created_at, updated_at
		FROM users WHERE id = $1`, string(id))

	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Phone, &u.Email, &u.Role, &u.DeviceToken, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) DeviceToken(ctx context.Context, id types.ID) (string, error) {
	var token string
	err := infra.Conn(ctx, s.db).QueryRow(ctx, `SELECT device_token FROM users WHERE id = $1`, string(id)).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return token, err
}

func mapUniqueErr(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}
	if strings.Contains(pgErr.ConstraintName, "email") {
		return ErrEmailTaken
	}
	return ErrPhoneTaken
}
