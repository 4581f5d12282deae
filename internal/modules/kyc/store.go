// README: KYC task store and the users.kyc JSONB profile, backed by PostgreSQL.
package kyc

import (
	"context"
	"encoding/json"
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

const selectTask = `
	SELECT id, user_id, type, request_id, group_id, task_id, status, result, created_at, updated_at
	FROM kyc_tasks`

func (s *Store) CreateTask(ctx context.Context, t *Task) error {
	_, err := infra.Conn(ctx, s.db).Exec(ctx, `
		INSERT INTO kyc_tasks (id, user_id, type, request_id, group_id, task_id, status, result, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		string(t.ID), string(t.UserID), string(t.Type), t.RequestID, t.GroupID, t.TaskID, t.Status,
		nullJSON(t.Result), t.CreatedAt,
	)
	return err
}

func (s *Store) LockTaskByRequestID(ctx context.Context, requestID string) (*Task, error) {
	return s.task(ctx, selectTask+` WHERE request_id = $1 FOR UPDATE`, requestID)
}

func (s *Store) LockTaskByGroupTask(ctx context.Context, groupID, taskID string) (*Task, error) {
	return s.task(ctx, selectTask+` WHERE group_id = $1 AND task_id = $2 ORDER BY created_at DESC LIMIT 1 FOR UPDATE`, groupID, taskID)
}

func (s *Store) UpdateTask(ctx context.Context, id types.ID, status string, result json.RawMessage) error {
	_, err := infra.Conn(ctx, s.db).Exec(ctx, `
		UPDATE kyc_tasks SET status = $1, result = $2, updated_at = NOW() WHERE id = $3`,
		status, nullJSON(result), string(id),
	)
	return err
}

func (s *Store) GetProfile(ctx context.Context, userID types.ID) (Profile, error) {
	return s.profile(ctx, `SELECT kyc FROM users WHERE id = $1`, userID)
}

// LockProfile must run inside a transaction; callbacks for one user queue here.
func (s *Store) LockProfile(ctx context.Context, userID types.ID) (Profile, error) {
	return s.profile(ctx, `SELECT kyc FROM users WHERE id = $1 FOR UPDATE`, userID)
}

func (s *Store) SaveProfile(ctx context.Context, userID types.ID, p Profile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	tag, err := infra.Conn(ctx, s.db).Exec(ctx, `UPDATE users SET kyc = $1, updated_at = NOW() WHERE id = $2`, raw, string(userID))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *Store) profile(ctx context.Context, sql string, userID types.ID) (Profile, error) {
	var raw []byte
	err := infra.Conn(ctx, s.db).QueryRow(ctx, sql, string(userID)).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrUserNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	p := NewProfile()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return Profile{}, err
		}
	}
	p.normalize()
	return p, nil
}

func (s *Store) task(ctx context.Context, sql string, args ...any) (*Task, error) {
	rows, err := infra.Conn(ctx, s.db).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	t, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (Task, error) {
		var t Task
		var result []byte
		err := row.Scan(&t.ID, &t.UserID, &t.Type, &t.RequestID, &t.GroupID, &t.TaskID, &t.Status, &result,
			&t.CreatedAt, &t.UpdatedAt)
		t.Result = result
		return t, err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullJSON(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
