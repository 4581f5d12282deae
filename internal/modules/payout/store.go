// README: Payout and payout account store backed by PostgreSQL.
package payout

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

func (s *Store) UpsertAccount(ctx context.Context, a *Account) error {
	_, err := infra.Conn(ctx, s.db).Exec(ctx, `
		INSERT INTO payout_accounts (user_id, fund_account_id, ifsc, account_last4, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET fund_account_id = EXCLUDED.fund_account_id,
		    ifsc = EXCLUDED.ifsc,
		    account_last4 = EXCLUDED.account_last4,
		    updated_at = EXCLUDED.updated_at`,
		string(a.UserID), a.FundAccountID, a.IFSC, a.AccountLast4, a.CreatedAt,
	)
	return err
}

func (s *Store) GetAccount(ctx context.Context, userID types.ID) (*Account, error) {
	a, err := s.account(ctx, `WHERE user_id = $1`, string(userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	return a, err
}

// FindAccountByFundAccount returns nil when the fund account is unknown.
func (s *Store) FindAccountByFundAccount(ctx context.Context, fundAccountID string) (*Account, error) {
	a, err := s.account(ctx, `WHERE fund_account_id = $1`, fundAccountID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (s *Store) account(ctx context.Context, where string, args ...any) (*Account, error) {
	rows, err := infra.Conn(ctx, s.db).Query(ctx, `
		SELECT user_id, fund_account_id, ifsc, account_last4, created_at, updated_at
		FROM payout_accounts `+where, args...)
	if err != nil {
		return nil, err
	}
	a, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (Account, error) {
		var a Account
		err := row.Scan(&a.UserID, &a.FundAccountID, &a.IFSC, &a.AccountLast4, &a.CreatedAt, &a.UpdatedAt)
		return a, err
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

const selectPayout = `
	SELECT id, user_id, consignment_id, gateway_payout_id, fund_account_id, amount, status, failure_reason,
	       created_at, updated_at
	FROM payouts`

func (s *Store) Create(ctx context.Context, p *Payout) error {
	var consignmentID *string
	if p.ConsignmentID != nil {
		v := string(*p.ConsignmentID)
		consignmentID = &v
	}
	_, err := infra.Conn(ctx, s.db).Exec(ctx, `
		INSERT INTO payouts (
			id, user_id, consignment_id, gateway_payout_id, fund_account_id, amount, status, failure_reason,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		string(p.ID), string(p.UserID), consignmentID, p.GatewayPayoutID, p.FundAccountID, p.Amount,
		string(p.Status), p.FailureReason, p.CreatedAt,
	)
	if infra.IsUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

// LockByGatewayID must run inside a transaction. It returns nil when no payout is recorded yet.
func (s *Store) LockByGatewayID(ctx context.Context, gatewayPayoutID string) (*Payout, error) {
	rows, err := infra.Conn(ctx, s.db).Query(ctx, selectPayout+` WHERE gateway_payout_id = $1 FOR UPDATE`, gatewayPayoutID)
	if err != nil {
		return nil, err
	}
	p, err := pgx.CollectOneRow(rows, scanPayout)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) HasOpenForConsignment(ctx context.Context, userID, consignmentID types.ID) (bool, error) {
	var exists bool
	err := infra.Conn(ctx, s.db).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM payouts WHERE user_id = $1 AND consignment_id = $2 AND status = 'pending'
		)`, string(userID), string(consignmentID),
	).Scan(&exists)
	return exists, err
}

func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from []Status, to Status, reason string) (bool, error) {
	states := make([]string, len(from))
	for i, st := range from {
		states[i] = string(st)
	}
	tag, err := infra.Conn(ctx, s.db).Exec(ctx, `
		UPDATE payouts SET status = $1, failure_reason = $2, updated_at = NOW()
		WHERE id = $3 AND status = ANY($4)`,
		string(to), reason, string(id), states,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanPayout(row pgx.CollectableRow) (Payout, error) {
	var p Payout
	err := row.Scan(&p.ID, &p.UserID, &p.ConsignmentID, &p.GatewayPayoutID, &p.FundAccountID, &p.Amount,
		&p.Status, &p.FailureReason, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
