// README: Payment store backed by PostgreSQL; webhook paths lock rows with SELECT ... FOR UPDATE.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

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

const selectPayment = `
	SELECT id, type, status, amount, currency, carry_request_id, consignment_id, travel_id, payer_id,
	       gateway_order_id, gateway_payment_id, expires_at, refund, created_at, updated_at
	FROM payments`

// Create maps a hit on the one-open-sender_pay-per-request index to ErrOpenPaymentExists.
func (s *Store) Create(ctx context.Context, p *Payment) error {
	refund, err := marshalRefund(p.Refund)
	if err != nil {
		return err
	}
	_, err = infra.Conn(ctx, s.db).Exec(ctx, `
		INSERT INTO payments (
			id, type, status, amount, currency, carry_request_id, consignment_id, travel_id, payer_id,
			gateway_order_id, gateway_payment_id, expires_at, refund, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)`,
		string(p.ID), string(p.Type), string(p.Status), p.Amount, p.Currency,
		string(p.CarryRequestID), string(p.ConsignmentID), string(p.TravelID), string(p.PayerID),
		p.GatewayOrderID, p.GatewayPaymentID, p.ExpiresAt, refund, p.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && strings.Contains(pgErr.ConstraintName, "open_sender_pay") {
		return ErrOpenPaymentExists
	}
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Payment, error) {
	return s.one(ctx, selectPayment+` WHERE id = $1`, string(id))
}

func (s *Store) GetByOrderID(ctx context.Context, orderID string) (*Payment, error) {
	return s.one(ctx, selectPayment+` WHERE gateway_order_id = $1`, orderID)
}

// LockByOrderID must run inside a transaction; concurrent deliveries for one order queue here.
func (s *Store) LockByOrderID(ctx context.Context, orderID string) (*Payment, error) {
	return s.one(ctx, selectPayment+` WHERE gateway_order_id = $1 FOR UPDATE`, orderID)
}

func (s *Store) LockByGatewayPaymentID(ctx context.Context, paymentID string) (*Payment, error) {
	return s.one(ctx, selectPayment+` WHERE gateway_payment_id = $1 AND type = 'sender_pay' FOR UPDATE`, paymentID)
}

func (s *Store) FindOpenForRequest(ctx context.Context, requestID types.ID) (*Payment, error) {
	p, err := s.one(ctx, selectPayment+`
		WHERE carry_request_id = $1 AND type = 'sender_pay'
		  AND status IN ('pending', 'completed_pending_webhook')
		ORDER BY created_at DESC LIMIT 1`, string(requestID))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return p, err
}

func (s *Store) HasSettledForConsignment(ctx context.Context, consignmentID types.ID) (bool, error) {
	var exists bool
	err := infra.Conn(ctx, s.db).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM payments
			WHERE consignment_id = $1 AND type = 'sender_pay'
			  AND status IN ('completed', 'completed_pending_webhook')
		)`, string(consignmentID),
	).Scan(&exists)
	return exists, err
}

func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from []Status, to Status, gatewayPaymentID *string) (bool, error) {
	tag, err := infra.Conn(ctx, s.db).Exec(ctx, `
		UPDATE payments
		SET status = $1,
		    gateway_payment_id = COALESCE($2, gateway_payment_id),
		    updated_at = NOW()
		WHERE id = $3 AND status = ANY($4)`,
		string(to), gatewayPaymentID, string(id), statusStrings(from),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) CancelPendingForRequest(ctx context.Context, requestID types.ID) (int64, error) {
	tag, err := infra.Conn(ctx, s.db).Exec(ctx, `
		UPDATE payments SET status = 'cancelled', updated_at = NOW()
		WHERE carry_request_id = $1 AND type = 'sender_pay' AND status = 'pending'`, string(requestID))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) CancelPendingForConsignment(ctx context.Context, consignmentID, exceptID types.ID) (int64, error) {
	tag, err := infra.Conn(ctx, s.db).Exec(ctx, `
		UPDATE payments SET status = 'cancelled', updated_at = NOW()
		WHERE consignment_id = $1 AND id <> $2 AND type = 'sender_pay' AND status = 'pending'`,
		string(consignmentID), string(exceptID))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) CancelExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := infra.Conn(ctx, s.db).Exec(ctx, `
		UPDATE payments SET status = 'cancelled', updated_at = $1
		WHERE type = 'sender_pay' AND status = 'pending' AND expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SetRefund stores the refund sub-record and, when status is non-nil, the payment status with it.
func (s *Store) SetRefund(ctx context.Context, id types.ID, r Refund, status *Status) error {
	refund, err := marshalRefund(&r)
	if err != nil {
		return err
	}
	var st *string
	if status != nil {
		v := string(*status)
		st = &v
	}
	_, err = infra.Conn(ctx, s.db).Exec(ctx, `
		UPDATE payments SET refund = $1, status = COALESCE($2, status), updated_at = NOW()
		WHERE id = $3`, refund, st, string(id))
	return err
}

func (s *Store) one(ctx context.Context, sql string, args ...any) (*Payment, error) {
	rows, err := infra.Conn(ctx, s.db).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	p, err := pgx.CollectOneRow(rows, scanPayment)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPayment(row pgx.CollectableRow) (Payment, error) {
	var p Payment
	var refund []byte
	err := row.Scan(&p.ID, &p.Type, &p.Status, &p.Amount, &p.Currency, &p.CarryRequestID, &p.ConsignmentID,
		&p.TravelID, &p.PayerID, &p.GatewayOrderID, &p.GatewayPaymentID, &p.ExpiresAt, &refund,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	if len(refund) > 0 {
		var r Refund
		if err := json.Unmarshal(refund, &r); err != nil {
			return p, err
		}
		p.Refund = &r
	}
	return p, nil
}

func marshalRefund(r *Refund) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}

func statusStrings(in []Status) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}
