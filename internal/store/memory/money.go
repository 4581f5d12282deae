// README: In-memory payments, earnings and payouts, emulating the schema's unique indexes.
package memory

import (
	"context"
	"slices"
	"time"

	"carryhub/internal/modules/earning"
	"carryhub/internal/modules/payment"
	"carryhub/internal/modules/payout"
	"carryhub/internal/types"
)

// Payments

type Payments struct{ s *Store }

func (r *Payments) Create(ctx context.Context, p *payment.Payment) error {
	defer r.s.enter(ctx)()
	for _, o := range r.s.data.payments {
		if p.Type == payment.TypeSenderPay && o.Type == payment.TypeSenderPay && p.Open() && o.Open() &&
			o.CarryRequestID == p.CarryRequestID {
			return payment.ErrOpenPaymentExists
		}
		if p.GatewayOrderID != nil && o.OrderID() == *p.GatewayOrderID {
			return payment.ErrOpenPaymentExists
		}
	}
	r.s.data.payments[p.ID] = *p
	return nil
}

func (r *Payments) Get(ctx context.Context, id types.ID) (*payment.Payment, error) {
	defer r.s.enter(ctx)()
	p, ok := r.s.data.payments[id]
	if !ok {
		return nil, payment.ErrNotFound
	}
	return &p, nil
}

func (r *Payments) GetByOrderID(ctx context.Context, orderID string) (*payment.Payment, error) {
	defer r.s.enter(ctx)()
	return r.find(func(p payment.Payment) bool { return orderID != "" && p.OrderID() == orderID })
}

func (r *Payments) LockByOrderID(ctx context.Context, orderID string) (*payment.Payment, error) {
	return r.GetByOrderID(ctx, orderID)
}

func (r *Payments) LockByGatewayPaymentID(ctx context.Context, paymentID string) (*payment.Payment, error) {
	defer r.s.enter(ctx)()
	return r.find(func(p payment.Payment) bool {
		return paymentID != "" && p.Type == payment.TypeSenderPay && p.PaymentID() == paymentID
	})
}

func (r *Payments) FindOpenForRequest(ctx context.Context, requestID types.ID) (*payment.Payment, error) {
	defer r.s.enter(ctx)()
	p, err := r.find(func(p payment.Payment) bool {
		return p.Type == payment.TypeSenderPay && p.CarryRequestID == requestID && p.Open()
	})
	if err != nil {
		return nil, nil
	}
	return p, nil
}

func (r *Payments) HasSettledForConsignment(ctx context.Context, consignmentID types.ID) (bool, error) {
	defer r.s.enter(ctx)()
	_, err := r.find(func(p payment.Payment) bool {
		return p.Type == payment.TypeSenderPay && p.ConsignmentID == consignmentID &&
			(p.Status == payment.StatusCompleted || p.Status == payment.StatusCompletedPendingWebhook)
	})
	return err == nil, nil
}

func (r *Payments) UpdateStatus(ctx context.Context, id types.ID, from []payment.Status, to payment.Status, gatewayPaymentID *string) (bool, error) {
	defer r.s.enter(ctx)()
	p, ok := r.s.data.payments[id]
	if !ok || !slices.Contains(from, p.Status) {
		return false, nil
	}
	p.Status = to
	if gatewayPaymentID != nil {
		pid := *gatewayPaymentID
		p.GatewayPaymentID = &pid
	}
	p.UpdatedAt = time.Now()
	r.s.data.payments[id] = p
	return true, nil
}

func (r *Payments) CancelPendingForRequest(ctx context.Context, requestID types.ID) (int64, error) {
	defer r.s.enter(ctx)()
	return r.cancelWhere(func(p payment.Payment) bool { return p.CarryRequestID == requestID }), nil
}

func (r *Payments) CancelPendingForConsignment(ctx context.Context, consignmentID, exceptID types.ID) (int64, error) {
	defer r.s.enter(ctx)()
	return r.cancelWhere(func(p payment.Payment) bool { return p.ConsignmentID == consignmentID && p.ID != exceptID }), nil
}

func (r *Payments) CancelExpired(ctx context.Context, now time.Time) (int64, error) {
	defer r.s.enter(ctx)()
	return r.cancelWhere(func(p payment.Payment) bool { return p.ExpiresAt != nil && !p.ExpiresAt.After(now) }), nil
}

func (r *Payments) SetRefund(ctx context.Context, id types.ID, refund payment.Refund, status *payment.Status) error {
	defer r.s.enter(ctx)()
	p, ok := r.s.data.payments[id]
	if !ok {
		return payment.ErrNotFound
	}
	p.Refund = &refund
	if status != nil {
		p.Status = *status
	}
	p.UpdatedAt = time.Now()
	r.s.data.payments[id] = p
	return nil
}

func (r *Payments) cancelWhere(match func(payment.Payment) bool) int64 {
	var n int64
	for id, p := range r.s.data.payments {
		if p.Type != payment.TypeSenderPay || p.Status != payment.StatusPending || !match(p) {
			continue
		}
		p.Status = payment.StatusCancelled
		p.UpdatedAt = time.Now()
		r.s.data.payments[id] = p
		n++
	}
	return n
}

func (r *Payments) find(match func(payment.Payment) bool) (*payment.Payment, error) {
	var best *payment.Payment
	for _, p := range r.s.data.payments {
		if !match(p) {
			continue
		}
		if best == nil || p.CreatedAt.After(best.CreatedAt) {
			p := p
			best = &p
		}
	}
	if best == nil {
		return nil, payment.ErrNotFound
	}
	return best, nil
}

// Earnings

type Earnings struct{ s *Store }

func (r *Earnings) Create(ctx context.Context, e *earning.Earning) error {
	defer r.s.enter(ctx)()
	for _, o := range r.s.data.earnings {
		if o.TravelConsignmentID == e.TravelConsignmentID {
			return earning.ErrAlreadyExists
		}
	}
	r.s.data.earnings[e.ID] = *e
	return nil
}

func (r *Earnings) ListForTravelConsignment(ctx context.Context, tcID types.ID) ([]earning.Earning, error) {
	defer r.s.enter(ctx)()
	var out []earning.Earning
	for _, e := range r.s.data.earnings {
		if e.TravelConsignmentID == tcID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *Earnings) Transition(ctx context.Context, tcID types.ID, from, to earning.Status) (bool, error) {
	defer r.s.enter(ctx)()
	moved := false
	for id, e := range r.s.data.earnings {
		if e.TravelConsignmentID != tcID || e.Status != from {
			continue
		}
		e.Status = to
		e.UpdatedAt = time.Now()
		r.s.data.earnings[id] = e
		moved = true
	}
	return moved, nil
}

func (r *Earnings) FindWithdrawable(ctx context.Context, userID, consignmentID types.ID) (*earning.Earning, error) {
	defer r.s.enter(ctx)()
	for _, e := range r.s.data.earnings {
		if withdrawable(e, userID, consignmentID) {
			return &e, nil
		}
	}
	return nil, nil
}

func (r *Earnings) ClaimForPayout(ctx context.Context, userID, consignmentID types.ID) (*earning.Earning, error) {
	defer r.s.enter(ctx)()
	var oldest *earning.Earning
	for _, e := range r.s.data.earnings {
		if withdrawable(e, userID, consignmentID) && (oldest == nil || e.CreatedAt.Before(oldest.CreatedAt)) {
			oldest = &e
		}
	}
	if oldest == nil {
		return nil, nil
	}
	oldest.Status = earning.StatusPayoutPending
	oldest.UpdatedAt = time.Now()
	r.s.data.earnings[oldest.ID] = *oldest
	return oldest, nil
}

func (r *Earnings) ReleasePayout(ctx context.Context, userID, consignmentID types.ID) (int64, error) {
	defer r.s.enter(ctx)()
	var n int64
	for id, e := range r.s.data.earnings {
		if !payoutPending(e, userID, consignmentID) {
			continue
		}
		e.Status = earning.StatusCompleted
		e.UpdatedAt = time.Now()
		r.s.data.earnings[id] = e
		n++
	}
	return n, nil
}

func (r *Earnings) HasPayoutPending(ctx context.Context, userID, consignmentID types.ID) (bool, error) {
	defer r.s.enter(ctx)()
	for _, e := range r.s.data.earnings {
		if payoutPending(e, userID, consignmentID) {
			return true, nil
		}
	}
	return false, nil
}

func (r *Earnings) MarkWithdrawn(ctx context.Context, userID, consignmentID types.ID, at time.Time) (int64, error) {
	defer r.s.enter(ctx)()
	var n int64
	for id, e := range r.s.data.earnings {
		if !withdrawable(e, userID, consignmentID) && !payoutPending(e, userID, consignmentID) {
			continue
		}
		e.Status = earning.StatusCompleted
		e.IsWithdrawn = true
		e.WithdrawnAt = &at
		e.UpdatedAt = at
		r.s.data.earnings[id] = e
		n++
	}
	return n, nil
}

func withdrawable(e earning.Earning, userID, consignmentID types.ID) bool {
	return e.UserID == userID && e.ConsignmentID == consignmentID && e.Status == earning.StatusCompleted && !e.IsWithdrawn
}

func payoutPending(e earning.Earning, userID, consignmentID types.ID) bool {
	return e.UserID == userID && e.ConsignmentID == consignmentID && e.Status == earning.StatusPayoutPending && !e.IsWithdrawn
}

// Payouts

type Payouts struct{ s *Store }

func (r *Payouts) UpsertAccount(ctx context.Context, a *payout.Account) error {
	defer r.s.enter(ctx)()
	next := *a
	if prev, ok := r.s.data.accounts[a.UserID]; ok {
		next.CreatedAt = prev.CreatedAt
	}
	r.s.data.accounts[a.UserID] = next
	return nil
}

func (r *Payouts) GetAccount(ctx context.Context, userID types.ID) (*payout.Account, error) {
	defer r.s.enter(ctx)()
	a, ok := r.s.data.accounts[userID]
	if !ok {
		return nil, payout.ErrAccountNotFound
	}
	return &a, nil
}

func (r *Payouts) FindAccountByFundAccount(ctx context.Context, fundAccountID string) (*payout.Account, error) {
	defer r.s.enter(ctx)()
	for _, a := range r.s.data.accounts {
		if a.FundAccountID == fundAccountID {
			return &a, nil
		}
	}
	return nil, nil
}

func (r *Payouts) Create(ctx context.Context, p *payout.Payout) error {
	defer r.s.enter(ctx)()
	for _, o := range r.s.data.payouts {
		if o.GatewayPayoutID == p.GatewayPayoutID {
			return payout.ErrAlreadyExists
		}
	}
	r.s.data.payouts[p.ID] = *p
	return nil
}

func (r *Payouts) LockByGatewayID(ctx context.Context, gatewayPayoutID string) (*payout.Payout, error) {
	defer r.s.enter(ctx)()
	for _, p := range r.s.data.payouts {
		if p.GatewayPayoutID == gatewayPayoutID {
			return &p, nil
		}
	}
	return nil, nil
}

func (r *Payouts) HasOpenForConsignment(ctx context.Context, userID, consignmentID types.ID) (bool, error) {
	defer r.s.enter(ctx)()
	for _, p := range r.s.data.payouts {
		if p.UserID == userID && p.ConsignmentID != nil && *p.ConsignmentID == consignmentID && p.Status == payout.StatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (r *Payouts) UpdateStatus(ctx context.Context, id types.ID, from []payout.Status, to payout.Status, reason string) (bool, error) {
	defer r.s.enter(ctx)()
	p, ok := r.s.data.payouts[id]
	if !ok || !slices.Contains(from, p.Status) {
		return false, nil
	}
	p.Status = to
	p.FailureReason = reason
	p.UpdatedAt = time.Now()
	r.s.data.payouts[id] = p
	return true, nil
}

// ListForUser lists every payout for a user, oldest first. Used by tests.
func (r *Payouts) ListForUser(ctx context.Context, userID types.ID) []payout.Payout {
	defer r.s.enter(ctx)()
	var out []payout.Payout
	for _, p := range r.s.data.payouts {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return byCreated(out, func(p payout.Payout) time.Time { return p.CreatedAt })
}

// ListForConsignment returns every payment for a consignment, oldest first.
func (r *Payments) ListForConsignment(ctx context.Context, consignmentID types.ID) []payment.Payment {
	defer r.s.enter(ctx)()
	var out []payment.Payment
	for _, p := range r.s.data.payments {
		if p.ConsignmentID == consignmentID {
			out = append(out, p)
		}
	}
	return byCreated(out, func(p payment.Payment) time.Time { return p.CreatedAt })
}
