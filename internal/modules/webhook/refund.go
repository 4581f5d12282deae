// README: refund.* handler; updates the refund sub-record on the matching sender payment.
package webhook

import (
	"context"
	"errors"
	"log"

	"carryhub/internal/errs"
	"carryhub/internal/modules/payment"
	"carryhub/internal/types"
)

var refundStatuses = map[string]payment.RefundStatus{
	EventRefundCreated:   payment.RefundCreated,
	EventRefundProcessed: payment.RefundProcessed,
	EventRefundFailed:    payment.RefundFailed,
}

func (r *Reconciler) refundUpdated(ctx context.Context, event string, ent RefundEntity) (Result, error) {
	status := refundStatuses[event]
	var res Result
	err := r.tx.RunInTx(ctx, func(ctx context.Context) error {
		p, err := r.payments.LockByGatewayPaymentID(ctx, ent.PaymentID)
		if errors.Is(err, payment.ErrNotFound) {
			return errs.Invariant("refund %s for unknown gateway payment %s", ent.ID, ent.PaymentID)
		}
		if err != nil {
			return err
		}

		if cur := p.Refund; cur != nil && cur.RefundID == ent.ID {
			if cur.Status == status {
				res = Duplicate
				return nil
			}
			if status.Rank() <= cur.Status.Rank() {
				log.Printf("[webhook] refund %s: ignoring %s after %s", ent.ID, status, cur.Status)
				res = Ignored
				return nil
			}
		}

		refund := payment.Refund{
			RefundID:  ent.ID,
			Amount:    types.FromMinor(ent.Amount),
			Status:    status,
			Reason:    ent.Notes["reason"],
			UpdatedAt: r.now(),
		}
		var next *payment.Status
		if status == payment.RefundProcessed {
			refunded := payment.StatusRefunded
			next = &refunded
		}
		if err := r.payments.SetRefund(ctx, p.ID, refund, next); err != nil {
			return err
		}
		res = Applied
		return nil
	})
	if err != nil {
		return "", err
	}
	return res, nil
}
