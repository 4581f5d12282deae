// README: payout.processed / payout.failed handlers; idempotent on the gateway payout id.
package webhook

import (
	"context"
	"log"

	"carryhub/internal/errs"
	"carryhub/internal/modules/payout"
	"carryhub/internal/types"
)

// resolveUser finds the payout's owner by fund account, falling back to the notes we set.
func (r *Reconciler) resolveUser(ctx context.Context, ent PayoutEntity) (types.ID, error) {
	if ent.FundAccountID != "" {
		acct, err := r.payouts.FindAccountByFundAccount(ctx, ent.FundAccountID)
		if err != nil {
			return "", err
		}
		if acct != nil {
			return acct.UserID, nil
		}
	}
	if id := ent.Notes["user_id"]; id != "" {
		return types.ID(id), nil
	}
	return "", errs.Invariant("payout %s has no resolvable user", ent.ID)
}

func (r *Reconciler) newPayout(ctx context.Context, ent PayoutEntity, status payout.Status) (*payout.Payout, error) {
	userID, err := r.resolveUser(ctx, ent)
	if err != nil {
		return nil, err
	}
	now := r.now()
	p := &payout.Payout{
		ID:              types.NewID(),
		UserID:          userID,
		GatewayPayoutID: ent.ID,
		FundAccountID:   ent.FundAccountID,
		Amount:          types.FromMinor(ent.Amount),
		Status:          status,
		FailureReason:   ent.FailureReason,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if id := ent.Notes["consignment_id"]; id != "" {
		cid := types.ID(id)
		p.ConsignmentID = &cid
	}
	return p, r.payouts.Create(ctx, p)
}

func (r *Reconciler) payoutProcessed(ctx context.Context, ent PayoutEntity) (Result, error) {
	var res Result
	err := r.tx.RunInTx(ctx, func(ctx context.Context) error {
		p, err := r.payouts.LockByGatewayID(ctx, ent.ID)
		if err != nil {
			return err
		}
		if p == nil {
			if p, err = r.newPayout(ctx, ent, payout.StatusCompleted); err != nil {
				return err
			}
		} else {
			if p.Status == payout.StatusCompleted {
				res = Duplicate
				return nil
			}
			ok, err := r.payouts.UpdateStatus(ctx, p.ID, []payout.Status{payout.StatusPending, payout.StatusFailed}, payout.StatusCompleted, "")
			if err != nil {
				return err
			}
			if !ok {
				return errs.Invariant("payout %s in status %s could not be completed", p.ID, p.Status)
			}
		}

		consignmentID := payoutConsignment(p, ent)
		if consignmentID == "" {
			log.Printf("[webhook] payout %s carries no consignment; earnings left untouched", ent.ID)
		} else {
			n, err := r.earnings.MarkWithdrawn(ctx, p.UserID, consignmentID, r.now())
			if err != nil {
				return err
			}
			if n == 0 {
				log.Printf("[webhook] payout %s matched no withdrawable earning for %s/%s", ent.ID, p.UserID, consignmentID)
			}
		}
		res = Applied
		return nil
	})
	if err != nil {
		return "", err
	}
	return res, nil
}

func (r *Reconciler) payoutFailed(ctx context.Context, ent PayoutEntity) (Result, error) {
	var res Result
	err := r.tx.RunInTx(ctx, func(ctx context.Context) error {
		p, err := r.payouts.LockByGatewayID(ctx, ent.ID)
		if err != nil {
			return err
		}
		if p == nil {
			if p, err = r.newPayout(ctx, ent, payout.StatusFailed); err != nil {
				return err
			}
		} else {
			switch p.Status {
			case payout.StatusCompleted:
				res = Ignored
				return nil
			case payout.StatusFailed:
				res = Duplicate
				return nil
			}
			ok, err := r.payouts.UpdateStatus(ctx, p.ID, []payout.Status{payout.StatusPending}, payout.StatusFailed, ent.FailureReason)
			if err != nil {
				return err
			}
			if !ok {
				return errs.Invariant("payout %s in status %s could not be failed", p.ID, p.Status)
			}
		}

		// the claimed earning becomes withdrawable again
		if consignmentID := payoutConsignment(p, ent); consignmentID != "" {
			if _, err := r.earnings.ReleasePayout(ctx, p.UserID, consignmentID); err != nil {
				return err
			}
		}
		res = Applied
		return nil
	})
	if err != nil {
		return "", err
	}
	return res, nil
}

func payoutConsignment(p *payout.Payout, ent PayoutEntity) types.ID {
	if p.ConsignmentID != nil {
		return *p.ConsignmentID
	}
	return types.ID(ent.Notes["consignment_id"])
}
