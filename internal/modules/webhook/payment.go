// README: payment.captured / payment.failed handlers; capture provisions the handover atomically.
package webhook

import (
	"context"
	"errors"
	"log"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"carryhub/internal/errs"
	"carryhub/internal/modules/carryrequest"
	"carryhub/internal/modules/consignment"
	"carryhub/internal/modules/handover"
	"carryhub/internal/modules/payment"
	"carryhub/internal/notify"
	"carryhub/internal/otp"
	"carryhub/internal/types"
)

// capturable lists the statuses a captured event may promote. A late capture still settles
// failed and cancelled attempts on the same order.
var capturable = []payment.Status{
	payment.StatusPending,
	payment.StatusCompletedPendingWebhook,
	payment.StatusFailed,
	payment.StatusCancelled,
}

type otpDelivery struct {
	purpose otp.Purpose
	phone   string
	code    string
}

func (r *Reconciler) paymentCaptured(ctx context.Context, ent PaymentEntity) (Result, error) {
	var (
		duplicate  bool
		traveller  types.ID
		tcID       types.ID
		deliveries []otpDelivery
	)
	err := r.tx.RunInTx(ctx, func(ctx context.Context) error {
		p, err := r.payments.LockByOrderID(ctx, ent.OrderID)
		if errors.Is(err, payment.ErrNotFound) {
			return errs.Invariant("captured event for unknown order %s", ent.OrderID)
		}
		if err != nil {
			return err
		}
		if p.Status == payment.StatusCompleted || p.Status == payment.StatusRefunded {
			duplicate = true
			return nil
		}

		paymentID := ent.ID
		ok, err := r.payments.UpdateStatus(ctx, p.ID, capturable, payment.StatusCompleted, &paymentID)
		if err != nil {
			return err
		}
		if !ok {
			return errs.Invariant("payment %s in status %s could not be completed", p.ID, p.Status)
		}

		ok, err = r.requests.UpdateStatus(ctx, p.CarryRequestID,
			[]carryrequest.Status{carryrequest.StatusAcceptedPendingPayment}, carryrequest.StatusAccepted, "")
		if err != nil {
			return err
		}
		if !ok {
			return errs.Invariant("carry request %s was not awaiting payment for order %s", p.CarryRequestID, ent.OrderID)
		}
		cr, err := r.requests.Get(ctx, p.CarryRequestID)
		if err != nil {
			return err
		}
		if _, err := r.requests.RejectSiblings(ctx, cr.ConsignmentID, cr.ID, "another_request_accepted"); err != nil {
			return err
		}
		if _, err := r.payments.CancelPendingForConsignment(ctx, cr.ConsignmentID, p.ID); err != nil {
			return err
		}

		now := r.now()
		ok, err = r.consignments.Assign(ctx, cr.ConsignmentID, cr.TravellerID,
			[]consignment.Status{consignment.StatusPublished, consignment.StatusRequested}, now)
		if err != nil {
			return err
		}
		if !ok {
			return errs.Invariant("consignment %s not assignable for order %s", cr.ConsignmentID, ent.OrderID)
		}

		cfg, err := r.fares.Config(ctx)
		if err != nil {
			return err
		}
		commission := types.Round2(cr.SenderPayAmount.Mul(cfg.Margin))

		existing, err := r.handovers.FindByPair(ctx, cr.ConsignmentID, cr.TravelID)
		if err != nil {
			return err
		}
		traveller = cr.TravellerID
		if existing != nil {
			tcID = existing.ID
			return nil
		}

		tc, ds, err := r.provision(ctx, cr, commission)
		if err != nil {
			return err
		}
		tcID = tc.ID
		deliveries = ds

		return r.payments.Create(ctx, &payment.Payment{
			ID:             types.NewID(),
			Type:           payment.TypePlatformCommission,
			Status:         payment.StatusCompleted,
			Amount:         commission,
			Currency:       types.Currency,
			CarryRequestID: cr.ID,
			ConsignmentID:  cr.ConsignmentID,
			TravelID:       cr.TravelID,
			PayerID:        cr.SenderID,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	})
	if err != nil {
		return "", err
	}
	if duplicate {
		return Duplicate, nil
	}

	for _, d := range deliveries {
		if err := r.otp.Deliver(ctx, d.purpose, d.phone, d.code); err != nil {
			log.Printf("[webhook] deliver %s otp for %s: %v", d.purpose, tcID, err)
		}
	}
	notify.Send(ctx, r.notifier, notify.Event{
		Type:   notify.EventPaymentSuccess,
		UserID: traveller,
		Data:   map[string]string{"order_id": ent.OrderID, "travel_consignment_id": string(tcID)},
	})
	return Applied, nil
}

// provision creates the travel consignment with fresh OTPs. A traveller phone matching the
// sender or receiver phone aborts the capture.
func (r *Reconciler) provision(ctx context.Context, cr *carryrequest.CarryRequest, commission decimal.Decimal) (*handover.TravelConsignment, []otpDelivery, error) {
	c, err := r.consignments.Get(ctx, cr.ConsignmentID)
	if err != nil {
		return nil, nil, err
	}
	sender, err := r.users.Get(ctx, cr.SenderID)
	if err != nil {
		return nil, nil, err
	}
	trav, err := r.users.Get(ctx, cr.TravellerID)
	if err != nil {
		return nil, nil, err
	}
	if samePhone(trav.Phone, sender.Phone) {
		log.Printf("[webhook] INVARIANT: traveller %s shares the sender phone on %s", trav.ID, cr.ID)
		return nil, nil, errs.Invariant("traveller phone equals sender phone on carry request %s", cr.ID)
	}
	if samePhone(trav.Phone, c.Receiver.Phone) {
		log.Printf("[webhook] INVARIANT: traveller %s shares the receiver phone on %s", trav.ID, cr.ID)
		return nil, nil, errs.Invariant("traveller phone equals receiver phone on carry request %s", cr.ID)
	}

	senderOTP, err := r.otp.Generate()
	if err != nil {
		return nil, nil, err
	}
	receiverOTP, err := r.otp.Generate()
	if err != nil {
		return nil, nil, err
	}

	now := r.now()
	tc := &handover.TravelConsignment{
		ID:                 types.NewID(),
		ConsignmentID:      cr.ConsignmentID,
		TravelID:           cr.TravelID,
		CarryRequestID:     cr.ID,
		SenderID:           cr.SenderID,
		TravellerID:        cr.TravellerID,
		SenderOTP:          senderOTP,
		ReceiverOTP:        receiverOTP,
		Status:             handover.StatusToHandover,
		TravellerEarning:   cr.TravellerEarning,
		SenderToPay:        cr.SenderPayAmount,
		PlatformCommission: commission,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := r.handovers.Create(ctx, tc); err != nil {
		return nil, nil, err
	}
	return tc, []otpDelivery{
		{purpose: otp.PurposePickup, phone: sender.Phone, code: senderOTP},
		{purpose: otp.PurposeDelivery, phone: c.Receiver.Phone, code: receiverOTP},
	}, nil
}

func (r *Reconciler) paymentFailed(ctx context.Context, ent PaymentEntity) (Result, error) {
	var (
		res   Result
		payer types.ID
	)
	err := r.tx.RunInTx(ctx, func(ctx context.Context) error {
		p, err := r.payments.LockByOrderID(ctx, ent.OrderID)
		if errors.Is(err, payment.ErrNotFound) {
			log.Printf("[webhook] failed event for unknown order %s", ent.OrderID)
			res = Ignored
			return nil
		}
		if err != nil {
			return err
		}
		switch p.Status {
		case payment.StatusCompleted, payment.StatusRefunded:
			// a later attempt on the same order already settled it
			res = Ignored
			return nil
		case payment.StatusFailed:
			res = Duplicate
			return nil
		}
		var paymentID *string
		if ent.ID != "" {
			paymentID = &ent.ID
		}
		ok, err := r.payments.UpdateStatus(ctx, p.ID,
			[]payment.Status{payment.StatusPending, payment.StatusCompletedPendingWebhook, payment.StatusCancelled},
			payment.StatusFailed, paymentID)
		if err != nil {
			return err
		}
		if !ok {
			return errs.Invariant("payment %s in status %s could not be failed", p.ID, p.Status)
		}
		res = Applied
		payer = p.PayerID
		return nil
	})
	if err != nil {
		return "", err
	}
	if res == Applied {
		notify.Send(ctx, r.notifier, notify.Event{
			Type:   notify.EventPaymentFailed,
			UserID: payer,
			Data:   map[string]string{"order_id": ent.OrderID, "reason": ent.ErrorDescription},
		})
	}
	return res, nil
}

// samePhone compares the national part of two numbers, ignoring formatting and country code.
func samePhone(a, b string) bool {
	da, db := digits(a), digits(b)
	if da == "" || db == "" {
		return false
	}
	if len(da) > 10 {
		da = da[len(da)-10:]
	}
	if len(db) > 10 {
		db = db[len(db)-10:]
	}
	return da == db
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
