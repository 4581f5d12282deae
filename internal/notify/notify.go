// README: Realtime user events; fanned out to FCM push and the Kafka event stream.
package notify

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"carryhub/internal/types"
)

const (
	EventCarryRequestCreated  = "carry_request.created"
	EventCarryRequestAccepted = "carry_request.accepted"
	EventCarryRequestRejected = "carry_request.rejected"
	EventPaymentSuccess       = "payment.success"
	EventPaymentFailed        = "payment.failed"
	EventHandoverPickedUp     = "handover.picked_up"
	EventHandoverDelivered    = "handover.delivered"
	EventKYCUpdated           = "kyc.updated"
)

type Event struct {
	Type   string            `json:"type"`
	UserID types.ID          `json:"user_id"`
	Data   map[string]string `json:"data,omitempty"`
	At     time.Time         `json:"at"`
}

type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Fanout delivers to every notifier concurrently and returns the first error.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, n := range f {
		n := n
		g.Go(func() error { return n.Notify(gctx, ev) })
	}
	return g.Wait()
}

type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }

// Send is the fire-and-forget helper services call after commit.
func Send(ctx context.Context, n Notifier, ev Event) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, ev); err != nil {
		log.Printf("[notify] %s to %s: %v", ev.Type, ev.UserID, err)
	}
}
