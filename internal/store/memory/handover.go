// README: In-memory travel consignments, handover events and KYC records.
package memory

import (
	"context"
	"encoding/json"
	"slices"
	"time"

	"carryhub/internal/modules/handover"
	"carryhub/internal/modules/kyc"
	"carryhub/internal/types"
)

type Handovers struct{ s *Store }

func (r *Handovers) Create(ctx context.Context, tc *handover.TravelConsignment) error {
	defer r.s.enter(ctx)()
	for _, o := range r.s.data.handovers {
		if o.ConsignmentID == tc.ConsignmentID && o.TravelID == tc.TravelID {
			return handover.ErrAlreadyProvisioned
		}
	}
	r.s.data.handovers[tc.ID] = *tc
	return nil
}

func (r *Handovers) Get(ctx context.Context, id types.ID) (*handover.TravelConsignment, error) {
	defer r.s.enter(ctx)()
	tc, ok := r.s.data.handovers[id]
	if !ok {
		return nil, handover.ErrNotFound
	}
	return &tc, nil
}

func (r *Handovers) FindByPair(ctx context.Context, consignmentID, travelID types.ID) (*handover.TravelConsignment, error) {
	defer r.s.enter(ctx)()
	for _, tc := range r.s.data.handovers {
		if tc.ConsignmentID == consignmentID && tc.TravelID == travelID {
			return &tc, nil
		}
	}
	return nil, nil
}

func (r *Handovers) ListActiveForConsignment(ctx context.Context, consignmentID types.ID) ([]handover.TravelConsignment, error) {
	defer r.s.enter(ctx)()
	var out []handover.TravelConsignment
	for _, tc := range r.s.data.handovers {
		if tc.ConsignmentID == consignmentID && tc.Active() {
			out = append(out, tc)
		}
	}
	return out, nil
}

func (r *Handovers) UpdateStatus(ctx context.Context, id types.ID, from []handover.Status, to handover.Status, at time.Time) (bool, error) {
	defer r.s.enter(ctx)()
	tc, ok := r.s.data.handovers[id]
	if !ok || !slices.Contains(from, tc.Status) {
		return false, nil
	}
	tc.Status = to
	tc.UpdatedAt = at
	switch to {
	case handover.StatusInTransit:
		tc.PickupTime = &at
	case handover.StatusDelivered:
		tc.DeliveryTime = &at
	case handover.StatusCancelled:
		tc.CancelledAt = &at
	}
	r.s.data.handovers[id] = tc
	return true, nil
}

func (r *Handovers) AppendEvent(ctx context.Context, e *handover.Event) error {
	defer r.s.enter(ctx)()
	ev := *e
	ev.ID = int64(len(r.s.data.events) + 1)
	r.s.data.events = append(r.s.data.events, ev)
	return nil
}

// Events returns the recorded transitions of one travel consignment in order.
func (r *Handovers) Events(ctx context.Context, id types.ID) []handover.Event {
	defer r.s.enter(ctx)()
	var out []handover.Event
	for _, e := range r.s.data.events {
		if e.TravelConsignmentID == id {
			out = append(out, e)
		}
	}
	return out
}

type KYC struct{ s *Store }

func (r *KYC) CreateTask(ctx context.Context, t *kyc.Task) error {
	defer r.s.enter(ctx)()
	r.s.data.tasks[t.ID] = *t
	return nil
}

func (r *KYC) LockTaskByRequestID(ctx context.Context, requestID string) (*kyc.Task, error) {
	defer r.s.enter(ctx)()
	for _, t := range r.s.data.tasks {
		if t.RequestID == requestID {
			return &t, nil
		}
	}
	return nil, kyc.ErrTaskNotFound
}

func (r *KYC) LockTaskByGroupTask(ctx context.Context, groupID, taskID string) (*kyc.Task, error) {
	defer r.s.enter(ctx)()
	for _, t := range r.s.data.tasks {
		if t.GroupID == groupID && t.TaskID == taskID {
			return &t, nil
		}
	}
	return nil, kyc.ErrTaskNotFound
}

func (r *KYC) UpdateTask(ctx context.Context, id types.ID, status string, result json.RawMessage) error {
	defer r.s.enter(ctx)()
	t, ok := r.s.data.tasks[id]
	if !ok {
		return kyc.ErrTaskNotFound
	}
	t.Status = status
	t.Result = slices.Clone(result)
	t.UpdatedAt = time.Now()
	r.s.data.tasks[id] = t
	return nil
}

func (r *KYC) GetProfile(ctx context.Context, userID types.ID) (kyc.Profile, error) {
	defer r.s.enter(ctx)()
	return r.profile(userID)
}

func (r *KYC) LockProfile(ctx context.Context, userID types.ID) (kyc.Profile, error) {
	return r.GetProfile(ctx, userID)
}

func (r *KYC) SaveProfile(ctx context.Context, userID types.ID, p kyc.Profile) error {
	defer r.s.enter(ctx)()
	if _, ok := r.s.data.users[userID]; !ok {
		return kyc.ErrUserNotFound
	}
	r.s.data.profiles[userID] = p
	return nil
}

// Task returns a task by its provider request id. Used by tests.
func (r *KYC) Task(ctx context.Context, requestID string) (*kyc.Task, error) {
	return r.LockTaskByRequestID(ctx, requestID)
}

func (r *KYC) profile(userID types.ID) (kyc.Profile, error) {
	if _, ok := r.s.data.users[userID]; !ok {
		return kyc.Profile{}, kyc.ErrUserNotFound
	}
	p, ok := r.s.data.profiles[userID]
	if !ok {
		return kyc.NewProfile(), nil
	}
	return p, nil
}
