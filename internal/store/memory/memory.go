// README: In-memory implementation of every repository, with snapshot-rollback transactions.
package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"carryhub/internal/infra"
	"carryhub/internal/modules/carryrequest"
	"carryhub/internal/modules/consignment"
	"carryhub/internal/modules/earning"
	"carryhub/internal/modules/fare"
	"carryhub/internal/modules/handover"
	"carryhub/internal/modules/kyc"
	"carryhub/internal/modules/payment"
	"carryhub/internal/modules/payout"
	"carryhub/internal/modules/travel"
	"carryhub/internal/modules/user"
	"carryhub/internal/types"
)

// Store serialises every call on one mutex. A transaction holds the mutex for its whole
// body and restores a snapshot when fn fails, so isolation is serializable.
type Store struct {
	mu   sync.Mutex
	data *state
}

type state struct {
	users        map[types.ID]user.User
	profiles     map[types.ID]kyc.Profile
	consignments map[types.ID]consignment.Consignment
	travels      map[types.ID]travel.Travel
	requests     map[types.ID]carryrequest.CarryRequest
	payments     map[types.ID]payment.Payment
	handovers    map[types.ID]handover.TravelConsignment
	events       []handover.Event
	earnings     map[types.ID]earning.Earning
	payouts      map[types.ID]payout.Payout
	accounts     map[types.ID]payout.Account
	tasks        map[types.ID]kyc.Task
	fare         *fare.Config
}

func New() *Store {
	return &Store{data: &state{
		users:        map[types.ID]user.User{},
		profiles:     map[types.ID]kyc.Profile{},
		consignments: map[types.ID]consignment.Consignment{},
		travels:      map[types.ID]travel.Travel{},
		requests:     map[types.ID]carryrequest.CarryRequest{},
		payments:     map[types.ID]payment.Payment{},
		handovers:    map[types.ID]handover.TravelConsignment{},
		earnings:     map[types.ID]earning.Earning{},
		payouts:      map[types.ID]payout.Payout{},
		accounts:     map[types.ID]payout.Account{},
		tasks:        map[types.ID]kyc.Task{},
	}}
}

func (st *state) clone() *state {
	c := &state{
		users:        maps.Clone(st.users),
		profiles:     maps.Clone(st.profiles),
		consignments: maps.Clone(st.consignments),
		travels:      maps.Clone(st.travels),
		requests:     maps.Clone(st.requests),
		payments:     maps.Clone(st.payments),
		handovers:    maps.Clone(st.handovers),
		events:       slices.Clone(st.events),
		earnings:     maps.Clone(st.earnings),
		payouts:      maps.Clone(st.payouts),
		accounts:     maps.Clone(st.accounts),
		tasks:        maps.Clone(st.tasks),
	}
	if st.fare != nil {
		f := *st.fare
		c.fare = &f
	}
	return c
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if infra.InTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.data.clone()
	defer func() {
		if p := recover(); p != nil {
			s.data = snap
			panic(p)
		}
		if err != nil {
			s.data = snap
		}
	}()
	return fn(infra.MarkTx(ctx))
}

// enter takes the store mutex unless ctx already runs inside RunInTx.
func (s *Store) enter(ctx context.Context) func() {
	if infra.InTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) Users() *Users                 { return &Users{s} }
func (s *Store) KYC() *KYC                     { return &KYC{s} }
func (s *Store) Consignments() *Consignments   { return &Consignments{s} }
func (s *Store) Travels() *Travels             { return &Travels{s} }
func (s *Store) CarryRequests() *CarryRequests { return &CarryRequests{s} }
func (s *Store) Payments() *Payments           { return &Payments{s} }
func (s *Store) Handovers() *Handovers         { return &Handovers{s} }
func (s *Store) Earnings() *Earnings           { return &Earnings{s} }
func (s *Store) Payouts() *Payouts             { return &Payouts{s} }
func (s *Store) Fares() *Fares                 { return &Fares{s} }

func byCreated[T any](items []T, at func(T) time.Time) []T {
	sort.SliceStable(items, func(i, j int) bool { return at(items[i]).Before(at(items[j])) })
	return items
}

// Users

type Users struct{ s *Store }

func (r *Users) Upsert(ctx context.Context, u *user.User) error {
	defer r.s.enter(ctx)()
	for id, other := range r.s.data.users {
		if id == u.ID {
			continue
		}
		if other.Phone == u.Phone {
			return user.ErrPhoneTaken
		}
		if u.Email != nil && other.Email != nil && *u.Email == *other.Email {
			return user.ErrEmailTaken
		}
	}
	next := *u
	if prev, ok := r.s.data.users[u.ID]; ok {
		next.CreatedAt = prev.CreatedAt
		next.Role = prev.Role
		if next.DeviceToken == "" {
			next.DeviceToken = prev.DeviceToken
		}
	}
	r.s.data.users[u.ID] = next
	return nil
}

func (r *Users) Get(ctx context.Context, id types.ID) (*user.User, error) {
	defer r.s.enter(ctx)()
	u, ok := r.s.data.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return &u, nil
}

func (r *Users) DeviceToken(ctx context.Context, id types.ID) (string, error) {
	defer r.s.enter(ctx)()
	u, ok := r.s.data.users[id]
	if !ok {
		return "", user.ErrNotFound
	}
	return u.DeviceToken, nil
}

// Fares

type Fares struct{ s *Store }

func (r *Fares) Get(ctx context.Context) (*fare.Config, error) {
	defer r.s.enter(ctx)()
	if r.s.data.fare == nil {
		return nil, fare.ErrConfigMissing
	}
	c := *r.s.data.fare
	return &c, nil
}

func (r *Fares) Save(ctx context.Context, c *fare.Config) error {
	defer r.s.enter(ctx)()
	c.UpdatedAt = time.Now()
	next := *c
	r.s.data.fare = &next
	return nil
}

// Consignments

type Consignments struct{ s *Store }

func (r *Consignments) Create(ctx context.Context, c *consignment.Consignment) error {
	defer r.s.enter(ctx)()
	r.s.data.consignments[c.ID] = *c
	return nil
}

func (r *Consignments) Get(ctx context.Context, id types.ID) (*consignment.Consignment, error) {
	defer r.s.enter(ctx)()
	c, ok := r.s.data.consignments[id]
	if !ok {
		return nil, consignment.ErrNotFound
	}
	return &c, nil
}

func (r *Consignments) UpdateStatus(ctx context.Context, id types.ID, from []consignment.Status, to consignment.Status) (bool, error) {
	defer r.s.enter(ctx)()
	c, ok := r.s.data.consignments[id]
	if !ok || !slices.Contains(from, c.Status) {
		return false, nil
	}
	now := time.Now()
	c.Status = to
	c.UpdatedAt = now
	if to == consignment.StatusCancelled {
		c.CancelledAt = &now
	}
	r.s.data.consignments[id] = c
	return true, nil
}

func (r *Consignments) Assign(ctx context.Context, id, travellerID types.ID, from []consignment.Status, at time.Time) (bool, error) {
	defer r.s.enter(ctx)()
	c, ok := r.s.data.consignments[id]
	if !ok || !slices.Contains(from, c.Status) {
		return false, nil
	}
	tid := travellerID
	c.Status = consignment.StatusAssigned
	c.TravellerID = &tid
	c.AssignedAt = &at
	c.UpdatedAt = at
	r.s.data.consignments[id] = c
	return true, nil
}

// Travels

type Travels struct{ s *Store }

func (r *Travels) Create(ctx context.Context, t *travel.Travel) error {
	defer r.s.enter(ctx)()
	r.s.data.travels[t.ID] = *t
	return nil
}

func (r *Travels) Get(ctx context.Context, id types.ID) (*travel.Travel, error) {
	defer r.s.enter(ctx)()
	t, ok := r.s.data.travels[id]
	if !ok {
		return nil, travel.ErrNotFound
	}
	return &t, nil
}

func (r *Travels) UpdateStatus(ctx context.Context, id types.ID, from, to travel.Status) (bool, error) {
	defer r.s.enter(ctx)()
	t, ok := r.s.data.travels[id]
	if !ok || t.Status != from {
		return false, nil
	}
	t.Status = to
	t.UpdatedAt = time.Now()
	r.s.data.travels[id] = t
	return true, nil
}

// CarryRequests

type CarryRequests struct{ s *Store }

func (r *CarryRequests) Create(ctx context.Context, cr *carryrequest.CarryRequest) error {
	defer r.s.enter(ctx)()
	if cr.Status == carryrequest.StatusPending {
		for _, o := range r.s.data.requests {
			if o.Status == carryrequest.StatusPending && o.ConsignmentID == cr.ConsignmentID &&
				o.TravellerID == cr.TravellerID && o.RequestedBy == cr.RequestedBy {
				return carryrequest.ErrDuplicateRequest
			}
		}
	}
	r.s.data.requests[cr.ID] = *cr
	return nil
}

func (r *CarryRequests) Get(ctx context.Context, id types.ID) (*carryrequest.CarryRequest, error) {
	defer r.s.enter(ctx)()
	cr, ok := r.s.data.requests[id]
	if !ok {
		return nil, carryrequest.ErrNotFound
	}
	return &cr, nil
}

func (r *CarryRequests) HasPending(ctx context.Context, consignmentID, travellerID, requestedBy types.ID) (bool, error) {
	defer r.s.enter(ctx)()
	for _, o := range r.s.data.requests {
		if o.Status == carryrequest.StatusPending && o.ConsignmentID == consignmentID &&
			o.TravellerID == travellerID && o.RequestedBy == requestedBy {
			return true, nil
		}
	}
	return false, nil
}

func (r *CarryRequests) ListForConsignment(ctx context.Context, consignmentID types.ID) ([]carryrequest.CarryRequest, error) {
	defer r.s.enter(ctx)()
	return r.filter(func(cr carryrequest.CarryRequest) bool { return cr.ConsignmentID == consignmentID }), nil
}

func (r *CarryRequests) ListOpen(ctx context.Context, f carryrequest.Filter) ([]carryrequest.CarryRequest, error) {
	defer r.s.enter(ctx)()
	return r.filter(func(cr carryrequest.CarryRequest) bool {
		return cr.Open() &&
			(f.ConsignmentID == "" || cr.ConsignmentID == f.ConsignmentID) &&
			(f.TravelID == "" || cr.TravelID == f.TravelID)
	}), nil
}

func (r *CarryRequests) UpdateStatus(ctx context.Context, id types.ID, from []carryrequest.Status, to carryrequest.Status, reason string) (bool, error) {
	defer r.s.enter(ctx)()
	cr, ok := r.s.data.requests[id]
	if !ok || !slices.Contains(from, cr.Status) {
		return false, nil
	}
	cr.Status = to
	cr.Reason = reason
	cr.UpdatedAt = time.Now()
	r.s.data.requests[id] = cr
	return true, nil
}

func (r *CarryRequests) RejectSiblings(ctx context.Context, consignmentID, acceptedID types.ID, reason string) (int64, error) {
	defer r.s.enter(ctx)()
	var n int64
	for id, cr := range r.s.data.requests {
		if cr.ConsignmentID != consignmentID || id == acceptedID || !cr.Open() {
			continue
		}
		cr.Status = carryrequest.StatusRejected
		cr.Reason = reason
		cr.UpdatedAt = time.Now()
		r.s.data.requests[id] = cr
		n++
	}
	return n, nil
}

func (r *CarryRequests) ListDeparted(ctx context.Context, now time.Time) ([]carryrequest.CarryRequest, error) {
	defer r.s.enter(ctx)()
	return r.filter(func(cr carryrequest.CarryRequest) bool {
		t, ok := r.s.data.travels[cr.TravelID]
		return cr.Open() && ok && !t.DepartureAt.After(now)
	}), nil
}

func (r *CarryRequests) filter(keep func(carryrequest.CarryRequest) bool) []carryrequest.CarryRequest {
	var out []carryrequest.CarryRequest
	for _, cr := range r.s.data.requests {
		if keep(cr) {
			out = append(out, cr)
		}
	}
	return byCreated(out, func(cr carryrequest.CarryRequest) time.Time { return cr.CreatedAt })
}
