// README: Fixture helpers that put ready-made rows straight into the store.
package memory

import (
	"time"

	"github.com/shopspring/decimal"

	"carryhub/internal/modules/consignment"
	"carryhub/internal/modules/fare"
	"carryhub/internal/modules/travel"
	"carryhub/internal/modules/user"
	"carryhub/internal/types"
)

// SeedUser adds a user with the given phone and returns its id.
func (s *Store) SeedUser(name, phone string) types.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	id := types.NewID()
	s.data.users[id] = user.User{ID: id, Name: name, Phone: phone, Role: types.RoleUser, CreatedAt: now, UpdatedAt: now}
	return id
}

// SeedFare installs a fare configuration with round numbers and a 20% margin.
func (s *Store) SeedFare() fare.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := fare.Config{
		BaseFareTrain:               decimal.NewFromInt(100),
		BaseFareFlight:              decimal.NewFromInt(300),
		WeightRateTrain:             decimal.NewFromInt(20),
		WeightRateFlight:            decimal.NewFromInt(50),
		DistanceRateTrain:           decimal.NewFromInt(10),
		AdditionalDistanceRateTrain: decimal.NewFromInt(5),
		DistanceSlabRateFlight:      decimal.NewFromInt(100),
		TE:                          decimal.NewFromInt(30),
		Margin:                      decimal.RequireFromString("0.2"),
		UpdatedAt:                   time.Now(),
	}
	c := cfg
	s.data.fare = &c
	return cfg
}

// SeedConsignment adds a published Pune -> Mumbai consignment quoted for train travel.
func (s *Store) SeedConsignment(senderID types.ID, receiverPhone string) *consignment.Consignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	c := consignment.Consignment{
		ID:              types.NewID(),
		SenderID:        senderID,
		From:            consignment.Address{City: "Pune", State: "Maharashtra"},
		To:              consignment.Address{City: "Mumbai", State: "Maharashtra"},
		Receiver:        consignment.Receiver{Name: "Receiver", Phone: receiverPhone},
		WeightKg:        2,
		LengthCm:        10,
		WidthCm:         10,
		HeightCm:        10,
		EffectiveWeight: 2,
		DistanceKm:      150,
		Quotes: map[fare.Mode]fare.Quote{
			fare.ModeTrain: {TravelerEarn: decimal.NewFromInt(150), SenderPay: decimal.NewFromInt(180)},
			fare.ModeRoad:  {TravelerEarn: decimal.NewFromInt(150), SenderPay: decimal.NewFromInt(180)},
		},
		Status:    consignment.StatusPublished,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.data.consignments[c.ID] = c
	return &c
}

// SeedTravel adds an upcoming train travel on the seeded consignment route.
func (s *Store) SeedTravel(travellerID types.ID, departure time.Time) *travel.Travel {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	t := travel.Travel{
		ID:          types.NewID(),
		TravellerID: travellerID,
		From:        travel.Place{City: "Pune", State: "Maharashtra"},
		To:          travel.Place{City: "Mumbai", State: "Maharashtra"},
		DepartureAt: departure,
		ArrivalAt:   departure.Add(4 * time.Hour),
		Mode:        fare.ModeTrain,
		Status:      travel.StatusUpcoming,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.data.travels[t.ID] = t
	return &t
}

// SetDeparture moves a travel's departure, e.g. into the past to exercise expiry.
func (s *Store) SetDeparture(travelID types.ID, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.data.travels[travelID]; ok {
		t.DepartureAt = at
		s.data.travels[travelID] = t
	}
}
