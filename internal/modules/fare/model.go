// README: Fare configuration, transport modes and quote definitions.
package fare

import (
	"time"

	"github.com/shopspring/decimal"

	"carryhub/internal/errs"
)

type Mode string

const (
	ModeTrain  Mode = "train"
	ModeFlight Mode = "flight"
	ModeRoad   Mode = "road"
)

var Modes = []Mode{ModeTrain, ModeFlight, ModeRoad}

func (m Mode) Valid() bool {
	switch m {
	case ModeTrain, ModeFlight, ModeRoad:
		return true
	}
	return false
}

// Config is the single global fare record. Road reuses the train numbers.
type Config struct {
	BaseFareTrain               decimal.Decimal
	BaseFareFlight              decimal.Decimal
	WeightRateTrain             decimal.Decimal // per started kg above the first
	WeightRateFlight            decimal.Decimal
	DistanceRateTrain           decimal.Decimal // per kg once past 200 km
	AdditionalDistanceRateTrain decimal.Decimal // per kg per started 500 km slab past 500 km
	DistanceSlabRateFlight      decimal.Decimal // flat per started 500 km slab past 500 km
	TE                          decimal.Decimal
	Margin                      decimal.Decimal
	UpdatedAt                   time.Time
}

type Quote struct {
	TravelerEarn decimal.Decimal `json:"travelerEarn"`
	SenderPay    decimal.Decimal `json:"senderPay"`
}

const (
	volumetricDivisor = 5000.0
	freeDistanceKm    = 200.0
	firstBandEndKm    = 500.0
	slabKm            = 500.0
)

var (
	ErrConfigMissing = errs.New(errs.ErrNotFound, "fare_config_missing", "fare configuration is missing")
	ErrInvalidInput  = errs.New(errs.ErrValidation, "invalid_fare_input", "weight and distance must be positive")
	ErrUnknownMode   = errs.New(errs.ErrValidation, "unknown_mode", "unknown transport mode")
)
