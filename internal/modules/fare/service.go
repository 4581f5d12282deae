// README: Fare calculator; pure computation over the current fare configuration.
package fare

import (
	"context"
	"math"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"carryhub/internal/infra"
)

type ConfigStore interface {
	Get(ctx context.Context) (*Config, error)
	Save(ctx context.Context, cfg *Config) error
}

type Service struct {
	store ConfigStore
	group singleflight.Group
}

func NewService(store ConfigStore) *Service {
	return &Service{store: store}
}

// EffectiveWeight is the larger of the declared and the volumetric weight (cm, kg).
func EffectiveWeight(declaredKg, lengthCm, widthCm, heightCm float64) float64 {
	return math.Max(declaredKg, lengthCm*widthCm*heightCm/volumetricDivisor)
}

// Compute prices one shipment. It does no I/O.
func Compute(cfg Config, weightKg, distanceKm float64, mode Mode) (Quote, error) {
	if weightKg <= 0 || distanceKm <= 0 {
		return Quote{}, ErrInvalidInput
	}

	weight := decimal.NewFromFloat(weightKg)
	extraKg := decimal.Zero
	if weightKg > 1 {
		extraKg = decimal.NewFromFloat(math.Ceil(weightKg - 1))
	}

	var cost decimal.Decimal
	switch mode {
	case ModeTrain, ModeRoad:
		distanceFare := decimal.Zero
		if distanceKm > freeDistanceKm {
			distanceFare = cfg.DistanceRateTrain.Mul(weight)
		}
		if distanceKm > firstBandEndKm {
			distanceFare = distanceFare.Add(startedSlabs(distanceKm).Mul(cfg.AdditionalDistanceRateTrain).Mul(weight))
		}
		cost = cfg.BaseFareTrain.
			Add(extraKg.Mul(cfg.WeightRateTrain)).
			Add(distanceFare).
			Add(cfg.TE)
	case ModeFlight:
		cost = cfg.BaseFareFlight.
			Add(extraKg.Mul(cfg.WeightRateFlight)).
			Add(startedSlabs(distanceKm).Mul(cfg.DistanceSlabRateFlight)).
			Add(cfg.TE)
	default:
		return Quote{}, ErrUnknownMode
	}

	return Quote{
		TravelerEarn: cost.Round(2),
		SenderPay:    cost.Mul(decimal.NewFromInt(1).Add(cfg.Margin)).Round(0),
	}, nil
}

// startedSlabs counts the 500 km slabs begun beyond the first 500 km.
func startedSlabs(distanceKm float64) decimal.Decimal {
	if distanceKm <= firstBandEndKm {
		return decimal.Zero
	}
	return decimal.NewFromFloat(math.Ceil((distanceKm - firstBandEndKm) / slabKm))
}

// Config returns the current configuration. Concurrent reads outside a transaction share one
// query; nothing is cached. A read inside a transaction stays on it and never joins a shared flight.
func (s *Service) Config(ctx context.Context) (*Config, error) {
	if infra.InTx(ctx) {
		c, err := s.store.Get(ctx)
		if err != nil {
			return nil, err
		}
		cfg := *c
		return &cfg, nil
	}
	v, err, _ := s.group.Do("fare_config", func() (any, error) {
		return s.store.Get(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}
	cfg := *v.(*Config)
	return &cfg, nil
}

func (s *Service) Calculate(ctx context.Context, weightKg, distanceKm float64, mode Mode) (Quote, error) {
	if weightKg <= 0 || distanceKm <= 0 {
		return Quote{}, ErrInvalidInput
	}
	cfg, err := s.Config(ctx)
	if err != nil {
		return Quote{}, err
	}
	return Compute(*cfg, weightKg, distanceKm, mode)
}

// Quotes prices every mode for a consignment at submission time.
func (s *Service) Quotes(ctx context.Context, weightKg, distanceKm float64) (map[Mode]Quote, error) {
	if weightKg <= 0 || distanceKm <= 0 {
		return nil, ErrInvalidInput
	}
	cfg, err := s.Config(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[Mode]Quote, len(Modes))
	for _, m := range Modes {
		q, err := Compute(*cfg, weightKg, distanceKm, m)
		if err != nil {
			return nil, err
		}
		out[m] = q
	}
	return out, nil
}

// Update replaces the global configuration (admin).
func (s *Service) Update(ctx context.Context, cfg Config) error {
	if cfg.Margin.IsNegative() || cfg.BaseFareTrain.IsNegative() || cfg.BaseFareFlight.IsNegative() {
		return ErrInvalidInput
	}
	return s.store.Save(ctx, &cfg)
}
