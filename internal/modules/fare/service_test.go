package fare

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

type stubConfigStore struct {
	cfg   *Config
	calls int
}

func (s *stubConfigStore) Get(context.Context) (*Config, error) {
	s.calls++
	if s.cfg == nil {
		return nil, ErrConfigMissing
	}
	return s.cfg, nil
}

func (s *stubConfigStore) Save(_ context.Context, cfg *Config) error {
	s.cfg = cfg
	return nil
}

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func testConfig() Config {
	return Config{
		BaseFareTrain:               d("100"),
		BaseFareFlight:              d("300"),
		WeightRateTrain:             d("20"),
		WeightRateFlight:            d("50"),
		DistanceRateTrain:           d("10"),
		AdditionalDistanceRateTrain: d("5"),
		DistanceSlabRateFlight:      d("100"),
		TE:                          d("30"),
		Margin:                      d("0.2"),
	}
}

func TestCompute(t *testing.T) {
	fractional := testConfig()
	fractional.DistanceRateTrain = d("10.25")

	tests := []struct {
		name     string
		cfg      Config
		weight   float64
		distance float64
		mode     Mode
		wantEarn string
		wantPay  string
	}{
		{
			name: "1kg 200km train is base plus TE",
			cfg:  testConfig(), weight: 1, distance: 200, mode: ModeTrain,
			// 100 + 30 = 130; 130 * 1.2 = 156
			wantEarn: "130", wantPay: "156",
		},
		{
			name: "weight above 1kg charged per started kg",
			cfg:  testConfig(), weight: 2.5, distance: 150, mode: ModeTrain,
			// 100 + ceil(1.5)*20 + 30 = 170
			wantEarn: "170", wantPay: "204",
		},
		{
			name: "200-500km band charged per kg",
			cfg:  testConfig(), weight: 2, distance: 400, mode: ModeTrain,
			// 100 + 20 + 10*2 + 30 = 170
			wantEarn: "170", wantPay: "204",
		},
		{
			name: "beyond 500km adds started slabs",
			cfg:  testConfig(), weight: 2, distance: 1200, mode: ModeTrain,
			// 100 + 20 + (20 + ceil(700/500)*5*2) + 30 = 190
			wantEarn: "190", wantPay: "228",
		},
		{
			name: "road reuses train numbers",
			cfg:  testConfig(), weight: 2, distance: 1200, mode: ModeRoad,
			wantEarn: "190", wantPay: "228",
		},
		{
			name: "flight within first 500km",
			cfg:  testConfig(), weight: 1, distance: 500, mode: ModeFlight,
			// 300 + 30 = 330
			wantEarn: "330", wantPay: "396",
		},
		{
			name: "flight slabs and weight",
			cfg:  testConfig(), weight: 3, distance: 1600, mode: ModeFlight,
			// 300 + 2*50 + ceil(1100/500)*100 + 30 = 730
			wantEarn: "730", wantPay: "876",
		},
		{
			name: "fractional cost rounds earn to paise and pay to whole",
			cfg:  fractional, weight: 1.5, distance: 300, mode: ModeTrain,
			// 100 + 20 + 10.25*1.5 + 30 = 165.375; *1.2 = 198.45
			wantEarn: "165.38", wantPay: "198",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compute(tt.cfg, tt.weight, tt.distance, tt.mode)
			if err != nil {
				t.Fatalf("Compute() error = %v", err)
			}
			if !got.TravelerEarn.Equal(d(tt.wantEarn)) {
				t.Errorf("TravelerEarn = %s, want %s", got.TravelerEarn, tt.wantEarn)
			}
			if !got.SenderPay.Equal(d(tt.wantPay)) {
				t.Errorf("SenderPay = %s, want %s", got.SenderPay, tt.wantPay)
			}
		})
	}
}

func TestComputeSenderPayMatchesMarginFormula(t *testing.T) {
	cfg := testConfig()
	got, err := Compute(cfg, 1, 200, ModeTrain)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	want := cfg.BaseFareTrain.Add(cfg.TE).Mul(decimal.NewFromInt(1).Add(cfg.Margin)).Round(0)
	if !got.SenderPay.Equal(want) {
		t.Fatalf("SenderPay = %s, want %s", got.SenderPay, want)
	}
}

func TestComputeInvalidInput(t *testing.T) {
	cases := []struct {
		weight, distance float64
	}{
		{0, 100}, {-1, 100}, {2, 0}, {2, -50}, {0, 0},
	}
	for _, c := range cases {
		if _, err := Compute(testConfig(), c.weight, c.distance, ModeTrain); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Compute(%v, %v): expected ErrInvalidInput, got %v", c.weight, c.distance, err)
		}
	}
	if _, err := Compute(testConfig(), 1, 100, Mode("ship")); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("unknown mode: expected ErrUnknownMode, got %v", err)
	}
}

func TestCalculateValidatesBeforeReadingConfig(t *testing.T) {
	store := &stubConfigStore{cfg: nil}
	svc := NewService(store)

	if _, err := svc.Calculate(context.Background(), 0, 100, ModeTrain); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if store.calls != 0 {
		t.Fatalf("expected no config read, got %d", store.calls)
	}
	if _, err := svc.Calculate(context.Background(), 1, 100, ModeTrain); !errors.Is(err, ErrConfigMissing) {
		t.Fatalf("expected ErrConfigMissing, got %v", err)
	}
}

func TestQuotesCoversEveryMode(t *testing.T) {
	cfg := testConfig()
	svc := NewService(&stubConfigStore{cfg: &cfg})

	quotes, err := svc.Quotes(context.Background(), 2, 1200)
	if err != nil {
		t.Fatalf("Quotes: %v", err)
	}
	for _, m := range Modes {
		if _, ok := quotes[m]; !ok {
			t.Errorf("missing quote for %s", m)
		}
	}
	if !quotes[ModeRoad].SenderPay.Equal(quotes[ModeTrain].SenderPay) {
		t.Errorf("road and train differ: %s vs %s", quotes[ModeRoad].SenderPay, quotes[ModeTrain].SenderPay)
	}
}

func TestEffectiveWeight(t *testing.T) {
	if got := EffectiveWeight(1, 40, 30, 20); got != 4.8 {
		t.Errorf("volumetric weight: got %v, want 4.8", got)
	}
	if got := EffectiveWeight(6, 10, 10, 10); got != 6 {
		t.Errorf("declared weight: got %v, want 6", got)
	}
}
