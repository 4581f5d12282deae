// README: Fare configuration store backed by PostgreSQL.
package fare

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"carryhub/internal/infra"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context) (*Config, error) {
	row := infra.Conn(ctx, s.db).QueryRow(ctx, `
		SELECT base_fare_train, base_fare_flight, weight_rate_train, weight_rate_flight,
		       distance_rate_train, additional_distance_rate_train, distance_slab_rate_flight,
		       te, margin, updated_at
		FROM fare_configs
		WHERE id = 1`)
	var c Config
	err := row.Scan(
		&c.BaseFareTrain, &c.BaseFareFlight, &c.WeightRateTrain, &c.WeightRateFlight,
		&c.DistanceRateTrain, &c.AdditionalDistanceRateTrain, &c.DistanceSlabRateFlight,
		&c.TE, &c.Margin, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrConfigMissing
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) Save(ctx context.Context, c *Config) error {
	c.UpdatedAt = time.Now()
	_, err := infra.Conn(ctx, s.db).Exec(ctx, `
		INSERT INTO fare_configs (
			id, base_fare_train, base_fare_flight, weight_rate_train, weight_rate_flight,
			distance_rate_train, additional_distance_rate_train, distance_slab_rate_flight,
			te, margin, updated_at
		) VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			base_fare_train = EXCLUDED.base_fare_train,
			base_fare_flight = EXCLUDED.base_fare_flight,
			weight_rate_train = EXCLUDED.weight_rate_train,
			weight_rate_flight = EXCLUDED.weight_rate_flight,
			distance_rate_train = EXCLUDED.distance_rate_train,
			additional_distance_rate_train = EXCLUDED.additional_distance_rate_train,
			distance_slab_rate_flight = EXCLUDED.distance_slab_rate_flight,
			te = EXCLUDED.te,
			margin = EXCLUDED.margin,
			updated_at = EXCLUDED.updated_at`,
		c.BaseFareTrain, c.BaseFareFlight, c.WeightRateTrain, c.WeightRateFlight,
		c.DistanceRateTrain, c.AdditionalDistanceRateTrain, c.DistanceSlabRateFlight,
		c.TE, c.Margin, c.UpdatedAt,
	)
	return err
}
