// README: Consignment store backed by PostgreSQL; quotes are kept as JSONB.
package consignment

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"carryhub/internal/infra"
	"carryhub/internal/modules/fare"
	"carryhub/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, c *Consignment) error {
	quotes, err := json.Marshal(c.Quotes)
	if err != nil {
		return err
	}
	_, err = infra.Conn(ctx, s.db).Exec(ctx, `
		INSERT INTO consignments (
			id, sender_id, status,
			from_line, from_city, from_state, from_pincode, from_lat, from_lng,
			to_line, to_city, to_state, to_pincode, to_lat, to_lng,
			receiver_name, receiver_phone, description,
			weight_kg, length_cm, width_cm, height_cm, effective_weight_kg, distance_km,
			quotes, created_at, updated_at
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7, $8, $9,
			$10, $11, $12, $13, $14, $15,
			$16, $17, $18,
			$19, $20, $21, $22, $23, $24,
			$25, $26, $26
		)`,
		string(c.ID), string(c.SenderID), string(c.Status),
		c.From.Line, c.From.City, c.From.State, c.From.Pincode, c.From.Point.Lat, c.From.Point.Lng,
		c.To.Line, c.To.City, c.To.State, c.To.Pincode, c.To.Point.Lat, c.To.Point.Lng,
		c.Receiver.Name, c.Receiver.Phone, c.Description,
		c.WeightKg, c.LengthCm, c.WidthCm, c.HeightCm, c.EffectiveWeight, c.DistanceKm,
		quotes, c.CreatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Consignment, error) {
	row := infra.Conn(ctx, s.db).QueryRow(ctx, `
		SELECT id, sender_id, traveller_id, status,
		       from_line, from_city, from_state, from_pincode, from_lat, from_lng,
		       to_line, to_city, to_state, to_pincode, to_lat, to_lng,
		       receiver_name, receiver_phone, description,
		       weight_kg, length_cm, width_cm, height_cm, effective_weight_kg, distance_km,
		       quotes, assigned_at, cancelled_at, created_at, updated_at
		FROM consignments WHERE id = $1`, string(id))

	var c Consignment
	var travellerID *string
	var quotes []byte
	err := row.Scan(
		&c.ID, &c.SenderID, &travellerID, &c.Status,
		&c.From.Line, &c.From.City, &c.From.State, &c.From.Pincode, &c.From.Point.Lat, &c.From.Point.Lng,
		&c.To.Line, &c.To.City, &c.To.State, &c.To.Pincode, &c.To.Point.Lat, &c.To.Point.Lng,
		&c.Receiver.Name, &c.Receiver.Phone, &c.Description,
		&c.WeightKg, &c.LengthCm, &c.WidthCm, &c.HeightCm, &c.EffectiveWeight, &c.DistanceKm,
		&quotes, &c.AssignedAt, &c.CancelledAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if travellerID != nil {
		t := types.ID(*travellerID)
		c.TravellerID = &t
	}
	c.Quotes = map[fare.Mode]fare.Quote{}
	if err := json.Unmarshal(quotes, &c.Quotes); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from []Status, to Status) (bool, error) {
	tag, err := infra.Conn(ctx, s.db).Exec(ctx, `
		UPDATE consignments
		SET status = $1,
		    cancelled_at = CASE WHEN $1 = 'cancelled' THEN NOW() ELSE cancelled_at END,
		    updated_at = NOW()
		WHERE id = $2 AND status = ANY($3)`,
		string(to), string(id), statusStrings(from),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) Assign(ctx context.Context, id, travellerID types.ID, from []Status, at time.Time) (bool, error) {
	tag, err := infra.Conn(ctx, s.db).Exec(ctx, `
		UPDATE consignments
		SET status = 'assigned', traveller_id = $1, assigned_at = $2, updated_at = $2
		WHERE id = $3 AND status = ANY($4)`,
		string(travellerID), at, string(id), statusStrings(from),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func statusStrings(in []Status) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}
