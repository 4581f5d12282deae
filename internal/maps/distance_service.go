// README: Road distance between two places via the Google Distance Matrix API.
package maps

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"
)

// Distance is the first-row, first-element result of a matrix lookup.
type Distance struct {
	Text string
	Km   float64
}

type DistanceService struct {
	client *maps.Client
}

func NewDistanceService(apiKey string) (*DistanceService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &DistanceService{client: client}, nil
}

// GetDistance resolves free-form places such as "Pune, Maharashtra".
func (s *DistanceService) GetDistance(ctx context.Context, origin, destination string) (Distance, error) {
	resp, err := s.client.DistanceMatrix(ctx, &maps.DistanceMatrixRequest{
		Origins:      []string{origin},
		Destinations: []string{destination},
		Mode:         maps.TravelModeDriving,
		Units:        maps.UnitsMetric,
		Language:     "en-IN",
	})
	if err != nil {
		return Distance{}, fmt.Errorf("maps api error: %w", err)
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return Distance{}, fmt.Errorf("no distance found")
	}
	el := resp.Rows[0].Elements[0]
	if el.Status != "OK" {
		return Distance{}, fmt.Errorf("distance lookup status %s", el.Status)
	}
	return Distance{Text: el.Distance.HumanReadable, Km: float64(el.Distance.Meters) / 1000}, nil
}
