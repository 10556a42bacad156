// README: Geocoding via the Google Maps API; resolves hospital addresses to points.
package maps

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"googlemaps.github.io/maps"

	"bloodlink/internal/types"
)

// ErrNoResult is returned when an address cannot be resolved.
var ErrNoResult = errors.New("address not found")

// GeocodeService resolves street addresses to coordinates with the Google Maps API.
type GeocodeService struct {
	client *maps.Client
	region string
}

// NewGeocodeService creates a GeocodeService. Extra client options (for
// example maps.WithBaseURL) are passed through to the maps client.
func NewGeocodeService(apiKey string, opts ...maps.ClientOption) (*GeocodeService, error) {
	opts = append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)
	client, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GeocodeService{client: client}, nil
}

// WithRegion biases results to a ccTLD region code such as "in".
func (s *GeocodeService) WithRegion(region string) *GeocodeService {
	s.region = region
	return s
}

// Geocode returns the location of the best match for address.
func (s *GeocodeService) Geocode(ctx context.Context, address string) (types.Point, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return types.Point{}, ErrNoResult
	}
	results, err := s.client.Geocode(ctx, &maps.GeocodingRequest{
		Address: address,
		Region:  s.region,
	})
	if err != nil {
		return types.Point{}, fmt.Errorf("maps api error: %w", err)
	}
	if len(results) == 0 {
		return types.Point{}, ErrNoResult
	}
	loc := results[0].Geometry.Location
	return types.Point{Lat: loc.Lat, Lng: loc.Lng}, nil
}
