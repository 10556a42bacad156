// README: Location service finds verified donors near a point and records donor coordinates.
package location

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"bloodlink/internal/types"
)

var ErrDonorNotFound = errors.New("donor not found")

// DonorStore is the persistence surface the locator needs.
type DonorStore interface {
	VerifiedDonors(ctx context.Context, accept []string) ([]Donor, error)
	SetLocation(ctx context.Context, id types.ID, p types.Point) (bool, error)
	Donor(ctx context.Context, id types.ID) (*Donor, error)
}

type Service struct {
	store DonorStore
	log   *zap.Logger
}

func NewService(store DonorStore, log *zap.Logger) *Service {
	return &Service{store: store, log: log}
}

// FindNearby returns verified donors within radiusKm of origin, nearest first.
// A non-positive radius means DefaultRadiusKm.
func (s *Service) FindNearby(ctx context.Context, origin types.Point, radiusKm float64, filter types.BloodTypeFilter) ([]DonorDistance, error) {
	if math.IsNaN(origin.Lat) || math.IsNaN(origin.Lng) {
		return nil, types.NewValidationError("lat/lng", "lat and lng are required")
	}
	if radiusKm <= 0 || math.IsNaN(radiusKm) {
		radiusKm = DefaultRadiusKm
	}

	donors, err := s.store.VerifiedDonors(ctx, filter.Accepts())
	if err != nil {
		return nil, fmt.Errorf("load verified donors: %w", err)
	}

	result := make([]DonorDistance, 0, len(donors))
	for _, d := range donors {
		if d.Location == nil || !filter.Matches(d.BloodType) {
			continue
		}
		dist := DistanceKm(origin, *d.Location)
		if math.IsNaN(dist) || dist > radiusKm {
			continue
		}
		result = append(result, DonorDistance{Donor: d, DistanceKm: dist})
	}

	SortByDistance(result,
		func(d DonorDistance) float64 { return d.DistanceKm },
		func(d DonorDistance) types.ID { return d.ID },
	)
	return result, nil
}

// Me returns the calling donor's profile.
func (s *Service) Me(ctx context.Context, donorID types.ID) (*Donor, error) {
	return s.store.Donor(ctx, donorID)
}

func (s *Service) UpdateDonorLocation(ctx context.Context, donorID types.ID, p types.Point) error {
	if !p.Valid() {
		return types.NewValidationError("location", "location.lat and location.lng must be valid coordinates")
	}
	ok, err := s.store.SetLocation(ctx, donorID, p)
	if err != nil {
		return fmt.Errorf("set donor location: %w", err)
	}
	if !ok {
		return ErrDonorNotFound
	}
	s.log.Debug("donor location updated", zap.String("donor_id", string(donorID)))
	return nil
}
