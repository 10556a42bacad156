// README: Matching service ranks verified donors of the exact requested type near a request.
package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"bloodlink/internal/metrics"
	"bloodlink/internal/modules/location"
	"bloodlink/internal/modules/request"
	"bloodlink/internal/types"
)

var ErrNotFound = errors.New("request not found")

type Store interface {
	// ReplaceMatches swaps the request's match set in one transaction and
	// returns ErrNotFound when the request does not exist.
	ReplaceMatches(ctx context.Context, requestID types.ID, matches []Match) error
	ListMatches(ctx context.Context, requestID types.ID) ([]Match, error)
}

type RequestReader interface {
	Get(ctx context.Context, id types.ID) (*request.BloodRequest, error)
}

type DonorFinder interface {
	FindNearby(ctx context.Context, origin types.Point, radiusKm float64, filter types.BloodTypeFilter) ([]location.DonorDistance, error)
}

type Service struct {
	store    Store
	requests RequestReader
	donors   DonorFinder
	radiusKm float64
	log      *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewService(store Store, requests RequestReader, donors DonorFinder, radiusKm float64, log *zap.Logger, m *metrics.Metrics) *Service {
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}
	return &Service{
		store:    store,
		requests: requests,
		donors:   donors,
		radiusKm: radiusKm,
		log:      log,
		metrics:  m,
		now:      time.Now,
	}
}

// Run recomputes the request's matches and replaces any previous set.
// Candidates must carry exactly the requested blood type; no cross-type
// compatibility is applied.
func (s *Service) Run(ctx context.Context, requestID types.ID) ([]Match, error) {
	req, err := s.requests.Get(ctx, requestID)
	if errors.Is(err, request.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	nearby, err := s.donors.FindNearby(ctx, req.Location, s.radiusKm, types.ExactType(req.BloodType))
	if err != nil {
		return nil, fmt.Errorf("find donors: %w", err)
	}

	now := s.now().UTC()
	matches := make([]Match, 0, len(nearby))
	for _, d := range nearby {
		matches = append(matches, Match{
			ID:             types.NewID(),
			RequestID:      req.ID,
			DonorID:        d.ID,
			DistanceKm:     d.DistanceKm,
			Score:          Score(d.DistanceKm),
			UnitsAvailable: unitsPerDonor,
			CreatedAt:      now,
		})
	}
	if err := s.store.ReplaceMatches(ctx, req.ID, matches); err != nil {
		return nil, err
	}

	s.metrics.MatchRun(len(matches))
	s.log.Info("matching run",
		zap.String("request_id", string(req.ID)),
		zap.String("blood_type", req.BloodType.String()),
		zap.Int("matches", len(matches)),
	)
	return matches, nil
}

// Get lists the persisted matches, best score first.
func (s *Service) Get(ctx context.Context, requestID types.ID) ([]Match, error) {
	return s.store.ListMatches(ctx, requestID)
}
