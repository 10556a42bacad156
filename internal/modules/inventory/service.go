// README: Inventory service validates replace/adjust input and owns the non-negative stock rule.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"bloodlink/internal/metrics"
	"bloodlink/internal/types"
)

var (
	ErrNotFound          = errors.New("hospital not found")
	ErrInvalidAdjustment = errors.New("resulting units would be negative")
	ErrNegativeCreate    = fmt.Errorf("%w: cannot create item with negative units", ErrInvalidAdjustment)
	ErrConflict          = errors.New("inventory update conflict, retry with fresh state")
)

// maxAdjustAttempts bounds retries after a serialization failure.
const maxAdjustAttempts = 3

// ApplyFunc computes the post-mutation units from the locked current value.
// exists is false when the line did not exist before this call.
type ApplyFunc func(current int, exists bool) (int, error)

// Store is the persistence contract. Implementations must run ReplaceLines
// and AdjustLine atomically: the ledger entries they return are written in
// the same unit of work as the lines, and AdjustLine must hold the line
// exclusively between reading current and writing the value apply returns.
type Store interface {
	ListLines(ctx context.Context, hospitalID types.ID) ([]Line, error)
	ReplaceLines(ctx context.Context, hospitalID types.ID, items []Item, at time.Time) ([]Line, error)
	AdjustLine(ctx context.Context, key Key, delta int, at time.Time, apply ApplyFunc) (Line, error)
	ListLedger(ctx context.Context, hospitalID types.ID, limit int) ([]LedgerEntry, error)
}

type Service struct {
	store   Store
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(store Store, log *zap.Logger, m *metrics.Metrics) *Service {
	return &Service{store: store, log: log, metrics: m, now: time.Now}
}

func (s *Service) List(ctx context.Context, hospitalID types.ID) ([]Line, error) {
	return s.store.ListLines(ctx, hospitalID)
}

// ReplaceAll swaps the hospital's whole inventory for items. Every item is
// validated before anything is written.
func (s *Service) ReplaceAll(ctx context.Context, hospitalID types.ID, items []Item) ([]Line, error) {
	if err := validateItems(items); err != nil {
		s.metrics.InventoryRejected("validation")
		return nil, err
	}
	lines, err := s.store.ReplaceLines(ctx, hospitalID, items, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.metrics.InventoryMutated(string(ActionReplace), len(items))
	s.log.Info("inventory replaced",
		zap.String("hospital_id", string(hospitalID)),
		zap.Int("lines", len(lines)),
	)
	return lines, nil
}

// Adjust applies delta to one line, creating it on first positive use.
func (s *Service) Adjust(ctx context.Context, hospitalID types.ID, bt types.BloodType, delta int) (Line, error) {
	if !bt.Group.Valid() || !bt.Rh.Valid() {
		s.metrics.InventoryRejected("validation")
		return Line{}, types.NewValidationError("bloodGroup/rh", "invalid group/rh")
	}
	key := Key{HospitalID: hospitalID, BloodType: bt}
	apply := func(current int, exists bool) (int, error) {
		return nextUnits(current, exists, delta)
	}

	var (
		line Line
		err  error
	)
	for attempt := 1; attempt <= maxAdjustAttempts; attempt++ {
		line, err = s.store.AdjustLine(ctx, key, delta, s.now().UTC(), apply)
		if !errors.Is(err, ErrConflict) {
			break
		}
		s.log.Warn("inventory adjust conflict",
			zap.String("hospital_id", string(hospitalID)),
			zap.String("blood_type", bt.String()),
			zap.Int("attempt", attempt),
		)
	}
	if err != nil {
		if errors.Is(err, ErrInvalidAdjustment) {
			s.metrics.InventoryRejected("negative")
		}
		return Line{}, err
	}
	s.metrics.InventoryMutated(string(ActionAdjust), 1)
	return line, nil
}

// Logs lists ledger entries newest first. limit <= 0 means the default and
// anything above MaxLedgerLimit is capped.
func (s *Service) Logs(ctx context.Context, hospitalID types.ID, limit int) ([]LedgerEntry, error) {
	return s.store.ListLedger(ctx, hospitalID, clampLimit(limit))
}

func (s *Service) Expiry(ctx context.Context, hospitalID types.ID) ([]ExpiryView, error) {
	lines, err := s.store.ListLines(ctx, hospitalID)
	if err != nil {
		return nil, err
	}
	return ProjectExpiry(lines, s.now()), nil
}

func nextUnits(current int, exists bool, delta int) (int, error) {
	if !exists {
		if delta < 0 {
			return 0, ErrNegativeCreate
		}
		return delta, nil
	}
	next := current + delta
	if next < 0 {
		return 0, ErrInvalidAdjustment
	}
	return next, nil
}

func validateItems(items []Item) error {
	seen := make(map[types.BloodType]struct{}, len(items))
	for i, it := range items {
		field := fmt.Sprintf("items[%d]", i)
		if !it.BloodGroup.Valid() {
			return types.NewValidationError(field+".bloodGroup", "invalid bloodGroup")
		}
		if !it.Rh.Valid() {
			return types.NewValidationError(field+".rh", "invalid rh")
		}
		if it.Units < 0 {
			return types.NewValidationError(field+".units", "invalid units (must be >= 0)")
		}
		bt := types.BloodType{Group: it.BloodGroup, Rh: it.Rh}
		if _, dup := seen[bt]; dup {
			return types.NewValidationError(field, "duplicate entry for "+bt.String())
		}
		seen[bt] = struct{}{}
	}
	return nil
}
