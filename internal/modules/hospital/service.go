// README: Hospital service registers facilities, geocodes addresses and answers ownership checks.
package hospital

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"bloodlink/internal/types"
)

var ErrNotFound = errors.New("hospital not found")

type Store interface {
	Create(ctx context.Context, h *Hospital) error
	Get(ctx context.Context, id types.ID) (*Hospital, error)
	GetByOwner(ctx context.Context, ownerID types.ID) (*Hospital, error)
	Update(ctx context.Context, h *Hospital) error
}

// Geocoder resolves an address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (types.Point, error)
}

type Service struct {
	store    Store
	geocoder Geocoder
	log      *zap.Logger
	now      func() time.Time
}

// NewService builds the service. geocoder may be nil, in which case
// hospitals registered without coordinates keep an empty location.
func NewService(store Store, geocoder Geocoder, log *zap.Logger) *Service {
	return &Service{store: store, geocoder: geocoder, log: log, now: time.Now}
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Hospital, error) {
	if cmd.OwnerID == "" {
		return nil, types.NewValidationError("owner", "missing owner")
	}
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return nil, types.NewValidationError("name", "required")
	}
	if cmd.Location != nil && !cmd.Location.Valid() {
		return nil, types.NewValidationError("location", "lat/lng out of range")
	}

	h := &Hospital{
		ID:        types.NewID(),
		OwnerID:   cmd.OwnerID,
		Name:      name,
		Address:   strings.TrimSpace(cmd.Address),
		Location:  cmd.Location,
		CreatedAt: s.now().UTC(),
	}
	if h.Location == nil {
		h.Location = s.geocode(ctx, h.Address)
	}
	if err := s.store.Create(ctx, h); err != nil {
		return nil, err
	}
	s.log.Info("hospital registered",
		zap.String("hospital_id", string(h.ID)),
		zap.String("owner_id", string(h.OwnerID)),
		zap.Bool("located", h.Location != nil),
	)
	return h, nil
}

func (s *Service) Update(ctx context.Context, cmd UpdateCommand) (*Hospital, error) {
	h, err := s.store.Get(ctx, cmd.ID)
	if err != nil {
		return nil, err
	}
	if cmd.Name != nil {
		name := strings.TrimSpace(*cmd.Name)
		if name == "" {
			return nil, types.NewValidationError("name", "required")
		}
		h.Name = name
	}
	addressChanged := false
	if cmd.Address != nil {
		addr := strings.TrimSpace(*cmd.Address)
		addressChanged = addr != h.Address
		h.Address = addr
	}
	switch {
	case cmd.Location != nil:
		if !cmd.Location.Valid() {
			return nil, types.NewValidationError("location", "lat/lng out of range")
		}
		h.Location = cmd.Location
	case addressChanged:
		if p := s.geocode(ctx, h.Address); p != nil {
			h.Location = p
		}
	}
	if err := s.store.Update(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

// geocode returns nil when there is no geocoder or the lookup fails; a
// missing location never blocks registration.
func (s *Service) geocode(ctx context.Context, address string) *types.Point {
	if s.geocoder == nil || address == "" {
		return nil
	}
	p, err := s.geocoder.Geocode(ctx, address)
	if err != nil {
		s.log.Warn("geocode failed", zap.String("address", address), zap.Error(err))
		return nil
	}
	return &p
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Hospital, error) {
	return s.store.Get(ctx, id)
}

// Mine returns the hospital owned by the caller.
func (s *Service) Mine(ctx context.Context, ownerID types.ID) (*Hospital, error) {
	return s.store.GetByOwner(ctx, ownerID)
}

// OwnerOf returns the owning user of a hospital.
func (s *Service) OwnerOf(ctx context.Context, id types.ID) (types.ID, error) {
	h, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return h.OwnerID, nil
}

// HospitalName returns the display name used by blood requests.
func (s *Service) HospitalName(ctx context.Context, id types.ID) (string, error) {
	h, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return h.Name, nil
}
