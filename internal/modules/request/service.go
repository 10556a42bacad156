// README: Request service creates requests, applies the status flow and fulfills from inventory.
package request

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"bloodlink/internal/modules/inventory"
	"bloodlink/internal/types"
)

var (
	ErrNotFound          = errors.New("request not found")
	ErrInvalidState      = errors.New("invalid status transition")
	ErrConflict          = errors.New("request status conflict")
	ErrInsufficientStock = errors.New("not enough inventory available")
)

type Store interface {
	Create(ctx context.Context, r *BloodRequest) error
	Get(ctx context.Context, id types.ID) (*BloodRequest, error)
	List(ctx context.Context, status Status) ([]BloodRequest, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int) (bool, error)
}

// HospitalDirectory resolves a registered hospital's display name.
type HospitalDirectory interface {
	HospitalName(ctx context.Context, id types.ID) (string, error)
}

// Inventory is the stock mutation used by Fulfill.
type Inventory interface {
	Adjust(ctx context.Context, hospitalID types.ID, bt types.BloodType, delta int) (inventory.Line, error)
}

type Publisher interface {
	Publish(eventType string, data any)
}

type Service struct {
	store     Store
	hospitals HospitalDirectory
	inventory Inventory
	events    Publisher
	log       *zap.Logger
	now       func() time.Time
}

func NewService(store Store, hospitals HospitalDirectory, inv Inventory, events Publisher, log *zap.Logger) *Service {
	return &Service{
		store:     store,
		hospitals: hospitals,
		inventory: inv,
		events:    events,
		log:       log,
		now:       time.Now,
	}
}

type CreateCommand struct {
	RequesterID types.ID
	BloodType   types.BloodType
	Units       int
	Location    types.Point
	Hospital    HospitalRef
	Urgency     Urgency
	PatientName string
	Contact     string
	Notes       string
}

type FulfillCommand struct {
	RequestID  types.ID
	HospitalID types.ID
	// Units defaults to the requested units when zero.
	Units int
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*BloodRequest, error) {
	if cmd.RequesterID == "" {
		return nil, types.NewValidationError("requester", "missing requester")
	}
	if !cmd.BloodType.Valid() {
		return nil, types.NewValidationError("bloodGroup", "invalid blood type")
	}
	if cmd.Units <= 0 {
		return nil, types.NewValidationError("unitsNeeded", "must be a positive integer")
	}
	if !cmd.Location.Valid() {
		return nil, types.NewValidationError("location", "lat/lng out of range")
	}
	urgency := Urgency(strings.ToLower(string(cmd.Urgency)))
	if urgency == "" {
		urgency = UrgencyNormal
	}
	if !urgency.Valid() {
		return nil, types.NewValidationError("urgency", "must be critical, urgent or normal")
	}

	r := &BloodRequest{
		ID:           types.NewID(),
		Requester:    Requester{ID: cmd.RequesterID},
		BloodType:    cmd.BloodType,
		Units:        cmd.Units,
		Location:     cmd.Location,
		Hospital:     cmd.Hospital,
		HospitalName: s.resolveHospitalName(ctx, cmd.Hospital),
		Urgency:      urgency,
		PatientName:  orDefault(cmd.PatientName, DefaultPatientName),
		Contact:      orDefault(cmd.Contact, DefaultContact),
		Notes:        cmd.Notes,
		Status:       StatusOpen,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, err
	}
	created, err := s.store.Get(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	s.events.Publish(EventCreated, created)
	s.log.Info("request created",
		zap.String("request_id", string(created.ID)),
		zap.String("blood_type", created.BloodType.String()),
		zap.Int("units", created.Units),
	)
	return created, nil
}

// resolveHospitalName falls back to the default display name when the
// referenced hospital cannot be resolved.
func (s *Service) resolveHospitalName(ctx context.Context, ref HospitalRef) string {
	if name, ok := ref.Name(); ok {
		return strings.TrimSpace(name)
	}
	id, ok := ref.ID()
	if !ok || s.hospitals == nil {
		return DefaultHospitalName
	}
	name, err := s.hospitals.HospitalName(ctx, id)
	if err != nil {
		s.log.Debug("hospital name lookup failed", zap.String("hospital_id", string(id)), zap.Error(err))
		return DefaultHospitalName
	}
	return orDefault(name, DefaultHospitalName)
}

func (s *Service) Get(ctx context.Context, id types.ID) (*BloodRequest, error) {
	return s.store.Get(ctx, id)
}

// List returns requests newest first; an empty status lists all.
func (s *Service) List(ctx context.Context, status Status) ([]BloodRequest, error) {
	if status != "" && !status.Valid() {
		return nil, types.NewValidationError("status", "must be open, fulfilled or cancelled")
	}
	return s.store.List(ctx, status)
}

func (s *Service) UpdateStatus(ctx context.Context, id types.ID, to Status) (*BloodRequest, error) {
	if !to.Valid() {
		return nil, types.NewValidationError("status", "must be open, fulfilled or cancelled")
	}
	r, err := s.transition(ctx, id, to)
	if err != nil {
		return nil, err
	}
	s.events.Publish(EventUpdated, r)
	return r, nil
}

// Fulfill takes the units out of the hospital's stock of the requested blood
// type and closes the request. The stock is returned if the status change
// loses a race.
func (s *Service) Fulfill(ctx context.Context, cmd FulfillCommand) (*BloodRequest, error) {
	if cmd.HospitalID == "" {
		return nil, types.NewValidationError("hospitalId", "required")
	}
	if cmd.Units < 0 {
		return nil, types.NewValidationError("units", "must be a positive integer")
	}
	r, err := s.store.Get(ctx, cmd.RequestID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(r.Status, StatusFulfilled) {
		return nil, ErrInvalidState
	}
	units := cmd.Units
	if units == 0 {
		units = r.Units
	}

	if _, err := s.inventory.Adjust(ctx, cmd.HospitalID, r.BloodType, -units); err != nil {
		if errors.Is(err, inventory.ErrInvalidAdjustment) {
			return nil, ErrInsufficientStock
		}
		return nil, err
	}

	ok, err := s.store.UpdateStatus(ctx, r.ID, r.Status, StatusFulfilled, r.StatusVersion)
	if err == nil && !ok {
		err = ErrConflict
	}
	if err != nil {
		if _, cerr := s.inventory.Adjust(context.WithoutCancel(ctx), cmd.HospitalID, r.BloodType, units); cerr != nil {
			s.log.Error("fulfill compensation failed",
				zap.String("request_id", string(r.ID)),
				zap.String("hospital_id", string(cmd.HospitalID)),
				zap.Int("units", units),
				zap.Error(cerr),
			)
		}
		return nil, err
	}

	updated, err := s.store.Get(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	s.events.Publish(EventFulfilled, updated)
	s.log.Info("request fulfilled",
		zap.String("request_id", string(r.ID)),
		zap.String("hospital_id", string(cmd.HospitalID)),
		zap.Int("units", units),
	)
	return updated, nil
}

// RequesterOf returns the id of the user who opened the request.
func (s *Service) RequesterOf(ctx context.Context, id types.ID) (types.ID, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return r.Requester.ID, nil
}

func (s *Service) transition(ctx context.Context, id types.ID, to Status) (*BloodRequest, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(r.Status, to) {
		return nil, ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, r.ID, r.Status, to, r.StatusVersion)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	return s.store.Get(ctx, id)
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}
