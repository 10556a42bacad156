package http_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"bloodlink/internal/infra"
	"bloodlink/internal/modules/hospital"
	"bloodlink/internal/modules/inventory"
	"bloodlink/internal/modules/location"
	"bloodlink/internal/modules/matching"
	"bloodlink/internal/modules/request"
	"bloodlink/internal/types"
)

// tokenVerifier maps raw bearer tokens to identities.
type tokenVerifier map[string]infra.Identity

func (v tokenVerifier) VerifyIDToken(_ context.Context, token string) (*infra.Identity, error) {
	id, ok := v[token]
	if !ok {
		return nil, errors.New("unknown token")
	}
	return &id, nil
}

type hospitalStore struct {
	mu   sync.Mutex
	byID map[types.ID]hospital.Hospital
}

func (s *hospitalStore) Create(_ context.Context, h *hospital.Hospital) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[h.ID] = *h
	return nil
}

func (s *hospitalStore) Get(_ context.Context, id types.ID) (*hospital.Hospital, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.byID[id]
	if !ok {
		return nil, hospital.ErrNotFound
	}
	return &h, nil
}

func (s *hospitalStore) GetByOwner(_ context.Context, ownerID types.ID) (*hospital.Hospital, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.byID {
		if h.OwnerID == ownerID {
			return &h, nil
		}
	}
	return nil, hospital.ErrNotFound
}

func (s *hospitalStore) Update(_ context.Context, h *hospital.Hospital) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[h.ID]; !ok {
		return hospital.ErrNotFound
	}
	s.byID[h.ID] = *h
	return nil
}

// inventoryStore treats every hospital in hospitals as existing.
type inventoryStore struct {
	mu        sync.Mutex
	hospitals *hospitalStore
	lines     map[inventory.Key]inventory.Line
	ledger    []inventory.LedgerEntry
}

func (s *inventoryStore) known(id types.ID) bool {
	_, err := s.hospitals.Get(context.Background(), id)
	return err == nil
}

func (s *inventoryStore) ListLines(_ context.Context, hospitalID types.ID) ([]inventory.Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linesFor(hospitalID), nil
}

func (s *inventoryStore) linesFor(hospitalID types.ID) []inventory.Line {
	var out []inventory.Line
	for k, l := range s.lines {
		if k.HospitalID == hospitalID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key().BloodType.String() < out[j].Key().BloodType.String()
	})
	return out
}

func (s *inventoryStore) ReplaceLines(_ context.Context, hospitalID types.ID, items []inventory.Item, at time.Time) ([]inventory.Line, error) {
	if !s.known(hospitalID) {
		return nil, inventory.ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.lines {
		if k.HospitalID == hospitalID {
			delete(s.lines, k)
		}
	}
	for _, it := range items {
		l := inventory.Line{HospitalID: hospitalID, BloodGroup: it.BloodGroup, Rh: it.Rh, Units: it.Units, LastUpdated: at}
		s.lines[l.Key()] = l
		s.ledger = append(s.ledger, inventory.NewReplaceEntry(hospitalID, it, at))
	}
	return s.linesFor(hospitalID), nil
}

func (s *inventoryStore) AdjustLine(_ context.Context, key inventory.Key, delta int, at time.Time, apply inventory.ApplyFunc) (inventory.Line, error) {
	if !s.known(key.HospitalID) {
		return inventory.Line{}, inventory.ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, exists := s.lines[key]
	next, err := apply(cur.Units, exists)
	if err != nil {
		return inventory.Line{}, err
	}
	l := inventory.Line{HospitalID: key.HospitalID, BloodGroup: key.BloodType.Group, Rh: key.BloodType.Rh, Units: next, LastUpdated: at}
	s.lines[key] = l
	s.ledger = append(s.ledger, inventory.NewAdjustEntry(key, delta, cur.Units, next, at))
	return l, nil
}

func (s *inventoryStore) ListLedger(_ context.Context, hospitalID types.ID, limit int) ([]inventory.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []inventory.LedgerEntry
	for i := len(s.ledger) - 1; i >= 0 && len(out) < limit; i-- {
		if s.ledger[i].HospitalID == hospitalID {
			out = append(out, s.ledger[i])
		}
	}
	return out, nil
}

type requestStore struct {
	mu   sync.Mutex
	byID map[types.ID]request.BloodRequest
}

func (s *requestStore) Create(_ context.Context, r *request.BloodRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[r.ID] = *r
	return nil
}

func (s *requestStore) Get(_ context.Context, id types.ID) (*request.BloodRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok {
		return nil, request.ErrNotFound
	}
	return &r, nil
}

func (s *requestStore) List(_ context.Context, status request.Status) ([]request.BloodRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []request.BloodRequest
	for _, r := range s.byID {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *requestStore) UpdateStatus(_ context.Context, id types.ID, from, to request.Status, version int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok || r.Status != from || r.StatusVersion != version {
		return false, nil
	}
	r.Status = to
	r.StatusVersion++
	s.byID[id] = r
	return true, nil
}

type donorStore struct {
	mu     sync.Mutex
	donors []location.Donor
}

func (s *donorStore) VerifiedDonors(_ context.Context, accept []string) ([]location.Donor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]location.Donor(nil), s.donors...), nil
}

func (s *donorStore) SetLocation(_ context.Context, id types.ID, p types.Point) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.donors {
		if s.donors[i].ID == id {
			s.donors[i].Location = &p
			return true, nil
		}
	}
	return false, nil
}

func (s *donorStore) Donor(_ context.Context, id types.ID) (*location.Donor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.donors {
		if d.ID == id {
			return &d, nil
		}
	}
	return nil, location.ErrDonorNotFound
}

type matchStore struct {
	mu      sync.Mutex
	matches map[types.ID][]matching.Match
}

func (s *matchStore) ReplaceMatches(_ context.Context, requestID types.ID, ms []matching.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[requestID] = append([]matching.Match(nil), ms...)
	return nil
}

func (s *matchStore) ListMatches(_ context.Context, requestID types.ID) ([]matching.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]matching.Match(nil), s.matches[requestID]...), nil
}
