// README: Hospital store backed by PostgreSQL.
package hospital

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bloodlink/internal/types"
)

type PgStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

func (s *PgStore) Create(ctx context.Context, h *Hospital) error {
	lat, lng := splitPoint(h.Location)
	_, err := s.db.Exec(ctx, `
		INSERT INTO hospitals (id, owner_id, name, address, lat, lng, verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(h.ID), string(h.OwnerID), h.Name, h.Address, lat, lng, h.Verified, h.CreatedAt,
	)
	return err
}

func (s *PgStore) Get(ctx context.Context, id types.ID) (*Hospital, error) {
	return s.getOne(ctx, `WHERE id = $1`, string(id))
}

// GetByOwner returns the earliest hospital registered by the owner.
func (s *PgStore) GetByOwner(ctx context.Context, ownerID types.ID) (*Hospital, error) {
	return s.getOne(ctx, `WHERE owner_id = $1 ORDER BY created_at LIMIT 1`, string(ownerID))
}

func (s *PgStore) Update(ctx context.Context, h *Hospital) error {
	lat, lng := splitPoint(h.Location)
	tag, err := s.db.Exec(ctx, `
		UPDATE hospitals SET name = $2, address = $3, lat = $4, lng = $5
		WHERE id = $1`,
		string(h.ID), h.Name, h.Address, lat, lng,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgStore) getOne(ctx context.Context, where string, arg any) (*Hospital, error) {
	var (
		h        Hospital
		lat, lng *float64
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, owner_id, name, address, lat, lng, verified, created_at
		FROM hospitals `+where, arg,
	).Scan(&h.ID, &h.OwnerID, &h.Name, &h.Address, &lat, &lng, &h.Verified, &h.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		h.Location = &types.Point{Lat: *lat, Lng: *lng}
	}
	return &h, nil
}

func splitPoint(p *types.Point) (*float64, *float64) {
	if p == nil {
		return nil, nil
	}
	lat, lng := p.Lat, p.Lng
	return &lat, &lng
}
