// README: Donor location store backed by the Postgres users table.
package location

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bloodlink/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// VerifiedDonors returns verified donors that have both coordinates set,
// restricted to the given blood-type strings when accept is non-empty.
func (s *Store) VerifiedDonors(ctx context.Context, accept []string) ([]Donor, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, email, COALESCE(phone, ''), COALESCE(blood_group, ''), lat, lng
		FROM users
		WHERE role = 'donor'
		  AND is_verified
		  AND lat IS NOT NULL
		  AND lng IS NOT NULL
		  AND (COALESCE(cardinality($1::text[]), 0) = 0 OR blood_group = ANY($1))`,
		accept,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Donor, error) {
		var d Donor
		var p types.Point
		if err := row.Scan(&d.ID, &d.Name, &d.Email, &d.Phone, &d.BloodType, &p.Lat, &p.Lng); err != nil {
			return Donor{}, err
		}
		d.Location = &p
		return d, nil
	})
}

// Donor loads one donor profile; the location is nil until coordinates are set.
func (s *Store) Donor(ctx context.Context, id types.ID) (*Donor, error) {
	var (
		d        Donor
		lat, lng *float64
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, name, email, COALESCE(phone, ''), COALESCE(blood_group, ''), lat, lng
		FROM users
		WHERE id = $1 AND role = 'donor'`, string(id),
	).Scan(&d.ID, &d.Name, &d.Email, &d.Phone, &d.BloodType, &lat, &lng)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDonorNotFound
	}
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		d.Location = &types.Point{Lat: *lat, Lng: *lng}
	}
	return &d, nil
}

// SetLocation updates a donor's coordinates. It reports false when no donor
// row matched.
func (s *Store) SetLocation(ctx context.Context, id types.ID, p types.Point) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE users SET lat = $1, lng = $2
		WHERE id = $3 AND role = 'donor'`,
		p.Lat, p.Lng, string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
