// README: Match store backed by PostgreSQL; a run replaces the set under the request row lock.
package matching

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

func (s *PgStore) ReplaceMatches(ctx context.Context, requestID types.ID, matches []Match) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var id string
		err := tx.QueryRow(ctx, `SELECT id FROM blood_requests WHERE id = $1 FOR UPDATE`, string(requestID)).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM matches WHERE request_id = $1`, string(requestID)); err != nil {
			return err
		}
		if len(matches) == 0 {
			return nil
		}
		rows := make([][]any, len(matches))
		for i, m := range matches {
			rows[i] = []any{string(m.ID), string(m.RequestID), string(m.DonorID), m.DistanceKm, m.Score, m.UnitsAvailable, m.CreatedAt}
		}
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"matches"},
			[]string{"id", "request_id", "donor_id", "distance_km", "score", "units_available", "created_at"},
			pgx.CopyFromRows(rows),
		)
		return err
	})
}

func (s *PgStore) ListMatches(ctx context.Context, requestID types.ID) ([]Match, error) {
	rows, err := s.db.Query(ctx, `
		SELECT m.id, m.request_id, m.donor_id, m.distance_km, m.score, m.units_available, m.created_at,
		       u.name, u.email, u.blood_group, u.lat, u.lng
		FROM matches m
		LEFT JOIN users u ON u.id = m.donor_id
		WHERE m.request_id = $1
		ORDER BY m.distance_km ASC, m.donor_id ASC`, string(requestID),
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Match, error) {
		var (
			m                       Match
			name, email, bloodGroup *string
			lat, lng                *float64
		)
		err := row.Scan(&m.ID, &m.RequestID, &m.DonorID, &m.DistanceKm, &m.Score, &m.UnitsAvailable, &m.CreatedAt,
			&name, &email, &bloodGroup, &lat, &lng)
		if err != nil {
			return m, err
		}
		if name != nil {
			m.Donor = &DonorSummary{Name: *name}
			if email != nil {
				m.Donor.Email = *email
			}
			if bloodGroup != nil {
				m.Donor.BloodGroup = *bloodGroup
			}
			if lat != nil && lng != nil {
				m.Donor.Location = &types.Point{Lat: *lat, Lng: *lng}
			}
		}
		return m, nil
	})
}
