// README: Inventory store backed by PostgreSQL; lines and ledger are written in one transaction.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"bloodlink/internal/types"
)

type PgStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

func (s *PgStore) ListLines(ctx context.Context, hospitalID types.ID) ([]Line, error) {
	rows, err := s.db.Query(ctx, `
		SELECT hospital_id, blood_group, rh, units, updated_at
		FROM inventory_lines
		WHERE hospital_id = $1
		ORDER BY blood_group, rh`, string(hospitalID),
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, collectLine)
}

func (s *PgStore) ReplaceLines(ctx context.Context, hospitalID types.ID, items []Item, at time.Time) ([]Line, error) {
	var lines []Line
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var one int
		err := tx.QueryRow(ctx, `SELECT 1 FROM hospitals WHERE id = $1 FOR SHARE`, string(hospitalID)).Scan(&one)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM inventory_lines WHERE hospital_id = $1`, string(hospitalID)); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, it := range items {
			batch.Queue(`
				INSERT INTO inventory_lines (hospital_id, blood_group, rh, units, updated_at)
				VALUES ($1, $2, $3, $4, $5)`,
				string(hospitalID), string(it.BloodGroup), string(it.Rh), it.Units, at,
			)
			queueLedgerInsert(batch, NewReplaceEntry(hospitalID, it, at))
		}
		if err := execBatch(ctx, tx, batch); err != nil {
			return err
		}

		rows, err := tx.Query(ctx, `
			SELECT hospital_id, blood_group, rh, units, updated_at
			FROM inventory_lines
			WHERE hospital_id = $1
			ORDER BY blood_group, rh`, string(hospitalID),
		)
		if err != nil {
			return err
		}
		lines, err = pgx.CollectRows(rows, collectLine)
		return err
	})
	if err != nil {
		return nil, mapPgErr(err)
	}
	return lines, nil
}

// AdjustLine inserts a zero placeholder when the line is missing, then locks
// the row so apply sees the committed value and no other adjust interleaves.
func (s *PgStore) AdjustLine(ctx context.Context, key Key, delta int, at time.Time, apply ApplyFunc) (Line, error) {
	var line Line
	hid, group, rh := string(key.HospitalID), string(key.BloodType.Group), string(key.BloodType.Rh)
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var created bool
		err := tx.QueryRow(ctx, `
			INSERT INTO inventory_lines (hospital_id, blood_group, rh, units, updated_at)
			VALUES ($1, $2, $3, 0, $4)
			ON CONFLICT (hospital_id, blood_group, rh) DO NOTHING
			RETURNING true`, hid, group, rh, at,
		).Scan(&created)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		var current int
		if err := tx.QueryRow(ctx, `
			SELECT units FROM inventory_lines
			WHERE hospital_id = $1 AND blood_group = $2 AND rh = $3
			FOR UPDATE`, hid, group, rh,
		).Scan(&current); err != nil {
			return err
		}

		next, err := apply(current, !created)
		if err != nil {
			return err
		}

		row := tx.QueryRow(ctx, `
			UPDATE inventory_lines
			SET units = $4, updated_at = $5
			WHERE hospital_id = $1 AND blood_group = $2 AND rh = $3
			RETURNING hospital_id, blood_group, rh, units, updated_at`,
			hid, group, rh, next, at,
		)
		if line, err = scanLine(row); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		queueLedgerInsert(batch, NewAdjustEntry(key, delta, current, next, at))
		return execBatch(ctx, tx, batch)
	})
	if err != nil {
		return Line{}, mapPgErr(err)
	}
	return line, nil
}

func (s *PgStore) ListLedger(ctx context.Context, hospitalID types.ID, limit int) ([]LedgerEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, hospital_id, blood_group, rh, action, delta_units, previous_units, new_units, created_at
		FROM inventory_ledger
		WHERE hospital_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2`, string(hospitalID), limit,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (LedgerEntry, error) {
		var e LedgerEntry
		err := row.Scan(&e.ID, &e.HospitalID, &e.BloodGroup, &e.Rh, &e.Action,
			&e.DeltaUnits, &e.PreviousUnits, &e.NewUnits, &e.CreatedAt)
		return e, err
	})
}

func queueLedgerInsert(b *pgx.Batch, e LedgerEntry) {
	b.Queue(`
		INSERT INTO inventory_ledger (id, hospital_id, blood_group, rh, action, delta_units, previous_units, new_units, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(e.ID), string(e.HospitalID), string(e.BloodGroup), string(e.Rh), string(e.Action),
		e.DeltaUnits, e.PreviousUnits, e.NewUnits, e.CreatedAt,
	)
}

func execBatch(ctx context.Context, tx pgx.Tx, b *pgx.Batch) error {
	if b.Len() == 0 {
		return nil
	}
	br := tx.SendBatch(ctx, b)
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("batch statement %d: %w", i, err)
		}
	}
	return br.Close()
}

func collectLine(row pgx.CollectableRow) (Line, error) {
	return scanLine(row)
}

func scanLine(row pgx.Row) (Line, error) {
	var l Line
	err := row.Scan(&l.HospitalID, &l.BloodGroup, &l.Rh, &l.Units, &l.LastUpdated)
	return l, err
}

// mapPgErr translates the Postgres error codes the service understands.
func mapPgErr(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23503": // foreign_key_violation
		return ErrNotFound
	case "23514": // check_violation
		return ErrInvalidAdjustment
	case "40001", "40P01": // serialization_failure, deadlock_detected
		return ErrConflict
	}
	return err
}
