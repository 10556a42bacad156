// README: Test helper that opens and migrates BLOODLINK_TEST_DSN. Tests seed rows under fresh ids
// instead of truncating, since packages run in parallel against one database.
package dbtest

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"bloodlink/internal/infra"
)

// Open skips the test when BLOODLINK_TEST_DSN is unset.
func Open(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("BLOODLINK_TEST_DSN")
	if dsn == "" {
		t.Skip("BLOODLINK_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := infra.NewDB(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)

	dir, err := infra.FindMigrationsDir()
	if err != nil {
		t.Fatalf("locate migrations: %v", err)
	}
	if err := infra.ApplyMigrations(ctx, db, dir); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

// SeedHospital inserts an unverified hospital row.
func SeedHospital(t *testing.T, db *pgxpool.Pool, id, ownerID string) {
	t.Helper()
	_, err := db.Exec(context.Background(), `
		INSERT INTO hospitals (id, owner_id, name) VALUES ($1, $2, $3)`,
		id, ownerID, "Hospital "+id,
	)
	if err != nil {
		t.Fatalf("seed hospital: %v", err)
	}
}

// SeedDonor inserts a verified donor, removed again when the test ends.
// A nil lat leaves the location empty.
func SeedDonor(t *testing.T, db *pgxpool.Pool, id, bloodGroup string, lat, lng *float64) {
	t.Helper()
	_, err := db.Exec(context.Background(), `
		INSERT INTO users (id, name, email, role, blood_group, lat, lng, is_verified)
		VALUES ($1, $2, $3, 'donor', $4, $5, $6, TRUE)`,
		id, "Donor "+id, id+"@example.test", bloodGroup, lat, lng,
	)
	if err != nil {
		t.Fatalf("seed donor: %v", err)
	}
	t.Cleanup(func() {
		_, _ = db.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, id)
	})
}
