package postgresql_test

import (
	"context"
	"fmt"
	"os"

	"github.com/resto-planning/pointage-backend-go/internal/pkg/database"
)

const schema = `
CREATE TABLE IF NOT EXISTS employees (
	id BIGSERIAL PRIMARY KEY,
	full_name TEXT NOT NULL,
	position TEXT,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	deleted_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS shifts (
	id BIGSERIAL PRIMARY KEY,
	employee_id BIGINT REFERENCES employees(id),
	shift_date DATE NOT NULL,
	label TEXT,
	needs_replacement BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	deleted_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS shift_segments (
	id BIGSERIAL PRIMARY KEY,
	shift_id BIGINT NOT NULL REFERENCES shifts(id) ON DELETE CASCADE,
	position INT NOT NULL,
	start_time TEXT NOT NULL,
	end_time TEXT NOT NULL,
	kind TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS pointages (
	id BIGSERIAL PRIMARY KEY,
	employee_id BIGINT NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL,
	kind TEXT NOT NULL
);
`

// TestDatabaseSetup holds the connection to the integration database.
type TestDatabaseSetup struct {
	DB *database.DB
}

// NewTestDatabase connects to TEST_DATABASE_URL and creates the schema. It
// returns nil without error when the variable is not set.
func NewTestDatabase(ctx context.Context) (*TestDatabaseSetup, error) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		return nil, nil
	}

	db, err := database.NewPostgreSQLDB(ctx, dsn, database.PoolOptions{MaxConns: 4})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}
	if _, err := db.Exec(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &TestDatabaseSetup{DB: db}, nil
}

// TruncateAllTables empties every table and resets the sequences.
func (t *TestDatabaseSetup) TruncateAllTables(ctx context.Context) error {
	_, err := t.DB.Exec(ctx, "TRUNCATE TABLE pointages, shift_segments, shifts, employees RESTART IDENTITY CASCADE")
	return err
}

func (t *TestDatabaseSetup) Close() {
	t.DB.Close()
}
