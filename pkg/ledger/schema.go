package ledger

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

// schemaV1 is the initial schema of the run ledger.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);

-- One row per simulate / invert invocation
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,          -- 'simulate' or 'invert'
    scene TEXT NOT NULL,
    config TEXT NOT NULL,        -- JSON snapshot of the effective configuration
    status TEXT NOT NULL,        -- 'running', 'completed', 'failed'
    error TEXT,
    final_loss REAL,
    outputs TEXT,                -- JSON array of written files
    started_at TEXT NOT NULL,
    finished_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

-- Fitting iterations of invert runs
CREATE TABLE IF NOT EXISTS iterations (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    iteration INTEGER NOT NULL,
    seed INTEGER NOT NULL,
    loss REAL NOT NULL,
    parameter_error REAL NOT NULL,
    reflectance TEXT NOT NULL,   -- JSON array
    transmittance TEXT NOT NULL, -- JSON array
    duration_ms REAL NOT NULL,
    PRIMARY KEY (run_id, iteration)
);
`

// InitSchema creates the tables of a new ledger. Existing ledgers must
// already be at SchemaVersion.
func InitSchema(ctx context.Context, db *sql.DB) error {
	version, err := getSchemaVersion(ctx, db)
	if err != nil {
		// Schema version table doesn't exist yet, create fresh schema
		return createSchema(ctx, db)
	}
	if version != SchemaVersion {
		return fmt.Errorf("ledger schema version %d, expected %d", version, SchemaVersion)
	}
	return nil
}

// getSchemaVersion returns the current schema version from the database.
// Returns an error if the schema_version table doesn't exist.
func getSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

// createSchema creates the initial database schema.
func createSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`,
		SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	return tx.Commit()
}
