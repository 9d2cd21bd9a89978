package store

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaVersion is bumped whenever the catalog tables change shape.
const schemaVersion = 1

// Seeds are stored as decimal text: SQLite integers are signed 64-bit
// and would flip the sign of seeds above 1<<63-1.

const schema = `
CREATE TABLE IF NOT EXISTS schema_info (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	created_at  TEXT NOT NULL,
	process     TEXT NOT NULL,
	backend     TEXT NOT NULL,
	capacity    INTEGER NOT NULL,
	replicates  INTEGER NOT NULL,
	seed        TEXT NOT NULL,
	config_yaml TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS replicates (
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	idx        INTEGER NOT NULL,
	seed       TEXT NOT NULL,
	reason     TEXT NOT NULL,
	final_time REAL NOT NULL,
	steps      INTEGER NOT NULL,
	modules    INTEGER NOT NULL,
	cells      INTEGER NOT NULL,
	subclones  INTEGER NOT NULL,
	mutations  INTEGER NOT NULL,
	elapsed_ms INTEGER NOT NULL,
	PRIMARY KEY (run_id, idx)
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// InitSchema creates the catalog tables if they do not exist yet.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	var version int
	err := db.QueryRowContext(ctx, `SELECT version FROM schema_info LIMIT 1`).Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		if _, err := db.ExecContext(ctx, `INSERT INTO schema_info (version) VALUES (?)`, schemaVersion); err != nil {
			return fmt.Errorf("recording schema version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("reading schema version: %w", err)
	case version != schemaVersion:
		return fmt.Errorf("catalog schema version %d, this build expects %d", version, schemaVersion)
	}
	return nil
}
