// Package store keeps a SQLite catalog of simulation runs: one row per
// batch with its parameter fingerprint, and one summary row per
// replicate. The catalog answers "what did I run, and how did it end"
// without reopening the exported tables.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/alexsteininfo/clonesim/internal/runner"
)

// Catalog is a SQLite-backed run index.
type Catalog struct {
	mu     sync.Mutex
	db     *sql.DB
	dbPath string
}

// Open opens (creating if needed) the catalog at path.
func Open(path string) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating catalog directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing catalog schema: %w", err)
	}

	return &Catalog{db: db, dbPath: path}, nil
}

// Close closes the underlying database.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db.Close()
}

// Run is one cataloged batch.
type Run struct {
	ID         string
	CreatedAt  time.Time
	Process    string
	Backend    string
	Capacity   int
	Replicates int
	Seed       uint64
	ConfigYAML string
}

// ReplicateSummary is the cataloged outcome of one replicate.
type ReplicateSummary struct {
	Index     int
	Seed      uint64
	Reason    string
	FinalTime float64
	Steps     int
	Modules   int
	Cells     int
	Subclones int
	Mutations int
	Elapsed   time.Duration
}

// Summarize converts a finished replicate to its catalog row.
func Summarize(rep *runner.Replicate) ReplicateSummary {
	return ReplicateSummary{
		Index:     rep.Index,
		Seed:      rep.Seed,
		Reason:    string(rep.Result.Reason),
		FinalTime: rep.Result.Time,
		Steps:     rep.Result.Steps,
		Modules:   rep.Result.Population.Len(),
		Cells:     rep.Result.Population.NumCells(),
		Subclones: len(rep.Result.Population.Subclones()),
		Mutations: rep.Result.MutationsMinted,
		Elapsed:   rep.Elapsed,
	}
}

// RecordRun catalogs one batch and its replicate summaries atomically,
// returning the new run id. A zero run.ID is replaced by a fresh UUID;
// a zero CreatedAt by the current time.
func (c *Catalog) RecordRun(ctx context.Context, run Run, reps []ReplicateSummary) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, process, backend, capacity, replicates, seed, config_yaml)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.Format(time.RFC3339Nano), run.Process, run.Backend,
		run.Capacity, run.Replicates, strconv.FormatUint(run.Seed, 10), run.ConfigYAML)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO replicates (run_id, idx, seed, reason, final_time, steps, modules, cells, subclones, mutations, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("preparing replicate insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range reps {
		_, err := stmt.ExecContext(ctx, run.ID, r.Index, strconv.FormatUint(r.Seed, 10), r.Reason,
			r.FinalTime, r.Steps, r.Modules, r.Cells, r.Subclones, r.Mutations,
			r.Elapsed.Milliseconds())
		if err != nil {
			return "", fmt.Errorf("inserting replicate %d: %w", r.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	return run.ID, nil
}

// ListRuns returns the cataloged runs, newest first.
func (c *Catalog) ListRuns(ctx context.Context) ([]Run, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.db.QueryContext(ctx, `
		SELECT id, created_at, process, backend, capacity, replicates, seed, config_yaml
		FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var created, seed string
		if err := rows.Scan(&r.ID, &created, &r.Process, &r.Backend, &r.Capacity, &r.Replicates, &seed, &r.ConfigYAML); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if r.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
			return nil, fmt.Errorf("parsing run seed: %w", err)
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parsing run timestamp: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun returns one run and its replicate summaries ordered by index.
func (c *Catalog) GetRun(ctx context.Context, id string) (Run, []ReplicateSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var r Run
	var created, seed string
	err := c.db.QueryRowContext(ctx, `
		SELECT id, created_at, process, backend, capacity, replicates, seed, config_yaml
		FROM runs WHERE id = ?`, id).
		Scan(&r.ID, &created, &r.Process, &r.Backend, &r.Capacity, &r.Replicates, &seed, &r.ConfigYAML)
	if err == sql.ErrNoRows {
		return Run{}, nil, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return Run{}, nil, fmt.Errorf("reading run: %w", err)
	}
	if r.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
		return Run{}, nil, fmt.Errorf("parsing run seed: %w", err)
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return Run{}, nil, fmt.Errorf("parsing run timestamp: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT idx, seed, reason, final_time, steps, modules, cells, subclones, mutations, elapsed_ms
		FROM replicates WHERE run_id = ? ORDER BY idx`, id)
	if err != nil {
		return Run{}, nil, fmt.Errorf("listing replicates: %w", err)
	}
	defer rows.Close()

	var reps []ReplicateSummary
	for rows.Next() {
		var s ReplicateSummary
		var repSeed string
		var elapsedMS int64
		if err := rows.Scan(&s.Index, &repSeed, &s.Reason, &s.FinalTime, &s.Steps,
			&s.Modules, &s.Cells, &s.Subclones, &s.Mutations, &elapsedMS); err != nil {
			return Run{}, nil, fmt.Errorf("scanning replicate: %w", err)
		}
		if s.Seed, err = strconv.ParseUint(repSeed, 10, 64); err != nil {
			return Run{}, nil, fmt.Errorf("parsing replicate seed: %w", err)
		}
		s.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		reps = append(reps, s)
	}
	return r, reps, rows.Err()
}
