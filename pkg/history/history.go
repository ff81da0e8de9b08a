// Package history keeps past scan runs in a SQLite database so outdated
// addons can be tracked across runs.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/entrhq/sentinel/pkg/scan"
)

const timeFormat = time.RFC3339Nano

// Store is a SQLite-backed run history.
type Store struct {
	db   *sql.DB
	path string
}

// Run is a stored run header.
type Run struct {
	ID         string
	State      string
	StartedAt  time.Time
	FinishedAt time.Time
	Counts     scan.Counts
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		total INTEGER DEFAULT 0,
		outdated INTEGER DEFAULT 0,
		up_to_date INTEGER DEFAULT 0,
		unknown INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		current_version TEXT,
		manifest_version TEXT,
		needs_update INTEGER NOT NULL DEFAULT 0,
		manifest_url TEXT,
		manifest_id TEXT,
		error TEXT,
		manifest TEXT,
		UNIQUE(run_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id);
	CREATE INDEX IF NOT EXISTS idx_results_name ON results(name);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// StartRun records that a run has begun.
func (s *Store) StartRun(ctx context.Context, runID string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, state, started_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET state = excluded.state, started_at = excluded.started_at`,
		runID, scan.StateRunning.String(), startedAt.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("failed to start run %s: %w", runID, err)
	}
	return nil
}

// FinishRun stores the final state and tallies of a run.
func (s *Store) FinishRun(ctx context.Context, summary *scan.Summary) error {
	c := summary.Counts()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, state, started_at, finished_at, total, outdated, up_to_date, unknown)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			finished_at = excluded.finished_at,
			total = excluded.total,
			outdated = excluded.outdated,
			up_to_date = excluded.up_to_date,
			unknown = excluded.unknown`,
		summary.RunID, summary.State.String(),
		summary.StartedAt.UTC().Format(timeFormat), summary.FinishedAt.UTC().Format(timeFormat),
		c.Total, c.Outdated, c.UpToDate, c.Unknown)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", summary.RunID, err)
	}
	return nil
}

// DiscardRun removes a run that never produced a summary, together with
// any results recorded for it.
func (s *Store) DiscardRun(ctx context.Context, runID string) error {
	if err := s.deleteResults(ctx, runID); err != nil {
		return fmt.Errorf("failed to discard run %s: %w", runID, err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID); err != nil {
		return fmt.Errorf("failed to discard run %s: %w", runID, err)
	}
	return nil
}

// LatestRuns returns up to n runs, newest first.
func (s *Store) LatestRuns(ctx context.Context, n int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, state, started_at, COALESCE(finished_at, ''), total, outdated, up_to_date, unknown
		 FROM runs ORDER BY started_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished string
		)
		if err := rows.Scan(&r.ID, &r.State, &started, &finished,
			&r.Counts.Total, &r.Counts.Outdated, &r.Counts.UpToDate, &r.Counts.Unknown); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt, _ = time.Parse(timeFormat, started)
		if finished != "" {
			r.FinishedAt, _ = time.Parse(timeFormat, finished)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Results returns the stored results of a run in scan order.
func (s *Store) Results(ctx context.Context, runID string) ([]scan.Result, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, COALESCE(current_version, ''), COALESCE(manifest_version, ''), needs_update,
			COALESCE(manifest_url, ''), COALESCE(manifest_id, ''), COALESCE(error, ''), COALESCE(manifest, '')
		 FROM results WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var results []scan.Result
	for rows.Next() {
		var (
			r        scan.Result
			manifest string
		)
		if err := rows.Scan(&r.Name, &r.CurrentVersion, &r.ManifestVersion, &r.NeedsUpdate,
			&r.ManifestURL, &r.ManifestID, &r.Error, &manifest); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if manifest != "" {
			var doc any
			if err := json.Unmarshal([]byte(manifest), &doc); err == nil {
				r.Manifest = doc
			}
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// PreviouslyOutdated returns the names flagged as outdated in the most
// recent finished run before runID.
func (s *Store) PreviouslyOutdated(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM results WHERE needs_update = 1 AND run_id = (
			SELECT id FROM runs WHERE id != ? AND finished_at IS NOT NULL
			ORDER BY started_at DESC LIMIT 1
		 ) ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query previous run: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *Store) insertResult(ctx context.Context, runID string, position int, r scan.Result) error {
	var manifest sql.NullString
	if r.Manifest != nil {
		if data, err := json.Marshal(r.Manifest); err == nil {
			manifest = sql.NullString{String: string(data), Valid: true}
		}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results (run_id, position, name, current_version, manifest_version, needs_update,
			manifest_url, manifest_id, error, manifest)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, position, r.Name, r.CurrentVersion, r.ManifestVersion, r.NeedsUpdate,
		r.ManifestURL, r.ManifestID, r.Error, manifest)
	return err
}

func (s *Store) deleteResults(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM results WHERE run_id = ?`, runID)
	return err
}

// Recorder is a scan.Sink that stores each result as it streams in.
type Recorder struct {
	store *Store
	ctx   context.Context
	runID string

	mu       sync.Mutex
	position int
	err      error
}

// Recorder returns a sink recording results under runID.
func (s *Store) Recorder(ctx context.Context, runID string) *Recorder {
	return &Recorder{store: s, ctx: ctx, runID: runID}
}

// Render implements scan.Sink.
func (r *Recorder) Render(res scan.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.insertResult(r.ctx, r.runID, r.position, res); err != nil && r.err == nil {
		r.err = fmt.Errorf("failed to record %s: %w", res.Name, err)
	}
	r.position++
}

// Clear implements scan.Sink.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.deleteResults(r.ctx, r.runID); err != nil && r.err == nil {
		r.err = fmt.Errorf("failed to clear run %s: %w", r.runID, err)
	}
	r.position = 0
}

// SetRunning implements scan.Sink.
func (r *Recorder) SetRunning(bool) {}

// Err returns the first storage error, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
