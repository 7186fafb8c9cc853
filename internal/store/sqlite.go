package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Lucas-Song-Dev/StockHeatMap/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ SnapshotStore = (*SQLiteStore)(nil)
var _ RunStore = (*SQLiteStore)(nil)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS snapshot (
		id         INTEGER PRIMARY KEY CHECK (id = 1),
		seq        INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		sectors    TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_runs (
		id          TEXT PRIMARY KEY,
		seq         INTEGER NOT NULL,
		cause       TEXT NOT NULL,
		started_at  INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		requested   INTEGER NOT NULL,
		fetched     INTEGER NOT NULL,
		error       TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS refresh_runs_started ON refresh_runs (started_at DESC)`,
}

// SQLiteStore implements SnapshotStore and RunStore backed by a SQLite
// database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, runs the
// schema migrations and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating %s: %w", dbPath, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// SnapshotStore implementation
// ---------------------------------------------------------------------------

// SaveSnapshot upserts the single snapshot row.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	payload, err := json.Marshal(snap.Sectors)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshot (id, seq, updated_at, sectors) VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET seq = excluded.seq, updated_at = excluded.updated_at, sectors = excluded.sectors`,
		int64(snap.Seq), snap.UpdatedAt.UnixMilli(), string(payload))
	return err
}

// LoadLatestSnapshot reads the snapshot row.
func (s *SQLiteStore) LoadLatestSnapshot(ctx context.Context) (*Snapshot, error) {
	var (
		seq       int64
		updatedAt int64
		payload   string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT seq, updated_at, sectors FROM snapshot WHERE id = 1`).
		Scan(&seq, &updatedAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var sectors []domain.Sector
	if err := json.Unmarshal([]byte(payload), &sectors); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &Snapshot{
		Seq:       uint64(seq),
		UpdatedAt: time.UnixMilli(updatedAt),
		Sectors:   sectors,
	}, nil
}

// ---------------------------------------------------------------------------
// RunStore implementation
// ---------------------------------------------------------------------------

// RecordRun inserts a run, assigning an ID if it has none.
func (s *SQLiteStore) RecordRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO refresh_runs (id, seq, cause, started_at, duration_ms, requested, fetched, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, int64(run.Seq), run.Trigger, run.StartedAt.UnixMilli(),
		run.Duration.Milliseconds(), run.Requested, run.Fetched, run.Error)
	return err
}

// RecentRuns returns the newest runs first.
func (s *SQLiteStore) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, seq, cause, started_at, duration_ms, requested, fetched, error
		 FROM refresh_runs ORDER BY started_at DESC, seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r          Run
			seq        int64
			startedAt  int64
			durationMs int64
		)
		if err := rows.Scan(&r.ID, &seq, &r.Trigger, &startedAt, &durationMs,
			&r.Requested, &r.Fetched, &r.Error); err != nil {
			return nil, err
		}
		r.Seq = uint64(seq)
		r.StartedAt = time.UnixMilli(startedAt)
		r.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
