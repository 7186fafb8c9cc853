// Package store persists heatmap state: the latest assembled snapshot and a
// log of refresh runs in SQLite, and a daily quote archive in Parquet.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/Lucas-Song-Dev/StockHeatMap/internal/domain"
)

// ErrNotFound is returned when nothing has been persisted yet.
var ErrNotFound = errors.New("not found")

// Snapshot is a persisted assembled data set.
type Snapshot struct {
	Seq       uint64
	UpdatedAt time.Time
	Sectors   []domain.Sector
}

// Run is one recorded refresh cycle.
type Run struct {
	ID        string        `json:"id"`
	Seq       uint64        `json:"seq"`
	Trigger   string        `json:"trigger"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"durationNs"`
	Requested int           `json:"requested"`
	Fetched   int           `json:"fetched"`
	Error     string        `json:"error,omitempty"`
}

// SnapshotStore keeps the most recent assembled data set so a restart can
// show data before the first refresh completes.
type SnapshotStore interface {
	// SaveSnapshot replaces the stored snapshot.
	SaveSnapshot(ctx context.Context, snap Snapshot) error

	// LoadLatestSnapshot returns the stored snapshot, or ErrNotFound.
	LoadLatestSnapshot(ctx context.Context) (*Snapshot, error)
}

// RunStore records refresh cycles.
type RunStore interface {
	// RecordRun appends a run.
	RecordRun(ctx context.Context, run Run) error

	// RecentRuns returns up to limit runs, newest first.
	RecentRuns(ctx context.Context, limit int) ([]Run, error)
}

// QuoteArchive keeps one quote per symbol per trading day.
type QuoteArchive interface {
	// ArchiveQuotes stores the quotes of every stock in sectors, replacing
	// any earlier capture for the same symbol and day.
	ArchiveQuotes(ctx context.Context, capturedAt time.Time, sectors []domain.Sector) error

	// ReadHistory returns the archived quotes for symbol with trading days
	// in [start, end], oldest first.
	ReadHistory(ctx context.Context, symbol string, start, end time.Time) ([]domain.DailyQuote, error)
}
