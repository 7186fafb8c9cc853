// Package refresh runs the fetch-assemble cycle that keeps the heatmap data
// current: once at startup, then on a fixed interval, plus on demand.
//
// A failed cycle never discards data that was already shown. The error is
// only surfaced to viewers when there is nothing to fall back on.
package refresh

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Lucas-Song-Dev/StockHeatMap/internal/domain"
)

// DefaultInterval is the refresh period when none is configured.
const DefaultInterval = 5 * time.Minute

// ErrorBanner is the message shown to viewers when a cycle failed and there
// is no earlier data to display.
const ErrorBanner = "Failed to load stock data. Please try again later."

// ErrNoSectors is returned by a cycle whose fetched quotes matched no
// configured sector.
var ErrNoSectors = errors.New("no sectors assembled")

// Fetcher fetches quotes for a batch of symbols.
type Fetcher interface {
	FetchBatch(ctx context.Context, symbols []string) (map[string]domain.Quote, error)
}

// Assembler knows which symbols to fetch and how to group the results.
type Assembler interface {
	Symbols() []string
	Assemble(quotes map[string]domain.Quote) []domain.Sector
}

// Snapshot is what viewers render.
type Snapshot struct {
	Seq       uint64
	Sectors   []domain.Sector
	UpdatedAt time.Time
	// Loading is true only while a cycle is outstanding and there is no
	// earlier data, so a refresh over existing data never flickers.
	Loading bool
	// Err is the banner text, set only when there is no data at all.
	Err string
}

// HasData reports whether the snapshot carries any sectors.
func (s Snapshot) HasData() bool { return len(s.Sectors) > 0 }

// Cycle describes one completed fetch-assemble attempt.
type Cycle struct {
	Seq       uint64
	Trigger   string
	StartedAt time.Time
	Duration  time.Duration
	Requested int
	Fetched   int
	Sectors   []domain.Sector
	Err       error
	// Stale is set when a newer cycle had already been issued, so the
	// result was discarded.
	Stale bool
}

// Options configures a Scheduler.
type Options struct {
	Interval time.Duration
	Logger   *slog.Logger
	// OnSuccess runs after a cycle's data has been applied.
	OnSuccess func(ctx context.Context, snap Snapshot)
	// OnCycle runs after every cycle, applied or not.
	OnCycle func(ctx context.Context, c Cycle)
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Scheduler owns the current data set and the cycle that replaces it.
type Scheduler struct {
	fetcher   Fetcher
	assembler Assembler
	interval  time.Duration
	log       *slog.Logger
	onSuccess func(context.Context, Snapshot)
	onCycle   func(context.Context, Cycle)
	now       func() time.Time

	inflight atomic.Bool
	issued   atomic.Uint64
	trigger  chan struct{}

	mu        sync.RWMutex
	sectors   []domain.Sector
	updatedAt time.Time
	applied   uint64
	lastErr   error
	lastCycle time.Time

	subsMu    sync.Mutex
	nextSubID int
	subs      map[int]chan Snapshot
}

// New creates a Scheduler. It does nothing until Run or Refresh is called.
func New(f Fetcher, a Assembler, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{
		fetcher:   f,
		assembler: a,
		interval:  opts.Interval,
		log:       opts.Logger,
		onSuccess: opts.OnSuccess,
		onCycle:   opts.OnCycle,
		now:       opts.Now,
		trigger:   make(chan struct{}, 1),
		subs:      make(map[int]chan Snapshot),
	}
}

// Interval returns the configured refresh period.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// Run performs an immediate cycle and then one per interval until ctx is
// cancelled. Manual triggers are serviced by the same loop. The ticker is
// stopped on return.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("refresh scheduler started", "interval", s.interval)
	s.runCycle(ctx, "startup")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("refresh scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runCycle(ctx, "timer")
		case <-s.trigger:
			s.runCycle(ctx, "manual")
		}
	}
}

// Trigger asks the Run loop for a manual cycle. It returns false, and does
// nothing, when a cycle is already outstanding or a trigger is pending.
func (s *Scheduler) Trigger() bool {
	if s.inflight.Load() {
		return false
	}
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Refresh runs one cycle synchronously. It returns false without doing
// anything if another cycle is outstanding; concurrent refreshes are
// ignored, never raced. The returned error is the cycle's failure, if any,
// which has already been logged and does not affect existing data.
func (s *Scheduler) Refresh(ctx context.Context) (bool, error) {
	return s.runCycle(ctx, "manual")
}

// InFlight reports whether a cycle is outstanding.
func (s *Scheduler) InFlight() bool { return s.inflight.Load() }

func (s *Scheduler) runCycle(ctx context.Context, trigger string) (bool, error) {
	if !s.inflight.CompareAndSwap(false, true) {
		s.log.Debug("refresh already in flight, ignoring", "trigger", trigger)
		return false, nil
	}
	seq := s.issued.Add(1)
	s.publish()

	start := s.now()
	symbols := s.assembler.Symbols()
	c := Cycle{Seq: seq, Trigger: trigger, StartedAt: start, Requested: len(symbols)}

	quotes, err := s.fetcher.FetchBatch(ctx, symbols)
	if err == nil {
		c.Fetched = len(quotes)
		c.Sectors = s.assembler.Assemble(quotes)
		if len(c.Sectors) == 0 {
			err = ErrNoSectors
		}
	}
	c.Err = err
	c.Duration = s.now().Sub(start)

	applied := s.apply(ctx, &c)

	// Hooks run while the cycle still counts as in flight, so they finish
	// in sequence order and never overlap with the next cycle's hooks.
	if applied && s.onSuccess != nil {
		s.onSuccess(ctx, s.Snapshot())
	}
	if s.onCycle != nil {
		s.onCycle(ctx, c)
	}

	s.inflight.Store(false)
	s.publish()
	return true, err
}

// apply installs a cycle's result if it is still the latest one issued.
func (s *Scheduler) apply(ctx context.Context, c *Cycle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastCycle = c.StartedAt
	if c.Seq != s.issued.Load() || c.Seq <= s.applied {
		c.Stale = true
		s.log.Debug("discarding stale refresh result", "seq", c.Seq, "applied", s.applied)
		return false
	}
	if c.Err != nil {
		if ctx.Err() != nil {
			// Shutdown, not an upstream failure.
			return false
		}
		s.lastErr = c.Err
		s.log.Warn("refresh failed",
			"seq", c.Seq,
			"trigger", c.Trigger,
			"have_data", len(s.sectors) > 0,
			"error", c.Err,
		)
		return false
	}

	s.sectors = c.Sectors
	s.updatedAt = s.now()
	s.applied = c.Seq
	s.lastErr = nil
	s.log.Info("refresh complete",
		"seq", c.Seq,
		"trigger", c.Trigger,
		"requested", c.Requested,
		"fetched", c.Fetched,
		"sectors", len(c.Sectors),
		"duration", c.Duration.Round(time.Millisecond),
	)
	return true
}

// Seed installs previously persisted data so viewers have something to show
// before the first cycle completes. It is ignored once any data is present.
func (s *Scheduler) Seed(sectors []domain.Sector, updatedAt time.Time) bool {
	if len(sectors) == 0 {
		return false
	}
	s.mu.Lock()
	if len(s.sectors) > 0 {
		s.mu.Unlock()
		return false
	}
	s.sectors = domain.CloneSectors(sectors)
	s.updatedAt = updatedAt
	s.mu.Unlock()
	s.publish()
	return true
}

// Snapshot returns a copy of the current view state.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Seq:       s.applied,
		Sectors:   domain.CloneSectors(s.sectors),
		UpdatedAt: s.updatedAt,
	}
	if len(s.sectors) == 0 {
		snap.Loading = s.inflight.Load()
		if !snap.Loading && s.lastErr != nil {
			snap.Err = ErrorBanner
		}
	}
	return snap
}

// LastError returns the most recent cycle failure, even when it was hidden
// from viewers because older data was still available. It is cleared by the
// next successful cycle.
func (s *Scheduler) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// LastCycle returns when the most recent cycle started.
func (s *Scheduler) LastCycle() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastCycle
}

// Subscribe creates a channel that receives a snapshot whenever the view
// state changes.
func (s *Scheduler) Subscribe(bufSize int) (id int, ch <-chan Snapshot) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	id = s.nextSubID
	s.nextSubID++
	c := make(chan Snapshot, bufSize)
	s.subs[id] = c
	return id, c
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Scheduler) Unsubscribe(id int) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	if ch, ok := s.subs[id]; ok {
		close(ch)
		delete(s.subs, id)
	}
}

func (s *Scheduler) publish() {
	s.broadcast(s.Snapshot())
}

func (s *Scheduler) broadcast(snap Snapshot) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// Slow subscriber, drop.
		}
	}
}
