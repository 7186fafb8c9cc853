package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Lucas-Song-Dev/StockHeatMap/internal/api"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/config"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/history"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/httpapi"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/quote"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/refresh"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/search"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/store"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/util"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/watchlist"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("heatmap-server: %v", err)
	}
}

// run wires the server and blocks until it stops. Returning instead of
// exiting lets every deferred Close run.
func run() error {
	if err := config.LoadDotEnv(); err != nil {
		return fmt.Errorf("loading .env: %w", err)
	}

	// Load config.
	cfgPath := "config/heatmap.yaml"
	if p := os.Getenv("HEATMAP_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logging.
	logFileName := fmt.Sprintf("/tmp/heatmap-server-%s.log", time.Now().Format("2006-01-02"))
	logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()

	logger := util.NewLoggerTo(io.MultiWriter(os.Stdout, logFile), cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	wl, err := watchlist.Load(cfg.Watchlist.Path)
	if err != nil {
		return fmt.Errorf("loading watchlist: %w", err)
	}

	client, err := quote.NewClientFromConfig(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating quote client: %w", err)
	}
	defer client.Close()

	// Optional persistence.
	var db *store.SQLiteStore
	if cfg.Storage.SQLitePath != "" {
		db, err = store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			return fmt.Errorf("opening sqlite store: %w", err)
		}
		defer db.Close()
	}
	var archive *store.ParquetStore
	hours := util.NewUSMarketHours()
	if cfg.Storage.DataDir != "" {
		archive = store.NewParquetStore(filepath.Clean(cfg.Storage.DataDir), hours.Location())
	}

	index := search.NewIndex()
	defer index.Close()

	sched := refresh.New(client, wl, refresh.Options{
		Interval: cfg.Refresh.Interval,
		Logger:   logger.With("component", "refresh"),
		OnSuccess: func(ctx context.Context, snap refresh.Snapshot) {
			persistSnapshot(ctx, logger, db, archive, index, snap)
		},
		OnCycle: func(ctx context.Context, c refresh.Cycle) {
			recordCycle(ctx, logger, db, c)
		},
	})

	// Seed from the last good snapshot so viewers see data before the
	// first cycle completes.
	if db != nil {
		prev, err := db.LoadLatestSnapshot(ctx)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			logger.Warn("loading last snapshot", "error", err)
		case sched.Seed(prev.Sectors, prev.UpdatedAt):
			if err := index.Rebuild(prev.Sectors); err != nil {
				logger.Warn("indexing seeded snapshot", "error", err)
			}
			logger.Info("seeded from last snapshot", "seq", prev.Seq, "updated", prev.UpdatedAt)
		}
	}

	opts := httpapi.Options{
		Search:    index,
		Hours:     hours,
		Quotes:    client,
		Watchlist: wl,
		Source:    client.SourceName(),
	}
	if archive != nil {
		opts.History = history.NewService(archive)
	}
	if db != nil {
		opts.Runs = db
	}
	hs := httpapi.NewHeatmapServer(sched, logger.With("component", "http"), opts)

	health := api.NewHealthServer(logger.With("component", "health"))
	srv := api.NewServer(cfg.Server.HTTPAddr(), cfg.Server.GRPCAddr(), hs.Handler(), health, logger)

	go hs.Hub().Run(ctx)
	go health.Follow(ctx, sched)
	go func() {
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("refresh scheduler stopped", "error", err)
		}
	}()

	logger.Info("heatmap server starting",
		"http", cfg.Server.HTTPAddr(),
		"grpc", cfg.Server.GRPCAddr(),
		"source", client.SourceName(),
		"symbols", len(wl.Symbols()),
	)
	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Error("server error", "error", err)
		return err
	}
	logger.Info("heatmap server stopped")
	return nil
}

func persistSnapshot(ctx context.Context, logger *slog.Logger, db *store.SQLiteStore, archive *store.ParquetStore, index *search.Index, snap refresh.Snapshot) {
	if db != nil {
		err := db.SaveSnapshot(ctx, store.Snapshot{Seq: snap.Seq, UpdatedAt: snap.UpdatedAt, Sectors: snap.Sectors})
		if err != nil {
			logger.Warn("saving snapshot", "seq", snap.Seq, "error", err)
		}
	}
	if archive != nil {
		if err := archive.ArchiveQuotes(ctx, snap.UpdatedAt, snap.Sectors); err != nil {
			logger.Warn("archiving quotes", "seq", snap.Seq, "error", err)
		}
	}
	if err := index.Rebuild(snap.Sectors); err != nil {
		logger.Warn("rebuilding search index", "seq", snap.Seq, "error", err)
	}
}

func recordCycle(ctx context.Context, logger *slog.Logger, db *store.SQLiteStore, c refresh.Cycle) {
	if db == nil || c.Stale {
		return
	}
	run := store.Run{
		Seq:       c.Seq,
		Trigger:   c.Trigger,
		StartedAt: c.StartedAt,
		Duration:  c.Duration,
		Requested: c.Requested,
		Fetched:   c.Fetched,
	}
	if c.Err != nil {
		run.Error = c.Err.Error()
	}
	if err := db.RecordRun(ctx, run); err != nil {
		logger.Warn("recording refresh run", "seq", c.Seq, "error", err)
	}
}
