package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Lucas-Song-Dev/StockHeatMap/internal/domain"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/history"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/layout"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/refresh"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/search"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/store"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/util"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/watchlist"
	"github.com/Lucas-Song-Dev/StockHeatMap/pkg/heatmap/wire"
)

// maxSymbols caps the symbols one request may name.
const maxSymbols = 100

// QuoteFetcher looks up quotes for symbols outside the current snapshot.
type QuoteFetcher interface {
	FetchBatch(ctx context.Context, symbols []string) (map[string]domain.Quote, error)
}

// Scheduler is the view of the refresh scheduler the API needs.
type Scheduler interface {
	Snapshot() refresh.Snapshot
	Refresh(ctx context.Context) (bool, error)
	InFlight() bool
	LastError() error
	LastCycle() time.Time
	Interval() time.Duration
	Subscribe(bufSize int) (int, <-chan refresh.Snapshot)
	Unsubscribe(id int)
}

// Options carries the optional collaborators of a HeatmapServer. Nil
// fields disable the routes that need them.
type Options struct {
	Search  *search.Index
	History *history.Service
	Runs    store.RunStore
	Hours   *util.MarketHours

	// Quotes and Watchlist serve symbol lookups and re-classification.
	Quotes    QuoteFetcher
	Watchlist *watchlist.Watchlist

	// Source names the upstream quote provider for /api/status.
	Source string
}

// HeatmapServer serves the heatmap HTTP API.
type HeatmapServer struct {
	sched   Scheduler
	log     *slog.Logger
	search  *search.Index
	history *history.Service
	runs    store.RunStore
	hours   *util.MarketHours
	quotes  QuoteFetcher
	wl      *watchlist.Watchlist
	source  string
	hub     *Hub
	now     func() time.Time
}

// NewHeatmapServer creates a new heatmap HTTP server.
func NewHeatmapServer(sched Scheduler, log *slog.Logger, opts Options) *HeatmapServer {
	if log == nil {
		log = slog.Default()
	}
	return &HeatmapServer{
		sched:   sched,
		log:     log,
		search:  opts.Search,
		history: opts.History,
		runs:    opts.Runs,
		hours:   opts.Hours,
		quotes:  opts.Quotes,
		wl:      opts.Watchlist,
		source:  opts.Source,
		hub:     NewHub(sched, log),
		now:     time.Now,
	}
}

// Hub returns the WebSocket hub. Its Run loop must be started for pushes to
// flow.
func (s *HeatmapServer) Hub() *Hub { return s.hub }

// RegisterRoutes registers all API routes on the given mux.
func (s *HeatmapServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/heatmap", s.handleHeatmap)
	mux.HandleFunc("GET /api/stocks-by-sector", s.handleStocksBySector)
	mux.HandleFunc("GET /api/stocks", s.handleStocks)
	mux.HandleFunc("GET /api/stocks/{symbol}", s.handleStock)
	mux.HandleFunc("GET /api/sectors", s.handleSectors)
	mux.HandleFunc("GET /api/history", s.handleHistoryBatch)
	mux.HandleFunc("GET /api/history/{symbol}", s.handleHistory)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/movers", s.handleMovers)
	mux.HandleFunc("GET /api/runs", s.handleRuns)
	mux.HandleFunc("GET /api/legend", s.handleLegend)
	mux.Handle("GET /api/ws", s.hub)
}

// Handler returns an http.Handler with CORS middleware.
func (s *HeatmapServer) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// queryInt parses a positive integer query parameter, returning def when it
// is absent and an error when it is malformed.
func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, errors.New(name + " must be a positive integer")
	}
	return n, nil
}

// querySymbols parses the comma-separated symbols parameter into unique
// upper-case tickers.
func querySymbols(r *http.Request) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, s := range strings.Split(r.URL.Query().Get("symbols"), ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	if len(out) > maxSymbols {
		return nil, fmt.Errorf("at most %d symbols allowed", maxSymbols)
	}
	return out, nil
}

// queryThreshold parses a non-negative float parameter. ok is false when
// the parameter is absent.
func queryThreshold(r *http.Request, name string) (v float64, ok bool, err error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false, nil
	}
	v, err = strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false, errors.New(name + " must be a non-negative number")
	}
	return v, true, nil
}

// lookup returns quotes for symbols. Symbols in the snapshot are served from
// it; the rest go upstream when a fetcher is configured. An error is
// returned only when nothing could be resolved.
func (s *HeatmapServer) lookup(ctx context.Context, snap refresh.Snapshot, symbols []string) (map[string]domain.Quote, error) {
	quotes := make(map[string]domain.Quote, len(symbols))
	var rest []string
	for _, sym := range symbols {
		if st, ok := domain.FindStock(snap.Sectors, sym); ok {
			quotes[sym] = st.Quote
			continue
		}
		rest = append(rest, sym)
	}
	if len(rest) == 0 || s.quotes == nil {
		return quotes, nil
	}
	fetched, err := s.quotes.FetchBatch(ctx, rest)
	if err != nil {
		s.log.Warn("symbol lookup failed", "symbols", len(rest), "error", err)
		if len(quotes) == 0 {
			return nil, err
		}
	}
	for sym, q := range fetched {
		quotes[sym] = q
	}
	return quotes, nil
}

func missing(symbols []string, quotes map[string]domain.Quote) []string {
	var out []string
	for _, sym := range symbols {
		if _, ok := quotes[sym]; !ok {
			out = append(out, sym)
		}
	}
	return out
}

func timestamp(snap refresh.Snapshot) *time.Time {
	if snap.UpdatedAt.IsZero() {
		return nil
	}
	t := snap.UpdatedAt
	return &t
}

func (s *HeatmapServer) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	mode, err := layout.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, BuildHeatmapResponse(s.sched.Snapshot(), mode))
}

// handleStocksBySector serves the snapshot grouped by sector. The symbols,
// limit and large_cap_threshold parameters re-classify a subset: symbols
// picks tickers (looked up upstream when not watched), limit keeps the first
// n watched tickers, and the threshold overrides the major-cap cutoff.
func (s *HeatmapServer) handleStocksBySector(w http.ResponseWriter, r *http.Request) {
	snap := s.sched.Snapshot()
	symbols, err := querySymbols(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	threshold, hasThreshold, err := queryThreshold(r, "large_cap_threshold")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := StocksBySectorResponse{Sectors: snap.Sectors, Timestamp: timestamp(snap)}
	if len(symbols) > 0 || limit > 0 || hasThreshold {
		if s.wl == nil {
			writeError(w, http.StatusServiceUnavailable, "watchlist not configured")
			return
		}
		wl := s.wl
		if hasThreshold {
			wl = wl.WithLargeCapThreshold(threshold)
		}
		if len(symbols) == 0 {
			symbols = wl.Symbols()
		}
		if limit > 0 && len(symbols) > limit {
			symbols = symbols[:limit]
		}
		quotes, err := s.lookup(r.Context(), snap, symbols)
		if err != nil {
			writeError(w, http.StatusBadGateway, "quote lookup failed")
			return
		}
		resp.Sectors = wl.Classify(quotes, symbols)
		resp.Missing = missing(symbols, quotes)
	}
	if resp.Sectors == nil {
		resp.Sectors = []domain.Sector{}
	}
	writeJSON(w, resp)
}

// handleStocks lists stocks. With symbols it looks each one up; otherwise it
// lists the snapshot, optionally filtered by a sector substring, up to limit.
func (s *HeatmapServer) handleStocks(w http.ResponseWriter, r *http.Request) {
	snap := s.sched.Snapshot()
	symbols, err := querySymbols(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := queryInt(r, "limit", 30)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := StocksResponse{Stocks: []domain.Stock{}, Timestamp: timestamp(snap)}
	if len(symbols) > 0 {
		quotes, err := s.lookup(r.Context(), snap, symbols)
		if err != nil {
			writeError(w, http.StatusBadGateway, "quote lookup failed")
			return
		}
		for _, sym := range symbols {
			q, ok := quotes[sym]
			if !ok {
				continue
			}
			st, ok := domain.FindStock(snap.Sectors, sym)
			if !ok {
				st = s.classify(q)
			}
			st.Quote = q
			resp.Stocks = append(resp.Stocks, st)
		}
		resp.Missing = missing(symbols, quotes)
		writeJSON(w, resp)
		return
	}

	sector := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("sector")))
	for _, sec := range snap.Sectors {
		if sector != "" && !strings.Contains(strings.ToLower(sec.Name), sector) {
			continue
		}
		for _, st := range sec.Stocks {
			if len(resp.Stocks) == limit {
				break
			}
			resp.Stocks = append(resp.Stocks, st)
		}
	}
	writeJSON(w, resp)
}

// classify places a looked-up quote that is not in the snapshot.
func (s *HeatmapServer) classify(q domain.Quote) domain.Stock {
	st := domain.Stock{Quote: q, Sector: watchlist.OtherSector, Industry: domain.DefaultIndustry}
	if s.wl == nil {
		return st
	}
	for _, sec := range s.wl.Classify(map[string]domain.Quote{q.Symbol: q}, []string{q.Symbol}) {
		if len(sec.Stocks) > 0 {
			return sec.Stocks[0]
		}
	}
	return st
}

// handleSectors reports the average change and stock count of each sector.
func (s *HeatmapServer) handleSectors(w http.ResponseWriter, r *http.Request) {
	snap := s.sched.Snapshot()
	writeJSON(w, SectorsResponse{
		Sectors:   convertSectorStats(layout.SectorPerformance(snap.Sectors)),
		Timestamp: timestamp(snap),
	})
}

func (s *HeatmapServer) handleStock(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))
	st, ok := domain.FindStock(s.sched.Snapshot().Sectors, symbol)
	if !ok {
		writeError(w, http.StatusNotFound, "stock not found: "+symbol)
		return
	}
	writeJSON(w, StockResponse{Stock: st, Bucket: string(layout.BucketFor(st.ChangePercent))})
}

func (s *HeatmapServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history archive not configured")
		return
	}
	days, err := queryInt(r, "days", history.DefaultDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rep, err := s.history.Report(r.Context(), r.PathValue("symbol"), days)
	if errors.Is(err, history.ErrNoHistory) {
		writeError(w, http.StatusNotFound, "no history for "+strings.ToUpper(r.PathValue("symbol")))
		return
	}
	if err != nil {
		s.log.Error("reading history", "symbol", r.PathValue("symbol"), "error", err)
		writeError(w, http.StatusInternalServerError, "reading history failed")
		return
	}
	writeJSON(w, convertReport(rep))
}

// handleHistoryBatch serves the history of every symbol in the symbols
// parameter. Symbols with nothing archived are listed as missing.
func (s *HeatmapServer) handleHistoryBatch(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history archive not configured")
		return
	}
	symbols, err := querySymbols(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(symbols) == 0 {
		writeError(w, http.StatusBadRequest, "symbols required")
		return
	}
	days, err := queryInt(r, "days", history.DefaultDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp := HistoryBatchResponse{Reports: make([]wire.HistoryResponse, 0, len(symbols))}
	for _, sym := range symbols {
		rep, err := s.history.Report(r.Context(), sym, days)
		if errors.Is(err, history.ErrNoHistory) {
			resp.Missing = append(resp.Missing, sym)
			continue
		}
		if err != nil {
			s.log.Error("reading history", "symbol", sym, "error", err)
			writeError(w, http.StatusInternalServerError, "reading history failed")
			return
		}
		resp.Reports = append(resp.Reports, convertReport(rep))
	}
	writeJSON(w, resp)
}

func (s *HeatmapServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.search == nil {
		writeError(w, http.StatusServiceUnavailable, "search not configured")
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "q required")
		return
	}
	limit, err := queryInt(r, "limit", search.DefaultLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	hits, err := s.search.Search(q, limit)
	if err != nil {
		s.log.Error("search", "q", q, "error", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, SearchResponse{Query: q, Hits: convertHits(hits)})
}

// handleRefresh runs a manual cycle. A refresh that is already outstanding
// is not raced: the request is answered 202 and the running cycle stands.
func (s *HeatmapServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ran, err := s.sched.Refresh(r.Context())
	if !ran {
		writeJSONStatus(w, http.StatusAccepted, RefreshResponse{Refreshed: false})
		return
	}
	resp := RefreshResponse{Refreshed: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, resp)
}

func (s *HeatmapServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	snap := s.sched.Snapshot()
	resp := StatusResponse{
		Status:     "online",
		Timestamp:  now,
		Refreshing: s.sched.InFlight(),
		Interval:   s.sched.Interval().String(),
		Seq:        snap.Seq,
		Stocks:     domain.CountStocks(snap.Sectors),
		Sectors:    len(snap.Sectors),
		Source:     s.source,
	}
	if s.hours != nil {
		resp.MarketOpen = s.hours.IsMarketOpen(now)
	}
	if !snap.UpdatedAt.IsZero() {
		t := snap.UpdatedAt
		resp.LastUpdated = &t
	}
	if lc := s.sched.LastCycle(); !lc.IsZero() {
		resp.LastCycle = &lc
	}
	if err := s.sched.LastError(); err != nil {
		resp.LastError = err.Error()
	}
	writeJSON(w, resp)
}

func (s *HeatmapServer) handleMovers(w http.ResponseWriter, r *http.Request) {
	n, err := queryInt(r, "n", 5)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	gainers, losers := layout.TopMovers(s.sched.Snapshot().Sectors, n)
	resp := MoversResponse{Gainers: gainers, Losers: losers}
	if resp.Gainers == nil {
		resp.Gainers = []domain.Stock{}
	}
	if resp.Losers == nil {
		resp.Losers = []domain.Stock{}
	}
	writeJSON(w, resp)
}

func (s *HeatmapServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp := RunsResponse{Runs: []wire.Run{}}
	if s.runs != nil {
		runs, err := s.runs.RecentRuns(r.Context(), limit)
		if err != nil {
			s.log.Error("listing runs", "error", err)
			writeError(w, http.StatusInternalServerError, "listing runs failed")
			return
		}
		resp.Runs = convertRuns(runs)
	}
	writeJSON(w, resp)
}

func (s *HeatmapServer) handleLegend(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, LegendResponse{Legend: legend()})
}
