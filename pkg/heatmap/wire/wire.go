// Package wire holds the JSON shapes of the heatmap HTTP API. The server
// encodes them and the SDK decodes them, so the package stays free of
// storage, search and transport dependencies.
package wire

import (
	"time"

	"github.com/Lucas-Song-Dev/StockHeatMap/internal/domain"
)

// CellJSON is one stock with its computed size and color bucket.
type CellJSON struct {
	Symbol        string   `json:"symbol"`
	Size          float64  `json:"size"`
	Bucket        string   `json:"bucket"`
	Price         *float64 `json:"price,omitempty"`
	Change        float64  `json:"change"`
	ChangePercent float64  `json:"changePercent"`
	Volume        *int64   `json:"volume,omitempty"`
	MarketCap     *float64 `json:"marketCap,omitempty"`
	IsMajor       bool     `json:"isMajor"`
}

// IndustryJSON is one industry block inside a sector.
type IndustryJSON struct {
	Name         string     `json:"name"`
	MaxMarketCap float64    `json:"maxMarketCap"`
	Cells        []CellJSON `json:"cells"`
}

// SectorJSON is one sector of the heatmap.
type SectorJSON struct {
	Name       string         `json:"name"`
	Industries []IndustryJSON `json:"industries"`
}

// LegendEntry pairs a color bucket with its range label.
type LegendEntry struct {
	Bucket string `json:"bucket"`
	Label  string `json:"label"`
}

// HeatmapResponse is the full render model for one mode.
type HeatmapResponse struct {
	Mode      string        `json:"mode"`
	Seq       uint64        `json:"seq"`
	UpdatedAt *time.Time    `json:"updatedAt,omitempty"`
	Loading   bool          `json:"loading"`
	Error     *string       `json:"error"`
	Sectors   []SectorJSON  `json:"sectors"`
	Legend    []LegendEntry `json:"legend"`
}

// StocksBySectorResponse is the plain sector-grouped shape. Missing lists
// requested symbols that have no quote.
type StocksBySectorResponse struct {
	Sectors   []domain.Sector `json:"sectors"`
	Missing   []string        `json:"missing,omitempty"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
}

// StockResponse is the details of one stock.
type StockResponse struct {
	Stock  domain.Stock `json:"stock"`
	Bucket string       `json:"bucket"`
}

// StocksResponse is a flat list of stocks.
type StocksResponse struct {
	Stocks    []domain.Stock `json:"stocks"`
	Missing   []string       `json:"missing,omitempty"`
	Timestamp *time.Time     `json:"timestamp,omitempty"`
}

// SectorPerformance summarizes the moves of one sector.
type SectorPerformance struct {
	Name             string  `json:"name"`
	Count            int     `json:"count"`
	AvgChangePercent float64 `json:"avgChangePercent"`
	Gainers          int     `json:"gainers"`
	Losers           int     `json:"losers"`
	Bucket           string  `json:"bucket"`
}

// SectorsResponse lists sector performance in display order.
type SectorsResponse struct {
	Sectors   []SectorPerformance `json:"sectors"`
	Timestamp *time.Time          `json:"timestamp,omitempty"`
}

// HistoryStats is the aggregate of one symbol's archived days.
type HistoryStats struct {
	Symbol string `json:"symbol"`
	Days   int    `json:"days"`

	MaxChangePercent float64 `json:"maxChangePercent"`
	MinChangePercent float64 `json:"minChangePercent"`
	AvgChangePercent float64 `json:"avgChangePercent"`
	UpDays           int     `json:"upDays"`
	DownDays         int     `json:"downDays"`

	High    float64 `json:"high"`
	Low     float64 `json:"low"`
	First   float64 `json:"first"`
	Last    float64 `json:"last"`
	MaxGain float64 `json:"maxGain"`
	MaxLoss float64 `json:"maxLoss"`

	// PeriodReturn is the fractional change from the first to the last
	// priced day.
	PeriodReturn float64 `json:"periodReturn"`
}

// HistoryResponse is the archived history of one symbol.
type HistoryResponse struct {
	Symbol string              `json:"symbol"`
	From   time.Time           `json:"from"`
	To     time.Time           `json:"to"`
	Days   []domain.DailyQuote `json:"days"`
	Stats  HistoryStats        `json:"stats"`
}

// HistoryBatchResponse is the history of several symbols. Missing lists
// symbols with nothing archived.
type HistoryBatchResponse struct {
	Reports []HistoryResponse `json:"reports"`
	Missing []string          `json:"missing,omitempty"`
}

// SearchHit is one matching stock.
type SearchHit struct {
	Stock domain.Stock `json:"stock"`
	Score float64      `json:"score"`
}

// SearchResponse lists search hits.
type SearchResponse struct {
	Query string      `json:"query"`
	Hits  []SearchHit `json:"hits"`
}

// RefreshResponse reports whether a manual refresh was started.
type RefreshResponse struct {
	Refreshed bool   `json:"refreshed"`
	Error     string `json:"error,omitempty"`
}

// StatusResponse summarizes service health.
type StatusResponse struct {
	Status      string     `json:"status"`
	Timestamp   time.Time  `json:"timestamp"`
	MarketOpen  bool       `json:"marketOpen"`
	LastUpdated *time.Time `json:"lastUpdated,omitempty"`
	LastCycle   *time.Time `json:"lastCycle,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
	Refreshing  bool       `json:"refreshing"`
	Interval    string     `json:"interval"`
	Seq         uint64     `json:"seq"`
	Stocks      int        `json:"stocks"`
	Sectors     int        `json:"sectors"`
	Source      string     `json:"source,omitempty"`
}

// MoversResponse lists the largest gainers and losers.
type MoversResponse struct {
	Gainers []domain.Stock `json:"gainers"`
	Losers  []domain.Stock `json:"losers"`
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

// RunsResponse lists recent refresh runs.
type RunsResponse struct {
	Runs []Run `json:"runs"`
}

// LegendResponse lists the color buckets.
type LegendResponse struct {
	Legend []LegendEntry `json:"legend"`
}
