package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/Lucas-Song-Dev/StockHeatMap/internal/domain"
)

// Compile-time interface check.
var _ QuoteArchive = (*ParquetStore)(nil)

const dateLayout = "2006-01-02"

// ParquetStore implements QuoteArchive using one Parquet file per trading
// day on disk.
type ParquetStore struct {
	DataDir string
	// Location decides the trading day of quotes that carry none.
	Location *time.Location
}

// NewParquetStore creates a new ParquetStore rooted at the given data
// directory. Quotes without a trading day are filed under their capture
// date in loc.
func NewParquetStore(dataDir string, loc *time.Location) *ParquetStore {
	if loc == nil {
		loc = time.UTC
	}
	return &ParquetStore{DataDir: dataDir, Location: loc}
}

// QuoteRecord is the Parquet schema for an archived daily quote.
type QuoteRecord struct {
	Symbol        string   `parquet:"symbol"`
	Date          int64    `parquet:"date,timestamp(millisecond)"`        // trading day, UTC midnight
	CapturedAt    int64    `parquet:"captured_at,timestamp(millisecond)"` // Unix ms
	Price         *float64 `parquet:"price,optional"`
	Change        float64  `parquet:"change"`
	ChangePercent float64  `parquet:"change_percent"`
	Volume        *int64   `parquet:"volume,optional"`
	MarketCap     *float64 `parquet:"market_cap,optional"`
	Sector        string   `parquet:"sector"`
	Industry      string   `parquet:"industry"`
}

// ArchiveQuotes writes every stock to the file of its trading day at:
//
//	<DataDir>/quotes/<YYYY-MM-DD>.parquet
func (s *ParquetStore) ArchiveQuotes(_ context.Context, capturedAt time.Time, sectors []domain.Sector) error {
	groups := make(map[string][]QuoteRecord)
	for _, sec := range sectors {
		for _, st := range sec.Stocks {
			day := s.tradingDay(st.LatestTradingDay, capturedAt)
			groups[day.Format(dateLayout)] = append(groups[day.Format(dateLayout)], QuoteRecord{
				Symbol:        st.Symbol,
				Date:          day.UnixMilli(),
				CapturedAt:    capturedAt.UnixMilli(),
				Price:         st.Price,
				Change:        st.Change,
				ChangePercent: st.ChangePercent,
				Volume:        st.Volume,
				MarketCap:     st.MarketCap,
				Sector:        st.Sector,
				Industry:      st.Industry,
			})
		}
	}

	for date, records := range groups {
		day, _ := time.Parse(dateLayout, date)
		path := s.quotePath(day)

		existing, _ := readParquetFile[QuoteRecord](path)
		merged := mergeQuoteRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing quotes for %s: %w", date, err)
		}
	}
	return nil
}

// ReadHistory reads the daily files covering [start, end] and returns the
// records for symbol.
func (s *ParquetStore) ReadHistory(_ context.Context, symbol string, start, end time.Time) ([]domain.DailyQuote, error) {
	symbol = strings.ToUpper(symbol)
	first := utcDay(start)
	last := utcDay(end)

	var out []domain.DailyQuote
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		records, err := readParquetFile[QuoteRecord](s.quotePath(d))
		if err != nil {
			// No capture that day.
			continue
		}
		for _, r := range records {
			if r.Symbol != symbol {
				continue
			}
			out = append(out, domain.DailyQuote{
				Symbol:        r.Symbol,
				Date:          time.UnixMilli(r.Date).UTC(),
				CapturedAt:    time.UnixMilli(r.CapturedAt),
				Price:         r.Price,
				Change:        r.Change,
				ChangePercent: r.ChangePercent,
				Volume:        r.Volume,
				MarketCap:     r.MarketCap,
				Sector:        r.Sector,
				Industry:      r.Industry,
			})
		}
	}
	return out, nil
}

// ListDays returns the archived trading days, oldest first.
func (s *ParquetStore) ListDays() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.DataDir, "quotes"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var days []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".parquet"); ok && !e.IsDir() {
			days = append(days, name)
		}
	}
	sort.Strings(days)
	return days, nil
}

// tradingDay resolves the upstream trading-day string, falling back to the
// capture date in the store's location.
func (s *ParquetStore) tradingDay(latest string, capturedAt time.Time) time.Time {
	if latest != "" {
		if d, err := time.Parse(dateLayout, latest); err == nil {
			return d
		}
	}
	local := capturedAt.In(s.Location)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// quotePath returns the filesystem path for a daily quote file.
// Layout: <dataDir>/quotes/<YYYY-MM-DD>.parquet
func (s *ParquetStore) quotePath(day time.Time) string {
	return filepath.Join(s.DataDir, "quotes", day.Format(dateLayout)+".parquet")
}

func utcDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeQuoteRecords deduplicates by (symbol, date), preferring incoming
// records. Results are sorted by symbol.
func mergeQuoteRecords(existing, incoming []QuoteRecord) []QuoteRecord {
	type key struct {
		symbol string
		date   int64
	}
	seen := make(map[key]QuoteRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.Symbol, r.Date}] = r
	}
	for _, r := range incoming {
		seen[key{r.Symbol, r.Date}] = r
	}

	merged := make([]QuoteRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Symbol != merged[j].Symbol {
			return merged[i].Symbol < merged[j].Symbol
		}
		return merged[i].Date < merged[j].Date
	})
	return merged
}
