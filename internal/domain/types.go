// Package domain defines the core types shared across the heatmap: quotes as
// fetched from upstream, and stocks assembled into sectors.
package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// DefaultIndustry is assigned to any ticker missing from the industry table.
const DefaultIndustry = "OTHER"

// Quote is one point-in-time market observation for a ticker. Optional
// upstream fields are pointers so that "missing" stays distinct from zero.
type Quote struct {
	Symbol           string   `json:"symbol"`
	Price            *float64 `json:"price,omitempty"`
	Change           float64  `json:"change"`
	ChangePercent    float64  `json:"changePercent"`
	Volume           *int64   `json:"volume,omitempty"`
	MarketCap        *float64 `json:"marketCap,omitempty"`
	LatestTradingDay string   `json:"latestTradingDay,omitempty"`
	Source           string   `json:"source,omitempty"`
}

// ErrInvalidQuote is wrapped by Validate for every rejected quote.
var ErrInvalidQuote = errors.New("invalid quote")

// Validate checks the quote invariants: non-empty symbol, finite numbers,
// non-negative volume and market cap, and change/percent sign agreement.
func (q *Quote) Validate() error {
	if q.Symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidQuote)
	}
	if !finite(q.Change) || !finite(q.ChangePercent) {
		return fmt.Errorf("%w: %s: non-finite change", ErrInvalidQuote, q.Symbol)
	}
	if q.Price != nil && !finite(*q.Price) {
		return fmt.Errorf("%w: %s: non-finite price", ErrInvalidQuote, q.Symbol)
	}
	if q.MarketCap != nil && (!finite(*q.MarketCap) || *q.MarketCap < 0) {
		return fmt.Errorf("%w: %s: bad market cap", ErrInvalidQuote, q.Symbol)
	}
	if q.Volume != nil && *q.Volume < 0 {
		return fmt.Errorf("%w: %s: negative volume", ErrInvalidQuote, q.Symbol)
	}
	if sign(q.Change) != sign(q.ChangePercent) {
		return fmt.Errorf("%w: %s: change %v and percent %v disagree in sign",
			ErrInvalidQuote, q.Symbol, q.Change, q.ChangePercent)
	}
	return nil
}

// Stock is a Quote enriched with its classification.
type Stock struct {
	Quote
	Sector   string `json:"sector"`
	Industry string `json:"industry"`
	IsMajor  bool   `json:"isMajor"`
}

// Sector is a named, ordered group of stocks. Empty sectors are never
// produced by the assembler.
type Sector struct {
	Name   string  `json:"name"`
	Stocks []Stock `json:"stocks"`
}

// CloneSectors returns a copy of sectors that shares no slices with the input.
func CloneSectors(in []Sector) []Sector {
	if in == nil {
		return nil
	}
	out := make([]Sector, len(in))
	for i, s := range in {
		out[i] = Sector{Name: s.Name, Stocks: append([]Stock(nil), s.Stocks...)}
	}
	return out
}

// FindStock looks up a stock by symbol across all sectors.
func FindStock(sectors []Sector, symbol string) (Stock, bool) {
	for _, sec := range sectors {
		for _, st := range sec.Stocks {
			if st.Symbol == symbol {
				return st, true
			}
		}
	}
	return Stock{}, false
}

// CountStocks returns the total number of stocks across sectors.
func CountStocks(sectors []Sector) int {
	n := 0
	for _, sec := range sectors {
		n += len(sec.Stocks)
	}
	return n
}

// Float64 and Int64 return pointers, for building optional quote fields.
func Float64(v float64) *float64 { return &v }

func Int64(v int64) *int64 { return &v }

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func sign(f float64) int {
	switch {
	case f > 0:
		return 1
	case f < 0:
		return -1
	default:
		return 0
	}
}

// DailyQuote is the last observed quote for a symbol on one trading day, as
// kept in the history archive.
type DailyQuote struct {
	Symbol        string    `json:"symbol"`
	Date          time.Time `json:"date"`
	CapturedAt    time.Time `json:"capturedAt"`
	Price         *float64  `json:"price,omitempty"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	Volume        *int64    `json:"volume,omitempty"`
	MarketCap     *float64  `json:"marketCap,omitempty"`
	Sector        string    `json:"sector"`
	Industry      string    `json:"industry"`
}
