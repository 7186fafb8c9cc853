// Package history summarizes archived daily quotes for a symbol: the best,
// worst and average daily change plus price range and swing statistics.
package history

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Lucas-Song-Dev/StockHeatMap/internal/domain"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/store"
)

// DefaultDays is the lookback used when none is requested.
const DefaultDays = 30

// MaxDays caps the lookback window.
const MaxDays = 366

// ErrNoHistory is returned when the archive has no entries for a symbol.
var ErrNoHistory = errors.New("no history")

// Stats holds aggregated daily statistics for a single symbol.
type Stats struct {
	Symbol string `json:"symbol"`
	Days   int    `json:"days"`

	MaxChangePercent float64 `json:"maxChangePercent"`
	MinChangePercent float64 `json:"minChangePercent"`
	AvgChangePercent float64 `json:"avgChangePercent"`
	UpDays           int     `json:"upDays"`
	DownDays         int     `json:"downDays"`

	// Price statistics over days with a known price.
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	First float64 `json:"first"` // earliest price in the window
	Last  float64 `json:"last"`  // latest price in the window
	// MaxGain is the largest rise from any day's price to a later one, as a
	// fraction. MaxLoss is the largest fall.
	MaxGain float64 `json:"maxGain"`
	MaxLoss float64 `json:"maxLoss"`
}

// Aggregate computes Stats from archived quotes of one symbol. Quotes are
// ordered by date first so swing statistics follow the calendar.
func Aggregate(symbol string, quotes []domain.DailyQuote) Stats {
	qs := append([]domain.DailyQuote(nil), quotes...)
	sort.SliceStable(qs, func(a, b int) bool { return qs[a].Date.Before(qs[b].Date) })

	s := Stats{Symbol: symbol, Days: len(qs)}
	if len(qs) == 0 {
		return s
	}

	s.MaxChangePercent = math.Inf(-1)
	s.MinChangePercent = math.Inf(1)
	sum := 0.0

	minPrice := math.MaxFloat64
	maxPrice := 0.0
	s.Low = math.MaxFloat64
	priced := 0

	for _, q := range qs {
		c := q.ChangePercent
		sum += c
		if c > s.MaxChangePercent {
			s.MaxChangePercent = c
		}
		if c < s.MinChangePercent {
			s.MinChangePercent = c
		}
		switch {
		case c > 0:
			s.UpDays++
		case c < 0:
			s.DownDays++
		}

		if q.Price == nil || *q.Price <= 0 {
			continue
		}
		p := *q.Price
		if priced == 0 {
			s.First = p
		}
		priced++
		s.Last = p
		if p > s.High {
			s.High = p
		}
		if p < s.Low {
			s.Low = p
		}

		// Max gain: buy at lowest seen so far, sell now.
		if p < minPrice {
			minPrice = p
		}
		if g := (p - minPrice) / minPrice; g > s.MaxGain {
			s.MaxGain = g
		}
		// Max loss: buy at highest seen so far, sell now.
		if p > maxPrice {
			maxPrice = p
		}
		if l := (maxPrice - p) / maxPrice; l > s.MaxLoss {
			s.MaxLoss = l
		}
	}
	s.AvgChangePercent = sum / float64(len(qs))
	if priced == 0 {
		s.Low = 0
	}
	return s
}

// PeriodReturn is the fractional change from the first to the last priced
// day, or 0 without two prices.
func (s Stats) PeriodReturn() float64 {
	if s.First <= 0 || s.Last <= 0 {
		return 0
	}
	return (s.Last - s.First) / s.First
}

// Report is the history of one symbol with its summary.
type Report struct {
	Symbol string              `json:"symbol"`
	From   time.Time           `json:"from"`
	To     time.Time           `json:"to"`
	Days   []domain.DailyQuote `json:"days"`
	Stats  Stats               `json:"stats"`
}

// Service reads history from a quote archive.
type Service struct {
	archive store.QuoteArchive
	now     func() time.Time
}

// NewService creates a Service over archive.
func NewService(archive store.QuoteArchive) *Service {
	return &Service{archive: archive, now: time.Now}
}

// ClampDays bounds a requested lookback to [1, MaxDays], substituting
// DefaultDays for a non-positive request.
func ClampDays(days int) int {
	switch {
	case days <= 0:
		return DefaultDays
	case days > MaxDays:
		return MaxDays
	default:
		return days
	}
}

// Report returns the last days calendar days of history for symbol.
func (s *Service) Report(ctx context.Context, symbol string, days int) (*Report, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	days = ClampDays(days)
	to := s.now().UTC()
	from := to.AddDate(0, 0, -(days - 1))

	quotes, err := s.archive.ReadHistory(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}
	if len(quotes) == 0 {
		return nil, ErrNoHistory
	}
	st := Aggregate(symbol, quotes)
	sort.SliceStable(quotes, func(a, b int) bool { return quotes[a].Date.Before(quotes[b].Date) })
	return &Report{Symbol: symbol, From: from, To: to, Days: quotes, Stats: st}, nil
}
