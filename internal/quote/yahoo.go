package quote

import (
	"context"
	"fmt"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/equity"

	"github.com/Lucas-Song-Dev/StockHeatMap/internal/domain"
)

// YahooSource fetches equity quotes through finance-go. It is the only
// source that also reports market capitalization.
type YahooSource struct {
	get func(symbol string) (*finance.Equity, error)
}

// NewYahooSource creates a source backed by the finance-go equity endpoint.
func NewYahooSource() *YahooSource {
	return &YahooSource{get: equity.Get}
}

// Name returns the provider identifier.
func (s *YahooSource) Name() string { return "yahoo" }

// Fetch requests one equity quote.
func (s *YahooSource) Fetch(ctx context.Context, symbol string) (*domain.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	eq, err := s.get(symbol)
	if err != nil {
		return nil, fmt.Errorf("yahoo quote %s: %w", symbol, err)
	}
	return equityToQuote(symbol, eq)
}

func equityToQuote(symbol string, eq *finance.Equity) (*domain.Quote, error) {
	if eq == nil || eq.RegularMarketPrice <= 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrNoData)
	}
	q := &domain.Quote{
		Symbol:        symbol,
		Price:         domain.Float64(eq.RegularMarketPrice),
		Change:        eq.RegularMarketChange,
		ChangePercent: eq.RegularMarketChangePercent,
		Volume:        domain.Int64(int64(eq.RegularMarketVolume)),
		Source:        "yahoo",
	}
	// Rounded upstream values can disagree in sign around zero.
	if q.Change == 0 || q.ChangePercent == 0 {
		q.Change, q.ChangePercent = 0, 0
	}
	if eq.MarketCap > 0 {
		q.MarketCap = domain.Float64(float64(eq.MarketCap))
	}
	if eq.RegularMarketTime > 0 {
		q.LatestTradingDay = time.Unix(int64(eq.RegularMarketTime), 0).UTC().Format("2006-01-02")
	}
	return q, nil
}
