package quote

import (
	"context"
	"fmt"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"github.com/Lucas-Song-Dev/StockHeatMap/internal/domain"
)

// snapshotter is the subset of *marketdata.Client used by AlpacaSource.
type snapshotter interface {
	GetSnapshot(symbol string, req marketdata.GetSnapshotRequest) (*marketdata.Snapshot, error)
}

// AlpacaSource builds quotes from Alpaca market-data snapshots. Change is
// the latest price against the previous daily close.
type AlpacaSource struct {
	client snapshotter
	feed   marketdata.Feed
}

// NewAlpacaSource creates a source using the given credentials. dataURL may
// be empty for the SDK default.
func NewAlpacaSource(apiKey, apiSecret, dataURL string) *AlpacaSource {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	return &AlpacaSource{client: marketdata.NewClient(opts), feed: marketdata.IEX}
}

// Name returns the provider identifier.
func (s *AlpacaSource) Name() string { return "alpaca" }

// Fetch requests the snapshot for one symbol. The SDK call does not take a
// context, so cancellation is only honoured before the request starts.
func (s *AlpacaSource) Fetch(ctx context.Context, symbol string) (*domain.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap, err := s.client.GetSnapshot(symbol, marketdata.GetSnapshotRequest{Feed: s.feed})
	if err != nil {
		return nil, fmt.Errorf("alpaca snapshot %s: %w", symbol, err)
	}
	return snapshotToQuote(symbol, snap)
}

func snapshotToQuote(symbol string, snap *marketdata.Snapshot) (*domain.Quote, error) {
	if snap == nil || snap.PrevDailyBar == nil || snap.PrevDailyBar.Close <= 0 {
		return nil, fmt.Errorf("%s: %w: no previous close", symbol, ErrNoData)
	}

	var last float64
	switch {
	case snap.LatestTrade != nil && snap.LatestTrade.Price > 0:
		last = snap.LatestTrade.Price
	case snap.DailyBar != nil && snap.DailyBar.Close > 0:
		last = snap.DailyBar.Close
	default:
		return nil, fmt.Errorf("%s: %w: no latest price", symbol, ErrNoData)
	}

	prev := snap.PrevDailyBar.Close
	change := last - prev
	q := &domain.Quote{
		Symbol:        symbol,
		Price:         domain.Float64(last),
		Change:        change,
		ChangePercent: change / prev * 100,
		Source:        "alpaca",
	}
	if snap.DailyBar != nil {
		q.Volume = domain.Int64(int64(snap.DailyBar.Volume))
		q.LatestTradingDay = snap.DailyBar.Timestamp.Format("2006-01-02")
	}
	return q, nil
}
