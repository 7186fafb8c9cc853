// Package quote fetches per-ticker quotes from an upstream provider and
// normalizes them into domain.Quote. Provider response shapes never leave
// this package.
package quote

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Lucas-Song-Dev/StockHeatMap/internal/domain"
)

var (
	// ErrNoData means the upstream answered but had no usable quote for the
	// symbol (error payload, rate-limit notice, or missing quote object).
	ErrNoData = errors.New("no data")

	// ErrMalformed means a numeric field could not be parsed.
	ErrMalformed = errors.New("malformed quote")

	// ErrAllFailed is returned by FetchBatch when no symbol succeeded.
	ErrAllFailed = errors.New("could not fetch data")
)

// Source is an upstream quote provider adapter.
type Source interface {
	// Name returns the provider identifier, recorded on every quote.
	Name() string
	// Fetch returns the current quote for one upper-case symbol.
	Fetch(ctx context.Context, symbol string) (*domain.Quote, error)
}

// permanent reports whether err is an answer rather than a transport
// failure, so retrying cannot help.
func permanent(err error) bool {
	return errors.Is(err, ErrNoData) ||
		errors.Is(err, ErrMalformed) ||
		errors.Is(err, domain.ErrInvalidQuote) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// MultiSource tries each source in order and returns the first success.
type MultiSource struct {
	sources []Source
}

// NewMultiSource chains sources into one fallback Source.
func NewMultiSource(sources ...Source) *MultiSource {
	return &MultiSource{sources: sources}
}

// Name returns e.g. "multi(yahoo,globalquote)".
func (m *MultiSource) Name() string {
	names := make([]string, len(m.sources))
	for i, s := range m.sources {
		names[i] = s.Name()
	}
	return "multi(" + strings.Join(names, ",") + ")"
}

// Fetch returns the first successful quote. When every source fails the
// errors are joined, so errors.Is(err, ErrNoData) holds if any source said
// so.
func (m *MultiSource) Fetch(ctx context.Context, symbol string) (*domain.Quote, error) {
	if len(m.sources) == 0 {
		return nil, fmt.Errorf("%s: %w: no sources configured", symbol, ErrNoData)
	}
	var errs []error
	for _, s := range m.sources {
		q, err := s.Fetch(ctx, symbol)
		if err == nil {
			return q, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	return nil, errors.Join(errs...)
}
