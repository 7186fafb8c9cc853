package quote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/Lucas-Song-Dev/StockHeatMap/internal/config"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/domain"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/util"
)

// Options tunes a Client. Zero values pick sensible defaults.
type Options struct {
	Cache           Cache
	CacheTTL        time.Duration
	RateLimitPerMin int
	Retries         int
	RetryDelay      time.Duration
	MaxConcurrent   int
	Logger          *slog.Logger
}

// Client fetches quotes from a Source with caching, rate limiting, and
// retry of transport failures.
type Client struct {
	src           Source
	cache         Cache
	ttl           time.Duration
	limiter       *util.RateLimiter
	retries       int
	retryDelay    time.Duration
	maxConcurrent int
	log           *slog.Logger
	closers       []func() error
}

// NewClient wraps src.
func NewClient(src Source, opts Options) *Client {
	c := &Client{
		src:           src,
		cache:         opts.Cache,
		ttl:           opts.CacheTTL,
		limiter:       util.NewRateLimiter(opts.RateLimitPerMin, opts.MaxConcurrent),
		retries:       opts.Retries,
		retryDelay:    opts.RetryDelay,
		maxConcurrent: opts.MaxConcurrent,
		log:           opts.Logger,
	}
	if c.ttl <= 0 {
		c.ttl = config.DefaultCacheTTL
	}
	if c.retryDelay <= 0 {
		c.retryDelay = 250 * time.Millisecond
	}
	if c.maxConcurrent <= 0 {
		c.maxConcurrent = config.DefaultMaxConcurrent
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	c.log = c.log.With("component", "quote", "source", src.Name())
	return c
}

// SourceName returns the wrapped source's name.
func (c *Client) SourceName() string { return c.src.Name() }

// Fetch returns the quote for one symbol. Upstream "no data" answers come
// back as ErrNoData, unparseable numbers as ErrMalformed, and quotes that
// break the domain invariants as domain.ErrInvalidQuote.
func (c *Client) Fetch(ctx context.Context, symbol string) (domain.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return domain.Quote{}, fmt.Errorf("%w: empty symbol", ErrNoData)
	}
	if q, ok := cachedQuote(ctx, c.cache, symbol); ok {
		return q, nil
	}

	var got *domain.Quote
	err := util.RetryIf(ctx, c.retries+1, c.retryDelay, func(err error) bool {
		return !permanent(err)
	}, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		q, err := c.src.Fetch(ctx, symbol)
		if err != nil {
			return err
		}
		got = q
		return nil
	})
	if err != nil {
		return domain.Quote{}, err
	}
	if got == nil {
		return domain.Quote{}, fmt.Errorf("%s: %w", symbol, ErrNoData)
	}

	q := *got
	q.Symbol = symbol
	if err := q.Validate(); err != nil {
		return domain.Quote{}, err
	}
	if c.cache != nil {
		c.cache.Set(ctx, q, c.ttl)
	}
	return q, nil
}

// FetchBatch fetches all symbols concurrently and returns the ones that
// succeeded. Per-symbol failures are logged and dropped. If nothing
// succeeds the error wraps ErrAllFailed, since an empty result cannot be
// told apart from a broken pipeline.
func (c *Client) FetchBatch(ctx context.Context, symbols []string) (map[string]domain.Quote, error) {
	uniq := make([]string, 0, len(symbols))
	seen := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		uniq = append(uniq, s)
	}
	if len(uniq) == 0 {
		return nil, fmt.Errorf("%w: no symbols requested", ErrAllFailed)
	}

	type result struct {
		quote domain.Quote
		ok    bool
	}

	results := make([]result, len(uniq))
	sem := make(chan struct{}, c.maxConcurrent)

	g, gctx := errgroup.WithContext(ctx)

	for i, sym := range uniq {
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			q, err := c.Fetch(gctx, sym)
			if err != nil {
				c.log.Warn("quote fetch failed", "symbol", sym, "error", err)
				return nil // skip failed symbol
			}
			results[i] = result{quote: q, ok: true}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]domain.Quote, len(uniq))
	for _, r := range results {
		if r.ok {
			out[r.quote.Symbol] = r.quote
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: 0 of %d symbols", ErrAllFailed, len(uniq))
	}
	c.log.Debug("batch fetched", "requested", len(uniq), "ok", len(out))
	return out, nil
}

// Close releases resources owned by the client, such as a Redis cache
// connection opened by NewClientFromConfig.
func (c *Client) Close() error {
	var errs []error
	for _, f := range c.closers {
		errs = append(errs, f())
	}
	return errors.Join(errs...)
}

// ---------------------------------------------------------------------------
// Construction from config
// ---------------------------------------------------------------------------

// NewSource builds the Source named by cfg.Quotes.Provider. A comma-separated
// provider list becomes a MultiSource in that order.
func NewSource(cfg *config.Config) (Source, error) {
	names := strings.Split(cfg.Quotes.Provider, ",")
	var sources []Source
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		switch name {
		case "globalquote", "alphavantage":
			sources = append(sources, NewGlobalQuoteSource(cfg.Quotes.BaseURL, cfg.Quotes.APIKey, cfg.Quotes.Timeout, nil))
		case "alpaca":
			if cfg.Alpaca.APIKey == "" {
				return nil, fmt.Errorf("provider alpaca: missing alpaca api key")
			}
			sources = append(sources, NewAlpacaSource(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL))
		case "yahoo":
			sources = append(sources, NewYahooSource())
		default:
			return nil, fmt.Errorf("unknown quote provider %q", name)
		}
	}
	switch len(sources) {
	case 0:
		return nil, fmt.Errorf("no quote provider configured")
	case 1:
		return sources[0], nil
	default:
		return NewMultiSource(sources...), nil
	}
}

// NewClientFromConfig builds a Client with the configured source and a Redis
// cache when redis.addr is set, otherwise an in-memory cache.
func NewClientFromConfig(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Client, error) {
	src, err := NewSource(cfg)
	if err != nil {
		return nil, err
	}

	var cache Cache = NewMemoryCache()
	var closers []func() error
	if cfg.Redis.Addr != "" {
		rc := NewRedisCache(redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}))
		if err := rc.Ping(ctx); err != nil {
			rc.Close()
			return nil, fmt.Errorf("connecting to redis %s: %w", cfg.Redis.Addr, err)
		}
		cache = rc
		closers = append(closers, rc.Close)
	}

	c := NewClient(src, Options{
		Cache:           cache,
		CacheTTL:        cfg.Quotes.CacheTTL,
		RateLimitPerMin: cfg.Quotes.RateLimitPerMin,
		Retries:         cfg.Quotes.RetryCount(),
		MaxConcurrent:   cfg.Quotes.MaxConcurrent,
		Logger:          log,
	})
	c.closers = closers
	return c, nil
}
