package quote

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Lucas-Song-Dev/StockHeatMap/internal/domain"
)

// Cache holds recently fetched quotes so repeated refreshes inside the TTL
// do not hit the provider.
type Cache interface {
	Get(ctx context.Context, symbol string) (domain.Quote, bool)
	Set(ctx context.Context, q domain.Quote, ttl time.Duration)
}

// ---------------------------------------------------------------------------
// In-memory cache
// ---------------------------------------------------------------------------

type cacheEntry struct {
	quote   domain.Quote
	expires time.Time
}

// MemoryCache is a process-local TTL cache.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]cacheEntry), now: time.Now}
}

// Get returns an unexpired quote.
func (c *MemoryCache) Get(_ context.Context, symbol string) (domain.Quote, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[symbol]
	if !ok {
		return domain.Quote{}, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, symbol)
		return domain.Quote{}, false
	}
	return e.quote, true
}

// Set stores q until ttl elapses.
func (c *MemoryCache) Set(_ context.Context, q domain.Quote, ttl time.Duration) {
	c.mu.Lock()
	c.entries[q.Symbol] = cacheEntry{quote: q, expires: c.now().Add(ttl)}
	c.mu.Unlock()
}

// Cleanup drops expired entries and returns how many were removed.
func (c *MemoryCache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// ---------------------------------------------------------------------------
// Redis cache
// ---------------------------------------------------------------------------

const redisKeyPrefix = "quote:"

// RedisCache shares quotes between server instances. Values are JSON under
// quote:<SYMBOL> with a Redis-side TTL.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get returns a cached quote. Any Redis or decode error counts as a miss.
func (c *RedisCache) Get(ctx context.Context, symbol string) (domain.Quote, bool) {
	data, err := c.client.Get(ctx, redisKeyPrefix+symbol).Bytes()
	if err != nil {
		return domain.Quote{}, false
	}
	var q domain.Quote
	if err := json.Unmarshal(data, &q); err != nil {
		return domain.Quote{}, false
	}
	return q, true
}

// Set stores q. Failures are dropped; the cache is best-effort.
func (c *RedisCache) Set(ctx context.Context, q domain.Quote, ttl time.Duration) {
	data, err := json.Marshal(q)
	if err != nil {
		return
	}
	c.client.Set(ctx, redisKeyPrefix+q.Symbol, data, ttl)
}

// Close closes the underlying client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// cachedQuote reads through c, which may be nil.
func cachedQuote(ctx context.Context, c Cache, symbol string) (domain.Quote, bool) {
	if c == nil {
		return domain.Quote{}, false
	}
	return c.Get(ctx, symbol)
}
