package quote

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kylelemons/godebug/pretty"
	"github.com/redis/go-redis/v9"

	"github.com/Lucas-Song-Dev/StockHeatMap/internal/domain"
)

func TestMemoryCacheExpiry(t *testing.T) {
	now := time.Date(2024, 6, 12, 10, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	c.Set(ctx, up("AAPL", 1), time.Minute)
	if _, ok := c.Get(ctx, "AAPL"); !ok {
		t.Fatal("Get right after Set missed")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get(ctx, "AAPL"); ok {
		t.Error("Get after TTL should miss")
	}

	c.Set(ctx, up("MSFT", 1), time.Minute)
	c.Set(ctx, up("NVDA", 1), time.Hour)
	now = now.Add(30 * time.Minute)
	if n := c.Cleanup(); n != 1 {
		t.Errorf("Cleanup removed %d entries, want 1", n)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := NewRedisCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer rc.Close()
	ctx := context.Background()

	if err := rc.Ping(ctx); err != nil {
		t.Fatalf("Ping returned error: %v", err)
	}
	if _, ok := rc.Get(ctx, "AAPL"); ok {
		t.Error("Get on empty cache should miss")
	}

	want := domain.Quote{
		Symbol:        "AAPL",
		Price:         domain.Float64(189.84),
		Change:        2.56,
		ChangePercent: 1.3669,
		Volume:        domain.Int64(52164535),
		MarketCap:     domain.Float64(2.9e12),
		Source:        "yahoo",
	}
	rc.Set(ctx, want, time.Minute)

	got, ok := rc.Get(ctx, "AAPL")
	if !ok {
		t.Fatal("Get after Set missed")
	}
	if diff := pretty.Compare(want, got); diff != "" {
		t.Errorf("Get diff (-want +got):\n%s", diff)
	}
	if !mr.Exists("quote:AAPL") {
		t.Error("expected key quote:AAPL in redis")
	}

	mr.FastForward(2 * time.Minute)
	if _, ok := rc.Get(ctx, "AAPL"); ok {
		t.Error("Get after TTL should miss")
	}
}

func TestClientWithRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := NewRedisCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer rc.Close()

	src := newFakeSource(domain.Quote{Symbol: "JPM", Change: -0.8, ChangePercent: -0.4})
	c := NewClient(src, Options{Cache: rc, CacheTTL: time.Minute})
	ctx := context.Background()

	if _, err := c.FetchBatch(ctx, []string{"JPM"}); err != nil {
		t.Fatalf("FetchBatch returned error: %v", err)
	}
	if _, err := c.FetchBatch(ctx, []string{"JPM"}); err != nil {
		t.Fatalf("FetchBatch returned error: %v", err)
	}
	if n := src.callCount("JPM"); n != 1 {
		t.Errorf("source called %d times, want 1", n)
	}
}
