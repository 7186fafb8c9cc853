package search

import (
	"testing"

	"github.com/Lucas-Song-Dev/StockHeatMap/internal/domain"
)

func fixture() []domain.Sector {
	mk := func(sym, sector, industry string) domain.Stock {
		return domain.Stock{Quote: domain.Quote{Symbol: sym}, Sector: sector, Industry: industry}
	}
	return []domain.Sector{
		{Name: "TECHNOLOGY", Stocks: []domain.Stock{
			mk("AAPL", "TECHNOLOGY", "CONSUMER ELECTRONICS"),
			mk("AMD", "TECHNOLOGY", "SEMICONDUCTORS"),
			mk("NVDA", "TECHNOLOGY", "SEMICONDUCTORS"),
			mk("MSFT", "TECHNOLOGY", "SOFTWARE"),
		}},
		{Name: "ENERGY", Stocks: []domain.Stock{
			mk("XOM", "ENERGY", "OIL & GAS"),
		}},
	}
}

func symbols(hits []Hit) []string {
	var out []string
	for _, h := range hits {
		out = append(out, h.Stock.Symbol)
	}
	return out
}

func newIndex(t *testing.T) *Index {
	t.Helper()
	x := NewIndex()
	if err := x.Rebuild(fixture()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	t.Cleanup(func() { x.Close() })
	return x
}

func TestSearchExactSymbolFirst(t *testing.T) {
	x := newIndex(t)
	hits, err := x.Search("amd", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) == 0 || hits[0].Stock.Symbol != "AMD" {
		t.Fatalf("Search(amd) = %v, want AMD first", symbols(hits))
	}
}

func TestSearchPrefix(t *testing.T) {
	x := newIndex(t)
	hits, err := x.Search("A", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	got := map[string]bool{}
	for _, s := range symbols(hits) {
		got[s] = true
	}
	if !got["AAPL"] || !got["AMD"] {
		t.Errorf("Search(A) = %v, want AAPL and AMD", symbols(hits))
	}
}

func TestSearchByIndustry(t *testing.T) {
	x := newIndex(t)
	hits, err := x.Search("semiconductors", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("Search(semiconductors) = %v, want AMD and NVDA", symbols(hits))
	}
	for _, h := range hits {
		if h.Stock.Industry != "SEMICONDUCTORS" {
			t.Errorf("unexpected hit %s in %s", h.Stock.Symbol, h.Stock.Industry)
		}
	}
}

func TestSearchEmpty(t *testing.T) {
	x := NewIndex()
	if hits, err := x.Search("aapl", 5); err != nil || hits != nil {
		t.Errorf("Search on unbuilt index = %v, %v", hits, err)
	}
	x = newIndex(t)
	if hits, _ := x.Search("   ", 5); hits != nil {
		t.Errorf("blank query should return nothing, got %v", symbols(hits))
	}
	if x.Len() != 5 {
		t.Errorf("Len = %d, want 5", x.Len())
	}
}

func TestRebuildReplaces(t *testing.T) {
	x := newIndex(t)
	if err := x.Rebuild([]domain.Sector{{Name: "ENERGY", Stocks: []domain.Stock{
		{Quote: domain.Quote{Symbol: "CVX"}, Sector: "ENERGY", Industry: "OIL & GAS"},
	}}}); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if hits, _ := x.Search("aapl", 5); len(hits) != 0 {
		t.Errorf("AAPL should be gone after rebuild, got %v", symbols(hits))
	}
	if hits, _ := x.Search("cvx", 5); len(hits) != 1 {
		t.Errorf("Search(cvx) = %v, want [CVX]", symbols(hits))
	}
}
