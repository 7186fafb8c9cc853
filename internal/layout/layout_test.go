package layout

import (
	"math"
	"testing"
	"time"

	"github.com/kylelemons/godebug/pretty"

	"github.com/Lucas-Song-Dev/StockHeatMap/internal/domain"
)

func TestBucketFor(t *testing.T) {
	tests := []struct {
		in   float64
		want Bucket
	}{
		{-5, StrongNegative},
		{-3, StrongNegative},
		{-2.99, ModerateNegative},
		{-1, ModerateNegative},
		{-0.5, WeakNegative},
		{0, Neutral},
		{0.5, WeakPositive},
		{1, ModeratePositive},
		{2.99, ModeratePositive},
		{3, StrongPositive},
		{12, StrongPositive},
		{math.NaN(), Neutral},
		{math.Inf(1), Neutral},
		{math.Inf(-1), Neutral},
	}
	for _, tt := range tests {
		if got := BucketFor(tt.in); got != tt.want {
			t.Errorf("BucketFor(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestLegendCoversBuckets(t *testing.T) {
	leg := Legend()
	if len(leg) != len(Buckets) {
		t.Fatalf("legend has %d entries, want %d", len(leg), len(Buckets))
	}
	for i, e := range leg {
		if e.Bucket != Buckets[i] {
			t.Errorf("legend[%d] = %s, want %s", i, e.Bucket, Buckets[i])
		}
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{
		"":         ModeAbsolute,
		"absolute": ModeAbsolute,
		"Sector":   ModeSectorRelative,
		"relative": ModeSectorRelative,
	} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseMode("treemap"); err == nil {
		t.Error("ParseMode(treemap) should fail")
	}
	if ModeAbsolute.Toggle() != ModeSectorRelative || ModeSectorRelative.Toggle() != ModeAbsolute {
		t.Error("Toggle should flip modes")
	}
}

func TestSize(t *testing.T) {
	const eps = 1e-9
	tests := []struct {
		name string
		mode Mode
		cap  *float64
		max  float64
		want float64
	}{
		{"relative largest", ModeSectorRelative, domain.Float64(200), 200, 150},
		{"relative half", ModeSectorRelative, domain.Float64(100), 200, 100},
		{"relative missing cap", ModeSectorRelative, nil, 1000, 51},
		{"relative zero max", ModeSectorRelative, nil, 0, 1050},
		{"relative nan max", ModeSectorRelative, domain.Float64(1), math.NaN(), 150},
		{"absolute", ModeAbsolute, domain.Float64(25e6), 0, 1},
		{"absolute missing cap", ModeAbsolute, nil, 0, math.Sqrt(100000) / 5000},
		{"absolute zero cap", ModeAbsolute, domain.Float64(0), 0, math.Sqrt(100000) / 5000},
		{"absolute negative cap", ModeAbsolute, domain.Float64(-4), 0, math.Sqrt(100000) / 5000},
		{"absolute infinite cap", ModeAbsolute, domain.Float64(math.Inf(1)), 0, math.Sqrt(100000) / 5000},
		{"relative zero cap", ModeSectorRelative, domain.Float64(0), 1000, 51},
		{"relative nan cap", ModeSectorRelative, domain.Float64(math.NaN()), 1000, 51},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Size(tt.mode, tt.cap, tt.max)
			if math.Abs(got-tt.want) > eps {
				t.Errorf("Size = %v, want %v", got, tt.want)
			}
			if got <= 0 || math.IsInf(got, 0) || math.IsNaN(got) {
				t.Errorf("Size = %v, want strictly positive finite", got)
			}
		})
	}
}

func stock(sym, sector, industry string, pct float64, cap *float64) domain.Stock {
	return domain.Stock{
		Quote:    domain.Quote{Symbol: sym, Change: pct, ChangePercent: pct, MarketCap: cap},
		Sector:   sector,
		Industry: industry,
	}
}

func sampleSectors() []domain.Sector {
	return []domain.Sector{
		{Name: "TECHNOLOGY", Stocks: []domain.Stock{
			stock("AAPL", "TECHNOLOGY", "CONSUMER ELECTRONICS", 1.5, domain.Float64(3e12)),
			stock("MSFT", "TECHNOLOGY", "SOFTWARE", -0.4, domain.Float64(3e12)),
			stock("ADBE", "TECHNOLOGY", "SOFTWARE", -4, domain.Float64(1.5e12)),
			stock("NEW", "TECHNOLOGY", "", 0, nil),
		}},
		{Name: "ENERGY", Stocks: []domain.Stock{
			stock("XOM", "ENERGY", "OIL & GAS", 3.2, domain.Float64(4e11)),
		}},
	}
}

func TestComputeSectorRelative(t *testing.T) {
	hm := Compute(sampleSectors(), ModeSectorRelative)

	type row struct {
		Sector, Industry, Symbol string
		Size                     float64
		Bucket                   Bucket
	}
	var got []row
	for _, s := range hm.Sectors {
		for _, ind := range s.Industries {
			for _, c := range ind.Cells {
				got = append(got, row{s.Name, ind.Name, c.Stock.Symbol, c.Size, c.Bucket})
			}
		}
	}
	want := []row{
		{"TECHNOLOGY", "CONSUMER ELECTRONICS", "AAPL", 150, ModeratePositive},
		{"TECHNOLOGY", "SOFTWARE", "MSFT", 150, WeakNegative},
		{"TECHNOLOGY", "SOFTWARE", "ADBE", 100, StrongNegative},
		{"TECHNOLOGY", "OTHER", "NEW", 1050, Neutral},
		{"ENERGY", "OIL & GAS", "XOM", 150, StrongPositive},
	}
	if diff := pretty.Compare(want, got); diff != "" {
		t.Errorf("Compute diff (-want +got):\n%s", diff)
	}
	if hm.Mode != ModeSectorRelative {
		t.Errorf("Mode = %v", hm.Mode)
	}
}

func TestComputeAbsoluteComparableAcrossSectors(t *testing.T) {
	sectors := []domain.Sector{
		{Name: "A", Stocks: []domain.Stock{stock("BIG", "A", "X", 1, domain.Float64(4e12))}},
		{Name: "B", Stocks: []domain.Stock{stock("SMALL", "B", "Y", 1, domain.Float64(1e12))}},
	}
	hm := Compute(sectors, ModeAbsolute)
	big, _ := hm.Cell("BIG")
	small, _ := hm.Cell("SMALL")
	if math.Abs(big.Size/small.Size-2) > 1e-9 {
		t.Errorf("size ratio = %v, want 2 (sqrt of cap ratio)", big.Size/small.Size)
	}

	rel := Compute(sectors, ModeSectorRelative)
	b, _ := rel.Cell("BIG")
	s, _ := rel.Cell("SMALL")
	if b.Size != s.Size {
		t.Errorf("relative sizes should match as each leads its group: %v vs %v", b.Size, s.Size)
	}
}

func TestComputeDoesNotMutateInput(t *testing.T) {
	in := sampleSectors()
	before := pretty.Sprint(in)
	Compute(in, ModeAbsolute)
	if after := pretty.Sprint(in); after != before {
		t.Error("Compute mutated its input")
	}
}

func TestComputeDeterministic(t *testing.T) {
	for _, mode := range []Mode{ModeAbsolute, ModeSectorRelative} {
		first := Compute(sampleSectors(), mode)
		second := Compute(sampleSectors(), mode)
		if diff := pretty.Compare(first, second); diff != "" {
			t.Errorf("Compute(%v) differs between calls (-first +second):\n%s", mode, diff)
		}
	}
}

func TestSectorPerformance(t *testing.T) {
	got := SectorPerformance(append(sampleSectors(), domain.Sector{Name: "EMPTY"}))
	want := []SectorStats{
		{Name: "TECHNOLOGY", Count: 4, AvgChangePercent: (1.5 - 0.4 - 4 + 0) / 4, Gainers: 1, Losers: 2},
		{Name: "ENERGY", Count: 1, AvgChangePercent: 3.2, Gainers: 1},
		{Name: "EMPTY"},
	}
	if diff := pretty.Compare(want, got); diff != "" {
		t.Errorf("SectorPerformance diff (-want +got):\n%s", diff)
	}

	hm := Compute(sampleSectors(), ModeAbsolute)
	if diff := pretty.Compare(want[0], hm.Sectors[0].Performance()); diff != "" {
		t.Errorf("SectorLayout.Performance diff (-want +got):\n%s", diff)
	}
}

func TestHeatmapCells(t *testing.T) {
	hm := Compute(sampleSectors(), ModeAbsolute)
	if n := len(hm.Cells()); n != 5 {
		t.Errorf("Cells() = %d, want 5", n)
	}
	if _, ok := hm.Cell("NOPE"); ok {
		t.Error("Cell(NOPE) should not be found")
	}
	if len(Compute(nil, ModeAbsolute).Sectors) != 0 {
		t.Error("empty input should give empty layout")
	}
}

func TestTopMovers(t *testing.T) {
	gainers, losers := TopMovers(sampleSectors(), 1)
	if len(gainers) != 1 || gainers[0].Symbol != "XOM" {
		t.Errorf("gainers = %v, want [XOM]", symbols(gainers))
	}
	if len(losers) != 1 || losers[0].Symbol != "ADBE" {
		t.Errorf("losers = %v, want [ADBE]", symbols(losers))
	}

	gainers, losers = TopMovers(sampleSectors(), 10)
	if diff := pretty.Compare([]string{"XOM", "AAPL"}, symbols(gainers)); diff != "" {
		t.Errorf("gainers diff:\n%s", diff)
	}
	if diff := pretty.Compare([]string{"ADBE", "MSFT"}, symbols(losers)); diff != "" {
		t.Errorf("losers diff:\n%s", diff)
	}
}

func symbols(stocks []domain.Stock) []string {
	out := make([]string, 0, len(stocks))
	for _, s := range stocks {
		out = append(out, s.Symbol)
	}
	return out
}

func TestFormat(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{FormatPercent(1.234), "+1.23%"},
		{FormatPercent(-0.5), "-0.50%"},
		{FormatPercent(math.NaN()), "n/a"},
		{FormatChange(-2.5), "-2.50"},
		{FormatPrice(domain.Float64(1234.5)), "$1,234.50"},
		{FormatPrice(nil), "-"},
		{FormatVolume(domain.Int64(1234567)), "1,234,567"},
		{FormatVolume(nil), "-"},
		{FormatMarketCap(domain.Float64(2.91e12)), "$2.91T"},
		{FormatMarketCap(domain.Float64(450e9)), "$450.0B"},
		{FormatMarketCap(domain.Float64(12.3e6)), "$12.3M"},
		{FormatMarketCap(domain.Float64(5000)), "$5,000"},
		{FormatMarketCap(nil), "-"},
		{FormatUpdated(time.Time{}), "never"},
	}
	for i, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("case %d: got %q, want %q", i, tt.got, tt.want)
		}
	}
}
