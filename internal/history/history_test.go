package history

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Lucas-Song-Dev/StockHeatMap/internal/domain"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/store"
)

func day(d int) time.Time { return time.Date(2024, 2, d, 0, 0, 0, 0, time.UTC) }

func dq(d int, price float64, pct float64) domain.DailyQuote {
	q := domain.DailyQuote{Symbol: "AAPL", Date: day(d), ChangePercent: pct}
	if price > 0 {
		q.Price = domain.Float64(price)
	}
	return q
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestAggregate(t *testing.T) {
	// Out of order on purpose.
	quotes := []domain.DailyQuote{
		dq(3, 80, -20),
		dq(1, 100, 1),
		dq(5, 120, 50),
		dq(4, 0, 0),
	}
	s := Aggregate("AAPL", quotes)

	if s.Days != 4 {
		t.Errorf("Days = %d, want 4", s.Days)
	}
	if s.MaxChangePercent != 50 || s.MinChangePercent != -20 {
		t.Errorf("Max/Min = %v/%v, want 50/-20", s.MaxChangePercent, s.MinChangePercent)
	}
	if !approx(s.AvgChangePercent, 31.0/4) {
		t.Errorf("Avg = %v, want %v", s.AvgChangePercent, 31.0/4)
	}
	if s.UpDays != 2 || s.DownDays != 1 {
		t.Errorf("Up/Down = %d/%d, want 2/1", s.UpDays, s.DownDays)
	}
	if s.High != 120 || s.Low != 80 || s.First != 100 || s.Last != 120 {
		t.Errorf("prices = high %v low %v first %v last %v", s.High, s.Low, s.First, s.Last)
	}
	// 80 -> 120 is the best later sale.
	if !approx(s.MaxGain, 0.5) {
		t.Errorf("MaxGain = %v, want 0.5", s.MaxGain)
	}
	// 100 -> 80.
	if !approx(s.MaxLoss, 0.2) {
		t.Errorf("MaxLoss = %v, want 0.2", s.MaxLoss)
	}
	if !approx(s.PeriodReturn(), 0.2) {
		t.Errorf("PeriodReturn = %v, want 0.2", s.PeriodReturn())
	}
}

func TestAggregateEmptyAndUnpriced(t *testing.T) {
	if s := Aggregate("X", nil); s.Days != 0 || s.MaxChangePercent != 0 {
		t.Errorf("empty Aggregate = %+v", s)
	}
	s := Aggregate("X", []domain.DailyQuote{dq(1, 0, 2)})
	if s.Low != 0 || s.High != 0 || s.PeriodReturn() != 0 {
		t.Errorf("unpriced Aggregate = %+v", s)
	}
	if s.MaxChangePercent != 2 || s.MinChangePercent != 2 {
		t.Errorf("single-day change = %v/%v", s.MaxChangePercent, s.MinChangePercent)
	}
}

func TestClampDays(t *testing.T) {
	for in, want := range map[int]int{0: DefaultDays, -3: DefaultDays, 7: 7, 10000: MaxDays} {
		if got := ClampDays(in); got != want {
			t.Errorf("ClampDays(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestServiceReport(t *testing.T) {
	dir := t.TempDir()
	archive := store.NewParquetStore(dir, nil)
	ctx := context.Background()

	for d, pct := range map[int]float64{1: 1, 2: -2, 3: 4} {
		sectors := []domain.Sector{{Name: "TECHNOLOGY", Stocks: []domain.Stock{{
			Quote: domain.Quote{
				Symbol: "AAPL", Price: domain.Float64(100 + float64(d)),
				Change: pct, ChangePercent: pct, LatestTradingDay: day(d).Format("2006-01-02"),
			},
			Sector: "TECHNOLOGY", Industry: "CONSUMER ELECTRONICS",
		}}}}
		if err := archive.ArchiveQuotes(ctx, day(d), sectors); err != nil {
			t.Fatalf("ArchiveQuotes: %v", err)
		}
	}

	svc := NewService(archive)
	svc.now = func() time.Time { return day(3).Add(18 * time.Hour) }

	rep, err := svc.Report(ctx, " aapl ", 30)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if rep.Symbol != "AAPL" || len(rep.Days) != 3 {
		t.Fatalf("Report = %s with %d days, want AAPL with 3", rep.Symbol, len(rep.Days))
	}
	if rep.Stats.MaxChangePercent != 4 || rep.Stats.MinChangePercent != -2 || !approx(rep.Stats.AvgChangePercent, 1) {
		t.Errorf("Stats = %+v", rep.Stats)
	}
	if !rep.Days[0].Date.Equal(day(1)) {
		t.Errorf("first day = %v, want %v", rep.Days[0].Date, day(1))
	}

	rep, err = svc.Report(ctx, "AAPL", 1)
	if err != nil || len(rep.Days) != 1 {
		t.Fatalf("Report(1 day) = %v, %v; want 1 day", rep, err)
	}

	if _, err := svc.Report(ctx, "MSFT", 30); !errors.Is(err, ErrNoHistory) {
		t.Errorf("Report(MSFT) error = %v, want ErrNoHistory", err)
	}
}
