package main

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Lucas-Song-Dev/StockHeatMap/internal/domain"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/layout"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/refresh"
)

func testSectors() []domain.Sector {
	return []domain.Sector{
		{Name: "TECHNOLOGY", Stocks: []domain.Stock{
			{Quote: domain.Quote{Symbol: "AAPL", Change: 1, ChangePercent: 0.5, MarketCap: domain.Float64(3e12)}, Sector: "TECHNOLOGY", Industry: "Consumer Electronics", IsMajor: true},
			{Quote: domain.Quote{Symbol: "MSFT", Change: -2, ChangePercent: -1.5, MarketCap: domain.Float64(2.8e12)}, Sector: "TECHNOLOGY", Industry: "Software"},
		}},
		{Name: "ENERGY", Stocks: []domain.Stock{
			{Quote: domain.Quote{Symbol: "XOM", Change: 3, ChangePercent: 3.2}, Sector: "ENERGY", Industry: "Oil & Gas"},
		}},
	}
}

func TestCellWidth(t *testing.T) {
	tests := []struct {
		size, max float64
		want      int
	}{
		{10, 0, minCellWidth},
		{0, 100, minCellWidth},
		{100, 100, maxCellWidth},
		{50, 100, (minCellWidth + maxCellWidth) / 2},
		{500, 100, maxCellWidth},
	}
	for _, tt := range tests {
		if got := cellWidth(tt.size, tt.max); got != tt.want {
			t.Errorf("cellWidth(%v, %v) = %d, want %d", tt.size, tt.max, got, tt.want)
		}
	}
}

func TestRenderHeatmapRegions(t *testing.T) {
	h := layout.Compute(testSectors(), layout.ModeAbsolute)
	var m model
	content, regions := renderHeatmap(h, 120, &m.state)

	if !strings.Contains(content, "TECHNOLOGY") || !strings.Contains(content, "ENERGY") {
		t.Fatalf("content missing sector headers:\n%s", content)
	}
	for _, want := range []string{"avg -0.50%  2 stocks", "avg +3.20%  1 stock"} {
		if !strings.Contains(content, want) {
			t.Errorf("content missing sector summary %q:\n%s", want, content)
		}
	}
	// Two lines per cell.
	if len(regions) != 6 {
		t.Fatalf("len(regions) = %d, want 6", len(regions))
	}
	for _, r := range regions {
		if got := hitTest(regions, r.line, r.x0); got != r.symbol {
			t.Errorf("hitTest(%d, %d) = %q, want %q", r.line, r.x0, got, r.symbol)
		}
		if got := hitTest(regions, r.line, r.x1); got == r.symbol {
			t.Errorf("hitTest past right edge of %s still hit", r.symbol)
		}
	}
	if got := hitTest(regions, 0, 0); got != "" {
		t.Errorf("hitTest on sector header = %q, want empty", got)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRefresher struct {
	triggers int
	accept   bool
}

func (f *fakeRefresher) Trigger() bool  { f.triggers++; return f.accept }
func (f *fakeRefresher) InFlight() bool { return false }

func newTestModel(t *testing.T) (model, *fakeRefresher) {
	t.Helper()
	f := &fakeRefresher{accept: true}
	_, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	snap := refresh.Snapshot{Seq: 1, Sectors: testSectors()}
	m := initialModel(f, make(chan refresh.Snapshot), snap, cancel, discardLogger())
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(model), f
}

func TestModelMouseHoverAndClick(t *testing.T) {
	m, _ := newTestModel(t)

	var target region
	for _, r := range m.regions {
		if r.symbol == "MSFT" {
			target = r
			break
		}
	}
	if target.symbol == "" {
		t.Fatal("no region for MSFT")
	}
	y := target.line + headerHeight

	next, _ := m.Update(tea.MouseMsg{X: target.x0, Y: y, Action: tea.MouseActionMotion})
	m = next.(model)
	if sym, ok := m.state.Tooltip(); !ok || sym != "MSFT" {
		t.Errorf("Tooltip() = %q, %v, want MSFT", sym, ok)
	}

	next, _ = m.Update(tea.MouseMsg{X: target.x0, Y: y, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	m = next.(model)
	if sym, ok := m.state.Selected(); !ok || sym != "MSFT" {
		t.Errorf("Selected() = %q, %v, want MSFT", sym, ok)
	}
	if _, ok := m.state.Tooltip(); ok {
		t.Error("tooltip shown while a stock is selected")
	}
	if !strings.Contains(m.footerView(), "Software") {
		t.Errorf("footer missing details:\n%s", m.footerView())
	}

	// Clicking the details panel keeps it open; clicking the map background closes it.
	next, _ = m.Update(tea.MouseMsg{X: 0, Y: m.height - 1, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	m = next.(model)
	if _, ok := m.state.Selected(); !ok {
		t.Error("click on details panel closed it")
	}
	next, _ = m.Update(tea.MouseMsg{X: 0, Y: headerHeight, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	m = next.(model)
	if _, ok := m.state.Selected(); ok {
		t.Error("click outside did not close details")
	}
}

func TestModelKeys(t *testing.T) {
	m, f := newTestModel(t)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("t")})
	m = next.(model)
	if m.mode != layout.ModeSectorRelative {
		t.Errorf("mode after t = %v, want sector", m.mode)
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	m = next.(model)
	if f.triggers != 1 {
		t.Errorf("triggers = %d, want 1", f.triggers)
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRight})
	m = next.(model)
	if sym, _ := m.state.Selected(); sym != "AAPL" {
		t.Errorf("Selected() after right = %q, want AAPL", sym)
	}
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	m = next.(model)
	if sym, _ := m.state.Selected(); sym != "XOM" {
		t.Errorf("Selected() after left = %q, want XOM", sym)
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(model)
	if _, ok := m.state.Selected(); ok {
		t.Error("esc did not close details")
	}
}

func TestModelSnapshotPrunesSelection(t *testing.T) {
	m, _ := newTestModel(t)
	m.state.Select("XOM")

	next, _ := m.Update(snapshotMsg(refresh.Snapshot{Seq: 2, Sectors: testSectors()[:1]}))
	m = next.(model)
	if _, ok := m.state.Selected(); ok {
		t.Error("selection of a vanished symbol survived the refresh")
	}
}
