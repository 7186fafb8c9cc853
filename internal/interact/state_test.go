package interact

import "testing"

func TestSelectionSuppressesTooltip(t *testing.T) {
	var s State
	s.Select("AAPL")
	s.Hover("MSFT")

	if sym, ok := s.Tooltip(); ok {
		t.Fatalf("Tooltip() = %q while AAPL selected, want none", sym)
	}

	s.Close()
	sym, ok := s.Tooltip()
	if !ok || sym != "MSFT" {
		t.Errorf("Tooltip() after close = %q, %v; want MSFT", sym, ok)
	}
}

func TestCloseIdempotent(t *testing.T) {
	var s State
	s.Close()
	s.Select("XOM")
	s.Close()
	s.Close()
	if sym, ok := s.Selected(); ok {
		t.Errorf("Selected() = %q after close, want none", sym)
	}
}

func TestClickOutside(t *testing.T) {
	var s State
	if s.ClickOutside() {
		t.Error("ClickOutside with nothing selected should report false")
	}
	s.Select("JPM")
	if !s.ClickOutside() {
		t.Error("ClickOutside should report an open selection")
	}
	if _, ok := s.Selected(); ok {
		t.Error("selection should be dismissed")
	}
}

func TestSelectReplaces(t *testing.T) {
	var s State
	s.Select("AAPL")
	s.Select("NVDA")
	if sym, _ := s.Selected(); sym != "NVDA" {
		t.Errorf("Selected() = %q, want NVDA", sym)
	}
}

func TestLeaveOnlyClearsMatchingHover(t *testing.T) {
	var s State
	s.Hover("AAPL")
	s.Hover("MSFT")
	s.Leave("AAPL")
	if sym, ok := s.Hovered(); !ok || sym != "MSFT" {
		t.Errorf("Hovered() = %q, %v; want MSFT", sym, ok)
	}
	s.Leave("MSFT")
	if _, ok := s.Tooltip(); ok {
		t.Error("Tooltip should be empty after leave")
	}
}

func TestPrune(t *testing.T) {
	var s State
	s.Select("GONE")
	s.Hover("AAPL")
	present := map[string]bool{"AAPL": true}
	s.Prune(func(sym string) bool { return present[sym] })

	if _, ok := s.Selected(); ok {
		t.Error("selection of a vanished symbol should be pruned")
	}
	if sym, ok := s.Hovered(); !ok || sym != "AAPL" {
		t.Errorf("Hovered() = %q, %v; want AAPL kept", sym, ok)
	}
}
