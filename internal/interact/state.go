// Package interact tracks the pointer state of a heatmap view: at most one
// selected stock (driving the details panel) and at most one hovered stock
// (driving the tooltip). Selection takes precedence over hover.
//
// State is owned by a single event loop and is not safe for concurrent use.
package interact

// State holds the current selection and hover. The zero value is ready to
// use with nothing selected or hovered.
type State struct {
	selected string
	hovered  string
}

// Select marks symbol as selected, replacing any previous selection.
func (s *State) Select(symbol string) {
	s.selected = symbol
}

// Close dismisses the details view. It is idempotent and does not care which
// stock was selected.
func (s *State) Close() {
	s.selected = ""
}

// ClickOutside handles a pointer press that landed outside the details
// surface. It dismisses the selection and reports whether one was open.
func (s *State) ClickOutside() bool {
	open := s.selected != ""
	s.selected = ""
	return open
}

// Hover records the pointer entering symbol's cell.
func (s *State) Hover(symbol string) {
	s.hovered = symbol
}

// Leave records the pointer leaving symbol's cell. A leave for a cell other
// than the hovered one is ignored, so enter/leave events that arrive out of
// order cannot clear a newer hover.
func (s *State) Leave(symbol string) {
	if s.hovered == symbol {
		s.hovered = ""
	}
}

// Selected returns the selected symbol, if any.
func (s *State) Selected() (string, bool) {
	return s.selected, s.selected != ""
}

// Hovered returns the hovered symbol, if any, regardless of selection.
func (s *State) Hovered() (string, bool) {
	return s.hovered, s.hovered != ""
}

// Tooltip returns the symbol whose tooltip should be shown. Nothing is shown
// while a selection is open.
func (s *State) Tooltip() (string, bool) {
	if s.selected != "" || s.hovered == "" {
		return "", false
	}
	return s.hovered, true
}

// Prune drops a selection or hover whose symbol is no longer present, for
// use after the data set is replaced by a refresh.
func (s *State) Prune(present func(symbol string) bool) {
	if s.selected != "" && !present(s.selected) {
		s.selected = ""
	}
	if s.hovered != "" && !present(s.hovered) {
		s.hovered = ""
	}
}
