package util

import (
	"time"
)

// MarketHours describes a regular equity session in a fixed exchange time
// zone. Holidays are not modelled; weekends are.
type MarketHours struct {
	loc          *time.Location
	openH, openM int
	closeH       int
}

// NewUSMarketHours returns NYSE regular hours, 9:30 to 16:00 America/New_York.
// If the zone database is unavailable it falls back to a fixed UTC-5 offset.
func NewUSMarketHours() *MarketHours {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.FixedZone("ET", -5*60*60)
	}
	return &MarketHours{loc: loc, openH: 9, openM: 30, closeH: 16}
}

// Location returns the exchange time zone.
func (m *MarketHours) Location() *time.Location { return m.loc }

// IsMarketOpen reports whether t falls inside a regular weekday session.
func (m *MarketHours) IsMarketOpen(t time.Time) bool {
	et := t.In(m.loc)
	if isWeekend(et) {
		return false
	}
	open, closeT := m.session(et)
	return !et.Before(open) && et.Before(closeT)
}

// NextOpen returns the next session open at or after t.
func (m *MarketHours) NextOpen(t time.Time) time.Time {
	et := t.In(m.loc)
	for i := 0; i < 8; i++ {
		day := et.AddDate(0, 0, i)
		if isWeekend(day) {
			continue
		}
		open, _ := m.session(day)
		if !open.Before(et) {
			return open
		}
	}
	return time.Time{}
}

// NextClose returns the next session close at or after t.
func (m *MarketHours) NextClose(t time.Time) time.Time {
	et := t.In(m.loc)
	for i := 0; i < 8; i++ {
		day := et.AddDate(0, 0, i)
		if isWeekend(day) {
			continue
		}
		_, closeT := m.session(day)
		if !closeT.Before(et) {
			return closeT
		}
	}
	return time.Time{}
}

func (m *MarketHours) session(day time.Time) (open, closeT time.Time) {
	y, mo, d := day.Date()
	open = time.Date(y, mo, d, m.openH, m.openM, 0, 0, m.loc)
	closeT = time.Date(y, mo, d, m.closeH, 0, 0, 0, m.loc)
	return open, closeT
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
