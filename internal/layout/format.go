package layout

import (
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatPercent formats a change percent as "+1.23%", or "n/a" when not
// finite.
func FormatPercent(p float64) string {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%+.2f%%", p)
}

// FormatChange formats a signed currency delta as "+2.56".
func FormatChange(c float64) string {
	return fmt.Sprintf("%+.2f", c)
}

// FormatPrice formats an optional price as "$1,234.56", or "-" when missing.
func FormatPrice(p *float64) string {
	if p == nil || *p <= 0 {
		return "-"
	}
	return "$" + humanize.FormatFloat("#,###.##", *p)
}

// FormatVolume formats an optional share count with comma separators.
func FormatVolume(v *int64) string {
	if v == nil {
		return "-"
	}
	return humanize.Comma(*v)
}

// FormatMarketCap formats an optional market cap with T/B/M suffixes.
func FormatMarketCap(c *float64) string {
	if c == nil || *c <= 0 {
		return "-"
	}
	v := *c
	switch {
	case v >= 1e12:
		return fmt.Sprintf("$%.2fT", v/1e12)
	case v >= 1e9:
		return fmt.Sprintf("$%.1fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("$%.1fM", v/1e6)
	default:
		return "$" + humanize.Comma(int64(v))
	}
}

// FormatUpdated formats a last-updated time relative to now, e.g.
// "3 minutes ago", or "never" for the zero time.
func FormatUpdated(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}
