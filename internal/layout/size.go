package layout

import (
	"fmt"
	"math"
	"strings"
)

// Mode selects how cell sizes are normalized.
type Mode int

const (
	// ModeAbsolute sizes by sqrt(market cap), comparable across sectors.
	ModeAbsolute Mode = iota
	// ModeSectorRelative sizes against the largest cap in the same
	// industry group.
	ModeSectorRelative
)

// Defaults substituted for a missing or non-positive market cap.
const (
	DefaultRelativeCap = 10
	DefaultAbsoluteCap = 100000
)

// String returns the wire name of the mode.
func (m Mode) String() string {
	if m == ModeSectorRelative {
		return "sector"
	}
	return "absolute"
}

// Toggle returns the other mode.
func (m Mode) Toggle() Mode {
	if m == ModeSectorRelative {
		return ModeAbsolute
	}
	return ModeSectorRelative
}

// ParseMode accepts "absolute" (or empty) and "sector"/"relative".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "absolute", "abs":
		return ModeAbsolute, nil
	case "sector", "relative", "sector-relative":
		return ModeSectorRelative, nil
	default:
		return ModeAbsolute, fmt.Errorf("unknown layout mode %q", s)
	}
}

// capOr returns the usable market cap or def. Missing, zero, negative and
// non-finite caps all count as missing.
func capOr(marketCap *float64, def float64) float64 {
	if marketCap == nil {
		return def
	}
	v := *marketCap
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return def
	}
	return v
}

// Size computes a strictly positive render size. groupMax is only used in
// ModeSectorRelative; a non-positive or non-finite max is treated as 1.
func Size(mode Mode, marketCap *float64, groupMax float64) float64 {
	if mode == ModeSectorRelative {
		if math.IsNaN(groupMax) || math.IsInf(groupMax, 0) || groupMax <= 0 {
			groupMax = 1
		}
		return capOr(marketCap, DefaultRelativeCap)/groupMax*100 + 50
	}
	return math.Sqrt(capOr(marketCap, DefaultAbsoluteCap)) / 5000
}
