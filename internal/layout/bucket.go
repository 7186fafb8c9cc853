// Package layout turns assembled sectors into heatmap cells: a render size
// from market cap under a normalization mode, and a color bucket from the
// percentage change. Everything here is a pure function of its inputs.
package layout

import "math"

// Bucket is a discrete color class for a percentage change.
type Bucket string

const (
	StrongNegative   Bucket = "strong-negative"
	ModerateNegative Bucket = "moderate-negative"
	WeakNegative     Bucket = "weak-negative"
	Neutral          Bucket = "neutral"
	WeakPositive     Bucket = "weak-positive"
	ModeratePositive Bucket = "moderate-positive"
	StrongPositive   Bucket = "strong-positive"
)

// Buckets lists every bucket from most negative to most positive.
var Buckets = []Bucket{
	StrongNegative, ModerateNegative, WeakNegative, Neutral,
	WeakPositive, ModeratePositive, StrongPositive,
}

// BucketFor maps a percentage change to its bucket. Boundaries are
// inclusive on the side away from zero: -3 and -1 fall in the stronger
// negative bucket, 1 and 3 in the stronger positive one. NaN and ±Inf map
// to Neutral.
func BucketFor(c float64) Bucket {
	switch {
	case math.IsNaN(c) || math.IsInf(c, 0):
		return Neutral
	case c <= -3:
		return StrongNegative
	case c <= -1:
		return ModerateNegative
	case c < 0:
		return WeakNegative
	case c == 0:
		return Neutral
	case c < 1:
		return WeakPositive
	case c < 3:
		return ModeratePositive
	default:
		return StrongPositive
	}
}

// LegendEntry pairs a bucket with its range label.
type LegendEntry struct {
	Bucket Bucket `json:"bucket"`
	Label  string `json:"label"`
}

// Legend returns the buckets with their display ranges.
func Legend() []LegendEntry {
	return []LegendEntry{
		{StrongNegative, "≤ -3%"},
		{ModerateNegative, "-3% to -1%"},
		{WeakNegative, "-1% to 0%"},
		{Neutral, "0%"},
		{WeakPositive, "0% to 1%"},
		{ModeratePositive, "1% to 3%"},
		{StrongPositive, "≥ 3%"},
	}
}
