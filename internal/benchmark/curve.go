package benchmark

import (
	"sort"

	"focuswatch/internal/game"
)

// Breakpoint is one sample of a benchmark curve
type Breakpoint struct {
	TimestampSeconds float64 `json:"timestampSeconds"`
	TargetRate       float64 `json:"targetRate"`
}

// Curve is a step function of target CS per minute over game time.
// Timestamps are strictly increasing.
type Curve []Breakpoint

// At returns the rate of the last breakpoint not after elapsed. Times before
// the first breakpoint use the first rate. An empty curve yields zero.
func (c Curve) At(elapsed float64) float64 {
	if len(c) == 0 {
		return 0
	}

	rate := c[0].TargetRate
	for _, bp := range c {
		if elapsed < bp.TimestampSeconds {
			break
		}
		rate = bp.TargetRate
	}
	return rate
}

// Normalize sorts breakpoints by time and drops repeated timestamps,
// keeping the last value seen for each.
func Normalize(points []Breakpoint) Curve {
	if len(points) == 0 {
		return nil
	}

	sorted := make([]Breakpoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TimestampSeconds < sorted[j].TimestampSeconds
	})

	out := make(Curve, 0, len(sorted))
	for _, bp := range sorted {
		if n := len(out); n > 0 && out[n-1].TimestampSeconds == bp.TimestampSeconds {
			out[n-1] = bp
			continue
		}
		out = append(out, bp)
	}
	return out
}

// TargetRate evaluates curve at elapsed, substituting the built-in curve
// for role and bracket when curve is empty.
func TargetRate(curve Curve, role game.Role, bracket game.Bracket, elapsed float64) float64 {
	if len(curve) == 0 {
		curve = DefaultCurve(role, bracket)
	}
	return curve.At(elapsed)
}
