package delta

import (
	"focuswatch/internal/benchmark"
	"focuswatch/internal/game"
)

// Band classifies how far a player is from the benchmark
type Band string

const (
	BandExcellent Band = "Excellent"
	BandGood      Band = "Good"
	BandWarning   Band = "Warning"
	BandBehind    Band = "Behind"
	BandCritical  Band = "Critical"
)

// Result is the comparison of one snapshot against a curve
type Result struct {
	TargetRate float64 `json:"targetRate"`
	Delta      float64 `json:"delta"`
	Band       Band    `json:"band"`
}

// Classify bands a delta. Lower bounds are inclusive.
func Classify(delta float64) Band {
	switch {
	case delta >= 0.5:
		return BandExcellent
	case delta >= 0:
		return BandGood
	case delta >= -0.5:
		return BandWarning
	case delta >= -1.0:
		return BandBehind
	default:
		return BandCritical
	}
}

// Compute compares snap against curve. The curve must already be resolved
// (see benchmark.TargetRate for the empty-curve fallback).
func Compute(snap game.Snapshot, curve benchmark.Curve) Result {
	target := curve.At(snap.GameTimeSeconds)
	d := snap.CSPerMinute - target
	return Result{TargetRate: target, Delta: d, Band: Classify(d)}
}

// ComputeFor is Compute with the built-in curve substituted when curve is empty
func ComputeFor(snap game.Snapshot, curve benchmark.Curve, role game.Role, bracket game.Bracket) Result {
	if len(curve) == 0 {
		curve = benchmark.DefaultCurve(role, bracket)
	}
	return Compute(snap, curve)
}
