package benchmark

import "focuswatch/internal/game"

// Reference CS/min curves at a platinum level. Jungle counts camps, support
// barely farms.
var baseCurves = map[game.Role]Curve{
	game.RoleTop: {
		{0, 5.0}, {300, 6.0}, {600, 6.8}, {900, 7.2}, {1200, 7.5}, {1500, 7.6}, {1800, 7.7},
	},
	game.RoleJungle: {
		{0, 4.0}, {300, 4.8}, {600, 5.4}, {900, 5.8}, {1200, 6.0}, {1500, 6.1}, {1800, 6.2},
	},
	game.RoleMid: {
		{0, 5.2}, {300, 6.2}, {600, 7.0}, {900, 7.4}, {1200, 7.7}, {1500, 7.8}, {1800, 7.9},
	},
	game.RoleADC: {
		{0, 5.4}, {300, 6.5}, {600, 7.3}, {900, 7.8}, {1200, 8.1}, {1500, 8.2}, {1800, 8.3},
	},
	game.RoleSupport: {
		{0, 0.6}, {300, 0.9}, {600, 1.1}, {900, 1.2}, {1200, 1.3}, {1500, 1.3}, {1800, 1.4},
	},
}

var bracketMultipliers = map[game.Bracket]float64{
	game.BracketIron:        0.70,
	game.BracketBronze:      0.76,
	game.BracketSilver:      0.83,
	game.BracketGold:        0.90,
	game.BracketPlatinum:    1.00,
	game.BracketEmerald:     1.05,
	game.BracketDiamond:     1.10,
	game.BracketMaster:      1.15,
	game.BracketGrandmaster: 1.18,
	game.BracketChallenger:  1.20,
}

// Multiplier returns the scaling applied to the reference curves for a bracket
func Multiplier(bracket game.Bracket) float64 {
	if m, ok := bracketMultipliers[bracket]; ok {
		return m
	}
	return bracketMultipliers[game.DefaultBracket]
}

// DefaultCurve returns the built-in curve for role scaled to bracket.
// Unknown roles use the fallback role.
func DefaultCurve(role game.Role, bracket game.Bracket) Curve {
	base, ok := baseCurves[role]
	if !ok {
		base = baseCurves[game.FallbackRole]
	}

	m := Multiplier(bracket)
	out := make(Curve, len(base))
	for i, bp := range base {
		out[i] = Breakpoint{TimestampSeconds: bp.TimestampSeconds, TargetRate: bp.TargetRate * m}
	}
	return out
}
