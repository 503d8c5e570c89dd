package game

import "strings"

// Role is a normalized lane assignment
type Role string

const (
	RoleTop     Role = "top"
	RoleJungle  Role = "jungle"
	RoleMid     Role = "mid"
	RoleADC     Role = "adc"
	RoleSupport Role = "support"
)

// FallbackRole is used whenever no position can be detected (blind pick, fill).
// This is an approximation: a blind-pick jungler is benchmarked as mid.
const FallbackRole = RoleMid

// Roles lists every supported role in lane order
var Roles = []Role{RoleTop, RoleJungle, RoleMid, RoleADC, RoleSupport}

// NormalizePosition maps a client position string to a Role.
// The second return value is false when the fallback role was used.
func NormalizePosition(position string) (Role, bool) {
	switch strings.ToUpper(strings.TrimSpace(position)) {
	case "TOP":
		return RoleTop, true
	case "JUNGLE":
		return RoleJungle, true
	case "MIDDLE", "MID":
		return RoleMid, true
	case "BOTTOM", "ADC":
		return RoleADC, true
	case "UTILITY", "SUPPORT":
		return RoleSupport, true
	default:
		return FallbackRole, false
	}
}

// ParseRole accepts either normalized role names or client position strings
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleTop, RoleJungle, RoleMid, RoleADC, RoleSupport:
		return Role(strings.ToLower(strings.TrimSpace(s))), true
	}
	return NormalizePosition(s)
}

// Position returns the client's position name for the role
func (r Role) Position() string {
	switch r {
	case RoleTop:
		return "TOP"
	case RoleJungle:
		return "JUNGLE"
	case RoleADC:
		return "BOTTOM"
	case RoleSupport:
		return "UTILITY"
	default:
		return "MIDDLE"
	}
}

// Bracket is a skill-tier bucket used to select a benchmark curve
type Bracket string

const (
	BracketIron        Bracket = "iron"
	BracketBronze      Bracket = "bronze"
	BracketSilver      Bracket = "silver"
	BracketGold        Bracket = "gold"
	BracketPlatinum    Bracket = "platinum"
	BracketEmerald     Bracket = "emerald"
	BracketDiamond     Bracket = "diamond"
	BracketMaster      Bracket = "master"
	BracketGrandmaster Bracket = "grandmaster"
	BracketChallenger  Bracket = "challenger"
)

// DefaultBracket is the bracket used when none is configured
const DefaultBracket = BracketPlatinum

// Brackets lists every bracket from lowest to highest
var Brackets = []Bracket{
	BracketIron, BracketBronze, BracketSilver, BracketGold, BracketPlatinum,
	BracketEmerald, BracketDiamond, BracketMaster, BracketGrandmaster, BracketChallenger,
}

// ParseBracket normalizes a bracket name, falling back to DefaultBracket
func ParseBracket(s string) (Bracket, bool) {
	b := Bracket(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Brackets {
		if b == known {
			return b, true
		}
	}
	return DefaultBracket, false
}
