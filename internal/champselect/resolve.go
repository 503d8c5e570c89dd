package champselect

import "focuswatch/internal/game"

// Resolution is the local player's champion and lane as far as they can be
// determined. ChampionID is zero while no pick exists.
type Resolution struct {
	ChampionID   int       `json:"championId"`
	Role         game.Role `json:"role"`
	RoleDetected bool      `json:"roleDetected"`
}

// Resolved reports whether a champion was found
func (r Resolution) Resolved() bool {
	return r.ChampionID > 0
}

// Resolve finds the champion and role for the player in cellID.
// A completed pick wins over an in-progress hover, and either wins over
// the roster. Hovers count, so a champion may be reported before it is
// later corrected.
func Resolve(s *Session, cellID int) Resolution {
	res := Resolution{Role: game.FallbackRole}
	if s == nil {
		return res
	}

	var locked, hovered int
	for _, group := range s.Actions {
		for _, action := range group {
			if action.ActorCellID != cellID || !action.IsPick() {
				continue
			}
			if action.Completed {
				locked = action.ChampionID
			} else {
				hovered = action.ChampionID
			}
		}
	}
	res.ChampionID = locked
	if res.ChampionID == 0 {
		res.ChampionID = hovered
	}

	for i := range s.MyTeam {
		p := &s.MyTeam[i]
		if p.CellID != cellID {
			continue
		}
		if res.ChampionID == 0 && p.ChampionID > 0 {
			res.ChampionID = p.ChampionID
		}
		res.Role, res.RoleDetected = game.NormalizePosition(p.GetPosition())
		break
	}

	return res
}

// ResolveLocal resolves for the session's own local player
func ResolveLocal(s *Session) Resolution {
	if s == nil {
		return Resolution{Role: game.FallbackRole}
	}
	return Resolve(s, s.LocalPlayerCellID)
}
