package champselect

import (
	json "github.com/goccy/go-json"
)

// Session is the champion-select session document served by the client
type Session struct {
	GameID            int64    `json:"gameId"`
	Timer             Timer    `json:"timer"`
	MyTeam            []Player `json:"myTeam"`
	TheirTeam         []Player `json:"theirTeam"`
	Actions           Actions  `json:"actions"`
	LocalPlayerCellID int      `json:"localPlayerCellId"`
}

type Timer struct {
	Phase           string `json:"phase"`
	TimeLeftInPhase int    `json:"timeLeftInPhase"`
}

type Player struct {
	CellID           int    `json:"cellId"`
	ChampionID       int    `json:"championId"`
	SummonerID       int64  `json:"summonerId"`
	AssignedPosition string `json:"assignedPosition"`
	Position         string `json:"position"`
	SelectedPosition string `json:"selectedPosition"`
	Team             int    `json:"team"`
}

// GetPosition returns the first non-empty position field
func (p *Player) GetPosition() string {
	if p.AssignedPosition != "" {
		return p.AssignedPosition
	}
	if p.Position != "" {
		return p.Position
	}
	return p.SelectedPosition
}

type Action struct {
	ID           int    `json:"id"`
	ActorCellID  int    `json:"actorCellId"`
	ChampionID   int    `json:"championId"`
	Type         string `json:"type"`
	Completed    bool   `json:"completed"`
	IsInProgress bool   `json:"isInProgress"`
}

// IsPick reports whether the action is a pick with a chosen champion
// that has either been locked in or is being hovered right now
func (a Action) IsPick() bool {
	return a.Type == "pick" && a.ChampionID > 0 && (a.Completed || a.IsInProgress)
}

// Actions holds pick/ban actions grouped by turn. The client sends nested
// arrays; flat arrays are accepted as a single group.
type Actions [][]Action

func (a *Actions) UnmarshalJSON(data []byte) error {
	var grouped [][]Action
	if err := json.Unmarshal(data, &grouped); err == nil {
		*a = grouped
		return nil
	}

	var flat []Action
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	*a = Actions{flat}
	return nil
}

// Parse decodes a session document
func Parse(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
