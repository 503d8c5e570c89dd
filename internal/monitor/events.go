package monitor

import (
	json "github.com/goccy/go-json"

	"focuswatch/internal/champselect"
	"focuswatch/internal/delta"
	"focuswatch/internal/game"
)

// Event names
const (
	EventTransition       = "transition"
	EventStateChanged     = "state-changed"
	EventStatsUpdated     = "stats-updated"
	EventChampionResolved = "champion-resolved"
)

// Event is anything published on a Bus
type Event interface {
	Name() string
}

// Transition is the raw phase change with the champion-select document
// observed alongside it, if any
type Transition struct {
	Old game.Phase      `json:"old"`
	New game.Phase      `json:"new"`
	Raw json.RawMessage `json:"raw,omitempty"`
}

func (Transition) Name() string { return EventTransition }

// StateChanged is the presentation-facing phase notification
type StateChanged struct {
	PreviousPhase game.Phase         `json:"previousPhase"`
	NewPhase      game.Phase         `json:"newPhase"`
	Target        game.PollingTarget `json:"pollingTarget"`
	ChampionID    *int               `json:"championId,omitempty"`
	Role          *game.Role         `json:"role,omitempty"`
}

func (StateChanged) Name() string { return EventStateChanged }

// StatsUpdated carries one live snapshot compared against the benchmark
type StatsUpdated struct {
	CurrentCS       int        `json:"currentCs"`
	GameTimeSeconds float64    `json:"gameTimeSeconds"`
	CSPerMinute     float64    `json:"csPerMinute"`
	TargetRate      float64    `json:"targetRate"`
	Delta           float64    `json:"delta"`
	Band            delta.Band `json:"band"`

	CurrentGold  float64      `json:"currentGold"`
	Level        int          `json:"level"`
	ChampionName string       `json:"championName"`
	GameID       string       `json:"gameId"`
	Role         game.Role    `json:"role"`
	Bracket      game.Bracket `json:"bracket"`
}

func (StatsUpdated) Name() string { return EventStatsUpdated }

func newStatsUpdated(snap game.Snapshot, res delta.Result, role game.Role, bracket game.Bracket) StatsUpdated {
	return StatsUpdated{
		CurrentCS:       snap.CurrentCS,
		GameTimeSeconds: snap.GameTimeSeconds,
		CSPerMinute:     snap.CSPerMinute,
		TargetRate:      res.TargetRate,
		Delta:           res.Delta,
		Band:            res.Band,
		CurrentGold:     snap.CurrentGold,
		Level:           snap.Level,
		ChampionName:    snap.ChampionName,
		GameID:          snap.GameID,
		Role:            role,
		Bracket:         bracket,
	}
}

// ChampionResolved is published on every champion-select tick that finds
// a champion. Changed is set when the champion or role differs from the
// previous tick.
type ChampionResolved struct {
	ChampionID   int       `json:"championId"`
	Role         game.Role `json:"role"`
	RoleDetected bool      `json:"roleDetected"`
	Changed      bool      `json:"changed"`
}

func (ChampionResolved) Name() string { return EventChampionResolved }

func newChampionResolved(res champselect.Resolution, changed bool) ChampionResolved {
	return ChampionResolved{
		ChampionID:   res.ChampionID,
		Role:         res.Role,
		RoleDetected: res.RoleDetected,
		Changed:      changed,
	}
}
