package game

// Phase is the client session phase as observed through the client API
type Phase int

const (
	PhaseClientClosed Phase = iota
	PhaseNone
	PhaseLobby
	PhaseMatchmaking
	PhaseReadyCheck
	PhaseChampSelect
	PhaseGameStart
	PhaseInProgress
	PhaseEndOfGame
)

var phaseNames = map[Phase]string{
	PhaseClientClosed: "ClientClosed",
	PhaseNone:         "None",
	PhaseLobby:        "Lobby",
	PhaseMatchmaking:  "Matchmaking",
	PhaseReadyCheck:   "ReadyCheck",
	PhaseChampSelect:  "ChampSelect",
	PhaseGameStart:    "GameStart",
	PhaseInProgress:   "InProgress",
	PhaseEndOfGame:    "EndOfGame",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "None"
}

// MarshalText lets phases serialize by name in events
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// IsIdle reports whether the phase counts as idle for transition detection.
// ClientClosed and None are interchangeable here but still reported distinctly.
func (p Phase) IsIdle() bool {
	return p == PhaseClientClosed || p == PhaseNone
}

// InGame reports whether the live-data API is the primary polling target
func (p Phase) InGame() bool {
	return p == PhaseGameStart || p == PhaseInProgress
}

// ParsePhase converts a gameflow phase string from the client API.
// Phases outside the tracked set are folded onto their nearest tracked phase.
func ParsePhase(s string) Phase {
	switch s {
	case "None":
		return PhaseNone
	case "Lobby", "CheckedIntoTournament":
		return PhaseLobby
	case "Matchmaking":
		return PhaseMatchmaking
	case "ReadyCheck":
		return PhaseReadyCheck
	case "ChampSelect":
		return PhaseChampSelect
	case "GameStart":
		return PhaseGameStart
	case "InProgress", "Reconnect":
		return PhaseInProgress
	case "WaitingForStats", "PreEndOfGame", "EndOfGame":
		return PhaseEndOfGame
	default:
		// FailedToLaunch, TerminatedInError and anything new
		return PhaseNone
	}
}

// PollingTarget names the upstream API a monitor is primarily polling
type PollingTarget int

const (
	TargetNone PollingTarget = iota
	TargetClientAPI
	TargetLiveDataAPI
)

func (t PollingTarget) String() string {
	switch t {
	case TargetClientAPI:
		return "ClientApi"
	case TargetLiveDataAPI:
		return "LiveDataApi"
	default:
		return "None"
	}
}

func (t PollingTarget) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// TargetFor derives the polling target from a phase
func TargetFor(p Phase) PollingTarget {
	switch {
	case p == PhaseClientClosed:
		return TargetNone
	case p.InGame():
		return TargetLiveDataAPI
	default:
		return TargetClientAPI
	}
}
