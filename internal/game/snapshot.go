package game

// Snapshot is one live-data observation of the local player.
// Only the most recent snapshot is ever kept.
type Snapshot struct {
	CurrentCS       int     `json:"currentCs"`
	GameTimeSeconds float64 `json:"gameTimeSeconds"`
	CSPerMinute     float64 `json:"csPerMinute"`

	CurrentGold  float64 `json:"currentGold"`
	Level        int     `json:"level"`
	ChampionName string  `json:"championName"`
	GameID       string  `json:"gameId"`
}

// NewSnapshot builds a snapshot and derives CS per minute.
// Game times under one second report zero to avoid dividing by ~0.
func NewSnapshot(cs int, gameTimeSeconds float64) Snapshot {
	return Snapshot{
		CurrentCS:       cs,
		GameTimeSeconds: gameTimeSeconds,
		CSPerMinute:     CSPerMinute(cs, gameTimeSeconds),
	}
}

// CSPerMinute computes creep score per minute of game time
func CSPerMinute(cs int, gameTimeSeconds float64) float64 {
	if gameTimeSeconds < 1 {
		return 0
	}
	return float64(cs) / (gameTimeSeconds / 60)
}
