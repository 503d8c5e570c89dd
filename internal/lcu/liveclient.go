package lcu

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"focuswatch/internal/game"
)

// DefaultLiveClientURL is the fixed in-game API root
const DefaultLiveClientURL = "https://127.0.0.1:2999"

// LiveClient reads the in-game Live Client Data API. Any failure to get an
// answer means no match is active and is reported as ErrLiveDataUnreachable.
type LiveClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewLiveClient(baseURL string, timeout time.Duration) *LiveClient {
	if baseURL == "" {
		baseURL = DefaultLiveClientURL
	}
	return &LiveClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}
}

type activePlayer struct {
	ChampionStats struct {
		ChampionName string  `json:"championName"`
		CreepScore   float64 `json:"creepScore"`
		CurrentGold  float64 `json:"currentGold"`
		Level        int     `json:"level"`
	} `json:"championStats"`
	CurrentGold float64 `json:"currentGold"`
	Level       int     `json:"level"`
}

type gameStats struct {
	GameTime float64         `json:"gameTime"`
	GameMode string          `json:"gameMode"`
	GameID   json.RawMessage `json:"gameId"`
}

func (c *LiveClient) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLiveDataUnreachable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLiveDataUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %d", ErrLiveDataUnreachable, endpoint, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrLiveDataUnreachable, endpoint, err)
	}
	return nil
}

// Snapshot reads the active player's stats and the game clock
func (c *LiveClient) Snapshot(ctx context.Context) (game.Snapshot, error) {
	var player activePlayer
	if err := c.get(ctx, "/liveclientdata/activeplayer", &player); err != nil {
		return game.Snapshot{}, err
	}

	var stats gameStats
	if err := c.get(ctx, "/liveclientdata/gamestats", &stats); err != nil {
		return game.Snapshot{}, err
	}

	snap := game.NewSnapshot(int(player.ChampionStats.CreepScore), stats.GameTime)
	snap.ChampionName = player.ChampionStats.ChampionName
	snap.CurrentGold = player.ChampionStats.CurrentGold
	if snap.CurrentGold == 0 {
		snap.CurrentGold = player.CurrentGold
	}
	snap.Level = player.ChampionStats.Level
	if snap.Level == 0 {
		snap.Level = player.Level
	}
	if id := strings.Trim(string(stats.GameID), `"`); id != "" && id != "null" {
		snap.GameID = id
	}
	return snap, nil
}
