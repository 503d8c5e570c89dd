package lcu

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

// DefaultDataDragonURL is the static data CDN
const DefaultDataDragonURL = "https://ddragon.leagueoflegends.com"

type championInfo struct {
	Name   string // display name, e.g. "Kai'Sa"
	IconID string // Data Dragon id, e.g. "Kaisa"
}

// Registry maps champion and rune ids to names using Data Dragon
type Registry struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.SugaredLogger

	mu        sync.RWMutex
	champions map[int]championInfo
	runes     map[int]string
	version   string
	loaded    bool
}

func NewRegistry(baseURL string, log *zap.Logger) *Registry {
	if baseURL == "" {
		baseURL = DefaultDataDragonURL
	}
	return &Registry{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log.Named("ddragon").Sugar(),
		champions:  make(map[int]championInfo),
		runes:      make(map[int]string),
	}
}

func (r *Registry) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Load fetches the latest champion and rune tables
func (r *Registry) Load(ctx context.Context) error {
	var versions []string
	if err := r.getJSON(ctx, r.baseURL+"/api/versions.json", &versions); err != nil {
		return fmt.Errorf("failed to fetch versions: %w", err)
	}
	if len(versions) == 0 {
		return fmt.Errorf("no versions available")
	}
	version := versions[0]

	var champData struct {
		Data map[string]struct {
			ID   string `json:"id"`
			Key  string `json:"key"`
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := r.getJSON(ctx, fmt.Sprintf("%s/cdn/%s/data/en_US/champion.json", r.baseURL, version), &champData); err != nil {
		return fmt.Errorf("failed to fetch champions: %w", err)
	}

	var trees []struct {
		ID    int    `json:"id"`
		Name  string `json:"name"`
		Slots []struct {
			Runes []struct {
				ID   int    `json:"id"`
				Name string `json:"name"`
			} `json:"runes"`
		} `json:"slots"`
	}
	if err := r.getJSON(ctx, fmt.Sprintf("%s/cdn/%s/data/en_US/runesReforged.json", r.baseURL, version), &trees); err != nil {
		return fmt.Errorf("failed to fetch runes: %w", err)
	}

	champions := make(map[int]championInfo, len(champData.Data))
	for id, champ := range champData.Data {
		key, err := strconv.Atoi(champ.Key)
		if err != nil {
			continue
		}
		champions[key] = championInfo{Name: champ.Name, IconID: id}
	}

	runes := map[int]string{
		// stat shards are not part of runesReforged
		5008: "Adaptive Force",
		5005: "Attack Speed",
		5007: "Ability Haste",
		5001: "Health Scaling",
		5011: "Health",
		5013: "Tenacity and Slow Resist",
		5010: "Move Speed",
	}
	for _, tree := range trees {
		runes[tree.ID] = tree.Name
		for _, slot := range tree.Slots {
			for _, rn := range slot.Runes {
				runes[rn.ID] = rn.Name
			}
		}
	}

	r.mu.Lock()
	r.champions = champions
	r.runes = runes
	r.version = version
	r.loaded = true
	r.mu.Unlock()

	r.log.Infof("[DataDragon] Loaded %d champions and %d runes (v%s)", len(champions), len(runes), version)
	return nil
}

// Name returns the display name for a champion id
func (r *Registry) Name(id int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.champions[id]
	return info.Name, ok
}

// DisplayName is Name with a placeholder for unknown ids
func (r *Registry) DisplayName(id int) string {
	if name, ok := r.Name(id); ok {
		return name
	}
	return fmt.Sprintf("Champion %d", id)
}

// IconURL returns the Data Dragon icon URL for a champion id
func (r *Registry) IconURL(id int) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if info, ok := r.champions[id]; ok {
		return fmt.Sprintf("%s/cdn/%s/img/champion/%s.png", r.baseURL, r.version, info.IconID)
	}
	return ""
}

// RuneName returns the name of a rune, tree or shard
func (r *Registry) RuneName(id int) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name, ok := r.runes[id]; ok {
		return name
	}
	return fmt.Sprintf("Rune %d", id)
}

// IsLoaded returns whether the registry has been loaded
func (r *Registry) IsLoaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}
