package build

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"focuswatch/internal/game"
)

const (
	uggAPIVersion   = "1.5"
	uggStatsVersion = "1.5.0"
	// Diamond+ aggregate
	uggTier = "3"
	// builds with fewer games are noise
	uggMinGames = 50
)

var uggRoleIDs = map[game.Role]string{
	game.RoleTop:     "4",
	game.RoleJungle:  "1",
	game.RoleMid:     "5",
	game.RoleADC:     "3",
	game.RoleSupport: "2",
}

// UGGSource reads item builds from u.gg's public overview files:
// GET {stats}/{apiVersion}/overview/{patch}/ranked_solo_5x5/{champion}/{statsVersion}.json
// The file has no rune data, so builds from this source carry items only.
type UGGSource struct {
	statsURL   string
	patchesURL string
	httpClient *http.Client
	log        *zap.SugaredLogger

	mu    sync.Mutex
	patch string
}

func NewUGGSource(statsURL, patchesURL string, timeout time.Duration, log *zap.Logger) *UGGSource {
	if log == nil {
		log = zap.NewNop()
	}
	return &UGGSource{
		statsURL:   strings.TrimRight(statsURL, "/"),
		patchesURL: patchesURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.Named("ugg").Sugar(),
	}
}

// Patch returns the patch the source last resolved, or "" before the first fetch
func (s *UGGSource) Patch() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.patch
}

// ResetPatch forces the next fetch to look the patch up again
func (s *UGGSource) ResetPatch() {
	s.mu.Lock()
	s.patch = ""
	s.mu.Unlock()
}

func (s *UGGSource) currentPatch(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.patch != "" {
		return s.patch, nil
	}

	var patches []string
	if err := s.getJSON(ctx, s.patchesURL, &patches); err != nil {
		return "", fmt.Errorf("patches: %w", err)
	}
	if len(patches) == 0 {
		return "", fmt.Errorf("patches: none listed")
	}
	s.patch = patches[0]
	s.log.Infof("[UGG] Current patch is %s", s.patch)
	return s.patch, nil
}

func (s *UGGSource) getJSON(ctx context.Context, endpoint string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (s *UGGSource) Fetch(ctx context.Context, championID int, role game.Role) (*Build, error) {
	if s.statsURL == "" {
		return nil, fmt.Errorf("ugg: no URL configured")
	}
	roleID, ok := uggRoleIDs[role]
	if !ok {
		return nil, fmt.Errorf("ugg: unknown role %q", role)
	}

	patch, err := s.currentPatch(ctx)
	if err != nil {
		return nil, fmt.Errorf("ugg: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/overview/%s/ranked_solo_5x5/%d/%s.json",
		s.statsURL, uggAPIVersion, patch, championID, uggStatsVersion)

	var regions map[string]json.RawMessage
	if err := s.getJSON(ctx, endpoint, &regions); err != nil {
		return nil, fmt.Errorf("ugg: champion %d: %w", championID, err)
	}

	b, err := parseOverview(regions, roleID)
	if err != nil {
		return nil, fmt.Errorf("ugg: champion %d (%s): %w", championID, role, err)
	}
	b.ChampionID = championID
	b.Role = role
	s.log.Debugf("[UGG] Champion %d %s: %d games on patch %s", championID, role, b.Games, patch)
	return b, nil
}

// uggPath aggregates one build path, keyed by its first core item
type uggPath struct {
	wins, games float64
	// the region with the most games supplies the item lists
	bestGames float64
	starting  []int
	core      []int
	slots     json.RawMessage
}

// parseOverview folds every region's Diamond+ entry for a role into the
// most played build path. Entry layout: [2] starting, [3] core,
// [5] 4th/5th/6th item options, [6] wins/games.
func parseOverview(regions map[string]json.RawMessage, roleID string) (*Build, error) {
	paths := make(map[int]*uggPath)

	for _, region := range regions {
		var roles map[string]json.RawMessage
		if err := json.Unmarshal(region, &roles); err != nil {
			continue
		}
		var tiers map[string]json.RawMessage
		if err := json.Unmarshal(roles[roleID], &tiers); err != nil {
			continue
		}
		var entries []json.RawMessage
		if err := json.Unmarshal(tiers[uggTier], &entries); err != nil || len(entries) == 0 {
			continue
		}
		var stats []json.RawMessage
		if err := json.Unmarshal(entries[0], &stats); err != nil || len(stats) <= 6 {
			continue
		}

		wins, games := winsAndGames(stats[6])
		if games == 0 {
			continue
		}
		core := itemList(stats[3])
		if len(core) == 0 {
			continue
		}

		p, ok := paths[core[0]]
		if !ok {
			p = &uggPath{}
			paths[core[0]] = p
		}
		p.wins += wins
		p.games += games
		if games > p.bestGames {
			p.bestGames = games
			p.starting = itemList(stats[2])
			p.core = core
			p.slots = stats[5]
		}
	}

	var ranked []*uggPath
	for _, p := range paths {
		if p.games >= uggMinGames {
			ranked = append(ranked, p)
		}
	}
	if len(ranked) == 0 {
		return nil, ErrNotFound
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].games > ranked[j].games })

	top := ranked[0]
	b := &Build{
		Games:   int(top.games),
		WinRate: top.wins / top.games * 100,
		Source:  "ugg",
		Items: Items{
			Starting: top.starting,
			Core:     top.core,
		},
	}
	b.Items.Situational = slotOptions(top.slots, 3)
	return b, nil
}

// itemList reads the id list from a [wins, games, [ids]] triple
func itemList(data json.RawMessage) []int {
	var triple []json.RawMessage
	if err := json.Unmarshal(data, &triple); err != nil || len(triple) < 3 {
		return nil
	}
	var ids []int
	if err := json.Unmarshal(triple[2], &ids); err != nil {
		return nil
	}
	return ids
}

func winsAndGames(data json.RawMessage) (float64, float64) {
	var v []float64
	if err := json.Unmarshal(data, &v); err != nil || len(v) < 2 {
		return 0, 0
	}
	return v[0], v[1]
}

// slotOptions flattens the 4th/5th/6th slot options, best first per slot,
// skipping items already listed
func slotOptions(data json.RawMessage, perSlot int) []int {
	var slots [][][]float64
	if err := json.Unmarshal(data, &slots); err != nil {
		return nil
	}
	seen := make(map[int]bool)
	var out []int
	for _, slot := range slots {
		for i, opt := range slot {
			if i >= perSlot || len(opt) < 3 {
				break
			}
			id := int(opt[0])
			if id <= 0 || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
