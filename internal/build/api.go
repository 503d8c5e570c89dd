package build

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"focuswatch/internal/game"
)

// ChampionNamer maps champion ids to names
type ChampionNamer interface {
	Name(id int) (string, bool)
}

// APISource fetches builds from the remote build API:
// GET {base}/build/{champion}/{role}
type APISource struct {
	baseURL    string
	champions  ChampionNamer
	httpClient *http.Client
}

func NewAPISource(baseURL string, champions ChampionNamer, timeout time.Duration) *APISource {
	return &APISource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		champions:  champions,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type apiResponse struct {
	Champion string `json:"champion"`
	Role     string `json:"role"`
	Build    struct {
		Runes struct {
			Primary struct {
				PathID   int   `json:"path_id"`
				Keystone int   `json:"keystone"`
				Slots    []int `json:"slots"`
			} `json:"primary"`
			Secondary struct {
				PathID int   `json:"path_id"`
				Slots  []int `json:"slots"`
			} `json:"secondary"`
			Shards struct {
				Offense int `json:"offense"`
				Flex    int `json:"flex"`
				Defense int `json:"defense"`
			} `json:"shards"`
		} `json:"runes"`
		Items struct {
			Starting    []int `json:"starting"`
			Core        []int `json:"core"`
			Boots       int   `json:"boots"`
			FullBuild   []int `json:"full_build"`
			Situational []int `json:"situational"`
		} `json:"items"`
		SkillOrder struct {
			Priority string `json:"priority"`
		} `json:"skill_order"`
		SummonerSpells struct {
			Spell1 struct {
				ID int `json:"id"`
			} `json:"spell1"`
			Spell2 struct {
				ID int `json:"id"`
			} `json:"spell2"`
			IDs []int `json:"ids"`
		} `json:"summoner_spells"`
		Stats struct {
			WinRate       float64 `json:"winrate"`
			GamesAnalyzed int     `json:"games_analyzed"`
		} `json:"stats"`
	} `json:"build"`
}

// championSlug lowercases a champion name and strips the characters the
// build API drops from its paths
func championSlug(name string) string {
	r := strings.NewReplacer(" ", "", "'", "", ".", "")
	return strings.ToLower(r.Replace(name))
}

func (s *APISource) Fetch(ctx context.Context, championID int, role game.Role) (*Build, error) {
	if s.baseURL == "" {
		return nil, fmt.Errorf("build api: no URL configured")
	}

	name, ok := s.champions.Name(championID)
	if !ok {
		return nil, fmt.Errorf("build api: unknown champion %d", championID)
	}

	endpoint := fmt.Sprintf("%s/build/%s/%s", s.baseURL, url.PathEscape(championSlug(name)), role)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("build api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("build api: %w for %s (%s)", ErrNotFound, name, role)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("build api: unexpected status %d", resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("build api: decode: %w", err)
	}

	return body.toBuild(championID, name, role), nil
}

func (r *apiResponse) toBuild(championID int, name string, role game.Role) *Build {
	src := r.Build
	b := &Build{
		ChampionID:    championID,
		Champion:      name,
		Role:          role,
		SkillPriority: src.SkillOrder.Priority,
		WinRate:       src.Stats.WinRate,
		Games:         src.Stats.GamesAnalyzed,
		Source:        "api",
		Items: Items{
			Starting:    src.Items.Starting,
			Core:        src.Items.Core,
			Boots:       src.Items.Boots,
			FullBuild:   src.Items.FullBuild,
			Situational: src.Items.Situational,
		},
	}

	runes := Runes{
		PrimaryStyleID: src.Runes.Primary.PathID,
		SubStyleID:     src.Runes.Secondary.PathID,
		Keystone:       src.Runes.Primary.Keystone,
		Primary:        src.Runes.Primary.Slots,
		Secondary:      src.Runes.Secondary.Slots,
	}
	for _, shard := range []int{src.Runes.Shards.Offense, src.Runes.Shards.Flex, src.Runes.Shards.Defense} {
		if shard > 0 {
			runes.Shards = append(runes.Shards, shard)
		}
	}
	if runes.Complete() {
		b.Runes = &runes
	}

	switch {
	case src.SummonerSpells.Spell1.ID > 0 || src.SummonerSpells.Spell2.ID > 0:
		for _, id := range []int{src.SummonerSpells.Spell1.ID, src.SummonerSpells.Spell2.ID} {
			if id > 0 {
				b.SummonerSpells = append(b.SummonerSpells, id)
			}
		}
	default:
		b.SummonerSpells = src.SummonerSpells.IDs
	}

	return b
}
