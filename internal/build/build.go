package build

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"focuswatch/internal/game"
)

var ErrNotFound = errors.New("no build available")

// Runes is a rune page recommendation
type Runes struct {
	PrimaryStyleID int   `json:"primaryStyleId"`
	SubStyleID     int   `json:"subStyleId"`
	Keystone       int   `json:"keystone"`
	Primary        []int `json:"primary"`
	Secondary      []int `json:"secondary"`
	Shards         []int `json:"shards"`
}

// PerkIDs returns the selected perks in the order the client expects:
// keystone, primary slots, secondary slots, shards
func (r Runes) PerkIDs() []int {
	ids := make([]int, 0, 1+len(r.Primary)+len(r.Secondary)+len(r.Shards))
	if r.Keystone > 0 {
		ids = append(ids, r.Keystone)
	}
	ids = append(ids, r.Primary...)
	ids = append(ids, r.Secondary...)
	ids = append(ids, r.Shards...)
	return ids
}

// Complete reports whether the page can be created in the client
func (r Runes) Complete() bool {
	return r.PrimaryStyleID > 0 && r.SubStyleID > 0 && r.Keystone > 0
}

type Items struct {
	Starting    []int `json:"starting"`
	Core        []int `json:"core"`
	Boots       int   `json:"boots"`
	FullBuild   []int `json:"fullBuild"`
	Situational []int `json:"situational"`
}

// Empty reports whether no item recommendation exists
func (i Items) Empty() bool {
	return len(i.Starting) == 0 && len(i.Core) == 0 && i.Boots == 0 &&
		len(i.FullBuild) == 0 && len(i.Situational) == 0
}

// Build is a recommendation for one champion in one role
type Build struct {
	ChampionID     int       `json:"championId"`
	Champion       string    `json:"champion"`
	Role           game.Role `json:"role"`
	Runes          *Runes    `json:"runes,omitempty"`
	Items          Items     `json:"items"`
	SummonerSpells []int     `json:"summonerSpells,omitempty"`
	SkillPriority  string    `json:"skillPriority,omitempty"`
	WinRate        float64   `json:"winRate,omitempty"`
	Games          int       `json:"games,omitempty"`
	Source         string    `json:"source"`
}

// Source produces build recommendations
type Source interface {
	Fetch(ctx context.Context, championID int, role game.Role) (*Build, error)
}

// Chain tries sources in order and returns the first build found
type Chain []Source

func (c Chain) Fetch(ctx context.Context, championID int, role game.Role) (*Build, error) {
	var errs []string
	for _, src := range c {
		if src == nil {
			continue
		}
		b, err := src.Fetch(ctx, championID, role)
		if err == nil {
			return b, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, err.Error())
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: no sources configured", ErrNotFound)
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, strings.Join(errs, "; "))
}
