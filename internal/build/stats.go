package build

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"focuswatch/internal/game"
)

// StatsSource derives item builds from aggregated match statistics in
// Postgres. It has no rune data.
type StatsSource struct {
	pool *pgxpool.Pool
	log  *zap.SugaredLogger

	patch string
}

// itemStat is one item's aggregate for a champion and position
type itemStat struct {
	ItemID   int
	Wins     int
	Matches  int
	WinRate  float64
	PickRate float64
}

// NewStatsSource connects to databaseURL and loads the latest patch
func NewStatsSource(ctx context.Context, databaseURL string, log *zap.Logger) (*StatsSource, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &StatsSource{pool: pool, log: log.Named("stats").Sugar()}
	if err := s.loadPatch(ctx); err != nil {
		s.log.Warnf("[Stats] %v", err)
	}
	return s, nil
}

func (s *StatsSource) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Patch returns the patch queries are scoped to
func (s *StatsSource) Patch() string {
	return s.patch
}

func (s *StatsSource) loadPatch(ctx context.Context) error {
	var patch string
	err := s.pool.QueryRow(ctx, `
		SELECT patch FROM champion_stats
		ORDER BY patch DESC
		LIMIT 1
	`).Scan(&patch)
	if err != nil {
		return fmt.Errorf("failed to get patch: %w", err)
	}

	s.patch = patch
	s.log.Infof("[Stats] Using patch: %s", patch)
	return nil
}

func (s *StatsSource) Fetch(ctx context.Context, championID int, role game.Role) (*Build, error) {
	position := role.Position()

	var totalGames int
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(matches, 0) FROM champion_stats
		WHERE patch = $1 AND champion_id = $2 AND team_position = $3
	`, s.patch, championID, position).Scan(&totalGames)
	if err != nil || totalGames == 0 {
		err = s.pool.QueryRow(ctx, `
			SELECT COALESCE(SUM(matches), 0) FROM champion_stats
			WHERE champion_id = $1 AND team_position = $2
		`, championID, position).Scan(&totalGames)
		if err != nil || totalGames == 0 {
			return nil, fmt.Errorf("stats: %w for champion %d in %s", ErrNotFound, championID, position)
		}
	}

	rows, err := s.pool.Query(ctx, `
		SELECT item_id, wins, matches
		FROM champion_items
		WHERE patch = $1 AND champion_id = $2 AND team_position = $3
		ORDER BY matches DESC
	`, s.patch, championID, position)
	if err != nil {
		return nil, fmt.Errorf("stats: failed to query items: %w", err)
	}
	defer rows.Close()

	var items []itemStat
	for rows.Next() {
		var it itemStat
		if err := rows.Scan(&it.ItemID, &it.Wins, &it.Matches); err != nil {
			continue
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("stats: %w: no item data for champion %d", ErrNotFound, championID)
	}

	b := itemsFromStats(items, totalGames)
	b.ChampionID = championID
	b.Role = role
	b.Source = "stats"
	return b, nil
}

// itemsFromStats splits items into boots, frequently bought core items and
// the rest, ranked by pick rate
func itemsFromStats(items []itemStat, totalGames int) *Build {
	var boots, core, rest []itemStat
	for _, it := range items {
		if it.Matches > 0 && totalGames > 0 {
			it.WinRate = float64(it.Wins) / float64(it.Matches) * 100
			it.PickRate = float64(it.Matches) / float64(totalGames) * 100
		}
		switch {
		case isBoots(it.ItemID):
			boots = append(boots, it)
		case it.PickRate >= 30:
			core = append(core, it)
		default:
			rest = append(rest, it)
		}
	}

	sort.SliceStable(core, func(i, j int) bool { return core[i].PickRate > core[j].PickRate })
	sort.SliceStable(rest, func(i, j int) bool {
		return rest[i].PickRate*0.7+rest[i].WinRate*0.3 > rest[j].PickRate*0.7+rest[j].WinRate*0.3
	})

	b := &Build{Games: totalGames}
	for i := 0; i < len(core) && i < 3; i++ {
		b.Items.Core = append(b.Items.Core, core[i].ItemID)
	}
	if len(core) > 0 {
		b.WinRate = core[0].WinRate
	}
	if len(boots) > 0 {
		b.Items.Boots = boots[0].ItemID
	}
	for i := 0; i < len(rest) && i < 5; i++ {
		b.Items.Situational = append(b.Items.Situational, rest[i].ItemID)
	}
	return b
}

var bootsItems = map[int]bool{
	3006: true, // Berserker's Greaves
	3009: true, // Boots of Swiftness
	3020: true, // Sorcerer's Shoes
	3047: true, // Plated Steelcaps
	3111: true, // Mercury's Treads
	3117: true, // Mobility Boots
	3158: true, // Ionian Boots of Lucidity
}

func isBoots(itemID int) bool {
	return bootsItems[itemID]
}
