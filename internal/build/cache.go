package build

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"focuswatch/internal/game"
)

// DefaultCacheTTL is how long a cached build stays fresh
const DefaultCacheTTL = 24 * time.Hour

// Cache is a SQLite-backed read-through cache in front of another Source,
// keyed by champion and role
type Cache struct {
	db   *sql.DB
	next Source
	ttl  time.Duration
	log  *zap.SugaredLogger
	now  func() time.Time
}

// OpenCache opens (or creates) the cache database in dir
func OpenCache(dir string, next Source, ttl time.Duration, log *zap.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "builds.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	db.SetMaxOpenConns(1)

	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &Cache{db: db, next: next, ttl: ttl, log: log.Named("buildcache").Sugar(), now: time.Now}
	if err := c.init(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) init() error {
	_, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS builds (
			champion_id INTEGER NOT NULL,
			role TEXT NOT NULL,
			payload TEXT NOT NULL,
			fetched_at INTEGER NOT NULL,
			PRIMARY KEY (champion_id, role)
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create cache schema: %w", err)
	}
	return nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Fetch returns a fresh cached build or fetches and stores one. A stale
// entry is served when the upstream source fails.
func (c *Cache) Fetch(ctx context.Context, championID int, role game.Role) (*Build, error) {
	cached, fetchedAt, err := c.lookup(ctx, championID, role)
	if err != nil {
		c.log.Warnf("[BuildCache] lookup %d/%s: %v", championID, role, err)
	}
	if cached != nil && c.now().Sub(fetchedAt) < c.ttl {
		return cached, nil
	}

	b, err := c.next.Fetch(ctx, championID, role)
	if err != nil {
		if cached != nil {
			c.log.Infof("[BuildCache] serving stale build for %d/%s: %v", championID, role, err)
			return cached, nil
		}
		return nil, err
	}

	if err := c.store(ctx, b, championID, role); err != nil {
		c.log.Warnf("[BuildCache] store %d/%s: %v", championID, role, err)
	}
	return b, nil
}

func (c *Cache) lookup(ctx context.Context, championID int, role game.Role) (*Build, time.Time, error) {
	var payload string
	var fetchedAt int64
	err := c.db.QueryRowContext(ctx, `
		SELECT payload, fetched_at FROM builds
		WHERE champion_id = ? AND role = ?
	`, championID, string(role)).Scan(&payload, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, err
	}

	var b Build
	if err := json.Unmarshal([]byte(payload), &b); err != nil {
		return nil, time.Time{}, err
	}
	return &b, time.UnixMilli(fetchedAt), nil
}

func (c *Cache) store(ctx context.Context, b *Build, championID int, role game.Role) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO builds (champion_id, role, payload, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(champion_id, role) DO UPDATE SET
			payload = excluded.payload,
			fetched_at = excluded.fetched_at
	`, championID, string(role), string(payload), c.now().UnixMilli())
	return err
}

// Purge removes entries older than the TTL
func (c *Cache) Purge(ctx context.Context) (int64, error) {
	cutoff := c.now().Add(-c.ttl).UnixMilli()
	res, err := c.db.ExecContext(ctx, `DELETE FROM builds WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
