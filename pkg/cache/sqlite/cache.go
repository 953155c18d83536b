package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pario-ai/quelldemo/pkg/models"
)

// Cache stores GraphQL response payloads by normalized-query hash.
type Cache struct {
	db     *sql.DB
	ttl    time.Duration
	now    func() time.Time
	hits   atomic.Int64
	misses atomic.Int64
}

// Times are unix nanoseconds; expires_at 0 means the entry never expires.
const createCacheTable = `
CREATE TABLE IF NOT EXISTS query_cache (
	query_hash TEXT PRIMARY KEY,
	query      TEXT NOT NULL,
	response   BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL,
	hit_count  INTEGER NOT NULL DEFAULT 0
)`

const createExpiresIndex = `CREATE INDEX IF NOT EXISTS idx_query_cache_expires ON query_cache(expires_at)`

// New opens the cache database at dbPath. Entries live for ttl; a zero
// ttl keeps them until cleared.
func New(dbPath string, ttl time.Duration) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	// One connection keeps ":memory:" shared and serializes writers.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{createCacheTable, createExpiresIndex} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate cache db: %w", err)
		}
	}

	return &Cache{db: db, ttl: ttl, now: time.Now}, nil
}

// Get returns the payload stored under queryHash. Expired entries count
// as misses and are removed.
func (c *Cache) Get(ctx context.Context, queryHash string) ([]byte, bool) {
	var response []byte
	var expiresAt int64

	err := c.db.QueryRowContext(ctx,
		`SELECT response, expires_at FROM query_cache WHERE query_hash = ?`,
		queryHash,
	).Scan(&response, &expiresAt)
	if err != nil {
		c.misses.Add(1)
		return nil, false
	}

	if expiresAt > 0 && c.now().UnixNano() >= expiresAt {
		_, _ = c.db.ExecContext(ctx, `DELETE FROM query_cache WHERE query_hash = ?`, queryHash)
		c.misses.Add(1)
		return nil, false
	}

	_, _ = c.db.ExecContext(ctx, `UPDATE query_cache SET hit_count = hit_count + 1 WHERE query_hash = ?`, queryHash)
	c.hits.Add(1)
	return response, true
}

// Put stores response for query under queryHash, replacing any previous
// entry and its hit count.
func (c *Cache) Put(ctx context.Context, queryHash, query string, response []byte) error {
	now := c.now()
	var expiresAt int64
	if c.ttl > 0 {
		expiresAt = now.Add(c.ttl).UnixNano()
	}

	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO query_cache (query_hash, query, response, created_at, expires_at, hit_count)
		 VALUES (?, ?, ?, ?, ?, 0)`,
		queryHash, query, response, now.UnixNano(), expiresAt,
	)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// List returns up to limit entries, newest first. A limit <= 0 returns all.
func (c *Cache) List(ctx context.Context, limit int) ([]models.CacheEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := c.db.QueryContext(ctx,
		`SELECT query_hash, query, length(response), created_at, expires_at, hit_count
		 FROM query_cache ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("cache list: %w", err)
	}
	defer rows.Close()

	var entries []models.CacheEntry
	for rows.Next() {
		var e models.CacheEntry
		var created, expires int64
		if err := rows.Scan(&e.QueryHash, &e.Query, &e.Size, &created, &expires, &e.Hits); err != nil {
			return nil, fmt.Errorf("cache list: %w", err)
		}
		e.CreatedAt = time.Unix(0, created)
		if expires > 0 {
			e.ExpiresAt = time.Unix(0, expires)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats returns the entry count and the hit/miss counters of this process.
func (c *Cache) Stats(ctx context.Context) (models.CacheStats, error) {
	var count int64
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM query_cache`).Scan(&count)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return models.CacheStats{
		Entries: count,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

// Clear removes every entry, or only expired ones when expiredOnly is set.
func (c *Cache) Clear(ctx context.Context, expiredOnly bool) error {
	var err error
	if expiredOnly {
		_, err = c.db.ExecContext(ctx,
			`DELETE FROM query_cache WHERE expires_at > 0 AND expires_at <= ?`,
			c.now().UnixNano())
	} else {
		_, err = c.db.ExecContext(ctx, `DELETE FROM query_cache`)
	}
	if err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}
