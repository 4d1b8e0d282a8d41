// Package sqlite is an exact-match cache of text generations backed by
// SQLite.
package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/postwright/postwright/pkg/models"
	"github.com/postwright/postwright/pkg/sqlitedb"
)

// Cache is an exact-match prompt cache.
type Cache struct {
	db     *sqlx.DB
	ttl    time.Duration
	now    func() time.Time
	hits   atomic.Int64
	misses atomic.Int64
}

const createCacheTable = `
CREATE TABLE IF NOT EXISTS generation_cache (
	prompt_hash TEXT NOT NULL,
	model TEXT NOT NULL,
	content TEXT NOT NULL,
	tokens_used INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	expires_at TEXT NOT NULL,
	PRIMARY KEY (prompt_hash, model)
);
`

// New creates a Cache with the given database path and TTL.
func New(dbPath string, ttl time.Duration) (*Cache, error) {
	db, err := sqlitedb.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if err := sqlitedb.Migrate(db, createCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	return &Cache{db: db, ttl: ttl, now: time.Now}, nil
}

// HashPrompt computes a SHA-256 hash of the model, system instruction and
// prompt.
func HashPrompt(model, system, prompt string) string {
	h := sha256.New()
	for _, part := range []string{model, system, prompt} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Get retrieves a cached generation. It reports false if the entry is
// missing or expired.
func (c *Cache) Get(ctx context.Context, promptHash, model string) (models.CacheEntry, bool) {
	var row struct {
		Content    string `db:"content"`
		TokensUsed int    `db:"tokens_used"`
		CreatedAt  string `db:"created_at"`
		ExpiresAt  string `db:"expires_at"`
	}
	err := c.db.GetContext(ctx, &row,
		`SELECT content, tokens_used, created_at, expires_at FROM generation_cache WHERE prompt_hash = ? AND model = ?`,
		promptHash, model,
	)
	if err != nil {
		c.misses.Add(1)
		return models.CacheEntry{}, false
	}

	if sqlitedb.FormatTime(c.now()) >= row.ExpiresAt {
		c.misses.Add(1)
		return models.CacheEntry{}, false
	}

	c.hits.Add(1)
	return models.CacheEntry{
		PromptHash: promptHash,
		Model:      model,
		Content:    row.Content,
		TokensUsed: row.TokensUsed,
		CreatedAt:  sqlitedb.ParseTime(row.CreatedAt),
		TTL:        c.ttl,
	}, true
}

// Put stores a generation in the cache.
func (c *Cache) Put(ctx context.Context, promptHash, model, content string, tokensUsed int) error {
	now := c.now()
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO generation_cache (prompt_hash, model, content, tokens_used, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		promptHash, model, content, tokensUsed,
		sqlitedb.FormatTime(now), sqlitedb.FormatTime(now.Add(c.ttl)),
	)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Stats returns cache performance metrics.
func (c *Cache) Stats(ctx context.Context) (models.CacheStats, error) {
	var count int64
	if err := c.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM generation_cache`); err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return models.CacheStats{
		Entries: count,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

// Clear removes cache entries. If expiredOnly is true, only expired entries
// are removed.
func (c *Cache) Clear(ctx context.Context, expiredOnly bool) (int64, error) {
	var res sql.Result
	var err error
	if expiredOnly {
		res, err = c.db.ExecContext(ctx, `DELETE FROM generation_cache WHERE expires_at <= ?`, sqlitedb.FormatTime(c.now()))
	} else {
		res, err = c.db.ExecContext(ctx, `DELETE FROM generation_cache`)
	}
	if err != nil {
		return 0, fmt.Errorf("cache clear: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}
