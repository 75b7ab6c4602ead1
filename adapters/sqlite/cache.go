package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/artpar/samgate/adapters/clock"
	"github.com/artpar/samgate/ports"
)

// Cache implements ports.Cache on the template_cache table, so memoized
// values survive restarts. Expired rows are removed lazily on read.
type Cache struct {
	db    *DB
	clock ports.Clock
}

// NewCache creates a new SQLite-backed cache.
func NewCache(db *DB) *Cache {
	return NewCacheWithClock(db, clock.Real{})
}

// NewCacheWithClock creates a cache reading time from clk, for tests that
// control expiry.
func NewCacheWithClock(db *DB, clk ports.Clock) *Cache {
	return &Cache{db: db, clock: clk}
}

// Get retrieves a value; ok is false on a miss or after expiry.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	var expiresAt sql.NullInt64

	err := c.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM template_cache WHERE key = ?`,
		key,
	).Scan(&value, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	if expiresAt.Valid && c.clock.Now().Unix() >= expiresAt.Int64 {
		if _, err := c.db.ExecContext(ctx,
			`DELETE FROM template_cache WHERE key = ? AND expires_at = ?`,
			key, expiresAt.Int64,
		); err != nil {
			return nil, false, fmt.Errorf("cache expire: %w", err)
		}
		return nil, false, nil
	}

	return value, true, nil
}

// Set stores a value with a time-to-live. A zero ttl never expires.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt sql.NullInt64
	if ttl > 0 {
		expiresAt = sql.NullInt64{Int64: c.clock.Now().Add(ttl).Unix(), Valid: true}
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO template_cache (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
	`, key, value, expiresAt)
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Invalidate removes a key.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx,
		`DELETE FROM template_cache WHERE key = ?`, key,
	); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

// PurgeExpired removes every expired row and reports how many were dropped.
func (c *Cache) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM template_cache WHERE expires_at IS NOT NULL AND expires_at <= ?`,
		c.clock.Now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("cache purge: %w", err)
	}
	return res.RowsAffected()
}

// Ensure interface compliance.
var _ ports.Cache = (*Cache)(nil)
