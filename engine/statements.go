package engine

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// statementCache keeps prepared statements keyed by their SQL text.
//
// go-cache expires statements unused for ttl; singleflight collapses
// concurrent prepares of the same text. Expired statements may still be in
// use by a goroutine that fetched them just before expiry, so they are
// retired and only closed together with the session.
type statementCache struct {
	db    *sql.DB
	cache *cache.Cache
	group singleflight.Group

	mu      sync.Mutex
	retired []*sql.Stmt
}

func newStatementCache(db *sql.DB, ttl time.Duration) *statementCache {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}

	c := &statementCache{
		db:    db,
		cache: cache.New(ttl, cleanupInterval(ttl)),
	}
	c.cache.OnEvicted(func(_ string, v any) {
		c.mu.Lock()
		c.retired = append(c.retired, v.(*sql.Stmt))
		c.mu.Unlock()
	})

	return c
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if ttl == cache.NoExpiration {
		return 0
	}

	return 2 * ttl
}

// get returns the prepared statement for query, preparing it on first use.
// A missing table or a syntax error in query surfaces here.
func (c *statementCache) get(ctx context.Context, query string) (*sql.Stmt, error) {
	if v, found := c.cache.Get(query); found {
		stmt := v.(*sql.Stmt)
		c.cache.SetDefault(query, stmt)
		return stmt, nil
	}

	v, err, _ := c.group.Do(query, func() (any, error) {
		if v, found := c.cache.Get(query); found {
			return v, nil
		}

		// An expired item the janitor has not removed yet would be
		// overwritten below without OnEvicted; retire it first.
		c.cache.DeleteExpired()

		stmt, err := c.db.PrepareContext(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("prepare %q: %w", query, err)
		}

		c.cache.SetDefault(query, stmt)
		return stmt, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*sql.Stmt), nil
}

// len reports how many statements are currently cached.
func (c *statementCache) len() int {
	return c.cache.ItemCount()
}

// close closes every cached and retired statement. The cache must not be
// used afterwards.
func (c *statementCache) close() {
	for _, item := range c.cache.Items() {
		_ = item.Object.(*sql.Stmt).Close()
	}
	c.cache.Flush()

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, stmt := range c.retired {
		_ = stmt.Close()
	}
	c.retired = nil
}
