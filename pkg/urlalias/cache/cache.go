// Package cache memoizes alias lookups with Ristretto.
//
// Keys carry a generation number. Invalidate bumps the generation, so every
// entry written before a mutation becomes unreachable at once and ages out of
// the cache on its own.
package cache

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/tendant/simple-urlalias/pkg/urlalias"
	"golang.org/x/sync/singleflight"
)

// Config sizes the cache. MaxCost counts entries, each costing 1.
type Config struct {
	MaxCost     int64
	NumCounters int64
	// TTL of zero keeps entries until they are evicted.
	TTL time.Duration
}

// DefaultConfig returns a cache holding up to 10000 lookups for five minutes.
func DefaultConfig() Config {
	return Config{MaxCost: 10000, TTL: 5 * time.Minute}
}

// Cache implements urlalias.LookupCache
type Cache struct {
	client     *ristretto.Cache
	ttl        time.Duration
	generation atomic.Uint64
	group      singleflight.Group
}

// Stats is a snapshot of cache activity.
type Stats struct {
	Hits       uint64
	Misses     uint64
	Generation uint64
}

// New creates a new cache instance with the given configuration
func New(cfg Config) (*Cache, error) {
	if cfg.MaxCost <= 0 {
		return nil, fmt.Errorf("cache max cost must be positive, got %d", cfg.MaxCost)
	}
	if cfg.NumCounters <= 0 {
		cfg.NumCounters = cfg.MaxCost * 10
	}

	client, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}

	return &Cache{client: client, ttl: cfg.TTL}, nil
}

func (c *Cache) key(key string) string {
	return strconv.FormatUint(c.generation.Load(), 10) + ":" + key
}

// GetOrLoad returns the cached alias for key or runs load once for all
// concurrent callers of the same generation. Errors are not cached.
func (c *Cache) GetOrLoad(key string, load func() (*urlalias.URLAlias, error)) (*urlalias.URLAlias, error) {
	k := c.key(key)
	if v, ok := c.client.Get(k); ok {
		return v.(*urlalias.URLAlias).Clone(), nil
	}

	v, err, _ := c.group.Do(k, func() (interface{}, error) {
		alias, err := load()
		if err != nil {
			return nil, err
		}
		c.client.SetWithTTL(k, alias.Clone(), 1, c.ttl)
		return alias, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*urlalias.URLAlias).Clone(), nil
}

// Invalidate drops every entry written so far.
func (c *Cache) Invalidate() {
	c.generation.Add(1)
}

// Wait blocks until buffered writes are applied.
func (c *Cache) Wait() {
	c.client.Wait()
}

// Stats returns hit and miss counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:       c.client.Metrics.Hits(),
		Misses:     c.client.Metrics.Misses(),
		Generation: c.generation.Load(),
	}
}

// Close cleanly shuts down the cache
func (c *Cache) Close() {
	c.client.Close()
}
