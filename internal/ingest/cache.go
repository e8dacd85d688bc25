package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/david/b2-radar/internal/models"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL is how long a dataset is served before the source is read again.
const DefaultCacheTTL = 15 * time.Minute

type cacheEntry struct {
	dataset   *models.Dataset
	fetchedAt time.Time
}

// Cache is a keyed read-through store of pipeline results. Keys are source ids.
type Cache struct {
	ttl   time.Duration
	clock Clock

	mu      sync.RWMutex
	entries map[string]cacheEntry
	group   singleflight.Group
}

// NewCache returns a cache with the given TTL. A non-positive ttl uses DefaultCacheTTL.
func NewCache(ttl time.Duration, clock Clock) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Cache{ttl: ttl, clock: clock, entries: make(map[string]cacheEntry)}
}

func (c *Cache) TTL() time.Duration { return c.ttl }

// Get returns the cached dataset and when it was fetched, regardless of freshness.
func (c *Cache) Get(key string) (*models.Dataset, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e.dataset, e.fetchedAt, ok
}

// Put stores ds as fetched at the clock's current time.
func (c *Cache) Put(key string, ds *models.Dataset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{dataset: ds, fetchedAt: c.clock.Now()}
}

// IsStale reports whether key is missing or older than the TTL at now.
func (c *Cache) IsStale(key string, now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return true
	}
	return now.Sub(e.fetchedAt) >= c.ttl
}

// fresh returns the cached dataset when it exists and is younger than the TTL at now.
// Lookup and age check happen under a single read lock.
func (c *Cache) fresh(key string, now time.Time) (*models.Dataset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || e.dataset == nil || now.Sub(e.fetchedAt) >= c.ttl {
		return nil, false
	}
	return e.dataset, true
}

func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// Loader produces a fresh dataset for a key.
type Loader func(ctx context.Context) (*models.Dataset, error)

// Load returns the cached dataset when fresh. Otherwise it runs load, blocking the caller;
// concurrent callers for the same key share one load. Failed loads are not cached and
// the loader's dataset (possibly empty) is returned with its error.
func (c *Cache) Load(ctx context.Context, key string, load Loader) (*models.Dataset, error) {
	if ds, ok := c.fresh(key, c.clock.Now()); ok {
		return ds, nil
	}

	type result struct {
		ds  *models.Dataset
		err error
	}
	v, _, _ := c.group.Do(key, func() (interface{}, error) {
		// Another caller may have refreshed while we waited for the group.
		if ds, ok := c.fresh(key, c.clock.Now()); ok {
			return result{ds: ds}, nil
		}
		ds, err := load(ctx)
		if err == nil {
			c.Put(key, ds)
		}
		return result{ds: ds, err: err}, nil
	})
	r := v.(result)
	return r.ds, r.err
}
