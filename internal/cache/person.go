package cache

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/catalogsync/internal/config"
	"github.com/jon4hz/catalogsync/internal/metrics"
	"github.com/jon4hz/catalogsync/internal/tmdb"
)

// PersonCachePrefix namespaces person entries in shared stores.
const PersonCachePrefix = "person-detail-"

// PersonCache holds person details fetched during one sync run. It keeps at
// most size entries and evicts the oldest one when full.
type PersonCache struct {
	store *PrefixedCache[tmdb.PersonDetail]
	size  int

	mu    sync.Mutex
	order []int
	keys  map[int]struct{}
}

// NewPersonCache creates a person cache on the configured backend.
func NewPersonCache(cfg *config.CacheConfig, size int) *PersonCache {
	return &PersonCache{
		store: NewPrefixedCache[tmdb.PersonDetail](newCacheInstanceByType(cfg), PersonCachePrefix),
		size:  size,
		keys:  make(map[int]struct{}),
	}
}

// Get returns the cached detail of a person, if any.
func (c *PersonCache) Get(ctx context.Context, id int) (*tmdb.PersonDetail, bool) {
	c.mu.Lock()
	_, ok := c.keys[id]
	c.mu.Unlock()
	if !ok {
		return nil, false
	}

	detail, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, false
	}
	metrics.PersonCacheHits.Inc()
	return &detail, true
}

// Set caches the detail of a person.
func (c *PersonCache) Set(ctx context.Context, id int, detail *tmdb.PersonDetail) {
	if c.size <= 0 || detail == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, known := c.keys[id]
	if !known {
		for len(c.order) >= c.size {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.keys, oldest)
			if err := c.store.Delete(ctx, oldest); err != nil {
				log.Debug("failed to evict person from cache", "id", oldest, "error", err)
			}
		}
		c.order = append(c.order, id)
		c.keys[id] = struct{}{}
	}

	if err := c.store.Set(ctx, id, *detail); err != nil {
		log.Warn("failed to cache person", "id", id, "error", err)
		if !known {
			delete(c.keys, id)
			c.order = c.order[:len(c.order)-1]
		}
	}
}

// Reset drops every entry.
func (c *PersonCache) Reset(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range c.order {
		if err := c.store.Delete(ctx, id); err != nil {
			log.Debug("failed to drop person from cache", "id", id, "error", err)
		}
	}
	c.order = nil
	c.keys = make(map[int]struct{})
}

// Len returns the number of cached persons.
func (c *PersonCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}
