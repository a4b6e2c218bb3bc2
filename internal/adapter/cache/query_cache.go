package cache

import (
	"sync"
	"time"

	"contractrag/internal/domain"
)

// QueryCache is an LRU of search results keyed by owner, query text and k.
// Entries expire after the TTL and whenever their owner's partition changes.
type QueryCache struct {
	mu      sync.RWMutex
	entries map[cacheKey]*cacheEntry
	order   []cacheKey
	maxSize int
	ttl     time.Duration
	gens    map[domain.OwnerID]uint64
	now     func() time.Time
}

type cacheKey struct {
	owner domain.OwnerID
	query string
	topK  int
}

type cacheEntry struct {
	results   []domain.SearchResult
	timestamp time.Time
	gen       uint64
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 128
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		entries: make(map[cacheKey]*cacheEntry),
		order:   make([]cacheKey, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		gens:    make(map[domain.OwnerID]uint64),
		now:     time.Now,
	}
}

// Get returns a copy of the cached results, so callers may modify them.
func (c *QueryCache) Get(owner domain.OwnerID, query string, topK int) ([]domain.SearchResult, bool) {
	key := cacheKey{owner: owner, query: query, topK: topK}

	c.mu.RLock()
	entry, exists := c.entries[key]
	currentGen := c.gens[owner]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if c.now().Sub(entry.timestamp) > c.ttl || entry.gen != currentGen {
		c.mu.Lock()
		if c.entries[key] == entry {
			delete(c.entries, key)
			c.removeFromOrder(key)
		}
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	if c.entries[key] == entry {
		c.moveToEnd(key)
	}
	c.mu.Unlock()

	return cloneResults(entry.results), true
}

// Generation returns the owner's current partition generation. Read it
// before computing results and hand it to Put.
func (c *QueryCache) Generation(owner domain.OwnerID) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gens[owner]
}

// Put stores results computed while the owner was at generation gen. The
// results are dropped if the owner has been invalidated since.
func (c *QueryCache) Put(owner domain.OwnerID, query string, topK int, gen uint64, results []domain.SearchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gens[owner] {
		return
	}

	key := cacheKey{owner: owner, query: query, topK: topK}
	entry := &cacheEntry{
		results:   cloneResults(results),
		timestamp: c.now(),
		gen:       gen,
	}

	if _, exists := c.entries[key]; exists {
		c.entries[key] = entry
		c.moveToEnd(key)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	c.entries[key] = entry
	c.order = append(c.order, key)
}

// Invalidate drops every entry of owner. Other owners' entries survive.
func (c *QueryCache) Invalidate(owner domain.OwnerID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gens[owner]++
	kept := c.order[:0]
	for _, key := range c.order {
		if key.owner == owner {
			delete(c.entries, key)
			continue
		}
		kept = append(kept, key)
	}
	c.order = kept
}

func (c *QueryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *QueryCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *QueryCache) moveToEnd(key cacheKey) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *QueryCache) removeFromOrder(key cacheKey) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func cloneResults(results []domain.SearchResult) []domain.SearchResult {
	if results == nil {
		return nil
	}
	out := make([]domain.SearchResult, len(results))
	for i, r := range results {
		r.Metadata = domain.CloneMetadata(r.Metadata)
		out[i] = r
	}
	return out
}
