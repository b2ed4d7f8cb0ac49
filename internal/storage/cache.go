package storage

import (
	"container/list"
	"sync"
	"time"

	"provider_core/internal/models"
)

type cacheEntry struct {
	key       string
	value     *models.ProviderConfig
	expiresAt time.Time
}

// ProviderCache is a thread-safe LRU cache for resolved provider configs
// with a per-entry TTL. Expiry is enforced on read (check-and-evict), so a
// stale entry can never be served past its deadline.
type ProviderCache struct {
	mu           sync.Mutex
	capacity     int
	ttl          time.Duration
	items        map[string]*list.Element
	evictionList *list.List

	// now is swappable in tests.
	now func() time.Time
}

// NewProviderCache creates a cache holding at most capacity entries, each
// valid for ttl after the last Set.
func NewProviderCache(capacity int, ttl time.Duration) *ProviderCache {
	return &ProviderCache{
		capacity:     capacity,
		ttl:          ttl,
		items:        make(map[string]*list.Element, capacity),
		evictionList: list.New(),
		now:          time.Now,
	}
}

// Get returns the cached provider for key, evicting and missing if the
// entry has expired.
func (c *ProviderCache) Get(key string) (*models.ProviderConfig, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, found := c.items[key]
	if !found {
		return nil, false
	}

	entry := elem.Value.(*cacheEntry)
	if c.now().After(entry.expiresAt) {
		c.removeElement(elem)
		return nil, false
	}

	c.evictionList.MoveToFront(elem)
	return entry.value, true
}

// Set stores or refreshes an entry, resetting its TTL.
func (c *ProviderCache) Set(key string, value *models.ProviderConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(c.ttl)

	if elem, found := c.items[key]; found {
		c.evictionList.MoveToFront(elem)
		entry := elem.Value.(*cacheEntry)
		entry.value = value
		entry.expiresAt = expiresAt
		return
	}

	elem := c.evictionList.PushFront(&cacheEntry{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = elem

	if c.evictionList.Len() > c.capacity {
		if oldest := c.evictionList.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

// Delete removes one entry. Removing a missing key is a no-op, which keeps
// invalidation idempotent and safe to race with concurrent reads.
func (c *ProviderCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, found := c.items[key]; found {
		c.removeElement(elem)
	}
}

// Clear removes every entry.
func (c *ProviderCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element, c.capacity)
	c.evictionList.Init()
}

// Len returns the current entry count, expired entries included until
// they are touched or swept.
func (c *ProviderCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictionList.Len()
}

// CleanupExpired sweeps expired entries and returns how many were removed.
// Intended for a periodic background call; reads are already safe without it.
func (c *ProviderCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0

	var prev *list.Element
	for elem := c.evictionList.Back(); elem != nil; elem = prev {
		prev = elem.Prev()
		if now.After(elem.Value.(*cacheEntry).expiresAt) {
			c.removeElement(elem)
			removed++
		}
	}

	return removed
}

func (c *ProviderCache) removeElement(elem *list.Element) {
	c.evictionList.Remove(elem)
	delete(c.items, elem.Value.(*cacheEntry).key)
}
