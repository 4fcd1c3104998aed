// Package cache provides a fixed-capacity, TTL-expiring, LRU-evicting cache.
//
// Every component that memoizes expensive work (query embeddings, record
// embeddings, search results) uses a Cache. Expiry is lazy: an expired entry
// stays resident until a read discovers it, but it is never returned.
package cache

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

const (
	// DefaultCapacity is used when Config.Capacity is zero.
	DefaultCapacity = 1000
)

// Config configures a Cache.
type Config struct {
	// Capacity is the maximum number of resident entries.
	Capacity int

	// TTL is the lifetime of an entry. Zero disables expiry.
	TTL time.Duration

	// Debug makes invariant violations panic instead of self-healing.
	Debug bool

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Size        int    `json:"size"`
	Capacity    int    `json:"capacity"`
	Hits        uint64 `json:"hits"`
	Misses      uint64 `json:"misses"`
	Evictions   uint64 `json:"evictions"`
	Expirations uint64 `json:"expirations"`
}

// HitRate returns hits / (hits + misses), or 0 with no lookups.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// Cache is a generic bounded cache. The zero value is not usable; use New.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	debug    bool
	now      func() time.Time

	// order holds entries from most (front) to least (back) recently used.
	order *list.List
	items map[K]*list.Element

	hits        uint64
	misses      uint64
	evictions   uint64
	expirations uint64
}

// New creates a cache from c.
func New[K comparable, V any](c Config) *Cache[K, V] {
	capacity := c.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	now := c.Now
	if now == nil {
		now = time.Now
	}
	return &Cache[K, V]{
		capacity: capacity,
		ttl:      c.TTL,
		debug:    c.Debug,
		now:      now,
		order:    list.New(),
		items:    make(map[K]*list.Element, capacity),
	}
}

// Get returns the value for key and marks it most recently used. Missing and
// expired entries report ok=false.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		c.misses++
		return zero, false
	}

	e := el.Value.(*entry[K, V])
	if c.expired(e) {
		c.removeElement(el)
		c.expirations++
		c.misses++
		return zero, false
	}

	c.order.MoveToFront(el)
	c.hits++
	return e.value, true
}

// Set inserts or replaces the value for key. When the cache is full the
// least recently used entry is evicted.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = c.now().Add(c.ttl)
	}

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[K, V])
		e.value = value
		e.expiresAt = expiresAt
		c.order.MoveToFront(el)
		return
	}

	for c.order.Len() >= c.capacity {
		c.evictOldest()
	}

	el := c.order.PushFront(&entry[K, V]{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = el

	c.checkInvariant()
}

// Delete removes key if present.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

// Size returns the number of resident entries, including expired entries not
// yet discovered by a read.
func (c *Cache[K, V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear removes every entry. Counters are kept.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.items = make(map[K]*list.Element, c.capacity)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Size:        c.order.Len(),
		Capacity:    c.capacity,
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
	}
}

func (c *Cache[K, V]) expired(e *entry[K, V]) bool {
	return !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt)
}

func (c *Cache[K, V]) evictOldest() {
	el := c.order.Back()
	if el == nil {
		return
	}
	c.removeElement(el)
	c.evictions++
}

func (c *Cache[K, V]) removeElement(el *list.Element) {
	e := c.order.Remove(el).(*entry[K, V])
	delete(c.items, e.key)
}

// checkInvariant must be called with mu held.
func (c *Cache[K, V]) checkInvariant() {
	if c.order.Len() <= c.capacity && len(c.items) == c.order.Len() {
		return
	}
	if c.debug {
		panic(fmt.Sprintf("cache: invariant violated: %d entries, %d indexed, capacity %d",
			c.order.Len(), len(c.items), c.capacity))
	}
	for c.order.Len() > c.capacity {
		c.evictOldest()
	}
	if len(c.items) != c.order.Len() {
		c.items = make(map[K]*list.Element, c.order.Len())
		for el := c.order.Front(); el != nil; el = el.Next() {
			c.items[el.Value.(*entry[K, V]).key] = el
		}
	}
}
