// Package cache provides a bounded, time-expiring in-process cache.
//
// Entries expire lazily: an entry older than the TTL is treated as absent on
// read and dropped at that point. Capacity is enforced on Set by evicting the
// least recently used entry.
package cache

import (
	"container/list"
	"sync"
	"time"

	"fanfan-translator/pkg/metrics"
)

type Options struct {
	// Name labels the prometheus counters. Empty disables metrics.
	Name       string
	MaxEntries int
	TTL        time.Duration
	Clock      func() time.Time
}

type Stats struct {
	Name      string `json:"name"`
	Size      int    `json:"size"`
	Capacity  int    `json:"capacity"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

type entry[K comparable, V any] struct {
	key      K
	value    V
	storedAt time.Time
}

// Cache is safe for concurrent use. MaxEntries <= 0 means unbounded and
// TTL <= 0 means entries never expire.
type Cache[K comparable, V any] struct {
	mu    sync.Mutex
	ll    *list.List
	items map[K]*list.Element

	name       string
	maxEntries int
	ttl        time.Duration
	now        func() time.Time

	hits      uint64
	misses    uint64
	evictions uint64
}

func New[K comparable, V any](opts Options) *Cache[K, V] {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Cache[K, V]{
		ll:         list.New(),
		items:      make(map[K]*list.Element),
		name:       opts.Name,
		maxEntries: opts.MaxEntries,
		ttl:        opts.TTL,
		now:        now,
	}
}

// Get returns the value for key and promotes it to most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		c.miss()
		return zero, false
	}

	e := el.Value.(*entry[K, V])
	if c.expired(e) {
		c.removeElement(el)
		c.miss()
		return zero, false
	}

	c.ll.MoveToFront(el)
	c.hit()
	return e.value, true
}

// Set stores value as the most recently used entry, replacing any previous
// value for key.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}

	el := c.ll.PushFront(&entry[K, V]{key: key, value: value, storedAt: c.now()})
	c.items[key] = el

	for c.maxEntries > 0 && c.ll.Len() > c.maxEntries {
		oldest := c.ll.Back()
		if oldest == nil {
			break
		}
		c.removeElement(oldest)
		c.evictions++
		if c.name != "" {
			metrics.CacheEvictions.WithLabelValues(c.name).Inc()
		}
	}
}

func (c *Cache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

// Purge drops every entry.
func (c *Cache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ll.Init()
	c.items = make(map[K]*list.Element)
}

// Len counts stored entries, including expired ones not yet read.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Name:      c.name,
		Size:      c.ll.Len(),
		Capacity:  c.maxEntries,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

func (c *Cache[K, V]) expired(e *entry[K, V]) bool {
	return c.ttl > 0 && c.now().Sub(e.storedAt) > c.ttl
}

func (c *Cache[K, V]) removeElement(el *list.Element) {
	c.ll.Remove(el)
	delete(c.items, el.Value.(*entry[K, V]).key)
}

func (c *Cache[K, V]) hit() {
	c.hits++
	if c.name != "" {
		metrics.CacheHits.WithLabelValues(c.name).Inc()
	}
}

func (c *Cache[K, V]) miss() {
	c.misses++
	if c.name != "" {
		metrics.CacheMisses.WithLabelValues(c.name).Inc()
	}
}
