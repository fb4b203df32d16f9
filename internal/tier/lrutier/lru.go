// Package lrutier implements the in-process first cache tier: an LRU
// bounded by entry count and bytes, with lazy expiry on read.
package lrutier

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/lecternlabs/marginalia/internal/tier"
)

// ErrBadCapacity indicates a non-positive entry capacity.
var ErrBadCapacity = errors.New("lrutier: max entries must be positive")

// Cache is the first tier. Safe for concurrent use; a single mutex guards
// the LRU list and its byte accounting together so the two never drift.
type Cache struct {
	mu       sync.Mutex
	lru      *simplelru.LRU[string, *tier.Entry]
	maxBytes int64
	curBytes int64
	onEvict  func(*tier.Entry)

	// suppress silences onEvict during explicit removals, which are
	// invalidations rather than evictions.
	suppress bool
}

// New creates a Cache holding at most maxEntries entries and, when
// maxBytes > 0, at most maxBytes of accounted payload. onEvict, when
// non-nil, runs for every entry dropped by capacity pressure or expiry.
func New(maxEntries int, maxBytes int64, onEvict func(*tier.Entry)) (*Cache, error) {
	if maxEntries <= 0 {
		return nil, ErrBadCapacity
	}

	c := &Cache{
		maxBytes: maxBytes,
		onEvict:  onEvict,
	}

	inner, err := simplelru.NewLRU[string, *tier.Entry](maxEntries, func(_ string, e *tier.Entry) {
		c.curBytes -= e.Cost()
		if !c.suppress && c.onEvict != nil {
			c.onEvict(e)
		}
	})
	if err != nil {
		return nil, err
	}
	c.lru = inner

	return c, nil
}

// Get returns the entry under key, refreshing its recency and touch
// metadata. An expired entry is purged on the spot and reported as absent.
func (c *Cache) Get(key string, now time.Time) (*tier.Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if e.Expired(now) {
		c.lru.Remove(key)
		return nil, false
	}

	e.HitCount++
	e.LastAccessedAt = now
	return e, true
}

// Set stores the entry under its key, evicting from the cold end until both
// bounds hold. Entries whose cost alone exceeds the byte budget are
// rejected. Returns whether the entry was admitted.
func (c *Cache) Set(e *tier.Entry) bool {
	cost := e.Cost()
	if c.maxBytes > 0 && cost > c.maxBytes {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Replacing in place would leak the old entry's cost, so drop it first.
	if _, ok := c.lru.Peek(e.Key); ok {
		c.suppress = true
		c.lru.Remove(e.Key)
		c.suppress = false
	}

	c.lru.Add(e.Key, e)
	c.curBytes += cost

	for c.maxBytes > 0 && c.curBytes > c.maxBytes && c.lru.Len() > 0 {
		c.lru.RemoveOldest()
	}
	return true
}

// Remove drops key without counting an eviction. Returns whether it was
// present.
func (c *Cache) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.suppress = true
	ok := c.lru.Remove(key)
	c.suppress = false
	return ok
}

// RemoveBook drops every entry whose key starts with bookPrefix, returning
// the number removed.
func (c *Cache) RemoveBook(bookPrefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	c.suppress = true
	for _, key := range c.lru.Keys() {
		if strings.HasPrefix(key, bookPrefix) {
			if c.lru.Remove(key) {
				removed++
			}
		}
	}
	c.suppress = false
	return removed
}

// Len returns the number of entries currently held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Bytes returns the accounted payload bytes currently held.
func (c *Cache) Bytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.curBytes
}
