// SPDX-License-Identifier: GPL-3.0-or-later

package dnsresolver

import (
	"container/list"
	"sync"
	"time"
)

// cacheKey identifies one (hostname, record type) cache slot.
type cacheKey struct {
	hostname string
	rtype    RecordType
}

// cacheEntry is either a positive entry (records non-nil, err nil) or a
// negative entry (err set, records nil), per §4.4 "negative results ...
// cached with a shorter negative TTL".
type cacheEntry struct {
	key        cacheKey
	records    []Record
	err        error
	expiresAt  time.Time
	accessedAt time.Time
	accessCount int64

	elem *list.Element // this entry's node in the LRU list
}

func (e *cacheEntry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// Cache is the hostname→type→records map of §4.4: LRU-evicted, with
// negative caching and TTL-fraction-triggered prefetch support exposed via
// [Cache.NeedsPrefetch].
type Cache struct {
	mu          sync.Mutex
	entries     map[cacheKey]*cacheEntry
	lru         *list.List // front = most recently used
	maxEntries  int
	negativeTTL time.Duration
	timeNow     func() time.Time
}

// NewCache constructs a Cache. maxEntries <= 0 means unbounded.
func NewCache(maxEntries int, negativeTTL time.Duration, timeNow func() time.Time) *Cache {
	if timeNow == nil {
		timeNow = time.Now
	}
	if negativeTTL <= 0 {
		negativeTTL = 30 * time.Second
	}
	return &Cache{
		entries:     make(map[cacheKey]*cacheEntry),
		lru:         list.New(),
		maxEntries:  maxEntries,
		negativeTTL: negativeTTL,
		timeNow:     timeNow,
	}
}

// Lookup returns the cached records for (hostname, rtype) if present and
// unexpired, bumping LRU order and the access counter. The bool result is
// false on a cache miss (not yet queried or expired); cachedErr is non-nil
// only for an unexpired negative entry.
func (c *Cache) Lookup(hostname string, rtype RecordType) (records []Record, cachedErr error, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey{hostname, rtype}
	entry, found := c.entries[key]
	if !found {
		return nil, nil, false
	}
	now := c.timeNow()
	if entry.expired(now) {
		return nil, nil, false
	}

	entry.accessedAt = now
	entry.accessCount++
	c.lru.MoveToFront(entry.elem)

	if entry.err != nil {
		return nil, entry.err, true
	}
	return entry.records, nil, true
}

// StorePositive inserts or replaces a positive entry, evicting LRU entries
// first if the cache is at capacity.
func (c *Cache) StorePositive(hostname string, rtype RecordType, records []Record, ttl time.Duration) {
	c.store(cacheKey{hostname, rtype}, records, nil, c.timeNow().Add(ttl))
}

// StoreNegative inserts or replaces a negative entry (NXDOMAIN/SERVFAIL)
// with the cache's configured negative TTL.
func (c *Cache) StoreNegative(hostname string, rtype RecordType, cause error) {
	c.store(cacheKey{hostname, rtype}, nil, cause, c.timeNow().Add(c.negativeTTL))
}

func (c *Cache) store(key cacheKey, records []Record, cause error, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.timeNow()
	if existing, ok := c.entries[key]; ok {
		existing.records = records
		existing.err = cause
		existing.expiresAt = expiresAt
		existing.accessedAt = now
		c.lru.MoveToFront(existing.elem)
		return
	}

	entry := &cacheEntry{
		key:        key,
		records:    records,
		err:        cause,
		expiresAt:  expiresAt,
		accessedAt: now,
	}
	entry.elem = c.lru.PushFront(entry)
	c.entries[key] = entry

	c.evictLocked()
}

// evictLocked removes least-recently-used entries until the cache is back
// at or under maxEntries. Caller must hold c.mu.
func (c *Cache) evictLocked() {
	if c.maxEntries <= 0 {
		return
	}
	for len(c.entries) > c.maxEntries {
		back := c.lru.Back()
		if back == nil {
			return
		}
		entry := back.Value.(*cacheEntry)
		c.lru.Remove(back)
		delete(c.entries, entry.key)
	}
}

// Sweep removes every expired entry (positive or negative), independent of
// LRU order; §4.4 "a periodic sweep removes expired entries and expired
// negative entries".
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.timeNow()
	removed := 0
	for key, entry := range c.entries {
		if entry.expired(now) {
			c.lru.Remove(entry.elem)
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// NeedsPrefetch reports whether the cached (unexpired) positive entry for
// (hostname, rtype) has crossed the given elapsed-TTL-fraction threshold.
func (c *Cache) NeedsPrefetch(hostname string, rtype RecordType, threshold float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[cacheKey{hostname, rtype}]
	if !ok || entry.err != nil {
		return false
	}
	now := c.timeNow()
	if entry.expired(now) {
		return false
	}
	for _, r := range entry.records {
		if r.ElapsedFraction(now) >= threshold {
			return true
		}
	}
	return false
}
