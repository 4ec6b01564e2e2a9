// SPDX-License-Identifier: GPL-3.0-or-later

package compcache

import (
	"sort"
	"strconv"
	"sync"
	"time"
)

// EvictionPolicy selects which cached entries are reclaimed first when the
// cache exceeds its byte budget (§4.5).
type EvictionPolicy int

const (
	EvictionLRU EvictionPolicy = iota
	EvictionLFU
	EvictionTTL
	EvictionHybrid
)

// Entry is one compression cache entry (§4.5's "Cache Entry (compression)").
type Entry struct {
	Key             Fingerprint
	Algorithm       Algorithm
	Level           int
	CompressedBytes []byte
	OriginalSize    int
	ContentHint     string
	CreatedAt       time.Time
	LastAccessedAt  time.Time
	AccessCount     int64
	ExpiresAt       time.Time // zero means no TTL

	// originalSnapshot retains the uncompressed input so predictive reuse
	// can verify exact content equality before returning a match (§4.5).
	originalSnapshot []byte
}

// CompressedSize returns the stored byte count, used for capacity
// accounting.
func (e *Entry) CompressedSize() int { return len(e.CompressedBytes) }

// Ratio returns the compression ratio (compressed/original), or 1 if the
// original size is unknown.
func (e *Entry) Ratio() float64 {
	if e.OriginalSize == 0 {
		return 1
	}
	return float64(e.CompressedSize()) / float64(e.OriginalSize)
}

func (e *Entry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Cache is the bounded, evicting store of compressed entries keyed by
// (fingerprint, algorithm, level).
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*Entry
	maxBytes   int64
	usedBytes  int64
	policy     EvictionPolicy
	timeNow    func() time.Time

	evictions int64
	hits      int64
	misses    int64
}

// NewCache returns a Cache enforcing maxBytes total compressed-entry size
// under the given eviction policy.
func NewCache(maxBytes int64, policy EvictionPolicy, timeNow func() time.Time) *Cache {
	if timeNow == nil {
		timeNow = time.Now
	}
	return &Cache{
		entries:  make(map[string]*Entry),
		maxBytes: maxBytes,
		policy:   policy,
		timeNow:  timeNow,
	}
}

func cacheKeyString(fp Fingerprint, algo Algorithm, level int) string {
	return string(fp) + "|" + string(algo) + "|" + strconv.Itoa(level)
}

// Get returns the cached entry for (fp, algo, level) if present and
// unexpired, bumping its recency/frequency bookkeeping.
func (c *Cache) Get(fp Fingerprint, algo Algorithm, level int) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKeyString(fp, algo, level)
	entry, ok := c.entries[key]
	if !ok || entry.expired(c.timeNow()) {
		c.misses++
		return nil, false
	}
	entry.LastAccessedAt = c.timeNow()
	entry.AccessCount++
	c.hits++
	return entry, true
}

// GetByRawKey looks up an entry by the cache's own internal key string (as
// produced by cacheKeyString), used by the predictive-reuse path which
// stores that same string as its proposal key.
func (c *Cache) GetByRawKey(key string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || entry.expired(c.timeNow()) {
		return nil, false
	}
	entry.LastAccessedAt = c.timeNow()
	entry.AccessCount++
	return entry, true
}

// tooLargeError is returned by [Cache.Put] when a single entry exceeds the
// cache's entire byte budget and can never fit, even after evicting
// everything else; test for it with [IsTooLarge].
type tooLargeError struct{ size, max int64 }

func (e *tooLargeError) Error() string {
	return "compcache: entry too large for cache capacity"
}

// Put inserts or replaces an entry, evicting first if necessary to make
// room. Returns a "too large" error (detect it with [IsTooLarge]) if the
// entry alone exceeds maxBytes.
func (c *Cache) Put(entry *Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := int64(entry.CompressedSize())
	if c.maxBytes > 0 && size > c.maxBytes {
		return &tooLargeError{size: size, max: c.maxBytes}
	}

	key := cacheKeyString(entry.Key, entry.Algorithm, entry.Level)
	if existing, ok := c.entries[key]; ok {
		c.usedBytes -= int64(existing.CompressedSize())
	}

	for c.maxBytes > 0 && c.usedBytes+size > c.maxBytes && len(c.entries) > 0 {
		c.evictLocked()
	}

	c.entries[key] = entry
	c.usedBytes += size
	return nil
}

// IsTooLarge reports whether err was returned because a single entry could
// never fit the configured capacity.
func IsTooLarge(err error) bool {
	_, ok := err.(*tooLargeError)
	return ok
}

// evictLocked removes entries according to c.policy until at least 10% of
// capacity has been freed or the cache is empty (§4.5 "targets freeing at
// least 10% of capacity per invocation"). Caller must hold c.mu.
func (c *Cache) evictLocked() {
	target := c.maxBytes / 10
	if target <= 0 {
		target = 1
	}
	freed := int64(0)
	now := c.timeNow()

	victims := c.rankVictimsLocked(now)
	for _, key := range victims {
		if freed >= target {
			return
		}
		entry := c.entries[key]
		delete(c.entries, key)
		c.usedBytes -= int64(entry.CompressedSize())
		freed += int64(entry.CompressedSize())
		c.evictions++
	}
}

// rankVictimsLocked returns entry keys ordered from first-to-evict to
// last, per the active [EvictionPolicy]. Caller must hold c.mu.
func (c *Cache) rankVictimsLocked(now time.Time) []string {
	type scored struct {
		key   string
		entry *Entry
	}
	all := make([]scored, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, scored{k, e})
	}

	switch c.policy {
	case EvictionLRU:
		sort.Slice(all, func(i, j int) bool {
			return all[i].entry.LastAccessedAt.Before(all[j].entry.LastAccessedAt)
		})
	case EvictionLFU:
		sort.Slice(all, func(i, j int) bool {
			return all[i].entry.AccessCount < all[j].entry.AccessCount
		})
	case EvictionTTL:
		sort.Slice(all, func(i, j int) bool {
			ei, ej := all[i].entry, all[j].entry
			iExpired, jExpired := ei.expired(now), ej.expired(now)
			if iExpired != jExpired {
				return iExpired
			}
			return ei.CreatedAt.Before(ej.CreatedAt)
		})
	case EvictionHybrid:
		sort.Slice(all, func(i, j int) bool {
			ei, ej := all[i].entry, all[j].entry
			iExpired, jExpired := ei.expired(now), ej.expired(now)
			if iExpired != jExpired {
				return iExpired
			}
			return hybridScore(ei, now) < hybridScore(ej, now)
		})
	}

	keys := make([]string, len(all))
	for i, s := range all {
		keys[i] = s.key
	}
	return keys
}

// hybridScore implements §4.5's Hybrid policy scoring function:
// access_frequency / hours_since_last_access, ascending (lower evicts
// first).
func hybridScore(e *Entry, now time.Time) float64 {
	hours := now.Sub(e.LastAccessedAt).Hours()
	if hours <= 0 {
		hours = 1.0 / 3600 // clamp to one second, avoid division by zero
	}
	return float64(e.AccessCount) / hours
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// UsedBytes returns the current total compressed-entry size.
func (c *Cache) UsedBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usedBytes
}

// Stats is the §4.5 stats() contract.
type Stats struct {
	Entries   int
	UsedBytes int64
	MaxBytes  int64
	Hits      int64
	Misses    int64
	Evictions int64
}

// Stats returns a snapshot of cache statistics.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:   len(c.entries),
		UsedBytes: c.usedBytes,
		MaxBytes:  c.maxBytes,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}
