// SPDX-License-Identifier: GPL-3.0-or-later

package compcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkEntry(key string, size int, createdAt time.Time) *Entry {
	return &Entry{
		Key:             Fingerprint(key),
		Algorithm:       AlgorithmGzip,
		CompressedBytes: make([]byte, size),
		OriginalSize:    size * 2,
		CreatedAt:       createdAt,
		LastAccessedAt:  createdAt,
		AccessCount:     1,
	}
}

func TestCacheGetImmediatelyAfterPutReturnsEntry(t *testing.T) {
	now := time.Now()
	c := NewCache(1<<20, EvictionLRU, func() time.Time { return now })

	entry := mkEntry("k1", 100, now)
	require.NoError(t, c.Put(entry))

	got, ok := c.Get(entry.Key, entry.Algorithm, entry.Level)
	require.True(t, ok)
	assert.Equal(t, entry, got)
}

func TestCacheFullInsertionEvictsToFreeSpace(t *testing.T) {
	now := time.Now()
	c := NewCache(1000, EvictionLRU, func() time.Time { return now })

	for i := 0; i < 6; i++ {
		require.NoError(t, c.Put(mkEntry(string(rune('a'+i)), 150, now)))
	}
	require.LessOrEqual(t, c.UsedBytes(), int64(1000))

	// Trigger one more insertion that forces eviction.
	require.NoError(t, c.Put(mkEntry("new", 150, now)))
	assert.LessOrEqual(t, c.UsedBytes(), int64(1000))
}

func TestCacheEntryTooLargeForCapacity(t *testing.T) {
	c := NewCache(100, EvictionLRU, time.Now)
	err := c.Put(mkEntry("huge", 1000, time.Now()))
	require.Error(t, err)
	assert.True(t, IsTooLarge(err))
}

func TestCacheLRUEvictsLeastRecentlyAccessed(t *testing.T) {
	now := time.Now()
	current := now
	c := NewCache(250, EvictionLRU, func() time.Time { return current })

	require.NoError(t, c.Put(mkEntry("old", 100, now)))
	require.NoError(t, c.Put(mkEntry("new", 100, now.Add(time.Second))))

	// touch "old" later than "new" so "new" becomes the least-recently-accessed
	current = now.Add(3 * time.Second)
	_, _ = c.Get("old", AlgorithmGzip, 0)

	require.NoError(t, c.Put(mkEntry("fresh", 100, now.Add(2*time.Second))))

	_, stillThere := c.Get("old", AlgorithmGzip, 0)
	assert.True(t, stillThere)
}

func TestCacheLFUEvictsLeastFrequentlyAccessed(t *testing.T) {
	now := time.Now()
	c := NewCache(250, EvictionLFU, func() time.Time { return now })

	rare := mkEntry("rare", 100, now)
	frequent := mkEntry("frequent", 100, now)
	require.NoError(t, c.Put(rare))
	require.NoError(t, c.Put(frequent))

	for i := 0; i < 5; i++ {
		_, _ = c.Get("frequent", AlgorithmGzip, 0)
	}

	require.NoError(t, c.Put(mkEntry("third", 100, now)))

	_, frequentStillThere := c.Get("frequent", AlgorithmGzip, 0)
	assert.True(t, frequentStillThere)
}

func TestCacheTTLEvictsExpiredFirst(t *testing.T) {
	now := time.Now()
	c := NewCache(250, EvictionTTL, func() time.Time { return now })

	expired := mkEntry("expired", 100, now.Add(-time.Hour))
	expired.ExpiresAt = now.Add(-time.Minute)
	fresh := mkEntry("fresh", 100, now)

	require.NoError(t, c.Put(expired))
	require.NoError(t, c.Put(fresh))
	require.NoError(t, c.Put(mkEntry("third", 100, now)))

	_, freshStillThere := c.Get("fresh", AlgorithmGzip, 0)
	assert.True(t, freshStillThere)
}

func TestCacheStatsTracksHitsAndMisses(t *testing.T) {
	now := time.Now()
	c := NewCache(1<<20, EvictionLRU, func() time.Time { return now })

	entry := mkEntry("k1", 10, now)
	require.NoError(t, c.Put(entry))

	_, _ = c.Get(entry.Key, entry.Algorithm, entry.Level)
	_, _ = c.Get("missing", AlgorithmGzip, 0)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}
