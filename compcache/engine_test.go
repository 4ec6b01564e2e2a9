// SPDX-License-Identifier: GPL-3.0-or-later

package compcache

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineCompressDecompressRoundTrip(t *testing.T) {
	e := NewEngine(nil)
	data := []byte(strings.Repeat("hello browsercore ", 1000))

	entry, err := e.Compress(context.Background(), data, "", ContentUnknown)
	require.NoError(t, err)

	decompressed, err := e.Decompress(context.Background(), entry)
	require.NoError(t, err)
	assert.Equal(t, data, decompressed)
}

func TestEngineSelectsIdentityForAlreadyCompressedContent(t *testing.T) {
	e := NewEngine(nil)
	data := append([]byte{0x1f, 0x8b, 0x08, 0x00}, []byte(strings.Repeat("x", 1000))...)

	entry, err := e.Compress(context.Background(), data, "", ContentUnknown)
	require.NoError(t, err)
	assert.Equal(t, AlgorithmIdentity, entry.Algorithm)
}

func TestEngineSelectsBrotliForLargeText(t *testing.T) {
	e := NewEngine(nil)
	data := []byte(strings.Repeat("the quick brown fox ", 10000)) // > textSizeThreshold

	entry, err := e.Compress(context.Background(), data, "", ContentUnknown)
	require.NoError(t, err)
	assert.Equal(t, AlgorithmBrotli, entry.Algorithm)
}

func TestEngineCacheHitAvoidsRecompression(t *testing.T) {
	e := NewEngine(nil)
	data := []byte(strings.Repeat("cache me", 2000))

	first, err := e.Compress(context.Background(), data, AlgorithmGzip, ContentText)
	require.NoError(t, err)

	second, err := e.Compress(context.Background(), data, AlgorithmGzip, ContentText)
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestEngineExplicitAlgorithmOverridesInference(t *testing.T) {
	e := NewEngine(nil)
	data := []byte(strings.Repeat("text that would normally pick gzip", 100))

	entry, err := e.Compress(context.Background(), data, AlgorithmZstd, ContentUnknown)
	require.NoError(t, err)
	assert.Equal(t, AlgorithmZstd, entry.Algorithm)
}

func TestEngineStatsReflectCacheActivity(t *testing.T) {
	e := NewEngine(nil)
	data := []byte(strings.Repeat("stats test data", 500))

	_, err := e.Compress(context.Background(), data, AlgorithmGzip, ContentText)
	require.NoError(t, err)
	_, err = e.Compress(context.Background(), data, AlgorithmGzip, ContentText)
	require.NoError(t, err)

	stats := e.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.GreaterOrEqual(t, stats.Hits, int64(1))
}

func TestSelectAlgorithmMapsHintsPerSize(t *testing.T) {
	assert.Equal(t, AlgorithmIdentity, SelectAlgorithm(ContentAlreadyCompressed, 1000))
	assert.Equal(t, AlgorithmLZ4, SelectAlgorithm(ContentBinary, 100))
	assert.Equal(t, AlgorithmZstd, SelectAlgorithm(ContentBinary, 1<<20))
	assert.Equal(t, AlgorithmGzip, SelectAlgorithm(ContentText, 100))
	assert.Equal(t, AlgorithmBrotli, SelectAlgorithm(ContentText, 1<<20))
}
