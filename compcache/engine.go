// SPDX-License-Identifier: GPL-3.0-or-later

package compcache

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/bassosimone/browsercore/obs"
)

// ContentHint classifies an input payload for algorithm selection when the
// caller doesn't name an algorithm explicitly (§4.5).
type ContentHint int

const (
	ContentUnknown ContentHint = iota
	ContentText
	ContentBinary
	ContentAlreadyCompressed
)

// textSizeThreshold and binarySizeThreshold separate "small" from "large"
// payloads for the text/binary algorithm-selection rule (§4.5: "text →
// deflate (small) or brotli (large); binary → lz4 (small) or zstd
// (large)").
const (
	textSizeThreshold   = 64 * 1024
	binarySizeThreshold = 256 * 1024
)

// InferHint classifies sample using the §4.5 content-hint rule: known
// magic numbers mark already-compressed content; otherwise a
// control-char-density heuristic distinguishes text from binary.
func InferHint(sample []byte) ContentHint {
	if SniffIncompressible(sample) {
		return ContentAlreadyCompressed
	}
	if ControlCharDensity(sample) >= 0.3 {
		return ContentBinary
	}
	return ContentText
}

// SelectAlgorithm maps a content hint and payload size to the default
// algorithm, per §4.5.
func SelectAlgorithm(hint ContentHint, size int) Algorithm {
	switch hint {
	case ContentAlreadyCompressed:
		return AlgorithmIdentity
	case ContentBinary:
		if size < binarySizeThreshold {
			return AlgorithmLZ4
		}
		return AlgorithmZstd
	default: // ContentText, ContentUnknown
		if size < textSizeThreshold {
			return AlgorithmGzip // stands in for "deflate (small)": gzip is deflate plus framing
		}
		return AlgorithmBrotli
	}
}

// EngineConfig parameterizes a new [Engine].
type EngineConfig struct {
	Registry           *Registry
	MaxCacheBytes      int64
	EvictionPolicy     EvictionPolicy
	PredictivePatterns int
	PredictiveFloor    int
	DefaultLevel       int
	Logger             obs.SLogger
	TimeNow            func() time.Time
}

// NewEngineConfig returns an EngineConfig with package defaults.
func NewEngineConfig() *EngineConfig {
	return &EngineConfig{
		Registry:           NewRegistry(),
		MaxCacheBytes:      64 << 20,
		EvictionPolicy:     EvictionHybrid,
		PredictivePatterns: 64,
		PredictiveFloor:    2,
		Logger:             obs.DefaultSLogger(),
		TimeNow:            time.Now,
	}
}

// Engine implements the §4.5 contract: compress/decompress/stats, with
// content-hint algorithm selection, fingerprint-keyed caching, and
// predictive reuse.
type Engine struct {
	cfg        EngineConfig
	cache      *Cache
	predictive *PredictiveIndex
}

// NewEngine constructs an Engine. Pass nil for package defaults.
func NewEngine(cfg *EngineConfig) *Engine {
	if cfg == nil {
		cfg = NewEngineConfig()
	}
	if cfg.Registry == nil {
		cfg.Registry = NewRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = obs.DefaultSLogger()
	}
	if cfg.TimeNow == nil {
		cfg.TimeNow = time.Now
	}
	return &Engine{
		cfg:        *cfg,
		cache:      NewCache(cfg.MaxCacheBytes, cfg.EvictionPolicy, cfg.TimeNow),
		predictive: NewPredictiveIndex(cfg.PredictivePatterns, cfg.PredictiveFloor),
	}
}

// Compress implements compress(bytes, algorithm?, content_hint?) →
// compressed_bytes. An empty algorithm string requests automatic
// selection from content_hint (or from a freshly inferred hint if
// content_hint is [ContentUnknown]).
func (e *Engine) Compress(ctx context.Context, data []byte, algo Algorithm, hint ContentHint) (*Entry, error) {
	if hint == ContentUnknown {
		hint = InferHint(data)
	}
	if algo == "" {
		algo = SelectAlgorithm(hint, len(data))
	}

	fp := ComputeFingerprint(data)
	level := e.cfg.DefaultLevel

	if entry, ok := e.cache.Get(fp, algo, level); ok {
		return entry, nil
	}

	if key, ok := e.predictive.Propose(sampleAt(data, 0)); ok {
		if entry, ok := e.cache.GetByRawKey(key); ok && VerifyExact(data, entry.originalSnapshot) {
			e.cfg.Logger.Debug("compcache: predictive reuse hit", "algorithm", string(algo))
			return entry, nil
		}
	}

	codec, ok := e.cfg.Registry.Get(algo)
	if !ok {
		return nil, fmt.Errorf("compcache: unknown algorithm %q", algo)
	}

	var out bytes.Buffer
	if _, err := codec.Compress(&out, bytes.NewReader(data)); err != nil {
		return nil, err
	}

	now := e.cfg.TimeNow()
	entry := &Entry{
		Key:              fp,
		Algorithm:        algo,
		Level:            level,
		CompressedBytes:  out.Bytes(),
		OriginalSize:     len(data),
		ContentHint:      hintName(hint),
		CreatedAt:        now,
		LastAccessedAt:   now,
		AccessCount:      1,
		originalSnapshot: append([]byte(nil), data...),
	}
	rawKey := cacheKeyString(fp, algo, level)
	if err := e.cache.Put(entry); err != nil {
		if IsTooLarge(err) {
			return entry, nil // still return the compressed result; it just isn't cached
		}
		return nil, err
	}

	e.predictive.Observe(sampleAt(data, 0), rawKey)
	return entry, nil
}

// Decompress implements decompress(compressed_bytes) → bytes for an entry
// previously produced by Compress.
func (e *Engine) Decompress(ctx context.Context, entry *Entry) ([]byte, error) {
	codec, ok := e.cfg.Registry.Get(entry.Algorithm)
	if !ok {
		return nil, fmt.Errorf("compcache: unknown algorithm %q", entry.Algorithm)
	}
	var out bytes.Buffer
	if _, err := codec.Decompress(&out, bytes.NewReader(entry.CompressedBytes)); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Stats implements stats() → statistics.
func (e *Engine) Stats() Stats {
	return e.cache.Stats()
}

func hintName(h ContentHint) string {
	switch h {
	case ContentText:
		return "text"
	case ContentBinary:
		return "binary"
	case ContentAlreadyCompressed:
		return "already-compressed"
	default:
		return "unknown"
	}
}
