// SPDX-License-Identifier: GPL-3.0-or-later

// Package compcache implements the compression cache of §4.5: content-hint
// sniffing, fingerprint-based cache keys, predictive reuse, and bounded
// eviction across a pluggable set of compression [Codec] implementations.
package compcache

import "io"

// Algorithm names one of the supported compression codecs.
type Algorithm string

const (
	AlgorithmIdentity Algorithm = "identity"
	AlgorithmGzip     Algorithm = "gzip"
	AlgorithmBrotli   Algorithm = "brotli"
	AlgorithmZstd     Algorithm = "zstd"
	AlgorithmLZ4      Algorithm = "lz4"
)

// Codec compresses and decompresses byte streams under one algorithm.
// Decompress is always the formal inverse of Compress for the same codec
// (Open Question 1, §9): there is no placeholder branch that merely
// returns its input unchanged for a non-identity algorithm.
type Codec interface {
	// Compress writes the compressed form of src to dst.
	Compress(dst io.Writer, src io.Reader) (int64, error)

	// Decompress writes the decompressed form of src to dst.
	Decompress(dst io.Writer, src io.Reader) (int64, error)

	// Name returns the codec's [Algorithm].
	Name() Algorithm
}

// Registry resolves an [Algorithm] to its [Codec] implementation.
type Registry struct {
	codecs map[Algorithm]Codec
}

// NewRegistry returns a [*Registry] pre-populated with every built-in
// codec.
func NewRegistry() *Registry {
	r := &Registry{codecs: make(map[Algorithm]Codec)}
	r.Register(IdentityCodec{})
	r.Register(GzipCodec{Level: 6})
	r.Register(BrotliCodec{Level: 5})
	r.Register(ZstdCodec{})
	r.Register(LZ4Codec{})
	return r
}

// Register adds or replaces the codec for its own [Codec.Name].
func (r *Registry) Register(c Codec) {
	r.codecs[c.Name()] = c
}

// Get returns the codec registered for name, or false if none is
// registered.
func (r *Registry) Get(name Algorithm) (Codec, bool) {
	c, ok := r.codecs[name]
	return c, ok
}
