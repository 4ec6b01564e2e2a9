// SPDX-License-Identifier: GPL-3.0-or-later

package compcache

import (
	"io"

	"github.com/andybalholm/brotli"
)

// BrotliCodec implements [Codec] using andybalholm/brotli, a pure-Go
// brotli implementation.
type BrotliCodec struct {
	// Level is the brotli quality level (0..11). Zero selects a
	// reasonable default.
	Level int
}

var _ Codec = BrotliCodec{}

// Name implements [Codec].
func (BrotliCodec) Name() Algorithm { return AlgorithmBrotli }

// Compress implements [Codec].
func (c BrotliCodec) Compress(dst io.Writer, src io.Reader) (int64, error) {
	level := c.Level
	if level == 0 {
		level = 5
	}
	w := brotli.NewWriterLevel(dst, level)
	n, err := io.Copy(w, src)
	if closeErr := w.Close(); err == nil {
		err = closeErr
	}
	return n, err
}

// Decompress implements [Codec].
func (BrotliCodec) Decompress(dst io.Writer, src io.Reader) (int64, error) {
	r := brotli.NewReader(src)
	return io.Copy(dst, r)
}
