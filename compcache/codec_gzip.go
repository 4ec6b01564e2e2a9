// SPDX-License-Identifier: GPL-3.0-or-later

package compcache

import (
	"io"

	"github.com/klauspost/compress/gzip"
)

// GzipCodec implements [Codec] using klauspost/compress's drop-in,
// faster gzip implementation.
type GzipCodec struct {
	// Level is the compression level, compress/gzip-compatible
	// (gzip.BestSpeed..gzip.BestCompression). Zero selects
	// gzip.DefaultCompression.
	Level int
}

var _ Codec = GzipCodec{}

// Name implements [Codec].
func (GzipCodec) Name() Algorithm { return AlgorithmGzip }

// Compress implements [Codec].
func (c GzipCodec) Compress(dst io.Writer, src io.Reader) (int64, error) {
	level := c.Level
	if level == 0 {
		level = gzip.DefaultCompression
	}
	w, err := gzip.NewWriterLevel(dst, level)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(w, src)
	if closeErr := w.Close(); err == nil {
		err = closeErr
	}
	return n, err
}

// Decompress implements [Codec].
func (GzipCodec) Decompress(dst io.Writer, src io.Reader) (int64, error) {
	r, err := gzip.NewReader(src)
	if err != nil {
		return 0, err
	}
	defer r.Close()
	return io.Copy(dst, r)
}
