// SPDX-License-Identifier: GPL-3.0-or-later

package compcache

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

// ZstdCodec implements [Codec] using klauspost/compress/zstd.
type ZstdCodec struct {
	// Level selects the encoder's speed/ratio tradeoff. Zero selects
	// zstd.SpeedDefault.
	Level zstd.EncoderLevel
}

var _ Codec = ZstdCodec{}

// Name implements [Codec].
func (ZstdCodec) Name() Algorithm { return AlgorithmZstd }

// Compress implements [Codec].
func (c ZstdCodec) Compress(dst io.Writer, src io.Reader) (int64, error) {
	level := c.Level
	if level == 0 {
		level = zstd.SpeedDefault
	}
	w, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(level))
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
func (ZstdCodec) Decompress(dst io.Writer, src io.Reader) (int64, error) {
	r, err := zstd.NewReader(src)
	if err != nil {
		return 0, err
	}
	defer r.Close()
	n, err := io.Copy(dst, r)
	return n, err
}
