// SPDX-License-Identifier: GPL-3.0-or-later

package compcache

import (
	"io"

	"github.com/pierrec/lz4/v4"
)

// LZ4Codec implements [Codec] using pierrec/lz4/v4, chosen for its very
// high decompression speed at a modest compression ratio, useful for
// latency-sensitive cache entries such as API responses (§4.5).
type LZ4Codec struct{}

var _ Codec = LZ4Codec{}

// Name implements [Codec].
func (LZ4Codec) Name() Algorithm { return AlgorithmLZ4 }

// Compress implements [Codec].
func (LZ4Codec) Compress(dst io.Writer, src io.Reader) (int64, error) {
	w := lz4.NewWriter(dst)
	n, err := io.Copy(w, src)
	if closeErr := w.Close(); err == nil {
		err = closeErr
	}
	return n, err
}

// Decompress implements [Codec].
func (LZ4Codec) Decompress(dst io.Writer, src io.Reader) (int64, error) {
	r := lz4.NewReader(src)
	return io.Copy(dst, r)
}
