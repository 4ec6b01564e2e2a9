// SPDX-License-Identifier: GPL-3.0-or-later

package compcache

import "bytes"

// magicPrefixes are byte signatures of formats already compressed (or
// otherwise high-entropy), for which spending CPU on recompression is
// very unlikely to shrink the payload further (§4.5 content-hint sniff).
var magicPrefixes = [][]byte{
	{0x1f, 0x8b},             // gzip
	{0x50, 0x4b, 0x03, 0x04}, // zip / jar / docx etc
	{0x28, 0xb5, 0x2f, 0xfd}, // zstd
	{0xff, 0xd8, 0xff},       // jpeg
	{0x89, 0x50, 0x4e, 0x47}, // png
	{0x47, 0x49, 0x46, 0x38}, // gif
	{0x25, 0x50, 0x44, 0x46}, // pdf (already uses internal compression)
	{0x52, 0x49, 0x46, 0x46}, // riff (webp/wav/avi container)
	{0x00, 0x00, 0x00, 0x18, 0x66, 0x74, 0x79, 0x70}, // mp4/mov ftyp box (approx)
}

// SniffIncompressible reports whether the leading bytes of a payload match
// a known already-compressed or binary-media signature, per §4.5's
// "content-hint sniffing (magic numbers + control-char density)".
func SniffIncompressible(sample []byte) bool {
	for _, magic := range magicPrefixes {
		if bytes.HasPrefix(sample, magic) {
			return true
		}
	}
	return false
}

// ControlCharDensity returns the fraction of bytes in sample that are
// non-printable control characters (excluding common whitespace), a cheap
// proxy for "this looks like compressed/binary data, not text" when no
// magic number matched.
func ControlCharDensity(sample []byte) float64 {
	if len(sample) == 0 {
		return 0
	}
	var control int
	for _, b := range sample {
		if b < 0x09 || (b > 0x0d && b < 0x20) || b == 0x7f {
			control++
		}
	}
	return float64(control) / float64(len(sample))
}

// ShouldCompress decides whether a payload is worth compressing at all,
// combining the magic-number check with a control-char density threshold:
// content denser than 0.3 in control characters is assumed already
// high-entropy.
func ShouldCompress(sample []byte) bool {
	if SniffIncompressible(sample) {
		return false
	}
	return ControlCharDensity(sample) < 0.3
}
