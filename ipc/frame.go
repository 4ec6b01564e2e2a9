// SPDX-License-Identifier: GPL-3.0-or-later

package ipc

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"fmt"
	"io"
)

// Wire frame format (§6): 4-byte big-endian length prefix covering
// everything that follows, a 1-byte version (currently always 1), a 1-byte
// flags field, then the payload.
const (
	frameVersion = 1

	flagCompressed = 1 << 0
	flagEncrypted  = 1 << 1

	frameHeaderSize = 4 + 1 + 1
)

// AEAD authenticates and encrypts frame payloads. Implementations are
// expected to wrap something like [crypto/cipher.AEAD] with a fixed nonce
// derivation scheme; the interface here only exposes what the frame codec
// needs.
type AEAD interface {
	Seal(plaintext []byte) (ciphertext []byte, err error)
	Open(ciphertext []byte) (plaintext []byte, err error)
}

// compressThresholdDefault triggers transparent frame compression for
// payloads at or above this size when a channel does not override it.
const compressThresholdDefault = 1 << 14 // 16 KiB

// encodeFrame serializes payload into a wire frame, applying compression
// (when payload is at least threshold bytes and threshold > 0) and
// authenticated encryption (when aead is non-nil).
func encodeFrame(payload []byte, threshold int, aead AEAD) ([]byte, error) {
	var flags byte
	body := payload

	if threshold > 0 && len(body) >= threshold {
		compressed, err := deflateCompress(body)
		if err != nil {
			return nil, fmt.Errorf("%w: frame compression: %v", ErrProtocol, err)
		}
		body = compressed
		flags |= flagCompressed
	}

	if aead != nil {
		sealed, err := aead.Seal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: frame encryption: %v", ErrProtocol, err)
		}
		body = sealed
		flags |= flagEncrypted
	}

	length := uint32(frameHeaderSize - 4 + len(body))
	frame := make([]byte, 0, 4+int(length))
	frame = binary.BigEndian.AppendUint32(frame, length)
	frame = append(frame, frameVersion, flags)
	frame = append(frame, body...)
	return frame, nil
}

// decodeFrame parses a wire frame previously produced by encodeFrame,
// reversing encryption then compression.
func decodeFrame(frame []byte, aead AEAD) ([]byte, error) {
	if len(frame) < frameHeaderSize {
		return nil, fmt.Errorf("%w: frame shorter than header", ErrProtocol)
	}
	version := frame[4]
	if version != frameVersion {
		return nil, fmt.Errorf("%w: unsupported frame version %d", ErrProtocol, version)
	}
	flags := frame[5]
	body := frame[frameHeaderSize:]

	if flags&flagEncrypted != 0 {
		if aead == nil {
			return nil, fmt.Errorf("%w: encrypted frame but no AEAD configured", ErrProtocol)
		}
		opened, err := aead.Open(body)
		if err != nil {
			return nil, fmt.Errorf("%w: frame decryption: %v", ErrProtocol, err)
		}
		body = opened
	}

	if flags&flagCompressed != 0 {
		decompressed, err := deflateDecompress(body)
		if err != nil {
			return nil, fmt.Errorf("%w: frame decompression: %v", ErrProtocol, err)
		}
		body = decompressed
	}

	return body, nil
}

func deflateCompress(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(b); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func deflateDecompress(b []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(b))
	defer r.Close()
	return io.ReadAll(r)
}
