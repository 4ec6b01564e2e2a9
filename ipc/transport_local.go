// SPDX-License-Identifier: GPL-3.0-or-later

package ipc

import (
	"context"
	"sync"
)

// LocalTransport is an in-process [Transport] backed by a pair of buffered
// channels, grounded on the inbox/outbox/done channel trio used by
// WSConnection in the WebSocket-transport reference implementation this
// package's frame/heartbeat model was patterned on. It is the transport a
// single-host supervisor uses to connect two goroutine-resident endpoints
// (e.g. the main process to an in-process utility worker) without a real
// socket, and the transport the package's own tests dial against.
//
// Use [NewLocalTransportPair] to get two endpoints already wired to each
// other.
type LocalTransport struct {
	recv chan []byte
	send chan []byte
	done chan struct{}

	// closeOnce is shared by both endpoints of a pair, like done.
	closeOnce *sync.Once
}

var _ Transport = (*LocalTransport)(nil)

// NewLocalTransportPair returns two LocalTransports, a and b, where frames
// written to a are read from b and vice versa.
func NewLocalTransportPair(queueSize int) (a, b *LocalTransport) {
	if queueSize <= 0 {
		queueSize = 64
	}
	ab := make(chan []byte, queueSize)
	ba := make(chan []byte, queueSize)
	done := make(chan struct{})
	once := &sync.Once{}
	a = &LocalTransport{recv: ba, send: ab, done: done, closeOnce: once}
	b = &LocalTransport{recv: ab, send: ba, done: done, closeOnce: once}
	return a, b
}

// Connect is a no-op: the channel pair is already wired at construction.
func (t *LocalTransport) Connect(ctx context.Context) error { return nil }

// Disconnect closes the shared done channel, unblocking any pending
// ReadFrame/WriteFrame on both endpoints. Idempotent across the pair:
// disconnecting either endpoint, any number of times, closes done once.
func (t *LocalTransport) Disconnect() error {
	t.closeOnce.Do(func() { close(t.done) })
	return nil
}

// WriteFrame enqueues frame on the send channel.
func (t *LocalTransport) WriteFrame(ctx context.Context, frame []byte) error {
	select {
	case t.send <- frame:
		return nil
	case <-t.done:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReadFrame blocks until a frame is available on the receive channel.
func (t *LocalTransport) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-t.recv:
		return frame, nil
	case <-t.done:
		return nil, ErrChannelClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Kind implements [Transport].
func (t *LocalTransport) Kind() string { return "local-socket" }
