// SPDX-License-Identifier: GPL-3.0-or-later

package ipc

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/bassosimone/safeconn"
)

// maxTCPFrameSize bounds a single frame read from a [TCPTransport] peer,
// preventing a malformed or hostile peer from causing an unbounded
// allocation (§7 resource-exhaustion classification).
const maxTCPFrameSize = 32 << 20 // 32 MiB

// TCPTransport is a [Transport] for cross-process/cross-host channels,
// framing each message with the same 4-byte big-endian length prefix the
// wire frame format already uses for its header (see frame.go), so a
// TCPTransport's ReadFrame/WriteFrame pair simply relays opaque
// already-framed bytes without re-parsing them.
type TCPTransport struct {
	// Dialer opens the outbound connection when Addr is set (client mode).
	// When Conn is pre-supplied (server mode, from a listener's Accept),
	// Connect is a no-op.
	Dialer *net.Dialer
	Addr   string

	mu   sync.Mutex
	conn net.Conn
}

var _ Transport = (*TCPTransport)(nil)

// NewTCPTransportClient returns a TCPTransport that dials addr on Connect.
func NewTCPTransportClient(addr string) *TCPTransport {
	return &TCPTransport{Dialer: &net.Dialer{}, Addr: addr}
}

// NewTCPTransportFromConn wraps an already-established connection (e.g. one
// obtained from [net.Listener.Accept]); Connect is then a no-op.
func NewTCPTransportFromConn(conn net.Conn) *TCPTransport {
	return &TCPTransport{conn: conn}
}

// Connect dials Addr if no connection was pre-supplied.
func (t *TCPTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return nil
	}
	if t.Addr == "" {
		return fmt.Errorf("%w: TCPTransport has neither a pre-supplied conn nor an Addr", ErrConfiguration)
	}
	conn, err := t.Dialer.DialContext(ctx, "tcp", t.Addr)
	if err != nil {
		return err
	}
	t.conn = conn
	return nil
}

// Disconnect closes the underlying connection. Idempotent.
func (t *TCPTransport) Disconnect() error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// WriteFrame writes a 4-byte big-endian length prefix followed by frame.
func (t *TCPTransport) WriteFrame(ctx context.Context, frame []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return ErrChannelClosed
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
	}
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(frame)))
	if _, err := conn.Write(length[:]); err != nil {
		return err
	}
	_, err := conn.Write(frame)
	return err
}

// ReadFrame reads one length-prefixed frame.
func (t *TCPTransport) ReadFrame(ctx context.Context) ([]byte, error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return nil, ErrChannelClosed
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
	}
	var length [4]byte
	if _, err := io.ReadFull(conn, length[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(length[:])
	if n > maxTCPFrameSize {
		return nil, fmt.Errorf("%w: frame of %d bytes exceeds %d byte limit", ErrProtocol, n, maxTCPFrameSize)
	}
	frame := make([]byte, n)
	if _, err := io.ReadFull(conn, frame); err != nil {
		return nil, err
	}
	return frame, nil
}

// Kind implements [Transport].
func (t *TCPTransport) Kind() string { return "tcp" }

// remoteAddr is used by tests/logging to report the peer address via the
// shared safeconn helpers the netstack package also uses.
func (t *TCPTransport) remoteAddr() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return safeconn.RemoteAddr(t.conn)
}
