// SPDX-License-Identifier: GPL-3.0-or-later

package ipc

import (
	"context"
	"fmt"
	"sync"
)

// ChannelState models the connection lifecycle of §3: linear transitions
// except Error, which may be entered from any state.
type ChannelState int

const (
	StateInitializing ChannelState = iota
	StateConnecting
	StateConnected
	StateDisconnecting
	StateDisconnected
	StateError
)

// String implements [fmt.Stringer].
func (s ChannelState) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateDisconnected:
		return "disconnected"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// canTransition enforces the linear-except-error invariant of §3.
func canTransition(from, to ChannelState) bool {
	if to == StateError {
		return true
	}
	switch from {
	case StateInitializing:
		return to == StateConnecting
	case StateConnecting:
		return to == StateConnected
	case StateConnected:
		return to == StateDisconnecting
	case StateDisconnecting:
		return to == StateDisconnected
	default:
		return false
	}
}

// Direction is the data-flow direction of a channel.
type Direction int

const (
	DirectionRead Direction = iota
	DirectionWrite
	DirectionDuplex
)

// Mode selects blocking semantics for a channel's transport operations.
type Mode int

const (
	ModeBlocking Mode = iota
	ModeNonBlocking
)

// Transport is the thin verb set every pluggable transport implements
// (§4.1): connect, disconnect, write one frame, read one frame. The fabric
// owns everything above this (serialization, compression, encryption,
// correlation, queueing).
type Transport interface {
	// Connect establishes the underlying connection.
	Connect(ctx context.Context) error

	// Disconnect tears down the underlying connection. Idempotent.
	Disconnect() error

	// WriteFrame writes one already-serialized frame.
	WriteFrame(ctx context.Context, frame []byte) error

	// ReadFrame blocks until one frame is available, ctx is done, or the
	// transport is disconnected.
	ReadFrame(ctx context.Context) ([]byte, error)

	// Kind names the transport ("local-socket" for [LocalTransport], "tcp"
	// for [TCPTransport]).
	Kind() string
}

// Handler processes a received [Message]. Handlers run concurrently with
// receive-loop progress (§4.1 dispatch step 2).
type Handler func(ctx context.Context, msg *Message)

// ChannelConfig parameterizes [Fabric.Open].
type ChannelConfig struct {
	// ID names the channel; must be unique within the owning fabric.
	ID string

	// Transport is the underlying verb-set implementation.
	Transport Transport

	// Direction and Mode are recorded for introspection only; the fabric
	// does not consult them, so sends on a read-only channel and receives
	// on a write-only one are not rejected.
	Direction Direction
	Mode      Mode

	// Serializer encodes/decodes the Message payload on the wire. Defaults
	// to [CompactBinarySerializer] when nil.
	Serializer Serializer

	// QueueSize bounds the outbound queue (§4.1 Priority & queueing, §5
	// Backpressure). Zero selects a package default.
	QueueSize int

	// CompressThreshold triggers transparent compression of payloads at or
	// above this many bytes. Zero disables compression.
	CompressThreshold int

	// AEAD, if non-nil, authenticates and encrypts frame payloads.
	AEAD AEAD

	// ReconnectPolicy is stored with the channel's configuration. The
	// fabric does not read it: a channel that enters [StateError] stays
	// there until it is closed and opened again.
	ReconnectPolicy *ReconnectPolicy
}

// Channel is a supervisor-owned endpoint bound to one [Transport]. Handlers
// borrow a channel by its stable ID and resolve it through the fabric's
// table; this breaks the ownership cycle that would otherwise exist between
// channels and the handlers that capture them (§9 "Cyclic references").
type Channel struct {
	cfg ChannelConfig

	mu     sync.Mutex
	state  ChannelState
	routes map[string]Handler

	outbound *priorityQueue

	missedHeartbeats int
}

func newChannel(cfg ChannelConfig) *Channel {
	qsize := cfg.QueueSize
	if qsize <= 0 {
		qsize = 256
	}
	return &Channel{
		cfg:      cfg,
		state:    StateInitializing,
		routes:   make(map[string]Handler),
		outbound: newPriorityQueue(qsize),
	}
}

// ID returns the channel's stable identifier.
func (c *Channel) ID() string { return c.cfg.ID }

// State returns the current connection state.
func (c *Channel) State() ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// setState enforces the linear-except-error transition invariant.
func (c *Channel) setState(to ChannelState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !canTransition(c.state, to) {
		return fmt.Errorf("%w: cannot transition channel %q from %s to %s",
			ErrProtocol, c.cfg.ID, c.state, to)
	}
	c.state = to
	return nil
}

// connected reports whether sends/receives are currently permitted.
func (c *Channel) connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateConnected
}

// RegisterHandler binds a route string to a handler scoped to this channel.
func (c *Channel) RegisterHandler(route string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes[route] = h
}

func (c *Channel) handlerFor(route string) (Handler, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.routes[route]
	return h, ok
}

func (c *Channel) recordHeartbeat(ok bool) (shouldError bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ok {
		c.missedHeartbeats = 0
		return false
	}
	c.missedHeartbeats++
	return c.missedHeartbeats >= 2
}
