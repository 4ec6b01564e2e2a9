// SPDX-License-Identifier: GPL-3.0-or-later

package ipc

import "errors"

// Error taxonomy (§7). Each sentinel is wrapped
// with call-specific detail via fmt.Errorf("...: %w", ...); callers use
// errors.Is against these to classify without string matching.
var (
	// ErrConfiguration marks an invalid parameter combination caught at
	// channel-open time.
	ErrConfiguration = errors.New("ipc: configuration error")

	// ErrTransient marks a retryable transport-level failure (connect
	// refused, reset, transient deserialization hiccup on a reconnect).
	ErrTransient = errors.New("ipc: transient error")

	// ErrProtocol marks a malformed frame or an invariant violation in the
	// wire format; the offending channel is closed, never retried.
	ErrProtocol = errors.New("ipc: protocol error")

	// ErrQueueFull is a resource-exhaustion error: the bounded outbound
	// queue has no room and the caller must apply backpressure.
	ErrQueueFull = errors.New("ipc: outbound queue full")

	// ErrTimeout marks a send_and_await deadline expiry.
	ErrTimeout = errors.New("ipc: timeout waiting for response")

	// ErrChannelClosed marks an operation attempted on a disconnected or
	// errored channel.
	ErrChannelClosed = errors.New("ipc: channel is not connected")

	// ErrUnknownCorrelation marks a response whose correlation id does not
	// name any pending request; per §3 it is dropped, not surfaced as a
	// caller-visible error. The fabric logs such a drop at debug level and
	// does not return this error itself.
	ErrUnknownCorrelation = errors.New("ipc: response correlates to no pending request")

	// ErrHandlerNotFound marks a route with no registered handler at any
	// scope (channel-local or fabric-global); the message is discarded.
	ErrHandlerNotFound = errors.New("ipc: no handler for route")
)
