// SPDX-License-Identifier: GPL-3.0-or-later

package ipc

import "time"

// ReconnectPolicy describes bounded exponential backoff for channel
// reconnect attempts. It computes per-attempt delays and the attempt limit;
// the [Fabric] does not drive reconnects with it, so a channel that drops
// to [StateError] or [StateDisconnected] is not reconnected automatically.
type ReconnectPolicy struct {
	// InitialDelay is the backoff before the first reconnect attempt.
	InitialDelay time.Duration

	// MaxDelay caps the backoff; delay doubles after each failed attempt
	// until it reaches this ceiling.
	MaxDelay time.Duration

	// MaxAttempts bounds the number of reconnect attempts. Zero means
	// unbounded.
	MaxAttempts int
}

// DefaultReconnectPolicy returns a policy of 200ms initial delay doubling up
// to a 30s ceiling, with unbounded attempts.
func DefaultReconnectPolicy() *ReconnectPolicy {
	return &ReconnectPolicy{
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     30 * time.Second,
	}
}

// delayFor returns the backoff delay before reconnect attempt number attempt
// (1-indexed).
func (p *ReconnectPolicy) delayFor(attempt int) time.Duration {
	if p == nil || attempt <= 0 {
		return 0
	}
	delay := p.InitialDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return delay
}

// exhausted reports whether attempt exceeds MaxAttempts (if bounded).
func (p *ReconnectPolicy) exhausted(attempt int) bool {
	return p != nil && p.MaxAttempts > 0 && attempt > p.MaxAttempts
}
