// SPDX-License-Identifier: GPL-3.0-or-later

package supervisor

import (
	"math/rand"
	"time"
)

// BackoffPolicy is an exponential backoff schedule with jitter, used to
// space out process restarts so a crash-looping child does not spin the
// supervisor.
//
// No pack example imports a dedicated backoff library, so this is a small
// hand-rolled schedule rather than a third-party dependency.
type BackoffPolicy struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoffPolicy is the package default: 200ms initial, doubling up
// to a 30s ceiling.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{Initial: 200 * time.Millisecond, Max: 30 * time.Second, Multiplier: 2}
}

// Delay returns the backoff delay for the attempt'th restart (0-indexed),
// with up to ±10% jitter applied to avoid thundering-herd restarts across
// multiple crash-looping children.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if p.Initial <= 0 {
		p = DefaultBackoffPolicy()
	}
	d := float64(p.Initial)
	for i := 0; i < attempt; i++ {
		d *= p.Multiplier
		if d > float64(p.Max) {
			d = float64(p.Max)
			break
		}
	}
	jitter := 1 + (rand.Float64()*0.2 - 0.1)
	return time.Duration(d * jitter)
}
