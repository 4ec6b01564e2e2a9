// SPDX-License-Identifier: GPL-3.0-or-later

package ccalgo

import (
	"math"
	"time"
)

// Cubic is a simplified CUBIC window-growth estimator: window grows along
// a cubic function of time since the last loss event, targeting the
// pre-loss window (Wmax) as an inflection point.
type Cubic struct {
	window    float64
	wmax      float64
	lastLoss  time.Time
	haveLoss  bool
	constantC float64
}

// NewCubic returns a [*Cubic] seeded with the given initial window.
func NewCubic(initialWindowBytes int64) *Cubic {
	return &Cubic{window: float64(initialWindowBytes), constantC: 0.4}
}

// Name implements [Algorithm].
func (c *Cubic) Name() string { return "cubic" }

// CongestionWindow implements [Algorithm].
func (c *Cubic) CongestionWindow() int64 { return int64(c.window) }

// OnAck implements [Algorithm].
func (c *Cubic) OnAck(ackedBytes int64, rtt time.Duration, now time.Time) {
	if !c.haveLoss {
		// Slow start: grow linearly with acked bytes.
		c.window += float64(ackedBytes)
		return
	}
	t := now.Sub(c.lastLoss).Seconds()
	k := math.Cbrt(c.wmax * (1 - 0.7) / c.constantC)
	c.window = c.constantC*math.Pow(t-k, 3) + c.wmax
	if c.window < 1 {
		c.window = 1
	}
}

// OnLoss implements [Algorithm].
func (c *Cubic) OnLoss(lostBytes int64, now time.Time) {
	c.wmax = c.window
	c.window *= 0.7
	c.lastLoss = now
	c.haveLoss = true
}
