// SPDX-License-Identifier: GPL-3.0-or-later

package ccalgo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewDefaultsToCubic(t *testing.T) {
	alg := New("unknown", 1000)
	assert.Equal(t, "cubic", alg.Name())
}

func TestNewSelectsByName(t *testing.T) {
	assert.Equal(t, "bbr", New("bbr", 1000).Name())
	assert.Equal(t, "low-latency", New("low-latency", 1000).Name())
	assert.Equal(t, "cubic", New("cubic", 1000).Name())
}

func TestCubicGrowsInSlowStartThenBacksOffOnLoss(t *testing.T) {
	c := NewCubic(1000)
	now := time.Now()

	c.OnAck(1000, 20*time.Millisecond, now)
	grown := c.CongestionWindow()
	assert.Greater(t, grown, int64(1000))

	c.OnLoss(500, now)
	assert.Less(t, c.CongestionWindow(), grown)
}

func TestBBRTracksBandwidthDelayProduct(t *testing.T) {
	b := NewBBR(1000)
	now := time.Now()
	for i := 0; i < 10; i++ {
		b.OnAck(10000, 10*time.Millisecond, now)
		now = now.Add(10 * time.Millisecond)
	}
	assert.Greater(t, b.CongestionWindow(), int64(0))
}

func TestBBRLossDampensLightly(t *testing.T) {
	b := NewBBR(10000)
	before := b.CongestionWindow()
	b.OnLoss(100, time.Now())
	after := b.CongestionWindow()
	assert.Less(t, after, before)
	assert.Greater(t, after, before/2, "BBR should not react as harshly to loss as a loss-based algorithm")
}

func TestLowLatencyBacksOffOnRTTInflation(t *testing.T) {
	l := NewLowLatency(1000)
	now := time.Now()
	l.OnAck(1000, 10*time.Millisecond, now)
	grown := l.CongestionWindow()

	l.OnAck(1000, 50*time.Millisecond, now)
	assert.Less(t, l.CongestionWindow(), grown)
}
