// SPDX-License-Identifier: GPL-3.0-or-later

package netstack

import (
	"context"
	"net/netip"
	"sync"
	"time"
)

// PathState is one candidate network path's live estimates, refreshed by
// [PathSet.Observe]. It mirrors the endpoint-scoped bookkeeping
// [ConnectFunc] already does per single endpoint, generalized to several
// concurrently tracked endpoints.
type PathState struct {
	Addr        netip.AddrPort
	Conn        *HTTP3Conn
	SmoothedRTT time.Duration
	LossRate    float64
	Active      bool
	LastUpdate  time.Time
}

// MultipathMode selects how [PathSet] uses more than one tracked path.
type MultipathMode int

const (
	// MultipathDisabled uses only the primary path.
	MultipathDisabled MultipathMode = iota

	// MultipathHandover keeps one path active and fails over to the next
	// best-scoring path when the active one degrades past threshold.
	MultipathHandover

	// MultipathAggregation schedules requests across every healthy path
	// to use their combined bandwidth.
	MultipathAggregation

	// MultipathDynamic chooses handover or aggregation per request based
	// on the current path spread (large RTT/loss divergence favors
	// handover, small divergence favors aggregation).
	MultipathDynamic
)

// PathSet tracks every candidate path for one logical HTTP/3 session and
// picks which connection a given request should use, per §4.3's multipath
// requirement. It is deliberately connection-pool-shaped rather than a
// [Func], since it holds long-lived mutable state across many calls.
type PathSet struct {
	mu    sync.Mutex
	mode  MultipathMode
	paths []*PathState

	// FailoverThreshold is the loss-rate at which the active path in
	// MultipathHandover mode is abandoned in favor of the next best.
	FailoverThreshold float64
}

// NewPathSet returns an empty [*PathSet] in the given mode.
func NewPathSet(mode MultipathMode) *PathSet {
	return &PathSet{mode: mode, FailoverThreshold: 0.05}
}

// AddPath registers a newly connected path.
func (ps *PathSet) AddPath(addr netip.AddrPort, conn *HTTP3Conn) *PathState {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	state := &PathState{Addr: addr, Conn: conn, Active: len(ps.paths) == 0}
	ps.paths = append(ps.paths, state)
	return state
}

// Observe records a fresh RTT/loss sample for addr, used by both handover
// and aggregation scheduling decisions.
func (ps *PathSet) Observe(addr netip.AddrPort, rtt time.Duration, lossRate float64, now time.Time) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	for _, p := range ps.paths {
		if p.Addr == addr {
			if p.SmoothedRTT == 0 {
				p.SmoothedRTT = rtt
			} else {
				// EWMA with alpha=1/8, the same smoothing constant TCP/QUIC
				// RTT estimators commonly use.
				p.SmoothedRTT = p.SmoothedRTT + (rtt-p.SmoothedRTT)/8
			}
			p.LossRate = lossRate
			p.LastUpdate = now
			return
		}
	}
}

// ActivePaths returns the paths [PathSet.Select] is currently willing to
// schedule requests on, honoring Mode.
func (ps *PathSet) ActivePaths() []*PathState {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	switch ps.effectiveMode() {
	case MultipathAggregation:
		out := make([]*PathState, 0, len(ps.paths))
		for _, p := range ps.paths {
			if p.Conn != nil {
				out = append(out, p)
			}
		}
		return out
	default:
		return []*PathState{ps.activeLocked()}
	}
}

// Select picks the single path the next request should use. In
// aggregation mode it returns the healthy path whose LastUpdate (set by
// [PathSet.Observe]) is oldest; Select itself does not touch LastUpdate,
// so calls with no Observe in between return the same path. In handover
// mode it returns the active path, first migrating to the best-scoring
// path if the active path's loss rate exceeds FailoverThreshold. In
// disabled mode it always returns the active path, the first one added.
func (ps *PathSet) Select(ctx context.Context) *PathState {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	switch ps.effectiveMode() {
	case MultipathAggregation:
		return ps.leastRecentlyUsedLocked()
	default:
		if ps.mode != MultipathDisabled {
			ps.maybeFailoverLocked()
		}
		return ps.activeLocked()
	}
}

func (ps *PathSet) effectiveMode() MultipathMode {
	if ps.mode != MultipathDynamic {
		return ps.mode
	}
	if ps.spreadLocked() > 0.2 {
		return MultipathHandover
	}
	return MultipathAggregation
}

// spreadLocked estimates how divergent the tracked paths are, normalized
// to [0,1], by comparing the best and worst smoothed RTTs. Caller must
// hold ps.mu.
func (ps *PathSet) spreadLocked() float64 {
	if len(ps.paths) < 2 {
		return 0
	}
	var minRTT, maxRTT time.Duration
	for i, p := range ps.paths {
		if i == 0 || p.SmoothedRTT < minRTT {
			minRTT = p.SmoothedRTT
		}
		if p.SmoothedRTT > maxRTT {
			maxRTT = p.SmoothedRTT
		}
	}
	if maxRTT == 0 {
		return 0
	}
	return float64(maxRTT-minRTT) / float64(maxRTT)
}

func (ps *PathSet) activeLocked() *PathState {
	for _, p := range ps.paths {
		if p.Active {
			return p
		}
	}
	return ps.bestLocked()
}

func (ps *PathSet) bestLocked() *PathState {
	var best *PathState
	for _, p := range ps.paths {
		if p.Conn == nil {
			continue
		}
		if best == nil || pathScore(p) > pathScore(best) {
			best = p
		}
	}
	return best
}

func pathScore(p *PathState) float64 {
	if p.SmoothedRTT <= 0 {
		return 1
	}
	// Higher is better: penalize both RTT and loss.
	return 1.0 / (1.0 + float64(p.SmoothedRTT.Milliseconds())/100.0 + p.LossRate*10)
}

// maybeFailoverLocked demotes the active path and promotes the
// best-scoring alternative once the active path's loss exceeds
// FailoverThreshold. Caller must hold ps.mu.
func (ps *PathSet) maybeFailoverLocked() {
	active := ps.activeLocked()
	if active == nil || active.LossRate <= ps.FailoverThreshold {
		return
	}
	best := ps.bestLocked()
	if best == nil || best == active {
		return
	}
	active.Active = false
	best.Active = true
}

func (ps *PathSet) leastRecentlyUsedLocked() *PathState {
	var oldest *PathState
	for _, p := range ps.paths {
		if p.Conn == nil {
			continue
		}
		if oldest == nil || p.LastUpdate.Before(oldest.LastUpdate) {
			oldest = p
		}
	}
	return oldest
}

// Close tears down every tracked path's connection.
func (ps *PathSet) Close() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	var firstErr error
	for _, p := range ps.paths {
		if p.Conn == nil {
			continue
		}
		if err := p.Conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
