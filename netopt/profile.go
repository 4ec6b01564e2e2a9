// SPDX-License-Identifier: GPL-3.0-or-later

// Package netopt selects HTTP/3 transport parameters from observed network
// conditions (§4.2): a small set of immutable
// [Profile] snapshots, scored against bandwidth/RTT/loss observations, plus
// dynamic tuning of individual knobs once a profile is selected.
//
// This package intentionally has no third-party dependency: the scoring
// arithmetic operates over small in-memory structs, and nothing in the
// example pack offers a library for weighted-term network profile scoring
// without distorting the model into something heavier than the problem
// calls for (see DESIGN.md).
package netopt

import "time"

// MultipathMode selects how a connection uses more than one network path.
type MultipathMode int

const (
	MultipathDisabled MultipathMode = iota
	MultipathHandover
	MultipathAggregation
	MultipathDynamic
)

func (m MultipathMode) String() string {
	switch m {
	case MultipathDisabled:
		return "disabled"
	case MultipathHandover:
		return "handover"
	case MultipathAggregation:
		return "aggregation"
	case MultipathDynamic:
		return "dynamic"
	default:
		return "unknown"
	}
}

// CongestionAlgorithm names a pluggable congestion-control algorithm; the
// concrete implementations live in netstack/ccalgo.
type CongestionAlgorithm int

const (
	CongestionCUBIC CongestionAlgorithm = iota
	CongestionBBR
	CongestionLowLatency
)

func (c CongestionAlgorithm) String() string {
	switch c {
	case CongestionCUBIC:
		return "cubic"
	case CongestionBBR:
		return "bbr"
	case CongestionLowLatency:
		return "low-latency"
	default:
		return "unknown"
	}
}

// NetworkType classifies the observed link, used by dynamic tuning rules to
// pin congestion control and multipath mode.
type NetworkType int

const (
	NetworkUnknown NetworkType = iota
	NetworkCellular
	NetworkWiFi
	NetworkEthernet
)

// Profile is an immutable bundle of transport knobs (§3 Network Profile).
// The optimizer never mutates a Profile in place; [Optimizer.OptimizeForObserved]
// returns a derived copy with tuned knobs.
type Profile struct {
	Name string

	// Target conditions this profile is scored against.
	TargetBandwidthMbps float64
	TargetRTTMillis      float64
	TargetLossPct        float64

	ConcurrentConnections int
	MaxStreams            int
	SocketBufferBytes     int
	CongestionAlgorithm   CongestionAlgorithm
	InitialMaxData        int64
	MaxAckDelayMillis     float64
	IdleTimeout           time.Duration
	RetransmissionFactor  float64
	MultipathMode         MultipathMode
	PacingEnabled         bool
	DNSProviders          []string
	DNSCacheMaxEntries    int
	CompressionCacheBytes int64
}

// Clone returns a deep-enough copy of p safe for independent mutation.
func (p Profile) Clone() Profile {
	providers := make([]string, len(p.DNSProviders))
	copy(providers, p.DNSProviders)
	p.DNSProviders = providers
	return p
}

// DefaultProfiles returns the package's built-in profile set: a fast
// fixed-line profile, a cellular profile, and a conservative profile for
// slow, lossy links. The first entry (fixed-fast) is the one an
// [Optimizer] reports before any observation or explicit selection.
func DefaultProfiles() []Profile {
	return []Profile{
		{
			Name:                  "fixed-fast",
			TargetBandwidthMbps:   200,
			TargetRTTMillis:       15,
			TargetLossPct:         0.01,
			ConcurrentConnections: 6,
			MaxStreams:            100,
			SocketBufferBytes:     4 << 20,
			CongestionAlgorithm:   CongestionCUBIC,
			InitialMaxData:        10 << 20,
			IdleTimeout:           30 * time.Second,
			RetransmissionFactor:  1.0,
			MultipathMode:         MultipathAggregation,
			PacingEnabled:         true,
			DNSCacheMaxEntries:    4096,
			CompressionCacheBytes: 256 << 20,
		},
		{
			Name:                  "cellular",
			TargetBandwidthMbps:   20,
			TargetRTTMillis:       80,
			TargetLossPct:         0.5,
			ConcurrentConnections: 3,
			MaxStreams:            40,
			SocketBufferBytes:     1 << 20,
			CongestionAlgorithm:   CongestionBBR,
			InitialMaxData:        2 << 20,
			IdleTimeout:           20 * time.Second,
			RetransmissionFactor:  1.5,
			MultipathMode:         MultipathHandover,
			PacingEnabled:         true,
			DNSCacheMaxEntries:    2048,
			CompressionCacheBytes: 64 << 20,
		},
		{
			Name:                  "conservative",
			TargetBandwidthMbps:   5,
			TargetRTTMillis:       150,
			TargetLossPct:         2,
			ConcurrentConnections: 2,
			MaxStreams:            16,
			SocketBufferBytes:     256 << 10,
			CongestionAlgorithm:   CongestionCUBIC,
			InitialMaxData:        512 << 10,
			IdleTimeout:           15 * time.Second,
			RetransmissionFactor:  2.0,
			MultipathMode:         MultipathDisabled,
			PacingEnabled:         false,
			DNSCacheMaxEntries:    512,
			CompressionCacheBytes: 16 << 20,
		},
	}
}
