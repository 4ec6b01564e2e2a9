// SPDX-License-Identifier: GPL-3.0-or-later

// Package ccalgo implements the three congestion-control personalities
// §4.3 asks the HTTP/3 client to choose between (CUBIC, BBR, a
// low-latency variant) as a standalone estimator.
//
// quic-go's actual congestion-control plug point
// (quic-go/internal/congestion.CongestionControl) lives under an internal/
// import path and cannot be implemented or injected from outside the
// quic-go module itself; see DESIGN.md. This package therefore exposes the
// same three algorithms as standalone [Algorithm] estimators. No other
// package in this module uses them: QUIC connections run quic-go's
// built-in congestion control.
package ccalgo

import "time"

// Algorithm estimates a congestion window from observed RTT/loss samples,
// independent of any particular QUIC stack.
type Algorithm interface {
	// OnAck records a successful delivery of ackedBytes, measured rtt.
	OnAck(ackedBytes int64, rtt time.Duration, now time.Time)

	// OnLoss records a lost packet of lostBytes.
	OnLoss(lostBytes int64, now time.Time)

	// CongestionWindow returns the current window, in bytes.
	CongestionWindow() int64

	// Name identifies the algorithm ("cubic", "bbr", "low-latency").
	Name() string
}

// New returns a fresh [Algorithm] instance for the given name, defaulting
// to CUBIC for an unrecognized name.
func New(name string, initialWindowBytes int64) Algorithm {
	switch name {
	case "bbr":
		return NewBBR(initialWindowBytes)
	case "low-latency":
		return NewLowLatency(initialWindowBytes)
	default:
		return NewCubic(initialWindowBytes)
	}
}
