// SPDX-License-Identifier: GPL-3.0-or-later

package dnsresolver

import "errors"

var (
	// ErrConfiguration marks an invalid resolver configuration.
	ErrConfiguration = errors.New("dnsresolver: configuration error")

	// ErrNXDomain is cached as a negative result per §4.4.
	ErrNXDomain = errors.New("dnsresolver: name does not exist")

	// ErrServFail is cached as a negative result per §4.4.
	ErrServFail = errors.New("dnsresolver: upstream server failure")

	// ErrAllUpstreamsFailed marks exhaustion of the bounded retry/rotation
	// budget across every configured upstream.
	ErrAllUpstreamsFailed = errors.New("dnsresolver: all upstreams failed")
)

// negativeCacheable reports whether err should be cached as a negative
// result rather than simply propagated.
func negativeCacheable(err error) bool {
	return errors.Is(err, ErrNXDomain) || errors.Is(err, ErrServFail)
}
