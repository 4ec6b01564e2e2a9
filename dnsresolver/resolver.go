// SPDX-License-Identifier: GPL-3.0-or-later

package dnsresolver

import (
	"context"
	"fmt"
	"time"

	"github.com/bassosimone/browsercore/obs"
	"golang.org/x/sync/singleflight"
)

// ResolverConfig parameterizes a new [Resolver].
type ResolverConfig struct {
	// Upstreams is the rotation set; queries start at the first and advance
	// on failure, wrapping around, up to MaxRetries total attempts.
	Upstreams []Upstream

	// MaxRetries bounds attempts across the whole upstream rotation for one
	// Resolve call. Zero selects len(Upstreams).
	MaxRetries int

	// PerQueryTimeout bounds a single upstream exchange.
	PerQueryTimeout time.Duration

	// CacheMaxEntries and NegativeTTL parameterize the embedded [Cache].
	CacheMaxEntries int
	NegativeTTL     time.Duration

	// PrefetchThreshold is the elapsed-TTL-fraction that triggers a
	// background refresh (§4.4 default 0.8).
	PrefetchThreshold float64

	Logger  obs.SLogger
	TimeNow func() time.Time
}

// NewResolverConfig returns a ResolverConfig with package defaults and no
// upstreams configured; callers must set Upstreams.
func NewResolverConfig() *ResolverConfig {
	return &ResolverConfig{
		PerQueryTimeout:   5 * time.Second,
		CacheMaxEntries:   4096,
		NegativeTTL:       30 * time.Second,
		PrefetchThreshold: 0.8,
		Logger:            obs.DefaultSLogger(),
		TimeNow:           time.Now,
	}
}

// Resolver implements §4.4: cache, eviction, prefetch, and upstream
// rotation with bounded retry atop whatever [Upstream] transports are
// configured.
type Resolver struct {
	cfg   ResolverConfig
	cache *Cache

	sf singleflight.Group
}

// NewResolver constructs a Resolver. Pass nil for package defaults (though
// the caller must still set at least one upstream before calling Resolve).
func NewResolver(cfg *ResolverConfig) *Resolver {
	if cfg == nil {
		cfg = NewResolverConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = obs.DefaultSLogger()
	}
	if cfg.TimeNow == nil {
		cfg.TimeNow = time.Now
	}
	if cfg.PrefetchThreshold <= 0 {
		cfg.PrefetchThreshold = 0.8
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = len(cfg.Upstreams)
	}
	return &Resolver{
		cfg:   *cfg,
		cache: NewCache(cfg.CacheMaxEntries, cfg.NegativeTTL, cfg.TimeNow),
	}
}

// Resolve implements the §4.4 contract: resolve(hostname, record_type) →
// records. A cache hit returns immediately (after arming a background
// prefetch if the entry's elapsed TTL fraction crossed the threshold); a
// miss queries upstreams in rotation order, caching the result (positive or
// negative) before returning.
func (r *Resolver) Resolve(ctx context.Context, hostname string, rtype RecordType) ([]Record, error) {
	if records, cachedErr, ok := r.cache.Lookup(hostname, rtype); ok {
		if r.cache.NeedsPrefetch(hostname, rtype, r.cfg.PrefetchThreshold) {
			r.prefetch(hostname, rtype)
		}
		if cachedErr != nil {
			return nil, cachedErr
		}
		return records, nil
	}

	records, err := r.queryAndCache(ctx, hostname, rtype)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// prefetch issues a background refresh without blocking the caller; the
// stale cached record remains servable until it completes (§4.4).
func (r *Resolver) prefetch(hostname string, rtype RecordType) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.PerQueryTimeout)
		defer cancel()
		if _, err := r.queryAndCache(ctx, hostname, rtype); err != nil {
			r.cfg.Logger.Debug("dnsresolver: prefetch failed", "hostname", hostname, "type", rtype.String(), "error", err.Error())
		}
	}()
}

// queryAndCache collapses duplicate concurrent lookups for the same
// (hostname, type) via singleflight, queries the upstream rotation with
// bounded retry, and stores the (positive or negative) result in the cache.
func (r *Resolver) queryAndCache(ctx context.Context, hostname string, rtype RecordType) ([]Record, error) {
	key := fmt.Sprintf("%s|%d", hostname, rtype)
	v, err, _ := r.sf.Do(key, func() (any, error) {
		return r.queryUpstreams(ctx, hostname, rtype)
	})
	if err != nil {
		if negativeCacheable(err) {
			r.cache.StoreNegative(hostname, rtype, err)
		}
		return nil, err
	}
	result := v.(resolveResult)
	r.cache.StorePositive(hostname, rtype, result.records, result.ttl)
	return result.records, nil
}

type resolveResult struct {
	records []Record
	ttl     time.Duration
}

// queryUpstreams tries each configured upstream in rotation order, up to
// MaxRetries attempts total, returning the first success.
func (r *Resolver) queryUpstreams(ctx context.Context, hostname string, rtype RecordType) (resolveResult, error) {
	if len(r.cfg.Upstreams) == 0 {
		return resolveResult{}, fmt.Errorf("%w: no upstreams configured", ErrConfiguration)
	}

	var lastErr error
	for attempt := 0; attempt < r.cfg.MaxRetries; attempt++ {
		up := r.cfg.Upstreams[attempt%len(r.cfg.Upstreams)]

		qctx, cancel := context.WithTimeout(ctx, r.cfg.PerQueryTimeout)
		records, ttl, err := up.Exchange(qctx, hostname, rtype)
		cancel()

		if err == nil {
			return resolveResult{records: records, ttl: ttl}, nil
		}
		lastErr = err
		r.cfg.Logger.Debug("dnsresolver: upstream query failed", "upstream", up.Name(), "hostname", hostname, "error", err.Error())

		if negativeCacheable(err) {
			// NXDOMAIN/SERVFAIL are authoritative answers, not transport
			// failures: don't burn the retry budget rotating to another
			// upstream for the same negative answer.
			return resolveResult{}, err
		}
	}
	if lastErr != nil {
		return resolveResult{}, fmt.Errorf("%w: %v", ErrAllUpstreamsFailed, lastErr)
	}
	return resolveResult{}, ErrAllUpstreamsFailed
}

// Sweep runs the periodic maintenance pass that removes expired cache
// entries (§4.4).
func (r *Resolver) Sweep() int {
	return r.cache.Sweep()
}
