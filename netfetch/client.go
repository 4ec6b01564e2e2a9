// SPDX-License-Identifier: GPL-3.0-or-later

// Package netfetch composes [dnsresolver], [netstack], and [compcache] into
// the actual outbound-request path of the host's network process: resolve
// the hostname, open an HTTP/3 connection over a tracked [netstack.PathSet]
// (falling back to TLS+HTTP/1.1-or-2 when QUIC is unreachable), perform the
// round trip, and run the response body through the compression cache.
package netfetch

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"sync"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/bassosimone/browsercore/compcache"
	"github.com/bassosimone/browsercore/dnsresolver"
	"github.com/bassosimone/browsercore/netopt"
	"github.com/bassosimone/browsercore/netstack"
	"github.com/bassosimone/browsercore/obs"
)

// Result is the outcome of one [Client.Fetch] call.
type Result struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// CacheEntry is the compressed form of Body produced by the
	// compression cache, nil if compression failed.
	CacheEntry *compcache.Entry

	// Protocol names the wire version actually used: "http3" or "tls".
	Protocol string
}

// Client performs HTTP fetches on behalf of the browser's renderer/network
// processes, resolving hostnames through a [*dnsresolver.Resolver],
// establishing connections through [netstack], and compressing bodies
// through a [*compcache.Engine].
type Client struct {
	Resolver *dnsresolver.Resolver
	Cache    *compcache.Engine
	Config   *netstack.Config
	Logger   obs.SLogger

	// Profile carries the transport knobs selected by the network
	// optimizer (§4.2): max streams, congestion algorithm, multipath mode.
	Profile netopt.Profile

	// MaxBodyBytes bounds how much of a response body Fetch reads before
	// giving up, protecting the cache from unbounded memory growth. Zero
	// means [DefaultMaxBodyBytes].
	MaxBodyBytes int64

	mu    sync.Mutex
	paths map[string]*netstack.PathSet
}

// DefaultMaxBodyBytes is the default response body cap.
const DefaultMaxBodyBytes = 32 << 20

// NewClient returns a [*Client] wired to resolver, cache, and profile, with
// package defaults for everything else.
func NewClient(resolver *dnsresolver.Resolver, cache *compcache.Engine, profile netopt.Profile) *Client {
	return &Client{
		Resolver: resolver,
		Cache:    cache,
		Config:   netstack.NewConfig(),
		Logger:   obs.DefaultSLogger(),
		Profile:  profile,
		paths:    make(map[string]*netstack.PathSet),
	}
}

// Close tears down every pooled HTTP/3 path across every host this client
// has fetched from.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for _, ps := range c.paths {
		if err := ps.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.paths = make(map[string]*netstack.PathSet)
	return firstErr
}

// Fetch resolves rawURL's host, opens a connection (HTTP/3 when reachable,
// TLS+HTTP/1.1-or-2 otherwise), performs a GET, and compresses the response
// body via the configured [*compcache.Engine].
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("netfetch: invalid url %q: %w", rawURL, err)
	}
	hostname := parsed.Hostname()
	if hostname == "" {
		return nil, fmt.Errorf("netfetch: url %q has no host", rawURL)
	}

	addr, err := c.resolveHost(ctx, hostname)
	if err != nil {
		return nil, fmt.Errorf("netfetch: resolve %q: %w", hostname, err)
	}
	port := parsed.Port()
	if port == "" {
		port = "443"
	}
	addrPort, err := parsePort(addr, port)
	if err != nil {
		return nil, fmt.Errorf("netfetch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("netfetch: build request: %w", err)
	}

	resp, protocol, closeConn, err := c.roundTrip(ctx, hostname, addrPort, req)
	if err != nil {
		return nil, err
	}
	defer closeConn()
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes()))
	if err != nil {
		return nil, fmt.Errorf("netfetch: read body: %w", err)
	}

	result := &Result{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Protocol:   protocol,
	}
	if c.Cache != nil && len(body) > 0 {
		hint := compcache.InferHint(body)
		algo := compcache.SelectAlgorithm(hint, len(body))
		entry, err := c.Cache.Compress(ctx, body, algo, hint)
		if err != nil {
			c.logger().Info("netfetchCompressFailed", "hostname", hostname, "error", err.Error())
		} else {
			result.CacheEntry = entry
		}
	}
	return result, nil
}

// roundTrip attempts HTTP/3 over a tracked [netstack.PathSet] first,
// falling back to TLS+HTTP/1.1-or-2 per §4.3's "degrade gracefully" rule
// when QUIC is unreachable. The returned closeConn releases any per-call
// resources (the HTTP/3 path itself is pooled and outlives the call).
func (c *Client) roundTrip(ctx context.Context, hostname string, addr netip.AddrPort, req *http.Request) (*http.Response, string, func(), error) {
	if resp, closeConn, err := c.roundTripHTTP3(ctx, hostname, addr, req); err == nil {
		return resp, "http3", closeConn, nil
	}

	resp, closeConn, err := c.roundTripTLS(ctx, hostname, addr, req)
	if err != nil {
		return nil, "", func() {}, fmt.Errorf("netfetch: fetch %q: %w", hostname, err)
	}
	return resp, "tls", closeConn, nil
}

func (c *Client) roundTripHTTP3(ctx context.Context, hostname string, addr netip.AddrPort, req *http.Request) (*http.Response, func(), error) {
	ps := c.pathSetFor(hostname)
	cfg := c.config()
	logger := c.logger()

	selected := ps.Select(ctx)
	var conn *netstack.HTTP3Conn
	if selected != nil && selected.Conn != nil {
		conn = selected.Conn
	} else {
		tlsConfig := &tls.Config{ServerName: hostname, NextProtos: []string{"h3"}}
		quicConfig := quicConfigFromProfile(c.Profile)
		connectOp := netstack.NewHTTP3ConnectFunc(cfg, tlsConfig, quicConfig, logger)
		connectOp.Allow0RTT = true

		var err error
		conn, err = connectOp.Call(ctx, addr)
		if err != nil {
			return nil, func() {}, err
		}
		ps.AddPath(addr, conn)
	}

	t0 := c.timeNow()
	resp, err := conn.RoundTrip(req)
	ps.Observe(addr, c.timeNow().Sub(t0), 0, c.timeNow())
	if err != nil {
		return nil, func() {}, err
	}
	return resp, func() {}, nil
}

func (c *Client) roundTripTLS(ctx context.Context, hostname string, addr netip.AddrPort, req *http.Request) (*http.Response, func(), error) {
	cfg := c.config()
	logger := c.logger()

	connectOp := netstack.NewConnectFunc(cfg, "tcp", logger)
	observeOp := netstack.NewObserveConnFunc(cfg, logger)
	cancelOp := netstack.NewCancelWatchFunc()
	tlsConfig := &tls.Config{ServerName: hostname, NextProtos: []string{"h2", "http/1.1"}}
	tlsOp := netstack.NewTLSHandshakeFunc(cfg, tlsConfig, logger)
	httpConnOp := netstack.NewHTTPConnFuncTLS(cfg, logger)

	pipeline := netstack.Compose5(connectOp, observeOp, cancelOp, tlsOp, httpConnOp)
	httpConn, err := pipeline.Call(ctx, addr)
	if err != nil {
		return nil, func() {}, err
	}

	resp, err := httpConn.RoundTrip(req)
	if err != nil {
		httpConn.Close()
		return nil, func() {}, err
	}
	return resp, func() { httpConn.Close() }, nil
}

func (c *Client) pathSetFor(hostname string) *netstack.PathSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	ps, ok := c.paths[hostname]
	if !ok {
		ps = netstack.NewPathSet(multipathMode(c.Profile.MultipathMode))
		c.paths[hostname] = ps
	}
	return ps
}

func (c *Client) resolveHost(ctx context.Context, hostname string) (netip.Addr, error) {
	if ip, err := netip.ParseAddr(hostname); err == nil {
		return ip, nil
	}
	records, err := c.Resolver.Resolve(ctx, hostname, dnsresolver.TypeA)
	if err != nil || len(records) == 0 {
		records, err = c.Resolver.Resolve(ctx, hostname, dnsresolver.TypeAAAA)
	}
	if err != nil {
		return netip.Addr{}, err
	}
	if len(records) == 0 {
		return netip.Addr{}, dnsresolver.ErrNXDomain
	}
	return records[0].Address, nil
}

func (c *Client) config() *netstack.Config {
	if c.Config != nil {
		return c.Config
	}
	return netstack.NewConfig()
}

func (c *Client) logger() obs.SLogger {
	if c.Logger != nil {
		return c.Logger
	}
	return obs.DefaultSLogger()
}

func (c *Client) timeNow() time.Time {
	cfg := c.config()
	if cfg.TimeNow != nil {
		return cfg.TimeNow()
	}
	return time.Now()
}

func (c *Client) maxBodyBytes() int64 {
	if c.MaxBodyBytes > 0 {
		return c.MaxBodyBytes
	}
	return DefaultMaxBodyBytes
}

func parsePort(addr netip.Addr, port string) (netip.AddrPort, error) {
	p, err := netip.ParseAddrPort(fmt.Sprintf("%s:%s", addrString(addr), port))
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("invalid address/port %q/%q: %w", addr, port, err)
	}
	return p, nil
}

func addrString(addr netip.Addr) string {
	if addr.Is4() {
		return addr.String()
	}
	return "[" + addr.String() + "]"
}

// multipathMode translates a [netopt.MultipathMode] into the equivalent
// [netstack.MultipathMode]; the two enums mirror each other (netopt
// describes policy, netstack implements it) but are kept as distinct types
// so neither package depends on the other's internals.
func multipathMode(m netopt.MultipathMode) netstack.MultipathMode {
	switch m {
	case netopt.MultipathHandover:
		return netstack.MultipathHandover
	case netopt.MultipathAggregation:
		return netstack.MultipathAggregation
	case netopt.MultipathDynamic:
		return netstack.MultipathDynamic
	default:
		return netstack.MultipathDisabled
	}
}

// quicConfigFromProfile derives QUIC transport parameters from a
// [netopt.Profile], per §4.3's mapping of profile knobs onto wire-level
// settings (flow control window, idle timeout, datagram support for 0-RTT).
func quicConfigFromProfile(p netopt.Profile) *quic.Config {
	idleTimeout := p.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = 30 * time.Second
	}
	maxStreams := int64(p.MaxStreams)
	if maxStreams <= 0 {
		maxStreams = 100
	}
	return &quic.Config{
		MaxIdleTimeout:                 idleTimeout,
		InitialStreamReceiveWindow:     uint64(p.InitialMaxData),
		MaxStreamReceiveWindow:         uint64(p.InitialMaxData),
		InitialConnectionReceiveWindow: uint64(p.InitialMaxData) * 2,
		MaxConnectionReceiveWindow:     uint64(p.InitialMaxData) * 2,
		MaxIncomingStreams:             maxStreams,
		EnableDatagrams:                true,
	}
}
