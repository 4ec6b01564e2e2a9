// SPDX-License-Identifier: GPL-3.0-or-later

package dnsresolver

import (
	"net"
	"net/url"
	"time"
)

// Config is the resolver's slice of the browsercore-wide configuration
// surface (§6), plain data decoded by viper and turned into a
// [ResolverConfig] by [Config.Build].
type Config struct {
	// Mode selects the upstream transport: "plain" (default, DNS-over-UDP/
	// TCP dialed directly via github.com/miekg/dns), "plain-netstack" (the
	// same UDP/TCP exchange routed through netstack's connect/observe/
	// cancel pipeline instead, trading per-record TTL fidelity for shared
	// dial instrumentation), "doh" (DNS-over-HTTPS, using DoHEndpoints), or
	// "dot" (DNS-over-TLS, using DoTAddrs). §4.4 calls this policy-selected
	// transport; §6 exposes it as dns.mode.
	Mode string `mapstructure:"mode" json:"mode"`

	// UpstreamAddrs is a list of "host:port" plain-DNS resolvers tried in
	// rotation order. Used when Mode is "plain", "plain-netstack", or any
	// value other than "doh"/"dot".
	UpstreamAddrs []string `mapstructure:"upstreams" json:"upstreams"`

	// DoHEndpoints is a list of DNS-over-HTTPS URLs tried in rotation
	// order. Used when Mode is "doh". §6's dns.doh_endpoints.
	DoHEndpoints []string `mapstructure:"doh_endpoints" json:"doh_endpoints"`

	// DoTAddrs is a list of "host:port" DNS-over-TLS servers tried in
	// rotation order. Used when Mode is "dot".
	DoTAddrs []string `mapstructure:"dot_addrs" json:"dot_addrs"`

	MaxRetries        int           `mapstructure:"max_retries" json:"max_retries"`
	PerQueryTimeout   time.Duration `mapstructure:"per_query_timeout" json:"per_query_timeout"`
	CacheMaxEntries   int           `mapstructure:"cache_max_entries" json:"cache_max_entries"`
	NegativeTTL       time.Duration `mapstructure:"negative_ttl" json:"negative_ttl"`
	PrefetchThreshold float64       `mapstructure:"prefetch_threshold" json:"prefetch_threshold"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval" json:"sweep_interval"`
}

// DefaultConfig returns the package defaults: Cloudflare and Google public
// resolvers in rotation over plain DNS, with their DoH/DoT endpoints listed
// too so switching dns.mode needs no further configuration.
func DefaultConfig() Config {
	return Config{
		Mode:              "plain",
		UpstreamAddrs:     []string{"1.1.1.1:53", "8.8.8.8:53"},
		DoHEndpoints:      []string{"https://1.1.1.1/dns-query", "https://8.8.8.8/dns-query"},
		DoTAddrs:          []string{"1.1.1.1:853", "8.8.8.8:853"},
		MaxRetries:        4,
		PerQueryTimeout:   5 * time.Second,
		CacheMaxEntries:   4096,
		NegativeTTL:       30 * time.Second,
		PrefetchThreshold: 0.8,
		SweepInterval:     time.Minute,
	}
}

// wellKnownDoHBootstrap maps the host component of a DoH endpoint URL to
// the dial address and TLS ServerName to use for it, when that host is a
// literal IP whose certificate does not cover the IP itself (true of every
// major public DoH resolver). Looking an unknown endpoint's hostname up
// via DNS to bootstrap it would be circular, so endpoints outside this
// table must set DoHUpstream.Addr/ServerName explicitly.
var wellKnownDoHBootstrap = map[string]struct{ addr, serverName string }{
	"1.1.1.1": {"1.1.1.1:443", "cloudflare-dns.com"},
	"8.8.8.8": {"8.8.8.8:443", "dns.google"},
}

// wellKnownDoTServerNames maps a DoT server's IP to the TLS ServerName its
// certificate actually carries; see [wellKnownDoHBootstrap].
var wellKnownDoTServerNames = map[string]string{
	"1.1.1.1": "cloudflare-dns.com",
	"8.8.8.8": "dns.google",
}

// Build turns the decoded Config into a live [Resolver] backed by
// transports chosen according to Mode.
func (c Config) Build() *Resolver {
	var upstreams []Upstream
	switch c.Mode {
	case "doh":
		upstreams = make([]Upstream, 0, len(c.DoHEndpoints))
		for _, endpoint := range c.DoHEndpoints {
			upstreams = append(upstreams, newDoHUpstream(endpoint))
		}
	case "dot":
		upstreams = make([]Upstream, 0, len(c.DoTAddrs))
		for _, addr := range c.DoTAddrs {
			upstreams = append(upstreams, newDoTUpstream(addr))
		}
	case "plain-netstack":
		upstreams = make([]Upstream, 0, len(c.UpstreamAddrs)*2)
		for _, addr := range c.UpstreamAddrs {
			upstreams = append(upstreams,
				NewNetstackPlainUpstream(addr, "udp"),
				NewNetstackPlainUpstream(addr, "tcp"))
		}
	default:
		upstreams = make([]Upstream, 0, len(c.UpstreamAddrs))
		for _, addr := range c.UpstreamAddrs {
			upstreams = append(upstreams, NewPlainUpstream(addr))
		}
	}

	cfg := NewResolverConfig()
	cfg.Upstreams = upstreams
	cfg.MaxRetries = c.MaxRetries
	cfg.PerQueryTimeout = c.PerQueryTimeout
	cfg.CacheMaxEntries = c.CacheMaxEntries
	cfg.NegativeTTL = c.NegativeTTL
	cfg.PrefetchThreshold = c.PrefetchThreshold
	return NewResolver(cfg)
}

// newDoHUpstream builds a [*DoHUpstream] for endpoint, filling in the dial
// address and TLS ServerName from [wellKnownDoHBootstrap] when the
// endpoint's host is a recognized public-resolver IP.
func newDoHUpstream(endpoint string) *DoHUpstream {
	u := NewDoHUpstream(endpoint)
	if parsed, err := url.Parse(endpoint); err == nil {
		if bootstrap, ok := wellKnownDoHBootstrap[parsed.Hostname()]; ok {
			u.Addr = bootstrap.addr
			u.ServerName = bootstrap.serverName
		}
	}
	return u
}

// newDoTUpstream builds a [*DoTUpstream] for addr, filling in the TLS
// ServerName from [wellKnownDoTServerNames] when addr's host is a
// recognized public-resolver IP.
func newDoTUpstream(addr string) *DoTUpstream {
	serverName := ""
	if host, _, err := net.SplitHostPort(addr); err == nil {
		serverName = wellKnownDoTServerNames[host]
	}
	return NewDoTUpstream(addr, serverName)
}
