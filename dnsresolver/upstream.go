// SPDX-License-Identifier: GPL-3.0-or-later

package dnsresolver

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/netip"
	"net/url"
	"strconv"
	"time"

	"github.com/miekg/dns"

	"github.com/bassosimone/dnscodec"

	"github.com/bassosimone/browsercore/netstack"
	"github.com/bassosimone/browsercore/obs"
)

// Upstream performs one DNS query against one configured server and returns
// the resolved records. Negative results (NXDOMAIN/SERVFAIL) are reported
// as [ErrNXDomain]/[ErrServFail], not bundled into a zero-length records
// slice, so the [Resolver] can distinguish "no addresses" from "not queried
// yet".
type Upstream interface {
	Exchange(ctx context.Context, hostname string, rtype RecordType) ([]Record, time.Duration, error)
	Name() string
}

// dnsQueryType maps a [RecordType] to its miekg/dns question type.
func dnsQueryType(rtype RecordType) uint16 {
	if rtype == TypeAAAA {
		return dns.TypeAAAA
	}
	return dns.TypeA
}

// PlainUpstream performs classic DNS-over-UDP (falling back to TCP on
// truncation) queries using [github.com/miekg/dns]. It is the resolver's
// default upstream when policy selects neither DoH nor DoT (see
// [DoHUpstream], [DoTUpstream]).
type PlainUpstream struct {
	// Addr is the "host:port" of the upstream resolver.
	Addr string

	// Client performs the exchange; defaults to a fresh [*dns.Client] with
	// Timeout left at zero (governed by ctx instead).
	Client *dns.Client

	// TimeNow is injectable for deterministic tests.
	TimeNow func() time.Time
}

var _ Upstream = (*PlainUpstream)(nil)

// NewPlainUpstream returns a PlainUpstream targeting addr ("1.1.1.1:53").
func NewPlainUpstream(addr string) *PlainUpstream {
	return &PlainUpstream{Addr: addr, Client: &dns.Client{}, TimeNow: time.Now}
}

// Name implements [Upstream].
func (u *PlainUpstream) Name() string { return "plain:" + u.Addr }

// Exchange implements [Upstream].
func (u *PlainUpstream) Exchange(ctx context.Context, hostname string, rtype RecordType) ([]Record, time.Duration, error) {
	client := u.Client
	if client == nil {
		client = &dns.Client{}
	}
	timeNow := u.TimeNow
	if timeNow == nil {
		timeNow = time.Now
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(hostname), dnsQueryType(rtype))
	msg.RecursionDesired = true

	resp, _, err := client.ExchangeContext(ctx, msg, u.Addr)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", u.Name(), err)
	}
	if resp.Truncated {
		tcpClient := *client
		tcpClient.Net = "tcp"
		resp, _, err = tcpClient.ExchangeContext(ctx, msg, u.Addr)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", u.Name(), err)
		}
	}

	switch resp.Rcode {
	case dns.RcodeNameError:
		return nil, 0, ErrNXDomain
	case dns.RcodeSuccess:
		// fall through
	default:
		return nil, 0, fmt.Errorf("%w: rcode %s", ErrServFail, dns.RcodeToString[resp.Rcode])
	}

	now := timeNow()
	var records []Record
	var minTTL time.Duration
	for _, rr := range resp.Answer {
		addr, ttl, ok := addrFromRR(rr)
		if !ok {
			continue
		}
		records = append(records, Record{Address: addr, TTL: ttl, Observed: now})
		if minTTL == 0 || ttl < minTTL {
			minTTL = ttl
		}
	}
	if len(records) == 0 {
		return nil, 0, ErrNXDomain
	}
	return records, minTTL, nil
}

func addrFromRR(rr dns.RR) (netip.Addr, time.Duration, bool) {
	ttl := time.Duration(rr.Header().Ttl) * time.Second
	switch v := rr.(type) {
	case *dns.A:
		addr, ok := netip.AddrFromSlice(v.A.To4())
		return addr, ttl, ok
	case *dns.AAAA:
		addr, ok := netip.AddrFromSlice(v.AAAA.To16())
		return addr, ttl, ok
	default:
		return netip.Addr{}, 0, false
	}
}

// recordsFromResponse converts a [*dnscodec.Response] into [Record]s for
// rtype, stamping every record with the given ttl and observation time.
// [dnscodec.Response] only exposes resolved address lists
// (RecordsA/RecordsAAAA), not per-record TTLs, so DoH/DoT upstreams (unlike
// [PlainUpstream], which reads TTLs straight off the wire [dns.RR]) fall
// back to a configured fixed TTL.
func recordsFromResponse(resp *dnscodec.Response, rtype RecordType, ttl time.Duration, now time.Time) ([]Record, error) {
	var addrs []netip.Addr
	var err error
	if rtype == TypeAAAA {
		addrs, err = resp.RecordsAAAA()
	} else {
		addrs, err = resp.RecordsA()
	}
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(addrs))
	for _, addr := range addrs {
		records = append(records, Record{Address: addr, TTL: ttl, Observed: now})
	}
	return records, nil
}

// dnsExchangeConn is the common shape of [netstack.DNSOverUDPConn] and
// [netstack.DNSOverTCPConn], letting [NetstackPlainUpstream] share one
// Exchange body across both transports.
type dnsExchangeConn interface {
	Exchange(ctx context.Context, query *dnscodec.Query) (*dnscodec.Response, error)
	Close() error
}

// NetstackPlainUpstream performs classic DNS-over-UDP or DNS-over-TCP
// exchanges through netstack's connect/observe/cancel pipeline and
// [netstack.DNSOverUDPConn]/[netstack.DNSOverTCPConn], unlike [PlainUpstream]
// which dials [github.com/miekg/dns] directly. Because [dnscodec.Response]
// exposes no per-record TTL (see recordsFromResponse), records resolved this
// way carry a fixed TTL rather than the live per-record TTL PlainUpstream
// reads off the wire. Configure a UDP instance followed by a TCP instance
// for the same server and let the resolver's own upstream rotation fall
// back to TCP when UDP fails, the way truncated responses are handled in
// classic resolvers.
type NetstackPlainUpstream struct {
	// Addr is the "host:port" of the upstream resolver.
	Addr string

	// Network is "udp" or "tcp"; empty defaults to "udp".
	Network string

	// Config carries the shared dialer/error-classifier/clock; defaults to
	// [netstack.NewConfig] when nil.
	Config *netstack.Config

	// Logger receives structured connect/exchange events; defaults to
	// [obs.DefaultSLogger] when nil.
	Logger obs.SLogger

	// TTL is assigned to every resolved record; see [recordsFromResponse].
	TTL time.Duration
}

var _ Upstream = (*NetstackPlainUpstream)(nil)

// NewNetstackPlainUpstream returns a [*NetstackPlainUpstream] targeting addr
// over network ("udp" or "tcp").
func NewNetstackPlainUpstream(addr, network string) *NetstackPlainUpstream {
	return &NetstackPlainUpstream{
		Addr:    addr,
		Network: network,
		Config:  netstack.NewConfig(),
		Logger:  obs.DefaultSLogger(),
		TTL:     60 * time.Second,
	}
}

// Name implements [Upstream].
func (u *NetstackPlainUpstream) Name() string {
	return "plain-netstack:" + u.network() + ":" + u.Addr
}

// Exchange implements [Upstream].
func (u *NetstackPlainUpstream) Exchange(ctx context.Context, hostname string, rtype RecordType) ([]Record, time.Duration, error) {
	cfg := u.config()
	logger := u.logger()
	network := u.network()

	addr, err := netip.ParseAddrPort(u.Addr)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", u.Name(), err)
	}

	epntOp := netstack.NewEndpointFunc(addr)
	connectOp := netstack.NewConnectFunc(cfg, network, logger)
	observeOp := netstack.NewObserveConnFunc(cfg, logger)
	cancelOp := netstack.NewCancelWatchFunc()

	var dnsConn dnsExchangeConn
	if network == "tcp" {
		wrapOp := netstack.NewDNSOverTCPConnFunc(cfg, logger)
		pipe := netstack.Compose5(epntOp, connectOp, observeOp, cancelOp, wrapOp)
		conn, err := pipe.Call(ctx, netstack.Unit{})
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", u.Name(), err)
		}
		dnsConn = conn
	} else {
		wrapOp := netstack.NewDNSOverUDPConnFunc(cfg, logger)
		pipe := netstack.Compose5(epntOp, connectOp, observeOp, cancelOp, wrapOp)
		conn, err := pipe.Call(ctx, netstack.Unit{})
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", u.Name(), err)
		}
		dnsConn = conn
	}
	defer dnsConn.Close()

	query := dnscodec.NewQuery(hostname, dnsQueryType(rtype))
	resp, err := dnsConn.Exchange(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", u.Name(), err)
	}

	records, err := recordsFromResponse(resp, rtype, u.ttl(), u.timeNow())
	if err != nil || len(records) == 0 {
		return nil, 0, ErrNXDomain
	}
	return records, u.ttl(), nil
}

func (u *NetstackPlainUpstream) config() *netstack.Config {
	if u.Config != nil {
		return u.Config
	}
	return netstack.NewConfig()
}

func (u *NetstackPlainUpstream) logger() obs.SLogger {
	if u.Logger != nil {
		return u.Logger
	}
	return obs.DefaultSLogger()
}

func (u *NetstackPlainUpstream) network() string {
	if u.Network != "" {
		return u.Network
	}
	return "udp"
}

func (u *NetstackPlainUpstream) ttl() time.Duration {
	if u.TTL > 0 {
		return u.TTL
	}
	return 60 * time.Second
}

func (u *NetstackPlainUpstream) timeNow() time.Time {
	cfg := u.config()
	if cfg.TimeNow != nil {
		return cfg.TimeNow()
	}
	return time.Now()
}

// DoHUpstream performs DNS-over-HTTPS exchanges against a single endpoint.
// Each call to Exchange dials a fresh connection through netstack's
// connect/TLS/HTTP pipeline (mirroring the Example_dnsOverHTTPS wiring) and
// wraps it as a [netstack.DNSOverHTTPSConn] for the actual exchange.
type DoHUpstream struct {
	// Endpoint is the DoH URL, e.g. "https://1.1.1.1/dns-query".
	Endpoint string

	// Addr is the "host:port" to dial. Required when Endpoint's host is
	// not a literal IP address, since the resolver cannot look up the DoH
	// server's own hostname without creating a bootstrap cycle.
	Addr string

	// ServerName is the TLS ServerName/SNI to present; defaults to
	// Endpoint's host when empty (only correct if that host is also the
	// name on the server's certificate, which is not true for most public
	// resolvers reached by IP - set this explicitly in that case).
	ServerName string

	// Config carries the shared dialer/error-classifier/clock; defaults to
	// [netstack.NewConfig] when nil.
	Config *netstack.Config

	// Logger receives structured connect/handshake/exchange events;
	// defaults to [obs.DefaultSLogger] when nil.
	Logger obs.SLogger

	// TTL is assigned to every resolved record; see [recordsFromResponse].
	TTL time.Duration
}

var _ Upstream = (*DoHUpstream)(nil)

// NewDoHUpstream returns a [*DoHUpstream] targeting endpoint with package
// defaults. Set Addr (and ServerName, if the endpoint is reached by IP)
// before first use unless endpoint's host is already a literal IP.
func NewDoHUpstream(endpoint string) *DoHUpstream {
	return &DoHUpstream{
		Endpoint: endpoint,
		Config:   netstack.NewConfig(),
		Logger:   obs.DefaultSLogger(),
		TTL:      60 * time.Second,
	}
}

// Name implements [Upstream].
func (u *DoHUpstream) Name() string { return "doh:" + u.Endpoint }

// Exchange implements [Upstream].
func (u *DoHUpstream) Exchange(ctx context.Context, hostname string, rtype RecordType) ([]Record, time.Duration, error) {
	cfg := u.config()
	logger := u.logger()

	addr, err := u.dialAddr()
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", u.Name(), err)
	}
	serverName, err := u.serverName()
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", u.Name(), err)
	}

	epntOp := netstack.NewEndpointFunc(addr)
	connectOp := netstack.NewConnectFunc(cfg, "tcp", logger)
	observeOp := netstack.NewObserveConnFunc(cfg, logger)
	cancelOp := netstack.NewCancelWatchFunc()
	tlsConfig := &tls.Config{ServerName: serverName, NextProtos: []string{"h2", "http/1.1"}}
	tlsOp := netstack.NewTLSHandshakeFunc(cfg, tlsConfig, logger)
	httpConnOp := netstack.NewHTTPConnFuncTLS(cfg, logger)
	wrapOp := netstack.NewDNSOverHTTPSConnFunc(cfg, u.Endpoint, logger)

	dialPipe := netstack.Compose7(epntOp, connectOp, observeOp, cancelOp, tlsOp, httpConnOp, wrapOp)
	dnsConn, err := dialPipe.Call(ctx, netstack.Unit{})
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", u.Name(), err)
	}
	defer dnsConn.Close()

	query := dnscodec.NewQuery(hostname, dnsQueryType(rtype))
	resp, err := dnsConn.Exchange(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", u.Name(), err)
	}

	records, err := recordsFromResponse(resp, rtype, u.ttl(), u.timeNow())
	if err != nil || len(records) == 0 {
		return nil, 0, ErrNXDomain
	}
	return records, u.ttl(), nil
}

func (u *DoHUpstream) config() *netstack.Config {
	if u.Config != nil {
		return u.Config
	}
	return netstack.NewConfig()
}

func (u *DoHUpstream) logger() obs.SLogger {
	if u.Logger != nil {
		return u.Logger
	}
	return obs.DefaultSLogger()
}

func (u *DoHUpstream) ttl() time.Duration {
	if u.TTL > 0 {
		return u.TTL
	}
	return 60 * time.Second
}

func (u *DoHUpstream) timeNow() time.Time {
	cfg := u.config()
	if cfg.TimeNow != nil {
		return cfg.TimeNow()
	}
	return time.Now()
}

func (u *DoHUpstream) dialAddr() (netip.AddrPort, error) {
	if u.Addr != "" {
		return netip.ParseAddrPort(u.Addr)
	}
	parsed, err := url.Parse(u.Endpoint)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("doh: invalid endpoint %q: %w", u.Endpoint, err)
	}
	ip, err := netip.ParseAddr(parsed.Hostname())
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf(
			"doh: endpoint host %q is not a literal IP; set Addr explicitly to avoid a DNS bootstrap cycle", parsed.Hostname())
	}
	port := parsed.Port()
	if port == "" {
		port = "443"
	}
	p, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("doh: invalid port %q: %w", port, err)
	}
	return netip.AddrPortFrom(ip, uint16(p)), nil
}

func (u *DoHUpstream) serverName() (string, error) {
	if u.ServerName != "" {
		return u.ServerName, nil
	}
	parsed, err := url.Parse(u.Endpoint)
	if err != nil {
		return "", fmt.Errorf("doh: invalid endpoint %q: %w", u.Endpoint, err)
	}
	return parsed.Hostname(), nil
}

// DoTUpstream performs DNS-over-TLS exchanges against a single "host:port"
// server. Each call to Exchange dials a fresh connection through netstack's
// connect/TLS pipeline (mirroring the Example_dnsOverTLS wiring) and wraps
// it as a [netstack.DNSOverTLSConn].
type DoTUpstream struct {
	// Addr is the "host:port" of the DoT server (e.g. "1.1.1.1:853").
	Addr string

	// ServerName is the TLS ServerName/SNI to present.
	ServerName string

	// Config carries the shared dialer/error-classifier/clock; defaults to
	// [netstack.NewConfig] when nil.
	Config *netstack.Config

	// Logger receives structured connect/handshake/exchange events;
	// defaults to [obs.DefaultSLogger] when nil.
	Logger obs.SLogger

	// TTL is assigned to every resolved record; see [recordsFromResponse].
	TTL time.Duration
}

var _ Upstream = (*DoTUpstream)(nil)

// NewDoTUpstream returns a [*DoTUpstream] targeting addr, presenting
// serverName during the TLS handshake.
func NewDoTUpstream(addr, serverName string) *DoTUpstream {
	return &DoTUpstream{
		Addr:       addr,
		ServerName: serverName,
		Config:     netstack.NewConfig(),
		Logger:     obs.DefaultSLogger(),
		TTL:        60 * time.Second,
	}
}

// Name implements [Upstream].
func (u *DoTUpstream) Name() string { return "dot:" + u.Addr }

// Exchange implements [Upstream].
func (u *DoTUpstream) Exchange(ctx context.Context, hostname string, rtype RecordType) ([]Record, time.Duration, error) {
	cfg := u.config()
	logger := u.logger()

	addr, err := netip.ParseAddrPort(u.Addr)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", u.Name(), err)
	}

	epntOp := netstack.NewEndpointFunc(addr)
	connectOp := netstack.NewConnectFunc(cfg, "tcp", logger)
	observeOp := netstack.NewObserveConnFunc(cfg, logger)
	cancelOp := netstack.NewCancelWatchFunc()
	tlsConfig := &tls.Config{ServerName: u.ServerName, NextProtos: []string{"dot"}}
	tlsOp := netstack.NewTLSHandshakeFunc(cfg, tlsConfig, logger)
	wrapOp := netstack.NewDNSOverTLSConnFunc(cfg, logger)

	dialPipe := netstack.Compose6(epntOp, connectOp, observeOp, cancelOp, tlsOp, wrapOp)
	dnsConn, err := dialPipe.Call(ctx, netstack.Unit{})
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", u.Name(), err)
	}
	defer dnsConn.Close()

	query := dnscodec.NewQuery(hostname, dnsQueryType(rtype))
	resp, err := dnsConn.Exchange(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", u.Name(), err)
	}

	records, err := recordsFromResponse(resp, rtype, u.ttl(), u.timeNow())
	if err != nil || len(records) == 0 {
		return nil, 0, ErrNXDomain
	}
	return records, u.ttl(), nil
}

func (u *DoTUpstream) config() *netstack.Config {
	if u.Config != nil {
		return u.Config
	}
	return netstack.NewConfig()
}

func (u *DoTUpstream) logger() obs.SLogger {
	if u.Logger != nil {
		return u.Logger
	}
	return obs.DefaultSLogger()
}

func (u *DoTUpstream) ttl() time.Duration {
	if u.TTL > 0 {
		return u.TTL
	}
	return 60 * time.Second
}

func (u *DoTUpstream) timeNow() time.Time {
	cfg := u.config()
	if cfg.TimeNow != nil {
		return cfg.TimeNow()
	}
	return time.Now()
}
