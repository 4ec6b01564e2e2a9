//
// SPDX-License-Identifier: GPL-3.0-or-later
//

package netstack

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/bassosimone/browsercore/obs"
	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
)

// HTTP3Conn is an established HTTP/3 "connection": a QUIC connection plus
// the [http3.Transport] that performs round trips over it, mirroring the
// plain/TLS [HTTPConn] shape so pipeline code treats every wire version
// uniformly.
type HTTP3Conn struct {
	qconn quic.Connection
	txp   *http3.Transport

	ErrClassifier obs.ErrClassifier
	Logger        obs.SLogger
	TimeNow       func() time.Time
}

// RoundTrip implements [http.RoundTripper].
func (hc *HTTP3Conn) RoundTrip(req *http.Request) (*http.Response, error) {
	t0 := hc.TimeNow()
	deadline, _ := req.Context().Deadline()
	hc.Logger.Info(
		"httpRoundTripStart",
		slog.Time("deadline", deadline),
		slog.String("httpMethod", req.Method),
		slog.String("httpUrl", req.URL.String()),
		slog.String("protocol", "http3"),
		slog.Time("t", t0),
	)
	resp, err := hc.txp.RoundTrip(req)
	var statusCode int
	if resp != nil {
		statusCode = resp.StatusCode
	}
	hc.Logger.Info(
		"httpRoundTripDone",
		slog.Time("deadline", deadline),
		slog.Any("err", err),
		slog.String("errClass", hc.ErrClassifier.Classify(err)),
		slog.String("httpMethod", req.Method),
		slog.String("httpUrl", req.URL.String()),
		slog.Int("httpResponseStatusCode", statusCode),
		slog.String("protocol", "http3"),
		slog.Time("t0", t0),
		slog.Time("t", hc.TimeNow()),
	)
	return resp, err
}

// Close closes the underlying QUIC connection and transport.
func (hc *HTTP3Conn) Close() error {
	hc.txp.Close()
	return hc.qconn.CloseWithError(0, "")
}

// Conn returns the underlying [quic.Connection], exposed for path
// inspection by [PathSet].
func (hc *HTTP3Conn) Conn() quic.Connection { return hc.qconn }

// quicDialer abstracts [quic.DialAddr]/[quic.DialAddrEarly] for testability.
type quicDialer interface {
	DialAddr(ctx context.Context, addr string, tlsConf *tls.Config, quicConf *quic.Config) (quic.Connection, error)
	DialAddrEarly(ctx context.Context, addr string, tlsConf *tls.Config, quicConf *quic.Config) (quic.EarlyConnection, error)
}

type stdQUICDialer struct{}

func (stdQUICDialer) DialAddr(ctx context.Context, addr string, tlsConf *tls.Config, quicConf *quic.Config) (quic.Connection, error) {
	return quic.DialAddr(ctx, addr, tlsConf, quicConf)
}

func (stdQUICDialer) DialAddrEarly(ctx context.Context, addr string, tlsConf *tls.Config, quicConf *quic.Config) (quic.EarlyConnection, error) {
	return quic.DialAddrEarly(ctx, addr, tlsConf, quicConf)
}

// HTTP3ConnectFunc dials a QUIC connection and wraps it as an [*HTTP3Conn].
// Callers translate an active netopt.Profile into the QUICConfig field
// (flow-control windows, MaxIdleTimeout, datagram support for 0-RTT probing)
// before constructing one; see netfetch.quicConfigFromProfile.
//
// The input is a [netip.AddrPort]; callers needing a hostname-based lookup
// resolve it themselves (e.g. via a [dnsresolver.Resolver]) before calling.
type HTTP3ConnectFunc struct {
	Dialer    quicDialer
	TLSConfig *tls.Config
	QUICConfig *quic.Config

	// Allow0RTT enables [quic.DialAddrEarly], sending the first request's
	// data in the 0-RTT flight when a cached session ticket allows it.
	Allow0RTT bool

	ErrClassifier obs.ErrClassifier
	Logger        obs.SLogger
	TimeNow       func() time.Time
}

// NewHTTP3ConnectFunc returns an [*HTTP3ConnectFunc] using the standard
// library's QUIC dialer.
func NewHTTP3ConnectFunc(cfg *Config, tlsConfig *tls.Config, quicConfig *quic.Config, logger obs.SLogger) *HTTP3ConnectFunc {
	return &HTTP3ConnectFunc{
		Dialer:        stdQUICDialer{},
		TLSConfig:     tlsConfig,
		QUICConfig:    quicConfig,
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		TimeNow:       cfg.TimeNow,
	}
}

var _ Func[netip.AddrPort, *HTTP3Conn] = &HTTP3ConnectFunc{}

// Call implements [Func]. It performs Connect0RTT semantics: if Allow0RTT is
// set and a session ticket makes early data possible, the handshake
// completes in parallel with sending the first request; otherwise it falls
// back transparently to a regular 1-RTT handshake, matching the "degrade
// gracefully, request proceeds over 1-RTT" rule of §4.3.
func (op *HTTP3ConnectFunc) Call(ctx context.Context, address netip.AddrPort) (*HTTP3Conn, error) {
	t0 := op.TimeNow()
	deadline, _ := ctx.Deadline()
	addr := address.String()

	op.Logger.Info(
		"quicConnectStart",
		slog.Time("deadline", deadline),
		slog.String("remoteAddr", addr),
		slog.Bool("allow0RTT", op.Allow0RTT),
		slog.Time("t", t0),
	)

	var qconn quic.Connection
	var err error
	if op.Allow0RTT {
		qconn, err = op.Dialer.DialAddrEarly(ctx, addr, op.TLSConfig, op.QUICConfig)
	} else {
		qconn, err = op.Dialer.DialAddr(ctx, addr, op.TLSConfig, op.QUICConfig)
	}

	op.Logger.Info(
		"quicConnectDone",
		slog.Time("deadline", deadline),
		slog.Any("err", err),
		slog.String("errClass", op.ErrClassifier.Classify(err)),
		slog.String("remoteAddr", addr),
		slog.Time("t0", t0),
		slog.Time("t", op.TimeNow()),
	)
	if err != nil {
		return nil, err
	}

	txp := &http3.Transport{
		TLSClientConfig: op.TLSConfig,
		QUICConfig:      op.QUICConfig,
	}
	return &HTTP3Conn{
		qconn:         qconn,
		txp:           txp,
		ErrClassifier: op.ErrClassifier,
		Logger:        op.Logger,
		TimeNow:       op.TimeNow,
	}, nil
}
