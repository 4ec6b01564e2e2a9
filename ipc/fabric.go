// SPDX-License-Identifier: GPL-3.0-or-later

// Package ipc implements the typed, correlated, prioritized message fabric
// that lets the browser's logically separated processes (main, renderer,
// network, GPU, storage, utility) exchange requests, responses, and events
// over pluggable transports (§4.1).
//
// [Fabric] is the package's entry point: it owns a table of [Channel]s
// keyed by ID, a pending-response correlation table for send_and_await, and
// one receive-loop goroutine per connected channel. Channels themselves are
// deliberately dumb — state machine, queue, route table — so that handlers
// reference channels by ID through the fabric rather than capturing a
// *Channel directly, breaking the reference cycle described in §9.
package ipc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bassosimone/browsercore/obs"
	"golang.org/x/sync/errgroup"
)

// FabricConfig parameterizes a new [Fabric].
type FabricConfig struct {
	// Logger receives structured diagnostics. Defaults to a discard logger.
	Logger obs.SLogger

	// ErrClassifier labels transport errors for logging/metrics. Defaults to
	// a no-op classifier.
	ErrClassifier obs.ErrClassifier

	// DefaultSerializer is used for channels that don't set one. Defaults
	// to [CompactBinarySerializer].
	DefaultSerializer Serializer

	// HeartbeatInterval controls how often the fabric sends a
	// "system.heartbeat" notification on each connected channel and how
	// often it expects to have seen one from the peer. Zero disables the
	// heartbeat task.
	HeartbeatInterval time.Duration

	// DefaultTimeout bounds [Fabric.SendAndAwait] calls that don't specify
	// their own deadline via ctx.
	DefaultTimeout time.Duration

	// TimeNow is injectable for deterministic tests.
	TimeNow func() time.Time
}

// NewFabricConfig returns a FabricConfig with package defaults.
func NewFabricConfig() *FabricConfig {
	return &FabricConfig{
		Logger:            obs.DefaultSLogger(),
		ErrClassifier:     obs.DefaultErrClassifier,
		DefaultSerializer: CompactBinarySerializer{},
		HeartbeatInterval: 10 * time.Second,
		DefaultTimeout:    30 * time.Second,
		TimeNow:           time.Now,
	}
}

const heartbeatRoute = "system.heartbeat"

// Fabric is the IPC message bus. The zero value is not usable; construct
// with [NewFabric].
type Fabric struct {
	cfg FabricConfig

	mu       sync.RWMutex
	channels map[string]*Channel
	handlers map[string]Handler // fabric-global routes, scoped to no single channel

	pendingMu sync.Mutex
	pending   map[int64]chan *Message
}

// NewFabric constructs a Fabric. Pass nil for package defaults.
func NewFabric(cfg *FabricConfig) *Fabric {
	if cfg == nil {
		cfg = NewFabricConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = obs.DefaultSLogger()
	}
	if cfg.ErrClassifier == nil {
		cfg.ErrClassifier = obs.DefaultErrClassifier
	}
	if cfg.DefaultSerializer == nil {
		cfg.DefaultSerializer = CompactBinarySerializer{}
	}
	if cfg.TimeNow == nil {
		cfg.TimeNow = time.Now
	}
	return &Fabric{
		cfg:      *cfg,
		channels: make(map[string]*Channel),
		handlers: make(map[string]Handler),
		pending:  make(map[int64]chan *Message),
	}
}

// RegisterHandler binds a route to a handler at fabric scope: it applies to
// every channel that has no more specific channel-local handler for the
// same route.
func (f *Fabric) RegisterHandler(route string, h Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[route] = h
}

// Open brings up a new channel: connects its transport, registers it in the
// fabric's table, and starts its receive loop. The returned *Channel's
// RegisterHandler method may be used for channel-local routes.
func (f *Fabric) Open(ctx context.Context, cfg ChannelConfig) (*Channel, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("%w: channel requires a non-empty ID", ErrConfiguration)
	}
	if cfg.Transport == nil {
		return nil, fmt.Errorf("%w: channel %q requires a transport", ErrConfiguration, cfg.ID)
	}
	if cfg.Serializer == nil {
		cfg.Serializer = f.cfg.DefaultSerializer
	}
	if cfg.CompressThreshold == 0 {
		cfg.CompressThreshold = compressThresholdDefault
	}

	f.mu.Lock()
	if _, exists := f.channels[cfg.ID]; exists {
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: channel %q already open", ErrConfiguration, cfg.ID)
	}
	ch := newChannel(cfg)
	f.channels[cfg.ID] = ch
	f.mu.Unlock()

	if err := ch.setState(StateConnecting); err != nil {
		return nil, err
	}
	if err := cfg.Transport.Connect(ctx); err != nil {
		ch.setState(StateError)
		return nil, fmt.Errorf("%w: connecting channel %q: %v", ErrTransient, cfg.ID, err)
	}
	if err := ch.setState(StateConnected); err != nil {
		return nil, err
	}

	f.startReceiveLoop(ch)
	f.cfg.Logger.Info("ipc: channel opened", "channel", cfg.ID, "transport", cfg.Transport.Kind())
	return ch, nil
}

// Close tears down one channel: disconnects its transport and removes it
// from the fabric's table. Pending send_and_await calls on this channel are
// not individually cancelled; they will time out normally.
func (f *Fabric) Close(ch *Channel) error {
	f.mu.Lock()
	delete(f.channels, ch.ID())
	f.mu.Unlock()

	if err := ch.setState(StateDisconnecting); err != nil {
		// Already disconnected/errored; disconnect the transport anyway so
		// resources are released, but don't mask the state error.
		ch.cfg.Transport.Disconnect()
		return err
	}
	err := ch.cfg.Transport.Disconnect()
	ch.setState(StateDisconnected)
	return err
}

// CloseChannel closes the channel with the given ID, if open. It is a
// no-op returning nil when no such channel exists, so a supervisor can call
// it for a process instance that never opened a channel. This satisfies
// [supervisor.ChannelOwner].
func (f *Fabric) CloseChannel(id string) error {
	ch, ok := f.Channel(id)
	if !ok {
		return nil
	}
	return f.Close(ch)
}

// Channel returns the open channel with the given ID, or false if none.
func (f *Fabric) Channel(id string) (*Channel, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ch, ok := f.channels[id]
	return ch, ok
}

// Send enqueues msg on the named channel's outbound queue and then drains
// that queue in priority order, writing each message to the transport. It
// returns once the queue is empty or a write fails; a nil error means the
// transport accepted the frame, not that the peer handled it. Use
// [Fabric.SendAndAwait] when the caller needs the peer's response.
func (f *Fabric) Send(ctx context.Context, channelID string, msg *Message) error {
	ch, ok := f.Channel(channelID)
	if !ok {
		return fmt.Errorf("%w: no channel %q", ErrChannelClosed, channelID)
	}
	if !ch.connected() {
		return fmt.Errorf("%w: channel %q", ErrChannelClosed, channelID)
	}
	if msg.ID == 0 {
		msg.ID = NextMessageID()
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := ch.outbound.Push(msg); err != nil {
		return fmt.Errorf("%w: channel %q: %v", ErrQueueFull, channelID, err)
	}
	return f.drainOne(ctx, ch)
}

// Notify is Send with KindNotification pre-set on a freshly constructed
// message; a convenience for the common one-way case.
func (f *Fabric) Notify(ctx context.Context, channelID, route string, payload any) error {
	msg := NewMessage(KindNotification, route, payload, f.cfg.TimeNow())
	return f.Send(ctx, channelID, msg)
}

// SendAndAwait sends a request message and blocks until a response bearing
// its correlation id arrives, ctx is done, or [FabricConfig.DefaultTimeout]
// elapses (when ctx carries no earlier deadline).
func (f *Fabric) SendAndAwait(ctx context.Context, channelID string, msg *Message) (*Message, error) {
	msg.Kind = KindRequest
	if msg.ID == 0 {
		msg.ID = NextMessageID()
	}
	msg.CorrelationID = msg.ID

	if f.cfg.DefaultTimeout > 0 {
		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, f.cfg.DefaultTimeout)
			defer cancel()
		}
	}

	wait := make(chan *Message, 1)
	f.pendingMu.Lock()
	f.pending[msg.CorrelationID] = wait
	f.pendingMu.Unlock()
	defer func() {
		f.pendingMu.Lock()
		delete(f.pending, msg.CorrelationID)
		f.pendingMu.Unlock()
	}()

	if err := f.Send(ctx, channelID, msg); err != nil {
		return nil, err
	}

	select {
	case resp := <-wait:
		return resp, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	}
}

// drainOne pops and writes as many queued messages as are ready, in
// priority order, stopping when the queue is empty or a write fails.
func (f *Fabric) drainOne(ctx context.Context, ch *Channel) error {
	for {
		msg, ok := ch.outbound.Pop()
		if !ok {
			return nil
		}
		if msg.Expired(f.cfg.TimeNow()) {
			f.cfg.Logger.Debug("ipc: dropping expired message", "channel", ch.ID(), "route", msg.Route)
			continue
		}
		payload, err := ch.cfg.Serializer.Encode(msg)
		if err != nil {
			return err
		}
		frame, err := encodeFrame(payload, ch.cfg.CompressThreshold, ch.cfg.AEAD)
		if err != nil {
			return err
		}
		if err := ch.cfg.Transport.WriteFrame(ctx, frame); err != nil {
			class := f.cfg.ErrClassifier.Classify(err)
			f.cfg.Logger.Debug("ipc: write failed", "channel", ch.ID(), "error_class", class)
			return fmt.Errorf("%w: writing to channel %q: %v", ErrTransient, ch.ID(), err)
		}
	}
}

// startReceiveLoop launches the goroutine that reads frames off a channel's
// transport and dispatches them, following §4.1's four-step resolution
// order: (1) heartbeat route handled internally, (2) pending correlation
// table, (3) channel-local route handler, (4) fabric-global route handler,
// else the message is dropped as [ErrHandlerNotFound].
func (f *Fabric) startReceiveLoop(ch *Channel) {
	ctx, cancel := context.WithCancel(context.Background())
	context.AfterFunc(ctx, func() {
		ch.cfg.Transport.Disconnect()
	})

	go func() {
		defer cancel()
		g, gctx := errgroup.WithContext(ctx)
		for {
			if !ch.connected() {
				return
			}
			frame, err := ch.cfg.Transport.ReadFrame(gctx)
			if err != nil {
				class := f.cfg.ErrClassifier.Classify(err)
				f.cfg.Logger.Debug("ipc: read failed", "channel", ch.ID(), "error_class", class)
				ch.setState(StateError)
				return
			}
			payload, err := decodeFrame(frame, ch.cfg.AEAD)
			if err != nil {
				f.cfg.Logger.Debug("ipc: frame decode failed", "channel", ch.ID(), "error", err.Error())
				continue
			}
			msg, err := ch.cfg.Serializer.Decode(payload)
			if err != nil {
				f.cfg.Logger.Debug("ipc: message decode failed", "channel", ch.ID(), "error", err.Error())
				continue
			}
			g.Go(func() error {
				f.dispatch(gctx, ch, msg)
				return nil
			})
		}
	}()
}

func (f *Fabric) dispatch(ctx context.Context, ch *Channel, msg *Message) {
	if msg.Route == heartbeatRoute {
		ch.recordHeartbeat(true)
		return
	}

	if msg.Kind == KindResponse && msg.CorrelationID != 0 {
		f.pendingMu.Lock()
		wait, ok := f.pending[msg.CorrelationID]
		f.pendingMu.Unlock()
		if ok {
			select {
			case wait <- msg:
			default:
			}
			return
		}
		f.cfg.Logger.Debug("ipc: dropping unmatched response",
			"channel", ch.ID(), "correlation_id", msg.CorrelationID)
		return
	}

	if h, ok := ch.handlerFor(msg.Route); ok {
		h(ctx, msg)
		return
	}

	f.mu.RLock()
	h, ok := f.handlers[msg.Route]
	f.mu.RUnlock()
	if ok {
		h(ctx, msg)
		return
	}

	f.cfg.Logger.Debug("ipc: no handler for route", "channel", ch.ID(), "route", msg.Route)
}

// StartHeartbeat launches the background task that periodically notifies
// every connected channel on "system.heartbeat" and transitions a channel
// to [StateError] after two consecutive missed heartbeats (§3). It runs
// until ctx is done.
func (f *Fabric) StartHeartbeat(ctx context.Context) {
	if f.cfg.HeartbeatInterval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(f.cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				f.beatAll(ctx)
			}
		}
	}()
}

func (f *Fabric) beatAll(ctx context.Context) {
	f.mu.RLock()
	channels := make([]*Channel, 0, len(f.channels))
	for _, ch := range f.channels {
		channels = append(channels, ch)
	}
	f.mu.RUnlock()

	for _, ch := range channels {
		if !ch.connected() {
			continue
		}
		if err := f.Notify(ctx, ch.ID(), heartbeatRoute, nil); err != nil {
			f.cfg.Logger.Debug("ipc: heartbeat send failed", "channel", ch.ID(), "error", err.Error())
		}
		// A heartbeat received from the peer resets the miss counter (see
		// dispatch), so two ticks in a row with none received in between
		// mean two missed heartbeat windows.
		if ch.recordHeartbeat(false) {
			f.cfg.Logger.Info("ipc: channel missed heartbeats, marking errored", "channel", ch.ID())
			ch.setState(StateError)
		}
	}
}
