// SPDX-License-Identifier: GPL-3.0-or-later

package ipc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openPair(t *testing.T, f *Fabric, idA, idB string) (*Channel, *Channel) {
	t.Helper()
	a, b := NewLocalTransportPair(16)
	chA, err := f.Open(context.Background(), ChannelConfig{ID: idA, Transport: a})
	require.NoError(t, err)
	chB, err := f.Open(context.Background(), ChannelConfig{ID: idB, Transport: b})
	require.NoError(t, err)
	return chA, chB
}

func TestFabricOpenRejectsDuplicateID(t *testing.T) {
	f := NewFabric(nil)
	a, _ := NewLocalTransportPair(4)
	_, err := f.Open(context.Background(), ChannelConfig{ID: "dup", Transport: a})
	require.NoError(t, err)

	b, _ := NewLocalTransportPair(4)
	_, err = f.Open(context.Background(), ChannelConfig{ID: "dup", Transport: b})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestFabricOpenRequiresTransport(t *testing.T) {
	f := NewFabric(nil)
	_, err := f.Open(context.Background(), ChannelConfig{ID: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestFabricNotifyDeliversToChannelLocalHandler(t *testing.T) {
	f := NewFabric(nil)
	_, chB := openPair(t, f, "main", "renderer")

	received := make(chan *Message, 1)
	chB.RegisterHandler("page.load", func(ctx context.Context, msg *Message) {
		received <- msg
	})

	err := f.Notify(context.Background(), "main", "page.load", "https://example.com")
	require.NoError(t, err)

	select {
	case msg := <-received:
		assert.Equal(t, "https://example.com", msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification delivery")
	}
}

func TestFabricNotifyFallsBackToGlobalHandler(t *testing.T) {
	f := NewFabric(nil)
	openPair(t, f, "main", "renderer")

	received := make(chan *Message, 1)
	f.RegisterHandler("diagnostics.ping", func(ctx context.Context, msg *Message) {
		received <- msg
	})

	require.NoError(t, f.Notify(context.Background(), "main", "diagnostics.ping", nil))

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for global handler dispatch")
	}
}

func TestFabricSendAndAwaitRoundTrip(t *testing.T) {
	f := NewFabric(nil)
	_, chB := openPair(t, f, "main", "storage")

	chB.RegisterHandler("storage.get", func(ctx context.Context, msg *Message) {
		resp := NewMessage(KindResponse, "storage.get", "cached-value", time.Now())
		resp.CorrelationID = msg.CorrelationID
		require.NoError(t, f.Send(ctx, "storage", resp))
	})

	req := NewMessage(KindRequest, "storage.get", "cookies.db", time.Now())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := f.SendAndAwait(ctx, "main", req)
	require.NoError(t, err)
	assert.Equal(t, "cached-value", resp.Payload)
	assert.Equal(t, req.ID, resp.CorrelationID)
}

func TestFabricSendAndAwaitTimesOutOnNoResponse(t *testing.T) {
	f := NewFabric(nil)
	openPair(t, f, "main", "silent")

	req := NewMessage(KindRequest, "nobody.home", nil, time.Now())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.SendAndAwait(ctx, "main", req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
}

func TestFabricSendAndAwaitDropsLateResponse(t *testing.T) {
	// A response that arrives after the waiter has already timed out and
	// been removed from the pending table must be dropped, not panic or
	// deliver to the wrong caller (§8 scenario 6).
	f := NewFabric(nil)
	_, chB := openPair(t, f, "main", "slow")

	release := make(chan struct{})
	chB.RegisterHandler("slow.op", func(ctx context.Context, msg *Message) {
		<-release
		resp := NewMessage(KindResponse, "slow.op", "too-late", time.Now())
		resp.CorrelationID = msg.CorrelationID
		f.Send(context.Background(), "slow", resp)
	})

	req := NewMessage(KindRequest, "slow.op", nil, time.Now())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := f.SendAndAwait(ctx, "main", req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))

	close(release)
	time.Sleep(50 * time.Millisecond) // let the late response dispatch and be dropped
}

func TestFabricSendRejectsUnknownChannel(t *testing.T) {
	f := NewFabric(nil)
	err := f.Send(context.Background(), "does-not-exist", NewMessage(KindEvent, "x", nil, time.Now()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrChannelClosed))
}

func TestFabricSendQueueFullBackpressure(t *testing.T) {
	f := NewFabric(nil)
	a, _ := NewLocalTransportPair(1)
	_, err := f.Open(context.Background(), ChannelConfig{ID: "tight", Transport: a, QueueSize: 1})
	require.NoError(t, err)

	// Push straight onto the channel's outbound queue, bypassing Send and
	// its drain, so the single slot stays occupied; a second push then
	// exceeds the 1-slot queue cap.
	ch, _ := f.Channel("tight")
	require.NoError(t, ch.outbound.Push(NewMessage(KindEvent, "a", nil, time.Now())))

	err = ch.outbound.Push(NewMessage(KindEvent, "b", nil, time.Now()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrQueueFull))
}

func TestFabricCloseRemovesChannel(t *testing.T) {
	f := NewFabric(nil)
	chA, _ := openPair(t, f, "main", "renderer")

	require.NoError(t, f.Close(chA))
	_, ok := f.Channel("main")
	assert.False(t, ok)
	assert.Equal(t, StateDisconnected, chA.State())
}

func TestFabricHeartbeatMarksChannelErroredAfterMisses(t *testing.T) {
	f := NewFabric(nil)
	chA, _ := openPair(t, f, "main", "renderer")

	require.False(t, chA.recordHeartbeat(false))
	require.True(t, chA.recordHeartbeat(false))
	chA.setState(StateError)
	assert.Equal(t, StateError, chA.State())
}
