// SPDX-License-Identifier: GPL-3.0-or-later

package ipc

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessage(t *testing.T) {
	now := time.Unix(1700000000, 0)
	msg := NewMessage(KindNotification, "page.load", map[string]string{"url": "https://example.com"}, now)
	require.NotZero(t, msg.ID)
	assert.Equal(t, KindNotification, msg.Kind)
	assert.Equal(t, "page.load", msg.Route)
	assert.Equal(t, PriorityNormal, msg.Priority)
	assert.Equal(t, now, msg.Timestamp)
}

func TestMessageValidate(t *testing.T) {
	now := time.Now()

	t.Run("response without correlation id is a protocol error", func(t *testing.T) {
		msg := NewMessage(KindResponse, "x", nil, now)
		msg.CorrelationID = 0
		err := msg.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrProtocol))
	})

	t.Run("response with correlation id validates", func(t *testing.T) {
		msg := NewMessage(KindResponse, "x", nil, now)
		msg.CorrelationID = 42
		assert.NoError(t, msg.Validate())
	})

	t.Run("notification needs no correlation id", func(t *testing.T) {
		msg := NewMessage(KindNotification, "x", nil, now)
		assert.NoError(t, msg.Validate())
	})
}

func TestMessageExpired(t *testing.T) {
	base := time.Unix(1700000000, 0)

	t.Run("zero TTL never expires", func(t *testing.T) {
		msg := NewMessage(KindEvent, "x", nil, base)
		assert.False(t, msg.Expired(base.Add(time.Hour)))
	})

	t.Run("TTL elapsed", func(t *testing.T) {
		msg := NewMessage(KindEvent, "x", nil, base)
		msg.TTL = time.Second
		assert.False(t, msg.Expired(base.Add(500*time.Millisecond)))
		assert.True(t, msg.Expired(base.Add(2*time.Second)))
	})
}

func TestNextMessageIDMonotonic(t *testing.T) {
	a := NextMessageID()
	b := NextMessageID()
	assert.Greater(t, b, a)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "request", KindRequest.String())
	assert.Equal(t, "response", KindResponse.String())
	assert.Contains(t, Kind(99).String(), "kind(")
}

func TestPriorityString(t *testing.T) {
	assert.Equal(t, "critical", PriorityCritical.String())
	assert.Equal(t, "low", PriorityLow.String())
}
