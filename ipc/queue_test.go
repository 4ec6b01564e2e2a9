// SPDX-License-Identifier: GPL-3.0-or-later

package ipc

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msgWithPriority(p Priority) *Message {
	return &Message{ID: NextMessageID(), Priority: p, Timestamp: time.Now()}
}

func TestPriorityQueueOrdering(t *testing.T) {
	q := newPriorityQueue(10)
	low := msgWithPriority(PriorityLow)
	normal := msgWithPriority(PriorityNormal)
	high := msgWithPriority(PriorityHigh)
	critical := msgWithPriority(PriorityCritical)

	require.NoError(t, q.Push(low))
	require.NoError(t, q.Push(normal))
	require.NoError(t, q.Push(high))
	require.NoError(t, q.Push(critical))

	first, ok := q.Pop()
	require.True(t, ok)
	assert.Same(t, critical, first)

	second, ok := q.Pop()
	require.True(t, ok)
	assert.Same(t, high, second)

	third, ok := q.Pop()
	require.True(t, ok)
	assert.Same(t, normal, third)

	fourth, ok := q.Pop()
	require.True(t, ok)
	assert.Same(t, low, fourth)

	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestPriorityQueueFIFOWithinLane(t *testing.T) {
	q := newPriorityQueue(10)
	a := msgWithPriority(PriorityNormal)
	b := msgWithPriority(PriorityNormal)
	require.NoError(t, q.Push(a))
	require.NoError(t, q.Push(b))

	got, _ := q.Pop()
	assert.Same(t, a, got)
	got, _ = q.Pop()
	assert.Same(t, b, got)
}

func TestPriorityQueueBackpressure(t *testing.T) {
	q := newPriorityQueue(2)
	require.NoError(t, q.Push(msgWithPriority(PriorityNormal)))
	require.NoError(t, q.Push(msgWithPriority(PriorityNormal)))

	err := q.Push(msgWithPriority(PriorityNormal))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrQueueFull))
	assert.Equal(t, 2, q.Len())
}

func TestPriorityQueueDrainExpired(t *testing.T) {
	q := newPriorityQueue(10)
	base := time.Now()

	fresh := &Message{ID: NextMessageID(), Priority: PriorityNormal, Timestamp: base, TTL: time.Hour}
	stale := &Message{ID: NextMessageID(), Priority: PriorityNormal, Timestamp: base, TTL: time.Second}
	require.NoError(t, q.Push(fresh))
	require.NoError(t, q.Push(stale))

	expired := q.DrainExpired(func(m *Message) bool {
		return m.Expired(base.Add(time.Minute))
	})

	require.Len(t, expired, 1)
	assert.Same(t, stale, expired[0])
	assert.Equal(t, 1, q.Len())

	remaining, ok := q.Pop()
	require.True(t, ok)
	assert.Same(t, fresh, remaining)
}
