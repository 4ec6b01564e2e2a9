// SPDX-License-Identifier: GPL-3.0-or-later

package compcache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredictiveIndexProposesAfterFrequencyFloor(t *testing.T) {
	idx := NewPredictiveIndex(16, 2)
	sample := []byte(strings.Repeat("template-body", 100))

	idx.Observe(sample, "key-1")
	_, ok := idx.Propose(sample)
	assert.False(t, ok, "a single observation should not cross the frequency floor")

	idx.Observe(sample, "key-1")
	key, ok := idx.Propose(sample)
	assert.True(t, ok)
	assert.Equal(t, "key-1", key)
}

func TestPredictiveIndexRejectsDissimilarInput(t *testing.T) {
	idx := NewPredictiveIndex(16, 1)
	idx.Observe([]byte(strings.Repeat("a", 200)), "key-a")

	_, ok := idx.Propose([]byte(strings.Repeat("z", 200)))
	assert.False(t, ok)
}

func TestPredictiveIndexEvictsLeastFrequentWhenFull(t *testing.T) {
	idx := NewPredictiveIndex(2, 1)
	idx.Observe([]byte(strings.Repeat("a", 50)), "key-a")
	idx.Observe([]byte(strings.Repeat("b", 50)), "key-b")
	idx.Observe([]byte(strings.Repeat("c", 50)), "key-c")

	_, aStillTracked := idx.Propose([]byte(strings.Repeat("a", 50)))
	assert.False(t, aStillTracked, "least frequent pattern should have been evicted")
}

func TestVerifyExactRequiresByteIdenticalContent(t *testing.T) {
	a := []byte("hello world")
	b := []byte("hello world")
	c := []byte("hello worle")

	assert.True(t, VerifyExact(a, b))
	assert.False(t, VerifyExact(a, c))
}

func TestSimilarityScoresIdenticalAsOne(t *testing.T) {
	data := []byte(strings.Repeat("x", 500))
	assert.InDelta(t, 1.0, similarity(data, data), 0.001)
}
