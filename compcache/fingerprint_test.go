// SPDX-License-Identifier: GPL-3.0-or-later

package compcache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeFingerprintIsDeterministic(t *testing.T) {
	data := []byte(strings.Repeat("abcdefgh", 2000))
	assert.Equal(t, ComputeFingerprint(data), ComputeFingerprint(append([]byte(nil), data...)))
}

func TestComputeFingerprintDiffersOnLength(t *testing.T) {
	a := []byte(strings.Repeat("x", 100))
	b := []byte(strings.Repeat("x", 101))
	assert.NotEqual(t, ComputeFingerprint(a), ComputeFingerprint(b))
}

func TestComputeFingerprintDiffersOnMiddleContent(t *testing.T) {
	a := []byte(strings.Repeat("a", 20000))
	b := append([]byte(nil), a...)
	b[10000] = 'Z'
	assert.NotEqual(t, ComputeFingerprint(a), ComputeFingerprint(b))
}

func TestComputeFingerprintHandlesShortInput(t *testing.T) {
	assert.NotPanics(t, func() {
		ComputeFingerprint([]byte("short"))
	})
	assert.NotPanics(t, func() {
		ComputeFingerprint(nil)
	})
}
