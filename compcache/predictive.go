// SPDX-License-Identifier: GPL-3.0-or-later

package compcache

import (
	"bytes"
	"sync"
)

// similarityThreshold is the minimum byte-vector similarity (§4.5: 0.7)
// a new input's signature must reach against a known pattern before the
// predictive path attempts reuse.
const similarityThreshold = 0.7

// patternSignature is a short sampled byte vector tracked for frequency,
// paired with the cache key it led to on the occasion it was recorded.
type patternSignature struct {
	sample    []byte
	frequency int
	key       string
}

// PredictiveIndex maintains a small population of [patternSignature]s and
// proposes a cache key to try before falling back to compressing from
// scratch, per §4.5's predictive reuse rule. The cache entry returned by a
// proposal must still be verified against the full input before use (see
// [VerifyExact]) to rule out false matches.
type PredictiveIndex struct {
	mu              sync.Mutex
	patterns        []*patternSignature
	maxPatterns     int
	frequencyFloor  int
}

// NewPredictiveIndex returns an empty [*PredictiveIndex] bounded to
// maxPatterns tracked signatures, proposing reuse only once a pattern's
// frequency reaches frequencyFloor.
func NewPredictiveIndex(maxPatterns, frequencyFloor int) *PredictiveIndex {
	if maxPatterns <= 0 {
		maxPatterns = 64
	}
	if frequencyFloor <= 0 {
		frequencyFloor = 2
	}
	return &PredictiveIndex{maxPatterns: maxPatterns, frequencyFloor: frequencyFloor}
}

// Observe records that input sample was compressed under key, bumping an
// existing matching pattern's frequency or adding a new one.
func (p *PredictiveIndex) Observe(sample []byte, key string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, pat := range p.patterns {
		if similarity(pat.sample, sample) >= similarityThreshold {
			pat.frequency++
			pat.key = key
			return
		}
	}

	if len(p.patterns) >= p.maxPatterns {
		p.evictLeastFrequentLocked()
	}
	p.patterns = append(p.patterns, &patternSignature{sample: cloneSample(sample), frequency: 1, key: key})
}

func (p *PredictiveIndex) evictLeastFrequentLocked() {
	if len(p.patterns) == 0 {
		return
	}
	minIdx := 0
	for i, pat := range p.patterns {
		if pat.frequency < p.patterns[minIdx].frequency {
			minIdx = i
		}
	}
	p.patterns = append(p.patterns[:minIdx], p.patterns[minIdx+1:]...)
}

// Propose returns the cache key of a pattern whose frequency has crossed
// frequencyFloor and whose similarity to sample is at least
// similarityThreshold, or "" if none qualifies.
func (p *PredictiveIndex) Propose(sample []byte) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var best *patternSignature
	var bestSim float64
	for _, pat := range p.patterns {
		if pat.frequency < p.frequencyFloor {
			continue
		}
		sim := similarity(pat.sample, sample)
		if sim >= similarityThreshold && sim > bestSim {
			best = pat
			bestSim = sim
		}
	}
	if best == nil {
		return "", false
	}
	return best.key, true
}

func cloneSample(sample []byte) []byte {
	out := make([]byte, len(sample))
	copy(out, sample)
	return out
}

// similarity returns a coarse [0,1] byte-vector similarity: the fraction
// of the shorter sample's bytes that match the longer sample at the same
// offset, scaled down by a length-ratio penalty so very differently sized
// inputs never score highly.
func similarity(a, b []byte) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	matches := 0
	for i := 0; i < n; i++ {
		if a[i] == b[i] {
			matches++
		}
	}
	byteScore := float64(matches) / float64(n)

	longer, shorter := len(a), len(b)
	if shorter > longer {
		longer, shorter = shorter, longer
	}
	lengthScore := float64(shorter) / float64(longer)

	return byteScore * lengthScore
}

// VerifyExact reports whether candidate is byte-identical to original,
// the mandatory verification step before returning a predictive-reuse
// result (§4.5: "exact content equality before returning, to avoid false
// matches").
func VerifyExact(original, candidate []byte) bool {
	return bytes.Equal(original, candidate)
}
