// SPDX-License-Identifier: GPL-3.0-or-later

package privacy

import "sync"

// Statistics accumulates block counts per (tracker, page) key so the
// embedding host can report what the shield neutralized, per §8 scenario 2.
type Statistics struct {
	mu     sync.Mutex
	blocks map[statKey]int64
}

type statKey struct {
	tracker string
	pageKey string
}

// NewStatistics returns an empty statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{blocks: make(map[statKey]int64)}
}

// RecordBlock increments the block count for (tracker, pageKey).
func (s *Statistics) RecordBlock(tracker, pageKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[statKey{tracker: tracker, pageKey: pageKey}]++
}

// BlockCount returns the current block count for (tracker, pageKey).
func (s *Statistics) BlockCount(tracker, pageKey string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocks[statKey{tracker: tracker, pageKey: pageKey}]
}

// Total returns the sum of all recorded blocks.
func (s *Statistics) Total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, n := range s.blocks {
		total += n
	}
	return total
}
