// SPDX-License-Identifier: GPL-3.0-or-later

package privacy

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerMatcherMatchesDomainSuffix(t *testing.T) {
	m := NewTrackerMatcher([]TrackerDefinition{
		{Name: "tracker.test", Domains: []string{"tracker.test"}, Strategy: StrategyBlock},
	}, nil)

	result := m.Match("https://px.tracker.test/px.gif")
	require.True(t, result.Matched)
	assert.Equal(t, "tracker.test", result.TrackerKey)
	assert.Equal(t, StrategyBlock, result.Strategy)
}

func TestTrackerMatcherMatchesRegexPattern(t *testing.T) {
	m := NewTrackerMatcher([]TrackerDefinition{
		{Name: "beacon", Patterns: []*regexp.Regexp{regexp.MustCompile(`/beacon\?`)}, Strategy: StrategyBlock},
	}, nil)

	result := m.Match("https://cdn.test/beacon?id=1")
	assert.True(t, result.Matched)
	assert.Equal(t, "beacon", result.TrackerKey)
}

func TestTrackerMatcherCustomRulePriorityWins(t *testing.T) {
	m := NewTrackerMatcher(
		[]TrackerDefinition{{Name: "builtin", Domains: []string{"ads.test"}, Strategy: StrategyBlock}},
		[]CustomRule{
			{Name: "low", Pattern: regexp.MustCompile(`ads\.test`), Priority: 1, Strategy: StrategyAllow},
			{Name: "high", Pattern: regexp.MustCompile(`ads\.test`), Priority: 10, Strategy: StrategyModify},
		},
	)

	result := m.Match("https://ads.test/banner")
	require.True(t, result.Matched)
	assert.Equal(t, "high", result.TrackerKey)
	assert.Equal(t, StrategyModify, result.Strategy)
}

func TestTrackerMatcherNoMatch(t *testing.T) {
	m := NewTrackerMatcher([]TrackerDefinition{
		{Name: "tracker.test", Domains: []string{"tracker.test"}, Strategy: StrategyBlock},
	}, nil)

	result := m.Match("https://news.test/article")
	assert.False(t, result.Matched)
}

func TestNormalizeURLStableUnderVariation(t *testing.T) {
	a := NormalizeURL("HTTPS://Example.TEST:443/")
	b := NormalizeURL("https://example.test/")
	assert.Equal(t, a, b)
}

func TestTrackerMatchIsStableUnderNormalization(t *testing.T) {
	m := NewTrackerMatcher([]TrackerDefinition{
		{Name: "tracker.test", Domains: []string{"tracker.test"}, Strategy: StrategyBlock},
	}, nil)

	r1 := m.Match("https://TRACKER.test:443/px.gif")
	r2 := m.Match("https://tracker.test/px.gif")
	assert.Equal(t, r1.Matched, r2.Matched)
	assert.Equal(t, r1.TrackerKey, r2.TrackerKey)
}
