// SPDX-License-Identifier: GPL-3.0-or-later

package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCombineDetectionsRuleMatchNeverDowngradedByLowClassifierScore(t *testing.T) {
	rule := MatchResult{Matched: true, TrackerKey: "tracker.test", Strategy: StrategyBlock}

	d := CombineDetections(rule, 0.05, true)
	assert.True(t, d.IsTracker)
	assert.Equal(t, StrategyBlock, d.Strategy)
}

func TestCombineDetectionsConfidentClassifierAddsDetectionWithNoRule(t *testing.T) {
	rule := MatchResult{Matched: false}

	d := CombineDetections(rule, 0.9, true)
	assert.True(t, d.IsTracker)
	assert.True(t, d.ClassifierConfid)
}

func TestCombineDetectionsLowConfidenceAndNoRuleAllows(t *testing.T) {
	rule := MatchResult{Matched: false}

	d := CombineDetections(rule, 0.3, true)
	assert.False(t, d.IsTracker)
}

func TestExtractFeaturesDetectsTrackingParamNames(t *testing.T) {
	f := ExtractFeatures("https://example.test/landing?utm_source=newsletter&id=1", true, "text/html")
	assert.True(t, f.HasTrackingParamName)
	assert.Equal(t, 2, f.ParamCount)
	assert.True(t, f.ThirdParty)
}
