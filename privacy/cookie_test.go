// SPDX-License-Identifier: GPL-3.0-or-later

package privacy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCookieEvaluatorExemptTopLevelAllows(t *testing.T) {
	e := NewCookieEvaluator(SeverityAggressive)
	e.ExemptTopLevels["bank.test"] = true

	decision, _ := e.Evaluate("bank.test", Cookie{Name: "sid", Value: "x", ThirdParty: true})
	assert.Equal(t, DecisionAllow, decision)
}

func TestCookieEvaluatorBlocksThirdPartyUnderAggressive(t *testing.T) {
	e := NewCookieEvaluator(SeverityAggressive)

	decision, _ := e.Evaluate("a.test", Cookie{Name: "sid", Value: "x", Domain: "cdn.test", ThirdParty: true})
	assert.Equal(t, DecisionBlock, decision)
}

func TestCookieEvaluatorExemptDomainPartitionsInsteadOfBlocking(t *testing.T) {
	e := NewCookieEvaluator(SeverityAggressive)
	e.ExemptDomains["cdn.test"] = true

	decision, modified := e.Evaluate("a.test", Cookie{Name: "sid", Value: "x", Domain: "cdn.test", ThirdParty: true})
	assert.Equal(t, DecisionPartition, decision)
	assert.NotEqual(t, "sid", modified.Name)
}

func TestCookieEvaluatorBlocksTrackingSuspectName(t *testing.T) {
	e := NewCookieEvaluator(SeverityMild)

	decision, _ := e.Evaluate("a.test", Cookie{Name: "_ga", Value: "GA1.2.123456789.987654321"})
	assert.Equal(t, DecisionBlock, decision)
}

func TestCookieEvaluatorAllowsFirstPartyAndTrimsLifetime(t *testing.T) {
	e := NewCookieEvaluator(SeverityMild)

	decision, modified := e.Evaluate("a.test", Cookie{
		Name: "session", Value: "opaque", MaxAge: 365 * 24 * time.Hour,
	})
	assert.Equal(t, DecisionAllow, decision)
	assert.LessOrEqual(t, modified.MaxAge, maxPolicyLifetime)
}
