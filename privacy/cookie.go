// SPDX-License-Identifier: GPL-3.0-or-later

package privacy

import (
	"math"
	"regexp"
	"strings"
	"time"
)

// CookieDecision is the outcome of [CookieEvaluator.Evaluate].
type CookieDecision int

const (
	DecisionAllow CookieDecision = iota
	DecisionBlock
	DecisionPartition
	DecisionModify
	DecisionSessionOnly
)

// String implements [fmt.Stringer].
func (d CookieDecision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionBlock:
		return "block"
	case DecisionPartition:
		return "partition"
	case DecisionModify:
		return "modify"
	case DecisionSessionOnly:
		return "session-only"
	default:
		return "unknown"
	}
}

// Cookie is the subset of Set-Cookie/Cookie fields the shield reasons about.
type Cookie struct {
	Name       string
	Value      string
	Domain     string
	MaxAge     time.Duration
	ThirdParty bool
}

// trackingNamePattern matches well-known tracking cookie name fragments.
var trackingNamePattern = regexp.MustCompile(`(?i)^(_ga|_gid|_fbp|_fbc|__utm|doubleclick|muid|anonid)`)

const (
	highEntropyMinLength = 24
	maxPolicyLifetime    = 7 * 24 * time.Hour
)

// CookieEvaluator applies the four-step decision procedure of §4.6.
type CookieEvaluator struct {
	Policy          CookiePolicy
	ExemptTopLevels map[string]bool
	ExemptDomains   map[string]bool
}

// NewCookieEvaluator builds an evaluator for the given severity, with no
// exemptions configured.
func NewCookieEvaluator(severity Severity) *CookieEvaluator {
	return &CookieEvaluator{
		Policy:          defaultCookiePolicy(severity),
		ExemptTopLevels: map[string]bool{},
		ExemptDomains:   map[string]bool{},
	}
}

// Evaluate decides the disposition of a cookie seen on a page whose
// top-level origin is topLevel.
func (e *CookieEvaluator) Evaluate(topLevel string, c Cookie) (CookieDecision, Cookie) {
	// Step 1: top-level exemption always allows, with lifetime trimmed.
	if e.ExemptTopLevels[topLevel] {
		return DecisionAllow, trimLifetime(c)
	}

	// Step 2: third-party under a blocking policy is blocked unless the
	// cookie's own domain is exempt, in which case it is partitioned.
	if c.ThirdParty && e.Policy == CookieBlocked {
		if e.ExemptDomains[c.Domain] {
			return DecisionPartition, partitionCookie(topLevel, c)
		}
		return DecisionBlock, c
	}
	if c.ThirdParty && e.Policy == CookiePartitioned && !e.ExemptDomains[c.Domain] {
		return DecisionPartition, partitionCookie(topLevel, c)
	}
	if c.ThirdParty && e.Policy == CookieSessionOnly && !e.ExemptDomains[c.Domain] {
		sessionOnly := c
		sessionOnly.MaxAge = 0
		return DecisionSessionOnly, sessionOnly
	}

	// Step 3: tracking-suspect names or high-entropy long values are blocked
	// outright regardless of party.
	if isTrackingSuspect(c) {
		return DecisionBlock, c
	}

	// Step 4: allow, trimming expiry to the policy maximum.
	return DecisionAllow, trimLifetime(c)
}

func isTrackingSuspect(c Cookie) bool {
	if trackingNamePattern.MatchString(c.Name) {
		return true
	}
	return len(c.Value) >= highEntropyMinLength && valueEntropyBits(c.Value) >= 3.5
}

// valueEntropyBits estimates Shannon entropy per byte of v, used only as a
// coarse tracking-suspect signal, not a cryptographic measurement.
func valueEntropyBits(v string) float64 {
	var counts [256]int
	for i := 0; i < len(v); i++ {
		counts[v[i]]++
	}
	var entropy float64
	n := float64(len(v))
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		entropy -= p * math.Log2(p)
	}
	return entropy
}

func trimLifetime(c Cookie) Cookie {
	if c.MaxAge > maxPolicyLifetime {
		c.MaxAge = maxPolicyLifetime
	}
	return c
}

// partitionCookie scopes a third-party cookie to the top-level site by
// prefixing its name with a sanitized top-level domain, per §4.6: this
// places the cookie in a storage jar keyed by (name, topLevel) rather than
// the shared (name, domain) jar, so cross-site linking via a shared cookie
// jar becomes impossible.
func partitionCookie(topLevel string, c Cookie) Cookie {
	c.Name = "part_" + sanitizeDomain(topLevel) + "_" + c.Name
	return c
}

func sanitizeDomain(domain string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(domain) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
