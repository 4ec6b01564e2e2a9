// SPDX-License-Identifier: GPL-3.0-or-later

package privacy

import (
	"crypto/rand"
	"regexp"
)

// TrackerDefinitionConfig is the decoded form of a [TrackerDefinition].
type TrackerDefinitionConfig struct {
	Name     string   `mapstructure:"name" json:"name"`
	Domains  []string `mapstructure:"domains" json:"domains"`
	Patterns []string `mapstructure:"patterns" json:"patterns"`
	Strategy string   `mapstructure:"strategy" json:"strategy"`
}

// CustomRuleConfig is the decoded form of a [CustomRule].
type CustomRuleConfig struct {
	Name     string `mapstructure:"name" json:"name"`
	Pattern  string `mapstructure:"pattern" json:"pattern"`
	Priority int    `mapstructure:"priority" json:"priority"`
	Strategy string `mapstructure:"strategy" json:"strategy"`
}

// Config is the privacy shield's slice of the browsercore-wide
// configuration surface (§6): `privacy.tracker.severity`,
// `privacy.cookie.severity`, `privacy.fingerprint.level` collapse to one
// Severity here since the shield applies a single posture across vectors,
// with per-vector overrides layered on top.
type Config struct {
	Severity        string                    `mapstructure:"severity" json:"severity"`
	Definitions     []TrackerDefinitionConfig `mapstructure:"tracker_definitions" json:"tracker_definitions"`
	CustomRules     []CustomRuleConfig        `mapstructure:"custom_rules" json:"custom_rules"`
	ExemptTopLevels []string                  `mapstructure:"exempt_top_levels" json:"exempt_top_levels"`
	ExemptDomains   []string                  `mapstructure:"exempt_domains" json:"exempt_domains"`
	DisableIPv6     bool                      `mapstructure:"disable_ipv6" json:"disable_ipv6"`
	DisableTCP      bool                      `mapstructure:"disable_tcp" json:"disable_tcp"`
	DisableUDP      bool                      `mapstructure:"disable_udp" json:"disable_udp"`
}

// DefaultConfig returns the package defaults: standard severity, a small
// built-in tracker list, and no exemptions.
func DefaultConfig() Config {
	return Config{
		Severity: "standard",
		Definitions: []TrackerDefinitionConfig{
			{Name: "generic-analytics", Domains: []string{"tracker.test", "analytics.test"}, Strategy: "block"},
		},
	}
}

func parseSeverity(s string) Severity {
	switch s {
	case "mild":
		return SeverityMild
	case "strict":
		return SeverityStrict
	case "aggressive":
		return SeverityAggressive
	default:
		return SeverityStandard
	}
}

func parseStrategy(s string) Strategy {
	switch s {
	case "block":
		return StrategyBlock
	case "modify":
		return StrategyModify
	default:
		return StrategyAllow
	}
}

// Build turns the decoded Config into a live [Shield], compiling regex
// patterns and generating a fresh per-machine salt and per-session salt.
func (c Config) Build() (*Shield, error) {
	definitions := make([]TrackerDefinition, 0, len(c.Definitions))
	for _, d := range c.Definitions {
		patterns := make([]*regexp.Regexp, 0, len(d.Patterns))
		for _, p := range d.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, err
			}
			patterns = append(patterns, re)
		}
		definitions = append(definitions, TrackerDefinition{
			Name:     d.Name,
			Domains:  d.Domains,
			Patterns: patterns,
			Strategy: parseStrategy(d.Strategy),
		})
	}

	rules := make([]CustomRule, 0, len(c.CustomRules))
	for _, r := range c.CustomRules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, err
		}
		rules = append(rules, CustomRule{
			Name:     r.Name,
			Pattern:  re,
			Priority: r.Priority,
			Strategy: parseStrategy(r.Strategy),
		})
	}

	machineSalt := make([]byte, 32)
	if _, err := rand.Read(machineSalt); err != nil {
		return nil, err
	}
	sessionSalt := make([]byte, 32)
	if _, err := rand.Read(sessionSalt); err != nil {
		return nil, err
	}

	return NewShield(ShieldConfig{
		Severity:        parseSeverity(c.Severity),
		Definitions:     definitions,
		CustomRules:     rules,
		ExemptTopLevels: toSet(c.ExemptTopLevels),
		ExemptDomains:   toSet(c.ExemptDomains),
		DisableIPv6:     c.DisableIPv6,
		DisableTCP:      c.DisableTCP,
		DisableUDP:      c.DisableUDP,
		MachineSalt:     machineSalt,
		SessionSalt:     sessionSalt,
	}), nil
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
