// SPDX-License-Identifier: GPL-3.0-or-later

package privacy

import (
	"net/url"

	"github.com/bassosimone/browsercore/obs"
)

// Request is the subset of an outbound request the shield reasons about.
type Request struct {
	URL          string
	SourceOrigin string
	ThirdParty   bool
	ContentType  string
}

// ShieldConfig configures a [Shield].
type ShieldConfig struct {
	Severity    Severity
	Definitions []TrackerDefinition
	CustomRules []CustomRule
	Classifier  Classifier

	ExemptTopLevels map[string]bool
	ExemptDomains   map[string]bool

	DisableIPv6 bool
	DisableTCP  bool
	DisableUDP  bool
	MachineSalt []byte
	SessionSalt []byte

	Logger obs.SLogger
}

// Shield implements the Privacy & Security Shield contract of §4.6:
// should_block, modify_request, process_cookie, sanitize_ice_candidates,
// and evaluate_fingerprint_config.
type Shield struct {
	severity    Severity
	matcher     *TrackerMatcher
	classifier  Classifier
	cookies     *CookieEvaluator
	ice         *ICESanitizer
	fingerprint *FingerprintPolicy
	stats       *Statistics
	logger      obs.SLogger
}

// NewShield builds a shield from cfg, defaulting any unset knob from
// cfg.Severity.
func NewShield(cfg ShieldConfig) *Shield {
	logger := cfg.Logger
	if logger == nil {
		logger = obs.DefaultSLogger()
	}

	cookies := NewCookieEvaluator(cfg.Severity)
	if cfg.ExemptTopLevels != nil {
		cookies.ExemptTopLevels = cfg.ExemptTopLevels
	}
	if cfg.ExemptDomains != nil {
		cookies.ExemptDomains = cfg.ExemptDomains
	}

	ice := NewICESanitizer(defaultICEPolicy(cfg.Severity), cfg.MachineSalt)
	ice.DisableIPv6 = cfg.DisableIPv6
	ice.DisableTCP = cfg.DisableTCP
	ice.DisableUDP = cfg.DisableUDP

	return &Shield{
		severity:    cfg.Severity,
		matcher:     NewTrackerMatcher(cfg.Definitions, cfg.CustomRules),
		classifier:  cfg.Classifier,
		cookies:     cookies,
		ice:         ice,
		fingerprint: NewFingerprintPolicy(cfg.Severity, cfg.SessionSalt),
		stats:       NewStatistics(),
		logger:      logger,
	}
}

// ShouldBlock reports whether req should be blocked, recording a
// [Statistics] entry keyed by the source origin's host when it does.
func (s *Shield) ShouldBlock(req Request) bool {
	detection := s.detect(req)
	if detection.IsTracker && detection.Strategy == StrategyBlock {
		s.stats.RecordBlock(trackerKeyOf(req.URL), pageKeyOf(req.SourceOrigin))
		s.logger.Info("privacy.shield.block", "url", req.URL, "source_origin", req.SourceOrigin)
		return true
	}
	return false
}

// ModifyRequest applies the matched tracker's strategy to req, returning a
// copy whose URL is redirected to an empty-body sink when that strategy is
// block or modify.
func (s *Shield) ModifyRequest(req Request) Request {
	detection := s.detect(req)
	if detection.IsTracker && (detection.Strategy == StrategyBlock || detection.Strategy == StrategyModify) {
		modified := req
		modified.URL = emptyBodySinkURL(req.URL)
		return modified
	}
	return req
}

func (s *Shield) detect(req Request) Detection {
	rule := s.matcher.Match(req.URL)
	if !rule.Matched {
		rule.Strategy = defaultStrategyForUnknownTracker(s.severity)
	}

	score := 0.0
	hasClassifier := s.classifier != nil
	if hasClassifier {
		features := ExtractFeatures(req.URL, req.ThirdParty, req.ContentType)
		score = s.classifier.Predict(features)
	}

	return CombineDetections(rule, score, hasClassifier)
}

// ProcessCookie implements process_cookie from §4.6.
func (s *Shield) ProcessCookie(topLevel string, c Cookie) (CookieDecision, Cookie) {
	return s.cookies.Evaluate(topLevel, c)
}

// SanitizeICECandidates implements sanitize_ice_candidates from §4.6.
func (s *Shield) SanitizeICECandidates(candidates []ICECandidate) []ICECandidate {
	return s.ice.Sanitize(candidates)
}

// EvaluateFingerprintConfig implements evaluate_fingerprint_config from §4.6.
func (s *Shield) EvaluateFingerprintConfig(domain string) FingerprintConfig {
	return s.fingerprint.Evaluate(domain)
}

// Statistics returns the shield's block-count statistics.
func (s *Shield) Statistics() *Statistics {
	return s.stats
}

func trackerKeyOf(requestURL string) string {
	u, err := url.Parse(requestURL)
	if err != nil {
		return requestURL
	}
	return u.Hostname()
}

func pageKeyOf(sourceOrigin string) string {
	u, err := url.Parse(sourceOrigin)
	if err != nil {
		return sourceOrigin
	}
	return u.Hostname()
}

func emptyBodySinkURL(_ string) string {
	return "about:blank#blocked"
}
