// SPDX-License-Identifier: GPL-3.0-or-later

package privacy

import (
	"math"
	"net/url"
	"strings"
)

// RequestFeatures is the feature vector fed to a [Classifier], per §4.6.
type RequestFeatures struct {
	URLEntropy           float64
	URLLength            int
	ParamCount           int
	HasTrackingParamName bool
	ThirdParty           bool
	ContentType          string
	HeaderPatternScore   float64
}

// Classifier maps a feature vector to a tracker probability in [0, 1].
//
// The ML path is optional and strictly additive to rule-based matching: a
// low-confidence classifier score never overrides a high-confidence rule
// match, only a non-match (see [CombineDetections]).
type Classifier interface {
	Predict(f RequestFeatures) float64
}

// confidenceThreshold is the probability above which a classifier
// prediction is treated as a confident tracker signal, per §4.6.
const confidenceThreshold = 0.7

// ClassifierFunc adapts a function to the [Classifier] interface.
type ClassifierFunc func(RequestFeatures) float64

// Predict implements [Classifier].
func (f ClassifierFunc) Predict(features RequestFeatures) float64 { return f(features) }

// ExtractFeatures derives a [RequestFeatures] vector from a request URL and
// a handful of request metadata fields.
func ExtractFeatures(requestURL string, thirdParty bool, contentType string) RequestFeatures {
	u, _ := url.Parse(requestURL)
	query := ""
	if u != nil {
		query = u.RawQuery
	}
	params := strings.Split(query, "&")
	paramCount := 0
	hasTrackingParam := false
	for _, p := range params {
		if p == "" {
			continue
		}
		paramCount++
		name := p
		if idx := strings.IndexByte(p, '='); idx >= 0 {
			name = p[:idx]
		}
		if trackingParamNames[strings.ToLower(name)] {
			hasTrackingParam = true
		}
	}

	return RequestFeatures{
		URLEntropy:           urlEntropy(requestURL),
		URLLength:            len(requestURL),
		ParamCount:           paramCount,
		HasTrackingParamName: hasTrackingParam,
		ThirdParty:           thirdParty,
		ContentType:          contentType,
	}
}

var trackingParamNames = map[string]bool{
	"utm_source": true, "utm_medium": true, "utm_campaign": true,
	"gclid": true, "fbclid": true, "msclkid": true, "click_id": true,
}

func urlEntropy(s string) float64 {
	var counts [256]int
	for i := 0; i < len(s); i++ {
		counts[s[i]]++
	}
	var entropy float64
	n := float64(len(s))
	if n == 0 {
		return 0
	}
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// Detection is a combined rule-based and ML-assisted tracker verdict.
type Detection struct {
	IsTracker        bool
	Strategy         Strategy
	RuleMatched      bool
	ClassifierScore  float64
	ClassifierConfid bool
}

// CombineDetections merges a rule-based [MatchResult] with an optional
// classifier score per the Open Question resolution in §9: the ML path is
// strictly additive. A confident classifier score (>0.7) can mark a
// request a tracker when no rule matched, but a rule match (which already
// carries a concrete [Strategy]) is never downgraded by a low classifier
// score.
func CombineDetections(rule MatchResult, classifierScore float64, hasClassifier bool) Detection {
	confident := hasClassifier && classifierScore > confidenceThreshold

	if rule.Matched {
		return Detection{
			IsTracker:        true,
			Strategy:         rule.Strategy,
			RuleMatched:      true,
			ClassifierScore:  classifierScore,
			ClassifierConfid: confident,
		}
	}

	if confident {
		return Detection{
			IsTracker:        true,
			Strategy:         StrategyBlock,
			RuleMatched:      false,
			ClassifierScore:  classifierScore,
			ClassifierConfid: true,
		}
	}

	return Detection{IsTracker: false, Strategy: StrategyAllow, ClassifierScore: classifierScore}
}
