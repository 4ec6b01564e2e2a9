// SPDX-License-Identifier: GPL-3.0-or-later

package privacy

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand"
)

// CanvasMode, WebGLMode, FontMode, and UAMode enumerate per-vector
// attenuation strategies, per §4.6.
type CanvasMode string

const (
	CanvasNoise      CanvasMode = "noise"
	CanvasColorShift CanvasMode = "color-shift"
	CanvasBlock      CanvasMode = "block"
	CanvasFake       CanvasMode = "fake"
)

type WebGLMode string

const (
	WebGLSpoofVendor     WebGLMode = "spoof-vendor"
	WebGLLimitParameters WebGLMode = "limit-parameters"
	WebGLDisable         WebGLMode = "disable"
	WebGLNoise           WebGLMode = "noise"
)

type FontMode string

const (
	FontSubset     FontMode = "subset"
	FontCommonOnly FontMode = "common-only"
	FontRandomize  FontMode = "randomize"
	FontBlock      FontMode = "block"
)

type UAMode string

const (
	UAReal                UAMode = "real"
	UAGeneric             UAMode = "generic"
	UARandomButConsistent UAMode = "random-but-consistent"
	UARotating            UAMode = "rotating"
)

// commonScreenResolutions are the resolution choices consistent-values mode
// picks from, chosen to match common hardware rather than reveal the real one.
var commonScreenResolutions = [][2]int{{1920, 1080}, {1366, 768}, {1440, 900}, {1536, 864}}

// commonLanguages are the language tags consistent-values mode picks from.
var commonLanguages = []string{"en-US", "en-GB", "de-DE", "fr-FR", "es-ES"}

// FingerprintConfig is the per-domain fingerprint-resistance configuration
// returned by evaluate_fingerprint_config in §4.6.
type FingerprintConfig struct {
	Canvas           CanvasMode
	WebGL            WebGLMode
	AudioNoiseLevel  float64
	Fonts            FontMode
	UserAgent        UAMode
	ScreenResolution [2]int
	Language         string
	ConsistentValues bool
}

// FingerprintPolicy derives a [FingerprintConfig] per domain from a
// [Severity] baseline and a per-session salt, so repeated evaluations for
// the same domain within a session return identical pseudo-random choices
// when ConsistentValues is enabled.
type FingerprintPolicy struct {
	Severity         Severity
	ConsistentValues bool
	SessionSalt      []byte
}

// NewFingerprintPolicy builds a policy for the given severity that seeds
// its per-domain choices from the given session salt; it does not generate
// a salt itself.
func NewFingerprintPolicy(severity Severity, sessionSalt []byte) *FingerprintPolicy {
	return &FingerprintPolicy{
		Severity:         severity,
		ConsistentValues: true,
		SessionSalt:      sessionSalt,
	}
}

// Evaluate returns the fingerprint-resistance configuration for domain.
func (p *FingerprintPolicy) Evaluate(domain string) FingerprintConfig {
	rng := p.domainRand(domain)

	cfg := FingerprintConfig{
		ConsistentValues: p.ConsistentValues,
	}

	switch p.Severity {
	case SeverityMild:
		cfg.Canvas = CanvasNoise
		cfg.WebGL = WebGLSpoofVendor
		cfg.AudioNoiseLevel = 0.01
		cfg.Fonts = FontSubset
		cfg.UserAgent = UAReal
	case SeverityStandard:
		cfg.Canvas = CanvasColorShift
		cfg.WebGL = WebGLLimitParameters
		cfg.AudioNoiseLevel = 0.05
		cfg.Fonts = FontCommonOnly
		cfg.UserAgent = UAGeneric
	case SeverityStrict:
		cfg.Canvas = CanvasFake
		cfg.WebGL = WebGLNoise
		cfg.AudioNoiseLevel = 0.15
		cfg.Fonts = FontRandomize
		cfg.UserAgent = UARandomButConsistent
	case SeverityAggressive:
		cfg.Canvas = CanvasBlock
		cfg.WebGL = WebGLDisable
		cfg.AudioNoiseLevel = 0.3
		cfg.Fonts = FontBlock
		cfg.UserAgent = UARotating
	}

	cfg.ScreenResolution = commonScreenResolutions[rng.Intn(len(commonScreenResolutions))]
	cfg.Language = commonLanguages[rng.Intn(len(commonLanguages))]
	return cfg
}

// domainRand returns a deterministic PRNG seeded from the session salt and
// domain name so that, when ConsistentValues is set, the same domain always
// derives the same pseudo-random screen resolution and language within one
// session, but a different session salt yields a different, unlinkable
// choice.
func (p *FingerprintPolicy) domainRand(domain string) *rand.Rand {
	h := sha256.New()
	h.Write(p.SessionSalt)
	h.Write([]byte(domain))
	sum := h.Sum(nil)
	seed := int64(binary.BigEndian.Uint64(sum[:8]))
	return rand.New(rand.NewSource(seed))
}
