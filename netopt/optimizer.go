// SPDX-License-Identifier: GPL-3.0-or-later

package netopt

import (
	"math"
	"sync"
)

// Observation is a sample of current network conditions, the input to
// [Optimizer.ChooseProfile] and [Optimizer.OptimizeForObserved].
type Observation struct {
	BandwidthMbps float64
	RTTMillis     float64
	LossPct       float64
	NetworkType   NetworkType
}

// OptimizerConfig parameterizes a new [Optimizer].
type OptimizerConfig struct {
	Profiles []Profile

	// SwitchThreshold is the minimum score improvement over the current
	// profile required before the optimizer switches (§4.2, default 0.3),
	// suppressing flapping between near-equivalent profiles.
	SwitchThreshold float64
}

// NewOptimizerConfig returns an OptimizerConfig using [DefaultProfiles] and
// the package-default 0.3 switch threshold.
func NewOptimizerConfig() *OptimizerConfig {
	return &OptimizerConfig{
		Profiles:        DefaultProfiles(),
		SwitchThreshold: 0.3,
	}
}

// Optimizer selects and tunes a [Profile] from observed network conditions.
type Optimizer struct {
	cfg OptimizerConfig

	mu      sync.Mutex
	current *Profile
}

// NewOptimizer constructs an Optimizer. Pass nil for package defaults.
func NewOptimizer(cfg *OptimizerConfig) *Optimizer {
	if cfg == nil {
		cfg = NewOptimizerConfig()
	}
	if cfg.SwitchThreshold <= 0 {
		cfg.SwitchThreshold = 0.3
	}
	return &Optimizer{cfg: *cfg}
}

// score computes the weighted bandwidth/latency/loss score of p against o,
// per §4.2: bandwidth weight 0.3, latency weight 0.5, loss weight 0.2, each
// term expressed as the smaller of the two observed/target ratios so that
// both over- and under-shoot are penalized symmetrically.
func score(p Profile, o Observation) float64 {
	bandwidthTerm := ratioTerm(o.BandwidthMbps, p.TargetBandwidthMbps)
	latencyTerm := ratioTerm(p.TargetRTTMillis, o.RTTMillis) // lower RTT is better: invert args
	lossTerm := lossTermFor(o.LossPct, p.TargetLossPct)
	return 0.3*bandwidthTerm + 0.5*latencyTerm + 0.2*lossTerm
}

func ratioTerm(observed, target float64) float64 {
	if observed <= 0 || target <= 0 {
		return 0
	}
	a := observed / target
	b := target / observed
	return math.Min(a, b)
}

// lossTermFor floors near-zero observed loss so a profile targeting near-0%
// loss isn't unfairly penalized by floating-point noise around 0.
func lossTermFor(observedLossPct, targetLossPct float64) float64 {
	const floor = 0.01
	observed := math.Max(observedLossPct, floor)
	target := math.Max(targetLossPct, floor)
	return ratioTerm(observed, target)
}

// ChooseProfile scores every configured profile against the observation and
// returns the best-scoring one. It does not consult or update the
// optimizer's notion of the "current" profile; see [Optimizer.OptimizeForObserved]
// for the flap-suppressing variant that does.
func (o *Optimizer) ChooseProfile(o2 Observation) Profile {
	best := o.cfg.Profiles[0]
	bestScore := score(best, o2)
	for _, p := range o.cfg.Profiles[1:] {
		s := score(p, o2)
		if s > bestScore {
			best, bestScore = p, s
		}
	}
	return best
}

// OptimizeForObserved returns the profile the optimizer should now be using:
// the best-scoring candidate, tuned per observed conditions, but only
// switching away from the current profile when the candidate's score beats
// it by at least [OptimizerConfig.SwitchThreshold].
func (o *Optimizer) OptimizeForObserved(obs Observation) Profile {
	o.mu.Lock()
	defer o.mu.Unlock()

	best := o.cfg.Profiles[0]
	bestScore := score(best, obs)
	for _, p := range o.cfg.Profiles[1:] {
		s := score(p, obs)
		if s > bestScore {
			best, bestScore = p, s
		}
	}

	if o.current != nil {
		currentScore := score(*o.current, obs)
		if bestScore-currentScore < o.cfg.SwitchThreshold {
			best = *o.current
		}
	}

	tuned := tune(best, obs)
	o.current = &tuned
	return tuned
}

// SetProfile forces the optimizer's current profile, bypassing scoring.
// Used to seed a specific named profile at startup before any observation
// has been made.
func (o *Optimizer) SetProfile(p Profile) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.current = &p
}

// GetActiveHTTP3Settings returns the currently-active profile, or the first
// configured profile if neither OptimizeForObserved nor SetProfile has run.
func (o *Optimizer) GetActiveHTTP3Settings() Profile {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current != nil {
		return *o.current
	}
	return o.cfg.Profiles[0]
}

// tune adapts specific knobs to the observation per §4.2 Dynamic tuning.
func tune(p Profile, o Observation) Profile {
	tuned := p.Clone()

	// Bandwidth-delay product, converting Mbps and ms into bytes.
	bandwidthBytesPerSec := o.BandwidthMbps * 1_000_000 / 8
	bdpBytes := bandwidthBytesPerSec * (o.RTTMillis / 1000)
	if bdpBytes > 0 {
		tuned.InitialMaxData = int64(bdpBytes)
	}
	tuned.MaxAckDelayMillis = maxAckDelayMillis(o.RTTMillis)

	// max stream count proportional to bandwidth: roughly one stream per
	// 2 Mbps of observed bandwidth, bounded to a sane range.
	if o.BandwidthMbps > 0 {
		streams := int(o.BandwidthMbps / 2)
		tuned.MaxStreams = clampInt(streams, 4, 256)
	}

	switch {
	case o.LossPct >= 5:
		tuned.RetransmissionFactor = 2.0
	case o.LossPct >= 1:
		tuned.RetransmissionFactor = 1.5
	default:
		tuned.RetransmissionFactor = 1.0
	}

	switch o.NetworkType {
	case NetworkCellular:
		tuned.CongestionAlgorithm = CongestionBBR
		tuned.MultipathMode = MultipathHandover
	case NetworkEthernet:
		tuned.CongestionAlgorithm = CongestionCUBIC
		tuned.MultipathMode = MultipathAggregation
	}

	return tuned
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// maxAckDelayMillis returns RTT/10 bounded to [1, 25] ms, per §4.2.
func maxAckDelayMillis(rttMillis float64) float64 {
	v := rttMillis / 10
	if v < 1 {
		return 1
	}
	if v > 25 {
		return 25
	}
	return v
}
