// SPDX-License-Identifier: GPL-3.0-or-later

package netopt

import "fmt"

// Config is the network optimizer's slice of the browsercore-wide
// configuration surface (§6): `network.profile` names one of
// [DefaultProfiles], or ProfileBundle supplies an explicit bundle
// overriding the defaults entirely.
type Config struct {
	ProfileName     string            `mapstructure:"profile" json:"profile"`
	SwitchThreshold float64           `mapstructure:"switch_threshold" json:"switch_threshold"`
	ProfileBundle   []ProfileOverride `mapstructure:"profile_bundle" json:"profile_bundle"`
}

// ProfileOverride is a decoded, named profile for an explicit bundle.
type ProfileOverride struct {
	Name          string  `mapstructure:"name" json:"name"`
	BandwidthMbps float64 `mapstructure:"bandwidth_mbps" json:"bandwidth_mbps"`
	RTTMillis     float64 `mapstructure:"rtt_millis" json:"rtt_millis"`
}

// DefaultConfig returns the package defaults: the "fixed-fast" named
// profile and the 0.3 switch threshold.
func DefaultConfig() Config {
	return Config{ProfileName: "fixed-fast", SwitchThreshold: 0.3}
}

// Build turns the decoded Config into a live [*Optimizer]. When
// ProfileBundle is non-empty it overrides [DefaultProfiles] entirely;
// otherwise ProfileName selects the optimizer's initial profile from the
// defaults.
func (c Config) Build() (*Optimizer, error) {
	cfg := NewOptimizerConfig()
	cfg.SwitchThreshold = c.SwitchThreshold

	if len(c.ProfileBundle) > 0 {
		profiles := make([]Profile, 0, len(c.ProfileBundle))
		for _, p := range c.ProfileBundle {
			profiles = append(profiles, Profile{
				Name:                p.Name,
				TargetBandwidthMbps: p.BandwidthMbps,
				TargetRTTMillis:     p.RTTMillis,
			})
		}
		cfg.Profiles = profiles
	}

	opt := NewOptimizer(cfg)
	if c.ProfileName != "" {
		found := false
		for _, p := range cfg.Profiles {
			if p.Name == c.ProfileName {
				opt.SetProfile(p)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("netopt: unknown profile %q", c.ProfileName)
		}
	}

	return opt, nil
}
