// SPDX-License-Identifier: GPL-3.0-or-later

// Package config aggregates every subsystem's configuration slice into the
// single startup surface of §6, decoded by viper and handed to each
// subsystem's own Build method.
package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/bassosimone/browsercore/compcache"
	"github.com/bassosimone/browsercore/dnsresolver"
	"github.com/bassosimone/browsercore/ipc"
	"github.com/bassosimone/browsercore/netopt"
	"github.com/bassosimone/browsercore/privacy"
	"github.com/bassosimone/browsercore/supervisor"
)

// SecurityLevel is the named security posture of §6.
type SecurityLevel string

const (
	SecurityLow      SecurityLevel = "low"
	SecurityMedium   SecurityLevel = "medium"
	SecurityHigh     SecurityLevel = "high"
	SecurityVeryHigh SecurityLevel = "very-high"
	SecurityCustom   SecurityLevel = "custom"
)

// SecurityConfig is the `security.*` slice of §6's configuration surface.
type SecurityConfig struct {
	Level    SecurityLevel `mapstructure:"level" json:"level"`
	Features []string      `mapstructure:"features" json:"features"`
}

// Config is the browsercore-wide configuration surface of §6, one field
// per subsystem.
type Config struct {
	Security   SecurityConfig     `mapstructure:"security" json:"security"`
	Network    netopt.Config      `mapstructure:"network" json:"network"`
	IPC        ipc.Config         `mapstructure:"ipc" json:"ipc"`
	DNS        dnsresolver.Config `mapstructure:"dns" json:"dns"`
	Cache      compcache.Config   `mapstructure:"cache" json:"cache"`
	Privacy    privacy.Config     `mapstructure:"privacy" json:"privacy"`
	Supervisor supervisor.Config  `mapstructure:"supervisor" json:"supervisor"`
}

// DefaultConfig returns package defaults for every subsystem.
func DefaultConfig() Config {
	return Config{
		Security:   SecurityConfig{Level: SecurityMedium},
		Network:    netopt.DefaultConfig(),
		IPC:        ipc.DefaultConfig(),
		DNS:        dnsresolver.DefaultConfig(),
		Cache:      compcache.DefaultConfig(),
		Privacy:    privacy.DefaultConfig(),
		Supervisor: supervisor.DefaultConfig(),
	}
}

// Load reads configuration from path (if non-empty), environment
// variables prefixed BROWSERCORE_, and flags already bound to v, merging
// over [DefaultConfig]'s values.
func Load(v *viper.Viper, path string) (Config, error) {
	cfg := DefaultConfig()

	// AutomaticEnv only overrides keys viper already knows about, so seed
	// every default key (including nested ones) before binding env, per
	// viper's documented Unmarshal+AutomaticEnv requirement.
	defaults, err := toMap(cfg)
	if err != nil {
		return cfg, fmt.Errorf("config: seed defaults: %w", err)
	}
	if err := v.MergeConfigMap(defaults); err != nil {
		return cfg, fmt.Errorf("config: seed defaults: %w", err)
	}

	v.SetEnvPrefix("browsercore")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("config: decode: %w", err)
	}

	return cfg, nil
}

// toMap round-trips cfg through JSON to produce the map[string]interface{}
// viper's MergeConfigMap expects, since viper has no native struct encoder.
func toMap(cfg Config) (map[string]interface{}, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
