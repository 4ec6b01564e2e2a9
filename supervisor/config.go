// SPDX-License-Identifier: GPL-3.0-or-later

package supervisor

import "time"

// Config is the supervisor's slice of the browsercore-wide configuration
// surface (§6).
type Config struct {
	MaxRestarts    int           `mapstructure:"max_restarts" json:"max_restarts"`
	BackoffInitial time.Duration `mapstructure:"backoff_initial" json:"backoff_initial"`
	BackoffMax     time.Duration `mapstructure:"backoff_max" json:"backoff_max"`
	ShutdownGrace  time.Duration `mapstructure:"shutdown_grace" json:"shutdown_grace"`
}

// DefaultConfig returns the package defaults: 5 restarts, 200ms-30s
// backoff, 10s shutdown grace.
func DefaultConfig() Config {
	return Config{
		MaxRestarts:    5,
		BackoffInitial: 200 * time.Millisecond,
		BackoffMax:     30 * time.Second,
		ShutdownGrace:  10 * time.Second,
	}
}

// Backoff builds a [BackoffPolicy] from the decoded config.
func (c Config) Backoff() BackoffPolicy {
	return BackoffPolicy{Initial: c.BackoffInitial, Max: c.BackoffMax, Multiplier: 2}
}
