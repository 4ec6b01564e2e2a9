// SPDX-License-Identifier: GPL-3.0-or-later

package ipc

import "time"

// Config is the IPC fabric's slice of the browsercore-wide configuration
// surface (§6).
type Config struct {
	// BufferSize is decoded from ipc.buffer_size but not passed on by
	// [Config.Build]; no transport reads it. [TCPTransport] bounds each
	// frame by [maxTCPFrameSize].
	BufferSize int `mapstructure:"buffer_size" json:"buffer_size"`

	// QueueSize is decoded from ipc.queue_size but not passed on by
	// [Config.Build]; a channel's queue size comes from
	// [ChannelConfig.QueueSize], which defaults to 256 when zero.
	QueueSize int `mapstructure:"queue_size" json:"queue_size"`

	HeartbeatMillis      int64 `mapstructure:"heartbeat_ms" json:"heartbeat_ms"`
	DefaultTimeoutMillis int64 `mapstructure:"default_timeout_ms" json:"default_timeout_ms"`
}

// DefaultConfig returns the package defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize:           64 * 1024,
		QueueSize:            256,
		HeartbeatMillis:      10_000,
		DefaultTimeoutMillis: 30_000,
	}
}

// Build turns the decoded Config into a [*FabricConfig].
func (c Config) Build() *FabricConfig {
	cfg := NewFabricConfig()
	cfg.HeartbeatInterval = time.Duration(c.HeartbeatMillis) * time.Millisecond
	cfg.DefaultTimeout = time.Duration(c.DefaultTimeoutMillis) * time.Millisecond
	return cfg
}
