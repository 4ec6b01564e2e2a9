// SPDX-License-Identifier: GPL-3.0-or-later

package compcache

// Config is the compression cache's slice of the browsercore-wide
// configuration surface (§6).
type Config struct {
	MaxCacheBytes      int64  `mapstructure:"max_cache_bytes" json:"max_cache_bytes"`
	EvictionPolicy     string `mapstructure:"eviction_policy" json:"eviction_policy"` // lru|lfu|ttl|hybrid
	PredictivePatterns int    `mapstructure:"predictive_patterns" json:"predictive_patterns"`
	PredictiveFloor    int    `mapstructure:"predictive_floor" json:"predictive_floor"`
	DefaultLevel       int    `mapstructure:"default_level" json:"default_level"`
	WorkerQueueSize    int    `mapstructure:"worker_queue_size" json:"worker_queue_size"`
}

// DefaultConfig returns the package defaults.
func DefaultConfig() Config {
	return Config{
		MaxCacheBytes:      64 << 20,
		EvictionPolicy:     "hybrid",
		PredictivePatterns: 64,
		PredictiveFloor:    2,
		WorkerQueueSize:    256,
	}
}

func parseEvictionPolicy(s string) EvictionPolicy {
	switch s {
	case "lru":
		return EvictionLRU
	case "lfu":
		return EvictionLFU
	case "ttl":
		return EvictionTTL
	default:
		return EvictionHybrid
	}
}

// Build turns the decoded Config into a live [Engine].
func (c Config) Build() *Engine {
	cfg := NewEngineConfig()
	cfg.MaxCacheBytes = c.MaxCacheBytes
	cfg.EvictionPolicy = parseEvictionPolicy(c.EvictionPolicy)
	cfg.PredictivePatterns = c.PredictivePatterns
	cfg.PredictiveFloor = c.PredictiveFloor
	cfg.DefaultLevel = c.DefaultLevel
	return NewEngine(cfg)
}
