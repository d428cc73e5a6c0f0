// Package plane orchestrates the lookup engines: it fans out inserts,
// races or falls back between engines on lookups, and keeps per-engine
// health state current.
package plane

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/softtcam-network/softtcam/pkg/engine"
	"github.com/softtcam-network/softtcam/pkg/util"
)

// Config selects the engines to run and tunes health handling.
type Config struct {
	// Engine selection
	EnableLinear bool `yaml:"enable_linear"`
	EnableBucket bool `yaml:"enable_bucket"`
	EnableHybrid bool `yaml:"enable_hybrid"`

	// WarnThreshold is the consecutive-failure count that degrades an
	// engine; FailoverThreshold is the count that fails it out of
	// dispatch entirely.
	WarnThreshold     uint32 `yaml:"warn_threshold"`
	FailoverThreshold uint32 `yaml:"failover_threshold"`

	// RecoverySuccesses is how many consecutive successful live
	// operations a degraded engine needs to be healthy again.
	RecoverySuccesses uint32 `yaml:"recovery_successes"`

	// HealthProbeInterval is the period of the canary probe that brings
	// failed engines back into rotation. Zero disables probing.
	HealthProbeInterval time.Duration `yaml:"health_probe_interval"`

	// FailoverOrder is the engine priority for ordered lookups,
	// typically fastest first. Defaults to hybrid, bucket, linear.
	FailoverOrder []string `yaml:"failover_order,omitempty"`
}

// DefaultConfig returns the config used when no file overrides it: all
// three engines enabled, degrade on the first failure, fail out on the
// third, recover after five clean operations, probe every ten seconds.
func DefaultConfig() Config {
	return Config{
		EnableLinear:        true,
		EnableBucket:        true,
		EnableHybrid:        true,
		WarnThreshold:       1,
		FailoverThreshold:   3,
		RecoverySuccesses:   5,
		HealthProbeInterval: 10 * time.Second,
		FailoverOrder:       []string{engine.HybridID, engine.BucketID, engine.LinearID},
	}
}

// LoadConfig reads a YAML config file, applying defaults for anything the
// file leaves unset. A missing file yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// UnmarshalYAML decodes the config, leaving any unset field at its
// current (default) value and accepting probe intervals as duration
// strings like "10s".
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	raw := struct {
		EnableLinear        *bool    `yaml:"enable_linear"`
		EnableBucket        *bool    `yaml:"enable_bucket"`
		EnableHybrid        *bool    `yaml:"enable_hybrid"`
		WarnThreshold       *uint32  `yaml:"warn_threshold"`
		FailoverThreshold   *uint32  `yaml:"failover_threshold"`
		RecoverySuccesses   *uint32  `yaml:"recovery_successes"`
		HealthProbeInterval *string  `yaml:"health_probe_interval"`
		FailoverOrder       []string `yaml:"failover_order"`
	}{}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.EnableLinear != nil {
		c.EnableLinear = *raw.EnableLinear
	}
	if raw.EnableBucket != nil {
		c.EnableBucket = *raw.EnableBucket
	}
	if raw.EnableHybrid != nil {
		c.EnableHybrid = *raw.EnableHybrid
	}
	if raw.WarnThreshold != nil {
		c.WarnThreshold = *raw.WarnThreshold
	}
	if raw.FailoverThreshold != nil {
		c.FailoverThreshold = *raw.FailoverThreshold
	}
	if raw.RecoverySuccesses != nil {
		c.RecoverySuccesses = *raw.RecoverySuccesses
	}
	if raw.HealthProbeInterval != nil {
		d, err := time.ParseDuration(*raw.HealthProbeInterval)
		if err != nil {
			return fmt.Errorf("health_probe_interval: %w", err)
		}
		c.HealthProbeInterval = d
	}
	if raw.FailoverOrder != nil {
		c.FailoverOrder = raw.FailoverOrder
	}
	return nil
}

// Validate checks threshold ordering and engine selection.
func (c Config) Validate() error {
	if !c.EnableLinear && !c.EnableBucket && !c.EnableHybrid {
		return fmt.Errorf("%w: no engines enabled", util.ErrInvalidConfig)
	}
	if c.FailoverThreshold == 0 {
		return fmt.Errorf("%w: failover_threshold must be positive", util.ErrInvalidConfig)
	}
	if c.WarnThreshold == 0 {
		return fmt.Errorf("%w: warn_threshold must be positive", util.ErrInvalidConfig)
	}
	if c.WarnThreshold > c.FailoverThreshold {
		return fmt.Errorf("%w: warn_threshold %d above failover_threshold %d",
			util.ErrInvalidConfig, c.WarnThreshold, c.FailoverThreshold)
	}
	for _, id := range c.FailoverOrder {
		switch id {
		case engine.LinearID, engine.BucketID, engine.HybridID:
		default:
			return fmt.Errorf("%w: unknown engine %q in failover_order", util.ErrInvalidConfig, id)
		}
	}
	return nil
}
