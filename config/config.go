package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config groups configuration of all cache subsystems.
// Optional components can be disabled by setting their section to nil.
type Config struct {
	// Engine configures the tiered lookup/write-through engine itself.
	Engine EngineCfg `yaml:"engine"`

	// Partitions is the fixed partition table. It is read once at startup;
	// there is no runtime reconfiguration.
	Partitions []PartitionCfg `yaml:"partitions"`

	// Compression configures on-the-fly compression of cached payloads.
	// If nil, payloads are always stored raw.
	Compression *CompressionCfg `yaml:"compression"`

	// Failover configures the per-tier circuit breakers.
	Failover FailoverCfg `yaml:"failover"`

	// Monitoring configures rolling-window statistics and threshold alerts.
	// If nil, alerting and the telemetry log loop are disabled; counters are
	// still collected because the failover layer consumes them.
	Monitoring *MonitoringCfg `yaml:"monitoring"`

	// Tiers configures the backing stores behind L2-L4. A nil section means
	// the tier is not deployed and is skipped during the tier walk.
	Tiers TiersCfg `yaml:"tiers"`
}

// AdjustConfig derives virtual fields and fills defaults.
// It must be called once after unmarshalling and before use.
func (cfg *Config) AdjustConfig() {
	cfg.Engine.adjust()
	cfg.Failover.adjust()
	if cfg.Monitoring.Enabled() {
		cfg.Monitoring.adjust()
	}
	for i := range cfg.Partitions {
		cfg.Partitions[i].adjust()
	}
}

// Validate rejects a partition table the engine cannot operate on.
func (cfg *Config) Validate() error {
	if len(cfg.Partitions) == 0 {
		return fmt.Errorf("config: at least one partition is required")
	}
	seen := make(map[string]struct{}, len(cfg.Partitions))
	for i := range cfg.Partitions {
		p := &cfg.Partitions[i]
		if p.Name == "" {
			return fmt.Errorf("config: partition %d has no name", i)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("config: duplicate partition %q", p.Name)
		}
		seen[p.Name] = struct{}{}
		if p.CapacityBytes <= 0 {
			return fmt.Errorf("config: partition %q: capacity must be positive", p.Name)
		}
		if p.EvictionPolicy != EvictionLRU && p.EvictionPolicy != EvictionTTL {
			return fmt.Errorf("config: partition %q: unknown eviction policy %q", p.Name, p.EvictionPolicy)
		}
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config yaml file %s: %w", path, err)
	}

	var cfg *Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml from %s: %w", path, err)
	}
	cfg.AdjustConfig()
	if err = cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
