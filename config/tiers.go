package config

import "time"

// TiersCfg configures the backing stores behind the external tiers.
// L1 is process-local and always present. A nil section disables the tier.
type TiersCfg struct {
	// Badger configures the L2 persistent store (survives process restart).
	Badger *BadgerCfg `yaml:"badger"`

	// Redis configures the L3 distributed store.
	Redis *RedisCfg `yaml:"redis"`

	// Edge configures the L4 edge/CDN adapter.
	Edge *EdgeCfg `yaml:"edge"`
}

type BadgerCfg struct {
	// Dir is the directory the badger value log and LSM tree live in.
	// It must exist and be writable.
	Dir string `yaml:"dir"`

	// GCInterval is the period of the value-log garbage collection loop.
	GCInterval time.Duration `yaml:"gc_interval"`
}

func (cfg *BadgerCfg) Enabled() bool {
	return cfg != nil
}

type RedisCfg struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// KeyPrefix namespaces every key this instance writes.
	KeyPrefix string `yaml:"key_prefix"`
}

func (cfg *RedisCfg) Enabled() bool {
	return cfg != nil
}

type EdgeCfg struct {
	// BaseURL is the root of the edge cache HTTP API. Objects live at
	// BaseURL/{partition}/{key}.
	BaseURL string `yaml:"base_url"`

	// RequestTimeout bounds a single edge HTTP call, on top of the engine
	// tier timeout.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

func (cfg *EdgeCfg) Enabled() bool {
	return cfg != nil
}
