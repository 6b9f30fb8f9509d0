package config

import "time"

// EngineCfg configures the tier walk and the background workers.
type EngineCfg struct {
	// TierTimeout bounds a single call to one tier store. A timed-out call
	// counts as a failure for that tier and the lookup falls through to the
	// next tier.
	TierTimeout time.Duration `yaml:"tier_timeout"`

	// PromotionsPerSec paces the background promotion worker so write-backs
	// after slow-tier hits cannot storm the faster tiers.
	PromotionsPerSec int `yaml:"promotions_per_sec"`

	// PromotionBurst is how many pacing tokens may be banked while the
	// promotion worker is idle. Defaults to a tenth of PromotionsPerSec.
	PromotionBurst int `yaml:"promotion_burst"`

	// PromotionQueueLen bounds the promotion backlog. When the queue is
	// full, promotions are dropped; the value is still served to the caller.
	PromotionQueueLen int `yaml:"promotion_queue_len"`

	// SweepInterval is the period of the background pass that removes
	// expired entries per partition regardless of capacity pressure.
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// SweepBatch is the maximum number of expired entries removed from one
	// partition per sweep pass.
	SweepBatch int `yaml:"sweep_batch"`
}

func (cfg *EngineCfg) adjust() {
	if cfg.TierTimeout <= 0 {
		cfg.TierTimeout = 2 * time.Second
	}
	if cfg.PromotionsPerSec <= 0 {
		cfg.PromotionsPerSec = 1000
	}
	if cfg.PromotionBurst <= 0 {
		cfg.PromotionBurst = cfg.PromotionsPerSec / 10
		if cfg.PromotionBurst < 1 {
			cfg.PromotionBurst = 1
		}
	}
	if cfg.PromotionQueueLen <= 0 {
		cfg.PromotionQueueLen = 4096
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 30 * time.Second
	}
	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = 1024
	}
}
