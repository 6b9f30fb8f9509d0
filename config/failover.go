package config

import "time"

// FailoverCfg configures the per-tier circuit breakers.
type FailoverCfg struct {
	// FailureThreshold is the number of consecutive failures within Window
	// that trips a breaker from Closed to Open.
	FailureThreshold int `yaml:"failure_threshold"`

	// Window is the sliding window within which consecutive failures are
	// counted. A failure older than Window resets the count.
	Window time.Duration `yaml:"window"`

	// Cooldown is the initial time an Open breaker waits before allowing a
	// single half-open probe.
	Cooldown time.Duration `yaml:"cooldown"`

	// BackoffCap bounds the exponential cooldown growth applied after a
	// failed probe. The cooldown doubles per failed probe up to this cap.
	BackoffCap time.Duration `yaml:"backoff_cap"`
}

func (cfg *FailoverCfg) adjust() {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = 30 * time.Second
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 10 * time.Second
	}
	if cfg.BackoffCap < cfg.Cooldown {
		cfg.BackoffCap = 8 * cfg.Cooldown
	}
}
