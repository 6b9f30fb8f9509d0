package config

import "time"

// MonitoringCfg configures rolling-window statistics and threshold alerts.
type MonitoringCfg struct {
	// Window is the rolling window over which hit ratio and latency
	// percentiles are computed.
	Window time.Duration `yaml:"window"`

	// MinHitRatio is the floor below which a hit-ratio alert is raised.
	// Range (0..1].
	MinHitRatio float64 `yaml:"min_hit_ratio"`

	// MaxP95Latency is the per-tier p95 latency ceiling above which a
	// latency alert is raised.
	MaxP95Latency time.Duration `yaml:"max_p95_latency"`

	// EvaluateInterval is how often alert thresholds are evaluated.
	EvaluateInterval time.Duration `yaml:"evaluate_interval"`

	// IsTelemetryLogsEnabled turns on the periodic stats log loop.
	IsTelemetryLogsEnabled bool `yaml:"stat_logs_enabled"`

	// TelemetryLogsInterval is the period of the stats log loop.
	TelemetryLogsInterval time.Duration `yaml:"stat_logs_interval"`
}

func (cfg *MonitoringCfg) Enabled() bool {
	return cfg != nil
}

func (cfg *MonitoringCfg) adjust() {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.EvaluateInterval <= 0 {
		cfg.EvaluateInterval = 5 * time.Second
	}
	if cfg.TelemetryLogsInterval <= 0 {
		cfg.TelemetryLogsInterval = 5 * time.Second
	}
}
