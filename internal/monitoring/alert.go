package monitoring

import (
	"time"

	"github.com/talowa/go-tier-cache/internal/tier"
)

type AlertKind string

const (
	// AlertHitRatioLow fires when the rolling hit ratio drops below the
	// configured floor.
	AlertHitRatioLow AlertKind = "hit_ratio_low"

	// AlertLatencyHigh fires when a tier's rolling p95 latency exceeds the
	// configured ceiling.
	AlertLatencyHigh AlertKind = "latency_high"
)

// TierNone marks alerts that are not scoped to a single tier.
const TierNone = tier.ID(-1)

// Alert is a threshold event. Subscribers receive it once when raised and
// once more with Cleared set when the condition recovers.
type Alert struct {
	Kind      AlertKind
	Tier      tier.ID
	Value     float64
	Threshold float64
	RaisedAt  time.Time
	Cleared   bool
}

type alertKey struct {
	kind AlertKind
	tier tier.ID
}
