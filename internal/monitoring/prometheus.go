package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OpsTotal counts tier calls by outcome (hit, miss, error).
	OpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiercache_ops_total",
			Help: "Total tier operations by tier, partition and outcome",
		},
		[]string{"tier", "partition", "outcome"},
	)

	// OpDuration tracks tier call latency.
	OpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tiercache_op_duration_seconds",
			Help:    "Tier operation latency",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		},
		[]string{"tier"},
	)

	// PartitionOccupancy mirrors per-partition stored bytes.
	PartitionOccupancy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tiercache_partition_occupancy_bytes",
			Help: "Stored bytes per partition in the L1 tier",
		},
		[]string{"partition"},
	)

	// TierState mirrors breaker state per tier (0 closed, 1 open, 2 half-open).
	TierState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tiercache_tier_state",
			Help: "Circuit breaker state per tier",
		},
		[]string{"tier"},
	)

	// AlertsActive counts currently firing alerts by kind.
	AlertsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tiercache_alerts_active",
			Help: "Active threshold alerts",
		},
		[]string{"kind"},
	)
)
