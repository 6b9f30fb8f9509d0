package tiercache

import (
	"time"

	"github.com/talowa/go-tier-cache/internal/engine"
	"github.com/talowa/go-tier-cache/internal/tier"
)

// Counters is a point-in-time copy of the engine counters.
type Counters = engine.Counters

// TierStatus is one tier's breaker state.
type TierStatus struct {
	Tier  string
	State string
}

// PartitionOccupancy is one partition's L1 usage.
type PartitionOccupancy struct {
	Name          string
	UsedBytes     int64
	CapacityBytes int64
	Entries       int64
}

// Alert is an active threshold alert.
type Alert struct {
	Kind      string
	Tier      string
	Value     float64
	Threshold float64
	RaisedAt  time.Time
}

// Snapshot is the reporting surface for dashboards: a point-in-time copy
// assembled without holding any engine lock.
type Snapshot struct {
	HitRatio   float64
	Emergency  bool
	Tiers      []TierStatus
	Partitions []PartitionOccupancy
	Alerts     []Alert
	Counters   Counters
	Dependents int
}

func (c *Cache) Snapshot() Snapshot {
	snap := Snapshot{
		HitRatio:   c.monitor.HitRatio(),
		Emergency:  c.fc.Emergency(),
		Counters:   c.eng.EngineCounters(),
		Dependents: c.eng.DependencyCount(),
	}

	states := c.fc.States()
	for _, t := range tier.All() {
		if c.stores[t] == nil {
			continue
		}
		snap.Tiers = append(snap.Tiers, TierStatus{
			Tier:  t.String(),
			State: states[t].String(),
		})
	}

	for _, name := range c.registry.Names() {
		used, entries := c.l1.Occupancy(name)
		pcfg, err := c.registry.ConfigFor(name)
		if err != nil {
			continue
		}
		snap.Partitions = append(snap.Partitions, PartitionOccupancy{
			Name:          name,
			UsedBytes:     used,
			CapacityBytes: pcfg.CapacityBytes,
			Entries:       entries,
		})
	}

	for _, a := range c.monitor.ActiveAlerts() {
		alert := Alert{
			Kind:      string(a.Kind),
			Value:     a.Value,
			Threshold: a.Threshold,
			RaisedAt:  a.RaisedAt,
		}
		if a.Tier >= 0 {
			alert.Tier = a.Tier.String()
		}
		snap.Alerts = append(snap.Alerts, alert)
	}

	return snap
}
