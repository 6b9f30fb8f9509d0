package engine

import "sync/atomic"

type counters struct {
	hits              atomic.Int64
	misses            atomic.Int64
	writes            atomic.Int64
	invalidations     atomic.Int64
	invalidatedKeys   atomic.Int64
	promotions        atomic.Int64
	promotionsDropped atomic.Int64
	corruptEntries    atomic.Int64
	expiredOnRead     atomic.Int64
	sweepRemoved      atomic.Int64
	capacityRejected  atomic.Int64
	evictedItems      atomic.Int64
	evictedBytes      atomic.Int64
	passthroughGets   atomic.Int64
	passthroughSets   atomic.Int64
	skippedTiers      atomic.Int64
}

func newCounters() *counters { return &counters{} }

// Counters is a point-in-time copy of the engine counters.
type Counters struct {
	Hits              int64
	Misses            int64
	Writes            int64
	Invalidations     int64
	InvalidatedKeys   int64
	Promotions        int64
	PromotionsDropped int64
	CorruptEntries    int64
	ExpiredOnRead     int64
	SweepRemoved      int64
	CapacityRejected  int64
	EvictedItems      int64
	EvictedBytes      int64
	PassthroughGets   int64
	PassthroughSets   int64
	SkippedTiers      int64
}

func (c *counters) snapshot() Counters {
	return Counters{
		Hits:              c.hits.Load(),
		Misses:            c.misses.Load(),
		Writes:            c.writes.Load(),
		Invalidations:     c.invalidations.Load(),
		InvalidatedKeys:   c.invalidatedKeys.Load(),
		Promotions:        c.promotions.Load(),
		PromotionsDropped: c.promotionsDropped.Load(),
		CorruptEntries:    c.corruptEntries.Load(),
		ExpiredOnRead:     c.expiredOnRead.Load(),
		SweepRemoved:      c.sweepRemoved.Load(),
		CapacityRejected:  c.capacityRejected.Load(),
		EvictedItems:      c.evictedItems.Load(),
		EvictedBytes:      c.evictedBytes.Load(),
		PassthroughGets:   c.passthroughGets.Load(),
		PassthroughSets:   c.passthroughSets.Load(),
		SkippedTiers:      c.skippedTiers.Load(),
	}
}

// EngineCounters returns a snapshot of the engine counters.
func (e *Engine) EngineCounters() Counters { return e.counters.snapshot() }
