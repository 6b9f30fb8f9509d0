package engine

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/talowa/go-tier-cache/config"
	"github.com/talowa/go-tier-cache/internal/model"
	"github.com/talowa/go-tier-cache/internal/monitoring"
	"github.com/talowa/go-tier-cache/internal/tier"
)

// Set writes the entry through to every eligible tier. The write succeeds
// only if L1 accepts it; failures in L2-L4 are logged and recorded but
// non-fatal. Only an invalid partition or a malformed key surface to the
// caller.
func (e *Engine) Set(ctx context.Context, part, key string, value []byte, opts SetOptions) error {
	pcfg, err := e.registry.ConfigFor(part)
	if err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrMalformedKey)
	}

	if e.failover.Emergency() {
		e.counters.passthroughSets.Add(1)
		return nil
	}

	now := e.clk.Now()
	ttl := pcfg.TTL
	if opts.TTL > 0 {
		ttl = opts.TTL
	}

	entry := model.NewEntry(part, key, now, ttl)
	entry.RawSize = int64(len(value))
	entry.Dependencies = opts.Dependencies
	entry.Payload, entry.Compressed = e.compressor.Compress(value)
	for _, t := range tier.All() {
		if e.stores[t] != nil {
			entry.TierMask.Set(int(t))
		}
	}

	frame := model.Encode(entry)

	if !e.admitToL1(ctx, pcfg, part, key, frame, ttl) {
		// write-through requires L1; without it the write is dropped
		return nil
	}

	e.fanOutWrite(ctx, part, key, frame, ttl)

	for _, src := range opts.Dependencies {
		e.deps.AddDependency(key, src)
	}

	e.counters.writes.Add(1)
	return nil
}

// admitToL1 enforces partition capacity and inserts the frame into L1.
// The partition admission lock covers eviction plus insert so concurrent
// writers cannot overshoot the capacity bound; it is a tier-local section
// and is never held across an external tier call.
func (e *Engine) admitToL1(ctx context.Context, pcfg *config.PartitionCfg, part, key string, frame []byte, ttl time.Duration) bool {
	need := int64(len(frame))
	if need > pcfg.CapacityBytes {
		e.rejectCapacity(part, key, need, pcfg.CapacityBytes)
		return false
	}

	if !e.failover.Eligible(tier.L1Memory) {
		e.counters.skippedTiers.Add(1)
		return false
	}

	lock := e.locks[part]
	lock.Lock()

	used, _ := e.l1.Occupancy(part)
	if used+need > pcfg.CapacityBytes {
		freed, evicted, fits := e.l1.EvictUntilFits(part, need, pcfg.CapacityBytes, pcfg.EvictionPolicy)
		e.counters.evictedItems.Add(evicted)
		e.counters.evictedBytes.Add(freed)
		if !fits {
			lock.Unlock()
			// a full partition says nothing about tier health; return the
			// breaker claim instead of reporting an outcome
			e.failover.Release(tier.L1Memory)
			e.rejectCapacity(part, key, need, pcfg.CapacityBytes)
			return false
		}
	}

	start := e.clk.Now()
	err := e.l1.Set(ctx, part, key, frame, ttl)
	lock.Unlock()

	e.failover.Report(tier.L1Memory, err)
	if err != nil {
		e.monitor.Record(tier.L1Memory, part, monitoring.OutcomeError, e.clk.Now().Sub(start))
		e.logger.Warn("l1 write failed", "partition", part, "key", key, "err", err)
		return false
	}
	return true
}

func (e *Engine) rejectCapacity(part, key string, need, capacity int64) {
	e.counters.capacityRejected.Add(1)
	e.monitor.Record(tier.L1Memory, part, monitoring.OutcomeError, 0)
	e.logger.Warn("write rejected by partition capacity",
		"partition", part, "key", key, "need_bytes", need, "capacity_bytes", capacity,
		"err", ErrCapacityExceeded)
}

// fanOutWrite propagates the frame to the slower tiers synchronously
// (write-through, not write-back). Each tier gets its own timeout; one slow
// or failing tier never cancels the others.
func (e *Engine) fanOutWrite(ctx context.Context, part, key string, frame []byte, ttl time.Duration) {
	var g errgroup.Group
	for _, t := range []tier.ID{tier.L2Persistent, tier.L3Distributed, tier.L4Edge} {
		store := e.stores[t]
		if store == nil {
			continue
		}
		if !e.failover.Eligible(t) {
			e.counters.skippedTiers.Add(1)
			continue
		}

		t := t
		g.Go(func() error {
			tctx, cancel := context.WithTimeout(ctx, e.cfg.Engine.TierTimeout)
			defer cancel()

			start := e.clk.Now()
			err := store.Set(tctx, part, key, frame, ttl)
			lat := e.clk.Now().Sub(start)

			e.failover.Report(t, err)
			if err != nil {
				e.monitor.Record(t, part, monitoring.OutcomeError, lat)
				e.logger.Warn("write-through failed", "tier", t.String(), "partition", part, "key", key, "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}
