package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/talowa/go-tier-cache/internal/tier"
)

// Invalidate deletes the key and the full transitive closure of its
// dependents from every eligible tier. L1 is cleared synchronously so a
// subsequent local read never observes stale data; L2-L4 are cleared
// asynchronously best-effort. Keys are global across partitions, so each
// key is removed from every partition that may hold it. There is no
// emergency short-circuit here: the per-tier eligibility checks skip the
// broken tiers while the healthy ones still get cleared.
func (e *Engine) Invalidate(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}

	closure := append([]string{key}, e.deps.InvalidationClosure(key)...)

	if e.stores[tier.L1Memory] != nil && e.failover.Eligible(tier.L1Memory) {
		var err error
		for _, k := range closure {
			for _, part := range e.registry.Names() {
				if derr := e.l1.Delete(ctx, part, k); derr != nil {
					err = derr
				}
			}
		}
		e.failover.Report(tier.L1Memory, err)
	}

	go e.invalidateSlowTiers(closure)

	for _, k := range closure {
		e.deps.Remove(k)
	}

	e.counters.invalidations.Add(1)
	e.counters.invalidatedKeys.Add(int64(len(closure)))
	return nil
}

// invalidateSlowTiers clears the closure from L2-L4 off the caller's path.
// It runs on the engine context since the caller may be long gone.
func (e *Engine) invalidateSlowTiers(closure []string) {
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
			var lastErr error
			for _, k := range closure {
				for _, part := range e.registry.Names() {
					tctx, cancel := context.WithTimeout(e.ctx, e.cfg.Engine.TierTimeout)
					err := store.Delete(tctx, part, k)
					cancel()
					if err != nil {
						lastErr = err
						e.logger.Debug("invalidation delete failed",
							"tier", t.String(), "partition", part, "key", k, "err", err)
					}
				}
			}
			e.failover.Report(t, lastErr)
			return nil
		})
	}
	_ = g.Wait()
}
