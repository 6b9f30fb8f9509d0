package engine

import (
	"context"
	"time"

	"github.com/talowa/go-tier-cache/internal/monitoring"
	"github.com/talowa/go-tier-cache/internal/tier"
)

// promotion is one pending write-back of a slow-tier hit into the faster
// tiers that missed. The frame keeps the original deadline; a promoted copy
// never gets a fresh TTL.
type promotion struct {
	partition string
	key       string
	frame     []byte
	expiresAt int64
	targets   []tier.ID
}

// enqueuePromotion never blocks the read path. A full queue drops the
// promotion; the caller already has its value.
func (e *Engine) enqueuePromotion(p promotion) {
	select {
	case e.promoteCh <- p:
	default:
		e.counters.promotionsDropped.Add(1)
	}
}

// promoter drains the promotion queue at the configured pace.
func (e *Engine) promoter() {
	for {
		select {
		case <-e.ctx.Done():
			return
		case p := <-e.promoteCh:
			select {
			case <-e.ctx.Done():
				return
			case <-e.pace.C():
			}
			e.promote(p)
		}
	}
}

func (e *Engine) promote(p promotion) {
	ttl := time.Duration(p.expiresAt - e.clk.Now().UnixNano())
	if ttl <= 0 {
		return
	}

	// While the promotion is in flight the freshly inserted L1 copy stays
	// pinned so concurrent capacity eviction does not immediately throw
	// away what a reader just paid a slow tier for.
	pinned := false
	defer func() {
		if pinned {
			e.l1.Unpin(p.partition, p.key)
		}
	}()

	for _, t := range p.targets {
		store := e.stores[t]
		if store == nil {
			continue
		}

		// L1 admission runs its own eligibility check; checking here too
		// would claim the half-open probe slot twice
		if t == tier.L1Memory {
			if e.promoteIntoL1(p, ttl) {
				pinned = e.l1.Pin(p.partition, p.key)
			}
			continue
		}

		if !e.failover.Eligible(t) {
			e.counters.skippedTiers.Add(1)
			continue
		}

		tctx, cancel := context.WithTimeout(e.ctx, e.cfg.Engine.TierTimeout)
		start := e.clk.Now()
		err := store.Set(tctx, p.partition, p.key, p.frame, ttl)
		cancel()

		e.failover.Report(t, err)
		if err != nil {
			e.monitor.Record(t, p.partition, monitoring.OutcomeError, e.clk.Now().Sub(start))
			e.logger.Debug("promotion failed", "tier", t.String(), "partition", p.partition, "key", p.key, "err", err)
			continue
		}
		e.counters.promotions.Add(1)
	}
}

// promoteIntoL1 runs the same admission path as a write.
func (e *Engine) promoteIntoL1(p promotion, ttl time.Duration) bool {
	pcfg, err := e.registry.ConfigFor(p.partition)
	if err != nil {
		return false
	}
	if !e.admitToL1(e.ctx, pcfg, p.partition, p.key, p.frame, ttl) {
		return false
	}
	e.counters.promotions.Add(1)
	return true
}
