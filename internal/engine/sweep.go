package engine

// sweeper periodically removes expired entries per partition regardless of
// capacity pressure. Only L1 needs an active sweep; badger and redis expire
// natively and the edge tier decides retention on its own. The underlying
// removal holds the partition lock per entry, never per pass.
func (e *Engine) sweeper() {
	ticker := e.clk.Ticker(e.cfg.Engine.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.SweepOnce()
		}
	}
}

// SweepOnce runs one expiry pass over every partition. Exported so tests
// and operators can force a pass without waiting on the ticker.
func (e *Engine) SweepOnce() (removed int64) {
	now := e.clk.Now()
	for _, part := range e.registry.Names() {
		keys := e.l1.SweepExpired(part, now, e.cfg.Engine.SweepBatch)
		removed += int64(len(keys))
	}
	if removed > 0 {
		e.counters.sweepRemoved.Add(removed)
		e.logger.Debug("expiry sweep", "removed", removed)
	}
	return removed
}
