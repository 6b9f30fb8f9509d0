package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/talowa/go-tier-cache/config"
	"github.com/talowa/go-tier-cache/internal/engine"
	"github.com/talowa/go-tier-cache/internal/failover"
	"github.com/talowa/go-tier-cache/internal/monitoring"
	"github.com/talowa/go-tier-cache/internal/partition"
	"github.com/talowa/go-tier-cache/internal/shared/bytes"
	"github.com/talowa/go-tier-cache/internal/tier"
	"github.com/talowa/go-tier-cache/internal/tier/memory"
)

type Logger interface {
	Interval() time.Duration
	Close() error
}

type Logs struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      *config.Config
	clk      clock.Clock
	logger   *slog.Logger
	engine   *engine.Engine
	failover *failover.Controller
	monitor  *monitoring.Monitor
	registry *partition.Registry
	l1       *memory.Store
	interval time.Duration
}

func New(
	ctx context.Context,
	cfg *config.Config,
	clk clock.Clock,
	logger *slog.Logger,
	eng *engine.Engine,
	fc *failover.Controller,
	monitor *monitoring.Monitor,
	registry *partition.Registry,
	l1 *memory.Store,
) *Logs {
	ctx, cancel := context.WithCancel(ctx)
	interval := 5 * time.Second
	if cfg.Monitoring.Enabled() {
		interval = cfg.Monitoring.TelemetryLogsInterval
	}
	return (&Logs{
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		clk:      clk,
		logger:   logger,
		engine:   eng,
		failover: fc,
		monitor:  monitor,
		registry: registry,
		l1:       l1,
		interval: interval,
	}).run()
}

func (l *Logs) Interval() time.Duration {
	return l.interval
}

func (l *Logs) Close() error {
	l.cancel()
	return nil
}

func (l *Logs) run() *Logs {
	if l.cfg.Monitoring.Enabled() && l.cfg.Monitoring.IsTelemetryLogsEnabled {
		go l.loop()
	}
	return l
}

func (l *Logs) loop() {
	ticker := l.clk.Ticker(l.interval)
	defer ticker.Stop()

	prev := l.engine.EngineCounters()

	for {
		select {
		case <-l.ctx.Done():
			return

		case <-ticker.C:
			cur := l.engine.EngineCounters()
			common := []any{"interval", l.interval.String()}

			l.logger.Info("engine",
				append(common,
					"hits", cur.Hits-prev.Hits,
					"misses", cur.Misses-prev.Misses,
					"writes", cur.Writes-prev.Writes,
					"invalidations", cur.Invalidations-prev.Invalidations,
					"promotions", cur.Promotions-prev.Promotions,
					"promotions_dropped", cur.PromotionsDropped-prev.PromotionsDropped,
					"hit_ratio", l.monitor.HitRatio(),
				)...,
			)

			if d := cur.EvictedItems - prev.EvictedItems; d > 0 || cur.SweepRemoved > prev.SweepRemoved {
				l.logger.Info("evictor",
					append(common,
						"evicted_items", d,
						"evicted_bytes", bytes.FmtMem(uint64(cur.EvictedBytes-prev.EvictedBytes)),
						"sweep_removed", cur.SweepRemoved-prev.SweepRemoved,
					)...,
				)
			}

			states := l.failover.States()
			for _, t := range tier.All() {
				if states[t] != failover.Closed {
					l.logger.Warn("tier degraded",
						append(common, "tier", t.String(), "state", states[t].String())...,
					)
				}
			}

			for _, name := range l.registry.Names() {
				used, entries := l.l1.Occupancy(name)
				monitoring.PartitionOccupancy.WithLabelValues(name).Set(float64(used))
				if pcfg, err := l.registry.ConfigFor(name); err == nil {
					l.logger.Info("partition",
						append(common,
							"name", name,
							"size", bytes.FmtMem(uint64(used)),
							"entries", entries,
							"capacity", bytes.FmtMem(uint64(pcfg.CapacityBytes)),
							"l1_p95", l.monitor.PartitionP95(tier.L1Memory, name).String(),
						)...,
					)
				}
			}

			prev = cur
		}
	}
}
