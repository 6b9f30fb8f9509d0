// Package engine orchestrates the tiered lookup: tier walk with promotion
// on reads, write-through on writes, dependency-cascade invalidation and
// background TTL sweeps. Every tier access goes through the failover
// controller and is recorded into monitoring.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/talowa/go-tier-cache/config"
	"github.com/talowa/go-tier-cache/internal/compress"
	"github.com/talowa/go-tier-cache/internal/failover"
	"github.com/talowa/go-tier-cache/internal/graph"
	"github.com/talowa/go-tier-cache/internal/model"
	"github.com/talowa/go-tier-cache/internal/monitoring"
	"github.com/talowa/go-tier-cache/internal/partition"
	"github.com/talowa/go-tier-cache/internal/shared/rate"
	"github.com/talowa/go-tier-cache/internal/tier"
	"github.com/talowa/go-tier-cache/internal/tier/memory"
)

// ErrCapacityExceeded reports a write that could not be admitted into L1
// even after eviction. It never propagates to callers; the write is dropped
// and the condition is visible through monitoring and counters.
var ErrCapacityExceeded = errors.New("partition capacity exceeded")

// ErrMalformedKey is the only write-path error besides an invalid partition
// that surfaces synchronously to callers.
var ErrMalformedKey = errors.New("malformed cache key")

// SetOptions carries per-write extras.
type SetOptions struct {
	// TTL overrides the partition default lifetime when positive.
	TTL time.Duration

	// Dependencies lists the source keys this entry derives from.
	// Invalidating any of them cascades to this entry.
	Dependencies []string
}

type Engine struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *config.Config
	logger *slog.Logger
	clk    clock.Clock

	registry   *partition.Registry
	compressor *compress.Compressor
	deps       *graph.Graph
	l1         *memory.Store
	stores     [tier.Count]tier.Store
	failover   *failover.Controller
	monitor    *monitoring.Monitor

	// locks serialize L1 admission (evict + insert) per partition. They are
	// never held across a call to an external tier.
	locks map[string]*sync.Mutex

	promoteCh chan promotion
	pace      *rate.Pacer
	counters  *counters
}

func New(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	clk clock.Clock,
	registry *partition.Registry,
	l1 *memory.Store,
	stores [tier.Count]tier.Store,
	fc *failover.Controller,
	monitor *monitoring.Monitor,
) *Engine {
	ctx, cancel := context.WithCancel(ctx)

	locks := make(map[string]*sync.Mutex, registry.Len())
	for _, name := range registry.Names() {
		locks[name] = &sync.Mutex{}
	}

	e := &Engine{
		ctx:        ctx,
		cancel:     cancel,
		cfg:        cfg,
		logger:     logger,
		clk:        clk,
		registry:   registry,
		compressor: compress.New(cfg.Compression),
		deps:       graph.New(),
		l1:         l1,
		stores:     stores,
		failover:   fc,
		monitor:    monitor,
		locks:      locks,
		promoteCh:  make(chan promotion, cfg.Engine.PromotionQueueLen),
		pace:       rate.NewPacer(ctx, cfg.Engine.PromotionsPerSec, cfg.Engine.PromotionBurst),
		counters:   newCounters(),
	}

	go e.promoter()
	go e.sweeper()

	return e
}

func (e *Engine) Close() error {
	e.cancel()
	return nil
}

// Dependencies exposes the graph for snapshotting.
func (e *Engine) DependencyCount() int { return e.deps.Len() }

// Get walks the tiers fastest-first and returns the first valid hit.
// Expired and corrupt entries are treated as absent and removed from the
// tier that served them. An all-miss is not an error; fetching from the
// backing source is the caller's job.
func (e *Engine) Get(ctx context.Context, part, key string) ([]byte, bool, error) {
	if _, err := e.registry.ConfigFor(part); err != nil {
		return nil, false, err
	}
	if key == "" {
		return nil, false, fmt.Errorf("%w: empty key", ErrMalformedKey)
	}

	if e.failover.Emergency() {
		e.counters.passthroughGets.Add(1)
		return nil, false, nil
	}

	var missed []tier.ID
	for _, t := range tier.All() {
		store := e.stores[t]
		if store == nil {
			continue
		}
		if !e.failover.Eligible(t) {
			e.counters.skippedTiers.Add(1)
			continue
		}

		frame, found, lat, callErr := e.callGet(ctx, t, part, key)
		e.failover.Report(t, callErr)
		if callErr != nil {
			e.monitor.Record(t, part, monitoring.OutcomeError, lat)
			e.logger.Debug("tier get failed", "tier", t.String(), "partition", part, "err", callErr)
			continue
		}
		if !found {
			e.monitor.Record(t, part, monitoring.OutcomeMiss, lat)
			missed = append(missed, t)
			continue
		}

		entry, decErr := model.Decode(part, key, frame)
		if decErr != nil {
			e.dropCorrupt(t, part, key, lat, decErr)
			missed = append(missed, t)
			continue
		}
		if entry.IsExpired(e.clk.Now()) {
			e.monitor.Record(t, part, monitoring.OutcomeMiss, lat)
			e.counters.expiredOnRead.Add(1)
			e.deleteFromTier(t, part, key)
			missed = append(missed, t)
			continue
		}

		raw := entry.Payload
		if entry.Compressed {
			raw, decErr = e.compressor.Decompress(entry.Payload, entry.RawSize)
			if decErr != nil {
				e.dropCorrupt(t, part, key, lat, decErr)
				missed = append(missed, t)
				continue
			}
		} else if int64(len(raw)) != entry.RawSize {
			e.dropCorrupt(t, part, key, lat, fmt.Errorf("%w: stored size %d, recorded %d",
				model.ErrCorruptEntry, len(raw), entry.RawSize))
			missed = append(missed, t)
			continue
		}

		e.monitor.Record(t, part, monitoring.OutcomeHit, lat)
		e.counters.hits.Add(1)

		if t != tier.L1Memory && len(missed) > 0 {
			e.enqueuePromotion(promotion{
				partition: part,
				key:       key,
				frame:     frame,
				expiresAt: entry.ExpiresAt,
				targets:   append([]tier.ID(nil), missed...),
			})
		}
		return raw, true, nil
	}

	e.counters.misses.Add(1)
	return nil, false, nil
}

// callGet runs one tier lookup under the tier timeout. A timeout counts as
// a failure for that tier while the walk falls through to the next one.
func (e *Engine) callGet(ctx context.Context, t tier.ID, part, key string) (frame []byte, found bool, lat time.Duration, err error) {
	tctx, cancel := context.WithTimeout(ctx, e.cfg.Engine.TierTimeout)
	defer cancel()

	start := e.clk.Now()
	frame, found, err = e.stores[t].Get(tctx, part, key)
	lat = e.clk.Now().Sub(start)

	if err == nil && tctx.Err() != nil {
		err = tctx.Err()
	}
	return frame, found, lat, err
}

func (e *Engine) dropCorrupt(t tier.ID, part, key string, lat time.Duration, err error) {
	e.monitor.Record(t, part, monitoring.OutcomeError, lat)
	e.counters.corruptEntries.Add(1)
	e.logger.Warn("corrupt entry dropped", "tier", t.String(), "partition", part, "key", key, "err", err)
	e.deleteFromTier(t, part, key)
}

// deleteFromTier removes a bad or expired entry from a single tier,
// best-effort.
func (e *Engine) deleteFromTier(t tier.ID, part, key string) {
	store := e.stores[t]
	if store == nil {
		return
	}
	tctx, cancel := context.WithTimeout(e.ctx, e.cfg.Engine.TierTimeout)
	defer cancel()
	if err := store.Delete(tctx, part, key); err != nil {
		e.logger.Debug("tier delete failed", "tier", t.String(), "partition", part, "key", key, "err", err)
	}
}
