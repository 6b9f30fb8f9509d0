// Package tiercache is a multi-tier, partitioned cache engine that sits
// between an application's data-access layer and its slow backing stores.
// Reads walk the tiers fastest-first with asynchronous promotion, writes go
// through every eligible tier, derived keys are invalidated over a
// dependency graph, and a per-tier circuit breaker keeps the engine
// answering from whatever tiers remain healthy.
package tiercache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/talowa/go-tier-cache/config"
	"github.com/talowa/go-tier-cache/internal/engine"
	"github.com/talowa/go-tier-cache/internal/failover"
	"github.com/talowa/go-tier-cache/internal/monitoring"
	"github.com/talowa/go-tier-cache/internal/partition"
	"github.com/talowa/go-tier-cache/internal/telemetry"
	"github.com/talowa/go-tier-cache/internal/tier"
	"github.com/talowa/go-tier-cache/internal/tier/badgerstore"
	"github.com/talowa/go-tier-cache/internal/tier/edge"
	"github.com/talowa/go-tier-cache/internal/tier/memory"
	"github.com/talowa/go-tier-cache/internal/tier/redisstore"
)

// Tier identifies a layer in the hierarchy, fastest first.
type Tier int

const (
	L1Memory Tier = iota
	L2Persistent
	L3Distributed
	L4Edge
)

// TierStore is the contract a custom tier backend implements. Payloads are
// opaque; stores must be safe for concurrent use and respect ctx deadlines.
type TierStore interface {
	Get(ctx context.Context, partition, key string) (payload []byte, found bool, err error)
	Set(ctx context.Context, partition, key string, payload []byte, ttl time.Duration) error
	Delete(ctx context.Context, partition, key string) error
	HealthProbe(ctx context.Context) error
	Close() error
}

type TierCache interface {
	Get(ctx context.Context, partition, key string) (value []byte, hit bool, err error)
	Set(ctx context.Context, partition, key string, value []byte, opts ...SetOption) error
	Invalidate(ctx context.Context, key string) error
	Snapshot() Snapshot
	io.Closer
}

type Cache struct {
	cls       context.CancelFunc
	cfg       *config.Config
	eng       *engine.Engine
	fc        *failover.Controller
	monitor   *monitoring.Monitor
	registry  *partition.Registry
	l1        *memory.Store
	stores    [tier.Count]tier.Store
	telemetry telemetry.Logger
}

var _ TierCache = (*Cache)(nil)

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Cache, error) {
	cfg.AdjustConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	clk := o.clock
	if clk == nil {
		clk = clock.New()
	}

	ctx, cancel := context.WithCancel(ctx)

	registry := partition.NewRegistry(cfg.Partitions)
	l1 := memory.New(registry, clk)

	var stores [tier.Count]tier.Store
	stores[tier.L1Memory] = l1

	if s := o.stores[L2Persistent]; s != nil {
		stores[tier.L2Persistent] = s
	} else if cfg.Tiers.Badger.Enabled() {
		bs, err := badgerstore.Open(ctx, cfg.Tiers.Badger)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("open l2 store: %w", err)
		}
		stores[tier.L2Persistent] = bs
	}

	if s := o.stores[L3Distributed]; s != nil {
		stores[tier.L3Distributed] = s
	} else if cfg.Tiers.Redis.Enabled() {
		stores[tier.L3Distributed] = redisstore.New(cfg.Tiers.Redis)
	}

	if s := o.stores[L4Edge]; s != nil {
		stores[tier.L4Edge] = s
	} else if cfg.Tiers.Edge.Enabled() {
		stores[tier.L4Edge] = edge.New(cfg.Tiers.Edge)
	}

	monitor := monitoring.New(ctx, cfg.Monitoring, clk, logger)
	fc := failover.New(&cfg.Failover, clk, logger)
	monitor.Subscribe(fc.OnAlert)

	eng := engine.New(ctx, cfg, logger, clk, registry, l1, stores, fc, monitor)
	tel := telemetry.New(ctx, cfg, clk, logger, eng, fc, monitor, registry, l1)

	return &Cache{
		cls:       cancel,
		cfg:       cfg,
		eng:       eng,
		fc:        fc,
		monitor:   monitor,
		registry:  registry,
		l1:        l1,
		stores:    stores,
		telemetry: tel,
	}, nil
}

func (c *Cache) Get(ctx context.Context, partition, key string) ([]byte, bool, error) {
	return c.eng.Get(ctx, partition, key)
}

func (c *Cache) Set(ctx context.Context, partition, key string, value []byte, opts ...SetOption) error {
	var so engine.SetOptions
	for _, opt := range opts {
		opt(&so)
	}
	return c.eng.Set(ctx, partition, key, value, so)
}

func (c *Cache) Invalidate(ctx context.Context, key string) error {
	return c.eng.Invalidate(ctx, key)
}

func (c *Cache) Close() error {
	c.cls()
	_ = c.telemetry.Close()
	_ = c.monitor.Close()
	_ = c.eng.Close()
	for _, t := range []tier.ID{tier.L2Persistent, tier.L3Distributed, tier.L4Edge} {
		if s := c.stores[t]; s != nil {
			_ = s.Close()
		}
	}
	return nil
}
