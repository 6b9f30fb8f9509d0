package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/talowa/go-tier-cache/config"
	"github.com/talowa/go-tier-cache/internal/failover"
	"github.com/talowa/go-tier-cache/internal/model"
	"github.com/talowa/go-tier-cache/internal/monitoring"
	"github.com/talowa/go-tier-cache/internal/partition"
	"github.com/talowa/go-tier-cache/internal/tier"
	"github.com/talowa/go-tier-cache/internal/tier/memory"
)

// stubStore is an in-memory fake for the slow tiers with controllable
// failure modes.
type stubStore struct {
	mu       sync.Mutex
	data     map[string][]byte
	getErr   error
	setErr   error
	blockGet bool

	gets, sets, deletes int
}

func newStubStore() *stubStore {
	return &stubStore{data: make(map[string][]byte)}
}

func skey(part, key string) string { return part + "/" + key }

func (s *stubStore) Get(ctx context.Context, part, key string) ([]byte, bool, error) {
	s.mu.Lock()
	s.gets++
	block, err := s.blockGet, s.getErr
	frame, ok := s.data[skey(part, key)]
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, false, ctx.Err()
	}
	if err != nil {
		return nil, false, err
	}
	return frame, ok, nil
}

func (s *stubStore) Set(_ context.Context, part, key string, frame []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	if s.setErr != nil {
		return s.setErr
	}
	s.data[skey(part, key)] = append([]byte(nil), frame...)
	return nil
}

func (s *stubStore) Delete(_ context.Context, part, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	delete(s.data, skey(part, key))
	return nil
}

func (s *stubStore) HealthProbe(context.Context) error { return nil }
func (s *stubStore) Close() error                      { return nil }

func (s *stubStore) has(part, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[skey(part, key)]
	return ok
}

func (s *stubStore) put(part, key string, frame []byte) {
	s.mu.Lock()
	s.data[skey(part, key)] = frame
	s.mu.Unlock()
}

func (s *stubStore) getCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets
}

func (s *stubStore) setCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets
}

func engineTestConfig() *config.Config {
	cfg := &config.Config{
		Engine: config.EngineCfg{
			TierTimeout:       50 * time.Millisecond,
			PromotionsPerSec:  1000,
			PromotionQueueLen: 64,
			SweepInterval:     time.Hour,
			SweepBatch:        1024,
		},
		Partitions: []config.PartitionCfg{
			{Name: "feedPosts", CapacityBytes: 50 << 20, TTL: 30 * time.Minute, EvictionPolicy: config.EvictionLRU},
			{Name: "userProfiles", CapacityBytes: 10 << 20, TTL: time.Hour, EvictionPolicy: config.EvictionLRU},
			{Name: "media", CapacityBytes: 1 << 20, TTL: 10 * time.Minute, EvictionPolicy: config.EvictionTTL},
		},
		Compression: &config.CompressionCfg{ThresholdBytes: 64},
		Failover: config.FailoverCfg{
			FailureThreshold: 5,
			Window:           30 * time.Second,
			Cooldown:         10 * time.Second,
			BackoffCap:       80 * time.Second,
		},
	}
	return cfg
}

type testRig struct {
	engine *Engine
	l1     *memory.Store
	fc     *failover.Controller
	clk    *clock.Mock
	cfg    *config.Config
}

// newTestRig wires an engine over the in-process L1 plus the given slow-tier
// stubs (index 1..3 for L2..L4, nil to leave a tier undeployed).
func newTestRig(t *testing.T, mutate func(*config.Config), slow ...tier.Store) *testRig {
	t.Helper()

	cfg := engineTestConfig()
	if mutate != nil {
		mutate(cfg)
	}

	clk := clock.NewMock()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := partition.NewRegistry(cfg.Partitions)
	l1 := memory.New(reg, clk)

	var stores [tier.Count]tier.Store
	stores[tier.L1Memory] = l1
	for i, s := range slow {
		if s != nil && i+1 < tier.Count {
			stores[i+1] = s
		}
	}

	ctx := context.Background()
	mon := monitoring.New(ctx, cfg.Monitoring, clk, logger)
	fc := failover.New(&cfg.Failover, clk, logger)
	eng := New(ctx, cfg, logger, clk, reg, l1, stores, fc, mon)
	t.Cleanup(func() {
		_ = eng.Close()
		_ = mon.Close()
	})

	return &testRig{engine: eng, l1: l1, fc: fc, clk: clk, cfg: cfg}
}

// frameFor builds a stored frame the way a write would have, for pre-seeding
// slow-tier stubs.
func frameFor(clk clock.Clock, part, key string, payload []byte, ttl time.Duration) []byte {
	e := model.NewEntry(part, key, clk.Now(), ttl)
	e.Payload = payload
	e.RawSize = int64(len(payload))
	e.TierMask.Set(int(tier.L1Memory))
	return model.Encode(e)
}

func TestSetGetRoundTrip(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx := context.Background()

	require.NoError(t, rig.engine.Set(ctx, "feedPosts", "post:42", []byte("hello feed"), SetOptions{}))

	got, hit, err := rig.engine.Get(ctx, "feedPosts", "post:42")
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, []byte("hello feed"), got)

	c := rig.engine.EngineCounters()
	require.Equal(t, int64(1), c.Writes)
	require.Equal(t, int64(1), c.Hits)
	require.Zero(t, c.Misses)
}

func TestCompressedRoundTrip(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx := context.Background()

	// well above the 64 byte threshold and highly compressible
	value := make([]byte, 0, 64<<10)
	for i := 0; i < 1024; i++ {
		value = append(value, []byte("feed post body chunk for user seven ")...)
	}

	require.NoError(t, rig.engine.Set(ctx, "feedPosts", "post:42", value, SetOptions{}))

	got, hit, err := rig.engine.Get(ctx, "feedPosts", "post:42")
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, value, got)

	// the stored frame must be smaller than the raw value
	bytes, _ := rig.l1.Occupancy("feedPosts")
	require.Less(t, bytes, int64(len(value)))
}

func TestInvalidPartition(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx := context.Background()

	_, _, err := rig.engine.Get(ctx, "nope", "k")
	require.ErrorIs(t, err, partition.ErrInvalidPartition)
	require.ErrorIs(t, rig.engine.Set(ctx, "nope", "k", []byte("v"), SetOptions{}), partition.ErrInvalidPartition)
}

func TestMalformedKey(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx := context.Background()

	_, _, err := rig.engine.Get(ctx, "feedPosts", "")
	require.ErrorIs(t, err, ErrMalformedKey)
	require.ErrorIs(t, rig.engine.Set(ctx, "feedPosts", "", []byte("v"), SetOptions{}), ErrMalformedKey)
}

func TestMissIsNotAnError(t *testing.T) {
	rig := newTestRig(t, nil)

	_, hit, err := rig.engine.Get(context.Background(), "feedPosts", "absent")
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, int64(1), rig.engine.EngineCounters().Misses)
}

func TestExpiredEntryNeverReturned(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx := context.Background()

	require.NoError(t, rig.engine.Set(ctx, "feedPosts", "post:42", []byte("v"), SetOptions{TTL: time.Second}))

	rig.clk.Add(2 * time.Second)

	_, hit, err := rig.engine.Get(ctx, "feedPosts", "post:42")
	require.NoError(t, err)
	require.False(t, hit)

	c := rig.engine.EngineCounters()
	require.Equal(t, int64(1), c.ExpiredOnRead)

	// expired-on-read also removed the entry
	_, entries := rig.l1.Occupancy("feedPosts")
	require.Zero(t, entries)
}

func TestTTLOverridesPartitionDefault(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx := context.Background()

	require.NoError(t, rig.engine.Set(ctx, "feedPosts", "short", []byte("v"), SetOptions{TTL: time.Second}))
	require.NoError(t, rig.engine.Set(ctx, "feedPosts", "long", []byte("v"), SetOptions{}))

	rig.clk.Add(2 * time.Second)

	_, hit, _ := rig.engine.Get(ctx, "feedPosts", "short")
	require.False(t, hit)
	_, hit, _ = rig.engine.Get(ctx, "feedPosts", "long")
	require.True(t, hit)
}

func TestWriteThroughReachesSlowTiers(t *testing.T) {
	l2, l3 := newStubStore(), newStubStore()
	rig := newTestRig(t, nil, l2, l3)
	ctx := context.Background()

	require.NoError(t, rig.engine.Set(ctx, "feedPosts", "post:42", []byte("v"), SetOptions{}))

	require.True(t, l2.has("feedPosts", "post:42"))
	require.True(t, l3.has("feedPosts", "post:42"))
}

func TestSlowTierWriteFailureIsNonFatal(t *testing.T) {
	l2 := newStubStore()
	l2.setErr = errors.New("disk full")
	rig := newTestRig(t, nil, l2)
	ctx := context.Background()

	require.NoError(t, rig.engine.Set(ctx, "feedPosts", "post:42", []byte("v"), SetOptions{}))

	got, hit, err := rig.engine.Get(ctx, "feedPosts", "post:42")
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, []byte("v"), got)
}

func TestSlowTierHitPromotes(t *testing.T) {
	l2 := newStubStore()
	rig := newTestRig(t, nil, l2)
	ctx := context.Background()

	l2.put("feedPosts", "post:42", frameFor(rig.clk, "feedPosts", "post:42", []byte("from l2"), time.Hour))

	got, hit, err := rig.engine.Get(ctx, "feedPosts", "post:42")
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, []byte("from l2"), got)

	// the promotion worker copies the frame into L1 asynchronously
	require.Eventually(t, func() bool {
		_, ok, _ := rig.l1.Get(ctx, "feedPosts", "post:42")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	require.Positive(t, rig.engine.EngineCounters().Promotions)
}

func TestExpiredSlowTierEntryNotServed(t *testing.T) {
	l2 := newStubStore()
	rig := newTestRig(t, nil, l2)
	ctx := context.Background()

	l2.put("feedPosts", "post:42", frameFor(rig.clk, "feedPosts", "post:42", []byte("stale"), time.Second))
	rig.clk.Add(2 * time.Second)

	_, hit, err := rig.engine.Get(ctx, "feedPosts", "post:42")
	require.NoError(t, err)
	require.False(t, hit)

	// the stale copy was removed from the serving tier
	require.Eventually(t, func() bool { return !l2.has("feedPosts", "post:42") },
		time.Second, 10*time.Millisecond)
}

func TestCorruptEntryDroppedAndSkipped(t *testing.T) {
	l2 := newStubStore()
	rig := newTestRig(t, nil, l2)
	ctx := context.Background()

	l2.put("feedPosts", "post:42", []byte("garbage, not a frame"))

	_, hit, err := rig.engine.Get(ctx, "feedPosts", "post:42")
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, int64(1), rig.engine.EngineCounters().CorruptEntries)
	require.False(t, l2.has("feedPosts", "post:42"))
}

func TestTierTimeoutFallsThrough(t *testing.T) {
	l2, l3 := newStubStore(), newStubStore()
	l2.blockGet = true
	rig := newTestRig(t, nil, l2, l3)
	ctx := context.Background()

	l3.put("feedPosts", "post:42", frameFor(rig.clk, "feedPosts", "post:42", []byte("from l3"), time.Hour))

	// L2 times out but the walk falls through and L3 still serves the value
	got, hit, err := rig.engine.Get(ctx, "feedPosts", "post:42")
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, []byte("from l3"), got)

	// four more timed-out lookups reach the failure threshold
	for i := 0; i < 4; i++ {
		_, hit, err := rig.engine.Get(ctx, "feedPosts", fmt.Sprintf("absent:%d", i))
		require.NoError(t, err)
		require.False(t, hit)
	}
	require.Equal(t, failover.Open, rig.fc.State(tier.L2Persistent))

	// with L2 open the walk skips it entirely
	before := l2.getCalls()
	_, hit, err = rig.engine.Get(ctx, "feedPosts", "absent:open")
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, before, l2.getCalls())
}

func TestCapacityEviction(t *testing.T) {
	const capacity = 2048
	rig := newTestRig(t, func(cfg *config.Config) {
		cfg.Partitions[0].CapacityBytes = capacity
	}, nil)
	ctx := context.Background()

	rnd := rand.New(rand.NewSource(7))
	for i := 0; i < 10; i++ {
		value := make([]byte, 300)
		rnd.Read(value) // incompressible
		key := fmt.Sprintf("post:%d", i)
		require.NoError(t, rig.engine.Set(ctx, "feedPosts", key, value, SetOptions{}))

		bytes, _ := rig.l1.Occupancy("feedPosts")
		require.LessOrEqual(t, bytes, int64(capacity))
	}

	c := rig.engine.EngineCounters()
	require.Positive(t, c.EvictedItems)
	require.Zero(t, c.CapacityRejected)

	// LRU: the first key is gone, the last one is present
	_, hit, _ := rig.engine.Get(ctx, "feedPosts", "post:0")
	require.False(t, hit)
	_, hit, _ = rig.engine.Get(ctx, "feedPosts", "post:9")
	require.True(t, hit)
}

func TestOversizedWriteDropped(t *testing.T) {
	rig := newTestRig(t, func(cfg *config.Config) {
		cfg.Partitions[0].CapacityBytes = 512
	})
	ctx := context.Background()

	value := make([]byte, 4096)
	rand.New(rand.NewSource(1)).Read(value)

	// dropping the write is not a caller error
	require.NoError(t, rig.engine.Set(ctx, "feedPosts", "huge", value, SetOptions{}))
	require.Equal(t, int64(1), rig.engine.EngineCounters().CapacityRejected)

	_, hit, _ := rig.engine.Get(ctx, "feedPosts", "huge")
	require.False(t, hit)
}

func TestInvalidationCascade(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx := context.Background()

	require.NoError(t, rig.engine.Set(ctx, "userProfiles", "user:7", []byte("profile"), SetOptions{}))
	require.NoError(t, rig.engine.Set(ctx, "feedPosts", "post:42", []byte("post"),
		SetOptions{Dependencies: []string{"user:7"}}))
	require.NoError(t, rig.engine.Set(ctx, "feedPosts", "feed:home", []byte("feed"),
		SetOptions{Dependencies: []string{"post:42"}}))

	require.NoError(t, rig.engine.Invalidate(ctx, "user:7"))

	for part, key := range map[string]string{
		"userProfiles": "user:7",
		"feedPosts":    "post:42",
	} {
		_, hit, err := rig.engine.Get(ctx, part, key)
		require.NoError(t, err)
		require.False(t, hit, key)
	}
	_, hit, _ := rig.engine.Get(ctx, "feedPosts", "feed:home")
	require.False(t, hit)

	c := rig.engine.EngineCounters()
	require.Equal(t, int64(1), c.Invalidations)
	require.Equal(t, int64(3), c.InvalidatedKeys)
	require.Zero(t, rig.engine.DependencyCount())
}

func TestInvalidateUntrackedKey(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx := context.Background()

	require.NoError(t, rig.engine.Set(ctx, "feedPosts", "post:1", []byte("v"), SetOptions{}))
	require.NoError(t, rig.engine.Invalidate(ctx, "post:1"))

	_, hit, _ := rig.engine.Get(ctx, "feedPosts", "post:1")
	require.False(t, hit)
}

func TestInvalidateClearsSlowTiers(t *testing.T) {
	l2 := newStubStore()
	rig := newTestRig(t, nil, l2)
	ctx := context.Background()

	require.NoError(t, rig.engine.Set(ctx, "feedPosts", "post:42", []byte("v"), SetOptions{}))
	require.True(t, l2.has("feedPosts", "post:42"))

	require.NoError(t, rig.engine.Invalidate(ctx, "post:42"))

	require.Eventually(t, func() bool { return !l2.has("feedPosts", "post:42") },
		2*time.Second, 10*time.Millisecond)
}

func TestEmergencyPassthrough(t *testing.T) {
	l2, l3 := newStubStore(), newStubStore()
	rig := newTestRig(t, nil, l2, l3)
	ctx := context.Background()

	boom := errors.New("boom")
	for i := 0; i < 5; i++ {
		rig.fc.Report(tier.L1Memory, boom)
		rig.fc.Report(tier.L2Persistent, boom)
	}
	require.True(t, rig.fc.Emergency())

	l3before := l3.getCalls()

	// gets degrade to misses, not errors, and never touch L3/L4
	_, hit, err := rig.engine.Get(ctx, "feedPosts", "post:42")
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, l3before, l3.getCalls())

	// sets become no-ops
	require.NoError(t, rig.engine.Set(ctx, "feedPosts", "post:42", []byte("v"), SetOptions{}))
	require.Zero(t, l3.setCalls())
	_, entries := rig.l1.Occupancy("feedPosts")
	require.Zero(t, entries)

	c := rig.engine.EngineCounters()
	require.Equal(t, int64(1), c.PassthroughGets)
	require.Equal(t, int64(1), c.PassthroughSets)
}

func TestCapacityRejectionWhileHalfOpen(t *testing.T) {
	rig := newTestRig(t, func(cfg *config.Config) {
		cfg.Partitions[0].CapacityBytes = 1024
	})
	ctx := context.Background()

	// a pinned entry eviction cannot touch
	anchor := make([]byte, 600)
	rand.New(rand.NewSource(3)).Read(anchor)
	require.NoError(t, rig.engine.Set(ctx, "feedPosts", "anchor", anchor, SetOptions{}))
	require.True(t, rig.l1.Pin("feedPosts", "anchor"))

	boom := errors.New("boom")
	for i := 0; i < 5; i++ {
		rig.fc.Report(tier.L1Memory, boom)
	}
	rig.clk.Add(10 * time.Second)

	// the write claims the half-open slot, then gets capacity-rejected
	blocked := make([]byte, 600)
	rand.New(rand.NewSource(4)).Read(blocked)
	require.NoError(t, rig.engine.Set(ctx, "feedPosts", "blocked", blocked, SetOptions{}))
	require.Equal(t, int64(1), rig.engine.EngineCounters().CapacityRejected)
	require.Equal(t, failover.HalfOpen, rig.fc.State(tier.L1Memory))

	// the slot was returned: a fitting write runs as the recovery probe
	// and closes the breaker, even much later
	require.True(t, rig.l1.Unpin("feedPosts", "anchor"))
	rig.clk.Add(24 * time.Hour)

	require.NoError(t, rig.engine.Set(ctx, "feedPosts", "small", []byte("v"), SetOptions{}))
	require.Equal(t, failover.Closed, rig.fc.State(tier.L1Memory))

	_, hit, err := rig.engine.Get(ctx, "feedPosts", "small")
	require.NoError(t, err)
	require.True(t, hit)
}

func TestPromotionSettlesRecoveringL1(t *testing.T) {
	rig := newTestRig(t, nil)

	boom := errors.New("boom")
	for i := 0; i < 5; i++ {
		rig.fc.Report(tier.L1Memory, boom)
	}
	rig.clk.Add(10 * time.Second)

	rig.engine.promote(promotion{
		partition: "feedPosts",
		key:       "post:42",
		frame:     frameFor(rig.clk, "feedPosts", "post:42", []byte("v"), time.Hour),
		expiresAt: rig.clk.Now().Add(time.Hour).UnixNano(),
		targets:   []tier.ID{tier.L1Memory},
	})

	// the promotion owns exactly one breaker claim and its success settles it
	require.Equal(t, failover.Closed, rig.fc.State(tier.L1Memory))
	_, ok, err := rig.l1.Get(context.Background(), "feedPosts", "post:42")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestInvalidateDuringEmergencyClearsHealthyTiers(t *testing.T) {
	l2, l3 := newStubStore(), newStubStore()
	rig := newTestRig(t, nil, l2, l3)
	ctx := context.Background()

	require.NoError(t, rig.engine.Set(ctx, "feedPosts", "post:42", []byte("v"), SetOptions{}))
	require.True(t, l3.has("feedPosts", "post:42"))

	boom := errors.New("boom")
	for i := 0; i < 5; i++ {
		rig.fc.Report(tier.L1Memory, boom)
		rig.fc.Report(tier.L2Persistent, boom)
	}
	require.True(t, rig.fc.Emergency())

	require.NoError(t, rig.engine.Invalidate(ctx, "post:42"))

	// L3 is still healthy and gets cleared; the broken tiers are skipped
	require.Eventually(t, func() bool { return !l3.has("feedPosts", "post:42") },
		2*time.Second, 10*time.Millisecond)
	require.True(t, l2.has("feedPosts", "post:42"))
	require.Equal(t, int64(1), rig.engine.EngineCounters().Invalidations)
}

func TestSweeperRunsOnInterval(t *testing.T) {
	rig := newTestRig(t, func(cfg *config.Config) {
		cfg.Engine.SweepInterval = 30 * time.Second
	})
	ctx := context.Background()

	require.NoError(t, rig.engine.Set(ctx, "feedPosts", "a", []byte("v"), SetOptions{TTL: time.Second}))
	require.NoError(t, rig.engine.Set(ctx, "feedPosts", "b", []byte("v"), SetOptions{TTL: time.Second}))

	// let the sweeper arm its ticker before advancing the clock
	time.Sleep(50 * time.Millisecond)
	rig.clk.Add(31 * time.Second)

	require.Eventually(t, func() bool {
		return rig.engine.EngineCounters().SweepRemoved == 2
	}, 2*time.Second, 10*time.Millisecond)
	_, entries := rig.l1.Occupancy("feedPosts")
	require.Zero(t, entries)
}

func TestSweepOnce(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, rig.engine.Set(ctx, "feedPosts", fmt.Sprintf("post:%d", i), []byte("v"),
			SetOptions{TTL: time.Second}))
	}
	require.NoError(t, rig.engine.Set(ctx, "userProfiles", "user:7", []byte("v"), SetOptions{}))

	rig.clk.Add(2 * time.Second)

	require.Equal(t, int64(3), rig.engine.SweepOnce())

	_, entries := rig.l1.Occupancy("feedPosts")
	require.Zero(t, entries)
	_, entries = rig.l1.Occupancy("userProfiles")
	require.Equal(t, int64(1), entries)
}
