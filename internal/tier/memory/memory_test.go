package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/talowa/go-tier-cache/config"
	"github.com/talowa/go-tier-cache/internal/partition"
)

const testPart = "feedPosts"

func newTestStore(t *testing.T) (*Store, *clock.Mock) {
	t.Helper()
	reg := partition.NewRegistry([]config.PartitionCfg{
		{Name: testPart, CapacityBytes: 1 << 20, TTL: time.Minute, EvictionPolicy: config.EvictionLRU},
	})
	clk := clock.NewMock()
	return New(reg, clk), clk
}

func TestSetGetDelete(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, testPart, "post:42", []byte("v"), time.Minute))

	got, hit, err := s.Get(ctx, testPart, "post:42")
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, []byte("v"), got)

	require.NoError(t, s.Delete(ctx, testPart, "post:42"))
	_, hit, err = s.Get(ctx, testPart, "post:42")
	require.NoError(t, err)
	require.False(t, hit)
}

func TestUnknownPartition(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.Get(ctx, "nope", "k")
	require.ErrorIs(t, err, partition.ErrInvalidPartition)
	require.ErrorIs(t, s.Set(ctx, "nope", "k", nil, 0), partition.ErrInvalidPartition)
	require.ErrorIs(t, s.Delete(ctx, "nope", "k"), partition.ErrInvalidPartition)
}

func TestOccupancyTracksBytes(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, testPart, "a", make([]byte, 100), time.Minute))
	require.NoError(t, s.Set(ctx, testPart, "b", make([]byte, 200), time.Minute))

	bytes, entries := s.Occupancy(testPart)
	require.Equal(t, int64(300), bytes)
	require.Equal(t, int64(2), entries)

	// replace shrinks
	require.NoError(t, s.Set(ctx, testPart, "a", make([]byte, 50), time.Minute))
	bytes, entries = s.Occupancy(testPart)
	require.Equal(t, int64(250), bytes)
	require.Equal(t, int64(2), entries)

	require.NoError(t, s.Delete(ctx, testPart, "b"))
	bytes, entries = s.Occupancy(testPart)
	require.Equal(t, int64(50), bytes)
	require.Equal(t, int64(1), entries)
}

func TestEvictUntilFitsLRUOrder(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, s.Set(ctx, testPart, k, make([]byte, 100), time.Minute))
	}
	// touch "a" so "b" becomes the LRU tail
	_, hit, err := s.Get(ctx, testPart, "a")
	require.NoError(t, err)
	require.True(t, hit)

	freed, evicted, fits := s.EvictUntilFits(testPart, 100, 300, config.EvictionLRU)
	require.True(t, fits)
	require.Equal(t, int64(100), freed)
	require.Equal(t, int64(1), evicted)

	_, hit, _ = s.Get(ctx, testPart, "b")
	require.False(t, hit)
	for _, k := range []string{"a", "c"} {
		_, hit, _ = s.Get(ctx, testPart, k)
		require.True(t, hit, k)
	}
}

func TestEvictUntilFitsTTLPolicy(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, testPart, "long", make([]byte, 100), time.Hour))
	require.NoError(t, s.Set(ctx, testPart, "short", make([]byte, 100), time.Second))
	require.NoError(t, s.Set(ctx, testPart, "mid", make([]byte, 100), time.Minute))

	_, evicted, fits := s.EvictUntilFits(testPart, 100, 300, config.EvictionTTL)
	require.True(t, fits)
	require.Equal(t, int64(1), evicted)

	_, hit, _ := s.Get(ctx, testPart, "short")
	require.False(t, hit)
	_, hit, _ = s.Get(ctx, testPart, "long")
	require.True(t, hit)
}

func TestEvictUntilFitsNeverExceedsCapacity(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	const capacity = 1000
	for i := 0; i < 20; i++ {
		key := fmt.Sprintf("k%d", i)
		_, _, fits := s.EvictUntilFits(testPart, 100, capacity, config.EvictionLRU)
		require.True(t, fits)
		require.NoError(t, s.Set(ctx, testPart, key, make([]byte, 100), time.Minute))

		bytes, _ := s.Occupancy(testPart)
		require.LessOrEqual(t, bytes, int64(capacity))
	}
}

func TestEvictSkipsPinned(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, testPart, "pinned", make([]byte, 100), time.Minute))
	require.NoError(t, s.Set(ctx, testPart, "plain", make([]byte, 100), time.Minute))
	require.True(t, s.Pin(testPart, "pinned"))

	// pinned is the LRU tail but must survive
	_, evicted, fits := s.EvictUntilFits(testPart, 100, 200, config.EvictionLRU)
	require.True(t, fits)
	require.Equal(t, int64(1), evicted)

	_, hit, _ := s.Get(ctx, testPart, "pinned")
	require.True(t, hit)
	_, hit, _ = s.Get(ctx, testPart, "plain")
	require.False(t, hit)
}

func TestEvictAllPinnedDoesNotFit(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, testPart, "a", make([]byte, 100), time.Minute))
	require.True(t, s.Pin(testPart, "a"))

	_, _, fits := s.EvictUntilFits(testPart, 50, 100, config.EvictionLRU)
	require.False(t, fits)

	require.True(t, s.Unpin(testPart, "a"))
	_, _, fits = s.EvictUntilFits(testPart, 50, 100, config.EvictionLRU)
	require.True(t, fits)
}

func TestNeedLargerThanCapacity(t *testing.T) {
	s, _ := newTestStore(t)
	_, _, fits := s.EvictUntilFits(testPart, 2000, 1000, config.EvictionLRU)
	require.False(t, fits)
}

func TestSweepExpired(t *testing.T) {
	s, clk := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, testPart, "stale", []byte("v"), time.Second))
	require.NoError(t, s.Set(ctx, testPart, "fresh", []byte("v"), time.Hour))

	clk.Add(2 * time.Second)

	removed := s.SweepExpired(testPart, clk.Now(), 128)
	require.Equal(t, []string{"stale"}, removed)

	_, hit, _ := s.Get(ctx, testPart, "fresh")
	require.True(t, hit)
	_, entries := s.Occupancy(testPart)
	require.Equal(t, int64(1), entries)
}

func TestSweepExpiredBatchLimit(t *testing.T) {
	s, clk := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Set(ctx, testPart, fmt.Sprintf("k%d", i), []byte("v"), time.Second))
	}
	clk.Add(2 * time.Second)

	removed := s.SweepExpired(testPart, clk.Now(), 4)
	require.Len(t, removed, 4)
	_, entries := s.Occupancy(testPart)
	require.Equal(t, int64(6), entries)
}
