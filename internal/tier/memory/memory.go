package memory

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/zeebo/xxh3"

	"github.com/talowa/go-tier-cache/internal/partition"
	"github.com/talowa/go-tier-cache/internal/tier"
)

// Store is the process-local L1 tier. Each partition is an independent
// segment with its own lock, so contention stays local to one partition.
// Beyond the tier contract it exposes the occupancy, victim-selection and
// pinning hooks the engine needs for capacity enforcement.
type Store struct {
	clk    clock.Clock
	shards map[string]*shard
}

// shard is one partition segment. Counters are read with atomics so global
// readers avoid the lock.
type shard struct {
	sync.RWMutex
	items map[uint64]*item

	mem int64 // total stored bytes (atomic)
	len int64 // number of items (atomic)

	lru  *list.List
	lidx map[uint64]*list.Element
}

type item struct {
	key       string // full key, resolves hash collisions
	payload   []byte
	expiresAt int64 // unix nano
	pinned    int32 // atomic: held by an in-flight promotion
}

func (it *item) weight() int64 { return int64(len(it.payload)) }

func New(reg *partition.Registry, clk clock.Clock) *Store {
	s := &Store{clk: clk, shards: make(map[string]*shard, reg.Len())}
	for _, name := range reg.Names() {
		s.shards[name] = &shard{
			items: make(map[uint64]*item),
			lru:   list.New(),
			lidx:  make(map[uint64]*list.Element),
		}
	}
	return s
}

var _ tier.Store = (*Store)(nil)

func hash(key string) uint64 { return xxh3.HashString(key) }

func (s *Store) Get(_ context.Context, part, key string) ([]byte, bool, error) {
	sh, ok := s.shards[part]
	if !ok {
		return nil, false, partition.ErrInvalidPartition
	}

	k := hash(key)
	sh.RLock()
	it, hit := sh.items[k]
	sh.RUnlock()
	if !hit || it.key != key {
		return nil, false, nil
	}

	sh.touchLRU(k)
	return it.payload, true, nil
}

func (s *Store) Set(_ context.Context, part, key string, payload []byte, ttl time.Duration) error {
	sh, ok := s.shards[part]
	if !ok {
		return partition.ErrInvalidPartition
	}

	new := &item{key: key, payload: payload, expiresAt: s.clk.Now().Add(ttl).UnixNano()}
	k := hash(key)

	sh.Lock()
	if old, hit := sh.items[k]; hit {
		new.pinned = atomic.LoadInt32(&old.pinned)
		sh.items[k] = new
		sh.lruOnAccessUnlocked(k)
		atomic.AddInt64(&sh.mem, new.weight()-old.weight())
	} else {
		sh.items[k] = new
		sh.lruOnInsertUnlocked(k)
		atomic.AddInt64(&sh.len, 1)
		atomic.AddInt64(&sh.mem, new.weight())
	}
	sh.Unlock()
	return nil
}

func (s *Store) Delete(_ context.Context, part, key string) error {
	sh, ok := s.shards[part]
	if !ok {
		return partition.ErrInvalidPartition
	}

	k := hash(key)
	sh.Lock()
	sh.removeUnlocked(k)
	sh.Unlock()
	return nil
}

func (s *Store) HealthProbe(context.Context) error { return nil }
func (s *Store) Close() error                      { return nil }

// Occupancy returns stored bytes and entry count for one partition.
func (s *Store) Occupancy(part string) (bytes, entries int64) {
	sh, ok := s.shards[part]
	if !ok {
		return 0, 0
	}
	return atomic.LoadInt64(&sh.mem), atomic.LoadInt64(&sh.len)
}

// Pin marks the entry as held by an in-flight promotion so capacity
// eviction skips it. Returns false when the key is absent.
func (s *Store) Pin(part, key string) bool   { return s.setPinned(part, key, 1) }
func (s *Store) Unpin(part, key string) bool { return s.setPinned(part, key, 0) }

func (s *Store) setPinned(part, key string, v int32) bool {
	sh, ok := s.shards[part]
	if !ok {
		return false
	}
	k := hash(key)
	sh.RLock()
	it, hit := sh.items[k]
	sh.RUnlock()
	if !hit || it.key != key {
		return false
	}
	atomic.StoreInt32(&it.pinned, v)
	return true
}

func (sh *shard) removeUnlocked(k uint64) (freed int64, hit bool) {
	old, hit := sh.items[k]
	if !hit {
		return 0, false
	}
	delete(sh.items, k)
	sh.lruOnDeleteUnlocked(k)
	freed = old.weight()
	atomic.AddInt64(&sh.mem, -freed)
	atomic.AddInt64(&sh.len, -1)
	return freed, true
}
