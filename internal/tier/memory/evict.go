package memory

import (
	"sync/atomic"
	"time"

	"github.com/talowa/go-tier-cache/config"
)

// EvictUntilFits frees space in the partition until the current occupancy
// plus need fits under capacity. Victims follow the partition policy: LRU
// takes the list tail, TTL takes the soonest-to-expire entry. Entries pinned
// by an in-flight promotion are skipped. Returns whether the write now fits.
func (s *Store) EvictUntilFits(part string, need, capacity int64, policy config.EvictionPolicy) (freed, evicted int64, fits bool) {
	sh, ok := s.shards[part]
	if !ok || need > capacity {
		return 0, 0, false
	}

	sh.Lock()
	defer sh.Unlock()

	for atomic.LoadInt64(&sh.mem)+need > capacity {
		var victim uint64
		var found bool
		if policy == config.EvictionTTL {
			victim, found = sh.soonestToExpireUnlocked()
		} else {
			victim, found = sh.lruTailUnlocked()
		}
		if !found {
			return freed, evicted, false
		}
		f, _ := sh.removeUnlocked(victim)
		freed += f
		evicted++
	}
	return freed, evicted, true
}

// SweepExpired removes up to max entries whose deadline passed, regardless
// of capacity pressure, and returns their keys. Callers run this from the
// background sweep; each removal holds the partition lock for one entry.
func (s *Store) SweepExpired(part string, now time.Time, max int) []string {
	sh, ok := s.shards[part]
	if !ok || max <= 0 {
		return nil
	}
	deadline := now.UnixNano()

	// Collect candidates under the read lock, remove one by one after.
	type victim struct {
		k   uint64
		key string
	}
	var victims []victim
	sh.RLock()
	for k, it := range sh.items {
		if it.expiresAt < deadline {
			victims = append(victims, victim{k: k, key: it.key})
			if len(victims) >= max {
				break
			}
		}
	}
	sh.RUnlock()

	removed := make([]string, 0, len(victims))
	for _, v := range victims {
		sh.Lock()
		// revalidate: the entry may have been replaced since the scan
		if it, hit := sh.items[v.k]; hit && it.expiresAt < deadline {
			sh.removeUnlocked(v.k)
			removed = append(removed, v.key)
		}
		sh.Unlock()
	}
	return removed
}

// lruTailUnlocked picks the least-recently-used unpinned entry.
func (sh *shard) lruTailUnlocked() (uint64, bool) {
	for el := sh.lru.Back(); el != nil; el = el.Prev() {
		k := el.Value.(uint64)
		it, ok := sh.items[k]
		if !ok {
			continue
		}
		if atomic.LoadInt32(&it.pinned) == 0 {
			return k, true
		}
	}
	return 0, false
}

// soonestToExpireUnlocked picks the unpinned entry with the nearest deadline.
func (sh *shard) soonestToExpireUnlocked() (uint64, bool) {
	var best uint64
	var bestAt int64
	found := false
	for k, it := range sh.items {
		if atomic.LoadInt32(&it.pinned) != 0 {
			continue
		}
		if !found || it.expiresAt < bestAt {
			best, bestAt, found = k, it.expiresAt, true
		}
	}
	return best, found
}
