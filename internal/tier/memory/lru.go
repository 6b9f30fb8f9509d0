package memory

// lruOnInsertUnlocked is unsafe without the shard lock, it mutates the list.
func (sh *shard) lruOnInsertUnlocked(key uint64) {
	if el := sh.lidx[key]; el != nil {
		sh.lru.MoveToFront(el)
		return
	}
	sh.lidx[key] = sh.lru.PushFront(key)
}

// lruOnAccessUnlocked is unsafe without the shard lock, it mutates the list.
func (sh *shard) lruOnAccessUnlocked(key uint64) {
	if el := sh.lidx[key]; el != nil {
		sh.lru.MoveToFront(el)
	}
}

// lruOnDeleteUnlocked is unsafe without the shard lock, it mutates the list.
func (sh *shard) lruOnDeleteUnlocked(key uint64) {
	if el := sh.lidx[key]; el != nil {
		sh.lru.Remove(el)
		delete(sh.lidx, key)
	}
}

// touchLRU is threadsafe. A missed TryLock skips the bump rather than
// blocking the read path behind writers.
func (sh *shard) touchLRU(key uint64) {
	if sh.TryLock() {
		if el := sh.lidx[key]; el != nil {
			sh.lru.MoveToFront(el)
		}
		sh.Unlock()
	}
}
