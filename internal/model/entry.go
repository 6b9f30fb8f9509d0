package model

import (
	"errors"
	"time"
)

// ErrCorruptEntry reports an undecodable stored entry (bad frame, checksum
// mismatch or decompression failure). The engine treats it as a miss and
// removes the entry from the tier that served it.
var ErrCorruptEntry = errors.New("corrupt cache entry")

// TierMask records which tiers were targeted when the entry was written.
// Bit i corresponds to tier i.
type TierMask uint8

func (m *TierMask) Set(tier int)     { *m |= 1 << tier }
func (m TierMask) Has(tier int) bool { return m&(1<<tier) != 0 }

// Entry is a cache entry as the engine sees it. Payload holds the stored
// form: compressed when Compressed is set, raw otherwise.
type Entry struct {
	Key       string
	Partition string

	Payload    Payload
	Compressed bool
	RawSize    int64

	CreatedAt int64 // unix nano
	ExpiresAt int64 // unix nano

	Dependencies []string
	TierMask     TierMask
}

type Payload = []byte

func NewEntry(partition, key string, now time.Time, ttl time.Duration) *Entry {
	created := now.UnixNano()
	return &Entry{
		Key:       key,
		Partition: partition,
		CreatedAt: created,
		ExpiresAt: created + ttl.Nanoseconds(),
	}
}

// StoredSize is the weight the entry contributes to partition occupancy.
func (e *Entry) StoredSize() int64 { return int64(len(e.Payload)) }

func (e *Entry) IsExpired(now time.Time) bool {
	return e.ExpiresAt > 0 && e.ExpiresAt < now.UnixNano()
}

// RemainingTTL is the lifetime left at now. Promoted copies keep the
// original deadline, never a fresh full TTL.
func (e *Entry) RemainingTTL(now time.Time) time.Duration {
	return time.Duration(e.ExpiresAt - now.UnixNano())
}
