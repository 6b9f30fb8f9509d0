package tier

import (
	"context"
	"time"
)

// ID identifies a layer in the cache hierarchy, fastest first.
type ID int

const (
	L1Memory ID = iota
	L2Persistent
	L3Distributed
	L4Edge

	Count = 4
)

func (id ID) String() string {
	switch id {
	case L1Memory:
		return "l1-memory"
	case L2Persistent:
		return "l2-persistent"
	case L3Distributed:
		return "l3-distributed"
	case L4Edge:
		return "l4-edge"
	default:
		return "unknown"
	}
}

// All lists tiers in lookup order.
func All() []ID {
	return []ID{L1Memory, L2Persistent, L3Distributed, L4Edge}
}

// Store is the uniform contract every tier backend implements. Payloads are
// opaque encoded frames; the store never interprets them. Stores must be
// safe for concurrent use and must respect ctx deadlines since the engine
// counts a timed-out call as a tier failure.
type Store interface {
	Get(ctx context.Context, partition, key string) (payload []byte, found bool, err error)
	Set(ctx context.Context, partition, key string, payload []byte, ttl time.Duration) error
	Delete(ctx context.Context, partition, key string) error
	HealthProbe(ctx context.Context) error
	Close() error
}
