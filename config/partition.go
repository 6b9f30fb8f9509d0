package config

import "time"

// EvictionPolicy defines how a partition frees space under capacity pressure.
type EvictionPolicy string

const (
	// EvictionLRU evicts the least-recently-used entries first.
	EvictionLRU EvictionPolicy = "lru"

	// EvictionTTL evicts the soonest-to-expire entries first.
	EvictionTTL EvictionPolicy = "ttl"
)

const defaultPartitionTTL = 30 * time.Minute

// PartitionCfg describes one named, independently managed subdivision of the
// cache keyspace. The partition table is fixed at initialization.
type PartitionCfg struct {
	// Name identifies the partition. Writes naming an unknown partition are
	// rejected as a caller programming error.
	Name string `yaml:"name"`

	// CapacityBytes bounds the sum of stored payload sizes in this partition.
	// The bound is enforced by eviction around each write, never exceeded
	// after eviction runs.
	CapacityBytes int64 `yaml:"capacity_bytes"`

	// TTL is the default lifetime of an entry. A write may override it
	// per entry. Expired entries are never served and are removed by the
	// background sweep.
	TTL time.Duration `yaml:"ttl"`

	// EvictionPolicy selects the victim order under capacity pressure.
	// TTL expiry always runs first regardless of this policy; the policy
	// only orders still-valid entries.
	EvictionPolicy EvictionPolicy `yaml:"eviction_policy"`
}

func (p *PartitionCfg) adjust() {
	if p.TTL <= 0 {
		p.TTL = defaultPartitionTTL
	}
	if p.EvictionPolicy == "" {
		p.EvictionPolicy = EvictionLRU
	}
}
