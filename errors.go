package tiercache

import (
	"github.com/talowa/go-tier-cache/internal/engine"
	"github.com/talowa/go-tier-cache/internal/failover"
	"github.com/talowa/go-tier-cache/internal/model"
	"github.com/talowa/go-tier-cache/internal/partition"
)

// Error kinds. Tier-level failures never propagate to callers; they
// degrade to misses or no-ops and are visible through monitoring. Only
// ErrInvalidPartition and ErrMalformedKey surface synchronously.
var (
	// ErrInvalidPartition reports a reference to a partition missing from
	// the configured table, a caller programming error.
	ErrInvalidPartition = partition.ErrInvalidPartition

	// ErrMalformedKey reports an empty or otherwise unusable key.
	ErrMalformedKey = engine.ErrMalformedKey

	// ErrTierUnavailable marks a tier held ineligible by its breaker.
	ErrTierUnavailable = failover.ErrTierUnavailable

	// ErrCapacityExceeded marks a write that could not be admitted into L1
	// even after eviction.
	ErrCapacityExceeded = engine.ErrCapacityExceeded

	// ErrCorruptEntry marks an undecodable stored entry, treated as a miss.
	ErrCorruptEntry = model.ErrCorruptEntry
)
