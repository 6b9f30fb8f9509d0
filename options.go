package tiercache

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/talowa/go-tier-cache/internal/engine"
)

type options struct {
	clock  clock.Clock
	stores [4]TierStore
}

type Option func(*options)

// WithClock injects a clock, letting tests drive breaker cooldowns and TTL
// expiry deterministically.
func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clock = clk }
}

// WithTierStore replaces the built-in backend for one of the external
// tiers. L1 is always the built-in memory store.
func WithTierStore(t Tier, s TierStore) Option {
	return func(o *options) {
		if t > L1Memory && t <= L4Edge {
			o.stores[t] = s
		}
	}
}

// SetOption carries per-write extras.
type SetOption func(*engine.SetOptions)

// WithTTL overrides the partition default lifetime for this entry.
func WithTTL(ttl time.Duration) SetOption {
	return func(o *engine.SetOptions) { o.TTL = ttl }
}

// WithDependencies records the source keys this entry derives from.
// Invalidating any of them cascades to this entry.
func WithDependencies(sources ...string) SetOption {
	return func(o *engine.SetOptions) {
		o.Dependencies = append(o.Dependencies, sources...)
	}
}
