// Package failover gates every tier access behind a per-tier circuit
// breaker. The controller is the single authority the engine consults
// before touching a tier; engine code never calls a store without it.
package failover

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/talowa/go-tier-cache/config"
	"github.com/talowa/go-tier-cache/internal/monitoring"
	"github.com/talowa/go-tier-cache/internal/tier"
)

// ErrTierUnavailable reports a tier held ineligible by its breaker. It is
// non-fatal by policy: the engine skips the tier and keeps walking.
var ErrTierUnavailable = errors.New("tier unavailable")

type State int32

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// breaker holds one tier's health. All transitions happen under mu so
// concurrent failures cannot double-count the Closed->Open edge.
type breaker struct {
	mu sync.Mutex

	state         State
	consecutive   int
	lastFailureAt time.Time
	openedAt      time.Time
	cooldown      time.Duration
	probeInFlight bool

	// alertWeighted doubles the weight of failures while a sustained
	// latency alert is active for this tier. Advisory only: an alert never
	// opens the circuit by itself.
	alertWeighted bool
}

type Controller struct {
	cfg      *config.FailoverCfg
	clk      clock.Clock
	logger   *slog.Logger
	breakers [tier.Count]*breaker
}

func New(cfg *config.FailoverCfg, clk clock.Clock, logger *slog.Logger) *Controller {
	c := &Controller{cfg: cfg, clk: clk, logger: logger}
	for i := range c.breakers {
		c.breakers[i] = &breaker{state: Closed, cooldown: cfg.Cooldown}
		monitoring.TierState.WithLabelValues(tier.ID(i).String()).Set(float64(Closed))
	}
	return c
}

// Eligible reports whether the tier may be called right now. In HalfOpen it
// also claims the single probe slot: a true return during HalfOpen means
// this caller IS the probe and must report the outcome.
func (c *Controller) Eligible(t tier.ID) bool {
	if t < 0 || int(t) >= tier.Count {
		return false
	}
	b := c.breakers[t]
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if c.clk.Now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		c.setStateLocked(t, b, HalfOpen)
		b.probeInFlight = true
		return true
	case HalfOpen:
		if b.probeInFlight {
			return false
		}
		b.probeInFlight = true
		return true
	}
	return false
}

// Release returns an unused Eligible claim without recording an outcome.
// Callers use it when the claimed call never reached the store, so a
// half-open probe slot is not held by a call that told us nothing about
// tier health.
func (c *Controller) Release(t tier.ID) {
	if t < 0 || int(t) >= tier.Count {
		return
	}
	b := c.breakers[t]
	b.mu.Lock()
	if b.state == HalfOpen {
		b.probeInFlight = false
	}
	b.mu.Unlock()
}

// Report feeds the outcome of a tier call back into the breaker.
func (c *Controller) Report(t tier.ID, err error) {
	if err != nil {
		c.reportFailure(t)
	} else {
		c.reportSuccess(t)
	}
}

func (c *Controller) reportSuccess(t tier.ID) {
	b := c.breakers[t]
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		// probe succeeded, tier recovered
		b.probeInFlight = false
		b.consecutive = 0
		b.cooldown = c.cfg.Cooldown
		c.setStateLocked(t, b, Closed)
	case Closed:
		b.consecutive = 0
	}
}

func (c *Controller) reportFailure(t tier.ID) {
	b := c.breakers[t]
	b.mu.Lock()
	defer b.mu.Unlock()

	now := c.clk.Now()

	switch b.state {
	case HalfOpen:
		// probe failed: back to Open with doubled, capped cooldown
		b.probeInFlight = false
		b.openedAt = now
		b.cooldown *= 2
		if b.cooldown > c.cfg.BackoffCap {
			b.cooldown = c.cfg.BackoffCap
		}
		c.setStateLocked(t, b, Open)
	case Closed:
		// failures only count as consecutive within the sliding window
		if b.consecutive > 0 && now.Sub(b.lastFailureAt) > c.cfg.Window {
			b.consecutive = 0
		}
		weight := 1
		if b.alertWeighted {
			weight = 2
		}
		b.consecutive += weight
		b.lastFailureAt = now
		if b.consecutive >= c.cfg.FailureThreshold {
			b.openedAt = now
			b.cooldown = c.cfg.Cooldown
			c.setStateLocked(t, b, Open)
		}
	case Open:
		b.lastFailureAt = now
	}
}

func (c *Controller) State(t tier.ID) State {
	b := c.breakers[t]
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// States returns a point-in-time copy of all breaker states.
func (c *Controller) States() [tier.Count]State {
	var out [tier.Count]State
	for i := range c.breakers {
		out[i] = c.State(tier.ID(i))
	}
	return out
}

// Emergency reports whether both local tiers are down. The engine then runs
// in direct-passthrough mode: every get is a miss, every set a no-op,
// without touching L3/L4.
func (c *Controller) Emergency() bool {
	return c.State(tier.L1Memory) == Open && c.State(tier.L2Persistent) == Open
}

// OnAlert consumes monitoring alerts. A sustained latency alert for a tier
// doubles the weight of its subsequent failures until the alert clears.
func (c *Controller) OnAlert(a monitoring.Alert) {
	if a.Kind != monitoring.AlertLatencyHigh || a.Tier < 0 || int(a.Tier) >= tier.Count {
		return
	}
	b := c.breakers[a.Tier]
	b.mu.Lock()
	b.alertWeighted = !a.Cleared
	b.mu.Unlock()
}

// Probe runs one health probe against the store and reports the outcome.
// Useful for warming a HalfOpen tier without caller traffic.
func (c *Controller) Probe(ctx context.Context, t tier.ID, store tier.Store) error {
	if store == nil || !c.Eligible(t) {
		return ErrTierUnavailable
	}
	err := store.HealthProbe(ctx)
	c.Report(t, err)
	return err
}

func (c *Controller) setStateLocked(t tier.ID, b *breaker, next State) {
	if b.state == next {
		return
	}
	c.logger.Info("tier breaker state changed",
		"tier", t.String(), "from", b.state.String(), "to", next.String(),
		"consecutive_failures", b.consecutive, "cooldown", b.cooldown.String())
	b.state = next
	monitoring.TierState.WithLabelValues(t.String()).Set(float64(next))
}
