package monitoring

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/talowa/go-tier-cache/config"
	"github.com/talowa/go-tier-cache/internal/tier"
)

type Outcome int

const (
	OutcomeHit Outcome = iota
	OutcomeMiss
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHit:
		return "hit"
	case OutcomeMiss:
		return "miss"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

const ringCapacity = 4096

type sample struct {
	at      int64 // unix nano
	latency int64 // nanoseconds
	outcome Outcome
}

// ring is a fixed-capacity sample buffer; old samples are overwritten and
// additionally filtered by window age at read time.
type ring struct {
	mu   sync.Mutex
	buf  [ringCapacity]sample
	next int
	full bool
}

func (r *ring) push(s sample) {
	r.mu.Lock()
	r.buf[r.next] = s
	r.next = (r.next + 1) % ringCapacity
	if r.next == 0 {
		r.full = true
	}
	r.mu.Unlock()
}

// within copies samples not older than the horizon.
func (r *ring) within(horizon int64) []sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.next
	if r.full {
		n = ringCapacity
	}
	out := make([]sample, 0, n)
	for i := 0; i < n; i++ {
		if r.buf[i].at >= horizon {
			out = append(out, r.buf[i])
		}
	}
	return out
}

// ringKey scopes one rolling window to a tier and partition pair.
type ringKey struct {
	t    tier.ID
	part string
}

// Monitor aggregates per-tier, per-partition operation outcomes and latency
// into rolling-window statistics, and raises threshold alerts consumed by
// the failover layer and external dashboards.
type Monitor struct {
	cfg    *config.MonitoringCfg
	clk    clock.Clock
	logger *slog.Logger
	cancel context.CancelFunc

	rmu   sync.RWMutex
	rings map[ringKey]*ring

	mu     sync.Mutex
	subs   []func(Alert)
	active map[alertKey]Alert
}

func New(ctx context.Context, cfg *config.MonitoringCfg, clk clock.Clock, logger *slog.Logger) *Monitor {
	ctx, cancel := context.WithCancel(ctx)
	m := &Monitor{
		cfg:    cfg,
		clk:    clk,
		logger: logger,
		cancel: cancel,
		rings:  make(map[ringKey]*ring),
		active: make(map[alertKey]Alert),
	}
	if cfg.Enabled() {
		go m.evaluateLoop(ctx)
	}
	return m
}

// ring returns the window for one tier and partition, creating it on first
// use. The partition table is small and fixed, so the map stays bounded.
func (m *Monitor) ring(t tier.ID, part string) *ring {
	k := ringKey{t: t, part: part}
	m.rmu.RLock()
	r := m.rings[k]
	m.rmu.RUnlock()
	if r != nil {
		return r
	}

	m.rmu.Lock()
	defer m.rmu.Unlock()
	if r = m.rings[k]; r == nil {
		r = &ring{}
		m.rings[k] = r
	}
	return r
}

// ringsFor copies the current windows matching the filter.
func (m *Monitor) ringsFor(match func(ringKey) bool) []*ring {
	m.rmu.RLock()
	defer m.rmu.RUnlock()
	out := make([]*ring, 0, len(m.rings))
	for k, r := range m.rings {
		if match(k) {
			out = append(out, r)
		}
	}
	return out
}

func (m *Monitor) Close() error {
	m.cancel()
	return nil
}

// Record feeds one tier call outcome into the rolling window and the
// prometheus export.
func (m *Monitor) Record(t tier.ID, partition string, out Outcome, latency time.Duration) {
	if t < 0 || int(t) >= tier.Count {
		return
	}
	m.ring(t, partition).push(sample{
		at:      m.clk.Now().UnixNano(),
		latency: latency.Nanoseconds(),
		outcome: out,
	})
	OpsTotal.WithLabelValues(t.String(), partition, out.String()).Inc()
	OpDuration.WithLabelValues(t.String()).Observe(latency.Seconds())
}

// Subscribe registers a callback invoked on every alert raise and clear.
// Callbacks must be fast; they run on the evaluation goroutine.
func (m *Monitor) Subscribe(fn func(Alert)) {
	m.mu.Lock()
	m.subs = append(m.subs, fn)
	m.mu.Unlock()
}

// HitRatio is hits/(hits+misses) across all tiers within the window.
// Returns 1.0 when there were no lookups, so an idle cache never alerts.
func (m *Monitor) HitRatio() float64 {
	horizon := m.horizon()
	var hits, total int
	for _, r := range m.ringsFor(func(ringKey) bool { return true }) {
		for _, s := range r.within(horizon) {
			switch s.outcome {
			case OutcomeHit:
				hits++
				total++
			case OutcomeMiss:
				total++
			}
		}
	}
	if total == 0 {
		return 1.0
	}
	return float64(hits) / float64(total)
}

// P95 is the 95th percentile latency for one tier within the window, across
// all partitions.
func (m *Monitor) P95(t tier.ID) time.Duration {
	if t < 0 || int(t) >= tier.Count {
		return 0
	}
	return m.p95Of(m.ringsFor(func(k ringKey) bool { return k.t == t }))
}

// PartitionP95 scopes the 95th percentile latency to one tier and partition.
func (m *Monitor) PartitionP95(t tier.ID, partition string) time.Duration {
	if t < 0 || int(t) >= tier.Count {
		return 0
	}
	return m.p95Of(m.ringsFor(func(k ringKey) bool { return k.t == t && k.part == partition }))
}

func (m *Monitor) p95Of(rings []*ring) time.Duration {
	horizon := m.horizon()
	var lats []int64
	for _, r := range rings {
		for _, s := range r.within(horizon) {
			lats = append(lats, s.latency)
		}
	}
	if len(lats) == 0 {
		return 0
	}
	sort.Slice(lats, func(i, j int) bool { return lats[i] < lats[j] })
	idx := (len(lats)*95 + 99) / 100
	if idx > 0 {
		idx--
	}
	return time.Duration(lats[idx])
}

// ActiveAlerts returns a point-in-time copy of the currently firing alerts.
func (m *Monitor) ActiveAlerts() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Alert, 0, len(m.active))
	for _, a := range m.active {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Tier < out[j].Tier
	})
	return out
}

func (m *Monitor) horizon() int64 {
	window := time.Minute
	if m.cfg.Enabled() && m.cfg.Window > 0 {
		window = m.cfg.Window
	}
	return m.clk.Now().Add(-window).UnixNano()
}

func (m *Monitor) evaluateLoop(ctx context.Context) {
	ticker := m.clk.Ticker(m.cfg.EvaluateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Evaluate()
		}
	}
}

// Evaluate runs one threshold pass. Exported so tests can drive it without
// waiting on the ticker.
func (m *Monitor) Evaluate() {
	if !m.cfg.Enabled() {
		return
	}

	if m.cfg.MinHitRatio > 0 {
		ratio := m.HitRatio()
		m.transition(alertKey{kind: AlertHitRatioLow, tier: TierNone},
			ratio < m.cfg.MinHitRatio, ratio, m.cfg.MinHitRatio)
	}

	if m.cfg.MaxP95Latency > 0 {
		for _, t := range tier.All() {
			p95 := m.P95(t)
			m.transition(alertKey{kind: AlertLatencyHigh, tier: t},
				p95 > m.cfg.MaxP95Latency, p95.Seconds(), m.cfg.MaxP95Latency.Seconds())
		}
	}
}

func (m *Monitor) transition(key alertKey, firing bool, value, threshold float64) {
	m.mu.Lock()
	_, wasActive := m.active[key]

	var notify *Alert
	switch {
	case firing && !wasActive:
		a := Alert{
			Kind:      key.kind,
			Tier:      key.tier,
			Value:     value,
			Threshold: threshold,
			RaisedAt:  m.clk.Now(),
		}
		m.active[key] = a
		notify = &a
		AlertsActive.WithLabelValues(string(key.kind)).Inc()
	case !firing && wasActive:
		a := m.active[key]
		delete(m.active, key)
		a.Cleared = true
		a.Value = value
		notify = &a
		AlertsActive.WithLabelValues(string(key.kind)).Dec()
	}
	subs := m.subs
	m.mu.Unlock()

	if notify == nil {
		return
	}
	if notify.Cleared {
		m.logger.Info("alert cleared", "kind", string(notify.Kind), "tier", notify.Tier.String(), "value", notify.Value)
	} else {
		m.logger.Warn("alert raised", "kind", string(notify.Kind), "tier", notify.Tier.String(),
			"value", notify.Value, "threshold", notify.Threshold)
	}
	for _, fn := range subs {
		fn(*notify)
	}
}
