package snitch

import (
	"sync"
	"time"

	"gossipdb/internal/clock"
	"gossipdb/internal/membership"
)

// DynamicSnitch wraps a static SubSnitch with latency-based proximity
// scoring (§4.5 "Dynamic wrapper").
type DynamicSnitch struct {
	sub SubSnitch
	clk clock.Clock

	window           int
	alpha            float64
	updateInterval   time.Duration
	resetInterval    time.Duration
	badnessThreshold float64

	mu         sync.Mutex
	samples    map[membership.Key]*decayingSample
	severity   map[membership.Key]float64
	scores     map[membership.Key]float64
	lastUpdate time.Time
	lastReset  time.Time
}

// NewDynamicSnitch builds a dynamic snitch over sub. updateInterval,
// resetInterval, window, alpha and badnessThreshold default to the §6
// constants when zero-valued.
func NewDynamicSnitch(sub SubSnitch, clk clock.Clock, window int, alpha float64, updateInterval, resetInterval time.Duration, badnessThreshold float64) *DynamicSnitch {
	now := clk.Now()
	return &DynamicSnitch{
		sub:              sub,
		clk:              clk,
		window:           window,
		alpha:            alpha,
		updateInterval:   updateInterval,
		resetInterval:    resetInterval,
		badnessThreshold: badnessThreshold,
		samples:          make(map[membership.Key]*decayingSample),
		severity:         make(map[membership.Key]float64),
		scores:           make(map[membership.Key]float64),
		lastUpdate:       now,
		lastReset:        now,
	}
}

// ReceiveTiming records one RPC's measured latency for ep — the transport's
// hook on every completed call (§4.5).
func (d *DynamicSnitch) ReceiveTiming(ep membership.Key, latencyNanos int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.samples[ep]
	if !ok {
		s = newDecayingSample(d.window, d.alpha)
		d.samples[ep] = s
	}
	s.add(float64(latencyNanos))
}

// SetSeverity records an externally supplied severity contribution for ep
// (the management accessor set_severity, §6), folded additively into its
// score on the next rebuild.
func (d *DynamicSnitch) SetSeverity(ep membership.Key, value float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.severity[ep] = value
}

// Tick drives the periodic score rebuild and sample reset, both on the
// caller's schedule (typically the Gossiper's tick, §4.5 "updated on every
// RPC completion" / "rebuilt every update_interval").
func (d *DynamicSnitch) Tick() {
	now := d.clk.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if now.Sub(d.lastReset) >= d.resetInterval {
		d.samples = make(map[membership.Key]*decayingSample)
		d.lastReset = now
	}
	if now.Sub(d.lastUpdate) < d.updateInterval {
		return
	}
	d.lastUpdate = now
	d.rebuildScoresLocked()
}

func (d *DynamicSnitch) rebuildScoresLocked() {
	var maxMedian float64
	medians := make(map[membership.Key]float64, len(d.samples))
	for ep, s := range d.samples {
		m := s.median()
		medians[ep] = m
		if m > maxMedian {
			maxMedian = m
		}
	}

	scores := make(map[membership.Key]float64, len(medians))
	for ep, m := range medians {
		ratio := 0.0
		if maxMedian > 0 {
			ratio = m / maxMedian
		}
		scores[ep] = ratio + d.severity[ep]
	}
	d.scores = scores
}

// score returns ep's current score, seeding a zero-latency sample for
// unknown endpoints so the next round starts learning about them
// (§4.5 "a zero-latency sample is seeded so the next round learns about
// them").
func (d *DynamicSnitch) score(ep membership.Key) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.scores[ep]; ok {
		return s
	}
	if _, ok := d.samples[ep]; !ok {
		d.samples[ep] = newDecayingSample(d.window, d.alpha)
		d.samples[ep].add(0)
	}
	return 0
}

// SortByProximity implements the two algorithms of §4.5 selected by
// badness_threshold.
func (d *DynamicSnitch) SortByProximity(from membership.Endpoint, list []membership.Endpoint) []membership.Endpoint {
	if d.badnessThreshold == 0 {
		return sortKeysByScore(list, func(ep membership.Endpoint) float64 {
			return d.score(ep.Key())
		})
	}

	subOrder := d.sub.SortByProximity(from, list)
	scoreOrder := sortKeysByScore(list, func(ep membership.Endpoint) float64 {
		return d.score(ep.Key())
	})

	factor := 1 + d.badnessThreshold
	for i := range subOrder {
		subScore := d.score(subOrder[i].Key())
		sortedScore := d.score(scoreOrder[i].Key())
		if sortedScore > 0 && subScore > sortedScore*factor {
			return scoreOrder
		}
	}
	return subOrder
}

// IsWorthMerging decides whether merging two proximity-sorted range owner
// lists is worth the extra fan-out (§4.5 "Range-merge heuristic").
func (d *DynamicSnitch) IsWorthMerging(merged, l1, l2 []membership.Endpoint) bool {
	if len(merged) <= 1 {
		return true
	}

	maxScore := func(list []membership.Endpoint) (float64, bool) {
		d.mu.Lock()
		defer d.mu.Unlock()
		max := 0.0
		found := false
		for _, ep := range list {
			s, ok := d.scores[ep.Key()]
			if !ok {
				return 0, false
			}
			found = true
			if s > max {
				max = s
			}
		}
		return max, found
	}

	mergedMax, ok := maxScore(merged)
	if !ok {
		return true
	}
	l1Max, ok := maxScore(l1)
	if !ok {
		return true
	}
	l2Max, ok := maxScore(l2)
	if !ok {
		return true
	}

	return mergedMax <= (l1Max+l2Max)*1.5
}

// Scores returns a snapshot of every endpoint's last-rebuilt proximity
// score, for the §6 management accessor scores().
func (d *DynamicSnitch) Scores() map[membership.Key]float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[membership.Key]float64, len(d.scores))
	for k, v := range d.scores {
		out[k] = v
	}
	return out
}

// DumpTimings returns the raw decaying-sample window currently held for
// ep, for the §6 management accessor dump_timings(host). Returns nil for
// an endpoint with no recorded samples.
func (d *DynamicSnitch) DumpTimings(ep membership.Key) []float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.samples[ep]
	if !ok {
		return nil
	}
	out := make([]float64, len(s.values))
	copy(out, s.values)
	return out
}

// DatacenterOf and RackOf delegate to the wrapped sub-snitch, so a
// DynamicSnitch satisfies SubSnitch itself and can sit anywhere a static
// snitch is expected.
func (d *DynamicSnitch) DatacenterOf(ep membership.Endpoint) string { return d.sub.DatacenterOf(ep) }
func (d *DynamicSnitch) RackOf(ep membership.Endpoint) string      { return d.sub.RackOf(ep) }
