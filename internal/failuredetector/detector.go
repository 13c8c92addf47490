package failuredetector

import (
	"sync"

	"gossipdb/internal/clock"
	"gossipdb/internal/membership"
)

// Outcome is the result of Interpret: either no conviction, or a
// conviction carrying the phi value that triggered it.
type Outcome struct {
	Convicted bool
	Phi       float64
}

// Detector is the phi-accrual failure detector (C3): one arrival window
// per endpoint, each individually synchronized (§5 "no cross-window lock
// is required").
type Detector struct {
	clk clock.Clock

	initialInterval int64 // nanoseconds, seeds a brand-new window
	maxInterval     int64 // nanoseconds, discard threshold
	threshold       float64

	mu      sync.Mutex
	windows map[membership.Key]*arrivalWindow
}

// New builds a Detector. initialInterval should be 2x the gossip period
// per §3/§6 defaults; maxInterval defaults to the same value unless
// configured otherwise.
func New(clk clock.Clock, initialInterval, maxInterval int64, convictThreshold float64) *Detector {
	return &Detector{
		clk:             clk,
		initialInterval: initialInterval,
		maxInterval:     maxInterval,
		threshold:       convictThreshold,
		windows:         make(map[membership.Key]*arrivalWindow),
	}
}

// SetConvictThreshold updates the threshold at runtime (§6 management
// accessor set_phi_convict_threshold).
func (d *Detector) SetConvictThreshold(threshold float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.threshold = threshold
}

// ConvictThreshold returns the current threshold.
func (d *Detector) ConvictThreshold() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.threshold
}

// Report records an arrival for endpoint at the current monotonic time,
// lazily creating its window (§4.2).
func (d *Detector) Report(ep membership.Key) {
	now := d.clk.Now().UnixNano()

	d.mu.Lock()
	w, ok := d.windows[ep]
	if !ok {
		w = newArrivalWindow(1000, d.maxInterval)
		d.windows[ep] = w
	}
	d.mu.Unlock()

	w.report(now, d.initialInterval)
}

// Interpret computes phi for endpoint and reports a conviction if
// phi * (1/ln 10) exceeds the convict threshold (§4.2). Unknown endpoints
// are a no-op — the window must hold at least one interval before phi is
// meaningful.
func (d *Detector) Interpret(ep membership.Key) Outcome {
	d.mu.Lock()
	w, ok := d.windows[ep]
	threshold := d.threshold
	d.mu.Unlock()

	if !ok {
		return Outcome{}
	}

	now := d.clk.Now().UnixNano()
	rawPhi := w.phi(now)
	scaled := rawPhi * phiFactor
	if scaled > threshold {
		return Outcome{Convicted: true, Phi: scaled}
	}
	return Outcome{}
}

// ResetForNewGeneration clears ep's arrival window: a generation change
// means a process restart, so prior inter-arrival statistics no longer
// describe anything meaningful (§3 ArrivalWindow lifecycle).
func (d *Detector) ResetForNewGeneration(ep membership.Key) {
	d.Remove(ep)
}

// Remove forgets an endpoint's window entirely (used on eviction).
func (d *Detector) Remove(ep membership.Key) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.windows, ep)
}

// ForceConviction synthesizes a conviction without waiting on the math —
// used by operator-driven removal (§4.2, §7 class 6).
func (d *Detector) ForceConviction(ep membership.Key) Outcome {
	return Outcome{Convicted: true, Phi: d.threshold}
}
