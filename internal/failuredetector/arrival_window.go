// Package failuredetector implements C3, the phi-accrual failure
// detector: a non-binary liveness estimator driven by heartbeat
// inter-arrival intervals.
package failuredetector

import "math"

// phiFactor is 1/ln(10), retained so operators tuned to the historical
// default threshold of 8 need not retune (§4.2 "Rationale for the
// constant").
const phiFactor = 1 / math.Ln10

// arrivalWindow is a bounded FIFO window of inter-arrival intervals
// (nanoseconds) for one endpoint, plus the timestamp of the last arrival.
// At most maxSamples intervals are kept; intervals longer than maxInterval
// are discarded so a long partition can't poison the mean (§3, §4.2).
type arrivalWindow struct {
	intervals   []int64 // nanoseconds, oldest first
	maxSamples  int
	maxInterval int64 // nanoseconds
	lastArrival int64 // monotonic nanoseconds; 0 means "never seen"
	hasArrival  bool
}

func newArrivalWindow(maxSamples int, maxInterval int64) *arrivalWindow {
	return &arrivalWindow{
		intervals:   make([]int64, 0, maxSamples),
		maxSamples:  maxSamples,
		maxInterval: maxInterval,
	}
}

// report records an arrival at now (monotonic nanoseconds). The very
// first arrival for a window seeds it with the initial value rather than
// recording an interval (there is no prior arrival to measure from).
func (w *arrivalWindow) report(now int64, initialIntervalNanos int64) {
	if !w.hasArrival {
		w.hasArrival = true
		w.lastArrival = now
		w.push(initialIntervalNanos)
		return
	}

	interval := now - w.lastArrival
	w.lastArrival = now
	if interval > w.maxInterval {
		// Long partitions should not poison the mean — discard.
		return
	}
	w.push(interval)
}

func (w *arrivalWindow) push(interval int64) {
	w.intervals = append(w.intervals, interval)
	if len(w.intervals) > w.maxSamples {
		w.intervals = w.intervals[1:]
	}
}

// mean returns the arithmetic mean of the held intervals. Callers must
// ensure the window is non-empty.
func (w *arrivalWindow) mean() float64 {
	if len(w.intervals) == 0 {
		return 0
	}
	var sum int64
	for _, v := range w.intervals {
		sum += v
	}
	return float64(sum) / float64(len(w.intervals))
}

// phi computes the raw accrual suspicion value for a candidate "now" given
// the last observed arrival and the window's mean inter-arrival interval:
// phi = (now - last_arrival) / mean(intervals). The 1/ln(10) scaling
// factor is applied by the caller when comparing against the conviction
// threshold (§4.2), not here.
func (w *arrivalWindow) phi(now int64) float64 {
	if len(w.intervals) == 0 {
		return 0
	}
	t := float64(now - w.lastArrival)
	mean := w.mean()
	if mean <= 0 {
		return 0
	}
	return t / mean
}
