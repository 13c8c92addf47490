package membership

import "sync/atomic"

// VersionGenerator is the process-wide monotonic counter backing both
// HeartbeatState.Version bumps and ApplicationState version stamps for the
// local node. It never decreases and is never reused, matching §3/§4.1.
//
// The design notes call for collapsing the source's process-wide static
// into "a single atomic integer inside the state module" rather than a
// global singleton — this type is that atomic integer, owned by whichever
// EndpointState represents the local node (wired in by the composition
// root), not by a package-level variable.
type VersionGenerator struct {
	counter atomic.Int64
}

// Next returns a strictly increasing version, starting from 1.
func (g *VersionGenerator) Next() int64 {
	return g.counter.Add(1)
}

// Peek returns the most recently issued version without advancing it.
func (g *VersionGenerator) Peek() int64 {
	return g.counter.Load()
}

// AdvanceTo bumps the counter so the next Next() call returns at least
// floor+1. Used by local_update's "survive races with already-applied
// remote updates" rule (§4.1): if a concurrent merge already pushed the
// local EndpointState's max version ahead of our own counter, the next
// locally originated update must still land strictly above it.
func (g *VersionGenerator) AdvanceTo(floor int64) {
	for {
		cur := g.counter.Load()
		if cur >= floor {
			return
		}
		if g.counter.CompareAndSwap(cur, floor) {
			return
		}
	}
}
