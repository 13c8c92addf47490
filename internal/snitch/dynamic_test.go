package snitch

import (
	"reflect"
	"testing"
	"time"

	"gossipdb/internal/clock"
	"gossipdb/internal/membership"
)

type fixedOrderSubSnitch struct {
	order []membership.Endpoint
}

func (f fixedOrderSubSnitch) DatacenterOf(membership.Endpoint) string { return "dc1" }
func (f fixedOrderSubSnitch) RackOf(membership.Endpoint) string      { return "rack1" }
func (f fixedOrderSubSnitch) SortByProximity(membership.Endpoint, []membership.Endpoint) []membership.Endpoint {
	return f.order
}

func ep(addr string) membership.Endpoint { return membership.Endpoint{Addr: addr, Port: 7000} }

// TestDynamicSnitchFallback matches §8 scenario 5 exactly: sub-snitch order
// [A, B, C], scores {A:1.0, B:5.0, C:2.0}, badness_threshold 0.1 -> the sort
// must rewrite to [A, C, B] because B's score blows the 1.1x budget against
// the sorted list's position-1 score.
func TestDynamicSnitchFallback(t *testing.T) {
	a, b, c := ep("a"), ep("b"), ep("c")
	sub := fixedOrderSubSnitch{order: []membership.Endpoint{a, b, c}}
	fake := clock.NewFake()
	d := NewDynamicSnitch(sub, fake, 100, 0.75, 100*time.Millisecond, 10*time.Minute, 0.1)

	d.mu.Lock()
	d.scores = map[membership.Key]float64{
		a.Key(): 1.0,
		b.Key(): 5.0,
		c.Key(): 2.0,
	}
	d.mu.Unlock()

	got := d.SortByProximity(a, []membership.Endpoint{a, b, c})
	want := []membership.Endpoint{a, c, b}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SortByProximity() = %v, want %v", got, want)
	}
}

func TestDynamicSnitchPureScoreOrderWhenBadnessZero(t *testing.T) {
	a, b, c := ep("a"), ep("b"), ep("c")
	sub := fixedOrderSubSnitch{order: []membership.Endpoint{a, b, c}}
	fake := clock.NewFake()
	d := NewDynamicSnitch(sub, fake, 100, 0.75, 100*time.Millisecond, 10*time.Minute, 0)

	d.mu.Lock()
	d.scores = map[membership.Key]float64{
		a.Key(): 3.0,
		b.Key(): 1.0,
		c.Key(): 2.0,
	}
	d.mu.Unlock()

	got := d.SortByProximity(a, []membership.Endpoint{a, b, c})
	want := []membership.Endpoint{b, c, a}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SortByProximity() = %v, want %v", got, want)
	}
}

func TestDynamicSnitchLeavesOrderIntactWithinThreshold(t *testing.T) {
	a, b, c := ep("a"), ep("b"), ep("c")
	sub := fixedOrderSubSnitch{order: []membership.Endpoint{a, b, c}}
	fake := clock.NewFake()
	d := NewDynamicSnitch(sub, fake, 100, 0.75, 100*time.Millisecond, 10*time.Minute, 0.5)

	d.mu.Lock()
	d.scores = map[membership.Key]float64{
		a.Key(): 1.0,
		b.Key(): 1.2,
		c.Key(): 1.3,
	}
	d.mu.Unlock()

	got := d.SortByProximity(a, []membership.Endpoint{a, b, c})
	want := []membership.Endpoint{a, b, c}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SortByProximity() = %v, want %v (should leave sub-snitch order intact)", got, want)
	}
}

func TestIsWorthMergingSingleNode(t *testing.T) {
	fake := clock.NewFake()
	sub := fixedOrderSubSnitch{}
	d := NewDynamicSnitch(sub, fake, 100, 0.75, 100*time.Millisecond, 10*time.Minute, 0)

	a := ep("a")
	if !d.IsWorthMerging([]membership.Endpoint{a}, []membership.Endpoint{a}, nil) {
		t.Fatalf("single-node merged list should always be worth merging")
	}
}

func TestIsWorthMergingMissingScoresDefaultsTrue(t *testing.T) {
	fake := clock.NewFake()
	sub := fixedOrderSubSnitch{}
	d := NewDynamicSnitch(sub, fake, 100, 0.75, 100*time.Millisecond, 10*time.Minute, 0)

	a, b := ep("a"), ep("b")
	if !d.IsWorthMerging([]membership.Endpoint{a, b}, []membership.Endpoint{a}, []membership.Endpoint{b}) {
		t.Fatalf("missing scores means can't decide, should default to true")
	}
}

func TestReceiveTimingAndRebuildScores(t *testing.T) {
	fake := clock.NewFake()
	sub := fixedOrderSubSnitch{}
	d := NewDynamicSnitch(sub, fake, 100, 0.75, 100*time.Millisecond, 10*time.Minute, 0)

	a, b := ep("a"), ep("b")
	d.ReceiveTiming(a.Key(), int64(10*time.Millisecond))
	d.ReceiveTiming(b.Key(), int64(30*time.Millisecond))

	fake.Advance(200 * time.Millisecond)
	d.Tick()

	scoreA := d.score(a.Key())
	scoreB := d.score(b.Key())
	if scoreA >= scoreB {
		t.Fatalf("expected A's lower latency to score below B's: scoreA=%v scoreB=%v", scoreA, scoreB)
	}
}
