package gossip

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"gossipdb/internal/clock"
	"gossipdb/internal/config"
	"gossipdb/internal/eventbus"
	"gossipdb/internal/failuredetector"
	"gossipdb/internal/membership"
	"gossipdb/internal/obslog"
	"gossipdb/internal/topology"
)

// registry wires together fakeTransports for an in-process cluster of
// Gossipers under test, so SendSyn/SendAck2/SendEcho dispatch straight to
// the peer's Handle* methods without any real networking.
type registry struct {
	mu       sync.Mutex
	handlers map[membership.Key]InboundHandler
}

func newRegistry() *registry { return &registry{handlers: make(map[membership.Key]InboundHandler)} }

func (r *registry) register(k membership.Key, h InboundHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[k] = h
}

func (r *registry) lookup(k membership.Key) (InboundHandler, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handlers[k]
	return h, ok
}

var errNoRoute = errors.New("fake transport: no route to peer")

type fakeTransport struct {
	from membership.Endpoint
	reg  *registry
}

func (t *fakeTransport) SendSyn(_ context.Context, to membership.Endpoint, msg SynMessage) (AckMessage, error) {
	h, ok := t.reg.lookup(to.Key())
	if !ok {
		return AckMessage{}, errNoRoute
	}
	return h.HandleSyn(t.from, msg)
}

func (t *fakeTransport) SendAck2(_ context.Context, to membership.Endpoint, msg Ack2Message) error {
	h, ok := t.reg.lookup(to.Key())
	if !ok {
		return errNoRoute
	}
	h.HandleAck2(t.from, msg)
	return nil
}

func (t *fakeTransport) SendEcho(_ context.Context, to membership.Endpoint) error {
	h, ok := t.reg.lookup(to.Key())
	if !ok {
		return errNoRoute
	}
	h.HandleEcho(t.from)
	return nil
}

func (t *fakeTransport) SendShutdown(_ context.Context, to membership.Endpoint) error {
	h, ok := t.reg.lookup(to.Key())
	if !ok {
		return nil
	}
	h.HandleShutdown(t.from)
	return nil
}

func newTestGossiper(t *testing.T, reg *registry, local membership.Endpoint, seeds []membership.Endpoint) (*Gossiper, *clock.Fake) {
	t.Helper()
	cfg := config.Default()
	cfg.RingDelay = 50 * time.Millisecond
	clk := clock.NewFake()
	bus := eventbus.New()
	det := failuredetector.New(clk, int64(cfg.FDInitialInterval), int64(cfg.FDMaxInterval), cfg.PhiConvictThreshold)
	topo := topology.New()
	g := New(cfg, clk, &fakeTransport{from: local, reg: reg}, bus, det, topo, obslog.Nop(), local, "test-cluster", seeds)
	g.rng = rand.New(rand.NewSource(1))
	reg.register(local.Key(), g)
	g.initLocal(clk.Now().Unix())
	return g, clk
}

// addKnownPeer directly seeds g's endpoint-state map with a peer it
// already knows about, bypassing gossip — used to set up "B already
// knows C" fixtures for the cold-join scenario.
func addKnownPeer(g *Gossiper, ep membership.Endpoint, generation int64) *membership.EndpointState {
	st := membership.NewEndpointState(generation)
	st.LocalUpdate(&membership.VersionGenerator{}, membership.StatusKey, "NORMAL")
	g.mu.Lock()
	g.entries[ep.Key()] = &entry{endpoint: ep, state: st}
	g.live[ep.Key()] = true
	g.mu.Unlock()
	return st
}

func knows(g *Gossiper, ep membership.Endpoint) bool {
	_, ok := g.EndpointStateOf(ep)
	return ok
}

// TestColdJoinScenario is §8 scenario 1: node A starts with seeds {B}; B
// is alive with one existing endpoint C. After one full SYN/ACK/ACK2
// exchange, A knows B and C, and B knows A.
func TestColdJoinScenario(t *testing.T) {
	reg := newRegistry()
	a := membership.Endpoint{Addr: "10.0.0.1", Port: 7000}
	b := membership.Endpoint{Addr: "10.0.0.2", Port: 7000}
	c := membership.Endpoint{Addr: "10.0.0.3", Port: 7000}

	gA, _ := newTestGossiper(t, reg, a, []membership.Endpoint{b})
	gB, _ := newTestGossiper(t, reg, b, nil)
	addKnownPeer(gB, c, 1000)

	gA.tick()

	if !knows(gA, b) {
		t.Fatalf("A should know B after gossiping to its seed")
	}
	if !knows(gA, c) {
		t.Fatalf("A should know C (transitively via B) after one full exchange")
	}
	if !knows(gB, a) {
		t.Fatalf("B should know A after responding to A's SYN")
	}
}

// TestApplyingSameStateTwiceIsNoop exercises the §8 idempotence property:
// applying the same remote state twice produces the same observable
// result as applying it once.
func TestApplyingSameStateTwiceIsNoop(t *testing.T) {
	reg := newRegistry()
	a := membership.Endpoint{Addr: "10.0.0.1", Port: 7000}
	b := membership.Endpoint{Addr: "10.0.0.2", Port: 7000}
	gA, _ := newTestGossiper(t, reg, a, nil)

	snap := EndpointStateSnapshot{
		Heartbeat: membership.HeartbeatState{Generation: 5, Version: 3},
		States: map[membership.AppStateKey]membership.ApplicationState{
			membership.StatusKey: {Key: membership.StatusKey, Value: "NORMAL", Version: 3},
		},
	}

	gA.applyEndpointState(b, snap)
	first, ok := gA.EndpointStateOf(b)
	if !ok {
		t.Fatalf("expected B to be known after first apply")
	}
	firstMax := first.MaxVersion()

	gA.applyEndpointState(b, snap)
	second, _ := gA.EndpointStateOf(b)
	if second.MaxVersion() != firstMax {
		t.Fatalf("re-applying identical state changed MaxVersion: %d -> %d", firstMax, second.MaxVersion())
	}
}

// TestQuarantineRejectsGossipAboutEvictedEndpoint is §8's quarantine
// property: an endpoint evicted at time T cannot reappear in the
// endpoint-state map before T + quarantine_delay.
func TestQuarantineRejectsGossipAboutEvictedEndpoint(t *testing.T) {
	reg := newRegistry()
	a := membership.Endpoint{Addr: "10.0.0.1", Port: 7000}
	dead := membership.Endpoint{Addr: "10.0.0.9", Port: 7000}
	gA, clk := newTestGossiper(t, reg, a, nil)

	addKnownPeer(gA, dead, 1)
	gA.evict(dead)

	snap := EndpointStateSnapshot{Heartbeat: membership.HeartbeatState{Generation: 2, Version: 1}}
	gA.applyEndpointState(dead, snap)
	if knows(gA, dead) {
		t.Fatalf("quarantined endpoint should not be re-admitted before quarantine_delay elapses")
	}

	clk.Advance(gA.cfg.QuarantineDelay() + time.Second)
	gA.purgeQuarantine()

	gA.applyEndpointState(dead, snap)
	if !knows(gA, dead) {
		t.Fatalf("endpoint should be re-admissible after quarantine_delay elapses")
	}
}

// TestMarkDeadPublishesOnDead checks that a convicted endpoint moves from
// live to unreachable and the event bus fires on_dead exactly once.
func TestMarkDeadPublishesOnDead(t *testing.T) {
	reg := newRegistry()
	a := membership.Endpoint{Addr: "10.0.0.1", Port: 7000}
	peer := membership.Endpoint{Addr: "10.0.0.2", Port: 7000}
	gA, _ := newTestGossiper(t, reg, a, nil)
	addKnownPeer(gA, peer, 1)

	var fired int
	gA.bus.Subscribe(onDeadFunc(func(ep membership.Endpoint, _ *membership.EndpointState) {
		fired++
	}))

	gA.markDead(peer)
	if fired != 1 {
		t.Fatalf("on_dead fired %d times, want 1", fired)
	}
	if _, alive := gA.live[peer.Key()]; alive {
		t.Fatalf("peer should have been removed from the live set")
	}

	// Idempotent: marking an already-dead endpoint dead again must not
	// refire on_dead.
	gA.markDead(peer)
	if fired != 1 {
		t.Fatalf("on_dead fired again for an already-dead endpoint")
	}
}

type onDeadFunc func(membership.Endpoint, *membership.EndpointState)

func (f onDeadFunc) OnDead(ep membership.Endpoint, st *membership.EndpointState) { f(ep, st) }
