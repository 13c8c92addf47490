package management

import (
	"context"
	"testing"
	"time"

	"gossipdb/internal/clock"
	"gossipdb/internal/config"
	"gossipdb/internal/eventbus"
	"gossipdb/internal/failuredetector"
	"gossipdb/internal/gossip"
	"gossipdb/internal/membership"
	"gossipdb/internal/obslog"
	"gossipdb/internal/snitch"
	"gossipdb/internal/topology"
)

// noopTransport never reaches a peer; accessor tests only exercise local
// bookkeeping, never an actual gossip round.
type noopTransport struct{}

func (noopTransport) SendSyn(context.Context, membership.Endpoint, gossip.SynMessage) (gossip.AckMessage, error) {
	return gossip.AckMessage{}, context.DeadlineExceeded
}
func (noopTransport) SendAck2(context.Context, membership.Endpoint, gossip.Ack2Message) error {
	return nil
}
func (noopTransport) SendEcho(context.Context, membership.Endpoint) error     { return nil }
func (noopTransport) SendShutdown(context.Context, membership.Endpoint) error { return nil }

func newTestAccessors(t *testing.T) (*Accessors, *gossip.Gossiper, *clock.Fake) {
	t.Helper()
	cfg := config.Default()
	cfg.GossipPeriod = 10 * time.Millisecond
	clk := clock.NewFake()
	local := membership.Endpoint{Addr: "10.0.0.1", Port: 7000}

	topo := topology.New()
	sub := snitch.NewTopologySnitch(topo, local, "dc1", "rack1")
	dyn := snitch.NewDynamicSnitch(sub, clk, config.DynamicSnitchWindow, config.DynamicSnitchAlpha, cfg.DynamicUpdateInterval, cfg.DynamicResetInterval, cfg.DynamicBadnessThreshold)

	det := failuredetector.New(clk, int64(cfg.FDInitialInterval), int64(cfg.FDMaxInterval), cfg.PhiConvictThreshold)
	g := gossip.New(cfg, clk, noopTransport{}, eventbus.New(), det, topo, obslog.Nop(), local, "test-cluster", nil)
	g.Start(clk.Now().Unix())
	t.Cleanup(g.Stop)

	return New(g, dyn), g, clk
}

func TestSetSeverityFeedsScores(t *testing.T) {
	a, _, _ := newTestAccessors(t)
	peer := membership.Key{Addr: "10.0.0.2", Port: 7000}

	a.SetSeverity(peer, 2.5)
	a.DumpTimings(peer) // must not panic for an endpoint with no samples yet

	if got := a.Scores(); len(got) != 0 {
		t.Fatalf("scores should be empty until the dynamic snitch rebuilds, got %v", got)
	}
}

func TestSimpleStatesReportsLocalNodeUp(t *testing.T) {
	a, g, _ := newTestAccessors(t)
	g.ApplyLocalState(membership.StatusKey, "NORMAL")

	states := a.SimpleStates()
	if got, ok := states[g.Local().String()]; !ok || got != "DOWN" && got != "UP" {
		t.Fatalf("expected a status for the local node, got %v", states)
	}
}

func TestEndpointDowntimeZeroForUnknownPeer(t *testing.T) {
	a, _, _ := newTestAccessors(t)
	peer := membership.Endpoint{Addr: "10.0.0.9", Port: 7000}
	if got := a.EndpointDowntime(peer); got != 0 {
		t.Fatalf("expected zero downtime for an unreachable-unknown peer, got %v", got)
	}
}

func TestSetPhiConvictThresholdDoesNotPanic(t *testing.T) {
	a, _, _ := newTestAccessors(t)
	a.SetPhiConvictThreshold(12.0)
}

func TestAssassinateUnknownEndpointErrors(t *testing.T) {
	a, _, clk := newTestAccessors(t)
	peer := membership.Endpoint{Addr: "10.0.0.9", Port: 7000}

	done := make(chan error, 1)
	go func() { done <- a.AssassinateEndpoint(peer) }()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected an error assassinating an unknown endpoint")
		}
	case <-time.After(time.Second):
		t.Fatalf("assassinate on an unknown endpoint should return immediately")
	}
	_ = clk
}
