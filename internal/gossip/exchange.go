package gossip

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"gossipdb/internal/membership"
)

// ErrClusterMismatch is returned (and the message dropped, per §7 class 4)
// when a SYN carries a cluster id that doesn't match this node's own.
var ErrClusterMismatch = errors.New("gossip: cluster id mismatch")

// HandleSyn implements the receiver side of §4.3.1: partition every
// remote digest into a request (the receiver needs it) or a send (the
// receiver has something newer), with one exception — an empty remote
// digest list is a "shadow round": reply with digests for everything the
// receiver knows, requesting nothing.
func (g *Gossiper) HandleSyn(from membership.Endpoint, msg SynMessage) (AckMessage, error) {
	start := time.Now()
	defer g.recordQueueDelay(start)

	if msg.ClusterID != "" && msg.ClusterID != g.clusterID {
		g.logger.Warn("dropping syn with mismatched cluster id",
			zap.String("from", from.String()), zap.String("cluster_id", msg.ClusterID))
		return AckMessage{}, ErrClusterMismatch
	}

	var requests []Digest
	sends := make(map[membership.Endpoint]EndpointStateSnapshot)

	if len(msg.Digests) == 0 {
		for _, d := range g.buildDigests(g.rng) {
			requests = append(requests, Digest{Endpoint: d.Endpoint, Generation: d.Generation, MaxVersion: 0})
		}
		return AckMessage{Digests: requests}, nil
	}

	seen := make(map[membership.Key]bool, len(msg.Digests))
	for _, d := range msg.Digests {
		seen[d.Endpoint.Key()] = true
		g.examineDigest(d, &requests, sends)
	}

	// Endpoints this node knows but the SYN's sender never mentioned are
	// endpoints the sender has no knowledge of at all — send full state
	// for each so a brand-new node learns the whole cluster in one round
	// (§8 scenario 1 "cold join"), not just what it happened to digest.
	for ep, state := range g.knownStatesNotIn(seen) {
		sends[ep] = snapshotAbove(state, 0)
	}

	g.learnEndpoint(from)
	return AckMessage{Digests: requests, States: sends}, nil
}

// knownStatesNotIn returns every locally known endpoint state (local node
// included) whose key is absent from seen.
func (g *Gossiper) knownStatesNotIn(seen map[membership.Key]bool) map[membership.Endpoint]*membership.EndpointState {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[membership.Endpoint]*membership.EndpointState, len(g.entries)+1)
	for _, e := range g.entries {
		if !seen[e.endpoint.Key()] {
			out[e.endpoint] = e.state
		}
	}
	if !seen[g.local.Key()] {
		out[g.local] = g.localState
	}
	return out
}

// HandleAck2 applies the concrete states an ACK2 carries (§4.3.1 "On
// receiving ACK2, the sender applies the received states locally").
// Despite the name this runs on whichever side receives an ACK2 — the
// original SYN's receiver, once its requested deltas come back.
func (g *Gossiper) HandleAck2(from membership.Endpoint, msg Ack2Message) {
	start := time.Now()
	defer g.recordQueueDelay(start)

	for ep, st := range msg.States {
		g.applyEndpointState(ep, st)
	}
	g.learnEndpoint(from)
}

// HandleEcho responds to the mark_alive probe — an empty REQUEST_RESPONSE
// reply is all the protocol requires (§6); arrival here at all is the
// signal to the caller (a synchronous Transport.SendEcho) that the peer is
// responsive.
func (g *Gossiper) HandleEcho(from membership.Endpoint) {
	g.learnEndpoint(from)
}

// HandleShutdown records a GOSSIP_SHUTDOWN notice from a peer as an
// immediate mark_dead, skipping the failure detector entirely — the peer
// told us itself.
func (g *Gossiper) HandleShutdown(from membership.Endpoint) {
	g.markDead(from)
}

// learnEndpoint reports an arrival to the failure detector for any
// endpoint we've exchanged a message with, whether or not gossip state
// merging found anything new to apply — liveness tracking and state
// dissemination are independent concerns (§4.2).
func (g *Gossiper) learnEndpoint(ep membership.Endpoint) {
	if ep.Key() == g.local.Key() {
		return
	}
	g.mu.Lock()
	_, quarantined := g.quarantine[ep.Key()]
	e, known := g.entries[ep.Key()]
	g.mu.Unlock()
	if quarantined {
		return
	}
	g.detector.Report(ep.Key())
	if known {
		// Any message exchanged with ep, even one that changes nothing,
		// is evidence it's still talking — fat-client silence (§4.3.4) is
		// measured from here, not just from state mutation.
		e.state.Touch(g.clk.Now().UnixNano())
	}
}

// recordQueueDelay feeds the §4.3.4 backlog estimate: how long an inbound
// handler waited before this call started running, used as a proxy for
// "the gossip message queue has been backlogged".
func (g *Gossiper) recordQueueDelay(start time.Time) {
	g.queueDelay.Store(int64(time.Since(start)))
}
