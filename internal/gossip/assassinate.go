package gossip

import (
	"errors"

	"go.uber.org/zap"

	"gossipdb/internal/membership"
)

// ErrUnknownEndpoint is returned by Assassinate for an endpoint this node
// has no state for (§7 class 6 assumes the endpoint is known).
var ErrUnknownEndpoint = errors.New("gossip: unknown endpoint")

// Assassinate force-writes a LEFT status, waits ring_delay for quiescence,
// re-checks for concurrent activity (a restart racing the assassination),
// and evicts (§4.2 force_conviction, §7 class 6, §6 management accessor
// assassinate_endpoint).
//
// §9's open question notes the source system sets the LEFT status'
// expire-time 60s out but then sleeps only ring_delay (30s default) —
// if peers honor the expire-time strictly the endpoint can reappear
// before quarantine would otherwise protect it. This implementation sets
// expire-time to 2x ring_delay beyond assassination, per the design
// notes' resolution, so the expire horizon always outlives the sleep.
func (g *Gossiper) Assassinate(ep membership.Endpoint) error {
	state, ok := g.EndpointStateOf(ep)
	if !ok {
		return ErrUnknownEndpoint
	}

	generationBefore := state.Generation()
	expireAt := g.clk.Now().Add(2 * g.cfg.RingDelay)

	g.mu.Lock()
	g.expireOverride[ep.Key()] = expireAt
	g.mu.Unlock()

	state.LocalUpdate(g.versionGen, membership.StatusKey, "LEFT")
	g.detector.ForceConviction(ep.Key())
	g.markDead(ep)

	g.sleep(g.cfg.RingDelay)

	if state.Generation() != generationBefore {
		g.logger.Warn("assassinate aborted: endpoint restarted concurrently",
			zap.String("endpoint", ep.String()))
		g.mu.Lock()
		delete(g.expireOverride, ep.Key())
		g.mu.Unlock()
		return nil
	}

	g.evict(ep)
	return nil
}
