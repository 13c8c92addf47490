package gossip

import (
	"time"

	"go.uber.org/zap"

	"gossipdb/internal/membership"
)

// backlogSkipThreshold is the §4.3.4 "gossip message queue backlogged for
// > 1s" guard: when inbound handling is visibly behind, status checks are
// skipped for this tick rather than risk spurious convictions under load.
const backlogSkipThreshold = 1 * time.Second

// statusCheck runs each gossip tick (§4.3.4): interpret the failure
// detector for every known non-local endpoint, evict fat clients that
// have gone silent past their timeout, evict dead non-token-holders past
// their expire time, and purge the quarantine set.
func (g *Gossiper) statusCheck() {
	if time.Duration(g.queueDelay.Load()) > backlogSkipThreshold {
		g.logger.Warn("gossip message queue backlogged, skipping status check this tick")
		g.purgeQuarantine()
		return
	}

	now := g.clk.Now()

	for _, ep := range g.knownEndpointsList() {
		state, ok := g.EndpointStateOf(ep)
		if !ok || len(state.Entries()) == 0 {
			continue
		}

		if outcome := g.detector.Interpret(ep.Key()); outcome.Convicted {
			g.markDead(ep)
		}

		isTokenHolder := g.topo.IsTokenHolder(ep)
		silentFor := now.Sub(time.Unix(0, state.UpdateTimestamp()))

		if !isTokenHolder && silentFor > g.cfg.FatClientTimeout() {
			g.evict(ep)
			continue
		}

		if (!state.IsAlive() || state.IsDeadStatus()) && !isTokenHolder && g.pastExpireTime(ep, now) {
			g.evict(ep)
		}
	}

	g.purgeQuarantine()
}

// pastExpireTime reports whether ep's expire horizon has elapsed — either
// an explicit override set by Assassinate, or the default VeryLongTime
// horizon from the endpoint's last update.
func (g *Gossiper) pastExpireTime(ep membership.Endpoint, now time.Time) bool {
	g.mu.Lock()
	override, hasOverride := g.expireOverride[ep.Key()]
	g.mu.Unlock()
	if hasOverride {
		return !now.Before(override)
	}

	state, ok := g.EndpointStateOf(ep)
	if !ok {
		return false
	}
	updated := time.Unix(0, state.UpdateTimestamp())
	return now.Sub(updated) > veryLongTime
}

// veryLongTime mirrors config.VeryLongTime without importing config here
// to avoid a cycle on the handful of call sites that need it; kept as the
// same 3-day constant (§5).
const veryLongTime = 3 * 24 * time.Hour

// evict removes ep from every map the Gossiper owns and moves it into
// quarantine, where it cannot be re-admitted until quarantine_delay
// elapses (§4.3.4, §5).
func (g *Gossiper) evict(ep membership.Endpoint) {
	g.mu.Lock()
	delete(g.entries, ep.Key())
	delete(g.live, ep.Key())
	delete(g.unreachable, ep.Key())
	delete(g.expireOverride, ep.Key())
	g.quarantine[ep.Key()] = g.clk.Now()
	g.mu.Unlock()

	g.detector.Remove(ep.Key())
	g.bus.FireRemove(ep)
	g.logger.Info("evicted endpoint", zap.String("endpoint", ep.String()))
}

// purgeQuarantine drops quarantine entries older than quarantine_delay
// (§4.3.4, §5).
func (g *Gossiper) purgeQuarantine() {
	now := g.clk.Now()
	delay := g.cfg.QuarantineDelay()

	g.mu.Lock()
	defer g.mu.Unlock()
	for key, evictedAt := range g.quarantine {
		if now.Sub(evictedAt) > delay {
			delete(g.quarantine, key)
		}
	}
}

func (g *Gossiper) knownEndpointsList() []membership.Endpoint {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]membership.Endpoint, 0, len(g.entries))
	for _, e := range g.entries {
		out = append(out, e.endpoint)
	}
	return out
}
