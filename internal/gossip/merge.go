package gossip

import (
	"context"

	"go.uber.org/zap"

	"gossipdb/internal/config"
	"gossipdb/internal/membership"
)

// applyEndpointState merges one remote endpoint's state into the local
// view, following §4.3.2 exactly:
//
//  1. quarantined endpoints are ignored outright;
//  2. a generation gap wider than MaxGenerationDifference is treated as
//     corruption and ignored;
//  3. a strictly larger remote generation wholly replaces local state
//     ("major state change") — on_restart, then mark_alive, then on_join;
//  4. equal generations with a larger remote max_version apply entries in
//     two passes (write, then notify) so observers see a consistent
//     snapshot;
//  5. anything else is ignored;
//  6. after any successful apply, an endpoint previously marked dead that
//     is no longer in a dead STATUS is marked alive.
func (g *Gossiper) applyEndpointState(ep membership.Endpoint, remote EndpointStateSnapshot) {
	g.mu.Lock()
	if _, quarantined := g.quarantine[ep.Key()]; quarantined {
		g.mu.Unlock()
		return
	}
	e, known := g.entries[ep.Key()]
	g.mu.Unlock()

	if !known {
		g.applyNewEndpoint(ep, remote)
		return
	}

	localGen := e.state.Generation()
	if abs64(remote.Heartbeat.Generation-localGen) > config.MaxGenerationDifference {
		g.logger.Warn("generation gap exceeds corruption window, ignoring",
			zap.String("endpoint", ep.String()),
			zap.Int64("remote_generation", remote.Heartbeat.Generation),
			zap.Int64("local_generation", localGen))
		return
	}

	applied := false
	switch {
	case remote.Heartbeat.Generation > localGen:
		e.state.ReplaceAll(remote.Heartbeat, remote.States)
		e.state.Touch(g.clk.Now().UnixNano())
		g.detector.ResetForNewGeneration(ep.Key())
		g.bus.FireRestart(ep, e.state)
		g.markAliveSync(ep, e.state)
		applied = true
	case remote.Heartbeat.Generation == localGen:
		if remote.MaxVersionOf() > e.state.MaxVersion() {
			g.applyEntriesTwoPass(ep, e.state, remote)
			applied = true
		}
	}

	if !applied || e.state.IsDeadStatus() {
		return
	}
	g.mu.Lock()
	_, isUnreachable := g.unreachable[ep.Key()]
	g.mu.Unlock()
	if isUnreachable {
		g.markAliveAsync(ep)
	}
}

// MaxVersionOf computes the max version carried by a wire snapshot,
// mirroring membership.EndpointState.MaxVersion for a not-yet-applied
// remote payload.
func (s EndpointStateSnapshot) MaxVersionOf() int64 {
	max := s.Heartbeat.Version
	for _, st := range s.States {
		if st.Version > max {
			max = st.Version
		}
	}
	return max
}

// applyNewEndpoint handles first contact with a previously unknown
// endpoint: treated like a major state change since there is no prior
// local knowledge to compare against, but without on_restart (nothing is
// restarting — this is a genuine first join). mark_alive always precedes
// on_join for a newly observed endpoint (§5 ordering guarantee).
func (g *Gossiper) applyNewEndpoint(ep membership.Endpoint, remote EndpointStateSnapshot) {
	state := membership.NewEndpointState(remote.Heartbeat.Generation)
	state.ReplaceAll(remote.Heartbeat, remote.States)
	state.Touch(g.clk.Now().UnixNano())
	state.SetAlive(false) // pending the echo round-trip below

	g.mu.Lock()
	g.entries[ep.Key()] = &entry{endpoint: ep, state: state}
	g.mu.Unlock()

	g.markAliveSync(ep, state)
	g.bus.FireJoin(ep, state)
}

// applyEntriesTwoPass writes every entry of remote that carries a version
// greater than the endpoint's current per-key version first, then fires
// before_change/on_change for each written entry (§4.3.2 "apply entries in
// two passes ... so observers see a consistent snapshot").
func (g *Gossiper) applyEntriesTwoPass(ep membership.Endpoint, state *membership.EndpointState, remote EndpointStateSnapshot) {
	if remote.Heartbeat.Version > state.Heartbeat().Version {
		state.SetHeartbeat(remote.Heartbeat)
	}
	state.Touch(g.clk.Now().UnixNano())

	type change struct {
		key      membership.AppStateKey
		old      membership.ApplicationState
		hadOld   bool
		newState membership.ApplicationState
	}
	var changes []change

	for key, newState := range remote.States {
		old, hadOld := state.Get(key)
		if hadOld && old.Version >= newState.Version {
			continue
		}
		state.SetEntry(newState)
		changes = append(changes, change{key: key, old: old, hadOld: hadOld, newState: newState})
	}

	for _, c := range changes {
		if c.hadOld {
			g.bus.FireBeforeChange(ep, c.key, c.old, c.newState)
		}
		g.bus.FireChange(ep, c.key, c.newState)
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// markAliveSync performs the echo round-trip inline and blocks until it
// completes or times out — used from within applyNewEndpoint/ReplaceAll
// paths where the caller needs mark_alive to have finished before firing
// on_join (§5 "mark_alive always precedes on_join").
func (g *Gossiper) markAliveSync(ep membership.Endpoint, state *membership.EndpointState) {
	ctx, cancel := context.WithTimeout(context.Background(), echoTimeout)
	defer cancel()
	if err := g.transport.SendEcho(ctx, ep); err != nil {
		g.logger.Debug("echo failed during mark_alive, leaving endpoint pending",
			zap.String("endpoint", ep.String()), zap.Error(err))
		return
	}
	g.finishMarkAlive(ep, state)
}

// markAliveAsync is the general-case mark_alive (§4.3.3): fired from the
// merge path for an endpoint that was previously dead, without blocking
// the caller on the echo RPC.
func (g *Gossiper) markAliveAsync(ep membership.Endpoint) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), echoTimeout)
		defer cancel()
		if err := g.transport.SendEcho(ctx, ep); err != nil {
			g.logger.Debug("echo failed, not marking alive",
				zap.String("endpoint", ep.String()), zap.Error(err))
			return
		}
		g.mu.Lock()
		e, ok := g.entries[ep.Key()]
		g.mu.Unlock()
		if !ok {
			return
		}
		g.finishMarkAlive(ep, e.state)
	}()
}

func (g *Gossiper) finishMarkAlive(ep membership.Endpoint, state *membership.EndpointState) {
	g.mu.Lock()
	delete(g.unreachable, ep.Key())
	g.live[ep.Key()] = true
	g.mu.Unlock()

	state.SetAlive(true)
	g.detector.Report(ep.Key())
	g.bus.FireAlive(ep, state)
}

// markDead is the immediate conviction path (§4.3.3): if ep is currently
// alive and not in a dead STATUS, move it from live to unreachable and
// publish on_dead.
func (g *Gossiper) markDead(ep membership.Endpoint) {
	g.mu.Lock()
	e, ok := g.entries[ep.Key()]
	if !ok {
		g.mu.Unlock()
		return
	}
	if !e.state.IsAlive() || e.state.IsDeadStatus() {
		g.mu.Unlock()
		return
	}
	e.state.SetAlive(false)
	delete(g.live, ep.Key())
	g.unreachable[ep.Key()] = g.clk.Now()
	g.mu.Unlock()

	g.bus.FireDead(ep, e.state)
}
