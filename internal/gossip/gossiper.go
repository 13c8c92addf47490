package gossip

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"gossipdb/internal/clock"
	"gossipdb/internal/config"
	"gossipdb/internal/eventbus"
	"gossipdb/internal/failuredetector"
	"gossipdb/internal/membership"
	"gossipdb/internal/topology"
)

// entry is the Gossiper's private bookkeeping for one remote endpoint:
// the full identity (carrying HostID) alongside the state the rest of
// the endpoint-state map keys only by network identity.
type entry struct {
	endpoint membership.Endpoint
	state    *membership.EndpointState
}

// Gossiper is C4. It exclusively owns the endpoint-state map (§3
// "Ownership") — every mutation happens under mu, which doubles as the
// "tick mutex" of §4.3 ("One task at a time — guarded by a mutex").
type Gossiper struct {
	cfg       *config.Config
	clk       clock.Clock
	transport Transport
	bus       *eventbus.Bus
	detector  *failuredetector.Detector
	topo      *topology.Metadata
	logger    *zap.Logger
	rng       Random
	clusterID string
	seeds     []membership.Endpoint

	local      membership.Endpoint
	localState *membership.EndpointState
	versionGen *membership.VersionGenerator

	mu             sync.Mutex
	entries        map[membership.Key]*entry
	live           map[membership.Key]bool
	unreachable    map[membership.Key]time.Time
	quarantine     map[membership.Key]time.Time
	expireOverride map[membership.Key]time.Time

	queueDelay atomic.Int64 // nanoseconds, inbound-handler wait time estimate

	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup

	sleep func(time.Duration) // overridable in tests; defaults to time.Sleep
}

// New builds a Gossiper. local is this process's own endpoint identity;
// clusterID rejects cross-cluster SYNs (§7 class 4); seeds are the static
// rendezvous set of §4.3.5.
func New(
	cfg *config.Config,
	clk clock.Clock,
	transport Transport,
	bus *eventbus.Bus,
	detector *failuredetector.Detector,
	topo *topology.Metadata,
	logger *zap.Logger,
	local membership.Endpoint,
	clusterID string,
	seeds []membership.Endpoint,
) *Gossiper {
	return &Gossiper{
		cfg:            cfg,
		clk:            clk,
		transport:      transport,
		bus:            bus,
		detector:       detector,
		topo:           topo,
		logger:         logger,
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
		clusterID:      clusterID,
		seeds:          seeds,
		local:          local,
		versionGen:     &membership.VersionGenerator{},
		entries:        make(map[membership.Key]*entry),
		live:           make(map[membership.Key]bool),
		unreachable:    make(map[membership.Key]time.Time),
		quarantine:     make(map[membership.Key]time.Time),
		expireOverride: make(map[membership.Key]time.Time),
		sleep:          time.Sleep,
	}
}

// initLocal builds the local endpoint's own state at the given
// generation, separated from Start so tests can drive tick() without a
// background ticker goroutine.
func (g *Gossiper) initLocal(generation int64) {
	g.localState = membership.NewEndpointState(generation)
	g.localState.LocalUpdate(g.versionGen, membership.StatusKey, "NORMAL")
}

// RegisterSubscriber adds a failure-event bus subscriber (§4.7). Must be
// called before Start so that on_join for the local node's own eventual
// peers is never missed.
func (g *Gossiper) RegisterSubscriber(s any) { g.bus.Subscribe(s) }

// Start begins gossiping at the given generation (§4.1: "generation is
// set once per process lifetime, typically from wall-clock seconds at
// startup").
func (g *Gossiper) Start(generation int64) {
	g.initLocal(generation)

	g.stopCh = make(chan struct{})
	g.ticker = time.NewTicker(g.cfg.GossipPeriod)
	g.wg.Add(1)
	go g.loop()
}

func (g *Gossiper) loop() {
	defer g.wg.Done()
	for {
		select {
		case <-g.stopCh:
			return
		case <-g.ticker.C:
			g.tick()
		}
	}
}

// Stop cancels the periodic task, best-effort broadcasts GOSSIP_SHUTDOWN
// to currently live peers, and sleeps 2x the gossip period to allow
// delivery (§5 "Cancellation").
func (g *Gossiper) Stop() {
	if g.ticker != nil {
		g.ticker.Stop()
	}
	if g.stopCh != nil {
		close(g.stopCh)
	}
	g.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), echoTimeout)
	defer cancel()
	for _, ep := range g.liveEndpointsList() {
		if err := g.transport.SendShutdown(ctx, ep); err != nil {
			g.logger.Debug("shutdown broadcast failed", zap.String("endpoint", ep.String()), zap.Error(err))
		}
	}
	g.sleep(2 * g.cfg.GossipPeriod)
}

// ApplyLocalState assigns the next version to a local application-state
// entry and fires before_change/on_change (§4.1 "local_update").
func (g *Gossiper) ApplyLocalState(key membership.AppStateKey, value string) {
	old, hadOld := g.localState.Get(key)
	entry := g.localState.LocalUpdate(g.versionGen, key, value)
	if hadOld {
		g.bus.FireBeforeChange(g.local, key, old, entry)
	}
	g.bus.FireChange(g.local, key, entry)
}

// tick runs one GossipTask iteration (§4.3). Every step is recovered so a
// fault in one endpoint's processing cannot starve the rest (§7 "no
// exception flows cross the gossip tick boundary").
func (g *Gossiper) tick() {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("gossip tick panicked", zap.Any("recover", r))
		}
	}()

	g.localState.HeartbeatTick(g.versionGen)

	digests := g.buildDigests(g.rng)

	live := g.liveEndpointsList()
	unreachable := g.unreachableEndpointsList()

	ctx, cancel := context.WithTimeout(context.Background(), g.cfg.GossipPeriod)
	defer cancel()

	var target membership.Endpoint
	targetedSeed := false
	if ep, ok := pickUniform(live, g.rng); ok {
		target = ep
		g.gossipTo(ctx, ep, digests)
		targetedSeed = g.isSeed(ep)
	}

	if len(unreachable) > 0 {
		p := float64(len(unreachable)) / float64(len(live)+1)
		if g.rng.Float64() < p {
			if ep, ok := pickUniform(unreachable, g.rng); ok {
				g.gossipTo(ctx, ep, digests)
			}
		}
	}

	if !targetedSeed || len(live) < len(g.seeds) {
		denom := len(live) + len(unreachable)
		// A brand-new node with no live or unreachable peers yet has no
		// denominator to compute a probability from; it must still reach
		// a seed unconditionally to bootstrap (§4.3.5), so treat an empty
		// cluster view as probability 1 rather than skip seeding entirely.
		doSeedGossip := denom == 0 && len(g.seeds) > 0
		if denom > 0 {
			p := float64(len(g.seeds)) / float64(denom)
			doSeedGossip = g.rng.Float64() < p
		}
		if doSeedGossip {
			if ep, ok := pickUniform(g.seeds, g.rng); ok {
				g.gossipTo(ctx, ep, digests)
			}
		}
	}

	g.statusCheck()
}

// gossipTo performs one full SYN->ACK->ACK2 round against peer (§4.3.1).
// Transient transport failures are logged and dropped — recovery happens
// naturally on the next tick (§7 class 1).
func (g *Gossiper) gossipTo(ctx context.Context, peer membership.Endpoint, digests []Digest) {
	ack, err := g.transport.SendSyn(ctx, peer, SynMessage{ClusterID: g.clusterID, Digests: digests})
	if err != nil {
		g.logger.Debug("syn failed", zap.String("peer", peer.String()), zap.Error(err))
		return
	}
	g.learnEndpoint(peer)

	for ep, st := range ack.States {
		g.applyEndpointState(ep, st)
	}

	ack2 := Ack2Message{States: make(map[membership.Endpoint]EndpointStateSnapshot, len(ack.Digests))}
	for _, d := range ack.Digests {
		if snap, ok := g.snapshotFor(d); ok {
			ack2.States[d.Endpoint] = snap
		}
	}
	if len(ack2.States) == 0 {
		return
	}
	if err := g.transport.SendAck2(ctx, peer, ack2); err != nil {
		g.logger.Debug("ack2 failed", zap.String("peer", peer.String()), zap.Error(err))
	}
}

// snapshotFor resolves a requested digest (from an ACK's request list)
// against the sender's own knowledge.
func (g *Gossiper) snapshotFor(d Digest) (EndpointStateSnapshot, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var state *membership.EndpointState
	if d.Endpoint.Key() == g.local.Key() {
		state = g.localState
	} else if e, ok := g.entries[d.Endpoint.Key()]; ok {
		state = e.state
	} else {
		return EndpointStateSnapshot{}, false
	}
	return snapshotAbove(state, d.MaxVersion), true
}

func (g *Gossiper) isSeed(ep membership.Endpoint) bool {
	for _, s := range g.seeds {
		if s.Key() == ep.Key() {
			return true
		}
	}
	return false
}

func pickUniform(list []membership.Endpoint, rng Random) (membership.Endpoint, bool) {
	if len(list) == 0 {
		return membership.Endpoint{}, false
	}
	return list[rng.Intn(len(list))], true
}

func (g *Gossiper) liveEndpointsList() []membership.Endpoint {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]membership.Endpoint, 0, len(g.live))
	for k := range g.live {
		if e, ok := g.entries[k]; ok {
			out = append(out, e.endpoint)
		}
	}
	return out
}

func (g *Gossiper) unreachableEndpointsList() []membership.Endpoint {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]membership.Endpoint, 0, len(g.unreachable))
	for k := range g.unreachable {
		if e, ok := g.entries[k]; ok {
			out = append(out, e.endpoint)
		}
	}
	return out
}

// EndpointStateOf is a read-only accessor for subscribers and management
// code (§3 "all other components hold read-only references through
// well-defined accessors").
func (g *Gossiper) EndpointStateOf(ep membership.Endpoint) (*membership.EndpointState, bool) {
	if ep.Key() == g.local.Key() {
		return g.localState, true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[ep.Key()]
	if !ok {
		return nil, false
	}
	return e.state, true
}

// AllEndpointStates returns every known endpoint (local included) and its
// state, for the §6 management accessor all_endpoint_states().
func (g *Gossiper) AllEndpointStates() map[membership.Endpoint]*membership.EndpointState {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[membership.Endpoint]*membership.EndpointState, len(g.entries)+1)
	for _, e := range g.entries {
		out[e.endpoint] = e.state
	}
	out[g.local] = g.localState
	return out
}

// SimpleStates implements the §6 management accessor simple_states():
// {host: "UP" | "DOWN"}.
func (g *Gossiper) SimpleStates() map[string]string {
	states := g.AllEndpointStates()
	out := make(map[string]string, len(states))
	for ep, st := range states {
		if st.IsAlive() && !st.IsDeadStatus() {
			out[ep.String()] = "UP"
		} else {
			out[ep.String()] = "DOWN"
		}
	}
	return out
}

// CurrentGeneration implements current_generation(addr) (§6).
func (g *Gossiper) CurrentGeneration(ep membership.Endpoint) (int64, bool) {
	st, ok := g.EndpointStateOf(ep)
	if !ok {
		return 0, false
	}
	return st.Generation(), true
}

// EndpointDowntime implements endpoint_downtime(addr) (§6): how long ep
// has been in the unreachable set, or 0 if it isn't.
func (g *Gossiper) EndpointDowntime(ep membership.Endpoint) time.Duration {
	g.mu.Lock()
	since, ok := g.unreachable[ep.Key()]
	g.mu.Unlock()
	if !ok {
		return 0
	}
	return g.clk.Now().Sub(since)
}

// SetPhiConvictThreshold implements the §6 management accessor.
func (g *Gossiper) SetPhiConvictThreshold(v float64) { g.detector.SetConvictThreshold(v) }

// Local returns this process's own endpoint identity.
func (g *Gossiper) Local() membership.Endpoint { return g.local }
