// Package management exposes the §6 "management accessors" contract —
// the read/write surface an operator tool (here, cobra subcommands and
// the TUI) uses to inspect and nudge a running node, without reaching
// into the Gossiper's or DynamicSnitch's internals directly.
package management

import (
	"fmt"
	"time"

	"gossipdb/internal/gossip"
	"gossipdb/internal/membership"
	"gossipdb/internal/snitch"
)

// Accessors wraps one node's Gossiper and DynamicSnitch behind the exact
// method set §6 names: scores, dump_timings, endpoint_downtime,
// current_generation, all_endpoint_states, simple_states,
// set_phi_convict_threshold, set_severity, assassinate_endpoint.
type Accessors struct {
	gossiper *gossip.Gossiper
	dynamic  *snitch.DynamicSnitch
}

// New builds an Accessors over the given node's Gossiper and dynamic
// snitch.
func New(gossiper *gossip.Gossiper, dynamic *snitch.DynamicSnitch) *Accessors {
	return &Accessors{gossiper: gossiper, dynamic: dynamic}
}

// Scores returns every endpoint's current dynamic-snitch proximity score,
// keyed by address string for display.
func (a *Accessors) Scores() map[string]float64 {
	scores := a.dynamic.Scores()
	out := make(map[string]float64, len(scores))
	for k, v := range scores {
		out[fmt.Sprintf("%s:%d", k.Addr, k.Port)] = v
	}
	return out
}

// DumpTimings returns the raw latency samples the dynamic snitch is
// currently holding for host.
func (a *Accessors) DumpTimings(host membership.Key) []float64 {
	return a.dynamic.DumpTimings(host)
}

// EndpointDowntime reports how long ep has been in the unreachable set.
func (a *Accessors) EndpointDowntime(ep membership.Endpoint) time.Duration {
	return a.gossiper.EndpointDowntime(ep)
}

// CurrentGeneration reports ep's currently known generation.
func (a *Accessors) CurrentGeneration(ep membership.Endpoint) (int64, bool) {
	return a.gossiper.CurrentGeneration(ep)
}

// AllEndpointStates returns every known endpoint and its full state.
func (a *Accessors) AllEndpointStates() map[membership.Endpoint]*membership.EndpointState {
	return a.gossiper.AllEndpointStates()
}

// SimpleStates returns {host: "UP"|"DOWN"} for every known endpoint.
func (a *Accessors) SimpleStates() map[string]string {
	return a.gossiper.SimpleStates()
}

// SetPhiConvictThreshold adjusts the failure detector's sensitivity.
func (a *Accessors) SetPhiConvictThreshold(v float64) {
	a.gossiper.SetPhiConvictThreshold(v)
}

// SetSeverity records an externally supplied severity contribution (e.g.
// from load-shedding logic) for ep's dynamic-snitch score.
func (a *Accessors) SetSeverity(ep membership.Key, value float64) {
	a.dynamic.SetSeverity(ep, value)
}

// AssassinateEndpoint forces ep out of the cluster (§7 class 6).
func (a *Accessors) AssassinateEndpoint(ep membership.Endpoint) error {
	return a.gossiper.Assassinate(ep)
}
