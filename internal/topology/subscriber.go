package topology

import (
	"gossipdb/internal/eventbus"
	"gossipdb/internal/membership"
)

// Subscriber wires Metadata to the failure-event bus (§4.4 "Updates are
// driven by subscribers to the failure-event bus"): it never mutates
// Metadata from anywhere but a bus callback, so every write happens on the
// Gossiper's single tick goroutine per the bus's single-writer contract.
type Subscriber struct {
	meta *Metadata
}

// NewSubscriber returns a Subscriber that keeps meta in sync with join,
// DC/RACK application-state changes, and removal notifications.
func NewSubscriber(meta *Metadata) *Subscriber {
	return &Subscriber{meta: meta}
}

var (
	_ eventbus.OnJoin   = (*Subscriber)(nil)
	_ eventbus.OnChange = (*Subscriber)(nil)
	_ eventbus.OnRemove = (*Subscriber)(nil)
)

// OnJoin records ep's initial location from whatever DC/RACK entries it
// already carries, defaulting to an empty location until those entries
// arrive (a brand-new endpoint usually joins with both already set).
func (s *Subscriber) OnJoin(ep membership.Endpoint, state *membership.EndpointState) {
	s.meta.Update(ep, locationFromState(state))
}

// OnChange re-derives ep's location whenever a DC or RACK entry changes;
// other application-state keys don't touch topology.
func (s *Subscriber) OnChange(ep membership.Endpoint, key membership.AppStateKey, entry membership.ApplicationState) {
	if key != membership.DCKey && key != membership.RackKey {
		return
	}

	loc := Location{}
	if dc, ok := s.meta.DatacenterOf(ep); ok {
		loc.Datacenter = dc
	}
	if rack, ok := s.meta.RackOf(ep); ok {
		loc.Rack = rack
	}
	if key == membership.DCKey {
		loc.Datacenter = entry.Value
	} else {
		loc.Rack = entry.Value
	}
	s.meta.Update(ep, loc)
}

// OnRemove drops ep from every index (§7 class 6 eviction, §4.4).
func (s *Subscriber) OnRemove(ep membership.Endpoint) {
	s.meta.Remove(ep)
}

func locationFromState(state *membership.EndpointState) Location {
	var loc Location
	if dc, ok := state.Get(membership.DCKey); ok {
		loc.Datacenter = dc.Value
	}
	if rack, ok := state.Get(membership.RackKey); ok {
		loc.Rack = rack.Value
	}
	return loc
}
