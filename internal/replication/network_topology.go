package replication

import (
	"sort"

	"gossipdb/internal/membership"
	"gossipdb/internal/topology"
)

// NetworkTopologyStrategy places replicas per-datacenter with a
// rack-diversity-first algorithm (§4.6 "Network-topology strategy"): within
// each datacenter, prefer one replica per rack before doubling back into a
// rack already used, unless every rack in that datacenter has already
// contributed a replica.
type NetworkTopologyStrategy struct {
	// ReplicationFactor maps datacenter name -> desired replica count in
	// that datacenter.
	ReplicationFactor map[string]int
}

// NewNetworkTopologyStrategy validates options and builds a strategy.
// "replication_factor" is rejected as a per-datacenter key — it's the
// keyspace-wide option name reserved by SimpleStrategy in the source
// system and has no per-datacenter meaning here (§4.6, §7 class 3).
func NewNetworkTopologyStrategy(options map[string]int) (*NetworkTopologyStrategy, error) {
	if _, ok := options["replication_factor"]; ok {
		return nil, ErrReplicationFactorOption
	}
	rf := make(map[string]int, len(options))
	for dc, n := range options {
		rf[dc] = n
	}
	return &NetworkTopologyStrategy{ReplicationFactor: rf}, nil
}

type dcState struct {
	dc            string
	target        int // min(configured RF, endpoints available in this DC)
	totalRacks    int
	seenRacks     map[string]bool
	accepted      int
	skipped       []membership.Endpoint
}

func (st *dcState) satisfied() bool { return st.accepted >= st.target }

func (st *dcState) allRacksSeen() bool { return len(st.seenRacks) >= st.totalRacks }

func (s *NetworkTopologyStrategy) CalculateReplicas(
	meta *topology.Metadata,
	startAt membership.Endpoint,
	oldReplicas []membership.Endpoint,
	candidates map[membership.Key]bool,
	includeOld bool,
) []membership.Endpoint {
	oldSet := make(map[membership.Key]bool, len(oldReplicas))
	for _, ep := range oldReplicas {
		oldSet[ep.Key()] = true
	}

	states := make(map[string]*dcState, len(s.ReplicationFactor))
	totalWanted := 0
	for dc, rf := range s.ReplicationFactor {
		available := len(meta.EndpointsIn(dc))
		target := rf
		if available < target {
			target = available
		}
		if target <= 0 {
			continue
		}
		states[dc] = &dcState{
			dc:         dc,
			target:     target,
			totalRacks: len(meta.RacksIn(dc)),
			seenRacks:  make(map[string]bool),
		}
		totalWanted += target
	}

	ring := rotatedHostIDs(meta, startAt)

	var replicas []membership.Endpoint
	placed := make(map[membership.Key]bool)

	accept := func(st *dcState, ep membership.Endpoint) {
		st.accepted++
		replicas = append(replicas, ep)
		placed[ep.Key()] = true
	}

	remaining := func() int {
		n := 0
		for _, st := range states {
			if !st.satisfied() {
				n++
			}
		}
		return n
	}

	for _, hostID := range ring {
		if remaining() == 0 {
			break
		}
		ep, ok := meta.EndpointForHostID(hostID)
		if !ok {
			continue
		}
		key := ep.Key()
		if candidates != nil && !candidates[key] {
			continue
		}
		if oldSet[key] || placed[key] {
			continue
		}
		dc, ok := meta.DatacenterOf(ep)
		if !ok {
			continue
		}
		st, configured := states[dc]
		if !configured || st.satisfied() {
			continue
		}
		rack, _ := meta.RackOf(ep)

		switch {
		case st.allRacksSeen():
			accept(st, ep)
		case !st.seenRacks[rack]:
			st.seenRacks[rack] = true
			accept(st, ep)
			if st.allRacksSeen() {
				drainSkipped(st, accept)
			}
		default:
			st.skipped = append(st.skipped, ep)
		}
	}

	if includeOld && len(replicas) < totalWanted && len(oldReplicas) > 0 {
		replicas = append(replicas, topUpFromOld(s, meta, oldReplicas, placed, states)...)
	}

	return replicas
}

// drainSkipped empties a DC's skipped queue, in insertion order, once every
// rack in that DC has contributed at least one replica (§4.6).
func drainSkipped(st *dcState, accept func(*dcState, membership.Endpoint)) {
	for len(st.skipped) > 0 && !st.satisfied() {
		ep := st.skipped[0]
		st.skipped = st.skipped[1:]
		accept(st, ep)
	}
}

// topUpFromOld recurses against the old-replica set alone when the primary
// pass didn't reach every DC's target — the "top up" step of §4.6 point 4.
func topUpFromOld(
	s *NetworkTopologyStrategy,
	meta *topology.Metadata,
	oldReplicas []membership.Endpoint,
	placed map[membership.Key]bool,
	states map[string]*dcState,
) []membership.Endpoint {
	var out []membership.Endpoint
	// Re-run a plain pass over old_replicas themselves: each is already a
	// known-good placement, so accept in ring order until every DC target
	// is met or the old set is exhausted.
	for _, ep := range oldReplicas {
		key := ep.Key()
		if placed[key] {
			continue
		}
		dc, ok := meta.DatacenterOf(ep)
		if !ok {
			continue
		}
		st, configured := states[dc]
		if !configured || st.satisfied() {
			continue
		}
		st.accepted++
		placed[key] = true
		out = append(out, ep)
	}
	return out
}

// rotatedHostIDs returns meta.SortedHostIDs(), cyclically rotated to begin
// just after startAt's position so the caller's choice of starting token
// determines the primary replica (§4.6, §8 scenario 3). A zero-value
// startAt (no HostID, or unknown) leaves the natural sorted order alone.
func rotatedHostIDs(meta *topology.Metadata, startAt membership.Endpoint) []string {
	ids := meta.SortedHostIDs()
	if startAt.HostID == "" || len(ids) == 0 {
		return ids
	}
	idx := sort.SearchStrings(ids, startAt.HostID)
	if idx >= len(ids) || ids[idx] != startAt.HostID {
		return ids
	}
	rotated := make([]string, 0, len(ids))
	rotated = append(rotated, ids[idx:]...)
	rotated = append(rotated, ids[:idx]...)
	return rotated
}
