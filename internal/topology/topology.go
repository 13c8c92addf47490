// Package topology implements C5, the cluster-wide map of
// endpoint -> (datacenter, rack, host-id) and the derived indexes queried
// by the snitch and replication strategy. The container/index shape
// mirrors the corpus's kickboxerdb DatacenterContainer (one map per
// datacenter, derived from node membership) generalized from its
// ring-partitioned token model to the flat endpoint set this spec needs.
package topology

import (
	"sort"
	"sync"

	"gossipdb/internal/membership"
)

// Location is an endpoint's placement within the topology.
type Location struct {
	Datacenter string
	Rack       string
}

// Metadata is the mutable, read-mostly topology map (§4.4). All mutation
// happens from subscribers reacting to the failure-event bus (join/remove)
// from the Gossiper's single tick goroutine; reads may come from any
// goroutine and always see a consistent snapshot thanks to the RWMutex.
type Metadata struct {
	mu sync.RWMutex

	location map[membership.Key]Location
	hostID   map[string]membership.Endpoint
	byDC     map[string]map[membership.Key]struct{}
	byDCRack map[string]map[string]map[membership.Key]struct{}

	// tokenHolders marks which endpoints actually own ring tokens —
	// everything else is a "fat client" per §4.3.4, a detail the teacher's
	// toy heartbeat demo never needed but this spec's status check does.
	tokenHolders map[membership.Key]struct{}
}

// New creates empty topology metadata.
func New() *Metadata {
	return &Metadata{
		location:     make(map[membership.Key]Location),
		hostID:       make(map[string]membership.Endpoint),
		byDC:         make(map[string]map[membership.Key]struct{}),
		byDCRack:     make(map[string]map[string]map[membership.Key]struct{}),
		tokenHolders: make(map[membership.Key]struct{}),
	}
}

// Update sets or replaces ep's location and host-id mapping.
func (m *Metadata) Update(ep membership.Endpoint, loc Location) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := ep.Key()
	if old, ok := m.location[key]; ok {
		m.removeFromIndexesLocked(key, old)
	}
	m.location[key] = loc
	if ep.HostID != "" {
		m.hostID[ep.HostID] = ep
	}

	if m.byDC[loc.Datacenter] == nil {
		m.byDC[loc.Datacenter] = make(map[membership.Key]struct{})
	}
	m.byDC[loc.Datacenter][key] = struct{}{}

	if m.byDCRack[loc.Datacenter] == nil {
		m.byDCRack[loc.Datacenter] = make(map[string]map[membership.Key]struct{})
	}
	if m.byDCRack[loc.Datacenter][loc.Rack] == nil {
		m.byDCRack[loc.Datacenter][loc.Rack] = make(map[membership.Key]struct{})
	}
	m.byDCRack[loc.Datacenter][loc.Rack][key] = struct{}{}
}

// MarkTokenHolder records that ep owns ring tokens (as opposed to being a
// fat client, §4.3.4).
func (m *Metadata) MarkTokenHolder(ep membership.Endpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokenHolders[ep.Key()] = struct{}{}
}

// IsTokenHolder reports whether ep owns ring tokens.
func (m *Metadata) IsTokenHolder(ep membership.Endpoint) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.tokenHolders[ep.Key()]
	return ok
}

// Remove evicts an endpoint from every index (§4.4, driven by on_remove).
func (m *Metadata) Remove(ep membership.Endpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := ep.Key()
	if loc, ok := m.location[key]; ok {
		m.removeFromIndexesLocked(key, loc)
		delete(m.location, key)
	}
	delete(m.tokenHolders, key)
	if ep.HostID != "" {
		delete(m.hostID, ep.HostID)
	}
}

func (m *Metadata) removeFromIndexesLocked(key membership.Key, loc Location) {
	if set, ok := m.byDC[loc.Datacenter]; ok {
		delete(set, key)
		if len(set) == 0 {
			delete(m.byDC, loc.Datacenter)
		}
	}
	if racks, ok := m.byDCRack[loc.Datacenter]; ok {
		if set, ok := racks[loc.Rack]; ok {
			delete(set, key)
			if len(set) == 0 {
				delete(racks, loc.Rack)
			}
		}
		if len(racks) == 0 {
			delete(m.byDCRack, loc.Datacenter)
		}
	}
}

// DatacenterOf returns ep's datacenter, if known.
func (m *Metadata) DatacenterOf(ep membership.Endpoint) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loc, ok := m.location[ep.Key()]
	return loc.Datacenter, ok
}

// RackOf returns ep's rack, if known.
func (m *Metadata) RackOf(ep membership.Endpoint) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loc, ok := m.location[ep.Key()]
	return loc.Rack, ok
}

// IsMember reports whether ep has a known location.
func (m *Metadata) IsMember(ep membership.Endpoint) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.location[ep.Key()]
	return ok
}

// EndpointsIn returns every endpoint located in dc, sorted for
// deterministic iteration.
func (m *Metadata) EndpointsIn(dc string) []membership.Key {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := m.byDC[dc]
	out := make([]membership.Key, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sortKeys(out)
	return out
}

// RacksIn returns every distinct rack name configured within dc.
func (m *Metadata) RacksIn(dc string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	racks := m.byDCRack[dc]
	out := make([]string, 0, len(racks))
	for r := range racks {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// EndpointsInRack returns every endpoint located in (dc, rack).
func (m *Metadata) EndpointsInRack(dc, rack string) []membership.Key {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := m.byDCRack[dc][rack]
	out := make([]membership.Key, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sortKeys(out)
	return out
}

// SortedHostIDs returns every known host-id in sorted order, the iteration
// order replication placement (C7) walks over.
func (m *Metadata) SortedHostIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.hostID))
	for id := range m.hostID {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// EndpointForHostID resolves a host-id back to its current endpoint.
func (m *Metadata) EndpointForHostID(hostID string) (membership.Endpoint, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ep, ok := m.hostID[hostID]
	return ep, ok
}

func sortKeys(keys []membership.Key) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Addr != keys[j].Addr {
			return keys[i].Addr < keys[j].Addr
		}
		return keys[i].Port < keys[j].Port
	})
}
