// Package snitch implements C6, proximity scoring: a static sub-snitch
// answering datacenter/rack queries from topology metadata, wrapped by a
// dynamic snitch that reorders proximity lists using measured RPC latency.
package snitch

import (
	"sort"

	"gossipdb/internal/membership"
	"gossipdb/internal/topology"
)

// SubSnitch answers static topology questions and produces a
// topology-proximity ordering: same rack first, then same datacenter, then
// everything else, each group stable in input order (§4.5 "sub-snitch").
type SubSnitch interface {
	DatacenterOf(ep membership.Endpoint) string
	RackOf(ep membership.Endpoint) string
	SortByProximity(from membership.Endpoint, list []membership.Endpoint) []membership.Endpoint
}

// TopologySnitch answers from gossiped topology metadata, falling back to a
// configured local (datacenter, rack) for the endpoint running this
// process — symmetric with the source system's GossipingPropertyFileSnitch,
// which prefers locally configured placement over anything learned from a
// peer about itself.
type TopologySnitch struct {
	Meta       *topology.Metadata
	Local      membership.Endpoint
	LocalDC    string
	LocalRack  string
}

func NewTopologySnitch(meta *topology.Metadata, local membership.Endpoint, localDC, localRack string) *TopologySnitch {
	return &TopologySnitch{Meta: meta, Local: local, LocalDC: localDC, LocalRack: localRack}
}

func (s *TopologySnitch) DatacenterOf(ep membership.Endpoint) string {
	if ep.Key() == s.Local.Key() {
		return s.LocalDC
	}
	if dc, ok := s.Meta.DatacenterOf(ep); ok {
		return dc
	}
	return ""
}

func (s *TopologySnitch) RackOf(ep membership.Endpoint) string {
	if ep.Key() == s.Local.Key() {
		return s.LocalRack
	}
	if rack, ok := s.Meta.RackOf(ep); ok {
		return rack
	}
	return ""
}

// SortByProximity groups list by closeness to from: same rack, same
// datacenter, then the rest, preserving relative order within each group.
func (s *TopologySnitch) SortByProximity(from membership.Endpoint, list []membership.Endpoint) []membership.Endpoint {
	return groupByProximity(list, s.DatacenterOf(from), s.RackOf(from), s.DatacenterOf, s.RackOf)
}

// groupByProximity buckets list into same-rack / same-dc / rest relative to
// (fromDC, fromRack), preserving input order within each bucket. Shared by
// both SubSnitch implementations so the grouping rule has one definition.
func groupByProximity(
	list []membership.Endpoint,
	fromDC, fromRack string,
	dcOf, rackOf func(membership.Endpoint) string,
) []membership.Endpoint {
	var sameRack, sameDC, rest []membership.Endpoint
	for _, ep := range list {
		dc := dcOf(ep)
		rack := rackOf(ep)
		switch {
		case dc == fromDC && rack == fromRack:
			sameRack = append(sameRack, ep)
		case dc == fromDC:
			sameDC = append(sameDC, ep)
		default:
			rest = append(rest, ep)
		}
	}

	out := make([]membership.Endpoint, 0, len(list))
	out = append(out, sameRack...)
	out = append(out, sameDC...)
	out = append(out, rest...)
	return out
}

// RackInferringSnitch infers datacenter and rack from the second and third
// octets of an IPv4 address, with no dependency on gossiped state — a
// fallback usable before topology metadata has anything to say about a
// freshly observed peer.
type RackInferringSnitch struct{}

func (RackInferringSnitch) DatacenterOf(ep membership.Endpoint) string {
	octets := splitIPv4(ep.Addr)
	if len(octets) < 2 {
		return ""
	}
	return octets[1]
}

func (RackInferringSnitch) RackOf(ep membership.Endpoint) string {
	octets := splitIPv4(ep.Addr)
	if len(octets) < 3 {
		return ""
	}
	return octets[2]
}

func (s RackInferringSnitch) SortByProximity(from membership.Endpoint, list []membership.Endpoint) []membership.Endpoint {
	return groupByProximity(list, s.DatacenterOf(from), s.RackOf(from), s.DatacenterOf, s.RackOf)
}

func splitIPv4(addr string) []string {
	var octets []string
	start := 0
	for i := 0; i < len(addr); i++ {
		if addr[i] == '.' {
			octets = append(octets, addr[start:i])
			start = i + 1
		}
	}
	octets = append(octets, addr[start:])
	return octets
}

// sortKeysByScore is a small helper used by DynamicSnitch to produce a
// stable score-ascending order (lower score is closer, §4.5).
func sortKeysByScore(list []membership.Endpoint, score func(membership.Endpoint) float64) []membership.Endpoint {
	out := make([]membership.Endpoint, len(list))
	copy(out, list)
	sort.SliceStable(out, func(i, j int) bool {
		return score(out[i]) < score(out[j])
	})
	return out
}
