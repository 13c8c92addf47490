package snitch

import (
	"reflect"
	"testing"

	"gossipdb/internal/membership"
	"gossipdb/internal/topology"
)

func TestTopologySnitchGroupsByRackThenDC(t *testing.T) {
	meta := topology.New()
	local := membership.Endpoint{Addr: "10.0.0.1", Port: 7000, HostID: "local"}
	sameRack := membership.Endpoint{Addr: "10.0.0.2", Port: 7000, HostID: "same-rack"}
	sameDC := membership.Endpoint{Addr: "10.0.0.3", Port: 7000, HostID: "same-dc"}
	farAway := membership.Endpoint{Addr: "10.0.0.4", Port: 7000, HostID: "far"}

	meta.Update(local, topology.Location{Datacenter: "east", Rack: "r1"})
	meta.Update(sameRack, topology.Location{Datacenter: "east", Rack: "r1"})
	meta.Update(sameDC, topology.Location{Datacenter: "east", Rack: "r2"})
	meta.Update(farAway, topology.Location{Datacenter: "west", Rack: "r9"})

	s := NewTopologySnitch(meta, local, "east", "r1")
	got := s.SortByProximity(local, []membership.Endpoint{farAway, sameDC, sameRack})
	want := []membership.Endpoint{sameRack, sameDC, farAway}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SortByProximity() = %v, want %v", got, want)
	}
}

func TestRackInferringSnitchInfersFromOctets(t *testing.T) {
	s := RackInferringSnitch{}
	ep := membership.Endpoint{Addr: "10.5.7.9"}
	if dc := s.DatacenterOf(ep); dc != "5" {
		t.Fatalf("DatacenterOf() = %q, want %q", dc, "5")
	}
	if rack := s.RackOf(ep); rack != "7" {
		t.Fatalf("RackOf() = %q, want %q", rack, "7")
	}
}
