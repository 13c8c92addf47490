package topology

import (
	"reflect"
	"testing"

	"gossipdb/internal/membership"
)

func ep(addr string, port int, hostID string) membership.Endpoint {
	return membership.Endpoint{Addr: addr, Port: port, HostID: hostID}
}

func TestUpdateAndQuery(t *testing.T) {
	m := New()
	n1 := ep("10.0.0.1", 7000, "host-1")
	n2 := ep("10.0.0.2", 7000, "host-2")

	m.Update(n1, Location{Datacenter: "east", Rack: "r1"})
	m.Update(n2, Location{Datacenter: "east", Rack: "r2"})

	if dc, ok := m.DatacenterOf(n1); !ok || dc != "east" {
		t.Fatalf("DatacenterOf(n1) = %q, %v", dc, ok)
	}
	if racks := m.RacksIn("east"); !reflect.DeepEqual(racks, []string{"r1", "r2"}) {
		t.Fatalf("RacksIn(east) = %v", racks)
	}
	if got := m.EndpointsIn("east"); len(got) != 2 {
		t.Fatalf("EndpointsIn(east) = %v, want 2 entries", got)
	}
	if ids := m.SortedHostIDs(); !reflect.DeepEqual(ids, []string{"host-1", "host-2"}) {
		t.Fatalf("SortedHostIDs() = %v", ids)
	}
}

func TestUpdateReindexesOnMove(t *testing.T) {
	m := New()
	n1 := ep("10.0.0.1", 7000, "host-1")

	m.Update(n1, Location{Datacenter: "east", Rack: "r1"})
	m.Update(n1, Location{Datacenter: "west", Rack: "r9"})

	if dc, _ := m.DatacenterOf(n1); dc != "west" {
		t.Fatalf("expected n1 relocated to west, got %q", dc)
	}
	if got := m.EndpointsIn("east"); len(got) != 0 {
		t.Fatalf("expected east to be empty after move, got %v", got)
	}
	if racks := m.RacksIn("east"); len(racks) != 0 {
		t.Fatalf("expected east to have no racks left, got %v", racks)
	}
}

func TestRemoveClearsAllIndexes(t *testing.T) {
	m := New()
	n1 := ep("10.0.0.1", 7000, "host-1")
	m.Update(n1, Location{Datacenter: "east", Rack: "r1"})
	m.MarkTokenHolder(n1)

	m.Remove(n1)

	if m.IsMember(n1) {
		t.Fatalf("expected n1 removed from membership")
	}
	if m.IsTokenHolder(n1) {
		t.Fatalf("expected n1 removed from token-holder set")
	}
	if _, ok := m.EndpointForHostID("host-1"); ok {
		t.Fatalf("expected host-id mapping removed")
	}
}

func TestTokenHolderVsFatClient(t *testing.T) {
	m := New()
	n1 := ep("10.0.0.1", 7000, "host-1")
	m.Update(n1, Location{Datacenter: "east", Rack: "r1"})

	if m.IsTokenHolder(n1) {
		t.Fatalf("a plain member should not be a token holder until marked")
	}
	m.MarkTokenHolder(n1)
	if !m.IsTokenHolder(n1) {
		t.Fatalf("expected n1 marked as token holder")
	}
}
