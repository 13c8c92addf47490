package replication

import (
	"reflect"
	"testing"

	"gossipdb/internal/membership"
	"gossipdb/internal/topology"
)

func buildEndpoint(addr, hostID string) membership.Endpoint {
	return membership.Endpoint{Addr: addr, Port: 7000, HostID: hostID}
}

func candidateSet(eps ...membership.Endpoint) map[membership.Key]bool {
	out := make(map[membership.Key]bool, len(eps))
	for _, ep := range eps {
		out[ep.Key()] = true
	}
	return out
}

// TestSingleRackPlacement matches §8 scenario 2: three nodes in a single
// datacenter, one per rack, RF 3 -> every node becomes a replica in
// sorted-host-id order.
func TestSingleRackPlacement(t *testing.T) {
	meta := topology.New()
	n1 := buildEndpoint("10.0.0.1", "host-1")
	n2 := buildEndpoint("10.0.0.2", "host-2")
	n3 := buildEndpoint("10.0.0.3", "host-3")
	meta.Update(n1, topology.Location{Datacenter: "east", Rack: "r1"})
	meta.Update(n2, topology.Location{Datacenter: "east", Rack: "r2"})
	meta.Update(n3, topology.Location{Datacenter: "east", Rack: "r3"})

	strat := &NetworkTopologyStrategy{ReplicationFactor: map[string]int{"east": 3}}
	got := strat.CalculateReplicas(meta, membership.Endpoint{}, nil, candidateSet(n1, n2, n3), false)

	want := []membership.Endpoint{n1, n2, n3}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("CalculateReplicas() = %v, want %v", got, want)
	}
}

// TestRackExhaustionPlacement matches §8 scenario 3: rack r1 holds n1..n3,
// rack r2 holds only n4. With RF 3 starting at n1, the algorithm must take
// one replica from each rack before doubling back into r1 -- landing on
// n1, n4, then n2 (the first skipped r1 member drained once r2 is full).
func TestRackExhaustionPlacement(t *testing.T) {
	meta := topology.New()
	n1 := buildEndpoint("10.0.0.1", "host-1")
	n2 := buildEndpoint("10.0.0.2", "host-2")
	n3 := buildEndpoint("10.0.0.3", "host-3")
	n4 := buildEndpoint("10.0.0.4", "host-4")
	meta.Update(n1, topology.Location{Datacenter: "east", Rack: "r1"})
	meta.Update(n2, topology.Location{Datacenter: "east", Rack: "r1"})
	meta.Update(n3, topology.Location{Datacenter: "east", Rack: "r1"})
	meta.Update(n4, topology.Location{Datacenter: "east", Rack: "r2"})

	strat := &NetworkTopologyStrategy{ReplicationFactor: map[string]int{"east": 3}}
	got := strat.CalculateReplicas(meta, n1, nil, candidateSet(n1, n2, n3, n4), false)

	want := []membership.Endpoint{n1, n4, n2}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("CalculateReplicas() = %v, want %v", got, want)
	}
}

func TestLocalStrategyIgnoresEverything(t *testing.T) {
	local := buildEndpoint("10.0.0.9", "host-9")
	strat := LocalStrategy{Local: local}
	got := strat.CalculateReplicas(topology.New(), membership.Endpoint{}, nil, nil, false)
	if !reflect.DeepEqual(got, []membership.Endpoint{local}) {
		t.Fatalf("LocalStrategy.CalculateReplicas() = %v, want [%v]", got, local)
	}
}

func TestNewNetworkTopologyStrategyRejectsReplicationFactorKey(t *testing.T) {
	_, err := NewNetworkTopologyStrategy(map[string]int{"replication_factor": 3})
	if err != ErrReplicationFactorOption {
		t.Fatalf("expected ErrReplicationFactorOption, got %v", err)
	}
}

func TestTopUpFromOldReplicas(t *testing.T) {
	meta := topology.New()
	n1 := buildEndpoint("10.0.0.1", "host-1")
	n2 := buildEndpoint("10.0.0.2", "host-2")
	meta.Update(n1, topology.Location{Datacenter: "east", Rack: "r1"})
	meta.Update(n2, topology.Location{Datacenter: "east", Rack: "r1"})

	strat := &NetworkTopologyStrategy{ReplicationFactor: map[string]int{"east": 2}}
	// Candidates contains only n1 on the primary pass; n2 must come back
	// via the old_replicas top-up.
	got := strat.CalculateReplicas(meta, membership.Endpoint{}, []membership.Endpoint{n2}, candidateSet(n1), true)

	if len(got) != 2 {
		t.Fatalf("expected topped-up result of 2 replicas, got %v", got)
	}
}

func TestIncludeOldFalseSkipsTopUp(t *testing.T) {
	meta := topology.New()
	n1 := buildEndpoint("10.0.0.1", "host-1")
	n2 := buildEndpoint("10.0.0.2", "host-2")
	meta.Update(n1, topology.Location{Datacenter: "east", Rack: "r1"})
	meta.Update(n2, topology.Location{Datacenter: "east", Rack: "r1"})

	strat := &NetworkTopologyStrategy{ReplicationFactor: map[string]int{"east": 2}}
	// Same inputs as TestTopUpFromOldReplicas, but includeOld=false: n2
	// must NOT come back from old_replicas, so only n1 is returned.
	got := strat.CalculateReplicas(meta, membership.Endpoint{}, []membership.Endpoint{n2}, candidateSet(n1), false)

	if len(got) != 1 || got[0] != n1 {
		t.Fatalf("expected [%v] with includeOld=false, got %v", n1, got)
	}
}
