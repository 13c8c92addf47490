package wire

import (
	"testing"

	"gossipdb/internal/gossip"
	"gossipdb/internal/membership"
)

func TestSynRoundTrip(t *testing.T) {
	msg := gossip.SynMessage{
		ClusterID: "test-cluster",
		Digests: []gossip.Digest{
			{Endpoint: membership.Endpoint{Addr: "10.0.0.1", Port: 7000}, Generation: 100, MaxVersion: 5},
			{Endpoint: membership.Endpoint{Addr: "10.0.0.2", Port: 7000, HostID: "abc"}, Generation: 101, MaxVersion: 0},
		},
	}

	got, err := DecodeSyn(EncodeSyn(msg))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ClusterID != msg.ClusterID {
		t.Fatalf("cluster id: got %q want %q", got.ClusterID, msg.ClusterID)
	}
	if len(got.Digests) != len(msg.Digests) {
		t.Fatalf("digest count: got %d want %d", len(got.Digests), len(msg.Digests))
	}
	for i, d := range got.Digests {
		if d != msg.Digests[i] {
			t.Fatalf("digest %d: got %+v want %+v", i, d, msg.Digests[i])
		}
	}
}

func TestAckRoundTrip(t *testing.T) {
	ep := membership.Endpoint{Addr: "10.0.0.3", Port: 7000}
	msg := gossip.AckMessage{
		Digests: []gossip.Digest{{Endpoint: ep, Generation: 7, MaxVersion: 2}},
		States: map[membership.Endpoint]gossip.EndpointStateSnapshot{
			ep: {
				Heartbeat: membership.HeartbeatState{Generation: 7, Version: 9},
				States: map[membership.AppStateKey]membership.ApplicationState{
					membership.StatusKey: {Key: membership.StatusKey, Value: "NORMAL", Version: 9},
					membership.DCKey:     {Key: membership.DCKey, Value: "dc1", Version: 1},
				},
			},
		},
	}

	got, err := DecodeAck(EncodeAck(msg))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Digests) != 1 || got.Digests[0] != msg.Digests[0] {
		t.Fatalf("digests mismatch: %+v", got.Digests)
	}
	snap, ok := got.States[ep]
	if !ok {
		t.Fatalf("missing state for %v", ep)
	}
	if snap.Heartbeat != msg.States[ep].Heartbeat {
		t.Fatalf("heartbeat mismatch: got %+v want %+v", snap.Heartbeat, msg.States[ep].Heartbeat)
	}
	for k, want := range msg.States[ep].States {
		got, ok := snap.States[k]
		if !ok {
			t.Fatalf("missing entry %v", k)
		}
		if got != want {
			t.Fatalf("entry %v: got %+v want %+v", k, got, want)
		}
	}
}

func TestAck2RoundTrip(t *testing.T) {
	ep := membership.Endpoint{Addr: "10.0.0.4", Port: 7000}
	msg := gossip.Ack2Message{
		States: map[membership.Endpoint]gossip.EndpointStateSnapshot{
			ep: {
				Heartbeat: membership.HeartbeatState{Generation: 1, Version: 1},
				States: map[membership.AppStateKey]membership.ApplicationState{
					membership.TokensKey: {Key: membership.TokensKey, Value: "t1,t2", Version: 1},
				},
			},
		},
	}

	got, err := DecodeAck2(EncodeAck2(msg))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	snap, ok := got.States[ep]
	if !ok {
		t.Fatalf("missing state for %v", ep)
	}
	if snap.States[membership.TokensKey] != msg.States[ep].States[membership.TokensKey] {
		t.Fatalf("entry mismatch: got %+v", snap.States[membership.TokensKey])
	}
}

func TestEndpointRoundTrip(t *testing.T) {
	ep := membership.Endpoint{Addr: "10.0.0.5", Port: 7001, HostID: "host-xyz"}
	got, err := DecodeEndpoint(EncodeEndpoint(ep))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != ep {
		t.Fatalf("got %+v want %+v", got, ep)
	}
}

func TestUnknownAppStateKeyCodeErrors(t *testing.T) {
	_, err := appStateKeyFromCode(999)
	if err == nil {
		t.Fatalf("expected an error for an unregistered key code")
	}
}
