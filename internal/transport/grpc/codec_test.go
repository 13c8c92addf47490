package grpc

import (
	"testing"

	"gossipdb/internal/gossip"
	"gossipdb/internal/membership"
)

func TestCodecSynRoundTrip(t *testing.T) {
	c := gossipCodec{}
	from := membership.Endpoint{Addr: "10.0.0.1", Port: 7000}
	want := &synEnvelope{
		From: from,
		Msg: gossip.SynMessage{
			ClusterID: "c1",
			Digests:   []gossip.Digest{{Endpoint: from, Generation: 1, MaxVersion: 2}},
		},
	}

	data, err := c.Marshal(want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got := new(synEnvelope)
	if err := c.Unmarshal(data, got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.From != want.From {
		t.Fatalf("from: got %+v want %+v", got.From, want.From)
	}
	if got.Msg.ClusterID != want.Msg.ClusterID {
		t.Fatalf("cluster id: got %q want %q", got.Msg.ClusterID, want.Msg.ClusterID)
	}
	if len(got.Msg.Digests) != 1 || got.Msg.Digests[0] != want.Msg.Digests[0] {
		t.Fatalf("digests: got %+v want %+v", got.Msg.Digests, want.Msg.Digests)
	}
}

func TestCodecAckRoundTrip(t *testing.T) {
	c := gossipCodec{}
	ep := membership.Endpoint{Addr: "10.0.0.2", Port: 7000}
	want := &gossip.AckMessage{
		States: map[membership.Endpoint]gossip.EndpointStateSnapshot{
			ep: {Heartbeat: membership.HeartbeatState{Generation: 3, Version: 4}},
		},
	}
	data, err := c.Marshal(want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got := new(gossip.AckMessage)
	if err := c.Unmarshal(data, got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.States[ep].Heartbeat != want.States[ep].Heartbeat {
		t.Fatalf("heartbeat: got %+v want %+v", got.States[ep].Heartbeat, want.States[ep].Heartbeat)
	}
}

func TestCodecEchoRoundTrip(t *testing.T) {
	c := gossipCodec{}
	from := membership.Endpoint{Addr: "10.0.0.3", Port: 7000, HostID: "h1"}
	want := &echoEnvelope{From: from}
	data, err := c.Marshal(want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got := new(echoEnvelope)
	if err := c.Unmarshal(data, got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.From != want.From {
		t.Fatalf("got %+v want %+v", got.From, want.From)
	}
}

func TestCodecUnsupportedType(t *testing.T) {
	c := gossipCodec{}
	if _, err := c.Marshal(42); err == nil {
		t.Fatalf("expected an error marshaling an unsupported type")
	}
	if err := c.Unmarshal(nil, new(int)); err == nil {
		t.Fatalf("expected an error unmarshaling into an unsupported type")
	}
}
