// Package gossip implements C4, the anti-entropy gossiper: a periodic
// three-phase (SYN/ACK/ACK2) exchange of endpoint-state digests and
// deltas that keeps every node's membership view eventually consistent
// (§4.3). The Gossiper is the sole owner of the endpoint-state map (§3
// "Ownership"); every other component reaches it through read-only
// accessors or the failure-event bus.
package gossip

import (
	"context"
	"time"

	"gossipdb/internal/membership"
)

// Digest is the compact per-endpoint summary exchanged in a SYN: just
// enough to tell the receiver whether it's behind, ahead, or caught up
// (§3 "Score map" sibling concept, §4.3.1).
type Digest struct {
	Endpoint   membership.Endpoint
	Generation int64
	MaxVersion int64
}

// EndpointStateSnapshot is the wire-safe copy of membership.EndpointState
// carried inside ACK/ACK2 payloads — membership.EndpointState itself holds
// a mutex and is never copied across goroutine or network boundaries.
type EndpointStateSnapshot struct {
	Heartbeat membership.HeartbeatState
	States    map[membership.AppStateKey]membership.ApplicationState
}

// SynMessage is GOSSIP_DIGEST_SYN (§6): a cluster id (rejects
// cross-cluster gossip, §7 class 4) and a shuffled digest list.
type SynMessage struct {
	ClusterID string
	Digests   []Digest
}

// AckMessage is GOSSIP_DIGEST_ACK (§6): digests the receiver still needs,
// plus whatever states it has that the SYN's sender lacks.
type AckMessage struct {
	Digests []Digest
	States  map[membership.Endpoint]EndpointStateSnapshot
}

// Ack2Message is GOSSIP_DIGEST_ACK2 (§6): the concrete states the ACK's
// sender requested.
type Ack2Message struct {
	States map[membership.Endpoint]EndpointStateSnapshot
}

// Transport is the byte-oriented message channel the Gossiper depends on
// (§1 "Code implementing this specification should depend only on a
// clock, a timer, a byte-oriented message transport, and a source of
// randomness"). It never blocks the caller beyond the RPC's own
// deadline — transient failures (§7 class 1) are the caller's problem to
// retry on the next tick, not the transport's.
type Transport interface {
	SendSyn(ctx context.Context, to membership.Endpoint, msg SynMessage) (AckMessage, error)
	SendAck2(ctx context.Context, to membership.Endpoint, msg Ack2Message) error
	SendEcho(ctx context.Context, to membership.Endpoint) error
	SendShutdown(ctx context.Context, to membership.Endpoint) error
}

// InboundHandler is what a Transport implementation dispatches incoming
// verbs to. The Gossiper implements this; a transport binding (e.g.
// internal/transport/grpc) decodes wire messages and calls straight
// through, never touching gossip state itself.
type InboundHandler interface {
	HandleSyn(from membership.Endpoint, msg SynMessage) (AckMessage, error)
	HandleAck2(from membership.Endpoint, msg Ack2Message)
	HandleEcho(from membership.Endpoint)
	HandleShutdown(from membership.Endpoint)
}

// Random is the one source of randomness the tick depends on (peer
// selection, digest shuffling). Satisfied directly by *math/rand.Rand.
type Random interface {
	Intn(n int) int
	Float64() float64
	Shuffle(n int, swap func(i, j int))
}

// echoTimeout bounds the mark_alive round-trip so a single unresponsive
// peer can't leak a goroutine forever.
const echoTimeout = 5 * time.Second
