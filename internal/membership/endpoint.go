// Package membership implements C1 (endpoint identity) and C2 (heartbeat
// and versioned application state) from the cluster-membership core: the
// stable identifiers nodes use to address each other, and the per-endpoint
// state that gossip disseminates and merges.
package membership

import "fmt"

// Endpoint identifies a cluster node by network address and port. Two
// endpoints are equal iff both fields match — HostID rides along but is
// not part of identity, so an endpoint that changes address keeps the
// same HostID and a node that reuses an address after a HostID change is
// still a different logical member (detected via HOST_ID application
// state, not via Endpoint equality).
type Endpoint struct {
	Addr   string
	Port   int
	HostID string
}

// String renders "addr:port", the form used as a map key's String() and
// in log output.
func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.Addr, e.Port)
}

// Key returns the (addr, port) identity pair with HostID stripped, for use
// as a map key where only network identity should matter.
type Key struct {
	Addr string
	Port int
}

func (e Endpoint) Key() Key { return Key{Addr: e.Addr, Port: e.Port} }
