// Package replication implements C7: given a key/token and topology,
// compute the ordered replica set. Two concrete strategies share one
// contract, matching §4.6.
package replication

import (
	"errors"

	"gossipdb/internal/membership"
	"gossipdb/internal/topology"
)

// ErrReplicationFactorOption is returned when a network-topology options
// map contains the reserved "replication_factor" key (§4.6, §7 class 3).
var ErrReplicationFactorOption = errors.New("replication: \"replication_factor\" is not a valid network-topology option")

// Strategy is the shared contract every replication strategy implements.
//
// candidates restricts which endpoints are eligible for selection (keyed
// by network identity); oldReplicas are endpoints already holding a
// replica that should be skipped on the first pass. includeOld gates the
// second pass (§4.6 point 4): when true, a first pass that fell short of
// totalWanted is topped up from oldReplicas so a rolling topology change
// keeps existing replicas rather than dropping them; when false, the
// result is exactly what the fresh candidate set alone can satisfy — the
// set a caller streaming data to new replicas needs, without the
// already-placed old set folded back in. startAt, when non-zero, rotates
// the canonical sorted-host-id order to begin at that endpoint — the
// mechanism by which "the token placing n1 first" (§8 scenario 3) selects
// a ring starting point without this package needing its own
// partitioner/token type (see DESIGN.md).
type Strategy interface {
	CalculateReplicas(
		meta *topology.Metadata,
		startAt membership.Endpoint,
		oldReplicas []membership.Endpoint,
		candidates map[membership.Key]bool,
		includeOld bool,
	) []membership.Endpoint
}

// LocalStrategy always returns the local endpoint, ignoring every option
// (§4.6 "Local strategy").
type LocalStrategy struct {
	Local membership.Endpoint
}

func (s LocalStrategy) CalculateReplicas(
	_ *topology.Metadata,
	_ membership.Endpoint,
	_ []membership.Endpoint,
	_ map[membership.Key]bool,
	_ bool,
) []membership.Endpoint {
	return []membership.Endpoint{s.Local}
}
