package gossip

import "gossipdb/internal/membership"

// buildDigests snapshots every known endpoint (local included) into a
// digest and returns them in a shuffled order, per §4.3 step 2: "Build a
// shuffled digest list: for each known endpoint, (endpoint, generation,
// max_version)".
func (g *Gossiper) buildDigests(rng Random) []Digest {
	g.mu.Lock()
	digests := make([]Digest, 0, len(g.entries)+1)
	for _, e := range g.entries {
		digests = append(digests, Digest{
			Endpoint:   e.endpoint,
			Generation: e.state.Generation(),
			MaxVersion: e.state.MaxVersion(),
		})
	}
	digests = append(digests, Digest{
		Endpoint:   g.local,
		Generation: g.localState.Generation(),
		MaxVersion: g.localState.MaxVersion(),
	})
	g.mu.Unlock()

	rng.Shuffle(len(digests), func(i, j int) {
		digests[i], digests[j] = digests[j], digests[i]
	})
	return digests
}

// examineDigest classifies one remote digest against the receiver's
// knowledge of that endpoint and appends to requestOut (digests the
// receiver still needs) or sendOut (states the receiver has that the
// remote lacks), implementing the §4.3.1 case table.
//
// The "equal generations, remote behind" branch sends entries with
// version strictly greater than the remote's reported max_version, not
// the receiver's own max_version as a literal reading of the spec's table
// cell would suggest — sending only entries above the receiver's own
// maximum would send nothing, since by definition nothing exceeds it.
// This follows the source system's actual sendAll(epState, remoteMaxVersion)
// behavior and is required for the §8 convergence property to hold.
func (g *Gossiper) examineDigest(d Digest, requestOut *[]Digest, sendOut map[membership.Endpoint]EndpointStateSnapshot) {
	g.mu.Lock()
	e, known := g.entries[d.Endpoint.Key()]
	var localState *membership.EndpointState
	if known {
		localState = e.state
	} else if d.Endpoint.Key() == g.local.Key() {
		known = true
		localState = g.localState
	}
	g.mu.Unlock()

	switch {
	case !known:
		*requestOut = append(*requestOut, Digest{Endpoint: d.Endpoint, Generation: d.Generation, MaxVersion: 0})
		return
	}

	localGen := localState.Generation()
	switch {
	case d.Generation > localGen:
		*requestOut = append(*requestOut, Digest{Endpoint: d.Endpoint, Generation: d.Generation, MaxVersion: 0})
	case d.Generation < localGen:
		sendOut[d.Endpoint] = snapshotAbove(localState, 0)
	default:
		localMax := localState.MaxVersion()
		switch {
		case d.MaxVersion > localMax:
			*requestOut = append(*requestOut, Digest{Endpoint: d.Endpoint, Generation: d.Generation, MaxVersion: localMax})
		case d.MaxVersion < localMax:
			sendOut[d.Endpoint] = snapshotAbove(localState, d.MaxVersion)
		}
		// equal, equal: skip.
	}
}

// snapshotAbove copies every application-state entry (and the heartbeat)
// of state with version strictly greater than minVersion.
func snapshotAbove(state *membership.EndpointState, minVersion int64) EndpointStateSnapshot {
	entries := state.Entries()
	out := make(map[membership.AppStateKey]membership.ApplicationState, len(entries))
	for k, v := range entries {
		if v.Version > minVersion {
			out[k] = v
		}
	}
	return EndpointStateSnapshot{Heartbeat: state.Heartbeat(), States: out}
}
