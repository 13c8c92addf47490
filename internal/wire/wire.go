// Package wire hand-encodes the gossip SYN/ACK/ACK2 payloads into the
// exact byte layout §6 mandates, using protowire's varint/length-delimited
// primitives directly rather than a protoc-generated message. There is no
// .proto file and no code generation step: field numbers and wire types
// below are this package's own fixed schema, chosen once and never
// renumbered, the same contract a generated message would give us.
package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"gossipdb/internal/gossip"
	"gossipdb/internal/membership"
)

// Field numbers for the Endpoint message: addr:utf, port:i32, host_id:utf.
const (
	fEndpointAddr   protowire.Number = 1
	fEndpointPort   protowire.Number = 2
	fEndpointHostID protowire.Number = 3
)

// Field numbers for the Digest message: endpoint:msg, generation:i32,
// max_version:i32.
const (
	fDigestEndpoint   protowire.Number = 1
	fDigestGeneration protowire.Number = 2
	fDigestMaxVersion protowire.Number = 3
)

// Field numbers for the AppStateEntry message: key:i32, version:i32,
// value:utf — the exact "(key:i32, version:i32, value:utf)" triple §6
// names for each application-state entry.
const (
	fEntryKey     protowire.Number = 1
	fEntryVersion protowire.Number = 2
	fEntryValue   protowire.Number = 3
)

// Field numbers for the EndpointStateSnapshot message: generation:i32,
// version:i32, then a u32 count is implicit in the repeated-field wire
// encoding (length-prefixed submessages need no separate count field),
// entries:msg*.
const (
	fStateGeneration protowire.Number = 1
	fStateVersion    protowire.Number = 2
	fStateEntries    protowire.Number = 3
)

// Field numbers for the keyed EndpointState map entry used inside ACK/ACK2:
// endpoint:msg, state:msg.
const (
	fKeyedEndpoint protowire.Number = 1
	fKeyedState    protowire.Number = 2
)

// Field numbers for SynMessage: cluster_id:utf, digests:msg*.
const (
	fSynClusterID protowire.Number = 1
	fSynDigests   protowire.Number = 2
)

// Field numbers for AckMessage: digests:msg*, states:msg* (keyed).
const (
	fAckDigests protowire.Number = 1
	fAckStates  protowire.Number = 2
)

// Field numbers for Ack2Message: states:msg* (keyed).
const fAck2States protowire.Number = 1

// appStateKeyCodes assigns each well-known application-state key a stable
// i32 code for the wire, since membership.AppStateKey is a string in
// memory but §6 specifies key:i32 on the wire.
var appStateKeyCodes = map[membership.AppStateKey]int32{
	membership.StatusKey:     1,
	membership.DCKey:         2,
	membership.RackKey:       3,
	membership.TokensKey:     4,
	membership.HostIDKey:     5,
	membership.LoadKey:       6,
	membership.InternalIPKey: 7,
	membership.NetVersionKey: 8,
	membership.SeverityKey:   9,
}

var appStateKeyNames = func() map[int32]membership.AppStateKey {
	out := make(map[int32]membership.AppStateKey, len(appStateKeyCodes))
	for k, v := range appStateKeyCodes {
		out[v] = k
	}
	return out
}()

func appStateKeyCode(k membership.AppStateKey) int32 {
	if code, ok := appStateKeyCodes[k]; ok {
		return code
	}
	return 0
}

func appStateKeyFromCode(code int32) (membership.AppStateKey, error) {
	k, ok := appStateKeyNames[code]
	if !ok {
		return "", fmt.Errorf("wire: unknown application-state key code %d", code)
	}
	return k, nil
}

func appendEndpoint(b []byte, ep membership.Endpoint) []byte {
	b = protowire.AppendTag(b, fEndpointAddr, protowire.BytesType)
	b = protowire.AppendString(b, ep.Addr)
	b = protowire.AppendTag(b, fEndpointPort, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(ep.Port))
	if ep.HostID != "" {
		b = protowire.AppendTag(b, fEndpointHostID, protowire.BytesType)
		b = protowire.AppendString(b, ep.HostID)
	}
	return b
}

func consumeEndpoint(b []byte) (membership.Endpoint, []byte, error) {
	var ep membership.Endpoint
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return ep, nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case fEndpointAddr:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return ep, nil, protowire.ParseError(m)
			}
			ep.Addr = v
			b = b[m:]
		case fEndpointPort:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return ep, nil, protowire.ParseError(m)
			}
			ep.Port = int(v)
			b = b[m:]
		case fEndpointHostID:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return ep, nil, protowire.ParseError(m)
			}
			ep.HostID = v
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return ep, nil, protowire.ParseError(m)
			}
			b = b[m:]
		}
	}
	return ep, b, nil
}

func appendEmbedded(b []byte, num protowire.Number, body []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, body)
}

func digestBody(d gossip.Digest) []byte {
	var body []byte
	body = appendEmbedded(body, fDigestEndpoint, appendEndpoint(nil, d.Endpoint))
	body = protowire.AppendTag(body, fDigestGeneration, protowire.VarintType)
	body = protowire.AppendVarint(body, uint64(d.Generation))
	body = protowire.AppendTag(body, fDigestMaxVersion, protowire.VarintType)
	body = protowire.AppendVarint(body, uint64(d.MaxVersion))
	return body
}

// appendDigest encodes d as a length-delimited submessage under field
// number num, appending to b.
func appendDigest(b []byte, num protowire.Number, d gossip.Digest) []byte {
	return appendEmbedded(b, num, digestBody(d))
}

func consumeDigest(body []byte) (gossip.Digest, error) {
	var d gossip.Digest
	for len(body) > 0 {
		num, typ, n := protowire.ConsumeTag(body)
		if n < 0 {
			return d, protowire.ParseError(n)
		}
		body = body[n:]
		switch num {
		case fDigestEndpoint:
			raw, m := protowire.ConsumeBytes(body)
			if m < 0 {
				return d, protowire.ParseError(m)
			}
			ep, _, err := consumeEndpoint(raw)
			if err != nil {
				return d, err
			}
			d.Endpoint = ep
			body = body[m:]
		case fDigestGeneration:
			v, m := protowire.ConsumeVarint(body)
			if m < 0 {
				return d, protowire.ParseError(m)
			}
			d.Generation = int64(v)
			body = body[m:]
		case fDigestMaxVersion:
			v, m := protowire.ConsumeVarint(body)
			if m < 0 {
				return d, protowire.ParseError(m)
			}
			d.MaxVersion = int64(v)
			body = body[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, body)
			if m < 0 {
				return d, protowire.ParseError(m)
			}
			body = body[m:]
		}
	}
	return d, nil
}

func appendEntry(st membership.ApplicationState) []byte {
	var body []byte
	body = protowire.AppendTag(body, fEntryKey, protowire.VarintType)
	body = protowire.AppendVarint(body, uint64(appStateKeyCode(st.Key)))
	body = protowire.AppendTag(body, fEntryVersion, protowire.VarintType)
	body = protowire.AppendVarint(body, uint64(st.Version))
	body = protowire.AppendTag(body, fEntryValue, protowire.BytesType)
	body = protowire.AppendString(body, st.Value)
	return body
}

func consumeEntry(body []byte) (membership.ApplicationState, error) {
	var st membership.ApplicationState
	for len(body) > 0 {
		num, typ, n := protowire.ConsumeTag(body)
		if n < 0 {
			return st, protowire.ParseError(n)
		}
		body = body[n:]
		switch num {
		case fEntryKey:
			v, m := protowire.ConsumeVarint(body)
			if m < 0 {
				return st, protowire.ParseError(m)
			}
			key, err := appStateKeyFromCode(int32(v))
			if err != nil {
				return st, err
			}
			st.Key = key
			body = body[m:]
		case fEntryVersion:
			v, m := protowire.ConsumeVarint(body)
			if m < 0 {
				return st, protowire.ParseError(m)
			}
			st.Version = int64(v)
			body = body[m:]
		case fEntryValue:
			v, m := protowire.ConsumeString(body)
			if m < 0 {
				return st, protowire.ParseError(m)
			}
			st.Value = v
			body = body[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, body)
			if m < 0 {
				return st, protowire.ParseError(m)
			}
			body = body[m:]
		}
	}
	return st, nil
}

func endpointStateSnapshotBody(snap gossip.EndpointStateSnapshot) []byte {
	var body []byte
	body = protowire.AppendTag(body, fStateGeneration, protowire.VarintType)
	body = protowire.AppendVarint(body, uint64(snap.Heartbeat.Generation))
	body = protowire.AppendTag(body, fStateVersion, protowire.VarintType)
	body = protowire.AppendVarint(body, uint64(snap.Heartbeat.Version))
	for _, st := range snap.States {
		body = protowire.AppendTag(body, fStateEntries, protowire.BytesType)
		body = protowire.AppendBytes(body, appendEntry(st))
	}
	return body
}

// AppendEndpointStateSnapshot encodes snap (generation:i32, version:i32,
// and every application-state entry as (key:i32, version:i32, value:utf))
// as a length-delimited submessage under field number num, appending to b.
func AppendEndpointStateSnapshot(b []byte, num protowire.Number, snap gossip.EndpointStateSnapshot) []byte {
	return appendEmbedded(b, num, endpointStateSnapshotBody(snap))
}

func consumeEndpointStateSnapshot(body []byte) (gossip.EndpointStateSnapshot, error) {
	snap := gossip.EndpointStateSnapshot{States: make(map[membership.AppStateKey]membership.ApplicationState)}
	for len(body) > 0 {
		num, typ, n := protowire.ConsumeTag(body)
		if n < 0 {
			return snap, protowire.ParseError(n)
		}
		body = body[n:]
		switch num {
		case fStateGeneration:
			v, m := protowire.ConsumeVarint(body)
			if m < 0 {
				return snap, protowire.ParseError(m)
			}
			snap.Heartbeat.Generation = int64(v)
			body = body[m:]
		case fStateVersion:
			v, m := protowire.ConsumeVarint(body)
			if m < 0 {
				return snap, protowire.ParseError(m)
			}
			snap.Heartbeat.Version = int64(v)
			body = body[m:]
		case fStateEntries:
			raw, m := protowire.ConsumeBytes(body)
			if m < 0 {
				return snap, protowire.ParseError(m)
			}
			st, err := consumeEntry(raw)
			if err != nil {
				return snap, err
			}
			snap.States[st.Key] = st
			body = body[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, body)
			if m < 0 {
				return snap, protowire.ParseError(m)
			}
			body = body[m:]
		}
	}
	return snap, nil
}
