package wire

import (
	"google.golang.org/protobuf/encoding/protowire"

	"gossipdb/internal/gossip"
	"gossipdb/internal/membership"
)

func keyedStateBody(ep membership.Endpoint, snap gossip.EndpointStateSnapshot) []byte {
	var body []byte
	body = appendEmbedded(body, fKeyedEndpoint, appendEndpoint(nil, ep))
	body = appendEmbedded(body, fKeyedState, endpointStateSnapshotBody(snap))
	return body
}

func consumeKeyedState(body []byte) (membership.Endpoint, gossip.EndpointStateSnapshot, error) {
	var ep membership.Endpoint
	var snap gossip.EndpointStateSnapshot
	for len(body) > 0 {
		num, typ, n := protowire.ConsumeTag(body)
		if n < 0 {
			return ep, snap, protowire.ParseError(n)
		}
		body = body[n:]
		switch num {
		case fKeyedEndpoint:
			raw, m := protowire.ConsumeBytes(body)
			if m < 0 {
				return ep, snap, protowire.ParseError(m)
			}
			e, _, err := consumeEndpoint(raw)
			if err != nil {
				return ep, snap, err
			}
			ep = e
			body = body[m:]
		case fKeyedState:
			raw, m := protowire.ConsumeBytes(body)
			if m < 0 {
				return ep, snap, protowire.ParseError(m)
			}
			s, err := consumeEndpointStateSnapshot(raw)
			if err != nil {
				return ep, snap, err
			}
			snap = s
			body = body[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, body)
			if m < 0 {
				return ep, snap, protowire.ParseError(m)
			}
			body = body[m:]
		}
	}
	return ep, snap, nil
}

func appendStatesMap(b []byte, num protowire.Number, states map[membership.Endpoint]gossip.EndpointStateSnapshot) []byte {
	for ep, snap := range states {
		b = appendEmbedded(b, num, keyedStateBody(ep, snap))
	}
	return b
}

// EncodeSyn serializes a gossip SYN message: cluster_id:utf, digests:msg*.
func EncodeSyn(msg gossip.SynMessage) []byte {
	var b []byte
	if msg.ClusterID != "" {
		b = protowire.AppendTag(b, fSynClusterID, protowire.BytesType)
		b = protowire.AppendString(b, msg.ClusterID)
	}
	for _, d := range msg.Digests {
		b = appendDigest(b, fSynDigests, d)
	}
	return b
}

// DecodeSyn parses a gossip SYN message.
func DecodeSyn(b []byte) (gossip.SynMessage, error) {
	var msg gossip.SynMessage
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return msg, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case fSynClusterID:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return msg, protowire.ParseError(m)
			}
			msg.ClusterID = v
			b = b[m:]
		case fSynDigests:
			raw, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return msg, protowire.ParseError(m)
			}
			d, err := consumeDigest(raw)
			if err != nil {
				return msg, err
			}
			msg.Digests = append(msg.Digests, d)
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return msg, protowire.ParseError(m)
			}
			b = b[m:]
		}
	}
	return msg, nil
}

// EncodeAck serializes a gossip ACK message: digests:msg*, states:msg*.
func EncodeAck(msg gossip.AckMessage) []byte {
	var b []byte
	for _, d := range msg.Digests {
		b = appendDigest(b, fAckDigests, d)
	}
	b = appendStatesMap(b, fAckStates, msg.States)
	return b
}

// DecodeAck parses a gossip ACK message.
func DecodeAck(b []byte) (gossip.AckMessage, error) {
	msg := gossip.AckMessage{States: make(map[membership.Endpoint]gossip.EndpointStateSnapshot)}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return msg, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case fAckDigests:
			raw, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return msg, protowire.ParseError(m)
			}
			d, err := consumeDigest(raw)
			if err != nil {
				return msg, err
			}
			msg.Digests = append(msg.Digests, d)
			b = b[m:]
		case fAckStates:
			raw, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return msg, protowire.ParseError(m)
			}
			ep, snap, err := consumeKeyedState(raw)
			if err != nil {
				return msg, err
			}
			msg.States[ep] = snap
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return msg, protowire.ParseError(m)
			}
			b = b[m:]
		}
	}
	return msg, nil
}

// EncodeAck2 serializes a gossip ACK2 message: states:msg*.
func EncodeAck2(msg gossip.Ack2Message) []byte {
	return appendStatesMap(nil, fAck2States, msg.States)
}

// DecodeAck2 parses a gossip ACK2 message.
func DecodeAck2(b []byte) (gossip.Ack2Message, error) {
	msg := gossip.Ack2Message{States: make(map[membership.Endpoint]gossip.EndpointStateSnapshot)}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return msg, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case fAck2States:
			raw, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return msg, protowire.ParseError(m)
			}
			ep, snap, err := consumeKeyedState(raw)
			if err != nil {
				return msg, err
			}
			msg.States[ep] = snap
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return msg, protowire.ParseError(m)
			}
			b = b[m:]
		}
	}
	return msg, nil
}

// EncodeEndpoint serializes a bare membership.Endpoint (used for the
// Echo/Shutdown verbs, which carry only a sender identity).
func EncodeEndpoint(ep membership.Endpoint) []byte {
	return appendEndpoint(nil, ep)
}

// DecodeEndpoint parses a bare membership.Endpoint.
func DecodeEndpoint(b []byte) (membership.Endpoint, error) {
	ep, _, err := consumeEndpoint(b)
	return ep, err
}
