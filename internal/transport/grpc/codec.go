// Package grpc binds gossip.Transport and gossip.InboundHandler to a
// hand-written gRPC service: no protoc step, no generated .pb.go. The
// service description, wire envelopes, and codec below are this
// package's own fixed contract, built the same way protoc-gen-go-grpc
// would have built them had a .proto file existed.
package grpc

import (
	"fmt"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protowire"

	"gossipdb/internal/gossip"
	"gossipdb/internal/wire"
)

// codecName is registered as a gRPC content-subtype so every call on this
// service picks the gossipwire codec instead of protobuf's default.
const codecName = "gossipwire"

func init() {
	encoding.RegisterCodec(gossipCodec{})
}

// gossipCodec marshals the handful of request/reply shapes this service
// uses, each built on internal/wire's protowire primitives rather than a
// generated proto.Message.
type gossipCodec struct{}

func (gossipCodec) Name() string { return codecName }

func (gossipCodec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case *synEnvelope:
		return concat(wire.EncodeEndpoint(m.From), wire.EncodeSyn(m.Msg)), nil
	case *gossip.AckMessage:
		return wire.EncodeAck(*m), nil
	case *ack2Envelope:
		return concat(wire.EncodeEndpoint(m.From), wire.EncodeAck2(m.Msg)), nil
	case *echoEnvelope:
		return wire.EncodeEndpoint(m.From), nil
	case *shutdownEnvelope:
		return wire.EncodeEndpoint(m.From), nil
	case *emptyReply:
		return nil, nil
	default:
		return nil, fmt.Errorf("gossipwire: unsupported message type %T", v)
	}
}

func (gossipCodec) Unmarshal(data []byte, v any) error {
	switch m := v.(type) {
	case *synEnvelope:
		fromBytes, rest, err := splitOne(data)
		if err != nil {
			return err
		}
		from, err := wire.DecodeEndpoint(fromBytes)
		if err != nil {
			return err
		}
		msg, err := wire.DecodeSyn(rest)
		if err != nil {
			return err
		}
		m.From, m.Msg = from, msg
		return nil
	case *gossip.AckMessage:
		msg, err := wire.DecodeAck(data)
		if err != nil {
			return err
		}
		*m = msg
		return nil
	case *ack2Envelope:
		fromBytes, rest, err := splitOne(data)
		if err != nil {
			return err
		}
		from, err := wire.DecodeEndpoint(fromBytes)
		if err != nil {
			return err
		}
		msg, err := wire.DecodeAck2(rest)
		if err != nil {
			return err
		}
		m.From, m.Msg = from, msg
		return nil
	case *echoEnvelope:
		from, err := wire.DecodeEndpoint(data)
		if err != nil {
			return err
		}
		m.From = from
		return nil
	case *shutdownEnvelope:
		from, err := wire.DecodeEndpoint(data)
		if err != nil {
			return err
		}
		m.From = from
		return nil
	case *emptyReply:
		return nil
	default:
		return fmt.Errorf("gossipwire: unsupported message type %T", v)
	}
}

// concat length-prefixes a so two independently-encoded protowire messages
// can share one gRPC frame without their field numbers colliding; b
// follows raw since splitOne knows exactly where a ends.
func concat(a, b []byte) []byte {
	out := protowire.AppendBytes(nil, a)
	return append(out, b...)
}

func splitOne(data []byte) (first, rest []byte, err error) {
	first, n := protowire.ConsumeBytes(data)
	if n < 0 {
		return nil, nil, protowire.ParseError(n)
	}
	return first, data[n:], nil
}
