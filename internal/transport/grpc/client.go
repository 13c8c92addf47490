package grpc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"gossipdb/internal/gossip"
	"gossipdb/internal/membership"
)

// Client implements gossip.Transport by dialing peers over gRPC,
// caching one connection per peer address for the lifetime of the
// process (gossip targets a handful of peers repeatedly, not a large
// fanout, so a connection pool would be premature).
type Client struct {
	local  membership.Endpoint
	timing func(ep membership.Key, latencyNanos int64)

	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

// NewClient builds a Client that identifies itself as local on every
// outbound call. If timing is non-nil, it is called with every completed
// RPC's measured latency — the "transport calls receive_timing(endpoint,
// latency_ns)" hook of §4.5's dynamic snitch. Pass nil to skip timing
// (e.g. in tests).
func NewClient(local membership.Endpoint, timing func(ep membership.Key, latencyNanos int64)) *Client {
	return &Client{local: local, timing: timing, conns: make(map[string]*grpc.ClientConn)}
}

func (c *Client) recordTiming(to membership.Endpoint, start time.Time) {
	if c.timing != nil {
		c.timing(to.Key(), time.Since(start).Nanoseconds())
	}
}

func (c *Client) connFor(addr string) (*grpc.ClientConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conn, ok := c.conns[addr]; ok {
		return conn, nil
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc: dial %s: %w", addr, err)
	}
	c.conns[addr] = conn
	return conn, nil
}

func (c *Client) SendSyn(ctx context.Context, to membership.Endpoint, msg gossip.SynMessage) (gossip.AckMessage, error) {
	conn, err := c.connFor(to.String())
	if err != nil {
		return gossip.AckMessage{}, err
	}
	var reply gossip.AckMessage
	req := &synEnvelope{From: c.local, Msg: msg}
	start := time.Now()
	if err := conn.Invoke(ctx, "/"+serviceName+"/Syn", req, &reply, grpc.CallContentSubtype(codecName)); err != nil {
		return gossip.AckMessage{}, err
	}
	c.recordTiming(to, start)
	return reply, nil
}

func (c *Client) SendAck2(ctx context.Context, to membership.Endpoint, msg gossip.Ack2Message) error {
	conn, err := c.connFor(to.String())
	if err != nil {
		return err
	}
	req := &ack2Envelope{From: c.local, Msg: msg}
	start := time.Now()
	if err := conn.Invoke(ctx, "/"+serviceName+"/Ack2", req, &emptyReply{}, grpc.CallContentSubtype(codecName)); err != nil {
		return err
	}
	c.recordTiming(to, start)
	return nil
}

func (c *Client) SendEcho(ctx context.Context, to membership.Endpoint) error {
	conn, err := c.connFor(to.String())
	if err != nil {
		return err
	}
	req := &echoEnvelope{From: c.local}
	return conn.Invoke(ctx, "/"+serviceName+"/Echo", req, &emptyReply{}, grpc.CallContentSubtype(codecName))
}

func (c *Client) SendShutdown(ctx context.Context, to membership.Endpoint) error {
	conn, err := c.connFor(to.String())
	if err != nil {
		return err
	}
	req := &shutdownEnvelope{From: c.local}
	return conn.Invoke(ctx, "/"+serviceName+"/Shutdown", req, &emptyReply{}, grpc.CallContentSubtype(codecName))
}

// Close tears down every cached connection, used on node shutdown after
// the gossip.Gossiper has already broadcast GOSSIP_SHUTDOWN.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for addr, conn := range c.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("grpc: close %s: %w", addr, err)
		}
	}
	c.conns = make(map[string]*grpc.ClientConn)
	return firstErr
}

var _ gossip.Transport = (*Client)(nil)
