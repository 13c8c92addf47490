package grpc

import (
	"context"
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"gossipdb/internal/gossip"
)

// Server listens for gossip RPCs and forwards each verb straight to a
// gossip.InboundHandler (in practice a *gossip.Gossiper) — it never
// touches endpoint state itself, matching the teacher's transport/grpc.go
// split between "own the listener" and "own the protocol".
type Server struct {
	addr    string
	srv     *grpc.Server
	lis     net.Listener
	handler gossip.InboundHandler
	logger  *zap.Logger
}

// NewServer builds a Server bound to addr, dispatching to handler.
func NewServer(addr string, handler gossip.InboundHandler, logger *zap.Logger) (*Server, error) {
	if addr == "" {
		return nil, fmt.Errorf("grpc: addr must be provided")
	}
	if handler == nil {
		return nil, fmt.Errorf("grpc: handler must be provided")
	}
	return &Server{
		addr:    addr,
		srv:     grpc.NewServer(),
		handler: handler,
		logger:  logger,
	}, nil
}

// Start binds the listener, registers the gossip service, and serves
// until Stop is called. Blocks the calling goroutine.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("grpc: failed to listen on %s: %w", s.addr, err)
	}
	s.lis = lis

	s.srv.RegisterService(&serviceDesc, s)
	reflection.Register(s.srv)

	s.logger.Info("gossip transport listening", zap.String("addr", s.addr))
	return s.srv.Serve(s.lis)
}

// Stop gracefully drains in-flight RPCs and closes the listener.
func (s *Server) Stop() {
	s.srv.GracefulStop()
}

func (s *Server) Syn(ctx context.Context, req *synEnvelope) (*gossip.AckMessage, error) {
	ack, err := s.handler.HandleSyn(req.From, req.Msg)
	if err != nil {
		return nil, err
	}
	return &ack, nil
}

func (s *Server) Ack2(ctx context.Context, req *ack2Envelope) (*emptyReply, error) {
	s.handler.HandleAck2(req.From, req.Msg)
	return &emptyReply{}, nil
}

func (s *Server) Echo(ctx context.Context, req *echoEnvelope) (*emptyReply, error) {
	s.handler.HandleEcho(req.From)
	return &emptyReply{}, nil
}

func (s *Server) Shutdown(ctx context.Context, req *shutdownEnvelope) (*emptyReply, error) {
	s.handler.HandleShutdown(req.From)
	return &emptyReply{}, nil
}
