package controller

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"

	"github.com/vietddude/debugctl/internal/infra/rpc/wire"
)

// Server serves the Controller2 service over gRPC.
type Server struct {
	grpc *grpc.Server
	svc  *Service
}

// NewServer creates a gRPC server exposing svc.
func NewServer(svc *Service, opts ...grpc.ServerOption) *Server {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(UnaryServerInterceptor)}, opts...)
	s := grpc.NewServer(opts...)
	wire.RegisterControllerServer(s, svc)
	return &Server{grpc: s, svc: svc}
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.grpc.Serve(lis)
	}()

	slog.Info("Controller listening", "addr", lis.Addr().String())

	select {
	case <-ctx.Done():
		s.grpc.GracefulStop()
		<-errCh
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("grpc server failed: %w", err)
		}
		return nil
	}
}

// ListenAndServe listens on addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, lis)
}

// Stop stops the server immediately.
func (s *Server) Stop() {
	s.grpc.Stop()
}
