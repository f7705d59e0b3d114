package transport

import (
	"context"
	"crypto/tls"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/vietddude/debugctl/internal/core/domain"
	"github.com/vietddude/debugctl/internal/infra/rpc/wire"
)

// GRPCTransport implements Transport over a gRPC connection.
type GRPCTransport struct {
	endpoint string
	conn     grpc.ClientConnInterface
	owned    *grpc.ClientConn
}

// NewGRPCTransport resolves the endpoint for opts and creates the connection.
func NewGRPCTransport(ctx context.Context, opts Options) (*GRPCTransport, error) {
	target, err := Resolve(opts)
	if err != nil {
		return nil, err
	}

	var dialOpts []grpc.DialOption
	if opts.Insecure {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	} else {
		cfg := &tls.Config{MinVersion: tls.VersionTLS12}
		if src := target.CertSource; src != nil {
			cfg.GetClientCertificate = func(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
				cert, err := src()
				if err != nil {
					return nil, fmt.Errorf("failed to load client certificate: %w", err)
				}
				return &cert, nil
			}
		}
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(credentials.NewTLS(cfg)))
	}
	if opts.Credentials != nil {
		dialOpts = append(dialOpts, grpc.WithPerRPCCredentials(opts.Credentials))
	}
	if opts.UserAgent != "" {
		dialOpts = append(dialOpts, grpc.WithUserAgent(opts.UserAgent))
	}
	dialOpts = append(dialOpts, opts.DialOptions...)

	conn, err := grpc.NewClient(target.Endpoint, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", target.Endpoint, err)
	}

	if opts.WaitForReady {
		if err := waitReady(ctx, conn); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to connect to %s: %w", target.Endpoint, err)
		}
	}

	return &GRPCTransport{
		endpoint: target.Endpoint,
		conn:     conn,
		owned:    conn,
	}, nil
}

// NewGRPCTransportFromConn wraps an existing connection. The caller keeps
// ownership: Close does not close conn.
func NewGRPCTransportFromConn(conn grpc.ClientConnInterface) *GRPCTransport {
	return &GRPCTransport{conn: conn}
}

func waitReady(ctx context.Context, conn *grpc.ClientConn) error {
	conn.Connect()
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return fmt.Errorf("connection shut down")
		}
		if !conn.WaitForStateChange(ctx, state) {
			return ctx.Err()
		}
	}
}

// Endpoint returns the resolved endpoint, empty for wrapped connections.
func (t *GRPCTransport) Endpoint() string {
	return t.endpoint
}

// Conn returns the underlying connection.
func (t *GRPCTransport) Conn() grpc.ClientConnInterface {
	return t.conn
}

func (t *GRPCTransport) RegisterDebuggee(
	ctx context.Context,
	req *domain.RegisterDebuggeeRequest,
) (*domain.RegisterDebuggeeResponse, error) {
	out := new(domain.RegisterDebuggeeResponse)
	if err := t.invoke(ctx, wire.RegisterDebuggeeMethod, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *GRPCTransport) ListActiveBreakpoints(
	ctx context.Context,
	req *domain.ListActiveBreakpointsRequest,
) (*domain.ListActiveBreakpointsResponse, error) {
	out := new(domain.ListActiveBreakpointsResponse)
	if err := t.invoke(ctx, wire.ListActiveBreakpointsMethod, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *GRPCTransport) UpdateActiveBreakpoint(
	ctx context.Context,
	req *domain.UpdateActiveBreakpointRequest,
) (*domain.UpdateActiveBreakpointResponse, error) {
	out := new(domain.UpdateActiveBreakpointResponse)
	if err := t.invoke(ctx, wire.UpdateActiveBreakpointMethod, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *GRPCTransport) invoke(ctx context.Context, method string, req, out any) error {
	return t.conn.Invoke(ctx, method, req, out, grpc.CallContentSubtype(wire.CodecName))
}

// Close cleans up resources. Wrapped connections are left open.
func (t *GRPCTransport) Close() error {
	if t.owned == nil {
		return nil
	}
	return t.owned.Close()
}
