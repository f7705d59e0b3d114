package transport

import (
	"context"
	"crypto/tls"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/vietddude/debugctl/internal/core/domain"
	"github.com/vietddude/debugctl/internal/infra/rpc/wire"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func certSource() (tls.Certificate, error) {
	return tls.Certificate{}, nil
}

func boolPtr(b bool) *bool { return &b }

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		endpoint string
		mtls     bool
		wantErr  string
	}{
		{
			name:     "default",
			opts:     Options{Getenv: env(nil)},
			endpoint: DefaultEndpoint,
		},
		{
			name:     "explicit endpoint wins over env",
			opts:     Options{Endpoint: "localhost:9000", Getenv: env(map[string]string{EnvUseMTLSEndpoint: "always"})},
			endpoint: "localhost:9000",
		},
		{
			name:     "always",
			opts:     Options{Getenv: env(map[string]string{EnvUseMTLSEndpoint: "always"})},
			endpoint: DefaultMTLSEndpoint,
		},
		{
			name: "never ignores certificate",
			opts: Options{
				ClientCertSource: certSource,
				Getenv: env(map[string]string{
					EnvUseMTLSEndpoint:      "never",
					EnvUseClientCertificate: "true",
				}),
			},
			endpoint: DefaultEndpoint,
			mtls:     true,
		},
		{
			name: "auto with certificate",
			opts: Options{
				ClientCertSource: certSource,
				Getenv:           env(map[string]string{EnvUseClientCertificate: "true"}),
			},
			endpoint: DefaultMTLSEndpoint,
			mtls:     true,
		},
		{
			name:     "auto with certificate disabled",
			opts:     Options{ClientCertSource: certSource, Getenv: env(nil)},
			endpoint: DefaultEndpoint,
		},
		{
			name:     "auto with certificates enabled but none provided",
			opts:     Options{Getenv: env(map[string]string{EnvUseClientCertificate: "true"})},
			endpoint: DefaultEndpoint,
		},
		{
			name: "option overrides env",
			opts: Options{
				MTLSMode:             MTLSAlways,
				UseClientCertificate: boolPtr(false),
				ClientCertSource:     certSource,
				Getenv: env(map[string]string{
					EnvUseMTLSEndpoint:      "never",
					EnvUseClientCertificate: "true",
				}),
			},
			endpoint: DefaultMTLSEndpoint,
		},
		{
			name:    "invalid mtls env",
			opts:    Options{Getenv: env(map[string]string{EnvUseMTLSEndpoint: "sometimes"})},
			wantErr: EnvUseMTLSEndpoint,
		},
		{
			name:    "invalid client certificate env",
			opts:    Options{Getenv: env(map[string]string{EnvUseClientCertificate: "1"})},
			wantErr: EnvUseClientCertificate,
		},
		{
			name:    "invalid mtls option",
			opts:    Options{MTLSMode: "sometimes", Getenv: env(nil)},
			wantErr: "unsupported",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := Resolve(tt.opts)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.endpoint, target.Endpoint)
			assert.Equal(t, tt.mtls, target.MTLS())
		})
	}
}

func TestRegistry(t *testing.T) {
	called := false
	Register("fake", func(ctx context.Context, opts Options) (Transport, error) {
		called = true
		return NewGRPCTransportFromConn(nil), nil
	})

	assert.Contains(t, Names(), DefaultName)
	assert.Contains(t, Names(), "fake")

	tr, err := New(context.Background(), "fake", Options{})
	require.NoError(t, err)
	assert.True(t, called)
	assert.NoError(t, tr.Close())

	_, err = New(context.Background(), "carrier-pigeon", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")
}

func TestNewGRPCTransport_InvalidEnv(t *testing.T) {
	_, err := NewGRPCTransport(context.Background(), Options{
		Getenv: env(map[string]string{EnvUseMTLSEndpoint: "bogus"}),
	})
	require.Error(t, err)
}

func TestNewGRPCTransport_ResolvesEndpoint(t *testing.T) {
	tr, err := NewGRPCTransport(context.Background(), Options{
		Endpoint: "localhost:1",
		Insecure: true,
	})
	require.NoError(t, err)
	defer tr.Close()

	assert.Equal(t, "localhost:1", tr.Endpoint())
}

type echoServer struct{}

func (echoServer) RegisterDebuggee(
	_ context.Context,
	req *domain.RegisterDebuggeeRequest,
) (*domain.RegisterDebuggeeResponse, error) {
	d := req.Debuggee.Clone()
	d.Id = "d-" + d.Uniquifier
	return &domain.RegisterDebuggeeResponse{Debuggee: d, AgentId: "agent-1"}, nil
}

func (echoServer) ListActiveBreakpoints(
	_ context.Context,
	req *domain.ListActiveBreakpointsRequest,
) (*domain.ListActiveBreakpointsResponse, error) {
	return &domain.ListActiveBreakpointsResponse{
		Breakpoints:   []*domain.Breakpoint{{Id: "b1"}, {Id: "b2"}},
		NextWaitToken: req.WaitToken + "+",
	}, nil
}

func (echoServer) UpdateActiveBreakpoint(
	_ context.Context,
	req *domain.UpdateActiveBreakpointRequest,
) (*domain.UpdateActiveBreakpointResponse, error) {
	return nil, status.Errorf(codes.NotFound, "breakpoint %s not found", req.Breakpoint.Id)
}

func dialBufconn(t *testing.T) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	wire.RegisterControllerServer(srv, echoServer{})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestGRPCTransport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	tr := NewGRPCTransportFromConn(dialBufconn(t))

	reg, err := tr.RegisterDebuggee(ctx, &domain.RegisterDebuggeeRequest{
		Debuggee: &domain.Debuggee{Project: "p", Uniquifier: "u1", AgentVersion: "go/1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "d-u1", reg.DebuggeeID())
	assert.Equal(t, "agent-1", reg.AgentId)

	list, err := tr.ListActiveBreakpoints(ctx, &domain.ListActiveBreakpointsRequest{
		DebuggeeId: "d-u1",
		WaitToken:  "t0",
	})
	require.NoError(t, err)
	require.Len(t, list.Breakpoints, 2)
	assert.Equal(t, "b1", list.Breakpoints[0].Id)
	assert.Equal(t, "t0+", list.NextWaitToken)

	_, err = tr.UpdateActiveBreakpoint(ctx, &domain.UpdateActiveBreakpointRequest{
		DebuggeeId: "d-u1",
		Breakpoint: &domain.Breakpoint{Id: "b9"},
	})
	require.Error(t, err)
	assert.Equal(t, codes.NotFound, status.Code(err))

	// Wrapped connections stay open.
	require.NoError(t, tr.Close())
	_, err = tr.ListActiveBreakpoints(ctx, &domain.ListActiveBreakpointsRequest{DebuggeeId: "d-u1"})
	assert.NoError(t, err)
}

func TestCredentials(t *testing.T) {
	ctx := context.Background()

	_, err := CredentialsFromJSON(ctx, []byte("{"))
	assert.Error(t, err)

	_, err = CredentialsFromFile(ctx, t.TempDir()+"/missing.json")
	assert.Error(t, err)

	creds, err := CredentialsFromInfo(ctx, map[string]any{
		"type":          "authorized_user",
		"client_id":     "id",
		"client_secret": "secret",
		"refresh_token": "token",
	})
	require.NoError(t, err)
	assert.True(t, creds.RequireTransportSecurity())
}
