// Package transport selects and builds the connection Controller2 calls travel
// over.
//
// Selection follows a fixed precedence: an explicit Transport instance handed
// to the client, then an explicit endpoint, then the mTLS mode taken from the
// options or the GOOGLE_API_USE_MTLS_ENDPOINT environment variable, then the
// default endpoint.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/vietddude/debugctl/internal/core/domain"
)

// Transport exposes the three Controller2 methods. Implementations must be
// safe for concurrent use; calls never mutate connection state.
type Transport interface {
	RegisterDebuggee(ctx context.Context, req *domain.RegisterDebuggeeRequest) (*domain.RegisterDebuggeeResponse, error)
	ListActiveBreakpoints(ctx context.Context, req *domain.ListActiveBreakpointsRequest) (*domain.ListActiveBreakpointsResponse, error)
	UpdateActiveBreakpoint(ctx context.Context, req *domain.UpdateActiveBreakpointRequest) (*domain.UpdateActiveBreakpointResponse, error)
	Close() error
}

const (
	DefaultEndpoint     = "clouddebugger.googleapis.com:443"
	DefaultMTLSEndpoint = "clouddebugger.mtls.googleapis.com:443"

	EnvUseMTLSEndpoint      = "GOOGLE_API_USE_MTLS_ENDPOINT"
	EnvUseClientCertificate = "GOOGLE_API_USE_CLIENT_CERTIFICATE"
)

// MTLSMode controls when the mTLS endpoint is used.
type MTLSMode string

const (
	MTLSAuto   MTLSMode = "auto"
	MTLSAlways MTLSMode = "always"
	MTLSNever  MTLSMode = "never"
)

// ParseMTLSMode parses an mTLS mode; the empty string means auto.
func ParseMTLSMode(s string) (MTLSMode, error) {
	switch MTLSMode(s) {
	case "", MTLSAuto:
		return MTLSAuto, nil
	case MTLSAlways, MTLSNever:
		return MTLSMode(s), nil
	}
	return "", fmt.Errorf(
		"unsupported %s value %q, accepted values: never, auto, always",
		EnvUseMTLSEndpoint, s,
	)
}

// CertSource supplies the client certificate for mutual TLS.
type CertSource func() (tls.Certificate, error)

// Options configure transport construction.
type Options struct {
	// Endpoint overrides endpoint selection when set.
	Endpoint string

	// MTLSMode overrides GOOGLE_API_USE_MTLS_ENDPOINT when set.
	MTLSMode MTLSMode

	// UseClientCertificate overrides GOOGLE_API_USE_CLIENT_CERTIFICATE when set.
	UseClientCertificate *bool

	// ClientCertSource provides the client certificate. It is only used when
	// client certificates are enabled.
	ClientCertSource CertSource

	// Credentials are attached to every call.
	Credentials credentials.PerRPCCredentials

	// Insecure disables transport security (local controllers and tests).
	Insecure bool

	// WaitForReady blocks construction until the connection is ready.
	WaitForReady bool

	UserAgent   string
	DialOptions []grpc.DialOption

	// Getenv reads the environment; nil means os.Getenv.
	Getenv func(string) string
}

func (o Options) getenv(key string) string {
	if o.Getenv != nil {
		return o.Getenv(key)
	}
	return os.Getenv(key)
}

// Target is the outcome of endpoint selection.
type Target struct {
	Endpoint   string
	CertSource CertSource
}

// MTLS reports whether a client certificate will be presented.
func (t Target) MTLS() bool {
	return t.CertSource != nil
}

// Resolve selects the endpoint and client certificate for opts.
func Resolve(opts Options) (Target, error) {
	useCert, err := useClientCertificate(opts)
	if err != nil {
		return Target{}, err
	}

	var target Target
	if useCert {
		target.CertSource = opts.ClientCertSource
	}

	if opts.Endpoint != "" {
		target.Endpoint = opts.Endpoint
		return target, nil
	}

	mode := opts.MTLSMode
	if mode == "" {
		mode, err = ParseMTLSMode(opts.getenv(EnvUseMTLSEndpoint))
		if err != nil {
			return Target{}, err
		}
	} else if _, err := ParseMTLSMode(string(mode)); err != nil {
		return Target{}, err
	}

	switch mode {
	case MTLSAlways:
		target.Endpoint = DefaultMTLSEndpoint
	case MTLSNever:
		target.Endpoint = DefaultEndpoint
	default:
		if target.MTLS() {
			target.Endpoint = DefaultMTLSEndpoint
		} else {
			target.Endpoint = DefaultEndpoint
		}
	}
	return target, nil
}

func useClientCertificate(opts Options) (bool, error) {
	if opts.UseClientCertificate != nil {
		return *opts.UseClientCertificate, nil
	}
	v := opts.getenv(EnvUseClientCertificate)
	if v == "" {
		return false, nil
	}
	use, err := strconv.ParseBool(v)
	if err != nil || (v != "true" && v != "false") {
		return false, fmt.Errorf(
			"environment variable %s must be either true or false, got %q",
			EnvUseClientCertificate, v,
		)
	}
	return use, nil
}

// Factory builds a transport from options.
type Factory func(ctx context.Context, opts Options) (Transport, error)

// DefaultName is the transport used when none is named.
const DefaultName = "grpc"

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a transport factory available by name.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// Names lists the registered transports.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the named transport; an empty name selects DefaultName.
func New(ctx context.Context, name string, opts Options) (Transport, error) {
	if name == "" {
		name = DefaultName
	}
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown transport %q (registered: %v)", name, Names())
	}
	return f(ctx, opts)
}

func init() {
	Register(DefaultName, func(ctx context.Context, opts Options) (Transport, error) {
		return NewGRPCTransport(ctx, opts)
	})
}
