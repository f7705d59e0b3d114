package rpc

import (
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/vietddude/debugctl/internal/core/domain"
	"github.com/vietddude/debugctl/internal/infra/rpc/invoker"
	"github.com/vietddude/debugctl/internal/infra/rpc/retry"
	"github.com/vietddude/debugctl/internal/infra/rpc/transport"
)

// ErrInvalidArgument reports caller misuse detected before any network
// activity.
var ErrInvalidArgument = errors.New("invalid argument")

type argumentError struct {
	msg string
}

func invalidArgument(msg string) error {
	return &argumentError{msg: msg}
}

func (e *argumentError) Error() string {
	return "invalid argument: " + e.msg
}

func (e *argumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// GRPCStatus lets status.Code classify the error as InvalidArgument.
func (e *argumentError) GRPCStatus() *status.Status {
	return status.New(codes.InvalidArgument, e.Error())
}

// MethodDefaults are the per-operation defaults of a client.
type MethodDefaults struct {
	// Retry replaces the built-in default policy when RetrySet is true. A nil
	// Retry with RetrySet disables retries.
	Retry    *retry.Policy
	RetrySet bool

	// Timeout bounds each attempt when positive.
	Timeout time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	transport     transport.Transport
	transportName string
	topts         transport.Options
	info          *ClientInfo
	methods       map[string]MethodDefaults
}

// WithEndpoint overrides endpoint selection.
func WithEndpoint(endpoint string) ClientOption {
	return func(c *clientConfig) { c.topts.Endpoint = endpoint }
}

// WithMTLSMode overrides GOOGLE_API_USE_MTLS_ENDPOINT.
func WithMTLSMode(mode MTLSMode) ClientOption {
	return func(c *clientConfig) { c.topts.MTLSMode = mode }
}

// WithClientCertificate overrides GOOGLE_API_USE_CLIENT_CERTIFICATE.
func WithClientCertificate(use bool) ClientOption {
	return func(c *clientConfig) { c.topts.UseClientCertificate = &use }
}

// WithClientCertSource sets the client certificate used for mutual TLS.
func WithClientCertSource(src CertSource) ClientOption {
	return func(c *clientConfig) { c.topts.ClientCertSource = src }
}

// WithCredentials attaches credentials to every call.
func WithCredentials(creds credentials.PerRPCCredentials) ClientOption {
	return func(c *clientConfig) { c.topts.Credentials = creds }
}

// WithTransport makes the client use t instead of building a transport. The
// caller keeps ownership of t.
func WithTransport(t Transport) ClientOption {
	return func(c *clientConfig) { c.transport = t }
}

// WithTransportName selects a registered transport.
func WithTransportName(name string) ClientOption {
	return func(c *clientConfig) { c.transportName = name }
}

// WithInsecure disables transport security.
func WithInsecure() ClientOption {
	return func(c *clientConfig) { c.topts.Insecure = true }
}

// WithWaitForReady blocks construction until the connection is ready.
func WithWaitForReady() ClientOption {
	return func(c *clientConfig) { c.topts.WaitForReady = true }
}

// WithDialOptions appends gRPC dial options.
func WithDialOptions(opts ...grpc.DialOption) ClientOption {
	return func(c *clientConfig) { c.topts.DialOptions = append(c.topts.DialOptions, opts...) }
}

// WithClientInfo replaces the resolved client tag.
func WithClientInfo(info ClientInfo) ClientOption {
	return func(c *clientConfig) { c.info = &info }
}

// WithMethodDefaults overrides the defaults of one operation, named by its
// short name (wire.OpRegisterDebuggee and friends).
func WithMethodDefaults(op string, d MethodDefaults) ClientOption {
	return func(c *clientConfig) {
		if c.methods == nil {
			c.methods = make(map[string]MethodDefaults)
		}
		c.methods[op] = d
	}
}

// CallOption configures a single call.
type CallOption func(*callConfig)

type callConfig struct {
	settings invoker.Settings

	debuggee   *domain.Debuggee
	debuggeeID string
	breakpoint *domain.Breakpoint

	oddMetadata bool
}

func newCallConfig(opts []CallOption) *callConfig {
	cfg := &callConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithRetry replaces the operation's retry policy for the call.
func WithRetry(p *RetryPolicy) CallOption {
	return func(c *callConfig) {
		c.settings.Retry = p
		c.settings.RetrySet = true
	}
}

// WithoutRetry makes the call a single attempt.
func WithoutRetry() CallOption {
	return WithRetry(nil)
}

// WithTimeout overrides the per-attempt timeout.
func WithTimeout(d time.Duration) CallOption {
	return func(c *callConfig) { c.settings.Timeout = d }
}

// WithMetadata attaches key/value pairs to every attempt of the call. An odd
// number of arguments fails the call with ErrInvalidArgument.
func WithMetadata(kv ...string) CallOption {
	return func(c *callConfig) {
		if len(kv)%2 == 1 {
			c.oddMetadata = true
			return
		}
		c.settings.Metadata = metadata.Join(c.settings.Metadata, metadata.Pairs(kv...))
	}
}

// WithDebuggee supplies the debuggee of a RegisterDebuggee call in place of a
// request.
func WithDebuggee(d *domain.Debuggee) CallOption {
	return func(c *callConfig) { c.debuggee = d }
}

// WithDebuggeeID supplies the debuggee id of a ListActiveBreakpoints or
// UpdateActiveBreakpoint call in place of a request.
func WithDebuggeeID(id string) CallOption {
	return func(c *callConfig) { c.debuggeeID = id }
}

// WithBreakpoint supplies the breakpoint of an UpdateActiveBreakpoint call in
// place of a request.
func WithBreakpoint(bp *domain.Breakpoint) CallOption {
	return func(c *callConfig) { c.breakpoint = bp }
}

const mixedForms = "a request object and flattened fields are mutually exclusive"

// validate checks the call settings shared by every operation.
func (c *callConfig) validate() error {
	if c.oddMetadata {
		return invalidArgument("metadata requires key/value pairs")
	}
	if c.settings.Retry != nil {
		if err := c.settings.Retry.Validate(); err != nil {
			return invalidArgument(err.Error())
		}
	}
	return nil
}

func (c *callConfig) registerRequest(req *domain.RegisterDebuggeeRequest) (*domain.RegisterDebuggeeRequest, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	if c.debuggeeID != "" || c.breakpoint != nil {
		return nil, invalidArgument("RegisterDebuggee accepts only the debuggee field")
	}
	if req != nil {
		if c.debuggee != nil {
			return nil, invalidArgument(mixedForms)
		}
		return req, nil
	}
	return &domain.RegisterDebuggeeRequest{Debuggee: c.debuggee}, nil
}

func (c *callConfig) listRequest(req *domain.ListActiveBreakpointsRequest) (*domain.ListActiveBreakpointsRequest, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	if c.debuggee != nil || c.breakpoint != nil {
		return nil, invalidArgument("ListActiveBreakpoints accepts only the debuggee id field")
	}
	if req != nil {
		if c.debuggeeID != "" {
			return nil, invalidArgument(mixedForms)
		}
		return req, nil
	}
	return &domain.ListActiveBreakpointsRequest{DebuggeeId: c.debuggeeID}, nil
}

func (c *callConfig) updateRequest(req *domain.UpdateActiveBreakpointRequest) (*domain.UpdateActiveBreakpointRequest, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	if c.debuggee != nil {
		return nil, invalidArgument("UpdateActiveBreakpoint accepts only the debuggee id and breakpoint fields")
	}
	if req != nil {
		if c.debuggeeID != "" || c.breakpoint != nil {
			return nil, invalidArgument(mixedForms)
		}
		return req, nil
	}
	return &domain.UpdateActiveBreakpointRequest{
		DebuggeeId: c.debuggeeID,
		Breakpoint: c.breakpoint,
	}, nil
}
