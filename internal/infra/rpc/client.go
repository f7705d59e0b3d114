package rpc

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/debugctl/internal/core/domain"
	"github.com/vietddude/debugctl/internal/infra/rpc/clientinfo"
	"github.com/vietddude/debugctl/internal/infra/rpc/invoker"
	"github.com/vietddude/debugctl/internal/infra/rpc/retry"
	"github.com/vietddude/debugctl/internal/infra/rpc/transport"
	"github.com/vietddude/debugctl/internal/infra/rpc/wire"
)

type (
	registerMethod = invoker.Method[*domain.RegisterDebuggeeRequest, *domain.RegisterDebuggeeResponse]
	listMethod     = invoker.Method[*domain.ListActiveBreakpointsRequest, *domain.ListActiveBreakpointsResponse]
	updateMethod   = invoker.Method[*domain.UpdateActiveBreakpointRequest, *domain.UpdateActiveBreakpointResponse]
)

// Client issues Controller2 calls over a single shared transport. It is safe
// for concurrent use.
type Client struct {
	transport transport.Transport
	owned     bool

	register *registerMethod
	list     *listMethod
	update   *updateMethod
}

// NewClient creates a client. Unless WithTransport is given, the transport is
// built from the options and the environment and released by Close.
func NewClient(ctx context.Context, opts ...ClientOption) (*Client, error) {
	cfg := &clientConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	info := clientinfo.Default()
	if cfg.info != nil {
		info = *cfg.info
	}

	t := cfg.transport
	owned := false
	if t == nil {
		if cfg.topts.UserAgent == "" {
			cfg.topts.UserAgent = info.UserAgent()
		}
		var err error
		t, err = transport.New(ctx, cfg.transportName, cfg.topts)
		if err != nil {
			return nil, fmt.Errorf("failed to create transport: %w", err)
		}
		owned = true
	}

	c := &Client{
		transport: t,
		owned:     owned,
		register: &registerMethod{
			Name:           wire.OpRegisterDebuggee,
			Call:           t.RegisterDebuggee,
			DefaultTimeout: invoker.DefaultTimeout,
			ClientInfo:     info,
		},
		list: &listMethod{
			Name:           wire.OpListActiveBreakpoints,
			Call:           t.ListActiveBreakpoints,
			DefaultRetry:   retry.DefaultPolicy(),
			DefaultTimeout: invoker.DefaultTimeout,
			ClientInfo:     info,
		},
		update: &updateMethod{
			Name:           wire.OpUpdateActiveBreakpoint,
			Call:           t.UpdateActiveBreakpoint,
			DefaultRetry:   retry.DefaultPolicy(),
			DefaultTimeout: invoker.DefaultTimeout,
			ClientInfo:     info,
		},
	}

	for op, d := range cfg.methods {
		if err := c.applyDefaults(op, d); err != nil {
			if owned {
				_ = t.Close()
			}
			return nil, err
		}
	}

	return c, nil
}

// NewClientFromCredentialsInfo creates a client authenticated with decoded
// credentials info, such as a parsed service account key.
func NewClientFromCredentialsInfo(ctx context.Context, info map[string]any, opts ...ClientOption) (*Client, error) {
	creds, err := transport.CredentialsFromInfo(ctx, info)
	if err != nil {
		return nil, err
	}
	return NewClient(ctx, append([]ClientOption{WithCredentials(creds)}, opts...)...)
}

// NewClientFromCredentialsFile creates a client authenticated with a
// credentials file.
func NewClientFromCredentialsFile(ctx context.Context, path string, opts ...ClientOption) (*Client, error) {
	creds, err := transport.CredentialsFromFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return NewClient(ctx, append([]ClientOption{WithCredentials(creds)}, opts...)...)
}

func (c *Client) applyDefaults(op string, d MethodDefaults) error {
	if d.RetrySet && d.Retry != nil {
		if err := d.Retry.Validate(); err != nil {
			return fmt.Errorf("invalid retry policy for %s: %w", op, err)
		}
	}

	set := func(retryPolicy **retry.Policy, timeout *time.Duration) {
		if d.RetrySet {
			*retryPolicy = d.Retry
		}
		if d.Timeout > 0 {
			*timeout = d.Timeout
		}
	}

	switch op {
	case wire.OpRegisterDebuggee:
		set(&c.register.DefaultRetry, &c.register.DefaultTimeout)
	case wire.OpListActiveBreakpoints:
		set(&c.list.DefaultRetry, &c.list.DefaultTimeout)
	case wire.OpUpdateActiveBreakpoint:
		set(&c.update.DefaultRetry, &c.update.DefaultTimeout)
	default:
		return fmt.Errorf("unknown operation %q", op)
	}
	return nil
}

// Transport returns the transport calls are issued over.
func (c *Client) Transport() Transport {
	return c.transport
}

// Close releases the transport if the client created it.
func (c *Client) Close() error {
	if !c.owned {
		return nil
	}
	return c.transport.Close()
}

// RegisterDebuggee registers the debuggee with the controller. Pass either a
// request or WithDebuggee, never both. Registering identical content again
// yields the same debuggee id.
func (c *Client) RegisterDebuggee(
	ctx context.Context,
	req *domain.RegisterDebuggeeRequest,
	opts ...CallOption,
) (*domain.RegisterDebuggeeResponse, error) {
	cfg := newCallConfig(opts)
	req, err := cfg.registerRequest(req)
	if err != nil {
		return nil, err
	}
	return c.register.Invoke(ctx, req, cfg.settings)
}

// RegisterDebuggeeAsync is the non-blocking form of RegisterDebuggee. Invalid
// arguments are reported immediately.
func (c *Client) RegisterDebuggeeAsync(
	ctx context.Context,
	req *domain.RegisterDebuggeeRequest,
	opts ...CallOption,
) (*Future[*domain.RegisterDebuggeeResponse], error) {
	cfg := newCallConfig(opts)
	req, err := cfg.registerRequest(req)
	if err != nil {
		return nil, err
	}
	return Go(ctx, func(ctx context.Context) (*domain.RegisterDebuggeeResponse, error) {
		return c.register.Invoke(ctx, req, cfg.settings)
	}), nil
}

// ListActiveBreakpoints returns the breakpoints the controller holds active
// for a debuggee, in the order the controller sent them. Pass either a
// request or WithDebuggeeID, never both.
func (c *Client) ListActiveBreakpoints(
	ctx context.Context,
	req *domain.ListActiveBreakpointsRequest,
	opts ...CallOption,
) (*domain.ListActiveBreakpointsResponse, error) {
	cfg := newCallConfig(opts)
	req, err := cfg.listRequest(req)
	if err != nil {
		return nil, err
	}
	return c.list.Invoke(ctx, req, cfg.settings)
}

// ListActiveBreakpointsAsync is the non-blocking form of ListActiveBreakpoints.
func (c *Client) ListActiveBreakpointsAsync(
	ctx context.Context,
	req *domain.ListActiveBreakpointsRequest,
	opts ...CallOption,
) (*Future[*domain.ListActiveBreakpointsResponse], error) {
	cfg := newCallConfig(opts)
	req, err := cfg.listRequest(req)
	if err != nil {
		return nil, err
	}
	return Go(ctx, func(ctx context.Context) (*domain.ListActiveBreakpointsResponse, error) {
		return c.list.Invoke(ctx, req, cfg.settings)
	}), nil
}

// UpdateActiveBreakpoint reports a breakpoint's state. The whole breakpoint
// must be sent, including fields that did not change. Pass either a request
// or WithDebuggeeID/WithBreakpoint, never both.
func (c *Client) UpdateActiveBreakpoint(
	ctx context.Context,
	req *domain.UpdateActiveBreakpointRequest,
	opts ...CallOption,
) (*domain.UpdateActiveBreakpointResponse, error) {
	cfg := newCallConfig(opts)
	req, err := cfg.updateRequest(req)
	if err != nil {
		return nil, err
	}
	return c.update.Invoke(ctx, req, cfg.settings)
}

// UpdateActiveBreakpointAsync is the non-blocking form of UpdateActiveBreakpoint.
func (c *Client) UpdateActiveBreakpointAsync(
	ctx context.Context,
	req *domain.UpdateActiveBreakpointRequest,
	opts ...CallOption,
) (*Future[*domain.UpdateActiveBreakpointResponse], error) {
	cfg := newCallConfig(opts)
	req, err := cfg.updateRequest(req)
	if err != nil {
		return nil, err
	}
	return Go(ctx, func(ctx context.Context) (*domain.UpdateActiveBreakpointResponse, error) {
		return c.update.Invoke(ctx, req, cfg.settings)
	}), nil
}
