package agent

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/vietddude/debugctl/internal/core/domain"
	"github.com/vietddude/debugctl/internal/health"
	"github.com/vietddude/debugctl/internal/infra/rpc"
	"github.com/vietddude/debugctl/internal/infra/rpc/transport"
	"github.com/vietddude/debugctl/internal/infra/rpc/wire"
)

type listStep func(ctx context.Context) (*domain.ListActiveBreakpointsResponse, error)

// fakeController is a scripted Controller2 server.
type fakeController struct {
	mu           sync.Mutex
	registerErrs []error
	registers    int
	disabled     bool
	steps        []listStep
	lists        []*domain.ListActiveBreakpointsRequest
	updates      []*domain.UpdateActiveBreakpointRequest
}

func newFakeController(steps ...listStep) *fakeController {
	return &fakeController{steps: steps}
}

func (f *fakeController) RegisterDebuggee(_ context.Context, req *domain.RegisterDebuggeeRequest) (*domain.RegisterDebuggeeResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registers++
	if len(f.registerErrs) > 0 {
		err := f.registerErrs[0]
		f.registerErrs = f.registerErrs[1:]
		return nil, err
	}
	d := req.Debuggee.Clone()
	d.Id = "d-1"
	d.IsDisabled = f.disabled
	return &domain.RegisterDebuggeeResponse{Debuggee: d, AgentId: "agent-1"}, nil
}

func (f *fakeController) ListActiveBreakpoints(ctx context.Context, req *domain.ListActiveBreakpointsRequest) (*domain.ListActiveBreakpointsResponse, error) {
	f.mu.Lock()
	f.lists = append(f.lists, req)
	var step listStep
	if len(f.steps) > 0 {
		step = f.steps[0]
		f.steps = f.steps[1:]
	}
	f.mu.Unlock()

	if step == nil {
		<-ctx.Done()
		return nil, status.Error(codes.Canceled, "done")
	}
	return step(ctx)
}

func (f *fakeController) UpdateActiveBreakpoint(_ context.Context, req *domain.UpdateActiveBreakpointRequest) (*domain.UpdateActiveBreakpointResponse, error) {
	f.mu.Lock()
	f.updates = append(f.updates, req)
	f.mu.Unlock()
	return &domain.UpdateActiveBreakpointResponse{}, nil
}

func (f *fakeController) registerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registers
}

func (f *fakeController) listRequests() []*domain.ListActiveBreakpointsRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*domain.ListActiveBreakpointsRequest(nil), f.lists...)
}

func (f *fakeController) updateRequests() []*domain.UpdateActiveBreakpointRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*domain.UpdateActiveBreakpointRequest(nil), f.updates...)
}

func respond(bps ...*domain.Breakpoint) listStep {
	return func(context.Context) (*domain.ListActiveBreakpointsResponse, error) {
		return &domain.ListActiveBreakpointsResponse{Breakpoints: bps, NextWaitToken: "token"}, nil
	}
}

func fail(code codes.Code) listStep {
	return func(context.Context) (*domain.ListActiveBreakpointsResponse, error) {
		return nil, status.Error(code, code.String())
	}
}

// serve starts srv over bufconn and returns a client for it.
func serve(t *testing.T, srv wire.ControllerServer) *rpc.Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	wire.RegisterControllerServer(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := rpc.NewClient(context.Background(),
		rpc.WithTransport(transport.NewGRPCTransportFromConn(conn)))
	require.NoError(t, err)
	return client
}

func testDebuggee() *domain.Debuggee {
	return &domain.Debuggee{
		Project:      "project-1",
		Uniquifier:   "build-7",
		Description:  "checkout service",
		AgentVersion: "debugctl/go/1.0",
	}
}

func testConfig() Config {
	return Config{
		Debuggee:      testDebuggee(),
		Concurrency:   2,
		RetryInterval: time.Millisecond,
		MaxBackoff:    5 * time.Millisecond,
	}
}

// runAgent runs a until the test ends.
func runAgent(t *testing.T, a *Agent) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
}

type countingHandler struct {
	mu    sync.Mutex
	calls map[string]int
	next  Handler
}

func (h *countingHandler) Handle(ctx context.Context, bp *domain.Breakpoint) (*domain.Breakpoint, error) {
	h.mu.Lock()
	if h.calls == nil {
		h.calls = make(map[string]int)
	}
	h.calls[bp.Id]++
	h.mu.Unlock()
	return h.next.Handle(ctx, bp)
}

func (h *countingHandler) count(id string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[id]
}

func TestNew_RequiresDebuggee(t *testing.T) {
	_, err := New(nil, nil, Config{}, nil)
	assert.Error(t, err)
}

func TestAgent_CompletesEachBreakpointOnce(t *testing.T) {
	bp1 := &domain.Breakpoint{Id: "bp-1", Location: &domain.SourceLocation{Path: "main.go", Line: 10}}
	bp2 := &domain.Breakpoint{Id: "bp-2", Location: &domain.SourceLocation{Path: "main.go", Line: 20}}

	fake := newFakeController(respond(bp1), respond(bp1, bp2))
	client := serve(t, fake)
	handler := &countingHandler{next: UnsupportedHandler{}}

	a, err := New(client, handler, testConfig(), nil)
	require.NoError(t, err)
	runAgent(t, a)

	require.Eventually(t, func() bool { return len(fake.updateRequests()) == 2 }, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, handler.count("bp-1"))
	assert.Equal(t, 1, handler.count("bp-2"))
	for _, req := range fake.updateRequests() {
		assert.Equal(t, "d-1", req.DebuggeeId)
		require.NotNil(t, req.Breakpoint)
		assert.True(t, req.Breakpoint.IsFinalState)
		require.NotNil(t, req.Breakpoint.Status)
		assert.True(t, req.Breakpoint.Status.IsError)
		assert.Equal(t, UnsupportedMessage, req.Breakpoint.Status.Description.Format)
		assert.NotNil(t, req.Breakpoint.Location, "whole breakpoint is echoed")
	}
	assert.True(t, a.Completed("bp-1"))
}

func TestAgent_ForgetsCompletedBreakpointsWhenGone(t *testing.T) {
	bp1 := &domain.Breakpoint{Id: "bp-1"}
	var a *Agent
	fake := newFakeController(
		respond(bp1),
		func(ctx context.Context) (*domain.ListActiveBreakpointsResponse, error) {
			// Hold the list until the agent has recorded the completion.
			for !a.Completed("bp-1") {
				select {
				case <-ctx.Done():
					return nil, status.Error(codes.Canceled, "done")
				case <-time.After(5 * time.Millisecond):
				}
			}
			return respond()(ctx)
		},
	)
	client := serve(t, fake)

	var err error
	a, err = New(client, nil, testConfig(), nil)
	require.NoError(t, err)
	runAgent(t, a)

	require.Eventually(t, func() bool { return len(fake.listRequests()) == 3 }, 5*time.Second, 10*time.Millisecond)
	assert.False(t, a.Completed("bp-1"))
	assert.Len(t, fake.updateRequests(), 1)
}

func TestAgent_ReregistersOnNotFound(t *testing.T) {
	fake := newFakeController(respond(), fail(codes.NotFound), respond())
	client := serve(t, fake)

	a, err := New(client, nil, testConfig(), nil)
	require.NoError(t, err)
	runAgent(t, a)

	require.Eventually(t, func() bool { return len(fake.listRequests()) == 4 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, fake.registerCount())

	lists := fake.listRequests()
	assert.Equal(t, "", lists[0].WaitToken)
	assert.Equal(t, "token", lists[1].WaitToken)
	assert.Equal(t, "", lists[2].WaitToken, "wait token resets after re-registering")
	for _, req := range lists {
		assert.Equal(t, "d-1", req.DebuggeeId)
		assert.Equal(t, "agent-1", req.AgentId)
		assert.True(t, req.SuccessOnTimeout)
	}
}

func TestAgent_ExpiredWaitKeepsToken(t *testing.T) {
	fake := newFakeController(
		respond(),
		func(context.Context) (*domain.ListActiveBreakpointsResponse, error) {
			return &domain.ListActiveBreakpointsResponse{WaitExpired: true}, nil
		},
		fail(codes.Aborted),
	)
	client := serve(t, fake)

	a, err := New(client, nil, testConfig(), nil)
	require.NoError(t, err)
	runAgent(t, a)

	require.Eventually(t, func() bool { return len(fake.listRequests()) == 4 }, 5*time.Second, 10*time.Millisecond)
	lists := fake.listRequests()
	for _, req := range lists[1:] {
		assert.Equal(t, "token", req.WaitToken)
	}
	assert.Equal(t, 1, fake.registerCount())
}

func TestAgent_HandlerErrorCompletesWithError(t *testing.T) {
	fake := newFakeController(respond(&domain.Breakpoint{Id: "bp-1"}))
	client := serve(t, fake)

	handler := HandlerFunc(func(context.Context, *domain.Breakpoint) (*domain.Breakpoint, error) {
		return nil, errors.New("boom")
	})
	a, err := New(client, handler, testConfig(), nil)
	require.NoError(t, err)
	runAgent(t, a)

	require.Eventually(t, func() bool { return len(fake.updateRequests()) == 1 }, 5*time.Second, 10*time.Millisecond)
	bp := fake.updateRequests()[0].Breakpoint
	assert.True(t, bp.IsFinalState)
	assert.True(t, bp.Status.IsError)
	assert.Equal(t, []string{"boom"}, bp.Status.Description.Parameters)
}

func TestAgent_NilHandlerResultReportsNothing(t *testing.T) {
	fake := newFakeController(respond(&domain.Breakpoint{Id: "bp-1"}), respond(&domain.Breakpoint{Id: "bp-1"}))
	client := serve(t, fake)

	handler := &countingHandler{next: HandlerFunc(func(context.Context, *domain.Breakpoint) (*domain.Breakpoint, error) {
		return nil, nil
	})}
	a, err := New(client, handler, testConfig(), nil)
	require.NoError(t, err)
	runAgent(t, a)

	require.Eventually(t, func() bool { return len(fake.listRequests()) == 3 }, 5*time.Second, 10*time.Millisecond)
	assert.Empty(t, fake.updateRequests())
	assert.False(t, a.Completed("bp-1"))
}

func TestAgent_Register(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		disabled  bool
		wantErr   error
		wantCalls int
	}{
		{
			name:      "success",
			wantCalls: 1,
		},
		{
			name:      "retries unavailable",
			errs:      []error{status.Error(codes.Unavailable, "down"), status.Error(codes.Unavailable, "down")},
			wantCalls: 3,
		},
		{
			name:      "retries internal",
			errs:      []error{status.Error(codes.Internal, "oops")},
			wantCalls: 2,
		},
		{
			name:      "invalid argument is final",
			errs:      []error{status.Error(codes.InvalidArgument, "bad")},
			wantErr:   errors.New("register debuggee"),
			wantCalls: 1,
		},
		{
			name:      "disabled",
			disabled:  true,
			wantErr:   ErrDebuggeeDisabled,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeController()
			fake.registerErrs = tt.errs
			fake.disabled = tt.disabled
			client := serve(t, fake)

			a, err := New(client, nil, testConfig(), nil)
			require.NoError(t, err)

			err = a.Register(context.Background())
			switch {
			case tt.wantErr == nil:
				require.NoError(t, err)
				assert.Equal(t, "d-1", a.DebuggeeID())
			case errors.Is(tt.wantErr, ErrDebuggeeDisabled):
				assert.ErrorIs(t, err, ErrDebuggeeDisabled)
			default:
				assert.ErrorContains(t, err, tt.wantErr.Error())
			}
			assert.Equal(t, tt.wantCalls, fake.registerCount())
		})
	}
}

func TestAgent_CheckHealth(t *testing.T) {
	fake := newFakeController()
	client := serve(t, fake)

	a, err := New(client, nil, testConfig(), nil)
	require.NoError(t, err)

	h := a.CheckHealth(context.Background())
	assert.Equal(t, health.StatusDegraded, h.Status)
	assert.Equal(t, false, h.Details["registered"])

	require.NoError(t, a.Register(context.Background()))
	h = a.CheckHealth(context.Background())
	assert.Equal(t, health.StatusHealthy, h.Status)
	assert.Equal(t, "d-1", h.Details["debuggee_id"])
}

func TestUnsupportedHandler(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	bp := &domain.Breakpoint{Id: "bp-1", Condition: "x > 1"}

	out, err := UnsupportedHandler{Now: func() time.Time { return at }}.Handle(context.Background(), bp)
	require.NoError(t, err)
	assert.True(t, out.IsFinalState)
	assert.Equal(t, at, *out.FinalTime)
	assert.Equal(t, "x > 1", out.Condition)
	assert.Equal(t, domain.RefersToUnspecified, out.Status.RefersTo)
}
