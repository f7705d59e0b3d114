// Package agent runs a debuggee against a Controller2 service: it registers,
// follows the active breakpoint list with hanging gets and reports every
// breakpoint it handles.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	goretry "github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"

	"github.com/vietddude/debugctl/internal/core/domain"
	"github.com/vietddude/debugctl/internal/health"
	"github.com/vietddude/debugctl/internal/infra/rpc"
	"github.com/vietddude/debugctl/internal/infra/rpc/retry"
	"github.com/vietddude/debugctl/internal/metrics"
)

// ErrDebuggeeDisabled is returned by Register when the controller reports the
// debuggee disabled.
var ErrDebuggeeDisabled = errors.New("debuggee is disabled")

// Controller is the part of the client the agent depends on.
type Controller interface {
	RegisterDebuggee(ctx context.Context, req *domain.RegisterDebuggeeRequest, opts ...rpc.CallOption) (*domain.RegisterDebuggeeResponse, error)
	ListActiveBreakpoints(ctx context.Context, req *domain.ListActiveBreakpointsRequest, opts ...rpc.CallOption) (*domain.ListActiveBreakpointsResponse, error)
	UpdateActiveBreakpoint(ctx context.Context, req *domain.UpdateActiveBreakpointRequest, opts ...rpc.CallOption) (*domain.UpdateActiveBreakpointResponse, error)
}

// Config holds agent runtime settings.
type Config struct {
	Debuggee *domain.Debuggee

	// Concurrency bounds the breakpoints handled at once.
	Concurrency int
	// RetryInterval is the first delay after a failed register or list.
	RetryInterval time.Duration
	// MaxBackoff caps the delay between failed attempts.
	MaxBackoff time.Duration
}

const (
	DefaultConcurrency   = 4
	DefaultRetryInterval = time.Second
	DefaultMaxBackoff    = time.Minute

	jitterPercent = 10
)

// Agent is a single debuggee runtime.
type Agent struct {
	client  Controller
	handler Handler
	cfg     Config
	log     *slog.Logger

	mu         sync.Mutex
	debuggeeID string
	agentID    string
	waitToken  string
	registered bool
	lastPoll   time.Time
	pending    map[string]struct{}
	completed  map[string]struct{}
	active     int
	reported   int
}

// New creates an agent. A nil handler completes every breakpoint as unsupported.
func New(client Controller, handler Handler, cfg Config, log *slog.Logger) (*Agent, error) {
	if cfg.Debuggee == nil {
		return nil, fmt.Errorf("agent: debuggee is required")
	}
	if handler == nil {
		handler = UnsupportedHandler{}
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultMaxBackoff
	}
	if log == nil {
		log = slog.Default()
	}
	return &Agent{
		client:    client,
		handler:   handler,
		cfg:       cfg,
		log:       log.With("component", "agent"),
		pending:   make(map[string]struct{}),
		completed: make(map[string]struct{}),
	}, nil
}

func (a *Agent) backoff() goretry.Backoff {
	b := goretry.NewExponential(a.cfg.RetryInterval)
	b = goretry.WithCappedDuration(a.cfg.MaxBackoff, b)
	return goretry.WithJitterPercent(jitterPercent, b)
}

// Run registers and follows the active list until ctx is done. Handlers
// still running when ctx ends are waited for.
func (a *Agent) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Concurrency)

	err := a.loop(gctx, g)
	if werr := g.Wait(); err == nil {
		err = werr
	}
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (a *Agent) loop(ctx context.Context, g *errgroup.Group) error {
	failures := a.backoff()
	for {
		if ctx.Err() != nil {
			return nil
		}
		if !a.isRegistered() {
			err := a.Register(ctx)
			switch {
			case err == nil:
			case ctx.Err() != nil:
				return nil
			case errors.Is(err, ErrDebuggeeDisabled):
				delay, _ := failures.Next()
				a.log.Warn("Debuggee is disabled, waiting", "retry_in", delay)
				if !sleep(ctx, delay) {
					return nil
				}
				continue
			default:
				return err
			}
		}

		resp, err := a.poll(ctx)
		switch {
		case err == nil:
			failures = a.backoff()
		case ctx.Err() != nil:
			return nil
		case retry.Code(err) == codes.NotFound:
			a.log.Warn("Debuggee unknown to controller, re-registering", "debuggee_id", a.DebuggeeID())
			a.unregister()
			continue
		case retry.Code(err) == codes.Aborted:
			// Hanging get expired without a change.
			continue
		default:
			delay, _ := failures.Next()
			a.log.Warn("List active breakpoints failed", "error", err, "retry_in", delay)
			if !sleep(ctx, delay) {
				return nil
			}
			continue
		}

		if resp.WaitExpired {
			continue
		}
		a.dispatch(ctx, g, resp)
	}
}

// Register registers the debuggee, retrying with capped jittered backoff.
// Invalid arguments and a disabled debuggee are not retried.
func (a *Agent) Register(ctx context.Context) error {
	req := &domain.RegisterDebuggeeRequest{Debuggee: a.cfg.Debuggee.Clone()}

	var resp *domain.RegisterDebuggeeResponse
	err := goretry.Do(ctx, a.backoff(), func(ctx context.Context) error {
		var err error
		resp, err = a.client.RegisterDebuggee(ctx, req)
		if err == nil {
			return nil
		}
		if errors.Is(err, rpc.ErrInvalidArgument) || retry.Code(err) == codes.InvalidArgument {
			return err
		}
		a.log.Warn("Register debuggee failed", "error", err)
		return goretry.RetryableError(err)
	})
	if err != nil {
		return fmt.Errorf("register debuggee: %w", err)
	}
	if resp.DebuggeeID() == "" {
		return fmt.Errorf("register debuggee: controller returned no debuggee id")
	}
	if resp.Debuggee.IsDisabled {
		return ErrDebuggeeDisabled
	}

	a.mu.Lock()
	a.debuggeeID = resp.DebuggeeID()
	a.agentID = resp.AgentId
	a.waitToken = ""
	a.registered = true
	a.mu.Unlock()

	metrics.AgentRegistrationsTotal.Inc()
	a.log.Info("Debuggee registered", "debuggee_id", resp.DebuggeeID(), "agent_id", resp.AgentId)
	return nil
}

func (a *Agent) poll(ctx context.Context) (*domain.ListActiveBreakpointsResponse, error) {
	a.mu.Lock()
	req := &domain.ListActiveBreakpointsRequest{
		DebuggeeId:       a.debuggeeID,
		WaitToken:        a.waitToken,
		SuccessOnTimeout: true,
		AgentId:          a.agentID,
	}
	a.mu.Unlock()

	resp, err := a.client.ListActiveBreakpoints(ctx, req)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.lastPoll = time.Now()
	if !resp.WaitExpired {
		a.waitToken = resp.NextWaitToken
	}
	a.mu.Unlock()
	return resp, nil
}

// dispatch starts a handler for every new breakpoint and forgets completed
// ids that left the active list.
func (a *Agent) dispatch(ctx context.Context, g *errgroup.Group, resp *domain.ListActiveBreakpointsResponse) {
	present := make(map[string]struct{}, len(resp.Breakpoints))
	var fresh []*domain.Breakpoint

	a.mu.Lock()
	for _, bp := range resp.Breakpoints {
		if bp == nil || bp.Id == "" {
			continue
		}
		present[bp.Id] = struct{}{}
		if _, done := a.completed[bp.Id]; done {
			continue
		}
		if _, busy := a.pending[bp.Id]; busy {
			continue
		}
		a.pending[bp.Id] = struct{}{}
		fresh = append(fresh, bp)
	}
	for id := range a.completed {
		if _, ok := present[id]; !ok {
			delete(a.completed, id)
		}
	}
	a.active = len(present)
	debuggeeID := a.debuggeeID
	a.mu.Unlock()

	metrics.AgentActiveBreakpoints.Set(float64(len(present)))

	for _, bp := range fresh {
		g.Go(func() error {
			a.handle(ctx, debuggeeID, bp)
			return nil
		})
	}
}

func (a *Agent) handle(ctx context.Context, debuggeeID string, bp *domain.Breakpoint) {
	id := bp.Id
	defer func() {
		a.mu.Lock()
		delete(a.pending, id)
		a.mu.Unlock()
	}()

	out, err := a.handler.Handle(ctx, cloneBreakpoint(bp))
	if err != nil {
		a.log.Warn("Breakpoint handler failed", "breakpoint_id", id, "error", err)
		out = cloneBreakpoint(bp)
		out.Complete(errorStatus(domain.RefersToUnspecified, "Internal error: $0", err.Error()), time.Now())
	}
	if out == nil {
		return
	}
	out.Id = id

	_, err = a.client.UpdateActiveBreakpoint(ctx, nil,
		rpc.WithDebuggeeID(debuggeeID),
		rpc.WithBreakpoint(out),
	)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if retry.Code(err) == codes.NotFound {
			a.unregister()
		}
		a.log.Warn("Update active breakpoint failed", "breakpoint_id", id, "error", err)
		return
	}

	if out.IsFinalState {
		a.mu.Lock()
		a.completed[id] = struct{}{}
		a.reported++
		a.mu.Unlock()
		metrics.AgentBreakpointsCompleted.Inc()
		a.log.Debug("Breakpoint completed", "breakpoint_id", id)
	}
}

func (a *Agent) isRegistered() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.registered
}

func (a *Agent) unregister() {
	a.mu.Lock()
	a.registered = false
	a.waitToken = ""
	a.mu.Unlock()
}

// DebuggeeID returns the id of the last successful registration.
func (a *Agent) DebuggeeID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.debuggeeID
}

// Completed reports whether the breakpoint was completed and is still active.
func (a *Agent) Completed(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.completed[id]
	return ok
}

// CheckHealth reports registration state and progress.
func (a *Agent) CheckHealth(_ context.Context) health.ComponentHealth {
	a.mu.Lock()
	defer a.mu.Unlock()

	h := health.ComponentHealth{
		Name:   "agent",
		Status: health.StatusHealthy,
		Details: map[string]any{
			"registered":            a.registered,
			"debuggee_id":           a.debuggeeID,
			"active_breakpoints":    a.active,
			"pending_breakpoints":   len(a.pending),
			"completed_breakpoints": a.reported,
		},
	}
	if !a.lastPoll.IsZero() {
		h.Details["last_poll"] = a.lastPoll.UTC().Format(time.RFC3339)
	}
	if !a.registered {
		h.Status = health.StatusDegraded
	}
	return h
}

func cloneBreakpoint(bp *domain.Breakpoint) *domain.Breakpoint {
	if bp == nil {
		return nil
	}
	out := *bp
	out.Expressions = append([]string(nil), bp.Expressions...)
	if bp.Location != nil {
		loc := *bp.Location
		out.Location = &loc
	}
	out.Status = bp.Status.Clone()
	if bp.Labels != nil {
		out.Labels = make(map[string]string, len(bp.Labels))
		for k, v := range bp.Labels {
			out.Labels[k] = v
		}
	}
	return &out
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
