// Package controller implements a reference Controller2 service: debuggee
// registration, hanging-get breakpoint listing and first-result-wins
// breakpoint completion, backed by a pluggable store.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vietddude/debugctl/internal/core/domain"
	"github.com/vietddude/debugctl/internal/infra/rpc/wire"
	"github.com/vietddude/debugctl/internal/infra/storage"
	"github.com/vietddude/debugctl/internal/metrics"
)

// ErrDebuggeeDisabled is returned when setting a breakpoint on a disabled debuggee.
var ErrDebuggeeDisabled = errors.New("debuggee is disabled")

var (
	// debuggeeNamespace derives debuggee ids from registration content.
	debuggeeNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("debugctl/debuggee"))

	// tokenNamespace derives wait tokens from the active breakpoint ids.
	tokenNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("debugctl/wait-token"))
)

const (
	DefaultWaitTimeout  = 40 * time.Second
	DefaultPollInterval = time.Second
)

// Config holds the service configuration.
type Config struct {
	// WaitTimeout bounds a hanging list call.
	WaitTimeout time.Duration `yaml:"wait_timeout"`

	// PollInterval re-reads the store while waiting, so changes made by
	// other controller instances sharing the store are seen.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Service implements wire.ControllerServer.
type Service struct {
	debuggees   storage.DebuggeeRepository
	breakpoints storage.BreakpointRepository
	cfg         Config
	notifier    *notifier
	now         func() time.Time
	log         *slog.Logger
}

var _ wire.ControllerServer = (*Service)(nil)

// NewService creates a controller service.
func NewService(
	debuggees storage.DebuggeeRepository,
	breakpoints storage.BreakpointRepository,
	cfg Config,
) *Service {
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = DefaultWaitTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Service{
		debuggees:   debuggees,
		breakpoints: breakpoints,
		cfg:         cfg,
		notifier:    newNotifier(),
		now:         time.Now,
		log:         slog.Default().With("component", "controller"),
	}
}

// DebuggeeID derives the id of a debuggee from its registration content.
// Replicas registering identical content share the id.
func DebuggeeID(d *domain.Debuggee) string {
	var b strings.Builder
	for _, part := range []string{d.Project, d.Uniquifier, d.Description, d.AgentVersion} {
		b.WriteString(part)
		b.WriteByte(0)
	}
	keys := make([]string, 0, len(d.Labels))
	for k := range d.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(d.Labels[k])
		b.WriteByte(0)
	}
	return uuid.NewSHA1(debuggeeNamespace, []byte(b.String())).String()
}

// WaitToken identifies a set of active breakpoints.
func WaitToken(bps []*domain.Breakpoint) string {
	ids := make([]string, 0, len(bps))
	for _, bp := range bps {
		ids = append(ids, bp.Id)
	}
	return uuid.NewSHA1(tokenNamespace, []byte(strings.Join(ids, "\n"))).String()
}

func (s *Service) RegisterDebuggee(
	ctx context.Context,
	req *domain.RegisterDebuggeeRequest,
) (*domain.RegisterDebuggeeResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	d := req.Debuggee.Clone()
	d.Id = DebuggeeID(d)

	existing, err := s.debuggees.Get(ctx, d.Id)
	if err == nil {
		d.IsDisabled = existing.IsDisabled
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, toStatus(err, resourceDebuggee, d.Id)
	}

	if err := s.debuggees.Save(ctx, d); err != nil {
		return nil, toStatus(err, resourceDebuggee, d.Id)
	}

	s.log.Info("Debuggee registered",
		"debuggee", d.Id,
		"project", d.Project,
		"uniquifier", d.Uniquifier,
		"disabled", d.IsDisabled,
	)

	return &domain.RegisterDebuggeeResponse{
		Debuggee: d,
		AgentId:  uuid.NewString(),
	}, nil
}

func (s *Service) ListActiveBreakpoints(
	ctx context.Context,
	req *domain.ListActiveBreakpointsRequest,
) (*domain.ListActiveBreakpointsResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if _, err := s.debuggees.Get(ctx, req.DebuggeeId); err != nil {
		return nil, toStatus(err, resourceDebuggee, req.DebuggeeId)
	}

	timer := time.NewTimer(s.cfg.WaitTimeout)
	defer timer.Stop()
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		changed := s.notifier.wait(req.DebuggeeId)

		bps, err := s.breakpoints.ListActive(ctx, req.DebuggeeId)
		if err != nil {
			return nil, toStatus(err, resourceDebuggee, req.DebuggeeId)
		}
		token := WaitToken(bps)
		if req.WaitToken == "" || req.WaitToken != token {
			if req.WaitToken != "" {
				metrics.ControllerWaitsTotal.WithLabelValues("changed").Inc()
			}
			return &domain.ListActiveBreakpointsResponse{
				Breakpoints:   bps,
				NextWaitToken: token,
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, status.FromContextError(ctx.Err()).Err()
		case <-changed:
		case <-ticker.C:
		case <-timer.C:
			metrics.ControllerWaitsTotal.WithLabelValues("expired").Inc()
			if !req.SuccessOnTimeout {
				return nil, status.Error(codes.Aborted, "wait for breakpoint changes expired")
			}
			return &domain.ListActiveBreakpointsResponse{
				NextWaitToken: token,
				WaitExpired:   true,
			}, nil
		}
	}
}

func (s *Service) UpdateActiveBreakpoint(
	ctx context.Context,
	req *domain.UpdateActiveBreakpointRequest,
) (*domain.UpdateActiveBreakpointResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if _, err := s.debuggees.Get(ctx, req.DebuggeeId); err != nil {
		return nil, toStatus(err, resourceDebuggee, req.DebuggeeId)
	}

	bp := req.Breakpoint
	if bp.IsFinalState && bp.FinalTime == nil {
		t := s.now().UTC()
		bp.FinalTime = &t
	}

	applied, err := s.breakpoints.Update(ctx, req.DebuggeeId, bp)
	if err != nil {
		return nil, toStatus(err, resourceBreakpoint, bp.Id)
	}

	switch {
	case applied && bp.IsFinalState:
		s.notifier.notify(req.DebuggeeId)
		s.log.Info("Breakpoint completed", "debuggee", req.DebuggeeId, "breakpoint", bp.Id)
	case !applied:
		metrics.ControllerDiscardedResults.Inc()
		s.log.Debug("Discarded update of a final breakpoint",
			"debuggee", req.DebuggeeId,
			"breakpoint", bp.Id,
		)
	}

	return &domain.UpdateActiveBreakpointResponse{}, nil
}

// SetBreakpoint creates an active breakpoint for a debuggee. An empty id is
// assigned.
func (s *Service) SetBreakpoint(
	ctx context.Context,
	debuggeeID string,
	bp *domain.Breakpoint,
) (*domain.Breakpoint, error) {
	d, err := s.debuggees.Get(ctx, debuggeeID)
	if err != nil {
		return nil, err
	}
	if d.IsDisabled {
		return nil, fmt.Errorf("debuggee %s: %w", debuggeeID, ErrDebuggeeDisabled)
	}

	bp.Id = strings.TrimSpace(bp.Id)
	if bp.Id == "" {
		bp.Id = uuid.NewString()
	}
	if bp.Action == "" {
		bp.Action = domain.ActionCapture
	}
	now := s.now().UTC()
	bp.CreateTime = &now
	bp.IsFinalState = false
	bp.FinalTime = nil

	if err := s.breakpoints.Create(ctx, debuggeeID, bp); err != nil {
		return nil, err
	}
	s.notifier.notify(debuggeeID)
	s.log.Info("Breakpoint set", "debuggee", debuggeeID, "breakpoint", bp.Id)
	return bp, nil
}

// GetBreakpoint reads a breakpoint, active or final.
func (s *Service) GetBreakpoint(ctx context.Context, debuggeeID, id string) (*domain.Breakpoint, error) {
	return s.breakpoints.Get(ctx, debuggeeID, id)
}

// ListDebuggees lists the registered debuggees.
func (s *Service) ListDebuggees(ctx context.Context) ([]*domain.Debuggee, error) {
	return s.debuggees.List(ctx)
}

// SetDebuggeeDisabled toggles whether a debuggee accepts new breakpoints.
// Registration keeps the flag.
func (s *Service) SetDebuggeeDisabled(ctx context.Context, debuggeeID string, disabled bool) (*domain.Debuggee, error) {
	d, err := s.debuggees.Get(ctx, debuggeeID)
	if err != nil {
		return nil, err
	}
	d.IsDisabled = disabled
	if err := s.debuggees.Save(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// ExpiredMessage is the status of a breakpoint completed for its age.
const ExpiredMessage = "The snapshot has expired"

// ExpireBreakpoints completes active breakpoints created before olderThan
// with a BREAKPOINT_AGE status. It returns the number completed.
func (s *Service) ExpireBreakpoints(ctx context.Context, olderThan time.Time) (int, error) {
	debuggees, err := s.debuggees.List(ctx)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, d := range debuggees {
		bps, err := s.breakpoints.ListActive(ctx, d.Id)
		if err != nil {
			return expired, err
		}
		changed := false
		for _, bp := range bps {
			if bp.CreateTime == nil || !bp.CreateTime.Before(olderThan) {
				continue
			}
			bp.Complete(&domain.StatusMessage{
				IsError:     true,
				RefersTo:    domain.RefersToBreakpointAge,
				Description: &domain.FormatMessage{Format: ExpiredMessage},
			}, s.now())
			applied, err := s.breakpoints.Update(ctx, d.Id, bp)
			if err != nil {
				return expired, err
			}
			if applied {
				expired++
				changed = true
				s.log.Info("Breakpoint expired", "debuggee", d.Id, "breakpoint", bp.Id)
			}
		}
		if changed {
			s.notifier.notify(d.Id)
		}
	}
	return expired, nil
}
