package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/debugctl/internal/agent"
	"github.com/vietddude/debugctl/internal/core/config"
	"github.com/vietddude/debugctl/internal/core/domain"
	"github.com/vietddude/debugctl/internal/health"
	"github.com/vietddude/debugctl/internal/infra/rpc"
)

// AgentApp runs an agent with an optional health endpoint.
type AgentApp struct {
	client       *rpc.Client
	agent        *agent.Agent
	healthServer *health.Server
	log          *slog.Logger
}

// DebuggeeFromConfig builds the debuggee an agent registers.
func DebuggeeFromConfig(cfg config.AgentConfig) *domain.Debuggee {
	return &domain.Debuggee{
		Project:      cfg.Project,
		Uniquifier:   cfg.Uniquifier,
		Description:  cfg.Description,
		AgentVersion: cfg.AgentVersion,
		Labels:       cfg.Labels,
	}
}

// NewAgentApp connects to the controller and prepares the agent. A nil
// handler completes every breakpoint as unsupported.
func NewAgentApp(ctx context.Context, cfg *config.AppConfig, handler agent.Handler) (*AgentApp, error) {
	client, err := NewClient(ctx, cfg.Controller)
	if err != nil {
		return nil, fmt.Errorf("failed to create controller client: %w", err)
	}

	a, err := agent.New(client, handler, agent.Config{
		Debuggee:      DebuggeeFromConfig(cfg.Agent),
		Concurrency:   cfg.Agent.Concurrency,
		RetryInterval: cfg.Agent.RetryInterval,
		MaxBackoff:    cfg.Agent.MaxBackoff,
	}, slog.Default())
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	app := &AgentApp{client: client, agent: a, log: slog.Default()}
	if cfg.Agent.HealthPort > 0 {
		app.healthServer = health.NewServer(health.NewMonitor(health.DefaultCacheTTL, a), cfg.Agent.HealthPort)
	}
	return app, nil
}

// Agent returns the agent runtime.
func (a *AgentApp) Agent() *agent.Agent {
	return a.agent
}

// Run runs the agent until ctx is done, then releases the client.
func (a *AgentApp) Run(ctx context.Context) error {
	if a.healthServer != nil {
		go func() {
			if err := a.healthServer.Start(); err != nil {
				a.log.Error("Health server failed", "error", err)
			}
		}()
		defer func() {
			_ = a.healthServer.Stop(context.WithoutCancel(ctx))
		}()
	}
	defer func() {
		if err := a.client.Close(); err != nil {
			a.log.Warn("Failed to close controller client", "error", err)
		}
	}()

	return a.agent.Run(ctx)
}
