package control

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/vietddude/debugctl/internal/controller"
	"github.com/vietddude/debugctl/internal/core/config"
	"github.com/vietddude/debugctl/internal/core/worker"
	"github.com/vietddude/debugctl/internal/health"
	redisclient "github.com/vietddude/debugctl/internal/infra/redis"
	"github.com/vietddude/debugctl/internal/infra/storage"
	"github.com/vietddude/debugctl/internal/infra/storage/memory"
	"github.com/vietddude/debugctl/internal/infra/storage/postgres"
)

// ControllerApp runs the reference controller with its admin, health and
// metrics endpoints.
type ControllerApp struct {
	cfg          *config.AppConfig
	svc          *controller.Service
	server       *controller.Server
	pruner       *worker.Pruner
	healthMon    *health.Monitor
	healthServer *health.Server
	db           *postgres.DB
	redisClient  *redisclient.Client
	lis          net.Listener
	log          *slog.Logger
}

// NewControllerApp creates the controller and its storage backend.
func NewControllerApp(ctx context.Context, cfg *config.AppConfig) (*ControllerApp, error) {
	app := &ControllerApp{
		cfg:       cfg,
		healthMon: health.NewMonitor(health.DefaultCacheTTL),
		log:       slog.Default(),
	}

	var debuggees storage.DebuggeeRepository
	var breakpoints storage.BreakpointRepository

	switch cfg.Server.Storage {
	case config.StoragePostgres:
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		app.db = db
		debuggees = postgres.NewDebuggeeRepo(db)
		breakpoints = postgres.NewBreakpointRepo(db)
		app.healthMon.Register(health.PingChecker("postgres", db.Health))
		app.log.Info("Using PostgreSQL storage")

	case config.StorageRedis:
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		app.redisClient = client
		debuggees = redisclient.NewDebuggeeRepo(client)
		breakpoints = redisclient.NewBreakpointRepo(client)
		app.healthMon.Register(health.PingChecker("redis", client.Health))
		app.log.Info("Using Redis storage")

	default:
		store := memory.NewMemoryStorage()
		debuggees = memory.NewDebuggeeRepo(store)
		breakpoints = memory.NewBreakpointRepo(store)
		app.log.Info("Using Memory storage")
	}

	app.svc = controller.NewService(debuggees, breakpoints, controller.Config{
		WaitTimeout:  cfg.Server.WaitTimeout,
		PollInterval: cfg.Server.PollInterval,
	})
	app.server = controller.NewServer(app.svc)
	app.pruner = worker.NewPruner(cfg.Server.BreakpointTTL, app.svc)

	app.healthServer = health.NewServer(app.healthMon, cfg.Server.Port)
	controller.NewAdmin(app.svc).Register(app.healthServer.Handle)

	return app, nil
}

// Service returns the controller service.
func (a *ControllerApp) Service() *controller.Service {
	return a.svc
}

// Addr returns the gRPC listen address once started.
func (a *ControllerApp) Addr() string {
	if a.lis == nil {
		return ""
	}
	return a.lis.Addr().String()
}

// Start listens and serves in the background until ctx is done or Stop.
func (a *ControllerApp) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", a.cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.cfg.Server.Listen, err)
	}
	a.lis = lis

	go func() {
		if err := a.healthServer.Start(); err != nil {
			a.log.Error("Health server failed", "error", err)
		}
	}()

	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}

	go a.pruner.Start(ctx)

	go func() {
		if err := a.server.Serve(ctx, lis); err != nil {
			a.log.Error("Controller server failed", "error", err)
		}
	}()
	return nil
}

// Stop stops serving and releases the storage backend.
func (a *ControllerApp) Stop(ctx context.Context) error {
	a.log.Info("Stopping controller...")
	a.server.Stop()

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Failed to close database", "error", err)
		}
	}

	return a.healthServer.Stop(ctx)
}
