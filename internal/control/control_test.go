package control

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/debugctl/internal/agent"
	"github.com/vietddude/debugctl/internal/controller"
	"github.com/vietddude/debugctl/internal/core/config"
	"github.com/vietddude/debugctl/internal/core/domain"
)

func testConfig(t *testing.T, yaml string) *config.AppConfig {
	t.Helper()
	cfg, err := config.Parse([]byte(yaml))
	require.NoError(t, err)
	cfg.Server.Port = 0 // random port for the health server
	return cfg
}

func startController(t *testing.T, cfg *config.AppConfig) *ControllerApp {
	t.Helper()
	app, err := NewControllerApp(context.Background(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, app.Start(ctx))
	t.Cleanup(func() {
		cancel()
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		assert.NoError(t, app.Stop(stopCtx))
	})
	return app
}

func runAgentApp(t *testing.T, cfg *config.AppConfig) *AgentApp {
	t.Helper()
	app, err := NewAgentApp(context.Background(), cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	return app
}

const agentYAML = `
controller:
  endpoint: %s
  mtls_mode: never
  insecure: true
  methods:
    register_debuggee:
      timeout: 5s
agent:
  project: shop
  uniquifier: build-1
  description: checkout
  retry_interval: 10ms
  max_backoff: 50ms
`

func agentConfig(t *testing.T, endpoint string) *config.AppConfig {
	t.Helper()
	return testConfig(t, fmt.Sprintf(agentYAML, endpoint))
}

func assertBreakpointCompleted(t *testing.T, ctrl *ControllerApp, agentApp *AgentApp) {
	t.Helper()
	require.Eventually(t, func() bool { return agentApp.Agent().DebuggeeID() != "" }, 5*time.Second, 10*time.Millisecond)
	debuggeeID := agentApp.Agent().DebuggeeID()

	ctx := context.Background()
	bp, err := ctrl.Service().SetBreakpoint(ctx, debuggeeID, &domain.Breakpoint{
		Location: &domain.SourceLocation{Path: "cart.go", Line: 7},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := ctrl.Service().GetBreakpoint(ctx, debuggeeID, bp.Id)
		return err == nil && got.IsFinalState
	}, 5*time.Second, 20*time.Millisecond)

	got, err := ctrl.Service().GetBreakpoint(ctx, debuggeeID, bp.Id)
	require.NoError(t, err)
	assert.Equal(t, agent.UnsupportedMessage, got.Status.Description.Format)
}

func TestControllerApp_MemoryLifecycle(t *testing.T) {
	ctrl := startController(t, testConfig(t, `
server:
  listen: 127.0.0.1:0
  wait_timeout: 1s
  poll_interval: 20ms
`))
	require.NotEmpty(t, ctrl.Addr())

	agentApp := runAgentApp(t, agentConfig(t, ctrl.Addr()))
	assertBreakpointCompleted(t, ctrl, agentApp)

	debuggees, err := ctrl.Service().ListDebuggees(context.Background())
	require.NoError(t, err)
	require.Len(t, debuggees, 1)
	assert.Equal(t, controller.DebuggeeID(DebuggeeFromConfig(agentConfig(t, "").Agent)), debuggees[0].Id)
}

func TestControllerApp_RedisLifecycle(t *testing.T) {
	mr := miniredis.RunT(t)
	ctrl := startController(t, testConfig(t, fmt.Sprintf(`
server:
  listen: 127.0.0.1:0
  storage: redis
  wait_timeout: 1s
  poll_interval: 20ms
redis:
  url: redis://%s
`, mr.Addr())))

	agentApp := runAgentApp(t, agentConfig(t, ctrl.Addr()))
	assertBreakpointCompleted(t, ctrl, agentApp)
}

func TestNewControllerApp_StorageUnavailable(t *testing.T) {
	cfg := testConfig(t, `
server:
  storage: redis
redis:
  url: redis://127.0.0.1:1
`)
	_, err := NewControllerApp(context.Background(), cfg)
	assert.Error(t, err)
}

func TestClientOptions(t *testing.T) {
	cfg := testConfig(t, `
controller:
  endpoint: localhost:7070
  mtls_mode: always
  use_client_certificate: false
  client_cert_file: cert.pem
  client_key_file: key.pem
  insecure: true
  client_info:
    name: checkout-agent
  methods:
    list_active_breakpoints:
      timeout: 30s
      retry:
        disabled: true
`)
	opts, err := ClientOptions(cfg.Controller)
	require.NoError(t, err)
	// endpoint, mtls, client cert flag, cert source, insecure, client info, one method
	assert.Len(t, opts, 7)

	client, err := NewClient(context.Background(), cfg.Controller)
	require.NoError(t, err)
	assert.NoError(t, client.Close())
}

func TestClientOptions_Empty(t *testing.T) {
	opts, err := ClientOptions(config.ControllerConfig{})
	require.NoError(t, err)
	assert.Empty(t, opts)
}

func TestClientOptions_Invalid(t *testing.T) {
	_, err := ClientOptions(config.ControllerConfig{MTLSMode: "sometimes"})
	assert.Error(t, err)

	_, err = ClientOptions(config.ControllerConfig{
		Methods: map[string]config.MethodConfig{
			"list_active_breakpoints": {Retry: &config.RetryPolicyConfig{Multiplier: 0.5}},
		},
	})
	assert.Error(t, err)
}

func TestNewClient_MissingCredentialsFile(t *testing.T) {
	_, err := NewClient(context.Background(), config.ControllerConfig{
		Endpoint:        "localhost:7070",
		CredentialsFile: "does-not-exist.json",
	})
	assert.Error(t, err)
}
