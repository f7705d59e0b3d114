package config

import (
	"time"

	"github.com/vietddude/debugctl/internal/core/logging"
	redisclient "github.com/vietddude/debugctl/internal/infra/redis"
	"github.com/vietddude/debugctl/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Controller ControllerConfig   `yaml:"controller"`
	Agent      AgentConfig        `yaml:"agent"`
	Server     ServerConfig       `yaml:"server"`
	Redis      redisclient.Config `yaml:"redis"`
	Database   postgres.Config    `yaml:"database"`
	Logging    logging.Config     `yaml:"logging"`
}

// ControllerConfig holds the client settings used to reach the controller.
type ControllerConfig struct {
	Endpoint             string `yaml:"endpoint"`
	MTLSMode             string `yaml:"mtls_mode"`              // always, never, auto
	UseClientCertificate *bool  `yaml:"use_client_certificate"` // unset: GOOGLE_API_USE_CLIENT_CERTIFICATE
	ClientCertFile       string `yaml:"client_cert_file"`
	ClientKeyFile        string `yaml:"client_key_file"`
	CredentialsFile      string `yaml:"credentials_file"`
	Transport            string `yaml:"transport"`
	Insecure             bool   `yaml:"insecure"`

	ClientInfo ClientInfoConfig `yaml:"client_info"`

	// Methods overrides per-operation defaults, keyed by operation name
	// (register_debuggee, list_active_breakpoints, update_active_breakpoint).
	Methods map[string]MethodConfig `yaml:"methods"`
}

// ClientInfoConfig overrides the client tag sent with every call.
type ClientInfoConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// MethodConfig overrides the defaults of one operation.
type MethodConfig struct {
	Timeout time.Duration      `yaml:"timeout"`
	Retry   *RetryPolicyConfig `yaml:"retry"`
}

// RetryPolicyConfig describes a retry policy.
type RetryPolicyConfig struct {
	Disabled    bool          `yaml:"disabled"`
	Initial     time.Duration `yaml:"initial"`
	Maximum     time.Duration `yaml:"maximum"`
	Multiplier  float64       `yaml:"multiplier"`
	Deadline    time.Duration `yaml:"deadline"`
	MaxAttempts int           `yaml:"max_attempts"`
	Codes       []string      `yaml:"codes"` // e.g. UNAVAILABLE, DEADLINE_EXCEEDED
}

// AgentConfig holds the debuggee identity and runtime settings of the agent.
type AgentConfig struct {
	Project      string            `yaml:"project"`
	Uniquifier   string            `yaml:"uniquifier"`
	Description  string            `yaml:"description"`
	AgentVersion string            `yaml:"agent_version"`
	Labels       map[string]string `yaml:"labels"`

	Concurrency   int           `yaml:"concurrency"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	MaxBackoff    time.Duration `yaml:"max_backoff"`
	HealthPort    int           `yaml:"health_port"`
}

// ServerConfig holds the reference controller settings.
type ServerConfig struct {
	Listen       string        `yaml:"listen"`
	Port         int           `yaml:"port"`    // admin, health and metrics
	Storage      string        `yaml:"storage"` // memory, redis, postgres
	WaitTimeout  time.Duration `yaml:"wait_timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`

	// BreakpointTTL expires active breakpoints older than this. Negative disables.
	BreakpointTTL time.Duration `yaml:"breakpoint_ttl"`
}
