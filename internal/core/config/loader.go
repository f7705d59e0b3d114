package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"google.golang.org/grpc/codes"
	"gopkg.in/yaml.v2"

	"github.com/vietddude/debugctl/internal/infra/rpc/retry"
	"github.com/vietddude/debugctl/internal/infra/rpc/transport"
	"github.com/vietddude/debugctl/internal/infra/rpc/wire"
)

// Storage backends of the reference controller.
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// DefaultBreakpointTTL is how long a breakpoint may stay active.
const DefaultBreakpointTTL = 24 * time.Hour

// LoadEnv loads a .env file from the working directory if present.
func LoadEnv() {
	_ = godotenv.Load()
}

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes configuration, expanding environment variables first.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) setDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":7070"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Storage == "" {
		c.Server.Storage = StorageMemory
	}
	if c.Server.BreakpointTTL == 0 {
		c.Server.BreakpointTTL = DefaultBreakpointTTL
	}
	if c.Agent.Concurrency <= 0 {
		c.Agent.Concurrency = 4
	}
	if c.Agent.AgentVersion == "" {
		c.Agent.AgentVersion = "debugctl/go"
	}
}

// Validate checks values that cannot be defaulted.
func (c *AppConfig) Validate() error {
	if _, err := transport.ParseMTLSMode(c.Controller.MTLSMode); err != nil {
		return err
	}
	if (c.Controller.ClientCertFile == "") != (c.Controller.ClientKeyFile == "") {
		return fmt.Errorf("client_cert_file and client_key_file must be set together")
	}

	switch c.Server.Storage {
	case StorageMemory, StorageRedis, StoragePostgres:
	default:
		return fmt.Errorf("unsupported storage backend %q", c.Server.Storage)
	}

	for op, m := range c.Controller.Methods {
		if !knownOperation(op) {
			return fmt.Errorf("unknown operation %q in controller.methods", op)
		}
		if m.Retry != nil {
			if _, err := m.Retry.Policy(); err != nil {
				return fmt.Errorf("controller.methods.%s.retry: %w", op, err)
			}
		}
	}
	return nil
}

func knownOperation(op string) bool {
	for _, known := range wire.Operations {
		if op == known {
			return true
		}
	}
	return false
}

// Policy builds the retry policy. A disabled policy is nil. Unset fields
// take the default policy's values.
func (r *RetryPolicyConfig) Policy() (*retry.Policy, error) {
	if r == nil || r.Disabled {
		return nil, nil
	}

	p := retry.DefaultPolicy()
	if r.Initial > 0 {
		p.Initial = r.Initial
	}
	if r.Maximum > 0 {
		p.Maximum = r.Maximum
	}
	if r.Multiplier > 0 {
		p.Multiplier = r.Multiplier
	}
	if r.Deadline != 0 {
		p.Deadline = r.Deadline
	}
	p.MaxAttempts = r.MaxAttempts

	if len(r.Codes) > 0 {
		cs, err := ParseCodes(r.Codes)
		if err != nil {
			return nil, err
		}
		p.Predicate = retry.IfCodes(cs...)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// ParseCodes parses gRPC code names such as UNAVAILABLE.
func ParseCodes(names []string) ([]codes.Code, error) {
	out := make([]codes.Code, 0, len(names))
	for _, name := range names {
		var c codes.Code
		quoted := strconv.Quote(strings.ToUpper(strings.TrimSpace(name)))
		if err := c.UnmarshalJSON([]byte(quoted)); err != nil {
			return nil, fmt.Errorf("invalid status code %q: %w", name, err)
		}
		out = append(out, c)
	}
	return out, nil
}
