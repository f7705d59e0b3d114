package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps Redis operations for the controller store.
type Client struct {
	rdb    *redis.Client
	prefix string
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	Prefix   string `yaml:"prefix"`
}

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "debugctl:"

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Client{rdb: rdb, prefix: prefix}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Health checks if Redis is reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Key helpers
func (c *Client) debuggeeKey(id string) string {
	return fmt.Sprintf("%sdebuggee:%s", c.prefix, id)
}

func (c *Client) debuggeeIndexKey() string {
	return c.prefix + "debuggees"
}

func (c *Client) breakpointsKey(debuggeeID string) string {
	return fmt.Sprintf("%sbreakpoints:%s", c.prefix, debuggeeID)
}

func (c *Client) activeKey(debuggeeID string) string {
	return fmt.Sprintf("%sbreakpoints:active:%s", c.prefix, debuggeeID)
}

func (c *Client) seqKey() string {
	return c.prefix + "breakpoints:seq"
}
