package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/debugctl/internal/core/domain"
	"github.com/vietddude/debugctl/internal/infra/storage"
)

// DebuggeeRepo implements storage.DebuggeeRepository using Redis.
type DebuggeeRepo struct {
	c *Client
}

// NewDebuggeeRepo creates a new Redis-backed debuggee repository.
func NewDebuggeeRepo(client *Client) *DebuggeeRepo {
	return &DebuggeeRepo{c: client}
}

// Save stores the debuggee and indexes its id.
func (r *DebuggeeRepo) Save(ctx context.Context, d *domain.Debuggee) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal debuggee: %w", err)
	}

	_, err = r.c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.c.debuggeeKey(d.Id), data, 0)
		pipe.SAdd(ctx, r.c.debuggeeIndexKey(), d.Id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save debuggee: %w", err)
	}
	return nil
}

// Get retrieves a debuggee by id.
func (r *DebuggeeRepo) Get(ctx context.Context, id string) (*domain.Debuggee, error) {
	data, err := r.c.rdb.Get(ctx, r.c.debuggeeKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("debuggee %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get failed: %w", err)
	}

	d := new(domain.Debuggee)
	if err := json.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal debuggee: %w", err)
	}
	return d, nil
}

// List retrieves all debuggees ordered by id.
func (r *DebuggeeRepo) List(ctx context.Context) ([]*domain.Debuggee, error) {
	ids, err := r.c.rdb.SMembers(ctx, r.c.debuggeeIndexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers failed: %w", err)
	}
	sort.Strings(ids)

	out := make([]*domain.Debuggee, 0, len(ids))
	for _, id := range ids {
		d, err := r.Get(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
