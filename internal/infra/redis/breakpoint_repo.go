package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/debugctl/internal/core/domain"
	"github.com/vietddude/debugctl/internal/infra/storage"
)

// maxTxRetries bounds optimistic transaction retries on contended updates.
const maxTxRetries = 10

// BreakpointRepo implements storage.BreakpointRepository using Redis.
//
// Breakpoints live in one hash per debuggee; the active ones are also kept in
// a sorted set scored by a global sequence so they list in creation order.
type BreakpointRepo struct {
	c *Client
}

// NewBreakpointRepo creates a new Redis-backed breakpoint repository.
func NewBreakpointRepo(client *Client) *BreakpointRepo {
	return &BreakpointRepo{c: client}
}

// Create stores a new breakpoint.
func (r *BreakpointRepo) Create(ctx context.Context, debuggeeID string, bp *domain.Breakpoint) error {
	data, err := json.Marshal(bp)
	if err != nil {
		return fmt.Errorf("failed to marshal breakpoint: %w", err)
	}

	ok, err := r.c.rdb.HSetNX(ctx, r.c.breakpointsKey(debuggeeID), bp.Id, data).Result()
	if err != nil {
		return fmt.Errorf("hsetnx failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("breakpoint %s: %w", bp.Id, storage.ErrAlreadyExists)
	}
	if bp.IsFinalState {
		return nil
	}

	seq, err := r.c.rdb.Incr(ctx, r.c.seqKey()).Result()
	if err != nil {
		return fmt.Errorf("incr failed: %w", err)
	}
	if err := r.c.rdb.ZAdd(ctx, r.c.activeKey(debuggeeID), redis.Z{
		Score:  float64(seq),
		Member: bp.Id,
	}).Err(); err != nil {
		return fmt.Errorf("zadd failed: %w", err)
	}
	return nil
}

// Get retrieves a breakpoint, active or final.
func (r *BreakpointRepo) Get(ctx context.Context, debuggeeID, id string) (*domain.Breakpoint, error) {
	data, err := r.c.rdb.HGet(ctx, r.c.breakpointsKey(debuggeeID), id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("breakpoint %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("hget failed: %w", err)
	}
	return decodeBreakpoint(data)
}

// ListActive retrieves active breakpoints in creation order.
func (r *BreakpointRepo) ListActive(ctx context.Context, debuggeeID string) ([]*domain.Breakpoint, error) {
	ids, err := r.c.rdb.ZRange(ctx, r.c.activeKey(debuggeeID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange failed: %w", err)
	}
	if len(ids) == 0 {
		return []*domain.Breakpoint{}, nil
	}

	values, err := r.c.rdb.HMGet(ctx, r.c.breakpointsKey(debuggeeID), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("hmget failed: %w", err)
	}

	out := make([]*domain.Breakpoint, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		bp, err := decodeBreakpoint([]byte(s))
		if err != nil {
			return nil, err
		}
		if !bp.IsFinalState {
			out = append(out, bp)
		}
	}
	return out, nil
}

// Update replaces an active breakpoint inside a WATCH transaction so that
// only the first final update is applied.
func (r *BreakpointRepo) Update(ctx context.Context, debuggeeID string, bp *domain.Breakpoint) (bool, error) {
	data, err := json.Marshal(bp)
	if err != nil {
		return false, fmt.Errorf("failed to marshal breakpoint: %w", err)
	}

	hashKey := r.c.breakpointsKey(debuggeeID)
	activeKey := r.c.activeKey(debuggeeID)

	var applied bool
	txf := func(tx *redis.Tx) error {
		applied = false
		current, err := tx.HGet(ctx, hashKey, bp.Id).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("breakpoint %s: %w", bp.Id, storage.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("hget failed: %w", err)
		}
		stored, err := decodeBreakpoint(current)
		if err != nil {
			return err
		}
		if stored.IsFinalState {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, hashKey, bp.Id, data)
			if bp.IsFinalState {
				pipe.ZRem(ctx, activeKey, bp.Id)
			}
			return nil
		})
		if err == nil {
			applied = true
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err = r.c.rdb.Watch(ctx, txf, hashKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return applied, err
	}
	return false, fmt.Errorf("update breakpoint %s: too much contention", bp.Id)
}

func decodeBreakpoint(data []byte) (*domain.Breakpoint, error) {
	bp := new(domain.Breakpoint)
	if err := json.Unmarshal(data, bp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal breakpoint: %w", err)
	}
	return bp, nil
}
