package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vietddude/debugctl/internal/core/domain"
	"github.com/vietddude/debugctl/internal/infra/storage"
)

// BreakpointRepo implements storage.BreakpointRepository using PostgreSQL.
type BreakpointRepo struct {
	db *DB
}

// NewBreakpointRepo creates a new PostgreSQL breakpoint repository.
func NewBreakpointRepo(db *DB) *BreakpointRepo {
	return &BreakpointRepo{db: db}
}

// Create stores a new active breakpoint.
func (r *BreakpointRepo) Create(ctx context.Context, debuggeeID string, bp *domain.Breakpoint) error {
	payload, err := json.Marshal(bp)
	if err != nil {
		return fmt.Errorf("failed to encode breakpoint: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO breakpoints (debuggee_id, id, is_final, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (debuggee_id, id) DO NOTHING`,
		debuggeeID, bp.Id, bp.IsFinalState, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to create breakpoint: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to create breakpoint: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("breakpoint %s: %w", bp.Id, storage.ErrAlreadyExists)
	}
	return nil
}

// Get retrieves a breakpoint, active or final.
func (r *BreakpointRepo) Get(ctx context.Context, debuggeeID, id string) (*domain.Breakpoint, error) {
	var row payloadRow
	err := r.db.GetContext(ctx, &row,
		`SELECT payload FROM breakpoints WHERE debuggee_id = $1 AND id = $2`,
		debuggeeID, id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("breakpoint %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get breakpoint: %w", err)
	}
	return decodeBreakpoint(row.Payload)
}

// ListActive retrieves active breakpoints in creation order.
func (r *BreakpointRepo) ListActive(ctx context.Context, debuggeeID string) ([]*domain.Breakpoint, error) {
	var rows []payloadRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT payload FROM breakpoints
		WHERE debuggee_id = $1 AND NOT is_final
		ORDER BY seq`,
		debuggeeID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list breakpoints: %w", err)
	}

	out := make([]*domain.Breakpoint, 0, len(rows))
	for _, row := range rows {
		bp, err := decodeBreakpoint(row.Payload)
		if err != nil {
			return nil, err
		}
		out = append(out, bp)
	}
	return out, nil
}

// Update replaces an active breakpoint. The NOT is_final guard makes the
// first final update win.
func (r *BreakpointRepo) Update(ctx context.Context, debuggeeID string, bp *domain.Breakpoint) (bool, error) {
	payload, err := json.Marshal(bp)
	if err != nil {
		return false, fmt.Errorf("failed to encode breakpoint: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE breakpoints
		SET payload = $3, is_final = $4, updated_at = now()
		WHERE debuggee_id = $1 AND id = $2 AND NOT is_final`,
		debuggeeID, bp.Id, payload, bp.IsFinalState,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update breakpoint: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to update breakpoint: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	var exists bool
	err = r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM breakpoints WHERE debuggee_id = $1 AND id = $2)`,
		debuggeeID, bp.Id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to check breakpoint: %w", err)
	}
	if !exists {
		return false, fmt.Errorf("breakpoint %s: %w", bp.Id, storage.ErrNotFound)
	}
	return false, nil
}

func decodeBreakpoint(payload []byte) (*domain.Breakpoint, error) {
	bp := new(domain.Breakpoint)
	if err := json.Unmarshal(payload, bp); err != nil {
		return nil, fmt.Errorf("failed to decode breakpoint: %w", err)
	}
	return bp, nil
}
