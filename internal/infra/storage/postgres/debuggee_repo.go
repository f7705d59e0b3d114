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

// DebuggeeRepo implements storage.DebuggeeRepository using PostgreSQL.
type DebuggeeRepo struct {
	db *DB
}

// NewDebuggeeRepo creates a new PostgreSQL debuggee repository.
func NewDebuggeeRepo(db *DB) *DebuggeeRepo {
	return &DebuggeeRepo{db: db}
}

type payloadRow struct {
	Payload []byte `db:"payload"`
}

// Save inserts or replaces a debuggee.
func (r *DebuggeeRepo) Save(ctx context.Context, d *domain.Debuggee) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode debuggee: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO debuggees (id, project, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET project = EXCLUDED.project, payload = EXCLUDED.payload, updated_at = now()`,
		d.Id, d.Project, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to save debuggee: %w", err)
	}
	return nil
}

// Get retrieves a debuggee by id.
func (r *DebuggeeRepo) Get(ctx context.Context, id string) (*domain.Debuggee, error) {
	var row payloadRow
	err := r.db.GetContext(ctx, &row, `SELECT payload FROM debuggees WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("debuggee %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get debuggee: %w", err)
	}

	d := new(domain.Debuggee)
	if err := json.Unmarshal(row.Payload, d); err != nil {
		return nil, fmt.Errorf("failed to decode debuggee: %w", err)
	}
	return d, nil
}

// List retrieves all debuggees ordered by id.
func (r *DebuggeeRepo) List(ctx context.Context) ([]*domain.Debuggee, error) {
	var rows []payloadRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT payload FROM debuggees ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list debuggees: %w", err)
	}

	out := make([]*domain.Debuggee, 0, len(rows))
	for _, row := range rows {
		d := new(domain.Debuggee)
		if err := json.Unmarshal(row.Payload, d); err != nil {
			return nil, fmt.Errorf("failed to decode debuggee: %w", err)
		}
		out = append(out, d)
	}
	return out, nil
}
