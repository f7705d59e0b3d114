package storage

import (
	"context"
	"errors"

	"github.com/vietddude/debugctl/internal/core/domain"
)

var (
	// ErrNotFound is returned when a debuggee or breakpoint doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when creating a breakpoint whose id is taken
	ErrAlreadyExists = errors.New("already exists")
)

// DebuggeeRepository handles debuggee storage operations
type DebuggeeRepository interface {
	// Save inserts or replaces a debuggee by id
	Save(ctx context.Context, debuggee *domain.Debuggee) error

	// Get retrieves a debuggee by id
	Get(ctx context.Context, id string) (*domain.Debuggee, error)

	// List retrieves all debuggees
	List(ctx context.Context) ([]*domain.Debuggee, error)
}

// BreakpointRepository handles breakpoint storage operations.
//
// A breakpoint is active until an update with IsFinalState set is applied.
// Final breakpoints stay readable through Get but never become active again.
type BreakpointRepository interface {
	// Create stores a new active breakpoint
	Create(ctx context.Context, debuggeeID string, bp *domain.Breakpoint) error

	// Get retrieves a breakpoint, active or final
	Get(ctx context.Context, debuggeeID, id string) (*domain.Breakpoint, error)

	// ListActive retrieves the active breakpoints in creation order
	ListActive(ctx context.Context, debuggeeID string) ([]*domain.Breakpoint, error)

	// Update replaces a breakpoint if it is still active. A final update
	// completes it. Updates to a final breakpoint are discarded and reported
	// with applied=false.
	Update(ctx context.Context, debuggeeID string, bp *domain.Breakpoint) (applied bool, err error)
}
