package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/vietddude/debugctl/internal/core/domain"
	"github.com/vietddude/debugctl/internal/infra/storage"
)

type MemoryStorage struct {
	debuggees   map[string]*domain.Debuggee
	breakpoints map[string]map[string]*entry
	seq         int64
	mu          sync.RWMutex
}

type entry struct {
	seq int64
	bp  *domain.Breakpoint
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		debuggees:   make(map[string]*domain.Debuggee),
		breakpoints: make(map[string]map[string]*entry),
	}
}

// copyBreakpoint detaches stored breakpoints from caller-owned values.
func copyBreakpoint(bp *domain.Breakpoint) (*domain.Breakpoint, error) {
	data, err := json.Marshal(bp)
	if err != nil {
		return nil, fmt.Errorf("failed to copy breakpoint: %w", err)
	}
	out := new(domain.Breakpoint)
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("failed to copy breakpoint: %w", err)
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Debuggee Repository
// -----------------------------------------------------------------------------

type DebuggeeRepo struct {
	store *MemoryStorage
}

func NewDebuggeeRepo(store *MemoryStorage) *DebuggeeRepo {
	return &DebuggeeRepo{store: store}
}

func (r *DebuggeeRepo) Save(ctx context.Context, d *domain.Debuggee) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.debuggees[d.Id] = d.Clone()
	return nil
}

func (r *DebuggeeRepo) Get(ctx context.Context, id string) (*domain.Debuggee, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	d, ok := r.store.debuggees[id]
	if !ok {
		return nil, fmt.Errorf("debuggee %s: %w", id, storage.ErrNotFound)
	}
	return d.Clone(), nil
}

func (r *DebuggeeRepo) List(ctx context.Context) ([]*domain.Debuggee, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]*domain.Debuggee, 0, len(r.store.debuggees))
	for _, d := range r.store.debuggees {
		out = append(out, d.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out, nil
}

// -----------------------------------------------------------------------------
// Breakpoint Repository
// -----------------------------------------------------------------------------

type BreakpointRepo struct {
	store *MemoryStorage
}

func NewBreakpointRepo(store *MemoryStorage) *BreakpointRepo {
	return &BreakpointRepo{store: store}
}

func (r *BreakpointRepo) Create(ctx context.Context, debuggeeID string, bp *domain.Breakpoint) error {
	stored, err := copyBreakpoint(bp)
	if err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	bps, ok := r.store.breakpoints[debuggeeID]
	if !ok {
		bps = make(map[string]*entry)
		r.store.breakpoints[debuggeeID] = bps
	}
	if _, exists := bps[bp.Id]; exists {
		return fmt.Errorf("breakpoint %s: %w", bp.Id, storage.ErrAlreadyExists)
	}
	r.store.seq++
	bps[bp.Id] = &entry{seq: r.store.seq, bp: stored}
	return nil
}

func (r *BreakpointRepo) Get(ctx context.Context, debuggeeID, id string) (*domain.Breakpoint, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	e, ok := r.store.breakpoints[debuggeeID][id]
	if !ok {
		return nil, fmt.Errorf("breakpoint %s: %w", id, storage.ErrNotFound)
	}
	return copyBreakpoint(e.bp)
}

func (r *BreakpointRepo) ListActive(ctx context.Context, debuggeeID string) ([]*domain.Breakpoint, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var active []*entry
	for _, e := range r.store.breakpoints[debuggeeID] {
		if !e.bp.IsFinalState {
			active = append(active, e)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].seq < active[j].seq })

	out := make([]*domain.Breakpoint, 0, len(active))
	for _, e := range active {
		bp, err := copyBreakpoint(e.bp)
		if err != nil {
			return nil, err
		}
		out = append(out, bp)
	}
	return out, nil
}

func (r *BreakpointRepo) Update(ctx context.Context, debuggeeID string, bp *domain.Breakpoint) (bool, error) {
	stored, err := copyBreakpoint(bp)
	if err != nil {
		return false, err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	e, ok := r.store.breakpoints[debuggeeID][bp.Id]
	if !ok {
		return false, fmt.Errorf("breakpoint %s: %w", bp.Id, storage.ErrNotFound)
	}
	if e.bp.IsFinalState {
		return false, nil
	}
	e.bp = stored
	return true, nil
}
