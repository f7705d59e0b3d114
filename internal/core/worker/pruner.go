package worker

import (
	"context"
	"log/slog"
	"time"
)

// BreakpointExpirer completes active breakpoints created before a cutoff.
type BreakpointExpirer interface {
	ExpireBreakpoints(ctx context.Context, olderThan time.Time) (int, error)
}

// Pruner expires breakpoints that outlived their time to live.
type Pruner struct {
	ttl      time.Duration
	expirer  BreakpointExpirer
	interval time.Duration
	now      func() time.Time
}

// NewPruner creates a new Pruner worker.
func NewPruner(ttl time.Duration, expirer BreakpointExpirer) *Pruner {
	// Check at 10% of the ttl, between one second and one hour.
	interval := min(ttl/10, time.Hour)
	interval = max(interval, time.Second)

	return &Pruner{
		ttl:      ttl,
		expirer:  expirer,
		interval: interval,
		now:      time.Now,
	}
}

// Start runs the pruner loop.
func (p *Pruner) Start(ctx context.Context) {
	if p.ttl <= 0 {
		return // Expiry disabled
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Initial prune
	p.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *Pruner) prune(ctx context.Context) {
	threshold := p.now().Add(-p.ttl)

	n, err := p.expirer.ExpireBreakpoints(ctx, threshold)
	if err != nil {
		slog.Error("[Pruner] failed to expire breakpoints", "error", err)
		return
	}
	if n > 0 {
		slog.Info("[Pruner] expired breakpoints", "count", n, "older_than", threshold)
	}
}
