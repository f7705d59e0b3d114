package health

import (
	"context"
	"sync"
	"time"
)

// DefaultCacheTTL is how long a report is reused before components are checked again.
const DefaultCacheTTL = 10 * time.Second

// Monitor aggregates health status from registered components.
type Monitor struct {
	checkers   []Checker
	cacheTTL   time.Duration
	lastCheck  time.Time
	lastReport *HealthReport
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor.
func NewMonitor(cacheTTL time.Duration, checkers ...Checker) *Monitor {
	return &Monitor{
		checkers: checkers,
		cacheTTL: cacheTTL,
	}
}

// Register adds a component checker.
func (m *Monitor) Register(c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, c)
	m.lastReport = nil
}

// CheckHealth checks every component, reusing a recent report.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastReport != nil && time.Since(m.lastCheck) < m.cacheTTL {
		return *m.lastReport
	}

	components := make(map[string]ComponentHealth, len(m.checkers))
	for _, c := range m.checkers {
		h := c.CheckHealth(ctx)
		components[h.Name] = h
	}

	report := HealthReport{
		SystemStatus: worst(components),
		Components:   components,
	}
	m.lastCheck = time.Now()
	m.lastReport = &report
	return report
}
