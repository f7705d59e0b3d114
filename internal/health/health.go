// Package health provides component health monitoring and the HTTP endpoint
// that serves it together with metrics.
package health

import "context"

// SystemStatus represents the health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// ComponentHealth is the health of one component.
type ComponentHealth struct {
	Name    string         `json:"name"`
	Status  SystemStatus   `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

// Checker reports the health of a component.
type Checker interface {
	CheckHealth(ctx context.Context) ComponentHealth
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) ComponentHealth

func (f CheckerFunc) CheckHealth(ctx context.Context) ComponentHealth {
	return f(ctx)
}

// PingChecker reports a component critical when ping fails.
func PingChecker(name string, ping func(ctx context.Context) error) Checker {
	return CheckerFunc(func(ctx context.Context) ComponentHealth {
		h := ComponentHealth{Name: name, Status: StatusHealthy}
		if err := ping(ctx); err != nil {
			h.Status = StatusCritical
			h.Details = map[string]any{"error": err.Error()}
		}
		return h
	})
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus               `json:"system_status"`
	Components   map[string]ComponentHealth `json:"components"`
}

// worst aggregates component states: the worst case wins.
func worst(components map[string]ComponentHealth) SystemStatus {
	status := StatusHealthy
	for _, c := range components {
		if c.Status == StatusCritical {
			return StatusCritical
		}
		if c.Status == StatusDegraded {
			status = StatusDegraded
		}
	}
	return status
}
