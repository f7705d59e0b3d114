package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func fixed(name string, status SystemStatus, calls *int) Checker {
	return CheckerFunc(func(ctx context.Context) ComponentHealth {
		if calls != nil {
			*calls++
		}
		return ComponentHealth{Name: name, Status: status}
	})
}

func TestMonitor_WorstStatusWins(t *testing.T) {
	tests := []struct {
		name     string
		statuses []SystemStatus
		want     SystemStatus
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", []SystemStatus{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"degraded", []SystemStatus{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"critical", []SystemStatus{StatusDegraded, StatusCritical, StatusHealthy}, StatusCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor(0)
			for i, s := range tt.statuses {
				m.Register(fixed(string(rune('a'+i)), s, nil))
			}
			report := m.CheckHealth(context.Background())
			if report.SystemStatus != tt.want {
				t.Errorf("expected %s, got %s", tt.want, report.SystemStatus)
			}
			if len(report.Components) != len(tt.statuses) {
				t.Errorf("expected %d components, got %d", len(tt.statuses), len(report.Components))
			}
		})
	}
}

func TestMonitor_CachesReport(t *testing.T) {
	calls := 0
	m := NewMonitor(time.Hour, fixed("store", StatusHealthy, &calls))

	m.CheckHealth(context.Background())
	m.CheckHealth(context.Background())
	if calls != 1 {
		t.Errorf("expected 1 check within TTL, got %d", calls)
	}

	m.Register(fixed("agent", StatusHealthy, nil))
	report := m.CheckHealth(context.Background())
	if calls != 2 {
		t.Errorf("expected registration to invalidate the cache, got %d checks", calls)
	}
	if _, ok := report.Components["agent"]; !ok {
		t.Error("expected new component in report")
	}
}

func TestPingChecker(t *testing.T) {
	ok := PingChecker("redis", func(context.Context) error { return nil })
	if h := ok.CheckHealth(context.Background()); h.Status != StatusHealthy {
		t.Errorf("expected healthy, got %s", h.Status)
	}

	bad := PingChecker("redis", func(context.Context) error { return errors.New("connection refused") })
	h := bad.CheckHealth(context.Background())
	if h.Status != StatusCritical {
		t.Errorf("expected critical, got %s", h.Status)
	}
	if h.Details["error"] != "connection refused" {
		t.Errorf("unexpected details: %v", h.Details)
	}
}

func TestServer_Endpoints(t *testing.T) {
	m := NewMonitor(0, fixed("store", StatusCritical, nil))
	s := NewServer(m, 0)
	s.Handle("GET /v1/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != string(StatusCritical) {
		t.Errorf("unexpected body: %v", body)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/detailed", nil))
	var report HealthReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if report.Components["store"].Status != StatusCritical {
		t.Errorf("unexpected report: %+v", report)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected metrics 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ping", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected extra handler, got %d", rec.Code)
	}
}
