package controller

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/vietddude/debugctl/internal/core/domain"
	"github.com/vietddude/debugctl/internal/infra/storage"
)

// Admin exposes breakpoint management over HTTP.
type Admin struct {
	svc *Service
}

// NewAdmin creates the admin handlers for svc.
func NewAdmin(svc *Service) *Admin {
	return &Admin{svc: svc}
}

// Register mounts the admin routes.
func (a *Admin) Register(handle func(pattern string, h http.Handler)) {
	handle("GET /v1/debuggees", http.HandlerFunc(a.listDebuggees))
	handle("PUT /v1/debuggees/{debuggee}/disabled", http.HandlerFunc(a.setDisabled))
	handle("POST /v1/debuggees/{debuggee}/breakpoints", http.HandlerFunc(a.setBreakpoint))
	handle("GET /v1/debuggees/{debuggee}/breakpoints/{id}", http.HandlerFunc(a.getBreakpoint))
}

// Handler returns a mux serving only the admin routes.
func (a *Admin) Handler() http.Handler {
	mux := http.NewServeMux()
	a.Register(mux.Handle)
	return mux
}

func (a *Admin) listDebuggees(w http.ResponseWriter, r *http.Request) {
	ds, err := a.svc.ListDebuggees(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"debuggees": ds})
}

func (a *Admin) setDisabled(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Disabled bool `json:"disabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	d, err := a.svc.SetDebuggeeDisabled(r.Context(), r.PathValue("debuggee"), body.Disabled)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *Admin) setBreakpoint(w http.ResponseWriter, r *http.Request) {
	bp := new(domain.Breakpoint)
	if err := json.NewDecoder(r.Body).Decode(bp); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if bp.Location == nil || bp.Location.Path == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "location.path is required"})
		return
	}

	out, err := a.svc.SetBreakpoint(r.Context(), r.PathValue("debuggee"), bp)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (a *Admin) getBreakpoint(w http.ResponseWriter, r *http.Request) {
	bp, err := a.svc.GetBreakpoint(r.Context(), r.PathValue("debuggee"), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bp)
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, storage.ErrAlreadyExists), errors.Is(err, ErrDebuggeeDisabled):
		code = http.StatusConflict
	default:
		slog.Error("Admin request failed", "error", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
