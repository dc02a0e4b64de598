package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// HealthHandler handles health-check endpoints.
type HealthHandler struct {
	checks map[string]HealthCheck
}

func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Ping serves /health-check/{action}. "ping" is liveness; "ready" runs every
// registered dependency check.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "ping":
		writeSuccess(w, r, http.StatusOK, "pong", "pong", nil)
	case "ready":
		h.ready(w, r)
	default:
		writeJSON(w, http.StatusNotFound, Envelope{Status: http.StatusNotFound, Message: "unknown action", Code: "not_found"})
	}
}

func (h *HealthHandler) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	failed := map[string]string{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		text := http.StatusText(http.StatusServiceUnavailable)
		writeJSON(w, http.StatusServiceUnavailable, Envelope{
			Status: http.StatusServiceUnavailable, Error: &text,
			Message: "dependency check failed", Code: "not_ready", Data: failed,
		})
		return
	}
	writeSuccess(w, r, http.StatusOK, "ready", "ready", nil)
}
