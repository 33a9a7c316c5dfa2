package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	status StatusSource
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. status may be nil, in which case
// the endpoint only reports liveness.
func NewHealthHandler(status StatusSource, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{status: status, logger: logHandler(logger, "health")}
}

// HealthCheck reports "ok", or "degraded" with a 503 while consecutive RPC
// failures hold the coordinator in the degraded state.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK
	if h.status != nil {
		st, err := h.status.Status(r.Context())
		switch {
		case err != nil:
			h.logger.DebugContext(r.Context(), "status unavailable", slog.String("error", err.Error()))
			body["status"] = "unknown"
		case st.Degraded:
			body["status"] = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, body)
}
