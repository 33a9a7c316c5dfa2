package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/sandwichbot/internal/coordinator"
)

// StatusSource reports the dispatching coordinator's state. In api mode the
// snapshot comes from Redis and may be missing.
type StatusSource interface {
	Status(ctx context.Context) (coordinator.Status, error)
}

// StatusHandler serves the coordinator status for operators.
type StatusHandler struct {
	mode   string
	source StatusSource
	logger *slog.Logger
}

// NewStatusHandler creates a StatusHandler for the given mode.
func NewStatusHandler(mode string, source StatusSource, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{mode: mode, source: source, logger: logHandler(logger, "status")}
}

// GetStatus responds with the process mode and the coordinator snapshot.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.source.Status(r.Context())
	if err != nil {
		h.logger.WarnContext(r.Context(), "status lookup failed", slog.String("error", err.Error()))
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":        h.mode,
		"coordinator": st,
	})
}
