package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/sandwichbot/internal/domain"
)

// PauseSwitch flips the pause flag shared by every process.
type PauseSwitch interface {
	SetPaused(ctx context.Context, paused bool) error
}

// ControlHandler serves pause and resume.
type ControlHandler struct {
	pause  PauseSwitch
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewControlHandler creates a ControlHandler. audit may be nil.
func NewControlHandler(pause PauseSwitch, audit domain.AuditStore, logger *slog.Logger) *ControlHandler {
	return &ControlHandler{pause: pause, audit: audit, logger: logHandler(logger, "control")}
}

// Pause stops admission and dispatch.
// POST /api/pause
func (h *ControlHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.set(w, r, true)
}

// Resume re-enables admission and dispatch.
// POST /api/resume
func (h *ControlHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.set(w, r, false)
}

func (h *ControlHandler) set(w http.ResponseWriter, r *http.Request, paused bool) {
	if err := h.pause.SetPaused(r.Context(), paused); err != nil {
		h.logger.ErrorContext(r.Context(), "set pause flag", slog.String("error", err.Error()))
		writeDomainError(w, err)
		return
	}
	event := "resume"
	if paused {
		event = "pause"
	}
	h.logger.InfoContext(r.Context(), "operator "+event, slog.String("remote_addr", r.RemoteAddr))
	audit(r, h.audit, h.logger, event, map[string]any{"remote_addr": r.RemoteAddr})
	writeJSON(w, http.StatusOK, map[string]any{"paused": paused})
}
