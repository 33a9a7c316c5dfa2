package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/sandwichbot/internal/domain"
)

// defaultBumpPercent applies when the request body omits percent.
const defaultBumpPercent = 10

// AttemptReader lists and fetches execution attempts.
type AttemptReader interface {
	GetByID(ctx context.Context, id string) (domain.ExecutionAttempt, error)
	ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.ExecutionAttempt, error)
}

// GasBumper resubmits a pending attempt at a higher gas price.
type GasBumper interface {
	BumpGas(ctx context.Context, attemptID string, percent uint32) (domain.ExecutionAttempt, error)
}

// AttemptHandler serves execution attempts and the gas bump action.
type AttemptHandler struct {
	reader AttemptReader
	bumper GasBumper
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewAttemptHandler creates an AttemptHandler. bumper is nil in processes
// that do not dispatch; audit may be nil.
func NewAttemptHandler(reader AttemptReader, bumper GasBumper, audit domain.AuditStore, logger *slog.Logger) *AttemptHandler {
	return &AttemptHandler{reader: reader, bumper: bumper, audit: audit, logger: logHandler(logger, "attempt")}
}

// ListAttempts returns recent attempts, newest first.
// GET /api/attempts
func (h *AttemptHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	attempts, err := h.reader.ListRecent(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list attempts", slog.String("error", err.Error()))
		writeDomainError(w, err)
		return
	}
	if attempts == nil {
		attempts = []domain.ExecutionAttempt{}
	}
	writeJSON(w, http.StatusOK, attempts)
}

// GetAttempt returns one attempt.
// GET /api/attempts/{id}
func (h *AttemptHandler) GetAttempt(w http.ResponseWriter, r *http.Request) {
	a, err := h.reader.GetByID(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type bumpRequest struct {
	Percent uint32 `json:"percent"`
}

// BumpGas replaces a pending attempt with the same nonce and a higher gas
// price. Body: {"percent": 15}; an empty body bumps by 10%.
// POST /api/attempts/{id}/bump
func (h *AttemptHandler) BumpGas(w http.ResponseWriter, r *http.Request) {
	if h.bumper == nil {
		writeDomainError(w, domain.ErrUnavailable)
		return
	}
	req := bumpRequest{Percent: defaultBumpPercent}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<10)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Percent == 0 || req.Percent > 500 {
		writeError(w, http.StatusBadRequest, "percent must be between 1 and 500")
		return
	}

	id := pathParam(r, "id")
	a, err := h.bumper.BumpGas(r.Context(), id, req.Percent)
	if err != nil {
		h.logger.WarnContext(r.Context(), "gas bump failed",
			slog.String("attempt", id),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}
	audit(r, h.audit, h.logger, "bump_gas", map[string]any{
		"attempt":     id,
		"replacement": a.ID,
		"percent":     req.Percent,
		"tx_hash":     a.TxHash.Hex(),
	})
	writeJSON(w, http.StatusAccepted, a)
}
