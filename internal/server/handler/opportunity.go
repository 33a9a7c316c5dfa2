package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/sandwichbot/internal/domain"
)

// OpportunityReader lists recorded opportunities. History is optional: a
// reader without it serves only the recent list.
type OpportunityReader interface {
	ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.Opportunity, error)
}

type opportunityHistory interface {
	History(ctx context.Context, key string) ([]domain.Opportunity, error)
}

// OpportunityHandler serves opportunity records.
type OpportunityHandler struct {
	reader OpportunityReader
	logger *slog.Logger
}

// NewOpportunityHandler creates an OpportunityHandler.
func NewOpportunityHandler(reader OpportunityReader, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{reader: reader, logger: logHandler(logger, "opportunity")}
}

// ListOpportunities returns recent opportunity records, newest first.
// GET /api/opportunities
func (h *OpportunityHandler) ListOpportunities(w http.ResponseWriter, r *http.Request) {
	opps, err := h.reader.ListRecent(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list opportunities", slog.String("error", err.Error()))
		writeDomainError(w, err)
		return
	}
	if opps == nil {
		opps = []domain.Opportunity{}
	}
	writeJSON(w, http.StatusOK, opps)
}

// History returns every recorded state of one opportunity in order.
// GET /api/opportunities/{key}
func (h *OpportunityHandler) History(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(pathParam(r, "key"))
	if len(key) != 66 || !strings.HasPrefix(key, "0x") {
		writeError(w, http.StatusBadRequest, "key must be a 0x-prefixed transaction hash")
		return
	}
	hist, ok := h.reader.(opportunityHistory)
	if !ok {
		writeDomainError(w, domain.ErrUnavailable)
		return
	}
	opps, err := hist.History(r.Context(), common.HexToHash(key).Hex())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "opportunity history", slog.String("error", err.Error()))
		writeDomainError(w, err)
		return
	}
	if len(opps) == 0 {
		writeError(w, http.StatusNotFound, "opportunity not found")
		return
	}
	writeJSON(w, http.StatusOK, opps)
}
