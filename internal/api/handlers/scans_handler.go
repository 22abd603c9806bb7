package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/driftmap/cartographer/internal/api/response"
	"github.com/driftmap/cartographer/internal/api/validation"
	"github.com/driftmap/cartographer/internal/drifterrors"
	"github.com/driftmap/cartographer/internal/models"
	"github.com/driftmap/cartographer/internal/service"
)

const defaultScanListLimit = 20

// Scanner runs a drift scan around an anchor concept.
type Scanner interface {
	Scan(ctx context.Context, anchorName string, neighbors int) (*service.ScanResult, error)
}

// ScanHistory lists past scans.
type ScanHistory interface {
	ListRecent(ctx context.Context, limit int) ([]models.Scan, error)
}

// ScansHandler handles HTTP requests for scans.
type ScansHandler struct {
	scanner Scanner
	history ScanHistory
}

// NewScansHandler creates a new scans handler.
func NewScansHandler(scanner Scanner, history ScanHistory) *ScansHandler {
	return &ScansHandler{scanner: scanner, history: history}
}

// Create handles POST /v1/scans
func (h *ScansHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.ScanRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")
		return
	}

	if err := validation.ValidateStruct(&req); err != nil {
		validation.RespondValidationError(w, err)
		return
	}

	result, err := h.scanner.Scan(r.Context(), req.Concept, req.Neighbors)
	if err != nil {
		if errors.Is(err, drifterrors.ErrNotFound) {
			response.RespondNotFound(w, "Anchor concept or its embeddings not found")
			return
		}
		if errors.Is(err, drifterrors.ErrValidation) {
			response.RespondBadRequest(w, err.Error())
			return
		}
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusCreated, result)
}

// List handles GET /v1/scans
func (h *ScansHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := &models.ListScansFilters{}
	if err := validation.ValidateAndDecodeQueryParams(r, filters); err != nil {
		validation.RespondValidationError(w, err)
		return
	}

	limit := filters.Limit
	if limit == 0 {
		limit = defaultScanListLimit
	}

	scans, err := h.history.ListRecent(r.Context(), limit)
	if err != nil {
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusOK, models.ListScansResponse{Data: scans})
}
