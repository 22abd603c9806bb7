package handlers

import (
	"context"
	"net/http"

	"github.com/driftmap/cartographer/internal/api/response"
	"github.com/driftmap/cartographer/internal/api/validation"
	"github.com/driftmap/cartographer/internal/models"
	"github.com/driftmap/cartographer/internal/service"
)

// LayoutProvider computes (or returns a cached) dual-space layout document.
type LayoutProvider interface {
	GetLayout(ctx context.Context, opts service.LayoutOptions) (*models.LayoutDocument, error)
}

// LayoutHandler serves the galaxy layout document.
type LayoutHandler struct {
	provider LayoutProvider
	defaults service.LayoutOptions
}

// NewLayoutHandler creates a layout handler. defaults carries the configured
// amplification factor and the model labels stamped into layout metadata.
func NewLayoutHandler(provider LayoutProvider, defaults service.LayoutOptions) *LayoutHandler {
	return &LayoutHandler{provider: provider, defaults: defaults}
}

// Get handles GET /v1/layout. The amplification query parameter overrides the
// configured drift amplification for this request; 0 disables amplification.
func (h *LayoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	filters := &models.LayoutFilters{}
	if err := validation.ValidateAndDecodeQueryParams(r, filters); err != nil {
		validation.RespondValidationError(w, err)
		return
	}

	opts := h.defaults
	if filters.Amplification != nil {
		opts.Amplification = *filters.Amplification
	}

	doc, err := h.provider.GetLayout(r.Context(), opts)
	if err != nil {
		response.RespondDriftError(w, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, doc)
}
