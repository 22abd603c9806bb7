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
)

// ConceptsService defines the interface for concept business logic.
type ConceptsService interface {
	Create(ctx context.Context, name string) (*models.Concept, error)
	Get(ctx context.Context, name string) (*models.Concept, error)
	List(ctx context.Context) ([]models.Concept, error)
}

// RelationshipLister lists the measured relationships touching a concept.
type RelationshipLister interface {
	ListForConcept(ctx context.Context, name string) ([]models.Relationship, error)
}

// ConceptsHandler handles HTTP requests for concepts.
type ConceptsHandler struct {
	service       ConceptsService
	relationships RelationshipLister
}

// NewConceptsHandler creates a new concepts handler.
func NewConceptsHandler(service ConceptsService, relationships RelationshipLister) *ConceptsHandler {
	return &ConceptsHandler{service: service, relationships: relationships}
}

// Create handles POST /v1/concepts
func (h *ConceptsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateConceptRequest
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

	concept, err := h.service.Create(r.Context(), req.Name)
	if err != nil {
		if errors.Is(err, drifterrors.ErrValidation) {
			response.RespondBadRequest(w, err.Error())
			return
		}
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusCreated, concept)
}

// Get handles GET /v1/concepts/{name}
func (h *ConceptsHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		response.RespondBadRequest(w, "Concept name is required")
		return
	}

	concept, err := h.service.Get(r.Context(), name)
	if err != nil {
		if errors.Is(err, drifterrors.ErrNotFound) {
			response.RespondNotFound(w, "Concept not found")
			return
		}
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusOK, concept)
}

// List handles GET /v1/concepts
func (h *ConceptsHandler) List(w http.ResponseWriter, r *http.Request) {
	concepts, err := h.service.List(r.Context())
	if err != nil {
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusOK, models.ListConceptsResponse{Data: concepts})
}

// Relationships handles GET /v1/concepts/{name}/relationships. Results are
// ordered by delta descending, so the most drifted pairs come first.
func (h *ConceptsHandler) Relationships(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		response.RespondBadRequest(w, "Concept name is required")
		return
	}

	rels, err := h.relationships.ListForConcept(r.Context(), name)
	if err != nil {
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusOK, map[string][]models.Relationship{"data": rels})
}
