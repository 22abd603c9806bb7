package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/driftmap/cartographer/internal/api/response"
	"github.com/driftmap/cartographer/internal/models"
)

// SpaceCounter reports how many embeddings are stored per space.
type SpaceCounter interface {
	CountBySpace(ctx context.Context) (map[models.Space]int, error)
}

// HealthResponse is the GET /health body. Embeddings carries the per-space
// stored-vector counts when the database is reachable.
type HealthResponse struct {
	Status     string         `json:"status"`
	Embeddings map[string]int `json:"embeddings,omitempty"`
}

// HealthHandler reports service health and embedding coverage.
type HealthHandler struct {
	embeddings SpaceCounter
}

// NewHealthHandler creates a health handler. embeddings may be nil, which
// reduces the check to a liveness probe.
func NewHealthHandler(embeddings SpaceCounter) *HealthHandler {
	return &HealthHandler{embeddings: embeddings}
}

// Check handles GET /health. A failing count query means the database is
// unreachable; the probe reports degraded with 503 so orchestrators stop
// routing traffic here.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	if h.embeddings == nil {
		response.RespondJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	counts, err := h.embeddings.CountBySpace(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "health check failed", "error", err)
		response.RespondJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "degraded"})

		return
	}

	embeddings := map[string]int{
		string(models.SpaceHuman): counts[models.SpaceHuman],
		string(models.SpaceAI):    counts[models.SpaceAI],
	}

	response.RespondJSON(w, http.StatusOK, HealthResponse{Status: "ok", Embeddings: embeddings})
}
