// Package response writes RFC 7807 Problem Details responses, including the
// typed problems of the drift error taxonomy.
package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/driftmap/cartographer/internal/drifterrors"
)

// Problem type URIs for the layout error taxonomy. Relative references,
// resolved against the request URI per RFC 7807 §3.1; clients switch on these
// instead of parsing titles.
const (
	ProblemTypeNoLayoutData        = "/problems/no-layout-data"
	ProblemTypeEmptyEmbeddingSet   = "/problems/empty-embedding-set"
	ProblemTypeInsufficientOverlap = "/problems/insufficient-overlap"
)

// ErrorDetail is a single field-level entry in a Problem Details response.
type ErrorDetail struct {
	Location string      `json:"location,omitempty"`
	Message  string      `json:"message,omitempty"`
	Value    interface{} `json:"value,omitempty"`
}

// ProblemDetails is an RFC 7807 Problem Details error body.
type ProblemDetails struct {
	Type     string        `json:"type,omitempty"`
	Title    string        `json:"title"`
	Status   int           `json:"status"`
	Detail   string        `json:"detail,omitempty"`
	Instance string        `json:"instance,omitempty"`
	Errors   []ErrorDetail `json:"errors,omitempty"`
}

// RespondProblem writes a Problem Details response with an explicit type URI.
func RespondProblem(w http.ResponseWriter, statusCode int, problemType, title, detail string) {
	problem := ProblemDetails{
		Type:   problemType,
		Title:  title,
		Status: statusCode,
		Detail: detail,
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(problem); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}

// RespondError writes a Problem Details response with the generic about:blank type.
func RespondError(w http.ResponseWriter, statusCode int, title string, detail string) {
	RespondProblem(w, statusCode, "about:blank", title, detail)
}

// RespondDriftError maps the domain error taxonomy to typed problems. Layout
// data errors come out as 404 with a specific type; anything unrecognized is a
// generic 500 so internal detail does not leak.
func RespondDriftError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, drifterrors.ErrNoLayoutData):
		RespondProblem(w, http.StatusNotFound, ProblemTypeNoLayoutData, "No Layout Data", err.Error())
	case errors.Is(err, drifterrors.ErrEmptyEmbeddingSet):
		RespondProblem(w, http.StatusNotFound, ProblemTypeEmptyEmbeddingSet, "Empty Embedding Set", err.Error())
	case errors.Is(err, drifterrors.ErrInsufficientOverlap):
		RespondProblem(w, http.StatusUnprocessableEntity, ProblemTypeInsufficientOverlap, "Insufficient Overlap", err.Error())
	case errors.Is(err, drifterrors.ErrNotFound):
		RespondNotFound(w, err.Error())
	case errors.Is(err, drifterrors.ErrValidation):
		RespondBadRequest(w, err.Error())
	default:
		RespondInternalServerError(w, "An unexpected error occurred")
	}
}

// RespondBadRequest writes a 400 Bad Request error response
func RespondBadRequest(w http.ResponseWriter, detail string) {
	RespondError(w, http.StatusBadRequest, "Bad Request", detail)
}

// RespondUnauthorized writes a 401 Unauthorized error response
func RespondUnauthorized(w http.ResponseWriter, detail string) {
	RespondError(w, http.StatusUnauthorized, "Unauthorized", detail)
}

// RespondNotFound writes a 404 Not Found error response
func RespondNotFound(w http.ResponseWriter, detail string) {
	RespondError(w, http.StatusNotFound, "Not Found", detail)
}

// RespondInternalServerError writes a 500 Internal Server Error response
func RespondInternalServerError(w http.ResponseWriter, detail string) {
	RespondError(w, http.StatusInternalServerError, "Internal Server Error", detail)
}

// RespondUnprocessableEntity writes a 422 Unprocessable Entity error response
func RespondUnprocessableEntity(w http.ResponseWriter, detail string) {
	RespondError(w, http.StatusUnprocessableEntity, "Validation Error", detail)
}

// RespondJSON writes a JSON response directly without wrapping
func RespondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}
