// Package drifterrors provides sentinel and custom error types for the application.
package drifterrors

import "fmt"

// ErrNotFound represents a "not found" error.
// Use when a requested resource doesn't exist.
var ErrNotFound = &NotFoundError{}

// NotFoundError is a sentinel error for resources that are not found.
type NotFoundError struct {
	Resource string
	Message  string
}

// NewNotFoundError creates a new NotFoundError with a custom message.
func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		Message:  message,
	}
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Resource != "" {
		return e.Resource + " not found"
	}

	return "resource not found"
}

// Is implements the error interface for error comparison.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)

	return ok
}

// ErrValidation represents a validation error.
// Use when client input fails validation.
var ErrValidation = &ValidationError{}

// ValidationError is a sentinel error for validation failures.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new ValidationError with a custom message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Field != "" {
		return "validation failed for field: " + e.Field
	}

	return "validation error"
}

// Is implements the error interface for error comparison.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)

	return ok
}

// ErrInsufficientOverlap is the sentinel for alignment calls with fewer than
// the minimum required shared concepts. Rigid alignment in 3D is
// underdetermined below 3 corresponding points.
var ErrInsufficientOverlap = &InsufficientOverlapError{}

// InsufficientOverlapError reports how many shared concepts were found and how many are required.
type InsufficientOverlapError struct {
	Shared   int
	Required int
}

// NewInsufficientOverlapError creates an InsufficientOverlapError.
func NewInsufficientOverlapError(shared, required int) *InsufficientOverlapError {
	return &InsufficientOverlapError{Shared: shared, Required: required}
}

// Error implements the error interface.
func (e *InsufficientOverlapError) Error() string {
	if e.Required > 0 {
		return fmt.Sprintf("need at least %d shared concepts for alignment, got %d", e.Required, e.Shared)
	}

	return "insufficient shared concepts for alignment"
}

// Is implements the error interface for error comparison.
func (e *InsufficientOverlapError) Is(target error) bool {
	_, ok := target.(*InsufficientOverlapError)

	return ok
}

// ErrEmptyEmbeddingSet is the sentinel for a space with no usable (non-zero-norm) vectors.
// Fatal to the mode that needed that space; other modes may still succeed.
var ErrEmptyEmbeddingSet = &EmptyEmbeddingSetError{}

// EmptyEmbeddingSetError names the embedding space that had no usable vectors.
type EmptyEmbeddingSetError struct {
	Space string
}

// NewEmptyEmbeddingSetError creates an EmptyEmbeddingSetError for the given space.
func NewEmptyEmbeddingSetError(space string) *EmptyEmbeddingSetError {
	return &EmptyEmbeddingSetError{Space: space}
}

// Error implements the error interface.
func (e *EmptyEmbeddingSetError) Error() string {
	if e.Space != "" {
		return "no usable embeddings in space: " + e.Space
	}

	return "no usable embeddings"
}

// Is implements the error interface for error comparison.
func (e *EmptyEmbeddingSetError) Is(target error) bool {
	_, ok := target.(*EmptyEmbeddingSetError)

	return ok
}

// ErrNoLayoutData is the sentinel for a layout request where every mode failed
// (e.g. both embedding collections are empty). Callers map it to a "no data" response.
var ErrNoLayoutData = &NoLayoutDataError{}

// NoLayoutDataError is a sentinel error for orchestration runs that produced no output at all.
type NoLayoutDataError struct {
	Message string
}

// NewNoLayoutDataError creates a NoLayoutDataError with a custom message.
func NewNoLayoutDataError(message string) *NoLayoutDataError {
	return &NoLayoutDataError{Message: message}
}

// Error implements the error interface.
func (e *NoLayoutDataError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return "no layout data"
}

// Is implements the error interface for error comparison.
func (e *NoLayoutDataError) Is(target error) bool {
	_, ok := target.(*NoLayoutDataError)

	return ok
}
