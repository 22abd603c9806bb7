package models

// CreateConceptRequest is the body for POST /v1/concepts.
type CreateConceptRequest struct {
	Name string `json:"name" validate:"required,min=1,max=128,no_null_bytes"`
}

// ListConceptsResponse wraps the concept list.
type ListConceptsResponse struct {
	Data []Concept `json:"data"`
}

// ScanRequest is the body for POST /v1/scans. Neighbors defaults server-side
// when zero.
type ScanRequest struct {
	Concept   string `json:"concept" validate:"required,min=1,max=128,no_null_bytes"`
	Neighbors int    `json:"neighbors" validate:"omitempty,gte=1,lte=64"`
}

// LayoutFilters holds the query parameters for GET /v1/layout.
// Amplification overrides the configured drift amplification factor; nil
// keeps the server default.
type LayoutFilters struct {
	Amplification *float64 `form:"amplification" validate:"omitempty,gte=0"`
}

// ListScansFilters holds the query parameters for GET /v1/scans.
type ListScansFilters struct {
	Limit int `form:"limit" validate:"omitempty,gte=1,lte=500"`
}

// ListScansResponse wraps the recent-scan list.
type ListScansResponse struct {
	Data []Scan `json:"data"`
}
