package models

// Vec3 is a 3D coordinate. Serialized as a JSON array for renderer consumption.
type Vec3 [3]float64

// SphereNode holds one concept's aligned positions from the shared-graph mode:
// both spaces laid out on the same relationship graph, constrained alignment.
// Fallback is true when this concept was absent from the sphere run and the
// positions were substituted from another mode; its Drift is then not a
// measured sphere-mode value.
type SphereNode struct {
	PosHuman Vec3    `json:"pos_human"`
	PosAI    Vec3    `json:"pos_ai"`
	Drift    float64 `json:"drift"`
	Fallback bool    `json:"fallback,omitempty"`
}

// OrganicNode holds one concept's aligned positions from the dual-graph mode:
// independent k-NN graphs per space, identical physics, authentic (scale
// preserving) alignment. PosAIAmplified is the drift-amplified AI position.
type OrganicNode struct {
	PosHuman       Vec3    `json:"pos_human"`
	PosAI          Vec3    `json:"pos_ai"`
	PosAIAmplified *Vec3   `json:"pos_ai_amplified,omitempty"`
	Drift          float64 `json:"drift"`
	Fallback       bool    `json:"fallback,omitempty"`
}

// ManifoldNode holds one concept's aligned positions from direct nonlinear
// reduction of the raw embedding matrices (no relationship graph).
type ManifoldNode struct {
	PosHuman Vec3    `json:"pos_human"`
	PosAI    Vec3    `json:"pos_ai"`
	Drift    float64 `json:"drift"`
	Fallback bool    `json:"fallback,omitempty"`
}

// NodeRecord is the final per-concept output unit: every computed coordinate
// variant plus descriptive aggregates from the relationship store. A nil
// variant means that mode did not run at all.
type NodeRecord struct {
	Name        string        `json:"name"`
	Sphere      *SphereNode   `json:"sphere,omitempty"`
	Organic     *OrganicNode  `json:"organic,omitempty"`
	Manifold    *ManifoldNode `json:"manifold,omitempty"`
	Drift       float64       `json:"drift"`
	AvgDistance float64       `json:"avg_distance"`
	Connections int           `json:"connections"`
}

// LayoutMetadata is the per-run metadata block attached to a layout document.
type LayoutMetadata struct {
	DisparitySphere   *float64 `json:"disparity_sphere,omitempty"`
	DisparityOrganic  *float64 `json:"disparity_organic,omitempty"`
	DisparityManifold *float64 `json:"disparity_manifold,omitempty"`
	NumConcepts       int      `json:"num_concepts"`
	HumanModel        string   `json:"human_model"`
	AIModel           string   `json:"ai_model"`
	SphereMethod      string   `json:"sphere_method,omitempty"`
	OrganicMethod     string   `json:"organic_method,omitempty"`
	ManifoldMethod    string   `json:"manifold_method,omitempty"`
}

// LayoutDocument is the orchestrator's structured output: node entries sorted
// most-divergent-first plus the metadata block. This is the contract any
// presentation layer (HTTP API, file export) serializes.
type LayoutDocument struct {
	Nodes    []NodeRecord   `json:"nodes"`
	Metadata LayoutMetadata `json:"metadata"`
}
