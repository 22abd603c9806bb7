package models

import (
	"time"

	"github.com/google/uuid"
)

// Space names the two embedding collections being compared.
type Space string

const (
	// SpaceHuman is the human-baseline encoder collection.
	SpaceHuman Space = "human"
	// SpaceAI is the alternative (AI) encoder collection.
	SpaceAI Space = "ai"
)

// Concept is a single semantic unit (word or phrase) tracked across both embedding spaces.
// Name is the join key used by graphs, coordinate sets, and alignment.
type Concept struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Relationship is a weighted edge between two concepts with per-space distances.
// Delta is |HumanDistance - AIDistance|, the per-pair divergence signal.
type Relationship struct {
	ID            uuid.UUID `json:"id"`
	ConceptA      string    `json:"concept_a"`
	ConceptB      string    `json:"concept_b"`
	HumanDistance float64   `json:"human_distance"`
	AIDistance    float64   `json:"ai_distance"`
	Delta         float64   `json:"delta"`
	Type          string    `json:"relationship_type"`
	CreatedAt     time.Time `json:"created_at"`
}

// RelationshipEdge is the minimal (source, target, distance) triple consumed by
// the layout core. Distance is non-negative; closer means more similar.
type RelationshipEdge struct {
	Source   string  `json:"source"`
	Target   string  `json:"target"`
	Distance float64 `json:"distance"`
}

// ConceptAggregate holds descriptive stats for one concept sourced from the
// relationship store. Annotates node records only; never influences geometry.
type ConceptAggregate struct {
	AvgDistance float64 `json:"avg_distance"`
	Connections int     `json:"connections"`
}

// Scan is one audit row for an interactive scan of an anchor concept.
type Scan struct {
	ID            uuid.UUID `json:"id"`
	AnchorConcept string    `json:"anchor_concept"`
	HumanVector   []string  `json:"human_vector"`
	AIVector      []string  `json:"ai_vector"`
	AvgDelta      float64   `json:"avg_delta"`
	CreatedAt     time.Time `json:"created_at"`
}

// SpaceEmbedding is one stored embedding row: one vector per concept per space.
type SpaceEmbedding struct {
	ID        uuid.UUID `json:"id"`
	ConceptID uuid.UUID `json:"concept_id"`
	Space     Space     `json:"space"`
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConceptNeighbor is one nearest-neighbor hit from the vector store.
type ConceptNeighbor struct {
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
}
