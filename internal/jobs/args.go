// Package jobs provides River job workers for async embedding generation.
package jobs

import (
	"github.com/google/uuid"

	"github.com/driftmap/cartographer/internal/models"
)

// QueueEmbeddings is the River queue embedding jobs run on.
const QueueEmbeddings = "embeddings"

// EmbeddingJobArgs contains the arguments for one embedding generation job:
// produce the vector for one concept in one space.
type EmbeddingJobArgs struct {
	// ConceptID is the UUID of the concept to embed.
	ConceptID uuid.UUID `json:"concept_id"`

	// ConceptName is the text actually embedded. Carried in the args so the
	// worker does not need a concepts lookup on the hot path.
	ConceptName string `json:"concept_name"`

	// Space selects which embedding collection the vector belongs to
	// ("human" or "ai").
	Space models.Space `json:"space"`
}

// Kind returns the job type identifier for River.
func (EmbeddingJobArgs) Kind() string { return "concept_embedding" }
