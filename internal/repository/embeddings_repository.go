package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/driftmap/cartographer/internal/drifterrors"
	"github.com/driftmap/cartographer/internal/models"
)

// EmbeddingsRepository handles data access for the embeddings table: one
// vector per (concept, space).
type EmbeddingsRepository struct {
	db *pgxpool.Pool
}

// NewEmbeddingsRepository creates a new embeddings repository.
func NewEmbeddingsRepository(db *pgxpool.Pool) *EmbeddingsRepository {
	return &EmbeddingsRepository{db: db}
}

// Upsert inserts or updates the embedding for (concept_id, space). On conflict
// updates embedding, model, and updated_at.
// Uses halfvec storage (2 bytes per dimension); pgvector-go converts float32
// to float16 when encoding.
func (r *EmbeddingsRepository) Upsert(
	ctx context.Context, conceptID uuid.UUID, space models.Space, model string, embedding []float32,
) error {
	vec := pgvector.NewHalfVector(embedding)
	now := time.Now()

	_, err := r.db.Exec(ctx, `
		INSERT INTO embeddings (id, concept_id, space, embedding, model, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (concept_id, space)
		DO UPDATE SET embedding = EXCLUDED.embedding, model = EXCLUDED.model, updated_at = $6`,
		uuid.New(), conceptID, string(space), vec, model, now,
	)
	if err != nil {
		return fmt.Errorf("embeddings upsert: %w", err)
	}

	return nil
}

// GetByConceptAndSpace returns the stored embedding for the given concept and space.
func (r *EmbeddingsRepository) GetByConceptAndSpace(
	ctx context.Context, conceptID uuid.UUID, space models.Space,
) ([]float32, error) {
	var vec pgvector.HalfVector

	err := r.db.QueryRow(ctx,
		`SELECT embedding FROM embeddings WHERE concept_id = $1 AND space = $2`,
		conceptID, string(space),
	).Scan(&vec)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, drifterrors.NewNotFoundError("embedding",
				fmt.Sprintf("no %s embedding for concept %s", space, conceptID))
		}

		return nil, fmt.Errorf("get embedding: %w", err)
	}

	return vec.Slice(), nil
}

// FetchSpace returns every embedding in the given space keyed by concept name.
// This is the bulk read feeding graph construction and layout.
func (r *EmbeddingsRepository) FetchSpace(ctx context.Context, space models.Space) (map[string][]float32, error) {
	rows, err := r.db.Query(ctx, `
		SELECT c.name, e.embedding
		FROM embeddings e
		INNER JOIN concepts c ON c.id = e.concept_id
		WHERE e.space = $1`, string(space))
	if err != nil {
		return nil, fmt.Errorf("fetch %s space: %w", space, err)
	}
	defer rows.Close()

	vectors := make(map[string][]float32)

	for rows.Next() {
		var (
			name string
			vec  pgvector.HalfVector
		)

		if err := rows.Scan(&name, &vec); err != nil {
			return nil, fmt.Errorf("scan space embedding: %w", err)
		}

		vectors[name] = vec.Slice()
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s space: %w", space, err)
	}

	return vectors, nil
}

// Nearest returns the concept names and cosine distances of the nearest
// neighbors to queryEmbedding within one space, nearest first. Uses the <=>
// operator. excludeName optionally removes the anchor concept itself from the
// results.
func (r *EmbeddingsRepository) Nearest(
	ctx context.Context, space models.Space, queryEmbedding []float32, limit int, excludeName string,
) ([]models.ConceptNeighbor, error) {
	queryVec := pgvector.NewHalfVector(queryEmbedding)

	rows, err := r.db.Query(ctx, `
		SELECT c.name, (e.embedding <=> $1) AS distance
		FROM embeddings e
		INNER JOIN concepts c ON c.id = e.concept_id
		WHERE e.space = $2 AND c.name != $3
		ORDER BY e.embedding <=> $1
		LIMIT $4`, queryVec, string(space), excludeName, limit)
	if err != nil {
		return nil, fmt.Errorf("nearest in %s space: %w", space, err)
	}
	defer rows.Close()

	var neighbors []models.ConceptNeighbor

	for rows.Next() {
		var n models.ConceptNeighbor
		if err := rows.Scan(&n.Name, &n.Distance); err != nil {
			return nil, fmt.Errorf("scan neighbor: %w", err)
		}

		neighbors = append(neighbors, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating neighbors: %w", err)
	}

	return neighbors, nil
}

// CountBySpace returns the number of embedding rows per space.
func (r *EmbeddingsRepository) CountBySpace(ctx context.Context) (map[models.Space]int, error) {
	rows, err := r.db.Query(ctx,
		`SELECT space, COUNT(*) FROM embeddings GROUP BY space`)
	if err != nil {
		return nil, fmt.Errorf("count embeddings by space: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Space]int)

	for rows.Next() {
		var (
			space string
			n     int
		)

		if err := rows.Scan(&space, &n); err != nil {
			return nil, fmt.Errorf("scan space count: %w", err)
		}

		counts[models.Space(space)] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating space counts: %w", err)
	}

	return counts, nil
}
