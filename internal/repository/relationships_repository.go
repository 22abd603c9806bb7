package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/driftmap/cartographer/internal/models"
)

// RelationshipsRepository handles data access for the relationships table.
// Pairs are stored with concept_a < concept_b so each undirected relationship
// occupies exactly one row.
type RelationshipsRepository struct {
	db *pgxpool.Pool
}

// NewRelationshipsRepository creates a new relationships repository.
func NewRelationshipsRepository(db *pgxpool.Pool) *RelationshipsRepository {
	return &RelationshipsRepository{db: db}
}

// Upsert inserts or updates the relationship for a concept pair. On conflict
// the per-space distances, delta, and type are replaced.
func (r *RelationshipsRepository) Upsert(ctx context.Context, rel *models.Relationship) error {
	a, b := rel.ConceptA, rel.ConceptB
	if a > b {
		a, b = b, a
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO relationships (id, concept_a, concept_b, human_distance, ai_distance, delta, relationship_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (concept_a, concept_b)
		DO UPDATE SET human_distance = EXCLUDED.human_distance,
		              ai_distance = EXCLUDED.ai_distance,
		              delta = EXCLUDED.delta,
		              relationship_type = EXCLUDED.relationship_type`,
		uuid.New(), a, b, rel.HumanDistance, rel.AIDistance, rel.Delta, rel.Type, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("relationships upsert: %w", err)
	}

	return nil
}

// ListAll returns every stored relationship.
func (r *RelationshipsRepository) ListAll(ctx context.Context) ([]models.Relationship, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, concept_a, concept_b, human_distance, ai_distance, delta, relationship_type, created_at
		FROM relationships
		ORDER BY concept_a, concept_b`)
	if err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}
	defer rows.Close()

	var rels []models.Relationship

	for rows.Next() {
		var rel models.Relationship
		if err := rows.Scan(
			&rel.ID, &rel.ConceptA, &rel.ConceptB,
			&rel.HumanDistance, &rel.AIDistance, &rel.Delta, &rel.Type, &rel.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}

		rels = append(rels, rel)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating relationships: %w", err)
	}

	return rels, nil
}

// ListForConcept returns relationships where the concept appears on either side.
func (r *RelationshipsRepository) ListForConcept(ctx context.Context, name string) ([]models.Relationship, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, concept_a, concept_b, human_distance, ai_distance, delta, relationship_type, created_at
		FROM relationships
		WHERE concept_a = $1 OR concept_b = $1
		ORDER BY delta DESC`, name)
	if err != nil {
		return nil, fmt.Errorf("list relationships for concept: %w", err)
	}
	defer rows.Close()

	var rels []models.Relationship

	for rows.Next() {
		var rel models.Relationship
		if err := rows.Scan(
			&rel.ID, &rel.ConceptA, &rel.ConceptB,
			&rel.HumanDistance, &rel.AIDistance, &rel.Delta, &rel.Type, &rel.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}

		rels = append(rels, rel)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating relationships: %w", err)
	}

	return rels, nil
}

// Aggregates returns per-concept descriptive stats over the relationship
// table: average human distance and connection count, with the concept
// counted in both pair positions.
func (r *RelationshipsRepository) Aggregates(ctx context.Context) (map[string]models.ConceptAggregate, error) {
	rows, err := r.db.Query(ctx, `
		SELECT concept, AVG(human_distance) AS avg_distance, COUNT(*) AS connections
		FROM (
		  SELECT concept_a AS concept, human_distance FROM relationships
		  UNION ALL
		  SELECT concept_b AS concept, human_distance FROM relationships
		) sides
		GROUP BY concept`)
	if err != nil {
		return nil, fmt.Errorf("relationship aggregates: %w", err)
	}
	defer rows.Close()

	aggregates := make(map[string]models.ConceptAggregate)

	for rows.Next() {
		var (
			concept string
			agg     models.ConceptAggregate
		)

		if err := rows.Scan(&concept, &agg.AvgDistance, &agg.Connections); err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}

		aggregates[concept] = agg
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating aggregates: %w", err)
	}

	return aggregates, nil
}
