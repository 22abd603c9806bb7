// Package repository contains pgx-backed data access for concepts,
// relationships, embeddings, and scans.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/driftmap/cartographer/internal/drifterrors"
	"github.com/driftmap/cartographer/internal/models"
)

// ConceptsRepository handles data access for the concepts table.
type ConceptsRepository struct {
	db *pgxpool.Pool
}

// NewConceptsRepository creates a new concepts repository.
func NewConceptsRepository(db *pgxpool.Pool) *ConceptsRepository {
	return &ConceptsRepository{db: db}
}

// Upsert inserts a concept by name, returning the stored row. Names are
// trimmed and stored lowercase so the join key is stable across callers.
func (r *ConceptsRepository) Upsert(ctx context.Context, name string) (*models.Concept, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, drifterrors.NewValidationError("name", "concept name cannot be empty")
	}

	now := time.Now()

	var concept models.Concept

	err := r.db.QueryRow(ctx, `
		INSERT INTO concepts (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (name) DO UPDATE SET updated_at = $3
		RETURNING id, name, created_at, updated_at`,
		uuid.New(), name, now,
	).Scan(&concept.ID, &concept.Name, &concept.CreatedAt, &concept.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("concepts upsert: %w", err)
	}

	return &concept, nil
}

// GetByName returns the concept with the given name.
func (r *ConceptsRepository) GetByName(ctx context.Context, name string) (*models.Concept, error) {
	name = strings.ToLower(strings.TrimSpace(name))

	var concept models.Concept

	err := r.db.QueryRow(ctx,
		`SELECT id, name, created_at, updated_at FROM concepts WHERE name = $1`,
		name,
	).Scan(&concept.ID, &concept.Name, &concept.CreatedAt, &concept.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, drifterrors.NewNotFoundError("concept", fmt.Sprintf("concept %q not found", name))
		}

		return nil, fmt.Errorf("get concept by name: %w", err)
	}

	return &concept, nil
}

// List returns all concepts ordered by name.
func (r *ConceptsRepository) List(ctx context.Context) ([]models.Concept, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, created_at, updated_at FROM concepts ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("list concepts: %w", err)
	}
	defer rows.Close()

	var concepts []models.Concept

	for rows.Next() {
		var c models.Concept
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan concept: %w", err)
		}

		concepts = append(concepts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating concepts: %w", err)
	}

	return concepts, nil
}

// ListMissingEmbeddings returns concepts with no embedding row for the given
// space, i.e. the backfill work list.
func (r *ConceptsRepository) ListMissingEmbeddings(ctx context.Context, space models.Space) ([]models.Concept, error) {
	rows, err := r.db.Query(ctx, `
		SELECT c.id, c.name, c.created_at, c.updated_at FROM concepts c
		WHERE NOT EXISTS (
		  SELECT 1 FROM embeddings e
		  WHERE e.concept_id = c.id AND e.space = $1
		)
		ORDER BY c.name`, string(space))
	if err != nil {
		return nil, fmt.Errorf("list concepts missing embeddings: %w", err)
	}
	defer rows.Close()

	var concepts []models.Concept

	for rows.Next() {
		var c models.Concept
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan concept: %w", err)
		}

		concepts = append(concepts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating concepts: %w", err)
	}

	return concepts, nil
}
