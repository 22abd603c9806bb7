package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/driftmap/cartographer/internal/models"
)

// ScansRepository handles data access for the scans audit table.
type ScansRepository struct {
	db *pgxpool.Pool
}

// NewScansRepository creates a new scans repository.
func NewScansRepository(db *pgxpool.Pool) *ScansRepository {
	return &ScansRepository{db: db}
}

// Insert records one scan of an anchor concept. The neighbor name lists are
// stored as text arrays in scan order (nearest first).
func (r *ScansRepository) Insert(ctx context.Context, scan *models.Scan) error {
	if scan.ID == uuid.Nil {
		scan.ID = uuid.New()
	}

	if scan.CreatedAt.IsZero() {
		scan.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO scans (id, anchor_concept, human_vector, ai_vector, avg_delta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		scan.ID, scan.AnchorConcept, scan.HumanVector, scan.AIVector, scan.AvgDelta, scan.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("scans insert: %w", err)
	}

	return nil
}

// ListRecent returns the most recent scans, newest first.
func (r *ScansRepository) ListRecent(ctx context.Context, limit int) ([]models.Scan, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, anchor_concept, human_vector, ai_vector, avg_delta, created_at
		FROM scans
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent scans: %w", err)
	}
	defer rows.Close()

	var scans []models.Scan

	for rows.Next() {
		var s models.Scan
		if err := rows.Scan(&s.ID, &s.AnchorConcept, &s.HumanVector, &s.AIVector, &s.AvgDelta, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan scans row: %w", err)
		}

		scans = append(scans, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating scans: %w", err)
	}

	return scans, nil
}
