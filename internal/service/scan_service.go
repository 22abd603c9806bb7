package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/driftmap/cartographer/internal/drifterrors"
	"github.com/driftmap/cartographer/internal/models"
	"github.com/driftmap/cartographer/internal/observability"
	pkgembeddings "github.com/driftmap/cartographer/pkg/embeddings"
)

const defaultScanNeighbors = 8

// ConceptSource resolves concept names to stored concepts.
type ConceptSource interface {
	GetByName(ctx context.Context, name string) (*models.Concept, error)
}

// VectorSource provides per-concept vector reads and nearest-neighbor search.
type VectorSource interface {
	GetByConceptAndSpace(ctx context.Context, conceptID uuid.UUID, space models.Space) ([]float32, error)
	Nearest(ctx context.Context, space models.Space, query []float32, limit int, excludeName string) ([]models.ConceptNeighbor, error)
}

// RelationshipWriter persists scan-discovered relationships.
type RelationshipWriter interface {
	Upsert(ctx context.Context, rel *models.Relationship) error
}

// ScanWriter persists scan audit rows.
type ScanWriter interface {
	Insert(ctx context.Context, scan *models.Scan) error
}

// LayoutInvalidator drops cached layouts after a write. May be nil.
type LayoutInvalidator interface {
	InvalidateCache()
}

// ScanPair is one neighbor of the anchor with its distance in both spaces.
type ScanPair struct {
	Name          string  `json:"name"`
	HumanDistance float64 `json:"human_distance"`
	AIDistance    float64 `json:"ai_distance"`
	Delta         float64 `json:"delta"`
}

// ScanResult is the outcome of scanning one anchor concept.
type ScanResult struct {
	Anchor         string     `json:"anchor"`
	HumanNeighbors []string   `json:"human_neighbors"`
	AINeighbors    []string   `json:"ai_neighbors"`
	Pairs          []ScanPair `json:"pairs"`
	AvgDelta       float64    `json:"avg_delta"`
}

// ScanService performs interactive scans: given an anchor concept it pulls the
// nearest neighbors in both spaces, measures how far each neighbor sits from
// the anchor in each space, and persists the resulting relationships plus an
// audit row.
type ScanService struct {
	concepts      ConceptSource
	vectors       VectorSource
	relationships RelationshipWriter
	scans         ScanWriter
	invalidator   LayoutInvalidator
	metrics       observability.LayoutMetrics
	logger        *slog.Logger
}

// NewScanService creates a scan service. invalidator and metrics may be nil.
func NewScanService(
	concepts ConceptSource,
	vectors VectorSource,
	relationships RelationshipWriter,
	scans ScanWriter,
	invalidator LayoutInvalidator,
	metrics observability.LayoutMetrics,
	logger *slog.Logger,
) *ScanService {
	if logger == nil {
		logger = slog.Default()
	}

	return &ScanService{
		concepts:      concepts,
		vectors:       vectors,
		relationships: relationships,
		scans:         scans,
		invalidator:   invalidator,
		metrics:       metrics,
		logger:        logger,
	}
}

// Scan runs one scan of the anchor concept. neighbors <= 0 uses the default.
// Neighbors missing an embedding in either space are logged and skipped, not
// fatal.
func (s *ScanService) Scan(ctx context.Context, anchorName string, neighbors int) (*ScanResult, error) {
	result, err := s.scan(ctx, anchorName, neighbors)

	if s.metrics != nil {
		outcome := observability.OutcomeSuccess
		if err != nil {
			outcome = observability.OutcomeError
		}

		s.metrics.RecordScan(ctx, outcome)
	}

	return result, err
}

func (s *ScanService) scan(ctx context.Context, anchorName string, neighbors int) (*ScanResult, error) {
	if neighbors <= 0 {
		neighbors = defaultScanNeighbors
	}

	anchor, err := s.concepts.GetByName(ctx, anchorName)
	if err != nil {
		return nil, err
	}

	humanVec, err := s.vectors.GetByConceptAndSpace(ctx, anchor.ID, models.SpaceHuman)
	if err != nil {
		return nil, fmt.Errorf("anchor human embedding: %w", err)
	}

	aiVec, err := s.vectors.GetByConceptAndSpace(ctx, anchor.ID, models.SpaceAI)
	if err != nil {
		return nil, fmt.Errorf("anchor ai embedding: %w", err)
	}

	humanNbrs, err := s.vectors.Nearest(ctx, models.SpaceHuman, humanVec, neighbors, anchor.Name)
	if err != nil {
		return nil, fmt.Errorf("human neighbors: %w", err)
	}

	aiNbrs, err := s.vectors.Nearest(ctx, models.SpaceAI, aiVec, neighbors, anchor.Name)
	if err != nil {
		return nil, fmt.Errorf("ai neighbors: %w", err)
	}

	result := &ScanResult{
		Anchor:         anchor.Name,
		HumanNeighbors: neighborNames(humanNbrs),
		AINeighbors:    neighborNames(aiNbrs),
	}

	for _, name := range unionInOrder(result.HumanNeighbors, result.AINeighbors) {
		pair, err := s.measurePair(ctx, humanVec, aiVec, name)
		if err != nil {
			if errors.Is(err, drifterrors.ErrNotFound) {
				s.logger.WarnContext(ctx, "scan neighbor skipped, missing embedding",
					"anchor", anchor.Name, "neighbor", name)

				continue
			}

			return nil, err
		}

		if err := s.relationships.Upsert(ctx, &models.Relationship{
			ConceptA:      anchor.Name,
			ConceptB:      pair.Name,
			HumanDistance: pair.HumanDistance,
			AIDistance:    pair.AIDistance,
			Delta:         pair.Delta,
			Type:          "scan",
		}); err != nil {
			return nil, err
		}

		result.Pairs = append(result.Pairs, pair)
	}

	if len(result.Pairs) > 0 {
		var total float64
		for _, pair := range result.Pairs {
			total += pair.Delta
		}

		result.AvgDelta = total / float64(len(result.Pairs))
	}

	if err := s.scans.Insert(ctx, &models.Scan{
		AnchorConcept: anchor.Name,
		HumanVector:   result.HumanNeighbors,
		AIVector:      result.AINeighbors,
		AvgDelta:      result.AvgDelta,
	}); err != nil {
		return nil, err
	}

	if s.invalidator != nil {
		s.invalidator.InvalidateCache()
	}

	s.logger.InfoContext(ctx, "scan completed",
		"anchor", anchor.Name, "pairs", len(result.Pairs), "avg_delta", result.AvgDelta)

	return result, nil
}

// measurePair computes the anchor→neighbor distance in both spaces.
func (s *ScanService) measurePair(
	ctx context.Context, anchorHuman, anchorAI []float32, neighborName string,
) (ScanPair, error) {
	neighbor, err := s.concepts.GetByName(ctx, neighborName)
	if err != nil {
		return ScanPair{}, err
	}

	nbrHuman, err := s.vectors.GetByConceptAndSpace(ctx, neighbor.ID, models.SpaceHuman)
	if err != nil {
		return ScanPair{}, err
	}

	nbrAI, err := s.vectors.GetByConceptAndSpace(ctx, neighbor.ID, models.SpaceAI)
	if err != nil {
		return ScanPair{}, err
	}

	humanDist := pkgembeddings.CosineDistance(anchorHuman, nbrHuman)
	aiDist := pkgembeddings.CosineDistance(anchorAI, nbrAI)

	return ScanPair{
		Name:          neighbor.Name,
		HumanDistance: humanDist,
		AIDistance:    aiDist,
		Delta:         absFloat(humanDist - aiDist),
	}, nil
}

func neighborNames(neighbors []models.ConceptNeighbor) []string {
	names := make([]string, len(neighbors))
	for i, n := range neighbors {
		names[i] = n.Name
	}

	return names
}

// unionInOrder merges two neighbor lists keeping first-seen order.
func unionInOrder(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))

	for _, name := range append(append([]string{}, a...), b...) {
		if _, ok := seen[name]; ok {
			continue
		}

		seen[name] = struct{}{}
		out = append(out, name)
	}

	return out
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}

	return v
}
