package service

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/driftmap/cartographer/internal/drifterrors"
	"github.com/driftmap/cartographer/internal/geometry"
	"github.com/driftmap/cartographer/internal/models"
	"github.com/driftmap/cartographer/internal/observability"
	"github.com/driftmap/cartographer/pkg/cache"
)

// EmbeddingSource provides bulk access to one embedding space.
type EmbeddingSource interface {
	FetchSpace(ctx context.Context, space models.Space) (map[string][]float32, error)
}

// RelationshipSource provides the shared relationship set and per-concept
// descriptive aggregates.
type RelationshipSource interface {
	ListAll(ctx context.Context) ([]models.Relationship, error)
	Aggregates(ctx context.Context) (map[string]models.ConceptAggregate, error)
}

// Per-mode hyperparameters. The human and AI runs of one mode differ only in
// seed; everything else is identical so positional differences reflect the
// embeddings, not the pipeline.
const (
	seedHuman = 42
	seedAI    = 43

	sphereSpringK    = 2.0
	sphereIterations = 150

	organicNeighbors  = 8
	organicSpringK    = 2.0
	organicIterations = 200

	layoutCacheName    = "layout_document"
	layoutCacheEntries = 16
	layoutCacheTTL     = 15 * time.Minute
)

// LayoutOptions selects the variable parts of a layout run. Mode
// hyperparameters and seeds are fixed; only drift amplification and the model
// labels recorded in metadata vary per caller.
type LayoutOptions struct {
	// Amplification extrapolates the organic AI positions away from the
	// human positions. Zero disables amplification.
	Amplification float64
	HumanModel    string
	AIModel       string
}

// LayoutService orchestrates the full dual-layout pipeline: load both
// embedding spaces, run the sphere, organic, and manifold modes, align each
// pair of point clouds, and merge everything into one ranked node list.
//
// Each run is a pure function of the stored embeddings, relationships, and
// options, so results are cached under a content hash of those inputs.
type LayoutService struct {
	embeddings    EmbeddingSource
	relationships RelationshipSource
	cache         *cache.LoaderCache[string, *models.LayoutDocument]
	cacheMetrics  observability.CacheMetrics
	layoutMetrics observability.LayoutMetrics
	logger        *slog.Logger
}

// NewLayoutService creates a layout service. cacheMetrics and layoutMetrics
// may be nil when metrics are disabled.
func NewLayoutService(
	embeddings EmbeddingSource,
	relationships RelationshipSource,
	cacheMetrics observability.CacheMetrics,
	layoutMetrics observability.LayoutMetrics,
	logger *slog.Logger,
) *LayoutService {
	if logger == nil {
		logger = slog.Default()
	}

	return &LayoutService{
		embeddings:    embeddings,
		relationships: relationships,
		cache: cache.NewLoaderCache[string, *models.LayoutDocument](
			layoutCacheEntries, layoutCacheTTL, func(k string) string { return k },
		),
		cacheMetrics:  cacheMetrics,
		layoutMetrics: layoutMetrics,
		logger:        logger,
	}
}

// GetLayout returns the layout document for the current stored data,
// recomputing only when the content hash of (embeddings, relationships,
// options) has no cached result.
func (s *LayoutService) GetLayout(ctx context.Context, opts LayoutOptions) (*models.LayoutDocument, error) {
	human, ai, rels, aggregates, err := s.loadInputs(ctx)
	if err != nil {
		return nil, err
	}

	key := snapshotHash(human, ai, rels, opts)

	doc, hit, err := s.cache.GetWithStats(ctx, key, func(ctx context.Context, _ string) (*models.LayoutDocument, error) {
		return s.compute(ctx, human, ai, rels, aggregates, opts)
	})
	if err != nil {
		return nil, err
	}

	if s.cacheMetrics != nil {
		if hit {
			s.cacheMetrics.RecordHit(ctx, layoutCacheName)
		} else {
			s.cacheMetrics.RecordMiss(ctx, layoutCacheName)
		}
	}

	return doc, nil
}

// ComputeLayout runs the pipeline without consulting the cache.
func (s *LayoutService) ComputeLayout(ctx context.Context, opts LayoutOptions) (*models.LayoutDocument, error) {
	human, ai, rels, aggregates, err := s.loadInputs(ctx)
	if err != nil {
		return nil, err
	}

	return s.compute(ctx, human, ai, rels, aggregates, opts)
}

// InvalidateCache drops all cached layout documents. Called after writes that
// change concepts, embeddings, or relationships.
func (s *LayoutService) InvalidateCache() {
	s.cache.InvalidateAll()
}

func (s *LayoutService) loadInputs(ctx context.Context) (
	human, ai map[string][]float32,
	rels []models.Relationship,
	aggregates map[string]models.ConceptAggregate,
	err error,
) {
	human, err = s.embeddings.FetchSpace(ctx, models.SpaceHuman)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load human space: %w", err)
	}

	ai, err = s.embeddings.FetchSpace(ctx, models.SpaceAI)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load ai space: %w", err)
	}

	rels, err = s.relationships.ListAll(ctx)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load relationships: %w", err)
	}

	aggregates, err = s.relationships.Aggregates(ctx)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load aggregates: %w", err)
	}

	return human, ai, rels, aggregates, nil
}

// modeResult is one mode's aligned output plus its per-concept drift.
type modeResult struct {
	human     map[string]models.Vec3
	ai        map[string]models.Vec3
	amplified map[string]models.Vec3
	drift     map[string]float64
	disparity float64
}

func (s *LayoutService) compute(
	ctx context.Context,
	human, ai map[string][]float32,
	rels []models.Relationship,
	aggregates map[string]models.ConceptAggregate,
	opts LayoutOptions,
) (*models.LayoutDocument, error) {
	if len(human) == 0 && len(ai) == 0 {
		return nil, drifterrors.NewNoLayoutDataError("no embeddings stored in either space")
	}

	start := time.Now()
	metadata := models.LayoutMetadata{
		HumanModel: opts.HumanModel,
		AIModel:    opts.AIModel,
	}

	sphere, err := s.sphereMode(human, ai, rels)
	if err != nil {
		s.logger.WarnContext(ctx, "sphere mode skipped", "error", err)
		s.recordRun(ctx, "sphere", observability.OutcomeSkipped)
	} else {
		metadata.DisparitySphere = &sphere.disparity
		metadata.SphereMethod = "shared_graph_spring"
		s.recordRun(ctx, "sphere", observability.OutcomeSuccess)
	}

	organic, err := s.organicMode(human, ai, opts.Amplification)
	if err != nil {
		s.logger.WarnContext(ctx, "organic mode skipped", "error", err)
		s.recordRun(ctx, "organic", observability.OutcomeSkipped)
	} else {
		metadata.DisparityOrganic = &organic.disparity
		metadata.OrganicMethod = "dual_knn_spring"
		s.recordRun(ctx, "organic", observability.OutcomeSuccess)
	}

	manifold, err := s.manifoldMode(human, ai)
	if err != nil {
		s.logger.WarnContext(ctx, "manifold mode skipped", "error", err)
		s.recordRun(ctx, "manifold", observability.OutcomeSkipped)
	} else {
		metadata.DisparityManifold = &manifold.disparity
		metadata.ManifoldMethod = "umap_3d"
		s.recordRun(ctx, "manifold", observability.OutcomeSuccess)
	}

	if sphere == nil && organic == nil && manifold == nil {
		return nil, drifterrors.NewNoLayoutDataError("every layout mode failed")
	}

	nodes := mergeNodes(sphere, organic, manifold, aggregates)
	metadata.NumConcepts = len(nodes)

	if s.layoutMetrics != nil {
		s.layoutMetrics.RecordLayoutDuration(ctx, time.Since(start))
	}

	s.logger.InfoContext(ctx, "layout computed",
		"concepts", len(nodes),
		"sphere", sphere != nil,
		"organic", organic != nil,
		"manifold", manifold != nil,
		"duration", time.Since(start),
	)

	return &models.LayoutDocument{Nodes: nodes, Metadata: metadata}, nil
}

func (s *LayoutService) recordRun(ctx context.Context, mode, outcome string) {
	if s.layoutMetrics != nil {
		s.layoutMetrics.RecordLayoutRun(ctx, mode, outcome)
	}
}

// sphereMode lays both spaces out on the single shared relationship graph
// (human-side distances), differing only in seed, then aligns with the
// scale-normalizing policy. Holding the topology fixed isolates what the two
// encoders disagree about.
func (s *LayoutService) sphereMode(human, ai map[string][]float32, rels []models.Relationship) (*modeResult, error) {
	if len(rels) == 0 {
		return nil, drifterrors.NewNoLayoutDataError("no shared relationships stored")
	}

	edges := make([]models.RelationshipEdge, 0, len(rels))
	for _, rel := range rels {
		edges = append(edges, models.RelationshipEdge{
			Source:   rel.ConceptA,
			Target:   rel.ConceptB,
			Distance: rel.HumanDistance,
		})
	}

	humanCfg := geometry.SpringConfig{SpringK: sphereSpringK, Iterations: sphereIterations, Seed: seedHuman}
	aiCfg := geometry.SpringConfig{SpringK: sphereSpringK, Iterations: sphereIterations, Seed: seedAI}

	humanPos := geometry.Layout3D(human, edges, humanCfg)
	aiPos := geometry.Layout3D(ai, edges, aiCfg)

	aligned, err := geometry.Align(humanPos, aiPos, geometry.AlignConfig{
		PreserveScale: false,
		ViewScale:     geometry.ConstrainedViewScale,
	})
	if err != nil {
		return nil, fmt.Errorf("sphere alignment: %w", err)
	}

	return resultFromAlignment(aligned, nil), nil
}

// organicMode builds an independent k-NN graph per space and runs the same
// physics on each, so topology differences between the spaces survive into
// the layouts. Alignment preserves relative scale.
func (s *LayoutService) organicMode(human, ai map[string][]float32, amplification float64) (*modeResult, error) {
	humanEdges := geometry.BuildKNNGraph(human, organicNeighbors)
	if len(humanEdges) == 0 {
		return nil, drifterrors.NewEmptyEmbeddingSetError(string(models.SpaceHuman))
	}

	aiEdges := geometry.BuildKNNGraph(ai, organicNeighbors)
	if len(aiEdges) == 0 {
		return nil, drifterrors.NewEmptyEmbeddingSetError(string(models.SpaceAI))
	}

	humanCfg := geometry.SpringConfig{SpringK: organicSpringK, Iterations: organicIterations, Seed: seedHuman}
	aiCfg := geometry.SpringConfig{SpringK: organicSpringK, Iterations: organicIterations, Seed: seedAI}

	humanPos := geometry.Layout3D(human, humanEdges, humanCfg)
	aiPos := geometry.Layout3D(ai, aiEdges, aiCfg)

	aligned, err := geometry.Align(humanPos, aiPos, geometry.AlignConfig{
		PreserveScale: true,
		ViewScale:     geometry.AuthenticViewScale,
	})
	if err != nil {
		return nil, fmt.Errorf("organic alignment: %w", err)
	}

	var amplified map[string]models.Vec3
	if amplification > 0 {
		amplified = geometry.AmplifyDrift(aligned.Human, aligned.AI, amplification)
	}

	return resultFromAlignment(aligned, amplified), nil
}

// manifoldMode projects the raw embedding matrices directly, bypassing
// relationship graphs entirely, then aligns rotation-only.
func (s *LayoutService) manifoldMode(human, ai map[string][]float32) (*modeResult, error) {
	humanNames, humanMatrix := spaceMatrix(human)
	if len(humanNames) == 0 {
		return nil, drifterrors.NewEmptyEmbeddingSetError(string(models.SpaceHuman))
	}

	aiNames, aiMatrix := spaceMatrix(ai)
	if len(aiNames) == 0 {
		return nil, drifterrors.NewEmptyEmbeddingSetError(string(models.SpaceAI))
	}

	humanProj, err := geometry.ManifoldProject(humanMatrix, geometry.DefaultManifoldConfig(seedHuman))
	if err != nil {
		return nil, fmt.Errorf("human manifold projection: %w", err)
	}

	aiProj, err := geometry.ManifoldProject(aiMatrix, geometry.DefaultManifoldConfig(seedAI))
	if err != nil {
		return nil, fmt.Errorf("ai manifold projection: %w", err)
	}

	aligned, err := geometry.Align(zipCoords(humanNames, humanProj), zipCoords(aiNames, aiProj), geometry.AlignConfig{
		PreserveScale: true,
		ViewScale:     geometry.ManifoldViewScale,
	})
	if err != nil {
		return nil, fmt.Errorf("manifold alignment: %w", err)
	}

	return resultFromAlignment(aligned, nil), nil
}

func resultFromAlignment(aligned *geometry.Alignment, amplified map[string]models.Vec3) *modeResult {
	drift := make(map[string]float64, len(aligned.Concepts))
	for _, id := range aligned.Concepts {
		drift[id] = euclidean(aligned.Human[id], aligned.AI[id])
	}

	return &modeResult{
		human:     aligned.Human,
		ai:        aligned.AI,
		amplified: amplified,
		drift:     drift,
		disparity: aligned.Disparity,
	}
}

// mergeNodes assembles one NodeRecord per concept over the union of all mode
// outputs. A concept absent from a mode gets positions substituted from
// another mode with Fallback set, so renderers always have coordinates but
// consumers can tell a substituted variant from a measured one.
//
// The record-level Drift used for ranking prefers a measured organic drift,
// then sphere, then manifold.
func mergeNodes(
	sphere, organic, manifold *modeResult,
	aggregates map[string]models.ConceptAggregate,
) []models.NodeRecord {
	names := make(map[string]struct{})

	for _, mode := range []*modeResult{sphere, organic, manifold} {
		if mode == nil {
			continue
		}

		for id := range mode.human {
			names[id] = struct{}{}
		}
	}

	nodes := make([]models.NodeRecord, 0, len(names))

	for name := range names {
		record := models.NodeRecord{Name: name}

		if sphere != nil {
			record.Sphere = sphereVariant(name, sphere, organic, manifold)
		}

		if organic != nil {
			record.Organic = organicVariant(name, organic, sphere, manifold)
		}

		if manifold != nil {
			record.Manifold = manifoldVariant(name, manifold, organic, sphere)
		}

		record.Drift = rankingDrift(record)

		if agg, ok := aggregates[name]; ok {
			record.AvgDistance = agg.AvgDistance
			record.Connections = agg.Connections
		}

		nodes = append(nodes, record)
	}

	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Drift != nodes[j].Drift {
			return nodes[i].Drift > nodes[j].Drift
		}

		return nodes[i].Name < nodes[j].Name
	})

	return nodes
}

// positionsFor returns the first mode in preference order that computed the
// concept, with a flag marking whether it was the primary mode.
func positionsFor(name string, primary *modeResult, fallbacks ...*modeResult) (h, a models.Vec3, drift float64, fallback, ok bool) {
	if _, present := primary.human[name]; present {
		return primary.human[name], primary.ai[name], primary.drift[name], false, true
	}

	for _, mode := range fallbacks {
		if mode == nil {
			continue
		}

		if _, present := mode.human[name]; present {
			return mode.human[name], mode.ai[name], mode.drift[name], true, true
		}
	}

	return models.Vec3{}, models.Vec3{}, 0, false, false
}

func sphereVariant(name string, sphere, organic, manifold *modeResult) *models.SphereNode {
	h, a, drift, fallback, ok := positionsFor(name, sphere, organic, manifold)
	if !ok {
		return nil
	}

	return &models.SphereNode{PosHuman: h, PosAI: a, Drift: drift, Fallback: fallback}
}

func organicVariant(name string, organic, sphere, manifold *modeResult) *models.OrganicNode {
	h, a, drift, fallback, ok := positionsFor(name, organic, sphere, manifold)
	if !ok {
		return nil
	}

	node := &models.OrganicNode{PosHuman: h, PosAI: a, Drift: drift, Fallback: fallback}

	if !fallback && organic.amplified != nil {
		if amp, present := organic.amplified[name]; present {
			node.PosAIAmplified = &amp
		}
	}

	return node
}

func manifoldVariant(name string, manifold, organic, sphere *modeResult) *models.ManifoldNode {
	h, a, drift, fallback, ok := positionsFor(name, manifold, organic, sphere)
	if !ok {
		return nil
	}

	return &models.ManifoldNode{PosHuman: h, PosAI: a, Drift: drift, Fallback: fallback}
}

func rankingDrift(record models.NodeRecord) float64 {
	if record.Organic != nil && !record.Organic.Fallback {
		return record.Organic.Drift
	}

	if record.Sphere != nil && !record.Sphere.Fallback {
		return record.Sphere.Drift
	}

	if record.Manifold != nil && !record.Manifold.Fallback {
		return record.Manifold.Drift
	}

	return 0
}

// spaceMatrix flattens a space into (sorted names, row-aligned matrix).
func spaceMatrix(vectors map[string][]float32) ([]string, [][]float32) {
	names := make([]string, 0, len(vectors))
	for name := range vectors {
		names = append(names, name)
	}

	sort.Strings(names)

	matrix := make([][]float32, len(names))
	for i, name := range names {
		matrix[i] = vectors[name]
	}

	return names, matrix
}

func zipCoords(names []string, rows [][]float64) map[string]models.Vec3 {
	coords := make(map[string]models.Vec3, len(names))
	for i, name := range names {
		coords[name] = models.Vec3{rows[i][0], rows[i][1], rows[i][2]}
	}

	return coords
}

func euclidean(a, b models.Vec3) float64 {
	var sum float64
	for d := 0; d < 3; d++ {
		diff := a[d] - b[d]
		sum += diff * diff
	}

	return math.Sqrt(sum)
}

// snapshotHash fingerprints everything a layout run depends on: both
// embedding snapshots, the relationship set, and the options. Names are
// hashed in sorted order so map iteration cannot perturb the key.
func snapshotHash(human, ai map[string][]float32, rels []models.Relationship, opts LayoutOptions) string {
	h := sha256.New()

	hashSpace := func(label string, vectors map[string][]float32) {
		h.Write([]byte(label))

		names, matrix := spaceMatrix(vectors)
		for i, name := range names {
			h.Write([]byte(name))

			for _, v := range matrix[i] {
				var buf [4]byte
				binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
				h.Write(buf[:])
			}
		}
	}

	hashSpace("human", human)
	hashSpace("ai", ai)

	h.Write([]byte("rels"))

	for _, rel := range rels {
		h.Write([]byte(rel.ConceptA))
		h.Write([]byte(rel.ConceptB))

		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(rel.HumanDistance))
		h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(rel.AIDistance))
		h.Write(buf[:])
	}

	fmt.Fprintf(h, "opts:%v:%s:%s", opts.Amplification, opts.HumanModel, opts.AIModel)

	return hex.EncodeToString(h.Sum(nil))
}
