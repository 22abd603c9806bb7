package geometry

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/driftmap/cartographer/internal/drifterrors"
	"github.com/driftmap/cartographer/internal/models"
)

// minSharedConcepts is the fewest corresponding points for which a 3D rigid
// alignment is determined.
const minSharedConcepts = 3

// View scale constants. Constrained alignment normalizes both clouds to unit
// size, so a fixed multiplier restores a useful viewing radius; the
// scale-preserving policies divide by the human cloud's spread instead, which
// keeps the relative spread of the two spaces visible.
const (
	ConstrainedViewScale = 50.0
	AuthenticViewScale   = 5.0
	ManifoldViewScale    = 3.75
)

// AlignConfig selects the alignment policy and viewing scale.
type AlignConfig struct {
	// PreserveScale selects the authentic policy: rotation only, no scale
	// normalization, so genuine spread differences between the two spaces
	// survive into the output. False selects the constrained policy:
	// classical Procrustes with scale fitting plus variance matching.
	PreserveScale bool

	// ViewScale is the visualization constant. Constrained policy: both
	// clouds are multiplied by it directly. Authentic policy: both clouds
	// are multiplied by ViewScale/std(human), one factor derived from the
	// human spread only.
	ViewScale float64
}

// Alignment is the result of rigidly aligning the AI cloud onto the human cloud.
type Alignment struct {
	// Human and AI are keyed by the sorted intersection of the input ids.
	Human map[string]models.Vec3
	AI    map[string]models.Vec3

	// Disparity is the root-mean-square per-point residual after alignment.
	Disparity float64

	// ScaleRatio is std(ai)/std(human) of the centered input clouds, before
	// any normalization. Authentic mode carries this ratio through to the
	// output; constrained mode reports it but then normalizes it away.
	ScaleRatio float64

	// Rotation is the 3x3 orthogonal matrix applied to the centered AI cloud.
	Rotation *mat.Dense

	// Concepts is the sorted shared id set, in the row order used internally.
	Concepts []string
}

// Align rigidly aligns the AI coordinate set onto the human coordinate set so
// that positional differences reflect semantic disagreement rather than the
// arbitrary rotation, reflection, and scale of two independent layout runs.
// Only the intersection of the two key sets participates; ids present on one
// side only are excluded, not zero-filled. Returns ErrInsufficientOverlap when
// fewer than 3 ids are shared.
func Align(human, ai map[string]models.Vec3, cfg AlignConfig) (*Alignment, error) {
	shared := sortedIntersection(human, ai)
	if len(shared) < minSharedConcepts {
		return nil, drifterrors.NewInsufficientOverlapError(len(shared), minSharedConcepts)
	}

	humanMat := toMatrix(human, shared)
	aiMat := toMatrix(ai, shared)

	center(humanMat)
	center(aiMat)

	ratio := spreadRatio(aiMat, humanMat)

	var (
		rotation  *mat.Dense
		disparity float64
	)

	if cfg.PreserveScale {
		rotation = optimalRotation(aiMat, humanMat)

		var rotated mat.Dense
		rotated.Mul(aiMat, rotation)
		aiMat.Copy(&rotated)

		disparity = rmsResidual(humanMat, aiMat)

		// One factor from the human spread only, applied to both clouds, so
		// the AI/human spread ratio survives into the final coordinates.
		humanStd := entryStd(humanMat)
		if humanStd > 0 {
			scaleInPlace(humanMat, cfg.ViewScale/humanStd)
			scaleInPlace(aiMat, cfg.ViewScale/humanStd)
		}
	} else {
		// Classical Procrustes: normalize both clouds to unit Frobenius norm,
		// then fit rotation plus a single isotropic scale.
		humanNorm := mat.Norm(humanMat, 2)
		aiNorm := mat.Norm(aiMat, 2)

		if humanNorm > 0 {
			scaleInPlace(humanMat, 1/humanNorm)
		}

		if aiNorm > 0 {
			scaleInPlace(aiMat, 1/aiNorm)
		}

		var scale float64
		rotation, scale = optimalRotationAndScale(aiMat, humanMat)

		var rotated mat.Dense
		rotated.Mul(aiMat, rotation)
		rotated.Scale(scale, &rotated)
		aiMat.Copy(&rotated)

		disparity = rmsResidual(humanMat, aiMat)

		// Least-squares scale fitting leaves a residual size mismatch; match
		// the AI cloud's variance to the human cloud's exactly so both render
		// with the same radius. A zero AI variance skips the step instead of
		// dividing by zero.
		humanVar := entryVariance(humanMat)
		aiVar := entryVariance(aiMat)

		if aiVar > 0 {
			scaleInPlace(aiMat, math.Sqrt(humanVar/aiVar))
		}

		scaleInPlace(humanMat, cfg.ViewScale)
		scaleInPlace(aiMat, cfg.ViewScale)
	}

	return &Alignment{
		Human:      fromMatrix(humanMat, shared),
		AI:         fromMatrix(aiMat, shared),
		Disparity:  disparity,
		ScaleRatio: ratio,
		Rotation:   rotation,
		Concepts:   shared,
	}, nil
}

// sortedIntersection returns the ids present in both maps, sorted.
func sortedIntersection(a, b map[string]models.Vec3) []string {
	shared := make([]string, 0, len(a))

	for id := range a {
		if _, ok := b[id]; ok {
			shared = append(shared, id)
		}
	}

	sort.Strings(shared)

	return shared
}

// toMatrix stacks coordinates into an N x 3 matrix in the given id order.
func toMatrix(coords map[string]models.Vec3, ids []string) *mat.Dense {
	m := mat.NewDense(len(ids), 3, nil)

	for i, id := range ids {
		v := coords[id]
		m.SetRow(i, []float64{v[0], v[1], v[2]})
	}

	return m
}

// fromMatrix rebuilds an id-keyed coordinate map from matrix rows.
func fromMatrix(m *mat.Dense, ids []string) map[string]models.Vec3 {
	out := make(map[string]models.Vec3, len(ids))

	for i, id := range ids {
		out[id] = models.Vec3{m.At(i, 0), m.At(i, 1), m.At(i, 2)}
	}

	return out
}

// center subtracts the column means, translating the cloud's centroid to the origin.
func center(m *mat.Dense) {
	rows, cols := m.Dims()

	for j := 0; j < cols; j++ {
		var sum float64
		for i := 0; i < rows; i++ {
			sum += m.At(i, j)
		}

		mean := sum / float64(rows)
		for i := 0; i < rows; i++ {
			m.Set(i, j, m.At(i, j)-mean)
		}
	}
}

// optimalRotation returns the orthogonal R minimizing ||target - source*R||_F,
// via SVD of source^T * target. The result may include a reflection
// (det = -1); drift magnitudes are unaffected, so it is accepted.
func optimalRotation(source, target *mat.Dense) *mat.Dense {
	var cross mat.Dense
	cross.Mul(source.T(), target)

	var svd mat.SVD
	if ok := svd.Factorize(&cross, mat.SVDFull); !ok {
		// Degenerate cross-covariance; identity keeps the cloud untouched.
		return identity3()
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	r := mat.NewDense(3, 3, nil)
	r.Mul(&u, v.T())

	return r
}

// optimalRotationAndScale additionally returns the isotropic scale that
// minimizes the residual; with unit-norm inputs this is the sum of the
// singular values of the cross-covariance.
func optimalRotationAndScale(source, target *mat.Dense) (*mat.Dense, float64) {
	var cross mat.Dense
	cross.Mul(source.T(), target)

	var svd mat.SVD
	if ok := svd.Factorize(&cross, mat.SVDFull); !ok {
		return identity3(), 1
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	r := mat.NewDense(3, 3, nil)
	r.Mul(&u, v.T())

	var scale float64
	for _, s := range svd.Values(nil) {
		scale += s
	}

	return r, scale
}

// rmsResidual returns sqrt(sum of squared per-point residuals / point count).
func rmsResidual(a, b *mat.Dense) float64 {
	rows, cols := a.Dims()

	var ssr float64
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			d := a.At(i, j) - b.At(i, j)
			ssr += d * d
		}
	}

	return math.Sqrt(ssr / float64(rows))
}

// entryVariance is the population variance over all matrix entries.
// Columns are centered before this is called, so the entry mean is zero.
func entryVariance(m *mat.Dense) float64 {
	rows, cols := m.Dims()

	var ss float64
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := m.At(i, j)
			ss += v * v
		}
	}

	return ss / float64(rows*cols)
}

// entryStd is the population standard deviation over all matrix entries.
func entryStd(m *mat.Dense) float64 {
	return math.Sqrt(entryVariance(m))
}

// spreadRatio returns std(a)/std(b), or 0 when b has no spread.
func spreadRatio(a, b *mat.Dense) float64 {
	bStd := entryStd(b)
	if bStd == 0 {
		return 0
	}

	return entryStd(a) / bStd
}

// scaleInPlace multiplies every entry by f.
func scaleInPlace(m *mat.Dense, f float64) {
	m.Scale(f, m)
}

func identity3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}
