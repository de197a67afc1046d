package econometrics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Estimator is the canonical fixed-effects estimation engine. It is safe for
// concurrent use: all per-estimation state lives on the stack.
type Estimator struct {
	settings Settings
	logger   *slog.Logger
}

// NewEstimator creates an estimator with the given numerical settings
func NewEstimator(settings Settings, logger *slog.Logger) *Estimator {
	if logger == nil {
		logger = slog.Default()
	}
	if settings.Tolerance <= 0 {
		settings.Tolerance = DefaultTolerance
	}
	if settings.MaxIterations <= 0 {
		settings.MaxIterations = DefaultMaxIterations
	}
	if settings.VIFThreshold <= 0 {
		settings.VIFThreshold = DefaultVIFThreshold
	}
	if settings.Workers <= 0 {
		settings.Workers = 1
	}
	return &Estimator{settings: settings, logger: logger}
}

// estimationSample is the regression-ready slice of a frame: filtered,
// listwise-deleted, with degenerate fixed-effect groups dropped.
type estimationSample struct {
	entities []string
	times    []int
	y        []float64
	X        *mat.Dense
	names    []string

	entityLevels int
	timeLevels   int
}

func (s *estimationSample) n() int { return len(s.y) }
func (s *estimationSample) k() int { return len(s.names) }

// buildSample extracts the estimation sample for a spec. Rows missing any
// required column are dropped per-observation; fixed-effect levels left with
// a single observation are dropped, not averaged, iterating until stable.
func buildSample(frame *Frame, spec ModelSpec) (*estimationSample, error) {
	work := frame
	if spec.Filter != nil {
		work = work.Subset(spec.Filter.Keep)
	}

	required := spec.requiredColumns()
	work = work.Subset(func(r Row) bool {
		for _, col := range required {
			if math.IsNaN(r.Value(col)) {
				return false
			}
		}
		return true
	})

	// Drop degenerate groups until no level changes. Entities additionally
	// need two distinct time periods for the within transform to be defined.
	for {
		dropped := false

		entityTimes := make(map[string]map[int]struct{})
		timeCounts := make(map[int]int)
		for i := 0; i < work.NumRows(); i++ {
			r := work.Row(i)
			if entityTimes[r.Entity()] == nil {
				entityTimes[r.Entity()] = make(map[int]struct{})
			}
			entityTimes[r.Entity()][r.Time()] = struct{}{}
			timeCounts[r.Time()]++
		}

		badEntities := make(map[string]struct{})
		for e, ts := range entityTimes {
			if len(ts) < MinTimesPerEntity {
				badEntities[e] = struct{}{}
			}
		}
		badTimes := make(map[int]struct{})
		if spec.HasFixedEffect(FETime) {
			for t, c := range timeCounts {
				if c < 2 {
					badTimes[t] = struct{}{}
				}
			}
		}
		if len(badEntities) > 0 || len(badTimes) > 0 {
			dropped = true
			work = work.Subset(func(r Row) bool {
				if _, bad := badEntities[r.Entity()]; bad {
					return false
				}
				_, bad := badTimes[r.Time()]
				return !bad
			})
		}

		if !dropped {
			break
		}
	}

	n := work.NumRows()
	if n == 0 {
		return nil, &InsufficientDataError{Reason: "no usable observations after filtering", Have: 0, Need: 1}
	}

	sample := &estimationSample{
		entities: make([]string, n),
		times:    make([]int, n),
		y:        make([]float64, n),
		X:        mat.NewDense(n, len(spec.Regressors), nil),
		names:    append([]string(nil), spec.Regressors...),
	}

	dep, err := work.Column(spec.Dependent)
	if err != nil {
		return nil, err
	}
	copy(sample.y, dep)
	for j, reg := range spec.Regressors {
		col, err := work.Column(reg)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			sample.X.Set(i, j, col[i])
		}
	}
	for i := 0; i < n; i++ {
		r := work.Row(i)
		sample.entities[i] = r.Entity()
		sample.times[i] = r.Time()
	}

	entitySet := make(map[string]struct{})
	timeSet := make(map[int]struct{})
	for i := 0; i < n; i++ {
		entitySet[sample.entities[i]] = struct{}{}
		timeSet[sample.times[i]] = struct{}{}
	}
	sample.entityLevels = len(entitySet)
	sample.timeLevels = len(timeSet)

	return sample, nil
}

// groupKeys maps each observation to a dense group index for the dimension
func groupKeys(sample *estimationSample, fe FixedEffect) ([]int, int) {
	keys := make([]int, sample.n())
	switch fe {
	case FEEntity:
		idx := make(map[string]int)
		for i, e := range sample.entities {
			g, ok := idx[e]
			if !ok {
				g = len(idx)
				idx[e] = g
			}
			keys[i] = g
		}
		return keys, len(idx)
	default:
		idx := make(map[int]int)
		for i, t := range sample.times {
			g, ok := idx[t]
			if !ok {
				g = len(idx)
				idx[t] = g
			}
			keys[i] = g
		}
		return keys, len(idx)
	}
}

// subtractGroupMeans removes per-group column means from W in place
func subtractGroupMeans(W *mat.Dense, keys []int, groups int) {
	n, c := W.Dims()
	sums := make([]float64, groups*c)
	counts := make([]int, groups)
	for i := 0; i < n; i++ {
		g := keys[i]
		counts[g]++
		for j := 0; j < c; j++ {
			sums[g*c+j] += W.At(i, j)
		}
	}
	for i := 0; i < n; i++ {
		g := keys[i]
		for j := 0; j < c; j++ {
			W.Set(i, j, W.At(i, j)-sums[g*c+j]/float64(counts[g]))
		}
	}
}

// maxAbsGroupMean returns the largest remaining group mean magnitude in W
func maxAbsGroupMean(W *mat.Dense, keys []int, groups int) float64 {
	n, c := W.Dims()
	sums := make([]float64, groups*c)
	counts := make([]int, groups)
	for i := 0; i < n; i++ {
		g := keys[i]
		counts[g]++
		for j := 0; j < c; j++ {
			sums[g*c+j] += W.At(i, j)
		}
	}
	maxMean := 0.0
	for g := 0; g < groups; g++ {
		for j := 0; j < c; j++ {
			m := math.Abs(sums[g*c+j] / float64(counts[g]))
			if m > maxMean {
				maxMean = m
			}
		}
	}
	return maxMean
}

// withinTransform demeans the dependent variable and regressors over the
// spec's fixed-effect dimensions. One-way demeaning is exact in a single
// pass; two-way demeaning alternates dimensions until the largest remaining
// group mean falls below tol or maxIter sweeps are reached. The result is
// invariant to which dimension is swept first, up to tol.
func withinTransform(sample *estimationSample, fes []FixedEffect, entityFirst bool, tol float64, maxIter int) (yd []float64, Xd *mat.Dense, sweeps int) {
	n, k := sample.n(), sample.k()

	// Pack [y | X] into one working matrix so every column is demeaned
	// identically.
	W := mat.NewDense(n, k+1, nil)
	for i := 0; i < n; i++ {
		W.Set(i, 0, sample.y[i])
		for j := 0; j < k; j++ {
			W.Set(i, j+1, sample.X.At(i, j))
		}
	}

	if len(fes) == 1 {
		keys, groups := groupKeys(sample, fes[0])
		subtractGroupMeans(W, keys, groups)
		sweeps = 1
	} else {
		first, second := FEEntity, FETime
		if !entityFirst {
			first, second = FETime, FEEntity
		}
		firstKeys, firstGroups := groupKeys(sample, first)
		secondKeys, secondGroups := groupKeys(sample, second)

		for sweeps = 1; sweeps <= maxIter; sweeps++ {
			subtractGroupMeans(W, firstKeys, firstGroups)
			subtractGroupMeans(W, secondKeys, secondGroups)

			remaining := maxAbsGroupMean(W, firstKeys, firstGroups)
			if m := maxAbsGroupMean(W, secondKeys, secondGroups); m > remaining {
				remaining = m
			}
			if remaining < tol {
				break
			}
		}
	}

	yd = make([]float64, n)
	Xd = mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		yd[i] = W.At(i, 0)
		for j := 0; j < k; j++ {
			Xd.Set(i, j, W.At(i, j+1))
		}
	}
	return yd, Xd, sweeps
}

// solveOLS computes beta = (X'X)^(-1) X'y via normal equations, falling back
// to an SVD pseudo-inverse when X'X is singular or badly conditioned. The
// (pseudo-)inverse of X'X is returned for sandwich variance computation.
func solveOLS(X *mat.Dense, y []float64) (beta []float64, xtxInv *mat.Dense, err error) {
	n, k := X.Dims()
	if n < k {
		return nil, nil, &InsufficientDataError{Reason: "fewer observations than regressors", Have: n, Need: k}
	}

	var xtx mat.Dense
	xtx.Mul(X.T(), X)

	xtxInv = &mat.Dense{}
	if invErr := xtxInv.Inverse(&xtx); invErr != nil {
		// X'X is singular or badly conditioned: pseudo-inverse via SVD.
		var svd mat.SVD
		if !svd.Factorize(&xtx, mat.SVDFull) {
			return nil, nil, fmt.Errorf("design matrix is degenerate: %v", invErr)
		}
		var u, v mat.Dense
		svd.UTo(&u)
		svd.VTo(&v)
		vals := svd.Values(nil)

		scaled := mat.NewDense(k, k, nil)
		for j := 0; j < k; j++ {
			inv := 0.0
			if vals[j] > 1e-12 {
				inv = 1 / vals[j]
			}
			for i := 0; i < k; i++ {
				scaled.Set(i, j, v.At(i, j)*inv)
			}
		}
		xtxInv.Mul(scaled, u.T())
	}

	yVec := mat.NewVecDense(n, y)
	var xty mat.VecDense
	xty.MulVec(X.T(), yVec)

	var b mat.VecDense
	b.MulVec(xtxInv, &xty)

	beta = make([]float64, k)
	for j := 0; j < k; j++ {
		beta[j] = b.AtVec(j)
	}
	return beta, xtxInv, nil
}

// residualDOF computes residual degrees of freedom for the spec's absorbed
// dimensions: n - k - (E-1) when entity effects are absorbed, additionally
// -(T-1) for two-way fixed effects.
func residualDOF(sample *estimationSample, spec ModelSpec) int {
	dof := sample.n() - sample.k()
	if spec.HasFixedEffect(FEEntity) {
		dof -= sample.entityLevels - 1
	}
	if spec.HasFixedEffect(FETime) {
		dof -= sample.timeLevels - 1
	}
	return dof
}

// Fit estimates the spec on the frame: within-transformed OLS with the spec's
// standard-error estimator. The returned model is immutable.
func (e *Estimator) Fit(ctx context.Context, frame *Frame, spec ModelSpec) (*FittedModel, error) {
	start := time.Now()

	if err := spec.Validate(frame); err != nil {
		return nil, fmt.Errorf("validate spec: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sample, err := buildSample(frame, spec)
	if err != nil {
		return nil, fmt.Errorf("build estimation sample: %w", err)
	}

	dof := residualDOF(sample, spec)
	if dof <= 0 {
		return nil, &InsufficientDataError{
			Reason: fmt.Sprintf("non-positive residual degrees of freedom for %s", spec.Dependent),
			Have:   sample.n(),
			Need:   sample.n() - dof + 1,
		}
	}

	yd, Xd, sweeps := withinTransform(sample, spec.FixedEffects, true, e.settings.Tolerance, e.settings.MaxIterations)

	beta, xtxInv, err := solveOLS(Xd, yd)
	if err != nil {
		return nil, fmt.Errorf("within regression: %w", err)
	}

	resid := make([]float64, sample.n())
	ssr, sst := 0.0, 0.0
	for i := 0; i < sample.n(); i++ {
		fitted := 0.0
		for j := 0; j < sample.k(); j++ {
			fitted += Xd.At(i, j) * beta[j]
		}
		resid[i] = yd[i] - fitted
		ssr += resid[i] * resid[i]
		sst += yd[i] * yd[i]
	}

	withinR2 := 0.0
	if sst > 0 {
		withinR2 = 1 - ssr/sst
	}
	betweenR2 := betweenRSquared(sample)

	ses, cov, err := e.computeStandardErrors(spec, sample, Xd, xtxInv, resid, dof)
	if err != nil {
		return nil, fmt.Errorf("standard errors (%s): %w", spec.SEType, err)
	}

	model := &FittedModel{
		Spec:           spec,
		Coefficients:   make(map[string]float64, sample.k()),
		StandardErrors: make(map[string]float64, sample.k()),
		NObs:           sample.n(),
		Stats: FitStats{
			WithinR2:    withinR2,
			BetweenR2:   betweenR2,
			DOFResidual: dof,
		},
		Converged:      true,
		coefNames:      append([]string(nil), sample.names...),
		cov:            cov,
		residuals:      resid,
		sampleEntities: sample.entities,
		sampleTimes:    sample.times,
	}
	for j, name := range sample.names {
		model.Coefficients[name] = beta[j]
		model.StandardErrors[name] = ses[j]
	}

	e.logger.DebugContext(ctx, "fitted model",
		"dependent", spec.Dependent,
		"n_obs", sample.n(),
		"regressors", sample.k(),
		"entities", sample.entityLevels,
		"demeaning_sweeps", sweeps,
		"within_r2", withinR2,
		"duration", time.Since(start),
	)
	return model, nil
}

// betweenRSquared regresses entity-averaged y on entity-averaged regressors
// with an intercept. Returns 0 when the between regression is not estimable.
func betweenRSquared(sample *estimationSample) float64 {
	n, k := sample.n(), sample.k()

	idx := make(map[string]int)
	for _, e := range sample.entities {
		if _, ok := idx[e]; !ok {
			idx[e] = len(idx)
		}
	}
	g := len(idx)
	if g <= k+1 {
		return 0
	}

	ySum := make([]float64, g)
	xSum := make([]float64, g*k)
	counts := make([]int, g)
	for i := 0; i < n; i++ {
		e := idx[sample.entities[i]]
		counts[e]++
		ySum[e] += sample.y[i]
		for j := 0; j < k; j++ {
			xSum[e*k+j] += sample.X.At(i, j)
		}
	}

	yBar := make([]float64, g)
	Xb := mat.NewDense(g, k+1, nil)
	for e := 0; e < g; e++ {
		yBar[e] = ySum[e] / float64(counts[e])
		Xb.Set(e, 0, 1)
		for j := 0; j < k; j++ {
			Xb.Set(e, j+1, xSum[e*k+j]/float64(counts[e]))
		}
	}

	beta, _, err := solveOLS(Xb, yBar)
	if err != nil {
		return 0
	}

	mean := 0.0
	for _, v := range yBar {
		mean += v
	}
	mean /= float64(g)

	ssr, sst := 0.0, 0.0
	for e := 0; e < g; e++ {
		fitted := 0.0
		for j := 0; j <= k; j++ {
			fitted += Xb.At(e, j) * beta[j]
		}
		d := yBar[e] - fitted
		ssr += d * d
		t := yBar[e] - mean
		sst += t * t
	}
	if sst <= 0 {
		return 0
	}
	r2 := 1 - ssr/sst
	if r2 < 0 {
		return 0
	}
	return r2
}
