package econometrics

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// FitRandomEffects estimates the spec under a Swamy-Arora random-effects
// model over the entity dimension. Its main consumer is the Hausman
// diagnostic, which contrasts it against the within estimator of the same
// specification. When the estimated entity variance component is not
// positive, the transform collapses to pooled OLS (theta = 0).
func (e *Estimator) FitRandomEffects(ctx context.Context, frame *Frame, spec ModelSpec) (*FittedModel, error) {
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
	n, k := sample.n(), sample.k()

	withinDOF := n - k - (sample.entityLevels - 1)
	if withinDOF <= 0 {
		return nil, &InsufficientDataError{
			Reason: "non-positive degrees of freedom for the variance components",
			Have:   n,
			Need:   k + sample.entityLevels,
		}
	}

	// Idiosyncratic variance from the within residuals.
	yd, Xd, _ := withinTransform(sample, []FixedEffect{FEEntity}, true, e.settings.Tolerance, e.settings.MaxIterations)
	betaW, _, err := solveOLS(Xd, yd)
	if err != nil {
		return nil, fmt.Errorf("within step: %w", err)
	}
	ssrW := 0.0
	for i := 0; i < n; i++ {
		fitted := 0.0
		for j := 0; j < k; j++ {
			fitted += Xd.At(i, j) * betaW[j]
		}
		d := yd[i] - fitted
		ssrW += d * d
	}
	sigmaE2 := ssrW / float64(withinDOF)

	// Entity variance component from the between regression.
	sigmaU2 := e.betweenVariance(sample, sigmaE2)

	// Quasi-demeaning weights per entity.
	entityIdx := make(map[string]int)
	for _, ent := range sample.entities {
		if _, ok := entityIdx[ent]; !ok {
			entityIdx[ent] = len(entityIdx)
		}
	}
	g := len(entityIdx)
	counts := make([]float64, g)
	ySum := make([]float64, g)
	xSum := make([]float64, g*k)
	for i := 0; i < n; i++ {
		ei := entityIdx[sample.entities[i]]
		counts[ei]++
		ySum[ei] += sample.y[i]
		for j := 0; j < k; j++ {
			xSum[ei*k+j] += sample.X.At(i, j)
		}
	}
	theta := make([]float64, g)
	for ei := 0; ei < g; ei++ {
		theta[ei] = 1 - math.Sqrt(sigmaE2/(counts[ei]*sigmaU2+sigmaE2))
	}

	// GLS by OLS on quasi-demeaned data, intercept included.
	Xs := mat.NewDense(n, k+1, nil)
	ys := make([]float64, n)
	for i := 0; i < n; i++ {
		ei := entityIdx[sample.entities[i]]
		th := theta[ei]
		ys[i] = sample.y[i] - th*ySum[ei]/counts[ei]
		Xs.Set(i, 0, 1-th)
		for j := 0; j < k; j++ {
			Xs.Set(i, j+1, sample.X.At(i, j)-th*xSum[ei*k+j]/counts[ei])
		}
	}

	beta, xtxInv, err := solveOLS(Xs, ys)
	if err != nil {
		return nil, fmt.Errorf("gls step: %w", err)
	}

	dof := n - k - 1
	if dof <= 0 {
		return nil, &InsufficientDataError{Reason: "non-positive gls degrees of freedom", Have: n, Need: k + 2}
	}
	resid := make([]float64, n)
	ssr := 0.0
	for i := 0; i < n; i++ {
		fitted := 0.0
		for j := 0; j <= k; j++ {
			fitted += Xs.At(i, j) * beta[j]
		}
		resid[i] = ys[i] - fitted
		ssr += resid[i] * resid[i]
	}
	sigma2 := ssr / float64(dof)

	// Classical covariance over the regressors, intercept row dropped.
	covData := make([]float64, k*k)
	for a := 0; a < k; a++ {
		for b := 0; b < k; b++ {
			v := sigma2 * (xtxInv.At(a+1, b+1) + xtxInv.At(b+1, a+1)) / 2
			covData[a*k+b] = v
		}
	}
	cov := mat.NewSymDense(k, covData)

	model := &FittedModel{
		Spec:           spec,
		Coefficients:   make(map[string]float64, k),
		StandardErrors: make(map[string]float64, k),
		NObs:           n,
		Stats:          FitStats{DOFResidual: dof},
		Converged:      true,
		coefNames:      append([]string(nil), sample.names...),
		cov:            cov,
		residuals:      resid,
		sampleEntities: sample.entities,
		sampleTimes:    sample.times,
	}
	for j, name := range sample.names {
		model.Coefficients[name] = beta[j+1]
		v := cov.At(j, j)
		if v <= 0 || math.IsNaN(v) {
			return nil, &DegenerateVarianceError{Coefficient: name, Variance: v}
		}
		model.StandardErrors[name] = math.Sqrt(v)
	}

	e.logger.DebugContext(ctx, "fitted random-effects model",
		"dependent", spec.Dependent,
		"n_obs", n,
		"sigma_e2", sigmaE2,
		"sigma_u2", sigmaU2,
	)
	return model, nil
}

// betweenVariance estimates the Swamy-Arora entity variance component. A
// non-positive estimate degenerates to 0, which collapses the GLS transform
// to pooled OLS.
func (e *Estimator) betweenVariance(sample *estimationSample, sigmaE2 float64) float64 {
	n, k := sample.n(), sample.k()

	idx := make(map[string]int)
	for _, ent := range sample.entities {
		if _, ok := idx[ent]; !ok {
			idx[ent] = len(idx)
		}
	}
	g := len(idx)
	if g <= k+1 {
		return 0
	}

	counts := make([]float64, g)
	ySum := make([]float64, g)
	xSum := make([]float64, g*k)
	for i := 0; i < n; i++ {
		ei := idx[sample.entities[i]]
		counts[ei]++
		ySum[ei] += sample.y[i]
		for j := 0; j < k; j++ {
			xSum[ei*k+j] += sample.X.At(i, j)
		}
	}

	yBar := make([]float64, g)
	Xb := mat.NewDense(g, k+1, nil)
	harmonic := 0.0
	for ei := 0; ei < g; ei++ {
		yBar[ei] = ySum[ei] / counts[ei]
		Xb.Set(ei, 0, 1)
		for j := 0; j < k; j++ {
			Xb.Set(ei, j+1, xSum[ei*k+j]/counts[ei])
		}
		harmonic += 1 / counts[ei]
	}
	tBar := float64(g) / harmonic

	beta, _, err := solveOLS(Xb, yBar)
	if err != nil {
		return 0
	}
	ssr := 0.0
	for ei := 0; ei < g; ei++ {
		fitted := 0.0
		for j := 0; j <= k; j++ {
			fitted += Xb.At(ei, j) * beta[j]
		}
		d := yBar[ei] - fitted
		ssr += d * d
	}
	sigmaB2 := ssr / float64(g-k-1)

	sigmaU2 := sigmaB2 - sigmaE2/tBar
	if sigmaU2 < 0 {
		return 0
	}
	return sigmaU2
}
