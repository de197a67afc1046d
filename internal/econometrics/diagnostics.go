package econometrics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Diagnostic test names
const (
	TestHausman          = "hausman"
	TestSerialCorr       = "wooldridge-serial-correlation"
	TestGroupwiseHetero  = "modified-wald-heteroskedasticity"
	TestMulticollinearty = "vif-multicollinearity"
)

// DiagnosticsSuite runs specification tests on fitted models. Tests never
// fail on statistically ambiguous input; they return VerdictInconclusive.
type DiagnosticsSuite struct {
	est    *Estimator
	logger *slog.Logger
}

// NewDiagnosticsSuite creates a diagnostics suite backed by the estimator
func NewDiagnosticsSuite(est *Estimator, logger *slog.Logger) *DiagnosticsSuite {
	if logger == nil {
		logger = slog.Default()
	}
	return &DiagnosticsSuite{est: est, logger: logger}
}

func inconclusive(name, detail string) DiagnosticResult {
	return DiagnosticResult{
		TestName: name,
		PValue:   math.NaN(),
		Verdict:  VerdictInconclusive,
		Detail:   detail,
	}
}

func verdictAtFive(p float64) Verdict {
	if p <= 0.05 {
		return VerdictReject
	}
	return VerdictFailToReject
}

// Hausman contrasts a fixed-effects fit against a random-effects fit of the
// same specification. The statistic is the quadratic form of the coefficient
// difference weighted by the inverse covariance difference; a weighting
// matrix that is not positive definite yields VerdictInconclusive, which is
// common when the two covariances are numerically close.
func (d *DiagnosticsSuite) Hausman(fe, re *FittedModel) DiagnosticResult {
	if fe == nil || re == nil || !fe.Converged || !re.Converged {
		return inconclusive(TestHausman, "requires two converged fits")
	}
	if len(fe.coefNames) != len(re.coefNames) {
		return inconclusive(TestHausman, "coefficient sets differ between fits")
	}
	k := len(fe.coefNames)
	q := make([]float64, k)
	for j, name := range fe.coefNames {
		reCoef, ok := re.Coefficients[name]
		if !ok {
			return inconclusive(TestHausman, fmt.Sprintf("coefficient %q missing from random-effects fit", name))
		}
		q[j] = fe.Coefficients[name] - reCoef
	}

	diffData := make([]float64, k*k)
	for a := 0; a < k; a++ {
		for b := 0; b < k; b++ {
			diffData[a*k+b] = fe.cov.At(a, b) - re.cov.At(a, b)
		}
	}
	diff := mat.NewSymDense(k, diffData)

	var chol mat.Cholesky
	if !chol.Factorize(diff) {
		return inconclusive(TestHausman, "covariance difference is not positive definite")
	}

	var x mat.VecDense
	if err := chol.SolveVecTo(&x, mat.NewVecDense(k, q)); err != nil {
		return inconclusive(TestHausman, "covariance difference could not be inverted")
	}
	stat := mat.Dot(mat.NewVecDense(k, q), &x)
	if math.IsNaN(stat) || stat < 0 {
		return inconclusive(TestHausman, "quadratic form is not well defined")
	}

	p := 1 - distuv.ChiSquared{K: float64(k)}.CDF(stat)
	return DiagnosticResult{
		TestName:  TestHausman,
		Statistic: stat,
		PValue:    p,
		DF:        k,
		Verdict:   verdictAtFive(p),
		Detail:    "H0: random-effects estimator is consistent",
	}
}

// SerialCorrelation is the Wooldridge-style panel test: residuals of the
// first-differenced regression are regressed on their own lag, and the lag
// coefficient is tested against -0.5, its value under the null of no serial
// correlation in the levels errors.
func (d *DiagnosticsSuite) SerialCorrelation(frame *Frame, spec ModelSpec) DiagnosticResult {
	if err := spec.Validate(frame); err != nil {
		return inconclusive(TestSerialCorr, err.Error())
	}
	sample, err := buildSample(frame, spec)
	if err != nil {
		return inconclusive(TestSerialCorr, err.Error())
	}
	runs := entityRuns(sample)
	k := sample.k()

	// First-difference the dependent variable and regressors within entities.
	var dy []float64
	var dxRows [][]float64
	var runLens []int
	for _, rows := range runs {
		count := 0
		for t := 1; t < len(rows); t++ {
			i, prev := rows[t], rows[t-1]
			dy = append(dy, sample.y[i]-sample.y[prev])
			row := make([]float64, k)
			for j := 0; j < k; j++ {
				row[j] = sample.X.At(i, j) - sample.X.At(prev, j)
			}
			dxRows = append(dxRows, row)
			count++
		}
		runLens = append(runLens, count)
	}
	m := len(dy)
	if m <= k+1 {
		return inconclusive(TestSerialCorr, "too few first-differenced observations")
	}

	dX := mat.NewDense(m, k, nil)
	for i, row := range dxRows {
		for j := 0; j < k; j++ {
			dX.Set(i, j, row[j])
		}
	}
	beta, _, err := solveOLS(dX, dy)
	if err != nil {
		return inconclusive(TestSerialCorr, err.Error())
	}
	eFD := make([]float64, m)
	for i := 0; i < m; i++ {
		fitted := 0.0
		for j := 0; j < k; j++ {
			fitted += dX.At(i, j) * beta[j]
		}
		eFD[i] = dy[i] - fitted
	}

	// Regress the FD residual on its lag within each entity's run.
	num, den := 0.0, 0.0
	pairs := 0
	offset := 0
	for _, count := range runLens {
		for t := 1; t < count; t++ {
			cur, prev := eFD[offset+t], eFD[offset+t-1]
			num += cur * prev
			den += prev * prev
			pairs++
		}
		offset += count
	}
	if pairs < 3 || den <= 0 {
		return inconclusive(TestSerialCorr, "too few residual pairs for the lag regression")
	}
	rho := num / den

	rss := 0.0
	offset = 0
	for _, count := range runLens {
		for t := 1; t < count; t++ {
			d := eFD[offset+t] - rho*eFD[offset+t-1]
			rss += d * d
		}
		offset += count
	}
	dof := pairs - 1
	se := math.Sqrt(rss / float64(dof) / den)
	if se <= 0 || math.IsNaN(se) {
		return inconclusive(TestSerialCorr, "degenerate lag-coefficient variance")
	}

	t := (rho + 0.5) / se
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(dof)}
	p := 2 * (1 - dist.CDF(math.Abs(t)))
	return DiagnosticResult{
		TestName:  TestSerialCorr,
		Statistic: t,
		PValue:    p,
		DF:        dof,
		Verdict:   verdictAtFive(p),
		Detail:    fmt.Sprintf("H0: lag coefficient = -0.5 (estimate %.4f)", rho),
	}
}

// GroupwiseHeteroskedasticity is the modified Wald test for equal residual
// variances across entities, referenced against chi-squared with
// n_entities-1 degrees of freedom.
func (d *DiagnosticsSuite) GroupwiseHeteroskedasticity(model *FittedModel) DiagnosticResult {
	if model == nil || !model.Converged || len(model.residuals) == 0 {
		return inconclusive(TestGroupwiseHetero, "requires a converged fit with residuals")
	}

	groups := make(map[string][]float64)
	order := make([]string, 0)
	for i, ent := range model.sampleEntities {
		if _, ok := groups[ent]; !ok {
			order = append(order, ent)
		}
		groups[ent] = append(groups[ent], model.residuals[i])
	}
	if len(order) < 2 {
		return inconclusive(TestGroupwiseHetero, "requires at least two entities")
	}

	pooled := 0.0
	for _, e := range model.residuals {
		pooled += e * e
	}
	pooled /= float64(len(model.residuals))

	stat := 0.0
	for _, ent := range order {
		res := groups[ent]
		ti := float64(len(res))
		if ti < 2 {
			return inconclusive(TestGroupwiseHetero, fmt.Sprintf("entity %q has a single residual", ent))
		}
		s2 := 0.0
		for _, e := range res {
			s2 += e * e
		}
		s2 /= ti

		v := 0.0
		for _, e := range res {
			dlt := e*e - s2
			v += dlt * dlt
		}
		v /= ti * (ti - 1)
		if v <= 0 {
			return inconclusive(TestGroupwiseHetero, fmt.Sprintf("entity %q has degenerate residual variance", ent))
		}
		diff := s2 - pooled
		stat += diff * diff / v
	}

	df := len(order) - 1
	p := 1 - distuv.ChiSquared{K: float64(df)}.CDF(stat)
	return DiagnosticResult{
		TestName:  TestGroupwiseHetero,
		Statistic: stat,
		PValue:    p,
		DF:        df,
		Verdict:   verdictAtFive(p),
		Detail:    "H0: residual variance is equal across entities",
	}
}

// VIF computes variance inflation factors for every regressor in the spec:
// 1/(1-R^2) of each regressor regressed on all others. The verdict rejects
// when any factor exceeds the engine threshold.
func (d *DiagnosticsSuite) VIF(frame *Frame, spec ModelSpec) DiagnosticResult {
	if err := spec.Validate(frame); err != nil {
		return inconclusive(TestMulticollinearty, err.Error())
	}
	sample, err := buildSample(frame, spec)
	if err != nil {
		return inconclusive(TestMulticollinearty, err.Error())
	}
	n, k := sample.n(), sample.k()
	if n <= k+1 {
		return inconclusive(TestMulticollinearty, "too few observations for auxiliary regressions")
	}

	vifs := make(map[string]float64, k)
	maxVIF := 0.0
	for j := 0; j < k; j++ {
		target := make([]float64, n)
		aux := mat.NewDense(n, k, nil)
		for i := 0; i < n; i++ {
			target[i] = sample.X.At(i, j)
			aux.Set(i, 0, 1)
			col := 1
			for jj := 0; jj < k; jj++ {
				if jj == j {
					continue
				}
				aux.Set(i, col, sample.X.At(i, jj))
				col++
			}
		}
		r2 := auxiliaryRSquared(aux, target)
		vif := math.Inf(1)
		if 1-r2 > 1e-12 {
			vif = 1 / (1 - r2)
		}
		vifs[sample.names[j]] = vif
		if vif > maxVIF {
			maxVIF = vif
		}
	}

	names := append([]string(nil), sample.names...)
	sort.Strings(names)
	parts := make([]string, 0, k)
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%.2f", name, vifs[name]))
	}

	verdict := VerdictFailToReject
	if maxVIF > d.est.settings.VIFThreshold {
		verdict = VerdictReject
	}
	return DiagnosticResult{
		TestName:  TestMulticollinearty,
		Statistic: maxVIF,
		PValue:    math.NaN(),
		Verdict:   verdict,
		Detail:    strings.Join(parts, ", "),
	}
}

// auxiliaryRSquared computes the centered R^2 of an OLS fit of target on aux
// (aux carries its own intercept column).
func auxiliaryRSquared(aux *mat.Dense, target []float64) float64 {
	beta, _, err := solveOLS(aux, target)
	if err != nil {
		return 0
	}
	n, c := aux.Dims()

	mean := 0.0
	for _, v := range target {
		mean += v
	}
	mean /= float64(n)

	ssr, sst := 0.0, 0.0
	for i := 0; i < n; i++ {
		fitted := 0.0
		for j := 0; j < c; j++ {
			fitted += aux.At(i, j) * beta[j]
		}
		d := target[i] - fitted
		ssr += d * d
		t := target[i] - mean
		sst += t * t
	}
	if sst <= 0 {
		return 0
	}
	r2 := 1 - ssr/sst
	if r2 < 0 {
		return 0
	}
	if r2 > 1 {
		return 1
	}
	return r2
}

// RunAll fits the spec under fixed and random effects and runs the full
// suite against the pair: Hausman, serial correlation, groupwise
// heteroskedasticity and VIF, in that order.
func (d *DiagnosticsSuite) RunAll(ctx context.Context, frame *Frame, spec ModelSpec) ([]DiagnosticResult, error) {
	fe, err := d.est.Fit(ctx, frame, spec)
	if err != nil {
		return nil, fmt.Errorf("fixed-effects fit for diagnostics: %w", err)
	}

	var hausman DiagnosticResult
	re, err := d.est.FitRandomEffects(ctx, frame, spec)
	if err != nil {
		d.logger.WarnContext(ctx, "random-effects fit failed, hausman test inconclusive", "error", err)
		hausman = inconclusive(TestHausman, err.Error())
	} else {
		hausman = d.Hausman(fe, re)
	}

	results := []DiagnosticResult{
		hausman,
		d.SerialCorrelation(frame, spec),
		d.GroupwiseHeteroskedasticity(fe),
		d.VIF(frame, spec),
	}
	for _, r := range results {
		d.logger.InfoContext(ctx, "diagnostic test completed",
			"test", r.TestName,
			"statistic", r.Statistic,
			"verdict", r.Verdict.String(),
		)
	}
	return results, nil
}
