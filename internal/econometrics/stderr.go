package econometrics

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// autoHACBandwidth is the Newey-West automatic lag rule floor(4*(T/100)^(2/9))
func autoHACBandwidth(timePeriods int) int {
	if timePeriods <= 0 {
		return 0
	}
	return int(math.Floor(4 * math.Pow(float64(timePeriods)/100, 2.0/9.0)))
}

// computeStandardErrors dispatches to the spec's variance-covariance
// estimator. All variants share the sandwich form V = bread * meat * bread
// with bread = (X'X)^(-1) on the demeaned design matrix.
func (e *Estimator) computeStandardErrors(spec ModelSpec, sample *estimationSample, Xd *mat.Dense, xtxInv *mat.Dense, resid []float64, dof int) ([]float64, *mat.SymDense, error) {
	var meat *mat.Dense
	var err error
	bread := xtxInv

	switch spec.SEType {
	case SERobust:
		meat = hc1Meat(Xd, resid, dof)
	case SEClustered:
		meat, err = clusteredMeat(spec, sample, Xd, resid, dof)
	case SEHAC:
		bandwidth := spec.HACBandwidth
		if bandwidth < 0 {
			bandwidth = autoHACBandwidth(sample.timeLevels)
		}
		meat = hacMeat(sample, Xd, resid, dof, bandwidth)
	case SEPCSE:
		bread, meat, err = pcseParts(spec, sample, Xd, resid)
	default:
		err = fmt.Errorf("unknown standard-error type %d", spec.SEType)
	}
	if err != nil {
		return nil, nil, err
	}

	k := sample.k()
	var tmp, V mat.Dense
	tmp.Mul(bread, meat)
	V.Mul(&tmp, bread)

	ses := make([]float64, k)
	for j := 0; j < k; j++ {
		v := V.At(j, j)
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, nil, &DegenerateVarianceError{Coefficient: sample.names[j], Variance: v}
		}
		ses[j] = math.Sqrt(v)
	}

	covData := make([]float64, k*k)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			covData[i*k+j] = (V.At(i, j) + V.At(j, i)) / 2
		}
	}
	return ses, mat.NewSymDense(k, covData), nil
}

// hc1Meat builds the HC1 meat sum(e_i^2 x_i x_i') scaled by n/dof
func hc1Meat(Xd *mat.Dense, resid []float64, dof int) *mat.Dense {
	n, k := Xd.Dims()

	Xe := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			Xe.Set(i, j, Xd.At(i, j)*resid[i])
		}
	}
	meat := &mat.Dense{}
	meat.Mul(Xe.T(), Xe)
	meat.Scale(float64(n)/float64(dof), meat)
	return meat
}

// clusterGroups partitions sample rows by the spec's cluster dimension
func clusterGroups(spec ModelSpec, sample *estimationSample) [][]int {
	order := make([]string, 0)
	groups := make(map[string][]int)
	for i := 0; i < sample.n(); i++ {
		var key string
		if spec.clusterKey() == "time" {
			key = fmt.Sprintf("t%d", sample.times[i])
		} else {
			key = sample.entities[i]
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}
	out := make([][]int, 0, len(order))
	for _, key := range order {
		out = append(out, groups[key])
	}
	return out
}

// clusteredMeat builds the CRV1 meat sum_g s_g s_g' with s_g = X_g' e_g and
// the finite-sample factor G/(G-1) * (N-1)/dof.
func clusteredMeat(spec ModelSpec, sample *estimationSample, Xd *mat.Dense, resid []float64, dof int) (*mat.Dense, error) {
	groups := clusterGroups(spec, sample)
	if len(groups) < MinClusters {
		return nil, &InsufficientDataError{
			Reason: fmt.Sprintf("too few %s clusters for clustered standard errors", spec.clusterKey()),
			Have:   len(groups),
			Need:   MinClusters,
		}
	}

	n, k := Xd.Dims()
	meat := mat.NewDense(k, k, nil)
	score := make([]float64, k)
	for _, rows := range groups {
		for j := range score {
			score[j] = 0
		}
		for _, i := range rows {
			for j := 0; j < k; j++ {
				score[j] += Xd.At(i, j) * resid[i]
			}
		}
		for a := 0; a < k; a++ {
			for b := 0; b < k; b++ {
				meat.Set(a, b, meat.At(a, b)+score[a]*score[b])
			}
		}
	}

	g := float64(len(groups))
	factor := g / (g - 1) * float64(n-1) / float64(dof)
	meat.Scale(factor, meat)
	return meat, nil
}

// entityRuns returns each entity's row indices ordered by time, entities in
// first-appearance order.
func entityRuns(sample *estimationSample) [][]int {
	order := make([]string, 0)
	groups := make(map[string][]int)
	for i, e := range sample.entities {
		if _, ok := groups[e]; !ok {
			order = append(order, e)
		}
		groups[e] = append(groups[e], i)
	}
	out := make([][]int, 0, len(order))
	for _, e := range order {
		rows := groups[e]
		sort.Slice(rows, func(a, b int) bool {
			return sample.times[rows[a]] < sample.times[rows[b]]
		})
		out = append(out, rows)
	}
	return out
}

// hacMeat builds the panel Newey-West meat: Bartlett-weighted residual cross
// products up to the bandwidth, summed within each entity's time series.
// Bandwidth 0 degenerates to the HC1 meat exactly.
func hacMeat(sample *estimationSample, Xd *mat.Dense, resid []float64, dof int, bandwidth int) *mat.Dense {
	n, k := Xd.Dims()
	meat := mat.NewDense(k, k, nil)

	// Lag-0 term.
	for i := 0; i < n; i++ {
		e2 := resid[i] * resid[i]
		for a := 0; a < k; a++ {
			for b := 0; b < k; b++ {
				meat.Set(a, b, meat.At(a, b)+e2*Xd.At(i, a)*Xd.At(i, b))
			}
		}
	}

	runs := entityRuns(sample)
	for lag := 1; lag <= bandwidth; lag++ {
		w := 1 - float64(lag)/float64(bandwidth+1)
		for _, rows := range runs {
			for t := lag; t < len(rows); t++ {
				i, l := rows[t], rows[t-lag]
				ee := resid[i] * resid[l]
				for a := 0; a < k; a++ {
					for b := 0; b < k; b++ {
						cross := Xd.At(i, a)*Xd.At(l, b) + Xd.At(l, a)*Xd.At(i, b)
						meat.Set(a, b, meat.At(a, b)+w*ee*cross)
					}
				}
			}
		}
	}

	meat.Scale(float64(n)/float64(dof), meat)
	return meat
}

// pcseParts builds the Beck-Katz panel-corrected bread and meat. The
// panel-wide cross-sectional error covariance is estimated from residual
// overlap; with CorrAR1 a Prais-Winsten transform is applied to residuals
// and design first.
func pcseParts(spec ModelSpec, sample *estimationSample, Xd *mat.Dense, resid []float64) (*mat.Dense, *mat.Dense, error) {
	n, k := Xd.Dims()
	runs := entityRuns(sample)

	X := mat.DenseCopyOf(Xd)
	e := append([]float64(nil), resid...)

	if spec.PCSECorr == CorrAR1 {
		rho := pooledAR1(runs, resid)
		scale := math.Sqrt(1 - rho*rho)
		for _, rows := range runs {
			for t := len(rows) - 1; t >= 1; t-- {
				i, prev := rows[t], rows[t-1]
				e[i] -= rho * e[prev]
				for j := 0; j < k; j++ {
					X.Set(i, j, X.At(i, j)-rho*X.At(prev, j))
				}
			}
			first := rows[0]
			e[first] *= scale
			for j := 0; j < k; j++ {
				X.Set(first, j, X.At(first, j)*scale)
			}
		}
	}

	// Row lookup by (entity run, time position) for pairwise overlap.
	byTime := make([]map[int]int, len(runs))
	for g, rows := range runs {
		byTime[g] = make(map[int]int, len(rows))
		for _, i := range rows {
			byTime[g][sample.times[i]] = i
		}
	}

	meat := mat.NewDense(k, k, nil)
	for gi := range runs {
		for gj := range runs {
			// Pairwise covariance over overlapping time periods.
			sum := 0.0
			count := 0
			for t, i := range byTime[gi] {
				if j, ok := byTime[gj][t]; ok {
					sum += e[i] * e[j]
					count++
				}
			}
			if count == 0 {
				continue
			}
			sigma := sum / float64(count)

			for t, i := range byTime[gi] {
				j, ok := byTime[gj][t]
				if !ok {
					continue
				}
				for a := 0; a < k; a++ {
					for b := 0; b < k; b++ {
						meat.Set(a, b, meat.At(a, b)+sigma*X.At(i, a)*X.At(j, b))
					}
				}
			}
		}
	}

	var xtx mat.Dense
	xtx.Mul(X.T(), X)
	bread := &mat.Dense{}
	if err := bread.Inverse(&xtx); err != nil {
		return nil, nil, fmt.Errorf("panel-corrected design matrix is degenerate (n=%d): %w", n, err)
	}
	return bread, meat, nil
}

// pooledAR1 estimates a common AR(1) coefficient from within-entity residual
// autocovariance.
func pooledAR1(runs [][]int, resid []float64) float64 {
	num, den := 0.0, 0.0
	for _, rows := range runs {
		for t := 1; t < len(rows); t++ {
			num += resid[rows[t]] * resid[rows[t-1]]
			den += resid[rows[t-1]] * resid[rows[t-1]]
		}
	}
	if den <= 0 {
		return 0
	}
	rho := num / den
	// Stationarity guard for the Prais-Winsten transform.
	if rho > 0.99 {
		rho = 0.99
	}
	if rho < -0.99 {
		rho = -0.99
	}
	return rho
}
