package econometrics

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// FixedEffect identifies a categorical dimension absorbed via demeaning.
type FixedEffect int

const (
	// FEEntity absorbs entity-specific intercepts (bank fixed effects)
	FEEntity FixedEffect = iota
	// FETime absorbs time-period-specific intercepts (quarter fixed effects)
	FETime
)

// String returns the string representation of the fixed effect
func (f FixedEffect) String() string {
	switch f {
	case FEEntity:
		return "entity"
	case FETime:
		return "time"
	default:
		return "unknown"
	}
}

// SEType selects the variance-covariance estimator applied to a fitted model.
type SEType int

const (
	// SERobust is the heteroskedasticity-consistent HC1 sandwich estimator
	SERobust SEType = iota
	// SEClustered is the CRV1 cluster-robust sandwich estimator
	SEClustered
	// SEHAC is the Newey-West estimator with a Bartlett kernel, applied
	// within each entity's time series
	SEHAC
	// SEPCSE is the Beck-Katz panel-corrected estimator
	SEPCSE
)

// String returns the string representation of the SE type
func (s SEType) String() string {
	switch s {
	case SERobust:
		return "robust"
	case SEClustered:
		return "clustered"
	case SEHAC:
		return "newey-west"
	case SEPCSE:
		return "pcse"
	default:
		return "unknown"
	}
}

// CorrStructure describes the within-panel error correlation assumed by the
// panel-corrected standard-error estimator.
type CorrStructure int

const (
	// CorrIndependent assumes no serial correlation within panels
	CorrIndependent CorrStructure = iota
	// CorrAR1 applies a Prais-Winsten AR(1) transform before estimating the
	// panel-wide error covariance
	CorrAR1
)

// String returns the string representation of the correlation structure
func (c CorrStructure) String() string {
	switch c {
	case CorrAR1:
		return "ar1"
	default:
		return "independent"
	}
}

// SampleFilter restricts an estimation to the rows for which Keep returns
// true. Name appears in display output and logs.
type SampleFilter struct {
	Name string
	Keep func(r Row) bool
}

// ModelSpec is a declarative description of a single regression: what to
// estimate, which fixed effects to absorb, and how to compute standard
// errors. Specs are validated eagerly against a frame before any estimation
// work begins.
type ModelSpec struct {
	Dependent    string
	Regressors   []string
	FixedEffects []FixedEffect
	SEType       SEType

	// ClusterBy names the cluster dimension for SEClustered: "entity"
	// (default when empty) or "time".
	ClusterBy string

	// HACBandwidth is the Newey-West lag bandwidth. Negative selects the
	// automatic rule floor(4*(T/100)^(2/9)); zero degenerates to a
	// heteroskedasticity-only estimator.
	HACBandwidth int

	// PCSECorr selects the within-panel correlation structure for SEPCSE.
	PCSECorr CorrStructure

	Filter *SampleFilter
}

// HasFixedEffect reports whether the spec absorbs the given dimension
func (s ModelSpec) HasFixedEffect(fe FixedEffect) bool {
	for _, f := range s.FixedEffects {
		if f == fe {
			return true
		}
	}
	return false
}

// FitStats contains goodness-of-fit measures for a fitted model
type FitStats struct {
	WithinR2    float64 `json:"within_r2"`
	BetweenR2   float64 `json:"between_r2"`
	DOFResidual int     `json:"dof_residual"`
}

// FittedModel is the immutable result of one estimation. A model with
// Converged=false carries no estimates, only the captured failure reason.
type FittedModel struct {
	Spec           ModelSpec          `json:"-"`
	Coefficients   map[string]float64 `json:"coefficients"`
	StandardErrors map[string]float64 `json:"standard_errors"`
	NObs           int                `json:"n_obs"`
	Stats          FitStats           `json:"fit_stats"`
	Converged      bool               `json:"converged"`
	FailureReason  string             `json:"failure_reason,omitempty"`

	// Retained for the diagnostics suite; not part of the exported surface.
	coefNames      []string
	cov            *mat.SymDense
	residuals      []float64
	sampleEntities []string
	sampleTimes    []int
}

// CoefficientNames returns the regressor names in specification order
func (m *FittedModel) CoefficientNames() []string {
	out := make([]string, len(m.coefNames))
	copy(out, m.coefNames)
	return out
}

// TStatistic returns coefficient/SE for the named regressor, or NaN when the
// model did not converge or the regressor is unknown.
func (m *FittedModel) TStatistic(name string) float64 {
	if !m.Converged {
		return math.NaN()
	}
	se, ok := m.StandardErrors[name]
	if !ok || se <= 0 {
		return math.NaN()
	}
	return m.Coefficients[name] / se
}

// BatchEntry pairs a display name with the specification to estimate under it
type BatchEntry struct {
	Name string
	Spec ModelSpec
}

// EntryError records a per-entry estimation failure inside a batch
type EntryError struct {
	Name string
	Err  error
}

// Batch is an ordered mapping from display name to fitted model. Order is
// significant: it determines output table column order and is preserved
// verbatim from the submitted entries.
type Batch struct {
	RunID    string
	Names    []string
	Models   map[string]*FittedModel
	Duration time.Duration
}

// Get returns the fitted model stored under name
func (b *Batch) Get(name string) (*FittedModel, bool) {
	m, ok := b.Models[name]
	return m, ok
}

// InOrder returns the fitted models in insertion order
func (b *Batch) InOrder() []*FittedModel {
	out := make([]*FittedModel, 0, len(b.Names))
	for _, name := range b.Names {
		out = append(out, b.Models[name])
	}
	return out
}

// Verdict is the outcome of a diagnostic test. Statistically ambiguous input
// yields VerdictInconclusive rather than an error.
type Verdict int

const (
	// VerdictReject indicates the null hypothesis is rejected at the 5% level
	VerdictReject Verdict = iota
	// VerdictFailToReject indicates no evidence against the null
	VerdictFailToReject
	// VerdictInconclusive indicates the test could not be decided numerically
	VerdictInconclusive
)

// String returns the string representation of the verdict
func (v Verdict) String() string {
	switch v {
	case VerdictReject:
		return "REJECT"
	case VerdictFailToReject:
		return "FAIL_TO_REJECT"
	case VerdictInconclusive:
		return "INCONCLUSIVE"
	default:
		return "unknown"
	}
}

// DiagnosticResult is the outcome of one diagnostic test. PValue is NaN for
// tests without a reference distribution (VIF).
type DiagnosticResult struct {
	TestName  string
	Statistic float64
	PValue    float64
	DF        int
	Verdict   Verdict
	Detail    string
}

// Settings contains the numerical knobs of the estimation engine
type Settings struct {
	// Tolerance is the convergence tolerance for two-way demeaning
	Tolerance float64
	// MaxIterations caps the alternating demeaning sweeps
	MaxIterations int
	// VIFThreshold flags regressors whose variance inflation factor exceeds it
	VIFThreshold float64
	// Workers bounds concurrent estimations inside a batch
	Workers int
}

// DefaultSettings returns the engine defaults
func DefaultSettings() Settings {
	return Settings{
		Tolerance:     DefaultTolerance,
		MaxIterations: DefaultMaxIterations,
		VIFThreshold:  DefaultVIFThreshold,
		Workers:       4,
	}
}

// Constants for default values
const (
	// DefaultTolerance is the two-way demeaning convergence tolerance
	DefaultTolerance = 1e-8
	// DefaultMaxIterations caps alternating demeaning sweeps
	DefaultMaxIterations = 100
	// DefaultVIFThreshold is the conventional multicollinearity flag level
	DefaultVIFThreshold = 10.0
	// MinClusters is the minimum cluster count for clustered standard errors
	MinClusters = 2
	// MinTimesPerEntity is the minimum distinct time periods per entity for
	// any fixed-effects estimation to be defined
	MinTimesPerEntity = 2
)
