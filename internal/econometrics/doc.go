// Package econometrics implements the canonical panel-data estimation engine
// for the bank macro-sensitivity analysis.
//
// The engine links bank financial KPIs (return on equity, net interest
// margin, efficiency ratio, quarterly stock return) to lagged macroeconomic
// regressors across multiple model specifications, robustness variants and
// diagnostic tests. All numerics live here: any reporting surface consumes
// fitted models from this single engine rather than re-implementing the
// estimators.
//
// # Core Components
//
//   - panel.go: read-only entity×time Frame, subset filtering, CSV loading
//   - types.go: ModelSpec, FittedModel, Batch, DiagnosticResult, Settings
//   - spec.go: eager specification validation against the frame schema
//   - variants.go: lag-shift and subsample robustness variant generation
//   - estimator.go: within-transformation fixed-effects estimator
//   - random.go: Swamy-Arora random-effects estimator (Hausman counterpart)
//   - stderr.go: pluggable variance-covariance estimators
//   - batch.go: ordered batch orchestration over a worker pool
//   - diagnostics.go: Hausman, serial-correlation, heteroskedasticity and
//     VIF tests
//   - export.go: comparison-table artifact construction
//
// # Estimation
//
// Fixed effects are absorbed by demeaning. One-way demeaning is exact in a
// single pass; two-way demeaning alternates the entity and time dimensions
// until the largest remaining group mean falls below the configured
// tolerance. The demeaned system is solved by ordinary least squares via
// normal equations, with an SVD pseudo-inverse fallback for degenerate
// designs.
//
// Fixed-effect levels with a single observation are dropped before
// demeaning and do not count toward degrees of freedom. Entities need at
// least two distinct time periods to participate in any estimation.
//
// # Standard Errors
//
// Four variance-covariance estimators share the sandwich form:
//
//   - SERobust: heteroskedasticity-consistent HC1
//   - SEClustered: CRV1 with arbitrary correlation within entity (or time)
//     clusters; at least two clusters required
//   - SEHAC: Newey-West with a Bartlett kernel applied within each entity's
//     time series; bandwidth 0 degenerates to HC1, a negative bandwidth
//     selects floor(4*(T/100)^(2/9))
//   - SEPCSE: Beck-Katz panel-corrected standard errors, optionally after a
//     Prais-Winsten AR(1) transform
//
// A non-positive variance estimate is never clamped; it surfaces as a
// DegenerateVarianceError.
//
// # Usage
//
//	frame, err := econometrics.LoadPanelCSV("data/modeling_dataset.csv")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	est := econometrics.NewEstimator(econometrics.DefaultSettings(), slog.Default())
//	batch, failures := est.RunBatch(ctx, frame, entries)
//	for _, f := range failures {
//	    log.Printf("spec %s failed: %v", f.Name, f.Err)
//	}
//
//	table := econometrics.BuildTable("Macro sensitivity of bank KPIs", batch)
//
// A failure on one specification never aborts a batch; the entry is recorded
// as a non-converged model and the remaining specifications run to
// completion. Frames are read-only after construction, so batch entries
// estimate concurrently without locks.
package econometrics
