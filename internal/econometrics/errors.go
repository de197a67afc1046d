package econometrics

import "fmt"

// InsufficientDataError reports that a requested estimation or standard-error
// computation does not have enough observations, clusters, or time periods.
type InsufficientDataError struct {
	Reason string
	Have   int
	Need   int
}

// Error implements the error interface
func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %s (have %d, need %d)", e.Reason, e.Have, e.Need)
}

// DegenerateVarianceError reports a non-positive variance estimate. Variance
// estimates are never clamped; a degenerate value always surfaces to the caller.
type DegenerateVarianceError struct {
	Coefficient string
	Variance    float64
}

// Error implements the error interface
func (e *DegenerateVarianceError) Error() string {
	return fmt.Sprintf("degenerate variance estimate for %q: %g", e.Coefficient, e.Variance)
}

// MissingColumnError reports a specification referencing a column that is
// absent from the panel frame.
type MissingColumnError struct {
	Column  string
	Context string
}

// Error implements the error interface
func (e *MissingColumnError) Error() string {
	if e.Context == "" {
		return fmt.Sprintf("column %q not present in frame", e.Column)
	}
	return fmt.Sprintf("column %q not present in frame (%s)", e.Column, e.Context)
}
