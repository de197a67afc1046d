package econometrics

import (
	"fmt"
	"regexp"
	"strconv"
)

var lagSuffixRe = regexp.MustCompile(`^(.*)_lag(\d+)$`)

// lagName rewrites a column name to the target lag. Lag 0 is the bare base
// name; names without a _lagN suffix are treated as lag 0 of themselves.
func lagName(col string, target int) string {
	base := col
	if m := lagSuffixRe.FindStringSubmatch(col); m != nil {
		base = m[1]
	}
	if target == 0 {
		return base
	}
	return fmt.Sprintf("%s_lag%d", base, target)
}

// hasLagSuffix reports whether the column name carries an explicit _lagN suffix
func hasLagSuffix(col string) bool {
	return lagSuffixRe.MatchString(col)
}

// WithLag derives a variant whose lagged regressors are shifted to the target
// lag, consistently across the whole regressor set. Regressors without a lag
// suffix (controls such as log_assets) are left untouched. The variant is
// validated against the frame: a requested lag that is not present fails with
// MissingColumnError.
func (s ModelSpec) WithLag(frame *Frame, target int) (ModelSpec, error) {
	if target < 0 {
		return ModelSpec{}, fmt.Errorf("negative lag %d requested", target)
	}

	variant := s
	variant.Regressors = make([]string, len(s.Regressors))
	for i, reg := range s.Regressors {
		if hasLagSuffix(reg) {
			variant.Regressors[i] = lagName(reg, target)
		} else {
			// Control variables carry no lag suffix and stay at their own lag.
			variant.Regressors[i] = reg
		}
	}
	for _, reg := range variant.Regressors {
		if !frame.HasColumn(reg) {
			return ModelSpec{}, &MissingColumnError{
				Column:  reg,
				Context: fmt.Sprintf("lag-%d variant", target),
			}
		}
	}
	if err := variant.Validate(frame); err != nil {
		return ModelSpec{}, fmt.Errorf("lag-%d variant: %w", target, err)
	}
	return variant, nil
}

// WithFilter derives a variant carrying an additional sample filter. The base
// spec is not mutated; when the base already has a filter both must hold.
func (s ModelSpec) WithFilter(name string, keep func(r Row) bool) ModelSpec {
	variant := s
	base := s.Filter
	if base == nil {
		variant.Filter = &SampleFilter{Name: name, Keep: keep}
		return variant
	}
	variant.Filter = &SampleFilter{
		Name: base.Name + " & " + name,
		Keep: func(r Row) bool { return base.Keep(r) && keep(r) },
	}
	return variant
}

// YearBefore builds a sample filter keeping observations with year < cutoff
func YearBefore(cutoff int) func(r Row) bool {
	return func(r Row) bool { return r.Value("year") < float64(cutoff) }
}

// YearFrom builds a sample filter keeping observations with year >= cutoff
func YearFrom(cutoff int) func(r Row) bool {
	return func(r Row) bool { return r.Value("year") >= float64(cutoff) }
}

// RobustnessVariants derives the standard robustness batch from a base spec:
// lag 0/1/2 shifts followed by the pre-2020 and post-2015 subsamples, in that
// display order.
func RobustnessVariants(base ModelSpec, frame *Frame) ([]BatchEntry, error) {
	entries := make([]BatchEntry, 0, 5)

	for _, lag := range []int{0, 1, 2} {
		variant, err := base.WithLag(frame, lag)
		if err != nil {
			return nil, fmt.Errorf("derive lag variants: %w", err)
		}
		entries = append(entries, BatchEntry{
			Name: "Lag " + strconv.Itoa(lag),
			Spec: variant,
		})
	}

	entries = append(entries,
		BatchEntry{Name: "Pre-2020", Spec: base.WithFilter("year < 2020", YearBefore(2020))},
		BatchEntry{Name: "Post-2015", Spec: base.WithFilter("year >= 2015", YearFrom(2015))},
	)
	return entries, nil
}
