package econometrics

import "fmt"

// Validate checks the specification against the frame's schema. Malformed
// specifications are rejected here, before any estimation work begins, with
// a message naming the offending field.
func (s ModelSpec) Validate(frame *Frame) error {
	if s.Dependent == "" {
		return fmt.Errorf("spec has no dependent variable")
	}
	if len(s.Regressors) == 0 {
		return fmt.Errorf("spec %q has no regressors", s.Dependent)
	}
	if !frame.HasColumn(s.Dependent) {
		return &MissingColumnError{Column: s.Dependent, Context: "dependent variable"}
	}

	seen := make(map[string]struct{}, len(s.Regressors))
	for _, reg := range s.Regressors {
		if reg == s.Dependent {
			return fmt.Errorf("regressor set includes the dependent variable %q", reg)
		}
		if _, dup := seen[reg]; dup {
			return fmt.Errorf("regressor %q listed twice", reg)
		}
		seen[reg] = struct{}{}
		if !frame.HasColumn(reg) {
			return &MissingColumnError{Column: reg, Context: "regressor"}
		}
	}

	if len(s.FixedEffects) == 0 {
		return fmt.Errorf("spec %q absorbs no fixed effects", s.Dependent)
	}
	if len(s.FixedEffects) > 2 {
		return fmt.Errorf("spec %q requests %d fixed-effect dimensions, at most 2 supported", s.Dependent, len(s.FixedEffects))
	}
	feSeen := make(map[FixedEffect]struct{}, len(s.FixedEffects))
	for _, fe := range s.FixedEffects {
		if fe != FEEntity && fe != FETime {
			return fmt.Errorf("spec %q names unknown fixed-effect dimension %d", s.Dependent, fe)
		}
		if _, dup := feSeen[fe]; dup {
			return fmt.Errorf("spec %q lists fixed effect %s twice", s.Dependent, fe)
		}
		feSeen[fe] = struct{}{}
	}

	switch s.SEType {
	case SERobust, SEHAC, SEPCSE:
	case SEClustered:
		switch s.ClusterBy {
		case "", "entity", "time":
		default:
			return fmt.Errorf("spec %q clusters by unknown key %q", s.Dependent, s.ClusterBy)
		}
	default:
		return fmt.Errorf("spec %q has unknown standard-error type %d", s.Dependent, s.SEType)
	}

	return nil
}

// clusterKey resolves the cluster dimension, defaulting to entity
func (s ModelSpec) clusterKey() string {
	if s.ClusterBy == "" {
		return "entity"
	}
	return s.ClusterBy
}

// requiredColumns returns every column the estimation sample must provide
func (s ModelSpec) requiredColumns() []string {
	cols := make([]string, 0, len(s.Regressors)+1)
	cols = append(cols, s.Dependent)
	cols = append(cols, s.Regressors...)
	return cols
}

// DisplayFootnote describes the SE type and fixed effects of the spec for
// table footnotes.
func (s ModelSpec) DisplayFootnote() string {
	fes := ""
	for i, fe := range s.FixedEffects {
		if i > 0 {
			fes += "+"
		}
		fes += fe.String()
	}
	se := s.SEType.String()
	if s.SEType == SEClustered {
		se = fmt.Sprintf("clustered(%s)", s.clusterKey())
	}
	return fmt.Sprintf("SE: %s; FE: %s", se, fes)
}
