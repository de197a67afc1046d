package econometrics

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"
)

// smallSampleDOF is the residual-dof cutoff below which significance uses a
// t reference instead of the normal.
const smallSampleDOF = 30

// TableCell is one regressor entry in the comparison table: point estimate
// with significance markers over the standard error in parentheses.
type TableCell struct {
	Estimate string
	StdErr   string
}

// CoefficientRow is one regressor's row across all models in the batch
type CoefficientRow struct {
	Label string
	Cells []TableCell
}

// SummaryRow is one fit-statistic row across all models in the batch
type SummaryRow struct {
	Label  string
	Values []string
}

// TableArtifact is the structured comparison table handed to an external
// renderer. Building it performs no file I/O and generates no markup.
type TableArtifact struct {
	Title       string
	ModelNames  []string
	Coefficient []CoefficientRow
	Summary     []SummaryRow
	Footnote    string
}

// twoSidedPValue computes the two-sided p-value of a t statistic, using a t
// reference for small residual dof and the normal otherwise.
func twoSidedPValue(t float64, dof int) float64 {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return math.NaN()
	}
	abs := math.Abs(t)
	if dof > 0 && dof < smallSampleDOF {
		dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(dof)}
		return 2 * (1 - dist.CDF(abs))
	}
	return 2 * (1 - distuv.Normal{Mu: 0, Sigma: 1}.CDF(abs))
}

// significanceStars maps a two-sided p-value to its display markers. The
// thresholds are inclusive, so a p-value of exactly 0.05 earns two stars.
func significanceStars(p float64) string {
	switch {
	case math.IsNaN(p):
		return ""
	case p <= 0.01:
		return "***"
	case p <= 0.05:
		return "**"
	case p <= 0.10:
		return "*"
	default:
		return ""
	}
}

// formatCell renders one coefficient at fixed three-decimal precision
func formatCell(coef, se float64, dof int) TableCell {
	p := twoSidedPValue(coef/se, dof)
	return TableCell{
		Estimate: fmt.Sprintf("%.3f%s", coef, significanceStars(p)),
		StdErr:   fmt.Sprintf("(%.3f)", se),
	}
}

// BuildTable formats a batch as a comparison table: one row per regressor in
// first-appearance order, one column per model in batch order, plus the
// Observations / Within R² / Between R² summary rows and a footnote naming
// each model's SE type and fixed effects.
func BuildTable(title string, batch *Batch) *TableArtifact {
	models := batch.InOrder()

	var rowOrder []string
	seen := make(map[string]struct{})
	for _, m := range models {
		for _, name := range m.coefNames {
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				rowOrder = append(rowOrder, name)
			}
		}
	}

	artifact := &TableArtifact{
		Title:      title,
		ModelNames: append([]string(nil), batch.Names...),
	}

	for _, reg := range rowOrder {
		row := CoefficientRow{Label: reg, Cells: make([]TableCell, len(models))}
		for i, m := range models {
			if !m.Converged {
				continue
			}
			coef, ok := m.Coefficients[reg]
			if !ok {
				continue
			}
			row.Cells[i] = formatCell(coef, m.StandardErrors[reg], m.Stats.DOFResidual)
		}
		artifact.Coefficient = append(artifact.Coefficient, row)
	}

	obs := SummaryRow{Label: "Observations", Values: make([]string, len(models))}
	within := SummaryRow{Label: "Within R²", Values: make([]string, len(models))}
	between := SummaryRow{Label: "Between R²", Values: make([]string, len(models))}
	for i, m := range models {
		if !m.Converged {
			obs.Values[i] = "—"
			within.Values[i] = "—"
			between.Values[i] = "—"
			continue
		}
		obs.Values[i] = fmt.Sprintf("%d", m.NObs)
		within.Values[i] = fmt.Sprintf("%.3f", m.Stats.WithinR2)
		between.Values[i] = fmt.Sprintf("%.3f", m.Stats.BetweenR2)
	}
	artifact.Summary = []SummaryRow{obs, within, between}

	notes := make([]string, 0, len(models))
	for i, m := range models {
		if !m.Converged {
			notes = append(notes, fmt.Sprintf("(%d) %s: did not converge", i+1, batch.Names[i]))
			continue
		}
		notes = append(notes, fmt.Sprintf("(%d) %s: %s", i+1, batch.Names[i], m.Spec.DisplayFootnote()))
	}
	notes = append(notes, "*** p<0.01, ** p<0.05, * p<0.10")
	artifact.Footnote = strings.Join(notes, ". ")

	return artifact
}
