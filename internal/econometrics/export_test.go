package econometrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignificanceStars(t *testing.T) {
	tests := []struct {
		p    float64
		want string
	}{
		{p: 0.001, want: "***"},
		{p: 0.01, want: "***"},
		{p: 0.03, want: "**"},
		{p: 0.05, want: "**"}, // boundary is inclusive
		{p: 0.07, want: "*"},
		{p: 0.10, want: "*"},
		{p: 0.11, want: ""},
		{p: 0.5, want: ""},
		{p: math.NaN(), want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, significanceStars(tt.p), "p=%v", tt.p)
	}
}

func TestTwoSidedPValue(t *testing.T) {
	// Small residual dof uses the fatter-tailed t reference.
	pT := twoSidedPValue(2.0, 10)
	pNorm := twoSidedPValue(2.0, 100)
	assert.Greater(t, pT, pNorm)
	assert.InDelta(t, 0.0455, pNorm, 0.001)

	assert.InDelta(t, 1.0, twoSidedPValue(0, 50), 1e-12)
	assert.True(t, math.IsNaN(twoSidedPValue(math.NaN(), 50)))
}

func TestFormatCell(t *testing.T) {
	cell := formatCell(1.2341, 0.1, 100)
	assert.Equal(t, "1.234***", cell.Estimate)
	assert.Equal(t, "(0.100)", cell.StdErr)

	cell = formatCell(-0.2, 0.3, 100)
	assert.Equal(t, "-0.200", cell.Estimate)
	assert.Equal(t, "(0.300)", cell.StdErr)
}

func tableTestBatch() *Batch {
	main := &FittedModel{
		Spec: ModelSpec{
			Dependent:    "roe",
			Regressors:   []string{"x1", "x2"},
			FixedEffects: []FixedEffect{FEEntity},
			SEType:       SERobust,
		},
		Coefficients:   map[string]float64{"x1": 1.234, "x2": -0.2},
		StandardErrors: map[string]float64{"x1": 0.1, "x2": 0.3},
		NObs:           120,
		Stats:          FitStats{WithinR2: 0.42, BetweenR2: 0.31, DOFResidual: 100},
		Converged:      true,
		coefNames:      []string{"x1", "x2"},
	}
	broken := &FittedModel{
		Spec:          main.Spec,
		Converged:     false,
		FailureReason: "insufficient data",
	}
	return &Batch{
		RunID:  "test-run",
		Names:  []string{"Main", "Broken"},
		Models: map[string]*FittedModel{"Main": main, "Broken": broken},
	}
}

func TestBuildTable(t *testing.T) {
	artifact := BuildTable("Macro sensitivity", tableTestBatch())

	assert.Equal(t, "Macro sensitivity", artifact.Title)
	assert.Equal(t, []string{"Main", "Broken"}, artifact.ModelNames)

	require.Len(t, artifact.Coefficient, 2)
	assert.Equal(t, "x1", artifact.Coefficient[0].Label)
	assert.Equal(t, "x2", artifact.Coefficient[1].Label)

	x1 := artifact.Coefficient[0]
	require.Len(t, x1.Cells, 2)
	assert.Equal(t, "1.234***", x1.Cells[0].Estimate)
	assert.Equal(t, "(0.100)", x1.Cells[0].StdErr)

	// Non-converged models render empty coefficient cells.
	assert.Empty(t, x1.Cells[1].Estimate)
	assert.Empty(t, x1.Cells[1].StdErr)

	require.Len(t, artifact.Summary, 3)
	assert.Equal(t, "Observations", artifact.Summary[0].Label)
	assert.Equal(t, []string{"120", "—"}, artifact.Summary[0].Values)
	assert.Equal(t, "Within R²", artifact.Summary[1].Label)
	assert.Equal(t, []string{"0.420", "—"}, artifact.Summary[1].Values)
	assert.Equal(t, "Between R²", artifact.Summary[2].Label)
	assert.Equal(t, []string{"0.310", "—"}, artifact.Summary[2].Values)

	assert.Contains(t, artifact.Footnote, "(1) Main: SE: robust; FE: entity")
	assert.Contains(t, artifact.Footnote, "(2) Broken: did not converge")
	assert.Contains(t, artifact.Footnote, "*** p<0.01, ** p<0.05, * p<0.10")
}

func TestBuildTableRowOrderAcrossModels(t *testing.T) {
	// Regressors appear in first-appearance order across models.
	a := &FittedModel{
		Spec:           ModelSpec{SEType: SERobust, FixedEffects: []FixedEffect{FEEntity}},
		Coefficients:   map[string]float64{"fed_funds": 0.5},
		StandardErrors: map[string]float64{"fed_funds": 0.2},
		NObs:           50,
		Stats:          FitStats{DOFResidual: 40},
		Converged:      true,
		coefNames:      []string{"fed_funds"},
	}
	b := &FittedModel{
		Spec:           a.Spec,
		Coefficients:   map[string]float64{"fed_funds": 0.4, "term_spread": 1.1},
		StandardErrors: map[string]float64{"fed_funds": 0.2, "term_spread": 0.5},
		NObs:           50,
		Stats:          FitStats{DOFResidual: 39},
		Converged:      true,
		coefNames:      []string{"fed_funds", "term_spread"},
	}
	batch := &Batch{
		Names:  []string{"A", "B"},
		Models: map[string]*FittedModel{"A": a, "B": b},
	}

	artifact := BuildTable("t", batch)
	require.Len(t, artifact.Coefficient, 2)
	assert.Equal(t, "fed_funds", artifact.Coefficient[0].Label)
	assert.Equal(t, "term_spread", artifact.Coefficient[1].Label)

	// A model missing a regressor leaves that cell empty.
	assert.Empty(t, artifact.Coefficient[1].Cells[0].Estimate)
	assert.Equal(t, "1.100**", artifact.Coefficient[1].Cells[1].Estimate)
}
