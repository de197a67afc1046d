package exporter

import (
	"encoding/csv"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"banklens/internal/econometrics"
)

func testArtifact() *econometrics.TableArtifact {
	return &econometrics.TableArtifact{
		Title:      "Macro sensitivity",
		ModelNames: []string{"ROE FE", "NIM FE"},
		Coefficient: []econometrics.CoefficientRow{
			{
				Label: "fed_funds_lag1",
				Cells: []econometrics.TableCell{
					{Estimate: "0.123**", StdErr: "(0.045)"},
					{Estimate: "-0.010", StdErr: "(0.021)"},
				},
			},
			{
				Label: "term_spread_lag1",
				Cells: []econometrics.TableCell{
					{Estimate: "1.500***", StdErr: "(0.200)"},
					{Estimate: "", StdErr: ""},
				},
			},
		},
		Summary: []econometrics.SummaryRow{
			{Label: "Observations", Values: []string{"480", "480"}},
			{Label: "Within R²", Values: []string{"0.310", "0.120"}},
			{Label: "Between R²", Values: []string{"0.150", "0.090"}},
		},
		Footnote: "(1) ROE FE: SE: clustered(entity); FE: entity. *** p<0.01, ** p<0.05, * p<0.10",
	}
}

func TestWriteTableCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "main.csv")
	require.NoError(t, WriteTableCSV(testArtifact(), path))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)

	// Title, header, two rows per regressor, three summary rows, footnote.
	require.Len(t, records, 1+1+2*2+3+1)
	assert.Equal(t, "Macro sensitivity", records[0][0])
	assert.Equal(t, []string{"", "ROE FE", "NIM FE"}, records[1])
	assert.Equal(t, []string{"fed_funds_lag1", "0.123**", "-0.010"}, records[2])
	assert.Equal(t, []string{"", "(0.045)", "(0.021)"}, records[3])
	assert.Equal(t, []string{"Observations", "480", "480"}, records[6])
	assert.Contains(t, records[9][0], "p<0.01")
}

func TestWriteTableCSVRejectsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.csv")
	assert.Error(t, WriteTableCSV(nil, path))
	assert.Error(t, WriteTableCSV(&econometrics.TableArtifact{}, path))
}

func TestWriteTableXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "main.xlsx")
	require.NoError(t, WriteTableXLSX(testArtifact(), path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	sheet := f.GetSheetName(0)
	title, err := f.GetCellValue(sheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Macro sensitivity", title)

	header, err := f.GetCellValue(sheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "ROE FE", header)

	estimate, err := f.GetCellValue(sheet, "B3")
	require.NoError(t, err)
	assert.Equal(t, "0.123**", estimate)

	stderr, err := f.GetCellValue(sheet, "B4")
	require.NoError(t, err)
	assert.Equal(t, "(0.045)", stderr)
}

func TestWriteBatchJSON(t *testing.T) {
	spec := econometrics.ModelSpec{
		Dependent:    "roe",
		Regressors:   []string{"fed_funds_lag1"},
		FixedEffects: []econometrics.FixedEffect{econometrics.FEEntity},
		SEType:       econometrics.SEClustered,
	}
	batch := &econometrics.Batch{
		RunID: "run-123",
		Names: []string{"Main", "Broken"},
		Models: map[string]*econometrics.FittedModel{
			"Main": {
				Spec:           spec,
				Coefficients:   map[string]float64{"fed_funds_lag1": 0.12},
				StandardErrors: map[string]float64{"fed_funds_lag1": 0.04},
				NObs:           480,
				Stats:          econometrics.FitStats{WithinR2: 0.3, DOFResidual: 400},
				Converged:      true,
			},
			"Broken": {Spec: spec, Converged: false, FailureReason: "insufficient data"},
		},
	}

	path := filepath.Join(t.TempDir(), "bundles", "models.json")
	require.NoError(t, WriteBatchJSON(batch, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded struct {
		RunID  string `json:"run_id"`
		Models []struct {
			Name      string `json:"name"`
			Dependent string `json:"dependent"`
			SEType    string `json:"se_type"`
			Converged bool   `json:"converged"`
			Failure   string `json:"failure_reason"`
		} `json:"models"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "run-123", decoded.RunID)
	require.Len(t, decoded.Models, 2)
	assert.Equal(t, "Main", decoded.Models[0].Name)
	assert.Equal(t, "roe", decoded.Models[0].Dependent)
	assert.Equal(t, "clustered", decoded.Models[0].SEType)
	assert.True(t, decoded.Models[0].Converged)
	assert.Equal(t, "Broken", decoded.Models[1].Name)
	assert.Equal(t, "insufficient data", decoded.Models[1].Failure)
}

func TestWriteBatchJSONRejectsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.json")
	assert.Error(t, WriteBatchJSON(nil, path))
	assert.Error(t, WriteBatchJSON(&econometrics.Batch{}, path))
}

func TestWriteDiagnosticsText(t *testing.T) {
	results := []econometrics.DiagnosticResult{
		{TestName: "hausman", Verdict: econometrics.VerdictReject, Statistic: 12.3},
		{TestName: "vif-multicollinearity", Verdict: econometrics.VerdictInconclusive, PValue: math.NaN()},
	}

	path := filepath.Join(t.TempDir(), "reports", "diagnostics.txt")
	require.NoError(t, WriteDiagnosticsText(results, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "Diagnostic tests run:")
	assert.Contains(t, text, "- hausman: REJECT")
	assert.Contains(t, text, "- vif-multicollinearity: INCONCLUSIVE")
}

func TestWriteDiagnosticsTextRejectsEmpty(t *testing.T) {
	assert.Error(t, WriteDiagnosticsText(nil, filepath.Join(t.TempDir(), "d.txt")))
}
