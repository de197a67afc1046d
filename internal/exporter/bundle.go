package exporter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"banklens/internal/econometrics"
)

// batchBundle is the persisted form of a model batch. Models are stored as a
// slice to preserve insertion order, which a JSON object would not.
type batchBundle struct {
	RunID       string       `json:"run_id"`
	GeneratedAt time.Time    `json:"generated_at"`
	Models      []namedModel `json:"models"`
}

type namedModel struct {
	Name         string             `json:"name"`
	Dependent    string             `json:"dependent"`
	Regressors   []string           `json:"regressors"`
	FixedEffects []string           `json:"fixed_effects"`
	SEType       string             `json:"se_type"`
	SampleFilter string             `json:"sample_filter,omitempty"`
	Coefficients map[string]float64 `json:"coefficients,omitempty"`
	StdErrors    map[string]float64 `json:"standard_errors,omitempty"`
	NObs         int                `json:"n_obs"`
	WithinR2     float64            `json:"within_r2"`
	BetweenR2    float64            `json:"between_r2"`
	DOFResidual  int                `json:"dof_residual"`
	Converged    bool               `json:"converged"`
	Failure      string             `json:"failure_reason,omitempty"`
}

// WriteBatchJSON persists a model batch as an ordered JSON bundle suitable
// for later table rendering.
func WriteBatchJSON(batch *econometrics.Batch, outputPath string) error {
	if batch == nil || len(batch.Names) == 0 {
		return fmt.Errorf("no batch to write")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	bundle := batchBundle{
		RunID:       batch.RunID,
		GeneratedAt: time.Now().UTC(),
		Models:      make([]namedModel, 0, len(batch.Names)),
	}
	for _, name := range batch.Names {
		m := batch.Models[name]
		fes := make([]string, 0, len(m.Spec.FixedEffects))
		for _, fe := range m.Spec.FixedEffects {
			fes = append(fes, fe.String())
		}
		entry := namedModel{
			Name:         name,
			Dependent:    m.Spec.Dependent,
			Regressors:   m.Spec.Regressors,
			FixedEffects: fes,
			SEType:       m.Spec.SEType.String(),
			Coefficients: m.Coefficients,
			StdErrors:    m.StandardErrors,
			NObs:         m.NObs,
			WithinR2:     m.Stats.WithinR2,
			BetweenR2:    m.Stats.BetweenR2,
			DOFResidual:  m.Stats.DOFResidual,
			Converged:    m.Converged,
			Failure:      m.FailureReason,
		}
		if m.Spec.Filter != nil {
			entry.SampleFilter = m.Spec.Filter.Name
		}
		bundle.Models = append(bundle.Models, entry)
	}

	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal batch bundle: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("write batch bundle: %w", err)
	}
	return nil
}
