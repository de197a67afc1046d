package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"banklens/internal/config"
	"banklens/internal/econometrics"
	"banklens/internal/exporter"
	"banklens/internal/infrastructure"
)

// macroRegressors returns the lagged macro variable set plus controls
func macroRegressors(lag int) []string {
	macro := []string{"fed_funds", "term_spread", "unemployment", "gdp_growth", "cpi_yoy"}
	regs := make([]string, 0, len(macro)+2)
	for _, m := range macro {
		if lag == 0 {
			regs = append(regs, m)
		} else {
			regs = append(regs, fmt.Sprintf("%s_lag%d", m, lag))
		}
	}
	return append(regs, "log_assets", "equity_ratio")
}

// mainEntries builds the six core specifications in display order
func mainEntries(hacBandwidth int) []econometrics.BatchEntry {
	regs := macroRegressors(1)
	entity := []econometrics.FixedEffect{econometrics.FEEntity}
	twoWay := []econometrics.FixedEffect{econometrics.FEEntity, econometrics.FETime}

	return []econometrics.BatchEntry{
		{Name: "ROE FE", Spec: econometrics.ModelSpec{
			Dependent: "roe", Regressors: regs,
			FixedEffects: entity, SEType: econometrics.SEClustered,
		}},
		{Name: "ROE two-way", Spec: econometrics.ModelSpec{
			Dependent: "roe", Regressors: regs,
			FixedEffects: twoWay, SEType: econometrics.SEClustered,
		}},
		{Name: "NIM FE", Spec: econometrics.ModelSpec{
			Dependent: "nim", Regressors: regs,
			FixedEffects: entity, SEType: econometrics.SEClustered,
		}},
		{Name: "Efficiency FE", Spec: econometrics.ModelSpec{
			Dependent: "efficiency_ratio", Regressors: regs,
			FixedEffects: entity, SEType: econometrics.SEClustered,
		}},
		{Name: "Return FE", Spec: econometrics.ModelSpec{
			Dependent: "quarterly_return", Regressors: regs,
			FixedEffects: entity, SEType: econometrics.SEHAC, HACBandwidth: hacBandwidth,
		}},
		{Name: "ROE HAC", Spec: econometrics.ModelSpec{
			Dependent: "roe", Regressors: regs,
			FixedEffects: entity, SEType: econometrics.SEHAC, HACBandwidth: hacBandwidth,
		}},
	}
}

func run() error {
	dataPath := flag.String("data", "", "panel dataset CSV (defaults to <data_dir>/modeling_dataset.csv)")
	outputDir := flag.String("out", "", "output directory for report artifacts (defaults to reports dir)")
	workers := flag.Int("workers", 0, "estimation worker count (defaults to config)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}

	ctx := infrastructure.EnsureTraceID(context.Background())

	if *dataPath == "" {
		*dataPath = cfg.PanelArtifactPath()
	}
	if *outputDir == "" {
		*outputDir = cfg.Paths.ReportsDir
	}
	if *workers <= 0 {
		*workers = cfg.Engine.Workers
	}

	logger.InfoContext(ctx, "loading panel dataset", "path", *dataPath)
	frame, err := econometrics.LoadPanelCSV(*dataPath)
	if err != nil {
		return fmt.Errorf("load panel dataset: %w", err)
	}
	logger.InfoContext(ctx, "loaded panel dataset",
		"observations", frame.NumRows(),
		"columns", len(frame.ColumnNames()),
	)

	settings := econometrics.Settings{
		Tolerance:     cfg.Engine.Tolerance,
		MaxIterations: cfg.Engine.MaxIterations,
		VIFThreshold:  cfg.Engine.VIFThreshold,
		Workers:       *workers,
	}
	est := econometrics.NewEstimator(settings, logger)

	// Main batch: six core specifications.
	entries := mainEntries(cfg.Engine.HACBandwidth)
	mainBatch, mainFailures := est.RunBatch(ctx, frame, entries)
	for _, f := range mainFailures {
		logger.WarnContext(ctx, "main specification failed", "name", f.Name, "error", f.Err)
	}

	// Robustness batch: lag and subsample variants of the lead spec.
	robustEntries, err := econometrics.RobustnessVariants(entries[0].Spec, frame)
	if err != nil {
		return fmt.Errorf("derive robustness variants: %w", err)
	}
	robustBatch, robustFailures := est.RunBatch(ctx, frame, robustEntries)
	for _, f := range robustFailures {
		logger.WarnContext(ctx, "robustness specification failed", "name", f.Name, "error", f.Err)
	}

	// Diagnostics on the lead specification.
	suite := econometrics.NewDiagnosticsSuite(est, logger)
	diagnostics, err := suite.RunAll(ctx, frame, entries[0].Spec)
	if err != nil {
		return fmt.Errorf("run diagnostics: %w", err)
	}

	mainTable := econometrics.BuildTable("Macro sensitivity of bank KPIs", mainBatch)
	robustTable := econometrics.BuildTable("Robustness: lag and subsample variants", robustBatch)

	outputs := []struct {
		name string
		fn   func() error
	}{
		{"main table CSV", func() error {
			return exporter.WriteTableCSV(mainTable, filepath.Join(*outputDir, "macro_sensitivity_main.csv"))
		}},
		{"main table XLSX", func() error {
			return exporter.WriteTableXLSX(mainTable, filepath.Join(*outputDir, "macro_sensitivity_main.xlsx"))
		}},
		{"robust table CSV", func() error {
			return exporter.WriteTableCSV(robustTable, filepath.Join(*outputDir, "macro_sensitivity_robust.csv"))
		}},
		{"robust table XLSX", func() error {
			return exporter.WriteTableXLSX(robustTable, filepath.Join(*outputDir, "macro_sensitivity_robust.xlsx"))
		}},
		{"main batch bundle", func() error {
			return exporter.WriteBatchJSON(mainBatch, filepath.Join(*outputDir, "models_main.json"))
		}},
		{"robust batch bundle", func() error {
			return exporter.WriteBatchJSON(robustBatch, filepath.Join(*outputDir, "models_robust.json"))
		}},
		{"diagnostics artifact", func() error {
			return exporter.WriteDiagnosticsText(diagnostics, filepath.Join(*outputDir, "diagnostics.txt"))
		}},
	}
	for _, out := range outputs {
		if err := out.fn(); err != nil {
			return fmt.Errorf("write %s: %w", out.name, err)
		}
		logger.InfoContext(ctx, "wrote artifact", "artifact", out.name)
	}

	logger.InfoContext(ctx, "report complete",
		"output_dir", *outputDir,
		"main_models", len(mainBatch.Names),
		"robust_models", len(robustBatch.Names),
		"main_failures", len(mainFailures),
		"robust_failures", len(robustFailures),
	)
	return nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("macro-report failed", "error", err)
		os.Exit(1)
	}
}
