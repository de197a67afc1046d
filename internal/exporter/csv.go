package exporter

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"banklens/internal/econometrics"
)

// WriteTableCSV renders a comparison table to CSV. Each regressor spans two
// rows: the point estimate with significance markers, then the standard
// error in parentheses.
func WriteTableCSV(artifact *econometrics.TableArtifact, outputPath string) error {
	if artifact == nil || len(artifact.ModelNames) == 0 {
		return fmt.Errorf("no table to write")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	width := len(artifact.ModelNames) + 1

	title := make([]string, width)
	title[0] = artifact.Title
	if err := writer.Write(title); err != nil {
		return fmt.Errorf("write title row: %w", err)
	}

	header := append([]string{""}, artifact.ModelNames...)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write header row: %w", err)
	}

	for _, row := range artifact.Coefficient {
		estimates := make([]string, width)
		stderrs := make([]string, width)
		estimates[0] = row.Label
		for i, cell := range row.Cells {
			estimates[i+1] = cell.Estimate
			stderrs[i+1] = cell.StdErr
		}
		if err := writer.Write(estimates); err != nil {
			return fmt.Errorf("write row for %s: %w", row.Label, err)
		}
		if err := writer.Write(stderrs); err != nil {
			return fmt.Errorf("write SE row for %s: %w", row.Label, err)
		}
	}

	for _, row := range artifact.Summary {
		record := append([]string{row.Label}, row.Values...)
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write summary row %s: %w", row.Label, err)
		}
	}

	footnote := make([]string, width)
	footnote[0] = artifact.Footnote
	if err := writer.Write(footnote); err != nil {
		return fmt.Errorf("write footnote row: %w", err)
	}
	return nil
}
