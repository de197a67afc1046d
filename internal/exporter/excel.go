package exporter

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"banklens/internal/econometrics"
)

// WriteTableXLSX renders a comparison table to an Excel workbook with the
// same two-line-per-regressor layout as the CSV renderer.
func WriteTableXLSX(artifact *econometrics.TableArtifact, outputPath string) error {
	if artifact == nil || len(artifact.ModelNames) == 0 {
		return fmt.Errorf("no table to write")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	set := func(col, row int, value string) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return f.SetCellValue(sheet, cell, value)
	}

	if err := set(1, 1, artifact.Title); err != nil {
		return fmt.Errorf("write title: %w", err)
	}

	headerRow := 2
	for i, name := range artifact.ModelNames {
		if err := set(i+2, headerRow, name); err != nil {
			return fmt.Errorf("write header %s: %w", name, err)
		}
	}

	row := headerRow + 1
	for _, coef := range artifact.Coefficient {
		if err := set(1, row, coef.Label); err != nil {
			return fmt.Errorf("write label %s: %w", coef.Label, err)
		}
		for i, cell := range coef.Cells {
			if err := set(i+2, row, cell.Estimate); err != nil {
				return err
			}
			if err := set(i+2, row+1, cell.StdErr); err != nil {
				return err
			}
		}
		row += 2
	}

	for _, summary := range artifact.Summary {
		if err := set(1, row, summary.Label); err != nil {
			return fmt.Errorf("write summary label %s: %w", summary.Label, err)
		}
		for i, value := range summary.Values {
			if err := set(i+2, row, value); err != nil {
				return err
			}
		}
		row++
	}

	if err := set(1, row+1, artifact.Footnote); err != nil {
		return fmt.Errorf("write footnote: %w", err)
	}

	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		start, _ := excelize.CoordinatesToCellName(1, headerRow)
		end, _ := excelize.CoordinatesToCellName(len(artifact.ModelNames)+1, headerRow)
		_ = f.SetCellStyle(sheet, start, end, boldStyle)
	}
	_ = f.SetColWidth(sheet, "A", "A", 24)

	if err := f.SaveAs(outputPath); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}
