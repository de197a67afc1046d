package exporter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"banklens/internal/econometrics"
)

// WriteDiagnosticsText persists a short companion artifact listing which
// diagnostic tests were run and their verdicts. Full numeric output stays in
// logs by design.
func WriteDiagnosticsText(results []econometrics.DiagnosticResult, outputPath string) error {
	if len(results) == 0 {
		return fmt.Errorf("no diagnostic results to write")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("Diagnostic tests run:\n")
	for _, r := range results {
		fmt.Fprintf(&b, "  - %s: %s\n", r.TestName, r.Verdict)
	}

	if err := os.WriteFile(outputPath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write diagnostics artifact: %w", err)
	}
	return nil
}
