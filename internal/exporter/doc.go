// Package exporter renders the estimation engine's artifacts to files: the
// model comparison table as CSV and Excel, fitted-model batches as JSON
// bundles, and the diagnostics summary as text. It is the rendering
// collaborator of the econometrics package, which itself performs no file
// I/O.
package exporter
