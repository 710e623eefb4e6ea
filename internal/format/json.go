package format

import (
	"encoding/json"
	"io"

	"go.followtheprocess.codes/gild/internal/report"
)

// JSONExporter is an [Exporter] that transforms a run summary into a JSON document.
type JSONExporter struct{}

// Export implements [Exporter] for [JSONExporter] and exports the given summary
// as a complete JSON document.
func (j JSONExporter) Export(w io.Writer, summary report.Summary) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(summary)
}
