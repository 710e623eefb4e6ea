package format

import (
	"io"

	"github.com/BurntSushi/toml"
	"go.followtheprocess.codes/gild/internal/report"
)

// TOMLExporter is an [Exporter] that transforms a run summary into a TOML document.
type TOMLExporter struct{}

// Export implements [Exporter] for [TOMLExporter] and exports the given summary
// as a complete TOML document.
func (t TOMLExporter) Export(w io.Writer, summary report.Summary) error {
	encoder := toml.NewEncoder(w)
	encoder.Indent = ""

	return encoder.Encode(summary)
}
