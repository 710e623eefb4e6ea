package format

import (
	"io"

	"go.followtheprocess.codes/gild/internal/report"
	"go.yaml.in/yaml/v4"
)

const yamlIndent = 2

// YAMLExporter is an [Exporter] that transforms a run summary into a YAML document.
type YAMLExporter struct{}

// Export implements [Exporter] for [YAMLExporter] and exports the given summary as
// a complete YAML document.
func (y YAMLExporter) Export(w io.Writer, summary report.Summary) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(yamlIndent)

	if err := encoder.Encode(summary); err != nil {
		return err
	}

	return encoder.Close()
}
