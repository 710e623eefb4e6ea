// Package format provides mechanisms for exporting the results of a run into
// machine readable formats.
//
// Notably, the package provides the [Exporter] interface for doing this in a
// format-agnostic way, and the built in text, JSON, YAML and TOML exporters.
package format

import (
	"fmt"
	"io"
	"strings"

	"go.followtheprocess.codes/gild/internal/report"
)

// Exporter is the interface defining a mechanism for exporting a [report.Summary]
// into an external format.
type Exporter interface {
	// Export exports the [report.Summary] into an external format, written to w.
	Export(w io.Writer, summary report.Summary) error
}

// Names returns the names of every built in exporter, sorted.
func Names() []string {
	return []string{"json", "text", "toml", "yaml"}
}

// New returns the built in [Exporter] called name, options only affect the
// text exporter.
func New(name string, options report.Options) (Exporter, error) {
	switch strings.ToLower(name) {
	case "", "text":
		return TextExporter{Options: options}, nil
	case "json":
		return JSONExporter{}, nil
	case "yaml", "yml":
		return YAMLExporter{}, nil
	case "toml":
		return TOMLExporter{}, nil
	default:
		return nil, fmt.Errorf("unknown format %q, expected one of %s", name, strings.Join(Names(), ", "))
	}
}

// TextExporter is an [Exporter] that renders the human readable summary.
type TextExporter struct {
	Options report.Options
}

// Export implements [Exporter] for [TextExporter].
func (t TextExporter) Export(w io.Writer, summary report.Summary) error {
	return summary.Render(w, t.Options)
}
