package diag

import (
	"fmt"
	"strings"
)

// Severity is the importance of a [Diagnostic].
type Severity int

const (
	SeverityError   Severity = iota // error
	SeverityWarning                 // warning
	SeverityHelp                    // help
	SeverityNote                    // note
)

// String implements [fmt.Stringer] for a [Severity], returning the
// lower case label the analyzer uses in rendered output.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityHelp:
		return "help"
	case SeverityNote:
		return "note"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// MarshalText implements [encoding.TextMarshaler] for a [Severity].
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseSeverity parses a level as reported by the analyzer into a [Severity].
//
// Marker spellings (ERROR, WARN etc.) are accepted case insensitively alongside
// the analyzer's own levels, "failure-note" is a note and anything mentioning an
// internal compiler error is an error.
func ParseSeverity(level string) (Severity, error) {
	switch lower := strings.ToLower(strings.TrimSpace(level)); lower {
	case "error":
		return SeverityError, nil
	case "warning", "warn":
		return SeverityWarning, nil
	case "help":
		return SeverityHelp, nil
	case "note", "failure-note":
		return SeverityNote, nil
	default:
		if strings.Contains(lower, "internal compiler error") {
			return SeverityError, nil
		}

		return SeverityError, fmt.Errorf("unknown diagnostic level %q", level)
	}
}

// Stream identifies which output stream of the analyzer a diagnostic came from.
type Stream int

const (
	Stderr Stream = iota // standard error, where analyzers normally report
	Stdout               // standard output
)

// String implements [fmt.Stringer] for a [Stream].
func (s Stream) String() string {
	if s == Stdout {
		return "stdout"
	}

	return "stderr"
}

// MarshalText implements [encoding.TextMarshaler] for a [Stream].
func (s Stream) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Applicability describes how confident the analyzer is in a suggested edit.
type Applicability string

const (
	Unspecified       Applicability = ""
	MachineApplicable Applicability = "MachineApplicable"
	MaybeIncorrect    Applicability = "MaybeIncorrect"
	HasPlaceholders   Applicability = "HasPlaceholders"
)

// Automatic reports whether an edit with this applicability may be applied
// without a human looking at it.
func (a Applicability) Automatic() bool {
	return a == Unspecified || a == MachineApplicable
}

// Edit is a single suggested source replacement.
type Edit struct {
	Replacement   string        `json:"replacement"             toml:"replacement"             yaml:"replacement"`
	Applicability Applicability `json:"applicability,omitempty" toml:"applicability,omitempty" yaml:"applicability,omitempty"`
	Span          Span          `json:"span"                    toml:"span"                    yaml:"span"`
}

// String implements [fmt.Stringer] for an [Edit].
func (e Edit) String() string {
	return fmt.Sprintf("%s => %q", e.Span, e.Replacement)
}

// Diagnostic is a single structured diagnostic emitted by the analyzer under test.
type Diagnostic struct {
	Code      string       `json:"code,omitempty"      toml:"code,omitempty"      yaml:"code,omitempty"`      // Lint category e.g. "clippy::uninlined_format_args"
	Message   string       `json:"message"             toml:"message"             yaml:"message"`             // Descriptive message
	Rendered  string       `json:"-"                   toml:"-"                   yaml:"-"`                   // Human readable rendering, as printed by the analyzer
	Secondary []Span       `json:"secondary,omitempty" toml:"secondary,omitempty" yaml:"secondary,omitempty"` // Additional labelled spans
	Edits     []Edit       `json:"edits,omitempty"     toml:"edits,omitempty"     yaml:"edits,omitempty"`     // Suggested replacements, in emission order
	Children  []Diagnostic `json:"children,omitempty"  toml:"children,omitempty"  yaml:"children,omitempty"`  // Attached help and note messages
	Primary   Span         `json:"primary"             toml:"primary"             yaml:"primary"`             // Where the problem is
	Severity  Severity     `json:"severity"            toml:"severity"            yaml:"severity"`            // How bad it is
	Stream    Stream       `json:"stream"              toml:"stream"              yaml:"stream"`              // Which stream it was read from
}

// String returns a compact one line representation of a [Diagnostic].
func (d Diagnostic) String() string {
	builder := &strings.Builder{}

	builder.WriteString(d.Primary.String())
	builder.WriteString(": ")
	builder.WriteString(d.Severity.String())

	if d.Code != "" {
		fmt.Fprintf(builder, "[%s]", d.Code)
	}

	builder.WriteString(": ")
	builder.WriteString(d.Message)

	return builder.String()
}

// Flatten returns diagnostics followed by every child they carry, in order.
func Flatten(diagnostics []Diagnostic) []Diagnostic {
	var all []Diagnostic

	for _, diagnostic := range diagnostics {
		all = append(all, diagnostic)
		all = append(all, diagnostic.Children...)
	}

	return all
}

// CountErrors returns the number of error level diagnostics in diagnostics.
func CountErrors(diagnostics []Diagnostic) int {
	count := 0

	for _, diagnostic := range diagnostics {
		if diagnostic.Severity == SeverityError {
			count++
		}
	}

	return count
}
