package source

import (
	"fmt"
	"strings"

	"go.followtheprocess.codes/gild/internal/diag"
)

// markerPrefix introduces an expected diagnostic annotation inside a line comment.
const markerPrefix = "//~"

// MarkerKind distinguishes the ways a marker can refer to its target line.
type MarkerKind int

const (
	// Here markers ("//~ ERROR: msg") expect a diagnostic on their own line.
	Here MarkerKind = iota

	// Caret markers ("//~^ ERROR: msg", "//~^^ ...") expect a diagnostic
	// Offset lines above their own.
	Caret

	// Follow markers ("//~| ERROR: msg") target the same line as the
	// marker immediately before them.
	Follow
)

// String implements [fmt.Stringer] for a [MarkerKind].
func (k MarkerKind) String() string {
	switch k {
	case Here:
		return "here"
	case Caret:
		return "caret"
	case Follow:
		return "follow"
	default:
		return fmt.Sprintf("MarkerKind(%d)", int(k))
	}
}

// Marker is an expected diagnostic declared inline in a test source file.
type Marker struct {
	Substring string        // Text the diagnostic message must contain
	Kind      MarkerKind    // How the marker refers to its target line
	Line      int           // Line the marker comment itself is on (1 indexed)
	Target    int           // Resolved line the diagnostic is expected on (1 indexed)
	Offset    int           // Number of carets, only meaningful for Caret markers
	Severity  diag.Severity // Expected severity
}

// String implements [fmt.Stringer] for a [Marker].
func (m Marker) String() string {
	return fmt.Sprintf("%d: %s: %s", m.Target, strings.ToUpper(m.Severity.String()), m.Substring)
}

// Matches reports whether the diagnostic satisfies the marker.
func (m Marker) Matches(diagnostic diag.Diagnostic) bool {
	return diagnostic.Severity == m.Severity &&
		diagnostic.Primary.Line == m.Target &&
		strings.Contains(diagnostic.Message, m.Substring)
}

// parseMarker parses the marker (if any) on a single line of source.
//
// It returns ok == false if the line carries no marker at all. previous is the
// most recently parsed marker in the file, used to resolve Follow markers, it
// is nil if there hasn't been one yet.
func parseMarker(text string, line int, previous *Marker) (marker Marker, ok bool, err error) {
	idx := strings.Index(text, markerPrefix)
	if idx == -1 {
		return Marker{}, false, nil
	}

	rest := text[idx+len(markerPrefix):]

	marker = Marker{Line: line, Kind: Here, Target: line}

	switch {
	case strings.HasPrefix(rest, "^"):
		carets := len(rest) - len(strings.TrimLeft(rest, "^"))
		rest = rest[carets:]

		marker.Kind = Caret
		marker.Offset = carets
		marker.Target = line - carets

		if marker.Target < 1 {
			return Marker{}, false, fmt.Errorf("marker with %d caret(s) points above the first line", carets)
		}
	case strings.HasPrefix(rest, "|"):
		rest = rest[1:]

		if previous == nil {
			return Marker{}, false, fmt.Errorf("follow marker %q has no preceding marker", markerPrefix+"|")
		}

		marker.Kind = Follow
		marker.Target = previous.Target
	}

	rest = strings.TrimSpace(rest)
	if rest == "" {
		return Marker{}, false, fmt.Errorf("marker is missing a level, expected one of %s", levels())
	}

	level, substring := rest, ""
	if end := strings.IndexAny(rest, ": \t"); end != -1 {
		level, substring = rest[:end], rest[end:]
	}

	severity, known := markerLevels[level]
	if !known {
		return Marker{}, false, fmt.Errorf("unknown marker level %q, expected one of %s", level, levels())
	}

	marker.Severity = severity
	marker.Substring = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(substring), ":"))

	return marker, true, nil
}

// markerLevels maps the spelling used in markers to the severity it expects.
//
//nolint:gochecknoglobals // Lookup table, never mutated
var markerLevels = map[string]diag.Severity{
	"ERROR":   diag.SeverityError,
	"WARN":    diag.SeverityWarning,
	"WARNING": diag.SeverityWarning,
	"HELP":    diag.SeverityHelp,
	"NOTE":    diag.SeverityNote,
}

func levels() string {
	return "ERROR, WARN, WARNING, HELP, NOTE"
}
