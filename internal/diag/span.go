// Package diag provides the data model shared by every stage of the harness:
// source spans, diagnostics emitted by the analyzer under test and the
// suggested edits attached to them.
package diag

import (
	"cmp"
	"fmt"
	"path/filepath"
	"strings"
)

// Span is a region of source text in a named file.
//
// Lines and columns are 1 indexed, columns count unicode characters (not bytes)
// and EndCol is exclusive, so a span covering the single character at column 5
// has StartCol 5 and EndCol 6. An empty span (StartCol == EndCol on the same line)
// denotes an insertion point.
//
// Spans without filenames are considered invalid.
type Span struct {
	File     string `json:"file"     toml:"file"     yaml:"file"`     // Filename
	Line     int    `json:"line"     toml:"line"     yaml:"line"`     // Start line (1 indexed)
	EndLine  int    `json:"endLine"  toml:"endLine"  yaml:"endLine"`  // End line (1 indexed), EndLine >= Line
	StartCol int    `json:"startCol" toml:"startCol" yaml:"startCol"` // Start column (1 indexed)
	EndCol   int    `json:"endCol"   toml:"endCol"   yaml:"endCol"`   // End column (1 indexed, exclusive)
}

// IsValid reports whether the [Span] describes a valid source region.
//
// The rules are:
//
//   - File, Line, EndLine, StartCol and EndCol must all be set (and non zero)
//   - EndLine cannot be before Line
//   - On a single line span, EndCol cannot be before StartCol
func (s Span) IsValid() bool {
	if s.File == "" || s.Line < 1 || s.EndLine < s.Line || s.StartCol < 1 || s.EndCol < 1 {
		return false
	}

	if s.Line == s.EndLine && s.EndCol < s.StartCol {
		return false
	}

	return true
}

// IsMultiline reports whether the span crosses a line boundary.
func (s Span) IsMultiline() bool {
	return s.EndLine > s.Line
}

// String returns a string representation of a [Span].
//
// It is formatted such that most text editors/terminals will be able to support clicking on it
// and navigating to the position.
//
//   - "file:line:start-end": a range of text on a single line
//   - "file:line:start": a single character or insertion point
//   - "file:line:start-endline:end": a range spanning multiple lines
//
// Invalid spans return an error string.
func (s Span) String() string {
	if !s.IsValid() {
		return fmt.Sprintf(
			"BadSpan: {File: %q, Line: %d, EndLine: %d, StartCol: %d, EndCol: %d}",
			s.File,
			s.Line,
			s.EndLine,
			s.StartCol,
			s.EndCol,
		)
	}

	if s.IsMultiline() {
		return fmt.Sprintf("%s:%d:%d-%d:%d", s.File, s.Line, s.StartCol, s.EndLine, s.EndCol)
	}

	if s.EndCol-s.StartCol <= 1 {
		return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.StartCol)
	}

	return fmt.Sprintf("%s:%d:%d-%d", s.File, s.Line, s.StartCol, s.EndCol)
}

// In reports whether the span is in the file at path. Analyzers report the
// path exactly as it was passed to them or relative to their working directory,
// both are accepted.
func (s Span) In(path string) bool {
	if s.File == "" {
		return false
	}

	file := filepath.Clean(s.File)
	path = filepath.Clean(path)

	if file == path {
		return true
	}

	if filepath.IsAbs(file) {
		return false
	}

	return strings.HasSuffix(path, string(filepath.Separator)+file)
}

// Overlaps reports whether two spans in the same file share any characters.
//
// Two empty spans at the same point overlap, as applying both would make the
// resulting order of insertion ambiguous.
func (s Span) Overlaps(other Span) bool {
	if s.File != other.File {
		return false
	}

	if CompareSpan(s, other) > 0 {
		s, other = other, s
	}

	// s starts first (or at the same point)
	if s.start() == other.start() {
		return true
	}

	return compareLineCol(other.Line, other.StartCol, s.EndLine, s.EndCol) < 0
}

// CompareSpan is like [cmp.Compare] for a [Span].
//
// Spans in different files compare alphabetically by file, otherwise they
// are ordered by start position, then by end position.
func CompareSpan(x, y Span) int {
	if x.File != y.File {
		return cmp.Compare(x.File, y.File)
	}

	if c := compareLineCol(x.Line, x.StartCol, y.Line, y.StartCol); c != 0 {
		return c
	}

	return compareLineCol(x.EndLine, x.EndCol, y.EndLine, y.EndCol)
}

type lineCol struct{ line, col int }

func (s Span) start() lineCol {
	return lineCol{line: s.Line, col: s.StartCol}
}

func compareLineCol(xLine, xCol, yLine, yCol int) int {
	if c := cmp.Compare(xLine, yLine); c != 0 {
		return c
	}

	return cmp.Compare(xCol, yCol)
}
