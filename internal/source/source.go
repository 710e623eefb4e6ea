// Package source implements loading of test source files along with the
// expected diagnostic markers embedded in their comments.
package source

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.followtheprocess.codes/gild/internal/diag"
)

// LoadError is returned when a test source file cannot be loaded, either because
// it is unreadable or because it contains a malformed marker.
type LoadError struct {
	Err  error  // Underlying cause
	Path string // The file being loaded
	Line int    // Offending line, 0 if the error is not line specific
}

// Error implements the error interface for [LoadError].
func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("could not load %s:%d: %v", e.Path, e.Line, e.Err)
	}

	return fmt.Sprintf("could not load %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// File is a loaded test source file.
type File struct {
	Path    string   // Path the file was loaded from
	Text    string   // Raw contents
	Markers []Marker // Expected diagnostics, in source order
}

// Load reads the file at path and parses any expected diagnostic markers.
//
// The returned error, if any, is always a [*LoadError].
func Load(path string) (File, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return File{}, &LoadError{Path: path, Err: err}
	}

	markers, err := ParseMarkers(string(contents))
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			loadErr.Path = path
			return File{}, loadErr
		}

		return File{}, &LoadError{Path: path, Err: err}
	}

	return File{Path: path, Text: string(contents), Markers: markers}, nil
}

// ParseMarkers parses every marker in text, in source order.
//
// A malformed marker results in a [*LoadError] with the Line set
// but no Path, [Load] fills that in.
func ParseMarkers(text string) ([]Marker, error) {
	var (
		markers  []Marker
		previous *Marker
	)

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), len(text)+1)

	line := 0
	for scanner.Scan() {
		line++

		marker, ok, err := parseMarker(scanner.Text(), line, previous)
		if err != nil {
			return nil, &LoadError{Line: line, Err: err}
		}

		if !ok {
			continue
		}

		markers = append(markers, marker)
		previous = &markers[len(markers)-1]
	}

	if err := scanner.Err(); err != nil {
		return nil, &LoadError{Err: err}
	}

	return markers, nil
}

// Mismatch is a single disagreement between a file's markers and the
// diagnostics actually emitted for it.
type Mismatch struct {
	Marker     *Marker          // The unmatched marker, nil for an unexpected diagnostic
	Diagnostic *diag.Diagnostic // The unclaimed diagnostic, nil for a missing marker
}

// String implements [fmt.Stringer] for a [Mismatch].
func (m Mismatch) String() string {
	if m.Marker != nil {
		return fmt.Sprintf("line %s", m.Marker)
	}

	return m.Diagnostic.String()
}

// CheckMarkers verifies diagnostics against the file's markers, file is the path
// the source was passed to the analyzer under.
//
// Every marker must be matched by at least one diagnostic or one of the help and
// note messages attached to them. If the file has any markers at all, every error
// or warning diagnostic in that file must also be claimed by a marker. A file with
// no markers is not checked, the golden transcript is the sole authority for it.
func (f File) CheckMarkers(file string, diagnostics []diag.Diagnostic) (missing, unexpected []Mismatch) {
	if len(f.Markers) == 0 {
		return nil, nil
	}

	all := diag.Flatten(diagnostics)
	claimed := make([]bool, len(all))

	for i := range f.Markers {
		marker := f.Markers[i]
		found := false

		for j, diagnostic := range all {
			if claimed[j] || !diagnostic.Primary.In(file) || !marker.Matches(diagnostic) {
				continue
			}

			claimed[j] = true
			found = true

			break
		}

		if !found {
			missing = append(missing, Mismatch{Marker: &marker})
		}
	}

	// Children follow their parent in all, only top level diagnostics need claiming
	index := 0

	for i := range diagnostics {
		diagnostic := diagnostics[i]
		isClaimed := claimed[index]
		index += 1 + len(diagnostic.Children)

		if isClaimed || !diagnostic.Primary.In(file) {
			continue
		}

		if diagnostic.Severity == diag.SeverityError || diagnostic.Severity == diag.SeverityWarning {
			unexpected = append(unexpected, Mismatch{Diagnostic: &diagnostic})
		}
	}

	return missing, unexpected
}
