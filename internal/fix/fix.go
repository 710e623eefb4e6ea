// Package fix implements application of analyzer suggested edits to source text
// and the check that applying them converges.
package fix

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"unicode/utf8"

	"go.followtheprocess.codes/gild/internal/analyzer"
	"go.followtheprocess.codes/gild/internal/diag"
)

// ConflictingEditsError is returned when two suggested edits in the same batch
// overlap, or insert at the same point, so applying both is ambiguous.
type ConflictingEditsError struct {
	First  diag.Edit
	Second diag.Edit
}

// Error implements the error interface for [ConflictingEditsError].
func (c *ConflictingEditsError) Error() string {
	return fmt.Sprintf("conflicting suggested edits: %s overlaps %s", c.First, c.Second)
}

// NonConvergentFixError is returned when re-running the analyzer over fixed
// source still reports diagnostics for lints whose suggestions were applied.
type NonConvergentFixError struct {
	Codes    []string          // The lint codes whose edits were applied
	Residual []diag.Diagnostic // Diagnostics for those codes still present after fixing
}

// Error implements the error interface for [NonConvergentFixError].
func (n *NonConvergentFixError) Error() string {
	s := &strings.Builder{}
	fmt.Fprintf(s, "applying suggestions did not converge, %d diagnostic(s) remain:", len(n.Residual))

	for _, residual := range n.Residual {
		s.WriteString("\n  ")
		s.WriteString(residual.String())
	}

	return s.String()
}

// Plan is the set of automatically applicable edits gathered from a run.
type Plan struct {
	// Edits are the edits to apply, in the order the analyzer reported them.
	Edits []diag.Edit

	// Codes are the sorted, unique lint codes that contributed at least one edit.
	Codes []string
}

// Collect gathers every automatically applicable edit targeting file from
// diagnostics.
//
// Edits marked MaybeIncorrect or HasPlaceholders are ignored.
func Collect(diagnostics []diag.Diagnostic, file string) Plan {
	var plan Plan

	for _, diagnostic := range diagnostics {
		contributed := false

		for _, edit := range diagnostic.Edits {
			if !edit.Applicability.Automatic() || !edit.Span.In(file) {
				continue
			}

			plan.Edits = append(plan.Edits, edit)
			contributed = true
		}

		if contributed && diagnostic.Code != "" {
			plan.Codes = append(plan.Codes, diagnostic.Code)
		}
	}

	slices.Sort(plan.Codes)
	plan.Codes = slices.Compact(plan.Codes)

	return plan
}

// offsetEdit is an edit resolved to byte offsets in the source.
type offsetEdit struct {
	edit  diag.Edit
	start int
	end   int
}

// Apply applies edits to src and returns the fixed text.
//
// Spans are converted to byte offsets then applied rightmost first so that no
// edit shifts the offsets of one still to be applied. Identical edits are applied
// once, any other overlap (including two insertions at the same point) is a
// [*ConflictingEditsError].
func Apply(src string, edits []diag.Edit) (string, error) {
	if len(edits) == 0 {
		return src, nil
	}

	index := newLineIndex(src)

	resolved := make([]offsetEdit, 0, len(edits))
	for _, edit := range edits {
		start, err := index.offset(edit.Span.Line, edit.Span.StartCol)
		if err != nil {
			return "", fmt.Errorf("edit %s: %w", edit, err)
		}

		end, err := index.offset(edit.Span.EndLine, edit.Span.EndCol)
		if err != nil {
			return "", fmt.Errorf("edit %s: %w", edit, err)
		}

		if end < start {
			return "", fmt.Errorf("edit %s: span ends before it starts", edit)
		}

		resolved = append(resolved, offsetEdit{edit: edit, start: start, end: end})
	}

	// Descending by start, then by end
	slices.SortStableFunc(resolved, func(a, b offsetEdit) int {
		if c := cmp.Compare(b.start, a.start); c != 0 {
			return c
		}

		return cmp.Compare(b.end, a.end)
	})

	resolved = slices.CompactFunc(resolved, func(a, b offsetEdit) bool {
		return a.start == b.start && a.end == b.end && a.edit.Replacement == b.edit.Replacement
	})

	// Sorted descending so each edit need only be checked against its right neighbour
	for i := 1; i < len(resolved); i++ {
		right, left := resolved[i-1], resolved[i]
		if left.start == right.start || left.end > right.start {
			return "", &ConflictingEditsError{First: left.edit, Second: right.edit}
		}
	}

	fixed := src
	for _, edit := range resolved {
		fixed = fixed[:edit.start] + edit.edit.Replacement + fixed[edit.end:]
	}

	return fixed, nil
}

// Invoke runs the analyzer over the file at path.
type Invoke func(ctx context.Context, path string) (analyzer.Output, error)

// Converge writes fixed to path, re-runs the analyzer over it and checks that none
// of codes (the lints whose edits produced fixed) are reported again.
//
// An error from invoke is returned as is, a lint that fires again after its own fix
// is a [*NonConvergentFixError].
func Converge(ctx context.Context, invoke Invoke, path, fixed string, codes []string) error {
	if err := os.WriteFile(path, []byte(fixed), 0o644); err != nil {
		return fmt.Errorf("could not write fixed source: %w", err)
	}

	output, err := invoke(ctx, path)
	if err != nil {
		return err
	}

	var residual []diag.Diagnostic

	for _, diagnostic := range output.Diagnostics {
		if slices.Contains(codes, diagnostic.Code) {
			residual = append(residual, diagnostic)
		}
	}

	if len(residual) > 0 {
		return &NonConvergentFixError{Codes: codes, Residual: residual}
	}

	return nil
}

// lineIndex maps 1 indexed line and character columns to byte offsets.
type lineIndex struct {
	src    string
	starts []int // Byte offset of the start of each line
}

func newLineIndex(src string) lineIndex {
	starts := []int{0}

	for i := range len(src) {
		if src[i] == '\n' {
			starts = append(starts, i+1)
		}
	}

	return lineIndex{src: src, starts: starts}
}

// offset returns the byte offset of the 1 indexed line and character column.
//
// The column one past the last character of a line (before its newline) is valid.
func (l lineIndex) offset(line, col int) (int, error) {
	if line < 1 || line > len(l.starts) {
		return 0, fmt.Errorf("line %d out of range, source has %d lines", line, len(l.starts))
	}

	if col < 1 {
		return 0, fmt.Errorf("column %d out of range", col)
	}

	start := l.starts[line-1]

	end := len(l.src)
	if line < len(l.starts) {
		end = l.starts[line] - 1 // The newline
	}

	text := l.src[start:end]
	offset := 0

	for range col - 1 {
		if offset >= len(text) {
			return 0, fmt.Errorf("column %d out of range on line %d", col, line)
		}

		_, size := utf8.DecodeRuneInString(text[offset:])
		offset += size
	}

	return start + offset, nil
}
