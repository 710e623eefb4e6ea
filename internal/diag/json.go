package diag

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrNotDiagnostic is returned from [DecodeLine] when a line of analyzer output
// is not a JSON diagnostic and should be treated as plain text.
var ErrNotDiagnostic = errors.New("line is not a JSON diagnostic")

// jsonDiagnostic mirrors the JSON diagnostic format emitted by rustc derived
// analyzers with --error-format=json.
type jsonDiagnostic struct {
	Code     *jsonCode        `json:"code"`
	Message  *string          `json:"message"`
	Level    string           `json:"level"`
	Rendered *string          `json:"rendered"`
	Spans    []jsonSpan       `json:"spans"`
	Children []jsonDiagnostic `json:"children"`
}

type jsonCode struct {
	Code string `json:"code"`
}

type jsonSpan struct {
	SuggestedReplacement    *string `json:"suggested_replacement"`
	SuggestionApplicability *string `json:"suggestion_applicability"`
	FileName                string  `json:"file_name"`
	LineStart               int     `json:"line_start"`
	LineEnd                 int     `json:"line_end"`
	ColumnStart             int     `json:"column_start"`
	ColumnEnd               int     `json:"column_end"`
	IsPrimary               bool    `json:"is_primary"`
}

func (s jsonSpan) span() Span {
	return Span{
		File:     s.FileName,
		Line:     s.LineStart,
		EndLine:  s.LineEnd,
		StartCol: s.ColumnStart,
		EndCol:   s.ColumnEnd,
	}
}

// Decoded is the result of decoding a single line of analyzer output.
type Decoded struct {
	// Rendered is the human readable text the analyzer attached to the
	// diagnostic, it is what would have been printed without JSON output.
	Rendered string

	// Diagnostic is the structured diagnostic, only meaningful if Summary is false.
	Diagnostic Diagnostic

	// Summary is true for span-less bookkeeping messages like
	// "aborting due to 2 previous errors" or "1 warning emitted", these carry
	// rendered text but are not diagnostics in their own right.
	Summary bool
}

// DecodeLine decodes a single line of analyzer output as a JSON diagnostic.
//
// If the line is not a JSON object with at least a message and level,
// [ErrNotDiagnostic] is returned and the caller should treat it as raw text.
func DecodeLine(line []byte, stream Stream) (Decoded, error) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Decoded{}, ErrNotDiagnostic
	}

	var raw jsonDiagnostic
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return Decoded{}, ErrNotDiagnostic
	}

	if raw.Message == nil || raw.Level == "" {
		return Decoded{}, ErrNotDiagnostic
	}

	severity, err := ParseSeverity(raw.Level)
	if err != nil {
		return Decoded{}, fmt.Errorf("could not decode diagnostic %q: %w", *raw.Message, err)
	}

	rendered := ""
	if raw.Rendered != nil {
		rendered = *raw.Rendered
	}

	if len(raw.Spans) == 0 && isSummary(*raw.Message) {
		return Decoded{Rendered: rendered, Summary: true}, nil
	}

	diagnostic := Diagnostic{
		Severity: severity,
		Message:  *raw.Message,
		Rendered: rendered,
		Stream:   stream,
	}

	if raw.Code != nil {
		diagnostic.Code = raw.Code.Code
	}

	diagnostic.Primary, diagnostic.Secondary = splitSpans(raw.Spans)
	diagnostic.Edits = collectEdits(raw)
	diagnostic.Children = children(raw.Children, diagnostic.Primary, stream)

	return Decoded{Rendered: rendered, Diagnostic: diagnostic}, nil
}

// splitSpans separates the primary span from the rest. If no span is marked
// primary, the first one is used.
func splitSpans(spans []jsonSpan) (primary Span, secondary []Span) {
	index := slices.IndexFunc(spans, func(span jsonSpan) bool { return span.IsPrimary })
	if index == -1 && len(spans) > 0 {
		index = 0
	}

	for i, span := range spans {
		if i == index {
			primary = span.span()
			continue
		}

		secondary = append(secondary, span.span())
	}

	return primary, secondary
}

// children converts the help and note messages attached to a diagnostic. A child
// without spans of its own points at its parent's primary span. Children with a
// level we don't understand are dropped, they can't be matched by a marker anyway.
func children(raw []jsonDiagnostic, parent Span, stream Stream) []Diagnostic {
	var out []Diagnostic

	for _, child := range raw {
		if child.Message == nil {
			continue
		}

		severity, err := ParseSeverity(child.Level)
		if err != nil {
			continue
		}

		diagnostic := Diagnostic{
			Severity: severity,
			Message:  *child.Message,
			Stream:   stream,
			Primary:  parent,
		}

		if len(child.Spans) > 0 {
			diagnostic.Primary, diagnostic.Secondary = splitSpans(child.Spans)
		}

		out = append(out, diagnostic)
		out = append(out, children(child.Children, diagnostic.Primary, stream)...)
	}

	return out
}

// collectEdits walks a diagnostic and its children in order gathering every span
// that carries a suggested replacement.
func collectEdits(raw jsonDiagnostic) []Edit {
	var edits []Edit

	for _, span := range raw.Spans {
		if span.SuggestedReplacement == nil {
			continue
		}

		edit := Edit{Span: span.span(), Replacement: *span.SuggestedReplacement}
		if span.SuggestionApplicability != nil {
			edit.Applicability = Applicability(*span.SuggestionApplicability)
		}

		edits = append(edits, edit)
	}

	for _, child := range raw.Children {
		edits = append(edits, collectEdits(child)...)
	}

	return edits
}

// isSummary reports whether message is one of the trailing bookkeeping
// messages analyzers emit after the real diagnostics.
func isSummary(message string) bool {
	return strings.HasPrefix(message, "aborting due to") ||
		strings.HasSuffix(message, "warning emitted") ||
		strings.HasSuffix(message, "warnings emitted") ||
		strings.HasPrefix(message, "For more information about")
}
