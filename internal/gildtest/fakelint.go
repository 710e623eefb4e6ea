package gildtest

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Lint names implemented by [FakeLint].
const (
	LintUninlinedFormatArgs = "fake::uninlined_format_args"
	LintTodo                = "fake::todo"
	LintDoubleSemicolon     = "fake::double_semicolon"
	LintOverlap             = "fake::overlap"
	LintStubborn            = "fake::stubborn"
)

// Directives that make [FakeLint] misbehave on purpose, they are matched
// anywhere in the source file.
const (
	DirectiveCrash   = "fakelint: crash"
	DirectiveHang    = "fakelint: hang"
	DirectiveGarbage = "fakelint: garbage"
	DirectiveFail    = "fakelint: fail"
)

// Exit statuses used by [FakeLint].
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
	exitPanic = 101
)

//nolint:gochecknoglobals // Compiled once
var (
	uninlinedPattern = regexp.MustCompile(`println!\("((?:[^"\\]|\\.)*)", ([A-Za-z_][A-Za-z0-9_]*)\);`)
	todoPattern      = regexp.MustCompile(`todo!\(\)`)
	doubleSemiColon  = regexp.MustCompile(`;;`)
)

// defaultLevels are the levels each lint has unless overridden on the command line.
//
//nolint:gochecknoglobals // Lookup table, never mutated
var defaultLevels = map[string]string{
	LintUninlinedFormatArgs: "warn",
	LintTodo:                "deny",
	LintDoubleSemicolon:     "warn",
	LintOverlap:             "warn",
	LintStubborn:            "warn",
}

// FakeLint is a tiny deterministic lint tool that speaks the same command line and
// JSON diagnostic protocol as real rustc derived analyzers. It exists so the harness
// can be tested end to end without a real toolchain.
//
// Usage:
//
//	fakelint [-A|-W|-D|-F <lint>]... [--edition=E] [--error-format=json|human] [--stdout-note] <file>
//
// It returns the process exit status.
func FakeLint(args []string, stdout, stderr io.Writer) int {
	levels := maps.Clone(defaultLevels)
	format := "human"
	stdoutNote := false

	var path string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch {
		case arg == "-A" || arg == "-W" || arg == "-D" || arg == "-F":
			if i+1 >= len(args) {
				fmt.Fprintf(stderr, "error: %s requires a lint name\n", arg)
				return exitUsage
			}

			i++
			levels[args[i]] = map[string]string{"-A": "allow", "-W": "warn", "-D": "deny", "-F": "forbid"}[arg]
		case strings.HasPrefix(arg, "--error-format="):
			format = strings.TrimPrefix(arg, "--error-format=")
		case strings.HasPrefix(arg, "--edition="):
			// Accepted and ignored, the fake language has no editions
		case arg == "--stdout-note":
			stdoutNote = true
		case strings.HasPrefix(arg, "-"):
			fmt.Fprintf(stderr, "error: unknown flag %s\n", arg)
			return exitUsage
		default:
			path = arg
		}
	}

	if path == "" {
		fmt.Fprintln(stderr, "error: no input file")
		return exitUsage
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "error: could not read %s: %v\n", path, err)
		return exitError
	}

	text := string(contents)

	switch {
	case strings.Contains(text, DirectiveCrash):
		fmt.Fprintln(stderr, "thread 'main' panicked at src/main.rs:1:1:")
		fmt.Fprintln(stderr, "the fake analyzer fell over")
		return exitPanic
	case strings.Contains(text, DirectiveHang):
		time.Sleep(time.Hour)
		return exitOK
	case strings.Contains(text, DirectiveFail):
		// Fails like a real error but without a structured diagnostic
		fmt.Fprintln(stderr, "something broke")
		return exitError
	case strings.Contains(text, DirectiveGarbage):
		fmt.Fprintln(stderr, `{"message": "what", "level": "shouting", "spans": []}`)
		return exitOK
	}

	if stdoutNote {
		fmt.Fprintf(stdout, "checked %s\n", path)
	}

	linter := fakeLinter{path: path, levels: levels}
	linter.check(text)

	emit := func(d fakeDiagnostic) {
		if format == "json" {
			out, err := json.Marshal(d.json())
			if err != nil {
				panic(err)
			}

			fmt.Fprintln(stderr, string(out))

			return
		}

		fmt.Fprint(stderr, d.rendered)
	}

	errors, warnings := 0, 0

	for _, d := range linter.diagnostics {
		switch d.level {
		case "error":
			errors++
		case "warning":
			warnings++
		}

		emit(d)
	}

	if summary, level := summarise(errors, warnings); summary != "" {
		emit(fakeDiagnostic{level: level, message: summary, rendered: level + ": " + summary + "\n\n"})
	}

	if errors > 0 {
		return exitError
	}

	return exitOK
}

// summarise returns the trailing summary message and its level.
func summarise(errors, warnings int) (string, string) {
	plural := func(n int, word string) string {
		if n == 1 {
			return fmt.Sprintf("%d %s", n, word)
		}

		return fmt.Sprintf("%d %ss", n, word)
	}

	switch {
	case errors > 0 && warnings > 0:
		return fmt.Sprintf("aborting due to %s; %s emitted", plural(errors, "previous error"), plural(warnings, "warning")), "error"
	case errors > 0:
		return "aborting due to " + plural(errors, "previous error"), "error"
	case warnings > 0:
		return plural(warnings, "warning") + " emitted", "warning"
	default:
		return "", ""
	}
}

// fakeSpan is a resolved single line span in the file being linted.
type fakeSpan struct {
	replacement *string
	line        int
	startCol    int
	endCol      int
}

type fakeDiagnostic struct {
	level    string
	code     string
	message  string
	help     string
	rendered string
	file     string
	spans    []fakeSpan // First is primary
}

type fakeLinter struct {
	levels      map[string]string
	path        string
	diagnostics []fakeDiagnostic
}

// check runs every lint over text line by line, in a fixed order so output is deterministic.
func (f *fakeLinter) check(text string) {
	lines := strings.Split(text, "\n")

	for i, line := range lines {
		lineNo := i + 1

		for _, match := range uninlinedPattern.FindAllStringSubmatchIndex(line, -1) {
			format := line[match[2]:match[3]]
			variable := line[match[4]:match[5]]

			if strings.Count(format, "{}") != 1 {
				continue
			}

			replacement := fmt.Sprintf("println!(%q);", strings.Replace(unescape(format), "{}", "{"+variable+"}", 1))
			f.report(LintUninlinedFormatArgs, "variables can be used directly in the `format!` string",
				"change this to", lineNo, line, match[0], match[1], &replacement)
		}

		for _, match := range todoPattern.FindAllStringIndex(line, -1) {
			f.report(LintTodo, "`todo!()` should not be present", "", lineNo, line, match[0], match[1], nil)
		}

		for _, match := range doubleSemiColon.FindAllStringIndex(line, -1) {
			replacement := ";"
			f.report(LintDoubleSemicolon, "unnecessary trailing semicolon", "remove this semicolon",
				lineNo, line, match[0], match[1], &replacement)
		}

		if idx := strings.Index(line, "fakelint: overlap"); idx != -1 {
			first, second := "first", "second"
			f.reportSpans(LintOverlap, "overlapping suggestions", "replace with", lineNo, line, []fakeSpan{
				f.span(line, lineNo, idx, idx+len("fakelint: overlap"), nil),
				f.span(line, lineNo, idx, idx+len("fakelint"), &first),
				f.span(line, lineNo, idx+len("fake"), idx+len("fakelint: over"), &second),
			})
		}

		if idx := strings.Index(line, "fakelint: stubborn"); idx != -1 {
			same := line[idx : idx+len("fakelint: stubborn")]
			f.report(LintStubborn, "this can never be fixed", "try", lineNo, line, idx, idx+len(same), &same)
		}
	}
}

// span converts byte offsets within line into a 1 indexed, character based span.
func (f *fakeLinter) span(line string, lineNo, start, end int, replacement *string) fakeSpan {
	return fakeSpan{
		line:        lineNo,
		startCol:    utf8.RuneCountInString(line[:start]) + 1,
		endCol:      utf8.RuneCountInString(line[:end]) + 1,
		replacement: replacement,
	}
}

func (f *fakeLinter) report(code, message, help string, lineNo int, line string, start, end int, replacement *string) {
	f.reportSpans(code, message, help, lineNo, line, []fakeSpan{f.span(line, lineNo, start, end, replacement)})
}

func (f *fakeLinter) reportSpans(code, message, help string, lineNo int, line string, spans []fakeSpan) {
	var level string

	switch f.levels[code] {
	case "allow":
		return
	case "deny", "forbid":
		level = "error"
	default:
		level = "warning"
	}

	d := fakeDiagnostic{
		level:   level,
		code:    code,
		message: message,
		help:    help,
		file:    f.path,
		spans:   spans,
	}
	d.rendered = d.render(line)

	f.diagnostics = append(f.diagnostics, d)
}

// render renders the diagnostic in the human readable form.
func (d fakeDiagnostic) render(line string) string {
	primary := d.spans[0]
	lineNo := strconv.Itoa(primary.line)
	pad := strings.Repeat(" ", len(lineNo))

	builder := &strings.Builder{}

	fmt.Fprintf(builder, "%s: %s\n", d.level, d.message)
	fmt.Fprintf(builder, "%s--> %s:%d:%d\n", pad, d.file, primary.line, primary.startCol)
	fmt.Fprintf(builder, "%s |\n", pad)
	fmt.Fprintf(builder, "%s | %s\n", lineNo, line)
	fmt.Fprintf(
		builder,
		"%s | %s%s\n",
		pad,
		strings.Repeat(" ", primary.startCol-1),
		strings.Repeat("^", max(primary.endCol-primary.startCol, 1)),
	)

	for _, span := range d.spans {
		if span.replacement != nil {
			fmt.Fprintf(builder, "%s = help: %s: `%s`\n", pad, d.help, *span.replacement)
		}
	}

	builder.WriteString("\n")

	return builder.String()
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

type jsonCode struct {
	Code string `json:"code"`
}

type jsonDiagnostic struct {
	Code     *jsonCode        `json:"code"`
	Rendered *string          `json:"rendered"`
	Message  string           `json:"message"`
	Level    string           `json:"level"`
	Spans    []jsonSpan       `json:"spans"`
	Children []jsonDiagnostic `json:"children"`
}

// json converts the diagnostic into the JSON wire form, suggestions become
// a help child as they do in real analyzers.
func (d fakeDiagnostic) json() jsonDiagnostic {
	out := jsonDiagnostic{
		Message:  d.message,
		Level:    d.level,
		Spans:    []jsonSpan{},
		Children: []jsonDiagnostic{},
		Rendered: &d.rendered,
	}

	if d.code != "" {
		out.Code = &jsonCode{Code: d.code}
	}

	applicability := "MachineApplicable"

	var suggestions []jsonSpan

	for i, span := range d.spans {
		js := jsonSpan{
			FileName:    d.file,
			LineStart:   span.line,
			LineEnd:     span.line,
			ColumnStart: span.startCol,
			ColumnEnd:   span.endCol,
			IsPrimary:   i == 0,
		}

		if span.replacement == nil {
			out.Spans = append(out.Spans, js)
			continue
		}

		js.SuggestedReplacement = span.replacement
		js.SuggestionApplicability = &applicability

		if i == 0 {
			// The primary span is reported plainly, the suggestion lives in the child
			plain := js
			plain.SuggestedReplacement = nil
			plain.SuggestionApplicability = nil
			out.Spans = append(out.Spans, plain)
		}

		suggestions = append(suggestions, js)
	}

	if len(suggestions) > 0 {
		out.Children = append(out.Children, jsonDiagnostic{
			Message:  d.help,
			Level:    "help",
			Spans:    suggestions,
			Children: []jsonDiagnostic{},
		})
	}

	return out
}

// unescape undoes the escaping of a string literal body, close enough for the
// simple literals the fake lint deals with.
func unescape(s string) string {
	unquoted, err := strconv.Unquote(`"` + s + `"`)
	if err != nil {
		return s
	}

	return unquoted
}

// Lints returns the names of every lint [FakeLint] implements, sorted.
func Lints() []string {
	return slices.Sorted(maps.Keys(defaultLevels))
}
