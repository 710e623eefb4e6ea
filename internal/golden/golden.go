// Package golden implements comparison of actual analyzer output against the
// expected golden transcripts checked in alongside each test.
package golden

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// diffContext is the number of lines of context in a rendered diff.
const diffContext = 3

//nolint:gochecknoglobals // Compiled once
var abortingDueTo = regexp.MustCompile(`aborting due to (?:(\d+) )?previous errors?`)

// Line is a single line of a transcript.
type Line struct {
	Text   string `json:"text"   toml:"text"   yaml:"text"`
	Number int    `json:"number" toml:"number" yaml:"number"` // 1 indexed, in the golden for missing lines and the actual output for unexpected ones
}

// String implements [fmt.Stringer] for a [Line].
func (l Line) String() string {
	return fmt.Sprintf("%d: %s", l.Number, l.Text)
}

// CountMismatch is the disagreement between the error count declared by a golden
// transcript's summary line and the number of errors the analyzer actually emitted.
type CountMismatch struct {
	Want int `json:"want" toml:"want" yaml:"want"`
	Got  int `json:"got"  toml:"got"  yaml:"got"`
}

// String implements [fmt.Stringer] for a [CountMismatch].
func (c CountMismatch) String() string {
	return fmt.Sprintf("golden declares %d previous error(s) but %d error(s) were emitted", c.Want, c.Got)
}

// Result is the outcome of comparing a golden transcript with actual output.
type Result struct {
	// Count is non-nil if the error counts disagree.
	Count *CountMismatch

	// Diff is a unified diff from golden to actual, empty on a match.
	Diff string

	// Missing are lines present in the golden but absent from the actual output.
	Missing []Line

	// Unexpected are lines present in the actual output but not in the golden.
	Unexpected []Line

	// Matched is true when the transcripts are identical and the counts agree.
	Matched bool
}

// Compare performs a line diff between the (normalized) golden transcript want
// and the (normalized) actual transcript got.
//
// Lines deleted from want are reported as missing and lines inserted by got as
// unexpected, a replaced range contributes to both.
func Compare(want, got string) Result {
	if want == got {
		return Result{Matched: true}
	}

	a := splitLines(want)
	b := splitLines(got)

	var result Result

	matcher := difflib.NewMatcher(a, b)
	for _, op := range matcher.GetOpCodes() {
		switch op.Tag {
		case 'd':
			result.Missing = append(result.Missing, lines(a, op.I1, op.I2)...)
		case 'i':
			result.Unexpected = append(result.Unexpected, lines(b, op.J1, op.J2)...)
		case 'r':
			result.Missing = append(result.Missing, lines(a, op.I1, op.I2)...)
			result.Unexpected = append(result.Unexpected, lines(b, op.J1, op.J2)...)
		}
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        a,
		B:        b,
		FromFile: "expected",
		ToFile:   "actual",
		Context:  diffContext,
	})
	if err != nil {
		// Only possible if writing to a strings.Builder fails
		diff = fmt.Sprintf("could not render diff: %v", err)
	}

	result.Diff = diff
	result.Matched = len(result.Missing) == 0 && len(result.Unexpected) == 0

	return result
}

// Check compares a stderr golden transcript with actual output and additionally
// checks the golden's declared error count against emitted, the number of error
// level diagnostics actually emitted.
func Check(want, got string, emitted int) Result {
	result := Compare(want, got)

	result.Count = CountCheck(want, emitted)
	if result.Count != nil {
		result.Matched = false
	}

	return result
}

// CountCheck parses the "aborting due to N previous errors" summary from the golden
// transcript want and returns a [CountMismatch] if N is not emitted.
//
// "aborting due to previous error" counts as 1, a golden with no summary line
// declares 0.
func CountCheck(want string, emitted int) *CountMismatch {
	declared := 0

	if match := abortingDueTo.FindStringSubmatch(want); match != nil {
		declared = 1

		if match[1] != "" {
			n, err := strconv.Atoi(match[1])
			if err == nil {
				declared = n
			}
		}
	}

	if declared == emitted {
		return nil
	}

	return &CountMismatch{Want: declared, Got: emitted}
}

// ComparisonMismatch is the error describing a failed golden comparison.
type ComparisonMismatch struct {
	Path   string // The golden file
	Result Result
}

// Error implements the error interface for [ComparisonMismatch].
func (c *ComparisonMismatch) Error() string {
	s := &strings.Builder{}
	fmt.Fprintf(s, "%s does not match actual output", c.Path)

	if n, m := len(c.Result.Missing), len(c.Result.Unexpected); n > 0 || m > 0 {
		fmt.Fprintf(s, ": %d missing, %d unexpected line(s)", n, m)
	}

	if c.Result.Count != nil {
		fmt.Fprintf(s, ": %s", c.Result.Count)
	}

	return s.String()
}

// Err returns a [*ComparisonMismatch] for path if the result did not match, nil otherwise.
func (r Result) Err(path string) error {
	if r.Matched {
		return nil
	}

	return &ComparisonMismatch{Path: path, Result: r}
}

// Read reads the golden transcript at path.
//
// A golden file that does not exist is the same as an empty one.
func Read(path string) (string, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}

		return "", fmt.Errorf("could not read golden file: %w", err)
	}

	return string(contents), nil
}

// Bless writes text to the golden file at path, removing it instead if text
// is empty.
func Bless(path, text string) error {
	if text == "" {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("could not remove stale golden file: %w", err)
		}

		return nil
	}

	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("could not write golden file: %w", err)
	}

	return nil
}

// splitLines splits text into lines, each keeping its trailing newline.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}

	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}

	split := strings.SplitAfter(text, "\n")

	return split[:len(split)-1]
}

func lines(all []string, from, to int) []Line {
	out := make([]Line, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, Line{Number: i + 1, Text: strings.TrimSuffix(all[i], "\n")})
	}

	return out
}
