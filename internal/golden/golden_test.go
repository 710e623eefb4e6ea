package golden_test

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.followtheprocess.codes/gild/internal/golden"
	"go.followtheprocess.codes/test"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name       string            // Name of the test case
		normalizer golden.Normalizer // The normalizer under test
		in         string            // Text to normalize
		want       string            // Expected normalized text
	}{
		{
			name:       "empty",
			normalizer: golden.NewNormalizer("/tmp/gild-123"),
			in:         "",
			want:       "",
		},
		{
			name:       "only whitespace",
			normalizer: golden.NewNormalizer("/tmp/gild-123"),
			in:         "\n  \n\t\n",
			want:       "",
		},
		{
			name:       "crlf",
			normalizer: golden.NewNormalizer(""),
			in:         "warning: hello\r\n\r\n",
			want:       "warning: hello\n",
		},
		{
			name:       "dir placeholder",
			normalizer: golden.NewNormalizer("/tmp/gild-123"),
			in:         " --> /tmp/gild-123/main.rs:3:5\n",
			want:       " --> $DIR/main.rs:3:5\n",
		},
		{
			name:       "trailing whitespace",
			normalizer: golden.NewNormalizer(""),
			in:         "  |   \n3 | let x = 1;\t\n\n\n",
			want:       "  |\n3 | let x = 1;\n",
		},
		{
			name:       "backslashes in locations",
			normalizer: golden.NewNormalizer(""),
			in:         " --> src\\lib\\main.rs:1:1\nnote: \\n is a newline\n",
			want:       " --> src/lib/main.rs:1:1\nnote: \\n is a newline\n",
		},
		{
			name:       "no trimming",
			normalizer: golden.Normalizer{},
			in:         "a  \nb\t\n",
			want:       "a  \nb\t\n",
		},
		{
			name: "column insensitive",
			normalizer: golden.Normalizer{
				Dir:               "/work",
				TrimTrailing:      true,
				SlashPaths:        true,
				ColumnInsensitive: true,
			},
			in: "warning: bad\n" +
				"  --> /work/main.rs:10:5\n" +
				"   |\n" +
				"10 |     todo!();\n" +
				"   |     ^^^^^^^\n" +
				"   = help: remove it\n",
			want: "warning: bad\n" +
				"  --> $DIR/main.rs:LL:CC\n" +
				"   |\n" +
				"LL |     todo!();\n" +
				"   |     ^^^^^^^\n" +
				"   = help: remove it\n",
		},
		{
			name: "replacements",
			normalizer: golden.Normalizer{
				TrimTrailing: true,
				Replacements: []golden.Replacement{
					{Pattern: regexp.MustCompile(`took \d+ms`), With: "took Nms"},
					{Pattern: regexp.MustCompile(`v(\d+)\.\d+`), With: "v$1.x"},
				},
			},
			in:   "analyzer v1.82 took 32ms\n",
			want: "analyzer v1.x took Nms\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.normalizer.Normalize(tt.in)
			test.Diff(t, got, tt.want)

			// Normalization must be idempotent
			test.Diff(t, tt.normalizer.Normalize(got), got)
		})
	}
}

func TestColumnInsensitiveAlignsGutters(t *testing.T) {
	normalizer := golden.NewNormalizer("")
	normalizer.ColumnInsensitive = true

	// The same diagnostic one line apart, with a different gutter width
	short := " --> main.rs:9:5\n  |\n9 |     todo!();\n  |     ^^^^^^^\n"
	long := "  --> main.rs:10:5\n   |\n10 |     todo!();\n   |     ^^^^^^^\n"

	test.Diff(t, normalizer.Normalize(short), normalizer.Normalize(long))
}

func TestColumnInsensitiveMixedWidthGutters(t *testing.T) {
	normalizer := golden.NewNormalizer("")
	normalizer.ColumnInsensitive = true

	// A snippet crossing from 9 to 10 pads the narrower gutter
	got := "  --> main.rs:9:5\n" +
		"   |\n" +
		"9  |     todo!();\n" +
		"10 |     todo!();\n" +
		"   |     ^^^^^^^\n"

	want := "  --> main.rs:LL:CC\n" +
		"   |\n" +
		"LL |     todo!();\n" +
		"LL |     todo!();\n" +
		"   |     ^^^^^^^\n"

	test.Diff(t, normalizer.Normalize(got), want)
}

func TestParseReplacement(t *testing.T) {
	replacement, err := golden.ParseReplacement(`\d+`, "N")
	test.Ok(t, err)
	test.Equal(t, replacement.Pattern.ReplaceAllString("a1b22", replacement.With), "aNbN")

	_, err = golden.ParseReplacement(`(`, "N")
	test.Err(t, err)
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name       string        // Name of the test case
		want       string        // Golden transcript
		got        string        // Actual transcript
		missing    []golden.Line // Expected missing lines
		unexpected []golden.Line // Expected unexpected lines
		matched    bool          // Whether we expect a match
	}{
		{
			name:    "identical",
			want:    "a\nb\nc\n",
			got:     "a\nb\nc\n",
			matched: true,
		},
		{
			name:    "both empty",
			matched: true,
		},
		{
			name:    "missing line",
			want:    "a\nb\nc\n",
			got:     "a\nc\n",
			missing: []golden.Line{{Number: 2, Text: "b"}},
		},
		{
			name:       "unexpected line",
			want:       "a\nc\n",
			got:        "a\nb\nc\n",
			unexpected: []golden.Line{{Number: 2, Text: "b"}},
		},
		{
			name:       "replaced line",
			want:       "a\nold\nc\n",
			got:        "a\nnew\nc\n",
			missing:    []golden.Line{{Number: 2, Text: "old"}},
			unexpected: []golden.Line{{Number: 2, Text: "new"}},
		},
		{
			name:       "missing golden with output",
			want:       "",
			got:        "warning: hello\n",
			unexpected: []golden.Line{{Number: 1, Text: "warning: hello"}},
		},
		{
			name:    "golden with no output",
			want:    "warning: hello\n",
			got:     "",
			missing: []golden.Line{{Number: 1, Text: "warning: hello"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := golden.Compare(tt.want, tt.got)

			test.Equal(t, result.Matched, tt.matched)

			if diff := cmp.Diff(tt.missing, result.Missing); diff != "" {
				t.Errorf("Missing mismatch (-want +got):\n%s", diff)
			}

			if diff := cmp.Diff(tt.unexpected, result.Unexpected); diff != "" {
				t.Errorf("Unexpected mismatch (-want +got):\n%s", diff)
			}

			if tt.matched {
				test.Equal(t, result.Diff, "")
				test.Ok(t, result.Err("main.stderr"))
			} else {
				test.True(t, strings.HasPrefix(result.Diff, "--- expected\n+++ actual\n"), test.Context("bad diff:\n%s", result.Diff))
				test.Err(t, result.Err("main.stderr"))
			}
		})
	}
}

// Swapping golden and actual must swap missing and unexpected exactly.
func TestCompareSymmetric(t *testing.T) {
	a := "warning: one\nerror: two\nnote: three\n"
	b := "warning: one\nerror: 2\nhelp: four\n"

	forward := golden.Compare(a, b)
	backward := golden.Compare(b, a)

	if diff := cmp.Diff(forward.Missing, backward.Unexpected); diff != "" {
		t.Errorf("forward missing != backward unexpected:\n%s", diff)
	}

	if diff := cmp.Diff(forward.Unexpected, backward.Missing); diff != "" {
		t.Errorf("forward unexpected != backward missing:\n%s", diff)
	}
}

func TestCountCheck(t *testing.T) {
	tests := []struct {
		name    string                // Name of the test case
		want    string                // The golden transcript
		emitted int                   // Number of errors emitted
		result  *golden.CountMismatch // Expected mismatch, nil if none
	}{
		{
			name:    "no summary no errors",
			want:    "warning: 1 warning emitted\n",
			emitted: 0,
		},
		{
			name:    "no summary but errors",
			want:    "",
			emitted: 1,
			result:  &golden.CountMismatch{Want: 0, Got: 1},
		},
		{
			name:    "plural",
			want:    "error: aborting due to 3 previous errors\n",
			emitted: 3,
		},
		{
			name:    "declares more than emitted",
			want:    "error: aborting due to 3 previous errors\n",
			emitted: 2,
			result:  &golden.CountMismatch{Want: 3, Got: 2},
		},
		{
			name:    "previous error",
			want:    "error: aborting due to previous error\n",
			emitted: 1,
		},
		{
			name:    "one previous error",
			want:    "error: aborting due to 1 previous error; 2 warnings emitted\n",
			emitted: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := golden.CountCheck(tt.want, tt.emitted)
			if diff := cmp.Diff(tt.result, got); diff != "" {
				t.Errorf("CountCheck mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCheckCountOnly(t *testing.T) {
	// Transcripts agree but the analyzer emitted fewer structured errors than declared
	transcript := "error: aborting due to 3 previous errors\n"

	result := golden.Check(transcript, transcript, 2)
	test.True(t, !result.Matched)
	test.Equal(t, len(result.Missing), 0)
	test.Equal(t, len(result.Unexpected), 0)
	test.Equal(t, *result.Count, golden.CountMismatch{Want: 3, Got: 2})

	err := result.Err("main.stderr")

	var mismatch *golden.ComparisonMismatch
	test.True(t, errors.As(err, &mismatch))
	test.Equal(t, err.Error(), "main.stderr does not match actual output: golden declares 3 previous error(s) but 2 error(s) were emitted")
}

func TestReadAndBless(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.stderr")

	got, err := golden.Read(path)
	test.Ok(t, err)
	test.Equal(t, got, "", test.Context("missing golden should read as empty"))

	test.Ok(t, golden.Bless(path, "warning: hello\n"))

	got, err = golden.Read(path)
	test.Ok(t, err)
	test.Equal(t, got, "warning: hello\n")

	test.Ok(t, golden.Bless(path, ""))

	_, err = os.Stat(path)
	test.True(t, errors.Is(err, os.ErrNotExist), test.Context("empty bless should remove the golden"))

	// Removing an already absent golden is fine
	test.Ok(t, golden.Bless(path, ""))
}
