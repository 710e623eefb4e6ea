package fix_test

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"go.followtheprocess.codes/gild/internal/analyzer"
	"go.followtheprocess.codes/gild/internal/diag"
	"go.followtheprocess.codes/gild/internal/fix"
	"go.followtheprocess.codes/gild/internal/gildtest"
	"go.followtheprocess.codes/log"
	"go.followtheprocess.codes/test"
)

func TestMain(m *testing.M) {
	gildtest.MainIfFakeLint()
	os.Exit(m.Run())
}

// edit builds a single line edit, columns are 1 indexed and end exclusive.
func edit(line, start, end int, replacement string) diag.Edit {
	return diag.Edit{
		Span:        diag.Span{File: "main.rs", Line: line, EndLine: line, StartCol: start, EndCol: end},
		Replacement: replacement,
	}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name    string      // Name of the test case
		src     string      // Source text
		want    string      // Expected fixed text
		edits   []diag.Edit // Edits to apply
		wantErr bool        // Whether we want an error
	}{
		{
			name: "no edits",
			src:  "fn main() {}\n",
			want: "fn main() {}\n",
		},
		{
			name:  "single replacement",
			src:   "fn main() {\n    todo!();;\n}\n",
			edits: []diag.Edit{edit(2, 12, 14, ";")},
			want:  "fn main() {\n    todo!();\n}\n",
		},
		{
			name:  "uninlined format args",
			src:   "fn main() {\n    let var = 1;\n    println!(\"val='{}'\", var);\n}\n",
			edits: []diag.Edit{edit(3, 5, 31, `println!("val='{var}'");`)},
			want:  "fn main() {\n    let var = 1;\n    println!(\"val='{var}'\");\n}\n",
		},
		{
			name:  "insertion",
			src:   "let x = 1\n",
			edits: []diag.Edit{edit(1, 10, 10, ";")},
			want:  "let x = 1;\n",
		},
		{
			name:  "deletion",
			src:   "let x = 1;;\n",
			edits: []diag.Edit{edit(1, 11, 12, "")},
			want:  "let x = 1;\n",
		},
		{
			name: "several on one line in any order",
			src:  "a b c d\n",
			edits: []diag.Edit{
				edit(1, 1, 2, "alpha"),
				edit(1, 7, 8, "delta"),
				edit(1, 3, 4, "bravo"),
			},
			want: "alpha bravo c delta\n",
		},
		{
			name: "adjacent",
			src:  "abcd\n",
			edits: []diag.Edit{
				edit(1, 1, 3, "X"),
				edit(1, 3, 5, "Y"),
			},
			want: "XY\n",
		},
		{
			name: "insert at end of replaced range",
			src:  "abcd\n",
			edits: []diag.Edit{
				edit(1, 1, 3, "X"),
				edit(1, 3, 3, "+"),
			},
			want: "X+cd\n",
		},
		{
			name: "identical edits deduplicated",
			src:  "x;;\n",
			edits: []diag.Edit{
				edit(1, 2, 4, ";"),
				edit(1, 2, 4, ";"),
			},
			want: "x;\n",
		},
		{
			name: "unicode columns",
			src:  "let ñame = \"é\";;\n",
			edits: []diag.Edit{
				edit(1, 15, 17, ";"),
			},
			want: "let ñame = \"é\";\n",
		},
		{
			name: "multiline span",
			src:  "fn a() {\n    1\n}\nfn b() {}\n",
			edits: []diag.Edit{
				{
					Span:        diag.Span{File: "main.rs", Line: 1, EndLine: 3, StartCol: 8, EndCol: 2},
					Replacement: "{ 1 }",
				},
			},
			want: "fn a() { 1 }\nfn b() {}\n",
		},
		{
			name: "overlap",
			src:  "abcdef\n",
			edits: []diag.Edit{
				edit(1, 1, 4, "X"),
				edit(1, 3, 6, "Y"),
			},
			wantErr: true,
		},
		{
			name: "insertions at the same point",
			src:  "abc\n",
			edits: []diag.Edit{
				edit(1, 2, 2, "X"),
				edit(1, 2, 2, "Y"),
			},
			wantErr: true,
		},
		{
			name: "same span different replacement",
			src:  "abc\n",
			edits: []diag.Edit{
				edit(1, 1, 2, "X"),
				edit(1, 1, 2, "Y"),
			},
			wantErr: true,
		},
		{
			name:    "line out of range",
			src:     "abc\n",
			edits:   []diag.Edit{edit(7, 1, 2, "X")},
			wantErr: true,
		},
		{
			name:    "column out of range",
			src:     "abc\n",
			edits:   []diag.Edit{edit(1, 9, 10, "X")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fix.Apply(tt.src, tt.edits)
			test.WantErr(t, err, tt.wantErr)
			test.Diff(t, got, tt.want)
		})
	}
}

func TestApplyConflictIsTyped(t *testing.T) {
	_, err := fix.Apply("abcdef\n", []diag.Edit{edit(1, 1, 4, "X"), edit(1, 3, 6, "Y")})

	var conflict *fix.ConflictingEditsError
	test.True(t, errors.As(err, &conflict), test.Context("wrong error type: %T", err))
	test.Equal(t, conflict.First.Replacement, "X")
	test.Equal(t, conflict.Second.Replacement, "Y")
}

// Applying edits rightmost first must give the same result as applying them
// leftmost first while tracking how far each edit shifts the ones after it.
func TestApplyOffsetStable(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for range 200 {
		width := 40
		lines := 1 + rng.IntN(4)

		var builder strings.Builder
		for range lines {
			for range width {
				builder.WriteByte(byte('a' + rng.IntN(26)))
			}

			builder.WriteByte('\n')
		}

		src := builder.String()

		// Random non-overlapping edits on each line, columns strictly increasing
		var edits []diag.Edit

		for line := 1; line <= lines; line++ {
			col := 1
			for col <= width {
				start := col + rng.IntN(5)
				end := start + rng.IntN(4)

				if end > width+1 {
					break
				}

				edits = append(edits, edit(line, start, end, strings.Repeat("Z", rng.IntN(6))))
				col = end + 1
			}
		}

		want := applyAscending(src, width, edits)

		shuffled := slices.Clone(edits)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		got, err := fix.Apply(src, shuffled)
		test.Ok(t, err)
		test.Diff(t, got, want)
	}
}

// applyAscending applies ascending, non-overlapping edits to ASCII src whose lines are
// all width characters long, adjusting each offset by the shift caused so far.
func applyAscending(src string, width int, edits []diag.Edit) string {
	offset := func(line, col int) int {
		return (line-1)*(width+1) + col - 1
	}

	delta := 0
	out := src

	for _, e := range edits {
		start := offset(e.Span.Line, e.Span.StartCol) + delta
		end := offset(e.Span.EndLine, e.Span.EndCol) + delta

		out = out[:start] + e.Replacement + out[end:]
		delta += len(e.Replacement) - (end - start)
	}

	return out
}

func TestCollect(t *testing.T) {
	file := filepath.Join("work", "main.rs")

	diagnostics := []diag.Diagnostic{
		{
			Code:  "fake::double_semicolon",
			Edits: []diag.Edit{{Span: diag.Span{File: file}, Replacement: ";", Applicability: diag.MachineApplicable}},
		},
		{
			Code:  "fake::maybe",
			Edits: []diag.Edit{{Span: diag.Span{File: file}, Replacement: "?", Applicability: diag.MaybeIncorrect}},
		},
		{
			Code:  "fake::placeholder",
			Edits: []diag.Edit{{Span: diag.Span{File: file}, Replacement: "<x>", Applicability: diag.HasPlaceholders}},
		},
		{
			Code:  "fake::other_file",
			Edits: []diag.Edit{{Span: diag.Span{File: "other.rs"}, Replacement: "!"}},
		},
		{
			Code:  "fake::unspecified",
			Edits: []diag.Edit{{Span: diag.Span{File: "main.rs"}, Replacement: "!"}},
		},
		{
			Code:  "fake::double_semicolon",
			Edits: []diag.Edit{{Span: diag.Span{File: file}, Replacement: ";", Applicability: diag.MachineApplicable}},
		},
		{
			Code: "fake::todo",
		},
	}

	plan := fix.Collect(diagnostics, file)

	test.Equal(t, len(plan.Edits), 3)
	test.EqualFunc(t, plan.Codes, []string{"fake::double_semicolon", "fake::unspecified"}, slices.Equal)
}

func TestConverge(t *testing.T) {
	self, err := os.Executable()
	test.Ok(t, err)

	config := analyzer.Config{
		Binary:  self,
		Env:     gildtest.FakeLintEnv(),
		Timeout: 30 * time.Second,
	}

	invoker := analyzer.New(log.New(io.Discard))
	invoke := func(ctx context.Context, path string) (analyzer.Output, error) {
		return invoker.Invoke(ctx, config, path)
	}

	tests := []struct {
		name           string // Name of the test case
		src            string // Source to check
		nonConvergent  bool   // Whether we expect a NonConvergentFixError
		wantFixedMatch string // Expected fixed source
	}{
		{
			name:           "uninlined format args",
			src:            "fn main() {\n    let var = 1;\n    println!(\"val='{}'\", var);\n}\n",
			wantFixedMatch: "fn main() {\n    let var = 1;\n    println!(\"val='{var}'\");\n}\n",
		},
		{
			name:           "double semicolon with todo left alone",
			src:            "fn main() {\n    todo!();;\n}\n",
			wantFixedMatch: "fn main() {\n    todo!();\n}\n",
		},
		{
			name:           "stubborn",
			src:            "// fakelint: stubborn\n",
			wantFixedMatch: "// fakelint: stubborn\n",
			nonConvergent:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "main.rs")
			test.Ok(t, os.WriteFile(path, []byte(tt.src), 0o644))

			output, err := invoke(t.Context(), path)
			test.Ok(t, err)

			plan := fix.Collect(output.Diagnostics, path)
			test.True(t, len(plan.Edits) > 0, test.Context("expected the analyzer to suggest edits"))

			fixed, err := fix.Apply(tt.src, plan.Edits)
			test.Ok(t, err)
			test.Diff(t, fixed, tt.wantFixedMatch)

			err = fix.Converge(t.Context(), invoke, path, fixed, plan.Codes)
			if !tt.nonConvergent {
				test.Ok(t, err)

				// Fixing is idempotent: a second pass suggests nothing
				output, err = invoke(t.Context(), path)
				test.Ok(t, err)
				test.Equal(t, len(fix.Collect(output.Diagnostics, path).Edits), 0)

				return
			}

			var nonConvergent *fix.NonConvergentFixError
			test.True(t, errors.As(err, &nonConvergent), test.Context("wrong error type: %T (%v)", err, err))
			test.EqualFunc(t, nonConvergent.Codes, []string{gildtest.LintStubborn}, slices.Equal)
			test.Equal(t, len(nonConvergent.Residual), 1)
		})
	}
}
