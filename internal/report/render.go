package report

import (
	"fmt"
	"io"
	"strings"

	"go.followtheprocess.codes/hue"
)

// Styles.
const (
	// passStyle is the style of the PASS label and an ok test result.
	passStyle = hue.Green | hue.Bold

	// failStyle is the style of the FAIL label and a failed test result.
	failStyle = hue.Red | hue.Bold

	// errorStyle is the style of the ERROR label.
	errorStyle = hue.Magenta | hue.Bold

	// blessStyle is the style of the BLESS label.
	blessStyle = hue.Yellow | hue.Bold

	// dimmed is the style of failure details.
	dimmed = hue.BrightBlack
)

// detailIndent is the indentation of failure details under their test.
const detailIndent = "    "

// Options control how a [Summary] is rendered.
type Options struct {
	// Color enables coloured labels.
	Color bool

	// Verbose includes each failure's detail (typically a diff).
	Verbose bool
}

// Render writes the human readable summary to w.
//
// The output depends only on the results, never on timing or completion order,
// so rendering the same run twice gives identical bytes.
func (s Summary) Render(w io.Writer, options Options) error {
	paint := func(style hue.Style, text string) string {
		if !options.Color {
			return text
		}

		return style.Text(text)
	}

	out := &strings.Builder{}

	for _, result := range s.Results {
		var label string

		switch {
		case result.Blessed && result.Status == Passed:
			label = paint(blessStyle, "BLESS")
		case result.Status == Passed:
			label = paint(passStyle, "PASS")
		case result.Status == Failed:
			label = paint(failStyle, "FAIL")
		case result.Status == Errored:
			label = paint(errorStyle, "ERROR")
		default:
			label = strings.ToUpper(result.Status.String())
		}

		fmt.Fprintf(out, "%s %s\n", label, result.Name)

		if result.Error != "" {
			for line := range strings.Lines(result.Error) {
				fmt.Fprintf(out, "%s%s\n", detailIndent, strings.TrimRight(line, "\n"))
			}
		}

		for _, failure := range result.Failures {
			fmt.Fprintf(out, "%s%s\n", detailIndent, failure)

			if options.Verbose && failure.Detail != "" {
				for line := range strings.Lines(failure.Detail) {
					fmt.Fprintf(out, "%s%s%s\n", detailIndent, detailIndent, paint(dimmed, strings.TrimRight(line, "\n")))
				}
			}
		}
	}

	verdict := paint(passStyle, "ok")
	if !s.OK() {
		verdict = paint(failStyle, "FAILED")
	}

	fmt.Fprintf(
		out,
		"\ntest result: %s. %d passed; %d failed; %d errored; %d blessed\n",
		verdict,
		s.Passed,
		s.Failed,
		s.Errored,
		s.Blessed,
	)

	_, err := io.WriteString(w, out.String())

	return err
}
