package gild

import (
	"fmt"
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"
	"go.followtheprocess.codes/gild/internal/report"
	"go.followtheprocess.codes/hue"
)

// progressWidth is the width in characters of the progress bar.
const progressWidth = 50

// progress is a progress bar counting finished tests.
type progress struct {
	bar     *progressbar.ProgressBar
	paint   func(hue.Style, string) string
	mu      sync.Mutex
	passed  int
	failed  int
	errored int
}

// newProgress returns a new progress bar for total tests, written to w.
func newProgress(w io.Writer, total int, color bool) *progress {
	p := &progress{
		paint: func(style hue.Style, text string) string {
			if !color {
				return text
			}

			return style.Text(text)
		},
	}

	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription(p.describe()),
		progressbar.OptionSetWidth(progressWidth),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        p.paint(hue.Cyan, "█"),
			SaucerHead:    p.paint(hue.Cyan, "█"),
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionEnableColorCodes(color),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)

	return p
}

// record counts a finished test, it is safe to call from multiple goroutines.
func (p *progress) record(result report.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch result.Status {
	case report.Passed:
		p.passed++
	case report.Failed:
		p.failed++
	case report.Errored:
		p.errored++
	}

	p.bar.Describe(p.describe())
	_ = p.bar.Add(1) //nolint:errcheck // Progress is cosmetic
}

// finish completes the bar and clears it.
func (p *progress) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	_ = p.bar.Finish() //nolint:errcheck // Progress is cosmetic
}

// describe returns the bar's description, the caller must hold the lock or
// be the only user.
func (p *progress) describe() string {
	return p.paint(hue.Cyan, "Running tests ") +
		p.paint(hue.Green, fmt.Sprintf("[passed: %d", p.passed)) +
		" | " +
		p.paint(hue.Red, fmt.Sprintf("failed: %d", p.failed)) +
		" | " +
		p.paint(hue.Magenta, fmt.Sprintf("errored: %d]", p.errored))
}
