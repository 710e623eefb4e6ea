// Package harness implements discovery and running of test cases: each case's
// source is run through the analyzer and its output checked against the golden
// transcripts, inline markers and expected fixed source that live next to it.
package harness

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.followtheprocess.codes/gild/internal/analyzer"
	"go.followtheprocess.codes/gild/internal/config"
	"go.followtheprocess.codes/gild/internal/fix"
	"go.followtheprocess.codes/gild/internal/golden"
	"go.followtheprocess.codes/gild/internal/report"
	"go.followtheprocess.codes/gild/internal/source"
	"go.followtheprocess.codes/log"
	"golang.org/x/sync/errgroup"
)

// Options configure a [Runner].
type Options struct {
	// OnResult, if set, is called with each case's result as soon as it finishes.
	// It may be called from multiple goroutines at once.
	OnResult func(report.Result)

	// Analyzer is the resolved path of the analyzer executable.
	Analyzer string

	// Base is the configuration shared by every case, before any per test
	// configuration is applied.
	Base config.Settings

	// Overrides are the command line settings, applied last.
	Overrides config.Overrides

	// Jobs is the maximum number of cases run concurrently.
	Jobs int

	// Bless rewrites golden files to match actual output instead of
	// failing on a mismatch.
	Bless bool
}

// Validate reports whether the options are usable, returning an error if not.
func (o Options) Validate() error {
	switch {
	case o.Analyzer == "":
		return errors.New("no analyzer given")
	case o.Jobs < 1:
		return fmt.Errorf("jobs must be at least 1, got %d", o.Jobs)
	default:
		return nil
	}
}

// Runner runs test cases.
type Runner struct {
	logger  *log.Logger
	invoker analyzer.Invoker
	options Options
}

// New returns a new [Runner].
func New(logger *log.Logger, options Options) Runner {
	return Runner{
		logger:  logger,
		invoker: analyzer.New(logger),
		options: options,
	}
}

// Run runs every case, at most Jobs at a time, and returns the summary.
//
// A case that fails or errors never stops the others. If ctx is cancelled, cases
// not yet finished are recorded as errored and Run returns once every analyzer
// process started has exited.
func (r Runner) Run(ctx context.Context, cases []Case) report.Summary {
	sink := &report.Sink{}

	group := errgroup.Group{}
	group.SetLimit(max(r.options.Jobs, 1))

	r.logger.Debug("Running tests", slog.Int("cases", len(cases)), slog.Int("jobs", r.options.Jobs))

	for _, c := range cases {
		group.Go(func() error {
			result := r.runCase(ctx, c)
			sink.Record(result)

			if r.options.OnResult != nil {
				r.options.OnResult(result)
			}

			// Never fail the group, that would cancel every other case
			return nil
		})
	}

	_ = group.Wait() //nolint:errcheck // Tasks always return nil

	return sink.Summary()
}

// runCase runs a single case through the whole pipeline, recovering from any panic.
func (r Runner) runCase(ctx context.Context, c Case) (result report.Result) {
	logger := r.logger.With(slog.String("test", c.Name))
	start := time.Now()

	result = report.Result{Name: c.Name, Index: c.Index, Status: report.Running}

	defer func() {
		if p := recover(); p != nil {
			result.Status = report.Errored
			result.Err = fmt.Errorf("panic: %v", p)
		}

		logger.Debug("Finished test", slog.String("status", result.Status.String()), slog.Duration("took", time.Since(start)))
	}()

	if err := ctx.Err(); err != nil {
		result.Status = report.Errored
		result.Err = fmt.Errorf("not run: %w", err)

		return result
	}

	logger.Debug("Running test", slog.String("path", c.Path))

	run := &caseRun{Runner: r, logger: logger, c: c}

	if err := run.check(ctx); err != nil {
		result.Status = report.Errored
		result.Err = err
		result.Error = run.clean(err.Error())
		result.Failures = run.failures

		return result
	}

	result.Failures = run.failures
	result.Blessed = run.blessed

	if len(result.Failures) > 0 {
		result.Status = report.Failed
	} else {
		result.Status = report.Passed
	}

	return result
}

// caseRun is the state of a single case as it moves through the pipeline.
type caseRun struct {
	Runner

	logger     *log.Logger
	normalizer golden.Normalizer
	settings   config.Settings
	dir        string // Per case working directory
	working    string // The copy of the source the analyzer is run against
	c          Case
	failures   []report.Failure
	blessed    bool
}

// check runs the pipeline, collecting failures, it returns an error only if the
// case could not be completed.
func (run *caseRun) check(ctx context.Context) error {
	perTest, err := config.LoadTest(run.c.ConfigPath)
	if err != nil {
		return err
	}

	settings, err := run.options.Base.WithTest(perTest)
	if err != nil {
		return fmt.Errorf("%s: %w", run.c.ConfigPath, err)
	}

	run.settings = settings.WithOverrides(run.options.Overrides)

	file, err := source.Load(run.c.Path)
	if err != nil {
		return err
	}

	dir, err := os.MkdirTemp("", "gild-*")
	if err != nil {
		return fmt.Errorf("could not create working directory: %w", err)
	}
	defer os.RemoveAll(dir)

	// So the directory we hand the analyzer is the one it reports back e.g. /private/var on macOS
	dir, err = filepath.EvalSymlinks(dir)
	if err != nil {
		return fmt.Errorf("could not resolve working directory: %w", err)
	}

	run.dir = dir
	run.working = filepath.Join(dir, filepath.Base(run.c.Path))
	run.normalizer = run.settings.Normalizer(dir)

	if err := os.WriteFile(run.working, []byte(file.Text), 0o644); err != nil {
		return fmt.Errorf("could not copy test source: %w", err)
	}

	output, err := run.invoke(ctx, run.working)
	if err != nil {
		return err
	}

	run.logger.Debug(
		"Analyzer finished",
		slog.Int("exit", output.ExitCode),
		slog.Int("diagnostics", len(output.Diagnostics)),
		slog.Duration("took", output.Duration),
	)

	if err := run.checkTranscripts(output); err != nil {
		return err
	}

	run.checkMarkers(file, output)

	return run.checkFix(ctx, file, output)
}

// invoke runs the analyzer over path with this case's configuration.
func (run *caseRun) invoke(ctx context.Context, path string) (analyzer.Output, error) {
	return run.invoker.Invoke(ctx, run.settings.Invocation(run.options.Analyzer, run.dir), path)
}

// checkTranscripts compares the normalized stderr and stdout with their goldens,
// blessing them if asked.
func (run *caseRun) checkTranscripts(output analyzer.Output) error {
	streams := []struct {
		path    string
		ext     string
		actual  string
		counted bool
	}{
		{path: run.c.StderrPath, ext: ExtStderr, actual: output.Stderr, counted: true},
		{path: run.c.StdoutPath, ext: ExtStdout, actual: output.Stdout},
	}

	for _, stream := range streams {
		want, err := golden.Read(stream.path)
		if err != nil {
			return err
		}

		want = run.normalizer.Normalize(want)
		got := run.normalizer.Normalize(stream.actual)

		var result golden.Result
		if stream.counted {
			result = golden.Check(want, got, output.Errors())
		} else {
			result = golden.Compare(want, got)
		}

		if result.Matched {
			continue
		}

		if run.options.Bless {
			if err := run.bless(stream.path, got); err != nil {
				return err
			}

			continue
		}

		display := run.c.display(stream.ext)
		run.logger.Debug("Golden mismatch", slog.String("error", result.Err(display).Error()))
		run.failures = append(run.failures, comparisonFailures(display, result)...)
	}

	return nil
}

// checkMarkers checks the diagnostics against the source's inline markers.
func (run *caseRun) checkMarkers(file source.File, output analyzer.Output) {
	missing, unexpected := file.CheckMarkers(run.working, output.Diagnostics)

	for _, mismatch := range missing {
		run.failures = append(run.failures, report.Failure{
			Kind:    report.MissingMarker,
			File:    run.c.Name,
			Message: "no diagnostic matched marker on " + mismatch.String(),
		})
	}

	for _, mismatch := range unexpected {
		run.failures = append(run.failures, report.Failure{
			Kind:    report.UnmarkedDiagnostic,
			File:    run.c.Name,
			Message: "no marker claimed " + run.clean(mismatch.String()),
		})
	}
}

// checkFix applies the automatically applicable suggestions, checks that doing so
// converges and compares the result with the .fixed file.
func (run *caseRun) checkFix(ctx context.Context, file source.File, output analyzer.Output) error {
	plan := fix.Collect(output.Diagnostics, run.working)
	display := run.c.display(ExtFixed)

	exists, err := fileExists(run.c.FixedPath)
	if err != nil {
		return err
	}

	if len(plan.Edits) == 0 {
		if !exists {
			return nil
		}

		if run.options.Bless {
			return run.bless(run.c.FixedPath, "")
		}

		run.failures = append(run.failures, report.Failure{
			Kind:    report.StaleFixed,
			File:    display,
			Message: "no suggestions were applied but the fixed file exists",
		})

		return nil
	}

	run.logger.Debug("Applying suggestions", slog.Int("edits", len(plan.Edits)), slog.Any("lints", plan.Codes))

	fixed, err := fix.Apply(file.Text, plan.Edits)
	if err != nil {
		var conflict *fix.ConflictingEditsError
		if errors.As(err, &conflict) {
			run.failures = append(run.failures, report.Failure{
				Kind:    report.ConflictingEdits,
				File:    run.c.Name,
				Message: run.clean(conflict.Error()),
			})

			return nil
		}

		return fmt.Errorf("could not apply suggestions: %w", err)
	}

	if err := fix.Converge(ctx, run.invoke, run.working, fixed, plan.Codes); err != nil {
		var nonConvergent *fix.NonConvergentFixError
		if !errors.As(err, &nonConvergent) {
			return err
		}

		run.failures = append(run.failures, report.Failure{
			Kind:    report.NonConvergentFix,
			File:    run.c.Name,
			Message: fmt.Sprintf("%s still reported after applying their own suggestions", strings.Join(nonConvergent.Codes, ", ")),
			Detail:  run.clean(nonConvergent.Error()),
		})
	}

	if !exists {
		if run.options.Bless {
			return run.bless(run.c.FixedPath, fixed)
		}

		run.failures = append(run.failures, report.Failure{
			Kind:    report.MissingFixed,
			File:    display,
			Message: fmt.Sprintf("%d suggestion(s) were applied but there is no fixed file", len(plan.Edits)),
		})

		return nil
	}

	want, err := golden.Read(run.c.FixedPath)
	if err != nil {
		return err
	}

	if want == fixed {
		return nil
	}

	if run.options.Bless {
		return run.bless(run.c.FixedPath, fixed)
	}

	run.failures = append(run.failures, report.Failure{
		Kind:    report.FixedMismatch,
		File:    display,
		Message: "source with suggestions applied does not match",
		Detail:  golden.Compare(want, fixed).Diff,
	})

	return nil
}

// bless writes text to the golden file at path, removing it if text is empty.
func (run *caseRun) bless(path, text string) error {
	if err := golden.Bless(path, text); err != nil {
		return err
	}

	run.logger.Debug("Blessed golden file", slog.String("file", path))
	run.blessed = true

	return nil
}

// clean normalizes a single line of text mentioning the working directory.
func (run *caseRun) clean(text string) string {
	return strings.TrimSuffix(run.normalizer.Normalize(text), "\n")
}

// display returns the display name of the case's file with the given extension.
func (c Case) display(ext string) string {
	return strings.TrimSuffix(c.Name, filepath.Ext(c.Name)) + ext
}

// comparisonFailures converts an unmatched golden comparison into failures, the
// diff is attached to the first.
func comparisonFailures(file string, result golden.Result) []report.Failure {
	var failures []report.Failure

	if len(result.Missing) > 0 {
		failures = append(failures, report.Failure{
			Kind:    report.MissingDiagnostic,
			File:    file,
			Message: fmt.Sprintf("%d expected line(s) not emitted, first at line %s", len(result.Missing), result.Missing[0]),
		})
	}

	if len(result.Unexpected) > 0 {
		failures = append(failures, report.Failure{
			Kind:    report.UnexpectedDiagnostic,
			File:    file,
			Message: fmt.Sprintf("%d line(s) emitted but not expected, first at line %s", len(result.Unexpected), result.Unexpected[0]),
		})
	}

	if len(failures) > 0 {
		failures[0].Detail = result.Diff
	}

	if result.Count != nil {
		failures = append(failures, report.Failure{
			Kind:    report.CountMismatch,
			File:    file,
			Message: result.Count.String(),
		})
	}

	return failures
}

// fileExists reports whether a regular file exists at path.
func fileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("could not stat %s: %w", path, err)
	}

	return info.Mode().IsRegular(), nil
}
