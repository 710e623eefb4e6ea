package gild

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/charmbracelet/huh"
	"go.followtheprocess.codes/gild/internal/config"
	"go.followtheprocess.codes/gild/internal/format"
	"go.followtheprocess.codes/gild/internal/harness"
	"go.followtheprocess.codes/gild/internal/report"
	"go.followtheprocess.codes/msg"
)

// RunOptions are the options passed to the run subcommand.
type RunOptions struct {
	// Path is the test file, directory or glob to run.
	Path string

	// Config is the project configuration file, if empty gild.yaml in the
	// current directory is used if present.
	Config string

	// Analyzer overrides the analyzer executable.
	Analyzer string

	// Format is the output format of the summary.
	Format string

	// Globs restrict which of the discovered tests are run.
	Globs []string

	// Timeout overrides the per invocation analyzer timeout.
	Timeout time.Duration

	// Jobs overrides the number of tests run concurrently.
	Jobs int

	// Bless rewrites golden files to match the actual output.
	Bless bool

	// Yes skips the confirmation prompt before blessing.
	Yes bool

	// ColumnInsensitive replaces line and column numbers in transcripts before comparing.
	ColumnInsensitive bool

	// Progress shows a progress bar while tests run.
	Progress bool

	// Verbose includes failure details (diffs) in the text summary.
	Verbose bool

	// NoColor disables coloured output.
	NoColor bool

	// Debug enables debug logging.
	Debug bool
}

// Validate reports whether the RunOptions is valid, returning an error
// if it's not.
//
// nil means the options are valid.
func (r RunOptions) Validate() error {
	switch {
	case r.Path == "":
		return errors.New("path cannot be empty")
	case r.Jobs < 0:
		return fmt.Errorf("jobs cannot be negative, got %d", r.Jobs)
	case r.Timeout < 0:
		return fmt.Errorf("timeout cannot be negative, got %s", r.Timeout)
	default:
		if _, err := format.New(r.Format, report.Options{}); err != nil {
			return fmt.Errorf("invalid option for --format: %w", err)
		}

		return nil
	}
}

// overrides returns the settings given on the command line.
func (r RunOptions) overrides() config.Overrides {
	return config.Overrides{
		Analyzer:          r.Analyzer,
		Timeout:           r.Timeout,
		Jobs:              r.Jobs,
		ColumnInsensitive: r.ColumnInsensitive,
	}
}

// Run implements the run subcommand.
//
// If the run completes but not every test passed, the returned error is an [ExitError].
func (g Gild) Run(ctx context.Context, options RunOptions) error {
	logger := g.logger.Prefixed("run").With(slog.String("path", options.Path))

	if err := options.Validate(); err != nil {
		return err
	}

	logger.Debug("Run configuration", slog.String("options", fmt.Sprintf("%+v", options)))

	base, err := g.settings(options.Config)
	if err != nil {
		return err
	}

	settings := base.WithOverrides(options.overrides())
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	analyzer, err := settings.ResolveAnalyzer()
	if err != nil {
		return err
	}

	logger.Debug("Resolved analyzer", slog.String("analyzer", analyzer))

	cases, err := harness.Discover(options.Path, harness.DiscoverOptions{
		Extension: settings.Extension,
		Globs:     options.Globs,
	})
	if err != nil {
		return err
	}

	logger.Debug("Discovered tests", slog.Int("number", len(cases)))

	if options.Bless && !options.Yes {
		confirmed, err := g.confirmBless(ctx, len(cases))
		if err != nil {
			return err
		}

		if !confirmed {
			msg.Fwarn(g.stderr, "Not blessing, nothing was run")
			return nil
		}
	}

	exporter, err := format.New(options.Format, report.Options{
		Color:   colorEnabled(g.stdout, options.NoColor),
		Verbose: options.Verbose,
	})
	if err != nil {
		return err
	}

	runnerOptions := harness.Options{
		Analyzer:  analyzer,
		Base:      base,
		Overrides: options.overrides(),
		Jobs:      settings.Jobs,
		Bless:     options.Bless,
	}

	var bar *progress
	if options.Progress {
		bar = newProgress(g.stderr, len(cases), colorEnabled(g.stderr, options.NoColor))
		runnerOptions.OnResult = bar.record
	}

	if err := runnerOptions.Validate(); err != nil {
		return err
	}

	start := time.Now()
	summary := harness.New(logger, runnerOptions).Run(ctx, cases)

	if bar != nil {
		bar.finish()
	}

	logger.Debug(
		"Finished running tests",
		slog.Int("passed", summary.Passed),
		slog.Int("failed", summary.Failed),
		slog.Int("errored", summary.Errored),
		slog.Duration("took", time.Since(start)),
	)

	if err := exporter.Export(g.stdout, summary); err != nil {
		return fmt.Errorf("could not write summary: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run interrupted: %w", err)
	}

	if code := summary.ExitCode(); code != 0 {
		return ExitError{Code: code, Failed: summary.Failed, Errored: summary.Errored}
	}

	return nil
}

// settings loads the project file at path on top of the defaults.
//
// If path is empty the default project file is used, if there is one.
func (g Gild) settings(path string) (config.Settings, error) {
	explicit := path != ""
	if !explicit {
		path = config.DefaultProjectFile
	}

	project, err := config.LoadProject(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			g.logger.Debug("No project file, using defaults", slog.String("file", path))
			return config.Defaults(), nil
		}

		return config.Settings{}, err
	}

	g.logger.Debug("Loaded project file", slog.String("file", path))

	return config.Defaults().WithProject(project)
}

// confirmBless asks the user to confirm blessing when stdin is a terminal, when it
// isn't there's no one to ask so blessing goes ahead.
func (g Gild) confirmBless(ctx context.Context, n int) (bool, error) {
	if !isTerminal(g.stdin) {
		return true, nil
	}

	confirmed := false

	confirm := huh.NewConfirm().
		Title(fmt.Sprintf("Bless %d test(s)?", n)).
		Description("Golden files that don't match will be overwritten").
		Affirmative("Bless").
		Negative("Cancel").
		Value(&confirmed)

	err := huh.NewForm(huh.NewGroup(confirm)).
		WithInput(g.stdin).
		WithOutput(g.stderr).
		RunWithContext(ctx)
	if err != nil {
		return false, fmt.Errorf("could not confirm bless: %w", err)
	}

	return confirmed, nil
}
