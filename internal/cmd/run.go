package cmd

import (
	"context"

	"go.followtheprocess.codes/cli"
	"go.followtheprocess.codes/cli/flag"
	"go.followtheprocess.codes/gild/internal/config"
	"go.followtheprocess.codes/gild/internal/gild"
)

const runLong = `
Path is a test source file, a directory (searched recursively for test sources)
or a glob. Each test is run through the analyzer and its output compared with
the golden files next to it:

  <name>.stderr   the expected diagnostics
  <name>.stdout   the expected standard output
  <name>.fixed    the expected source once suggestions are applied
  <name>.toml     optional per test configuration (lint levels, edition, args)

Inline markers like '//~ ERROR: message' or '//~^ WARN: message' in the source
are checked against the diagnostics too.

Passing '--bless' rewrites the golden files to match what the analyzer actually
produced, review the changes before committing them!

The exit status is 0 if every test passed, 1 if any failed and 2 if any could
not be run at all.
`

// run returns the gild run subcommand.
func run() (*cli.Command, error) {
	var options gild.RunOptions

	return cli.New(
		"run",
		cli.Short("Run UI tests against the analyzer"),
		cli.Long(runLong),
		cli.Arg(&options.Path, "path", "Path to test, may be a file, directory or glob", cli.ArgDefault(".")),
		cli.Flag(&options.Globs, "glob", 'g', "Only run tests whose path matches (may be repeated)"),
		cli.Flag(&options.Bless, "bless", 'b', "Rewrite golden files to match actual output"),
		cli.Flag(&options.Yes, "yes", 'y', "Don't ask for confirmation before blessing"),
		cli.Flag(&options.Jobs, "jobs", 'j', "Number of tests to run concurrently (default number of CPUs)"),
		cli.Flag(&options.Analyzer, "analyzer", 'a', "The analyzer executable, overrides $GILD_ANALYZER and the config file"),
		cli.Flag(&options.Config, "config", 'c', "Path to the project config file (default ./"+config.DefaultProjectFile+" if present)"),
		cli.Flag(
			&options.Timeout,
			"timeout",
			flag.NoShortHand,
			"Timeout for a single analyzer invocation",
			cli.FlagDefault(config.DefaultTimeout),
		),
		cli.Flag(
			&options.ColumnInsensitive,
			"column-insensitive",
			flag.NoShortHand,
			"Replace line and column numbers with LL and CC before comparing",
		),
		cli.Flag(&options.Format, "format", 'f', "Output format, one of (text|json|yaml|toml)", cli.FlagDefault("text")),
		cli.Flag(&options.Progress, "progress", 'p', "Show a progress bar while tests run"),
		cli.Flag(&options.Verbose, "verbose", 'v', "Show diffs for failing tests"),
		cli.Flag(&options.NoColor, "no-color", flag.NoShortHand, "Disable coloured output"),
		cli.Flag(&options.Debug, "debug", 'd', "Enable debug logging"),
		cli.Run(func(ctx context.Context, cmd *cli.Command) error {
			app := gild.New(options.Debug, version, cmd.Stdin(), cmd.Stdout(), cmd.Stderr())
			return app.Run(ctx, options)
		}),
	)
}
