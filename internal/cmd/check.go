package cmd

import (
	"context"

	"go.followtheprocess.codes/cli"
	"go.followtheprocess.codes/gild/internal/config"
	"go.followtheprocess.codes/gild/internal/gild"
)

const checkLong = `
The path argument may be a test source file, a directory or a glob.

Every test found has its inline markers parsed and its per test configuration
file (if any) validated, the analyzer is not run.
`

// check returns the check subcommand.
func check() (*cli.Command, error) {
	var options gild.CheckOptions

	return cli.New(
		"check",
		cli.Short("Check test markers and configuration for errors"),
		cli.Long(checkLong),
		cli.Arg(&options.Path, "path", "Path to check, may be a file, directory or glob", cli.ArgDefault(".")),
		cli.Flag(&options.Globs, "glob", 'g', "Only check tests whose path matches (may be repeated)"),
		cli.Flag(&options.Config, "config", 'c', "Path to the project config file (default ./"+config.DefaultProjectFile+" if present)"),
		cli.Flag(&options.Debug, "debug", 'd', "Enable debug logging"),
		cli.Run(func(ctx context.Context, cmd *cli.Command) error {
			app := gild.New(options.Debug, version, cmd.Stdin(), cmd.Stdout(), cmd.Stderr())
			return app.Check(ctx, options)
		}),
	)
}
