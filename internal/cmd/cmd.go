// Package cmd implements gild's CLI.
package cmd

import (
	"context"
	"errors"
	"io"

	"go.followtheprocess.codes/cli"
	"go.followtheprocess.codes/gild/internal/gild"
	"go.followtheprocess.codes/msg"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

// Exit statuses.
const (
	exitOK    = 0 // Every test passed
	exitError = 2 // The harness itself failed e.g. bad flags or no analyzer
)

// Build builds and returns the gild CLI.
func Build() (*cli.Command, error) {
	return cli.New(
		"gild",
		cli.Short("Golden output UI tests for lint tools"),
		cli.Version(version),
		cli.Commit(commit),
		cli.BuildDate(date),
		cli.Example("Run every test under ./tests/ui", "gild run ./tests/ui"),
		cli.Example("Run a subset of tests with 8 workers", "gild run ./tests/ui --glob 'format/**' --jobs 8"),
		cli.Example("Update the golden files to match the analyzer's output", "gild run ./tests/ui --bless"),
		cli.Example("Export the results as JSON", "gild run ./tests/ui --format json"),
		cli.Example("Check test markers and configuration without running anything", "gild check ./tests/ui"),
		cli.SubCommands(run, check),
	)
}

// Execute builds and runs the CLI and returns the process exit status: 0 if
// every test passed, 1 if any failed and 2 if any errored or the harness
// itself could not run.
func Execute(ctx context.Context, stderr io.Writer) int {
	cmd, err := Build()
	if err != nil {
		msg.Ferror(stderr, "%v", err)
		return exitError
	}

	if err := cmd.Execute(ctx); err != nil {
		var exitErr gild.ExitError
		if errors.As(err, &exitErr) {
			// The summary already says what went wrong
			return exitErr.Code
		}

		msg.Ferror(stderr, "%v", err)

		return exitError
	}

	return exitOK
}
