// Package gild implements the functionality of the program, the CLI in package cmd is simply the
// entrypoint to exported functions and methods in this package.
package gild

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"go.followtheprocess.codes/log"
)

// Gild represents the gild program.
type Gild struct {
	stdin   io.Reader   // Interactive input (the bless confirmation) is read from here
	stdout  io.Writer   // Normal program output is written here
	stderr  io.Writer   // Logs, errors and progress are written here
	logger  *log.Logger // The logger for the application
	version string      // The gild version
}

// New returns a new [Gild].
func New(debug bool, version string, stdin io.Reader, stdout, stderr io.Writer) Gild {
	level := log.LevelInfo
	if debug {
		level = log.LevelDebug
	}

	logger := log.New(stderr, log.WithLevel(level))

	return Gild{
		stdin:   stdin,
		stdout:  stdout,
		stderr:  stderr,
		logger:  logger,
		version: version,
	}
}

// ExitError is returned when a run completed but not every test passed, the
// summary has already been written so the caller need only exit with Code.
type ExitError struct {
	Code    int // The process exit status
	Failed  int // Number of failed tests
	Errored int // Number of tests the harness could not complete
}

// Error implements the error interface for [ExitError].
func (e ExitError) Error() string {
	return fmt.Sprintf("%d test(s) failed, %d errored", e.Failed, e.Errored)
}

// isTerminal reports whether v is a file connected to a terminal.
func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// colorEnabled reports whether output written to w should be coloured.
func colorEnabled(w io.Writer, noColor bool) bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}

	return isTerminal(w)
}
