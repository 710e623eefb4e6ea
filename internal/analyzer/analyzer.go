// Package analyzer implements invocation of the external analysis engine under test.
//
// The analyzer is always run as a subprocess, one per invocation, so that concurrent
// test cases never share analyzer state. Its stdout and stderr are captured separately,
// every line that decodes as a JSON diagnostic becomes a [diag.Diagnostic] tagged
// with the stream it came from and contributes its rendered text to that stream's
// transcript, every other line is kept verbatim.
package analyzer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.followtheprocess.codes/gild/internal/diag"
	"go.followtheprocess.codes/log"
)

const (
	// waitDelay is how long we wait for the process's output pipes to close
	// after it has been killed before giving up on them.
	waitDelay = 2 * time.Second

	// maxLineSize is the largest single line of analyzer output we'll accept.
	maxLineSize = 16 * 1024 * 1024

	// tailLines is the number of lines of stderr kept on an [InvocationError].
	tailLines = 20
)

// Output is everything captured from a single analyzer run.
type Output struct {
	// Stderr is the rendered stderr transcript, as it would have been printed
	// had the analyzer been asked for human readable output.
	Stderr string

	// Stdout is the rendered stdout transcript.
	Stdout string

	// Diagnostics are the structured diagnostics from both streams, in the
	// order they were emitted (stderr first, then stdout).
	Diagnostics []diag.Diagnostic

	// ExitCode is the analyzer's exit status.
	ExitCode int

	// Duration is the wall clock time taken.
	Duration time.Duration
}

// Errors returns the number of error level diagnostics in the output.
func (o Output) Errors() int {
	return diag.CountErrors(o.Diagnostics)
}

// Invoker runs the analyzer.
type Invoker struct {
	logger *log.Logger
}

// New returns a new [Invoker] that logs to logger.
func New(logger *log.Logger) Invoker {
	return Invoker{logger: logger}
}

// Invoke runs the analyzer described by config against the file at path.
//
// The returned error, if any, is always an [*InvocationError]. Invoke does not return
// until the analyzer process (and any processes it started) have exited, including
// when ctx is cancelled or the configured timeout expires.
func (i Invoker) Invoke(ctx context.Context, config Config, path string) (Output, error) {
	if err := config.Validate(); err != nil {
		return Output{}, &InvocationError{Reason: ReasonConfig, Path: path, Err: err}
	}

	argv, err := config.Argv(path)
	if err != nil {
		return Output{}, &InvocationError{Reason: ReasonConfig, Path: path, Err: err}
	}

	if config.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	logger := i.logger.With(slog.String("path", path))
	logger.Debug("Invoking analyzer", slog.String("binary", config.Binary), slog.Any("args", argv))

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	cmd := exec.CommandContext(ctx, config.Binary, argv...)
	cmd.Dir = config.Dir
	cmd.Env = append(os.Environ(), config.Env...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	killProcessGroupOnCancel(cmd)

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	newErr := func(reason Reason, err error) *InvocationError {
		return &InvocationError{
			Reason:   reason,
			Binary:   config.Binary,
			Path:     path,
			ExitCode: cmd.ProcessState.ExitCode(),
			Stderr:   tail(stderr.String(), tailLines),
			Err:      err,
		}
	}

	// Context errors take priority, a killed process will also have an ExitError
	switch ctxErr := ctx.Err(); {
	case errors.Is(ctxErr, context.DeadlineExceeded):
		return Output{}, newErr(ReasonTimeout, fmt.Errorf("analyzer did not finish within %s", config.Timeout))
	case errors.Is(ctxErr, context.Canceled):
		return Output{}, newErr(ReasonCanceled, ctxErr)
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return Output{}, newErr(ReasonStart, runErr)
		}

		if !exitErr.Exited() {
			// Killed by a signal
			return Output{}, newErr(ReasonCrash, runErr)
		}
	}

	output := Output{
		ExitCode: cmd.ProcessState.ExitCode(),
		Duration: duration,
	}

	var stderrDiags, stdoutDiags []diag.Diagnostic

	output.Stderr, stderrDiags, err = decodeStream(stderr.Bytes(), diag.Stderr)
	if err != nil {
		return Output{}, newErr(ReasonOutput, err)
	}

	output.Stdout, stdoutDiags, err = decodeStream(stdout.Bytes(), diag.Stdout)
	if err != nil {
		return Output{}, newErr(ReasonOutput, err)
	}

	output.Diagnostics = append(stderrDiags, stdoutDiags...)

	logger.Debug(
		"Analyzer finished",
		slog.Int("exit", output.ExitCode),
		slog.Int("diagnostics", len(output.Diagnostics)),
		slog.Duration("took", duration),
	)

	switch output.ExitCode {
	case 0:
		return output, nil
	case 1:
		// Exit 1 means "I reported errors", without an error diagnostic to show for
		// it something else went wrong
		if output.Errors() == 0 {
			return Output{}, newErr(ReasonExit, errors.New("analyzer exited with status 1 but reported no errors"))
		}

		return output, nil
	default:
		return Output{}, newErr(ReasonCrash, fmt.Errorf("analyzer exited with unexpected status %d", output.ExitCode))
	}
}

// decodeStream splits raw output into lines, decoding each line as a JSON diagnostic
// where possible and building up the rendered transcript.
func decodeStream(raw []byte, stream diag.Stream) (string, []diag.Diagnostic, error) {
	var (
		diagnostics []diag.Diagnostic
		rendered    strings.Builder
	)

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()

		decoded, err := diag.DecodeLine(line, stream)
		if errors.Is(err, diag.ErrNotDiagnostic) {
			rendered.Write(line)
			rendered.WriteByte('\n')

			continue
		}

		if err != nil {
			return "", nil, fmt.Errorf("malformed diagnostic on %s: %w", stream, err)
		}

		rendered.WriteString(decoded.Rendered)

		if !decoded.Summary {
			diagnostics = append(diagnostics, decoded.Diagnostic)
		}
	}

	if err := scanner.Err(); err != nil {
		return "", nil, fmt.Errorf("could not read %s: %w", stream, err)
	}

	return rendered.String(), diagnostics, nil
}

// tail returns the last n lines of s.
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}

	return strings.Join(lines, "\n")
}
