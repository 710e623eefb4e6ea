package analyzer

import (
	"fmt"
	"strings"
)

// Reason classifies why an analyzer invocation failed.
type Reason int

const (
	ReasonConfig   Reason = iota // The invocation was misconfigured
	ReasonStart                  // The process could not be started
	ReasonTimeout                // The process exceeded its timeout and was killed
	ReasonCanceled               // The run was interrupted and the process was killed
	ReasonCrash                  // The process died from a signal or an unexpected exit status
	ReasonExit                   // The process exit status contradicts its output
	ReasonOutput                 // The process emitted output we could not make sense of
)

// String implements [fmt.Stringer] for a [Reason].
func (r Reason) String() string {
	switch r {
	case ReasonConfig:
		return "config"
	case ReasonStart:
		return "start"
	case ReasonTimeout:
		return "timeout"
	case ReasonCanceled:
		return "canceled"
	case ReasonCrash:
		return "crash"
	case ReasonExit:
		return "exit"
	case ReasonOutput:
		return "output"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// InvocationError is returned when the analyzer could not be run to completion, or
// its behaviour means its output cannot be trusted.
//
// Invocation errors are never retried, the analyzer is deterministic given identical
// inputs so a retry could only hide flakiness.
type InvocationError struct {
	Err      error  // Underlying cause
	Binary   string // The analyzer binary
	Path     string // The file being analyzed
	Stderr   string // The tail of the analyzer's stderr, for context
	Reason   Reason // Classification of the failure
	ExitCode int    // Exit status, -1 if the process never exited normally
}

// Error implements the error interface for [InvocationError].
func (e *InvocationError) Error() string {
	builder := &strings.Builder{}

	fmt.Fprintf(builder, "analyzer invocation failed (%s) on %s: %v", e.Reason, e.Path, e.Err)

	if e.Stderr != "" {
		builder.WriteString("\n--- stderr ---\n")
		builder.WriteString(e.Stderr)
	}

	return builder.String()
}

// Unwrap returns the underlying cause.
func (e *InvocationError) Unwrap() error {
	return e.Err
}
