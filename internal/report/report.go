// Package report collects the results of every test case in a run and renders
// the final summary.
package report

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

// Status is the state of a single test case.
//
// A case moves Pending -> Running -> one of Passed, Failed or Errored.
type Status int

const (
	Pending Status = iota // Discovered but not started
	Running               // In flight
	Passed                // Ran and everything matched
	Failed                // Ran but at least one comparison failed
	Errored               // The harness could not complete the case
)

// String implements [fmt.Stringer] for a [Status].
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	case Errored:
		return "errored"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// MarshalText implements [encoding.TextMarshaler] for a [Status].
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler] for a [Status].
func (s *Status) UnmarshalText(text []byte) error {
	for status := Pending; status <= Errored; status++ {
		if status.String() == string(text) {
			*s = status
			return nil
		}
	}

	return fmt.Errorf("unknown status %q", text)
}

// Kind tags the reason a test case failed.
type Kind string

const (
	MissingDiagnostic    Kind = "MissingDiagnostic"    // A golden line the analyzer no longer produces
	UnexpectedDiagnostic Kind = "UnexpectedDiagnostic" // Analyzer output with no golden line
	CountMismatch        Kind = "CountMismatch"        // The golden's declared error count disagrees with reality
	MissingMarker        Kind = "MissingMarker"        // An inline marker no diagnostic satisfied
	UnmarkedDiagnostic   Kind = "UnmarkedDiagnostic"   // A diagnostic no inline marker claimed
	FixedMismatch        Kind = "FixedMismatch"        // Fixed source differs from the .fixed file
	MissingFixed         Kind = "MissingFixed"         // Edits were applied but there is no .fixed file
	StaleFixed           Kind = "StaleFixed"           // A .fixed file exists but no edits were applied
	ConflictingEdits     Kind = "ConflictingEdits"     // Suggested edits overlap
	NonConvergentFix     Kind = "NonConvergentFix"     // A lint still fires after its own fix
)

// Failure is a single reason a test case failed.
type Failure struct {
	// Kind is the failure tag.
	Kind Kind `json:"kind" toml:"kind" yaml:"kind"`

	// File is the file the failure concerns e.g. the golden file, may be empty.
	File string `json:"file,omitempty" toml:"file,omitempty" yaml:"file,omitempty"`

	// Message is a one line description.
	Message string `json:"message" toml:"message" yaml:"message"`

	// Detail is optional supporting text, typically a diff.
	Detail string `json:"detail,omitempty" toml:"detail,omitempty" yaml:"detail,omitempty"`
}

// String implements [fmt.Stringer] for a [Failure].
func (f Failure) String() string {
	if f.File == "" {
		return fmt.Sprintf("%s: %s", f.Kind, f.Message)
	}

	return fmt.Sprintf("%s: %s: %s", f.Kind, f.File, f.Message)
}

// Result is the outcome of a single test case.
type Result struct {
	// Err is the error that stopped the case, set only when Status is Errored.
	Err error `json:"-" toml:"-" yaml:"-"`

	// Name is the test's display name, its path relative to the run root.
	Name string `json:"name" toml:"name" yaml:"name"`

	// Error is the text of Err, populated by [Sink.Record].
	Error string `json:"error,omitempty" toml:"error,omitempty" yaml:"error,omitempty"`

	// Failures are the reasons the case failed, in the order they were found.
	Failures []Failure `json:"failures,omitempty" toml:"failures,omitempty" yaml:"failures,omitempty"`

	// Index is the case's position in discovery order.
	Index int `json:"index" toml:"index" yaml:"index"`

	// Status is the final state of the case.
	Status Status `json:"status" toml:"status" yaml:"status"`

	// Blessed is true if goldens were rewritten for this case.
	Blessed bool `json:"blessed,omitempty" toml:"blessed,omitempty" yaml:"blessed,omitempty"`
}

// Sink collects results from concurrently running test cases.
//
// The zero value is ready to use.
type Sink struct {
	results []Result
	mu      sync.Mutex
}

// Record adds a result to the sink, it is safe to call from multiple goroutines.
func (s *Sink) Record(result Result) {
	if result.Err != nil && result.Error == "" {
		result.Error = result.Err.Error()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = append(s.results, result)
}

// Len returns the number of results recorded so far.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.results)
}

// Summary returns a snapshot of every result recorded so far, sorted by
// discovery index.
func (s *Sink) Summary() Summary {
	s.mu.Lock()
	results := slices.Clone(s.results)
	s.mu.Unlock()

	slices.SortStableFunc(results, func(a, b Result) int {
		return cmp.Compare(a.Index, b.Index)
	})

	summary := Summary{Results: results}

	for _, result := range results {
		switch result.Status {
		case Passed:
			summary.Passed++
		case Failed:
			summary.Failed++
		case Errored:
			summary.Errored++
		}

		if result.Blessed {
			summary.Blessed++
		}
	}

	return summary
}

// Summary is the ordered set of results for a whole run.
type Summary struct {
	// Results are every case's result, in discovery order.
	Results []Result `json:"results" toml:"results" yaml:"results"`

	Passed  int `json:"passed"  toml:"passed"  yaml:"passed"`
	Failed  int `json:"failed"  toml:"failed"  yaml:"failed"`
	Errored int `json:"errored" toml:"errored" yaml:"errored"`
	Blessed int `json:"blessed" toml:"blessed" yaml:"blessed"`
}

// OK reports whether every case passed.
func (s Summary) OK() bool {
	return s.Failed == 0 && s.Errored == 0
}

// ExitCode returns the process exit status for the run: 0 if every case passed,
// 2 if any case errored and 1 if any failed.
func (s Summary) ExitCode() int {
	switch {
	case s.Errored > 0:
		return 2
	case s.Failed > 0:
		return 1
	default:
		return 0
	}
}
