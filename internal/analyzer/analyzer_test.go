package analyzer_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"go.followtheprocess.codes/gild/internal/analyzer"
	"go.followtheprocess.codes/gild/internal/diag"
	"go.followtheprocess.codes/gild/internal/gildtest"
	"go.followtheprocess.codes/log"
	"go.followtheprocess.codes/test"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	gildtest.MainIfFakeLint()
	os.Exit(m.Run())
}

// fakeConfig returns an analyzer config that re-executes the test binary as the
// fake analyzer.
func fakeConfig(t *testing.T) analyzer.Config {
	t.Helper()

	self, err := os.Executable()
	test.Ok(t, err)

	return analyzer.Config{
		Binary:  self,
		Env:     gildtest.FakeLintEnv(),
		Timeout: 30 * time.Second,
	}
}

func writeSource(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "main.rs")
	test.Ok(t, os.WriteFile(path, []byte(contents), 0o644))

	return path
}

func newInvoker() analyzer.Invoker {
	return analyzer.New(log.New(io.Discard))
}

func TestInvokeJSON(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := "fn main() {\n    println!(\"val='{}'\", var);\n    todo!();\n}\n"
	path := writeSource(t, src)

	config := fakeConfig(t)
	config.Args = []string{"--stdout-note"}

	output, err := newInvoker().Invoke(t.Context(), config, path)
	test.Ok(t, err)

	test.Equal(t, output.ExitCode, 1)
	test.Equal(t, len(output.Diagnostics), 2)
	test.Equal(t, output.Errors(), 1)
	test.Equal(t, output.Stdout, "checked "+path+"\n")

	for _, diagnostic := range output.Diagnostics {
		test.Equal(t, diagnostic.Stream, diag.Stderr)
	}

	// The rendered transcript rebuilt from JSON must be exactly what the
	// analyzer prints in human mode
	human := &bytes.Buffer{}
	gildtest.FakeLint([]string{path}, io.Discard, human)

	test.Diff(t, output.Stderr, human.String())
}

func TestInvokeLintOverrides(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := writeSource(t, "fn main() { todo!(); }\n")

	config := fakeConfig(t)
	config.Lints = map[string]analyzer.Level{gildtest.LintTodo: analyzer.Allow}

	output, err := newInvoker().Invoke(t.Context(), config, path)
	test.Ok(t, err)

	test.Equal(t, output.ExitCode, 0)
	test.Equal(t, len(output.Diagnostics), 0)
	test.Equal(t, output.Stderr, "")
}

func TestInvokeErrors(t *testing.T) {
	tests := []struct {
		name   string                                            // Name of the test case
		src    string                                            // Source file contents
		mutate func(config *analyzer.Config)                     // Change the config before invoking
		check  func(t *testing.T, err *analyzer.InvocationError) // Extra assertions
		reason analyzer.Reason                                   // Expected failure reason
	}{
		{
			name:   "crash",
			src:    "// " + gildtest.DirectiveCrash + "\n",
			reason: analyzer.ReasonCrash,
			check: func(t *testing.T, err *analyzer.InvocationError) {
				test.Equal(t, err.ExitCode, 101)
				test.True(t, strings.Contains(err.Stderr, "panicked"), test.Context("stderr tail missing: %q", err.Stderr))
			},
		},
		{
			name: "timeout",
			src:  "// " + gildtest.DirectiveHang + "\n",
			mutate: func(config *analyzer.Config) {
				config.Timeout = 200 * time.Millisecond
			},
			reason: analyzer.ReasonTimeout,
		},
		{
			name:   "exit 1 without errors",
			src:    "// " + gildtest.DirectiveFail + "\n",
			reason: analyzer.ReasonExit,
			check: func(t *testing.T, err *analyzer.InvocationError) {
				test.Equal(t, err.ExitCode, 1)
				test.True(t, strings.Contains(err.Stderr, "something broke"), test.Context("stderr tail missing: %q", err.Stderr))
			},
		},
		{
			name:   "garbage output",
			src:    "// " + gildtest.DirectiveGarbage + "\n",
			reason: analyzer.ReasonOutput,
		},
		{
			name: "missing binary",
			src:  "fn main() {}\n",
			mutate: func(config *analyzer.Config) {
				config.Binary = filepath.Join(t.TempDir(), "not-here")
			},
			reason: analyzer.ReasonStart,
		},
		{
			name: "bad lint level",
			src:  "fn main() {}\n",
			mutate: func(config *analyzer.Config) {
				config.Lints = map[string]analyzer.Level{"fake::todo": "shout"}
			},
			reason: analyzer.ReasonConfig,
		},
		{
			name: "usage error",
			src:  "fn main() {}\n",
			mutate: func(config *analyzer.Config) {
				config.Args = []string{"--nope"}
			},
			reason: analyzer.ReasonCrash,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer goleak.VerifyNone(t)

			path := writeSource(t, tt.src)

			config := fakeConfig(t)
			if tt.mutate != nil {
				tt.mutate(&config)
			}

			_, err := newInvoker().Invoke(t.Context(), config, path)
			test.Err(t, err)

			var invocationErr *analyzer.InvocationError
			test.True(t, errors.As(err, &invocationErr), test.Context("error was not an *InvocationError: %T", err))
			test.Equal(t, invocationErr.Reason, tt.reason, test.Context("got %s, wanted %s", invocationErr.Reason, tt.reason))

			if tt.check != nil {
				tt.check(t, invocationErr)
			}
		})
	}
}

func TestInvokeCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := writeSource(t, "// "+gildtest.DirectiveHang+"\n")

	ctx, cancel := context.WithCancel(t.Context())
	time.AfterFunc(200*time.Millisecond, cancel)

	start := time.Now()
	_, err := newInvoker().Invoke(ctx, fakeConfig(t), path)
	test.Err(t, err)

	var invocationErr *analyzer.InvocationError
	test.True(t, errors.As(err, &invocationErr))
	test.Equal(t, invocationErr.Reason, analyzer.ReasonCanceled)

	// The hang is an hour long, if we got here quickly the process was killed
	test.True(t, time.Since(start) < 20*time.Second, test.Context("Invoke took %s after cancellation", time.Since(start)))
}

func TestArgv(t *testing.T) {
	tests := []struct {
		name    string          // Name of the test case
		config  analyzer.Config // Config under test
		want    []string        // Expected argv
		wantErr bool            // Whether we want an error
	}{
		{
			name:   "defaults",
			config: analyzer.Config{Binary: "lint"},
			want:   []string{"--error-format=json", "main.rs"},
		},
		{
			name: "everything",
			config: analyzer.Config{
				Binary:      "lint",
				Args:        []string{"--cfg", "test"},
				Edition:     "2021",
				ErrorFormat: "--message-format=json",
				Lints: map[string]analyzer.Level{
					"clippy::todo":   analyzer.Deny,
					"clippy::all":    analyzer.Warn,
					"clippy::pedant": analyzer.Allow,
					"unsafe_code":    analyzer.Forbid,
				},
			},
			want: []string{
				"--cfg", "test",
				"--edition=2021",
				"-W", "clippy::all",
				"-A", "clippy::pedant",
				"-D", "clippy::todo",
				"-F", "unsafe_code",
				"--message-format=json",
				"main.rs",
			},
		},
		{
			name:   "no error format",
			config: analyzer.Config{Binary: "lint", ErrorFormat: "-"},
			want:   []string{"main.rs"},
		},
		{
			name:    "bad level",
			config:  analyzer.Config{Binary: "lint", Lints: map[string]analyzer.Level{"x": "loud"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.config.Argv("main.rs")
			test.WantErr(t, err, tt.wantErr)
			test.EqualFunc(t, got, tt.want, slices.Equal)
		})
	}
}

func TestParseLevel(t *testing.T) {
	level, err := analyzer.ParseLevel(" Deny ")
	test.Ok(t, err)
	test.Equal(t, level, analyzer.Deny)

	_, err = analyzer.ParseLevel("loud")
	test.Err(t, err)
}

func TestConfigValidate(t *testing.T) {
	test.Err(t, analyzer.Config{}.Validate())
	test.Err(t, analyzer.Config{Binary: "lint", Timeout: -time.Second}.Validate())
	test.Err(t, analyzer.Config{Binary: "lint", Lints: map[string]analyzer.Level{"": analyzer.Warn}}.Validate())
	test.Ok(t, analyzer.Config{Binary: "lint", Lints: map[string]analyzer.Level{"x": analyzer.Warn}}.Validate())
}
