// Package config implements loading and merging of harness configuration.
//
// Configuration comes from four places, later ones taking precedence: built in
// defaults, the project file (gild.yaml), a per test file (<test>.toml next to the
// test source) and command line flags.
package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"go.followtheprocess.codes/gild/internal/analyzer"
	"go.followtheprocess.codes/gild/internal/golden"
)

// EnvAnalyzer is the environment variable naming the analyzer when neither a flag
// nor the project file does.
const EnvAnalyzer = "GILD_ANALYZER"

// Defaults.
const (
	// DefaultProjectFile is the name of the project configuration file.
	DefaultProjectFile = "gild.yaml"

	// DefaultExtension is the extension of test source files.
	DefaultExtension = ".rs"

	// DefaultTimeout bounds a single analyzer invocation.
	DefaultTimeout = 30 * time.Second
)

// Settings is the fully resolved configuration for a run, or a single test case
// once its per test file has been applied.
type Settings struct {
	// Lints are the lint level overrides.
	Lints map[string]analyzer.Level

	// Analyzer is the analyzer executable, a name to look up on $PATH or a path.
	Analyzer string

	// Edition is passed to the analyzer as --edition if set.
	Edition string

	// ErrorFormat overrides the argument selecting JSON output.
	ErrorFormat string

	// Extension is the file extension of test sources, including the dot.
	Extension string

	// Args are extra analyzer arguments.
	Args []string

	// Env are extra environment variables for the analyzer in KEY=value form.
	Env []string

	// Replacements are extra normalization rules applied to transcripts.
	Replacements []golden.Replacement

	// Timeout bounds each analyzer invocation.
	Timeout time.Duration

	// Jobs is the number of test cases run concurrently.
	Jobs int

	// ColumnInsensitive replaces line and column numbers in transcripts.
	ColumnInsensitive bool
}

// DefaultJobs is the default number of test cases run concurrently.
func DefaultJobs() int {
	return runtime.NumCPU()
}

// Defaults returns the built in [Settings].
func Defaults() Settings {
	return Settings{
		Extension: DefaultExtension,
		Timeout:   DefaultTimeout,
		Jobs:      DefaultJobs(),
	}
}

// Clone returns a deep copy of the settings, so per test changes never leak
// between test cases.
func (s Settings) Clone() Settings {
	s.Lints = maps.Clone(s.Lints)
	s.Args = slices.Clone(s.Args)
	s.Env = slices.Clone(s.Env)
	s.Replacements = slices.Clone(s.Replacements)

	return s
}

// Validate reports whether the settings are usable, returning an error if not.
func (s Settings) Validate() error {
	switch {
	case s.Jobs < 1:
		return fmt.Errorf("jobs must be at least 1, got %d", s.Jobs)
	case s.Timeout <= 0:
		return fmt.Errorf("timeout must be positive, got %s", s.Timeout)
	case s.Extension == "" || !strings.HasPrefix(s.Extension, "."):
		return fmt.Errorf("extension must start with a '.', got %q", s.Extension)
	default:
		return nil
	}
}

// Overrides are the settings that may be given on the command line, a zero
// field means "not given".
type Overrides struct {
	Analyzer          string
	Extension         string
	Timeout           time.Duration
	Jobs              int
	ColumnInsensitive bool
}

// WithOverrides returns a copy of s with every non-zero override applied.
func (s Settings) WithOverrides(o Overrides) Settings {
	s = s.Clone()

	if o.Analyzer != "" {
		s.Analyzer = o.Analyzer
	}

	if o.Extension != "" {
		s.Extension = o.Extension
	}

	if o.Timeout != 0 {
		s.Timeout = o.Timeout
	}

	if o.Jobs != 0 {
		s.Jobs = o.Jobs
	}

	if o.ColumnInsensitive {
		s.ColumnInsensitive = true
	}

	return s
}

// ResolveAnalyzer returns the absolute path of the configured analyzer, falling
// back to $GILD_ANALYZER when none is configured.
func (s Settings) ResolveAnalyzer() (string, error) {
	name := s.Analyzer
	if name == "" {
		name = os.Getenv(EnvAnalyzer)
	}

	if name == "" {
		return "", fmt.Errorf("no analyzer configured, pass --analyzer, set analyzer in %s or set $%s", DefaultProjectFile, EnvAnalyzer)
	}

	path, err := exec.LookPath(name)
	if err != nil {
		if errors.Is(err, exec.ErrDot) {
			path, err = filepath.Abs(name)
		}

		if err != nil {
			return "", fmt.Errorf("analyzer %q not found: %w", name, err)
		}
	}

	return filepath.Abs(path)
}

// Invocation builds the [analyzer.Config] for a single invocation of binary in dir.
func (s Settings) Invocation(binary, dir string) analyzer.Config {
	return analyzer.Config{
		Binary:      binary,
		Args:        slices.Clone(s.Args),
		Edition:     s.Edition,
		Lints:       maps.Clone(s.Lints),
		ErrorFormat: s.ErrorFormat,
		Env:         slices.Clone(s.Env),
		Dir:         dir,
		Timeout:     s.Timeout,
	}
}

// Normalizer builds the transcript [golden.Normalizer] for a test running in dir.
func (s Settings) Normalizer(dir string) golden.Normalizer {
	normalizer := golden.NewNormalizer(dir)
	normalizer.ColumnInsensitive = s.ColumnInsensitive
	normalizer.Replacements = slices.Clone(s.Replacements)

	return normalizer
}

// parseLints validates a lint name -> level mapping from a configuration file.
func parseLints(lints map[string]string) (map[string]analyzer.Level, error) {
	if len(lints) == 0 {
		return nil, nil
	}

	parsed := make(map[string]analyzer.Level, len(lints))

	for _, name := range slices.Sorted(maps.Keys(lints)) {
		level, err := analyzer.ParseLevel(lints[name])
		if err != nil {
			return nil, fmt.Errorf("lint %s: %w", name, err)
		}

		parsed[name] = level
	}

	return parsed, nil
}
