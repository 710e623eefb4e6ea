package analyzer

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// DefaultErrorFormat is the argument asking the analyzer for one JSON diagnostic per line.
const DefaultErrorFormat = "--error-format=json"

// Level is a lint level override.
type Level string

const (
	Allow  Level = "allow"
	Warn   Level = "warn"
	Deny   Level = "deny"
	Forbid Level = "forbid"
)

// flag returns the command line flag the analyzer uses for the level.
func (l Level) flag() (string, error) {
	switch l {
	case Allow:
		return "-A", nil
	case Warn:
		return "-W", nil
	case Deny:
		return "-D", nil
	case Forbid:
		return "-F", nil
	default:
		return "", fmt.Errorf("unknown lint level %q, expected one of allow, warn, deny, forbid", string(l))
	}
}

// ParseLevel parses a lint level from its configuration spelling.
func ParseLevel(s string) (Level, error) {
	level := Level(strings.ToLower(strings.TrimSpace(s)))
	if _, err := level.flag(); err != nil {
		return "", err
	}

	return level, nil
}

// Config is the complete configuration of a single analyzer invocation.
//
// A Config is built fresh for every invocation and is never shared or mutated
// after being passed to [Invoker.Invoke], so concurrent invocations are isolated
// from one another.
type Config struct {
	// Lints maps lint names to level overrides e.g. "clippy::todo" => Deny.
	Lints map[string]Level

	// Env holds additional environment variables in "KEY=value" form, appended
	// to the harness's own environment.
	Env []string

	// Binary is the absolute path to the analyzer executable.
	Binary string

	// Edition is passed as --edition=<Edition> if non-empty.
	Edition string

	// ErrorFormat is the argument selecting machine readable output, if empty
	// [DefaultErrorFormat] is used. Set to "-" to pass nothing.
	ErrorFormat string

	// Dir is the working directory for the analyzer process.
	Dir string

	// Args are passed to the analyzer before everything else.
	Args []string

	// Timeout bounds the whole invocation, zero means no timeout beyond
	// that of the context passed to Invoke.
	Timeout time.Duration
}

// Validate reports whether the Config is usable, returning an error if it's not.
func (c Config) Validate() error {
	switch {
	case c.Binary == "":
		return errors.New("no analyzer binary configured")
	case c.Timeout < 0:
		return fmt.Errorf("timeout cannot be negative, got %s", c.Timeout)
	}

	for name, level := range c.Lints {
		if name == "" {
			return errors.New("lint override with empty name")
		}

		if _, err := level.flag(); err != nil {
			return fmt.Errorf("lint %s: %w", name, err)
		}
	}

	return nil
}

// Argv builds the analyzer's argument list (excluding the binary itself)
// for checking path.
//
// The order is: Args, edition, lint overrides sorted by lint name, error
// format and finally the path.
func (c Config) Argv(path string) ([]string, error) {
	argv := slices.Clone(c.Args)

	if c.Edition != "" {
		argv = append(argv, "--edition="+c.Edition)
	}

	for _, name := range slices.Sorted(maps.Keys(c.Lints)) {
		flag, err := c.Lints[name].flag()
		if err != nil {
			return nil, fmt.Errorf("lint %s: %w", name, err)
		}

		argv = append(argv, flag, name)
	}

	switch c.ErrorFormat {
	case "":
		argv = append(argv, DefaultErrorFormat)
	case "-":
		// Explicitly nothing
	default:
		argv = append(argv, c.ErrorFormat)
	}

	return append(argv, path), nil
}
