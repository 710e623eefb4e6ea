package config

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"strings"

	"github.com/BurntSushi/toml"
	"go.followtheprocess.codes/gild/internal/analyzer"
)

// Test is the optional per test configuration file, a TOML file named after the
// test source e.g. ui/format.toml for ui/format.rs.
//
//	edition = "2018"
//	args = ["--cfg", "feature=\"nightly\""]
//	column-insensitive = true
//
//	[lints]
//	"clippy::uninlined_format_args" = "deny"
type Test struct {
	Lints             map[string]string `toml:"lints"`
	Edition           string            `toml:"edition"`
	Args              []string          `toml:"args"`
	ColumnInsensitive bool              `toml:"column-insensitive"`
}

// LoadTest reads the per test configuration at path.
//
// A missing file is not an error and yields the zero [Test], unknown keys are.
func LoadTest(path string) (Test, error) {
	var test Test

	meta, err := toml.DecodeFile(path, &test)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Test{}, nil
		}

		return Test{}, fmt.Errorf("could not decode %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}

		return Test{}, fmt.Errorf("%s: unknown key(s): %s", path, strings.Join(keys, ", "))
	}

	return test, nil
}

// WithTest returns a copy of s with the per test configuration applied.
//
// The edition is replaced, args are appended to the project's and lint levels are
// merged with the test's winning.
func (s Settings) WithTest(t Test) (Settings, error) {
	s = s.Clone()

	if t.Edition != "" {
		s.Edition = t.Edition
	}

	if t.ColumnInsensitive {
		s.ColumnInsensitive = true
	}

	s.Args = append(s.Args, t.Args...)

	lints, err := parseLints(t.Lints)
	if err != nil {
		return Settings{}, err
	}

	if s.Lints == nil && len(lints) > 0 {
		s.Lints = make(map[string]analyzer.Level, len(lints))
	}

	maps.Copy(s.Lints, lints)

	return s, nil
}
