package config

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.followtheprocess.codes/gild/internal/analyzer"
	"go.followtheprocess.codes/gild/internal/golden"
	"go.yaml.in/yaml/v4"
)

// Project is the project configuration file, gild.yaml.
//
//	analyzer: ./target/debug/clippy-driver
//	args: ["--crate-type", "lib"]
//	edition: "2021"
//	extension: .rs
//	timeout: 1m
//	jobs: 8
//	column-insensitive: false
//	env:
//	  RUST_BACKTRACE: "0"
//	lints:
//	  clippy::all: warn
//	replacements:
//	  - pattern: 'took \d+ms'
//	    with: took Nms
type Project struct {
	Lints             map[string]string `yaml:"lints,omitempty"`
	Env               map[string]string `yaml:"env,omitempty"`
	Analyzer          string            `yaml:"analyzer,omitempty"`
	Edition           string            `yaml:"edition,omitempty"`
	ErrorFormat       string            `yaml:"error-format,omitempty"`
	Extension         string            `yaml:"extension,omitempty"`
	Args              []string          `yaml:"args,omitempty"`
	Replacements      []Replacement     `yaml:"replacements,omitempty"`
	Timeout           time.Duration     `yaml:"timeout,omitempty"`
	Jobs              int               `yaml:"jobs,omitempty"`
	ColumnInsensitive bool              `yaml:"column-insensitive,omitempty"`

	// dir is the directory containing the file, relative analyzer paths
	// are resolved against it.
	dir string
}

// Replacement is a user defined normalization rule.
type Replacement struct {
	Pattern string `yaml:"pattern"`
	With    string `yaml:"with"`
}

// DecodeProject decodes a project file from r, unknown keys are an error.
func DecodeProject(r io.Reader) (Project, error) {
	var project Project

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	if err := decoder.Decode(&project); err != nil {
		if errors.Is(err, io.EOF) {
			// Empty file
			return Project{}, nil
		}

		return Project{}, fmt.Errorf("could not decode YAML: %w", err)
	}

	return project, nil
}

// LoadProject reads the project file at path.
//
// The returned error wraps [fs.ErrNotExist] if there is no such file.
func LoadProject(path string) (Project, error) {
	f, err := os.Open(path)
	if err != nil {
		return Project{}, fmt.Errorf("could not open project file: %w", err)
	}
	defer f.Close()

	project, err := DecodeProject(f)
	if err != nil {
		return Project{}, fmt.Errorf("%s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return Project{}, fmt.Errorf("could not resolve %s: %w", path, err)
	}

	project.dir = filepath.Dir(abs)

	return project, nil
}

// WithProject returns a copy of s with every field set in the project file applied.
func (s Settings) WithProject(p Project) (Settings, error) {
	s = s.Clone()

	if p.Analyzer != "" {
		s.Analyzer = p.Analyzer

		// A relative path (not a bare name to look up on $PATH) is relative to the project file
		if p.dir != "" && strings.ContainsRune(p.Analyzer, '/') && !filepath.IsAbs(p.Analyzer) {
			s.Analyzer = filepath.Join(p.dir, filepath.FromSlash(p.Analyzer))
		}
	}

	if p.Edition != "" {
		s.Edition = p.Edition
	}

	if p.ErrorFormat != "" {
		s.ErrorFormat = p.ErrorFormat
	}

	if p.Extension != "" {
		s.Extension = p.Extension
	}

	if p.Timeout != 0 {
		s.Timeout = p.Timeout
	}

	if p.Jobs != 0 {
		s.Jobs = p.Jobs
	}

	if p.ColumnInsensitive {
		s.ColumnInsensitive = true
	}

	s.Args = append(s.Args, p.Args...)

	for _, key := range slices.Sorted(maps.Keys(p.Env)) {
		s.Env = append(s.Env, key+"="+p.Env[key])
	}

	lints, err := parseLints(p.Lints)
	if err != nil {
		return Settings{}, err
	}

	if s.Lints == nil && len(lints) > 0 {
		s.Lints = make(map[string]analyzer.Level, len(lints))
	}

	maps.Copy(s.Lints, lints)

	for _, replacement := range p.Replacements {
		parsed, err := golden.ParseReplacement(replacement.Pattern, replacement.With)
		if err != nil {
			return Settings{}, err
		}

		s.Replacements = append(s.Replacements, parsed)
	}

	return s, nil
}
