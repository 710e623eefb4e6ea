package harness

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/moby/patternmatcher"
)

// Extensions of the files that live alongside a test source.
const (
	ExtStderr = ".stderr"
	ExtStdout = ".stdout"
	ExtFixed  = ".fixed"
	ExtConfig = ".toml"
)

// ErrNoTests is returned from [Discover] when nothing matched.
var ErrNoTests = errors.New("no tests found")

// Case is a single test: a source file and the expectation files next to it.
type Case struct {
	// Name is the test's display name: its path relative to the discovery
	// root, with forward slashes.
	Name string

	// Path is the test source file.
	Path string

	// StderrPath is the expected stderr transcript, which may not exist.
	StderrPath string

	// StdoutPath is the expected stdout transcript, which may not exist.
	StdoutPath string

	// FixedPath is the expected source after applying suggestions, which may not exist.
	FixedPath string

	// ConfigPath is the per test configuration file, which may not exist.
	ConfigPath string

	// Index is the case's position in discovery order.
	Index int
}

// NewCase returns the [Case] for the source file at path.
func NewCase(index int, name, path string) Case {
	stem := strings.TrimSuffix(path, filepath.Ext(path))

	return Case{
		Index:      index,
		Name:       name,
		Path:       path,
		StderrPath: stem + ExtStderr,
		StdoutPath: stem + ExtStdout,
		FixedPath:  stem + ExtFixed,
		ConfigPath: stem + ExtConfig,
	}
}

// DiscoverOptions configure test discovery.
type DiscoverOptions struct {
	// Extension is the test source extension, including the dot.
	Extension string

	// Globs, if non-empty, restrict discovered tests to those whose path relative
	// to the root matches at least one pattern. Patterns use .gitignore style
	// syntax so "**" matches any number of directories and a leading "!" excludes.
	Globs []string
}

// Discover returns the test cases named by root, which may be a single test file,
// a directory (walked recursively for files with the configured extension) or a
// glob pattern.
//
// Cases are sorted by name, which fixes their index, and deduplicated.
func Discover(root string, options DiscoverOptions) ([]Case, error) {
	var matcher *patternmatcher.PatternMatcher

	if len(options.Globs) > 0 {
		var err error

		matcher, err = patternmatcher.New(options.Globs)
		if err != nil {
			return nil, fmt.Errorf("invalid glob: %w", err)
		}
	}

	base, paths, err := candidates(root, options.Extension)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(paths)) // name => path

	for _, path := range paths {
		name, err := filepath.Rel(base, path)
		if err != nil || strings.HasPrefix(name, "..") {
			name = path
		}

		if matcher != nil {
			ok, err := matcher.MatchesOrParentMatches(name)
			if err != nil {
				return nil, fmt.Errorf("could not match %s: %w", name, err)
			}

			if !ok {
				continue
			}
		}

		name = filepath.ToSlash(name)

		if _, ok := names[name]; ok {
			continue
		}

		names[name] = path
	}

	if len(names) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoTests, root)
	}

	sorted := slices.Sorted(maps.Keys(names))

	cases := make([]Case, 0, len(sorted))
	for i, name := range sorted {
		cases = append(cases, NewCase(i, name, names[name]))
	}

	return cases, nil
}

// candidates returns the base directory test names are relative to and every
// test source path under root.
func candidates(root, ext string) (string, []string, error) {
	info, err := os.Stat(root)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) || !isGlob(root) {
			return "", nil, fmt.Errorf("could not get path info: %w", err)
		}

		// Not a path, try it as a glob
		paths, err := filepath.Glob(root)
		if err != nil {
			return "", nil, fmt.Errorf("invalid glob %q: %w", root, err)
		}

		var files []string

		for _, path := range paths {
			if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() && filepath.Ext(path) == ext {
				files = append(files, path)
			}
		}

		return globBase(root), files, nil
	}

	if !info.IsDir() {
		return filepath.Dir(root), []string{root}, nil
	}

	var paths []string

	for path, err := range AllFilesWithExtension(root, ext) {
		if err != nil {
			return "", nil, fmt.Errorf("could not walk %s: %w", root, err)
		}

		paths = append(paths, path)
	}

	return root, paths, nil
}

// AllFilesWithExtension returns an iterator over all filepaths under
// root with the matching extension, recursively.
//
// A call to AllFilesWithExtension like this:
//
//	for file, err := range AllFilesWithExtension(".", ".rs") {
//	    // Loop body
//	}
//
// Is roughly equivalent to the following in bash:
//
//	for file in **/*.rs; do { # stuff }; done
func AllFilesWithExtension(root, ext string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		stopped := false

		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}

			if d.Type().IsRegular() && filepath.Ext(d.Name()) == ext {
				if !yield(path, nil) {
					stopped = true
					return fs.SkipAll
				}
			}

			return nil
		})
		if err != nil && !stopped {
			yield("", err)
		}
	}
}

// isGlob reports whether pattern contains any glob metacharacters.
func isGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}

// globBase returns the longest leading directory of pattern with no glob
// metacharacters.
func globBase(pattern string) string {
	dir := filepath.Dir(pattern)
	for isGlob(dir) {
		dir = filepath.Dir(dir)
	}

	return dir
}
