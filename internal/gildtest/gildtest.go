// Package gildtest provides test utilities for the harness, most notably a fake,
// deterministic analyzer that speaks the same protocol as the real thing.
package gildtest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rogpeppe/go-internal/txtar"
)

// EnvFakeLint is the environment variable that, when set to "1", makes a test binary
// calling [MainIfFakeLint] from its TestMain behave as the fake analyzer.
const EnvFakeLint = "GILD_TEST_FAKELINT"

// MainIfFakeLint checks whether the current process was started as the fake analyzer
// and if so runs it and exits, it must be called first thing in TestMain.
//
// This lets tests use their own binary (os.Args[0]) as the analyzer:
//
//	func TestMain(m *testing.M) {
//	    gildtest.MainIfFakeLint()
//	    os.Exit(m.Run())
//	}
func MainIfFakeLint() {
	if os.Getenv(EnvFakeLint) != "1" {
		return
	}

	os.Exit(FakeLint(os.Args[1:], os.Stdout, os.Stderr)) //nolint:revive // This is the whole point
}

// FakeLintEnv returns the environment needed for a re-executed test binary to act
// as the fake analyzer.
func FakeLintEnv() []string {
	return []string{EnvFakeLint + "=1"}
}

// Extract writes every file in the txtar archive at path into a fresh temporary
// directory and returns that directory.
func Extract(tb testing.TB, path string) string {
	tb.Helper()

	archive, err := txtar.ParseFile(path)
	if err != nil {
		tb.Fatalf("could not parse txtar archive %s: %v", path, err)
	}

	dir := tb.TempDir()

	for _, file := range archive.Files {
		dest := filepath.Join(dir, filepath.FromSlash(file.Name))

		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			tb.Fatalf("could not create directory for %s: %v", file.Name, err)
		}

		if err := os.WriteFile(dest, file.Data, 0o644); err != nil {
			tb.Fatalf("could not write %s: %v", file.Name, err)
		}
	}

	return dir
}

// WriteFiles writes files (name => contents) into dir, creating directories as needed.
func WriteFiles(tb testing.TB, dir string, files map[string]string) {
	tb.Helper()

	for name, contents := range files {
		dest := filepath.Join(dir, filepath.FromSlash(name))

		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			tb.Fatalf("could not create directory for %s: %v", name, err)
		}

		if err := os.WriteFile(dest, []byte(contents), 0o644); err != nil {
			tb.Fatalf("could not write %s: %v", name, err)
		}
	}
}
