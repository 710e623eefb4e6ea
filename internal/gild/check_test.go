package gild_test

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.followtheprocess.codes/gild/internal/gild"
	"go.followtheprocess.codes/test"
	"go.uber.org/goleak"
)

func TestCheckValid(t *testing.T) {
	pattern := filepath.Join("testdata", "check", "valid", "*.rs")
	files, err := filepath.Glob(pattern)
	test.Ok(t, err)

	for _, file := range files {
		name := filepath.Base(file)
		t.Run(name, func(t *testing.T) {
			defer goleak.VerifyNone(t)

			stdout := &bytes.Buffer{}
			stderr := &bytes.Buffer{}

			app := gild.New(false, "test", os.Stdin, stdout, stderr)

			err := app.Check(t.Context(), gild.CheckOptions{Path: file})
			test.Ok(t, err)

			test.Diff(t, stdout.String(), fmt.Sprintf("Success: %s is valid\n", file))
			test.Diff(t, stderr.String(), "")
		})
	}
}

func TestCheckValidDir(t *testing.T) {
	path := filepath.Join("testdata", "check", "valid")
	pattern := filepath.Join(path, "*.rs")

	files, err := filepath.Glob(pattern)
	test.Ok(t, err)

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	app := gild.New(false, "test", os.Stdin, stdout, stderr)

	err = app.Check(t.Context(), gild.CheckOptions{Path: path})
	test.Ok(t, err)

	s := &strings.Builder{}

	// Write a success line for every file in the dir
	for _, file := range files {
		fmt.Fprintf(s, "Success: %s is valid\n", file)
	}

	test.Diff(t, stdout.String(), s.String())
	test.Diff(t, stderr.String(), "")
}

func TestCheckInvalid(t *testing.T) {
	pattern := filepath.Join("testdata", "check", "invalid", "*.rs")
	files, err := filepath.Glob(pattern)
	test.Ok(t, err)

	for _, file := range files {
		name := filepath.Base(file)
		t.Run(name, func(t *testing.T) {
			defer goleak.VerifyNone(t)

			stdout := &bytes.Buffer{}
			stderr := &bytes.Buffer{}

			app := gild.New(false, "test", os.Stdin, stdout, stderr)

			err := app.Check(t.Context(), gild.CheckOptions{Path: file})
			test.Err(t, err)

			test.Equal(t, err.Error(), "1 of 1 test(s) are invalid")
			test.Diff(t, stdout.String(), "")
			test.True(t, stderr.Len() > 0, test.Context("expected the reason on stderr"))
		})
	}
}

func TestCheckGlobs(t *testing.T) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	app := gild.New(false, "test", os.Stdin, stdout, stderr)

	err := app.Check(t.Context(), gild.CheckOptions{
		Path:  filepath.Join("testdata", "check"),
		Globs: []string{"valid/todo.rs"},
	})
	test.Ok(t, err)

	want := fmt.Sprintf("Success: %s is valid\n", filepath.Join("testdata", "check", "valid", "todo.rs"))
	test.Diff(t, stdout.String(), want)
}

func TestCheckNoTests(t *testing.T) {
	app := gild.New(false, "test", os.Stdin, &bytes.Buffer{}, &bytes.Buffer{})

	err := app.Check(t.Context(), gild.CheckOptions{Path: t.TempDir()})
	test.Err(t, err)
}
