package gild

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.followtheprocess.codes/gild/internal/config"
	"go.followtheprocess.codes/gild/internal/harness"
	"go.followtheprocess.codes/gild/internal/source"
	"go.followtheprocess.codes/msg"
	"golang.org/x/sync/errgroup"
)

// CheckOptions are the options passed to the check subcommand.
type CheckOptions struct {
	// Path is the path (file, directory or glob) to check.
	Path string

	// Config is the project configuration file, if empty gild.yaml in the
	// current directory is used if present.
	Config string

	// Globs restrict which of the discovered tests are checked.
	Globs []string

	// Debug enables debug logging.
	Debug bool
}

// Check implements the check subcommand, it validates every discovered test's
// markers and per test configuration without running the analyzer.
func (g Gild) Check(ctx context.Context, options CheckOptions) error {
	logger := g.logger.Prefixed("check").With(slog.String("path", options.Path))
	logger.Debug("Checking path")

	base, err := g.settings(options.Config)
	if err != nil {
		return err
	}

	cases, err := harness.Discover(options.Path, harness.DiscoverOptions{
		Extension: base.Extension,
		Globs:     options.Globs,
	})
	if err != nil {
		return err
	}

	logger.Debug("Checking tests given by path", slog.Int("number", len(cases)))

	// Each task owns its own slot so no locking is needed
	errs := make([]error, len(cases))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(max(base.Jobs, 1))

	for i, c := range cases {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			errs[i] = checkCase(base, c)

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}

	invalid := 0

	for i, c := range cases {
		if errs[i] != nil {
			invalid++

			msg.Ferror(g.stderr, "%v", errs[i])

			continue
		}

		msg.Fsuccess(g.stdout, "%s is valid", c.Path)
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d test(s) are invalid", invalid, len(cases))
	}

	return nil
}

// checkCase validates a single test's source markers and configuration.
func checkCase(base config.Settings, c harness.Case) error {
	var errs []error

	if _, err := source.Load(c.Path); err != nil {
		errs = append(errs, err)
	}

	perTest, err := config.LoadTest(c.ConfigPath)
	if err == nil {
		_, err = base.WithTest(perTest)
		if err != nil {
			err = fmt.Errorf("%s: %w", c.ConfigPath, err)
		}
	}

	if err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
