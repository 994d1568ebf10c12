package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/smileynet/benchdash/internal/report"
)

// Skip reasons reported to the Recorder.
const (
	skipUnreadable      = "unreadable"
	skipMissingHardware = "missing_hardware"
	skipMissingGitref   = "missing_gitref"
	skipInvalid         = "invalid"
)

// CheckResultsDir verifies that dir exists and is a directory.
func CheckResultsDir(dir string) error {
	fi, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidResultsDir, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidResultsDir, dir)
	}
	return nil
}

// parsed is the outcome of reading one run directory.
type parsed struct {
	path   string
	report report.Report
	ok     bool
}

// build reads every run directory under the results directory into a new
// snapshot. Directories are parsed in parallel; the parsed runs are then
// inserted in directory order so index insertion order is deterministic.
func (c *Cache) build(ctx context.Context) (*snapshot, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("cache: listing %s: %w", c.dir, err)
	}

	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(c.dir, e.Name()))
		}
	}

	results := make([]parsed, len(dirs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, dir := range dirs {
		i, dir := i, dir
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			results[i] = c.parseRun(dir)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("cache: loading %s: %w", c.dir, err)
	}

	next := newSnapshot(c.shards)
	for _, p := range results {
		if p.ok {
			next.insert(p.path, p.report)
		}
	}
	return next, nil
}

// parseRun reads and validates the report of one run directory. Failures are
// logged and reported as a skip; they never abort the sweep.
func (c *Cache) parseRun(dir string) parsed {
	path := c.reportPath(dir)
	r, err := report.ReadLight(path)
	if err != nil {
		reason := skipInvalid
		if !errors.Is(err, report.ErrInvalidReport) {
			reason = skipUnreadable
		}
		c.logger.Error("failed to load light report", "dir", dir, "error", err)
		c.recorder.RunSkipped(reason)
		return parsed{}
	}

	if err := r.Validate(); err != nil {
		reason := skipInvalid
		switch {
		case errors.Is(err, report.ErrMissingHardware):
			reason = skipMissingHardware
		case errors.Is(err, report.ErrMissingGitref):
			reason = skipMissingGitref
		}
		c.logger.Warn("skipping benchmark report", "path", path, "reason", err)
		c.recorder.RunSkipped(reason)
		return parsed{}
	}

	c.logger.Debug("loaded light benchmark report", "path", path, "uuid", r.UUID)
	return parsed{path: path, report: r, ok: true}
}
