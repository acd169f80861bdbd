// Package scanner enumerates video files under a set of scan roots.
//
// Enumeration is depth-first: each directory's files are collected before
// its subdirectories are descended into. Callers must not depend on the
// output order. A subtree that cannot be read is recorded in the Result
// and treated as empty; it never aborts its siblings or the scan.
// Entries whose name starts with a dot are skipped entirely, files and
// directories alike, so hidden trees such as .Trash never enter the
// library.
package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"videoshelf/internal/logging"
	"videoshelf/internal/metrics"
	"videoshelf/internal/videofmt"
)

// Result aggregates one enumeration pass over all roots.
type Result struct {
	// Paths holds every discovered video file, as absolute paths.
	Paths []string
	// Errors holds the per-subtree failures that were skipped over.
	Errors []error
	// SkippedRoots lists configured roots that did not exist.
	SkippedRoots []string
	// DirsWalked counts directories that were read successfully.
	DirsWalked int
}

// Scan enumerates all roots. Cancellation is cooperative: the context is
// checked before every file and every directory, and a cancelled scan
// returns the partial Result alongside the context error.
func Scan(ctx context.Context, roots []string) (*Result, error) {
	res := &Result{}

	for _, root := range roots {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		abs, err := filepath.Abs(root)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("resolve root %q: %w", root, err))
			continue
		}

		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			logging.Warn("scan root %s does not exist, skipping", abs)
			res.SkippedRoots = append(res.SkippedRoots, abs)
			continue
		}

		if err := scanDir(ctx, abs, res); err != nil {
			return res, err
		}
	}

	return res, nil
}

// scanDir reads one directory level. Read failures are recorded and the
// subtree is treated as empty; only context cancellation propagates up.
func scanDir(ctx context.Context, dir string, res *Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		logging.Warn("cannot read directory %s: %v", dir, err)
		metrics.ScanDirErrors.Inc()
		res.Errors = append(res.Errors, fmt.Errorf("read directory %s: %w", dir, err))
		return nil
	}
	res.DirsWalked++

	var subdirs []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if entry.IsDir() {
			subdirs = append(subdirs, entry.Name())
			continue
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		if videofmt.Supported(entry.Name()) {
			res.Paths = append(res.Paths, filepath.Join(dir, entry.Name()))
		}
	}

	for _, name := range subdirs {
		if err := scanDir(ctx, filepath.Join(dir, name), res); err != nil {
			return err
		}
	}
	return nil
}
