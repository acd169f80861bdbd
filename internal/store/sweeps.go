package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"videoshelf/internal/logging"
	"videoshelf/internal/metrics"
)

// SweepMissing tombstones every active record whose file no longer exists
// on disk. Records are never physically removed here.
func (s *Store) SweepMissing(ctx context.Context) (int, error) {
	start := time.Now()
	var err error
	defer func() { recordOp("sweep_missing", start, err) }()

	type candidate struct {
		id   string
		path string
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_path FROM videos WHERE status = ?`, StatusActive)
	if err != nil {
		return 0, err
	}

	var gone []candidate
	for rows.Next() {
		var c candidate
		if err = rows.Scan(&c.id, &c.path); err != nil {
			rows.Close()
			return 0, err
		}
		if _, statErr := os.Stat(c.path); os.IsNotExist(statErr) {
			gone = append(gone, c)
		}
	}
	if err = rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	if len(gone) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	for _, c := range gone {
		if _, execErr := tx.ExecContext(ctx,
			`UPDATE videos SET status = ? WHERE id = ?`, StatusTombstoned, c.id); execErr != nil {
			tx.Rollback()
			err = execErr
			return 0, err
		}
		logging.Debug("tombstoned missing file %s", c.path)
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}

	metrics.ScanRecordsTombstoned.WithLabelValues("missing").Add(float64(len(gone)))
	logging.Info("missing-file sweep tombstoned %d records", len(gone))
	return len(gone), nil
}

// SweepExcludedRoots tombstones every active record whose path is not a
// descendant of any configured scan root. Comparison is on cleaned
// absolute paths, case-folded, with a separator appended so /videos2
// never matches the root /videos.
func (s *Store) SweepExcludedRoots(ctx context.Context, roots []string) (int, error) {
	start := time.Now()
	var err error
	defer func() { recordOp("sweep_excluded", start, err) }()

	normRoots := make([]string, 0, len(roots))
	for _, root := range roots {
		abs, absErr := filepath.Abs(root)
		if absErr != nil {
			logging.Warn("skipping unresolvable root %q: %v", root, absErr)
			continue
		}
		normRoots = append(normRoots, normalizeDir(abs))
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_path FROM videos WHERE status = ?`, StatusActive)
	if err != nil {
		return 0, err
	}

	var excluded []string
	for rows.Next() {
		var id, path string
		if err = rows.Scan(&id, &path); err != nil {
			rows.Close()
			return 0, err
		}
		if !underAnyRoot(path, normRoots) {
			excluded = append(excluded, id)
			logging.Debug("path %s is outside all scan roots", path)
		}
	}
	if err = rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	if len(excluded) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	for _, id := range excluded {
		if _, execErr := tx.ExecContext(ctx,
			`UPDATE videos SET status = ? WHERE id = ?`, StatusTombstoned, id); execErr != nil {
			tx.Rollback()
			err = execErr
			return 0, err
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}

	metrics.ScanRecordsTombstoned.WithLabelValues("excluded").Add(float64(len(excluded)))
	logging.Info("excluded-directory sweep tombstoned %d records", len(excluded))
	return len(excluded), nil
}

// normalizeDir lower-cases a cleaned directory path and guarantees a
// trailing separator for prefix matching.
func normalizeDir(dir string) string {
	norm := strings.ToLower(filepath.Clean(dir))
	if !strings.HasSuffix(norm, string(filepath.Separator)) {
		norm += string(filepath.Separator)
	}
	return norm
}

func underAnyRoot(path string, normRoots []string) bool {
	norm := strings.ToLower(filepath.Clean(path))
	for _, root := range normRoots {
		if strings.HasPrefix(norm, root) {
			return true
		}
	}
	return false
}
