// Package store persists video records in a single-file SQLite database.
//
// The backing file is guarded by a flock sidecar so two process instances
// cannot open the same library; opening retries with backoff to ride out
// a concurrently exiting previous instance. All operations are safe for
// concurrent use by callers within the process.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"videoshelf/internal/logging"
	"videoshelf/internal/metrics"
)

const defaultTimeout = 5 * time.Second

// ErrLocked is returned when the store file is held by another process
// instance after all open retries are exhausted.
var ErrLocked = errors.New("record store is locked by another process")

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("record not found")

// OpenOptions tunes the cross-process lock acquisition.
type OpenOptions struct {
	LockRetries    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultOpenOptions returns the retry schedule used by the daemon:
// five attempts over roughly three seconds.
func DefaultOpenOptions() OpenOptions {
	return OpenOptions{
		LockRetries:    5,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
	}
}

// Store is a handle to the record database. One Store is held per process.
type Store struct {
	db   *sql.DB
	path string
	lock *flock.Flock
}

// Open opens or creates the store at dbPath and applies the schema.
func Open(ctx context.Context, dbPath string, opts OpenOptions) (*Store, error) {
	lock, err := acquireLock(ctx, dbPath+".lock", opts)
	if err != nil {
		return nil, err
	}

	// busy_timeout covers same-file contention from the WAL checkpointer.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		releaseLock(lock)
		return nil, fmt.Errorf("open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		releaseLock(lock)
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, path: dbPath, lock: lock}
	if err := s.initialize(ctx); err != nil {
		db.Close()
		releaseLock(lock)
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	logging.Info("record store opened at %s", dbPath)
	return s, nil
}

func acquireLock(ctx context.Context, lockPath string, opts OpenOptions) (*flock.Flock, error) {
	lock := flock.New(lockPath)
	backoff := opts.InitialBackoff

	for attempt := 0; ; attempt++ {
		ok, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire store lock: %w", err)
		}
		if ok {
			if attempt > 0 {
				logging.Info("store lock acquired after %d retries", attempt)
			}
			return lock, nil
		}

		if attempt >= opts.LockRetries {
			return nil, fmt.Errorf("%w (lock file %s)", ErrLocked, lockPath)
		}

		metrics.StoreLockRetries.Inc()
		logging.Warn("store locked by another instance, retrying in %v (attempt %d/%d)",
			backoff, attempt+1, opts.LockRetries)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		backoff *= 2
		if opts.MaxBackoff > 0 && backoff > opts.MaxBackoff {
			backoff = opts.MaxBackoff
		}
	}
}

func releaseLock(lock *flock.Flock) {
	if err := lock.Unlock(); err != nil {
		logging.Warn("failed to release store lock: %v", err)
	}
}

func (s *Store) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS videos (
		id TEXT PRIMARY KEY,
		file_path TEXT NOT NULL UNIQUE,
		file_name TEXT NOT NULL,
		size_bytes INTEGER NOT NULL DEFAULT 0,
		duration_seconds REAL NOT NULL DEFAULT 0,
		width INTEGER NOT NULL DEFAULT 0,
		height INTEGER NOT NULL DEFAULT 0,
		format TEXT NOT NULL,
		thumbnail_path TEXT,
		created_at INTEGER NOT NULL,
		modified_at INTEGER NOT NULL,
		scanned_at INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'active'
	);

	CREATE INDEX IF NOT EXISTS idx_videos_name ON videos(file_name COLLATE NOCASE);
	CREATE INDEX IF NOT EXISTS idx_videos_size ON videos(size_bytes);
	CREATE INDEX IF NOT EXISTS idx_videos_duration ON videos(duration_seconds);
	CREATE INDEX IF NOT EXISTS idx_videos_scanned ON videos(scanned_at);
	CREATE INDEX IF NOT EXISTS idx_videos_status ON videos(status);
	CREATE INDEX IF NOT EXISTS idx_videos_status_format ON videos(status, format);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close releases the database handle and the cross-process lock.
func (s *Store) Close() error {
	err := s.db.Close()
	releaseLock(s.lock)
	return err
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Upsert inserts or refreshes one record, reactivating it if it was
// tombstoned. The record's scan timestamp must already be set.
func (s *Store) Upsert(ctx context.Context, rec *VideoRecord) error {
	start := time.Now()
	var err error
	defer func() { recordOp("upsert", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, upsertSQL, upsertArgs(rec)...)
	return err
}

// UpsertBatch writes all records in one transaction. A failed record is
// logged and skipped; the batch itself still commits.
func (s *Store) UpsertBatch(ctx context.Context, recs []VideoRecord) error {
	if len(recs) == 0 {
		return nil
	}

	start := time.Now()
	var err error
	defer func() { recordOp("upsert_batch", start, err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}

	for i := range recs {
		if _, execErr := tx.ExecContext(ctx, upsertSQL, upsertArgs(&recs[i])...); execErr != nil {
			logging.Warn("upsert failed for %s: %v", recs[i].FilePath, execErr)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

const upsertSQL = `
INSERT INTO videos (
	id, file_path, file_name, size_bytes, duration_seconds,
	width, height, format, thumbnail_path,
	created_at, modified_at, scanned_at, status
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'active')
ON CONFLICT(id) DO UPDATE SET
	file_path = excluded.file_path,
	file_name = excluded.file_name,
	size_bytes = excluded.size_bytes,
	duration_seconds = excluded.duration_seconds,
	width = excluded.width,
	height = excluded.height,
	format = excluded.format,
	thumbnail_path = excluded.thumbnail_path,
	created_at = excluded.created_at,
	modified_at = excluded.modified_at,
	scanned_at = excluded.scanned_at,
	status = 'active'
`

func upsertArgs(rec *VideoRecord) []interface{} {
	var thumb interface{}
	if rec.ThumbnailPath != "" {
		thumb = rec.ThumbnailPath
	}
	return []interface{}{
		rec.ID, rec.FilePath, rec.FileName, rec.FileSizeBytes, rec.DurationSeconds,
		rec.Width, rec.Height, string(rec.Format), thumb,
		rec.CreatedAt.Unix(), rec.ModifiedAt.Unix(), rec.ScannedAt.Unix(),
	}
}

// GetByID fetches one record regardless of lifecycle state.
func (s *Store) GetByID(ctx context.Context, id string) (*VideoRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordOp("get_by_id", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, selectColumns+` FROM videos WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
		return nil, err
	}
	return rec, err
}

// Tombstone logically deletes a record.
func (s *Store) Tombstone(ctx context.Context, id string) error {
	start := time.Now()
	var err error
	defer func() { recordOp("tombstone", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`UPDATE videos SET status = ? WHERE id = ?`, StatusTombstoned, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrNotFound
		return err
	}
	return nil
}

// PurgeTombstoned physically removes tombstoned records. This is the only
// operation that deletes rows.
func (s *Store) PurgeTombstoned(ctx context.Context) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordOp("purge", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM videos WHERE status = ?`, StatusTombstoned)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ActivePaths returns the file paths of all active records, for the
// thumbnail orphan sweep.
func (s *Store) ActivePaths(ctx context.Context) ([]string, error) {
	start := time.Now()
	var err error
	defer func() { recordOp("active_paths", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT file_path FROM videos WHERE status = ?`, StatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err = rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	err = rows.Err()
	return paths, err
}

// Stats summarizes the library contents.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	start := time.Now()
	var err error
	defer func() { recordOp("stats", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var st Stats
	err = s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(CASE WHEN status = 'active' THEN 1 END),
			COUNT(CASE WHEN status = 'tombstoned' THEN 1 END),
			COALESCE(SUM(CASE WHEN status = 'active' THEN size_bytes END), 0),
			COALESCE(SUM(CASE WHEN status = 'active' THEN duration_seconds END), 0),
			COUNT(CASE WHEN status = 'active' AND thumbnail_path IS NOT NULL THEN 1 END)
		FROM videos
	`).Scan(&st.ActiveRecords, &st.TombstonedRecords, &st.TotalSizeBytes, &st.TotalDuration, &st.WithThumbnail)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func recordOp(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.StoreQueriesTotal.WithLabelValues(operation, status).Inc()
	metrics.StoreQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
