package store

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"videoshelf/internal/videofmt"
)

// testID mirrors how the prober derives record ids from paths.
func testID(path string) string {
	sum := md5.Sum([]byte(strings.ToLower(filepath.Clean(path))))
	return hex.EncodeToString(sum[:])
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "library.db"), DefaultOpenOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func makeRecord(path string, size int64, duration float64, w, h int, format videofmt.Format) VideoRecord {
	now := time.Now().Truncate(time.Second)
	return VideoRecord{
		ID:              testID(path),
		FilePath:        path,
		FileName:        filepath.Base(path),
		FileSizeBytes:   size,
		DurationSeconds: duration,
		Width:           w,
		Height:          h,
		Format:          format,
		CreatedAt:       now,
		ModifiedAt:      now,
		ScannedAt:       now,
		Status:          StatusActive,
	}
}

func TestUpsertAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := makeRecord("/videos/alpha.mp4", 1000, 60, 1920, 1080, videofmt.FormatMP4)
	rec.ThumbnailPath = "/thumbs/a.png"
	if err := s.Upsert(ctx, &rec); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := s.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.FilePath != rec.FilePath || got.FileSizeBytes != 1000 || got.Format != videofmt.FormatMP4 {
		t.Errorf("record mismatch: %+v", got)
	}
	if got.ThumbnailPath != "/thumbs/a.png" {
		t.Errorf("ThumbnailPath = %q", got.ThumbnailPath)
	}
	if got.Status != StatusActive {
		t.Errorf("Status = %s, want active", got.Status)
	}
	if !got.ScannedAt.Equal(rec.ScannedAt) {
		t.Errorf("ScannedAt = %v, want %v", got.ScannedAt, rec.ScannedAt)
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := makeRecord("/videos/beta.mkv", 500, 30, 640, 480, videofmt.FormatMKV)
	if err := s.Upsert(ctx, &rec); err != nil {
		t.Fatal(err)
	}

	// Same path, new metadata: one record, updated in place.
	rec.FileSizeBytes = 999
	rec.DurationSeconds = 45
	if err := s.Upsert(ctx, &rec); err != nil {
		t.Fatal(err)
	}

	res, err := s.Query(ctx, QueryOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 1 {
		t.Fatalf("Total = %d, want 1 after re-upsert", res.Total)
	}
	if res.Items[0].FileSizeBytes != 999 || res.Items[0].DurationSeconds != 45 {
		t.Errorf("metadata not updated: %+v", res.Items[0])
	}
}

func TestUpsertReactivatesTombstoned(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := makeRecord("/videos/gamma.avi", 100, 10, 320, 240, videofmt.FormatAVI)
	if err := s.Upsert(ctx, &rec); err != nil {
		t.Fatal(err)
	}
	if err := s.Tombstone(ctx, rec.ID); err != nil {
		t.Fatal(err)
	}

	if err := s.Upsert(ctx, &rec); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusActive {
		t.Errorf("Status = %s, want active after re-upsert", got.Status)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetByID(context.Background(), "deadbeef")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestTombstoneAndPurge(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := makeRecord("/videos/a.mp4", 1, 1, 1, 1, videofmt.FormatMP4)
	b := makeRecord("/videos/b.mp4", 2, 2, 2, 2, videofmt.FormatMP4)
	if err := s.UpsertBatch(ctx, []VideoRecord{a, b}); err != nil {
		t.Fatal(err)
	}

	if err := s.Tombstone(ctx, a.ID); err != nil {
		t.Fatalf("Tombstone: %v", err)
	}
	if err := s.Tombstone(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Tombstone(missing) = %v, want ErrNotFound", err)
	}

	// Tombstoned records stay until purged.
	got, err := s.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusTombstoned {
		t.Errorf("Status = %s, want tombstoned", got.Status)
	}

	purged, err := s.PurgeTombstoned(ctx)
	if err != nil {
		t.Fatalf("PurgeTombstoned: %v", err)
	}
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}
	if _, err := s.GetByID(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Error("purged record still present")
	}
	if _, err := s.GetByID(ctx, b.ID); err != nil {
		t.Error("active record was purged")
	}
}

func TestActivePaths(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := makeRecord("/videos/a.mp4", 1, 1, 1, 1, videofmt.FormatMP4)
	b := makeRecord("/videos/b.mkv", 2, 2, 2, 2, videofmt.FormatMKV)
	if err := s.UpsertBatch(ctx, []VideoRecord{a, b}); err != nil {
		t.Fatal(err)
	}
	if err := s.Tombstone(ctx, b.ID); err != nil {
		t.Fatal(err)
	}

	paths, err := s.ActivePaths(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 || paths[0] != "/videos/a.mp4" {
		t.Errorf("ActivePaths = %v, want [/videos/a.mp4]", paths)
	}
}

func TestStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := makeRecord("/videos/a.mp4", 100, 10, 1, 1, videofmt.FormatMP4)
	a.ThumbnailPath = "/thumbs/a.png"
	b := makeRecord("/videos/b.mp4", 200, 20, 2, 2, videofmt.FormatMP4)
	c := makeRecord("/videos/c.mp4", 400, 40, 3, 3, videofmt.FormatMP4)
	if err := s.UpsertBatch(ctx, []VideoRecord{a, b, c}); err != nil {
		t.Fatal(err)
	}
	if err := s.Tombstone(ctx, c.ID); err != nil {
		t.Fatal(err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.ActiveRecords != 2 || stats.TombstonedRecords != 1 {
		t.Errorf("counts = %d active / %d tombstoned, want 2/1", stats.ActiveRecords, stats.TombstonedRecords)
	}
	if stats.TotalSizeBytes != 300 {
		t.Errorf("TotalSizeBytes = %d, want 300", stats.TotalSizeBytes)
	}
	if stats.TotalDuration != 30 {
		t.Errorf("TotalDuration = %v, want 30", stats.TotalDuration)
	}
	if stats.WithThumbnail != 1 {
		t.Errorf("WithThumbnail = %d, want 1", stats.WithThumbnail)
	}
}

func TestOpenLocking(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "library.db")
	ctx := context.Background()

	first, err := Open(ctx, dbPath, DefaultOpenOptions())
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}

	fast := OpenOptions{LockRetries: 2, InitialBackoff: 5 * time.Millisecond, MaxBackoff: 10 * time.Millisecond}
	if _, err := Open(ctx, dbPath, fast); !errors.Is(err, ErrLocked) {
		t.Fatalf("second Open = %v, want ErrLocked", err)
	}

	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// The lock is released on close, so reopening succeeds.
	second, err := Open(ctx, dbPath, fast)
	if err != nil {
		t.Fatalf("reopen after Close: %v", err)
	}
	second.Close()
}
