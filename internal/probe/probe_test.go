package probe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"videoshelf/internal/store"
	"videoshelf/internal/videofmt"
)

func TestPathID(t *testing.T) {
	a := PathID("/videos/Movie.mp4")
	b := PathID("/videos/Movie.mp4")
	if a != b {
		t.Errorf("PathID not deterministic: %s != %s", a, b)
	}
	if len(a) != 32 {
		t.Errorf("PathID length = %d, want 32 hex chars", len(a))
	}

	if PathID("/Videos/MOVIE.MP4") != PathID("/videos/movie.mp4") {
		t.Error("PathID should be case-insensitive")
	}
	if PathID("/videos//movie.mp4") != PathID("/videos/movie.mp4") {
		t.Error("PathID should clean the path first")
	}
	if PathID("/videos/a.mp4") == PathID("/videos/b.mp4") {
		t.Error("distinct paths must not collide")
	}
}

// writeStubProbe writes an executable script that ignores its arguments
// and prints the given JSON on stdout.
func writeStubProbe(t *testing.T, jsonOut string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffprobe")
	script := "#!/bin/sh\ncat <<'EOF'\n" + jsonOut + "\nEOF\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeVideoFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExtract(t *testing.T) {
	stub := writeStubProbe(t, `{
		"format": {"duration": "120.500000"},
		"streams": [
			{"codec_type": "audio"},
			{"codec_type": "video", "width": 1920, "height": 1080}
		]
	}`)
	src := writeVideoFile(t, t.TempDir(), "clip.mp4", 4096)

	rec, err := New(stub).Extract(context.Background(), src)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if rec.ID != PathID(src) {
		t.Errorf("ID = %s, want %s", rec.ID, PathID(src))
	}
	if rec.FilePath != src {
		t.Errorf("FilePath = %s, want %s", rec.FilePath, src)
	}
	if rec.FileName != "clip.mp4" {
		t.Errorf("FileName = %s, want clip.mp4", rec.FileName)
	}
	if rec.FileSizeBytes != 4096 {
		t.Errorf("FileSizeBytes = %d, want 4096", rec.FileSizeBytes)
	}
	if rec.DurationSeconds != 120.5 {
		t.Errorf("DurationSeconds = %v, want 120.5", rec.DurationSeconds)
	}
	if rec.Width != 1920 || rec.Height != 1080 {
		t.Errorf("dimensions = %dx%d, want 1920x1080", rec.Width, rec.Height)
	}
	if rec.Format != videofmt.FormatMP4 {
		t.Errorf("Format = %s, want mp4", rec.Format)
	}
	if rec.Status != store.StatusActive {
		t.Errorf("Status = %s, want active", rec.Status)
	}
	if rec.ModifiedAt.IsZero() || !rec.CreatedAt.Equal(rec.ModifiedAt) {
		t.Error("CreatedAt should fall back to the modification time")
	}
	if !rec.ScannedAt.IsZero() {
		t.Error("ScannedAt must be left for the caller")
	}
}

func TestExtractStreamDurationFallback(t *testing.T) {
	stub := writeStubProbe(t, `{
		"format": {},
		"streams": [{"codec_type": "video", "width": 640, "height": 480, "duration": "33.25"}]
	}`)
	src := writeVideoFile(t, t.TempDir(), "clip.mkv", 1)

	rec, err := New(stub).Extract(context.Background(), src)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec.DurationSeconds != 33.25 {
		t.Errorf("DurationSeconds = %v, want 33.25", rec.DurationSeconds)
	}
}

func TestExtractNoVideoStream(t *testing.T) {
	stub := writeStubProbe(t, `{
		"format": {"duration": "10"},
		"streams": [{"codec_type": "audio"}]
	}`)
	src := writeVideoFile(t, t.TempDir(), "audio.mp4", 1)

	_, err := New(stub).Extract(context.Background(), src)
	if !errors.Is(err, ErrNoVideoStream) {
		t.Errorf("err = %v, want ErrNoVideoStream", err)
	}
}

func TestExtractMissingFile(t *testing.T) {
	stub := writeStubProbe(t, `{}`)

	_, err := New(stub).Extract(context.Background(), filepath.Join(t.TempDir(), "gone.mp4"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want wrapped os.ErrNotExist", err)
	}
}

func TestExtractToolMissing(t *testing.T) {
	src := writeVideoFile(t, t.TempDir(), "clip.mp4", 16)

	tests := []struct {
		name string
		bin  string
	}{
		{"absolute path", filepath.Join(t.TempDir(), "ffprobe")},
		{"bare name", "videoshelf-no-such-ffprobe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.bin).Extract(context.Background(), src)
			if !errors.Is(err, ErrToolMissing) {
				t.Errorf("err = %v, want wrapped ErrToolMissing", err)
			}
		})
	}
}

func TestExtractProbeFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs require a POSIX shell")
	}
	stub := filepath.Join(t.TempDir(), "ffprobe")
	script := "#!/bin/sh\necho 'moov atom not found' >&2\nexit 1\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	src := writeVideoFile(t, t.TempDir(), "corrupt.avi", 16)

	_, err := New(stub).Extract(context.Background(), src)
	if err == nil {
		t.Fatal("expected error for failing probe")
	}
}

func TestParseSeconds(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"", 0},
		{"12.5", 12.5},
		{"N/A", 0},
		{"-3", 0},
	}
	for _, tt := range tests {
		if got := parseSeconds(tt.in); got != tt.want {
			t.Errorf("parseSeconds(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
