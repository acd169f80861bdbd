// Package thumbs generates and garbage-collects video thumbnails.
//
// A thumbnail is identified by the hash of its source path, not its
// content: if a video's bytes change under the same path the thumbnail
// goes stale until the sweep clears it. That trade keeps the existence
// check to a single stat.
package thumbs

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"videoshelf/internal/logging"
	"videoshelf/internal/metrics"
	"videoshelf/internal/probe"
)

// Generator extracts midpoint frames with ffmpeg and writes fixed-size
// PNG thumbnails named {pathhash}.png.
type Generator struct {
	dir        string
	ffmpegPath string
	width      int
	height     int
}

// New creates a Generator writing into dir, creating it if needed.
func New(dir, ffmpegPath string, width, height int) *Generator {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logging.Warn("cannot create thumbnail dir %s: %v", dir, err)
	}
	return &Generator{dir: dir, ffmpegPath: ffmpegPath, width: width, height: height}
}

// Dir returns the thumbnail directory.
func (g *Generator) Dir() string {
	return g.dir
}

// PathFor returns the thumbnail location for a source path, whether or
// not it exists yet.
func (g *Generator) PathFor(sourcePath string) string {
	return filepath.Join(g.dir, probe.PathID(sourcePath)+".png")
}

// Ensure returns the thumbnail path for sourcePath, generating it if
// missing. An existing non-empty file is reused unconditionally without
// invoking the external tool. The frame is taken at half the reported
// duration and fitted into the configured box.
func (g *Generator) Ensure(ctx context.Context, sourcePath string, durationSeconds float64) (string, error) {
	target := g.PathFor(sourcePath)

	if info, err := os.Stat(target); err == nil && info.Size() > 0 {
		metrics.ThumbnailCacheHits.Inc()
		logging.Debug("thumbnail exists for %s", sourcePath)
		return target, nil
	}

	if _, err := os.Stat(sourcePath); err != nil {
		metrics.ThumbnailFailures.Inc()
		return "", fmt.Errorf("source %s: %w", sourcePath, err)
	}

	img, err := g.extractFrame(ctx, sourcePath, durationSeconds/2)
	if err != nil {
		metrics.ThumbnailFailures.Inc()
		return "", err
	}

	thumb := imaging.Fit(img, g.width, g.height, imaging.Lanczos)

	if err := writePNG(target, thumb); err != nil {
		metrics.ThumbnailFailures.Inc()
		return "", err
	}

	metrics.ThumbnailsGenerated.Inc()
	logging.Debug("thumbnail written for %s", sourcePath)
	return target, nil
}

func (g *Generator) extractFrame(ctx context.Context, sourcePath string, offsetSeconds float64) (image.Image, error) {
	if offsetSeconds < 0 {
		offsetSeconds = 0
	}

	cmd := exec.CommandContext(ctx, g.ffmpegPath,
		"-ss", strconv.FormatFloat(offsetSeconds, 'f', 3, 64),
		"-i", sourcePath,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("ffmpeg %s: %w: %s", sourcePath, err, msg)
		}
		return nil, fmt.Errorf("ffmpeg %s: %w", sourcePath, err)
	}

	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output for %s", sourcePath)
	}

	img, _, err := image.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("decode frame for %s: %w", sourcePath, err)
	}
	return img, nil
}

// writePNG writes atomically via a temp file so a crashed generation
// never leaves a half-written thumbnail that the existence check would
// then reuse forever.
func writePNG(target string, img image.Image) error {
	tmp := target + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}

	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode %s: %w", target, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", target, err)
	}
	return nil
}

// Sweep deletes thumbnails whose source path is no longer in validPaths.
// Per-file delete failures are logged and skipped. Returns the number of
// files removed.
func (g *Generator) Sweep(validPaths []string) int {
	valid := make(map[string]struct{}, len(validPaths))
	for _, p := range validPaths {
		valid[probe.PathID(p)+".png"] = struct{}{}
	}

	entries, err := os.ReadDir(g.dir)
	if err != nil {
		logging.Warn("thumbnail sweep cannot read %s: %v", g.dir, err)
		return 0
	}

	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".png") {
			continue
		}
		if _, ok := valid[name]; ok {
			continue
		}
		if err := os.Remove(filepath.Join(g.dir, name)); err != nil {
			logging.Warn("thumbnail sweep cannot remove %s: %v", name, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		metrics.ThumbnailsSwept.Add(float64(removed))
		logging.Info("thumbnail sweep removed %d orphaned files", removed)
	}
	return removed
}
