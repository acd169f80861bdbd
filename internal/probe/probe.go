// Package probe extracts video metadata by invoking ffprobe.
//
// Every failure here is per-item: a corrupt file, a vanished file, or a
// file without a video stream yields an error the caller counts and moves
// past. One bad file must never abort a scan of thousands.
package probe

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"videoshelf/internal/logging"
	"videoshelf/internal/store"
	"videoshelf/internal/videofmt"
)

// ErrNoVideoStream is returned for files ffprobe can read but that carry
// no video stream (audio-only containers, damaged headers).
var ErrNoVideoStream = errors.New("no video stream found")

// ErrToolMissing is returned when the ffprobe binary itself cannot be
// launched. Unlike every other failure in this package it is not
// per-item: no file can succeed without the tool.
var ErrToolMissing = errors.New("ffprobe binary not found")

// PathID derives the stable record identifier for a file path: the md5
// of the lower-cased cleaned path. It is a pure function, so rescanning
// the same path (in any letter case) always maps to the same record.
func PathID(path string) string {
	norm := strings.ToLower(filepath.Clean(path))
	sum := md5.Sum([]byte(norm))
	return hex.EncodeToString(sum[:])
}

// Prober invokes an external ffprobe binary.
type Prober struct {
	ffprobePath string
}

// New returns a Prober using the given ffprobe binary path.
func New(ffprobePath string) *Prober {
	return &Prober{ffprobePath: ffprobePath}
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeStream struct {
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Duration  string `json:"duration"`
}

// Extract probes one file and builds its record. The record's ScannedAt
// and ThumbnailPath are left for the caller to fill in.
func (p *Prober) Extract(ctx context.Context, path string) (*store.VideoRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		// Scans race with deletions; the file being gone is routine.
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	out, err := p.run(ctx, path)
	if err != nil {
		return nil, err
	}

	var stream *probeStream
	for i := range out.Streams {
		if out.Streams[i].CodecType == "video" {
			stream = &out.Streams[i]
			break
		}
	}
	if stream == nil {
		logging.Warn("%s: %v", path, ErrNoVideoStream)
		return nil, fmt.Errorf("%s: %w", path, ErrNoVideoStream)
	}

	duration := parseSeconds(out.Format.Duration)
	if duration == 0 {
		duration = parseSeconds(stream.Duration)
	}

	format, _ := videofmt.FromPath(path)

	return &store.VideoRecord{
		ID:              PathID(path),
		FilePath:        path,
		FileName:        filepath.Base(path),
		FileSizeBytes:   info.Size(),
		DurationSeconds: duration,
		Width:           stream.Width,
		Height:          stream.Height,
		Format:          format,
		// File birth time is not portable; the modification time stands
		// in for both filesystem timestamps.
		CreatedAt:  info.ModTime(),
		ModifiedAt: info.ModTime(),
		Status:     store.StatusActive,
	}, nil
}

func (p *Prober) run(ctx context.Context, path string) (*probeOutput, error) {
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// exec.ErrNotFound covers a bare command name missing from PATH;
		// a configured path to an absent binary fails with ENOENT from
		// fork/exec instead. The media file was already stat-ed, so a
		// not-exist here can only mean the tool itself.
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s: %v", ErrToolMissing, p.ffprobePath, err)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("ffprobe %s: %w: %s", path, err, msg)
		}
		return nil, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	var out probeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("parse ffprobe output for %s: %w", path, err)
	}
	return &out, nil
}

func parseSeconds(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
