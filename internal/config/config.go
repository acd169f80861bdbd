// Package config loads and watches the videoshelf configuration file.
//
// The configuration is a TOML file with a typed structure; there is no
// string-keyed access. Components that need to react to configuration
// changes subscribe to a Watcher rather than reading shared mutable state.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Library configures what gets scanned and how often.
type Library struct {
	ScanRoots      []string `toml:"scan_roots"`
	RescanInterval string   `toml:"rescan_interval"`
}

// Storage configures where the store and thumbnails live.
type Storage struct {
	DataDir string `toml:"data_dir"`
}

// Tools configures the external media tool binaries.
type Tools struct {
	FFprobePath string `toml:"ffprobe_path"`
	FFmpegPath  string `toml:"ffmpeg_path"`
}

// Thumbnails configures thumbnail generation.
type Thumbnails struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
}

// Server configures the HTTP API.
type Server struct {
	Bind string `toml:"bind"`
}

// Config is the full videoshelf configuration.
type Config struct {
	Library    Library    `toml:"library"`
	Storage    Storage    `toml:"storage"`
	Tools      Tools      `toml:"tools"`
	Thumbnails Thumbnails `toml:"thumbnails"`
	Server     Server     `toml:"server"`
}

// Default returns the configuration defaults applied before the file is read.
func Default() Config {
	return Config{
		Library: Library{
			RescanInterval: "30m",
		},
		Storage: Storage{
			DataDir: defaultDataDir(),
		},
		Tools: Tools{
			FFprobePath: "ffprobe",
			FFmpegPath:  "ffmpeg",
		},
		Thumbnails: Thumbnails{
			Width:  320,
			Height: 180,
		},
		Server: Server{
			Bind: "127.0.0.1:8750",
		},
	}
}

func defaultDataDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "videoshelf")
	}
	return "videoshelf-data"
}

// Load reads the configuration file at path over the defaults and
// normalizes it. A missing file yields the defaults without error so a
// fresh install works before any configuration exists.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, cfg.normalize()
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.normalize(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// normalize resolves all configured paths to absolute form.
func (c *Config) normalize() error {
	for i, root := range c.Library.ScanRoots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return fmt.Errorf("resolve scan root %q: %w", root, err)
		}
		c.Library.ScanRoots[i] = filepath.Clean(abs)
	}

	abs, err := filepath.Abs(c.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("resolve data dir %q: %w", c.Storage.DataDir, err)
	}
	c.Storage.DataDir = abs
	return nil
}

// Validate reports configuration values that cannot work.
func (c *Config) Validate() error {
	if c.Thumbnails.Width <= 0 || c.Thumbnails.Height <= 0 {
		return fmt.Errorf("thumbnail size %dx%d is invalid", c.Thumbnails.Width, c.Thumbnails.Height)
	}
	if c.Tools.FFprobePath == "" {
		return errors.New("tools.ffprobe_path must not be empty")
	}
	if c.Tools.FFmpegPath == "" {
		return errors.New("tools.ffmpeg_path must not be empty")
	}
	if _, err := c.RescanInterval(); err != nil {
		return err
	}
	return nil
}

// RescanInterval parses the configured rescan interval.
func (c *Config) RescanInterval() (time.Duration, error) {
	if c.Library.RescanInterval == "" {
		return 30 * time.Minute, nil
	}
	d, err := time.ParseDuration(c.Library.RescanInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid rescan_interval %q: %w", c.Library.RescanInterval, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("rescan_interval must be positive, got %q", c.Library.RescanInterval)
	}
	return d, nil
}

// DatabasePath returns the location of the record store file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Storage.DataDir, "videoshelf.db")
}

// ThumbnailDir returns the directory holding generated thumbnails.
func (c *Config) ThumbnailDir() string {
	return filepath.Join(c.Storage.DataDir, "thumbnails")
}

// EnsureDataDirs creates the data and thumbnail directories.
func (c *Config) EnsureDataDirs() error {
	if err := os.MkdirAll(c.Storage.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := os.MkdirAll(c.ThumbnailDir(), 0o755); err != nil {
		return fmt.Errorf("create thumbnail dir: %w", err)
	}
	return nil
}
