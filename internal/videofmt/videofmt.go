// Package videofmt classifies files into the closed set of video container
// formats the library understands. Adding a format means adding one table
// entry; nothing else in the pipeline changes.
package videofmt

import (
	"path/filepath"
	"strings"
)

// Format identifies a supported video container format.
type Format string

const (
	// FormatMP4 is the MPEG-4 Part 14 container.
	FormatMP4 Format = "mp4"
	// FormatMKV is the Matroska container.
	FormatMKV Format = "mkv"
	// FormatAVI is the Audio Video Interleave container.
	FormatAVI Format = "avi"
	// FormatMOV is the QuickTime container.
	FormatMOV Format = "mov"
)

var byExtension = map[string]Format{
	".mp4": FormatMP4,
	".mkv": FormatMKV,
	".avi": FormatAVI,
	".mov": FormatMOV,
}

var labels = map[Format]string{
	FormatMP4: "MPEG-4 Video",
	FormatMKV: "Matroska Video",
	FormatAVI: "AVI Video",
	FormatMOV: "QuickTime Video",
}

// FromPath classifies a file path by its extension. Classification is
// case-insensitive and reports ok=false for unsupported extensions.
func FromPath(path string) (Format, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	f, ok := byExtension[ext]
	return f, ok
}

// Supported reports whether the path has a supported video extension.
func Supported(path string) bool {
	_, ok := FromPath(path)
	return ok
}

// Ext returns the canonical extension for the format, including the dot.
func (f Format) Ext() string {
	return "." + string(f)
}

// Label returns a human-readable name for the format.
func (f Format) Label() string {
	if label, ok := labels[f]; ok {
		return label
	}
	return strings.ToUpper(string(f)) + " Video"
}

// Valid reports whether f is one of the supported formats.
func (f Format) Valid() bool {
	_, ok := labels[f]
	return ok
}

// All returns the supported formats in stable order.
func All() []Format {
	return []Format{FormatMP4, FormatMKV, FormatAVI, FormatMOV}
}
