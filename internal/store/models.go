package store

import (
	"time"

	"videoshelf/internal/videofmt"
)

// Status is the lifecycle state of a record. Tombstoned records survive
// until an explicit purge so the library history is recoverable.
type Status string

const (
	// StatusActive marks a record whose file was present at the last scan.
	StatusActive Status = "active"
	// StatusTombstoned marks a logically deleted record awaiting purge.
	StatusTombstoned Status = "tombstoned"
)

// VideoRecord is one discovered video file.
type VideoRecord struct {
	// ID is the md5 of the lower-cased absolute path; rescanning the same
	// path always lands on the same record.
	ID              string          `json:"id"`
	FilePath        string          `json:"filePath"`
	FileName        string          `json:"fileName"`
	FileSizeBytes   int64           `json:"fileSizeBytes"`
	DurationSeconds float64         `json:"durationSeconds"`
	Width           int             `json:"width"`
	Height          int             `json:"height"`
	Format          videofmt.Format `json:"format"`
	ThumbnailPath   string          `json:"thumbnailPath,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	ModifiedAt      time.Time       `json:"modifiedAt"`
	ScannedAt       time.Time       `json:"scannedAt"`
	Status          Status          `json:"status"`
}

// Resolution returns the pixel count used for resolution ordering.
func (r *VideoRecord) Resolution() int {
	return r.Width * r.Height
}

// SortField selects the ordering of query results.
type SortField string

// SortOrder selects the direction of query results.
type SortOrder string

const (
	SortByName       SortField = "name"
	SortBySize       SortField = "size"
	SortByDuration   SortField = "duration"
	SortByResolution SortField = "resolution"
	SortByScanned    SortField = "scanned"
	SortByCreated    SortField = "created"
	SortByModified   SortField = "modified"

	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// QueryOptions filters and orders a library query. Zero values mean
// "no constraint"; bounds are inclusive. Tombstoned records are excluded
// unless IncludeTombstoned is set.
type QueryOptions struct {
	NameContains string

	MinSize *int64
	MaxSize *int64

	MinDuration *float64
	MaxDuration *float64

	Formats []videofmt.Format

	Sort  SortField
	Order SortOrder

	Limit  int
	Offset int

	IncludeTombstoned bool
}

// QueryResult is one page of query results.
type QueryResult struct {
	Items  []VideoRecord `json:"items"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// Stats summarizes the library.
type Stats struct {
	ActiveRecords     int     `json:"activeRecords"`
	TombstonedRecords int     `json:"tombstonedRecords"`
	TotalSizeBytes    int64   `json:"totalSizeBytes"`
	TotalDuration     float64 `json:"totalDurationSeconds"`
	WithThumbnail     int     `json:"withThumbnail"`
}
