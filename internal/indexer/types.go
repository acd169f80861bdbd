package indexer

import "time"

// State identifies the pipeline phase a scan is in.
type State string

const (
	StateIdle        State = "idle"
	StateEnumerating State = "enumerating"
	StateExtracting  State = "extracting"
	StatePersisting  State = "persisting"
	StateReconciling State = "reconciling"
)

// Outcome classifies how a scan run ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// Progress is a point-in-time snapshot of an in-flight scan. Counters
// only ever increase within a run.
type Progress struct {
	RunID          string    `json:"runId"`
	State          State     `json:"state"`
	FilesFound     int64     `json:"filesFound"`
	FilesProcessed int64     `json:"filesProcessed"`
	FilesFailed    int64     `json:"filesFailed"`
	CurrentFile    string    `json:"currentFile,omitempty"`
	StartedAt      time.Time `json:"startedAt"`
}

// ScanResult summarizes a finished scan run.
type ScanResult struct {
	RunID          string  `json:"runId"`
	Outcome        Outcome `json:"outcome"`
	FilesFound     int     `json:"filesFound"`
	FilesProcessed int     `json:"filesProcessed"`
	FilesFailed    int     `json:"filesFailed"`

	// DirsFailed counts directories that could not be read during
	// enumeration. Kept apart from FilesFailed: a failed directory hides
	// an unknown number of files.
	DirsFailed int `json:"dirsFailed"`

	// Errors holds a bounded sample of per-item failures.
	// ErrorsOmitted counts the failures beyond the sample.
	Errors        []string `json:"errors,omitempty"`
	ErrorsOmitted int      `json:"errorsOmitted,omitempty"`

	SkippedRoots []string `json:"skippedRoots,omitempty"`

	TombstonedMissing  int `json:"tombstonedMissing"`
	TombstonedExcluded int `json:"tombstonedExcluded"`
	ThumbnailsRemoved  int `json:"thumbnailsRemoved"`

	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Duration reports the wall-clock length of the run.
func (r *ScanResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
