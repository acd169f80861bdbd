// Package indexer drives the scan pipeline: enumerate the scan roots,
// extract metadata and thumbnails per file, persist the results, then
// reconcile the record store against what is actually on disk.
package indexer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"videoshelf/internal/logging"
	"videoshelf/internal/metrics"
	"videoshelf/internal/probe"
	"videoshelf/internal/scanner"
	"videoshelf/internal/store"
	"videoshelf/internal/workers"
)

// ErrScanInProgress is returned when a scan is requested while one is
// already running. The in-flight run has been asked to cancel; the
// caller can retry once it winds down.
var ErrScanInProgress = errors.New("scan already in progress, cancellation requested")

// maxSampledErrors bounds how many per-item error messages a ScanResult
// carries; the rest are reported as a count.
const maxSampledErrors = 10

// Extractor produces a record for one file.
type Extractor interface {
	Extract(ctx context.Context, path string) (*store.VideoRecord, error)
}

// Thumbnailer ensures a thumbnail exists for one file and garbage
// collects orphans.
type Thumbnailer interface {
	Ensure(ctx context.Context, sourcePath string, durationSeconds float64) (string, error)
	Sweep(validPaths []string) int
}

// Indexer coordinates scans. At most one scan runs at a time.
type Indexer struct {
	store     *store.Store
	extractor Extractor
	thumbs    Thumbnailer

	workerCount int
	onProgress  func(Progress)

	mu        sync.Mutex
	state     State
	cancelRun context.CancelFunc

	progressMu sync.Mutex
	progress   Progress
}

// New creates an Indexer over the given collaborators.
func New(st *store.Store, ex Extractor, th Thumbnailer) *Indexer {
	return &Indexer{
		store:       st,
		extractor:   ex,
		thumbs:      th,
		workerCount: workers.ForIO(8),
		state:       StateIdle,
		progress:    Progress{State: StateIdle},
	}
}

// SetWorkerCount overrides the extraction fan-out width.
func (ix *Indexer) SetWorkerCount(n int) {
	if n > 0 {
		ix.workerCount = n
	}
}

// SetOnProgress registers a callback invoked after every processed item.
// The callback runs on pipeline goroutines and must be cheap.
func (ix *Indexer) SetOnProgress(fn func(Progress)) {
	ix.onProgress = fn
}

// State returns the current pipeline state.
func (ix *Indexer) State() State {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.state
}

// Progress returns a snapshot of the current scan progress.
func (ix *Indexer) Progress() Progress {
	ix.progressMu.Lock()
	defer ix.progressMu.Unlock()
	return ix.progress
}

// Scan runs the full pipeline over roots. Only one scan may be in
// flight; calling Scan while one runs cancels the in-flight run and
// returns ErrScanInProgress. Cancellation through ctx is not an error:
// it yields a ScanResult with OutcomeCancelled describing the partial
// work.
func (ix *Indexer) Scan(ctx context.Context, roots []string) (*ScanResult, error) {
	ix.mu.Lock()
	if ix.state != StateIdle {
		if ix.cancelRun != nil {
			ix.cancelRun()
		}
		ix.mu.Unlock()
		return nil, ErrScanInProgress
	}
	runCtx, cancel := context.WithCancel(ctx)
	ix.state = StateEnumerating
	ix.cancelRun = cancel
	ix.mu.Unlock()

	defer func() {
		cancel()
		ix.mu.Lock()
		ix.state = StateIdle
		ix.cancelRun = nil
		ix.mu.Unlock()
		ix.setProgress(Progress{State: StateIdle})
		metrics.ScanRunning.Set(0)
	}()
	metrics.ScanRunning.Set(1)

	run := newRun(uuid.NewString(), ix.workerCount)
	logging.Info("scan %s starting over %d roots", run.id, len(roots))
	ix.publish(run, StateEnumerating, "")

	// Enumerating
	enum, err := scanner.Scan(runCtx, roots)
	run.skippedRoots = enum.SkippedRoots
	run.dirsFailed = len(enum.Errors)
	for _, dirErr := range enum.Errors {
		run.addError(dirErr.Error())
	}
	if err != nil {
		return ix.finish(run, OutcomeCancelled, nil)
	}
	run.found = int64(len(enum.Paths))
	logging.Info("scan %s found %d video files", run.id, run.found)

	// Extracting
	ix.setState(StateExtracting)
	ix.publish(run, StateExtracting, "")
	fatal := ix.extractAll(runCtx, run, enum.Paths)

	// Persisting happens even for cancelled runs: work completed so far
	// is kept, only unprocessed files are missing from the store.
	ix.setState(StatePersisting)
	ix.publish(run, StatePersisting, "")
	if err := ix.persist(run); err != nil {
		return ix.finish(run, OutcomeFailed, err)
	}

	if fatal != nil {
		return ix.finish(run, OutcomeFailed, fatal)
	}
	if runCtx.Err() != nil {
		return ix.finish(run, OutcomeCancelled, nil)
	}

	// Reconciling
	ix.setState(StateReconciling)
	ix.publish(run, StateReconciling, "")
	ix.reconcile(run, roots)

	return ix.finish(run, OutcomeCompleted, nil)
}

// extractAll fans the discovered paths out over the worker pool. The
// returned error is non-nil only for run-level failures (the probe
// binary missing entirely); per-item failures are counted in the run.
func (ix *Indexer) extractAll(ctx context.Context, run *run, paths []string) error {
	jobs := make(chan string)
	var wg sync.WaitGroup
	var fatalOnce sync.Once
	var fatal error

	for i := 0; i < ix.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				if ctx.Err() != nil {
					continue
				}
				ix.processOne(ctx, run, path, func(err error) {
					fatalOnce.Do(func() {
						fatal = err
						ix.cancelInFlight()
					})
				})
			}
		}()
	}

	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		jobs <- path
	}
	close(jobs)
	wg.Wait()

	return fatal
}

func (ix *Indexer) processOne(ctx context.Context, run *run, path string, onFatal func(error)) {
	defer ix.publish(run, StateExtracting, path)

	rec, err := ix.extractor.Extract(ctx, path)
	if err != nil {
		if errors.Is(err, probe.ErrToolMissing) {
			// No probe binary means no file can ever succeed.
			logging.Error("probe tool unavailable: %v", err)
			onFatal(err)
			return
		}
		if ctx.Err() != nil {
			return
		}
		logging.Warn("metadata extraction failed for %s: %v", path, err)
		run.failed.Add(1)
		run.addError(err.Error())
		metrics.ScanFilesFailed.Inc()
		return
	}

	// Thumbnail failure never fails the record; it is stored without one.
	if thumbPath, thumbErr := ix.thumbs.Ensure(ctx, path, rec.DurationSeconds); thumbErr != nil {
		logging.Warn("thumbnail generation failed for %s: %v", path, thumbErr)
	} else {
		rec.ThumbnailPath = thumbPath
	}

	rec.ScannedAt = time.Now()
	run.addRecord(*rec)
	run.processed.Add(1)
	metrics.ScanFilesProcessed.Inc()
}

func (ix *Indexer) persist(run *run) error {
	recs := run.records()
	if len(recs) == 0 {
		return nil
	}

	// A cancelled run context must not abort persisting what was done.
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := ix.store.UpsertBatch(ctx, recs); err != nil {
		logging.Error("scan %s failed to persist %d records: %v", run.id, len(recs), err)
		return err
	}
	logging.Info("scan %s persisted %d records", run.id, len(recs))
	return nil
}

func (ix *Indexer) reconcile(run *run, roots []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	missing, err := ix.store.SweepMissing(ctx)
	if err != nil {
		logging.Error("missing-file sweep failed: %v", err)
	}
	excluded, err := ix.store.SweepExcludedRoots(ctx, roots)
	if err != nil {
		logging.Error("excluded-directory sweep failed: %v", err)
	}

	run.tombstonedMissing = missing
	run.tombstonedExcluded = excluded

	active, err := ix.store.ActivePaths(ctx)
	if err != nil {
		logging.Error("thumbnail sweep skipped, cannot list active paths: %v", err)
		return
	}
	run.thumbnailsRemoved = ix.thumbs.Sweep(active)
}

// Reconcile runs only the reconciliation sweeps, without scanning. It is
// invoked when the configured scan roots change. A scan in flight takes
// precedence: its own reconciliation will use the new roots next run.
func (ix *Indexer) Reconcile(ctx context.Context, roots []string) error {
	ix.mu.Lock()
	if ix.state != StateIdle {
		ix.mu.Unlock()
		logging.Info("reconcile skipped, scan in progress")
		return ErrScanInProgress
	}
	ix.state = StateReconciling
	ix.mu.Unlock()

	defer ix.setState(StateIdle)

	if _, err := ix.store.SweepMissing(ctx); err != nil {
		return err
	}
	if _, err := ix.store.SweepExcludedRoots(ctx, roots); err != nil {
		return err
	}
	active, err := ix.store.ActivePaths(ctx)
	if err != nil {
		return err
	}
	ix.thumbs.Sweep(active)
	return nil
}

// Cancel requests cancellation of an in-flight scan, if any.
func (ix *Indexer) Cancel() {
	ix.cancelInFlight()
}

func (ix *Indexer) cancelInFlight() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.cancelRun != nil {
		ix.cancelRun()
	}
}

func (ix *Indexer) setState(s State) {
	ix.mu.Lock()
	ix.state = s
	ix.mu.Unlock()
}

func (ix *Indexer) publish(run *run, state State, currentFile string) {
	p := Progress{
		RunID:          run.id,
		State:          state,
		FilesFound:     run.found,
		FilesProcessed: run.processed.Load(),
		FilesFailed:    run.failed.Load(),
		CurrentFile:    currentFile,
		StartedAt:      run.startedAt,
	}
	ix.setProgress(p)
	if ix.onProgress != nil {
		ix.onProgress(p)
	}
}

func (ix *Indexer) setProgress(p Progress) {
	ix.progressMu.Lock()
	ix.progress = p
	ix.progressMu.Unlock()
}

func (ix *Indexer) finish(run *run, outcome Outcome, err error) (*ScanResult, error) {
	result := run.result(outcome)

	metrics.ScanRunsTotal.WithLabelValues(string(outcome)).Inc()
	metrics.ScanLastRunDuration.Set(result.Duration().Seconds())

	logging.Info("scan %s %s: %d found, %d processed, %d failed in %v",
		run.id, outcome, result.FilesFound, result.FilesProcessed,
		result.FilesFailed, result.Duration().Round(time.Millisecond))
	return result, err
}

// run accumulates the mutable state of one scan.
type run struct {
	id        string
	startedAt time.Time

	found     int64
	processed atomic.Int64
	failed    atomic.Int64

	recMu sync.Mutex
	recs  []store.VideoRecord

	errMu      sync.Mutex
	errs       []string
	errOverrun int

	skippedRoots       []string
	dirsFailed         int
	tombstonedMissing  int
	tombstonedExcluded int
	thumbnailsRemoved  int
}

func newRun(id string, workerHint int) *run {
	return &run{
		id:        id,
		startedAt: time.Now(),
		recs:      make([]store.VideoRecord, 0, workerHint*4),
	}
}

func (r *run) addRecord(rec store.VideoRecord) {
	r.recMu.Lock()
	r.recs = append(r.recs, rec)
	r.recMu.Unlock()
}

func (r *run) records() []store.VideoRecord {
	r.recMu.Lock()
	defer r.recMu.Unlock()
	return r.recs
}

func (r *run) addError(msg string) {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	if len(r.errs) >= maxSampledErrors {
		r.errOverrun++
		return
	}
	r.errs = append(r.errs, msg)
}

func (r *run) result(outcome Outcome) *ScanResult {
	r.errMu.Lock()
	errs := append([]string(nil), r.errs...)
	overrun := r.errOverrun
	r.errMu.Unlock()

	return &ScanResult{
		RunID:              r.id,
		Outcome:            outcome,
		FilesFound:         int(r.found),
		FilesProcessed:     int(r.processed.Load()),
		FilesFailed:        int(r.failed.Load()),
		DirsFailed:         r.dirsFailed,
		Errors:             errs,
		ErrorsOmitted:      overrun,
		SkippedRoots:       r.skippedRoots,
		TombstonedMissing:  r.tombstonedMissing,
		TombstonedExcluded: r.tombstonedExcluded,
		ThumbnailsRemoved:  r.thumbnailsRemoved,
		StartedAt:          r.startedAt,
		FinishedAt:         time.Now(),
	}
}
