package handlers

import (
	"context"
	"errors"
	"net/http"

	"videoshelf/internal/indexer"
	"videoshelf/internal/logging"
)

// TriggerScan handles POST /api/scan. The scan runs in the background;
// a request while one is in flight cancels it and reports conflict.
func (h *Handlers) TriggerScan(w http.ResponseWriter, r *http.Request) {
	if h.indexer.State() != indexer.StateIdle {
		h.indexer.Cancel()
		writeJSONError(w, "scan already in progress, cancellation requested", http.StatusConflict)
		return
	}

	roots := h.roots()
	go func() {
		res, err := h.indexer.Scan(context.Background(), roots)
		if errors.Is(err, indexer.ErrScanInProgress) {
			return
		}
		if err != nil {
			logging.Error("requested scan failed: %v", err)
			return
		}
		logging.Debug("requested scan %s finished: %s", res.RunID, res.Outcome)
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{"status": "started"})
}

// ScanProgress handles GET /api/scan/progress.
func (h *Handlers) ScanProgress(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.indexer.Progress())
}
