package handlers

import (
	"net/http"
	"runtime"

	"videoshelf/internal/indexer"
	"videoshelf/internal/logging"
	"videoshelf/internal/version"
)

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Scanning bool   `json:"scanning"`

	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// Healthz reports liveness. The process serving the request is alive,
// so this always answers 200 with some introspection attached.
func (h *Handlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, HealthResponse{
		Status:       "healthy",
		Version:      version.Version,
		Scanning:     h.indexer.State() != indexer.StateIdle,
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	})
}

// Readyz reports readiness: the record store must be reachable.
func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.Stats(r.Context()); err != nil {
		logging.Error("readiness probe failed: %v", err)
		writeJSONError(w, "record store unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]string{"status": "ready"})
}

// GetStats handles GET /api/stats.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		logging.Error("stats query failed: %v", err)
		writeJSONError(w, "stats unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

// GetVersion handles GET /api/version.
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{
		"version":   version.Version,
		"commit":    version.Commit,
		"goVersion": runtime.Version(),
	})
}
