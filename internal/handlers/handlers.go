// Package handlers implements the HTTP API: library queries, thumbnail
// delivery, scan control, and health endpoints.
package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"videoshelf/internal/indexer"
	"videoshelf/internal/store"
)

// RootsFunc supplies the current scan roots. Indirect because the
// configuration can be reloaded while the server runs.
type RootsFunc func() []string

type Handlers struct {
	store   *store.Store
	indexer *indexer.Indexer
	roots   RootsFunc
}

func New(st *store.Store, ix *indexer.Indexer, roots RootsFunc) *Handlers {
	return &Handlers{
		store:   st,
		indexer: ix,
		roots:   roots,
	}
}

// Register wires all API routes onto the router.
func (h *Handlers) Register(r *mux.Router) {
	r.HandleFunc("/api/videos", h.ListVideos).Methods(http.MethodGet)
	r.HandleFunc("/api/videos/{id}", h.GetVideo).Methods(http.MethodGet)
	r.HandleFunc("/api/thumbnail/{id}", h.GetThumbnail).Methods(http.MethodGet)
	r.HandleFunc("/api/scan", h.TriggerScan).Methods(http.MethodPost)
	r.HandleFunc("/api/scan/progress", h.ScanProgress).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", h.GetStats).Methods(http.MethodGet)
	r.HandleFunc("/api/version", h.GetVersion).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", h.Readyz).Methods(http.MethodGet)
}
