package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"videoshelf/internal/logging"
	"videoshelf/internal/store"
	"videoshelf/internal/videofmt"
)

// ListVideos handles GET /api/videos with filter, sort, and paging
// query parameters.
func (h *Handlers) ListVideos(w http.ResponseWriter, r *http.Request) {
	opts, err := parseQueryOptions(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.store.Query(r.Context(), opts)
	if err != nil {
		logging.Error("video query failed: %v", err)
		writeJSONError(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, res)
}

// GetVideo handles GET /api/videos/{id}.
func (h *Handlers) GetVideo(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	rec, err := h.store.GetByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSONError(w, "video not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("video lookup failed for %s: %v", id, err)
		writeJSONError(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, rec)
}

// GetThumbnail handles GET /api/thumbnail/{id}, serving the PNG file
// recorded for the video.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	rec, err := h.store.GetByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSONError(w, "video not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("thumbnail lookup failed for %s: %v", id, err)
		writeJSONError(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if rec.ThumbnailPath == "" {
		writeJSONError(w, "no thumbnail for this video", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFile(w, r, rec.ThumbnailPath)
}

func parseQueryOptions(r *http.Request) (store.QueryOptions, error) {
	q := r.URL.Query()
	opts := store.QueryOptions{
		NameContains: q.Get("name"),
		Sort:         store.SortField(q.Get("sort")),
		Order:        store.SortOrder(q.Get("order")),
	}

	var err error
	if opts.MinSize, err = parseInt64Param(q.Get("minSize"), "minSize"); err != nil {
		return opts, err
	}
	if opts.MaxSize, err = parseInt64Param(q.Get("maxSize"), "maxSize"); err != nil {
		return opts, err
	}
	if opts.MinDuration, err = parseFloatParam(q.Get("minDuration"), "minDuration"); err != nil {
		return opts, err
	}
	if opts.MaxDuration, err = parseFloatParam(q.Get("maxDuration"), "maxDuration"); err != nil {
		return opts, err
	}

	if raw := q.Get("format"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			f := videofmt.Format(strings.ToLower(strings.TrimSpace(part)))
			if !f.Valid() {
				return opts, errors.New("unsupported format: " + string(f))
			}
			opts.Formats = append(opts.Formats, f)
		}
	}

	if raw := q.Get("limit"); raw != "" {
		if opts.Limit, err = strconv.Atoi(raw); err != nil {
			return opts, errors.New("limit must be an integer")
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if opts.Offset, err = strconv.Atoi(raw); err != nil {
			return opts, errors.New("offset must be an integer")
		}
	}
	if q.Get("includeTombstoned") == "true" {
		opts.IncludeTombstoned = true
	}

	return opts, nil
}

func parseInt64Param(raw, name string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, errors.New(name + " must be an integer")
	}
	return &v, nil
}

func parseFloatParam(raw, name string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, errors.New(name + " must be a number")
	}
	return &v, nil
}
