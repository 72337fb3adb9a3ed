package spoold

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/spoolworks/spooldoc/jobstore"
)

// Handler returns the HTTP API for the daemon.
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Post("/v1/jobs", s.handleSubmit)
	r.Get("/v1/jobs", s.handleList)
	r.Get("/v1/jobs/{jobID}", s.handleGet)
	r.Get("/v1/jobs/{jobID}/document", s.handleDocument)
	r.Get("/v1/jobs/{jobID}/thumbnail", s.handleThumbnail)

	r.Get("/v1/settings", s.handleSettingsList)
	r.Put("/v1/settings/{key}", s.handleSettingsPut)

	return r
}

// handleSubmit accepts a raw payload in the request body. The optional
// Content-Type header is recorded as the declared format; X-Job-Prop-* headers
// become caller properties on the job.
func (s *Service) handleSubmit(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.Config.MaxJobBytes())
	data, err := io.ReadAll(body)
	if err != nil {
		// Only the size cap maps to 413; anything else (client hung up,
		// truncated body) is a plain bad request.
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrJobTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}

	declared := r.Header.Get("Content-Type")
	if declared == "application/octet-stream" {
		declared = ""
	}

	props := map[string]string{}
	for name, vals := range r.Header {
		if key, ok := strings.CutPrefix(name, "X-Job-Prop-"); ok && len(vals) > 0 {
			props[strings.ToLower(key)] = vals[0]
		}
	}

	jobID, err := s.Submit(r.Context(), data, declared, props)
	switch {
	case errors.Is(err, ErrJobTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	case errors.Is(err, ErrQueueFull):
		// The job is persisted and will be recovered; tell the caller to retry
		// polling rather than resubmitting.
		w.Header().Set("Retry-After", "5")
		writeJSON(w, http.StatusAccepted, map[string]string{"id": jobID, "state": "received"})
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"id": jobID, "state": "received"})
}

func (s *Service) handleList(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	limit := queryInt(r, "limit", 100)

	jobs, err := s.store.ListJobs(r.Context(), state, limit)
	if err != nil {
		writeError(w, 500, err)
		return
	}
	if jobs == nil {
		jobs = []*jobstore.Job{}
	}
	writeJSON(w, 200, jobs)
}

func (s *Service) handleGet(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.GetJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, 500, err)
		return
	}
	if job == nil {
		writeJSON(w, 404, map[string]string{"error": "job not found"})
		return
	}
	writeJSON(w, 200, job)
}

func (s *Service) handleDocument(w http.ResponseWriter, r *http.Request) {
	s.serveJobFile(w, r, func(docPath, thumbPath string) string { return docPath })
}

func (s *Service) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	s.serveJobFile(w, r, func(docPath, thumbPath string) string { return thumbPath })
}

func (s *Service) serveJobFile(w http.ResponseWriter, r *http.Request, pick func(docPath, thumbPath string) string) {
	job, err := s.store.GetJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, 500, err)
		return
	}
	if job == nil {
		writeJSON(w, 404, map[string]string{"error": "job not found"})
		return
	}
	path := pick(job.DocumentPath, job.ThumbnailPath)
	if path == "" {
		writeJSON(w, 404, map[string]string{"error": "file not available"})
		return
	}
	if _, err := os.Stat(path); err != nil {
		writeJSON(w, 404, map[string]string{"error": "file not available"})
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Service) handleSettingsList(w http.ResponseWriter, r *http.Request) {
	all, err := s.settings.All(r.Context())
	if err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, all)
}

func (s *Service) handleSettingsPut(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, err)
		return
	}
	key := chi.URLParam(r, "key")
	if err := s.settings.Set(r.Context(), key, req.Value); err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, map[string]string{"key": key, "value": req.Value})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
