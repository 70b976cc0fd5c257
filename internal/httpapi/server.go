// Package httpapi exposes the translation job API and the internal tick
// endpoint over HTTP.
package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"doc-translator/internal/jobs"
	"doc-translator/internal/logger"
	"doc-translator/internal/queue"
	"doc-translator/internal/store"
)

// Server serves the job API. The tick endpoint is disabled until a secret
// is configured.
type Server struct {
	svc            *jobs.Service
	proc           *queue.Processor
	tickSecret     string
	maxUploadBytes int64
}

func NewServer(svc *jobs.Service, proc *queue.Processor, tickSecret string, maxUploadBytes int64) *Server {
	return &Server{
		svc:            svc,
		proc:           proc,
		tickSecret:     tickSecret,
		maxUploadBytes: maxUploadBytes,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs", s.handleCreate)
	mux.HandleFunc("GET /jobs/{id}", s.handleGet)
	mux.HandleFunc("GET /jobs/{id}/result", s.handleResult)
	mux.HandleFunc("DELETE /jobs/{id}", s.handleDelete)
	mux.HandleFunc("POST /jobs/{id}/resubmit", s.handleResubmit)
	mux.HandleFunc("POST /internal/tick", s.handleTick)
	return mux
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	// Form overhead on top of the document itself.
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(s.maxUploadBytes + 1<<20); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid multipart request: %w", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("missing file field"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("failed to read upload: %w", err))
		return
	}

	job, err := s.svc.Create(r.Context(), jobs.CreateRequest{
		OwnerID:    r.Header.Get("X-Owner-ID"),
		Filename:   header.Filename,
		Data:       data,
		SourceLang: r.FormValue("source_lang"),
		TargetLang: r.FormValue("target_lang"),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":     job.ID,
		"method": job.Method,
		"status": job.Status,
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	job, err := s.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	data, filename, contentType, err := s.svc.Result(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logger.Warn("failed to write result response", logger.Err(err))
	}
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResubmit(w http.ResponseWriter, r *http.Request) {
	job, err := s.svc.Resubmit(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleTick runs at most one queue tick. Callers authenticate with the
// shared tick secret.
func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	if s.tickSecret == "" {
		writeError(w, http.StatusServiceUnavailable, errors.New("tick endpoint is not configured"))
		return
	}
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.tickSecret)) != 1 {
		writeError(w, http.StatusUnauthorized, errors.New("invalid tick token"))
		return
	}

	result := s.proc.Tick(r.Context())
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response", logger.Err(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeServiceError maps service errors onto HTTP status codes. A job whose
// result does not exist yet is reported as 404, same as a missing job.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, jobs.ErrNotReady):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, jobs.ErrNotFailed):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, jobs.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err)
	case errors.Is(err, jobs.ErrUnsupportedType),
		errors.Is(err, jobs.ErrEmptyDocument),
		errors.Is(err, jobs.ErrInvalidLanguage):
		writeError(w, http.StatusBadRequest, err)
	default:
		logger.Error("request failed", err)
		writeError(w, http.StatusInternalServerError, err)
	}
}
