// Package server is the HTTP surface over the pipeline service.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/inkwell-ai/inkwell/pkg/extract"
	"github.com/inkwell-ai/inkwell/pkg/pipeline"
)

// maxUploadBytes bounds a single ingest body.
const maxUploadBytes = 64 << 20

// Server exposes ingest, stats and health endpoints.
type Server struct {
	logger   *log.Logger
	pipeline *pipeline.Service
	registry *prometheus.Registry
}

func New(logger *log.Logger, pipelineService *pipeline.Service, registry *prometheus.Registry) *Server {
	return &Server{
		logger:   logger,
		pipeline: pipelineService,
		registry: registry,
	}
}

// Router builds the chi mux with CORS, matching the service layout the
// rest of the stack expects.
func (s *Server) Router() *chi.Mux {
	router := chi.NewRouter()
	router.Use(cors.New(cors.Options{
		AllowCredentials: true,
		AllowedOrigins:   []string{"*"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Accept"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
	}).Handler)

	router.Post("/ingest", s.handleIngest)
	router.Post("/ingest/batch", s.handleBatchIngest)
	router.Post("/reingest/{id}", s.handleReingest)
	router.Get("/stats", s.handleStats)
	router.Get("/healthz", s.handleHealthz)
	router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return router
}

// handleIngest accepts one document, multipart ("file" field) or raw
// body, and waits for the pipeline result.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	raw, err := readDocument(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.pipeline.Ingest(r.Context(), raw)
	if err != nil {
		if errors.Is(err, pipeline.ErrQueueFull) {
			s.writeError(w, http.StatusTooManyRequests, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleBatchIngest accepts a multipart form with any number of files
// and queues them without waiting.
func (s *Server) handleBatchIngest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	var raws []extract.RawDocument
	for _, headers := range r.MultipartForm.File {
		for _, header := range headers {
			f, err := header.Open()
			if err != nil {
				s.writeError(w, http.StatusBadRequest, err)
				return
			}
			content, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
			_ = f.Close()
			if err != nil {
				s.writeError(w, http.StatusBadRequest, err)
				return
			}
			raws = append(raws, extract.RawDocument{
				Content:      content,
				Filename:     header.Filename,
				DeclaredType: header.Header.Get("Content-Type"),
			})
		}
	}
	if len(raws) == 0 {
		s.writeError(w, http.StatusBadRequest, errors.New("no files in request"))
		return
	}

	accepted, rejected := s.pipeline.BatchIngest(r.Context(), raws)
	status := http.StatusAccepted
	if rejected > 0 {
		status = http.StatusTooManyRequests
	}
	s.writeJSON(w, status, map[string]any{
		"accepted": accepted,
		"rejected": rejected,
	})
}

// handleReingest re-runs a known document with triage bypassed. The
// body carries the document bytes.
func (s *Server) handleReingest(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "id")
	if docID == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("missing document id"))
		return
	}

	raw, err := readDocument(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.pipeline.Reingest(r.Context(), docID, raw)
	if err != nil {
		if errors.Is(err, pipeline.ErrQueueFull) {
			s.writeError(w, http.StatusTooManyRequests, err)
			return
		}
		s.writeError(w, http.StatusNotFound, err)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.pipeline.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readDocument pulls the document from a multipart "file" field or the
// raw request body.
func readDocument(r *http.Request) (extract.RawDocument, error) {
	contentType := r.Header.Get("Content-Type")

	if f, header, err := r.FormFile("file"); err == nil {
		defer func() {
			_ = f.Close()
		}()
		content, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
		if err != nil {
			return extract.RawDocument{}, err
		}
		return extract.RawDocument{
			Content:      content,
			Filename:     header.Filename,
			DeclaredType: header.Header.Get("Content-Type"),
		}, nil
	}

	content, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		return extract.RawDocument{}, err
	}
	if len(content) == 0 {
		return extract.RawDocument{}, errors.New("empty request body")
	}
	return extract.RawDocument{
		Content:      content,
		Filename:     r.URL.Query().Get("filename"),
		DeclaredType: contentType,
	}, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("writing response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
