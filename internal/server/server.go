package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"rasviz/backend/internal/artifact"
	"rasviz/backend/internal/models"
	"rasviz/backend/internal/scheduler"
)

// Refresher starts a data refresh in the background
type Refresher interface {
	TriggerAsync(ctx context.Context) error
	Running() bool
}

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Options configures the HTTP server
type Options struct {
	Port        int
	CORSOrigins []string
}

// Server serves the frontend artifacts, the latest run report and metrics
type Server struct {
	ctx       context.Context
	store     *artifact.Store
	refresher Refresher
	db        HealthChecker
	started   time.Time
	http      *http.Server
}

// New creates a server. refresher and db may be nil.
func New(ctx context.Context, opts Options, store *artifact.Store, refresher Refresher, db HealthChecker) *Server {
	s := &Server{
		ctx:       ctx,
		store:     store,
		refresher: refresher,
		db:        db,
		started:   time.Now(),
	}
	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      s.Router(opts.CORSOrigins),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Router builds the route table
func (s *Server) Router(origins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/data/{file}", s.data)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/reports/latest", s.latestReport)
		r.Post("/refresh", s.refresh)
	})

	return r
}

// ListenAndServe blocks until the server stops
func (s *Server) ListenAndServe() error {
	log.Info().Str("addr", s.http.Addr).Msg("Starting HTTP server")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains open connections
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status":         "healthy",
		"uptime_seconds": int(time.Since(s.started).Seconds()),
	}
	status := http.StatusOK
	if s.db != nil {
		if err := s.db.Health(r.Context()); err != nil {
			body["status"] = "degraded"
			body["database"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			body["database"] = "ok"
		}
	}
	if s.refresher != nil {
		body["refreshing"] = s.refresher.Running()
	}
	respondJSON(w, status, body)
}

// data serves a frontend artifact by file name
func (s *Server) data(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	for _, k := range artifact.FrontendKinds {
		if k.Path != file {
			continue
		}
		if !s.store.Exists(k) {
			respondError(w, http.StatusNotFound, fmt.Sprintf("%s has not been generated yet", file), nil)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		http.ServeFile(w, r, s.store.Path(k))
		return
	}
	respondError(w, http.StatusNotFound, fmt.Sprintf("unknown artifact %q", file), nil)
}

func (s *Server) latestReport(w http.ResponseWriter, r *http.Request) {
	var report models.RunReport
	if err := s.store.ReadJSON(artifact.RunReportJSON, &report); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			respondError(w, http.StatusNotFound, "no run has completed yet", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to read run report", err)
		return
	}
	respondJSON(w, http.StatusOK, &report)
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		respondError(w, http.StatusServiceUnavailable, "scheduler is disabled", nil)
		return
	}
	if err := s.refresher.TriggerAsync(s.ctx); err != nil {
		if errors.Is(err, scheduler.ErrBusy) {
			respondError(w, http.StatusConflict, "refresh already running", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to start refresh", err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	resp := errorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	}
	if err != nil {
		resp.Details = err.Error()
	}
	respondJSON(w, status, resp)
}
