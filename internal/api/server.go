// Package api exposes the operational HTTP surface of a running harvest:
// health, Prometheus metrics, and a JSON status snapshot.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hojonavi/hojokin-harvester/internal/metrics"
	"github.com/hojonavi/hojokin-harvester/internal/models"
)

// StatusSnapshot is what /status reports about the current run.
type StatusSnapshot struct {
	Running    bool              `json:"running"`
	QueueDepth int               `json:"queue_depth"`
	Stats      models.CrawlStats `json:"stats"`
}

// StatusSource provides the live snapshot. The CLI adapts the crawler
// engine to it.
type StatusSource interface {
	Snapshot() StatusSnapshot
}

// Server wires the status endpoints to a StatusSource.
type Server struct {
	router chi.Router
	source StatusSource
	logger *zap.Logger
	srv    *http.Server
}

// NewServer constructs a Server with middleware and routes.
func NewServer(source StatusSource, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{source: source, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/status", s.status)

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr in a background goroutine until Shutdown.
func (s *Server) Start(addr string) {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		s.logger.Info("status server listening", zap.String("addr", addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server failed", zap.Error(err))
		}
	}()
}

// Shutdown stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.source.Snapshot())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("writing response", zap.Error(err))
	}
}
