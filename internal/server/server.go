// Package server provides the HTTP API for Kakusu.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/kakusu/internal/anonymizer"
	"github.com/hyperjump/kakusu/internal/config"
	"github.com/hyperjump/kakusu/internal/metrics"
	"go.uber.org/zap"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 32 << 20

// Server is the HTTP server for the Kakusu API.
type Server struct {
	service *anonymizer.Service
	config  *config.Config
	metrics *metrics.Metrics
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server with the given dependencies. m may be nil.
func NewServer(svc *anonymizer.Service, cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		service: svc,
		config:  cfg,
		metrics: m,
		logger:  logger,
	}
}

// Router returns the API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/extract", s.handleExtract)
		r.Post("/anonymize", s.handleAnonymize)
		r.Post("/preview", s.handlePreview)
		r.Post("/reverse", s.handleReverse)
		r.Delete("/checkpoints/{key}", s.handleResetCheckpoint)
	})
	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
