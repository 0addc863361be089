// Package server exposes the ingest, index, search and answer operations
// over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/phuslu/log"

	"pdfqa/config"
	"pdfqa/internal/adapter/worker"
	"pdfqa/internal/domain"
	"pdfqa/internal/usecase"
)

// Uploader ingests one PDF.
type Uploader interface {
	Upload(ctx context.Context, req usecase.UploadRequest) (*domain.UploadResult, error)
}

// IndexBuilder builds a document's vector index.
type IndexBuilder interface {
	Build(ctx context.Context, docID string, progress usecase.ProgressFunc) (*domain.IndexBuildStats, error)
}

// Searcher runs similarity search over one document.
type Searcher interface {
	Search(ctx context.Context, docID, query string, k int) (*domain.SearchResponse, error)
}

// Answerer composes a cited answer from search results.
type Answerer interface {
	Answer(ctx context.Context, question string, results []domain.SearchResult) (*domain.Answer, error)
}

// Deps are the operations served over HTTP.
type Deps struct {
	Ingest   Uploader
	Index    IndexBuilder
	Retrieve Searcher
	Answer   Answerer
}

// Server manages the HTTP server and routes
type Server struct {
	deps     Deps
	cfg      config.ServerConfig
	topK     int
	pool     *worker.Pool
	validate *validator.Validate
	logger   *log.Logger
	router   *http.ServeMux
	server   *http.Server
}

// New creates a new HTTP server. topK is the default k for search requests
// that do not set one.
func New(deps Deps, cfg config.ServerConfig, topK int, logger *log.Logger) *Server {
	s := &Server{
		deps:     deps,
		cfg:      cfg,
		topK:     topK,
		pool:     worker.NewPool(cfg.Workers),
		validate: validator.New(),
		logger:   logger,
	}

	s.router = s.setupRoutes()

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Handler returns the routed handler wrapped in middleware.
func (s *Server) Handler() http.Handler {
	return s.withMiddleware(s.router)
}

// Start listens until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info().
		Str("address", s.cfg.Addr).
		Int("workers", s.pool.Size()).
		Msg("HTTP server starting")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server...")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info().Msg("HTTP server stopped")
	return nil
}
