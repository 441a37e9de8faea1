// Package server provides the HTTP API for Seisan.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/seisan/internal/chat"
	"github.com/hyperjump/seisan/internal/config"
	"github.com/hyperjump/seisan/internal/ingest"
	"github.com/hyperjump/seisan/internal/retrieval"
	"github.com/hyperjump/seisan/internal/vector"
)

// Server is the HTTP server for the Seisan API.
type Server struct {
	pipeline *ingest.Pipeline
	chat     *chat.Service
	searcher *retrieval.Searcher
	store    vector.Store
	config   *config.ServerConfig
	// defaultPolicy is used when an analysis request carries no policy document.
	defaultPolicy string
	logger        *zap.Logger
	server        *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	pipeline *ingest.Pipeline,
	chatSvc *chat.Service,
	searcher *retrieval.Searcher,
	store vector.Store,
	cfg *config.ServerConfig,
	defaultPolicy string,
	logger *zap.Logger,
) *Server {
	return &Server{
		pipeline:      pipeline,
		chat:          chatSvc,
		searcher:      searcher,
		store:         store,
		config:        cfg,
		defaultPolicy: defaultPolicy,
		logger:        logger,
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/invoices", s.handleAnalyzeInvoices)
	r.Post("/api/v1/search", s.handleSearch)
	r.Post("/api/v1/chat", s.handleChat)
	r.Get("/api/v1/chat/{session}/history", s.handleChatHistory)
	r.Delete("/api/v1/chat/{session}", s.handleClearChat)
	r.Get("/api/v1/sessions", s.handleSessions)
	r.Get("/api/v1/stats", s.handleStats)
	r.Post("/api/v1/index/clear", s.handleClearIndex)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
