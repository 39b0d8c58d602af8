// Package server provides the HTTP API for bouquin.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"bouquin/internal/catalog"
	"bouquin/internal/config"
	"bouquin/internal/covers"
	"bouquin/internal/keyword"
	"bouquin/internal/recommend"
)

// Server is the HTTP server for the bouquin API.
type Server struct {
	store     catalog.Store
	engine    *recommend.Engine
	search    *keyword.Index
	suggester *keyword.Suggester
	covers    *covers.Store
	cfg       *config.Config
	// configPath enables persisting provider switches; empty disables it.
	configPath string
	configMu   sync.Mutex
	logger     *zap.Logger
	server     *http.Server
}

// NewServer creates a server with the given dependencies. suggester and
// coverStore may be nil; the related endpoints degrade gracefully.
func NewServer(
	store catalog.Store,
	engine *recommend.Engine,
	search *keyword.Index,
	suggester *keyword.Suggester,
	coverStore *covers.Store,
	cfg *config.Config,
	configPath string,
	logger *zap.Logger,
) *Server {
	return &Server{
		store:      store,
		engine:     engine,
		search:     search,
		suggester:  suggester,
		covers:     coverStore,
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/books", s.handleBrowse)
		r.Get("/books/{id}", s.handleGetBook)
		r.Get("/books/{id}/cover", s.handleCover)
		r.Get("/search", s.handleSearch)
		r.Get("/stats/{kind}", s.handleStats)
		r.Post("/recommendations/text", s.handleRecommendText)
		r.Get("/recommendations/books/{id}", s.handleRecommendByBook)
		r.Get("/export", s.handleExport)
		r.Get("/config/embedding", s.handleGetEmbeddingConfig)
		r.Put("/config/embedding", s.handlePutEmbeddingConfig)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
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

// requestLogger tags each request with a UUID and logs method, path, status,
// and duration through zap.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)))
	})
}
