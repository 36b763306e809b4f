// Package httpapi exposes summarization, feed, user, and run endpoints over gin.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"CivicScanner/internal/domain"
	"CivicScanner/internal/logging"
	"CivicScanner/internal/metrics"
	"CivicScanner/internal/ports"
	"CivicScanner/internal/usecase"
)

const (
	serviceName           = "civic-scanner"
	defaultMaxUploadBytes = 25 << 20
	defaultShutdown       = 10 * time.Second
)

// Pipeline is the subset of the use case the handlers drive.
type Pipeline interface {
	Run(ctx context.Context, req usecase.RunRequest) []domain.RunResult
	ProcessURL(ctx context.Context, url, userID string) (domain.SummaryResult, domain.CivicDocument, error)
	ProcessText(ctx context.Context, text, label, userID string) (domain.SummaryResult, domain.CivicDocument, error)
	ProcessUpload(ctx context.Context, data []byte, filename, contentType, userID string) (domain.SummaryResult, domain.CivicDocument, error)
}

// Deps wires the handlers.
type Deps struct {
	Pipeline       Pipeline
	Feed           ports.FeedRepository
	Users          ports.UserRepository
	Seeds          ports.SeedResolver
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
	MaxUploadBytes int64
}

// Server owns the gin engine and its http.Server.
type Server struct {
	router          *gin.Engine
	server          *http.Server
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

// NewServer builds the router with recovery, request-id, logging, and CORS middleware.
func NewServer(addr string, shutdownTimeout time.Duration, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = defaultMaxUploadBytes
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdown
	}

	router := gin.New()
	router.Use(RecoveryMiddleware(deps.Logger))
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(deps.Logger))
	router.Use(CORSMiddleware())

	h := &handlers{deps: deps}
	h.register(router)

	return &Server{
		router: router,
		server: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger:          deps.Logger,
		shutdownTimeout: shutdownTimeout,
	}
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}
