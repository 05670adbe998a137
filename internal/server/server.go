// Package server hosts the ClipHub HTTP API: the middleware chain, the
// response envelope, and the health and metrics endpoints. Feature routes
// are supplied by RouteRegistrars.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/HerbHall/cliphub/internal/config"
	"github.com/HerbHall/cliphub/internal/metrics"
	"github.com/HerbHall/cliphub/internal/version"
)

// RouteRegistrar mounts a feature's routes on the mux.
type RouteRegistrar interface {
	RegisterRoutes(mux *http.ServeMux)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Server is the main ClipHub server.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	metrics    *metrics.Metrics
	health     HealthCheck
	handler    http.Handler
}

// Option customizes a Server.
type Option func(*Server)

// WithMetrics exposes m at GET /metrics and records request durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHealthCheck makes GET /api/health report 503 when check fails.
func WithHealthCheck(check HealthCheck) Option {
	return func(s *Server) { s.health = check }
}

// WithRoutes mounts feature routes.
func WithRoutes(regs ...RouteRegistrar) Option {
	return func(s *Server) {
		for _, r := range regs {
			r.RegisterRoutes(s.mux)
		}
	}
}

// New creates a new Server instance.
func New(cfg config.ServerConfig, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		logger: logger,
		mux:    http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerCoreRoutes()

	mws := []Middleware{
		middleware.Recoverer,
		middleware.RealIP,
		RequestID,
		AccessLog(logger, s.metrics),
		SecurityHeaders,
		RateLimit(cfg.RateLimit, cfg.RateBurst),
	}
	if cfg.RequireAJAX {
		mws = append(mws, RequireAJAX)
	}
	mws = append(mws,
		StorageScope(logger),
		Timeout(cfg.WriteTimeout),
		capturePattern,
	)
	s.handler = Chain(s.mux, mws...)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// registerCoreRoutes sets up routes that are always available.
func (s *Server) registerCoreRoutes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

// Start begins serving HTTP requests. It blocks until the server stops.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting HTTP server", zap.String("addr", ln.Addr().String()))
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// handleHealth returns the server health status.
//
//	@Summary		Health check
//	@Description	Report service status and build information.
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	Envelope
//	@Failure		503	{object}	Envelope
//	@Router			/health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-ClipHub-Version", version.Short())
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			WriteError(w, http.StatusServiceUnavailable, "Storage unavailable.")
			return
		}
	}
	WriteSuccess(w, http.StatusOK, map[string]any{
		"service": "cliphub",
		"version": version.Current(),
	})
}
