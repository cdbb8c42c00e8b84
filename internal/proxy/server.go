// Package proxy implements the backend relay the widget talks to when
// use_backend is enabled. It keeps the provider credential on the server and
// exposes POST /api/gemini and POST /api/upload.
package proxy

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/longkey1/chatassist/pkg/logger"
)

// Config holds the proxy server settings. A zero RateLimitRequests disables
// rate limiting and an empty JWTSecret disables authentication.
type Config struct {
	Addr              string
	GeminiAPIKey      string
	AllowedOrigins    []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	JWTSecret         string
	MaxUploadBytes    int64
	ShutdownTimeout   time.Duration
}

// Server is the relay HTTP server.
type Server struct {
	cfg     Config
	log     *logger.Logger
	handler http.Handler
}

// NewServer wires the routes and middleware for provider.
func NewServer(cfg Config, provider Provider, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.RateLimitWindow == 0 {
		cfg.RateLimitWindow = time.Minute
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"https://*", "http://*"}
	}

	h := NewHandler(provider, cfg.GeminiAPIKey, cfg.MaxUploadBytes, log)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", "X-Correlation-ID"},
		ExposedHeaders: []string{"X-Correlation-ID"},
		MaxAge:         300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", h.Health)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if cfg.JWTSecret != "" {
			r.Use(Auth(cfg.JWTSecret))
		}
		if cfg.RateLimitRequests > 0 {
			r.Use(RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}

		r.Post("/gemini", h.Prompt)
		r.Post("/upload", h.Upload)
	})

	return &Server{cfg: cfg, log: log, handler: r}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is canceled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening",
			zap.String("addr", s.cfg.Addr),
			zap.Bool("auth", s.cfg.JWTSecret != ""),
			zap.Bool("provider_key_set", s.cfg.GeminiAPIKey != ""),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		s.log.Error("server forced to shutdown", zap.Error(err))
		return err
	}

	s.log.Info("server stopped")
	return nil
}
