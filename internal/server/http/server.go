// Package httpserver provides the HTTP REST API for the book catalog service.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/readshelf/catalog-service/internal/auth"
	"github.com/readshelf/catalog-service/internal/catalog"
	"github.com/readshelf/catalog-service/internal/database"
	"github.com/readshelf/catalog-service/internal/observability"
	"github.com/readshelf/catalog-service/internal/reviews"
)

// Server is the HTTP REST API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	catalog    *catalog.Service
	reviews    *reviews.Service
	verifier   auth.Verifier
	db         *database.DB
	logger     zerolog.Logger
	metrics    *observability.Metrics
	limiter    *ipLimiter

	maxUploadBytes int64
	coversDir      string
	metricsPath    string
	registry       *prometheus.Registry
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	SubmitRatePerSecond float64
	SubmitRateBurst     int

	MaxUploadBytes int64
	CoversDir      string

	MetricsEnabled bool
	MetricsPath    string
}

// NewServer creates a new HTTP server with all dependencies.
func NewServer(
	cfg Config,
	catalogSvc *catalog.Service,
	reviewSvc *reviews.Service,
	verifier auth.Verifier,
	db *database.DB,
	registry *prometheus.Registry,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		catalog:        catalogSvc,
		reviews:        reviewSvc,
		verifier:       verifier,
		db:             db,
		logger:         logger.With().Str("component", "http-server").Logger(),
		metrics:        metrics,
		limiter:        newIPLimiter(cfg.SubmitRatePerSecond, cfg.SubmitRateBurst),
		maxUploadBytes: cfg.MaxUploadBytes,
		coversDir:      cfg.CoversDir,
		registry:       registry,
	}
	if cfg.MetricsEnabled {
		s.metricsPath = cfg.MetricsPath
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Router returns the underlying router, used by tests.
func (s *Server) Router() chi.Router {
	return s.router
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestMetricsMiddleware)
	r.Use(s.identityMiddleware) // resolves Basic credentials when present, never rejects

	// Health endpoints (no auth)
	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	if s.metricsPath != "" {
		r.Method(http.MethodGet, s.metricsPath, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	// Cover images are public static content.
	r.Handle("/covers/*", http.StripPrefix("/covers/", http.FileServer(http.Dir(s.coversDir))))

	r.Route("/api/v1", func(r chi.Router) {
		// Public catalog browsing.
		r.Get("/books", s.searchBooks)
		r.Get("/books/{bookID}", s.getBook)
		r.Get("/books/{bookID}/reviews", s.listBookReviews)
		r.Get("/meta/years", s.listYears)
		r.Get("/meta/genres", s.listGenres)

		// Review submission and the reader's own listing.
		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)
			r.With(s.submitRateLimit).Post("/books/{bookID}/reviews", s.submitReview)
			r.Get("/reviews/my", s.listMyReviews)
		})

		// Moderation queue.
		r.Group(func(r chi.Router) {
			r.Use(s.requireRole(roleModerator, roleAdmin))
			r.Get("/moderation/reviews", s.listPendingReviews)
			r.Post("/moderation/reviews/{reviewID}", s.moderateReview)
		})

		// Catalog administration.
		r.Group(func(r chi.Router) {
			r.Use(s.requireRole(roleAdmin))
			r.Post("/books", s.createBook)
			r.Put("/books/{bookID}", s.updateBook)
			r.Delete("/books/{bookID}", s.deleteBook)
		})
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := s.db.Health(r.Context())
	if health.Status == "healthy" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": health.Status})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"status":   "unhealthy",
		"database": health.Status,
		"error":    health.Error,
	})
}

// readinessHandler returns readiness status.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	health := s.db.Health(r.Context())
	if health.Status != "healthy" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
			"error":    health.Error,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": "healthy",
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	// The status line is already on the wire; an encode failure here cannot
	// change the response, so it is only logged.
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
