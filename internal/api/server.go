// Package api provides the REST API over parsed weather reports and the
// airport reference data.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/N129BZ/stratuxmap/internal/airport"
	"github.com/N129BZ/stratuxmap/internal/logger"
	"github.com/N129BZ/stratuxmap/internal/observability"
	"github.com/N129BZ/stratuxmap/internal/registry"
	"github.com/N129BZ/stratuxmap/internal/storage"
)

// LatestStore returns the latest report of each type for a station.
type LatestStore interface {
	GetLatest(ctx context.Context, station string) ([]storage.Record, error)
}

// HistoryStore returns archived reports.
type HistoryStore interface {
	History(ctx context.Context, q storage.HistoryQuery) ([]storage.Record, error)
}

// AirportIndex resolves single airports and searches by area.
type AirportIndex interface {
	airport.Lookup
	InBox(ctx context.Context, box airport.BoundingBox) ([]airport.Info, error)
}

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Config holds configuration for the API server.
type Config struct {
	Host               string
	Port               int
	AuthEnabled        bool
	APIKeys            []string // List of valid API keys.
	CORSAllowedOrigins []string // Empty allows any origin.
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
}

// Deps are the server's collaborators. Only Registry is required; routes
// whose collaborator is nil answer 503.
type Deps struct {
	Registry *registry.Registry
	Latest   LatestStore
	History  HistoryStore
	Airports AirportIndex
	Ready    ReadinessChecker
	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer // Defaults to the global registry.
	Logger   *logger.Logger
}

// Server provides REST API access to parsed reports.
type Server struct {
	cfg     Config
	deps    Deps
	apiKeys map[string]bool
	origins map[string]bool
	log     *logger.Logger
}

// NewServer creates a new API server.
func NewServer(cfg Config, deps Deps) *Server {
	keys := make(map[string]bool)
	for _, k := range cfg.APIKeys {
		if k != "" {
			keys[k] = true
		}
	}
	origins := make(map[string]bool)
	for _, o := range cfg.CORSAllowedOrigins {
		if o != "" && o != "*" {
			origins[o] = true
		}
	}

	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	return &Server{
		cfg:     cfg,
		deps:    deps,
		apiKeys: keys,
		origins: origins,
		log:     log.Named("api"),
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)),
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api listening",
			logger.String("addr", srv.Addr),
			logger.Bool("auth", s.cfg.AuthEnabled))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve api: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown api: %w", err)
	}
	return nil
}

// Router returns the configured chi router.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	// Standard middleware.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// CORS for the browser map.
	r.Use(s.corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Probes stay open when auth is enabled.
		r.Get("/health", s.handleHealth)
		r.Get("/ready", s.handleReady)

		r.Group(func(r chi.Router) {
			if s.cfg.AuthEnabled {
				r.Use(s.authMiddleware)
			}
			r.Post("/parse", s.handleParse)
			r.Get("/reports/{station}", s.handleLatest)
			r.Get("/reports/{station}/history", s.handleHistory)
		})
	})

	// Airport endpoints keep the paths the map client already calls.
	r.Get("/airport", s.handleAirport)
	r.Get("/airportlist", s.handleAirportList)

	r.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))

	return r
}

// requestLogger logs each request and counts it by route pattern.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		if s.deps.Metrics != nil {
			s.deps.Metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		}
		s.log.Debug("request",
			logger.String("method", r.Method),
			logger.String("route", route),
			logger.Int("status", status),
			logger.Duration("elapsed", time.Since(start)),
			logger.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// corsMiddleware adds CORS headers for browser access.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := "*"
		if len(s.origins) > 0 {
			origin = r.Header.Get("Origin")
			if !s.origins[origin] {
				origin = ""
			}
			w.Header().Add("Vary", "Origin")
		}
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates API key authentication.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check X-API-Key header first.
		apiKey := r.Header.Get("X-API-Key")

		// Fall back to Authorization: Bearer <key>.
		if apiKey == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				apiKey = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		// Fall back to query parameter (for simple testing).
		if apiKey == "" {
			apiKey = r.URL.Query().Get("api_key")
		}

		if apiKey == "" {
			writeError(w, http.StatusUnauthorized, "API key required")
			return
		}

		if !s.apiKeys[apiKey] {
			writeError(w, http.StatusForbidden, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Helper functions.

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
