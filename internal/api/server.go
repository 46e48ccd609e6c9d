// Package api exposes screening runs and catalog metadata over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/star/conjscreen/internal/auth"
	"github.com/star/conjscreen/internal/cache"
	"github.com/star/conjscreen/internal/config"
	"github.com/star/conjscreen/internal/health"
	"github.com/star/conjscreen/internal/httputil"
	"github.com/star/conjscreen/internal/metrics"
	"github.com/star/conjscreen/internal/report"
	"github.com/star/conjscreen/internal/screening"
	"github.com/star/conjscreen/internal/tle"
)

// RefreshFunc replaces the catalog in the store and returns the new dataset.
type RefreshFunc func(ctx context.Context) (*tle.TLEDataset, error)

// Deps are the collaborators the handlers use.
type Deps struct {
	Store    *tle.Store
	Engine   *screening.Engine
	RunCache *cache.RunCache // optional
	Tiers    report.Tiers
	Defaults config.Screening
	Refresh  RefreshFunc // nil disables POST /api/v1/catalog/fetch
	Auth     auth.Config

	TrustProxy bool
	// RunTimeout bounds a single screening request.
	RunTimeout time.Duration
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, logger *slog.Logger, deps Deps) *Server {
	if deps.RunTimeout <= 0 {
		deps.RunTimeout = 2 * time.Minute
	}

	// Register routes.
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(deps.Store))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("POST /api/v1/screen", screenHandler(logger, deps))
	mux.HandleFunc("GET /api/v1/catalog", catalogHandler(deps.Store))
	mux.HandleFunc("GET /api/v1/catalog/{norad_id}", catalogObjectHandler(deps.Store))
	mux.HandleFunc("POST /api/v1/catalog/fetch", catalogFetchHandler(logger, deps.Refresh))
	mux.HandleFunc("GET /api/v1/cache/stats", cacheStatsHandler(deps.RunCache))

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(deps.Auth)(handler)
	handler = loggingMiddleware(logger, deps.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      deps.RunTimeout + 10*time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the full middleware chain, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
