package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

// RouterConfig selects the optional operational surfaces.
type RouterConfig struct {
	// Docs serves the resolved API document and the interactive UI under
	// the reserved namespace.
	Docs bool

	// MetricsPath exposes Prometheus metrics at the given path; empty
	// disables the endpoint.
	MetricsPath string

	// MetricsHandler overrides the default promhttp handler, for scoped
	// registries.
	MetricsHandler http.Handler

	// Timeout is the per-request ceiling. Zero uses the default.
	Timeout time.Duration
}

// NewRouter assembles the serving mux: operational endpoints declared
// explicitly, every other path falling through to the gateway handler.
func NewRouter(gateway *GatewayHandler, health *HealthHandler, logger zerolog.Logger, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	r.Use(middleware.Timeout(timeout))

	r.Get("/healthz", health.Liveness)
	r.Get("/healthz/ready", health.Readiness)

	if cfg.MetricsPath != "" {
		if cfg.MetricsHandler != nil {
			r.Handle(cfg.MetricsPath, cfg.MetricsHandler)
		} else {
			r.Handle(cfg.MetricsPath, promhttp.Handler())
		}
	}

	if cfg.Docs {
		r.Get(ReservedPrefix+"openapi.json", gateway.OpenAPIDocument)
		r.Get(ReservedPrefix+"docs/*", httpSwagger.Handler(
			httpSwagger.URL(ReservedPrefix+"openapi.json"),
		))
	}

	// Everything else is the emulated gateway. The reserved namespace
	// stays reserved even for paths nothing above claimed.
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		if strings.HasPrefix(req.URL.Path, ReservedPrefix) {
			writeJSONError(w, http.StatusNotFound, "Not Found")
			return
		}
		gateway.ServeHTTP(w, req)
	})

	return r
}

// NewLoggingMiddleware logs each request at debug level, skipping the
// operational endpoints.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if strings.HasPrefix(r.URL.Path, "/healthz") || r.URL.Path == "/metrics" ||
				strings.HasPrefix(r.URL.Path, ReservedPrefix) {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
