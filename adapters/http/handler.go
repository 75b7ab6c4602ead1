// Package http serves the emulated gateway surface over HTTP: the
// catch-all route handler backed by the gateway service, plus the
// operational endpoints living outside the route table.
package http

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/samgate/adapters/metrics"
	"github.com/artpar/samgate/app"
)

// ReservedPrefix namespaces the operational endpoints. Template routes
// never serve under it, whatever the template declares.
const ReservedPrefix = "/_samgate/"

// maxBodyBytes caps the request body read for one invocation event.
const maxBodyBytes = 10 << 20

// GatewayHandler adapts HTTP requests into gateway service calls.
type GatewayHandler struct {
	service *app.GatewayService
	logger  zerolog.Logger
	metrics *metrics.Collector
}

// NewGatewayHandler creates a new gateway handler.
func NewGatewayHandler(service *app.GatewayService, logger zerolog.Logger) *GatewayHandler {
	return &GatewayHandler{service: service, logger: logger}
}

// NewGatewayHandlerWithMetrics creates a new gateway handler that records
// request and invocation metrics.
func NewGatewayHandlerWithMetrics(service *app.GatewayService, logger zerolog.Logger, m *metrics.Collector) *GatewayHandler {
	return &GatewayHandler{service: service, logger: logger, metrics: m}
}

// ServeHTTP handles one gateway request end to end.
func (h *GatewayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			h.logger.Error().Err(err).Msg("read request body")
			writeJSONError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	if h.metrics != nil {
		h.metrics.RequestsInFlight.Inc()
		defer h.metrics.RequestsInFlight.Dec()
	}

	start := time.Now()
	res := h.service.Handle(ctx, r, body)
	elapsed := time.Since(start)

	h.record(r, res, elapsed)
	h.logResult(r, res, elapsed)

	header := w.Header()
	for k, vs := range res.Response.Header {
		header[k] = vs
	}
	w.WriteHeader(res.Response.StatusCode)
	if len(res.Response.Body) > 0 {
		w.Write(res.Response.Body)
	}
}

func (h *GatewayHandler) record(r *http.Request, res app.HandleResult, elapsed time.Duration) {
	if h.metrics == nil {
		return
	}
	pattern := ""
	if res.Route != nil {
		pattern = res.Route.Pattern
	}
	route := metrics.RouteLabel(pattern)
	status := strconv.Itoa(res.Response.StatusCode)

	h.metrics.RequestsTotal.WithLabelValues(r.Method, route, status).Inc()
	h.metrics.RequestDuration.WithLabelValues(r.Method, route, status).Observe(elapsed.Seconds())
	if res.AuthFailed {
		h.metrics.AuthFailures.WithLabelValues(res.AuthProvider).Inc()
	}
	if res.FailureReason != "" {
		h.metrics.InvocationErrors.WithLabelValues(res.FailureReason).Inc()
	}
	if res.Route != nil && res.FailureReason == "" && !res.AuthFailed {
		h.metrics.InvocationDuration.WithLabelValues(route).Observe(res.InvokeDuration.Seconds())
	}
}

func (h *GatewayHandler) logResult(r *http.Request, res app.HandleResult, elapsed time.Duration) {
	var ev *zerolog.Event
	switch {
	case res.FailureReason != "":
		ev = h.logger.Error().Str("reason", res.FailureReason)
	case res.AuthFailed:
		ev = h.logger.Warn().Str("provider", res.AuthProvider)
	default:
		ev = h.logger.Debug()
	}
	if res.Err != nil {
		ev = ev.Err(res.Err)
	}
	if res.Route != nil {
		ev = ev.Str("route", res.Route.Pattern).Str("handler", res.Route.HandlerRef)
	}
	ev.Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", res.Response.StatusCode).
		Dur("duration", elapsed).
		Msg("gateway request")
}

// writeJSONError writes a canned JSON error body in the gateway's shape.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"message":` + strconv.Quote(message) + `}`))
}
