// Package metrics provides Prometheus metrics collection for samgate.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for samgate.
type Collector struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Auth metrics
	AuthFailures *prometheus.CounterVec

	// Invocation metrics
	InvocationDuration *prometheus.HistogramVec
	InvocationErrors   *prometheus.CounterVec

	// Template metrics
	TemplateReloads    *prometheus.CounterVec
	TemplateLastReload prometheus.Gauge
	RoutesActive       prometheus.Gauge
}

// New creates a new metrics collector with all metrics registered.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		// Request metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "samgate",
				Name:      "requests_total",
				Help:      "Total number of requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "samgate",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route", "status"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "samgate",
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),

		// Auth metrics
		AuthFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "samgate",
				Name:      "auth_failures_total",
				Help:      "Total number of authentication failures",
			},
			[]string{"provider"},
		),

		// Invocation metrics
		InvocationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "samgate",
				Name:      "invocation_duration_seconds",
				Help:      "Handler invocation duration in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"route"},
		),
		InvocationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "samgate",
				Name:      "invocation_errors_total",
				Help:      "Total number of handler invocation failures",
			},
			[]string{"reason"},
		),

		// Template metrics
		TemplateReloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "samgate",
				Name:      "template_reloads_total",
				Help:      "Total number of template pipeline runs",
			},
			[]string{"outcome"},
		),
		TemplateLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "samgate",
				Name:      "template_last_reload_timestamp",
				Help:      "Unix timestamp of last successful template build",
			},
		),
		RoutesActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "samgate",
				Name:      "routes_active",
				Help:      "Number of routes in the serving table",
			},
		),
	}
}

// RouteLabel reduces cardinality by labeling requests with the matched
// route pattern instead of the raw path. Unmatched requests collapse to a
// single label value.
func RouteLabel(pattern string) string {
	if pattern == "" {
		return "unmatched"
	}
	if len(pattern) > 50 {
		return pattern[:50] + "..."
	}
	return pattern
}
