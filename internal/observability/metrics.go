package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/odyssey-erp/warehouse-console/internal/authz"
)

// Metrics collects Prometheus metrics for the console.
type Metrics struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	routeDecisions   *prometheus.CounterVec
	deauthorizations prometheus.Counter
	backendCalls     *prometheus.CounterVec
}

// NewMetrics builds the registry and registers every console metric.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "console_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "console_http_request_duration_seconds",
		Help:    "HTTP request latency per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "console_route_decisions_total",
		Help: "Route guard outcomes.",
	}, []string{"decision"})
	deauth := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "console_deauthorizations_total",
		Help: "Sessions discarded after the backend rejected credentials.",
	})
	backend := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "console_backend_calls_total",
		Help: "Backend calls by collection and outcome.",
	}, []string{"collection", "outcome"})
	registry.MustRegister(requests, duration, decisions, deauth, backend)
	for _, d := range []authz.RouteDecision{authz.Render, authz.RedirectLogin, authz.RedirectLanding} {
		decisions.WithLabelValues(d.String())
	}
	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:    requests,
		requestDuration:  duration,
		routeDecisions:   decisions,
		deauthorizations: deauth,
		backendCalls:     backend,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveRouteDecision counts a route guard outcome.
func (m *Metrics) ObserveRouteDecision(d authz.RouteDecision) {
	if m == nil {
		return
	}
	m.routeDecisions.WithLabelValues(d.String()).Inc()
}

// ObserveDeauthorization counts a discarded session.
func (m *Metrics) ObserveDeauthorization() {
	if m == nil {
		return
	}
	m.deauthorizations.Inc()
}

// ObserveBackendCall counts a backend call; outcome is "ok" or an error class.
func (m *Metrics) ObserveBackendCall(collection, outcome string) {
	if m == nil {
		return
	}
	m.backendCalls.WithLabelValues(collection, outcome).Inc()
}

// Registerer exposes the registry for custom metrics.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
