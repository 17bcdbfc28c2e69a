// Package metrics holds the Prometheus collectors for edugate and the Echo
// middleware that feeds the HTTP ones. Every method is safe on a nil
// *Metrics so packages can run without metrics in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keyxmakerx/edugate/internal/apperror"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	UpstreamRequestsTotal   *prometheus.CounterVec
	UpstreamRequestDuration *prometheus.HistogramVec

	ProxyFallbacksTotal *prometheus.CounterVec
	EdgeRedirectsTotal  *prometheus.CounterVec
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edugate_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "edugate_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		UpstreamRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edugate_upstream_requests_total",
				Help: "Total number of backend calls by outcome",
			},
			[]string{"route", "outcome"},
		),
		UpstreamRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "edugate_upstream_request_duration_seconds",
				Help:    "Backend call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		ProxyFallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edugate_proxy_fallbacks_total",
				Help: "Responses served from a static fallback payload",
			},
			[]string{"route"},
		),
		EdgeRedirectsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edugate_edge_redirects_total",
				Help: "Redirects issued by the edge gate by reason",
			},
			[]string{"reason"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.UpstreamRequestsTotal,
		m.UpstreamRequestDuration,
		m.ProxyFallbacksTotal,
		m.EdgeRedirectsTotal,
	)
	return m
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveUpstream records one backend call.
func (m *Metrics) ObserveUpstream(route, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamRequestsTotal.WithLabelValues(route, outcome).Inc()
	m.UpstreamRequestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveFallback records a degraded response.
func (m *Metrics) ObserveFallback(route string) {
	if m == nil {
		return
	}
	m.ProxyFallbacksTotal.WithLabelValues(route).Inc()
}

// ObserveEdgeRedirect records an edge gate redirect.
func (m *Metrics) ObserveEdgeRedirect(reason string) {
	if m == nil {
		return
	}
	m.EdgeRedirectsTotal.WithLabelValues(reason).Inc()
}

// Middleware records request count and latency per route template, so
// /api/courses/:id is one series no matter the id.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := c.Response().Status
			if err != nil && !c.Response().Committed {
				status = apperror.SafeCode(err)
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			m.HTTPRequestsTotal.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
