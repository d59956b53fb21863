// Package metrics exports Prometheus metrics for HTTP traffic and session
// lifecycle events.
//
// Metrics:
//   - http_request_duration_seconds{method,path,status} histogram
//   - http_requests_inflight gauge
//   - http_request_errors_total{method,path,status} counter (4xx/5xx)
//   - session_events_total{event,outcome} counter
//   - guard_denials_total{reason} counter
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"evalgo.org/muxsite/auth"
)

// Metrics holds the collectors of one registry.
type Metrics struct {
	registry    *prometheus.Registry
	reqDuration *prometheus.HistogramVec
	reqInflight prometheus.Gauge
	reqErrors   *prometheus.CounterVec
	events      *prometheus.CounterVec
	denials     *prometheus.CounterVec
}

// New creates the collectors under namespace and registers them, together with
// the Go and process collectors, in a fresh registry.
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		reqDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method", "path", "status"}),
		reqInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_inflight",
			Help:      "HTTP requests currently being served.",
		}),
		reqErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_request_errors_total",
			Help:      "HTTP requests that finished with a 4xx or 5xx status.",
		}, []string{"method", "path", "status"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session lifecycle events by type and outcome.",
		}, []string{"event", "outcome"}),
		denials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_denials_total",
			Help:      "Page guard denials by reason.",
		}, []string{"reason"}),
	}

	m.registry.MustRegister(
		m.reqDuration, m.reqInflight, m.reqErrors, m.events, m.denials,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe counts a lifecycle event. It implements auth.Observer.
func (m *Metrics) Observe(_ context.Context, e auth.Event) {
	outcome := "failure"
	if e.Success {
		outcome = "success"
	}
	if e.Type == auth.EventExpired || e.Type == auth.EventDenied {
		outcome = "n/a"
	}
	m.events.WithLabelValues(string(e.Type), outcome).Inc()

	if e.Type == auth.EventDenied {
		m.denials.WithLabelValues(e.Reason).Inc()
	}
}

// Middleware records request duration, in-flight count and error statuses.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			m.reqInflight.Inc()
			err := next(c)
			m.reqInflight.Dec()

			// Let echo resolve the status of returned errors before reading it
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}
			method := c.Request().Method
			code := strconv.Itoa(status)

			m.reqDuration.WithLabelValues(method, path, code).Observe(time.Since(start).Seconds())
			if status >= 400 {
				m.reqErrors.WithLabelValues(method, path, code).Inc()
			}
			return nil
		}
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
