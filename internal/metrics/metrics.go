// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every collector the service records.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	ProjectOperationsTotal *prometheus.CounterVec
	InvitationsTotal       *prometheus.CounterVec
	RoleCacheLookupsTotal  *prometheus.CounterVec
	NotificationsPublished *prometheus.CounterVec
	RetentionDeletedTotal  prometheus.Counter
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "projecthub_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "projecthub_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		ProjectOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "projecthub_project_operations_total",
				Help: "Project lifecycle operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		InvitationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "projecthub_invitations_total",
				Help: "Invitation events by action",
			},
			[]string{"action"},
		),
		RoleCacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "projecthub_role_cache_lookups_total",
				Help: "Role permission cache lookups",
			},
			[]string{"result"},
		),
		NotificationsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "projecthub_notifications_published_total",
				Help: "Notifications pushed to the realtime channel",
			},
			[]string{"status"},
		),
		RetentionDeletedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "projecthub_retention_deleted_notifications_total",
				Help: "Read notifications removed by the retention job",
			},
		),
	}

	m.registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ProjectOperationsTotal,
		m.InvitationsTotal,
		m.RoleCacheLookupsTotal,
		m.NotificationsPublished,
		m.RetentionDeletedTotal,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveOperation counts one lifecycle operation. A nil receiver is a no-op
// so components can run without metrics in tests.
func (m *Metrics) ObserveOperation(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ProjectOperationsTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ObserveInvitation(action string) {
	if m == nil {
		return
	}
	m.InvitationsTotal.WithLabelValues(action).Inc()
}

func (m *Metrics) ObserveRoleCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.RoleCacheLookupsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObservePublish(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.NotificationsPublished.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveRetention(deleted int64) {
	if m == nil {
		return
	}
	m.RetentionDeletedTotal.Add(float64(deleted))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency keyed by the chi route
// pattern, so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
