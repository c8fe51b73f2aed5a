// Package metrics provides Prometheus metrics for the roast backend.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains the backend's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec   // method, path, status_code
	httpRequestDuration *prometheus.HistogramVec // method, path

	recordsCreatedTotal   prometheus.Counter
	sessionsCreatedTotal  prometheus.Counter
	snapshotsCreatedTotal prometheus.Counter
	nearTargetTotal       prometheus.Counter
	notificationsTotal    *prometheus.CounterVec // status: sent, expired, error, dropped
}

// New creates the metrics and registers them with registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register roast metrics: %w", err)
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roast_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)
	m.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "roast_http_request_duration_seconds",
			Help:    "Time taken for HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	m.recordsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roast_detection_records_created_total",
		Help: "Total number of detection records stored",
	})
	m.sessionsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roast_monitor_sessions_created_total",
		Help: "Total number of monitor sessions started",
	})
	m.snapshotsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roast_monitor_snapshots_created_total",
		Help: "Total number of monitor snapshots stored",
	})
	m.nearTargetTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roast_near_target_events_total",
		Help: "Total number of snapshots that landed near their session target",
	})
	m.notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roast_push_notifications_total",
			Help: "Push notification attempts by outcome",
		},
		[]string{"status"},
	)
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.httpRequestsTotal.Describe(ch)
	m.httpRequestDuration.Describe(ch)
	m.recordsCreatedTotal.Describe(ch)
	m.sessionsCreatedTotal.Describe(ch)
	m.snapshotsCreatedTotal.Describe(ch)
	m.nearTargetTotal.Describe(ch)
	m.notificationsTotal.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.httpRequestsTotal.Collect(ch)
	m.httpRequestDuration.Collect(ch)
	m.recordsCreatedTotal.Collect(ch)
	m.sessionsCreatedTotal.Collect(ch)
	m.snapshotsCreatedTotal.Collect(ch)
	m.nearTargetTotal.Collect(ch)
	m.notificationsTotal.Collect(ch)
}

// RecordCreated counts a stored detection record.
func (m *Metrics) RecordCreated() {
	if m == nil {
		return
	}
	m.recordsCreatedTotal.Inc()
}

// SessionCreated counts a started monitor session.
func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreatedTotal.Inc()
}

// SnapshotCreated counts a stored snapshot and whether it was near target.
func (m *Metrics) SnapshotCreated(nearTarget bool) {
	if m == nil {
		return
	}
	m.snapshotsCreatedTotal.Inc()
	if nearTarget {
		m.nearTargetTotal.Inc()
	}
}

// Notification counts a push notification outcome.
func (m *Metrics) Notification(status string) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(status).Inc()
}

// Middleware records request counts and latency per route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
