package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	defaultCollector *MetricsCollector
	once             sync.Once
)

// GetMetricsCollector returns the singleton metrics collector instance.
func GetMetricsCollector(namespace, appName string) *MetricsCollector {
	once.Do(func() {
		defaultCollector = NewMetricsCollector(namespace, appName)
	})
	return defaultCollector
}

type MetricsCollector struct {
	AppName         string
	RequestDuration *prometheus.HistogramVec
	RequestCounter  *prometheus.CounterVec
	ErrorCounter    *prometheus.CounterVec
	ActiveRequests  prometheus.Gauge
	AuditQueueSize  prometheus.Gauge
	AuditDropped    prometheus.Counter
	AuditBatchSave  *prometheus.HistogramVec
}

func NewMetricsCollector(namespace, appName string) *MetricsCollector {
	return &MetricsCollector{
		AppName: appName,
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"app", "method", "api_id", "status"},
		),

		RequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of requests",
			},
			[]string{"app", "method", "api_id", "status"},
		),

		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors by category",
			},
			[]string{"app", "type"},
		),

		ActiveRequests: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_requests",
				Help:      "Number of active requests",
				ConstLabels: prometheus.Labels{
					"app": appName,
				},
			},
		),

		AuditQueueSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "audit_queue_size",
				Help:      "Current depth of the audit log queue",
				ConstLabels: prometheus.Labels{
					"app": appName,
				},
			},
		),

		AuditDropped: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_dropped_total",
				Help:      "Audit records dropped because the queue was full",
				ConstLabels: prometheus.Labels{
					"app": appName,
				},
			},
		),

		AuditBatchSave: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "audit_batch_save_seconds",
				Help:      "Audit batch persistence duration in seconds",
				Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"app", "store"},
		),
	}
}

func (m *MetricsCollector) IncActiveRequests() {
	m.ActiveRequests.Inc()
}

func (m *MetricsCollector) DecActiveRequests() {
	m.ActiveRequests.Dec()
}

// IncRequestCounter increments the request counter with given labels.
func (m *MetricsCollector) IncRequestCounter(method, apiID, status string) {
	m.RequestCounter.With(prometheus.Labels{
		"app":    m.AppName,
		"method": method,
		"api_id": apiID,
		"status": status,
	}).Inc()
}

// ObserveRequestDuration observes the request duration.
func (m *MetricsCollector) ObserveRequestDuration(method, apiID, status string, duration time.Duration) {
	m.RequestDuration.With(prometheus.Labels{
		"app":    m.AppName,
		"method": method,
		"api_id": apiID,
		"status": status,
	}).Observe(duration.Seconds())
}

// LogError counts an error by category (RouteNotFound, Forbidden, ...).
func (m *MetricsCollector) LogError(errorType string) {
	m.ErrorCounter.With(prometheus.Labels{
		"app":  m.AppName,
		"type": errorType,
	}).Inc()
}

func (m *MetricsCollector) ObserveAuditQueueSize(size float64) {
	m.AuditQueueSize.Set(size)
}

func (m *MetricsCollector) IncAuditDropped() {
	m.AuditDropped.Inc()
}

func (m *MetricsCollector) ObserveAuditBatchSave(store string, duration time.Duration) {
	m.AuditBatchSave.With(prometheus.Labels{
		"app":   m.AppName,
		"store": store,
	}).Observe(duration.Seconds())
}
