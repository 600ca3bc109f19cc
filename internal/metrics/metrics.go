// Package metrics holds the Prometheus collectors shared by the API and worker services.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Job outcomes
const (
	OutcomeCompleted = "completed"
	OutcomeRetried   = "retried"
	OutcomeFailed    = "failed"
)

// Metrics bundles every collector. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
	JobsEnqueued      *prometheus.CounterVec
	JobsProcessed     *prometheus.CounterVec
	JobDuration       *prometheus.HistogramVec
	JobsRecovered     *prometheus.CounterVec
	QueueJobs         *prometheus.GaugeVec
	WebhookDeliveries *prometheus.CounterVec
	WebhookLatency    *prometheus.HistogramVec
}

// New creates the collectors and registers them on a dedicated registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
			[]string{"method", "path", "status"},
		),
		JobsEnqueued: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "jobs_enqueued_total", Help: "Jobs enqueued by queue and type."},
			[]string{"queue", "job_type"},
		),
		JobsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "jobs_processed_total", Help: "Job attempts by queue and outcome."},
			[]string{"queue", "outcome"},
		),
		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "job_duration_seconds", Help: "Handler run time in seconds.", Buckets: prometheus.DefBuckets},
			[]string{"queue"},
		),
		JobsRecovered: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "jobs_stalled_total", Help: "Jobs recovered after their worker stopped heartbeating."},
			[]string{"queue"},
		),
		QueueJobs: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "queue_jobs", Help: "Jobs per queue and state."},
			[]string{"queue", "state"},
		),
		WebhookDeliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
			[]string{"event_type", "status"},
		),
		WebhookLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
			[]string{"event_type", "status"},
		),
	}

	m.registry.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.JobsEnqueued,
		m.JobsProcessed,
		m.JobDuration,
		m.JobsRecovered,
		m.QueueJobs,
		m.WebhookDeliveries,
		m.WebhookLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) JobEnqueued(queue, jobType string) {
	if m == nil {
		return
	}
	m.JobsEnqueued.WithLabelValues(queue, jobType).Inc()
}

func (m *Metrics) JobProcessed(queue, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.JobsProcessed.WithLabelValues(queue, outcome).Inc()
	m.JobDuration.WithLabelValues(queue).Observe(elapsed.Seconds())
}

func (m *Metrics) JobsStalled(queue string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.JobsRecovered.WithLabelValues(queue).Add(float64(n))
}

func (m *Metrics) SetQueueJobs(queue, state string, n int) {
	if m == nil {
		return
	}
	m.QueueJobs.WithLabelValues(queue, state).Set(float64(n))
}

// WebhookDelivered records one delivery attempt
func (m *Metrics) WebhookDelivered(eventType string, success bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	m.WebhookDeliveries.WithLabelValues(eventType, status).Inc()
	m.WebhookLatency.WithLabelValues(eventType, status).Observe(float64(elapsed.Milliseconds()))
}

// GinMiddleware records request counts and durations by route template
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.HTTPRequests.WithLabelValues(c.Request.Method, path, status).Inc()
		m.HTTPDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}
