package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce                sync.Once
	evaluationsTotal            *prometheus.CounterVec
	evaluationDurationSeconds   *prometheus.HistogramVec
	scoringLatencySeconds       prometheus.Histogram
	scoringFailuresTotal        *prometheus.CounterVec
	notificationsPublishedTotal *prometheus.CounterVec
	notificationClientsActive   prometheus.Gauge
	uploadsRejectedTotal        *prometheus.CounterVec
	tasksEnqueuedTotal          *prometheus.CounterVec
	rateLimitRejectionsTotal    *prometheus.CounterVec
	httpRequestsTotal           *prometheus.CounterVec
	httpLatencySeconds          *prometheus.HistogramVec
)

// RegisterMetrics initialises the Prometheus collectors for the evaluation pipeline.
func RegisterMetrics() {
	registerOnce.Do(func() {
		evaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autoeval_evaluations_total",
			Help: "Total number of sheet evaluations by sheet type and outcome.",
		}, []string{"sheet_type", "status"})

		evaluationDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "autoeval_evaluation_duration_seconds",
			Help:    "Duration of a full single-subject evaluation.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"sheet_type"})

		scoringLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "autoeval_scoring_latency_seconds",
			Help:    "Latency of semantic comparison calls per question.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		})

		scoringFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autoeval_scoring_failures_total",
			Help: "Scoring service failures by kind.",
		}, []string{"kind"})

		notificationsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autoeval_notifications_published_total",
			Help: "Events published to teacher channels by event type.",
		}, []string{"type"})

		notificationClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "autoeval_notification_clients_active",
			Help: "Currently connected notification stream clients.",
		})

		uploadsRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autoeval_uploads_rejected_total",
			Help: "Answer sheet uploads rejected during validation, by reason.",
		}, []string{"reason"})

		tasksEnqueuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autoeval_tasks_enqueued_total",
			Help: "Background tasks enqueued by task type.",
		}, []string{"task"})

		rateLimitRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autoeval_rate_limit_rejections_total",
			Help: "Requests rejected by the task cooldown limiter, by task type.",
		}, []string{"task"})

		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autoeval_http_requests_total",
			Help: "API requests by method, route template and status.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "autoeval_http_latency_seconds",
			Help:    "API request latency by method and route template.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"})

		prometheus.MustRegister(
			evaluationsTotal,
			evaluationDurationSeconds,
			scoringLatencySeconds,
			scoringFailuresTotal,
			notificationsPublishedTotal,
			notificationClientsActive,
			uploadsRejectedTotal,
			tasksEnqueuedTotal,
			rateLimitRejectionsTotal,
			httpRequestsTotal,
			httpLatencySeconds,
		)
	})
}

// EvaluationsTotal exposes the evaluation outcome counter.
func EvaluationsTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return evaluationsTotal
}

// EvaluationDuration exposes the evaluation duration histogram.
func EvaluationDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return evaluationDurationSeconds
}

// ScoringLatency exposes the per-question scoring latency histogram.
func ScoringLatency() prometheus.Histogram {
	RegisterMetrics()
	return scoringLatencySeconds
}

// ScoringFailures exposes the scoring failure counter.
func ScoringFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return scoringFailuresTotal
}

// NotificationsPublishedTotal exposes the published event counter.
func NotificationsPublishedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsPublishedTotal
}

// NotificationClientsActive exposes the connected stream client gauge.
func NotificationClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return notificationClientsActive
}

// UploadsRejected exposes the upload rejection counter.
func UploadsRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadsRejectedTotal
}

// TasksEnqueued exposes the enqueued task counter.
func TasksEnqueued() *prometheus.CounterVec {
	RegisterMetrics()
	return tasksEnqueuedTotal
}

// RateLimitRejections exposes the cooldown rejection counter.
func RateLimitRejections() *prometheus.CounterVec {
	RegisterMetrics()
	return rateLimitRejectionsTotal
}

// HTTPRequests exposes the API request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the API request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}
