package observability

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce               sync.Once
	httpRequestsTotal          *prometheus.CounterVec
	httpLatencySeconds         *prometheus.HistogramVec
	submissionTransitionsTotal *prometheus.CounterVec
	gradingTasksTotal          *prometheus.CounterVec
	notificationsSuppressed    prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		submissionTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "submission_transitions_total",
			Help: "Total number of submission lifecycle transitions attempted.",
		}, []string{"event", "outcome"})

		gradingTasksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_tasks_total",
			Help: "Total number of grading tasks by resolution status.",
		}, []string{"status"})

		notificationsSuppressed = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notifications_suppressed_total",
			Help: "Submission notifications suppressed for non-student roles.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			submissionTransitionsTotal,
			gradingTasksTotal,
			notificationsSuppressed,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// SubmissionTransitions exposes the transition counter.
func SubmissionTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionTransitionsTotal
}

// GradingTasks exposes the grading task counter.
func GradingTasks() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingTasksTotal
}

// NotificationsSuppressed exposes the suppression counter.
func NotificationsSuppressed() prometheus.Counter {
	RegisterMetrics()
	return notificationsSuppressed
}

// MetricsHandler exposes the Prometheus scrape endpoint via Fiber.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.Handler())
}
