package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Job metrics
	JobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_runs_total",
			Help: "Total number of background job runs",
		},
		[]string{"job", "result"}, // ok, error, skipped
	)
	JobRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "job_run_duration_seconds",
			Help:    "Background job run duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"job"},
	)

	// Business metrics
	SequenceStepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sequence_steps_total",
			Help: "Total number of executed sequence steps",
		},
		[]string{"channel", "status"}, // sent, failed, skipped
	)
	EnrollmentsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sequence_enrollments_completed_total",
		Help: "Total number of enrollments that reached the end of their sequence",
	})
	LifecycleEmailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_emails_total",
			Help: "Total number of lifecycle emails attempted",
		},
		[]string{"template", "status"}, // sent, failed
	)
)

// Job results
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// Middleware records request count and latency per route pattern.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := strconv.Itoa(c.Response().StatusCode())
		// fiber reuses request buffers; label values must be copies
		path := utils.CopyString(c.Route().Path)
		method := utils.CopyString(c.Method())

		HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())

		return err
	}
}

// RecordJobRun records the outcome and duration of one job run.
func RecordJobRun(job, result string, duration time.Duration) {
	JobRunsTotal.WithLabelValues(job, result).Inc()
	JobRunDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// RecordSequenceStep increments the executed steps counter
func RecordSequenceStep(channel, status string) {
	SequenceStepsTotal.WithLabelValues(channel, status).Inc()
}

// RecordEnrollmentCompleted increments the completed enrollments counter
func RecordEnrollmentCompleted() {
	EnrollmentsCompletedTotal.Inc()
}

// RecordLifecycleEmail increments the lifecycle emails counter
func RecordLifecycleEmail(template, status string) {
	LifecycleEmailsTotal.WithLabelValues(template, status).Inc()
}
