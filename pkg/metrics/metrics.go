package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Gmail API call latency in milliseconds.
	ProviderCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gmail_call_latency_ms",
			Help:    "Gmail API call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"operation", "status"},
	)

	// Classifier call latency in milliseconds.
	ClassifierCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "classifier_call_latency_ms",
			Help:    "AI classifier call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"status"},
	)

	// Messages processed by the cleanup pipeline.
	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleanup_messages_processed_total",
			Help: "Total number of messages processed by the cleanup pipeline",
		},
		[]string{"outcome"}, // outcome: deleted, already_gone, failed, skipped
	)

	// Scheduled runs executed.
	RunsExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleanup_runs_total",
			Help: "Total number of scheduled cleanup runs",
		},
		[]string{"status"}, // status: success, failed
	)

	// Token refreshes attempted.
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_refresh_total",
			Help: "Total number of OAuth token refresh attempts",
		},
		[]string{"status"}, // status: success, failed
	)
)

// RecordProviderCall records a Gmail API call latency.
func RecordProviderCall(operation, status string, duration time.Duration) {
	ProviderCallLatency.WithLabelValues(operation, status).Observe(float64(duration.Milliseconds()))
}

// RecordClassifierCall records a classifier call latency.
func RecordClassifierCall(status string, duration time.Duration) {
	ClassifierCallLatency.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

// IncrementMessageProcessed increments the processed message counter.
func IncrementMessageProcessed(outcome string) {
	MessagesProcessed.WithLabelValues(outcome).Inc()
}

// IncrementRunExecuted increments the run counter.
func IncrementRunExecuted(status string) {
	RunsExecuted.WithLabelValues(status).Inc()
}

// IncrementTokenRefresh increments the token refresh counter.
func IncrementTokenRefresh(status string) {
	TokenRefreshes.WithLabelValues(status).Inc()
}
