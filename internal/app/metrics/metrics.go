package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	governorAdmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "client_layer",
			Subsystem: "governor",
			Name:      "admitted_total",
			Help:      "Requests admitted immediately by the request governor.",
		},
		[]string{"endpoint"},
	)

	governorQueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "client_layer",
			Subsystem: "governor",
			Name:      "queued_total",
			Help:      "Requests deferred to the per-endpoint queue.",
		},
		[]string{"endpoint"},
	)

	governorQueueWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "client_layer",
			Subsystem: "governor",
			Name:      "queue_wait_seconds",
			Help:      "Time queued requests spent waiting for their turn.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"endpoint"},
	)

	notificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "client_layer",
			Subsystem: "notify",
			Name:      "notifications_total",
			Help:      "Order status notifications handed to the notifier.",
		},
		[]string{"status"},
	)

	realtimeEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "client_layer",
			Subsystem: "realtime",
			Name:      "events_total",
			Help:      "Realtime change-feed events received.",
		},
		[]string{"table", "event"},
	)

	reviewPolls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "client_layer",
			Subsystem: "reviews",
			Name:      "polls_total",
			Help:      "Pending-review reconciliation runs.",
		},
		[]string{"trigger"},
	)
)

func init() {
	Registry.MustRegister(
		governorAdmitted,
		governorQueued,
		governorQueueWait,
		notificationsSent,
		realtimeEvents,
		reviewPolls,
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered collectors.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordAdmission records an immediately admitted governor request.
func RecordAdmission(endpoint string) {
	governorAdmitted.WithLabelValues(endpoint).Inc()
}

// RecordQueued records a governor request deferred to the queue.
func RecordQueued(endpoint string) {
	governorQueued.WithLabelValues(endpoint).Inc()
}

// RecordQueueWait records how long a queued request waited before executing.
func RecordQueueWait(endpoint string, wait time.Duration) {
	if wait < 0 {
		wait = 0
	}
	governorQueueWait.WithLabelValues(endpoint).Observe(wait.Seconds())
}

// RecordNotification records a status notification handed to the notifier.
func RecordNotification(status string) {
	notificationsSent.WithLabelValues(status).Inc()
}

// RecordRealtimeEvent records a received change-feed event.
func RecordRealtimeEvent(table, event string) {
	realtimeEvents.WithLabelValues(table, event).Inc()
}

// RecordReviewPoll records one pending-review reconciliation run.
func RecordReviewPoll(trigger string) {
	reviewPolls.WithLabelValues(trigger).Inc()
}
