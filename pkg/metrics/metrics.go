package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ComponentsTotal tracks live components by kind (scheduler, stager,
	// worker, agent, ...).
	ComponentsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pilot_components_total",
			Help: "Number of live components by kind",
		},
		[]string{"kind"},
	)

	// ItemsAdvancedTotal counts advanced items (one per item per advance()
	// call) by item type and new state.
	ItemsAdvancedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pilot_items_advanced_total",
			Help: "Total number of items advanced, by item type and resulting state",
		},
		[]string{"type", "state"},
	)

	// ItemsFailedTotal counts items a worker bulk failed on.
	ItemsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pilot_items_failed_total",
			Help: "Total number of items advanced to FAILED after a worker panic or error",
		},
		[]string{"component"},
	)

	// ItemsCanceledTotal counts items drained out of a bucket by the
	// cancel set before the worker saw them.
	ItemsCanceledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pilot_items_canceled_total",
			Help: "Total number of items advanced to CANCELED by the cancel set",
		},
		[]string{"component"},
	)

	// WorkDuration times a single worker invocation (one bucket).
	WorkDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pilot_work_duration_seconds",
			Help:    "Time taken by one worker invocation over one bucket",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"component", "state"},
	)

	// QueueDepth is a point-in-time sample of items waiting in a queue
	// bridge, set by the in-process queue on every Push and Pop.
	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pilot_queue_depth",
			Help: "Last observed number of items buffered in a queue bridge",
		},
		[]string{"queue"},
	)

	// HeartbeatAgeSeconds is how long since a component last saw a
	// heartbeat from its configured heart.
	HeartbeatAgeSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pilot_heartbeat_age_seconds",
			Help: "Seconds since the last heartbeat seen from this component's heart",
		},
		[]string{"component"},
	)

	// HeartbeatTimeoutsTotal counts components that self-terminated on a
	// heartbeat timeout.
	HeartbeatTimeoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pilot_heartbeat_timeouts_total",
			Help: "Total number of components that exited due to heartbeat timeout",
		},
		[]string{"component"},
	)

	// SubscriberFirstMissTotal counts publishes observed to have occurred
	// before any subscriber had registered (the first-subscriber race
	// described in the pub/sub bridge contract); incremented by the
	// in-process pub/sub on every publish that finds no subscriber.
	SubscriberFirstMissTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pilot_pubsub_first_subscriber_miss_total",
			Help: "Total number of publishes observed with zero active subscribers",
		},
		[]string{"channel"},
	)
)

func init() {
	prometheus.MustRegister(
		ComponentsTotal,
		ItemsAdvancedTotal,
		ItemsFailedTotal,
		ItemsCanceledTotal,
		WorkDuration,
		QueueDepth,
		HeartbeatAgeSeconds,
		HeartbeatTimeoutsTotal,
		SubscriberFirstMissTotal,
	)
}

// Handler returns the Prometheus HTTP handler for a session's admin
// surface.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed duration to a histogram vec with
// labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
