// Package metrics provides Prometheus metrics for the review engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Session metrics
	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swiper_decisions_total",
			Help: "Total review decisions by action",
		},
		[]string{"action"},
	)

	sessionEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swiper_session_events_total",
			Help: "Total session events published",
		},
		[]string{"type"},
	)

	eventSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "swiper_event_subscribers",
			Help: "Number of active session event subscribers",
		},
	)

	queueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "swiper_queue_length",
			Help: "Number of entries in the loaded review queue",
		},
	)

	spaceSavedMB = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "swiper_space_saved_megabytes",
			Help: "Space moved to the trash in the current session",
		},
	)

	decodeFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "swiper_decode_failures_total",
			Help: "Candidates skipped because their payload could not be decoded",
		},
	)

	// Date cache metrics
	dateLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swiper_datecache_lookups_total",
			Help: "Capture date lookups by result",
		},
		[]string{"result"},
	)

	cacheStoreErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swiper_datecache_store_errors_total",
			Help: "Durable date cache errors by operation",
		},
		[]string{"op"},
	)

	// Scan metrics
	scanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "swiper_scan_duration_seconds",
			Help:    "Time to enumerate candidate files under a root",
			Buckets: prometheus.DefBuckets,
		},
	)

	scanFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "swiper_scan_files",
			Help: "Candidate files found by the last scan",
		},
	)

	// Trash metrics
	trashOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swiper_trash_operations_total",
			Help: "Trash operations by op and status",
		},
		[]string{"op", "status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordDecision records a review action (keep, next, previous, delete, undo).
func RecordDecision(action string) {
	decisionsTotal.WithLabelValues(action).Inc()
}

// RecordSessionEvent records a session event publication.
func RecordSessionEvent(eventType string) {
	sessionEventsTotal.WithLabelValues(eventType).Inc()
}

// SetEventSubscribers sets the number of event subscribers.
func SetEventSubscribers(count int) {
	eventSubscribers.Set(float64(count))
}

// SetQueueLength sets the length of the loaded queue.
func SetQueueLength(n int) {
	queueLength.Set(float64(n))
}

// SetSpaceSaved sets the session's space-saved figure.
func SetSpaceSaved(mb float64) {
	spaceSavedMB.Set(mb)
}

// RecordDecodeFailure records a candidate skipped for a decode failure.
func RecordDecodeFailure() {
	decodeFailuresTotal.Inc()
}

// RecordDateLookup records how a capture date lookup was served.
func RecordDateLookup(result string) {
	dateLookupsTotal.WithLabelValues(result).Inc()
}

// RecordCacheStoreError records a durable cache failure.
func RecordCacheStoreError(op string) {
	cacheStoreErrorsTotal.WithLabelValues(op).Inc()
}

// RecordScan records a completed scan.
func RecordScan(duration time.Duration, files int) {
	scanDuration.Observe(duration.Seconds())
	scanFiles.Set(float64(files))
}

// RecordTrashOperation records a trash remove/restore.
func RecordTrashOperation(op string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	trashOperationsTotal.WithLabelValues(op, status).Inc()
}
