// Package metrics exposes Prometheus collectors for the queue, the
// capture pipeline and the learner.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsProcessed counts finished jobs by type and final disposition
	// (succeeded, failed, dead).
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "national_treasure",
		Subsystem: "queue",
		Name:      "jobs_processed_total",
		Help:      "Finished jobs by type and disposition.",
	}, []string{"type", "disposition"})

	// JobsClaimed counts successful claims.
	JobsClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "national_treasure",
		Subsystem: "queue",
		Name:      "jobs_claimed_total",
		Help:      "Jobs claimed by workers.",
	})

	// QueueDepth tracks the queue depth by status.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "national_treasure",
		Subsystem: "queue",
		Name:      "depth",
		Help:      "Queue depth by status.",
	}, []string{"queue", "status"})

	// CaptureOutcomes counts recorded outcomes by result and block service.
	CaptureOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "national_treasure",
		Subsystem: "capture",
		Name:      "outcomes_total",
		Help:      "Recorded outcomes by result and block service.",
	}, []string{"result", "service"})

	// CaptureDuration observes end-to-end capture time.
	CaptureDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "national_treasure",
		Subsystem: "capture",
		Name:      "duration_seconds",
		Help:      "End-to-end capture duration.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 9),
	})

	// DriftSignals counts drift detections by signal kind.
	DriftSignals = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "national_treasure",
		Subsystem: "learning",
		Name:      "drift_signals_total",
		Help:      "Drift signals by kind.",
	}, []string{"signal"})
)
