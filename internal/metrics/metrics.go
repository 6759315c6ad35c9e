// Package metrics exposes the prometheus counters/histograms C5/C6 emit,
// scoped to job pipeline concerns rather than the full streaming-server
// surface other example repos instrument.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	JobsProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "worker",
		Name:      "jobs_processed_total",
		Help:      "Total jobs processed, by final status (completed, failed, cancelled).",
	}, []string{"status"})

	JobDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "worker",
		Name:      "job_duration_seconds",
		Help:      "Wall-clock duration of a processed job, from dequeue to terminal status.",
		Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1800},
	})

	SegmentRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "worker",
		Name:      "segment_retries_total",
		Help:      "Total job-level failures that went through the retry policy (one per failed job attempt; per-segment retries are not counted).",
	})

	SegmentFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "worker",
		Name:      "segment_failures_total",
		Help:      "Total failed job attempts, by the classification kind of the failure (one per failed attempt, not per segment).",
	}, []string{"kind"})

	HeaderStrategyUsedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "worker",
		Name:      "header_strategy_used_total",
		Help:      "Total segment downloads that succeeded under each header strategy.",
	}, []string{"strategy"})

	MuxerReencodeFallbackTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "worker",
		Name:      "muxer_reencode_fallback_total",
		Help:      "Total merges that fell back to a full re-encode after stream-copy failed.",
	})

	QueueWaitSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "worker",
		Name:      "queue_wait_seconds",
		Help:      "Time a job id spent queued before a worker picked it up.",
		Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 300},
	})

	ActiveJobs = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "worker",
		Name:      "active_jobs",
		Help:      "Number of jobs currently being processed by this worker.",
	})
)

// Register attaches every collector above to reg. Call once at startup
// with the default registry or a dedicated one wired into the admin
// /metrics endpoint.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		JobsProcessedTotal,
		JobDuration,
		SegmentRetriesTotal,
		SegmentFailuresTotal,
		HeaderStrategyUsedTotal,
		MuxerReencodeFallbackTotal,
		QueueWaitSeconds,
		ActiveJobs,
	)
}
