package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	accumulateCandidates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "knowpool_accumulate_candidates_total",
		Help: "Accumulation candidates by outcome",
	}, []string{"result"})

	rankDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "knowpool_rank_duration_seconds",
		Help:    "Ranking latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
	}, []string{"scope"})

	contextChars = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "knowpool_context_chars",
		Help:    "Length of assembled context blocks in characters",
		Buckets: []float64{0, 250, 500, 1000, 2000, 4000, 8000},
	})

	accumulationJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "knowpool_accumulation_jobs_total",
		Help: "Queued accumulation jobs by final status",
	}, []string{"status"})
)

// RecordCandidate counts one accumulation candidate by result ("written" or "failed").
func RecordCandidate(result string) {
	accumulateCandidates.WithLabelValues(result).Inc()
}

// ObserveRank records the latency of a ranking call.
func ObserveRank(scope string, d time.Duration) {
	rankDuration.WithLabelValues(scope).Observe(d.Seconds())
}

// ObserveContextChars records the size of a context block.
func ObserveContextChars(n int) {
	contextChars.Observe(float64(n))
}

// RecordJob counts a processed accumulation job.
func RecordJob(status string) {
	accumulationJobs.WithLabelValues(status).Inc()
}
