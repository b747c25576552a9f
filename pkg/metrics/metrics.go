package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Mutation metrics
	MutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jamdb_mutations_total",
			Help: "Total number of committed mutations by operation",
		},
		[]string{"operation"},
	)

	MutationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jamdb_mutation_duration_seconds",
			Help:    "Mutation duration in seconds by operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	MutationsRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jamdb_mutations_rejected_total",
			Help: "Total number of mutations rejected before any log was appended",
		},
		[]string{"operation", "reason"},
	)

	// Blob metrics
	BlobsWrittenTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "jamdb_blobs_written_total",
			Help: "Total number of blob create calls",
		},
	)

	// Replay metrics
	RegenerationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jamdb_regeneration_duration_seconds",
			Help:    "Time taken to rebuild state from the log in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RegenerationReplayedLogs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jamdb_regeneration_replayed_logs",
			Help:    "Number of log entries replayed past the snapshot per regeneration",
			Buckets: []float64{0, 1, 10, 100, 1000, 10000, 100000},
		},
	)

	SnapshotsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "jamdb_snapshots_total",
			Help: "Total number of snapshots taken",
		},
	)

	SnapshotSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jamdb_snapshot_documents",
			Help:    "Number of live documents captured per snapshot",
			Buckets: []float64{0, 1, 10, 100, 1000, 10000, 100000},
		},
	)
)

func init() {
	prometheus.MustRegister(MutationsTotal)
	prometheus.MustRegister(MutationDuration)
	prometheus.MustRegister(MutationsRejectedTotal)
	prometheus.MustRegister(BlobsWrittenTotal)
	prometheus.MustRegister(RegenerationDuration)
	prometheus.MustRegister(RegenerationReplayedLogs)
	prometheus.MustRegister(SnapshotsTotal)
	prometheus.MustRegister(SnapshotSize)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram with labels
func (t *Timer) ObserveDurationVec(vec *prometheus.HistogramVec, labels ...string) {
	vec.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}
