package docindex

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IngestTotal counts AddOrUpdate outcomes.
	// Labels: action (created, updated, unchanged, skipped, error, canceled)
	IngestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tempora",
			Subsystem: "docindex",
			Name:      "ingest_total",
			Help:      "Total number of document ingestions by outcome",
		},
		[]string{"action"},
	)

	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tempora",
			Subsystem: "docindex",
			Name:      "ingest_duration_seconds",
			Help:      "Duration of document ingestions in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	latestlessTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tempora",
			Subsystem: "docindex",
			Name:      "latestless_total",
			Help:      "Ingestions that failed after retiring the previous latest version",
		},
	)

	// ExpiredRemovedTotal counts chunks deleted by expiry sweeps.
	ExpiredRemovedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tempora",
			Subsystem: "docindex",
			Name:      "expired_removed_total",
			Help:      "Total number of expired chunks removed",
		},
	)

	// Chunks is the last observed chunk count per state.
	// Labels: state (total, latest, expired)
	Chunks = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tempora",
			Subsystem: "docindex",
			Name:      "chunks",
			Help:      "Chunk counts as of the last statistics call",
		},
		[]string{"state"},
	)
)

func observeIngest(res *AddResult, err error, start time.Time) {
	action := "error"
	switch {
	case err != nil && isCanceled(err):
		action = "canceled"
	case err != nil:
	case res.Action == ActionSkippedEmpty:
		action = "skipped"
	default:
		action = string(res.Action)
	}
	IngestTotal.WithLabelValues(action).Inc()
	IngestDuration.Observe(time.Since(start).Seconds())
}

func observeStatistics(st *Statistics) {
	Chunks.WithLabelValues("total").Set(float64(st.TotalChunks))
	Chunks.WithLabelValues("latest").Set(float64(st.LatestVersionChunks))
	Chunks.WithLabelValues("expired").Set(float64(st.ExpiredChunks))
}
