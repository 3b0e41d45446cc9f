package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search and index Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notesearch",
			Name:      "search_requests_total",
			Help:      "Search requests by executed strategy and outcome",
		},
		[]string{"strategy", "status"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "notesearch",
			Name:      "search_duration_seconds",
			Help:      "Search duration in seconds, plan build through formatting",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"strategy"},
	)

	IndexReady = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "notesearch",
			Name:      "index_ready",
			Help:      "1 once a managed index is queryable",
		},
		[]string{"index"},
	)

	BackfillNotesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notesearch",
			Name:      "backfill_notes_total",
			Help:      "Notes processed by the embedding backfill",
		},
		[]string{"result"}, // "embedded" / "failed"
	)
)
