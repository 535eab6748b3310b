// Package metrics provides Prometheus metrics for the Aster service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AggregationRunsTotal tracks aggregation runs by trigger and status
	AggregationRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aster",
			Subsystem: "aggregation",
			Name:      "runs_total",
			Help:      "Total number of aggregation runs by trigger and status",
		},
		[]string{"trigger", "status"},
	)

	// AggregationDuration tracks aggregation run duration in seconds
	AggregationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aster",
			Subsystem: "aggregation",
			Name:      "run_duration_seconds",
			Help:      "Duration of aggregation runs in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"trigger"},
	)

	// AggregationSubmissions tracks how many submissions each run consumed
	AggregationSubmissions = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "aster",
			Subsystem: "aggregation",
			Name:      "submissions_per_run",
			Help:      "Number of submissions consumed per aggregation run",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	// StaleServesTotal counts reads answered from a stale snapshot
	StaleServesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "aster",
			Subsystem: "destinations",
			Name:      "stale_serves_total",
			Help:      "Total number of destination reads served from a stale snapshot",
		},
	)

	// RefreshJobsProcessed tracks refresh jobs consumed from the queue
	RefreshJobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aster",
			Subsystem: "refresh",
			Name:      "jobs_processed_total",
			Help:      "Total number of refresh jobs processed from the queue",
		},
		[]string{"status"},
	)

	// RefreshJobsEnqueued tracks refresh jobs placed on the queue
	RefreshJobsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aster",
			Subsystem: "refresh",
			Name:      "jobs_enqueued_total",
			Help:      "Total number of refresh jobs enqueued by outcome",
		},
		[]string{"outcome"},
	)

	// RefreshJobsInFlight tracks refresh jobs currently being processed
	RefreshJobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "aster",
			Subsystem: "refresh",
			Name:      "jobs_in_flight",
			Help:      "Number of refresh jobs currently being processed",
		},
	)

	// KafkaEventsPublished tracks destination events published to Kafka
	KafkaEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aster",
			Subsystem: "kafka",
			Name:      "events_published_total",
			Help:      "Total number of destination events published by type and status",
		},
		[]string{"event_type", "status"},
	)

	// SearchQueriesTotal tracks search queries served
	SearchQueriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "aster",
			Subsystem: "search",
			Name:      "queries_total",
			Help:      "Total number of search queries served",
		},
	)
)
