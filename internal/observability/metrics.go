package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the book catalog service,
// organized by subsystem: searches, reviews, moderation, and covers.
type Metrics struct {
	// SearchesTotal counts catalog searches, labeled by whether any filter was applied.
	SearchesTotal *prometheus.CounterVec

	// SearchDuration observes catalog search duration in seconds.
	SearchDuration prometheus.Histogram

	// SearchResults observes the distribution of total matches per search.
	SearchResults prometheus.Histogram

	// ReviewsSubmitted counts review submissions that were accepted.
	ReviewsSubmitted prometheus.Counter

	// ReviewsRejectedDuplicate counts submissions refused as duplicates,
	// including races caught by the storage constraint.
	ReviewsRejectedDuplicate prometheus.Counter

	// ModerationDecisions counts moderation decisions, labeled by action.
	ModerationDecisions *prometheus.CounterVec

	// CoverRemovalFailures counts best-effort cover file removals that failed.
	CoverRemovalFailures prometheus.Counter

	// HTTPRequestDuration observes HTTP request duration in seconds,
	// labeled by method, route pattern, and status code.
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance registered with reg.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SearchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Total number of catalog searches",
		}, []string{"filtered"}),
		SearchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of catalog searches in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		SearchResults: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Total matching books per search",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		ReviewsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reviews_submitted_total",
			Help:      "Total number of accepted review submissions",
		}),
		ReviewsRejectedDuplicate: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reviews_rejected_duplicate_total",
			Help:      "Total number of review submissions refused as duplicates",
		}),
		ModerationDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moderation_decisions_total",
			Help:      "Total number of moderation decisions by action",
		}, []string{"action"}),
		CoverRemovalFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cover_removal_failures_total",
			Help:      "Total number of failed best-effort cover file removals",
		}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}
