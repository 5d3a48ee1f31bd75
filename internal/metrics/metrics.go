// Package metrics provides Prometheus metrics for transcript analysis.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	analysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirsize_analyses_total",
			Help: "Total number of transcript analyses by result",
		},
		[]string{"result"},
	)

	analysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dirsize_analysis_duration_seconds",
			Help:    "Time to lex, build, aggregate and query one transcript",
			Buckets: prometheus.DefBuckets,
		},
	)

	treeNodes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dirsize_tree_nodes",
			Help:    "Number of nodes in reconstructed trees",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
	)

	lastRootSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dirsize_last_root_size_bytes",
			Help: "Aggregated root size of the most recent successful analysis",
		},
	)
)

// ObserveAnalysis records a finished analysis. result is "ok" or an error kind.
func ObserveAnalysis(result string, duration time.Duration) {
	analysesTotal.WithLabelValues(result).Inc()
	analysisDuration.Observe(duration.Seconds())
}

// ObserveTree records the shape of a successfully aggregated tree.
func ObserveTree(nodes int, rootSize uint64) {
	treeNodes.Observe(float64(nodes))
	lastRootSize.Set(float64(rootSize))
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
