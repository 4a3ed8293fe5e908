package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels successful operations.
	OutcomeSuccess = "success"
	// OutcomeError labels failed operations.
	OutcomeError = "error"
)

var (
	cacheRefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "graph_rca",
			Name:      "cache_refreshes_total",
			Help:      "Graph snapshot refreshes, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	cacheRefreshSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "graph_rca",
			Name:      "cache_refresh_seconds",
			Help:      "Graph snapshot refresh latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	graphNodes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "graph_rca",
		Name:      "graph_nodes",
		Help:      "Node count of the published graph snapshot.",
	})

	graphEdges = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "graph_rca",
		Name:      "graph_edges",
		Help:      "Edge count of the published graph snapshot.",
	})

	cacheLastRefresh = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "graph_rca",
		Name:      "cache_last_refresh_timestamp_seconds",
		Help:      "Unix time of the last successful graph snapshot refresh; snapshot age is time() minus this.",
	})

	analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "graph_rca",
			Name:      "analyses_total",
			Help:      "Root-cause analyses performed, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	analysisSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "graph_rca",
			Name:      "analysis_seconds",
			Help:      "Root-cause analysis latency in seconds.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	correlationBufferSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "graph_rca",
		Name:      "correlation_buffer_events",
		Help:      "Anomaly events currently buffered in the correlation window.",
	})

	gcDeletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "graph_rca",
			Name:      "gc_deleted_nodes_total",
			Help:      "Expired nodes deleted by the garbage collector, per category.",
		},
		[]string{"category"},
	)

	gcRunSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "graph_rca",
			Name:      "gc_run_seconds",
			Help:      "Garbage collection run duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
		},
	)
)

// Register attaches graph-rca collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		cacheRefreshesTotal,
		cacheRefreshSeconds,
		graphNodes,
		graphEdges,
		cacheLastRefresh,
		analysesTotal,
		analysisSeconds,
		correlationBufferSize,
		gcDeletedTotal,
		gcRunSeconds,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveCacheRefresh records a refresh attempt and its latency.
func ObserveCacheRefresh(duration time.Duration, outcome string) {
	if outcome != OutcomeError {
		outcome = OutcomeSuccess
	}
	cacheRefreshesTotal.WithLabelValues(outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	cacheRefreshSeconds.Observe(duration.Seconds())
}

// SetGraphSize publishes the size of the current snapshot.
func SetGraphSize(nodes, edges int) {
	graphNodes.Set(float64(nodes))
	graphEdges.Set(float64(edges))
}

// SetCacheLastRefresh publishes the time of the last successful refresh.
func SetCacheLastRefresh(at time.Time) {
	cacheLastRefresh.Set(float64(at.Unix()))
}

// ObserveAnalysis records a root-cause analysis and its latency.
func ObserveAnalysis(duration time.Duration, outcome string) {
	if outcome != OutcomeError {
		outcome = OutcomeSuccess
	}
	analysesTotal.WithLabelValues(outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	analysisSeconds.Observe(duration.Seconds())
}

// SetCorrelationBufferSize publishes the correlation window occupancy.
func SetCorrelationBufferSize(size int) {
	correlationBufferSize.Set(float64(size))
}

// ObserveGCRun records a garbage collection run.
func ObserveGCRun(duration time.Duration, deletedByCategory map[string]int) {
	if duration < 0 {
		duration = 0
	}
	gcRunSeconds.Observe(duration.Seconds())
	for category, count := range deletedByCategory {
		if count > 0 {
			gcDeletedTotal.WithLabelValues(category).Add(float64(count))
		}
	}
}
