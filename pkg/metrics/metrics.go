// Package metrics defines the Prometheus collectors used by the evaluation
// pipeline and exposes them for scraping or pushing to a Pushgateway.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for one process. The collectors are
// registered on a private registry so tests can build as many as they like.
// Every helper method is safe to call on a nil *Metrics.
type Metrics struct {
	Registry *prometheus.Registry

	DocsIndexedTotal    prometheus.Counter
	VocabularySize      prometheus.Gauge
	AvgDocLength        prometheus.Gauge
	IndexBuildSeconds   prometheus.Gauge
	QueriesTotal        *prometheus.CounterVec
	RankingLatency      *prometheus.HistogramVec
	RankingResultsCount *prometheus.HistogramVec
	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
	CircuitBreakerState *prometheus.GaugeVec
	EventsDroppedTotal  prometheus.Counter
	EvaluationMeasure   *prometheus.GaugeVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docs_indexed_total",
				Help: "Total documents accepted by the indexer.",
			},
		),
		VocabularySize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_vocabulary_size",
				Help: "Number of distinct terms in the finalized index.",
			},
		),
		AvgDocLength: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_avg_doc_length",
				Help: "Average normalized document length in tokens.",
			},
		),
		IndexBuildSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_build_seconds",
				Help: "Wall time spent building and finalizing the index.",
			},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ranking_queries_total",
				Help: "Queries ranked by model and result type (hit, zero_result, error).",
			},
			[]string{"model", "result_type"},
		),
		RankingLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ranking_latency_seconds",
				Help:    "Per-query ranking latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"model", "cache_status"},
		),
		RankingResultsCount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ranking_results_count",
				Help:    "Number of results returned per query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
			[]string{"model"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of result cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of result cache misses.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
		EventsDroppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "analytics_events_dropped_total",
				Help: "Run events dropped because the collector buffer was full.",
			},
		),
		EvaluationMeasure: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "evaluation_measure",
				Help: "Effectiveness measure of a run averaged over queries.",
			},
			[]string{"run", "measure"},
		),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		m.DocsIndexedTotal,
		m.VocabularySize,
		m.AvgDocLength,
		m.IndexBuildSeconds,
		m.QueriesTotal,
		m.RankingLatency,
		m.RankingResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CircuitBreakerState,
		m.EventsDroppedTotal,
		m.EvaluationMeasure,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(m.Registry, promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
}

func (m *Metrics) DocIndexed() {
	if m == nil {
		return
	}
	m.DocsIndexedTotal.Inc()
}

// IndexFinalized records the statistics of a freshly finalized index.
func (m *Metrics) IndexFinalized(vocabulary int, avgDocLength float64, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.VocabularySize.Set(float64(vocabulary))
	m.AvgDocLength.Set(avgDocLength)
	m.IndexBuildSeconds.Set(elapsed.Seconds())
}

// ObserveQuery records one ranked query.
func (m *Metrics) ObserveQuery(model, cacheStatus string, elapsed time.Duration, results int, err error) {
	if m == nil {
		return
	}
	resultType := "hit"
	switch {
	case err != nil:
		resultType = "error"
	case results == 0:
		resultType = "zero_result"
	}
	m.QueriesTotal.WithLabelValues(model, resultType).Inc()
	if err != nil {
		return
	}
	m.RankingLatency.WithLabelValues(model, cacheStatus).Observe(elapsed.Seconds())
	m.RankingResultsCount.WithLabelValues(model).Observe(float64(results))
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.CacheMissesTotal.Inc()
}

// BreakerState publishes a circuit breaker state as its numeric value.
func (m *Metrics) BreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.EventsDroppedTotal.Inc()
}

// SetMeasure publishes an averaged evaluation measure for a run.
func (m *Metrics) SetMeasure(run, measure string, value float64) {
	if m == nil {
		return
	}
	m.EvaluationMeasure.WithLabelValues(run, measure).Set(value)
}
