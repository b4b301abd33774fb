package analytics

import (
	"maps"
	"slices"
	"sort"
	"sync"
)

// ModelStats summarizes the queries ranked under one model.
type ModelStats struct {
	Queries           int64    `json:"queries"`
	ZeroResults       int64    `json:"zero_results"`
	CacheHits         int64    `json:"cache_hits"`
	AvgLatencyMicros  float64  `json:"avg_latency_us"`
	P50LatencyMicros  int64    `json:"p50_latency_us"`
	P95LatencyMicros  int64    `json:"p95_latency_us"`
	P99LatencyMicros  int64    `json:"p99_latency_us"`
	ZeroResultQueries []string `json:"zero_result_queries,omitempty"`
}

type modelAgg struct {
	queries     int64
	zeroResults int64
	cacheHits   int64
	latencies   []int64
	zeroQueries []string
}

// Aggregator accumulates per-model query statistics for one process.
type Aggregator struct {
	mu     sync.Mutex
	models map[string]*modelAgg
}

func NewAggregator() *Aggregator {
	return &Aggregator{models: make(map[string]*modelAgg)}
}

func (a *Aggregator) Record(event QueryEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, ok := a.models[event.Model]
	if !ok {
		m = &modelAgg{latencies: make([]int64, 0, 256)}
		a.models[event.Model] = m
	}
	m.queries++
	if event.CacheHit {
		m.cacheHits++
	}
	if event.Returned == 0 {
		m.zeroResults++
		m.zeroQueries = append(m.zeroQueries, event.QueryID)
	}
	m.latencies = append(m.latencies, event.LatencyMicros)
}

// Stats returns the summary for model; the zero value if nothing was
// recorded for it.
func (a *Aggregator) Stats(model string) ModelStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, ok := a.models[model]
	if !ok {
		return ModelStats{}
	}
	stats := ModelStats{
		Queries:     m.queries,
		ZeroResults: m.zeroResults,
		CacheHits:   m.cacheHits,
	}
	if len(m.latencies) > 0 {
		sorted := slices.Clone(m.latencies)
		slices.Sort(sorted)
		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMicros = float64(sum) / float64(len(sorted))
		stats.P50LatencyMicros = percentile(sorted, 50)
		stats.P95LatencyMicros = percentile(sorted, 95)
		stats.P99LatencyMicros = percentile(sorted, 99)
	}
	if len(m.zeroQueries) > 0 {
		stats.ZeroResultQueries = slices.Clone(m.zeroQueries)
		sort.Strings(stats.ZeroResultQueries)
	}
	return stats
}

// Models returns the models seen so far in ascending order.
func (a *Aggregator) Models() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Sorted(maps.Keys(a.models))
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
