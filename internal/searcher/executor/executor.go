// Package executor runs every query of a benchmark under one ranking model,
// fanning queries out across a bounded worker pool.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/tracing"
)

// QueryResult is the ranked list of one query.
type QueryResult struct {
	QueryID  string
	Tokens   []string
	Results  []ranker.ScoredDoc
	CacheHit bool
}

// Run holds the results of every query under one model, in query order.
type Run struct {
	Model   ranker.Model
	Results []QueryResult
	Elapsed time.Duration
}

type Executor struct {
	engine    *indexer.Engine
	params    ranker.Params
	workers   int
	cache     *cache.QueryCache
	collector *analytics.Collector
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Option configures optional collaborators of an Executor.
type Option func(*Executor)

func WithCache(c *cache.QueryCache) Option {
	return func(e *Executor) { e.cache = c }
}

func WithCollector(c *analytics.Collector) Option {
	return func(e *Executor) { e.collector = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

func New(engine *indexer.Engine, cfg config.RankingConfig, opts ...Option) *Executor {
	e := &Executor{
		engine: engine,
		params: ranker.Params{
			TopK: cfg.TopK,
			K1:   cfg.K1,
			B:    cfg.B,
			Mu:   cfg.Mu,
		},
		workers: max(cfg.Workers, 1),
		logger:  slog.Default().With("component", "query-executor"),
	}
	if e.params.TopK <= 0 {
		e.params.TopK = ranker.DefaultTopK
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunModel ranks every query under model. Cancelling ctx stops scheduling
// new queries; the context error is returned.
func (e *Executor) RunModel(ctx context.Context, model ranker.Model, queries []corpus.Query) (*Run, error) {
	r, err := ranker.New(model, e.engine.Index(), e.params)
	if err != nil {
		return nil, err
	}
	ctx, span := tracing.StartChildSpan(ctx, "rank."+string(model))
	defer span.End()
	log := logger.FromContext(ctx).With("component", "query-executor", "model", model)

	start := time.Now()
	results := make([]QueryResult, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, q := range queries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := e.Search(gctx, r, q)
			if err != nil {
				return fmt.Errorf("query %s: %w", q.ID, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("ranking %s: %w", model, err)
	}

	run := &Run{Model: model, Results: results, Elapsed: time.Since(start)}
	span.SetAttr("queries", len(queries))
	log.Info("model run complete",
		"queries", len(queries),
		"elapsed_seconds", run.Elapsed.Seconds(),
	)
	return run, nil
}

// Search normalizes and ranks a single query with r, consulting the result
// cache when one is configured.
func (e *Executor) Search(ctx context.Context, r ranker.Ranker, q corpus.Query) (QueryResult, error) {
	tokens := e.engine.Analyze(q.Text)
	start := time.Now()

	compute := func() ([]ranker.ScoredDoc, error) {
		return r.Rank(tokens, e.params.TopK)
	}
	var (
		ranked   []ranker.ScoredDoc
		cacheHit bool
		err      error
	)
	if e.cache != nil {
		key := cache.Key{
			Fingerprint: e.engine.Fingerprint(),
			Model:       r.Model(),
			Params:      e.params,
			Tokens:      tokens,
		}
		ranked, cacheHit, err = e.cache.GetOrCompute(ctx, key, compute)
	} else {
		ranked, err = compute()
	}
	elapsed := time.Since(start)

	cacheStatus := "disabled"
	if e.cache != nil {
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
	}
	e.metrics.ObserveQuery(string(r.Model()), cacheStatus, elapsed, len(ranked), err)
	if err != nil {
		return QueryResult{}, err
	}

	e.track(ctx, r.Model(), q, tokens, ranked, cacheHit, elapsed)
	e.logger.Debug("query ranked",
		"model", r.Model(),
		"query_id", q.ID,
		"terms", tokens,
		"results", len(ranked),
		"cache_hit", cacheHit,
	)
	return QueryResult{
		QueryID:  q.ID,
		Tokens:   tokens,
		Results:  ranked,
		CacheHit: cacheHit,
	}, nil
}

func (e *Executor) track(ctx context.Context, model ranker.Model, q corpus.Query, tokens []string, ranked []ranker.ScoredDoc, cacheHit bool, elapsed time.Duration) {
	if e.collector == nil {
		return
	}
	runID := logger.RunIDFromContext(ctx)
	event := analytics.QueryEvent{
		Type:          analytics.EventQueryRanked,
		RunID:         runID,
		Model:         string(model),
		QueryID:       q.ID,
		Terms:         tokens,
		Returned:      len(ranked),
		LatencyMicros: elapsed.Microseconds(),
		CacheHit:      cacheHit,
		Timestamp:     time.Now().UTC(),
	}
	if len(ranked) == 0 {
		event.Type = analytics.EventZeroResult
	} else {
		event.TopDocID = ranked[0].DocID
		event.TopScore = ranked[0].Score
	}
	e.collector.Track(runID, event)
}
