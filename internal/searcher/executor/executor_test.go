package executor

import (
	"context"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/metrics"
)

func newEngine(t *testing.T, finalize bool) *indexer.Engine {
	t.Helper()
	e, err := indexer.NewEngine(config.IndexerConfig{DuplicatePolicy: "reject"}, nil)
	require.NoError(t, err)
	require.NoError(t, e.IndexDocument(corpus.Document{ID: "doc1", Body: "the cat sat on the mat"}))
	require.NoError(t, e.IndexDocument(corpus.Document{ID: "doc2", Body: "the dog sat on the log"}))
	require.NoError(t, e.IndexDocument(corpus.Document{ID: "doc3", Body: "cats and dogs are friends"}))
	if finalize {
		require.NoError(t, e.Finalize())
	}
	return e
}

func rankingConfig(workers int) config.RankingConfig {
	cfg := config.Default().Ranking
	cfg.Workers = workers
	return cfg
}

func manyQueries(n int) []corpus.Query {
	texts := []string{"cat dog", "mat", "friends", "helicopter", "log sat"}
	out := make([]corpus.Query, n)
	for i := range out {
		out[i] = corpus.Query{ID: fmt.Sprint(i + 1), OriginalID: fmt.Sprintf("%03d", i+1), Text: texts[i%len(texts)]}
	}
	return out
}

func TestRunModelPreservesQueryOrder(t *testing.T) {
	ex := New(newEngine(t, true), rankingConfig(4))
	queries := manyQueries(25)

	run, err := ex.RunModel(context.Background(), ranker.ModelBM25, queries)
	require.NoError(t, err)
	require.Len(t, run.Results, 25)
	for i, res := range run.Results {
		assert.Equal(t, queries[i].ID, res.QueryID)
	}
	assert.Equal(t, []string{"cat", "dog"}, run.Results[0].Tokens)
	assert.Equal(t, "doc3", run.Results[0].Results[0].DocID)
	assert.Empty(t, run.Results[3].Results, "unknown terms yield no bm25 results")
}

func TestParallelMatchesSequential(t *testing.T) {
	e := newEngine(t, true)
	queries := manyQueries(40)
	for _, model := range ranker.Models {
		seq, err := New(e, rankingConfig(1)).RunModel(context.Background(), model, queries)
		require.NoError(t, err)
		par, err := New(e, rankingConfig(8)).RunModel(context.Background(), model, queries)
		require.NoError(t, err)
		assert.Equal(t, seq.Results, par.Results, string(model))
	}
}

func TestRunModelRequiresFinalizedIndex(t *testing.T) {
	ex := New(newEngine(t, false), rankingConfig(2))
	_, err := ex.RunModel(context.Background(), ranker.ModelVSM, manyQueries(3))
	assert.ErrorIs(t, err, apperrors.ErrNotFinalized)
}

func TestRunModelCancelled(t *testing.T) {
	ex := New(newEngine(t, true), rankingConfig(2))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ex.RunModel(ctx, ranker.ModelLMDirichlet, manyQueries(10))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunModelUnknownModel(t *testing.T) {
	ex := New(newEngine(t, true), rankingConfig(2))
	_, err := ex.RunModel(context.Background(), ranker.Model("tfidf"), manyQueries(1))
	assert.ErrorIs(t, err, apperrors.ErrUnknownModel)
}

func TestRunModelEmitsEventsAndMetrics(t *testing.T) {
	m := metrics.New()
	collector := analytics.NewCollector(nil, analytics.NewAggregator(), m, 0, 0)
	ex := New(newEngine(t, true), rankingConfig(3), WithMetrics(m), WithCollector(collector))

	ctx := logger.WithRunID(context.Background(), "test-run")
	_, err := ex.RunModel(ctx, ranker.ModelBM25, manyQueries(10))
	require.NoError(t, err)

	stats := collector.Aggregator().Stats("bm25")
	assert.Equal(t, int64(10), stats.Queries)
	assert.Equal(t, int64(2), stats.ZeroResults)
	assert.Equal(t, 8.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("bm25", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("bm25", "zero_result")))
}
