package evaluation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/errors"
)

const delta = 1e-9

func ranked(ids ...string) []ranker.ScoredDoc {
	out := make([]ranker.ScoredDoc, len(ids))
	for i, id := range ids {
		out[i] = ranker.ScoredDoc{DocID: id, Score: float64(len(ids) - i)}
	}
	return out
}

var sampleJudged = map[string]int{"d1": 1, "d3": 2, "d9": 1, "d7": 0}

func TestEvaluateQuery(t *testing.T) {
	ev := EvaluateQuery(ranked("d1", "d2", "d3", "d4", "d5"), sampleJudged)

	assert.Equal(t, 3, ev.Relevant)
	assert.Equal(t, 5, ev.Retrieved)
	assert.Equal(t, 2, ev.RelevantRetrieved)

	assert.InDelta(t, (1.0+2.0/3.0)/3.0, ev.MAP, delta)
	assert.InDelta(t, 0.4, ev.P5, delta)
	assert.InDelta(t, 0.2, ev.P10, delta)
	assert.InDelta(t, 2.0/3.0, ev.RPrec, delta)
	assert.InDelta(t, 2.0/3.0, ev.Recall100, delta)
	assert.InDelta(t, 1.0, ev.MRR, delta)

	ideal := 2.0 + 1.0/math.Log2(3) + 0.5
	assert.InDelta(t, 2.0/ideal, ev.NDCG10, delta)
}

func TestEvaluateQueryReciprocalRank(t *testing.T) {
	ev := EvaluateQuery(ranked("d2", "d4", "d3"), sampleJudged)
	assert.InDelta(t, 1.0/3.0, ev.MRR, delta)
	assert.InDelta(t, (1.0/3.0)/3.0, ev.MAP, delta)
}

func TestEvaluateQueryNothingRelevantRetrieved(t *testing.T) {
	ev := EvaluateQuery(ranked("d2", "d4", "d7"), sampleJudged)
	assert.Equal(t, Measures{}, ev.Measures)
	assert.Equal(t, 0, ev.RelevantRetrieved)
}

func TestEvaluateQueryEmptyResults(t *testing.T) {
	ev := EvaluateQuery(nil, sampleJudged)
	assert.Equal(t, Measures{}, ev.Measures)
	assert.Equal(t, 0, ev.Retrieved)
	assert.Equal(t, 3, ev.Relevant)
}

func TestEvaluateQueryNoJudgments(t *testing.T) {
	ev := EvaluateQuery(ranked("d1", "d2"), nil)
	assert.Equal(t, Measures{}, ev.Measures)
}

func TestPerfectRanking(t *testing.T) {
	ev := EvaluateQuery(ranked("d3", "d1", "d9"), sampleJudged)
	assert.InDelta(t, 1.0, ev.MAP, delta)
	assert.InDelta(t, 1.0, ev.RPrec, delta)
	assert.InDelta(t, 1.0, ev.Recall100, delta)
	assert.InDelta(t, 1.0, ev.NDCG10, delta)
	assert.InDelta(t, 0.6, ev.P5, delta)
}

func TestRecallCutsAtHundred(t *testing.T) {
	ids := make([]string, 0, 101)
	for i := 0; i < 100; i++ {
		ids = append(ids, "filler")
	}
	ids = append(ids, "d1")
	ev := EvaluateQuery(ranked(ids...), map[string]int{"d1": 1})
	assert.Equal(t, 1, ev.RelevantRetrieved)
	assert.Zero(t, ev.Recall100)
	assert.InDelta(t, 1.0/101.0, ev.MRR, delta)
}

func TestEvaluateAveragesJudgedQueries(t *testing.T) {
	run := map[string][]ranker.ScoredDoc{
		"1": ranked("d1", "d2", "d3", "d4", "d5"),
		"2": ranked("x"),
		"7": ranked("d1"),
	}
	qrels := corpus.Qrels{
		"1":  sampleJudged,
		"2":  {"x": 1},
		"3":  {"y": 0},
		"10": {"z": 1},
	}

	s := Evaluate("run_bm25", run, qrels)
	require.Equal(t, 3, s.Queries)
	require.Len(t, s.PerQuery, 3)
	assert.Equal(t, "1", s.PerQuery[0].QueryID)
	assert.Equal(t, "2", s.PerQuery[1].QueryID)
	assert.Equal(t, "10", s.PerQuery[2].QueryID)

	assert.Equal(t, Measures{}, s.PerQuery[2].Measures)
	assert.InDelta(t, ((1.0+2.0/3.0)/3.0+1.0)/3.0, s.Mean.MAP, delta)
	assert.InDelta(t, 2.0/3.0, s.Mean.MRR, delta)
	assert.Equal(t, 6, s.Retrieved)
	assert.Equal(t, 5, s.Relevant)
	assert.Equal(t, 3, s.RelevantRetrieved)
	assert.Equal(t, "run_bm25", s.RunID)
}

func TestEvaluateEmptyQrels(t *testing.T) {
	s := Evaluate("r", map[string][]ranker.ScoredDoc{"1": ranked("a")}, corpus.Qrels{})
	assert.Zero(t, s.Queries)
	assert.Equal(t, Measures{}, s.Mean)
}

func TestAlignQrels(t *testing.T) {
	ids := corpus.NewIDMap()
	ids.Add("1", "001")
	ids.Add("2", "004")
	qrels := corpus.Qrels{
		"001": {"d1": 1},
		"004": {"d2": 2},
		"999": {"d3": 1},
	}

	aligned, err := AlignQrels(qrels, ids, KeyedByOriginal)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, aligned.QueryIDs())
	assert.Equal(t, 2, aligned.Grade("2", "d2"))

	same, err := AlignQrels(qrels, nil, KeyedBySequential)
	require.NoError(t, err)
	assert.Equal(t, qrels, same)

	_, err = AlignQrels(qrels, nil, KeyedByOriginal)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = AlignQrels(qrels, ids, "topic")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestMeasuresGet(t *testing.T) {
	m := Measures{MAP: 1, P5: 2, P10: 3, RPrec: 4, Recall100: 5, NDCG10: 6, MRR: 7}
	for i, name := range MeasureNames {
		v, ok := m.Get(name)
		require.True(t, ok, name)
		assert.Equal(t, float64(i+1), v, name)
	}
	_, ok := m.Get("bpref")
	assert.False(t, ok)
}

func TestDecodeSummaryRecomputesTotals(t *testing.T) {
	s := Evaluate("r", map[string][]ranker.ScoredDoc{"1": ranked("d1", "d2")}, corpus.Qrels{"1": sampleJudged})
	mean, perQuery, err := encodeSummary(s)
	require.NoError(t, err)

	var got Summary
	require.NoError(t, decodeSummary(mean, perQuery, &got))
	assert.Equal(t, s.Mean, got.Mean)
	assert.Equal(t, s.PerQuery, got.PerQuery)
	assert.Equal(t, s.Relevant, got.Relevant)
	assert.Equal(t, s.Retrieved, got.Retrieved)
	assert.Equal(t, s.RelevantRetrieved, got.RelevantRetrieved)
}
