package trec

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/errors"
)

var sampleRankings = []Ranking{
	{QueryID: "1", Results: []ranker.ScoredDoc{{DocID: "doc3", Score: 0.9400071}, {DocID: "doc1", Score: 0.47}}},
	{QueryID: "2", Results: nil},
	{QueryID: "3", Results: []ranker.ScoredDoc{{DocID: "doc2", Score: -3.0089051}}},
}

func TestWriteRunFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRun(&buf, "my_search_engine_bm25", sampleRankings))

	want := "1 Q0 doc3 1 0.940007 my_search_engine_bm25\n" +
		"1 Q0 doc1 2 0.470000 my_search_engine_bm25\n" +
		"3 Q0 doc2 1 -3.008905 my_search_engine_bm25\n"
	assert.Equal(t, want, buf.String())
}

func TestRunRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", RunFileName("bm25"))
	require.NoError(t, WriteRunFile(path, RunID("my_search_engine", "bm25"), sampleRankings))

	run, err := ReadRunFile(path)
	require.NoError(t, err)
	assert.Equal(t, "my_search_engine_bm25", run.ID)
	require.Len(t, run.Queries["1"], 2)
	assert.Equal(t, "doc3", run.Queries["1"][0].DocID)
	assert.InDelta(t, 0.940007, run.Queries["1"][0].Score, 1e-9)
	_, ok := run.Queries["2"]
	assert.False(t, ok)
}

func TestReadRunOrdersByRank(t *testing.T) {
	input := "1 Q0 b 2 0.5 r\n1 Q0 a 1 0.9 r\n\n"
	run, err := ReadRun(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, "a", run.Queries["1"][0].DocID)
}

func TestReadRunMalformed(t *testing.T) {
	for _, input := range []string{"1 Q0 a 1 0.9\n", "1 Q0 a x 0.9 r\n", "1 Q0 a 1 high r\n"} {
		_, err := ReadRun(strings.NewReader(input))
		assert.ErrorIs(t, err, apperrors.ErrMalformedInput, input)
	}
}

func TestIDMappingRoundTrip(t *testing.T) {
	ids := corpus.NewIDMap()
	ids.Add("1", "001")
	ids.Add("2", "002")
	ids.Add("3", "004")

	var buf bytes.Buffer
	require.NoError(t, WriteIDMapping(&buf, ids))
	assert.Equal(t, "sequential_id,original_id\n1,001\n2,002\n3,004\n", buf.String())

	back, err := ReadIDMapping(&buf)
	require.NoError(t, err)
	orig, ok := back.Original("3")
	require.True(t, ok)
	assert.Equal(t, "004", orig)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteFailuresAreOutputErrors(t *testing.T) {
	err := WriteRun(failingWriter{}, "r", sampleRankings)
	assert.ErrorIs(t, err, apperrors.ErrOutputFailed)

	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	err = WriteRunFile(filepath.Join(blocker, "results_vsm.txt"), "r", sampleRankings)
	assert.ErrorIs(t, err, apperrors.ErrOutputFailed)
}

func TestReadMissingRun(t *testing.T) {
	_, err := ReadRunFile(filepath.Join(t.TempDir(), "results_vsm.txt"))
	assert.ErrorIs(t, err, apperrors.ErrDatasetMissing)
}
