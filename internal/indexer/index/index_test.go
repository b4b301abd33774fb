package index

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/errors"
)

func buildSample(t *testing.T) *Index {
	t.Helper()
	ix := NewIndex(DuplicateReject)
	require.NoError(t, ix.AddDocument("doc1", []string{"cat", "sat", "mat"}))
	require.NoError(t, ix.AddDocument("doc2", []string{"dog", "sat", "log"}))
	require.NoError(t, ix.AddDocument("doc3", []string{"cat", "dog", "friend", "cat"}))
	return ix
}

func TestTermAndDocumentFrequency(t *testing.T) {
	ix := buildSample(t)

	assert.Equal(t, 2, ix.TermFrequency("cat", "doc3"))
	assert.Equal(t, 1, ix.TermFrequency("cat", "doc1"))
	assert.Equal(t, 0, ix.TermFrequency("cat", "doc2"))
	assert.Equal(t, 0, ix.TermFrequency("wing", "doc1"))

	assert.Equal(t, 2, ix.DocumentFrequency("cat"))
	assert.Equal(t, 2, ix.DocumentFrequency("sat"))
	assert.Equal(t, 1, ix.DocumentFrequency("friend"))
	assert.Equal(t, 0, ix.DocumentFrequency("wing"))
	assert.False(t, ix.Contains("wing"), "reads must not insert terms")

	assert.Equal(t, map[string]int{"doc1": 1, "doc3": 2}, ix.Postings("cat"))
	assert.Empty(t, ix.Postings("wing"))

	seen := map[string]int{}
	for docID, tf := range ix.PostingsSeq("dog") {
		seen[docID] = tf
	}
	assert.Equal(t, map[string]int{"doc2": 1, "doc3": 1}, seen)
}

func TestPostingsCopyIsIsolated(t *testing.T) {
	ix := buildSample(t)
	p := ix.Postings("cat")
	p["doc9"] = 5
	assert.Equal(t, 2, ix.DocumentFrequency("cat"))
}

func TestFinalizeStatistics(t *testing.T) {
	ix := buildSample(t)
	require.NoError(t, ix.Finalize())

	assert.Equal(t, StateFinalized, ix.State())
	assert.Equal(t, 3, ix.DocCount())
	assert.Equal(t, 10, ix.TotalTerms())
	assert.InDelta(t, 10.0/3.0, ix.AvgDocLength(), 1e-12)
	assert.Equal(t, 3, ix.CollectionFrequency("cat"))
	assert.InDelta(t, math.Log(1.5), ix.IDF("cat"), 1e-12)
	assert.Equal(t, 0.0, ix.IDF("wing"))
	assert.Equal(t, []string{"doc1", "doc2", "doc3"}, ix.DocIDs())
	assert.Equal(t, 6, ix.VocabularySize())

	v, ok := ix.Vector("doc3")
	require.True(t, ok)
	wantCat := (1 + math.Log(2)) * math.Log(1.5)
	assert.InDelta(t, wantCat, v.Weight("cat"), 1e-12)
	assert.Equal(t, 0.0, v.Weight("mat"))

	var sq float64
	for _, w := range v.Weights {
		sq += w * w
	}
	assert.InDelta(t, math.Sqrt(sq), v.Norm, 1e-12)
}

func TestTermInEveryDocumentHasZeroWeight(t *testing.T) {
	ix := NewIndex(DuplicateReject)
	require.NoError(t, ix.AddDocument("a", []string{"wing"}))
	require.NoError(t, ix.AddDocument("b", []string{"wing"}))
	require.NoError(t, ix.Finalize())

	v, ok := ix.Vector("a")
	require.True(t, ok)
	assert.Equal(t, 0.0, v.Norm)
}

func TestEmptyCorpus(t *testing.T) {
	ix := NewIndex(DuplicateReject)
	require.NoError(t, ix.Finalize())

	assert.Equal(t, 0, ix.DocCount())
	assert.Equal(t, 0.0, ix.AvgDocLength())
	assert.Equal(t, 0, ix.TotalTerms())
	assert.Empty(t, ix.DocIDs())
}

func TestZeroLengthDocument(t *testing.T) {
	ix := NewIndex(DuplicateReject)
	require.NoError(t, ix.AddDocument("empty", nil))
	require.NoError(t, ix.AddDocument("full", []string{"wing", "tail"}))
	require.NoError(t, ix.Finalize())

	assert.Equal(t, 2, ix.DocCount())
	assert.Equal(t, 0, ix.DocLength("empty"))
	assert.Equal(t, 1.0, ix.AvgDocLength())
	v, ok := ix.Vector("empty")
	require.True(t, ok)
	assert.Equal(t, 0.0, v.Norm)
	assert.Empty(t, v.Weights)
}

func TestLifecycleErrors(t *testing.T) {
	ix := buildSample(t)
	require.NoError(t, ix.Finalize())

	err := ix.Finalize()
	assert.ErrorIs(t, err, apperrors.ErrAlreadyFinalized)

	err = ix.AddDocument("doc4", []string{"wing"})
	assert.ErrorIs(t, err, apperrors.ErrIndexFinalized)
	assert.Equal(t, 3, ix.DocCount())
}

func TestDuplicateReject(t *testing.T) {
	ix := buildSample(t)
	err := ix.AddDocument("doc1", []string{"wing"})
	require.ErrorIs(t, err, apperrors.ErrDocumentExists)

	assert.Equal(t, 3, ix.DocCount())
	assert.Equal(t, 0, ix.DocumentFrequency("wing"))
	assert.Equal(t, 1, ix.TermFrequency("mat", "doc1"))
}

func TestDuplicateReplace(t *testing.T) {
	ix := NewIndex(DuplicateReplace)
	require.NoError(t, ix.AddDocument("doc1", []string{"cat", "sat", "mat"}))
	require.NoError(t, ix.AddDocument("doc2", []string{"cat"}))
	require.NoError(t, ix.AddDocument("doc1", []string{"wing", "wing"}))
	require.NoError(t, ix.Finalize())

	assert.Equal(t, 2, ix.DocCount())
	assert.Equal(t, 2, ix.DocLength("doc1"))
	assert.Equal(t, 3, ix.TotalTerms())
	assert.False(t, ix.Contains("mat"), "retracted terms leave the vocabulary")
	assert.Equal(t, 1, ix.DocumentFrequency("cat"))
	assert.Equal(t, 2, ix.TermFrequency("wing", "doc1"))
}

func TestParseDuplicatePolicy(t *testing.T) {
	p, err := ParseDuplicatePolicy("replace")
	require.NoError(t, err)
	assert.Equal(t, DuplicateReplace, p)

	p, err = ParseDuplicatePolicy("")
	require.NoError(t, err)
	assert.Equal(t, DuplicateReject, p)

	_, err = ParseDuplicatePolicy("merge")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRebuildIsIdentical(t *testing.T) {
	a := buildSample(t)
	b := buildSample(t)
	require.NoError(t, a.Finalize())
	require.NoError(t, b.Finalize())

	assert.Equal(t, a.Snapshot(), b.Snapshot())
	for _, docID := range a.DocIDs() {
		va, _ := a.Vector(docID)
		vb, _ := b.Vector(docID)
		assert.Equal(t, va, vb)
	}
}

func TestSnapshotOrder(t *testing.T) {
	ix := buildSample(t)
	snap := ix.Snapshot()
	require.Len(t, snap, 6)
	assert.Equal(t, "cat", snap[0].Term)
	assert.Equal(t, PostingList{{DocID: "doc1", Frequency: 1}, {DocID: "doc3", Frequency: 2}}, snap[0].Postings)
}
