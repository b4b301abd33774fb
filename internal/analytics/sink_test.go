package analytics

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestSinkRebuildsStats(t *testing.T) {
	sink := NewSink("")
	ctx := context.Background()

	messages := [][]byte{
		encode(t, IndexEvent{Type: EventIndexFinalized, RunID: "r", Documents: 3, VocabularySize: 9}),
		encode(t, QueryEvent{Type: EventQueryRanked, RunID: "r", Model: "bm25", QueryID: "1", Returned: 3, LatencyMicros: 10}),
		encode(t, QueryEvent{Type: EventZeroResult, RunID: "r", Model: "bm25", QueryID: "2", LatencyMicros: 30}),
		encode(t, RunEvent{Type: EventRunCompleted, RunID: "r", Model: "bm25", Stats: ModelStats{Queries: 2}}),
		[]byte("not json"),
		encode(t, map[string]string{"type": "shard_rebalanced"}),
	}
	for _, m := range messages {
		require.NoError(t, sink.Handle(ctx, []byte("k"), m))
	}

	stats := sink.Aggregator().Stats("bm25")
	assert.Equal(t, int64(2), stats.Queries)
	assert.Equal(t, int64(1), stats.ZeroResults)
	assert.Equal(t, []string{"2"}, stats.ZeroResultQueries)
	assert.Equal(t, 20.0, stats.AvgLatencyMicros)

	require.Len(t, sink.Runs(), 1)
	assert.Equal(t, int64(2), sink.Runs()[0].Stats.Queries)
	require.Len(t, sink.Indexes(), 1)
	assert.Equal(t, 9, sink.Indexes()[0].VocabularySize)
	assert.Equal(t, 2, sink.Skipped())
}

func TestSinkFiltersByRunID(t *testing.T) {
	sink := NewSink("wanted")
	ctx := context.Background()

	require.NoError(t, sink.Handle(ctx, nil, encode(t, QueryEvent{Type: EventQueryRanked, RunID: "other", Model: "vsm"})))
	require.NoError(t, sink.Handle(ctx, nil, encode(t, QueryEvent{Type: EventQueryRanked, RunID: "wanted", Model: "vsm", Returned: 1})))

	assert.Equal(t, []string{"vsm"}, sink.Aggregator().Models())
	assert.Equal(t, int64(1), sink.Aggregator().Stats("vsm").Queries)
	assert.Zero(t, sink.Skipped())
}
