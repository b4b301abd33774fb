package benchmark

import (
	"context"
	"fmt"
	"strconv"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/config"
)

var benchQueries = []string{
	"wing slipstream lift",
	"supersonic boundary layer heat transfer",
	"buckling of cylinder shell under pressure",
	"laminar turbulent transition on a flat plate at high mach number",
}

// BenchmarkRank measures one query under each model at several collection
// sizes.
func BenchmarkRank(b *testing.B) {
	for _, n := range []int{100, 1400, 5000} {
		ix := buildIndex(b, syntheticCorpus(n))
		for _, model := range ranker.Models {
			r, err := ranker.New(model, ix, ranker.DefaultParams())
			if err != nil {
				b.Fatal(err)
			}
			b.Run(fmt.Sprintf("%s/docs_%d", model, n), func(b *testing.B) {
				b.ReportAllocs()
				for i := 0; i < b.N; i++ {
					tokens := tokenizer.Terms(benchQueries[i%len(benchQueries)])
					if _, err := r.Rank(tokens, ranker.DefaultTopK); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

// BenchmarkRankQueryLength measures BM25 with an increasing number of query
// terms.
func BenchmarkRankQueryLength(b *testing.B) {
	ix := buildIndex(b, syntheticCorpus(1400))
	r, err := ranker.New(ranker.ModelBM25, ix, ranker.DefaultParams())
	if err != nil {
		b.Fatal(err)
	}
	for _, tc := range []int{1, 3, 5, 10} {
		tokens := tokenizer.Terms(joinVocabulary(tc))
		b.Run(fmt.Sprintf("terms_%d", tc), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := r.Rank(tokens, ranker.DefaultTopK); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkRankParallel measures concurrent read throughput of a finalized
// index.
func BenchmarkRankParallel(b *testing.B) {
	ix := buildIndex(b, syntheticCorpus(1400))
	r, err := ranker.New(ranker.ModelLMDirichlet, ix, ranker.DefaultParams())
	if err != nil {
		b.Fatal(err)
	}
	tokens := tokenizer.Terms(benchQueries[1])
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := r.Rank(tokens, ranker.DefaultTopK); err != nil {
				b.Fatal(err)
			}
		}
	})
}

// BenchmarkExecutorRunModel measures a full 225-query model run at several
// worker counts.
func BenchmarkExecutorRunModel(b *testing.B) {
	engine, err := indexer.NewEngine(config.IndexerConfig{DuplicatePolicy: "reject"}, nil)
	if err != nil {
		b.Fatal(err)
	}
	for _, d := range syntheticCorpus(1400) {
		if err := engine.IndexDocument(corpus.Document{ID: d.id, Body: d.body}); err != nil {
			b.Fatal(err)
		}
	}
	if err := engine.Finalize(); err != nil {
		b.Fatal(err)
	}

	queries := make([]corpus.Query, 225)
	for i := range queries {
		id := strconv.Itoa(i + 1)
		queries[i] = corpus.Query{ID: id, OriginalID: id, Text: benchQueries[i%len(benchQueries)]}
	}

	for _, workers := range []int{1, 4, 8} {
		exec := executor.New(engine, config.RankingConfig{TopK: 100, K1: 1.2, B: 0.75, Mu: 2000, Workers: workers})
		b.Run(fmt.Sprintf("workers_%d", workers), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := exec.RunModel(context.Background(), ranker.ModelBM25, queries); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func joinVocabulary(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		s += vocabulary[i] + " "
	}
	return s
}
