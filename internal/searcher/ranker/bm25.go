package ranker

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/indexer/index"
)

// BM25 implements Okapi BM25. Only documents sharing at least one term with
// the query are scored. Repeated query terms contribute once per occurrence.
type BM25 struct {
	ix *index.Index
	k1 float64
	b  float64
}

func NewBM25(ix *index.Index, k1, b float64) *BM25 {
	return &BM25{ix: ix, k1: k1, b: b}
}

func (r *BM25) Model() Model { return ModelBM25 }

func (r *BM25) Rank(tokens []string, topK int) ([]ScoredDoc, error) {
	if err := checkFinalized(r.ix); err != nil {
		return nil, err
	}
	n := int64(r.ix.DocCount())
	avg := r.ix.AvgDocLength()

	scores := make(map[string]float64)
	for _, term := range tokens {
		df := r.ix.DocumentFrequency(term)
		if df == 0 {
			continue
		}
		idf := computeIDF(n, int64(df))
		for docID, tf := range r.ix.PostingsSeq(term) {
			tfNorm := r.computeTFNorm(
				float64(tf),
				float64(r.ix.DocLength(docID)),
				avg,
			)
			scores[docID] += idf * tfNorm
		}
	}
	return selectTop(scores, depth(topK)), nil
}

// computeIDF is the non-negative BM25 idf, ln((N - df + 0.5)/(df + 0.5) + 1).
func computeIDF(totalDocs int64, docFreq int64) float64 {
	numerator := float64(totalDocs) - float64(docFreq) + 0.5
	denominator := float64(docFreq) + 0.5
	return math.Log(numerator/denominator + 1)
}

func (r *BM25) computeTFNorm(termFreq float64, docLength float64, avgDocLength float64) float64 {
	if avgDocLength == 0 {
		return 0
	}
	lengthRatio := docLength / avgDocLength
	denominator := termFreq + r.k1*(1-r.b+r.b*lengthRatio)
	if denominator == 0 {
		return 0
	}
	return (termFreq * (r.k1 + 1)) / denominator
}
