package ranker

import (
	"maps"
	"math"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/indexer/index"
)

// VectorSpace ranks by cosine similarity between TF-IDF vectors. Every
// document with a vector receives a score, including zero scores.
type VectorSpace struct {
	ix *index.Index
}

func NewVectorSpace(ix *index.Index) *VectorSpace {
	return &VectorSpace{ix: ix}
}

func (r *VectorSpace) Model() Model { return ModelVSM }

func (r *VectorSpace) Rank(tokens []string, topK int) ([]ScoredDoc, error) {
	if err := checkFinalized(r.ix); err != nil {
		return nil, err
	}
	query, queryNorm := r.queryVector(tokens)

	t := newTopK(depth(topK))
	for _, docID := range r.ix.DocIDs() {
		vec, ok := r.ix.Vector(docID)
		if !ok {
			continue
		}
		t.offer(ScoredDoc{DocID: docID, Score: cosine(query, queryNorm, vec)})
	}
	return t.sorted(), nil
}

type termWeight struct {
	term   string
	weight float64
}

// queryVector weights each known query term with (1 + ln qtf) * idf.
// Unknown terms carry no information and are dropped. Terms come back
// sorted so float sums do not depend on map order.
func (r *VectorSpace) queryVector(tokens []string) ([]termWeight, float64) {
	counts := make(map[string]int, len(tokens))
	for _, term := range tokens {
		if r.ix.Contains(term) {
			counts[term]++
		}
	}
	weights := make([]termWeight, 0, len(counts))
	var sq float64
	for _, term := range slices.Sorted(maps.Keys(counts)) {
		w := (1 + math.Log(float64(counts[term]))) * r.ix.IDF(term)
		weights = append(weights, termWeight{term: term, weight: w})
		sq += w * w
	}
	return weights, math.Sqrt(sq)
}

func cosine(query []termWeight, queryNorm float64, doc index.Vector) float64 {
	if queryNorm == 0 || doc.Norm == 0 {
		return 0
	}
	var dot float64
	for _, q := range query {
		dot += q.weight * doc.Weight(q.term)
	}
	return dot / (queryNorm * doc.Norm)
}
