package ranker

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/indexer/index"
)

// LMDirichlet ranks by query likelihood under a Dirichlet-smoothed document
// language model. Every document in the index receives a score.
type LMDirichlet struct {
	ix *index.Index
	mu float64
}

func NewLMDirichlet(ix *index.Index, mu float64) *LMDirichlet {
	return &LMDirichlet{ix: ix, mu: mu}
}

func (r *LMDirichlet) Model() Model { return ModelLMDirichlet }

func (r *LMDirichlet) Rank(tokens []string, topK int) ([]ScoredDoc, error) {
	if err := checkFinalized(r.ix); err != nil {
		return nil, err
	}
	collectionProb := make(map[string]float64, len(tokens))
	for _, term := range tokens {
		if _, ok := collectionProb[term]; !ok {
			collectionProb[term] = r.collectionProbability(term)
		}
	}

	t := newTopK(depth(topK))
	for _, docID := range r.ix.DocIDs() {
		dl := float64(r.ix.DocLength(docID))
		var score float64
		for _, term := range tokens {
			tf := float64(r.ix.TermFrequency(term, docID))
			p := (tf + r.mu*collectionProb[term]) / (dl + r.mu)
			if p > 0 && !math.IsInf(p, 0) {
				score += math.Log(p)
			} else {
				score += missingTermPenalty
			}
		}
		t.offer(ScoredDoc{DocID: docID, Score: score})
	}
	return t.sorted(), nil
}

// collectionProbability is cf/total_terms, floored at 1/total_terms for
// terms the collection never saw, and 0 for an empty collection.
func (r *LMDirichlet) collectionProbability(term string) float64 {
	total := r.ix.TotalTerms()
	if total == 0 {
		return 0
	}
	if cf := r.ix.CollectionFrequency(term); cf > 0 {
		return float64(cf) / float64(total)
	}
	return 1 / float64(total)
}
