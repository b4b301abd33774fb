package ranker

import "container/heap"

// topK keeps the best limit documents seen so far. The heap root is the
// weakest kept document: lowest score, and among equal scores the largest
// doc id.
type topK struct {
	limit int
	h     scoredDocHeap
}

func newTopK(limit int) *topK {
	return &topK{limit: limit, h: make(scoredDocHeap, 0, limit+1)}
}

func (t *topK) offer(doc ScoredDoc) {
	if t.h.Len() == t.limit {
		if !better(doc, t.h[0]) {
			return
		}
		t.h[0] = doc
		heap.Fix(&t.h, 0)
		return
	}
	heap.Push(&t.h, doc)
}

// sorted drains the heap into best-first order.
func (t *topK) sorted() []ScoredDoc {
	result := make([]ScoredDoc, t.h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&t.h).(ScoredDoc)
	}
	return result
}

// better reports whether a ranks ahead of b.
func better(a, b ScoredDoc) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.DocID < b.DocID
}

func selectTop(scores map[string]float64, limit int) []ScoredDoc {
	t := newTopK(limit)
	for docID, score := range scores {
		t.offer(ScoredDoc{DocID: docID, Score: score})
	}
	return t.sorted()
}

type scoredDocHeap []ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool { return better(h[j], h[i]) }

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x interface{}) {
	*h = append(*h, x.(ScoredDoc))
}

func (h *scoredDocHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
