package index

// Posting is one document's entry in a term's posting list.
type Posting struct {
	DocID     string
	Frequency int
}

type PostingList []Posting

// TermEntry pairs a term with its posting list sorted by DocID.
type TermEntry struct {
	Term     string
	Postings PostingList
}

// Vector is a sparse TF-IDF document vector and its Euclidean norm.
type Vector struct {
	Weights map[string]float64
	Norm    float64
}

// Weight returns the weight of term, 0 when the term is absent.
func (v Vector) Weight(term string) float64 {
	return v.Weights[term]
}
