// Package index holds the in-memory inverted index and the corpus statistics
// the ranking models read. An Index is built one document at a time and then
// finalized exactly once; after Finalize it is immutable and safe for
// concurrent readers without locking.
package index

import (
	"fmt"
	"iter"
	"maps"
	"math"
	"slices"
	"sort"

	apperrors "github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/errors"
)

// State is the lifecycle phase of an Index.
type State int

const (
	StateBuilding State = iota
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// DuplicatePolicy decides what AddDocument does with an id it has already
// accepted.
type DuplicatePolicy int

const (
	// DuplicateReject returns ErrDocumentExists and leaves the index untouched.
	DuplicateReject DuplicatePolicy = iota
	// DuplicateReplace retracts the earlier contribution before applying the
	// new one. The document count is not incremented.
	DuplicateReplace
)

func (p DuplicatePolicy) String() string {
	if p == DuplicateReplace {
		return "replace"
	}
	return "reject"
}

// ParseDuplicatePolicy maps a config value to a DuplicatePolicy.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch s {
	case "", "reject":
		return DuplicateReject, nil
	case "replace":
		return DuplicateReplace, nil
	default:
		return DuplicateReject, fmt.Errorf("%w: duplicate policy %q", apperrors.ErrInvalidInput, s)
	}
}

type Index struct {
	policy DuplicatePolicy
	state  State

	postings   map[string]map[string]int
	docTerms   map[string]map[string]int
	docLengths map[string]int
	docCount   int

	totalTerms   int
	avgDocLength float64
	idf          map[string]float64
	cf           map[string]int
	vectors      map[string]Vector
	docIDs       []string
}

func NewIndex(policy DuplicatePolicy) *Index {
	return &Index{
		policy:     policy,
		state:      StateBuilding,
		postings:   make(map[string]map[string]int),
		docTerms:   make(map[string]map[string]int),
		docLengths: make(map[string]int),
	}
}

// AddDocument records the normalized tokens of one document. An empty token
// slice is valid and produces a zero-length document.
func (ix *Index) AddDocument(docID string, tokens []string) error {
	if ix.state == StateFinalized {
		return fmt.Errorf("adding %q: %w", docID, apperrors.ErrIndexFinalized)
	}
	if _, exists := ix.docLengths[docID]; exists {
		if ix.policy == DuplicateReject {
			return fmt.Errorf("adding %q: %w", docID, apperrors.ErrDocumentExists)
		}
		ix.retract(docID)
	} else {
		ix.docCount++
	}

	termFreqs := make(map[string]int, len(tokens))
	for _, term := range tokens {
		termFreqs[term]++
	}
	for term, tf := range termFreqs {
		docs, ok := ix.postings[term]
		if !ok {
			docs = make(map[string]int)
			ix.postings[term] = docs
		}
		docs[docID] = tf
	}
	ix.docTerms[docID] = termFreqs
	ix.docLengths[docID] = len(tokens)
	return nil
}

func (ix *Index) retract(docID string) {
	for term := range ix.docTerms[docID] {
		docs := ix.postings[term]
		delete(docs, docID)
		if len(docs) == 0 {
			delete(ix.postings, term)
		}
	}
	delete(ix.docTerms, docID)
	delete(ix.docLengths, docID)
}

// Finalize computes corpus statistics, per-term idf and collection frequency,
// and every document's TF-IDF vector. It moves the index to StateFinalized.
func (ix *Index) Finalize() error {
	if ix.state == StateFinalized {
		return apperrors.ErrAlreadyFinalized
	}

	total := 0
	for _, l := range ix.docLengths {
		total += l
	}
	ix.totalTerms = total
	if ix.docCount > 0 {
		ix.avgDocLength = float64(total) / float64(ix.docCount)
	}

	ix.idf = make(map[string]float64, len(ix.postings))
	ix.cf = make(map[string]int, len(ix.postings))
	for term, docs := range ix.postings {
		ix.idf[term] = math.Log(float64(ix.docCount) / float64(len(docs)))
		sum := 0
		for _, tf := range docs {
			sum += tf
		}
		ix.cf[term] = sum
	}

	ix.vectors = make(map[string]Vector, len(ix.docLengths))
	for docID, terms := range ix.docTerms {
		weights := make(map[string]float64, len(terms))
		var sq float64
		// Sorted so the norm is bit-identical across builds.
		for _, term := range slices.Sorted(maps.Keys(terms)) {
			tf := terms[term]
			if tf <= 0 {
				continue
			}
			w := (1 + math.Log(float64(tf))) * ix.idf[term]
			weights[term] = w
			sq += w * w
		}
		ix.vectors[docID] = Vector{Weights: weights, Norm: math.Sqrt(sq)}
	}

	ix.docIDs = slices.Sorted(maps.Keys(ix.docLengths))
	ix.docTerms = nil
	ix.state = StateFinalized
	return nil
}

func (ix *Index) State() State { return ix.state }

// DocumentFrequency returns the number of documents containing term.
func (ix *Index) DocumentFrequency(term string) int {
	return len(ix.postings[term])
}

// TermFrequency returns the raw count of term in docID, 0 when absent.
func (ix *Index) TermFrequency(term, docID string) int {
	return ix.postings[term][docID]
}

// Postings returns a copy of the doc -> frequency map for term.
func (ix *Index) Postings(term string) map[string]int {
	docs := ix.postings[term]
	out := make(map[string]int, len(docs))
	maps.Copy(out, docs)
	return out
}

// PostingsSeq iterates the postings of term without copying.
func (ix *Index) PostingsSeq(term string) iter.Seq2[string, int] {
	return maps.All(ix.postings[term])
}

// PostingList returns the postings of term sorted by DocID.
func (ix *Index) PostingList(term string) PostingList {
	docs := ix.postings[term]
	list := make(PostingList, 0, len(docs))
	for docID, tf := range docs {
		list = append(list, Posting{DocID: docID, Frequency: tf})
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].DocID < list[j].DocID
	})
	return list
}

// Contains reports whether term occurs in at least one document.
func (ix *Index) Contains(term string) bool {
	_, ok := ix.postings[term]
	return ok
}

func (ix *Index) DocCount() int { return ix.docCount }

// AvgDocLength is 0 before Finalize and for an empty corpus.
func (ix *Index) AvgDocLength() float64 { return ix.avgDocLength }

func (ix *Index) TotalTerms() int { return ix.totalTerms }

func (ix *Index) DocLength(docID string) int { return ix.docLengths[docID] }

// Vector returns the TF-IDF vector of docID. It is only populated after
// Finalize.
func (ix *Index) Vector(docID string) (Vector, bool) {
	v, ok := ix.vectors[docID]
	return v, ok
}

// IDF returns ln(N/df) for an indexed term, 0 otherwise.
func (ix *Index) IDF(term string) float64 { return ix.idf[term] }

// CollectionFrequency returns the sum of term's frequencies over the corpus.
func (ix *Index) CollectionFrequency(term string) int { return ix.cf[term] }

// DocIDs returns the finalized document ids in ascending order. The slice is
// shared and must not be modified.
func (ix *Index) DocIDs() []string { return ix.docIDs }

func (ix *Index) VocabularySize() int { return len(ix.postings) }

// Snapshot returns every term with its sorted postings, ordered by term.
func (ix *Index) Snapshot() []TermEntry {
	entries := make([]TermEntry, 0, len(ix.postings))
	for _, term := range slices.Sorted(maps.Keys(ix.postings)) {
		entries = append(entries, TermEntry{
			Term:     term,
			Postings: ix.PostingList(term),
		})
	}
	return entries
}
