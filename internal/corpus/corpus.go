// Package corpus loads a TREC-style benchmark collection: the document XML,
// the topic (query) XML, and the relevance judgments.
package corpus

import (
	"slices"
	"strconv"
)

// Document is one record of the collection.
type Document struct {
	ID     string
	Title  string
	Author string
	Body   string
}

// IndexableText is the text that gets indexed: title and body joined by a
// single space.
func (d Document) IndexableText() string {
	return d.Title + " " + d.Body
}

// Query is one topic. ID is the sequential id (1..N in file order) used in
// run files; OriginalID is the topic number found in the file.
type Query struct {
	ID         string
	OriginalID string
	Text       string
}

// IDMap associates sequential query ids with original topic numbers in both
// directions. It is built once when queries are loaded.
type IDMap struct {
	toOriginal   map[string]string
	toSequential map[string]string
	order        []string
}

func NewIDMap() *IDMap {
	return &IDMap{
		toOriginal:   make(map[string]string),
		toSequential: make(map[string]string),
	}
}

// Add records a pair. A repeated original id keeps its first sequential id
// for the reverse direction.
func (m *IDMap) Add(sequential, original string) {
	if _, ok := m.toOriginal[sequential]; !ok {
		m.order = append(m.order, sequential)
	}
	m.toOriginal[sequential] = original
	if _, ok := m.toSequential[original]; !ok {
		m.toSequential[original] = sequential
	}
}

func (m *IDMap) Original(sequential string) (string, bool) {
	v, ok := m.toOriginal[sequential]
	return v, ok
}

func (m *IDMap) Sequential(original string) (string, bool) {
	v, ok := m.toSequential[original]
	return v, ok
}

func (m *IDMap) Len() int { return len(m.order) }

// IDPair is one sequential/original association.
type IDPair struct {
	Sequential string
	Original   string
}

// Pairs returns every association ordered by numeric sequential id.
func (m *IDMap) Pairs() []IDPair {
	seqs := slices.Clone(m.order)
	slices.SortStableFunc(seqs, func(a, b string) int {
		ai, aerr := strconv.Atoi(a)
		bi, berr := strconv.Atoi(b)
		if aerr == nil && berr == nil {
			return ai - bi
		}
		if a < b {
			return -1
		}
		if a > b {
			return 1
		}
		return 0
	})
	pairs := make([]IDPair, len(seqs))
	for i, s := range seqs {
		pairs[i] = IDPair{Sequential: s, Original: m.toOriginal[s]}
	}
	return pairs
}
