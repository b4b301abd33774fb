package corpus

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Qrels holds graded relevance judgments: query id -> doc id -> grade.
// Grades <= 0 mean not relevant.
type Qrels map[string]map[string]int

// LoadQrels reads a four-column TREC qrels file.
func LoadQrels(path string) (Qrels, error) {
	f, err := openDataset(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	q, err := ParseQrels(f)
	if err != nil {
		return q, fmt.Errorf("parsing %s: %w", path, err)
	}
	return q, nil
}

// ParseQrels reads "qid iter docid rel" lines. Lines that do not have four
// fields or an integer grade are skipped. A later judgment for the same
// pair replaces an earlier one.
func ParseQrels(r io.Reader) (Qrels, error) {
	qrels := make(Qrels)
	skipped := 0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 4 {
			skipped++
			continue
		}
		grade, err := strconv.Atoi(fields[3])
		if err != nil {
			skipped++
			continue
		}
		qid, docID := fields[0], fields[2]
		docs, ok := qrels[qid]
		if !ok {
			docs = make(map[string]int)
			qrels[qid] = docs
		}
		docs[docID] = grade
	}
	if err := scanner.Err(); err != nil {
		return qrels, fmt.Errorf("reading qrels: %w", err)
	}
	if skipped > 0 {
		slog.Default().With("component", "corpus").Warn("skipped malformed qrels lines", "lines", skipped)
	}
	return qrels, nil
}

// Grade returns the judgment for (qid, docID), 0 when unjudged.
func (q Qrels) Grade(qid, docID string) int {
	return q[qid][docID]
}

// NumRelevant counts the documents judged relevant for qid.
func (q Qrels) NumRelevant(qid string) int {
	n := 0
	for _, g := range q[qid] {
		if g > 0 {
			n++
		}
	}
	return n
}

// QueryIDs returns the judged query ids in ascending order.
func (q Qrels) QueryIDs() []string {
	return slices.Sorted(maps.Keys(q))
}

// Remap returns a copy of q with query ids translated by fn. Queries for
// which fn reports false are dropped.
func (q Qrels) Remap(fn func(string) (string, bool)) Qrels {
	out := make(Qrels, len(q))
	for qid, docs := range q {
		mapped, ok := fn(qid)
		if !ok {
			continue
		}
		out[mapped] = maps.Clone(docs)
	}
	return out
}
