package evaluation

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/errors"
)

// Qrels key conventions accepted by AlignQrels.
const (
	KeyedBySequential = "sequential"
	KeyedByOriginal   = "original"
)

// Summary is the evaluation of one run over every judged query.
type Summary struct {
	RunID             string            `json:"run_id"`
	Queries           int               `json:"num_q"`
	Retrieved         int               `json:"num_ret"`
	Relevant          int               `json:"num_rel"`
	RelevantRetrieved int               `json:"num_rel_ret"`
	Mean              Measures          `json:"mean"`
	PerQuery          []QueryEvaluation `json:"per_query"`
}

// Evaluate scores a run against qrels. Every query with at least one
// relevant judgment is averaged in; a judged query absent from the run
// contributes zeros. Run queries without judgments are ignored.
func Evaluate(runID string, run map[string][]ranker.ScoredDoc, qrels corpus.Qrels) Summary {
	s := Summary{RunID: runID}
	for _, qid := range sortedIDs(slices.Collect(maps.Keys(qrels))) {
		if qrels.NumRelevant(qid) == 0 {
			continue
		}
		ev := EvaluateQuery(run[qid], qrels[qid])
		ev.QueryID = qid
		s.PerQuery = append(s.PerQuery, ev)
		s.Queries++
		s.Retrieved += ev.Retrieved
		s.Relevant += ev.Relevant
		s.RelevantRetrieved += ev.RelevantRetrieved
		s.Mean.add(ev.Measures)
	}
	if s.Queries > 0 {
		s.Mean.scale(1 / float64(s.Queries))
	}

	unjudged := 0
	for qid := range run {
		if qrels.NumRelevant(qid) == 0 {
			unjudged++
		}
	}
	if unjudged > 0 {
		slog.Default().With("component", "evaluation").Debug("run queries without relevant judgments",
			"run_id", runID,
			"queries", unjudged,
		)
	}
	return s
}

// AlignQrels returns qrels keyed by sequential query id, the key run files
// use. Qrels keyed by original topic number are translated through ids;
// topics missing from ids are dropped.
func AlignQrels(qrels corpus.Qrels, ids *corpus.IDMap, keyedBy string) (corpus.Qrels, error) {
	switch keyedBy {
	case "", KeyedBySequential:
		return qrels, nil
	case KeyedByOriginal:
		if ids == nil {
			return nil, fmt.Errorf("%w: qrels keyed by original id need a query id mapping", apperrors.ErrInvalidInput)
		}
		aligned := qrels.Remap(ids.Sequential)
		if dropped := len(qrels) - len(aligned); dropped > 0 {
			slog.Default().With("component", "evaluation").Warn("qrels topics missing from id mapping",
				"topics", dropped,
			)
		}
		return aligned, nil
	default:
		return nil, fmt.Errorf("%w: qrels keyed by %q", apperrors.ErrInvalidInput, keyedBy)
	}
}

// sortedIDs orders query ids numerically when both parse as integers and
// lexically otherwise.
func sortedIDs(ids []string) []string {
	slices.SortFunc(ids, func(a, b string) int {
		na, errA := strconv.Atoi(a)
		nb, errB := strconv.Atoi(b)
		if errA == nil && errB == nil && na != nb {
			if na < nb {
				return -1
			}
			return 1
		}
		return strings.Compare(a, b)
	})
	return ids
}
