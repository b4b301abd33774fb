// Package evaluation scores ranked runs against graded relevance judgments
// using the trec_eval measures reported for the benchmark.
package evaluation

import (
	"math"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/searcher/ranker"
)

// Measure names follow trec_eval's output labels.
const (
	MeasureMAP       = "map"
	MeasureP5        = "P_5"
	MeasureP10       = "P_10"
	MeasureRPrec     = "Rprec"
	MeasureRecall100 = "recall_100"
	MeasureNDCG10    = "ndcg_cut_10"
	MeasureMRR       = "recip_rank"
)

// MeasureNames lists the reported measures in display order.
var MeasureNames = []string{
	MeasureMAP,
	MeasureP5,
	MeasureP10,
	MeasureRPrec,
	MeasureRecall100,
	MeasureNDCG10,
	MeasureMRR,
}

// Measures holds one value per reported measure. For a single query AP and
// RR are stored in the MAP and MRR fields.
type Measures struct {
	MAP       float64 `json:"map"`
	P5        float64 `json:"p_5"`
	P10       float64 `json:"p_10"`
	RPrec     float64 `json:"rprec"`
	Recall100 float64 `json:"recall_100"`
	NDCG10    float64 `json:"ndcg_cut_10"`
	MRR       float64 `json:"recip_rank"`
}

// Get returns the value of a named measure.
func (m Measures) Get(name string) (float64, bool) {
	switch name {
	case MeasureMAP:
		return m.MAP, true
	case MeasureP5:
		return m.P5, true
	case MeasureP10:
		return m.P10, true
	case MeasureRPrec:
		return m.RPrec, true
	case MeasureRecall100:
		return m.Recall100, true
	case MeasureNDCG10:
		return m.NDCG10, true
	case MeasureMRR:
		return m.MRR, true
	default:
		return 0, false
	}
}

func (m *Measures) add(o Measures) {
	m.MAP += o.MAP
	m.P5 += o.P5
	m.P10 += o.P10
	m.RPrec += o.RPrec
	m.Recall100 += o.Recall100
	m.NDCG10 += o.NDCG10
	m.MRR += o.MRR
}

func (m *Measures) scale(f float64) {
	m.MAP *= f
	m.P5 *= f
	m.P10 *= f
	m.RPrec *= f
	m.Recall100 *= f
	m.NDCG10 *= f
	m.MRR *= f
}

// QueryEvaluation is the result for one judged query.
type QueryEvaluation struct {
	QueryID           string `json:"query_id"`
	Relevant          int    `json:"num_rel"`
	Retrieved         int    `json:"num_ret"`
	RelevantRetrieved int    `json:"num_rel_ret"`
	Measures
}

// EvaluateQuery scores one ranked list against the judgments of its query.
// Documents missing from judged, or judged with a grade <= 0, are not
// relevant. Results must already be in rank order.
func EvaluateQuery(results []ranker.ScoredDoc, judged map[string]int) QueryEvaluation {
	var gains []float64
	for _, g := range judged {
		if g > 0 {
			gains = append(gains, float64(g))
		}
	}
	numRel := len(gains)
	ev := QueryEvaluation{Relevant: numRel, Retrieved: len(results)}

	// hits[k] is the number of relevant documents in the first k results.
	hits := make([]int, len(results)+1)
	var sumPrec, dcg float64
	for i, doc := range results {
		rank := i + 1
		hits[rank] = hits[i]
		g := judged[doc.DocID]
		if g <= 0 {
			continue
		}
		hits[rank]++
		sumPrec += float64(hits[rank]) / float64(rank)
		if ev.MRR == 0 {
			ev.MRR = 1 / float64(rank)
		}
		if rank <= 10 {
			dcg += float64(g) / math.Log2(float64(rank+1))
		}
	}
	ev.RelevantRetrieved = hits[len(results)]

	relAt := func(k int) int {
		return hits[min(k, len(results))]
	}
	ev.P5 = float64(relAt(5)) / 5
	ev.P10 = float64(relAt(10)) / 10
	if numRel == 0 {
		return ev
	}
	ev.MAP = sumPrec / float64(numRel)
	ev.RPrec = float64(relAt(numRel)) / float64(numRel)
	ev.Recall100 = float64(relAt(100)) / float64(numRel)
	if idcg := idealDCG(gains, 10); idcg > 0 {
		ev.NDCG10 = dcg / idcg
	}
	return ev
}

func idealDCG(gains []float64, depth int) float64 {
	sorted := slices.Clone(gains)
	slices.Sort(sorted)
	slices.Reverse(sorted)
	var idcg float64
	for i, g := range sorted {
		if i >= depth {
			break
		}
		idcg += g / math.Log2(float64(i+2))
	}
	return idcg
}
