// Package ranker scores documents of a finalized index against a normalized
// query under one of three retrieval models: vector-space cosine similarity,
// Okapi BM25, and a Dirichlet-smoothed query-likelihood language model.
//
// Every ranker returns results ordered by descending score with ties broken
// by ascending document id, truncated to the requested depth. Rankers only
// read the index and are safe for concurrent use.
package ranker

import (
	"fmt"
	"math"

	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/errors"
)

const (
	DefaultTopK = 100
	DefaultK1   = 1.2
	DefaultB    = 0.75
	DefaultMu   = 2000.0

	// missingTermPenalty replaces ln(p) when the smoothed probability is not
	// positive.
	missingTermPenalty = -100.0
)

// Model names a ranking model. The string form is used in run file names
// and run ids.
type Model string

const (
	ModelVSM         Model = "vsm"
	ModelBM25        Model = "bm25"
	ModelLMDirichlet Model = "lm_dirichlet"
)

// Models lists every supported model in reporting order.
var Models = []Model{ModelVSM, ModelBM25, ModelLMDirichlet}

func ParseModel(name string) (Model, error) {
	switch Model(name) {
	case ModelVSM, ModelBM25, ModelLMDirichlet:
		return Model(name), nil
	}
	return "", fmt.Errorf("%w: %q", apperrors.ErrUnknownModel, name)
}

type ScoredDoc struct {
	DocID string  `json:"doc_id" cbor:"1,keyasint"`
	Score float64 `json:"score" cbor:"2,keyasint"`
}

// Params carries the free parameters of all three models.
type Params struct {
	TopK int
	K1   float64
	B    float64
	Mu   float64
}

func DefaultParams() Params {
	return Params{TopK: DefaultTopK, K1: DefaultK1, B: DefaultB, Mu: DefaultMu}
}

func (p Params) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{{"k1", p.K1}, {"b", p.B}, {"mu", p.Mu}} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s must be finite, got %v", apperrors.ErrInvalidInput, f.name, f.v)
		}
	}
	if p.K1 < 0 {
		return fmt.Errorf("%w: k1 must be non-negative, got %v", apperrors.ErrInvalidInput, p.K1)
	}
	if p.B < 0 || p.B > 1 {
		return fmt.Errorf("%w: b must be within [0, 1], got %v", apperrors.ErrInvalidInput, p.B)
	}
	if p.Mu < 0 {
		return fmt.Errorf("%w: mu must be non-negative, got %v", apperrors.ErrInvalidInput, p.Mu)
	}
	return nil
}

// Ranker scores an index for one query. tokens must come from the same
// normalizer as the indexed documents; topK <= 0 means DefaultTopK.
type Ranker interface {
	Model() Model
	Rank(tokens []string, topK int) ([]ScoredDoc, error)
}

// New builds the ranker for model over ix.
func New(model Model, ix *index.Index, p Params) (Ranker, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	switch model {
	case ModelVSM:
		return NewVectorSpace(ix), nil
	case ModelBM25:
		return NewBM25(ix, p.K1, p.B), nil
	case ModelLMDirichlet:
		return NewLMDirichlet(ix, p.Mu), nil
	default:
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownModel, model)
	}
}

func checkFinalized(ix *index.Index) error {
	if ix.State() != index.StateFinalized {
		return fmt.Errorf("ranking: %w", apperrors.ErrNotFinalized)
	}
	return nil
}

func depth(topK int) int {
	if topK <= 0 {
		return DefaultTopK
	}
	return topK
}
