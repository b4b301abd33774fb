package indexer

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/zeebo/blake3"

	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/metrics"
)

// Engine drives an Index: it normalizes document text, feeds the index,
// and fingerprints the corpus once it is finalized.
type Engine struct {
	index       *index.Index
	logger      *slog.Logger
	metrics     *metrics.Metrics
	started     time.Time
	fingerprint string
}

func NewEngine(cfg config.IndexerConfig, m *metrics.Metrics) (*Engine, error) {
	policy, err := index.ParseDuplicatePolicy(cfg.DuplicatePolicy)
	if err != nil {
		return nil, fmt.Errorf("configuring indexer: %w", err)
	}
	return &Engine{
		index:   index.NewIndex(policy),
		logger:  slog.Default().With("component", "indexer"),
		metrics: m,
		started: time.Now(),
	}, nil
}

// IndexDocument normalizes the document's indexable text and adds the result.
func (e *Engine) IndexDocument(doc corpus.Document) error {
	tokens := tokenizer.Terms(doc.IndexableText())
	if err := e.index.AddDocument(doc.ID, tokens); err != nil {
		return err
	}
	e.metrics.DocIndexed()
	e.logger.Debug("document indexed",
		"doc_id", doc.ID,
		"token_count", len(tokens),
	)
	return nil
}

// Finalize freezes the index and computes the corpus fingerprint.
func (e *Engine) Finalize() error {
	if err := e.index.Finalize(); err != nil {
		return fmt.Errorf("finalizing index: %w", err)
	}
	e.fingerprint = fingerprint(e.index)
	elapsed := time.Since(e.started)
	e.metrics.IndexFinalized(e.index.VocabularySize(), e.index.AvgDocLength(), elapsed)
	e.logger.Info("index finalized",
		"docs", e.index.DocCount(),
		"vocabulary_size", e.index.VocabularySize(),
		"avg_doc_length", e.index.AvgDocLength(),
		"total_terms", e.index.TotalTerms(),
		"fingerprint", e.fingerprint[:16],
		"elapsed_seconds", elapsed.Seconds(),
	)
	return nil
}

// Analyze runs query text through the same normalizer as documents.
func (e *Engine) Analyze(text string) []string {
	return tokenizer.Terms(text)
}

func (e *Engine) Index() *index.Index { return e.index }

// Fingerprint is the hex BLAKE3 digest of the finalized corpus, empty
// before Finalize. Two engines built from the same documents agree on it.
func (e *Engine) Fingerprint() string { return e.fingerprint }

func fingerprint(ix *index.Index) string {
	h := blake3.New()
	var buf [binary.MaxVarintLen64]byte
	writeString := func(s string) {
		n := binary.PutUvarint(buf[:], uint64(len(s)))
		h.Write(buf[:n])
		h.Write([]byte(s))
	}
	writeInt := func(v int) {
		n := binary.PutUvarint(buf[:], uint64(v))
		h.Write(buf[:n])
	}

	for _, docID := range ix.DocIDs() {
		writeString(docID)
		writeInt(ix.DocLength(docID))
	}
	for _, entry := range ix.Snapshot() {
		writeString(entry.Term)
		writeInt(len(entry.Postings))
		for _, p := range entry.Postings {
			writeString(p.DocID)
			writeInt(p.Frequency)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
