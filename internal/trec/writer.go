// Package trec reads and writes TREC run files and the query id mapping
// file that accompanies them.
//
// A run line is "<query_id> Q0 <doc_id> <rank> <score> <run_id>" with a
// 1-based rank and the score printed with six decimals.
package trec

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/errors"
)

// MappingFile is the name of the query id mapping written next to the runs.
const MappingFile = "query_id_mapping.txt"

// Ranking is one query's ranked list as written to a run file.
type Ranking struct {
	QueryID string
	Results []ranker.ScoredDoc
}

// RunFileName returns "results_<model>.txt".
func RunFileName(model string) string {
	return "results_" + model + ".txt"
}

// RunID returns "<base>_<model>".
func RunID(base, model string) string {
	return base + "_" + model
}

// WriteRun writes rankings to w in query order.
func WriteRun(w io.Writer, runID string, rankings []Ranking) error {
	bw := bufio.NewWriter(w)
	for _, r := range rankings {
		for i, doc := range r.Results {
			if _, err := fmt.Fprintf(bw, "%s Q0 %s %d %.6f %s\n", r.QueryID, doc.DocID, i+1, doc.Score, runID); err != nil {
				return fmt.Errorf("%w: %v", apperrors.ErrOutputFailed, err)
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrOutputFailed, err)
	}
	return nil
}

// WriteRunFile writes a run file at path, creating parent directories.
func WriteRunFile(path, runID string, rankings []Ranking) error {
	return writeFile(path, func(w io.Writer) error {
		return WriteRun(w, runID, rankings)
	})
}

// WriteIDMapping writes "sequential_id,original_id" rows in sequential order.
func WriteIDMapping(w io.Writer, ids *corpus.IDMap) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"sequential_id", "original_id"}); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrOutputFailed, err)
	}
	for _, p := range ids.Pairs() {
		if err := cw.Write([]string{p.Sequential, p.Original}); err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrOutputFailed, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrOutputFailed, err)
	}
	return nil
}

func WriteIDMappingFile(path string, ids *corpus.IDMap) error {
	return writeFile(path, func(w io.Writer) error {
		return WriteIDMapping(w, ids)
	})
}

func writeFile(path string, fn func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %v", apperrors.ErrOutputFailed, filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrOutputFailed, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %v", apperrors.ErrOutputFailed, path, err)
	}
	return nil
}
