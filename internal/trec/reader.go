package trec

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/errors"
)

// Run is a parsed run file: query id -> results in rank order.
type Run struct {
	ID      string
	Queries map[string][]ranker.ScoredDoc
}

// ReadRun parses run lines from r. Results of a query are ordered by their
// rank column. A malformed line fails the whole read.
func ReadRun(r io.Reader) (*Run, error) {
	type ranked struct {
		rank int
		doc  ranker.ScoredDoc
	}
	byQuery := make(map[string][]ranked)
	run := &Run{Queries: make(map[string][]ranker.ScoredDoc)}

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 6 {
			return nil, fmt.Errorf("%w: line %d has %d fields", apperrors.ErrMalformedInput, line, len(fields))
		}
		rank, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d rank: %v", apperrors.ErrMalformedInput, line, err)
		}
		score, err := strconv.ParseFloat(fields[4], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d score: %v", apperrors.ErrMalformedInput, line, err)
		}
		if run.ID == "" {
			run.ID = fields[5]
		}
		byQuery[fields[0]] = append(byQuery[fields[0]], ranked{
			rank: rank,
			doc:  ranker.ScoredDoc{DocID: fields[2], Score: score},
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading run: %w", err)
	}

	for qid, entries := range byQuery {
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].rank < entries[j].rank
		})
		docs := make([]ranker.ScoredDoc, len(entries))
		for i, e := range entries {
			docs[i] = e.doc
		}
		run.Queries[qid] = docs
	}
	return run, nil
}

func ReadRunFile(path string) (*Run, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrDatasetMissing, path)
		}
		return nil, fmt.Errorf("opening run %s: %w", path, err)
	}
	defer f.Close()
	run, err := ReadRun(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return run, nil
}

// ReadIDMapping parses a mapping written by WriteIDMapping.
func ReadIDMapping(r io.Reader) (*corpus.IDMap, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedInput, err)
	}
	ids := corpus.NewIDMap()
	for i, rec := range records {
		if len(rec) != 2 {
			return nil, fmt.Errorf("%w: mapping row %d has %d fields", apperrors.ErrMalformedInput, i+1, len(rec))
		}
		if i == 0 && rec[0] == "sequential_id" {
			continue
		}
		ids.Add(rec[0], rec[1])
	}
	return ids, nil
}

func ReadIDMappingFile(path string) (*corpus.IDMap, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrDatasetMissing, path)
		}
		return nil, fmt.Errorf("opening mapping %s: %w", path, err)
	}
	defer f.Close()
	return ReadIDMapping(f)
}
