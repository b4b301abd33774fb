//go:build e2e

// Package e2e runs the cranfield binary against the full benchmark dataset:
// check, a three-model run with evaluation, and a separate evaluate pass
// over the files the run wrote.
//
// Prerequisites:
//   - a built binary: go build -o bin/cranfield ./cmd/cranfield
//   - the dataset files cran.all.1400.xml, cran.qry.xml, cranqrel.trec.txt
//
// Run with:
//
//	E2E_CRANFIELD_BIN=$PWD/bin/cranfield E2E_DATASET_DIR=$PWD/data \
//	  go test -v -tags=e2e -timeout=300s ./test/e2e/...
package e2e

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type e2eConfig struct {
	Binary     string
	DatasetDir string
}

func loadE2EConfig(t *testing.T) e2eConfig {
	t.Helper()
	cfg := e2eConfig{
		Binary:     os.Getenv("E2E_CRANFIELD_BIN"),
		DatasetDir: envOrDefault("E2E_DATASET_DIR", "data"),
	}
	if cfg.Binary == "" {
		t.Skip("E2E_CRANFIELD_BIN not set")
	}
	if _, err := os.Stat(filepath.Join(cfg.DatasetDir, "cran.all.1400.xml")); err != nil {
		t.Skipf("dataset unavailable: %v", err)
	}
	return cfg
}

func (c e2eConfig) datasetArgs() []string {
	return []string{
		"--documents", filepath.Join(c.DatasetDir, "cran.all.1400.xml"),
		"--queries", filepath.Join(c.DatasetDir, "cran.qry.xml"),
		"--qrels", filepath.Join(c.DatasetDir, "cranqrel.trec.txt"),
	}
}

// cranfield runs the binary and returns stdout, stderr and the exit code.
func (c e2eConfig) cranfield(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	code := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		code = exitErr.ExitCode()
	} else if err != nil {
		t.Fatalf("running cranfield: %v", err)
	}
	return stdout.String(), stderr.String(), code
}

func TestCheckDataset(t *testing.T) {
	cfg := loadE2EConfig(t)
	t.Setenv("CRAN_DOCUMENTS", filepath.Join(cfg.DatasetDir, "cran.all.1400.xml"))
	t.Setenv("CRAN_QUERIES", filepath.Join(cfg.DatasetDir, "cran.qry.xml"))
	t.Setenv("CRAN_QRELS", filepath.Join(cfg.DatasetDir, "cranqrel.trec.txt"))

	stdout, stderr, code := cfg.cranfield(t, "check")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "documents")
	assert.NotContains(t, stdout, "down")
}

func TestRunAndEvaluate(t *testing.T) {
	cfg := loadE2EConfig(t)
	outDir := t.TempDir()

	args := append([]string{"run", "--output-dir", outDir, "--run-id", "e2e", "--evaluate"}, cfg.datasetArgs()...)
	stdout, stderr, code := cfg.cranfield(t, args...)
	require.Equal(t, 0, code, stderr)
	for _, model := range []string{"vsm", "bm25", "lm_dirichlet"} {
		assert.Contains(t, stdout, "e2e_"+model)
		checkRunFile(t, filepath.Join(outDir, "results_"+model+".txt"), "e2e_"+model)
	}

	mapping, err := os.ReadFile(filepath.Join(outDir, "query_id_mapping.txt"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(mapping)), "\n")
	assert.Equal(t, "sequential_id,original_id", lines[0])
	assert.Len(t, lines, 226)

	evalOut, stderr, code := cfg.cranfield(t, "evaluate",
		"--results-dir", outDir,
		"--run-id", "e2e",
		"--qrels", filepath.Join(cfg.DatasetDir, "cranqrel.trec.txt"),
	)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, evalOut, "ndcg_cut_10")
}

func TestRunIsRepeatable(t *testing.T) {
	cfg := loadE2EConfig(t)
	first, second := t.TempDir(), t.TempDir()

	for i, dir := range []string{first, second} {
		workers := strconv.Itoa(1 + i*7)
		args := append([]string{"run", "--output-dir", dir, "--models", "bm25", "--workers", workers}, cfg.datasetArgs()...)
		_, stderr, code := cfg.cranfield(t, args...)
		require.Equal(t, 0, code, stderr)
	}
	a, err := os.ReadFile(filepath.Join(first, "results_bm25.txt"))
	require.NoError(t, err)
	b, err := os.ReadFile(filepath.Join(second, "results_bm25.txt"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestMissingDatasetExitCode(t *testing.T) {
	cfg := loadE2EConfig(t)
	_, _, code := cfg.cranfield(t, "run",
		"--documents", filepath.Join(t.TempDir(), "absent.xml"),
		"--output-dir", t.TempDir(),
	)
	assert.Equal(t, 4, code)
}

// checkRunFile asserts the six-column layout, at most 100 lines per query
// and contiguous ranks with non-increasing scores.
func checkRunFile(t *testing.T, path, runID string) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	perQuery := map[string]int{}
	lastScore := map[string]float64{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		require.Len(t, fields, 6, scanner.Text())
		assert.Equal(t, "Q0", fields[1])
		assert.Equal(t, runID, fields[5])

		qid := fields[0]
		perQuery[qid]++
		rank, err := strconv.Atoi(fields[3])
		require.NoError(t, err)
		assert.Equal(t, perQuery[qid], rank)

		score, err := strconv.ParseFloat(fields[4], 64)
		require.NoError(t, err)
		if prev, ok := lastScore[qid]; ok {
			assert.LessOrEqual(t, score, prev)
		}
		lastScore[qid] = score
	}
	require.NoError(t, scanner.Err())
	assert.NotEmpty(t, perQuery)
	for qid, n := range perQuery {
		assert.LessOrEqual(t, n, 100, "query %s", qid)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
