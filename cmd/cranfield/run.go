package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/evaluation"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/trec"
	apperrors "github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/tracing"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Index the collection, rank every query under each model and write TREC run files",
	Example: `  # Run all three models with the built-in dataset paths
  cranfield run

  # Run BM25 only with custom parameters and score the result
  cranfield run --models bm25 --k1 1.5 --b 0.6 --evaluate
`,
	Args: cobra.NoArgs,
	RunE: runCmdRun,
}

type runFlags struct {
	documents  string
	queries    string
	qrels      string
	outputDir  string
	runID      string
	models     []string
	topK       int
	workers    int
	k1         float64
	b          float64
	mu         float64
	evaluate   bool
	invalidate bool
}

var runArgs runFlags

func init() {
	runCmd.Flags().StringVar(&runArgs.documents, "documents", "", "path to the document collection XML")
	runCmd.Flags().StringVar(&runArgs.queries, "queries", "", "path to the topics XML")
	runCmd.Flags().StringVar(&runArgs.qrels, "qrels", "", "path to the relevance judgments, used with --evaluate")
	runCmd.Flags().StringVarP(&runArgs.outputDir, "output-dir", "o", "", "directory the run files are written to")
	runCmd.Flags().StringVar(&runArgs.runID, "run-id", "", "run id prefix written in the last column of every run line")
	runCmd.Flags().StringSliceVarP(&runArgs.models, "models", "m", nil, "ranking models to run: vsm, bm25, lm_dirichlet")
	runCmd.Flags().IntVarP(&runArgs.topK, "top-k", "k", 0, "number of results kept per query")
	runCmd.Flags().IntVar(&runArgs.workers, "workers", 0, "queries ranked concurrently")
	runCmd.Flags().Float64Var(&runArgs.k1, "k1", 0, "BM25 term-frequency saturation")
	runCmd.Flags().Float64Var(&runArgs.b, "b", 0, "BM25 length normalization")
	runCmd.Flags().Float64Var(&runArgs.mu, "mu", 0, "Dirichlet smoothing parameter")
	runCmd.Flags().BoolVar(&runArgs.evaluate, "evaluate", false, "score the runs against the qrels when done")
	runCmd.Flags().BoolVar(&runArgs.invalidate, "invalidate-cache", false, "drop cached rankings of this collection before ranking")
	rootCmd.AddCommand(runCmd)
}

// applyRunFlags copies explicitly set flags over the loaded config.
func applyRunFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	if flags.Changed("documents") {
		cfg.Corpus.DocumentsPath = runArgs.documents
	}
	if flags.Changed("queries") {
		cfg.Corpus.QueriesPath = runArgs.queries
	}
	if flags.Changed("qrels") {
		cfg.Corpus.QrelsPath = runArgs.qrels
	}
	if flags.Changed("output-dir") {
		cfg.Output.Dir = runArgs.outputDir
	}
	if flags.Changed("run-id") {
		cfg.Output.RunID = runArgs.runID
	}
	if flags.Changed("models") {
		cfg.Ranking.Models = runArgs.models
	}
	if flags.Changed("top-k") {
		cfg.Ranking.TopK = runArgs.topK
	}
	if flags.Changed("workers") {
		cfg.Ranking.Workers = runArgs.workers
	}
	if flags.Changed("k1") {
		cfg.Ranking.K1 = runArgs.k1
	}
	if flags.Changed("b") {
		cfg.Ranking.B = runArgs.b
	}
	if flags.Changed("mu") {
		cfg.Ranking.Mu = runArgs.mu
	}
	if err := cfg.Validate(); err != nil {
		return apperrors.New(apperrors.ErrInvalidInput, apperrors.ExitUsage, err.Error())
	}
	p := ranker.Params{TopK: cfg.Ranking.TopK, K1: cfg.Ranking.K1, B: cfg.Ranking.B, Mu: cfg.Ranking.Mu}
	if err := p.Validate(); err != nil {
		return err
	}
	return nil
}

func runCmdRun(cmd *cobra.Command, _ []string) error {
	if err := applyRunFlags(cmd); err != nil {
		return err
	}
	models, err := parseModels(cfg.Ranking.Models)
	if err != nil {
		return err
	}

	runID := cfg.Output.RunID
	ctx := logger.WithRunID(cmd.Context(), runID)
	log := logger.FromContext(ctx).With("component", "pipeline")
	ctx, root := tracing.StartSpan(ctx, "run", uuid.NewString())
	defer func() {
		root.End()
		if cfg.Tracing.Enabled {
			root.Log()
		}
	}()

	if err := preflight(ctx, runArgs.evaluate); err != nil {
		return err
	}

	m := metrics.New()
	if cfg.Metrics.Enabled {
		_, shutdown, err := m.StartServer(cfg.Metrics.Port)
		if err != nil {
			return apperrors.New(apperrors.ErrInvalidInput, apperrors.ExitUsage, err.Error())
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Warn("metrics server shutdown", "error", err)
			}
		}()
	}

	docs, queries, ids, err := loadCorpus(ctx, log)
	if err != nil {
		return err
	}
	engine, err := buildIndex(ctx, log, docs, m)
	if err != nil {
		return err
	}

	svc, err := openServices(ctx, cfg, m)
	if err != nil {
		return err
	}
	defer svc.Close()

	if runArgs.invalidate {
		invalidateCache(ctx, log, svc.cache, engine.Fingerprint())
	}

	svc.collector.Track(engine.Fingerprint(), analytics.IndexEvent{
		Type:           analytics.EventIndexFinalized,
		RunID:          runID,
		Fingerprint:    engine.Fingerprint(),
		Documents:      engine.Index().DocCount(),
		VocabularySize: engine.Index().VocabularySize(),
		AvgDocLength:   engine.Index().AvgDocLength(),
		Timestamp:      time.Now().UTC(),
	})

	opts := []executor.Option{executor.WithCollector(svc.collector), executor.WithMetrics(m)}
	if svc.cache != nil {
		opts = append(opts, executor.WithCache(svc.cache))
	}
	exec := executor.New(engine, cfg.Ranking, opts...)

	runs := make([]namedRun, 0, len(models))
	for _, model := range models {
		run, err := exec.RunModel(ctx, model, queries)
		if err != nil {
			return fmt.Errorf("running %s: %w", model, err)
		}
		modelRunID := trec.RunID(runID, string(model))
		if err := writeRun(ctx, model, modelRunID, run); err != nil {
			return err
		}
		runs = append(runs, namedRun{id: modelRunID, queries: runQueries(run)})

		stats := svc.collector.Aggregator().Stats(string(model))
		svc.collector.Track(modelRunID, analytics.RunEvent{
			Type:      analytics.EventRunCompleted,
			RunID:     modelRunID,
			Model:     string(model),
			Stats:     stats,
			Timestamp: time.Now().UTC(),
		})
		log.Info("run written",
			"model", model,
			"file", filepath.Join(cfg.Output.Dir, trec.RunFileName(string(model))),
			"queries", stats.Queries,
			"zero_results", stats.ZeroResults,
			"cache_hits", stats.CacheHits,
			"p95_latency_us", stats.P95LatencyMicros,
			"elapsed_seconds", run.Elapsed.Seconds(),
		)
	}

	mappingPath := filepath.Join(cfg.Output.Dir, trec.MappingFile)
	if err := trec.WriteIDMappingFile(mappingPath, ids); err != nil {
		return err
	}
	log.Info("query id mapping written", "file", mappingPath, "queries", ids.Len())

	if runArgs.evaluate {
		qrels, err := loadQrels(ids)
		if err != nil {
			return err
		}
		summaries := evaluateRuns(ctx, runs, qrels)
		printSummaries(cmd.OutOrStdout(), summaries)
		if err := recordSummaries(ctx, m, svc.store, engine.Fingerprint(), summaries); err != nil {
			return err
		}
	}

	if err := m.Push(ctx, cfg.Metrics.PushgatewayURL, cfg.Metrics.JobName, map[string]string{"run_id": runID}); err != nil {
		log.Warn("metrics push failed", "error", err)
	}
	return nil
}

// invalidateCache drops the cached rankings of one collection. A failure only
// costs cache hits, so it is logged and the run goes on.
func invalidateCache(ctx context.Context, log *slog.Logger, qc *cache.QueryCache, fingerprint string) {
	if qc == nil {
		log.Warn("ranking cache disabled, nothing to invalidate")
		return
	}
	if err := qc.Invalidate(ctx, fingerprint); err != nil {
		log.Warn("cache invalidation failed", "fingerprint", fingerprint, "error", err)
	}
}

func parseModels(names []string) ([]ranker.Model, error) {
	models := make([]ranker.Model, 0, len(names))
	for _, name := range names {
		model, err := ranker.ParseModel(name)
		if err != nil {
			return nil, err
		}
		models = append(models, model)
	}
	return models, nil
}

// preflight fails fast when a required dataset file is missing.
func preflight(ctx context.Context, withQrels bool) error {
	checker := health.NewChecker(5 * time.Second)
	checker.Register("documents", health.FileCheck(cfg.Corpus.DocumentsPath))
	checker.Register("queries", health.FileCheck(cfg.Corpus.QueriesPath))
	if withQrels {
		checker.Register("qrels", health.FileCheck(cfg.Corpus.QrelsPath))
	}
	report := checker.Run(ctx)
	for _, name := range report.Names() {
		if comp := report.Components[name]; comp.Status == health.StatusDown {
			return apperrors.Newf(apperrors.ErrDatasetMissing, apperrors.ExitDataset, "%s: %s", name, comp.Message)
		}
	}
	return nil
}

// loadCorpus reads documents and queries. Malformed markup is logged and
// yields an empty collection; a missing file is fatal.
func loadCorpus(ctx context.Context, log *slog.Logger) ([]corpus.Document, []corpus.Query, *corpus.IDMap, error) {
	_, span := tracing.StartChildSpan(ctx, "load")
	defer span.End()
	start := time.Now()

	docs, err := corpus.LoadDocuments(cfg.Corpus.DocumentsPath)
	if err != nil {
		if !apperrors.Is(err, apperrors.ErrMalformedInput) {
			return nil, nil, nil, err
		}
		log.Warn("document collection unreadable, continuing with no documents", "error", err)
	}
	queries, ids, err := corpus.LoadQueries(cfg.Corpus.QueriesPath)
	if err != nil {
		if !apperrors.Is(err, apperrors.ErrMalformedInput) {
			return nil, nil, nil, err
		}
		log.Warn("topics unreadable, continuing with no queries", "error", err)
		if ids == nil {
			ids = corpus.NewIDMap()
		}
	}

	span.SetAttr("documents", len(docs))
	span.SetAttr("queries", len(queries))
	log.Info("corpus loaded",
		"documents", len(docs),
		"queries", len(queries),
		"elapsed_seconds", time.Since(start).Seconds(),
	)
	return docs, queries, ids, nil
}

func buildIndex(ctx context.Context, log *slog.Logger, docs []corpus.Document, m *metrics.Metrics) (*indexer.Engine, error) {
	_, span := tracing.StartChildSpan(ctx, "index")
	defer span.End()

	engine, err := indexer.NewEngine(cfg.Indexer, m)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInvalidInput, apperrors.ExitUsage, err.Error())
	}
	duplicates := 0
	for _, doc := range docs {
		if err := engine.IndexDocument(doc); err != nil {
			if apperrors.Is(err, apperrors.ErrDocumentExists) {
				duplicates++
				log.Warn("duplicate document skipped", "doc_id", doc.ID)
				continue
			}
			return nil, err
		}
	}
	if err := engine.Finalize(); err != nil {
		return nil, err
	}
	span.SetAttr("vocabulary_size", engine.Index().VocabularySize())
	span.SetAttr("duplicates", duplicates)
	return engine, nil
}

func writeRun(ctx context.Context, model ranker.Model, runID string, run *executor.Run) error {
	_, span := tracing.StartChildSpan(ctx, "write."+string(model))
	defer span.End()

	rankings := make([]trec.Ranking, len(run.Results))
	for i, res := range run.Results {
		rankings[i] = trec.Ranking{QueryID: res.QueryID, Results: res.Results}
	}
	path := filepath.Join(cfg.Output.Dir, trec.RunFileName(string(model)))
	if err := trec.WriteRunFile(path, runID, rankings); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func runQueries(run *executor.Run) map[string][]ranker.ScoredDoc {
	out := make(map[string][]ranker.ScoredDoc, len(run.Results))
	for _, res := range run.Results {
		out[res.QueryID] = res.Results
	}
	return out
}

// loadQrels reads the judgments and keys them by sequential query id.
func loadQrels(ids *corpus.IDMap) (corpus.Qrels, error) {
	qrels, err := corpus.LoadQrels(cfg.Corpus.QrelsPath)
	if err != nil {
		return nil, err
	}
	return evaluation.AlignQrels(qrels, ids, cfg.Evaluation.QrelsKeyedBy)
}
