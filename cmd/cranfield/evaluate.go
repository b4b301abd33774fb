package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/evaluation"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/trec"
	apperrors "github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/tracing"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score the run files of a results directory against the relevance judgments",
	Example: `  # Evaluate every model written by a previous run
  cranfield evaluate --results-dir results

  # Show per-query values for BM25 with qrels keyed by topic number
  cranfield evaluate --models bm25 --qrels-keyed-by original --per-query

  # List the ten most recent evaluations saved with --store
  cranfield evaluate --history 10

  # Show the last stored evaluation of each model for run id "cranfield"
  cranfield evaluate --latest --run-id cranfield
`,
	Args: cobra.NoArgs,
	RunE: evaluateCmdRun,
}

type evaluateFlags struct {
	resultsDir string
	qrels      string
	runID      string
	models     []string
	keyedBy    string
	perQuery   bool
	store      bool
	history    int
	latest     bool
}

var evaluateArgs evaluateFlags

func init() {
	evaluateCmd.Flags().StringVarP(&evaluateArgs.resultsDir, "results-dir", "d", "", "directory holding results_<model>.txt files")
	evaluateCmd.Flags().StringVar(&evaluateArgs.qrels, "qrels", "", "path to the relevance judgments")
	evaluateCmd.Flags().StringVar(&evaluateArgs.runID, "run-id", "", "run id prefix the files were written with")
	evaluateCmd.Flags().StringSliceVarP(&evaluateArgs.models, "models", "m", nil, "models to evaluate")
	evaluateCmd.Flags().StringVar(&evaluateArgs.keyedBy, "qrels-keyed-by", "", "query ids used by the qrels: sequential or original")
	evaluateCmd.Flags().BoolVar(&evaluateArgs.perQuery, "per-query", false, "print one row per query")
	evaluateCmd.Flags().BoolVar(&evaluateArgs.store, "store", false, "persist the summaries in PostgreSQL")
	evaluateCmd.Flags().IntVar(&evaluateArgs.history, "history", 0, "list the last N stored evaluations instead of reading run files")
	evaluateCmd.Flags().BoolVar(&evaluateArgs.latest, "latest", false, "show the newest stored evaluation of each model instead of reading run files")
	rootCmd.AddCommand(evaluateCmd)
}

func evaluateCmdRun(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	if flags.Changed("results-dir") {
		cfg.Output.Dir = evaluateArgs.resultsDir
	}
	if flags.Changed("qrels") {
		cfg.Corpus.QrelsPath = evaluateArgs.qrels
	}
	if flags.Changed("run-id") {
		cfg.Output.RunID = evaluateArgs.runID
	}
	if flags.Changed("models") {
		cfg.Ranking.Models = evaluateArgs.models
	}
	if flags.Changed("qrels-keyed-by") {
		cfg.Evaluation.QrelsKeyedBy = evaluateArgs.keyedBy
	}
	if flags.Changed("store") {
		cfg.Evaluation.Store = evaluateArgs.store
		cfg.Postgres.Enabled = cfg.Postgres.Enabled || evaluateArgs.store
	}
	if err := cfg.Validate(); err != nil {
		return apperrors.New(apperrors.ErrInvalidInput, apperrors.ExitUsage, err.Error())
	}
	if evaluateArgs.history < 0 {
		return apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage, "--history must be positive, got %d", evaluateArgs.history)
	}
	if evaluateArgs.history > 0 && evaluateArgs.latest {
		return apperrors.New(apperrors.ErrInvalidInput, apperrors.ExitUsage, "--history and --latest cannot be combined")
	}
	models, err := parseModels(cfg.Ranking.Models)
	if err != nil {
		return err
	}

	ctx := logger.WithRunID(cmd.Context(), cfg.Output.RunID)
	log := logger.FromContext(ctx).With("component", "evaluate")

	if evaluateArgs.history > 0 || evaluateArgs.latest {
		return showStored(ctx, cmd.OutOrStdout(), models)
	}

	ids, err := trec.ReadIDMappingFile(filepath.Join(cfg.Output.Dir, trec.MappingFile))
	if err != nil {
		if !errors.Is(err, apperrors.ErrDatasetMissing) || cfg.Evaluation.QrelsKeyedBy == evaluation.KeyedByOriginal {
			return err
		}
		ids = nil
	}
	qrels, err := loadQrels(ids)
	if err != nil {
		return err
	}

	runs := make([]namedRun, 0, len(models))
	for _, model := range models {
		path := filepath.Join(cfg.Output.Dir, trec.RunFileName(string(model)))
		run, err := trec.ReadRunFile(path)
		if err != nil {
			return err
		}
		id := run.ID
		if id == "" {
			id = trec.RunID(cfg.Output.RunID, string(model))
		}
		runs = append(runs, namedRun{id: id, queries: run.Queries})
		log.Debug("run file read", "file", path, "queries", len(run.Queries))
	}

	summaries := evaluateRuns(ctx, runs, qrels)
	out := cmd.OutOrStdout()
	printSummaries(out, summaries)
	if evaluateArgs.perQuery {
		for _, s := range summaries {
			fmt.Fprintf(out, "\n%s\n", s.RunID)
			printPerQuery(out, s)
		}
	}

	m := metrics.New()
	var store *evaluation.Store
	if cfg.Evaluation.Store {
		svc, err := openServices(ctx, cfg, m)
		if err != nil {
			return err
		}
		defer svc.Close()
		store = svc.store
	}
	if err := recordSummaries(ctx, m, store, "", summaries); err != nil {
		return err
	}
	if err := m.Push(ctx, cfg.Metrics.PushgatewayURL, cfg.Metrics.JobName, map[string]string{"run_id": cfg.Output.RunID}); err != nil {
		log.Warn("metrics push failed", "error", err)
	}
	return nil
}

// namedRun is one model's rankings keyed by query id.
type namedRun struct {
	id      string
	queries map[string][]ranker.ScoredDoc
}

func evaluateRuns(ctx context.Context, runs []namedRun, qrels corpus.Qrels) []evaluation.Summary {
	_, span := tracing.StartChildSpan(ctx, "evaluate")
	defer span.End()
	log := logger.FromContext(ctx).With("component", "evaluate")

	summaries := make([]evaluation.Summary, 0, len(runs))
	for _, run := range runs {
		s := evaluation.Evaluate(run.id, run.queries, qrels)
		summaries = append(summaries, s)
		log.Info("run evaluated",
			"run", s.RunID,
			"queries", s.Queries,
			"map", s.Mean.MAP,
			"ndcg_cut_10", s.Mean.NDCG10,
		)
	}
	span.SetAttr("runs", len(runs))
	return summaries
}

// recordSummaries exports every mean measure as a gauge and, when a store
// is configured, persists the summaries.
func recordSummaries(ctx context.Context, m *metrics.Metrics, store *evaluation.Store, fingerprint string, summaries []evaluation.Summary) error {
	for _, s := range summaries {
		for _, name := range evaluation.MeasureNames {
			v, _ := s.Mean.Get(name)
			m.SetMeasure(s.RunID, name, v)
		}
	}
	if store == nil {
		return nil
	}
	for _, s := range summaries {
		if _, err := store.Save(ctx, fingerprint, s); err != nil {
			return err
		}
	}
	return nil
}

// showStored prints evaluations saved by earlier runs without touching the
// results directory.
func showStored(ctx context.Context, w io.Writer, models []ranker.Model) error {
	log := logger.FromContext(ctx).With("component", "evaluate")
	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connecting evaluation store: %w", err)
	}
	defer db.Close()
	store := evaluation.NewStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	var records []evaluation.Record
	if evaluateArgs.history > 0 {
		records, err = store.List(ctx, evaluateArgs.history)
		if err != nil {
			return err
		}
	} else {
		for _, model := range models {
			runID := trec.RunID(cfg.Output.RunID, string(model))
			rec, err := store.Latest(ctx, runID)
			if err != nil {
				return err
			}
			if rec == nil {
				log.Warn("no stored evaluation", "run", runID)
				continue
			}
			records = append(records, *rec)
		}
	}
	printRecords(w, records)
	return nil
}

func printRecords(w io.Writer, records []evaluation.Record) {
	header := append([]string{"run", "created", "fingerprint", "num_q"}, evaluation.MeasureNames...)
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		fp := rec.Fingerprint
		if len(fp) > 12 {
			fp = fp[:12]
		}
		if fp == "" {
			fp = "-"
		}
		row := []string{
			rec.Summary.RunID,
			rec.CreatedAt.UTC().Format(time.RFC3339),
			fp,
			fmt.Sprintf("%d", rec.Summary.Queries),
		}
		row = append(row, measureCells(rec.Summary.Mean)...)
		rows = append(rows, row)
	}
	printTable(w, header, rows)
}

func printSummaries(w io.Writer, summaries []evaluation.Summary) {
	header := append([]string{"run", "num_q", "num_rel_ret"}, evaluation.MeasureNames...)
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		row := []string{
			s.RunID,
			fmt.Sprintf("%d", s.Queries),
			fmt.Sprintf("%d/%d", s.RelevantRetrieved, s.Relevant),
		}
		row = append(row, measureCells(s.Mean)...)
		rows = append(rows, row)
	}
	printTable(w, header, rows)
}

func printPerQuery(w io.Writer, s evaluation.Summary) {
	header := append([]string{"query", "num_ret", "num_rel_ret"}, evaluation.MeasureNames...)
	rows := make([][]string, 0, len(s.PerQuery))
	for _, q := range s.PerQuery {
		row := []string{
			q.QueryID,
			fmt.Sprintf("%d", q.Retrieved),
			fmt.Sprintf("%d/%d", q.RelevantRetrieved, q.Relevant),
		}
		row = append(row, measureCells(q.Measures)...)
		rows = append(rows, row)
	}
	printTable(w, header, rows)
}

func measureCells(m evaluation.Measures) []string {
	cells := make([]string, 0, len(evaluation.MeasureNames))
	for _, name := range evaluation.MeasureNames {
		v, _ := m.Get(name)
		cells = append(cells, fmt.Sprintf("%.4f", v))
	}
	return cells
}
