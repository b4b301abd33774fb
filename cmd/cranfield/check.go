package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	apperrors "github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/redis"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the dataset files and the configured services are reachable",
	Example: `  # Check the default dataset location
  cranfield check

  # Check a dataset elsewhere
  CRAN_DOCUMENTS=/data/cran.all.1400.xml cranfield check
`,
	Args: cobra.NoArgs,
	RunE: checkCmdRun,
}

type checkFlags struct {
	timeout time.Duration
}

var checkArgs = checkFlags{timeout: 5 * time.Second}

func init() {
	checkCmd.Flags().DurationVar(&checkArgs.timeout, "timeout", checkArgs.timeout, "time limit for each check")
	rootCmd.AddCommand(checkCmd)
}

func checkCmdRun(cmd *cobra.Command, _ []string) error {
	checker := health.NewChecker(checkArgs.timeout)
	checker.Register("documents", health.FileCheck(cfg.Corpus.DocumentsPath))
	checker.Register("queries", health.FileCheck(cfg.Corpus.QueriesPath))
	checker.Register("qrels", health.FileCheck(cfg.Corpus.QrelsPath))

	if cfg.Redis.Enabled {
		checker.Register("redis", health.PingCheck(func(ctx context.Context) error {
			client, err := pkgredis.NewClient(ctx, cfg.Redis)
			if err != nil {
				return err
			}
			return client.Close()
		}, true))
	}
	if cfg.Postgres.Enabled {
		checker.Register("postgres", health.PingCheck(func(ctx context.Context) error {
			db, err := postgres.New(ctx, cfg.Postgres)
			if err != nil {
				return err
			}
			return db.Close()
		}, !cfg.Evaluation.Store))
	}
	if cfg.Kafka.Enabled {
		checker.Register("kafka", health.TCPCheck(cfg.Kafka.Brokers, true))
	}

	report := checker.Run(cmd.Context())
	rows := make([][]string, 0, len(report.Components))
	for _, name := range report.Names() {
		c := report.Components[name]
		rows = append(rows, []string{name, string(c.Status), c.Latency, c.Message})
	}
	printTable(cmd.OutOrStdout(), []string{"component", "status", "latency", "message"}, rows)

	if report.Status == health.StatusDown {
		return apperrors.New(apperrors.ErrDatasetMissing, apperrors.ExitDataset, "one or more required checks failed")
	}
	return nil
}
