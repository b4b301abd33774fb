package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/logger"
)

var VERSION = "0.0.0-dev.0"

var rootCmd = &cobra.Command{
	Use:               "cranfield",
	Version:           VERSION,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
	Short:             "Index a TREC-style collection and evaluate VSM, BM25 and LM-Dirichlet rankings",
	Long: `cranfield builds an in-memory inverted index over a benchmark collection,
ranks every query under the vector-space, BM25 and Dirichlet language models,
writes TREC run files and scores them against the relevance judgments.`,
	PersistentPreRunE: loadConfig,
}

type rootFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

var (
	rootArgs rootFlags
	cfg      *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootArgs.configPath, "config", "c", "",
		"Path to a YAML config file. Built-in defaults apply when empty.")
	rootCmd.PersistentFlags().StringVar(&rootArgs.logLevel, "log-level", "",
		"Log level: debug, info, warn or error. Overrides logging.level.")
	rootCmd.PersistentFlags().StringVar(&rootArgs.logFormat, "log-format", "",
		"Log format: text or json. Overrides logging.format.")
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return apperrors.New(apperrors.ErrInvalidInput, apperrors.ExitUsage, err.Error())
	})
	rootCmd.SetOut(os.Stdout)
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	c, err := config.Load(rootArgs.configPath)
	if err != nil {
		return apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage, "loading config: %v", err)
	}
	if rootArgs.logLevel != "" {
		c.Logging.Level = rootArgs.logLevel
	}
	if rootArgs.logFormat != "" {
		c.Logging.Format = rootArgs.logFormat
	}
	logger.SetupWriter(cmd.ErrOrStderr(), c.Logging.Level, c.Logging.Format)
	cfg = c
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		rootCmd.PrintErrf("✗ %v\n", err)
		os.Exit(apperrors.ExitCode(err))
	}
}
