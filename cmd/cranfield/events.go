package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/analytics"
	apperrors "github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/logger"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Consume published run events and summarize them per model",
	Long: `The events command reads the run events topic written by 'cranfield run'
when Kafka is enabled, and prints per-model query statistics when it stops.
It stops on interrupt or after --duration.`,
	Example: `  # Summarize everything retained on the topic for one run
  cranfield events --from-beginning --run-id baseline --duration 30s`,
	Args: cobra.NoArgs,
	RunE: eventsCmdRun,
}

type eventsFlags struct {
	runID         string
	fromBeginning bool
	duration      time.Duration
}

var eventsArgs eventsFlags

func init() {
	eventsCmd.Flags().StringVar(&eventsArgs.runID, "run-id", "", "only count events of this run")
	eventsCmd.Flags().BoolVar(&eventsArgs.fromBeginning, "from-beginning", false, "start a new consumer group at the oldest retained event")
	eventsCmd.Flags().DurationVar(&eventsArgs.duration, "duration", 0, "stop after this long; 0 waits for an interrupt")
	rootCmd.AddCommand(eventsCmd)
}

func eventsCmdRun(cmd *cobra.Command, _ []string) error {
	if len(cfg.Kafka.Brokers) == 0 || cfg.Kafka.Topics.RunEvents == "" {
		return apperrors.New(apperrors.ErrInvalidInput, apperrors.ExitUsage, "kafka brokers and the run events topic must be configured")
	}

	ctx := logger.WithRunID(cmd.Context(), eventsArgs.runID)
	if eventsArgs.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, eventsArgs.duration)
		defer cancel()
	}
	log := logger.FromContext(ctx).With("component", "events")

	sink := analytics.NewSink(eventsArgs.runID)
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.RunEvents, eventsArgs.fromBeginning, sink.Handle)
	log.Info("consuming run events",
		"brokers", strings.Join(cfg.Kafka.Brokers, ","),
		"topic", cfg.Kafka.Topics.RunEvents,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := consumer.Start(ctx); err != nil {
		return fmt.Errorf("consuming run events: %w", err)
	}

	printModelStats(cmd.OutOrStdout(), sink.Aggregator())
	if n := sink.Skipped(); n > 0 {
		log.Warn("events skipped", "count", n)
	}
	return nil
}

func printModelStats(w io.Writer, agg *analytics.Aggregator) {
	header := []string{"model", "queries", "zero_results", "cache_hits", "avg_us", "p50_us", "p95_us", "p99_us"}
	models := agg.Models()
	rows := make([][]string, 0, len(models))
	for _, model := range models {
		s := agg.Stats(model)
		rows = append(rows, []string{
			model,
			fmt.Sprintf("%d", s.Queries),
			fmt.Sprintf("%d", s.ZeroResults),
			fmt.Sprintf("%d", s.CacheHits),
			fmt.Sprintf("%.1f", s.AvgLatencyMicros),
			fmt.Sprintf("%d", s.P50LatencyMicros),
			fmt.Sprintf("%d", s.P95LatencyMicros),
			fmt.Sprintf("%d", s.P99LatencyMicros),
		})
	}
	printTable(w, header, rows)
}
