package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/evaluation"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/redis"
)

// services holds the optional external collaborators of a run. Every field
// may be nil; Redis and Kafka failures degrade the run instead of failing it.
type services struct {
	redis     *pkgredis.Client
	cache     *cache.QueryCache
	producer  *kafka.Producer
	collector *analytics.Collector
	db        *postgres.Client
	store     *evaluation.Store
	logger    *slog.Logger
}

func openServices(ctx context.Context, c *config.Config, m *metrics.Metrics) (*services, error) {
	s := &services{logger: logger.WithComponent("services")}

	if c.Redis.Enabled {
		client, err := pkgredis.NewClient(ctx, c.Redis)
		if err != nil {
			s.logger.Warn("redis unavailable, ranking cache disabled", "addr", c.Redis.Addr, "error", err)
		} else {
			qc, err := cache.New(client, c.Redis, m)
			if err != nil {
				client.Close()
				return nil, err
			}
			s.redis, s.cache = client, qc
			s.logger.Info("ranking cache enabled", "addr", c.Redis.Addr, "ttl", c.Redis.CacheTTL, "compression", c.Redis.Compression)
		}
	}

	var publisher analytics.Publisher
	if c.Kafka.Enabled {
		s.producer = kafka.NewProducer(c.Kafka, c.Kafka.Topics.RunEvents)
		publisher = s.producer
		s.logger.Info("run events enabled", "brokers", c.Kafka.Brokers, "topic", c.Kafka.Topics.RunEvents)
	}
	s.collector = analytics.NewCollector(publisher, nil, m, 10000, 100)
	s.collector.Start(ctx)

	if c.Postgres.Enabled && c.Evaluation.Store {
		db, err := postgres.New(ctx, c.Postgres)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connecting evaluation store: %w", err)
		}
		s.db = db
		s.store = evaluation.NewStore(db)
		if err := s.store.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close flushes pending events and releases every connection.
func (s *services) Close() {
	if s.collector != nil {
		s.collector.Close()
	}
	if s.producer != nil {
		if err := s.producer.Close(); err != nil {
			s.logger.Warn("closing kafka producer", "error", err)
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn("closing redis", "error", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Warn("closing postgres", "error", err)
		}
	}
}
