package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/metrics"
)

// Publisher is the Kafka side of the collector; *kafka.Producer satisfies it.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector feeds query events to an in-process Aggregator and, when a
// Publisher is configured, ships every event to Kafka in batches. Track
// never blocks the ranking path: a full buffer drops the event.
type Collector struct {
	publisher     Publisher
	aggregator    *Aggregator
	metrics       *metrics.Metrics
	eventCh       chan kafka.Event
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	done          chan struct{}
	started       bool
}

func NewCollector(publisher Publisher, aggregator *Aggregator, m *metrics.Metrics, bufferSize int, batchSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if aggregator == nil {
		aggregator = NewAggregator()
	}
	return &Collector{
		publisher:     publisher,
		aggregator:    aggregator,
		metrics:       m,
		eventCh:       make(chan kafka.Event, bufferSize),
		batchSize:     batchSize,
		flushInterval: time.Second,
		logger:        slog.Default().With("component", "analytics-collector"),
		done:          make(chan struct{}),
	}
}

// Start launches the publishing loop. Without a Publisher it does nothing.
func (c *Collector) Start(ctx context.Context) {
	if c.publisher == nil {
		return
	}
	c.started = true
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()

		batch := make([]kafka.Event, 0, c.batchSize)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					c.flush(context.Background(), batch)
					return
				}
				batch = append(batch, event)
				if len(batch) >= c.batchSize {
					c.flush(ctx, batch)
					batch = batch[:0]
				}
			case <-ticker.C:
				c.flush(ctx, batch)
				batch = batch[:0]
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				c.flush(flushCtx, c.drain(batch))
				cancel()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.eventCh),
		"batch_size", c.batchSize,
	)
}

// Track records event. QueryEvents also update the aggregator.
func (c *Collector) Track(key string, event any) {
	if qe, ok := event.(QueryEvent); ok {
		c.aggregator.Record(qe)
	}
	if c.publisher == nil {
		return
	}
	select {
	case c.eventCh <- kafka.Event{Key: key, Value: event}:
	default:
		c.metrics.EventDropped()
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

func (c *Collector) Aggregator() *Aggregator { return c.aggregator }

// Close flushes buffered events and waits for the loop to exit.
func (c *Collector) Close() {
	if !c.started {
		return
	}
	close(c.eventCh)
	<-c.done
}

func (c *Collector) drain(batch []kafka.Event) []kafka.Event {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return batch
			}
			batch = append(batch, event)
		default:
			return batch
		}
	}
}

func (c *Collector) flush(ctx context.Context, batch []kafka.Event) {
	if len(batch) == 0 {
		return
	}
	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("failed to publish analytics batch",
			"batch_size", len(batch),
			"error", err,
		)
		return
	}
	c.logger.Debug("analytics batch published", "events", len(batch))
}
