package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Sink rebuilds run statistics from events read back off the topic. Its
// Handle method fits kafka.MessageHandler.
type Sink struct {
	aggregator *Aggregator
	runID      string
	logger     *slog.Logger

	mu      sync.Mutex
	indexes []IndexEvent
	runs    []RunEvent
	skipped int
}

// NewSink returns a Sink. A non-empty runID ignores events of other runs.
func NewSink(runID string) *Sink {
	return &Sink{
		aggregator: NewAggregator(),
		runID:      runID,
		logger:     slog.Default().With("component", "analytics-sink"),
	}
}

// Handle decodes one message by its type field. Undecodable or unknown
// messages are counted and skipped so the consumer can commit past them.
func (s *Sink) Handle(_ context.Context, key, value []byte) error {
	var envelope struct {
		Type  EventType `json:"type"`
		RunID string    `json:"run_id"`
	}
	if err := json.Unmarshal(value, &envelope); err != nil {
		s.skip("undecodable event", string(key), err)
		return nil
	}
	if s.runID != "" && envelope.RunID != s.runID {
		return nil
	}

	switch envelope.Type {
	case EventQueryRanked, EventZeroResult:
		var e QueryEvent
		if err := json.Unmarshal(value, &e); err != nil {
			s.skip("undecodable query event", string(key), err)
			return nil
		}
		s.aggregator.Record(e)
	case EventIndexFinalized:
		var e IndexEvent
		if err := json.Unmarshal(value, &e); err != nil {
			s.skip("undecodable index event", string(key), err)
			return nil
		}
		s.mu.Lock()
		s.indexes = append(s.indexes, e)
		s.mu.Unlock()
		s.logger.Info("index finalized", "run_id", e.RunID, "documents", e.Documents, "vocabulary", e.VocabularySize)
	case EventRunCompleted:
		var e RunEvent
		if err := json.Unmarshal(value, &e); err != nil {
			s.skip("undecodable run event", string(key), err)
			return nil
		}
		s.mu.Lock()
		s.runs = append(s.runs, e)
		s.mu.Unlock()
		s.logger.Info("run completed", "run_id", e.RunID, "model", e.Model, "queries", e.Stats.Queries)
	default:
		s.skip("unknown event type", string(key), fmt.Errorf("type %q", envelope.Type))
	}
	return nil
}

func (s *Sink) skip(msg, key string, err error) {
	s.mu.Lock()
	s.skipped++
	s.mu.Unlock()
	s.logger.Warn(msg, "key", key, "error", err)
}

func (s *Sink) Aggregator() *Aggregator { return s.aggregator }

// Runs returns the completed-run events seen so far in arrival order.
func (s *Sink) Runs() []RunEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RunEvent(nil), s.runs...)
}

// Indexes returns the index events seen so far in arrival order.
func (s *Sink) Indexes() []IndexEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]IndexEvent(nil), s.indexes...)
}

func (s *Sink) Skipped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipped
}
