package analytics

import "time"

type EventType string

const (
	EventQueryRanked    EventType = "query_ranked"
	EventZeroResult     EventType = "zero_result"
	EventIndexFinalized EventType = "index_finalized"
	EventRunCompleted   EventType = "run_completed"
)

// QueryEvent describes one query ranked under one model.
type QueryEvent struct {
	Type          EventType `json:"type"`
	RunID         string    `json:"run_id"`
	Model         string    `json:"model"`
	QueryID       string    `json:"query_id"`
	Terms         []string  `json:"terms"`
	Returned      int       `json:"returned"`
	TopDocID      string    `json:"top_doc_id,omitempty"`
	TopScore      float64   `json:"top_score"`
	LatencyMicros int64     `json:"latency_us"`
	CacheHit      bool      `json:"cache_hit"`
	Timestamp     time.Time `json:"timestamp"`
}

// IndexEvent describes a finalized index.
type IndexEvent struct {
	Type           EventType `json:"type"`
	RunID          string    `json:"run_id"`
	Fingerprint    string    `json:"fingerprint"`
	Documents      int       `json:"documents"`
	VocabularySize int       `json:"vocabulary_size"`
	AvgDocLength   float64   `json:"avg_doc_length"`
	Timestamp      time.Time `json:"timestamp"`
}

// RunEvent closes a model run and carries its aggregated stats.
type RunEvent struct {
	Type      EventType  `json:"type"`
	RunID     string     `json:"run_id"`
	Model     string     `json:"model"`
	Stats     ModelStats `json:"stats"`
	Timestamp time.Time  `json:"timestamp"`
}
