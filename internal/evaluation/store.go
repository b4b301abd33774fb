package evaluation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/resilience"
)

const schema = `CREATE TABLE IF NOT EXISTS evaluation_runs (
    id          UUID PRIMARY KEY,
    run_id      TEXT NOT NULL,
    fingerprint TEXT NOT NULL,
    num_queries INTEGER NOT NULL,
    mean        JSONB NOT NULL,
    per_query   JSONB NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS evaluation_runs_run_id_idx ON evaluation_runs (run_id, created_at DESC);`

// Record is one persisted evaluation.
type Record struct {
	ID          uuid.UUID
	Fingerprint string
	CreatedAt   time.Time
	Summary     Summary
}

// Store persists run summaries in PostgreSQL so effectiveness can be
// compared across index and parameter changes.
type Store struct {
	db     *postgres.Client
	retry  resilience.RetryConfig
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db: db,
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			Retryable:    postgres.IsTransient,
		},
		logger: slog.Default().With("component", "evaluation-store"),
	}
}

// EnsureSchema creates the evaluation_runs table when it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating evaluation schema: %w", err)
	}
	return nil
}

// Save inserts a summary and returns the new record id. Transient database
// failures are retried.
func (s *Store) Save(ctx context.Context, fingerprint string, summary Summary) (uuid.UUID, error) {
	mean, perQuery, err := encodeSummary(summary)
	if err != nil {
		return uuid.Nil, err
	}
	id := uuid.New()
	err = resilience.Retry(ctx, "save-evaluation", s.retry, func() error {
		return s.db.InTx(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO evaluation_runs (id, run_id, fingerprint, num_queries, mean, per_query, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)
				 ON CONFLICT (id) DO NOTHING`,
				id, summary.RunID, fingerprint, summary.Queries, mean, perQuery, time.Now().UTC(),
			)
			return err
		})
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("saving evaluation %s: %w", summary.RunID, err)
	}
	s.logger.Info("evaluation saved",
		"id", id,
		"run_id", summary.RunID,
		"map", summary.Mean.MAP,
	)
	return id, nil
}

// Latest returns the newest record for runID, or nil when there is none.
func (s *Store) Latest(ctx context.Context, runID string) (*Record, error) {
	row := s.db.DB.QueryRowContext(ctx,
		`SELECT id, run_id, fingerprint, num_queries, mean, per_query, created_at
		 FROM evaluation_runs WHERE run_id = $1 ORDER BY created_at DESC LIMIT 1`,
		runID,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest evaluation %s: %w", runID, err)
	}
	return rec, nil
}

// List returns the last limit records over all runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, run_id, fingerprint, num_queries, mean, per_query, created_at
		 FROM evaluation_runs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing evaluations: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			s.logger.Warn("skipping corrupt evaluation row", "error", err)
			continue
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		rec      Record
		mean     []byte
		perQuery []byte
	)
	if err := row.Scan(
		&rec.ID,
		&rec.Summary.RunID,
		&rec.Fingerprint,
		&rec.Summary.Queries,
		&mean,
		&perQuery,
		&rec.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := decodeSummary(mean, perQuery, &rec.Summary); err != nil {
		return nil, err
	}
	return &rec, nil
}

func encodeSummary(s Summary) (mean, perQuery []byte, err error) {
	mean, err = json.Marshal(s.Mean)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling mean measures: %w", err)
	}
	perQuery, err = json.Marshal(s.PerQuery)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling per-query measures: %w", err)
	}
	return mean, perQuery, nil
}

// decodeSummary fills the JSON columns back into s and recomputes the
// totals derived from the per-query rows.
func decodeSummary(mean, perQuery []byte, s *Summary) error {
	if err := json.Unmarshal(mean, &s.Mean); err != nil {
		return fmt.Errorf("unmarshaling mean measures: %w", err)
	}
	if err := json.Unmarshal(perQuery, &s.PerQuery); err != nil {
		return fmt.Errorf("unmarshaling per-query measures: %w", err)
	}
	s.Retrieved, s.Relevant, s.RelevantRetrieved = 0, 0, 0
	for _, q := range s.PerQuery {
		s.Retrieved += q.Retrieved
		s.Relevant += q.Relevant
		s.RelevantRetrieved += q.RelevantRetrieved
	}
	return nil
}
