// Package db is the SQLite-backed results store: one row per ingest
// outcome, so stats and cost totals survive restarts.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the SQLite connection. Creation runs the schema.
type Store struct {
	db *sqlx.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sqlx.Connect("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
	}

	// WAL mode for concurrent readers while workers write.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS ingest_results (
			doc_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			stage TEXT,
			error_kind TEXT,
			message TEXT,
			source_filename TEXT,
			doc_type TEXT,
			triage_category TEXT,
			matched_doc_id TEXT,
			signalness REAL NOT NULL DEFAULT 0,
			chunks INTEGER NOT NULL DEFAULT 0,
			cost_usd REAL NOT NULL DEFAULT 0,
			tokens_in INTEGER NOT NULL DEFAULT 0,
			tokens_out INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			ingested_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_ingest_results_status ON ingest_results(status);
		CREATE INDEX IF NOT EXISTS idx_ingest_results_ingested_at ON ingest_results(ingested_at);
	`); err != nil {
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// ResultRow is one persisted ingest outcome.
type ResultRow struct {
	DocID          string    `db:"doc_id"`
	Status         string    `db:"status"`
	Stage          string    `db:"stage"`
	ErrorKind      string    `db:"error_kind"`
	Message        string    `db:"message"`
	SourceFilename string    `db:"source_filename"`
	DocType        string    `db:"doc_type"`
	TriageCategory string    `db:"triage_category"`
	MatchedDocID   string    `db:"matched_doc_id"`
	Signalness     float64   `db:"signalness"`
	Chunks         int       `db:"chunks"`
	CostUSD        float64   `db:"cost_usd"`
	TokensIn       int       `db:"tokens_in"`
	TokensOut      int       `db:"tokens_out"`
	DurationMS     int64     `db:"duration_ms"`
	IngestedAt     time.Time `db:"ingested_at"`
}

// RecordResult upserts the outcome row for a document; re-ingestion
// overwrites the previous outcome.
func (s *Store) RecordResult(ctx context.Context, row ResultRow) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO ingest_results (
			doc_id, status, stage, error_kind, message, source_filename,
			doc_type, triage_category, matched_doc_id, signalness, chunks,
			cost_usd, tokens_in, tokens_out, duration_ms, ingested_at
		) VALUES (
			:doc_id, :status, :stage, :error_kind, :message, :source_filename,
			:doc_type, :triage_category, :matched_doc_id, :signalness, :chunks,
			:cost_usd, :tokens_in, :tokens_out, :duration_ms, :ingested_at
		)
		ON CONFLICT(doc_id) DO UPDATE SET
			status = excluded.status,
			stage = excluded.stage,
			error_kind = excluded.error_kind,
			message = excluded.message,
			triage_category = excluded.triage_category,
			matched_doc_id = excluded.matched_doc_id,
			signalness = excluded.signalness,
			chunks = excluded.chunks,
			cost_usd = excluded.cost_usd,
			tokens_in = excluded.tokens_in,
			tokens_out = excluded.tokens_out,
			duration_ms = excluded.duration_ms,
			ingested_at = excluded.ingested_at
	`, row)
	if err != nil {
		return fmt.Errorf("recording ingest result: %w", err)
	}
	return nil
}

// GetResult fetches one outcome row, nil when absent.
func (s *Store) GetResult(ctx context.Context, docID string) (*ResultRow, error) {
	var row ResultRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM ingest_results WHERE doc_id = ?`, docID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching ingest result: %w", err)
	}
	return &row, nil
}

// Stats is the aggregate over all persisted results.
type Stats struct {
	Documents    int     `db:"documents"`
	Indexed      int     `db:"indexed"`
	Gated        int     `db:"gated"`
	Duplicates   int     `db:"duplicates"`
	Failed       int     `db:"failed"`
	TotalChunks  int     `db:"total_chunks"`
	TotalCostUSD float64 `db:"total_cost_usd"`
	TokensIn     int     `db:"tokens_in"`
	TokensOut    int     `db:"tokens_out"`
}

// GetStats aggregates the results table.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	err := s.db.GetContext(ctx, &stats, `
		SELECT
			COUNT(*) AS documents,
			COALESCE(SUM(CASE WHEN status = 'indexed' THEN 1 ELSE 0 END), 0) AS indexed,
			COALESCE(SUM(CASE WHEN status = 'gated' THEN 1 ELSE 0 END), 0) AS gated,
			COALESCE(SUM(CASE WHEN status = 'duplicate' THEN 1 ELSE 0 END), 0) AS duplicates,
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0) AS failed,
			COALESCE(SUM(chunks), 0) AS total_chunks,
			COALESCE(SUM(cost_usd), 0) AS total_cost_usd,
			COALESCE(SUM(tokens_in), 0) AS tokens_in,
			COALESCE(SUM(tokens_out), 0) AS tokens_out
		FROM ingest_results
	`)
	if err != nil {
		return nil, fmt.Errorf("aggregating stats: %w", err)
	}
	return &stats, nil
}

// RecentResults lists the newest outcomes, most recent first.
func (s *Store) RecentResults(ctx context.Context, limit int) ([]ResultRow, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []ResultRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM ingest_results ORDER BY ingested_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent results: %w", err)
	}
	return rows, nil
}
