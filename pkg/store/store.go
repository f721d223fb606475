// pkg/store/store.go
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/openbdc/subval/pkg/config"
	"github.com/openbdc/subval/pkg/model"
)

// Store persists run outcomes, corrections and errors to the configured
// ledger database. Both the sqlite and postgres drivers are supported; the
// schema sticks to types both accept.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// RunRecord is the run-level row written once per validated file.
type RunRecord struct {
	RunID            string    `db:"run_id"`
	SourceFile       string    `db:"source_file"`
	Company          string    `db:"company"`
	Period           string    `db:"period"`
	FileStatus       string    `db:"file_status"`
	Reason           string    `db:"reason"`
	TotalSubscribers int       `db:"total_subscribers"`
	RemovedRows      int       `db:"removed_rows"`
	CorrectionCount  int       `db:"correction_count"`
	ErrorCount       int       `db:"error_count"`
	StartedAt        time.Time `db:"started_at"`
	DurationSeconds  float64   `db:"duration_seconds"`
}

// VerificationUsage is the per-run external verification accounting row.
type VerificationUsage struct {
	RunID             string    `db:"run_id"`
	Company           string    `db:"company"`
	APICalls          int       `db:"api_calls"`
	Successes         int       `db:"successes"`
	Failures          int       `db:"failures"`
	SuccessRate       float64   `db:"success_rate"`
	BatchesSent       int       `db:"batches_sent"`
	ProcessingSeconds float64   `db:"processing_seconds"`
	RecordedAt        time.Time `db:"recorded_at"`
}

// Open connects to the configured ledger database and ensures the schema
// exists. The caller owns Close.
func Open(ctx context.Context, cfg *config.LedgerConfig, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled() {
		return nil, fmt.Errorf("ledger persistence is not configured")
	}

	logger.Info("Connecting to ledger database", zap.String("driver", cfg.Driver))
	db, err := sqlx.ConnectContext(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger database: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS validation_runs (
		run_id            TEXT PRIMARY KEY,
		source_file       TEXT NOT NULL,
		company           TEXT,
		period            TEXT,
		file_status       TEXT NOT NULL,
		reason            TEXT,
		total_subscribers INTEGER NOT NULL,
		removed_rows      INTEGER NOT NULL,
		correction_count  INTEGER NOT NULL,
		error_count       INTEGER NOT NULL,
		started_at        TIMESTAMP NOT NULL,
		duration_seconds  REAL NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS corrections (
		run_id          TEXT NOT NULL,
		orig_row        INTEGER NOT NULL,
		column_name     TEXT NOT NULL,
		original_value  TEXT,
		corrected_value TEXT,
		correction_type TEXT NOT NULL,
		status          TEXT NOT NULL,
		applied_at      TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS validation_errors (
		run_id      TEXT NOT NULL,
		orig_row    INTEGER NOT NULL,
		column_name TEXT NOT NULL,
		message     TEXT NOT NULL,
		value       TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS verification_usage (
		run_id             TEXT NOT NULL,
		company            TEXT,
		api_calls          INTEGER NOT NULL,
		successes          INTEGER NOT NULL,
		failures           INTEGER NOT NULL,
		success_rate       REAL NOT NULL,
		batches_sent       INTEGER NOT NULL,
		processing_seconds REAL NOT NULL,
		recorded_at        TIMESTAMP NOT NULL
	)`,
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply ledger schema: %w", err)
		}
	}
	return nil
}

// SaveRun writes the run row together with its corrections and errors in a
// single transaction.
func (s *Store) SaveRun(ctx context.Context, run RunRecord, corrections []model.CorrectionEntry, errors []model.ErrorEntry) (err error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("Failed to rollback transaction",
					zap.Error(rbErr),
					zap.Error(err))
			}
		}
	}()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO validation_runs
		(run_id, source_file, company, period, file_status, reason,
		 total_subscribers, removed_rows, correction_count, error_count,
		 started_at, duration_seconds)
		VALUES (:run_id, :source_file, :company, :period, :file_status, :reason,
		 :total_subscribers, :removed_rows, :correction_count, :error_count,
		 :started_at, :duration_seconds)
	`, run)
	if err != nil {
		return fmt.Errorf("failed to insert run record: %w", err)
	}

	if err = s.insertCorrections(ctx, tx, run.RunID, corrections); err != nil {
		return err
	}
	if err = s.insertErrors(ctx, tx, run.RunID, errors); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("Run persisted to ledger database",
		zap.String("runID", run.RunID),
		zap.Int("corrections", len(corrections)),
		zap.Int("errors", len(errors)))
	return nil
}

func (s *Store) insertCorrections(ctx context.Context, tx *sqlx.Tx, runID string, corrections []model.CorrectionEntry) error {
	if len(corrections) == 0 {
		return nil
	}

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`
		INSERT INTO corrections
		(run_id, orig_row, column_name, original_value, corrected_value,
		 correction_type, status, applied_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`))
	if err != nil {
		return fmt.Errorf("failed to prepare correction insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range corrections {
		if _, err := stmt.ExecContext(ctx,
			runID, c.OrigRow, c.Column, c.Original, c.Corrected,
			c.Type, string(c.Status), c.AppliedAt,
		); err != nil {
			return fmt.Errorf("failed to insert correction for row %d: %w", c.OrigRow, err)
		}
	}
	return nil
}

func (s *Store) insertErrors(ctx context.Context, tx *sqlx.Tx, runID string, entries []model.ErrorEntry) error {
	if len(entries) == 0 {
		return nil
	}

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`
		INSERT INTO validation_errors
		(run_id, orig_row, column_name, message, value)
		VALUES (?, ?, ?, ?, ?)
	`))
	if err != nil {
		return fmt.Errorf("failed to prepare error insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx,
			runID, e.OrigRow, e.Column, e.Message, e.Value,
		); err != nil {
			return fmt.Errorf("failed to insert error for row %d: %w", e.OrigRow, err)
		}
	}
	return nil
}

// SaveVerificationUsage records one external verification accounting row.
func (s *Store) SaveVerificationUsage(ctx context.Context, usage VerificationUsage) error {
	if usage.RecordedAt.IsZero() {
		usage.RecordedAt = time.Now().UTC()
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO verification_usage
		(run_id, company, api_calls, successes, failures, success_rate,
		 batches_sent, processing_seconds, recorded_at)
		VALUES (:run_id, :company, :api_calls, :successes, :failures,
		 :success_rate, :batches_sent, :processing_seconds, :recorded_at)
	`, usage)
	if err != nil {
		return fmt.Errorf("failed to insert verification usage: %w", err)
	}
	return nil
}
