package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cuongbtq/assessment-reports/internal/jobs"
)

// Storage handles the worker's writes to the job table
type Storage struct {
	db     *sqlx.DB
	table  string
	logger *slog.Logger
}

// NewStorage creates a new Storage instance over a validated table name
func NewStorage(db *sqlx.DB, table string, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		table:  table,
		logger: logger,
	}
}

func (s *Storage) claimQuery() string {
	return fmt.Sprintf(`
		UPDATE %s
		SET status = $1,
		    updated_at = GREATEST(updated_at, $2)
		WHERE job_id = $3
		  AND status IN ($4, $5)
		RETURNING job_id, status, created_at, updated_at, metadata, artifacts, error_message
	`, s.table)
}

func (s *Storage) finalizeQuery() string {
	return fmt.Sprintf(`
		UPDATE %s
		SET status = $1,
		    metadata = $2,
		    artifacts = $3,
		    error_message = $4,
		    updated_at = GREATEST(updated_at, $5)
		WHERE job_id = $6
		  AND status = $7
	`, s.table)
}

func (s *Storage) touchQuery() string {
	return fmt.Sprintf(`
		UPDATE %s
		SET updated_at = GREATEST(updated_at, $1)
		WHERE job_id = $2 AND status = $3
	`, s.table)
}

func (s *Storage) existsQuery() string {
	return fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE job_id = $1)`, s.table)
}

// ClaimJob moves a PENDING or PROCESSING job to PROCESSING. A terminal job
// yields jobs.ErrJobFinalized, an unknown one jobs.ErrJobNotFound.
func (s *Storage) ClaimJob(ctx context.Context, jobID string) (*jobs.Job, error) {
	var job jobs.Job
	err := s.db.GetContext(ctx, &job, s.claimQuery(),
		jobs.StatusProcessing,
		time.Now().UTC(),
		jobID,
		jobs.StatusPending,
		jobs.StatusProcessing,
	)
	if err == nil {
		s.logger.Info("Job claimed",
			slog.String("job_id", jobID),
		)
		return &job, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	var exists bool
	if err := s.db.GetContext(ctx, &exists, s.existsQuery(), jobID); err != nil {
		return nil, fmt.Errorf("failed to check job: %w", err)
	}
	if !exists {
		return nil, jobs.ErrJobNotFound
	}
	return nil, jobs.ErrJobFinalized
}

// FinalizeJob writes status, metadata, artifacts and error message in one
// statement, only while the job is still PROCESSING.
func (s *Storage) FinalizeJob(ctx context.Context, jobID string, final jobs.Final) error {
	var errorMessage *string
	if final.ErrorMessage != "" {
		errorMessage = &final.ErrorMessage
	}

	result, err := s.db.ExecContext(ctx, s.finalizeQuery(),
		final.Status,
		final.Metadata,
		final.Artifacts,
		errorMessage,
		time.Now().UTC(),
		jobID,
		jobs.StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return jobs.ErrJobFinalized
	}

	s.logger.Info("Job finalized",
		slog.String("job_id", jobID),
		slog.String("status", string(final.Status)),
		slog.Int("artifacts", len(final.Artifacts)),
	)
	return nil
}

// TouchJob advances updated_at of a running job
func (s *Storage) TouchJob(ctx context.Context, jobID string) error {
	result, err := s.db.ExecContext(ctx, s.touchQuery(), time.Now().UTC(), jobID, jobs.StatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to update job heartbeat: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		s.logger.Warn("Job heartbeat update - no rows affected (job may not be running)",
			slog.String("job_id", jobID),
		)
	}

	return nil
}
