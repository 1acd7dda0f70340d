package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cuongbtq/assessment-reports/internal/jobs"
)

// Storage is the coordinator's view of the job table: it creates records,
// reads them for polling and fails jobs whose dispatch never happened.
type Storage struct {
	db    *sqlx.DB
	table string
}

// NewStorage creates a Storage over a validated table name
func NewStorage(db *sqlx.DB, table string) *Storage {
	return &Storage{
		db:    db,
		table: table,
	}
}

func (s *Storage) insertQuery() string {
	return fmt.Sprintf(`
		INSERT INTO %s (
			job_id, status, created_at, updated_at,
			metadata, artifacts, error_message
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7
		)
	`, s.table)
}

func (s *Storage) selectQuery() string {
	return fmt.Sprintf(`
		SELECT
			job_id, status, created_at, updated_at,
			metadata, artifacts, error_message
		FROM %s
		WHERE job_id = $1
	`, s.table)
}

func (s *Storage) failQuery() string {
	return fmt.Sprintf(`
		UPDATE %s
		SET status = $1,
		    error_message = $2,
		    updated_at = GREATEST(updated_at, $3)
		WHERE job_id = $4
		  AND status IN ($5, $6)
	`, s.table)
}

// CreateJob inserts the initial PENDING record
func (s *Storage) CreateJob(ctx context.Context, job *jobs.Job) error {
	_, err := s.db.ExecContext(
		ctx,
		s.insertQuery(),
		job.JobID,
		job.Status,
		job.CreatedAt,
		job.UpdatedAt,
		job.Metadata,
		job.Artifacts,
		job.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// GetJobByID reads one record; jobs.ErrJobNotFound when it does not exist
func (s *Storage) GetJobByID(ctx context.Context, jobID string) (*jobs.Job, error) {
	var job jobs.Job
	err := s.db.GetContext(ctx, &job, s.selectQuery(), jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, jobs.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// MarkJobFailed moves a job that is not yet terminal to FAILED
func (s *Storage) MarkJobFailed(ctx context.Context, jobID, message string) error {
	result, err := s.db.ExecContext(
		ctx,
		s.failQuery(),
		jobs.StatusFailed,
		message,
		time.Now().UTC(),
		jobID,
		jobs.StatusPending,
		jobs.StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	if rows == 0 {
		return jobs.ErrJobFinalized
	}

	return nil
}
