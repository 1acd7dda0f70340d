// Package jobs holds the persisted report job record shared by the
// coordinator and the worker.
package jobs

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusPartial    Status = "PARTIAL"
	StatusFailed     Status = "FAILED"
)

// Terminal reports whether no further transition is expected.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusPartial || s == StatusFailed
}

// InProgress reports whether the job is still waiting on the worker.
func (s Status) InProgress() bool {
	return s == StatusPending || s == StatusProcessing
}

var (
	// ErrJobNotFound is returned when no record exists for a job id
	ErrJobNotFound = errors.New("job not found")

	// ErrJobFinalized is returned when a worker tries to claim or finalize
	// a job that already reached a terminal status
	ErrJobFinalized = errors.New("job already finalized")
)

// ArtifactRef points at one uploaded report. Signed URLs are never stored.
type ArtifactRef struct {
	Type   string `json:"type"`
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// Metadata is the per-kind result detail keyed by report kind. Every entry
// carries a "status" and, when the pipeline failed, an "error".
type Metadata map[string]map[string]any

// Value implements driver.Valuer for JSONB columns. lib/pq sends []byte as
// bytea, so the document travels as text.
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner for JSONB columns.
func (m *Metadata) Scan(src any) error {
	data, err := scanBytes(src)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*m = Metadata{}
		return nil
	}
	return json.Unmarshal(data, m)
}

// Artifacts is the ordered list of uploaded reports.
type Artifacts []ArtifactRef

// Value implements driver.Valuer for JSONB columns.
func (a Artifacts) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner for JSONB columns.
func (a *Artifacts) Scan(src any) error {
	data, err := scanBytes(src)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*a = Artifacts{}
		return nil
	}
	return json.Unmarshal(data, a)
}

func scanBytes(src any) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported JSON column type %T", src)
	}
}

// Job is one row of the job store.
type Job struct {
	JobID        string    `db:"job_id" json:"job_id"`
	Status       Status    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
	Metadata     Metadata  `db:"metadata" json:"metadata"`
	Artifacts    Artifacts `db:"artifacts" json:"artifacts"`
	ErrorMessage *string   `db:"error_message" json:"error_message,omitempty"`
}

// NewPending returns the initial record written on submission.
func NewPending(jobID string, now time.Time) *Job {
	return &Job{
		JobID:     jobID,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  Metadata{},
		Artifacts: Artifacts{},
	}
}

// Final is the worker's terminal write, applied atomically.
type Final struct {
	Status       Status
	Metadata     Metadata
	Artifacts    Artifacts
	ErrorMessage string
}

// Apply copies the terminal write onto a record, keeping updated_at monotonic.
func (f Final) Apply(job *Job, now time.Time) {
	job.Status = f.Status
	job.Metadata = f.Metadata
	job.Artifacts = f.Artifacts
	job.ErrorMessage = nil
	if f.ErrorMessage != "" {
		msg := f.ErrorMessage
		job.ErrorMessage = &msg
	}
	Touch(job, now)
}

// Touch advances updated_at without ever moving it backwards.
func Touch(job *Job, now time.Time) {
	if now.After(job.UpdatedAt) {
		job.UpdatedAt = now
	}
}
