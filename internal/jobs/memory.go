package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps job records in process. It backs local runs and tests
// and follows the same transition rules as the PostgreSQL stores.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	now  func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string]*Job),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// CreateJob inserts a new record.
func (s *MemoryStore) CreateJob(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.JobID]; exists {
		return fmt.Errorf("failed to create job: duplicate job_id %s", job.JobID)
	}
	s.jobs[job.JobID] = clone(job)
	return nil
}

// GetJobByID returns a copy of the record.
func (s *MemoryStore) GetJobByID(_ context.Context, jobID string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	return clone(job), nil
}

// MarkJobFailed moves a non-terminal job to FAILED.
func (s *MemoryStore) MarkJobFailed(_ context.Context, jobID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if job.Status.Terminal() {
		return ErrJobFinalized
	}
	Final{Status: StatusFailed, Metadata: job.Metadata, Artifacts: job.Artifacts, ErrorMessage: message}.Apply(job, s.now())
	return nil
}

// ClaimJob moves PENDING or PROCESSING to PROCESSING.
func (s *MemoryStore) ClaimJob(_ context.Context, jobID string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	if job.Status.Terminal() {
		return nil, ErrJobFinalized
	}
	job.Status = StatusProcessing
	Touch(job, s.now())
	return clone(job), nil
}

// FinalizeJob applies the terminal write to a PROCESSING job.
func (s *MemoryStore) FinalizeJob(_ context.Context, jobID string, final Final) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if job.Status != StatusProcessing {
		return ErrJobFinalized
	}
	final.Apply(job, s.now())
	return nil
}

// Len returns the number of stored jobs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

func clone(job *Job) *Job {
	out := *job
	out.Metadata = make(Metadata, len(job.Metadata))
	for kind, details := range job.Metadata {
		copied := make(map[string]any, len(details))
		for k, v := range details {
			copied[k] = v
		}
		out.Metadata[kind] = copied
	}
	out.Artifacts = append(Artifacts{}, job.Artifacts...)
	if job.ErrorMessage != nil {
		msg := *job.ErrorMessage
		out.ErrorMessage = &msg
	}
	return &out
}

// TouchJob advances updated_at of a PROCESSING job.
func (s *MemoryStore) TouchJob(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if job.Status != StatusProcessing {
		return ErrJobFinalized
	}
	Touch(job, s.now())
	return nil
}
