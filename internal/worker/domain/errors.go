package domain

import "errors"

var (
	// ErrInvalidPayload is returned when a delivery cannot be decoded into a job
	ErrInvalidPayload = errors.New("invalid job payload")

	// ErrShutdown marks a job interrupted by worker shutdown
	ErrShutdown = errors.New("worker shutting down")
)

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
