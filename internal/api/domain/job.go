package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Client-facing messages.
const (
	MessageSubmitted       = "Job submitted successfully"
	MessageStillProcessing = "Job is still processing. Please check again in a few moments."
	MessageDispatchFailed  = "failed to dispatch job"
	EstimatedCompletion    = "~3 minutes"
	PollUsage              = "GET /api/v1/reports?job_id=xxx"
)

var (
	// ErrInvalidPayload is returned when a submission is not a JSON object
	ErrInvalidPayload = errors.New("request body must be a JSON object")
)

// DecodeSubmission parses a submission body. The schema is caller-defined;
// only the top level is required to be an object.
func DecodeSubmission(body []byte) (map[string]any, error) {
	var submission map[string]any
	if err := json.Unmarshal(body, &submission); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if submission == nil {
		return nil, ErrInvalidPayload
	}
	return submission, nil
}

// CheckStatusURL is the relative poll hint returned on submission.
func CheckStatusURL(jobID string) string {
	return "?job_id=" + jobID
}
