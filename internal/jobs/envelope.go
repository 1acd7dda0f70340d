package jobs

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrMalformedEnvelope is returned when a dispatch message cannot be decoded.
var ErrMalformedEnvelope = errors.New("malformed job envelope")

// EnvelopeContentType is the content type of dispatch messages.
const EnvelopeContentType = "application/json"

// EncodeEnvelope renders the dispatch message: the submission with job_id
// added. The submission map is not modified.
func EncodeEnvelope(jobID string, submission map[string]any) ([]byte, error) {
	envelope := make(map[string]any, len(submission)+1)
	for k, v := range submission {
		envelope[k] = v
	}
	envelope["job_id"] = jobID

	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job envelope: %w", err)
	}
	return body, nil
}

// DecodeEnvelope parses a dispatch message and returns the job id together
// with the submission. The id must be a UUID.
func DecodeEnvelope(body []byte) (string, map[string]any, error) {
	var envelope map[string]any
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if envelope == nil {
		return "", nil, fmt.Errorf("%w: not a JSON object", ErrMalformedEnvelope)
	}

	jobID, _ := envelope["job_id"].(string)
	if _, err := uuid.Parse(jobID); err != nil {
		return "", nil, fmt.Errorf("%w: invalid job_id %q", ErrMalformedEnvelope, jobID)
	}
	delete(envelope, "job_id")

	return jobID, envelope, nil
}
