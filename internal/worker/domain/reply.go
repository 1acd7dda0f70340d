package domain

import "github.com/cuongbtq/assessment-reports/internal/jobs"

// ReportLink is one uploaded report with a fresh download URL
type ReportLink struct {
	Type             string `json:"type"`
	Bucket           string `json:"bucket"`
	Key              string `json:"key"`
	PresignedURL     string `json:"presigned_url"`
	ExpiresInSeconds int64  `json:"expires_in_seconds"`
}

// InlineReport carries the executive PDF when nothing reached storage
type InlineReport struct {
	Type     string `json:"type"`
	Filename string `json:"filename"`
	Data     []byte `json:"content_base64"`
}

// Reply is the outcome sent to reply_to. Its fields match the coordinator's
// poll answer for a finished job.
type Reply struct {
	JobID         string        `json:"job_id"`
	Status        string        `json:"status"`
	CreatedAt     string        `json:"created_at"`
	UpdatedAt     string        `json:"updated_at"`
	Reports       []ReportLink  `json:"reports"`
	PrimaryReport *ReportLink   `json:"primary_report,omitempty"`
	ReportsCount  int           `json:"reports_count"`
	Metadata      jobs.Metadata `json:"metadata"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	InlineReport  *InlineReport `json:"inline_report,omitempty"`
}
