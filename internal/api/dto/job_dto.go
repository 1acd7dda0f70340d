package dto

import "github.com/cuongbtq/assessment-reports/internal/jobs"

type SubmitResponse struct {
	Message                 string `json:"message"`
	JobID                   string `json:"job_id"`
	Status                  string `json:"status"`
	CheckStatusURL          string `json:"check_status_url"`
	EstimatedCompletionTime string `json:"estimated_completion_time"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	JobID string `json:"job_id,omitempty"`
	Usage string `json:"usage,omitempty"`
}

// JobStatusResponse is the common part of every poll answer.
type JobStatusResponse struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type PendingResponse struct {
	JobStatusResponse
	Message string `json:"message"`
}

type FailedResponse struct {
	JobStatusResponse
	ErrorMessage string `json:"error_message"`
}

type ReportDTO struct {
	Type             string `json:"type"`
	Bucket           string `json:"bucket"`
	Key              string `json:"key"`
	PresignedURL     string `json:"presigned_url"`
	ExpiresInSeconds int64  `json:"expires_in_seconds"`
}

type StorageFolderDTO struct {
	Bucket      string `json:"bucket,omitempty"`
	Prefix      string `json:"prefix"`
	Description string `json:"description"`
}

type JobResultResponse struct {
	JobStatusResponse
	Reports       []ReportDTO      `json:"reports"`
	StorageFolder StorageFolderDTO `json:"storage_folder"`
	PrimaryReport *ReportDTO       `json:"primary_report,omitempty"`
	Metadata      jobs.Metadata    `json:"metadata"`
	ReportsCount  int              `json:"reports_count"`
}
