package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cuongbtq/assessment-reports/internal/api/domain"
	"github.com/cuongbtq/assessment-reports/internal/api/dto"
	"github.com/cuongbtq/assessment-reports/internal/jobs"
	"github.com/cuongbtq/assessment-reports/internal/objectstore"
	"github.com/cuongbtq/assessment-reports/internal/report"
	"github.com/cuongbtq/assessment-reports/shared/rabbitmq"
)

// SubmitReport handles POST /api/v1/reports
// Records a PENDING job, dispatches it to the worker and returns at once
func (h *JobHandler) SubmitReport(c *gin.Context) {
	ctx := c.Request.Context()

	if h.maxBody > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody)
	}

	body, err := c.GetRawData()
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.logger.Warn("Request body too large", slog.Int64("limit", tooLarge.Limit))
		c.JSON(http.StatusRequestEntityTooLarge, dto.ErrorResponse{
			Error: fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit),
		})
		return
	}
	if err != nil {
		h.logger.Error("Failed to read request body", slog.Any("error", err))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Failed to read request body"})
		return
	}

	submission, err := domain.DecodeSubmission(body)
	if err != nil {
		h.logger.Warn("Invalid request body", slog.Any("error", err))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid JSON in request body: " + domain.ErrInvalidPayload.Error()})
		return
	}

	job := jobs.NewPending(uuid.NewString(), h.now())
	logger := h.logger.With(slog.String("job_id", job.JobID))

	if err := h.store.CreateJob(ctx, job); err != nil {
		logger.Error("Failed to create job", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create job"})
		return
	}

	envelope, err := jobs.EncodeEnvelope(job.JobID, submission)
	if err == nil {
		err = h.publisher.PublishWithRetry(ctx, rabbitmq.Message{
			ID:          job.JobID,
			Body:        envelope,
			ContentType: jobs.EnvelopeContentType,
		})
	}
	if err != nil {
		logger.Error("Failed to dispatch job", slog.Any("error", err))
		h.metrics.RecordDispatchFailed(ctx)
		// The request context may already be gone; the failure still has to land.
		if markErr := h.store.MarkJobFailed(context.WithoutCancel(ctx), job.JobID, domain.MessageDispatchFailed); markErr != nil {
			logger.Error("Failed to mark undispatched job as failed", slog.Any("error", markErr))
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to dispatch job", JobID: job.JobID})
		return
	}

	h.metrics.RecordJobSubmitted(ctx)
	logger.Info("Job submitted", slog.Int("body_size", len(body)))

	c.JSON(http.StatusAccepted, dto.SubmitResponse{
		Message:                 domain.MessageSubmitted,
		JobID:                   job.JobID,
		Status:                  string(job.Status),
		CheckStatusURL:          domain.CheckStatusURL(job.JobID),
		EstimatedCompletionTime: domain.EstimatedCompletion,
	})
}

// PollReport handles GET /api/v1/reports?job_id=
func (h *JobHandler) PollReport(c *gin.Context) {
	jobID := c.Query("job_id")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "Missing job_id parameter",
			Usage: domain.PollUsage,
		})
		return
	}

	h.respondWithJob(c, jobID)
}

// GetReport handles GET /api/v1/reports/:job_id
func (h *JobHandler) GetReport(c *gin.Context) {
	h.respondWithJob(c, c.Param("job_id"))
}

func (h *JobHandler) respondWithJob(c *gin.Context, jobID string) {
	// Ids that were never issued cannot exist; skip the store for them.
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Job not found", JobID: jobID})
		return
	}

	job, err := h.store.GetJobByID(c.Request.Context(), jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Job not found", JobID: jobID})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get job", slog.String("job_id", jobID), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to check job status", JobID: jobID})
		return
	}

	base := dto.JobStatusResponse{
		JobID:     job.JobID,
		Status:    string(job.Status),
		CreatedAt: job.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: job.UpdatedAt.UTC().Format(time.RFC3339),
	}

	switch {
	case job.Status.InProgress():
		c.JSON(http.StatusAccepted, dto.PendingResponse{
			JobStatusResponse: base,
			Message:           domain.MessageStillProcessing,
		})
	case job.Status == jobs.StatusFailed:
		msg := "Unknown error"
		if job.ErrorMessage != nil && *job.ErrorMessage != "" {
			msg = *job.ErrorMessage
		}
		c.JSON(http.StatusOK, dto.FailedResponse{
			JobStatusResponse: base,
			ErrorMessage:      msg,
		})
	case job.Status == jobs.StatusCompleted || job.Status == jobs.StatusPartial:
		c.JSON(http.StatusOK, h.buildResult(c, base, job))
	default:
		c.JSON(http.StatusOK, base)
	}
}

// buildResult signs every stored artifact afresh. Signed URLs are never
// persisted, so repeated polls only differ in the URLs.
func (h *JobHandler) buildResult(c *gin.Context, base dto.JobStatusResponse, job *jobs.Job) dto.JobResultResponse {
	ttl := h.storage.PresignTTL

	reports := make([]dto.ReportDTO, 0, len(job.Artifacts))
	for _, ref := range job.Artifacts {
		url, err := h.presigner.PresignGet(c.Request.Context(), objectstore.Object{Bucket: ref.Bucket, Key: ref.Key}, ttl)
		if err != nil {
			h.logger.Warn("Failed to presign report",
				slog.String("job_id", job.JobID),
				slog.String("type", ref.Type),
				slog.Any("error", err),
			)
			continue
		}
		reports = append(reports, dto.ReportDTO{
			Type:             ref.Type,
			Bucket:           ref.Bucket,
			Key:              ref.Key,
			PresignedURL:     url,
			ExpiresInSeconds: int64(ttl.Seconds()),
		})
	}

	resp := dto.JobResultResponse{
		JobStatusResponse: base,
		Reports:           reports,
		StorageFolder:     h.storageFolder(job, reports),
		Metadata:          job.Metadata,
		ReportsCount:      len(reports),
	}
	for i := range reports {
		if reports[i].Type == string(report.KindExecutive) {
			primary := reports[i]
			resp.PrimaryReport = &primary
			break
		}
	}
	return resp
}

func (h *JobHandler) storageFolder(job *jobs.Job, reports []dto.ReportDTO) dto.StorageFolderDTO {
	bucket := h.storage.Bucket
	if len(reports) > 0 {
		bucket = reports[0].Bucket
	}
	prefix := objectstore.Folder(h.storage.Prefix, folderCompany(job.Metadata), job.JobID)

	return dto.StorageFolderDTO{
		Bucket:      bucket,
		Prefix:      prefix,
		Description: fmt.Sprintf("All reports for this job are in: s3://%s/%s", bucket, prefix),
	}
}

// folderCompany returns the first real company name in kind order.
func folderCompany(md jobs.Metadata) string {
	for _, kind := range report.Kinds {
		details, ok := md[string(kind)]
		if !ok {
			continue
		}
		if name := report.CompanyName(details); name != report.UnknownCompany {
			return name
		}
	}
	return report.UnknownCompany
}
