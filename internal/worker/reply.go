package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/cuongbtq/assessment-reports/internal/jobs"
	"github.com/cuongbtq/assessment-reports/internal/objectstore"
	"github.com/cuongbtq/assessment-reports/internal/orchestrator"
	"github.com/cuongbtq/assessment-reports/internal/report"
	"github.com/cuongbtq/assessment-reports/internal/worker/domain"
)

// reply returns the outcome to a publisher that set reply_to.
func (w *Worker) reply(ctx context.Context, logger *slog.Logger, msg *domain.JobMessage, claimed *jobs.Job, outcome *orchestrator.Outcome) {
	if msg.ReplyTo == "" || w.replier == nil {
		return
	}

	body, err := json.Marshal(w.buildReply(ctx, logger, claimed, outcome))
	if err != nil {
		logger.Error("Failed to encode job outcome", slog.Any("error", err))
		return
	}

	correlationID := msg.CorrelationID
	if correlationID == "" {
		correlationID = msg.JobID
	}
	if err := w.replier.Reply(ctx, msg.ReplyTo, correlationID, body); err != nil {
		logger.Error("Failed to reply with job outcome",
			slog.String("reply_to", msg.ReplyTo),
			slog.Any("error", err),
		)
	}
}

// buildReply signs every uploaded report like a poll would. A report that
// cannot be signed is left out.
func (w *Worker) buildReply(ctx context.Context, logger *slog.Logger, claimed *jobs.Job, outcome *orchestrator.Outcome) *domain.Reply {
	now := w.now().UTC()
	createdAt := now
	if claimed != nil && !claimed.CreatedAt.IsZero() {
		createdAt = claimed.CreatedAt
	}

	r := &domain.Reply{
		JobID:        outcome.JobID,
		Status:       string(outcome.Status),
		CreatedAt:    createdAt.UTC().Format(time.RFC3339),
		UpdatedAt:    now.Format(time.RFC3339),
		Reports:      make([]domain.ReportLink, 0, len(outcome.Artifacts)),
		Metadata:     outcome.Metadata,
		ErrorMessage: outcome.ErrorMessage,
	}

	if w.presigner != nil {
		for _, ref := range outcome.Artifacts {
			url, err := w.presigner.PresignGet(ctx, objectstore.Object{Bucket: ref.Bucket, Key: ref.Key}, w.presignTTL)
			if err != nil {
				logger.Warn("Failed to presign report for reply",
					slog.String("type", ref.Type),
					slog.Any("error", err),
				)
				continue
			}
			r.Reports = append(r.Reports, domain.ReportLink{
				Type:             ref.Type,
				Bucket:           ref.Bucket,
				Key:              ref.Key,
				PresignedURL:     url,
				ExpiresInSeconds: int64(w.presignTTL.Seconds()),
			})
		}
	}
	r.ReportsCount = len(r.Reports)

	for i := range r.Reports {
		if r.Reports[i].Type == string(report.KindExecutive) {
			primary := r.Reports[i]
			r.PrimaryReport = &primary
			break
		}
	}

	if in := outcome.Inline; in != nil {
		r.InlineReport = &domain.InlineReport{Type: in.Type, Filename: in.Filename, Data: in.Data}
	}
	return r
}
