package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/assessment-reports/internal/jobs"
	"github.com/cuongbtq/assessment-reports/internal/orchestrator"
	"github.com/cuongbtq/assessment-reports/internal/worker/domain"
)

// processJob claims the job, runs its report pipelines and writes the
// terminal state. A nil return means the delivery can be acknowledged.
func (w *Worker) processJob(ctx context.Context, msg *domain.JobMessage) error {
	logger := w.logger.With(slog.String("job_id", msg.JobID))

	claimed, err := w.store.ClaimJob(ctx, msg.JobID)
	switch {
	case errors.Is(err, jobs.ErrJobFinalized):
		logger.Info("Job already finalized, skipping redelivery")
		return nil
	case errors.Is(err, jobs.ErrJobNotFound):
		logger.Error("Job has no record, discarding message")
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	case err != nil:
		logger.Error("Failed to claim job", slog.Any("error", err))
		return domain.NewRetryableError(fmt.Errorf("failed to claim job: %w", err))
	}

	start := time.Now()
	w.metrics.RecordJobStarted(ctx)

	jobCtx := ctx
	if w.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, w.jobTimeout)
		defer cancel()
	}

	heartbeatDone := make(chan struct{})
	go w.sendJobHeartbeat(jobCtx, logger, msg.JobID, heartbeatDone)

	outcome, err := w.runner.Run(jobCtx, msg.JobID, msg.Submission)
	close(heartbeatDone)
	if err != nil {
		logger.Error("Job could not start its pipelines", slog.Any("error", err))
		outcome = orchestrator.Failed(msg.JobID, err)
	}

	// Metrics and the terminal write must land even if shutdown started.
	settleCtx := context.WithoutCancel(ctx)

	if ctx.Err() != nil {
		w.metrics.RecordJobFinished(settleCtx, "", time.Since(start).Seconds())
		logger.Warn("Job interrupted by shutdown, leaving it PROCESSING for redelivery")
		return domain.NewRetryableError(fmt.Errorf("%w: %v", domain.ErrShutdown, ctx.Err()))
	}

	if err := w.store.FinalizeJob(settleCtx, msg.JobID, outcome.Final()); err != nil {
		// The reports may already be uploaded; redelivery would only redo them.
		logger.Error("Failed to write final job state",
			slog.String("status", string(outcome.Status)),
			slog.Any("error", err),
		)
	}

	w.metrics.RecordJobFinished(settleCtx, string(outcome.Status), time.Since(start).Seconds())
	w.reply(settleCtx, logger, msg, claimed, outcome)

	attrs := []any{
		slog.String("status", string(outcome.Status)),
		slog.Int("uploaded", len(outcome.Artifacts)),
		slog.Duration("duration", time.Since(start)),
	}
	if outcome.ErrorMessage != "" {
		attrs = append(attrs, slog.String("error_message", outcome.ErrorMessage))
	}
	logger.Info("Job finished", attrs...)

	return nil
}

// sendJobHeartbeat periodically advances the job's updated_at
func (w *Worker) sendJobHeartbeat(ctx context.Context, logger *slog.Logger, jobID string, done <-chan struct{}) {
	ticker := time.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.store.TouchJob(ctx, jobID); err != nil {
				logger.Warn("Failed to update job heartbeat", slog.Any("error", err))
			}
		}
	}
}
