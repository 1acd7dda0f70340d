package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cuongbtq/assessment-reports/internal/jobs"
	"github.com/cuongbtq/assessment-reports/internal/objectstore"
	"github.com/cuongbtq/assessment-reports/internal/observability"
	"github.com/cuongbtq/assessment-reports/internal/orchestrator"
	"github.com/cuongbtq/assessment-reports/internal/worker/domain"
)

// Consumer yields deliveries from the job queue
type Consumer interface {
	Consume() (<-chan amqp.Delivery, error)
}

// Replier sends an outcome back to a publisher that asked for one
type Replier interface {
	Reply(ctx context.Context, replyTo, correlationID string, body []byte) error
}

// JobStore is the worker's access to job records
type JobStore interface {
	ClaimJob(ctx context.Context, jobID string) (*jobs.Job, error)
	FinalizeJob(ctx context.Context, jobID string, final jobs.Final) error
	TouchJob(ctx context.Context, jobID string) error
}

// Runner produces the reports of one job
type Runner interface {
	Run(ctx context.Context, jobID string, raw map[string]any) (*orchestrator.Outcome, error)
}

// Config holds worker configuration
type Config struct {
	Logger            *slog.Logger
	Consumer          Consumer
	Replier           Replier
	Store             JobStore
	Runner            Runner
	Metrics           *observability.Metrics
	Presigner         objectstore.Presigner
	PresignTTL        time.Duration
	WorkerID          string
	Concurrency       int
	JobTimeout        time.Duration
	HeartbeatInterval time.Duration
}

// Worker consumes report jobs and runs them through the orchestrator
type Worker struct {
	logger            *slog.Logger
	consumer          Consumer
	replier           Replier
	store             JobStore
	runner            Runner
	metrics           *observability.Metrics
	presigner         objectstore.Presigner
	presignTTL        time.Duration
	workerID          string
	concurrency       int
	jobTimeout        time.Duration
	heartbeatInterval time.Duration
	jobsChan          chan *domain.JobMessage
	wg                sync.WaitGroup
	stopChan          chan struct{}
	stopOnce          sync.Once
	now               func() time.Time
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	heartbeat := cfg.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	presignTTL := cfg.PresignTTL
	if presignTTL <= 0 {
		presignTTL = time.Hour
	}

	return &Worker{
		logger:            cfg.Logger.With(slog.String("worker_id", cfg.WorkerID)),
		consumer:          cfg.Consumer,
		replier:           cfg.Replier,
		store:             cfg.Store,
		runner:            cfg.Runner,
		metrics:           cfg.Metrics,
		presigner:         cfg.Presigner,
		presignTTL:        presignTTL,
		workerID:          cfg.WorkerID,
		concurrency:       concurrency,
		jobTimeout:        cfg.JobTimeout,
		heartbeatInterval: heartbeat,
		jobsChan:          make(chan *domain.JobMessage),
		stopChan:          make(chan struct{}),
		now:               time.Now,
	}
}

// Start consumes deliveries until ctx is canceled or the delivery channel
// closes. Jobs in flight at that point see a canceled context and are
// requeued rather than finalized.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.consumer.Consume()
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	w.spawnWorkerPool(ctx)
	w.dispatchMessages(ctx, deliveries)

	w.logger.Info("Worker dispatcher exited")
	return nil
}

// Stop signals the pool and waits for in-flight jobs to settle
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
