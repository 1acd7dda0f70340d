package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/cuongbtq/assessment-reports/internal/config"
	"github.com/cuongbtq/assessment-reports/internal/jobs"
	"github.com/cuongbtq/assessment-reports/internal/objectstore"
	"github.com/cuongbtq/assessment-reports/internal/observability"
	"github.com/cuongbtq/assessment-reports/shared/rabbitmq"
)

// JobStore is the coordinator's access to job records
type JobStore interface {
	CreateJob(ctx context.Context, job *jobs.Job) error
	GetJobByID(ctx context.Context, jobID string) (*jobs.Job, error)
	MarkJobFailed(ctx context.Context, jobID, message string) error
}

// Publisher dispatches job envelopes to the worker
type Publisher interface {
	PublishWithRetry(ctx context.Context, msg rabbitmq.Message) error
}

// HealthCheck is one named readiness dependency
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger    *slog.Logger
	Store     JobStore
	Publisher Publisher
	Presigner objectstore.Presigner
	Storage   config.StorageConfig
	Metrics   *observability.Metrics
	// MaxBodyBytes caps a submission; zero leaves it unbounded.
	MaxBodyBytes int64
	// HealthChecks back the /health readiness answer; every one must pass.
	HealthChecks []HealthCheck
}

// JobHandler handles report job HTTP requests
type JobHandler struct {
	logger    *slog.Logger
	store     JobStore
	publisher Publisher
	presigner objectstore.Presigner
	storage   config.StorageConfig
	metrics   *observability.Metrics
	maxBody   int64
	now       func() time.Time
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:    deps.Logger,
		store:     deps.Store,
		publisher: deps.Publisher,
		presigner: deps.Presigner,
		storage:   deps.Storage,
		metrics:   deps.Metrics,
		maxBody:   deps.MaxBodyBytes,
		now:       func() time.Time { return time.Now().UTC() },
	}
}
