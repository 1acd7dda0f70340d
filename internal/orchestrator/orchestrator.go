// Package orchestrator runs the report pipelines of one job concurrently and
// aggregates their outcomes into the job's final state.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cuongbtq/assessment-reports/internal/assessment"
	"github.com/cuongbtq/assessment-reports/internal/config"
	"github.com/cuongbtq/assessment-reports/internal/jobs"
	"github.com/cuongbtq/assessment-reports/internal/objectstore"
	"github.com/cuongbtq/assessment-reports/internal/observability"
	"github.com/cuongbtq/assessment-reports/internal/render"
	"github.com/cuongbtq/assessment-reports/internal/report"
)

// ErrMissingArtifact marks a kind that produced nothing to upload.
var ErrMissingArtifact = errors.New("missing artifact")

// Config holds orchestrator settings.
type Config struct {
	// WorkDir receives rendered files before upload, one subdirectory per job.
	WorkDir string
	// Prefix is prepended to every object key.
	Prefix string
	// CompletionPolicy is config.CompletionPolicyAll or config.CompletionPolicyExecutive.
	CompletionPolicy string
	// KeepLocal leaves rendered files in WorkDir after the run.
	KeepLocal bool
	Logger    *slog.Logger
	Metrics   *observability.Metrics
}

// Orchestrator fans out one job into its report pipelines.
type Orchestrator struct {
	normalizer *assessment.Normalizer
	producers  []report.Producer
	renderer   render.Renderer
	uploader   objectstore.Uploader
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time
}

// New creates an Orchestrator.
func New(producers []report.Producer, renderer render.Renderer, uploader objectstore.Uploader, cfg Config) *Orchestrator {
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	if cfg.CompletionPolicy == "" {
		cfg.CompletionPolicy = config.CompletionPolicyAll
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		normalizer: assessment.NewNormalizer(),
		producers:  producers,
		renderer:   renderer,
		uploader:   uploader,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// Run normalizes the submission once, runs every producer concurrently and
// aggregates the results. The only error returned is a normalization failure;
// everything else is reported through the Outcome.
func (o *Orchestrator) Run(ctx context.Context, jobID string, raw map[string]any) (*Outcome, error) {
	logger := o.logger.With(slog.String("job_id", jobID))

	a, err := o.normalizer.Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize assessment: %w", err)
	}

	jobDir := filepath.Join(o.cfg.WorkDir, jobID)
	if !o.cfg.KeepLocal {
		defer func() {
			if err := os.RemoveAll(jobDir); err != nil {
				logger.Warn("Failed to remove work directory", slog.String("dir", jobDir), slog.Any("error", err))
			}
		}()
	}

	logger.Info("Starting report pipelines",
		slog.String("company", a.CompanyName),
		slog.String("industry", a.Industry),
		slog.Int("pipelines", len(o.producers)),
	)

	// Each pipeline owns one slot, so no locking is needed.
	results := make([]*Result, len(o.producers))
	g := new(errgroup.Group)
	g.SetLimit(len(report.Kinds))
	for i, p := range o.producers {
		g.Go(func() error {
			results[i] = o.runPipeline(ctx, logger, jobID, jobDir, a, p)
			return nil
		})
	}
	_ = g.Wait()

	outcome := o.aggregate(jobID, results)
	if outcome.Status == jobs.StatusFailed {
		outcome.Inline = o.inlineExecutive(logger, outcome.Results)
	}

	logger.Info("Report pipelines finished",
		slog.String("status", string(outcome.Status)),
		slog.Int("uploaded", len(outcome.Artifacts)),
	)
	return outcome, nil
}

func (o *Orchestrator) runPipeline(ctx context.Context, logger *slog.Logger, jobID, jobDir string, a *assessment.Assessment, p report.Producer) (res *Result) {
	kind := p.Kind()
	logger = logger.With(slog.String("kind", string(kind)))
	res = &Result{Kind: kind, StartedAt: o.now().UTC()}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Report pipeline panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			res.Status = ResultFailed
			res.Err = fmt.Errorf("panic in %s pipeline: %v", kind, r)
		}
		res.FinishedAt = o.now().UTC()
		o.cfg.Metrics.RecordReport(ctx, string(kind), string(res.Status))
	}()

	out, err := p.Produce(ctx, a)
	if errors.Is(err, report.ErrNotApplicable) {
		logger.Info("Report not applicable", slog.String("industry", a.Industry))
		res.Status = ResultNotApplicable
		return res
	}
	if err != nil {
		return res.fail(logger, "Report production failed", err)
	}

	res.Details = out.Details
	res.Source = out.Source
	o.cfg.Metrics.RecordContent(ctx, string(kind), string(out.Source), out.GenerationLatency.Seconds())

	at := o.now()
	localPath := filepath.Join(jobDir, fmt.Sprintf("%s_report_%s.pdf", kind, at.UTC().Format(report.TimestampLayout)))
	if err := o.renderer.Render(ctx, out.Document, localPath); err != nil {
		return res.fail(logger, "Report rendering failed", err)
	}
	res.LocalPath = localPath

	key := objectstore.Key(o.cfg.Prefix, report.CompanyName(out.Details), jobID, string(kind), at)
	obj, err := o.uploader.Upload(ctx, key, localPath)
	if err != nil {
		return res.fail(logger, "Report upload failed", err)
	}

	res.Artifact = &obj
	res.Status = ResultUploaded
	logger.Info("Report uploaded",
		slog.String("bucket", obj.Bucket),
		slog.String("key", obj.Key),
		slog.String("source", string(out.Source)),
	)
	return res
}

// aggregate builds the final state from the pipeline results, keyed by kind
// regardless of completion order.
func (o *Orchestrator) aggregate(jobID string, results []*Result) *Outcome {
	byKind := make(map[report.Kind]*Result, len(report.Kinds))
	for _, r := range results {
		if r != nil {
			byKind[r.Kind] = r
		}
	}

	outcome := &Outcome{
		JobID:    jobID,
		Results:  make(map[report.Kind]*Result, len(report.Kinds)),
		Metadata: make(jobs.Metadata, len(report.Kinds)),
	}

	required, uploaded := 0, 0
	for _, kind := range report.Kinds {
		r, ok := byKind[kind]
		if !ok {
			r = &Result{Kind: kind, Status: ResultFailed, Err: ErrMissingArtifact}
		}
		outcome.Results[kind] = r
		outcome.Metadata[string(kind)] = r.metadata()

		if r.Status != ResultNotApplicable {
			required++
		}
		if r.Status == ResultUploaded {
			uploaded++
			outcome.Artifacts = append(outcome.Artifacts, jobs.ArtifactRef{
				Type:   string(kind),
				Bucket: r.Artifact.Bucket,
				Key:    r.Artifact.Key,
			})
		}
	}

	complete := uploaded > 0 && uploaded == required
	if o.cfg.CompletionPolicy == config.CompletionPolicyExecutive {
		complete = outcome.Results[report.KindExecutive].Status == ResultUploaded
	}

	switch {
	case complete:
		outcome.Status = jobs.StatusCompleted
	case uploaded > 0:
		outcome.Status = jobs.StatusPartial
	default:
		outcome.Status = jobs.StatusFailed
		outcome.ErrorMessage = failureMessage(outcome.Results)
	}
	return outcome
}

// failureMessage prefers a real error over the generic missing marker.
func failureMessage(results map[report.Kind]*Result) string {
	var generic error
	for _, kind := range report.Kinds {
		r := results[kind]
		if r == nil || r.Err == nil {
			continue
		}
		if errors.Is(r.Err, ErrMissingArtifact) {
			if generic == nil {
				generic = r.Err
			}
			continue
		}
		return fmt.Sprintf("%s report: %v", kind, r.Err)
	}
	if generic != nil {
		return fmt.Sprintf("no reports were uploaded: %v", generic)
	}
	return "no reports were uploaded"
}

// inlineExecutive reads the executive PDF back when nothing reached storage.
func (o *Orchestrator) inlineExecutive(logger *slog.Logger, results map[report.Kind]*Result) *InlineArtifact {
	r := results[report.KindExecutive]
	if r == nil || r.LocalPath == "" {
		return nil
	}

	data, err := os.ReadFile(r.LocalPath)
	if err != nil {
		logger.Warn("Executive report not available for inline delivery", slog.Any("error", err))
		return nil
	}

	logger.Warn("No reports uploaded, returning executive report inline",
		slog.String("path", r.LocalPath),
		slog.Int("bytes", len(data)),
	)
	return &InlineArtifact{
		Type:     string(report.KindExecutive),
		Filename: filepath.Base(r.LocalPath),
		Data:     data,
	}
}
