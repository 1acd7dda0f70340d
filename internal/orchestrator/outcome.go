package orchestrator

import (
	"log/slog"
	"time"

	"github.com/cuongbtq/assessment-reports/internal/jobs"
	"github.com/cuongbtq/assessment-reports/internal/objectstore"
	"github.com/cuongbtq/assessment-reports/internal/report"
)

// ResultStatus is the outcome of one report pipeline.
type ResultStatus string

const (
	ResultUploaded      ResultStatus = "uploaded"
	ResultFailed        ResultStatus = "failed"
	ResultNotApplicable ResultStatus = "not_applicable"
)

// Result is what one pipeline produced. It lives only for the duration of the
// run and is folded into the job at finalization.
type Result struct {
	Kind       report.Kind         `json:"kind"`
	Status     ResultStatus        `json:"status"`
	LocalPath  string              `json:"local_path,omitempty"`
	Artifact   *objectstore.Object `json:"-"`
	Details    map[string]any      `json:"details,omitempty"`
	Source     report.Source       `json:"source,omitempty"`
	Err        error               `json:"-"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
}

// Duration is the wall time of the pipeline.
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// ErrorMessage returns the failure text, or "" on success.
func (r *Result) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

func (r *Result) fail(logger *slog.Logger, msg string, err error) *Result {
	logger.Error(msg, slog.Any("error", err))
	r.Status = ResultFailed
	r.Err = err
	return r
}

// metadata is the per-kind entry persisted on the job.
func (r *Result) metadata() map[string]any {
	md := make(map[string]any, len(r.Details)+2)
	for k, v := range r.Details {
		md[k] = v
	}
	md["status"] = string(r.Status)
	if r.Err != nil {
		md["error"] = r.Err.Error()
	}
	return md
}

// InlineArtifact carries report bytes when no upload succeeded.
type InlineArtifact struct {
	Type     string `json:"type"`
	Filename string `json:"filename"`
	Data     []byte `json:"content_base64"`
}

// Outcome is the aggregated result of one job run.
type Outcome struct {
	JobID        string                  `json:"job_id"`
	Status       jobs.Status             `json:"status"`
	Results      map[report.Kind]*Result `json:"-"`
	Metadata     jobs.Metadata           `json:"metadata"`
	Artifacts    jobs.Artifacts          `json:"reports"`
	ErrorMessage string                  `json:"error_message,omitempty"`
	Inline       *InlineArtifact         `json:"inline_report,omitempty"`
}

// Final converts the outcome into the job store's terminal write.
func (o *Outcome) Final() jobs.Final {
	return jobs.Final{
		Status:       o.Status,
		Metadata:     o.Metadata,
		Artifacts:    o.Artifacts,
		ErrorMessage: o.ErrorMessage,
	}
}

// Failed builds the outcome of a job that could not start its pipelines.
func Failed(jobID string, err error) *Outcome {
	return &Outcome{
		JobID:        jobID,
		Status:       jobs.StatusFailed,
		Metadata:     jobs.Metadata{},
		ErrorMessage: err.Error(),
	}
}
