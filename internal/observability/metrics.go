package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the instruments of both services. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	meter metric.Meter

	// HTTP (coordinator)
	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestsTotal   metric.Int64Counter
	HTTPErrorsTotal     metric.Int64Counter

	// Jobs
	JobsSubmitted      metric.Int64Counter
	JobDispatchFailed  metric.Int64Counter
	JobsFinalized      metric.Int64Counter
	JobDuration        metric.Float64Histogram
	JobsActive         metric.Int64UpDownCounter
	ReportsTotal       metric.Int64Counter
	ReportContent      metric.Int64Counter
	GenerationDuration metric.Float64Histogram
}

// NewMetrics creates all instruments on a Prometheus-backed meter provider and
// returns the scrape handler.
func NewMetrics(ctx context.Context, service string) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	m := &Metrics{meter: provider.Meter(service)}
	if err := m.init(); err != nil {
		return nil, nil, err
	}

	return m, promhttp.Handler(), nil
}

func (m *Metrics) init() error {
	var err error
	meter := m.meter

	if m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5),
	); err != nil {
		return err
	}
	if m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	); err != nil {
		return err
	}
	if m.HTTPErrorsTotal, err = meter.Int64Counter(
		"http_errors_total",
		metric.WithDescription("Total number of HTTP responses with status 4xx or 5xx"),
	); err != nil {
		return err
	}

	if m.JobsSubmitted, err = meter.Int64Counter(
		"report_jobs_submitted_total",
		metric.WithDescription("Jobs accepted by the coordinator"),
	); err != nil {
		return err
	}
	if m.JobDispatchFailed, err = meter.Int64Counter(
		"report_jobs_dispatch_failed_total",
		metric.WithDescription("Jobs that could not be handed to the worker queue"),
	); err != nil {
		return err
	}
	if m.JobsFinalized, err = meter.Int64Counter(
		"report_jobs_finalized_total",
		metric.WithDescription("Jobs finalized by the worker, by terminal status"),
	); err != nil {
		return err
	}
	if m.JobDuration, err = meter.Float64Histogram(
		"report_job_duration_seconds",
		metric.WithDescription("Worker processing time per job in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(5, 15, 30, 60, 120, 180, 300, 600, 900),
	); err != nil {
		return err
	}
	if m.JobsActive, err = meter.Int64UpDownCounter(
		"report_jobs_active",
		metric.WithDescription("Jobs currently being processed"),
	); err != nil {
		return err
	}

	if m.ReportsTotal, err = meter.Int64Counter(
		"reports_total",
		metric.WithDescription("Report pipeline outcomes by kind"),
	); err != nil {
		return err
	}
	if m.ReportContent, err = meter.Int64Counter(
		"report_content_total",
		metric.WithDescription("Report content by kind and source (generated or fallback)"),
	); err != nil {
		return err
	}
	if m.GenerationDuration, err = meter.Float64Histogram(
		"report_generation_duration_seconds",
		metric.WithDescription("Generation service latency per report in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 15, 30, 60, 120, 180, 300),
	); err != nil {
		return err
	}

	return nil
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, durationSeconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(methodAttr(method), routeAttr(route), statusAttr(statusCode))

	m.HTTPRequestDuration.Record(ctx, durationSeconds, attrs)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	if statusCode >= 400 {
		m.HTTPErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordJobSubmitted records a job accepted by the coordinator.
func (m *Metrics) RecordJobSubmitted(ctx context.Context) {
	if m == nil {
		return
	}
	m.JobsSubmitted.Add(ctx, 1)
}

// RecordDispatchFailed records a job that never reached the queue.
func (m *Metrics) RecordDispatchFailed(ctx context.Context) {
	if m == nil {
		return
	}
	m.JobDispatchFailed.Add(ctx, 1)
}

// RecordJobStarted marks a job as in flight on the worker.
func (m *Metrics) RecordJobStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.JobsActive.Add(ctx, 1)
}

// RecordJobFinished records the end of a job. status is empty when the job was
// abandoned without a terminal write.
func (m *Metrics) RecordJobFinished(ctx context.Context, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.JobsActive.Add(ctx, -1)
	if status == "" {
		return
	}
	attrs := metric.WithAttributes(jobStatusAttr(status))
	m.JobsFinalized.Add(ctx, 1, attrs)
	m.JobDuration.Record(ctx, durationSeconds, attrs)
}

// RecordReport records the outcome of one report pipeline.
func (m *Metrics) RecordReport(ctx context.Context, kind, outcome string) {
	if m == nil {
		return
	}
	m.ReportsTotal.Add(ctx, 1, metric.WithAttributes(kindAttr(kind), outcomeAttr(outcome)))
}

// RecordContent records where a report's text came from and how long the
// generation call took.
func (m *Metrics) RecordContent(ctx context.Context, kind, source string, generationSeconds float64) {
	if m == nil {
		return
	}
	m.ReportContent.Add(ctx, 1, metric.WithAttributes(kindAttr(kind), sourceAttr(source)))
	m.GenerationDuration.Record(ctx, generationSeconds, metric.WithAttributes(kindAttr(kind)))
}
