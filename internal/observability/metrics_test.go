package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	ctx := context.Background()
	metrics, handler, err := NewMetrics(ctx, "test-service")
	require.NoError(t, err)
	require.NotNil(t, metrics)
	require.NotNil(t, handler)

	metrics.RecordHTTPRequest(ctx, "POST", "/api/v1/reports", 202, 0.01)
	metrics.RecordHTTPRequest(ctx, "GET", "", 404, 0.001)
	metrics.RecordJobSubmitted(ctx)
	metrics.RecordDispatchFailed(ctx)
	metrics.RecordJobStarted(ctx)
	metrics.RecordReport(ctx, "executive", OutcomeUploaded)
	metrics.RecordReport(ctx, "compliance", OutcomeNotApplicable)
	metrics.RecordContent(ctx, "technical", "fallback", 0.2)
	metrics.RecordJobFinished(ctx, "PARTIAL", 95)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "report_jobs_submitted_total")
	assert.Contains(t, body, "reports_total")
	assert.Contains(t, body, `outcome="not_applicable"`)
	assert.Contains(t, body, `route="unmatched"`)
}

func TestNilMetrics(t *testing.T) {
	var metrics *Metrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		metrics.RecordHTTPRequest(ctx, "GET", "/health", 200, 0.001)
		metrics.RecordJobSubmitted(ctx)
		metrics.RecordDispatchFailed(ctx)
		metrics.RecordJobStarted(ctx)
		metrics.RecordJobFinished(ctx, "", 1)
		metrics.RecordReport(ctx, "executive", OutcomeFailed)
		metrics.RecordContent(ctx, "executive", "generated", 1)
	})
}

func TestStatusClass(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"},
		{202, "2xx"},
		{404, "4xx"},
		{500, "5xx"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statusClass(tt.code))
	}
}
