package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/assessment-reports/internal/api/domain"
	"github.com/cuongbtq/assessment-reports/internal/api/dto"
	"github.com/cuongbtq/assessment-reports/internal/api/handler"
	"github.com/cuongbtq/assessment-reports/internal/config"
	"github.com/cuongbtq/assessment-reports/internal/jobs"
	"github.com/cuongbtq/assessment-reports/internal/objectstore"
	"github.com/cuongbtq/assessment-reports/shared/logger"
	"github.com/cuongbtq/assessment-reports/shared/rabbitmq"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []rabbitmq.Message
	err      error
}

func (p *fakePublisher) PublishWithRetry(_ context.Context, msg rabbitmq.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

// fakePresigner issues a different URL on every call.
type fakePresigner struct {
	mu      sync.Mutex
	calls   int
	failKey string
}

func (p *fakePresigner) PresignGet(_ context.Context, obj objectstore.Object, ttl time.Duration) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if obj.Key == p.failKey {
		return "", errors.New("signing failed")
	}
	p.calls++
	return fmt.Sprintf("https://%s.example/%s?expires=%d&sig=%d", obj.Bucket, obj.Key, int(ttl.Seconds()), p.calls), nil
}

type testEnv struct {
	router    *gin.Engine
	store     *jobs.MemoryStore
	publisher *fakePublisher
	presigner *fakePresigner
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		store:     jobs.NewMemoryStore(),
		publisher: &fakePublisher{},
		presigner: &fakePresigner{},
	}
	deps := &handler.Dependencies{
		Logger:    logger.NewNop().Logger,
		Store:     env.store,
		Publisher: env.publisher,
		Presigner: env.presigner,
		Storage: config.StorageConfig{
			Bucket:     "assessment-reports",
			Prefix:     "reports/",
			PresignTTL: time.Hour,
		},
		MaxBodyBytes: testMaxBody,
	}
	env.router = SetupRouter(deps, http.NotFoundHandler())
	return env
}

func (e *testEnv) do(method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// seedFinal stores a job that the worker has already finalized.
func (e *testEnv) seedFinal(t *testing.T, final jobs.Final) string {
	t.Helper()

	ctx := context.Background()
	jobID := uuid.NewString()
	require.NoError(t, e.store.CreateJob(ctx, jobs.NewPending(jobID, time.Now().UTC())))
	_, err := e.store.ClaimJob(ctx, jobID)
	require.NoError(t, err)
	require.NoError(t, e.store.FinalizeJob(ctx, jobID, final))
	return jobID
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

const testMaxBody = 4096

const submission = `{"exportDate":"2025-03-01T09:30:00Z","responses":{"business-owner":"Acme Corp, John Smith"}}`

func TestSubmitReport(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/reports", submission)
	require.Equal(t, http.StatusAccepted, w.Code)

	resp := decode[dto.SubmitResponse](t, w)
	assert.Equal(t, domain.MessageSubmitted, resp.Message)
	assert.Equal(t, "PENDING", resp.Status)
	assert.Equal(t, "?job_id="+resp.JobID, resp.CheckStatusURL)
	assert.Equal(t, "~3 minutes", resp.EstimatedCompletionTime)
	_, err := uuid.Parse(resp.JobID)
	require.NoError(t, err)

	job, err := env.store.GetJobByID(context.Background(), resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusPending, job.Status)

	require.Len(t, env.publisher.messages, 1)
	msg := env.publisher.messages[0]
	assert.Equal(t, resp.JobID, msg.ID)
	assert.Equal(t, jobs.EnvelopeContentType, msg.ContentType)

	jobID, body, err := jobs.DecodeEnvelope(msg.Body)
	require.NoError(t, err)
	assert.Equal(t, resp.JobID, jobID)
	assert.Equal(t, "2025-03-01T09:30:00Z", body["exportDate"])
}

func TestSubmitThenPollIsStillProcessing(t *testing.T) {
	env := newTestEnv(t)

	submitted := decode[dto.SubmitResponse](t, env.do(http.MethodPost, "/api/v1/reports", submission))

	for _, target := range []string{
		"/api/v1/reports" + submitted.CheckStatusURL,
		"/api/v1/reports/" + submitted.JobID,
	} {
		w := env.do(http.MethodGet, target, "")
		require.Equal(t, http.StatusAccepted, w.Code, target)

		resp := decode[dto.PendingResponse](t, w)
		assert.Equal(t, submitted.JobID, resp.JobID)
		assert.Equal(t, "PENDING", resp.Status)
		assert.Equal(t, domain.MessageStillProcessing, resp.Message)
		assert.NotEmpty(t, resp.CreatedAt)
		assert.NotEmpty(t, resp.UpdatedAt)
	}
}

func TestSubmitReport_InvalidBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"responses":`},
		{"array", `[{"responses":{}}]`},
		{"string", `"hello"`},
		{"null", `null`},
		{"empty", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			w := env.do(http.MethodPost, "/api/v1/reports", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decode[dto.ErrorResponse](t, w).Error, "Invalid JSON")
			assert.Zero(t, env.store.Len())
			assert.Empty(t, env.publisher.messages)
		})
	}
}

func TestSubmitReport_DispatchFailure(t *testing.T) {
	env := newTestEnv(t)
	env.publisher.err = errors.New("broker unavailable")

	w := env.do(http.MethodPost, "/api/v1/reports", submission)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	resp := decode[dto.ErrorResponse](t, w)
	require.NotEmpty(t, resp.JobID)

	poll := env.do(http.MethodGet, "/api/v1/reports?job_id="+resp.JobID, "")
	require.Equal(t, http.StatusOK, poll.Code)

	failed := decode[dto.FailedResponse](t, poll)
	assert.Equal(t, "FAILED", failed.Status)
	assert.Equal(t, domain.MessageDispatchFailed, failed.ErrorMessage)
}

func TestPollReport_MissingJobID(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/v1/reports", "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	resp := decode[dto.ErrorResponse](t, w)
	assert.Equal(t, "Missing job_id parameter", resp.Error)
	assert.Equal(t, domain.PollUsage, resp.Usage)
}

func TestPollReport_NotFound(t *testing.T) {
	env := newTestEnv(t)

	for _, id := range []string{uuid.NewString(), "not-a-uuid"} {
		w := env.do(http.MethodGet, "/api/v1/reports?job_id="+id, "")
		require.Equal(t, http.StatusNotFound, w.Code)

		resp := decode[dto.ErrorResponse](t, w)
		assert.Equal(t, "Job not found", resp.Error)
		assert.Equal(t, id, resp.JobID)
	}
}

func completedFinal(jobID string) jobs.Final {
	folder := "reports/acme_corp/" + jobID + "/"
	return jobs.Final{
		Status: jobs.StatusCompleted,
		Metadata: jobs.Metadata{
			"executive": {
				"meta":   map[string]any{"company_name": "Acme Corp", "industry": "Technology"},
				"source": "generated",
				"status": "uploaded",
			},
			"technical": {
				"meta":   map[string]any{"company_name": "Acme Corp"},
				"source": "fallback",
				"status": "uploaded",
			},
			"compliance": {"status": "not_applicable"},
		},
		Artifacts: jobs.Artifacts{
			{Type: "executive", Bucket: "assessment-reports", Key: folder + "executive_report_20250301_093000.pdf"},
			{Type: "technical", Bucket: "assessment-reports", Key: folder + "technical_report_20250301_093001.pdf"},
		},
	}
}

func TestPollReport_Completed(t *testing.T) {
	env := newTestEnv(t)

	ctx := context.Background()
	jobID := uuid.NewString()
	require.NoError(t, env.store.CreateJob(ctx, jobs.NewPending(jobID, time.Now().UTC())))
	_, err := env.store.ClaimJob(ctx, jobID)
	require.NoError(t, err)
	require.NoError(t, env.store.FinalizeJob(ctx, jobID, completedFinal(jobID)))

	first := env.do(http.MethodGet, "/api/v1/reports?job_id="+jobID, "")
	require.Equal(t, http.StatusOK, first.Code)
	second := env.do(http.MethodGet, "/api/v1/reports/"+jobID, "")
	require.Equal(t, http.StatusOK, second.Code)

	a := decode[dto.JobResultResponse](t, first)
	b := decode[dto.JobResultResponse](t, second)

	assert.Equal(t, "COMPLETED", a.Status)
	assert.Equal(t, 2, a.ReportsCount)
	require.Len(t, a.Reports, 2)
	require.Len(t, b.Reports, 2)
	for i := range a.Reports {
		assert.Equal(t, a.Reports[i].Type, b.Reports[i].Type)
		assert.Equal(t, a.Reports[i].Key, b.Reports[i].Key)
		assert.NotEqual(t, a.Reports[i].PresignedURL, b.Reports[i].PresignedURL)
		assert.EqualValues(t, 3600, a.Reports[i].ExpiresInSeconds)
	}

	require.NotNil(t, a.PrimaryReport)
	assert.Equal(t, "executive", a.PrimaryReport.Type)
	assert.Equal(t, a.Reports[0].PresignedURL, a.PrimaryReport.PresignedURL)

	assert.Equal(t, "assessment-reports", a.StorageFolder.Bucket)
	assert.Equal(t, "reports/acme_corp/"+jobID+"/", a.StorageFolder.Prefix)
	assert.Equal(t, "All reports for this job are in: s3://assessment-reports/reports/acme_corp/"+jobID+"/", a.StorageFolder.Description)

	assert.Equal(t, "not_applicable", a.Metadata["compliance"]["status"])
	assert.Equal(t, "fallback", a.Metadata["technical"]["source"])
}

func TestPollReport_PartialSkipsUnsignable(t *testing.T) {
	env := newTestEnv(t)

	final := completedFinal("placeholder")
	final.Status = jobs.StatusPartial
	jobID := env.seedFinal(t, final)
	env.presigner.failKey = final.Artifacts[0].Key

	w := env.do(http.MethodGet, "/api/v1/reports?job_id="+jobID, "")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[dto.JobResultResponse](t, w)
	assert.Equal(t, "PARTIAL", resp.Status)
	assert.Equal(t, 1, resp.ReportsCount)
	require.Len(t, resp.Reports, 1)
	assert.Equal(t, "technical", resp.Reports[0].Type)
	assert.Nil(t, resp.PrimaryReport)
}

func TestPollReport_FolderFallsBackToPlaceholder(t *testing.T) {
	env := newTestEnv(t)

	jobID := env.seedFinal(t, jobs.Final{
		Status: jobs.StatusPartial,
		Metadata: jobs.Metadata{
			"executive":  {"status": "failed", "error": "render failed"},
			"compliance": {"company_name": "", "status": "uploaded"},
		},
		Artifacts: jobs.Artifacts{{Type: "compliance", Bucket: "other-bucket", Key: "k.pdf"}},
	})

	resp := decode[dto.JobResultResponse](t, env.do(http.MethodGet, "/api/v1/reports?job_id="+jobID, ""))
	assert.Equal(t, "other-bucket", resp.StorageFolder.Bucket)
	assert.Equal(t, "reports/customer/"+jobID+"/", resp.StorageFolder.Prefix)
}

func TestPollReport_Failed(t *testing.T) {
	env := newTestEnv(t)

	jobID := env.seedFinal(t, jobs.Final{
		Status:       jobs.StatusFailed,
		Metadata:     jobs.Metadata{},
		ErrorMessage: "executive report: upload failed",
	})

	w := env.do(http.MethodGet, "/api/v1/reports?job_id="+jobID, "")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[dto.FailedResponse](t, w)
	assert.Equal(t, "FAILED", resp.Status)
	assert.Equal(t, "executive report: upload failed", resp.ErrorMessage)
	assert.NotContains(t, w.Body.String(), "reports")
}

func TestPollReport_DoesNotMutate(t *testing.T) {
	env := newTestEnv(t)
	jobID := env.seedFinal(t, completedFinal("placeholder"))

	before, err := env.store.GetJobByID(context.Background(), jobID)
	require.NoError(t, err)

	env.do(http.MethodGet, "/api/v1/reports?job_id="+jobID, "")

	after, err := env.store.GetJobByID(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSubmitReport_BodyTooLarge(t *testing.T) {
	env := newTestEnv(t)

	padding := strings.Repeat("x", testMaxBody)
	w := env.do(http.MethodPost, "/api/v1/reports", `{"responses":{"business-problems":"`+padding+`"}}`)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	resp := decode[dto.ErrorResponse](t, w)
	assert.Equal(t, "Request body exceeds 4096 bytes", resp.Error)
	assert.Zero(t, env.store.Len())
	assert.Empty(t, env.publisher.messages)

	w = env.do(http.MethodPost, "/api/v1/reports", submission)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")

	w = env.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthChecks(t *testing.T) {
	up := func(context.Context) error { return nil }
	brokerDown := func(context.Context) error {
		return fmt.Errorf("rabbitmq health check failed: %w", rabbitmq.ErrNotConnected)
	}

	tests := []struct {
		name       string
		checks     []handler.HealthCheck
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name:       "no checks",
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{},
		},
		{
			name:       "all dependencies up",
			checks:     []handler.HealthCheck{{Name: "database", Check: up}, {Name: "rabbitmq", Check: up}},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"database": "ok", "rabbitmq": "ok"},
		},
		{
			name:       "database down",
			checks:     []handler.HealthCheck{{Name: "database", Check: func(context.Context) error { return errors.New("database down") }}, {Name: "rabbitmq", Check: up}},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"database": "database down", "rabbitmq": "ok"},
		},
		{
			name:       "publisher disconnected",
			checks:     []handler.HealthCheck{{Name: "database", Check: up}, {Name: "rabbitmq", Check: brokerDown}},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"database": "ok", "rabbitmq": "rabbitmq health check failed: not connected to RabbitMQ"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := SetupRouter(&handler.Dependencies{
				Logger:       logger.NewNop().Logger,
				HealthChecks: tt.checks,
			}, nil)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tt.wantStatus, w.Code)

			var body struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantChecks, body.Checks)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "healthy", body.Status)
			} else {
				assert.Equal(t, "unhealthy", body.Status)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/reports", bytes.NewReader(nil))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
