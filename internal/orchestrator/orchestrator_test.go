package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/assessment-reports/internal/assessment"
	"github.com/cuongbtq/assessment-reports/internal/config"
	"github.com/cuongbtq/assessment-reports/internal/jobs"
	"github.com/cuongbtq/assessment-reports/internal/objectstore"
	"github.com/cuongbtq/assessment-reports/internal/report"
	"github.com/cuongbtq/assessment-reports/shared/logger"
)

type fakeProducer struct {
	kind    report.Kind
	err     error
	panics  bool
	delay   time.Duration
	details func(a *assessment.Assessment) map[string]any
}

func (f *fakeProducer) Kind() report.Kind { return f.kind }

func (f *fakeProducer) Produce(ctx context.Context, a *assessment.Assessment) (*report.Output, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.panics {
		panic("template exploded")
	}
	if f.err != nil {
		return nil, f.err
	}

	details := map[string]any{"meta": map[string]any{"company_name": a.CompanyName}}
	if f.details != nil {
		details = f.details(a)
	}
	return &report.Output{
		Kind:     f.kind,
		Document: &report.Document{Kind: f.kind, CompanyName: a.CompanyName},
		Details:  details,
		Source:   report.SourceFallback,
	}, nil
}

type fakeRenderer struct {
	failKinds map[report.Kind]bool
}

func (f *fakeRenderer) Render(_ context.Context, doc *report.Document, path string) error {
	if f.failKinds[doc.Kind] {
		return errors.New("font missing")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("%PDF-"+string(doc.Kind)), 0o600)
}

type fakeUploader struct {
	mu       sync.Mutex
	failAll  bool
	failKind map[string]bool
	keys     []string
}

func (f *fakeUploader) Upload(_ context.Context, key, localPath string) (objectstore.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := os.Stat(localPath); err != nil {
		return objectstore.Object{}, err
	}
	base := filepath.Base(key)
	if f.failAll || f.failKind[base[:strings.Index(base, "_")]] {
		return objectstore.Object{}, errors.New("AccessDenied")
	}
	f.keys = append(f.keys, key)
	return objectstore.Object{Bucket: "reports-bucket", Key: key}, nil
}

func producers(overrides ...*fakeProducer) []report.Producer {
	byKind := map[report.Kind]*fakeProducer{}
	for _, o := range overrides {
		byKind[o.kind] = o
	}
	out := make([]report.Producer, 0, len(report.Kinds))
	for _, kind := range report.Kinds {
		if p, ok := byKind[kind]; ok {
			out = append(out, p)
			continue
		}
		out = append(out, &fakeProducer{kind: kind})
	}
	return out
}

func submission() map[string]any {
	return map[string]any{
		"exportDate": "2025-02-01T10:00:00Z",
		"responses": map[string]any{
			"business-owner":    "Acme Corp, Jane Doe",
			"business-problems": "Patient intake automation",
		},
	}
}

func newTestOrchestrator(t *testing.T, ps []report.Producer, r *fakeRenderer, u *fakeUploader, policy string) *Orchestrator {
	t.Helper()
	return New(ps, r, u, Config{WorkDir: t.TempDir(), Prefix: "reports/", CompletionPolicy: policy, Logger: logger.NewNop().Logger})
}

func TestRun_AllUploaded(t *testing.T) {
	uploader := &fakeUploader{}
	o := newTestOrchestrator(t, producers(), &fakeRenderer{}, uploader, config.CompletionPolicyAll)

	outcome, err := o.Run(context.Background(), "job-1", submission())
	require.NoError(t, err)

	assert.Equal(t, jobs.StatusCompleted, outcome.Status)
	assert.Empty(t, outcome.ErrorMessage)
	assert.Nil(t, outcome.Inline)
	require.Len(t, outcome.Artifacts, 3)
	for i, kind := range report.Kinds {
		assert.Equal(t, string(kind), outcome.Artifacts[i].Type)
		assert.True(t, strings.HasPrefix(outcome.Artifacts[i].Key, "reports/acme_corp/job-1/"+string(kind)+"_report_"), outcome.Artifacts[i].Key)
		assert.Equal(t, "uploaded", outcome.Metadata[string(kind)]["status"])
	}
}

func TestRun_Aggregation(t *testing.T) {
	tests := []struct {
		name        string
		producers   []report.Producer
		renderer    *fakeRenderer
		uploader    *fakeUploader
		policy      string
		wantStatus  jobs.Status
		wantKinds   []string
		wantMessage string
	}{
		{
			name:       "one producer failing yields partial",
			producers:  producers(&fakeProducer{kind: report.KindTechnical, err: errors.New("boom")}),
			renderer:   &fakeRenderer{},
			uploader:   &fakeUploader{},
			wantStatus: jobs.StatusPartial,
			wantKinds:  []string{"executive", "compliance"},
		},
		{
			name:       "panic is isolated to its kind",
			producers:  producers(&fakeProducer{kind: report.KindCompliance, panics: true}),
			renderer:   &fakeRenderer{},
			uploader:   &fakeUploader{},
			wantStatus: jobs.StatusPartial,
			wantKinds:  []string{"executive", "technical"},
		},
		{
			name:       "render failure is per kind",
			producers:  producers(),
			renderer:   &fakeRenderer{failKinds: map[report.Kind]bool{report.KindExecutive: true}},
			uploader:   &fakeUploader{},
			wantStatus: jobs.StatusPartial,
			wantKinds:  []string{"technical", "compliance"},
		},
		{
			name:       "not applicable compliance still completes",
			producers:  producers(&fakeProducer{kind: report.KindCompliance, err: report.ErrNotApplicable}),
			renderer:   &fakeRenderer{},
			uploader:   &fakeUploader{},
			wantStatus: jobs.StatusCompleted,
			wantKinds:  []string{"executive", "technical"},
		},
		{
			name:       "legacy policy completes on executive alone",
			producers:  producers(&fakeProducer{kind: report.KindTechnical, err: errors.New("boom")}),
			renderer:   &fakeRenderer{},
			uploader:   &fakeUploader{},
			policy:     config.CompletionPolicyExecutive,
			wantStatus: jobs.StatusCompleted,
			wantKinds:  []string{"executive", "compliance"},
		},
		{
			name:       "legacy policy without executive is partial",
			producers:  producers(),
			renderer:   &fakeRenderer{},
			uploader:   &fakeUploader{failKind: map[string]bool{"executive": true}},
			policy:     config.CompletionPolicyExecutive,
			wantStatus: jobs.StatusPartial,
			wantKinds:  []string{"technical", "compliance"},
		},
		{
			name:        "nothing uploaded fails with the real error",
			producers:   producers(),
			renderer:    &fakeRenderer{},
			uploader:    &fakeUploader{failAll: true},
			wantStatus:  jobs.StatusFailed,
			wantMessage: "executive report: AccessDenied",
		},
		{
			name:        "missing producers fail with the generic marker",
			producers:   nil,
			renderer:    &fakeRenderer{},
			uploader:    &fakeUploader{},
			wantStatus:  jobs.StatusFailed,
			wantMessage: "no reports were uploaded: missing artifact",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOrchestrator(t, tt.producers, tt.renderer, tt.uploader, tt.policy)

			outcome, err := o.Run(context.Background(), "job-1", submission())
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, outcome.Status)
			var kinds []string
			for _, a := range outcome.Artifacts {
				kinds = append(kinds, a.Type)
			}
			assert.Equal(t, tt.wantKinds, kinds)
			assert.Len(t, outcome.Results, len(report.Kinds))
			assert.Len(t, outcome.Metadata, len(report.Kinds))
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, outcome.ErrorMessage)
			}
			if tt.wantStatus != jobs.StatusFailed {
				assert.Empty(t, outcome.ErrorMessage)
			}
		})
	}
}

func TestRun_FailedCarriesInlineExecutive(t *testing.T) {
	o := newTestOrchestrator(t, producers(), &fakeRenderer{}, &fakeUploader{failAll: true}, "")

	outcome, err := o.Run(context.Background(), "job-1", submission())
	require.NoError(t, err)

	assert.Equal(t, jobs.StatusFailed, outcome.Status)
	assert.NotEmpty(t, outcome.ErrorMessage)
	require.NotNil(t, outcome.Inline)
	assert.Equal(t, "executive", outcome.Inline.Type)
	assert.Equal(t, []byte("%PDF-executive"), outcome.Inline.Data)

	encoded, err := json.Marshal(outcome)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"content_base64":"JVBERi1leGVjdXRpdmU="`)

	final := outcome.Final()
	assert.Equal(t, jobs.StatusFailed, final.Status)
	assert.Empty(t, final.Artifacts)
}

func TestRun_NoInlineWithoutLocalFile(t *testing.T) {
	renderer := &fakeRenderer{failKinds: map[report.Kind]bool{
		report.KindExecutive: true, report.KindTechnical: true, report.KindCompliance: true,
	}}
	o := newTestOrchestrator(t, producers(), renderer, &fakeUploader{}, "")

	outcome, err := o.Run(context.Background(), "job-1", submission())
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusFailed, outcome.Status)
	assert.Equal(t, "executive report: font missing", outcome.ErrorMessage)
	assert.Nil(t, outcome.Inline)
}

func TestRun_OrderIndependent(t *testing.T) {
	delays := [][3]time.Duration{
		{0, 20 * time.Millisecond, 40 * time.Millisecond},
		{40 * time.Millisecond, 20 * time.Millisecond, 0},
	}

	var statuses []map[string]any
	for _, d := range delays {
		ps := producers(
			&fakeProducer{kind: report.KindExecutive, delay: d[0]},
			&fakeProducer{kind: report.KindTechnical, delay: d[1], err: errors.New("boom")},
			&fakeProducer{kind: report.KindCompliance, delay: d[2]},
		)
		o := newTestOrchestrator(t, ps, &fakeRenderer{}, &fakeUploader{}, "")
		outcome, err := o.Run(context.Background(), "job-1", submission())
		require.NoError(t, err)

		assert.Equal(t, jobs.StatusPartial, outcome.Status)
		require.Len(t, outcome.Artifacts, 2)
		assert.Equal(t, "executive", outcome.Artifacts[0].Type)
		assert.Equal(t, "compliance", outcome.Artifacts[1].Type)

		snapshot := map[string]any{}
		for kind, md := range outcome.Metadata {
			snapshot[kind] = md["status"]
		}
		statuses = append(statuses, snapshot)
	}
	assert.Equal(t, statuses[0], statuses[1])
}

func TestRun_RunsConcurrently(t *testing.T) {
	ps := producers(
		&fakeProducer{kind: report.KindExecutive, delay: 150 * time.Millisecond},
		&fakeProducer{kind: report.KindTechnical, delay: 150 * time.Millisecond},
		&fakeProducer{kind: report.KindCompliance, delay: 150 * time.Millisecond},
	)
	o := newTestOrchestrator(t, ps, &fakeRenderer{}, &fakeUploader{}, "")

	start := time.Now()
	_, err := o.Run(context.Background(), "job-1", submission())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestRun_CompanyFromDetails(t *testing.T) {
	uploader := &fakeUploader{}
	ps := producers(&fakeProducer{
		kind:    report.KindCompliance,
		details: func(a *assessment.Assessment) map[string]any { return map[string]any{"company_name": "Direct Co"} },
	})
	o := newTestOrchestrator(t, ps, &fakeRenderer{}, uploader, "")

	outcome, err := o.Run(context.Background(), "job-1", submission())
	require.NoError(t, err)
	require.Len(t, outcome.Artifacts, 3)
	assert.True(t, strings.HasPrefix(outcome.Artifacts[2].Key, "reports/direct_co/job-1/"))
	assert.Equal(t, "Direct Co", outcome.Metadata["compliance"]["company_name"])
}

func TestRun_InvalidAssessment(t *testing.T) {
	o := newTestOrchestrator(t, producers(), &fakeRenderer{}, &fakeUploader{}, "")

	_, err := o.Run(context.Background(), "job-1", map[string]any{"responses": []any{"x"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, assessment.ErrInvalidAssessment)

	failed := Failed("job-1", err)
	assert.Equal(t, jobs.StatusFailed, failed.Status)
	assert.Contains(t, failed.ErrorMessage, "failed to normalize assessment")
}

func TestRun_CleansWorkDir(t *testing.T) {
	workDir := t.TempDir()
	o := New(producers(), &fakeRenderer{}, &fakeUploader{}, Config{WorkDir: workDir, Logger: logger.NewNop().Logger})

	_, err := o.Run(context.Background(), "job-1", submission())
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(workDir, "job-1"))
	assert.True(t, os.IsNotExist(err))

	keep := New(producers(), &fakeRenderer{}, &fakeUploader{}, Config{WorkDir: workDir, KeepLocal: true, Logger: logger.NewNop().Logger})
	outcome, err := keep.Run(context.Background(), "job-2", submission())
	require.NoError(t, err)
	_, err = os.Stat(outcome.Results[report.KindExecutive].LocalPath)
	assert.NoError(t, err)
}
