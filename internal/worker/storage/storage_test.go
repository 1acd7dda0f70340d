package storage

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStorage_Queries(t *testing.T) {
	s := NewStorage(nil, "report_jobs", slog.Default())

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "claim",
			query: s.claimQuery(),
			want:  []string{"UPDATE report_jobs", "status IN ($4, $5)", "RETURNING job_id"},
		},
		{
			name:  "finalize",
			query: s.finalizeQuery(),
			want:  []string{"UPDATE report_jobs", "metadata = $2", "artifacts = $3", "AND status = $7", "GREATEST(updated_at, $5)"},
		},
		{
			name:  "touch",
			query: s.touchQuery(),
			want:  []string{"UPDATE report_jobs", "status = $3"},
		},
		{
			name:  "exists",
			query: s.existsQuery(),
			want:  []string{"FROM report_jobs"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, fragment := range tt.want {
				assert.Contains(t, tt.query, fragment)
			}
		})
	}
}
