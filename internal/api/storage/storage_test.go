package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStorage_QueriesUseTable(t *testing.T) {
	s := NewStorage(nil, "assessment_jobs")

	for name, query := range map[string]string{
		"insert": s.insertQuery(),
		"select": s.selectQuery(),
		"fail":   s.failQuery(),
	} {
		t.Run(name, func(t *testing.T) {
			assert.Contains(t, query, "assessment_jobs")
			assert.NotContains(t, query, "%s")
		})
	}
}

func TestStorage_FailQueryIsGuarded(t *testing.T) {
	query := NewStorage(nil, "report_jobs").failQuery()

	assert.Contains(t, query, "status IN ($5, $6)")
	assert.Contains(t, query, "GREATEST(updated_at, $3)")
	assert.Equal(t, 1, strings.Count(query, "UPDATE"))
}
