package db

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/talent-sourcer/internal/funnel"
	"github.com/jonathan/talent-sourcer/internal/ingestion"
	"github.com/jonathan/talent-sourcer/internal/learning"
	"github.com/jonathan/talent-sourcer/internal/pipeline"
	"github.com/jonathan/talent-sourcer/internal/pipeline/steps"
	"github.com/jonathan/talent-sourcer/internal/teammatch"
)

var (
	_ pipeline.Store     = (*DB)(nil)
	_ learning.Store     = (*DB)(nil)
	_ teammatch.Store    = (*DB)(nil)
	_ funnel.Store       = (*DB)(nil)
	_ funnel.ClaimStore  = (*DB)(nil)
	_ ingestion.JobStore = (*DB)(nil)
	_ steps.StepReader   = (*DB)(nil)
)

func TestMigrationNames(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_init.sql", names[0])
	for _, n := range names {
		assert.True(t, strings.HasSuffix(n, ".sql"), n)
	}
}

func TestInitMigrationCreatesTables(t *testing.T) {
	body, err := migrations.ReadFile("migrations/001_init.sql")
	require.NoError(t, err)
	sql := string(body)

	for _, table := range []string{
		"jobs", "candidates", "job_candidates", "learning_params", "outcomes",
		"teams", "team_matches", "notification_claims", "pipeline_runs", "run_steps",
	} {
		assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS "+table+" (", table)
	}
	assert.Contains(t, sql, "ON learning_params (agent_name) WHERE is_active")
	assert.Contains(t, sql, "CREATE EXTENSION IF NOT EXISTS vector")
}

func TestMarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		value any
		empty string
		want  string
	}{
		{"nil slice", []string(nil), "[]", "[]"},
		{"nil map", map[string]float64(nil), "{}", "{}"},
		{"values", []string{"go", "sql"}, "[]", `["go","sql"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := marshalJSON(tt.value, tt.empty)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestUnmarshalStrings(t *testing.T) {
	assert.Nil(t, unmarshalStrings(nil))
	assert.Nil(t, unmarshalStrings([]byte("not json")))
	assert.Equal(t, []string{"a", "b"}, unmarshalStrings([]byte(`["a","b"]`)))
}

func TestLimitParam(t *testing.T) {
	assert.Nil(t, limitParam(0))
	assert.Nil(t, limitParam(-3))
	assert.Equal(t, 5, limitParam(5))
}

func TestVectorHelpers(t *testing.T) {
	assert.Nil(t, vectorParam(nil))
	assert.Nil(t, vectorSlice(nil))

	v := vectorParam([]float32{0.5, 1})
	require.NotNil(t, v)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}
