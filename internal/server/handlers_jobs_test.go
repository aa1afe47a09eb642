package server

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/talent-sourcer/internal/types"
)

func TestCreateJob(t *testing.T) {
	srv, _ := newTestEnv(t)

	rec := do(t, srv, http.MethodPost, "/jobs", map[string]any{
		"title":        "  Senior ML Engineer ",
		"description":  "Train and serve large models.",
		"requirements": []string{" PyTorch ", "CUDA"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	job := decode[types.Job](t, rec)
	assert.NotEqual(t, uuid.Nil, job.ID)
	assert.Equal(t, "Senior ML Engineer", job.Title)
	assert.Equal(t, []string{"PyTorch", "CUDA"}, job.Requirements)

	rec = do(t, srv, http.MethodGet, "/jobs/"+job.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, job.ID, decode[types.Job](t, rec).ID)
}

func TestCreateJob_Invalid(t *testing.T) {
	srv, _ := newTestEnv(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"empty", map[string]any{}},
		{"bad url", map[string]any{"url": "not a url"}},
		{"url without fetcher", map[string]any{"url": "https://jobs.example.com/ml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/jobs", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestListJobs(t *testing.T) {
	srv, env := newTestEnv(t)
	for i := 0; i < 3; i++ {
		env.createJob(t)
	}

	rec := do(t, srv, http.MethodGet, "/jobs?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Jobs   []types.Job `json:"jobs"`
		Count  int         `json:"count"`
		Limit  int         `json:"limit"`
		Offset int         `json:"offset"`
	}](t, rec)
	assert.Len(t, body.Jobs, 2)
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, 2, body.Limit)

	rec = do(t, srv, http.MethodGet, "/jobs?offset=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, decode[map[string]any](t, rec)["count"])

	rec = do(t, srv, http.MethodGet, "/jobs?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJob_NotFound(t *testing.T) {
	srv, _ := newTestEnv(t)

	rec := do(t, srv, http.MethodGet, "/jobs/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListJobCandidates(t *testing.T) {
	srv, env := newTestEnv(t)
	job := env.createJob(t)
	env.link(t, job, env.createCandidate(t, "ada"), 92, types.StageInterview)
	env.link(t, job, env.createCandidate(t, "grace"), 64, types.StageTakehomeAssigned)
	env.link(t, job, env.createCandidate(t, "linus"), 30, types.StageRejected)

	rec := do(t, srv, http.MethodGet, fmt.Sprintf("/jobs/%s/candidates", job.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[JobCandidatesResponse](t, rec)
	require.Equal(t, 3, all.Count)
	assert.Equal(t, 92.0, all.Candidates[0].Score())
	assert.Equal(t, 30.0, all.Candidates[2].Score())
	assert.Equal(t, map[string]int{"interview": 1, "takehome_assigned": 1, "rejected": 1}, all.ByStage)

	rec = do(t, srv, http.MethodGet, fmt.Sprintf("/jobs/%s/candidates?stage=interview", job.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	filtered := decode[JobCandidatesResponse](t, rec)
	assert.Equal(t, "interview", filtered.Stage)
	require.Len(t, filtered.Candidates, 1)
	assert.Equal(t, types.StageInterview, filtered.Candidates[0].Stage)

	rec = do(t, srv, http.MethodGet, fmt.Sprintf("/jobs/%s/candidates?stage=hired", job.ID), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodGet, fmt.Sprintf("/jobs/%s/candidates", uuid.New()), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetCandidate(t *testing.T) {
	srv, env := newTestEnv(t)
	cand := env.createCandidate(t, "ada")

	rec := do(t, srv, http.MethodGet, "/candidates/"+cand.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[types.Candidate](t, rec)
	assert.Equal(t, "ada", got.Handle)
	require.NotNil(t, got.Enrichment)
	assert.Equal(t, []string{"PyTorch", "CUDA"}, got.Enrichment.Skills)

	rec = do(t, srv, http.MethodGet, "/candidates/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListCandidates(t *testing.T) {
	srv, env := newTestEnv(t)
	env.createCandidate(t, "ada")
	env.createCandidate(t, "grace")

	rec := do(t, srv, http.MethodGet, "/candidates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[struct {
		Candidates []types.Candidate `json:"candidates"`
		Count      int               `json:"count"`
	}](t, rec)
	assert.Equal(t, 2, all.Count)
	assert.Len(t, all.Candidates, 2)

	rec = do(t, srv, http.MethodGet, "/candidates?limit=1&offset=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, decode[map[string]any](t, rec)["count"])

	rec = do(t, srv, http.MethodGet, "/candidates?limit=-3", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListCandidateJobs(t *testing.T) {
	srv, env := newTestEnv(t)
	cand := env.createCandidate(t, "ada")
	ml, infra := env.createJob(t), env.createJob(t)
	env.link(t, ml, cand, 88, types.StageInterview)
	env.link(t, infra, cand, 40, types.StageRejected)
	env.link(t, ml, env.createCandidate(t, "grace"), 70, types.StageSourced)

	rec := do(t, srv, http.MethodGet, "/candidates/"+cand.ID.String()+"/jobs", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[struct {
		Jobs  []types.JobCandidate `json:"jobs"`
		Count int                  `json:"count"`
	}](t, rec)
	require.Equal(t, 2, got.Count)
	stages := map[uuid.UUID]types.PipelineStage{}
	for _, jc := range got.Jobs {
		assert.Equal(t, cand.ID, jc.CandidateID)
		stages[jc.JobID] = jc.Stage
	}
	assert.Equal(t, types.StageInterview, stages[ml.ID])
	assert.Equal(t, types.StageRejected, stages[infra.ID])

	rec = do(t, srv, http.MethodGet, "/candidates/"+uuid.NewString()+"/jobs", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateStage(t *testing.T) {
	srv, env := newTestEnv(t)
	job := env.createJob(t)
	cand := env.createCandidate(t, "ada")
	env.link(t, job, cand, 80, types.StageSourced)
	path := fmt.Sprintf("/jobs/%s/candidates/%s/stage", job.ID, cand.ID)

	rec := do(t, srv, http.MethodPut, path, map[string]string{"stage": "phone_screened"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, types.StagePhoneScreened, decode[types.JobCandidate](t, rec).Stage)

	// Backwards is refused.
	rec = do(t, srv, http.MethodPut, path, map[string]string{"stage": "reached_out"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, srv, http.MethodPut, path, map[string]string{"stage": "rejected"})
	require.Equal(t, http.StatusOK, rec.Code)

	// Rejected is terminal.
	rec = do(t, srv, http.MethodPut, path, map[string]string{"stage": "interview"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, srv, http.MethodPut, path, map[string]string{"stage": "hired"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPut, fmt.Sprintf("/jobs/%s/candidates/%s/stage", job.ID, uuid.New()),
		map[string]string{"stage": "interview"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
