package server

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/talent-sourcer/internal/learning"
	"github.com/jonathan/talent-sourcer/internal/routing"
	"github.com/jonathan/talent-sourcer/internal/types"
)

func TestRecordOutcome(t *testing.T) {
	srv, env := newTestEnv(t)
	job := env.createJob(t)
	cand := env.createCandidate(t, "ada")
	env.link(t, job, cand, 85, types.StageInterview)

	rec := do(t, srv, http.MethodPost, "/learning/outcomes", map[string]any{
		"candidate_id":       cand.ID,
		"job_id":             job.ID,
		"outcome":            "hired",
		"performance_rating": 4.5,
		"reported_by":        "rita",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[RecordOutcomeResponse](t, rec)
	require.NotNil(t, resp.Outcome)
	assert.Equal(t, 85.0, resp.Outcome.PredictedScore)
	assert.Equal(t, string(routing.Interview), resp.Outcome.PredictedStage)
	assert.Equal(t, types.Correct, resp.Outcome.AIWasCorrect)
	assert.Equal(t, "rita", resp.Outcome.ReportedBy)
	require.NotNil(t, resp.Params)
	assert.Equal(t, 1, resp.Params.Version)
	assert.Equal(t, 1, resp.Params.TotalPredictions)
	assert.Equal(t, 1, resp.Params.CorrectPredictions)
	assert.Empty(t, resp.LearningError)
}

func TestRecordOutcome_Invalid(t *testing.T) {
	srv, env := newTestEnv(t)
	job := env.createJob(t)
	cand := env.createCandidate(t, "ada")
	env.link(t, job, cand, 85, types.StageInterview)

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"unknown label", map[string]any{"candidate_id": cand.ID, "job_id": job.ID, "outcome": "ghosted"}, http.StatusBadRequest},
		{"rating out of range", map[string]any{"candidate_id": cand.ID, "job_id": job.ID, "outcome": "hired", "performance_rating": 7}, http.StatusBadRequest},
		{"missing job", map[string]any{"candidate_id": cand.ID, "outcome": "hired"}, http.StatusBadRequest},
		{"not sourced for job", map[string]any{"candidate_id": cand.ID, "job_id": uuid.New(), "outcome": "hired"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/learning/outcomes", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestListOutcomesAndStats(t *testing.T) {
	srv, env := newTestEnv(t)
	job := env.createJob(t)
	hired := env.createCandidate(t, "ada")
	rejected := env.createCandidate(t, "grace")
	withdrew := env.createCandidate(t, "linus")
	env.link(t, job, hired, 85, types.StageInterview)
	env.link(t, job, rejected, 92, types.StageInterview)
	env.link(t, job, withdrew, 70, types.StageTakehomeAssigned)

	for _, o := range []struct {
		cand  *types.Candidate
		label string
	}{{hired, "hired"}, {rejected, "rejected_interview"}, {withdrew, "withdrew"}} {
		rec := do(t, srv, http.MethodPost, "/learning/outcomes", map[string]any{
			"candidate_id": o.cand.ID, "job_id": job.ID, "outcome": o.label,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := do(t, srv, http.MethodGet, "/learning/outcomes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[struct {
		Outcomes []types.Outcome `json:"outcomes"`
		Count    int             `json:"count"`
	}](t, rec)
	assert.Equal(t, 3, all.Count)

	rec = do(t, srv, http.MethodGet, "/learning/outcomes?outcome=hired&candidate_id="+hired.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, decode[map[string]any](t, rec)["count"])

	rec = do(t, srv, http.MethodGet, "/learning/outcomes?outcome=ghosted", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, srv, http.MethodGet, "/learning/outcomes?since=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodGet, "/learning/outcomes/stats?job_id="+job.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[learning.OutcomeStats](t, rec)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.ByLabel[types.OutcomeHired])
	assert.Equal(t, 1, stats.ByLabel[types.OutcomeWithdrew])
	// Withdrawals are not judged; the 92 rejected at interview was a miss.
	assert.Equal(t, 2, stats.Judged)
	assert.InDelta(t, 0.5, stats.Accuracy, 1e-9)
}

func TestParams(t *testing.T) {
	srv, _ := newTestEnv(t)
	path := "/learning/params/" + types.DefaultAgentName

	rec := do(t, srv, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	defaults := decode[ParamsResponse](t, rec)
	assert.Equal(t, 0, defaults.Params.Version)
	assert.Equal(t, routing.DefaultThresholds(), defaults.Thresholds)
	require.Len(t, defaults.Bands, 4)
	assert.Equal(t, routing.Fasttrack, defaults.Bands[3].Stage)

	rec = do(t, srv, http.MethodPut, path, map[string]float64{
		"threshold_reject": 35, "threshold_takehome": 55, "threshold_interview": 70, "threshold_fasttrack": 88,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[ParamsResponse](t, rec)
	assert.Equal(t, 1, updated.Params.Version)
	assert.Equal(t, routing.Thresholds{Reject: 35, Takehome: 55, Interview: 70, Fasttrack: 88}, updated.Thresholds)

	rec = do(t, srv, http.MethodPut, path, map[string]float64{
		"threshold_reject": 50, "threshold_takehome": 45, "threshold_interview": 70, "threshold_fasttrack": 88,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodGet, "/learning/params", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, decode[map[string]any](t, rec)["count"])

	rec = do(t, srv, http.MethodGet, path+"/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[struct {
		AgentName string                 `json:"agent_name"`
		History   []types.LearningParams `json:"history"`
		Count     int                    `json:"count"`
	}](t, rec)
	assert.Equal(t, types.DefaultAgentName, history.AgentName)
	require.Equal(t, 1, history.Count)
	assert.True(t, history.History[0].IsActive)
}

func TestReplay(t *testing.T) {
	srv, _ := newTestEnv(t)
	path := "/learning/params/" + types.DefaultAgentName + "/replay"

	rec := do(t, srv, http.MethodPost, path, map[string]any{"scores": []float64{10, 65, 80, 95}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	active := decode[struct {
		Stages []routing.Stage       `json:"stages"`
		Counts map[routing.Stage]int `json:"counts"`
	}](t, rec)
	assert.Equal(t, []routing.Stage{routing.Reject, routing.Takehome, routing.Interview, routing.Fasttrack}, active.Stages)

	rec = do(t, srv, http.MethodPost, path, map[string]any{
		"scores": []float64{10, 65, 80, 95},
		"thresholds": map[string]float64{
			"threshold_reject": 70, "threshold_takehome": 75, "threshold_interview": 85, "threshold_fasttrack": 99,
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	hypothetical := decode[struct {
		Stages []routing.Stage       `json:"stages"`
		Counts map[routing.Stage]int `json:"counts"`
	}](t, rec)
	assert.Equal(t, 2, hypothetical.Counts[routing.Reject])
	assert.Equal(t, 1, hypothetical.Counts[routing.Takehome])
	assert.Equal(t, 1, hypothetical.Counts[routing.Interview])

	rec = do(t, srv, http.MethodPost, path, map[string]any{"scores": []float64{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, path, map[string]any{
		"scores":     []float64{50},
		"thresholds": map[string]float64{"threshold_reject": 90, "threshold_takehome": 80, "threshold_interview": 85, "threshold_fasttrack": 99},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetrics(t *testing.T) {
	srv, _ := newTestEnv(t)

	rec := do(t, srv, http.MethodGet, "/learning/metrics/"+types.DefaultAgentName+"?days=7", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	m := decode[learning.Metrics](t, rec)
	assert.Equal(t, types.DefaultAgentName, m.AgentName)
	assert.Equal(t, 7, m.Days)
	assert.Equal(t, routing.DefaultThresholds(), m.CurrentThresholds)

	rec = do(t, srv, http.MethodGet, "/learning/metrics/"+types.DefaultAgentName+"?days=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSimulate(t *testing.T) {
	srv, _ := newTestEnv(t)
	req := map[string]any{"iterations": 50, "seed": 7, "learning_rate": 0.1}

	type result struct {
		Iterations      int                       `json:"iterations"`
		Seed            int64                     `json:"seed"`
		FinalAccuracy   float64                   `json:"final_accuracy"`
		FinalThresholds routing.Thresholds        `json:"final_thresholds"`
		Points          []learning.SimulationPoint `json:"points"`
	}

	rec := do(t, srv, http.MethodPost, "/learning/simulate", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode[result](t, rec)
	assert.Equal(t, 50, first.Iterations)
	assert.Equal(t, int64(7), first.Seed)
	require.Len(t, first.Points, 50)
	assert.Equal(t, first.Points[49].Accuracy, first.FinalAccuracy)
	assert.Equal(t, first.Points[49].Thresholds, first.FinalThresholds)

	// Same seed, same trajectory.
	rec = do(t, srv, http.MethodPost, "/learning/simulate", req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, first, decode[result](t, rec))

	rec = do(t, srv, http.MethodPost, "/learning/simulate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 100.0, decode[map[string]any](t, rec)["iterations"])

	rec = do(t, srv, http.MethodPost, "/learning/simulate", map[string]any{"iterations": maxSimulationIterations + 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, srv, http.MethodPost, "/learning/simulate", map[string]any{"learning_rate": 1.5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
