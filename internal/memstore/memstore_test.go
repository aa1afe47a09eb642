package memstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/talent-sourcer/internal/types"
)

func TestActivateParams_SingleActiveRow(t *testing.T) {
	ctx := context.Background()
	s := New()

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			_ = s.ActivateParams(ctx, &types.LearningParams{ID: uuid.New(), AgentName: "a", Version: v})
		}(i)
	}
	wg.Wait()
	require.NoError(t, s.ActivateParams(ctx, &types.LearningParams{ID: uuid.New(), AgentName: "b", Version: 1}))

	history, err := s.ListParamsHistory(ctx, "a", 0)
	require.NoError(t, err)
	assert.Len(t, history, 20)

	active := 0
	for _, p := range history {
		if p.IsActive {
			active++
		}
	}
	assert.Equal(t, 1, active)

	all, err := s.ListActiveParams(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestActivateParams_DuplicateVersion(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.ActivateParams(ctx, &types.LearningParams{AgentName: "a", Version: 1}))
	assert.Error(t, s.ActivateParams(ctx, &types.LearningParams{AgentName: "a", Version: 1}))

	p, err := s.GetActiveParams(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 1, p.Version)

	missing, err := s.GetActiveParams(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpsertCandidate_ByHandle(t *testing.T) {
	ctx := context.Background()
	s := New()

	first := &types.Candidate{Handle: "MLDev", Name: "Ada"}
	require.NoError(t, s.UpsertCandidate(ctx, first))
	require.NoError(t, s.UpdateCandidateEnrichment(ctx, first.ID, &types.Enrichment{Headline: "ML"}))

	second := &types.Candidate{Handle: "mldev", Name: "Ada L."}
	require.NoError(t, s.UpsertCandidate(ctx, second))
	assert.Equal(t, first.ID, second.ID)

	got, err := s.GetCandidateByHandle(ctx, "mldev")
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", got.Name)
	require.NotNil(t, got.Enrichment)
	assert.Equal(t, "ML", got.Enrichment.Headline)
}

func TestJobCandidates(t *testing.T) {
	ctx := context.Background()
	s := New()
	jobID := uuid.New()

	for i, score := range []float64{50, 90, 70} {
		sc := score
		require.NoError(t, s.UpsertJobCandidate(ctx, &types.JobCandidate{
			JobID:              jobID,
			CandidateID:        uuid.New(),
			CompatibilityScore: &sc,
			Stage:              []types.PipelineStage{types.StageTakehomeAssigned, types.StageInterview, types.StageTakehomeAssigned}[i],
		}))
	}

	all, err := s.ListJobCandidates(ctx, jobID, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 90.0, all[0].Score())

	stage := types.StageTakehomeAssigned
	filtered, err := s.ListJobCandidates(ctx, jobID, &stage)
	require.NoError(t, err)
	assert.Len(t, filtered, 2)

	err = s.UpdateJobCandidateStage(ctx, jobID, uuid.New(), types.StageRejected)
	assert.True(t, types.IsNotFound(err))
}

func TestListCandidateJobs(t *testing.T) {
	ctx := context.Background()
	s := New()
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { clock = clock.Add(time.Minute); return clock }

	cand := &types.Candidate{Handle: "ada"}
	require.NoError(t, s.UpsertCandidate(ctx, cand))
	other := &types.Candidate{Handle: "grace"}
	require.NoError(t, s.UpsertCandidate(ctx, other))

	older, newer := uuid.New(), uuid.New()
	require.NoError(t, s.UpsertJobCandidate(ctx, &types.JobCandidate{JobID: older, CandidateID: cand.ID, Stage: types.StageSourced}))
	require.NoError(t, s.UpsertJobCandidate(ctx, &types.JobCandidate{JobID: newer, CandidateID: cand.ID, Stage: types.StageSourced}))
	require.NoError(t, s.UpsertJobCandidate(ctx, &types.JobCandidate{JobID: older, CandidateID: other.ID, Stage: types.StageSourced}))
	require.NoError(t, s.UpdateJobCandidateStage(ctx, older, cand.ID, types.StageInterview))

	jobs, err := s.ListCandidateJobs(ctx, cand.ID)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, older, jobs[0].JobID)
	assert.Equal(t, types.StageInterview, jobs[0].Stage)

	all, err := s.ListCandidates(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "grace", all[0].Handle)

	paged, err := s.ListCandidates(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "ada", paged[0].Handle)
}

func TestUpdateTeam(t *testing.T) {
	ctx := context.Background()
	s := New()
	team := &types.Team{Name: "Inference", ManagerName: "Lin", IsActive: true}
	require.NoError(t, s.CreateTeam(ctx, team))
	require.NoError(t, s.SetTeamEmbedding(ctx, team.ID, []float32{1, 0}))

	renamed := *team
	renamed.IsActive = false
	require.NoError(t, s.UpdateTeam(ctx, &renamed, false))
	vec, _ := s.GetTeamEmbedding(ctx, team.ID)
	assert.Equal(t, []float32{1, 0}, vec)
	assert.Equal(t, team.CreatedAt, renamed.CreatedAt)

	active, err := s.ListTeams(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	renamed.TechStack = []string{"CUDA"}
	require.NoError(t, s.UpdateTeam(ctx, &renamed, true))
	vec, _ = s.GetTeamEmbedding(ctx, team.ID)
	assert.Nil(t, vec)

	err = s.UpdateTeam(ctx, &types.Team{ID: uuid.New(), Name: "x"}, false)
	assert.True(t, types.IsNotFound(err))
}

func TestNotificationClaims(t *testing.T) {
	ctx := context.Background()
	s := New()

	ok, err := s.ClaimNotification(ctx, "team_match", "c:t")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ClaimNotification(ctx, "team_match", "c:t")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.ReleaseNotification(ctx, "team_match", "c:t"))
	ok, err = s.ClaimNotification(ctx, "team_match", "c:t")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUpsertTeamMatch_PreservesReview(t *testing.T) {
	ctx := context.Background()
	s := New()
	m := &types.TeamMatch{CandidateID: uuid.New(), JobID: uuid.New(), TeamID: uuid.New(), FinalScore: 0.7}
	require.NoError(t, s.UpsertTeamMatch(ctx, m))
	assert.Equal(t, types.MatchPending, m.Status)

	require.NoError(t, s.MarkMatchNotified(ctx, m.ID, "lead@company.com", time.Now()))
	require.NoError(t, s.ReviewTeamMatch(ctx, m.ID, types.MatchOffered, "sam", "great", time.Now()))

	again := &types.TeamMatch{CandidateID: m.CandidateID, JobID: m.JobID, TeamID: m.TeamID, FinalScore: 0.8}
	require.NoError(t, s.UpsertTeamMatch(ctx, again))
	assert.Equal(t, m.ID, again.ID)

	got, err := s.GetTeamMatch(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.8, got.FinalScore)
	assert.True(t, got.ManagerNotified)
	assert.Equal(t, types.MatchOffered, got.Status)
}

func TestRunSteps(t *testing.T) {
	ctx := context.Background()
	s := New()
	run := &types.PipelineRun{JobID: uuid.New()}
	require.NoError(t, s.CreatePipelineRun(ctx, run))

	for _, name := range []string{"embed", "score"} {
		require.NoError(t, s.CreateRunStep(ctx, &types.RunStep{RunID: run.ID, Step: name}))
	}
	assert.Error(t, s.CreateRunStep(ctx, &types.RunStep{RunID: run.ID, Step: "embed"}))

	require.NoError(t, s.UpdateRunStepStatus(ctx, run.ID, "embed", types.StepStatusInProgress, nil, nil))
	require.NoError(t, s.UpdateRunStepStatus(ctx, run.ID, "embed", types.StepStatusCompleted, nil, map[string]int{"dims": 768}))
	assert.Error(t, s.UpdateRunStepStatus(ctx, run.ID, "missing", types.StepStatusCompleted, nil, nil))

	steps, err := s.ListRunSteps(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, types.StepStatusCompleted, steps[0].Status)
	assert.NotNil(t, steps[0].DurationMs)
	assert.Equal(t, 768, steps[0].Counts["dims"])
	assert.Equal(t, types.StepStatusPending, steps[1].Status)

	require.NoError(t, s.CompletePipelineRun(ctx, run.ID, types.RunStatusCompleted, "", map[string]int{"scored": 1}))
	got, err := s.GetPipelineRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)
}

func TestNearestCandidates(t *testing.T) {
	ctx := context.Background()
	s := New()
	vecs := [][]float32{{1, 0}, {0, 1}, {0.9, 0.1}}
	for i, v := range vecs {
		c := &types.Candidate{Handle: fmt.Sprintf("h%d", i)}
		require.NoError(t, s.UpsertCandidate(ctx, c))
		require.NoError(t, s.SetCandidateEmbedding(ctx, c.ID, v))
	}

	nearest, err := s.NearestCandidates(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, nearest, 2)
	assert.Equal(t, "h0", nearest[0].Candidate.Handle)
	assert.Equal(t, "h2", nearest[1].Candidate.Handle)
}
