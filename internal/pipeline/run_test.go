package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/talent-sourcer/internal/adapter"
	"github.com/jonathan/talent-sourcer/internal/classification"
	"github.com/jonathan/talent-sourcer/internal/discovery"
	"github.com/jonathan/talent-sourcer/internal/enrichment"
	"github.com/jonathan/talent-sourcer/internal/funnel"
	"github.com/jonathan/talent-sourcer/internal/learning"
	"github.com/jonathan/talent-sourcer/internal/llm/llmtest"
	"github.com/jonathan/talent-sourcer/internal/memstore"
	"github.com/jonathan/talent-sourcer/internal/notify"
	"github.com/jonathan/talent-sourcer/internal/pipeline/steps"
	"github.com/jonathan/talent-sourcer/internal/routing"
	"github.com/jonathan/talent-sourcer/internal/scoring"
	"github.com/jonathan/talent-sourcer/internal/types"
)

type profileStub struct {
	result adapter.Result[[]types.DiscoveredProfile]
	calls  int
}

func (p *profileStub) Find(context.Context, types.Topics) adapter.Result[[]types.DiscoveredProfile] {
	p.calls++
	return p.result
}

type panickingProfiles struct{}

func (panickingProfiles) Find(context.Context, types.Topics) adapter.Result[[]types.DiscoveredProfile] {
	panic("search client nil map")
}

type classifierStub struct {
	byHandle map[string]types.Classification
}

func (c classifierStub) Classify(_ context.Context, p *types.DiscoveredProfile, _ string) adapter.Result[types.Classification] {
	cls, ok := c.byHandle[p.Handle]
	if !ok {
		return adapter.Fail[types.Classification]("no classification", errors.New("unknown"))
	}
	return adapter.Ok(cls)
}

type scorerStub struct {
	scores map[string]float64
}

func (s scorerStub) Score(_ context.Context, in scoring.Input) adapter.Result[types.Compatibility] {
	return adapter.Ok(types.Compatibility{Score: s.scores[in.Profile.Handle], Reasoning: "model says so"})
}

var mlProfile = types.DiscoveredProfile{
	Handle: "pat_ml",
	Name:   "Pat Doe",
	Bio:    "ML Engineer, PyTorch",
	Signals: []types.Signal{
		{Kind: "post", Text: "Training a transformer with PyTorch today", Query: "machine learning"},
	},
}

type harness struct {
	store    *memstore.Store
	job      *types.Job
	engine   *learning.Engine
	profiles *profileStub
	cfg      Config
}

// newHarness wires the orchestrator the way an unconfigured deployment would: stub topics, stub
// classification and fallback scoring.
func newHarness(t *testing.T, profiles ...types.DiscoveredProfile) *harness {
	t.Helper()
	st := memstore.New()
	job := &types.Job{Title: "Senior ML Engineer", Description: "Train and serve large models"}
	require.NoError(t, st.CreateJob(context.Background(), job))

	engine := learning.NewEngine(st, nil)
	ps := &profileStub{result: adapter.Ok(profiles)}
	return &harness{
		store:    st,
		job:      job,
		engine:   engine,
		profiles: ps,
		cfg: Config{
			Store:      st,
			Topics:     discovery.NewTopicDiscoverer(nil, 0, nil),
			Profiles:   ps,
			Classifier: classification.NewRoleClassifier(nil, 0, nil),
			Enricher:   enrichment.NewEnricher(enrichment.NewDirectory(nil), nil, nil),
			Scorer:     scoring.NewCompatibilityScorer(nil, 0, nil),
			Router:     engine,
		},
	}
}

func TestRun_FallbackScoringRoutesToInterview(t *testing.T) {
	h := newHarness(t, mlProfile)
	ctx := context.Background()

	var events []ProgressEvent
	summary, err := New(h.cfg).Run(ctx, h.job.ID, RunOptions{OnProgress: func(e ProgressEvent) { events = append(events, e) }})
	require.NoError(t, err)

	assert.Equal(t, types.RunStatusCompleted, summary.Status)
	assert.True(t, summary.StubTopics)
	assert.Equal(t, 1, summary.Discovered)
	assert.Equal(t, 1, summary.Verified)
	assert.Equal(t, 1, summary.Scored)
	require.Len(t, summary.Candidates, 1)

	c := summary.Candidates[0]
	assert.Equal(t, 85.0, c.Score)
	assert.Equal(t, ScoreSourceFallback, c.ScoreSource)
	assert.Equal(t, routing.Interview, c.Route)
	assert.Equal(t, types.StageInterview, c.Stage)
	assert.Equal(t, 1, summary.Buckets[routing.Interview])
	assert.Equal(t, 0, summary.Buckets[routing.Fasttrack])

	jc, err := h.store.GetJobCandidate(ctx, h.job.ID, c.CandidateID)
	require.NoError(t, err)
	require.NotNil(t, jc)
	assert.Equal(t, 85.0, jc.Score())
	assert.Equal(t, scoring.FallbackReasoning, jc.Reasoning)
	assert.Equal(t, ScoreSourceFallback, jc.ScoreSource)

	cand, err := h.store.GetCandidate(ctx, c.CandidateID)
	require.NoError(t, err)
	require.NotNil(t, cand.Enrichment)
	assert.Equal(t, types.EnrichmentSynthetic, cand.Enrichment.Source)

	runs, err := h.store.ListPipelineRuns(ctx, &h.job.ID, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, types.RunStatusCompleted, runs[0].Status)
	assert.Equal(t, 1, runs[0].Summary["interview"])

	recorded, err := h.store.ListRunSteps(ctx, summary.RunID)
	require.NoError(t, err)
	require.Len(t, recorded, steps.Count())
	assert.Equal(t, types.StepStatusSkipped, recorded[0].Status, "no embedder configured")
	for _, s := range recorded[1:] {
		assert.Equal(t, types.StepStatusCompleted, s.Status, s.Step)
	}

	require.NotEmpty(t, events)
	assert.Equal(t, steps.StepEmbed, events[0].Step)
	assert.Equal(t, steps.StepRoute, events[len(events)-1].Step)
	assert.Contains(t, events[len(events)-1].Message, "1 interview")
}

func TestRun_LearnedThresholdsApply(t *testing.T) {
	h := newHarness(t, mlProfile)
	ctx := context.Background()

	_, err := h.engine.SetThresholds(ctx, types.DefaultAgentName, routing.Thresholds{Reject: 40, Takehome: 60, Interview: 75, Fasttrack: 85})
	require.NoError(t, err)

	summary, err := New(h.cfg).Run(ctx, h.job.ID, RunOptions{})
	require.NoError(t, err)
	require.Len(t, summary.Candidates, 1)
	assert.Equal(t, routing.Fasttrack, summary.Candidates[0].Route)
	assert.Equal(t, types.StageInterview, summary.Candidates[0].Stage)
}

func TestRun_EmbedsJob(t *testing.T) {
	h := newHarness(t)
	h.cfg.Embedder = &llmtest.Embedder{Default: []float32{0.1, 0.2, 0.3}}

	summary, err := New(h.cfg).Run(context.Background(), h.job.ID, RunOptions{})
	require.NoError(t, err)

	vec, err := h.store.GetJobEmbedding(context.Background(), h.job.ID)
	require.NoError(t, err)
	assert.Len(t, vec, 3)

	recorded, _ := h.store.ListRunSteps(context.Background(), summary.RunID)
	assert.Equal(t, types.StepStatusCompleted, recorded[0].Status)
	assert.Equal(t, 3, recorded[0].Counts["dimensions"])
}

func TestRun_EmbeddingFailureFailsRun(t *testing.T) {
	h := newHarness(t, mlProfile)
	h.cfg.Embedder = &llmtest.Embedder{Err: errors.New("quota exceeded")}
	orch := New(h.cfg)

	summary, err := orch.Run(context.Background(), h.job.ID, RunOptions{})
	require.Error(t, err)
	assert.ErrorContains(t, err, "quota exceeded")
	require.NotNil(t, summary)
	assert.Equal(t, types.RunStatusFailed, summary.Status)
	assert.Equal(t, 0, h.profiles.calls)

	recorded, _ := h.store.ListRunSteps(context.Background(), summary.RunID)
	assert.Equal(t, types.StepStatusFailed, recorded[0].Status)
	assert.Contains(t, recorded[0].ErrorMessage, "quota exceeded")
	for _, s := range recorded[1:] {
		assert.Equal(t, types.StepStatusSkipped, s.Status)
	}

	runs, _ := h.store.ListPipelineRuns(context.Background(), &h.job.ID, 0)
	require.Len(t, runs, 1)
	assert.Equal(t, types.RunStatusFailed, runs[0].Status)
	assert.NotEmpty(t, runs[0].ErrorMessage)

	assert.Empty(t, orch.Running())
}

func TestRun_DiscoveryFailureContinuesEmpty(t *testing.T) {
	h := newHarness(t)
	h.profiles.result = adapter.Fail[[]types.DiscoveredProfile]("search failed", errors.New("503"))

	summary, err := New(h.cfg).Run(context.Background(), h.job.ID, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusCompleted, summary.Status)
	assert.Equal(t, 0, summary.Discovered)
	assert.Empty(t, summary.Candidates)
}

func TestRun_DropsNonDevelopers(t *testing.T) {
	recruiter := types.DiscoveredProfile{Handle: "recruiter", Name: "Sam", Bio: "Hiring ML talent"}
	unknown := types.DiscoveredProfile{Handle: "mystery"}
	h := newHarness(t, mlProfile, recruiter, unknown)
	h.cfg.Classifier = classifierStub{byHandle: map[string]types.Classification{
		mlProfile.Handle: {IsDeveloper: true, RoleType: types.RoleMLEngineer, Confidence: 90},
		recruiter.Handle: {IsDeveloper: false, Confidence: 95},
	}}

	summary, err := New(h.cfg).Run(context.Background(), h.job.ID, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Discovered)
	assert.Equal(t, 1, summary.Verified)
	require.Len(t, summary.Candidates, 1)
	assert.Equal(t, mlProfile.Handle, summary.Candidates[0].Handle)
	// min(90+10, 85)
	assert.Equal(t, 85.0, summary.Candidates[0].Score)

	cand, err := h.store.GetCandidateByHandle(context.Background(), recruiter.Handle)
	require.NoError(t, err)
	assert.Nil(t, cand)
}

func TestRun_TakehomeFiresHookOnce(t *testing.T) {
	h := newHarness(t, mlProfile)
	outbox := &notify.Outbox{}
	h.cfg.Scorer = scorerStub{scores: map[string]float64{mlProfile.Handle: 55}}
	h.cfg.Hooks = funnel.NewService(h.store, nil, funnel.NewTakehomeHook(h.store, outbox, 0, nil))
	orch := New(h.cfg)

	summary, err := orch.Run(context.Background(), h.job.ID, RunOptions{})
	require.NoError(t, err)
	require.Len(t, summary.Candidates, 1)
	assert.Equal(t, routing.Takehome, summary.Candidates[0].Route)
	assert.Equal(t, types.StageTakehomeAssigned, summary.Candidates[0].Stage)
	assert.Equal(t, ScoreSourceModel, summary.Candidates[0].ScoreSource)
	require.Len(t, outbox.Sent(), 1)
	assert.Equal(t, notify.KindTakehome, outbox.Sent()[0].Kind)

	// A second run leaves the stage unchanged and sends nothing new.
	_, err = orch.Run(context.Background(), h.job.ID, RunOptions{})
	require.NoError(t, err)
	assert.Len(t, outbox.Sent(), 1)
}

func TestRun_RerunKeepsAdvancedStage(t *testing.T) {
	h := newHarness(t, mlProfile)
	ctx := context.Background()
	h.cfg.Scorer = scorerStub{scores: map[string]float64{mlProfile.Handle: 30}}
	orch := New(h.cfg)

	first, err := orch.Run(ctx, h.job.ID, RunOptions{})
	require.NoError(t, err)
	candID := first.Candidates[0].CandidateID
	assert.Equal(t, types.StageRejected, first.Candidates[0].Stage)

	// A reviewer pulls the candidate back by recreating the row further along.
	require.NoError(t, h.store.UpsertJobCandidate(ctx, &types.JobCandidate{JobID: h.job.ID, CandidateID: candID, Stage: types.StageTeamMatched}))

	h.cfg.Scorer = scorerStub{scores: map[string]float64{mlProfile.Handle: 20}}
	second, err := New(h.cfg).Run(ctx, h.job.ID, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, routing.Reject, second.Candidates[0].Route)
	assert.Equal(t, types.StageTeamMatched, second.Candidates[0].Stage)

	jc, err := h.store.GetJobCandidate(ctx, h.job.ID, candID)
	require.NoError(t, err)
	assert.Equal(t, types.StageTeamMatched, jc.Stage)
	assert.Equal(t, 20.0, jc.Score())
}

func TestRun_UnknownJob(t *testing.T) {
	h := newHarness(t)
	_, err := New(h.cfg).Run(context.Background(), uuid.New(), RunOptions{})
	assert.True(t, types.IsNotFound(err))

	_, err = New(h.cfg).Start(context.Background(), uuid.New(), RunOptions{})
	assert.True(t, types.IsNotFound(err))
}

func TestDuplicateStart(t *testing.T) {
	h := newHarness(t)
	registry := NewRegistry()
	h.cfg.Registry = registry
	orch := New(h.cfg)

	held := uuid.New()
	_, ok := registry.TryAcquire(h.job.ID, held)
	require.True(t, ok)

	res, err := orch.Start(context.Background(), h.job.ID, RunOptions{})
	require.NoError(t, err)
	assert.False(t, res.Started)
	assert.Equal(t, held, res.RunID)
	assert.Contains(t, res.Message, "already running")

	_, err = orch.Run(context.Background(), h.job.ID, RunOptions{})
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	status, err := orch.Status(context.Background(), h.job.ID)
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.Equal(t, held, *status.RunID)

	// Stop frees the slot without touching the held run.
	assert.True(t, orch.Stop(h.job.ID))
	assert.False(t, orch.Stop(h.job.ID))
	_, err = orch.Run(context.Background(), h.job.ID, RunOptions{})
	assert.NoError(t, err)
}

func TestStart_RunsInBackground(t *testing.T) {
	h := newHarness(t, mlProfile)
	orch := New(h.cfg)
	ctx, cancel := context.WithCancel(context.Background())

	res, err := orch.Start(ctx, h.job.ID, RunOptions{})
	require.NoError(t, err)
	require.True(t, res.Started)
	// Cancelling the request context does not abort the run.
	cancel()

	require.Eventually(t, func() bool {
		return len(orch.Running()) == 0
	}, 5*time.Second, 10*time.Millisecond)

	status, err := orch.Status(context.Background(), h.job.ID)
	require.NoError(t, err)
	assert.False(t, status.Running)
	require.NotNil(t, status.LatestRun)
	assert.Equal(t, res.RunID, status.LatestRun.ID)
	assert.Equal(t, types.RunStatusCompleted, status.LatestRun.Status)
	assert.Len(t, status.Steps, steps.Count())
}

func TestStart_PanickingStageFailsRun(t *testing.T) {
	h := newHarness(t, mlProfile)
	h.cfg.Profiles = panickingProfiles{}
	h.cfg.Registry = NewRegistry()
	orch := New(h.cfg)

	res, err := orch.Start(context.Background(), h.job.ID, RunOptions{})
	require.NoError(t, err)
	require.True(t, res.Started)

	require.Eventually(t, func() bool {
		return len(orch.Running()) == 0
	}, 5*time.Second, 10*time.Millisecond)

	status, err := orch.Status(context.Background(), h.job.ID)
	require.NoError(t, err)
	require.NotNil(t, status.LatestRun)
	assert.Equal(t, types.RunStatusFailed, status.LatestRun.Status)
	assert.Contains(t, status.LatestRun.ErrorMessage, "search client nil map")

	byStep := map[string]types.RunStep{}
	for _, s := range status.Steps {
		byStep[s.Step] = s
	}
	assert.Equal(t, types.StepStatusFailed, byStep[steps.StepDiscoverCandidates].Status)
	assert.Equal(t, types.StepStatusSkipped, byStep[steps.StepRoute].Status)

	// The slot is free for another run.
	h.cfg.Profiles = h.profiles
	again, err := New(h.cfg).Run(context.Background(), h.job.ID, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusCompleted, again.Status)
}

func TestJobText(t *testing.T) {
	job := &types.Job{Title: "ML Engineer", Description: "Build models", Requirements: []string{"PyTorch", "CUDA"}}
	assert.Equal(t, "ML Engineer\n\nBuild models\n\nRequirements:\n- PyTorch\n- CUDA", JobText(job))
	assert.Equal(t, "ML Engineer", JobText(&types.Job{Title: "ML Engineer"}))
}
