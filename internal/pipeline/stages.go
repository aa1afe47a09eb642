package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/talent-sourcer/internal/adapter"
	"github.com/jonathan/talent-sourcer/internal/classification"
	"github.com/jonathan/talent-sourcer/internal/funnel"
	"github.com/jonathan/talent-sourcer/internal/logging"
	"github.com/jonathan/talent-sourcer/internal/pipeline/steps"
	"github.com/jonathan/talent-sourcer/internal/routing"
	"github.com/jonathan/talent-sourcer/internal/scoring"
	"github.com/jonathan/talent-sourcer/internal/types"
)

// Score sources recorded on job candidates.
const (
	ScoreSourceModel    = "model"
	ScoreSourceFallback = "fallback"
)

// RoutedCandidate is one candidate's result in a run.
type RoutedCandidate struct {
	CandidateID uuid.UUID           `json:"candidate_id"`
	Handle      string              `json:"handle"`
	Name        string              `json:"name"`
	Score       float64             `json:"score"`
	ScoreSource string              `json:"score_source"`
	Route       routing.Stage       `json:"route"`
	Stage       types.PipelineStage `json:"stage"`
}

// Summary aggregates a run.
type Summary struct {
	RunID      uuid.UUID             `json:"run_id"`
	JobID      uuid.UUID             `json:"job_id"`
	Status     string                `json:"status"`
	Error      string                `json:"error,omitempty"`
	Topics     []string              `json:"topics"`
	StubTopics bool                  `json:"stub_topics,omitempty"`
	Discovered int                   `json:"discovered"`
	Verified   int                   `json:"verified"`
	Scored     int                   `json:"scored"`
	Buckets    map[routing.Stage]int `json:"buckets"`
	Candidates []RoutedCandidate     `json:"candidates"`
}

// Counts flattens the summary for the pipeline_runs row.
func (s *Summary) Counts() map[string]int {
	out := map[string]int{
		"discovered": s.Discovered,
		"verified":   s.Verified,
		"scored":     s.Scored,
	}
	for stage, n := range s.Buckets {
		out[string(stage)] = n
	}
	return out
}

// evaluated carries one profile through verification, enrichment and scoring.
type evaluated struct {
	profile        types.DiscoveredProfile
	classification types.Classification
	candidate      *types.Candidate
	compatibility  types.Compatibility
	scoreSource    string
}

// run is the state threaded through the stages of one execution.
type run struct {
	job       *types.Job
	topics    types.Topics
	profiles  []types.DiscoveredProfile
	evaluated []*evaluated
	skip      map[string]bool
	summary   *Summary
}

func newRun(job *types.Job, runID uuid.UUID) *run {
	buckets := make(map[routing.Stage]int, 4)
	for _, s := range routing.AllStages() {
		buckets[s] = 0
	}
	return &run{
		job:     job,
		skip:    map[string]bool{},
		summary: &Summary{RunID: runID, JobID: job.ID, Buckets: buckets, Topics: []string{}, Candidates: []RoutedCandidate{}},
	}
}

// JobText is the text embedded for a job.
func JobText(job *types.Job) string {
	var sb strings.Builder
	sb.WriteString(job.Title)
	if job.Description != "" {
		sb.WriteString("\n\n")
		sb.WriteString(job.Description)
	}
	if len(job.Requirements) > 0 {
		sb.WriteString("\n\nRequirements:\n- ")
		sb.WriteString(strings.Join(job.Requirements, "\n- "))
	}
	return sb.String()
}

// embed stores the job's embedding. Embedding errors fail the run.
func (o *Orchestrator) embed(ctx context.Context, r *run) (map[string]int, error) {
	if o.cfg.Embedder == nil {
		o.logger.Info("no embedding model configured, skipping job embedding", logging.JobID(r.job.ID))
		r.skip[steps.StepEmbed] = true
		return nil, nil
	}
	vec, err := adapter.Call(ctx, "embed job", o.cfg.EmbedTimeout, func(ctx context.Context) ([]float32, error) {
		return o.cfg.Embedder.Embed(ctx, JobText(r.job))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed job: %w", err)
	}
	if err := o.cfg.Store.SetJobEmbedding(ctx, r.job.ID, vec); err != nil {
		return nil, fmt.Errorf("failed to store job embedding: %w", err)
	}
	return map[string]int{"dimensions": len(vec)}, nil
}

// discoverTopics derives topics. A failed discovery leaves the run with no topics.
func (o *Orchestrator) discoverTopics(ctx context.Context, r *run) (map[string]int, error) {
	res := o.cfg.Topics.Discover(ctx, r.job)
	if !res.Usable() {
		o.logger.Warn("topic discovery failed, continuing without topics",
			logging.JobID(r.job.ID), zap.String("reason", res.Reason), zap.Error(res.Err))
		return map[string]int{"topics": 0, "queries": 0}, nil
	}
	r.topics = res.Value
	r.summary.Topics = append(r.summary.Topics, res.Value.Topics...)
	r.summary.StubTopics = res.Value.Stub
	counts := map[string]int{"topics": len(res.Value.Topics), "queries": len(res.Value.SearchQueries)}
	if res.Value.Stub {
		counts["stub"] = 1
	}
	return counts, nil
}

// discoverCandidates searches for profiles. A failed search yields zero candidates.
func (o *Orchestrator) discoverCandidates(ctx context.Context, r *run) (map[string]int, error) {
	res := o.cfg.Profiles.Find(ctx, r.topics)
	if !res.Usable() {
		o.logger.Warn("candidate discovery failed, continuing with no candidates",
			logging.JobID(r.job.ID), zap.String("reason", res.Reason), zap.Error(res.Err))
	} else {
		r.profiles = res.Value
	}
	r.summary.Discovered = len(r.profiles)
	return map[string]int{"discovered": len(r.profiles)}, nil
}

// verifyRoles keeps profiles classified as developers.
func (o *Orchestrator) verifyRoles(ctx context.Context, r *run) (map[string]int, error) {
	dropped, stubs := 0, 0
	for i := range r.profiles {
		p := r.profiles[i]
		res := o.cfg.Classifier.Classify(ctx, &p, r.job.Title)
		if !classification.Accept(res) {
			dropped++
			o.logger.Debug("profile dropped", zap.String("handle", p.Handle),
				zap.String("kind", res.Kind.String()), zap.String("reason", res.Reason))
			continue
		}
		if res.Value.Stub {
			stubs++
		}
		r.evaluated = append(r.evaluated, &evaluated{profile: p, classification: res.Value})
	}
	r.summary.Verified = len(r.evaluated)
	counts := map[string]int{"verified": len(r.evaluated), "dropped": dropped}
	if stubs > 0 {
		counts["stub"] = stubs
	}
	return counts, nil
}

// enrich attaches enrichment and saves each verified candidate.
func (o *Orchestrator) enrich(ctx context.Context, r *run) (map[string]int, error) {
	counts := map[string]int{"enriched": 0}
	for _, e := range r.evaluated {
		enr := o.cfg.Enricher.Enrich(ctx, &e.profile, e.classification)
		cand := &types.Candidate{
			Name:        e.profile.Name,
			Handle:      e.profile.Handle,
			Bio:         e.profile.Bio,
			HomepageURL: e.profile.HomepageURL,
			Enrichment:  enr,
		}
		if err := o.cfg.Store.UpsertCandidate(ctx, cand); err != nil {
			return counts, fmt.Errorf("failed to save candidate %s: %w", e.profile.Handle, err)
		}
		e.candidate = cand
		counts["enriched"]++
		if enr != nil {
			counts[string(enr.Source)]++
		}
	}
	return counts, nil
}

// score scores every candidate. A scorer failure is replaced by the deterministic fallback.
func (o *Orchestrator) score(ctx context.Context, r *run) (map[string]int, error) {
	counts := map[string]int{"scored": 0, "fallback": 0}
	for _, e := range r.evaluated {
		res := o.cfg.Scorer.Score(ctx, scoring.Input{
			Job:            r.job,
			Profile:        &e.profile,
			Classification: e.classification,
			Enrichment:     e.candidate.Enrichment,
		})
		switch res.Kind {
		case adapter.Success:
			e.compatibility = res.Value
			e.scoreSource = ScoreSourceModel
		case adapter.Fallback:
			e.compatibility = res.Value
			e.scoreSource = ScoreSourceFallback
		default:
			e.compatibility = scoring.Fallback(e.classification)
			e.scoreSource = ScoreSourceFallback
		}
		if e.scoreSource == ScoreSourceFallback {
			counts["fallback"]++
		}
		counts["scored"]++
	}
	r.summary.Scored = counts["scored"]
	return counts, nil
}

// route applies the active thresholds and persists one JobCandidate per candidate. A candidate
// already further along the funnel keeps its stage; only the score and reasoning are refreshed.
func (o *Orchestrator) route(ctx context.Context, r *run) (map[string]int, error) {
	for _, e := range r.evaluated {
		score := e.compatibility.Score
		decision, err := o.cfg.Router.Apply(ctx, o.cfg.Agent, score)
		if err != nil {
			return r.summary.Counts(), fmt.Errorf("failed to route candidate %s: %w", e.candidate.Handle, err)
		}
		target := routing.InitialPipelineStage(decision)

		existing, err := o.cfg.Store.GetJobCandidate(ctx, r.job.ID, e.candidate.ID)
		if err != nil {
			return r.summary.Counts(), fmt.Errorf("failed to load job candidate: %w", err)
		}
		var from types.PipelineStage
		stage := target
		if existing != nil {
			from = existing.Stage
			if !types.CanTransition(existing.Stage, target) {
				stage = existing.Stage
			}
		}

		jc := &types.JobCandidate{
			JobID:              r.job.ID,
			CandidateID:        e.candidate.ID,
			CompatibilityScore: &score,
			Reasoning:          e.compatibility.Reasoning,
			Strengths:          e.compatibility.Strengths,
			Weaknesses:         e.compatibility.Weaknesses,
			ScoreSource:        e.scoreSource,
			Stage:              stage,
		}
		if err := o.cfg.Store.UpsertJobCandidate(ctx, jc); err != nil {
			return r.summary.Counts(), fmt.Errorf("failed to save job candidate: %w", err)
		}

		r.summary.Buckets[decision]++
		r.summary.Candidates = append(r.summary.Candidates, RoutedCandidate{
			CandidateID: e.candidate.ID,
			Handle:      e.candidate.Handle,
			Name:        e.candidate.Name,
			Score:       score,
			ScoreSource: e.scoreSource,
			Route:       decision,
			Stage:       stage,
		})

		if stage != from && o.cfg.Hooks != nil {
			o.cfg.Hooks.Fire(ctx, funnel.Change{Job: r.job, Candidate: e.candidate, From: from, To: stage})
		}
	}

	counts := make(map[string]int, len(r.summary.Buckets))
	for s, n := range r.summary.Buckets {
		counts[string(s)] = n
	}
	return counts, nil
}
