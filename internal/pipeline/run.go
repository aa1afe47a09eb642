// Package pipeline provides the high-level orchestration for sourcing candidates for a job.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/talent-sourcer/internal/adapter"
	"github.com/jonathan/talent-sourcer/internal/funnel"
	"github.com/jonathan/talent-sourcer/internal/llm"
	"github.com/jonathan/talent-sourcer/internal/logging"
	"github.com/jonathan/talent-sourcer/internal/pipeline/steps"
	"github.com/jonathan/talent-sourcer/internal/routing"
	"github.com/jonathan/talent-sourcer/internal/scoring"
	"github.com/jonathan/talent-sourcer/internal/types"
)

// DefaultEmbedTimeout bounds the job embedding call.
const DefaultEmbedTimeout = 30 * time.Second

// ErrAlreadyRunning is returned by Run when the job already has a pipeline in flight.
var ErrAlreadyRunning = errors.New("pipeline already running for job")

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	Step     string `json:"step"`
	Category string `json:"category"`
	Message  string `json:"message"`
	RunID    string `json:"run_id,omitempty"`
	Content  any    `json:"content,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// RunOptions holds per-run configuration.
type RunOptions struct {
	OnProgress ProgressCallback
}

// Store is the persistence the orchestrator needs.
type Store interface {
	GetJob(ctx context.Context, id uuid.UUID) (*types.Job, error)
	SetJobEmbedding(ctx context.Context, id uuid.UUID, vec []float32) error
	UpsertCandidate(ctx context.Context, c *types.Candidate) error
	GetJobCandidate(ctx context.Context, jobID, candidateID uuid.UUID) (*types.JobCandidate, error)
	UpsertJobCandidate(ctx context.Context, jc *types.JobCandidate) error
	CreatePipelineRun(ctx context.Context, run *types.PipelineRun) error
	CompletePipelineRun(ctx context.Context, id uuid.UUID, status, errMsg string, summary map[string]int) error
	ListPipelineRuns(ctx context.Context, jobID *uuid.UUID, limit int) ([]types.PipelineRun, error)
	CreateRunStep(ctx context.Context, step *types.RunStep) error
	UpdateRunStepStatus(ctx context.Context, runID uuid.UUID, stepName, status string, errMsg *string, counts map[string]int) error
	ListRunSteps(ctx context.Context, runID uuid.UUID) ([]types.RunStep, error)
}

// TopicSource derives search topics from a job.
type TopicSource interface {
	Discover(ctx context.Context, job *types.Job) adapter.Result[types.Topics]
}

// ProfileSource finds profiles posting about topics.
type ProfileSource interface {
	Find(ctx context.Context, topics types.Topics) adapter.Result[[]types.DiscoveredProfile]
}

// Classifier decides whether a profile belongs to a developer.
type Classifier interface {
	Classify(ctx context.Context, profile *types.DiscoveredProfile, jobTitle string) adapter.Result[types.Classification]
}

// Enricher attaches skills and experience to a verified profile.
type Enricher interface {
	Enrich(ctx context.Context, profile *types.DiscoveredProfile, cls types.Classification) *types.Enrichment
}

// Scorer scores one candidate against one job.
type Scorer interface {
	Score(ctx context.Context, in scoring.Input) adapter.Result[types.Compatibility]
}

// Router applies the agent's active thresholds.
type Router interface {
	Apply(ctx context.Context, agent string, score float64) (routing.Stage, error)
}

// StageHooks is notified when routing places a candidate in a new funnel stage.
type StageHooks interface {
	Fire(ctx context.Context, change funnel.Change)
}

// Config wires an Orchestrator.
type Config struct {
	Store      Store
	Registry   *Registry
	Embedder   llm.Embedder // optional; the embed step is skipped without one
	Topics     TopicSource
	Profiles   ProfileSource
	Classifier Classifier
	Enricher   Enricher
	Scorer     Scorer
	Router     Router
	Hooks      StageHooks // optional
	Agent      string
	// EmbedTimeout bounds the job embedding call. Zero uses DefaultEmbedTimeout.
	EmbedTimeout time.Duration
	Logger       *zap.Logger
}

// Orchestrator drives the sourcing pipeline for one job at a time per job id.
type Orchestrator struct {
	cfg    Config
	logger *zap.Logger
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.Registry == nil {
		cfg.Registry = NewRegistry()
	}
	if cfg.Agent == "" {
		cfg.Agent = types.DefaultAgentName
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = DefaultEmbedTimeout
	}
	return &Orchestrator{cfg: cfg, logger: logging.WithFields(cfg.Logger)}
}

// StartResult reports whether Start launched a run.
type StartResult struct {
	Started bool      `json:"started"`
	JobID   uuid.UUID `json:"job_id"`
	RunID   uuid.UUID `json:"run_id"`
	Message string    `json:"message"`
}

// Start launches a background run for the job. A job that already has a run in flight is not
// an error: the result has Started false and references the existing run.
func (o *Orchestrator) Start(ctx context.Context, jobID uuid.UUID, opts RunOptions) (*StartResult, error) {
	job, err := o.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	runID := uuid.New()
	if existing, ok := o.cfg.Registry.TryAcquire(jobID, runID); !ok {
		o.logger.Info("pipeline already running", logging.JobID(jobID), logging.RunID(existing.RunID))
		return &StartResult{
			Started: false,
			JobID:   jobID,
			RunID:   existing.RunID,
			Message: fmt.Sprintf("Pipeline already running for job %s (run %s)", jobID, existing.RunID),
		}, nil
	}

	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer o.cfg.Registry.Release(jobID, runID)
		defer func() {
			if p := recover(); p != nil {
				o.logger.Error("pipeline run panicked", logging.JobID(jobID), logging.RunID(runID),
					zap.Any("panic", p), zap.Stack("stack"))
				msg := fmt.Sprintf("panic: %v", p)
				if err := o.cfg.Store.CompletePipelineRun(runCtx, runID, types.RunStatusFailed, msg, nil); err != nil {
					o.logger.Warn("failed to mark panicked run failed", logging.RunID(runID), zap.Error(err))
				}
			}
		}()
		if _, err := o.execute(runCtx, job, runID, opts); err != nil {
			o.logger.Error("pipeline run failed", logging.JobID(jobID), logging.RunID(runID), zap.Error(err))
		}
	}()

	return &StartResult{
		Started: true,
		JobID:   jobID,
		RunID:   runID,
		Message: fmt.Sprintf("Pipeline started for job %s", jobID),
	}, nil
}

// Run executes the pipeline for the job and blocks until it finishes. It returns
// ErrAlreadyRunning when the job has a run in flight.
func (o *Orchestrator) Run(ctx context.Context, jobID uuid.UUID, opts RunOptions) (*Summary, error) {
	job, err := o.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	runID := uuid.New()
	if existing, ok := o.cfg.Registry.TryAcquire(jobID, runID); !ok {
		return nil, fmt.Errorf("%w: run %s", ErrAlreadyRunning, existing.RunID)
	}
	defer o.cfg.Registry.Release(jobID, runID)
	return o.execute(ctx, job, runID, opts)
}

// Stop removes the job from the running registry so a new run can start. An in-flight run is
// not interrupted and still records its result.
func (o *Orchestrator) Stop(jobID uuid.UUID) bool {
	e, ok := o.cfg.Registry.Remove(jobID)
	if ok {
		o.logger.Info("pipeline released", logging.JobID(jobID), logging.RunID(e.RunID))
	}
	return ok
}

// Running lists in-flight pipelines.
func (o *Orchestrator) Running() []Entry {
	return o.cfg.Registry.List()
}

// Status is a job's pipeline state.
type Status struct {
	JobID     uuid.UUID          `json:"job_id"`
	Running   bool               `json:"running"`
	RunID     *uuid.UUID         `json:"run_id,omitempty"`
	LatestRun *types.PipelineRun `json:"latest_run,omitempty"`
	Steps     []types.RunStep    `json:"steps,omitempty"`
}

// Status reports whether the job is running and the state of its latest recorded run.
func (o *Orchestrator) Status(ctx context.Context, jobID uuid.UUID) (*Status, error) {
	st := &Status{JobID: jobID}
	if e, ok := o.cfg.Registry.Get(jobID); ok {
		st.Running = true
		runID := e.RunID
		st.RunID = &runID
	}
	runs, err := o.cfg.Store.ListPipelineRuns(ctx, &jobID, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to list pipeline runs: %w", err)
	}
	if len(runs) > 0 {
		st.LatestRun = &runs[0]
		st.Steps, err = o.cfg.Store.ListRunSteps(ctx, runs[0].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list run steps: %w", err)
		}
	}
	return st, nil
}

// Steps returns the recorded steps of a run.
func (o *Orchestrator) Steps(ctx context.Context, runID uuid.UUID) ([]types.RunStep, error) {
	return o.cfg.Store.ListRunSteps(ctx, runID)
}

func (o *Orchestrator) loadJob(ctx context.Context, jobID uuid.UUID) (*types.Job, error) {
	job, err := o.cfg.Store.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	if job == nil {
		return nil, types.NotFound("job", jobID)
	}
	return job, nil
}

// stageFunc executes one stage and returns its counts.
type stageFunc func(ctx context.Context, r *run) (map[string]int, error)

// execute runs every stage in order, recording the run and its steps. A stage failure stops the
// run, marks the remaining steps skipped, and fails the run.
func (o *Orchestrator) execute(ctx context.Context, job *types.Job, runID uuid.UUID, opts RunOptions) (*Summary, error) {
	log := o.logger.With(logging.JobID(job.ID), logging.RunID(runID))
	r := newRun(job, runID)

	store := o.cfg.Store
	if err := store.CreatePipelineRun(ctx, &types.PipelineRun{ID: runID, JobID: job.ID, Status: types.RunStatusRunning}); err != nil {
		return nil, fmt.Errorf("failed to create pipeline run: %w", err)
	}
	for _, def := range steps.Ordered() {
		if err := store.CreateRunStep(ctx, &types.RunStep{RunID: runID, Step: def.Name, Category: def.Category, Status: types.StepStatusPending}); err != nil {
			log.Warn("failed to record run step", logging.Stage(def.Name), zap.Error(err))
		}
	}

	stages := map[string]stageFunc{
		steps.StepEmbed:              o.embed,
		steps.StepDiscoverTopics:     o.discoverTopics,
		steps.StepDiscoverCandidates: o.discoverCandidates,
		steps.StepVerifyRoles:        o.verifyRoles,
		steps.StepEnrich:             o.enrich,
		steps.StepScore:              o.score,
		steps.StepRoute:              o.route,
	}

	log.Info("pipeline started", zap.String("job_title", job.Title))
	var failure error
	for _, def := range steps.Ordered() {
		if failure != nil {
			o.setStep(ctx, log, runID, def.Name, types.StepStatusSkipped, nil, nil)
			continue
		}

		o.setStep(ctx, log, runID, def.Name, types.StepStatusInProgress, nil, nil)
		emit(opts, runID, def.Name, def.Category, fmt.Sprintf("Step %d/%d: %s...", steps.Index(def.Name), steps.Count(), def.Description), nil)

		counts, err := runStage(ctx, log, def.Name, stages[def.Name], r)
		if err != nil {
			msg := err.Error()
			o.setStep(ctx, log, runID, def.Name, types.StepStatusFailed, &msg, counts)
			log.Error("pipeline stage failed", logging.Stage(def.Name), zap.Error(err))
			failure = fmt.Errorf("%s failed: %w", def.Name, err)
			r.summary.Error = failure.Error()
			continue
		}
		status, message := types.StepStatusCompleted, describe(def.Name, counts)
		if r.skip[def.Name] {
			status, message = types.StepStatusSkipped, def.Description+": skipped"
		}
		o.setStep(ctx, log, runID, def.Name, status, nil, counts)
		emit(opts, runID, def.Name, def.Category, message, counts)
	}

	r.summary.Status = types.RunStatusCompleted
	if failure != nil {
		r.summary.Status = types.RunStatusFailed
	}
	if err := store.CompletePipelineRun(ctx, runID, r.summary.Status, r.summary.Error, r.summary.Counts()); err != nil {
		log.Warn("failed to complete pipeline run", zap.Error(err))
	}
	log.Info("pipeline finished",
		zap.String("status", r.summary.Status),
		zap.Int("discovered", r.summary.Discovered),
		zap.Int("verified", r.summary.Verified),
		zap.Int("scored", r.summary.Scored))

	if failure != nil {
		return r.summary, failure
	}
	return r.summary, nil
}

// runStage runs fn, turning a panic into a stage error.
func runStage(ctx context.Context, log *zap.Logger, name string, fn stageFunc, r *run) (counts map[string]int, err error) {
	defer func() {
		if p := recover(); p != nil {
			log.Error("pipeline stage panicked", logging.Stage(name), zap.Any("panic", p), zap.Stack("stack"))
			counts, err = nil, fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(ctx, r)
}

func (o *Orchestrator) setStep(ctx context.Context, log *zap.Logger, runID uuid.UUID, step, status string, errMsg *string, counts map[string]int) {
	if err := o.cfg.Store.UpdateRunStepStatus(ctx, runID, step, status, errMsg, counts); err != nil {
		log.Warn("failed to update run step", logging.Stage(step), zap.String("status", status), zap.Error(err))
	}
}

// emit calls the progress callback if configured
func emit(opts RunOptions, runID uuid.UUID, step, category, message string, content any) {
	if opts.OnProgress != nil {
		opts.OnProgress(ProgressEvent{
			Step:     step,
			Category: category,
			Message:  message,
			RunID:    runID.String(),
			Content:  content,
		})
	}
}

func describe(step string, counts map[string]int) string {
	switch step {
	case steps.StepEmbed:
		return fmt.Sprintf("Embedded job description (%d dimensions)", counts["dimensions"])
	case steps.StepDiscoverTopics:
		return fmt.Sprintf("Found %d topics and %d search queries", counts["topics"], counts["queries"])
	case steps.StepDiscoverCandidates:
		return fmt.Sprintf("Discovered %d profiles", counts["discovered"])
	case steps.StepVerifyRoles:
		return fmt.Sprintf("Verified %d developers, dropped %d", counts["verified"], counts["dropped"])
	case steps.StepEnrich:
		return fmt.Sprintf("Enriched %d candidates", counts["enriched"])
	case steps.StepScore:
		return fmt.Sprintf("Scored %d candidates (%d fallback)", counts["scored"], counts["fallback"])
	case steps.StepRoute:
		return fmt.Sprintf("Routed: %d fasttrack, %d interview, %d takehome, %d reject",
			counts[string(routing.Fasttrack)], counts[string(routing.Interview)],
			counts[string(routing.Takehome)], counts[string(routing.Reject)])
	default:
		return step
	}
}
