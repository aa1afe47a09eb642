// Package learning implements the adaptive threshold learner. Recorded hiring outcomes are
// judged against the score that was predicted for the candidate, and every judgment produces a
// new version of the agent's learning parameters.
package learning

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/talent-sourcer/internal/logging"
	"github.com/jonathan/talent-sourcer/internal/routing"
	"github.com/jonathan/talent-sourcer/internal/types"
)

// ParamsStore persists versioned learning parameters.
type ParamsStore interface {
	// GetActiveParams returns the active version for agent, or nil when none exists.
	GetActiveParams(ctx context.Context, agent string) (*types.LearningParams, error)
	// ActivateParams inserts p as the active version and deactivates the prior active row
	// for the same agent in one atomic step.
	ActivateParams(ctx context.Context, p *types.LearningParams) error
	ListParamsHistory(ctx context.Context, agent string, limit int) ([]types.LearningParams, error)
	ListActiveParams(ctx context.Context) ([]types.LearningParams, error)
}

// OutcomeStore persists write-once outcome records.
type OutcomeStore interface {
	CreateOutcome(ctx context.Context, o *types.Outcome) error
	ListOutcomes(ctx context.Context, f types.OutcomeFilter) ([]types.Outcome, error)
}

// JobCandidateReader looks up the prediction an outcome is judged against.
type JobCandidateReader interface {
	GetJobCandidate(ctx context.Context, jobID, candidateID uuid.UUID) (*types.JobCandidate, error)
}

// Store is everything the engine needs from persistence.
type Store interface {
	ParamsStore
	OutcomeStore
	JobCandidateReader
}

// Engine records outcomes and maintains per-agent learning parameters.
type Engine struct {
	store        Store
	logger       *zap.Logger
	learningRate float64
	now          func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithLearningRate sets the learning rate stamped on synthesized default parameters.
func WithLearningRate(rate float64) Option {
	return func(e *Engine) {
		if rate > 0 {
			e.learningRate = rate
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a learning engine over store.
func NewEngine(store Store, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		logger:       logging.WithFields(logger, zap.String("component", "learning")),
		learningRate: types.DefaultLearningRate,
		now:          func() time.Time { return time.Now().UTC() },
		locks:        make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// lock serializes parameter updates for one agent.
func (e *Engine) lock(agent string) func() {
	e.mu.Lock()
	m, ok := e.locks[agent]
	if !ok {
		m = &sync.Mutex{}
		e.locks[agent] = m
	}
	e.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// DefaultParams returns the in-memory version 0 parameter set for agent.
func DefaultParams(agent string, learningRate float64) *types.LearningParams {
	t := routing.DefaultThresholds()
	return &types.LearningParams{
		AgentName:          agent,
		ThresholdReject:    t.Reject,
		ThresholdTakehome:  t.Takehome,
		ThresholdInterview: t.Interview,
		ThresholdFasttrack: t.Fasttrack,
		FeatureWeights:     types.DefaultFeatureWeights(),
		PrecisionByStage:   map[string]types.StageCounts{},
		LearningRate:       learningRate,
		Version:            0,
	}
}

// ActiveParams returns the agent's active parameters, synthesizing defaults when none are stored.
func (e *Engine) ActiveParams(ctx context.Context, agent string) (*types.LearningParams, error) {
	p, err := e.store.GetActiveParams(ctx, agent)
	if err != nil {
		return nil, fmt.Errorf("failed to load active params for %s: %w", agent, err)
	}
	if p == nil {
		e.logger.Debug("no active params, using defaults", logging.Agent(agent))
		return DefaultParams(agent, e.learningRate), nil
	}
	if p.FeatureWeights == nil {
		p.FeatureWeights = types.DefaultFeatureWeights()
	}
	if p.PrecisionByStage == nil {
		p.PrecisionByStage = map[string]types.StageCounts{}
	}
	return p, nil
}

// Thresholds returns the agent's active thresholds.
func (e *Engine) Thresholds(ctx context.Context, agent string) (routing.Thresholds, error) {
	p, err := e.ActiveParams(ctx, agent)
	if err != nil {
		return routing.Thresholds{}, err
	}
	return routing.FromParams(p), nil
}

// Apply routes score with the agent's active thresholds.
func (e *Engine) Apply(ctx context.Context, agent string, score float64) (routing.Stage, error) {
	t, err := e.Thresholds(ctx, agent)
	if err != nil {
		return "", err
	}
	return routing.Route(score, t), nil
}

// RecordOutcome snapshots the prediction for a job candidate, stores the judged outcome and
// feeds it to the agent's learner.
func (e *Engine) RecordOutcome(ctx context.Context, agent string, req *types.RecordOutcomeRequest) (*types.Outcome, *types.LearningParams, error) {
	jc, err := e.store.GetJobCandidate(ctx, req.JobID, req.CandidateID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load job candidate: %w", err)
	}
	if jc == nil {
		return nil, nil, types.NotFound("job candidate", fmt.Sprintf("%s/%s", req.JobID, req.CandidateID))
	}

	score := jc.Score()
	thresholds, err := e.Thresholds(ctx, agent)
	if err != nil {
		return nil, nil, err
	}

	outcome := &types.Outcome{
		ID:                uuid.New(),
		CandidateID:       req.CandidateID,
		JobID:             req.JobID,
		PredictedScore:    score,
		PredictedStage:    string(routing.Route(score, thresholds)),
		Label:             req.Outcome,
		Reason:            req.OutcomeReason,
		PerformanceRating: req.PerformanceRating,
		RetentionMonths:   req.RetentionMonths,
		WouldHireAgain:    req.WouldHireAgain,
		AIWasCorrect:      Judge(score, req.Outcome, req.PerformanceRating),
		ReportedBy:        req.ReportedBy,
		ReportedAt:        e.now(),
	}
	if err := e.store.CreateOutcome(ctx, outcome); err != nil {
		return nil, nil, fmt.Errorf("failed to save outcome: %w", err)
	}

	e.logger.Info("recorded outcome",
		logging.JobID(req.JobID),
		logging.CandidateID(req.CandidateID),
		zap.String("outcome", string(req.Outcome)),
		zap.Stringer("ai_was_correct", outcome.AIWasCorrect),
	)

	params, err := e.Update(ctx, agent, score, req.Outcome, req.PerformanceRating)
	if err != nil {
		return outcome, nil, err
	}
	return outcome, params, nil
}

// Update judges one prediction and activates the resulting parameter version.
func (e *Engine) Update(ctx context.Context, agent string, predictedScore float64, label types.OutcomeLabel, rating *float64) (*types.LearningParams, error) {
	if !label.Valid() {
		return nil, &types.ValidationError{Field: "outcome", Message: fmt.Sprintf("unknown outcome %q", label)}
	}

	unlock := e.lock(agent)
	defer unlock()

	current, err := e.ActiveParams(ctx, agent)
	if err != nil {
		return nil, err
	}
	next := Step(current, predictedScore, label, rating)
	if err := e.activate(ctx, current, next); err != nil {
		return nil, err
	}

	e.logger.Info("updated learning params",
		logging.Agent(agent),
		zap.Int("version", next.Version),
		zap.Float64("accuracy", next.Accuracy),
		zap.Int("total_predictions", next.TotalPredictions),
		zap.Float64("threshold_reject", next.ThresholdReject),
		zap.Float64("threshold_takehome", next.ThresholdTakehome),
		zap.Float64("threshold_interview", next.ThresholdInterview),
		zap.Float64("threshold_fasttrack", next.ThresholdFasttrack),
	)
	return next, nil
}

// Step derives the next parameter version from current without persisting it.
// Precision counters are keyed by the stage current's thresholds route the score to.
func Step(current *types.LearningParams, predictedScore float64, label types.OutcomeLabel, rating *float64) *types.LearningParams {
	next := current.Clone()
	thresholds := routing.FromParams(current)
	verdict := Judge(predictedScore, label, rating)

	if verdict != types.NotApplicable {
		next.TotalPredictions++
		if verdict == types.Correct {
			next.CorrectPredictions++
		}
		next.Accuracy = float64(next.CorrectPredictions) / float64(next.TotalPredictions)
	}

	stage := string(routing.Route(predictedScore, thresholds))
	counts := next.PrecisionByStage[stage]
	if HiringSuccess(label, rating) {
		counts.TP++
	} else {
		counts.FP++
	}
	next.PrecisionByStage[stage] = counts

	if verdict == types.Incorrect {
		adjusted := Adjust(thresholds, predictedScore, label, rating, current.LearningRate)
		next.ThresholdReject = adjusted.Reject
		next.ThresholdTakehome = adjusted.Takehome
		next.ThresholdInterview = adjusted.Interview
		next.ThresholdFasttrack = adjusted.Fasttrack
	}
	return next
}

// SetThresholds activates a new version with manually chosen thresholds. Counters carry over.
func (e *Engine) SetThresholds(ctx context.Context, agent string, t routing.Thresholds) (*types.LearningParams, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	unlock := e.lock(agent)
	defer unlock()

	current, err := e.ActiveParams(ctx, agent)
	if err != nil {
		return nil, err
	}
	next := current.Clone()
	next.ThresholdReject = t.Reject
	next.ThresholdTakehome = t.Takehome
	next.ThresholdInterview = t.Interview
	next.ThresholdFasttrack = t.Fasttrack
	if err := e.activate(ctx, current, next); err != nil {
		return nil, err
	}

	e.logger.Info("thresholds overridden", logging.Agent(agent), zap.Int("version", next.Version))
	return next, nil
}

func (e *Engine) activate(ctx context.Context, current, next *types.LearningParams) error {
	now := e.now()
	next.ID = uuid.New()
	next.Version = current.Version + 1
	next.IsActive = true
	next.LastUpdatedAt = now
	next.CreatedAt = now
	if err := e.store.ActivateParams(ctx, next); err != nil {
		return fmt.Errorf("failed to activate params version %d for %s: %w", next.Version, next.AgentName, err)
	}
	return nil
}

// History returns stored parameter versions for agent, newest first.
func (e *Engine) History(ctx context.Context, agent string, limit int) ([]types.LearningParams, error) {
	if limit <= 0 {
		limit = 50
	}
	history, err := e.store.ListParamsHistory(ctx, agent, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list params history for %s: %w", agent, err)
	}
	return history, nil
}

// AllActive returns the active parameters of every agent that has stored versions.
func (e *Engine) AllActive(ctx context.Context) ([]types.LearningParams, error) {
	params, err := e.store.ListActiveParams(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active params: %w", err)
	}
	return params, nil
}

// Outcomes lists recorded outcomes.
func (e *Engine) Outcomes(ctx context.Context, f types.OutcomeFilter) ([]types.Outcome, error) {
	outcomes, err := e.store.ListOutcomes(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}
	return outcomes, nil
}

// Replay routes historical scores under a hypothetical threshold set.
func (e *Engine) Replay(scores []float64, t routing.Thresholds) ([]routing.Stage, map[routing.Stage]int, error) {
	if err := t.Validate(); err != nil {
		return nil, nil, err
	}
	stages := make([]routing.Stage, len(scores))
	for i, s := range scores {
		stages[i] = routing.Route(s, t)
	}
	return stages, routing.Partition(scores, t), nil
}
