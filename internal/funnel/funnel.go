// Package funnel moves candidates between hiring stages and runs the integrations tied to stage
// changes.
package funnel

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/talent-sourcer/internal/logging"
	"github.com/jonathan/talent-sourcer/internal/types"
)

// Store is the persistence the funnel needs.
type Store interface {
	GetJob(ctx context.Context, id uuid.UUID) (*types.Job, error)
	GetCandidate(ctx context.Context, id uuid.UUID) (*types.Candidate, error)
	GetJobCandidate(ctx context.Context, jobID, candidateID uuid.UUID) (*types.JobCandidate, error)
	UpdateJobCandidateStage(ctx context.Context, jobID, candidateID uuid.UUID, stage types.PipelineStage) error
}

// Change describes a candidate entering a stage. From is empty when the candidate was just placed
// in the funnel.
type Change struct {
	Job       *types.Job
	Candidate *types.Candidate
	From      types.PipelineStage
	To        types.PipelineStage
}

// Hook reacts to stage changes. Hook failures never undo the change.
type Hook interface {
	Name() string
	OnStageChange(ctx context.Context, change Change) error
}

// Service applies human stage changes.
type Service struct {
	store  Store
	hooks  []Hook
	logger *zap.Logger
}

// NewService creates a Service that runs hooks in order after every stage change.
func NewService(store Store, logger *zap.Logger, hooks ...Hook) *Service {
	return &Service{store: store, hooks: hooks, logger: logging.WithFields(logger)}
}

// Advance moves the candidate to stage. Backward moves and moves out of a terminal stage return
// a *types.TransitionError. Moving to the current stage is a no-op and fires no hooks.
func (s *Service) Advance(ctx context.Context, jobID, candidateID uuid.UUID, stage types.PipelineStage) (*types.JobCandidate, error) {
	if !stage.Valid() {
		return nil, &types.ValidationError{Field: "stage", Message: fmt.Sprintf("unknown stage %q", stage)}
	}

	jc, err := s.store.GetJobCandidate(ctx, jobID, candidateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job candidate: %w", err)
	}
	if jc == nil {
		return nil, types.NotFound("job candidate", jobID.String()+"/"+candidateID.String())
	}
	if jc.Stage == stage {
		return jc, nil
	}
	if !types.CanTransition(jc.Stage, stage) {
		return nil, &types.TransitionError{From: jc.Stage, To: stage}
	}

	if err := s.store.UpdateJobCandidateStage(ctx, jobID, candidateID, stage); err != nil {
		return nil, fmt.Errorf("failed to update stage: %w", err)
	}
	from := jc.Stage
	jc.Stage = stage
	s.logger.Info("candidate stage changed",
		logging.JobID(jobID), logging.CandidateID(candidateID),
		zap.String("from", string(from)), zap.String("to", string(stage)))

	job, err := s.store.GetJob(ctx, jobID)
	if err != nil || job == nil {
		s.logger.Warn("skipping stage hooks, job unavailable", logging.JobID(jobID), zap.Error(err))
		return jc, nil
	}
	cand, err := s.store.GetCandidate(ctx, candidateID)
	if err != nil || cand == nil {
		s.logger.Warn("skipping stage hooks, candidate unavailable", logging.CandidateID(candidateID), zap.Error(err))
		return jc, nil
	}
	s.Fire(ctx, Change{Job: job, Candidate: cand, From: from, To: stage})
	return jc, nil
}

// Fire runs every hook for change, logging failures.
func (s *Service) Fire(ctx context.Context, change Change) {
	for _, h := range s.hooks {
		if err := h.OnStageChange(ctx, change); err != nil {
			s.logger.Warn("stage hook failed",
				zap.String("hook", h.Name()),
				logging.JobID(change.Job.ID),
				logging.CandidateID(change.Candidate.ID),
				zap.String("stage", string(change.To)),
				zap.Error(err))
		}
	}
}
