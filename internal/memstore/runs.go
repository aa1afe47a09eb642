package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/talent-sourcer/internal/types"
)

// CreatePipelineRun stores a new run in the running state.
func (s *Store) CreatePipelineRun(_ context.Context, run *types.PipelineRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = types.RunStatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = s.now()
	}
	s.runs[run.ID] = *run
	return nil
}

// CompletePipelineRun sets the final status of a run.
func (s *Store) CompletePipelineRun(_ context.Context, id uuid.UUID, status, errMsg string, summary map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return types.NotFound("pipeline run", id)
	}
	now := s.now()
	run.Status = status
	run.ErrorMessage = errMsg
	run.Summary = summary
	run.CompletedAt = &now
	s.runs[id] = run
	return nil
}

// GetPipelineRun returns the run or nil.
func (s *Store) GetPipelineRun(_ context.Context, id uuid.UUID) (*types.PipelineRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, nil
	}
	return &run, nil
}

// ListPipelineRuns returns runs for a job newest first. A nil job id lists all runs.
func (s *Store) ListPipelineRuns(_ context.Context, jobID *uuid.UUID, limit int) ([]types.PipelineRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.PipelineRun
	for _, r := range s.runs {
		if jobID != nil && r.JobID != *jobID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].StartedAt.After(out[k].StartedAt) })
	return page(out, limit, 0), nil
}

// CreateRunStep adds a pending step to a run.
func (s *Store) CreateRunStep(_ context.Context, step *types.RunStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.steps[step.RunID] {
		if existing.Step == step.Step {
			return fmt.Errorf("step %s already exists for run %s", step.Step, step.RunID)
		}
	}
	if step.Status == "" {
		step.Status = types.StepStatusPending
	}
	s.steps[step.RunID] = append(s.steps[step.RunID], *step)
	return nil
}

// UpdateRunStepStatus moves a step to status, stamping start, completion and duration.
func (s *Store) UpdateRunStepStatus(_ context.Context, runID uuid.UUID, stepName, status string, errMsg *string, counts map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	steps := s.steps[runID]
	for i := range steps {
		if steps[i].Step != stepName {
			continue
		}
		applyStepStatus(&steps[i], status, errMsg, counts, s.now())
		return nil
	}
	return fmt.Errorf("step not found: %s", stepName)
}

func applyStepStatus(step *types.RunStep, status string, errMsg *string, counts map[string]int, now time.Time) {
	step.Status = status
	if status == types.StepStatusInProgress && step.StartedAt == nil {
		step.StartedAt = &now
	}
	switch status {
	case types.StepStatusCompleted, types.StepStatusFailed, types.StepStatusSkipped:
		step.CompletedAt = &now
		if step.StartedAt != nil {
			d := int(now.Sub(*step.StartedAt).Milliseconds())
			step.DurationMs = &d
		}
	}
	if errMsg != nil {
		step.ErrorMessage = *errMsg
	}
	if counts != nil {
		step.Counts = counts
	}
}

// ListRunSteps returns the steps of a run in creation order.
func (s *Store) ListRunSteps(_ context.Context, runID uuid.UUID) ([]types.RunStep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.RunStep(nil), s.steps[runID]...), nil
}
