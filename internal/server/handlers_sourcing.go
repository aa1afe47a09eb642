package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/talent-sourcer/internal/logging"
	"github.com/jonathan/talent-sourcer/internal/pipeline"
	"github.com/jonathan/talent-sourcer/internal/pipeline/steps"
	"github.com/jonathan/talent-sourcer/internal/types"
)

// StartSourcingRequest represents the request to source candidates for a job
type StartSourcingRequest struct {
	JobID uuid.UUID `json:"job_id"`
}

// StepStatusResponse represents the status of a single step
type StepStatusResponse struct {
	Step        string         `json:"step"`
	Index       int            `json:"index"`
	Category    string         `json:"category"`
	Description string         `json:"description"`
	Status      string         `json:"status"`
	StartedAt   *string        `json:"started_at,omitempty"`
	CompletedAt *string        `json:"completed_at,omitempty"`
	DurationMs  *int           `json:"duration_ms,omitempty"`
	Counts      map[string]int `json:"counts,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// RunStepsSummary counts steps by status
type RunStepsSummary struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	InProgress int `json:"in_progress"`
	Pending    int `json:"pending"`
	Blocked    int `json:"blocked"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// RunStepsListResponse represents the list of all steps for a run
type RunStepsListResponse struct {
	RunID   string               `json:"run_id"`
	JobID   string               `json:"job_id"`
	Status  string               `json:"status"`
	Steps   []StepStatusResponse `json:"steps"`
	Summary RunStepsSummary      `json:"summary"`
}

// stepStatusBlocked marks a step that has not run because a dependency never completed.
const stepStatusBlocked = "blocked"

func (s *Server) decodeStart(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	var req StartSourcingRequest
	if !s.decodeJSON(w, r, &req) {
		return uuid.Nil, false
	}
	if req.JobID == uuid.Nil {
		s.writeError(w, r, &types.ValidationError{Field: "job_id", Message: "is required"})
		return uuid.Nil, false
	}
	return req.JobID, true
}

// handleStartSourcing launches a background pipeline run. A job that is already running is
// reported, not failed.
func (s *Server) handleStartSourcing(w http.ResponseWriter, r *http.Request) {
	jobID, ok := s.decodeStart(w, r)
	if !ok {
		return
	}
	res, err := s.pipeline.Start(r.Context(), jobID, pipeline.RunOptions{})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusAccepted
	if !res.Started {
		status = http.StatusOK
	}
	s.logger.Info("sourcing requested", logging.JobID(jobID), logging.RunID(res.RunID),
		zap.Bool("started", res.Started), zap.String("recruiter", recruiter(r, "anonymous")))
	s.jsonResponse(w, status, res)
}

// handleStreamSourcing runs the pipeline in the request and streams progress as server-sent
// events, ending with a complete or error event.
func (s *Server) handleStreamSourcing(w http.ResponseWriter, r *http.Request) {
	jobID, ok := s.decodeStart(w, r)
	if !ok {
		return
	}

	stream, err := openEventStream(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	opts := pipeline.RunOptions{
		OnProgress: func(event pipeline.ProgressEvent) {
			if err := stream.Send("step", event); err != nil {
				s.logger.Warn("failed to write progress event", logging.JobID(jobID), zap.Error(err))
			}
		},
	}

	summary, err := s.pipeline.Run(r.Context(), jobID, opts)
	if summary != nil {
		if werr := stream.Send("summary", summary); werr != nil {
			s.logger.Warn("failed to write summary event", logging.JobID(jobID), zap.Error(werr))
		}
	}
	if err != nil {
		if !errors.Is(err, pipeline.ErrAlreadyRunning) {
			s.logger.Warn("streamed pipeline run failed", logging.JobID(jobID), zap.Error(err))
		}
		if werr := stream.Fail(err.Error()); werr != nil {
			s.logger.Debug("client left before the error event", logging.JobID(jobID), zap.Error(werr))
		}
		return
	}
	if err := stream.Done(summary.RunID.String(), summary.Status); err != nil {
		s.logger.Debug("client left before the complete event", logging.JobID(jobID), zap.Error(err))
	}
}

// handleSourcingStatus reports whether a job is running and its latest run
func (s *Server) handleSourcingStatus(w http.ResponseWriter, r *http.Request) {
	jobID, ok := s.pathUUID(w, r, "job_id")
	if !ok {
		return
	}
	job, err := s.store.GetJob(r.Context(), jobID)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("failed to get job: %w", err))
		return
	}
	if job == nil {
		s.writeError(w, r, types.NotFound("job", jobID))
		return
	}
	st, err := s.pipeline.Status(r.Context(), jobID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, st)
}

// handleStopSourcing releases a job's running slot
func (s *Server) handleStopSourcing(w http.ResponseWriter, r *http.Request) {
	jobID, ok := s.pathUUID(w, r, "job_id")
	if !ok {
		return
	}
	stopped := s.pipeline.Stop(jobID)
	message := fmt.Sprintf("Pipeline for job %s released", jobID)
	if !stopped {
		message = fmt.Sprintf("No pipeline running for job %s", jobID)
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"job_id":  jobID,
		"stopped": stopped,
		"message": message,
	})
}

// handleListPipelines lists in-flight pipelines
func (s *Server) handleListPipelines(w http.ResponseWriter, _ *http.Request) {
	running := s.pipeline.Running()
	if running == nil {
		running = []pipeline.Entry{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"pipelines": running,
		"count":     len(running),
	})
}

// handleListRunSteps lists every pipeline step for a run in execution order, including steps
// that were never recorded.
func (s *Server) handleListRunSteps(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.pathUUID(w, r, "run_id")
	if !ok {
		return
	}

	run, err := s.store.GetPipelineRun(r.Context(), runID)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("failed to get run: %w", err))
		return
	}
	if run == nil {
		s.writeError(w, r, types.NotFound("pipeline run", runID))
		return
	}

	recorded, err := s.store.ListRunSteps(r.Context(), runID)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("failed to list run steps: %w", err))
		return
	}
	byName := make(map[string]types.RunStep, len(recorded))
	for _, step := range recorded {
		byName[step.Step] = step
	}

	resp := RunStepsListResponse{
		RunID:  runID.String(),
		JobID:  run.JobID.String(),
		Status: run.Status,
		Steps:  make([]StepStatusResponse, 0, steps.Count()),
	}
	for _, def := range steps.Ordered() {
		stepResp := StepStatusResponse{
			Step:        def.Name,
			Index:       steps.Index(def.Name),
			Category:    def.Category,
			Description: def.Description,
			Status:      types.StepStatusPending,
		}
		if existing, ok := byName[def.Name]; ok {
			stepResp.Status = existing.Status
			stepResp.StartedAt = formatTime(existing.StartedAt)
			stepResp.CompletedAt = formatTime(existing.CompletedAt)
			stepResp.DurationMs = existing.DurationMs
			stepResp.Counts = existing.Counts
			stepResp.Error = existing.ErrorMessage
		}
		if stepResp.Status == types.StepStatusPending && run.Status != types.RunStatusRunning {
			if err := steps.ValidateDependencies(r.Context(), s.store, runID, def.Name); err != nil {
				stepResp.Status = stepStatusBlocked
			}
		}

		resp.Steps = append(resp.Steps, stepResp)
		resp.Summary.Total++
		switch stepResp.Status {
		case types.StepStatusCompleted:
			resp.Summary.Completed++
		case types.StepStatusInProgress:
			resp.Summary.InProgress++
		case types.StepStatusPending:
			resp.Summary.Pending++
		case stepStatusBlocked:
			resp.Summary.Blocked++
		case types.StepStatusFailed:
			resp.Summary.Failed++
		case types.StepStatusSkipped:
			resp.Summary.Skipped++
		}
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.Format(time.RFC3339)
	return &v
}
