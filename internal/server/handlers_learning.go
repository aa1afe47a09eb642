package server

import (
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/talent-sourcer/internal/learning"
	"github.com/jonathan/talent-sourcer/internal/logging"
	"github.com/jonathan/talent-sourcer/internal/routing"
	"github.com/jonathan/talent-sourcer/internal/types"
)

const maxSimulationIterations = 10000

// RecordOutcomeResponse is the stored outcome and the parameter version it produced.
type RecordOutcomeResponse struct {
	Outcome       *types.Outcome        `json:"outcome"`
	Params        *types.LearningParams `json:"params,omitempty"`
	LearningError string                `json:"learning_error,omitempty"`
}

// ParamsResponse is an agent's active parameters with the score bands they route to.
type ParamsResponse struct {
	Params     *types.LearningParams `json:"params"`
	Thresholds routing.Thresholds    `json:"thresholds"`
	Bands      []routing.Band        `json:"bands"`
}

// SimulateRequest configures a learning simulation. Zero values take defaults.
type SimulateRequest struct {
	Iterations   int     `json:"iterations"`
	Seed         *int64  `json:"seed,omitempty"`
	LearningRate float64 `json:"learning_rate"`
}

// ReplayRequest routes historical scores under hypothetical thresholds. Without thresholds the
// agent's active set is used.
type ReplayRequest struct {
	Scores     []float64                      `json:"scores"`
	Thresholds *types.UpdateThresholdsRequest `json:"thresholds,omitempty"`
}

func thresholdsFrom(req *types.UpdateThresholdsRequest) routing.Thresholds {
	return routing.Thresholds{
		Reject:    req.ThresholdReject,
		Takehome:  req.ThresholdTakehome,
		Interview: req.ThresholdInterview,
		Fasttrack: req.ThresholdFasttrack,
	}
}

// handleRecordOutcome records a hiring outcome and feeds it to the learner
func (s *Server) handleRecordOutcome(w http.ResponseWriter, r *http.Request) {
	var req types.RecordOutcomeRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.ReportedBy == "" {
		req.ReportedBy = recruiter(r, "")
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, r, &types.ValidationError{Field: "outcome", Message: err.Error()})
		return
	}

	agent := r.URL.Query().Get("agent")
	if agent == "" {
		agent = s.agent
	}

	outcome, params, err := s.learning.RecordOutcome(r.Context(), agent, &req)
	if err != nil && outcome == nil {
		s.writeError(w, r, err)
		return
	}
	resp := RecordOutcomeResponse{Outcome: outcome, Params: params}
	if err != nil {
		// The outcome is stored; only the parameter update failed.
		s.logger.Error("learning update failed", logging.Agent(agent), logging.JobID(req.JobID),
			logging.CandidateID(req.CandidateID), zap.Error(err))
		resp.LearningError = err.Error()
	}
	s.jsonResponse(w, http.StatusCreated, resp)
}

func outcomeFilter(r *http.Request) (types.OutcomeFilter, error) {
	var f types.OutcomeFilter
	var err error
	if f.JobID, err = queryUUID(r, "job_id"); err != nil {
		return f, err
	}
	if f.CandidateID, err = queryUUID(r, "candidate_id"); err != nil {
		return f, err
	}
	if raw := r.URL.Query().Get("outcome"); raw != "" {
		label := types.OutcomeLabel(raw)
		if !label.Valid() {
			return f, &types.ValidationError{Field: "outcome", Message: fmt.Sprintf("unknown outcome %q", raw)}
		}
		f.Label = &label
	}
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, perr := time.Parse(time.RFC3339, raw)
		if perr != nil {
			return f, &types.ValidationError{Field: "since", Message: "must be an RFC3339 timestamp"}
		}
		f.Since = &since
	}
	if f.Limit, err = queryInt(r, "limit", 100, 1000); err != nil {
		return f, err
	}
	if f.Offset, err = queryInt(r, "offset", 0, 0); err != nil {
		return f, err
	}
	return f, nil
}

// handleListOutcomes lists recorded outcomes, newest first
func (s *Server) handleListOutcomes(w http.ResponseWriter, r *http.Request) {
	f, err := outcomeFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	outcomes, err := s.learning.Outcomes(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if outcomes == nil {
		outcomes = []types.Outcome{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"outcomes": outcomes,
		"count":    len(outcomes),
	})
}

// handleOutcomeStats aggregates outcomes matching the filter by label and judged accuracy
func (s *Server) handleOutcomeStats(w http.ResponseWriter, r *http.Request) {
	f, err := outcomeFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if r.URL.Query().Get("limit") == "" {
		f.Limit = 0
	}
	outcomes, err := s.learning.Outcomes(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, learning.Stats(outcomes))
}

// handleListParams lists the active parameters of every agent
func (s *Server) handleListParams(w http.ResponseWriter, r *http.Request) {
	params, err := s.learning.AllActive(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if params == nil {
		params = []types.LearningParams{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"params": params,
		"count":  len(params),
	})
}

// handleGetParams returns an agent's active parameters, synthesizing defaults when none exist
func (s *Server) handleGetParams(w http.ResponseWriter, r *http.Request) {
	agent := r.PathValue("agent")
	params, err := s.learning.ActiveParams(r.Context(), agent)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	t := routing.FromParams(params)
	s.jsonResponse(w, http.StatusOK, ParamsResponse{Params: params, Thresholds: t, Bands: routing.Bands(t)})
}

// handleUpdateParams manually overrides an agent's thresholds as a new parameter version
func (s *Server) handleUpdateParams(w http.ResponseWriter, r *http.Request) {
	agent := r.PathValue("agent")
	var req types.UpdateThresholdsRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, r, &types.ValidationError{Field: "thresholds", Message: err.Error()})
		return
	}

	params, err := s.learning.SetThresholds(r.Context(), agent, thresholdsFrom(&req))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("thresholds updated via API", logging.Agent(agent),
		zap.Int("version", params.Version), zap.String("recruiter", recruiter(r, "anonymous")))
	t := routing.FromParams(params)
	s.jsonResponse(w, http.StatusOK, ParamsResponse{Params: params, Thresholds: t, Bands: routing.Bands(t)})
}

// handleParamsHistory lists stored parameter versions, newest first
func (s *Server) handleParamsHistory(w http.ResponseWriter, r *http.Request) {
	agent := r.PathValue("agent")
	limit, err := queryInt(r, "limit", 50, 500)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	history, err := s.learning.History(r.Context(), agent, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if history == nil {
		history = []types.LearningParams{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"agent_name": agent,
		"history":    history,
		"count":      len(history),
	})
}

// handleReplay routes historical scores under hypothetical thresholds without persisting anything
func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	agent := r.PathValue("agent")
	var req ReplayRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if len(req.Scores) == 0 {
		s.writeError(w, r, &types.ValidationError{Field: "scores", Message: "at least one score is required"})
		return
	}

	var t routing.Thresholds
	if req.Thresholds != nil {
		t = thresholdsFrom(req.Thresholds)
	} else {
		active, err := s.learning.Thresholds(r.Context(), agent)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		t = active
	}

	stages, counts, err := s.learning.Replay(req.Scores, t)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"thresholds": t,
		"stages":     stages,
		"counts":     counts,
	})
}

// handleMetrics reports precision per stage and recent outcome totals for an agent
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	agent := r.PathValue("agent")
	days, err := queryInt(r, "days", 30, 365)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	metrics, err := s.learning.Metrics(r.Context(), agent, days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, metrics)
}

// handleSimulate runs the learner against synthetic outcomes
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req SimulateRequest
	if r.ContentLength != 0 && !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Iterations <= 0 {
		req.Iterations = 100
	}
	if req.Iterations > maxSimulationIterations {
		s.writeError(w, r, &types.ValidationError{
			Field:   "iterations",
			Message: fmt.Sprintf("must be at most %d", maxSimulationIterations),
		})
		return
	}
	if req.LearningRate < 0 || req.LearningRate > 1 {
		s.writeError(w, r, &types.ValidationError{Field: "learning_rate", Message: "must be within (0,1]"})
		return
	}
	if req.LearningRate == 0 {
		req.LearningRate = s.learningRate
	}
	seed := time.Now().UnixNano()
	if req.Seed != nil {
		seed = *req.Seed
	}

	points := learning.Simulate(req.Iterations, req.LearningRate, rand.New(rand.NewSource(seed)))
	final := points[len(points)-1]
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"iterations":       req.Iterations,
		"seed":             seed,
		"learning_rate":    req.LearningRate,
		"final_accuracy":   final.Accuracy,
		"final_thresholds": final.Thresholds,
		"points":           points,
	})
}
