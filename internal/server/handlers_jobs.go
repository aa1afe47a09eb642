package server

import (
	"fmt"
	"net/http"

	"github.com/jonathan/talent-sourcer/internal/types"
)

// JobCandidatesResponse lists the candidates sourced for a job.
type JobCandidatesResponse struct {
	JobID      string               `json:"job_id"`
	Stage      string               `json:"stage,omitempty"`
	Candidates []types.JobCandidate `json:"candidates"`
	Count      int                  `json:"count"`
	ByStage    map[string]int       `json:"by_stage"`
}

// handleCreateJob creates a job from a description or a posting URL
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req types.CreateJobRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	job, err := s.jobs.CreateJob(r.Context(), &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, job)
}

// handleListJobs lists jobs, newest first
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50, 200)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0, 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	jobs, err := s.store.ListJobs(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("failed to list jobs: %w", err))
		return
	}
	if jobs == nil {
		jobs = []types.Job{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"jobs":   jobs,
		"count":  len(jobs),
		"limit":  limit,
		"offset": offset,
	})
}

// handleGetJob returns a job by id
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("failed to get job: %w", err))
		return
	}
	if job == nil {
		s.writeError(w, r, types.NotFound("job", id))
		return
	}
	s.jsonResponse(w, http.StatusOK, job)
}

// handleListJobCandidates lists a job's candidates by descending score, optionally filtered by stage
func (s *Server) handleListJobCandidates(w http.ResponseWriter, r *http.Request) {
	jobID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}

	var stage *types.PipelineStage
	if raw := r.URL.Query().Get("stage"); raw != "" {
		st := types.PipelineStage(raw)
		if !st.Valid() {
			s.writeError(w, r, &types.ValidationError{Field: "stage", Message: fmt.Sprintf("unknown stage %q", raw)})
			return
		}
		stage = &st
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

	candidates, err := s.store.ListJobCandidates(r.Context(), jobID, stage)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("failed to list job candidates: %w", err))
		return
	}
	if candidates == nil {
		candidates = []types.JobCandidate{}
	}

	resp := JobCandidatesResponse{
		JobID:      jobID.String(),
		Candidates: candidates,
		Count:      len(candidates),
		ByStage:    make(map[string]int),
	}
	if stage != nil {
		resp.Stage = string(*stage)
	}
	for _, jc := range candidates {
		resp.ByStage[string(jc.Stage)]++
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleListCandidates lists candidates, newest first
func (s *Server) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 100, 500)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0, 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	candidates, err := s.store.ListCandidates(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("failed to list candidates: %w", err))
		return
	}
	if candidates == nil {
		candidates = []types.Candidate{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"candidates": candidates,
		"count":      len(candidates),
		"limit":      limit,
		"offset":     offset,
	})
}

// handleGetCandidate returns a candidate with enrichment
func (s *Server) handleGetCandidate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	cand, err := s.store.GetCandidate(r.Context(), id)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("failed to get candidate: %w", err))
		return
	}
	if cand == nil {
		s.writeError(w, r, types.NotFound("candidate", id))
		return
	}
	s.jsonResponse(w, http.StatusOK, cand)
}

// handleUpdateStage moves a candidate along the funnel for a job
func (s *Server) handleUpdateStage(w http.ResponseWriter, r *http.Request) {
	jobID, ok := s.pathUUID(w, r, "job_id")
	if !ok {
		return
	}
	candidateID, ok := s.pathUUID(w, r, "candidate_id")
	if !ok {
		return
	}

	var req types.UpdateStageRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, r, &types.ValidationError{Field: "stage", Message: err.Error()})
		return
	}

	jc, err := s.funnel.Advance(r.Context(), jobID, candidateID, req.Stage)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, jc)
}

// handleListCandidateJobs lists every job a candidate has been considered for
func (s *Server) handleListCandidateJobs(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	cand, err := s.store.GetCandidate(r.Context(), id)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("failed to get candidate: %w", err))
		return
	}
	if cand == nil {
		s.writeError(w, r, types.NotFound("candidate", id))
		return
	}
	jobs, err := s.store.ListCandidateJobs(r.Context(), id)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("failed to list candidate jobs: %w", err))
		return
	}
	if jobs == nil {
		jobs = []types.JobCandidate{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"candidate_id": id,
		"jobs":         jobs,
		"count":        len(jobs),
	})
}
