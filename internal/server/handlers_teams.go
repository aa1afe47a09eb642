package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/talent-sourcer/internal/logging"
	"github.com/jonathan/talent-sourcer/internal/types"
)

// CreateTeamRequest represents the request to register a team. Teams are active unless
// is_active is false.
type CreateTeamRequest struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	TechStack    []string `json:"tech_stack"`
	CurrentNeeds []string `json:"current_needs"`
	Culture      string   `json:"team_culture,omitempty"`
	ManagerName  string   `json:"manager_name"`
	ManagerEmail string   `json:"manager_email,omitempty"`
	IsActive     *bool    `json:"is_active,omitempty"`
}

func (req *CreateTeamRequest) team() *types.Team {
	t := &types.Team{
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
		TechStack:    req.TechStack,
		CurrentNeeds: req.CurrentNeeds,
		Culture:      req.Culture,
		ManagerName:  strings.TrimSpace(req.ManagerName),
		ManagerEmail: strings.TrimSpace(req.ManagerEmail),
		IsActive:     req.IsActive == nil || *req.IsActive,
	}
	if t.TechStack == nil {
		t.TechStack = []string{}
	}
	if t.CurrentNeeds == nil {
		t.CurrentNeeds = []string{}
	}
	return t
}

// MatchResponse lists the matches produced for a candidate.
type MatchResponse struct {
	CandidateID string            `json:"candidate_id"`
	JobID       string            `json:"job_id"`
	Matches     []types.TeamMatch `json:"matches"`
	Count       int               `json:"count"`
	Passing     int               `json:"passing"`
}

// handleCreateTeam registers a team
func (s *Server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var req CreateTeamRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	team := req.team()
	if err := team.Validate(); err != nil {
		s.writeError(w, r, &types.ValidationError{Field: "team", Message: err.Error()})
		return
	}
	if err := s.store.CreateTeam(r.Context(), team); err != nil {
		s.writeError(w, r, fmt.Errorf("failed to create team: %w", err))
		return
	}
	s.logger.Info("team created", logging.TeamID(team.ID), zap.String("name", team.Name))
	s.jsonResponse(w, http.StatusCreated, team)
}

// handleListTeams lists teams; ?active=true restricts to active teams
func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	activeOnly := false
	if raw := r.URL.Query().Get("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeError(w, r, &types.ValidationError{Field: "active", Message: "must be a boolean"})
			return
		}
		activeOnly = v
	}
	teams, err := s.store.ListTeams(r.Context(), activeOnly)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("failed to list teams: %w", err))
		return
	}
	if teams == nil {
		teams = []types.Team{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"teams": teams,
		"count": len(teams),
	})
}

// handleGetTeam returns a team by id
func (s *Server) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	team, err := s.store.GetTeam(r.Context(), id)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("failed to get team: %w", err))
		return
	}
	if team == nil {
		s.writeError(w, r, types.NotFound("team", id))
		return
	}
	s.jsonResponse(w, http.StatusOK, team)
}

// handleUpdateTeam replaces a team's fields. An omitted is_active keeps the current value.
func (s *Server) handleUpdateTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req CreateTeamRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.IsActive == nil {
		current, err := s.store.GetTeam(r.Context(), id)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("failed to get team: %w", err))
			return
		}
		if current == nil {
			s.writeError(w, r, types.NotFound("team", id))
			return
		}
		req.IsActive = &current.IsActive
	}
	update := req.team()
	if err := update.Validate(); err != nil {
		s.writeError(w, r, &types.ValidationError{Field: "team", Message: err.Error()})
		return
	}
	team, err := s.teams.UpdateTeam(r.Context(), id, update)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, team)
}

// handleMatchTeams scores a candidate against every active team
func (s *Server) handleMatchTeams(w http.ResponseWriter, r *http.Request) {
	var req types.MatchRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, r, &types.ValidationError{Field: "match", Message: err.Error()})
		return
	}

	matches, err := s.teams.Match(r.Context(), req.CandidateID, req.JobID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if matches == nil {
		matches = []types.TeamMatch{}
	}
	resp := MatchResponse{
		CandidateID: req.CandidateID.String(),
		JobID:       req.JobID.String(),
		Matches:     matches,
		Count:       len(matches),
	}
	for _, m := range matches {
		if m.PassesThreshold {
			resp.Passing++
		}
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleListCandidateMatches lists a candidate's team matches by descending final score
func (s *Server) handleListCandidateMatches(w http.ResponseWriter, r *http.Request) {
	candidateID, ok := s.pathUUID(w, r, "candidate_id")
	if !ok {
		return
	}
	matches, err := s.teams.ForCandidate(r.Context(), candidateID)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("failed to list team matches: %w", err))
		return
	}
	if matches == nil {
		matches = []types.TeamMatch{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"candidate_id": candidateID,
		"matches":      matches,
		"count":        len(matches),
	})
}

// handleGetMatch returns a team match by id
func (s *Server) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	match, err := s.teams.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, match)
}

// handleApproveMatch records a reviewer's approval of a match
func (s *Server) handleApproveMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req types.ApproveMatchRequest
	if r.ContentLength != 0 && !s.decodeJSON(w, r, &req) {
		return
	}
	if req.ReviewerName == "" {
		req.ReviewerName = recruiter(r, "")
	}

	match, err := s.teams.Approve(r.Context(), id, &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, match)
}
