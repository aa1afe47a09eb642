// Package types provides the domain types shared by the sourcing pipeline, the learning engine,
// team matching, and the persistence layers.
package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Job is an open position that candidates are sourced for.
type Job struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Requirements []string  `json:"requirements"`
	SourceURL    string    `json:"source_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateJobRequest represents the request to create a job from text or a posting URL.
type CreateJobRequest struct {
	Title        string   `json:"title" validate:"required_without=URL,max=200"`
	Description  string   `json:"description" validate:"required_without=URL"`
	URL          string   `json:"url,omitempty" validate:"omitempty,url"`
	Requirements []string `json:"requirements,omitempty"`
}

// Validate validates the CreateJobRequest using the validator.
func (r *CreateJobRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// PipelineStage is a candidate's position in the hiring funnel for one job.
type PipelineStage string

// Pipeline stages. The forward path is sourced, reached_out, phone_screened,
// takehome_assigned, interview, team_matched. Rejected can follow any non-terminal stage.
const (
	StageSourced          PipelineStage = "sourced"
	StageReachedOut       PipelineStage = "reached_out"
	StagePhoneScreened    PipelineStage = "phone_screened"
	StageTakehomeAssigned PipelineStage = "takehome_assigned"
	StageInterview        PipelineStage = "interview"
	StageTeamMatched      PipelineStage = "team_matched"
	StageRejected         PipelineStage = "rejected"
)

var stageOrder = map[PipelineStage]int{
	StageSourced:          0,
	StageReachedOut:       1,
	StagePhoneScreened:    2,
	StageTakehomeAssigned: 3,
	StageInterview:        4,
	StageTeamMatched:      5,
}

// AllPipelineStages lists every stage in forward order followed by rejected.
func AllPipelineStages() []PipelineStage {
	return []PipelineStage{
		StageSourced, StageReachedOut, StagePhoneScreened,
		StageTakehomeAssigned, StageInterview, StageTeamMatched, StageRejected,
	}
}

// Valid reports whether s is a known stage.
func (s PipelineStage) Valid() bool {
	if s == StageRejected {
		return true
	}
	_, ok := stageOrder[s]
	return ok
}

// Terminal reports whether no further transition is allowed out of s.
func (s PipelineStage) Terminal() bool {
	return s == StageRejected || s == StageTeamMatched
}

// CanTransition reports whether a JobCandidate may move from one stage to another.
// An empty from means the row does not exist yet, so any valid stage is accepted.
// Moving to the same stage is a no-op and is allowed.
func CanTransition(from, to PipelineStage) bool {
	if !to.Valid() {
		return false
	}
	if from == "" {
		return true
	}
	if from == to {
		return true
	}
	if from.Terminal() {
		return false
	}
	if to == StageRejected {
		return true
	}
	return stageOrder[to] > stageOrder[from]
}

// JobCandidate links a candidate to a job with the model's fit score and funnel stage.
type JobCandidate struct {
	JobID              uuid.UUID     `json:"job_id"`
	CandidateID        uuid.UUID     `json:"candidate_id"`
	CompatibilityScore *float64      `json:"compatibility_score,omitempty"`
	Reasoning          string        `json:"reasoning,omitempty"`
	Strengths          []string      `json:"strengths,omitempty"`
	Weaknesses         []string      `json:"weaknesses,omitempty"`
	ScoreSource        string        `json:"score_source,omitempty"` // model, fallback
	Stage              PipelineStage `json:"stage"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// Score returns the compatibility score, or 0 when unset.
func (jc *JobCandidate) Score() float64 {
	if jc == nil || jc.CompatibilityScore == nil {
		return 0
	}
	return *jc.CompatibilityScore
}

// UpdateStageRequest represents a human review moving a candidate along the funnel.
type UpdateStageRequest struct {
	Stage PipelineStage `json:"stage" validate:"required,oneof=sourced reached_out phone_screened takehome_assigned interview team_matched rejected"`
}

// Validate validates the UpdateStageRequest using the validator.
func (r *UpdateStageRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
