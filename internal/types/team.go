package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Team is an internal engineering team candidates can be placed on.
type Team struct {
	ID           uuid.UUID `json:"id" yaml:"-"`
	Name         string    `json:"name" yaml:"name" validate:"required"`
	Description  string    `json:"description,omitempty" yaml:"description"`
	TechStack    []string  `json:"tech_stack" yaml:"tech_stack"`
	CurrentNeeds []string  `json:"current_needs" yaml:"current_needs"`
	Culture      string    `json:"team_culture,omitempty" yaml:"team_culture"`
	ManagerName  string    `json:"manager_name" yaml:"manager_name" validate:"required"`
	ManagerEmail string    `json:"manager_email,omitempty" yaml:"manager_email" validate:"omitempty,email"`
	IsActive     bool      `json:"is_active" yaml:"is_active"`
	CreatedAt    time.Time `json:"created_at" yaml:"-"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"-"`
}

// Validate validates the Team using the validator.
func (t *Team) Validate() error {
	validate := validator.New()
	return validate.Struct(t)
}

// Recommendation is the fixed banding of a fused team-match score.
type Recommendation string

// Recommendation bands.
const (
	StrongMatch    Recommendation = "strong_match"
	GoodMatch      Recommendation = "good_match"
	PossibleMatch  Recommendation = "possible_match"
	NotRecommended Recommendation = "not_recommended"
)

// MatchStatus tracks human review of a team match.
type MatchStatus string

// Match statuses.
const (
	MatchPending MatchStatus = "pending"
	MatchOffered MatchStatus = "offered"
)

// TeamMatch is a persisted, scored placement of a candidate on a team.
type TeamMatch struct {
	ID                  uuid.UUID      `json:"id"`
	CandidateID         uuid.UUID      `json:"candidate_id"`
	JobID               uuid.UUID      `json:"job_id"`
	TeamID              uuid.UUID      `json:"team_id"`
	TeamName            string         `json:"team_name,omitempty"`
	SimilarityScore     float64        `json:"similarity_score"`
	ReasoningAdjustment float64        `json:"reasoning_adjustment"`
	FinalScore          float64        `json:"final_score"`
	Recommendation      Recommendation `json:"recommendation"`
	ModelRecommendation string         `json:"model_recommendation,omitempty"`
	PassesThreshold     bool           `json:"passes_threshold"`
	MatchReasoning      string         `json:"match_reasoning,omitempty"`
	Strengths           []string       `json:"strengths,omitempty"`
	Concerns            []string       `json:"concerns,omitempty"`
	ManagerNotified     bool           `json:"manager_notified"`
	ManagerEmail        string         `json:"manager_email,omitempty"`
	NotifiedAt          *time.Time     `json:"notified_at,omitempty"`
	Status              MatchStatus    `json:"status"`
	ReviewedBy          string         `json:"reviewed_by,omitempty"`
	ReviewerNotes       string         `json:"reviewer_notes,omitempty"`
	ReviewedAt          *time.Time     `json:"reviewed_at,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// MatchRequest represents the request to match a candidate against active teams.
type MatchRequest struct {
	CandidateID uuid.UUID `json:"candidate_id" validate:"required"`
	JobID       uuid.UUID `json:"job_id" validate:"required"`
}

// Validate validates the MatchRequest using the validator.
func (r *MatchRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// ApproveMatchRequest represents a reviewer approving a team match.
type ApproveMatchRequest struct {
	ReviewerName  string `json:"reviewer_name" validate:"required"`
	ReviewerNotes string `json:"reviewer_notes,omitempty"`
}

// Validate validates the ApproveMatchRequest using the validator.
func (r *ApproveMatchRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
