package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// DefaultAgentName is the agent whose thresholds drive the sourcing pipeline.
const DefaultAgentName = "sourcing_agent"

// DefaultLearningRate is the fixed learning rate of a fresh parameter set.
const DefaultLearningRate = 0.1

// StageCounts holds prediction-quality counters for one routed stage.
type StageCounts struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	FN int `json:"fn"`
}

// Precision returns tp/(tp+fp), or 0 when nothing was counted.
func (c StageCounts) Precision() float64 {
	if c.TP+c.FP == 0 {
		return 0
	}
	return float64(c.TP) / float64(c.TP+c.FP)
}

// LearningParams is one version of an agent's learned routing parameters.
// Rows are append-only; exactly one row per agent is active.
type LearningParams struct {
	ID                 uuid.UUID              `json:"id"`
	AgentName          string                 `json:"agent_name"`
	ThresholdReject    float64                `json:"threshold_reject"`
	ThresholdTakehome  float64                `json:"threshold_takehome"`
	ThresholdInterview float64                `json:"threshold_interview"`
	ThresholdFasttrack float64                `json:"threshold_fasttrack"`
	FeatureWeights     map[string]float64     `json:"feature_weights"`
	TotalPredictions   int                    `json:"total_predictions"`
	CorrectPredictions int                    `json:"correct_predictions"`
	Accuracy           float64                `json:"accuracy"`
	PrecisionByStage   map[string]StageCounts `json:"precision_by_stage"`
	LearningRate       float64                `json:"learning_rate"`
	Version            int                    `json:"version"`
	IsActive           bool                   `json:"is_active"`
	LastUpdatedAt      time.Time              `json:"last_updated_at"`
	CreatedAt          time.Time              `json:"created_at"`
}

// DefaultFeatureWeights returns the weights applied to the scoring sub-dimensions.
func DefaultFeatureWeights() map[string]float64 {
	return map[string]float64{
		"skill_match":      0.4,
		"experience_match": 0.3,
		"domain_alignment": 0.3,
	}
}

// Clone returns a deep copy so a new version can be derived without touching the original.
func (p *LearningParams) Clone() *LearningParams {
	c := *p
	c.FeatureWeights = make(map[string]float64, len(p.FeatureWeights))
	for k, v := range p.FeatureWeights {
		c.FeatureWeights[k] = v
	}
	c.PrecisionByStage = make(map[string]StageCounts, len(p.PrecisionByStage))
	for k, v := range p.PrecisionByStage {
		c.PrecisionByStage[k] = v
	}
	return &c
}

// OutcomeLabel is the ground-truth result recorded for a candidate.
type OutcomeLabel string

// Outcome labels.
const (
	OutcomeHired             OutcomeLabel = "hired"
	OutcomeRejectedInterview OutcomeLabel = "rejected_interview"
	OutcomeRejectedScreen    OutcomeLabel = "rejected_screen"
	OutcomeRejectedSourcing  OutcomeLabel = "rejected_sourcing"
	OutcomeWithdrew          OutcomeLabel = "withdrew"
)

// Valid reports whether l is a known outcome label.
func (l OutcomeLabel) Valid() bool {
	switch l {
	case OutcomeHired, OutcomeRejectedInterview, OutcomeRejectedScreen, OutcomeRejectedSourcing, OutcomeWithdrew:
		return true
	}
	return false
}

// Correctness is the three-way verdict on a past prediction.
type Correctness int

// Correctness values. NotApplicable outcomes are excluded from accuracy.
const (
	NotApplicable Correctness = iota
	Correct
	Incorrect
)

func (c Correctness) String() string {
	switch c {
	case Correct:
		return "correct"
	case Incorrect:
		return "incorrect"
	default:
		return "not_applicable"
	}
}

// MarshalText encodes the verdict as true, false, or unknown.
func (c Correctness) MarshalText() ([]byte, error) {
	switch c {
	case Correct:
		return []byte("true"), nil
	case Incorrect:
		return []byte("false"), nil
	default:
		return []byte("unknown"), nil
	}
}

// UnmarshalText decodes true, false, or unknown.
func (c *Correctness) UnmarshalText(b []byte) error {
	switch string(b) {
	case "true":
		*c = Correct
	case "false":
		*c = Incorrect
	default:
		*c = NotApplicable
	}
	return nil
}

// Outcome is a write-once record of what happened to a candidate after a prediction.
type Outcome struct {
	ID                uuid.UUID    `json:"id"`
	CandidateID       uuid.UUID    `json:"candidate_id"`
	JobID             uuid.UUID    `json:"job_id"`
	PredictedScore    float64      `json:"predicted_score"`
	PredictedStage    string       `json:"predicted_stage"`
	Label             OutcomeLabel `json:"outcome"`
	Reason            string       `json:"outcome_reason,omitempty"`
	PerformanceRating *float64     `json:"performance_rating,omitempty"`
	RetentionMonths   *int         `json:"retention_months,omitempty"`
	WouldHireAgain    *bool        `json:"would_hire_again,omitempty"`
	AIWasCorrect      Correctness  `json:"ai_was_correct"`
	ReportedBy        string       `json:"reported_by,omitempty"`
	ReportedAt        time.Time    `json:"reported_at"`
}

// RecordOutcomeRequest represents the request to record a hiring outcome.
type RecordOutcomeRequest struct {
	CandidateID       uuid.UUID    `json:"candidate_id" validate:"required"`
	JobID             uuid.UUID    `json:"job_id" validate:"required"`
	Outcome           OutcomeLabel `json:"outcome" validate:"required,oneof=hired rejected_interview rejected_screen rejected_sourcing withdrew"`
	OutcomeReason     string       `json:"outcome_reason,omitempty"`
	PerformanceRating *float64     `json:"performance_rating,omitempty" validate:"omitempty,gte=1,lte=5"`
	RetentionMonths   *int         `json:"retention_months,omitempty" validate:"omitempty,gte=0"`
	WouldHireAgain    *bool        `json:"would_hire_again,omitempty"`
	ReportedBy        string       `json:"reported_by,omitempty"`
}

// Validate validates the RecordOutcomeRequest using the validator.
func (r *RecordOutcomeRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// UpdateThresholdsRequest represents a manual override of an agent's thresholds.
type UpdateThresholdsRequest struct {
	ThresholdReject    float64 `json:"threshold_reject" validate:"gte=0,lte=100"`
	ThresholdTakehome  float64 `json:"threshold_takehome" validate:"gte=0,lte=100,gtfield=ThresholdReject"`
	ThresholdInterview float64 `json:"threshold_interview" validate:"gte=0,lte=100,gtfield=ThresholdTakehome"`
	ThresholdFasttrack float64 `json:"threshold_fasttrack" validate:"gte=0,lte=100,gtfield=ThresholdInterview"`
}

// Validate validates the UpdateThresholdsRequest using the validator.
func (r *UpdateThresholdsRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// OutcomeFilter narrows outcome listings.
type OutcomeFilter struct {
	JobID       *uuid.UUID
	CandidateID *uuid.UUID
	Label       *OutcomeLabel
	Since       *time.Time
	Limit       int
	Offset      int
}
