// Package routing maps compatibility scores onto sourcing stages using a threshold set.
package routing

import (
	"fmt"

	"github.com/jonathan/talent-sourcer/internal/types"
)

// Stage is the routing decision for a scored candidate.
type Stage string

// Routing stages, from least to most advanced.
const (
	Reject    Stage = "reject"
	Takehome  Stage = "takehome"
	Interview Stage = "interview"
	Fasttrack Stage = "fasttrack"
)

// AllStages lists the routing stages in ascending order.
func AllStages() []Stage {
	return []Stage{Reject, Takehome, Interview, Fasttrack}
}

// Default thresholds. The learning engine synthesizes exactly this set when an agent has no
// active parameters.
const (
	DefaultReject    = 40.0
	DefaultTakehome  = 60.0
	DefaultInterview = 75.0
	DefaultFasttrack = 90.0
)

// Thresholds is the four ascending cut points of a routing policy.
type Thresholds struct {
	Reject    float64 `json:"threshold_reject"`
	Takehome  float64 `json:"threshold_takehome"`
	Interview float64 `json:"threshold_interview"`
	Fasttrack float64 `json:"threshold_fasttrack"`
}

// DefaultThresholds returns the compiled-in threshold set.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Reject:    DefaultReject,
		Takehome:  DefaultTakehome,
		Interview: DefaultInterview,
		Fasttrack: DefaultFasttrack,
	}
}

// FromParams extracts the thresholds of a parameter version.
func FromParams(p *types.LearningParams) Thresholds {
	if p == nil {
		return DefaultThresholds()
	}
	return Thresholds{
		Reject:    p.ThresholdReject,
		Takehome:  p.ThresholdTakehome,
		Interview: p.ThresholdInterview,
		Fasttrack: p.ThresholdFasttrack,
	}
}

// Validate checks that every threshold lies in [0,100] and that they are strictly ascending.
func (t Thresholds) Validate() error {
	named := []struct {
		name  string
		value float64
	}{
		{"threshold_reject", t.Reject},
		{"threshold_takehome", t.Takehome},
		{"threshold_interview", t.Interview},
		{"threshold_fasttrack", t.Fasttrack},
	}
	for _, n := range named {
		if n.value < 0 || n.value > 100 {
			return &types.ValidationError{Field: n.name, Message: fmt.Sprintf("must be within [0,100], got %.2f", n.value)}
		}
	}
	for i := 1; i < len(named); i++ {
		if named[i].value <= named[i-1].value {
			return &types.ValidationError{
				Field:   named[i].name,
				Message: fmt.Sprintf("must be greater than %s (%.2f <= %.2f)", named[i-1].name, named[i].value, named[i-1].value),
			}
		}
	}
	return nil
}

// Route maps a score to a stage. Scores in [Reject, Interview) all route to Takehome; the
// takehome threshold is learned and reported but is not a cut point.
func Route(score float64, t Thresholds) Stage {
	switch {
	case score >= t.Fasttrack:
		return Fasttrack
	case score >= t.Interview:
		return Interview
	case score >= t.Reject:
		return Takehome
	default:
		return Reject
	}
}

// InitialPipelineStage converts a routing decision into the funnel stage a new
// JobCandidate row starts in.
func InitialPipelineStage(s Stage) types.PipelineStage {
	switch s {
	case Fasttrack, Interview:
		return types.StageInterview
	case Takehome:
		return types.StageTakehomeAssigned
	default:
		return types.StageRejected
	}
}

// Band describes the score range that routes to one stage.
type Band struct {
	Stage Stage   `json:"stage"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"` // exclusive, 100 inclusive for fasttrack
}

// Bands returns the effective score ranges of t in ascending order.
func Bands(t Thresholds) []Band {
	return []Band{
		{Stage: Reject, Min: 0, Max: t.Reject},
		{Stage: Takehome, Min: t.Reject, Max: t.Interview},
		{Stage: Interview, Min: t.Interview, Max: t.Fasttrack},
		{Stage: Fasttrack, Min: t.Fasttrack, Max: 100},
	}
}

// Partition counts how many scores route to each stage.
func Partition(scores []float64, t Thresholds) map[Stage]int {
	counts := make(map[Stage]int, 4)
	for _, s := range AllStages() {
		counts[s] = 0
	}
	for _, score := range scores {
		counts[Route(score, t)]++
	}
	return counts
}
