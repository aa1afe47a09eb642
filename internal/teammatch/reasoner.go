package teammatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/talent-sourcer/internal/adapter"
	"github.com/jonathan/talent-sourcer/internal/llm"
	"github.com/jonathan/talent-sourcer/internal/logging"
	"github.com/jonathan/talent-sourcer/internal/prompts"
	"github.com/jonathan/talent-sourcer/internal/schemas"
	"github.com/jonathan/talent-sourcer/internal/types"
)

// DefaultReasoningTimeout bounds one team reasoning call.
const DefaultReasoningTimeout = 60 * time.Second

// TeamSimilarity is one team's embedding similarity to the candidate.
type TeamSimilarity struct {
	Team       *types.Team
	Similarity float64
}

// Refinement is the model's judgement on one team.
type Refinement struct {
	TeamID              uuid.UUID
	ReasoningAdjustment float64
	Reasoning           string
	Strengths           []string
	Concerns            []string
	Recommendation      string
}

// Refiner turns similarities into per-team refinements. Failures are returned, never guessed.
type Refiner interface {
	Refine(ctx context.Context, candidate *types.Candidate, sims []TeamSimilarity) ([]Refinement, error)
}

// Reasoner is the model-backed Refiner.
type Reasoner struct {
	client  llm.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewReasoner creates a Reasoner. A zero timeout uses DefaultReasoningTimeout.
func NewReasoner(client llm.Client, timeout time.Duration, logger *zap.Logger) *Reasoner {
	if timeout <= 0 {
		timeout = DefaultReasoningTimeout
	}
	return &Reasoner{client: client, timeout: timeout, logger: logging.WithFields(logger)}
}

type reasoningResponse struct {
	Matches []struct {
		TeamID              string   `json:"team_id"`
		ReasoningAdjustment float64  `json:"reasoning_adjustment"`
		Reasoning           string   `json:"reasoning"`
		Strengths           []string `json:"strengths"`
		Concerns            []string `json:"concerns"`
		Recommendation      string   `json:"recommendation"`
	} `json:"matches"`
}

// ErrReasonerUnavailable is returned when no model is configured.
var ErrReasonerUnavailable = errors.New("team reasoning requires a configured model")

// Refine asks the model for a reasoning adjustment per team. Entries naming unknown teams are
// dropped; a reply covering none of the teams is an error.
func (r *Reasoner) Refine(ctx context.Context, candidate *types.Candidate, sims []TeamSimilarity) ([]Refinement, error) {
	if r == nil || r.client == nil {
		return nil, ErrReasonerUnavailable
	}

	var teams strings.Builder
	for _, s := range sims {
		fmt.Fprintf(&teams, "- team_id: %s\n  similarity: %.3f\n  profile: %s\n", s.Team.ID, s.Similarity,
			strings.ReplaceAll(TeamText(s.Team), "\n", "; "))
	}
	prompt, err := prompts.Render("teammatch.json", "refine-team-scores", map[string]string{
		"Candidate": candidatePrompt(candidate),
		"Teams":     teams.String(),
	})
	if err != nil {
		return nil, err
	}

	raw, err := adapter.Call(ctx, "team reasoning", r.timeout, func(ctx context.Context) (string, error) {
		return r.client.GenerateJSON(ctx, prompt, llm.TierAdvanced)
	})
	if err != nil {
		return nil, fmt.Errorf("team reasoning failed: %w", err)
	}

	resp, err := adapter.DecodeJSON[reasoningResponse](schemas.TeamReasoning, raw)
	if err != nil {
		return nil, fmt.Errorf("team reasoning failed: %w", err)
	}

	known := make(map[uuid.UUID]bool, len(sims))
	for _, s := range sims {
		known[s.Team.ID] = true
	}
	seen := make(map[uuid.UUID]bool, len(resp.Matches))
	out := make([]Refinement, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		id, err := uuid.Parse(strings.TrimSpace(m.TeamID))
		if err != nil || !known[id] || seen[id] {
			r.logger.Warn("ignoring team reasoning entry", zap.String("team_id", m.TeamID))
			continue
		}
		seen[id] = true
		out = append(out, Refinement{
			TeamID:              id,
			ReasoningAdjustment: m.ReasoningAdjustment,
			Reasoning:           m.Reasoning,
			Strengths:           m.Strengths,
			Concerns:            m.Concerns,
			Recommendation:      m.Recommendation,
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("team reasoning returned no usable matches")
	}
	return out, nil
}
