// Package scoring rates how well an enriched candidate fits a job.
package scoring

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/talent-sourcer/internal/adapter"
	"github.com/jonathan/talent-sourcer/internal/llm"
	"github.com/jonathan/talent-sourcer/internal/logging"
	"github.com/jonathan/talent-sourcer/internal/prompts"
	"github.com/jonathan/talent-sourcer/internal/schemas"
	"github.com/jonathan/talent-sourcer/internal/types"
)

// Fallback scoring constants.
const (
	FallbackReasoning   = "Fallback scoring based on role classification confidence"
	fallbackBonus       = 10
	fallbackCeiling     = 85
	fallbackExperience  = 70
	maxPromptPosts      = 5
	maxPromptExperience = 5
)

// Input is everything the scorer sees about one candidate.
type Input struct {
	Job            *types.Job
	Profile        *types.DiscoveredProfile
	Classification types.Classification
	Enrichment     *types.Enrichment
}

// Fallback derives a deterministic score from classification confidence.
func Fallback(cls types.Classification) types.Compatibility {
	return types.Compatibility{
		Score:           min(cls.Confidence+fallbackBonus, fallbackCeiling),
		Strengths:       []string{"Technical background", "Active in community"},
		Weaknesses:      []string{"Limited information available"},
		Reasoning:       FallbackReasoning,
		SkillMatch:      cls.Confidence,
		ExperienceMatch: fallbackExperience,
		DomainAlignment: cls.Confidence,
	}
}

// CompatibilityScorer scores candidates with a model.
type CompatibilityScorer struct {
	client  llm.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewCompatibilityScorer creates a scorer. A nil client always yields the fallback score.
func NewCompatibilityScorer(client llm.Client, timeout time.Duration, logger *zap.Logger) *CompatibilityScorer {
	return &CompatibilityScorer{client: client, timeout: timeout, logger: logging.WithFields(logger)}
}

// Score returns Success with the model's score, or Fallback when the model is unconfigured,
// unavailable, or replies with something that fails the compatibility schema.
func (s *CompatibilityScorer) Score(ctx context.Context, in Input) adapter.Result[types.Compatibility] {
	if s.client == nil {
		return adapter.Substitute(Fallback(in.Classification), "no model configured", nil)
	}

	prompt, err := prompts.Render("scoring.json", "score-compatibility", promptData(in))
	if err != nil {
		return adapter.Substitute(Fallback(in.Classification), "prompt unavailable", err)
	}

	raw, err := adapter.Call(ctx, "compatibility scoring", s.timeout, func(ctx context.Context) (string, error) {
		return s.client.GenerateJSON(ctx, prompt, llm.TierStandard)
	})
	if err != nil {
		s.logger.Warn("compatibility scoring failed, using fallback", zap.String("handle", in.Profile.Handle), zap.Error(err))
		return adapter.Substitute(Fallback(in.Classification), "model call failed", err)
	}

	comp, err := adapter.DecodeJSON[types.Compatibility](schemas.Compatibility, raw)
	if err != nil {
		s.logger.Warn("malformed scoring response, using fallback",
			zap.String("handle", in.Profile.Handle),
			zap.String("response", logging.TruncateForLog(raw, 200)),
			zap.Error(err))
		return adapter.Substitute(Fallback(in.Classification), "malformed model response", err)
	}
	return adapter.Ok(comp)
}

func promptData(in Input) map[string]string {
	data := map[string]string{
		"JobTitle":       in.Job.Title,
		"JobDescription": in.Job.Description,
		"Requirements":   bulletList(in.Job.Requirements, 0),
		"Bio":            in.Profile.Bio,
		"RoleType":       string(in.Classification.RoleType),
		"Confidence":     strconv.FormatFloat(in.Classification.Confidence, 'f', 0, 64),
		"Posts":          bulletList(in.Profile.SignalTexts(maxPromptPosts), 0),
		"Experience":     "Not available",
		"Years":          "Unknown",
		"Skills":         "Not available",
	}
	if e := in.Enrichment; e != nil {
		var lines []string
		for _, x := range e.Experience {
			lines = append(lines, fmt.Sprintf("%s at %s (%s)", x.Title, x.Company, x.Duration))
		}
		if len(lines) > 0 {
			data["Experience"] = bulletList(lines, maxPromptExperience)
		}
		if e.YearsOfExperience > 0 {
			data["Years"] = strconv.Itoa(e.YearsOfExperience)
		}
		if len(e.Skills) > 0 {
			data["Skills"] = strings.Join(e.Skills, ", ")
		}
	}
	return data
}

// bulletList renders items as "- item" lines; limit 0 means no limit.
func bulletList(items []string, limit int) string {
	if len(items) == 0 {
		return "None listed"
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	var sb strings.Builder
	for i, it := range items {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString("- ")
		sb.WriteString(it)
	}
	return sb.String()
}
