package ingestion

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/talent-sourcer/internal/adapter"
	"github.com/jonathan/talent-sourcer/internal/llm"
	"github.com/jonathan/talent-sourcer/internal/logging"
	"github.com/jonathan/talent-sourcer/internal/prompts"
	"github.com/jonathan/talent-sourcer/internal/schemas"
)

// JobRequirements is the structured form of a posting, validated against the job_requirements
// schema.
type JobRequirements struct {
	Title        string   `json:"title"`
	Company      string   `json:"company,omitempty"`
	Summary      string   `json:"summary,omitempty"`
	Requirements []string `json:"requirements"`
	NiceToHaves  []string `json:"nice_to_haves,omitempty"`
}

// Extractor pulls the title and requirement list out of posting text with a model.
type Extractor struct {
	client  llm.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewExtractor creates an Extractor. A nil client always uses the bullet-line fallback.
func NewExtractor(client llm.Client, timeout time.Duration, logger *zap.Logger) *Extractor {
	return &Extractor{client: client, timeout: timeout, logger: logging.WithFields(logger)}
}

// Fallback derives requirements from text without a model.
func Fallback(text string) JobRequirements {
	return JobRequirements{
		Title:        TitleFromText(text),
		Requirements: RequirementsFromText(text),
	}
}

// Extract returns Success with the model's extraction, or Fallback with the bullet lines of text
// when the model is unconfigured, fails, or answers with something that does not validate.
func (e *Extractor) Extract(ctx context.Context, text string) adapter.Result[JobRequirements] {
	if e.client == nil {
		return adapter.Substitute(Fallback(text), "no model configured", nil)
	}

	prompt, err := prompts.Render("extraction.json", "extract-requirements", map[string]string{"Posting": text})
	if err != nil {
		return adapter.Substitute(Fallback(text), "prompt unavailable", err)
	}
	raw, err := adapter.Call(ctx, "requirement extraction", e.timeout, func(ctx context.Context) (string, error) {
		return e.client.GenerateJSON(ctx, prompt, llm.TierLite)
	})
	if err != nil {
		e.logger.Warn("requirement extraction failed, using bullet lines", zap.Error(err))
		return adapter.Substitute(Fallback(text), "model call failed", err)
	}

	reqs, err := adapter.DecodeJSON[JobRequirements](schemas.JobRequirements, raw)
	if err != nil {
		e.logger.Warn("malformed extraction response, using bullet lines", zap.Error(err))
		return adapter.Substitute(Fallback(text), "malformed model response", err)
	}
	return adapter.Ok(reqs)
}
