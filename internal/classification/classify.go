// Package classification decides whether a discovered profile belongs to a developer and which
// engineering role it fits.
package classification

import (
	"context"
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

// maxPosts bounds how many recent posts are shown to the model.
const maxPosts = 5

// StubReasoning labels the classification returned without a model.
const StubReasoning = "Stub response - API key not configured"

// Stub is the labelled classification used when no model is configured.
func Stub() types.Classification {
	return types.Classification{
		IsDeveloper: true,
		RoleType:    types.RoleMLEngineer,
		Confidence:  75,
		Reasoning:   StubReasoning,
		Signals:     []string{"Posts about ML", "Technical content"},
		Stub:        true,
	}
}

// RoleClassifier classifies discovered profiles with a model.
type RoleClassifier struct {
	client  llm.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewRoleClassifier creates a RoleClassifier. A nil client yields the stub classification.
func NewRoleClassifier(client llm.Client, timeout time.Duration, logger *zap.Logger) *RoleClassifier {
	return &RoleClassifier{client: client, timeout: timeout, logger: logging.WithFields(logger)}
}

// Classify returns Success with the model's verdict, Fallback with the stub when unconfigured,
// or Failure when the model could not produce a usable verdict. Failed profiles are dropped.
func (c *RoleClassifier) Classify(ctx context.Context, profile *types.DiscoveredProfile, jobTitle string) adapter.Result[types.Classification] {
	if c.client == nil {
		return adapter.Substitute(Stub(), "no model configured", nil)
	}

	posts := profile.SignalTexts(maxPosts)
	for i, p := range posts {
		posts[i] = "- " + p
	}
	prompt, err := prompts.Render("classification.json", "classify-role", map[string]string{
		"JobTitle": jobTitle,
		"Handle":   profile.Handle,
		"Bio":      profile.Bio,
		"Posts":    strings.Join(posts, "\n"),
	})
	if err != nil {
		return adapter.Fail[types.Classification]("prompt unavailable", err)
	}

	raw, err := adapter.Call(ctx, "role classification", c.timeout, func(ctx context.Context) (string, error) {
		return c.client.GenerateJSON(ctx, prompt, llm.TierLite)
	})
	if err != nil {
		c.logger.Warn("role classification failed", zap.String("handle", profile.Handle), zap.Error(err))
		return adapter.Fail[types.Classification]("model call failed", err)
	}

	cls, err := adapter.DecodeJSON[types.Classification](schemas.Classification, raw)
	if err != nil {
		c.logger.Warn("malformed classification response", zap.String("handle", profile.Handle), zap.Error(err))
		return adapter.Fail[types.Classification]("malformed model response", err)
	}
	cls.RoleType = types.ParseRoleType(string(cls.RoleType))
	return adapter.Ok(cls)
}

// Accept reports whether a classification result keeps the profile in the pipeline.
func Accept(res adapter.Result[types.Classification]) bool {
	return res.Usable() && res.Value.IsDeveloper
}
