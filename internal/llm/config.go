// Package llm provides the model configuration and client abstractions used by every
// generative adapter in the sourcing pipeline.
package llm

import "maps"

// ModelTier names how much reasoning a call needs. Each provider maps tiers to concrete models.
type ModelTier string

const (
	// TierLite serves requirement extraction, topic discovery and role classification.
	TierLite ModelTier = "lite"
	// TierStandard serves compatibility scoring.
	TierStandard ModelTier = "standard"
	// TierAdvanced serves team placement reasoning.
	TierAdvanced ModelTier = "advanced"
)

// tierOrder lists tiers from cheapest to most capable.
var tierOrder = []ModelTier{TierLite, TierStandard, TierAdvanced}

// Valid reports whether t is a known tier.
func (t ModelTier) Valid() bool {
	for _, known := range tierOrder {
		if t == known {
			return true
		}
	}
	return false
}

// Provider represents an LLM provider
type Provider string

// Supported providers.
const (
	ProviderGemini    Provider = "gemini"
	ProviderAnthropic Provider = "anthropic"
)

// DefaultEmbeddingModel is the Gemini model used for profile embeddings.
const DefaultEmbeddingModel = "text-embedding-004"

var providerModels = map[Provider]map[ModelTier]string{
	ProviderGemini: {
		TierLite:     "gemini-2.5-flash-lite",
		TierStandard: "gemini-2.5-flash",
		TierAdvanced: "gemini-2.5-pro",
	},
	ProviderAnthropic: {
		TierLite:     "claude-3-5-haiku-20241022",
		TierStandard: "claude-sonnet-4-5-20250929",
		TierAdvanced: "claude-sonnet-4-5-20250929",
	},
}

// Config maps tiers to the models of one provider.
type Config struct {
	Provider Provider
	Models   map[ModelTier]string
}

// DefaultConfig returns the Gemini defaults.
func DefaultConfig() *Config {
	return ConfigFor(ProviderGemini, nil)
}

// ConfigFor returns the defaults of a provider with per-tier overrides applied. Unknown providers
// get the Gemini defaults and empty overrides are ignored.
func ConfigFor(provider Provider, overrides map[ModelTier]string) *Config {
	defaults, ok := providerModels[provider]
	if !ok {
		provider, defaults = ProviderGemini, providerModels[ProviderGemini]
	}
	c := &Config{Provider: provider, Models: maps.Clone(defaults)}
	for tier, model := range overrides {
		if model != "" {
			c.Models[tier] = model
		}
	}
	return c
}

// GetModel returns the model for tier. A tier without a model borrows the nearest cheaper
// configured tier, then the nearest more capable one. It returns "" when nothing is configured.
func (c *Config) GetModel(tier ModelTier) string {
	if model := c.Models[tier]; model != "" {
		return model
	}
	pos := len(tierOrder)
	for i, t := range tierOrder {
		if t == tier {
			pos = i
			break
		}
	}
	for i := min(pos, len(tierOrder)) - 1; i >= 0; i-- {
		if model := c.Models[tierOrder[i]]; model != "" {
			return model
		}
	}
	for i := pos + 1; i < len(tierOrder); i++ {
		if model := c.Models[tierOrder[i]]; model != "" {
			return model
		}
	}
	return ""
}

// WithModel returns a copy of c with tier mapped to model.
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	next := &Config{Provider: c.Provider, Models: maps.Clone(c.Models)}
	if next.Models == nil {
		next.Models = make(map[ModelTier]string)
	}
	next.Models[tier] = model
	return next
}
