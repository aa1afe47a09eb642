// Package config loads the sourcing agent configuration from a YAML file, the environment and
// command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/jonathan/talent-sourcer/internal/llm"
	"github.com/jonathan/talent-sourcer/internal/server/ratelimit"
)

// AppName is the config file base name and binary name.
const AppName = "sourcing_agent"

// EnvPrefix prefixes environment overrides, e.g. SOURCER_SERVER_PORT.
const EnvPrefix = "SOURCER"

// Defaults.
const (
	DefaultAgent            = "sourcing_agent"
	DefaultLearningRate     = 0.1
	DefaultAdapterTimeout   = 30 * time.Second
	DefaultReasoningTimeout = 60 * time.Second
	DefaultPort             = 8080
	DefaultJWTExpiration    = 24
	DefaultMaxResults       = 10
	DefaultQueriesPerRun    = 3
	DefaultRequestsPerSec   = 1.0
)

// Config is the complete application configuration.
type Config struct {
	DatabaseURL string           `mapstructure:"database_url"`
	LLM         LLMConfig        `mapstructure:"llm"`
	Discovery   DiscoveryConfig  `mapstructure:"discovery"`
	Adapters    AdapterConfig    `mapstructure:"adapters"`
	Learning    LearningConfig   `mapstructure:"learning"`
	Server      ServerConfig     `mapstructure:"server"`
	Log         LogConfig        `mapstructure:"log"`
	Enrichment  EnrichmentConfig `mapstructure:"enrichment"`
	RateLimit   RateLimitConfig  `mapstructure:"rate_limit"`
}

// LLMConfig selects the generative model provider.
type LLMConfig struct {
	Provider        string            `mapstructure:"provider" validate:"oneof=gemini anthropic"`
	GeminiAPIKey    string            `mapstructure:"gemini_api_key"`
	AnthropicAPIKey string            `mapstructure:"anthropic_api_key"`
	Models          map[string]string `mapstructure:"models"` // tier -> model override
}

// DiscoveryConfig configures the X recent search source.
type DiscoveryConfig struct {
	BearerToken    string  `mapstructure:"bearer_token"`
	MaxResults     int     `mapstructure:"max_results" validate:"min=10,max=100"`
	QueriesPerRun  int     `mapstructure:"queries_per_run" validate:"min=1"`
	RequestsPerSec float64 `mapstructure:"requests_per_second" validate:"gt=0"`
}

// AdapterConfig bounds calls to external collaborators.
type AdapterConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	ReasoningTimeout time.Duration `mapstructure:"reasoning_timeout"`
}

// LearningConfig configures the adaptive learning engine.
type LearningConfig struct {
	Agent        string  `mapstructure:"agent" validate:"required"`
	LearningRate float64 `mapstructure:"learning_rate" validate:"gt=0,lte=1"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port               int    `mapstructure:"port" validate:"min=1,max=65535"`
	JWTSecret          string `mapstructure:"jwt_secret"`
	JWTExpirationHours int    `mapstructure:"jwt_expiration_hours" validate:"min=1"`
}

// LogConfig selects the logger encoding and level.
type LogConfig struct {
	JSON  bool `mapstructure:"json"`
	Debug bool `mapstructure:"debug"`
}

// EnrichmentConfig configures candidate enrichment.
type EnrichmentConfig struct {
	ProfilesPath   string `mapstructure:"profiles_path"`
	FetchHomepages bool   `mapstructure:"fetch_homepages"`
	UseBrowser     bool   `mapstructure:"use_browser"`
}

// RateLimitConfig configures per-client limits on the HTTP API. Route rules are built in; these
// settings cover every other route.
type RateLimitConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	DefaultLimit    int           `mapstructure:"default_limit" validate:"min=0"`
	DefaultWindow   time.Duration `mapstructure:"default_window"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	Allow           []string      `mapstructure:"allow"`
	Deny            []string      `mapstructure:"deny"`
}

// Limiter converts the settings for the server's limiter.
func (c RateLimitConfig) Limiter() *ratelimit.Config {
	return &ratelimit.Config{
		Enabled:         c.Enabled,
		DefaultLimit:    c.DefaultLimit,
		DefaultWindow:   c.DefaultWindow,
		CleanupInterval: c.CleanupInterval,
		Allow:           c.Allow,
		Deny:            c.Deny,
		Rules:           ratelimit.DefaultRules(),
	}
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", string(llm.ProviderGemini))
	v.SetDefault("discovery.max_results", DefaultMaxResults)
	v.SetDefault("discovery.queries_per_run", DefaultQueriesPerRun)
	v.SetDefault("discovery.requests_per_second", DefaultRequestsPerSec)
	v.SetDefault("adapters.timeout", DefaultAdapterTimeout)
	v.SetDefault("adapters.reasoning_timeout", DefaultReasoningTimeout)
	v.SetDefault("learning.agent", DefaultAgent)
	v.SetDefault("learning.learning_rate", DefaultLearningRate)
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.jwt_expiration_hours", DefaultJWTExpiration)
	v.SetDefault("log.json", false)
	v.SetDefault("log.debug", false)
	v.SetDefault("enrichment.fetch_homepages", false)
	v.SetDefault("enrichment.use_browser", false)

	rl := ratelimit.DefaultConfig()
	v.SetDefault("rate_limit.enabled", rl.Enabled)
	v.SetDefault("rate_limit.default_limit", rl.DefaultLimit)
	v.SetDefault("rate_limit.default_window", rl.DefaultWindow)
	v.SetDefault("rate_limit.cleanup_interval", rl.CleanupInterval)
	v.SetDefault("rate_limit.allow", []string{})
	v.SetDefault("rate_limit.deny", []string{})
}

// envAliases lists the conventional unprefixed environment names accepted alongside SOURCER_*.
var envAliases = map[string][]string{
	"database_url":                {"DATABASE_URL"},
	"llm.gemini_api_key":          {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"llm.anthropic_api_key":       {"ANTHROPIC_API_KEY"},
	"llm.provider":                {"LLM_PROVIDER"},
	"discovery.bearer_token":      {"X_BEARER_TOKEN"},
	"server.jwt_secret":           {"JWT_SECRET"},
	"server.jwt_expiration_hours": {"JWT_EXPIRATION_HOURS"},
	"server.port":                 {"PORT"},
	"rate_limit.enabled":          {"RATE_LIMIT_ENABLED"},
	"rate_limit.default_limit":    {"RATE_LIMIT_DEFAULT_LIMIT"},
	"rate_limit.default_window":   {"RATE_LIMIT_DEFAULT_WINDOW"},
	"rate_limit.allow":            {"RATE_LIMIT_WHITELIST"},
	"rate_limit.deny":             {"RATE_LIMIT_BLACKLIST"},
}

// NewViper returns a viper instance with defaults and environment bindings. When cfgFile is set it
// must exist; otherwise sourcing_agent.yaml in the working directory is read if present.
func NewViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		args := append([]string{key, EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
		}
		return v, nil
	}

	v.SetConfigName(AppName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return v, nil
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags and cross-field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if c.Adapters.Timeout <= 0 {
		return fmt.Errorf("config error: 'adapters.timeout' must be positive")
	}
	if c.Adapters.ReasoningTimeout <= 0 {
		return fmt.Errorf("config error: 'adapters.reasoning_timeout' must be positive")
	}
	if c.RateLimit.Enabled && c.RateLimit.DefaultWindow <= 0 {
		return fmt.Errorf("config error: 'rate_limit.default_window' must be positive")
	}
	for tier := range c.LLM.Models {
		if !llm.ModelTier(tier).Valid() {
			return fmt.Errorf("config error: unknown model tier %q in 'llm.models'", tier)
		}
	}
	return nil
}

// APIKey returns the key of the selected provider.
func (c LLMConfig) APIKey() string {
	if llm.Provider(c.Provider) == llm.ProviderAnthropic {
		return c.AnthropicAPIKey
	}
	return c.GeminiAPIKey
}

// Enabled reports whether a model is configured. Without one, adapters return labelled stubs.
func (c LLMConfig) Enabled() bool {
	return c.APIKey() != ""
}

// ModelConfig returns the provider defaults with the configured tier overrides applied.
func (c LLMConfig) ModelConfig() *llm.Config {
	overrides := make(map[llm.ModelTier]string, len(c.Models))
	for tier, model := range c.Models {
		overrides[llm.ModelTier(tier)] = model
	}
	return llm.ConfigFor(llm.Provider(c.Provider), overrides)
}

// JWT returns the token settings, or nil when no secret is configured and auth is disabled.
func (c ServerConfig) JWT() *JWTConfig {
	if c.JWTSecret == "" {
		return nil
	}
	return &JWTConfig{Secret: c.JWTSecret, ExpirationHours: c.JWTExpirationHours}
}
