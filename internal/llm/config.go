// Package llm provides centralized reasoning-provider configuration and client abstractions.
// Callers depend on Client; the concrete provider is chosen at run time from the settings record.
package llm

import (
	"fmt"
	"strings"
)

// ModelTier represents the complexity/capability level of a model
type ModelTier string

const (
	// TierLite is for simple tasks: auditing, location extraction
	TierLite ModelTier = "lite"
	// TierStandard is for structured extraction and ranking
	TierStandard ModelTier = "standard"
	// TierAdvanced is for complex reasoning
	TierAdvanced ModelTier = "advanced"
)

// Provider represents a reasoning provider
type Provider string

// Provider constants define supported providers
const (
	// ProviderOpenAI is the hosted OpenAI API
	ProviderOpenAI Provider = "openai"
	// ProviderLocal is a self-hosted model behind an OpenAI-compatible endpoint
	ProviderLocal Provider = "local"
	// ProviderGemini is the Google Gemini provider
	ProviderGemini Provider = "gemini"
)

// Providers returns every supported provider.
func Providers() []Provider {
	return []Provider{ProviderOpenAI, ProviderLocal, ProviderGemini}
}

// Valid reports whether p is a supported provider.
func (p Provider) Valid() bool {
	for _, known := range Providers() {
		if p == known {
			return true
		}
	}
	return false
}

// DefaultFallback is the provider switched to when p is rate limited and no
// explicit fallback is configured.
func (p Provider) DefaultFallback() Provider {
	switch p {
	case ProviderLocal:
		return ProviderOpenAI
	default:
		return ProviderLocal
	}
}

// ParseProvider resolves a case-insensitive provider name.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown provider %q", s)
	}
	return p, nil
}

// Config holds the model configuration for one provider
type Config struct {
	Provider Provider
	Models   map[ModelTier]string
	// BaseURL overrides the API endpoint. Required for ProviderLocal.
	BaseURL string
}

// DefaultConfig returns the default configuration for a provider
func DefaultConfig(p Provider) *Config {
	switch p {
	case ProviderGemini:
		return DefaultGeminiConfig()
	case ProviderLocal:
		return DefaultLocalConfig()
	default:
		return DefaultOpenAIConfig()
	}
}

// DefaultOpenAIConfig returns the default OpenAI configuration
func DefaultOpenAIConfig() *Config {
	return &Config{
		Provider: ProviderOpenAI,
		Models: map[ModelTier]string{
			TierLite:     "gpt-4o-mini",
			TierStandard: "gpt-4o-mini",
			TierAdvanced: "gpt-4o",
		},
	}
}

// DefaultLocalConfig returns the default local-model configuration
func DefaultLocalConfig() *Config {
	return &Config{
		Provider: ProviderLocal,
		Models: map[ModelTier]string{
			TierStandard: "phi3.5",
		},
		BaseURL: "http://localhost:11434/v1",
	}
}

// DefaultGeminiConfig returns the default Gemini configuration
func DefaultGeminiConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
	}
}

// GetModel returns the model name for a given tier
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	// Fallback chain: try standard, then lite
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return "" // No model configured
}

// WithModel returns a new Config with a specific model for a tier
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	newConfig := &Config{
		Provider: c.Provider,
		Models:   make(map[ModelTier]string),
		BaseURL:  c.BaseURL,
	}
	for k, v := range c.Models {
		newConfig.Models[k] = v
	}
	newConfig.Models[tier] = model
	return newConfig
}

// WithAllModels returns a new Config that uses model for every tier.
// Used when the settings record pins a single model per provider.
func (c *Config) WithAllModels(model string) *Config {
	if model == "" {
		return c
	}
	out := c
	for _, tier := range []ModelTier{TierLite, TierStandard, TierAdvanced} {
		out = out.WithModel(tier, model)
	}
	return out
}
