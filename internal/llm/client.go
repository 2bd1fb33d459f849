package llm

import (
	"context"
	"fmt"
)

// CompletionRequest is one schema-constrained call to a provider.
type CompletionRequest struct {
	SystemPrompt string
	UserPayload  string
	// SchemaName labels the response schema for providers that require one.
	SchemaName string
	// Schema is a JSON Schema document the response must conform to.
	Schema map[string]any
	Tier   ModelTier
}

// Client is an abstraction over reasoning providers
type Client interface {
	// Complete returns the provider's JSON response text for req
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	// Provider identifies the backing provider
	Provider() Provider
	// Close releases any resources held by the client
	Close() error
}

// Credentials carries the secrets and endpoints needed to construct clients.
type Credentials struct {
	OpenAIAPIKey string
	GeminiAPIKey string
	LocalAPIKey  string
}

// NewClient creates a new client based on configuration
func NewClient(ctx context.Context, config *Config, creds Credentials) (Client, error) {
	if config == nil {
		config = DefaultOpenAIConfig()
	}

	switch config.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(config, creds.OpenAIAPIKey)
	case ProviderLocal:
		return NewLocalClient(config, creds.LocalAPIKey)
	case ProviderGemini:
		return NewGeminiClient(ctx, config, creds.GeminiAPIKey)
	default:
		return nil, fmt.Errorf("unsupported provider %q", config.Provider)
	}
}
