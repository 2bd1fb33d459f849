package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient implements Client for the OpenAI chat completions API and for
// local inference servers that speak the same protocol.
type OpenAIClient struct {
	client openai.Client
	config *Config
}

// NewOpenAIClient creates a client for the hosted OpenAI API
func NewOpenAIClient(config *Config, apiKey string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(1)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &OpenAIClient{
		client: openai.NewClient(opts...),
		config: config,
	}, nil
}

// NewLocalClient creates a client for an OpenAI-compatible local endpoint.
// Local servers usually ignore the key, so a placeholder is sent when none is set.
func NewLocalClient(config *Config, apiKey string) (*OpenAIClient, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required for the local provider")
	}
	if apiKey == "" {
		apiKey = "local"
	}

	return &OpenAIClient{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(config.BaseURL),
			option.WithMaxRetries(0),
		),
		config: config,
	}, nil
}

// Complete sends one chat completion with a strict JSON schema response format
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	modelName := c.config.GetModel(req.Tier)
	if modelName == "" {
		return "", &ProviderError{Provider: c.config.Provider, Message: fmt.Sprintf("no model configured for tier %s", req.Tier)}
	}

	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.SystemPrompt),
			openai.UserMessage(req.UserPayload),
		},
		Model:       openai.ChatModel(modelName),
		Temperature: openai.Float(0),
	}
	if req.Schema != nil {
		name := req.SchemaName
		if name == "" {
			name = "response"
		}
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   name,
					Schema: req.Schema,
					Strict: openai.Bool(true),
				},
			},
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", Classify(c.config.Provider, err)
	}
	if len(resp.Choices) == 0 {
		return "", &ProviderError{Provider: c.config.Provider, Message: "no choices in response"}
	}

	return CleanJSONBlock(resp.Choices[0].Message.Content), nil
}

// Provider identifies the backing provider
func (c *OpenAIClient) Provider() Provider {
	return c.config.Provider
}

// Close is a no-op; the HTTP client holds no per-client resources.
func (c *OpenAIClient) Close() error {
	return nil
}
