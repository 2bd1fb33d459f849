package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient implements Client for Google Gemini
type GeminiClient struct {
	client *genai.Client
	config *Config
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		config: config,
	}, nil
}

// Complete generates JSON content constrained by req.Schema
func (c *GeminiClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	modelName := c.config.GetModel(req.Tier)
	if modelName == "" {
		return "", &ProviderError{Provider: ProviderGemini, Message: fmt.Sprintf("no model configured for tier %s", req.Tier)}
	}

	model := c.client.GenerativeModel(modelName)
	model.SetTemperature(0)
	model.ResponseMIMEType = "application/json"
	if req.SystemPrompt != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.SystemPrompt))
	}
	if req.Schema != nil {
		schema, err := ToGenaiSchema(req.Schema)
		if err != nil {
			return "", &ProviderError{Provider: ProviderGemini, Message: "unsupported response schema", Cause: err}
		}
		model.ResponseSchema = schema
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.UserPayload))
	if err != nil {
		return "", Classify(ProviderGemini, err)
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return "", &ProviderError{Provider: ProviderGemini, Message: "empty response", Cause: err}
	}

	return CleanJSONBlock(text), nil
}

// Provider identifies the backing provider
func (c *GeminiClient) Provider() Provider {
	return ProviderGemini
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// extractTextFromResponse extracts text from Gemini API response
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}

	return strings.Join(parts, ""), nil
}

// ToGenaiSchema converts a JSON Schema document into Gemini's schema subset.
// Nullable unions like ["string","null"] become Nullable schemas; null enum members are dropped.
func ToGenaiSchema(doc map[string]any) (*genai.Schema, error) {
	s := &genai.Schema{}

	typeName, nullable, err := schemaType(doc["type"])
	if err != nil {
		return nil, err
	}
	s.Nullable = nullable

	switch typeName {
	case "string":
		s.Type = genai.TypeString
	case "integer":
		s.Type = genai.TypeInteger
	case "number":
		s.Type = genai.TypeNumber
	case "boolean":
		s.Type = genai.TypeBoolean
	case "array":
		s.Type = genai.TypeArray
		items, ok := doc["items"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("array schema without items")
		}
		itemSchema, err := ToGenaiSchema(items)
		if err != nil {
			return nil, fmt.Errorf("items: %w", err)
		}
		s.Items = itemSchema
	case "object":
		s.Type = genai.TypeObject
		props, _ := doc["properties"].(map[string]any)
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			child, ok := raw.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("property %s is not an object", name)
			}
			childSchema, err := ToGenaiSchema(child)
			if err != nil {
				return nil, fmt.Errorf("property %s: %w", name, err)
			}
			s.Properties[name] = childSchema
		}
		s.Required = stringList(doc["required"])
	default:
		return nil, fmt.Errorf("unsupported schema type %q", typeName)
	}

	if desc, ok := doc["description"].(string); ok {
		s.Description = desc
	}
	if enum := stringList(doc["enum"]); len(enum) > 0 {
		s.Enum = enum
		if s.Format == "" && s.Type == genai.TypeString {
			s.Format = "enum"
		}
	}

	return s, nil
}

func schemaType(raw any) (string, bool, error) {
	switch t := raw.(type) {
	case string:
		return t, false, nil
	case []string:
		return pickType(t)
	case []any:
		names := make([]string, 0, len(t))
		for _, v := range t {
			if s, ok := v.(string); ok {
				names = append(names, s)
			}
		}
		return pickType(names)
	default:
		return "", false, fmt.Errorf("schema has no type")
	}
}

func pickType(names []string) (string, bool, error) {
	var chosen string
	nullable := false
	for _, n := range names {
		if n == "null" {
			nullable = true
			continue
		}
		if chosen != "" {
			return "", false, fmt.Errorf("union type %v not supported", names)
		}
		chosen = n
	}
	if chosen == "" {
		return "", false, fmt.Errorf("schema has no concrete type")
	}
	return chosen, nullable, nil
}

// stringList reads []string or []any, skipping non-string members such as null.
func stringList(raw any) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
