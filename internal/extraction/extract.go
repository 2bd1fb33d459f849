// Package extraction turns free-text reports into taxonomy-conforming resource candidates
// with one schema-constrained provider call.
package extraction

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/relief-intake/internal/llm"
	"github.com/jonathan/relief-intake/internal/prompts"
	"github.com/jonathan/relief-intake/internal/schemas"
	"github.com/jonathan/relief-intake/internal/types"
)

// Context restricts the vocabulary offered to the provider.
// Empty slices mean the full taxonomy.
type Context struct {
	Categories    []types.Category
	Subcategories []types.Subcategory
}

// DefaultContext returns the full taxonomy.
func DefaultContext() Context {
	return Context{Categories: types.Categories(), Subcategories: types.Subcategories()}
}

func (c Context) resolved() Context {
	if len(c.Categories) == 0 {
		c.Categories = types.Categories()
	}
	if len(c.Subcategories) == 0 {
		c.Subcategories = types.Subcategories()
	}
	return c
}

func (c Context) allowsCategory(cat types.Category) bool {
	for _, known := range c.Categories {
		if known == cat {
			return true
		}
	}
	return false
}

// Extractor produces resource candidates from a report.
type Extractor interface {
	Extract(ctx context.Context, text string, ec Context) ([]types.ResourceCandidate, error)
}

// LLMExtractor implements Extractor with a reasoning provider.
type LLMExtractor struct {
	client llm.Client
	logger *zap.Logger
}

// NewLLMExtractor creates an extractor backed by client. A nil logger disables logging.
func NewLLMExtractor(client llm.Client, logger *zap.Logger) *LLMExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMExtractor{client: client, logger: logger}
}

// rawResource mirrors one entry of the extraction response schema.
type rawResource struct {
	Category           string  `json:"category"`
	Subcategory        *string `json:"subcategory"`
	Name               string  `json:"name"`
	Quantity           *int    `json:"quantity"`
	NumAvailablePeople *int    `json:"num_available_people"`
	LocationText       *string `json:"location_text"`
	PhoneNumber        *string `json:"phone_number"`
	Email              *string `json:"email"`
	FirstName          *string `json:"first_name"`
	LastName           *string `json:"last_name"`
}

type extractionResponse struct {
	Resources []rawResource `json:"resources"`
}

// Extract runs one provider call and returns the valid candidates with Index
// assigned in provider order. Empty text is an InvalidInputError; provider
// failure or a schema violation is a *llm.ProviderError.
func (e *LLMExtractor) Extract(ctx context.Context, text string, ec Context) ([]types.ResourceCandidate, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &types.InvalidInputError{Field: "text", Message: "report text is empty"}
	}
	ec = ec.resolved()

	system, err := prompts.Render("extraction.json", "system", map[string]string{
		"Categories":    joinCategories(ec.Categories),
		"Subcategories": joinSubcategories(ec.Subcategories),
	})
	if err != nil {
		return nil, err
	}
	user, err := prompts.Render("extraction.json", "user", map[string]string{"Text": text})
	if err != nil {
		return nil, err
	}

	schema := schemas.Extraction()
	responseText, err := e.client.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		UserPayload:  user,
		SchemaName:   schema.Name,
		Schema:       schema.Document,
		Tier:         llm.TierStandard,
	})
	if err != nil {
		return nil, llm.Classify(e.client.Provider(), err)
	}

	raw, err := parseResponse(responseText)
	if err != nil {
		return nil, &llm.ProviderError{Provider: e.client.Provider(), Message: "extraction response violates schema", Cause: err}
	}

	candidates := make([]types.ResourceCandidate, 0, len(raw))
	for i, r := range raw {
		c, reason := toCandidate(r, ec)
		if reason != "" {
			e.logger.Warn("dropping extracted item",
				zap.Int("position", i),
				zap.String("name", r.Name),
				zap.String("reason", reason))
			continue
		}
		c.Index = len(candidates)
		candidates = append(candidates, c)
	}

	e.logger.Debug("extraction complete",
		zap.String("provider", string(e.client.Provider())),
		zap.Int("returned", len(raw)),
		zap.Int("kept", len(candidates)))
	return candidates, nil
}

// parseResponse validates responseText against the extraction schema and decodes it.
func parseResponse(responseText string) ([]rawResource, error) {
	if err := schemas.Extraction().Validate(responseText); err != nil {
		return nil, err
	}
	var resp extractionResponse
	if err := json.Unmarshal([]byte(responseText), &resp); err != nil {
		return nil, err
	}
	return resp.Resources, nil
}

// toCandidate converts a decoded item. A non-empty reason means the item is dropped.
func toCandidate(r rawResource, ec Context) (types.ResourceCandidate, string) {
	cat, err := types.ParseCategory(r.Category)
	if err != nil {
		return types.ResourceCandidate{}, err.Error()
	}
	if !ec.allowsCategory(cat) {
		return types.ResourceCandidate{}, "category outside extraction context"
	}

	c := types.ResourceCandidate{
		Category:           cat,
		Name:               r.Name,
		Quantity:           r.Quantity,
		NumAvailablePeople: r.NumAvailablePeople,
		LocationText:       cleanString(r.LocationText),
		PhoneNumber:        cleanString(r.PhoneNumber),
		Email:              cleanString(r.Email),
		FirstName:          cleanString(r.FirstName),
		LastName:           cleanString(r.LastName),
	}

	// A subcategory that does not belong to the category is cleared, not remapped.
	if s := cleanString(r.Subcategory); s != nil {
		if sub, err := types.ParseSubcategory(*s); err == nil && types.SubcategoryBelongsTo(sub, cat) {
			c.Subcategory = &sub
		}
	}

	c.Normalize()
	if err := types.ValidateCandidate(&c); err != nil {
		return types.ResourceCandidate{}, err.Error()
	}
	return c, ""
}

func cleanString(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func joinCategories(cats []types.Category) string {
	parts := make([]string, len(cats))
	for i, c := range cats {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}

func joinSubcategories(subs []types.Subcategory) string {
	parts := make([]string, len(subs))
	for i, s := range subs {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
