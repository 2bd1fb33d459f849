package extraction

import (
	"context"
	"strings"
)

// LocationExtractor finds the place a free-text situation refers to.
type LocationExtractor interface {
	ExtractLocation(ctx context.Context, text string) (string, error)
}

// ExtractLocation returns the first location_text the provider extracts from
// text, or the whole trimmed text when none is stated.
func (e *LLMExtractor) ExtractLocation(ctx context.Context, text string) (string, error) {
	candidates, err := e.Extract(ctx, text, Context{})
	if err != nil {
		return "", err
	}
	for _, c := range candidates {
		if c.LocationText != nil {
			return *c.LocationText, nil
		}
	}
	return strings.TrimSpace(text), nil
}
