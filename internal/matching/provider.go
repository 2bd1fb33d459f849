package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/jonathan/relief-intake/internal/geo"
	"github.com/jonathan/relief-intake/internal/llm"
	"github.com/jonathan/relief-intake/internal/prompts"
	"github.com/jonathan/relief-intake/internal/schemas"
	"github.com/jonathan/relief-intake/internal/types"
)

// LLMRanker asks a reasoning provider to rank the unflagged resources.
type LLMRanker struct {
	client llm.Client
	logger *zap.Logger
}

// NewLLMRanker creates a provider-backed ranker.
func NewLLMRanker(client llm.Client, logger *zap.Logger) *LLMRanker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMRanker{client: client, logger: logger}
}

type rankingItem struct {
	ResourceID   int64    `json:"resource_id"`
	Name         string   `json:"name"`
	Category     *string  `json:"category"`
	Subcategory  *string  `json:"subcategory"`
	Quantity     *int     `json:"quantity"`
	LocationText *string  `json:"location_text"`
	DistanceKM   *float64 `json:"distance_km"`
}

type rankedMatch struct {
	ResourceID     int64   `json:"resource_id"`
	RelevanceScore float64 `json:"relevance_score"`
	Reason         string  `json:"reason"`
}

type rankingResponse struct {
	Matches []rankedMatch `json:"matches"`
}

// Rank implements Ranker. Flagged resources are never sent and never returned.
// A provider failure yields an empty list; a rate limit is also returned as
// the error so the caller can switch providers.
func (l *LLMRanker) Rank(ctx context.Context, situation Situation, resources []types.Resource) ([]types.MatchResult, error) {
	byID := make(map[int64]*types.Resource, len(resources))
	items := make([]rankingItem, 0, len(resources))
	for i := range resources {
		r := &resources[i]
		if r.Flagged {
			continue
		}
		byID[r.ID] = r
		items = append(items, toRankingItem(r, situation.IncidentLocation))
	}
	if len(items) == 0 {
		return []types.MatchResult{}, nil
	}

	matches, err := l.requestRanking(ctx, situation.Text, items)
	if err != nil {
		l.logger.Warn("provider ranking failed, returning no matches",
			zap.String("provider", string(l.client.Provider())),
			zap.Int("candidates", len(items)),
			zap.Error(err))
		if llm.IsRateLimited(err) {
			return []types.MatchResult{}, err
		}
		return []types.MatchResult{}, nil
	}

	results := make([]types.MatchResult, 0, len(matches))
	seen := make(map[int64]bool, len(matches))
	for _, m := range matches {
		r, ok := byID[m.ResourceID]
		if !ok || seen[m.ResourceID] {
			continue
		}
		seen[m.ResourceID] = true
		results = append(results, types.MatchResult{
			ResourceID:     m.ResourceID,
			RelevanceScore: clamp01(m.RelevanceScore),
			Reason:         m.Reason,
			Resource:       r,
		})
	}
	return results, nil
}

func (l *LLMRanker) requestRanking(ctx context.Context, situation string, items []rankingItem) ([]rankedMatch, error) {
	itemsJSON, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode ranking candidates: %w", err)
	}

	system, err := prompts.Get("matching.json", "system")
	if err != nil {
		return nil, err
	}
	user, err := prompts.Render("matching.json", "user", map[string]string{
		"Situation":  situation,
		"Candidates": string(itemsJSON),
	})
	if err != nil {
		return nil, err
	}

	schema := schemas.Ranking()
	responseText, err := l.client.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		UserPayload:  user,
		SchemaName:   schema.Name,
		Schema:       schema.Document,
		Tier:         llm.TierStandard,
	})
	if err != nil {
		return nil, llm.Classify(l.client.Provider(), err)
	}

	if err := schema.Validate(responseText); err != nil {
		return nil, &llm.ProviderError{Provider: l.client.Provider(), Message: "ranking response violates schema", Cause: err}
	}
	var resp rankingResponse
	if err := json.Unmarshal([]byte(responseText), &resp); err != nil {
		return nil, &llm.ProviderError{Provider: l.client.Provider(), Message: "failed to decode ranking response", Cause: err}
	}
	return resp.Matches, nil
}

func toRankingItem(r *types.Resource, incident *geo.Point) rankingItem {
	item := rankingItem{
		ResourceID:   r.ID,
		Name:         r.Name,
		Quantity:     r.Quantity,
		LocationText: r.LocationText,
	}
	if r.Category != nil {
		s := string(*r.Category)
		item.Category = &s
	}
	if r.Subcategory != nil {
		s := string(*r.Subcategory)
		item.Subcategory = &s
	}
	if geo.ValidPtr(incident) && geo.ValidPtr(r.LocationGeoJSON) {
		d := geo.RoundKM(geo.Haversine(*incident, *r.LocationGeoJSON))
		item.DistanceKM = &d
	}
	return item
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
