// Package matching ranks stored resources against a described emergency situation.
package matching

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/relief-intake/internal/extraction"
	"github.com/jonathan/relief-intake/internal/geo"
	"github.com/jonathan/relief-intake/internal/llm"
	"github.com/jonathan/relief-intake/internal/types"
)

// Situation is the emergency being matched against.
type Situation struct {
	Text             string
	IncidentLocation *geo.Point
}

// Ranker scores resources for a situation. Results are unordered; the
// Matcher sorts and truncates.
type Ranker interface {
	Rank(ctx context.Context, situation Situation, resources []types.Resource) ([]types.MatchResult, error)
}

// HeuristicRanker scores by negative distance plus a keyword category bonus.
type HeuristicRanker struct {
	geocoder geo.Geocoder
	locator  extraction.LocationExtractor
	rules    *Rules
	logger   *zap.Logger
	timeout  time.Duration
}

// NewHeuristicRanker creates a heuristic ranker. locator may be nil, in which
// case the whole situation text is geocoded when no incident point is given.
func NewHeuristicRanker(geocoder geo.Geocoder, locator extraction.LocationExtractor, rules *Rules, logger *zap.Logger, timeout time.Duration) *HeuristicRanker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rules == nil {
		rules = &Rules{Bonus: DefaultBonus}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HeuristicRanker{geocoder: geocoder, locator: locator, rules: rules, logger: logger, timeout: timeout}
}

// Rank implements Ranker. An unresolvable situation location yields an empty
// list. Resources without geometry are skipped. Only a rate limit from the
// location extractor is returned as an error.
func (h *HeuristicRanker) Rank(ctx context.Context, situation Situation, resources []types.Resource) ([]types.MatchResult, error) {
	origin, err := h.situationPoint(ctx, situation)
	if err != nil {
		return []types.MatchResult{}, err
	}
	if origin == nil {
		return []types.MatchResult{}, nil
	}

	relevance := h.rules.Relevant(situation.Text)
	results := make([]types.MatchResult, 0, len(resources))
	for i := range resources {
		r := &resources[i]
		if !geo.ValidPtr(r.LocationGeoJSON) {
			continue
		}

		dist := geo.Haversine(*origin, *r.LocationGeoJSON)
		score := -dist
		reason := fmt.Sprintf("%.1f km away", dist)
		if relevance.Matches(r.Category, r.Subcategory) {
			score += h.rules.Bonus
			reason += "; relevant to " + strings.Join(relevance.Matched, ", ")
		}

		results = append(results, types.MatchResult{
			ResourceID:     r.ID,
			RelevanceScore: score,
			Reason:         reason,
			Resource:       r,
		})
	}
	return results, nil
}

// situationPoint prefers the explicit incident point, then the place named in
// the text, then the whole text.
func (h *HeuristicRanker) situationPoint(ctx context.Context, situation Situation) (*geo.Point, error) {
	if geo.ValidPtr(situation.IncidentLocation) {
		return situation.IncidentLocation, nil
	}

	query := strings.TrimSpace(situation.Text)
	if h.locator != nil {
		loc, err := h.locator.ExtractLocation(ctx, situation.Text)
		switch {
		case llm.IsRateLimited(err):
			return nil, err
		case err != nil:
			h.logger.Warn("location extraction failed, geocoding whole situation", zap.Error(err))
		case loc != "":
			query = loc
		}
	}

	if h.geocoder == nil {
		return nil, nil
	}
	lookupCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	place, err := h.geocoder.Geocode(lookupCtx, query)
	if err != nil {
		h.logger.Info("situation location not resolved", zap.String("query", query), zap.Error(err))
		return nil, nil
	}
	return &place.Point, nil
}
