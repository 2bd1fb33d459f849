package matching

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/relief-intake/internal/extraction"
	"github.com/jonathan/relief-intake/internal/geo"
	"github.com/jonathan/relief-intake/internal/settings"
	"github.com/jonathan/relief-intake/internal/types"
)

// DefaultTopN is the number of matches returned when Options.TopN is zero.
const DefaultTopN = 10

// ResourceLister reads every stored resource.
type ResourceLister interface {
	ListResources(ctx context.Context) ([]types.Resource, error)
}

// Options configures a Matcher
type Options struct {
	Resources ResourceLister
	Settings  settings.Store
	Clients   settings.ClientSource
	Geocoder  geo.Geocoder
	Rules     *Rules
	Logger    *zap.Logger

	// Strategy pins the ranking strategy for the deployment. Empty defers to
	// the settings record, and then to heuristic.
	Strategy       types.MatchStrategy
	TopN           int
	GeocodeTimeout time.Duration
}

// Matcher ranks stored resources against a situation with one strategy.
type Matcher struct {
	opts   Options
	logger *zap.Logger
}

// NewMatcher creates a Matcher
func NewMatcher(opts Options) *Matcher {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	return &Matcher{opts: opts, logger: logger}
}

// Match returns at most TopN results, highest score first, ties by ascending
// resource id. An empty situation is an *types.InvalidInputError. A rate limit
// switches the active provider and is returned.
func (m *Matcher) Match(ctx context.Context, situation Situation) ([]types.MatchResult, error) {
	if strings.TrimSpace(situation.Text) == "" {
		return nil, &types.InvalidInputError{Field: "situation", Message: "situation text is empty"}
	}

	sel, err := settings.Select(ctx, m.opts.Settings)
	if err != nil {
		return nil, err
	}
	strategy := m.strategy(sel.Settings)
	log := m.logger.With(
		zap.String("strategy", string(strategy)),
		zap.String("provider", string(sel.Provider)))

	resources, err := m.opts.Resources.ListResources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}

	ranker, err := m.ranker(ctx, strategy, sel, log)
	if err != nil {
		return nil, err
	}

	results, err := ranker.Rank(ctx, situation, resources)
	if err != nil {
		settings.SwitchOnRateLimit(ctx, m.opts.Settings, sel, err, log)
		return nil, err
	}

	SortResults(results)
	if len(results) > m.opts.TopN {
		results = results[:m.opts.TopN]
	}
	log.Info("match complete", zap.Int("resources", len(resources)), zap.Int("results", len(results)))
	return results, nil
}

func (m *Matcher) strategy(s *types.Settings) types.MatchStrategy {
	if m.opts.Strategy.Valid() {
		return m.opts.Strategy
	}
	if s != nil && s.MatchStrategy.Valid() {
		return s.MatchStrategy
	}
	return types.MatchHeuristic
}

func (m *Matcher) ranker(ctx context.Context, strategy types.MatchStrategy, sel *settings.Selection, log *zap.Logger) (Ranker, error) {
	if strategy == types.MatchProvider {
		client, err := sel.Client(ctx, m.opts.Clients)
		if err != nil {
			return nil, err
		}
		return NewLLMRanker(client, log), nil
	}

	// The heuristic ranker degrades to geocoding the whole text without a provider.
	var locator extraction.LocationExtractor
	if m.opts.Clients != nil {
		client, err := sel.Client(ctx, m.opts.Clients)
		if err != nil {
			log.Warn("no provider for location extraction", zap.Error(err))
		} else {
			locator = extraction.NewLLMExtractor(client, log)
		}
	}
	rules := m.opts.Rules
	if rules == nil {
		var err error
		if rules, err = DefaultRules(); err != nil {
			return nil, err
		}
	}
	return NewHeuristicRanker(m.opts.Geocoder, locator, rules, log, m.opts.GeocodeTimeout), nil
}

// SortResults orders by score descending, then resource id ascending.
func SortResults(results []types.MatchResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].RelevanceScore != results[j].RelevanceScore {
			return results[i].RelevanceScore > results[j].RelevanceScore
		}
		return results[i].ResourceID < results[j].ResourceID
	})
}

var (
	_ Ranker = (*HeuristicRanker)(nil)
	_ Ranker = (*LLMRanker)(nil)
)
