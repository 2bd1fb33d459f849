package matching

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/jonathan/relief-intake/internal/types"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// DefaultBonus is added to the score of a category-relevant resource.
const DefaultBonus = 100.0

// Rule makes a set of taxonomy targets relevant when any keyword occurs in the situation.
type Rule struct {
	Name     string
	Keywords []string
	Targets  []Target
}

// Target is a category, optionally narrowed to one subcategory.
type Target struct {
	Category    types.Category
	Subcategory *types.Subcategory
}

// Rules is the keyword-to-category mapping used by the heuristic ranker.
type Rules struct {
	Bonus float64
	Rules []Rule
}

type rulesFile struct {
	Bonus *float64 `yaml:"bonus"`
	Rules []struct {
		Name     string   `yaml:"name"`
		Keywords []string `yaml:"keywords"`
		Targets  []string `yaml:"targets"`
	} `yaml:"rules"`
}

// ParseRules decodes a rules document. Every target must be in the taxonomy.
func ParseRules(data []byte) (*Rules, error) {
	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}

	rules := &Rules{Bonus: DefaultBonus}
	if file.Bonus != nil {
		rules.Bonus = *file.Bonus
	}

	for _, fr := range file.Rules {
		rule := Rule{Name: fr.Name}
		for _, kw := range fr.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				rule.Keywords = append(rule.Keywords, kw)
			}
		}
		if len(rule.Keywords) == 0 {
			return nil, fmt.Errorf("rule %q has no keywords", fr.Name)
		}
		for _, raw := range fr.Targets {
			target, err := parseTarget(raw)
			if err != nil {
				return nil, fmt.Errorf("rule %q: %w", fr.Name, err)
			}
			rule.Targets = append(rule.Targets, target)
		}
		rules.Rules = append(rules.Rules, rule)
	}
	return rules, nil
}

// LoadRules reads a rules document from path.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}
	return ParseRules(data)
}

var (
	defaultRulesOnce sync.Once
	defaultRules     *Rules
	defaultRulesErr  error
)

// DefaultRules returns the embedded rules.
func DefaultRules() (*Rules, error) {
	defaultRulesOnce.Do(func() {
		defaultRules, defaultRulesErr = ParseRules(defaultRulesYAML)
	})
	return defaultRules, defaultRulesErr
}

func parseTarget(raw string) (Target, error) {
	catText, subText, hasSub := strings.Cut(strings.TrimSpace(raw), "/")
	cat, err := types.ParseCategory(catText)
	if err != nil {
		return Target{}, err
	}
	t := Target{Category: cat}
	if hasSub {
		sub, err := types.ParseSubcategory(subText)
		if err != nil {
			return Target{}, err
		}
		if !types.SubcategoryBelongsTo(sub, cat) {
			return Target{}, fmt.Errorf("subcategory %s does not belong to %s", sub, cat)
		}
		t.Subcategory = &sub
	}
	return t, nil
}

// Relevance is the set of targets a situation makes relevant.
type Relevance struct {
	Matched []string
	targets []Target
}

// Relevant returns the targets of every rule with a keyword in text.
func (r *Rules) Relevant(text string) Relevance {
	lower := strings.ToLower(text)
	var rel Relevance
	for _, rule := range r.Rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				rel.Matched = append(rel.Matched, rule.Name)
				rel.targets = append(rel.targets, rule.Targets...)
				break
			}
		}
	}
	return rel
}

// Matches reports whether a resource with the given category and subcategory is relevant.
func (rel Relevance) Matches(cat *types.Category, sub *types.Subcategory) bool {
	if cat == nil {
		return false
	}
	for _, t := range rel.targets {
		if t.Category != *cat {
			continue
		}
		if t.Subcategory == nil || (sub != nil && *t.Subcategory == *sub) {
			return true
		}
	}
	return false
}
