package schemas

import (
	"sort"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/jonathan/relief-intake/internal/types"
)

// Definition is a named response schema compiled once on first use.
// Documents follow the strict structured-output subset: every property is
// required, optional values are nullable, and no additional properties are allowed.
// Numeric and length bounds are enforced on decoded items rather than in the schema.
type Definition struct {
	Name     string
	Document map[string]any

	once     sync.Once
	compiled *gojsonschema.Schema
	err      error
}

func newDefinition(name string, doc map[string]any) *Definition {
	return &Definition{Name: name, Document: doc}
}

// Validate checks jsonContent against the definition.
func (d *Definition) Validate(jsonContent string) error {
	d.once.Do(func() {
		d.compiled, d.err = gojsonschema.NewSchema(gojsonschema.NewGoLoader(d.Document))
	})
	if d.err != nil {
		return &SchemaLoadError{Path: d.Name, Message: "failed to compile schema", Cause: d.err}
	}

	result, err := d.compiled.Validate(gojsonschema.NewStringLoader(jsonContent))
	if err != nil {
		return &SchemaLoadError{Path: d.Name, Message: "failed to load document", Cause: err}
	}
	return resultError(result)
}

var (
	extraction = newDefinition("resource_extraction", buildExtraction())
	audit      = newDefinition("resource_audit", buildAudit())
	ranking    = newDefinition("resource_ranking", buildRanking())
)

// Extraction is the response schema for resource extraction.
func Extraction() *Definition { return extraction }

// Audit is the response schema for abuse auditing.
func Audit() *Definition { return audit }

// Ranking is the response schema for provider-backed situation ranking.
func Ranking() *Definition { return ranking }

func buildExtraction() map[string]any {
	categories := make([]any, 0)
	for _, c := range types.Categories() {
		categories = append(categories, string(c))
	}
	subcategories := make([]any, 0)
	for _, s := range types.Subcategories() {
		subcategories = append(subcategories, string(s))
	}
	subcategories = append(subcategories, nil)

	item := object(map[string]any{
		"category":             map[string]any{"type": "string", "enum": categories},
		"subcategory":          map[string]any{"type": []any{"string", "null"}, "enum": subcategories},
		"name":                 map[string]any{"type": "string", "description": "singular noun naming the resource"},
		"quantity":             nullable("integer"),
		"num_available_people": nullable("integer"),
		"location_text":        nullable("string"),
		"phone_number":         nullable("string"),
		"email":                nullable("string"),
		"first_name":           nullable("string"),
		"last_name":            nullable("string"),
	})

	return object(map[string]any{
		"resources": map[string]any{"type": "array", "items": item},
	})
}

func buildAudit() map[string]any {
	item := object(map[string]any{
		"index":   map[string]any{"type": "integer"},
		"name":    map[string]any{"type": "string"},
		"flagged": map[string]any{"type": "boolean"},
		"reason":  nullable("string"),
	})

	return object(map[string]any{
		"audits": map[string]any{"type": "array", "items": item},
	})
}

func buildRanking() map[string]any {
	item := object(map[string]any{
		"resource_id":     map[string]any{"type": "integer"},
		"relevance_score": map[string]any{"type": "number"},
		"reason":          map[string]any{"type": "string"},
	})

	return object(map[string]any{
		"matches": map[string]any{"type": "array", "items": item},
	})
}

// object builds a closed object schema with every property required.
func object(props map[string]any) map[string]any {
	required := make([]any, 0, len(props))
	for _, name := range sortedKeys(props) {
		required = append(required, name)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

func nullable(typeName string) map[string]any {
	return map[string]any{"type": []any{typeName, "null"}}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
