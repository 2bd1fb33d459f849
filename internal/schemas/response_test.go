package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtraction_AcceptsWellFormedResponse(t *testing.T) {
	doc := `{"resources": [{
		"category": "WATER",
		"subcategory": "BOTTLED",
		"name": "bottled water",
		"quantity": 50,
		"num_available_people": null,
		"location_text": "Tampere",
		"phone_number": null,
		"email": null,
		"first_name": null,
		"last_name": null
	}]}`

	assert.NoError(t, Extraction().Validate(doc))
}

func TestExtraction_Rejects(t *testing.T) {
	base := `"name": "x", "quantity": null, "num_available_people": null, "location_text": null,
		"phone_number": null, "email": null, "first_name": null, "last_name": null`

	tests := []struct {
		name string
		doc  string
	}{
		{name: "unknown category", doc: `{"resources": [{"category": "WEAPONS", "subcategory": null, ` + base + `}]}`},
		{name: "unknown subcategory", doc: `{"resources": [{"category": "WATER", "subcategory": "LEMONADE", ` + base + `}]}`},
		{name: "missing property", doc: `{"resources": [{"category": "WATER", "name": "x"}]}`},
		{name: "extra property", doc: `{"resources": [{"category": "WATER", "subcategory": null, "color": "blue", ` + base + `}]}`},
		{name: "fractional quantity", doc: `{"resources": [{"category": "WATER", "subcategory": null, "name": "x", "quantity": 1.5, "num_available_people": null, "location_text": null, "phone_number": null, "email": null, "first_name": null, "last_name": null}]}`},
		{name: "missing resources", doc: `{}`},
		{name: "not json", doc: `the answer is water`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, Extraction().Validate(tt.doc))
		})
	}
}

func TestAudit_Validate(t *testing.T) {
	assert.NoError(t, Audit().Validate(`{"audits": [{"index": 0, "name": "water", "flagged": true, "reason": "implausible quantity"}]}`))
	assert.NoError(t, Audit().Validate(`{"audits": [{"index": 1, "name": "tent", "flagged": false, "reason": null}]}`))
	assert.Error(t, Audit().Validate(`{"audits": [{"index": 0, "name": "water", "flagged": "yes", "reason": null}]}`))
}

func TestRanking_Validate(t *testing.T) {
	assert.NoError(t, Ranking().Validate(`{"matches": [{"resource_id": 4, "relevance_score": 0.8, "reason": "boats for flood"}]}`))
	assert.Error(t, Ranking().Validate(`{"matches": [{"resource_id": "4", "relevance_score": 0.8, "reason": ""}]}`))
}

func TestDefinitions_AreStrict(t *testing.T) {
	for _, def := range []*Definition{Extraction(), Audit(), Ranking()} {
		t.Run(def.Name, func(t *testing.T) {
			assert.Equal(t, false, def.Document["additionalProperties"])
			required, ok := def.Document["required"].([]any)
			require.True(t, ok)

			props, ok := def.Document["properties"].(map[string]any)
			require.True(t, ok)
			assert.Len(t, required, len(props))
		})
	}
}
