package extraction

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/relief-intake/internal/llm"
	"github.com/jonathan/relief-intake/internal/types"
)

// MockLLMClient implements llm.Client for testing
type MockLLMClient struct {
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (string, error)
	Requests     []llm.CompletionRequest
}

func (m *MockLLMClient) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	m.Requests = append(m.Requests, req)
	return m.CompleteFunc(ctx, req)
}

func (m *MockLLMClient) Provider() llm.Provider { return llm.ProviderOpenAI }

func (m *MockLLMClient) Close() error { return nil }

func respond(body string) *MockLLMClient {
	return &MockLLMClient{CompleteFunc: func(context.Context, llm.CompletionRequest) (string, error) {
		return body, nil
	}}
}

const tampereResponse = `{"resources": [{
	"category": "WATER", "subcategory": "BOTTLED", "name": "bottled water", "quantity": 50,
	"num_available_people": null, "location_text": "Tampere",
	"phone_number": null, "email": null, "first_name": null, "last_name": null
}]}`

func TestExtract_BottledWaterInTampere(t *testing.T) {
	client := respond(tampereResponse)
	ex := NewLLMExtractor(client, nil)

	got, err := ex.Extract(context.Background(), "I have 50 bottles of water in Tampere", Context{})
	require.NoError(t, err)
	require.Len(t, got, 1)

	c := got[0]
	assert.Equal(t, 0, c.Index)
	assert.Equal(t, types.CategoryWater, c.Category)
	require.NotNil(t, c.Subcategory)
	assert.Equal(t, types.SubcategoryBottled, *c.Subcategory)
	assert.Equal(t, "bottled water", c.Name)
	require.NotNil(t, c.Quantity)
	assert.Equal(t, 50, *c.Quantity)
	require.NotNil(t, c.LocationText)
	assert.Equal(t, "Tampere", *c.LocationText)
	assert.Nil(t, c.LocationGeoJSON)
	assert.False(t, c.Flagged)
	assert.Nil(t, c.AbuseReason)

	require.Len(t, client.Requests, 1)
	req := client.Requests[0]
	assert.Equal(t, llm.TierStandard, req.Tier)
	assert.Equal(t, "resource_extraction", req.SchemaName)
	assert.NotNil(t, req.Schema)
	assert.Contains(t, req.SystemPrompt, "MEDICAL_SUPPLIES")
	assert.NotContains(t, req.SystemPrompt, "{{.")
	assert.Contains(t, req.UserPayload, "50 bottles of water")
}

func TestExtract_NothingOffered(t *testing.T) {
	ex := NewLLMExtractor(respond(`{"resources": []}`), nil)

	got, err := ex.Extract(context.Background(), "hello, is anyone there?", Context{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExtract_EmptyTextIsInvalidInput(t *testing.T) {
	client := respond(tampereResponse)
	ex := NewLLMExtractor(client, nil)

	_, err := ex.Extract(context.Background(), "   \n", Context{})
	var ie *types.InvalidInputError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "text", ie.Field)
	assert.Empty(t, client.Requests)
}

func TestExtract_ProviderFailure(t *testing.T) {
	client := &MockLLMClient{CompleteFunc: func(context.Context, llm.CompletionRequest) (string, error) {
		return "", errors.New("connection refused")
	}}
	ex := NewLLMExtractor(client, nil)

	got, err := ex.Extract(context.Background(), "I have a generator", Context{})
	assert.Nil(t, got)
	var pe *llm.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.False(t, llm.IsRateLimited(err))
}

func TestExtract_RateLimitIsPreserved(t *testing.T) {
	client := &MockLLMClient{CompleteFunc: func(context.Context, llm.CompletionRequest) (string, error) {
		return "", llm.NewRateLimitedError(llm.ProviderOpenAI, errors.New("429"))
	}}
	ex := NewLLMExtractor(client, nil)

	_, err := ex.Extract(context.Background(), "I have a generator", Context{})
	assert.True(t, llm.IsRateLimited(err))
}

func TestExtract_SchemaViolationIsProviderError(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "I found a generator"},
		{name: "out of taxonomy", body: `{"resources": [{"category": "WEAPONS", "subcategory": null, "name": "rifle", "quantity": null, "num_available_people": null, "location_text": null, "phone_number": null, "email": null, "first_name": null, "last_name": null}]}`},
		{name: "wrong shape", body: `{"items": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := NewLLMExtractor(respond(tt.body), nil)
			got, err := ex.Extract(context.Background(), "text", Context{})
			assert.Nil(t, got)
			var pe *llm.ProviderError
			assert.ErrorAs(t, err, &pe)
		})
	}
}

func TestExtract_DropsInvalidItemsAndReindexes(t *testing.T) {
	body := `{"resources": [
		{"category": "FOOD", "subcategory": null, "name": "  ", "quantity": null, "num_available_people": null, "location_text": null, "phone_number": null, "email": null, "first_name": null, "last_name": null},
		{"category": "FUEL", "subcategory": "DIESEL", "name": "diesel", "quantity": -4, "num_available_people": null, "location_text": "Oulu", "phone_number": null, "email": null, "first_name": null, "last_name": null},
		{"category": "SHELTER", "subcategory": "TENTS", "name": "tent", "quantity": 3, "num_available_people": null, "location_text": "Pori", "phone_number": null, "email": null, "first_name": null, "last_name": null},
		{"category": "EQUIPMENT", "subcategory": "BOATS", "name": "chainsaw", "quantity": 1, "num_available_people": null, "location_text": "", "phone_number": "+358 40 1234567", "email": null, "first_name": "Aino", "last_name": null}
	]}`
	ex := NewLLMExtractor(respond(body), nil)

	got, err := ex.Extract(context.Background(), "text", Context{})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 0, got[0].Index)
	assert.Equal(t, "tent", got[0].Name)

	assert.Equal(t, 1, got[1].Index)
	assert.Equal(t, "chainsaw", got[1].Name)
	// Subcategory from another category is cleared, blank location becomes nil
	assert.Nil(t, got[1].Subcategory)
	assert.Nil(t, got[1].LocationText)
	require.NotNil(t, got[1].FirstName)
	assert.Equal(t, "Aino", *got[1].FirstName)
}

func TestExtract_ContextRestrictsCategories(t *testing.T) {
	client := respond(tampereResponse)
	ex := NewLLMExtractor(client, nil)

	got, err := ex.Extract(context.Background(), "water in Tampere", Context{Categories: []types.Category{types.CategoryFood}})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotContains(t, client.Requests[0].SystemPrompt, "MEDICAL_SUPPLIES")
}

func TestExtractLocation(t *testing.T) {
	ex := NewLLMExtractor(respond(tampereResponse), nil)
	loc, err := ex.ExtractLocation(context.Background(), "fire near Tampere")
	require.NoError(t, err)
	assert.Equal(t, "Tampere", loc)

	ex = NewLLMExtractor(respond(`{"resources": []}`), nil)
	loc, err = ex.ExtractLocation(context.Background(), "  flood in the valley ")
	require.NoError(t, err)
	assert.Equal(t, "flood in the valley", loc)
}
