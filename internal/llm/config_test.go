package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig(ProviderGemini)

	assert.Equal(t, ProviderGemini, config.Provider)
	assert.Equal(t, "gemini-2.5-flash-lite", config.GetModel(TierLite))
	assert.Equal(t, "gemini-2.5-flash", config.GetModel(TierStandard))
	assert.Equal(t, "gemini-2.5-pro", config.GetModel(TierAdvanced))
}

func TestDefaultConfig_UnknownProviderIsOpenAI(t *testing.T) {
	config := DefaultConfig("")
	assert.Equal(t, ProviderOpenAI, config.Provider)
	assert.Equal(t, "gpt-4o-mini", config.GetModel(TierStandard))
}

func TestDefaultLocalConfig(t *testing.T) {
	config := DefaultLocalConfig()

	assert.Equal(t, ProviderLocal, config.Provider)
	assert.NotEmpty(t, config.BaseURL)
	// Only standard is configured; every tier resolves to it
	assert.Equal(t, "phi3.5", config.GetModel(TierLite))
	assert.Equal(t, "phi3.5", config.GetModel(TierAdvanced))
}

func TestGetModel_Fallback(t *testing.T) {
	config := &Config{
		Provider: ProviderOpenAI,
		Models: map[ModelTier]string{
			TierLite: "fallback-model",
		},
	}

	// Unknown tier should fallback to TierStandard, then TierLite
	assert.Equal(t, "fallback-model", config.GetModel("unknown"))
}

func TestGetModel_EmptyConfig(t *testing.T) {
	config := &Config{
		Provider: ProviderOpenAI,
		Models:   map[ModelTier]string{},
	}

	assert.Equal(t, "", config.GetModel(TierAdvanced))
}

func TestWithModel(t *testing.T) {
	config := DefaultOpenAIConfig()
	newConfig := config.WithModel(TierAdvanced, "custom-model")

	// Original should be unchanged
	assert.Equal(t, "gpt-4o", config.GetModel(TierAdvanced))

	assert.Equal(t, "custom-model", newConfig.GetModel(TierAdvanced))
	assert.Equal(t, "gpt-4o-mini", newConfig.GetModel(TierLite))
}

func TestWithAllModels(t *testing.T) {
	config := DefaultGeminiConfig().WithAllModels("gemini-custom")
	assert.Equal(t, "gemini-custom", config.GetModel(TierLite))
	assert.Equal(t, "gemini-custom", config.GetModel(TierAdvanced))

	same := DefaultGeminiConfig()
	assert.Same(t, same, same.WithAllModels(""))
}

func TestParseProvider(t *testing.T) {
	p, err := ParseProvider(" OpenAI ")
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, p)

	_, err = ParseProvider("anthropic")
	assert.Error(t, err)
}

func TestDefaultFallback(t *testing.T) {
	assert.Equal(t, ProviderLocal, ProviderOpenAI.DefaultFallback())
	assert.Equal(t, ProviderLocal, ProviderGemini.DefaultFallback())
	assert.Equal(t, ProviderOpenAI, ProviderLocal.DefaultFallback())
}

func TestProviderConstants(t *testing.T) {
	assert.Equal(t, Provider("openai"), ProviderOpenAI)
	assert.Equal(t, Provider("local"), ProviderLocal)
	assert.Equal(t, Provider("gemini"), ProviderGemini)
}
