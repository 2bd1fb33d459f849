// Package config provides configuration loading and validation for the CLI and server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/relief-intake/internal/llm"
	"github.com/jonathan/relief-intake/internal/types"
)

// Config represents the configuration that can be loaded from a JSON file.
// All fields are optional; missing values come from the environment, CLI flags or defaults.
type Config struct {
	// Storage
	DatabaseURL string `json:"database_url,omitempty"` // postgres:// URL or SQLite path

	// Providers
	OpenAIAPIKey     string `json:"openai_api_key,omitempty"`
	OpenAIBaseURL    string `json:"openai_base_url,omitempty"`
	OpenAIModel      string `json:"openai_model,omitempty"`
	GeminiAPIKey     string `json:"gemini_api_key,omitempty"`
	GeminiModel      string `json:"gemini_model,omitempty"`
	LocalLLMBaseURL  string `json:"local_llm_base_url,omitempty"` // OpenAI-compatible endpoint
	LocalLLMAPIKey   string `json:"local_llm_api_key,omitempty"`
	LocalModel       string `json:"local_model,omitempty"`
	ActiveProvider   string `json:"active_provider,omitempty"`   // seed for the settings row
	FallbackProvider string `json:"fallback_provider,omitempty"` // seed for the settings row
	TranscribeModel  string `json:"transcribe_model,omitempty"`

	// Matching
	MatchStrategy string `json:"match_strategy,omitempty"` // heuristic or provider; pins the deployment
	RulesPath     string `json:"rules_path,omitempty"`     // YAML relevance rules; empty uses the built-in set

	// Geocoding
	GeocoderURL       string  `json:"geocoder_url,omitempty"`
	GeocoderUserAgent string  `json:"geocoder_user_agent,omitempty"`
	GeocodeTimeout    string  `json:"geocode_timeout,omitempty"` // Go duration, e.g. "5s"
	GeocodeRate       float64 `json:"geocode_rate,omitempty"`    // requests per second

	// Behavior
	RequireIncidentLocation bool `json:"require_incident_location,omitempty"`
	DisableAudit            bool `json:"disable_audit,omitempty"`
	Port                    int  `json:"port,omitempty"`
	Verbose                 bool `json:"verbose,omitempty"` // Print detailed debug information
}

// DefaultPort is the HTTP port used when none is configured.
const DefaultPort = 8000

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// FromEnv reads configuration from environment variables. Unset variables leave
// the field at its zero value so the result can be merged with a file config.
func FromEnv() Config {
	cfg := Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:     os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:       os.Getenv("OPENAI_MODEL"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:       os.Getenv("GEMINI_MODEL"),
		LocalLLMBaseURL:   os.Getenv("LOCAL_LLM_BASE_URL"),
		LocalLLMAPIKey:    os.Getenv("LOCAL_LLM_API_KEY"),
		LocalModel:        os.Getenv("LOCAL_MODEL"),
		ActiveProvider:    os.Getenv("ACTIVE_PROVIDER"),
		FallbackProvider:  os.Getenv("FALLBACK_PROVIDER"),
		TranscribeModel:   os.Getenv("TRANSCRIBE_MODEL"),
		MatchStrategy:     os.Getenv("MATCH_STRATEGY"),
		RulesPath:         os.Getenv("MATCH_RULES_PATH"),
		GeocoderURL:       os.Getenv("GEOCODER_URL"),
		GeocoderUserAgent: os.Getenv("GEOCODER_USER_AGENT"),
		GeocodeTimeout:    os.Getenv("GEOCODE_TIMEOUT"),
	}
	if v, err := strconv.ParseFloat(os.Getenv("GEOCODE_RATE"), 64); err == nil {
		cfg.GeocodeRate = v
	}
	if v, err := strconv.Atoi(os.Getenv("PORT")); err == nil {
		cfg.Port = v
	}
	cfg.RequireIncidentLocation = envBool("REQUIRE_INCIDENT_LOCATION")
	cfg.DisableAudit = envBool("DISABLE_AUDIT")
	return cfg
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields since those are handled
// by the commands that need them.
func (c *Config) Validate() error {
	for name, value := range map[string]string{
		"active_provider":   c.ActiveProvider,
		"fallback_provider": c.FallbackProvider,
	} {
		if value == "" {
			continue
		}
		if _, err := llm.ParseProvider(value); err != nil {
			return fmt.Errorf("config error: '%s': %w", name, err)
		}
	}

	if c.MatchStrategy != "" && !types.MatchStrategy(strings.ToLower(c.MatchStrategy)).Valid() {
		return fmt.Errorf("config error: 'match_strategy' must be heuristic or provider, got %q", c.MatchStrategy)
	}

	if c.GeocodeTimeout != "" {
		if d, err := time.ParseDuration(c.GeocodeTimeout); err != nil || d <= 0 {
			return fmt.Errorf("config error: 'geocode_timeout' must be a positive duration, got %q", c.GeocodeTimeout)
		}
	}

	// Validate numeric ranges
	if c.GeocodeRate < 0 {
		return fmt.Errorf("config error: 'geocode_rate' must be non-negative")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 0 and 65535")
	}

	// Validate file paths exist (if specified)
	if c.RulesPath != "" {
		if _, err := os.Stat(c.RulesPath); os.IsNotExist(err) {
			return fmt.Errorf("config error: rules file not found: %s", c.RulesPath)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// Used to layer a config file over the environment and the environment over flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	for _, f := range []struct {
		dst *string
		def string
	}{
		{&result.DatabaseURL, defaults.DatabaseURL},
		{&result.OpenAIAPIKey, defaults.OpenAIAPIKey},
		{&result.OpenAIBaseURL, defaults.OpenAIBaseURL},
		{&result.OpenAIModel, defaults.OpenAIModel},
		{&result.GeminiAPIKey, defaults.GeminiAPIKey},
		{&result.GeminiModel, defaults.GeminiModel},
		{&result.LocalLLMBaseURL, defaults.LocalLLMBaseURL},
		{&result.LocalLLMAPIKey, defaults.LocalLLMAPIKey},
		{&result.LocalModel, defaults.LocalModel},
		{&result.ActiveProvider, defaults.ActiveProvider},
		{&result.FallbackProvider, defaults.FallbackProvider},
		{&result.TranscribeModel, defaults.TranscribeModel},
		{&result.MatchStrategy, defaults.MatchStrategy},
		{&result.RulesPath, defaults.RulesPath},
		{&result.GeocoderURL, defaults.GeocoderURL},
		{&result.GeocoderUserAgent, defaults.GeocoderUserAgent},
		{&result.GeocodeTimeout, defaults.GeocodeTimeout},
	} {
		if *f.dst == "" {
			*f.dst = f.def
		}
	}

	// Numeric fields: use default if zero
	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.GeocodeRate == 0 {
		result.GeocodeRate = defaults.GeocodeRate
	}

	// Bool fields: true anywhere wins
	result.RequireIncidentLocation = result.RequireIncidentLocation || defaults.RequireIncidentLocation
	result.DisableAudit = result.DisableAudit || defaults.DisableAudit
	result.Verbose = result.Verbose || defaults.Verbose

	return result
}

// GeocodeTimeoutDuration parses GeocodeTimeout. Empty or invalid values return 0,
// which lets the geocoding callers apply their own default.
func (c *Config) GeocodeTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.GeocodeTimeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// ListenPort returns Port or DefaultPort.
func (c *Config) ListenPort() int {
	if c.Port == 0 {
		return DefaultPort
	}
	return c.Port
}

// Credentials returns the provider secrets for the llm registry.
func (c *Config) Credentials() llm.Credentials {
	return llm.Credentials{
		OpenAIAPIKey: c.OpenAIAPIKey,
		GeminiAPIKey: c.GeminiAPIKey,
		LocalAPIKey:  c.LocalLLMAPIKey,
	}
}

// ProviderConfigs builds per-provider model configuration. Settings-row model
// pins still override these per call.
func (c *Config) ProviderConfigs() map[llm.Provider]*llm.Config {
	openai := llm.DefaultOpenAIConfig().WithAllModels(c.OpenAIModel)
	if c.OpenAIBaseURL != "" {
		openai.BaseURL = c.OpenAIBaseURL
	}

	local := llm.DefaultLocalConfig().WithAllModels(c.LocalModel)
	if c.LocalLLMBaseURL != "" {
		local.BaseURL = c.LocalLLMBaseURL
	}

	return map[llm.Provider]*llm.Config{
		llm.ProviderOpenAI: openai,
		llm.ProviderGemini: llm.DefaultGeminiConfig().WithAllModels(c.GeminiModel),
		llm.ProviderLocal:  local,
	}
}

// SeedSettings builds the settings row written by migrate. Empty fields fall
// back to the store defaults.
func (c *Config) SeedSettings() *types.Settings {
	seed := &types.Settings{
		ActiveProvider:   strings.ToLower(c.ActiveProvider),
		FallbackProvider: strings.ToLower(c.FallbackProvider),
		OpenAIModel:      c.OpenAIModel,
		GeminiModel:      c.GeminiModel,
		LocalModel:       c.LocalModel,
		MatchStrategy:    types.MatchStrategy(strings.ToLower(c.MatchStrategy)),
	}
	if seed.ActiveProvider == "" {
		seed.ActiveProvider = string(llm.ProviderOpenAI)
	}
	if seed.MatchStrategy == "" {
		seed.MatchStrategy = types.MatchHeuristic
	}
	return seed
}
