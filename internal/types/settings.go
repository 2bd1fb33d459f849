package types

import "time"

// MatchStrategy selects how situations are ranked against stored resources.
type MatchStrategy string

// MatchStrategy constants
const (
	MatchHeuristic MatchStrategy = "heuristic"
	MatchProvider  MatchStrategy = "provider"
)

// Valid reports whether m is a known strategy.
func (m MatchStrategy) Valid() bool {
	return m == MatchHeuristic || m == MatchProvider
}

// Settings is the single persisted configuration record. It is read at the
// start of every run and rewritten when a provider is rate limited.
type Settings struct {
	ActiveProvider   string        `json:"active_provider"`
	FallbackProvider string        `json:"fallback_provider,omitempty"`
	OpenAIModel      string        `json:"openai_model,omitempty"`
	GeminiModel      string        `json:"gemini_model,omitempty"`
	LocalModel       string        `json:"local_model,omitempty"`
	MatchStrategy    MatchStrategy `json:"match_strategy"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// ModelFor returns the pinned model for a provider name, or "" for the provider default.
func (s *Settings) ModelFor(provider string) string {
	switch provider {
	case "openai":
		return s.OpenAIModel
	case "gemini":
		return s.GeminiModel
	case "local":
		return s.LocalModel
	default:
		return ""
	}
}
