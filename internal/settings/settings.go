// Package settings resolves the active reasoning provider from the persisted
// configuration record and performs the rate-limit fallback switch.
package settings

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/relief-intake/internal/llm"
	"github.com/jonathan/relief-intake/internal/types"
)

// Store reads and updates the configuration record.
type Store interface {
	GetSettings(ctx context.Context) (*types.Settings, error)
	SetActiveProvider(ctx context.Context, provider string) error
}

// ClientSource hands out shared provider clients. *llm.Registry implements it.
type ClientSource interface {
	ClientFor(ctx context.Context, p llm.Provider, model string) (llm.Client, error)
}

// Selection is the provider chosen for one run.
type Selection struct {
	Provider llm.Provider
	Model    string
	Settings *types.Settings
}

// Select reads the record and returns the active provider. Nothing is cached.
func Select(ctx context.Context, store Store) (*Selection, error) {
	s, err := store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	p, err := llm.ParseProvider(s.ActiveProvider)
	if err != nil {
		return nil, &llm.ProviderError{Provider: llm.Provider(s.ActiveProvider), Message: "active provider is not supported", Cause: err}
	}
	return &Selection{Provider: p, Model: s.ModelFor(string(p)), Settings: s}, nil
}

// Client returns the client for the selection.
func (s *Selection) Client(ctx context.Context, clients ClientSource) (llm.Client, error) {
	return clients.ClientFor(ctx, s.Provider, s.Model)
}

// FallbackFor returns the provider to switch to when current is rate limited.
// The configured fallback wins unless it is invalid or equal to current.
func FallbackFor(s *types.Settings, current llm.Provider) llm.Provider {
	if s != nil {
		if p, err := llm.ParseProvider(s.FallbackProvider); err == nil && p != current {
			return p
		}
	}
	return current.DefaultFallback()
}

// SwitchOnRateLimit switches the active provider when err is a rate limit.
// It reports whether a switch was attempted. The update is a single write;
// concurrent switches are last-write-wins.
func SwitchOnRateLimit(ctx context.Context, store Store, sel *Selection, err error, logger *zap.Logger) bool {
	if !llm.IsRateLimited(err) {
		return false
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	target := FallbackFor(sel.Settings, sel.Provider)
	if setErr := store.SetActiveProvider(ctx, string(target)); setErr != nil {
		logger.Error("failed to switch provider after rate limit",
			zap.String("from", string(sel.Provider)),
			zap.String("to", string(target)),
			zap.Error(setErr))
		return true
	}

	logger.Warn("provider rate limited, switched active provider",
		zap.String("from", string(sel.Provider)),
		zap.String("to", string(target)))
	return true
}
