package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Factory constructs a client for one provider configuration.
type Factory func(ctx context.Context, config *Config, creds Credentials) (Client, error)

// Registry is a process-wide cache of provider clients. Each provider is
// initialised at most once, on first use, and then shared by all callers.
type Registry struct {
	creds   Credentials
	configs map[Provider]*Config
	factory Factory

	mu      sync.Mutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	once   sync.Once
	client Client
	err    error
}

// NewRegistry creates a registry. Providers missing from configs use DefaultConfig.
func NewRegistry(creds Credentials, configs map[Provider]*Config) *Registry {
	return &Registry{
		creds:   creds,
		configs: configs,
		factory: NewClient,
		entries: make(map[string]*registryEntry),
	}
}

// WithFactory replaces the client constructor. Must be called before first use.
func (r *Registry) WithFactory(f Factory) *Registry {
	r.factory = f
	return r
}

// Config returns the configuration used for provider p.
func (r *Registry) Config(p Provider) *Config {
	if cfg, ok := r.configs[p]; ok && cfg != nil {
		return cfg
	}
	return DefaultConfig(p)
}

// Client returns the shared client for p, creating it on first call.
// A construction failure is cached like a success.
func (r *Registry) Client(ctx context.Context, p Provider) (Client, error) {
	return r.ClientFor(ctx, p, "")
}

// ClientFor is Client with model pinned for every tier. Each distinct
// provider/model pair gets its own shared client.
func (r *Registry) ClientFor(ctx context.Context, p Provider, model string) (Client, error) {
	if !p.Valid() {
		return nil, &ProviderError{Provider: p, Message: "unknown provider"}
	}

	cfg := r.Config(p)
	key := string(p)
	if model != "" && cfg.GetModel(TierStandard) != model {
		cfg = cfg.WithAllModels(model)
		key = fmt.Sprintf("%s#%s", p, model)
	}

	r.mu.Lock()
	entry, ok := r.entries[key]
	if !ok {
		entry = &registryEntry{}
		r.entries[key] = entry
	}
	r.mu.Unlock()

	entry.once.Do(func() {
		entry.client, entry.err = r.factory(ctx, cfg, r.creds)
		if entry.err != nil {
			entry.err = &ProviderError{Provider: p, Message: "client initialisation failed", Cause: entry.err}
		}
	})
	return entry.client, entry.err
}

// Close releases every client the registry created.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, entry := range r.entries {
		if entry.client != nil {
			if err := entry.client.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
