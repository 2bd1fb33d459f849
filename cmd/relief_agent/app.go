package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/relief-intake/internal/config"
	"github.com/jonathan/relief-intake/internal/db"
	"github.com/jonathan/relief-intake/internal/geo"
	"github.com/jonathan/relief-intake/internal/llm"
	"github.com/jonathan/relief-intake/internal/matching"
	"github.com/jonathan/relief-intake/internal/observability"
	"github.com/jonathan/relief-intake/internal/pipeline"
	"github.com/jonathan/relief-intake/internal/service"
	"github.com/jonathan/relief-intake/internal/transcribe"
	"github.com/jonathan/relief-intake/internal/types"
)

// loadConfig layers flags over the config file over the environment.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if rootConfigPath != "" {
		loaded, err := config.LoadConfig(rootConfigPath)
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
	}

	// Only override if the flag was explicitly set
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = rootDatabaseURL
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = rootVerbose
	}

	cfg = cfg.MergeWithDefaults(config.FromEnv())
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// newLogger returns a development logger in verbose mode and a production
// JSON logger otherwise. Both write to stderr.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// app holds the components shared by every command.
type app struct {
	cfg         config.Config
	logger      *zap.Logger
	printer     *observability.Printer
	store       db.Store
	registry    *llm.Registry
	pipeline    *pipeline.Pipeline
	transcriber transcribe.Transcriber
	service     *service.Service
}

// openStore opens the configured database without building the provider stack.
func openStore(ctx context.Context, cfg config.Config) (db.Store, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable or --db-url flag is required")
	}
	store, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}

// newApp wires storage, providers, geocoding, the pipeline, the matcher and the service.
func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	zap.ReplaceGlobals(logger)

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	rules, err := loadRules(cfg.RulesPath)
	if err != nil {
		store.Close() //nolint:errcheck
		return nil, err
	}

	registry := llm.NewRegistry(cfg.Credentials(), cfg.ProviderConfigs())
	geocoder := newGeocoder(cfg)

	pipe := pipeline.New(pipeline.Options{
		Settings:                store,
		Clients:                 registry,
		Geocoder:                geocoder,
		Logger:                  logger,
		GeocodeTimeout:          cfg.GeocodeTimeoutDuration(),
		RequireIncidentLocation: cfg.RequireIncidentLocation,
		DisableAudit:            cfg.DisableAudit,
	})

	matcher := matching.NewMatcher(matching.Options{
		Resources:      store,
		Settings:       store,
		Clients:        registry,
		Geocoder:       geocoder,
		Rules:          rules,
		Logger:         logger,
		Strategy:       types.MatchStrategy(strings.ToLower(cfg.MatchStrategy)),
		GeocodeTimeout: cfg.GeocodeTimeoutDuration(),
	})

	transcriber := newTranscriber(cfg, logger)

	return &app{
		cfg:         cfg,
		logger:      logger,
		printer:     observability.NewPrinter(os.Stderr),
		store:       store,
		registry:    registry,
		pipeline:    pipe,
		transcriber: transcriber,
		service: service.New(service.Options{
			Store:       store,
			Pipeline:    pipe,
			Matcher:     matcher,
			Transcriber: transcriber,
			Logger:      logger,
		}),
	}, nil
}

// Close releases provider clients and the database.
func (a *app) Close() error {
	err := errors.Join(a.registry.Close(), a.store.Close())
	_ = a.logger.Sync()
	return err
}

func newGeocoder(cfg config.Config) *geo.NominatimGeocoder {
	rate := cfg.GeocodeRate
	if rate == 0 {
		rate = geo.DefaultNominatimConfig().RatePerSecond
	}
	return geo.NewNominatimGeocoder(geo.NominatimConfig{
		BaseURL:       cfg.GeocoderURL,
		UserAgent:     cfg.GeocoderUserAgent,
		Timeout:       cfg.GeocodeTimeoutDuration(),
		RatePerSecond: rate,
	})
}

// newTranscriber returns nil, not a typed nil, when audio intake is unavailable.
func newTranscriber(cfg config.Config, logger *zap.Logger) transcribe.Transcriber {
	if cfg.OpenAIAPIKey == "" {
		logger.Info("audio intake disabled: OPENAI_API_KEY not set")
		return nil
	}
	t, err := transcribe.NewOpenAITranscriber(transcribe.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.TranscribeModel,
	})
	if err != nil {
		logger.Warn("audio intake disabled", zap.Error(err))
		return nil
	}
	return t
}

func loadRules(path string) (*matching.Rules, error) {
	if path == "" {
		return matching.DefaultRules()
	}
	rules, err := matching.LoadRules(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load match rules: %w", err)
	}
	return rules, nil
}

// parseIncident parses an optional GeoJSON point flag.
func parseIncident(raw string) (*geo.Point, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	p, err := geo.ParsePoint([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid incident location: %w", err)
	}
	return p, nil
}
