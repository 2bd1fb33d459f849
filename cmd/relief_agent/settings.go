package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/relief-intake/internal/llm"
	"github.com/jonathan/relief-intake/internal/observability"
	"github.com/jonathan/relief-intake/internal/types"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the persisted provider settings",
	Long: `Without flags, print the settings row as JSON. With --provider, --fallback or --match-strategy,
update the row first. The change applies to the next run of every process sharing the database.`,
	RunE: runSettings,
}

var (
	settingsProvider      string
	settingsFallback      string
	settingsMatchStrategy string
)

func init() {
	bindSettingsFlags(settingsCmd)
	rootCmd.AddCommand(settingsCmd)
}

func bindSettingsFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&settingsProvider, "provider", "", "Active provider: openai, gemini or local")
	cmd.Flags().StringVar(&settingsFallback, "fallback", "", "Provider switched to on a rate limit (empty string clears)")
	cmd.Flags().StringVar(&settingsMatchStrategy, "match-strategy", "", "Match strategy: heuristic or provider")
}

func runSettings(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	current, err := store.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}

	updated, changed, err := applySettingsFlags(cmd, current)
	if err != nil {
		return err
	}
	if changed {
		if current, err = store.UpdateSettings(ctx, updated); err != nil {
			return fmt.Errorf("failed to update settings: %w", err)
		}
	}

	if cfg.Verbose {
		observability.NewPrinter(cmd.ErrOrStderr()).PrintSettings(current)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(current)
}

// applySettingsFlags returns a copy of s with the explicitly set flags applied.
func applySettingsFlags(cmd *cobra.Command, s *types.Settings) (*types.Settings, bool, error) {
	out := *s
	changed := false

	if cmd.Flags().Changed("provider") {
		p, err := llm.ParseProvider(settingsProvider)
		if err != nil {
			return nil, false, err
		}
		out.ActiveProvider = string(p)
		changed = true
	}
	if cmd.Flags().Changed("fallback") {
		out.FallbackProvider = ""
		if strings.TrimSpace(settingsFallback) != "" {
			p, err := llm.ParseProvider(settingsFallback)
			if err != nil {
				return nil, false, err
			}
			out.FallbackProvider = string(p)
		}
		changed = true
	}
	if cmd.Flags().Changed("match-strategy") {
		m := types.MatchStrategy(strings.ToLower(strings.TrimSpace(settingsMatchStrategy)))
		if !m.Valid() {
			return nil, false, fmt.Errorf("unknown match strategy %q", settingsMatchStrategy)
		}
		out.MatchStrategy = m
		changed = true
	}
	return &out, changed, nil
}
