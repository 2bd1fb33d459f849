package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/relief-intake/internal/geo"
	"github.com/jonathan/relief-intake/internal/types"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Rank stored resources against an emergency situation",
	Long: `Rank stored resources for a situation description, using the configured match strategy.
With --incident, distances are measured from that point; otherwise the location is read from the text.`,
	RunE: runMatch,
}

var (
	matchSituation string
	matchIncident  string
	matchOut       string
)

func init() {
	matchCmd.Flags().StringVarP(&matchSituation, "situation", "s", "", "Situation description (required)")
	matchCmd.Flags().StringVar(&matchIncident, "incident", "", "Incident location as GeoJSON Point")
	matchCmd.Flags().StringVarP(&matchOut, "out", "o", "", "Write the JSON result to this file instead of stdout")
	_ = matchCmd.MarkFlagRequired("situation")
	rootCmd.AddCommand(matchCmd)
}

// matchResult mirrors the server's match response.
type matchResult struct {
	Situation        string              `json:"situation"`
	IncidentLocation *geo.Point          `json:"incident_location"`
	Resources        []types.MatchResult `json:"resources"`
}

func runMatch(cmd *cobra.Command, _ []string) error {
	incident, err := parseIncident(matchIncident)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	situation := strings.TrimSpace(matchSituation)
	results, err := a.service.Match(ctx, situation, incident)
	if err != nil {
		return err
	}
	if results == nil {
		results = []types.MatchResult{}
	}
	if a.cfg.Verbose {
		a.printer.PrintMatches(situation, results)
	}

	return writeJSON(matchOut, cmd.OutOrStdout(), matchResult{
		Situation:        situation,
		IncidentLocation: incident,
		Resources:        results,
	})
}
