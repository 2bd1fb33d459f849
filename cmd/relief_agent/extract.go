package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/relief-intake/internal/extraction"
	"github.com/jonathan/relief-intake/internal/ingestion"
	"github.com/jonathan/relief-intake/internal/pipeline"
	"github.com/jonathan/relief-intake/internal/service"
	"github.com/jonathan/relief-intake/internal/transcribe"
	"github.com/jonathan/relief-intake/internal/types"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Run the intake pipeline on one report",
	Long: `Extract, geolocate and audit the resources offered in a free-text or audio report.

Exactly one of --text, --file or --audio is required; --file - reads stdin. Without --persist the
candidates are printed and nothing is stored.`,
	RunE: runExtract,
}

var (
	extractText     string
	extractFile     string
	extractAudio    string
	extractLanguage string
	extractIncident string
	extractUserType string
	extractOut      string
	extractPersist  bool
)

func init() {
	extractCmd.Flags().StringVarP(&extractText, "text", "t", "", "Report text")
	extractCmd.Flags().StringVarP(&extractFile, "file", "f", "", "Path to a text file with the report, or - for stdin")
	extractCmd.Flags().StringVar(&extractAudio, "audio", "", "Path to an audio recording of the report")
	extractCmd.Flags().StringVar(&extractLanguage, "language", "", "ISO-639-1 language hint for --audio")
	extractCmd.Flags().StringVar(&extractIncident, "incident", "", `Incident location as GeoJSON, e.g. '{"type":"Point","coordinates":[25.47,65.01]}'`)
	extractCmd.Flags().StringVar(&extractUserType, "user-type", "", "Reporter type: CIVILIAN, NGO, GOVERNMENT_AGENCY, CORPORATE_ENTITY or LOCAL_AUTHORITY")
	extractCmd.Flags().StringVarP(&extractOut, "out", "o", "", "Write the JSON result to this file instead of stdout")
	extractCmd.Flags().BoolVar(&extractPersist, "persist", false, "Store the extracted resources")
	rootCmd.AddCommand(extractCmd)
}

// extractResult is written by extract. Resources holds candidates, or stored
// resources with --persist.
type extractResult struct {
	Transcript *service.Transcript `json:"transcript,omitempty"`
	Resources  any                 `json:"resources"`
}

func runExtract(cmd *cobra.Command, _ []string) error {
	if n := countSet(extractText, extractFile, extractAudio); n != 1 {
		return fmt.Errorf("exactly one of --text, --file or --audio must be provided")
	}
	incident, err := parseIncident(extractIncident)
	if err != nil {
		return err
	}
	var userType *types.UserType
	if strings.TrimSpace(extractUserType) != "" {
		u, err := types.ParseUserType(extractUserType)
		if err != nil {
			return err
		}
		userType = &u
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	var onProgress pipeline.ProgressCallback
	if a.cfg.Verbose {
		onProgress = a.printer.PrintProgress
	}

	result := extractResult{}
	text := extractText
	switch {
	case extractFile != "":
		if text, err = ingestion.ReadReport(extractFile, cmd.InOrStdin()); err != nil {
			return err
		}
	case extractAudio != "":
		transcript, err := transcribeFile(cmd, a, extractAudio)
		if err != nil {
			return err
		}
		a.printer.PrintTranscript(transcript.Text, transcript.Confidence)
		result.Transcript = transcript
		text = transcript.Text
	}

	text = ingestion.CleanText(text)
	if text == "" {
		return fmt.Errorf("report text is empty")
	}

	if extractPersist {
		md := types.MessageMetadata{IncidentLocation: incident}
		if userType != nil {
			md.UserType = string(*userType)
		}
		resources, err := a.service.ProcessMessageWithProgress(ctx, &types.ProcessMessageRequest{Text: text, Metadata: md}, onProgress)
		if err != nil {
			return err
		}
		if a.cfg.Verbose {
			a.printer.PrintResources(resources)
		}
		result.Resources = resources
	} else {
		candidates, err := a.pipeline.Run(ctx, pipeline.RunInput{
			Text:             text,
			IncidentLocation: incident,
			UserType:         userType,
			Extraction:       extraction.DefaultContext(),
			OnProgress:       onProgress,
		})
		if err != nil {
			return err
		}
		if a.cfg.Verbose {
			a.printer.PrintCandidates(candidates)
		}
		if candidates == nil {
			candidates = []types.ResourceCandidate{}
		}
		result.Resources = candidates
	}

	return writeJSON(extractOut, cmd.OutOrStdout(), result)
}

// transcribeFile reads and transcribes an audio file.
func transcribeFile(cmd *cobra.Command, a *app, path string) (*service.Transcript, error) {
	if a.transcriber == nil {
		return nil, service.ErrTranscriptionUnavailable
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio file: %w", err)
	}
	text, confidence, err := a.transcriber.Transcribe(cmd.Context(), transcribe.Audio{
		Data:     data,
		Filename: filepath.Base(path),
		Language: extractLanguage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to transcribe audio: %w", err)
	}
	return &service.Transcript{Text: text, Confidence: confidence}, nil
}

// writeJSON writes v as indented JSON to path, or to stdout when path is empty.
func writeJSON(path string, stdout io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	data = append(data, '\n')

	if path == "" {
		_, err = stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

func countSet(values ...string) int {
	n := 0
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n
}
