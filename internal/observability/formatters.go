// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/relief-intake/internal/pipeline"
	"github.com/jonathan/relief-intake/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len([]rune(line)) > boxWidth-4 {
			line = string([]rune(line)[:boxWidth-7]) + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintProgress writes one pipeline stage event as a single line.
//
//nolint:errcheck // writing to stderr; errors are not recoverable
func (p *Printer) PrintProgress(e pipeline.ProgressEvent) {
	fmt.Fprintf(p.out, "[%-7s] %s (%d)\n", e.Step, e.Message, e.Count)
}

// PrintTranscript outputs an audio transcript and its confidence.
func (p *Printer) PrintTranscript(text string, confidence float64) {
	if strings.TrimSpace(text) == "" {
		return
	}
	p.printBox("TRANSCRIPT", fmt.Sprintf("Confidence: %.2f\n\n%s", confidence, wrap(text, boxWidth-4)))
}

// PrintCandidates outputs the candidates produced by an intake run.
func (p *Printer) PrintCandidates(candidates []types.ResourceCandidate) {
	if len(candidates) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Resources extracted: %d\n\n", len(candidates)))

	count := min(len(candidates), maxItemsToShow)
	for i := 0; i < count; i++ {
		c := candidates[i]
		marker := "•"
		if c.Flagged {
			marker = "⚠"
		}
		sb.WriteString(fmt.Sprintf("%s %s\n", marker, c.Name))
		sb.WriteString(fmt.Sprintf("    %s\n", categoryText(&c.Category, c.Subcategory)))
		if c.LocationText != nil {
			sb.WriteString(fmt.Sprintf("    Location: %s%s\n", *c.LocationText, distanceText(c.DistanceKM)))
		}
		if c.Flagged && c.AbuseReason != nil {
			sb.WriteString(fmt.Sprintf("    Flagged: %s\n", *c.AbuseReason))
		}
		if i < count-1 {
			sb.WriteString("\n")
		}
	}

	if len(candidates) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more resources", len(candidates)-maxItemsToShow))
	}

	p.printBox("EXTRACTED RESOURCES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintResources outputs stored resources, flagged ones marked.
func (p *Printer) PrintResources(resources []types.Resource) {
	if len(resources) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Resources stored: %d\n\n", len(resources)))

	count := min(len(resources), maxItemsToShow)
	for i := 0; i < count; i++ {
		r := resources[i]
		marker := "•"
		if r.Flagged {
			marker = "⚠"
		}
		sb.WriteString(fmt.Sprintf("%s #%d %s\n", marker, r.ID, r.Name))
		sb.WriteString(fmt.Sprintf("    %s\n", categoryText(r.Category, r.Subcategory)))
	}

	if len(resources) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more resources", len(resources)-maxItemsToShow))
	}

	p.printBox("STORED RESOURCES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintMatches outputs ranked match results, highest score first.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintMatches(situation string, results []types.MatchResult) {
	if len(results) == 0 {
		fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, "NO MATCHING RESOURCES")
		fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Situation: %s\n\n", situation))

	count := min(len(results), maxItemsToShow)
	for i := 0; i < count; i++ {
		m := results[i]
		name := fmt.Sprintf("resource %d", m.ResourceID)
		if m.Resource != nil {
			name = m.Resource.Name
		}
		sb.WriteString(fmt.Sprintf("#%d  %s\n", i+1, name))
		sb.WriteString(fmt.Sprintf("    Score: %.2f", m.RelevanceScore))
		if m.Resource != nil {
			sb.WriteString(distanceText(m.Resource.DistanceKM))
		}
		sb.WriteString("\n")
		if m.Reason != "" {
			sb.WriteString(fmt.Sprintf("    %s\n", m.Reason))
		}
		if i < count-1 {
			sb.WriteString("\n")
		}
	}

	if len(results) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more matches", len(results)-maxItemsToShow))
	}

	p.printBox("TOP MATCHES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintSettings outputs the persisted provider configuration.
func (p *Printer) PrintSettings(s *types.Settings) {
	if s == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Active provider:   %s\n", s.ActiveProvider))
	fallback := s.FallbackProvider
	if fallback == "" {
		fallback = "(default)"
	}
	sb.WriteString(fmt.Sprintf("Fallback provider: %s\n", fallback))
	sb.WriteString(fmt.Sprintf("Match strategy:    %s\n", s.MatchStrategy))
	for _, pm := range []struct{ name, model string }{
		{"openai", s.OpenAIModel},
		{"gemini", s.GeminiModel},
		{"local", s.LocalModel},
	} {
		if pm.model != "" {
			sb.WriteString(fmt.Sprintf("Model (%s): %s\n", pm.name, pm.model))
		}
	}
	if !s.UpdatedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("Updated:           %s\n", s.UpdatedAt.Format("2006-01-02 15:04:05Z07:00")))
	}

	p.printBox("SETTINGS", strings.TrimSuffix(sb.String(), "\n"))
}

func categoryText(cat *types.Category, sub *types.Subcategory) string {
	if cat == nil {
		return "Uncategorized"
	}
	if sub == nil {
		return string(*cat)
	}
	return fmt.Sprintf("%s / %s", *cat, *sub)
}

func distanceText(km *float64) string {
	if km == nil {
		return ""
	}
	return fmt.Sprintf(" (%.1f km)", *km)
}

// wrap breaks text on spaces so each line fits width runes.
func wrap(text string, width int) string {
	var lines []string
	var line strings.Builder
	for _, word := range strings.Fields(text) {
		if line.Len() > 0 && len([]rune(line.String()))+1+len([]rune(word)) > width {
			lines = append(lines, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteString(" ")
		}
		line.WriteString(word)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}
