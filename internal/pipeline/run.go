// Package pipeline orchestrates extraction, enrichment, audit and the final
// located-only filter for one free-text report.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/relief-intake/internal/audit"
	"github.com/jonathan/relief-intake/internal/enrichment"
	"github.com/jonathan/relief-intake/internal/extraction"
	"github.com/jonathan/relief-intake/internal/geo"
	"github.com/jonathan/relief-intake/internal/llm"
	"github.com/jonathan/relief-intake/internal/settings"
	"github.com/jonathan/relief-intake/internal/types"
)

// Step names reported through ProgressEvent
const (
	StepExtract = "extract"
	StepEnrich  = "enrich"
	StepAudit   = "audit"
	StepFilter  = "filter"
)

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	Step    string `json:"step"`
	Message string `json:"message"`
	RunID   string `json:"run_id,omitempty"`
	Count   int    `json:"count"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// Options configures a Pipeline
type Options struct {
	Settings settings.Store
	Clients  settings.ClientSource
	Geocoder geo.Geocoder
	Logger   *zap.Logger

	// GeocodeTimeout bounds each geocoding call. Zero uses the enrichment default.
	GeocodeTimeout time.Duration
	// RequireIncidentLocation rejects runs without a valid incident point
	// instead of skipping distance computation.
	RequireIncidentLocation bool
	// DisableAudit passes every candidate unflagged without a provider call.
	DisableAudit bool

	// NewExtractor builds the extraction stage for the run's provider client.
	// Nil uses extraction.NewLLMExtractor.
	NewExtractor func(client llm.Client, logger *zap.Logger) extraction.Extractor

	OnProgress ProgressCallback
}

// RunInput is one report to process
type RunInput struct {
	Text             string
	IncidentLocation *geo.Point
	UserType         *types.UserType
	UserLocation     *geo.Point
	Extraction       extraction.Context

	// OnProgress receives this run's events in addition to Options.OnProgress.
	OnProgress ProgressCallback
}

// Pipeline runs the four stages in fixed order. It holds no per-run state and
// is safe for concurrent use.
type Pipeline struct {
	opts     Options
	logger   *zap.Logger
	enricher *enrichment.Enricher
}

// New creates a Pipeline
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		opts:     opts,
		logger:   logger,
		enricher: enrichment.NewEnricher(opts.Geocoder, logger, opts.GeocodeTimeout),
	}
}

// emitProgress calls the configured and per-run progress callbacks
func (p *Pipeline) emitProgress(runID uuid.UUID, perRun ProgressCallback, step, message string, count int) {
	event := ProgressEvent{
		Step:    step,
		Message: message,
		RunID:   runID.String(),
		Count:   count,
	}
	if p.opts.OnProgress != nil {
		p.opts.OnProgress(event)
	}
	if perRun != nil {
		perRun(event)
	}
}

// Run processes one report. It returns the audited, located candidates, an
// empty slice when nothing was extracted, an *types.InvalidInputError for bad
// input, or a *llm.ProviderError. A *llm.RateLimitedError switches the active
// provider before it is returned.
func (p *Pipeline) Run(ctx context.Context, in RunInput) ([]types.ResourceCandidate, error) {
	runID := uuid.New()
	log := p.logger.With(zap.String("run_id", runID.String()))

	incident, err := p.incidentPoint(in.IncidentLocation)
	if err != nil {
		return nil, err
	}

	sel, err := settings.Select(ctx, p.opts.Settings)
	if err != nil {
		return nil, err
	}
	log = log.With(zap.String("provider", string(sel.Provider)))

	client, err := sel.Client(ctx, p.opts.Clients)
	if err != nil {
		return nil, err
	}

	// Stage 1: extraction
	candidates, err := p.extractor(client, log).Extract(ctx, in.Text, in.Extraction)
	if err != nil {
		return nil, p.fail(ctx, sel, StepExtract, err, log)
	}
	p.emitProgress(runID, in.OnProgress, StepExtract, fmt.Sprintf("Extracted %d candidates", len(candidates)), len(candidates))
	if len(candidates) == 0 {
		log.Info("nothing extracted")
		return []types.ResourceCandidate{}, nil
	}

	// Stage 2: enrichment
	candidates = p.enricher.Enrich(ctx, candidates, incident)
	p.emitProgress(runID, in.OnProgress, StepEnrich, fmt.Sprintf("Located %d of %d candidates", countLocated(candidates), len(candidates)), len(candidates))

	// Stage 3: audit
	candidates, err = p.auditor(client, log).Audit(ctx, candidates, audit.Context{
		UserType:         in.UserType,
		IncidentLocation: incident,
		UserLocation:     validOrNil(in.UserLocation),
	})
	if err != nil {
		return nil, p.fail(ctx, sel, StepAudit, err, log)
	}
	p.emitProgress(runID, in.OnProgress, StepAudit, fmt.Sprintf("Flagged %d candidates", countFlagged(candidates)), len(candidates))

	// Stage 4: drop unlocated
	located := DropUnlocated(candidates)
	p.emitProgress(runID, in.OnProgress, StepFilter, fmt.Sprintf("Kept %d located candidates", len(located)), len(located))

	log.Info("run complete",
		zap.Int("extracted", len(candidates)),
		zap.Int("located", len(located)))
	return located, nil
}

// incidentPoint applies the incident-location policy.
func (p *Pipeline) incidentPoint(pt *geo.Point) (*geo.Point, error) {
	if geo.ValidPtr(pt) {
		return pt, nil
	}
	if p.opts.RequireIncidentLocation {
		return nil, types.ErrLocationRequired
	}
	if pt != nil {
		p.logger.Info("ignoring malformed incident location")
	}
	return nil, nil
}

func (p *Pipeline) extractor(client llm.Client, log *zap.Logger) extraction.Extractor {
	if p.opts.NewExtractor != nil {
		return p.opts.NewExtractor(client, log)
	}
	return extraction.NewLLMExtractor(client, log)
}

func (p *Pipeline) auditor(client llm.Client, log *zap.Logger) audit.Auditor {
	if p.opts.DisableAudit {
		return audit.NoopAuditor{}
	}
	return audit.NewLLMAuditor(client, log)
}

// fail switches providers on a rate limit and returns err unchanged.
func (p *Pipeline) fail(ctx context.Context, sel *settings.Selection, step string, err error, log *zap.Logger) error {
	settings.SwitchOnRateLimit(ctx, p.opts.Settings, sel, err, log)
	log.Warn("run failed", zap.String("step", step), zap.Error(err))
	return err
}

// DropUnlocated returns the candidates that carry a valid geometry, in order.
// Applying it twice yields the same result as applying it once.
func DropUnlocated(candidates []types.ResourceCandidate) []types.ResourceCandidate {
	out := make([]types.ResourceCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Located() {
			out = append(out, c)
		}
	}
	return out
}

func countLocated(candidates []types.ResourceCandidate) int {
	n := 0
	for _, c := range candidates {
		if c.Located() {
			n++
		}
	}
	return n
}

func countFlagged(candidates []types.ResourceCandidate) int {
	n := 0
	for _, c := range candidates {
		if c.Flagged {
			n++
		}
	}
	return n
}

func validOrNil(p *geo.Point) *geo.Point {
	if geo.ValidPtr(p) {
		return p
	}
	return nil
}
