// Package service implements the intake and matching use cases on top of the
// pipeline, matcher, and store.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jonathan/relief-intake/internal/db"
	"github.com/jonathan/relief-intake/internal/geo"
	"github.com/jonathan/relief-intake/internal/ingestion"
	"github.com/jonathan/relief-intake/internal/llm"
	"github.com/jonathan/relief-intake/internal/matching"
	"github.com/jonathan/relief-intake/internal/pipeline"
	"github.com/jonathan/relief-intake/internal/transcribe"
	"github.com/jonathan/relief-intake/internal/types"
)

// ManualSourceText is stored as source_text for manual entries without one.
const ManualSourceText = "manual entry"

// ErrNothingExtracted is returned when a report yields no located resources.
var ErrNothingExtracted = errors.New("could not extract any valid resources from the message")

// ErrTranscriptionUnavailable is returned for audio intake without a transcriber.
var ErrTranscriptionUnavailable = errors.New("audio transcription is not configured")

// ErrTranscriptionQuota is returned when the transcription provider rejects a
// request for quota. It does not switch the reasoning provider.
var ErrTranscriptionQuota = errors.New("audio transcription quota exceeded")

// Runner runs the extraction pipeline. *pipeline.Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, in pipeline.RunInput) ([]types.ResourceCandidate, error)
}

// Matcher ranks stored resources. *matching.Matcher implements it.
type Matcher interface {
	Match(ctx context.Context, situation matching.Situation) ([]types.MatchResult, error)
}

// Options configures a Service
type Options struct {
	Store       db.Store
	Pipeline    Runner
	Matcher     Matcher
	Transcriber transcribe.Transcriber
	Logger      *zap.Logger
}

// Service is the entry point used by the HTTP server and the CLI.
type Service struct {
	store       db.Store
	pipeline    Runner
	matcher     Matcher
	transcriber transcribe.Transcriber
	logger      *zap.Logger
}

// New creates a Service
func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:       opts.Store,
		pipeline:    opts.Pipeline,
		matcher:     opts.Matcher,
		transcriber: opts.Transcriber,
		logger:      logger,
	}
}

// Transcript is the text recognised from an audio report.
type Transcript struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// ProcessMessage runs the pipeline on a text report and persists every
// surviving candidate. Contact fields missing from a candidate fall back to
// the request metadata.
func (s *Service) ProcessMessage(ctx context.Context, req *types.ProcessMessageRequest) ([]types.Resource, error) {
	return s.ProcessMessageWithProgress(ctx, req, nil)
}

// ProcessMessageWithProgress is ProcessMessage with a callback for pipeline stage events.
func (s *Service) ProcessMessageWithProgress(ctx context.Context, req *types.ProcessMessageRequest, onProgress pipeline.ProgressCallback) ([]types.Resource, error) {
	req.Text = ingestion.CleanText(req.Text)
	if req.Text == "" {
		return nil, &types.InvalidInputError{Field: "text", Message: "no text to process (provide text or audio)"}
	}
	req.Metadata.UserType = strings.ToUpper(strings.TrimSpace(req.Metadata.UserType))
	if err := req.Validate(); err != nil {
		return nil, validationError(err)
	}

	md := req.Metadata
	userType, err := parseOptionalUserType(md.UserType)
	if err != nil {
		return nil, err
	}

	candidates, err := s.pipeline.Run(ctx, pipeline.RunInput{
		Text:             req.Text,
		IncidentLocation: md.IncidentLocation,
		UserType:         userType,
		UserLocation:     md.UserLocation,
		OnProgress:       onProgress,
	})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNothingExtracted
	}

	inputs := make([]*db.ResourceInput, 0, len(candidates))
	for i := range candidates {
		c := candidates[i]
		c.PhoneNumber = fallback(c.PhoneNumber, md.PhoneNumber)
		c.Email = fallback(c.Email, md.Email)
		c.FirstName = fallback(c.FirstName, md.FirstName)
		c.LastName = fallback(c.LastName, md.LastName)
		inputs = append(inputs, db.InputFromCandidate(&c, req.Text, userType))
	}

	stored, err := s.store.CreateResources(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("failed to store resources: %w", err)
	}

	s.logger.Info("message processed",
		zap.String("report_hash", ingestion.Hash(req.Text)),
		zap.Int("stored", len(stored)))
	return stored, nil
}

// ProcessAudio transcribes a recording and processes the transcript.
func (s *Service) ProcessAudio(ctx context.Context, audio transcribe.Audio, md types.MessageMetadata) (*Transcript, []types.Resource, error) {
	if s.transcriber == nil {
		return nil, nil, ErrTranscriptionUnavailable
	}
	if len(audio.Data) == 0 {
		return nil, nil, &types.InvalidInputError{Field: "file", Message: "no audio file provided"}
	}

	text, confidence, err := s.transcriber.Transcribe(ctx, audio)
	if err != nil {
		if llm.IsRateLimited(err) {
			s.logger.Warn("transcription rate limited", zap.Error(err))
			return nil, nil, fmt.Errorf("%w: %v", ErrTranscriptionQuota, err)
		}
		return nil, nil, err
	}
	transcript := &Transcript{Text: text, Confidence: confidence}
	s.logger.Info("audio transcribed", zap.Int("chars", len(text)), zap.Float64("confidence", confidence))

	resources, err := s.ProcessMessage(ctx, &types.ProcessMessageRequest{Text: text, Metadata: md})
	return transcript, resources, err
}

// CreateResource stores a manual entry. Entries are never flagged on creation.
func (s *Service) CreateResource(ctx context.Context, req *types.CreateResourceRequest) (*types.Resource, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := req.Validate(); err != nil {
		return nil, validationError(err)
	}

	in := &db.ResourceInput{
		Name:               req.Name,
		Quantity:           req.Quantity,
		NumAvailablePeople: req.NumAvailablePeople,
		DistanceKM:         req.DistanceKM,
		LocationText:       optional(req.LocationText),
		PhoneNumber:        optional(req.PhoneNumber),
		Email:              optional(req.Email),
		FirstName:          optional(req.FirstName),
		LastName:           optional(req.LastName),
		SourceText:         strings.TrimSpace(req.SourceText),
	}
	if in.SourceText == "" {
		in.SourceText = ManualSourceText
	}

	if req.Category != "" {
		cat, err := types.ParseCategory(req.Category)
		if err != nil {
			return nil, &types.InvalidInputError{Field: "category", Message: err.Error()}
		}
		in.Category = &cat
	}
	if req.Subcategory != "" {
		sub, err := parseSubcategoryFor(req.Subcategory, in.Category)
		if err != nil {
			return nil, err
		}
		in.Subcategory = &sub
	}

	userType, err := parseOptionalUserType(req.UserType)
	if err != nil {
		return nil, err
	}
	in.UserType = userType

	if req.LocationGeoJSON != nil {
		if !req.LocationGeoJSON.Valid() {
			return nil, &types.InvalidInputError{Field: "location_geojson", Message: "must be a GeoJSON Point with [lon, lat] in range"}
		}
		in.LocationGeoJSON = req.LocationGeoJSON
	}

	return s.store.CreateResource(ctx, in)
}

// ListResources returns every stored resource ordered by id.
func (s *Service) ListResources(ctx context.Context) ([]types.Resource, error) {
	return s.store.ListResources(ctx)
}

// GetResource returns one resource or db.ErrResourceNotFound.
func (s *Service) GetResource(ctx context.Context, id int64) (*types.Resource, error) {
	return s.store.GetResource(ctx, id)
}

// UpdateResource applies a partial update. Changing the category clears a
// subcategory that no longer belongs to it; unflagging clears abuse_reason.
func (s *Service) UpdateResource(ctx context.Context, id int64, req *types.UpdateResourceRequest) (*types.Resource, error) {
	if err := req.Validate(); err != nil {
		return nil, validationError(err)
	}

	existing, err := s.store.GetResource(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Empty() {
		return existing, nil
	}

	upd := &db.ResourceUpdate{Quantity: req.Quantity}

	category := existing.Category
	if req.Category != nil {
		cat, err := types.ParseCategory(*req.Category)
		if err != nil {
			return nil, &types.InvalidInputError{Field: "category", Message: err.Error()}
		}
		upd.Category = &cat
		category = &cat
	}

	switch {
	case req.Subcategory != nil && strings.TrimSpace(*req.Subcategory) == "":
		upd.ClearSubcategory = true
	case req.Subcategory != nil:
		sub, err := parseSubcategoryFor(*req.Subcategory, category)
		if err != nil {
			return nil, err
		}
		upd.Subcategory = &sub
	case upd.Category != nil && existing.Subcategory != nil && !types.SubcategoryBelongsTo(*existing.Subcategory, *upd.Category):
		upd.ClearSubcategory = true
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, &types.InvalidInputError{Field: "name", Message: "must not be empty"}
		}
		upd.Name = &name
	}

	flagged := existing.Flagged
	if req.Flagged != nil {
		flagged = *req.Flagged
		upd.Flagged = req.Flagged
	}
	reason := optionalPtr(req.AbuseReason)
	switch {
	case !flagged:
		if reason != nil {
			return nil, &types.InvalidInputError{Field: "abuse_reason", Message: "only allowed on flagged resources"}
		}
		if existing.AbuseReason != nil {
			upd.ClearAbuseReason = true
		}
	case reason != nil:
		upd.AbuseReason = reason
	}

	updated, err := s.store.UpdateResource(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	s.logger.Info("resource updated", zap.Int64("id", id))
	return updated, nil
}

// Match ranks stored resources against a situation.
func (s *Service) Match(ctx context.Context, situation string, incident *geo.Point) ([]types.MatchResult, error) {
	if incident != nil && !incident.Valid() {
		return nil, &types.InvalidInputError{Field: "incident_location_geojson", Message: "must be a GeoJSON Point with [lon, lat] in range"}
	}
	return s.matcher.Match(ctx, matching.Situation{Text: situation, IncidentLocation: incident})
}

// Settings returns the current settings record.
func (s *Service) Settings(ctx context.Context) (*types.Settings, error) {
	return s.store.GetSettings(ctx)
}

func parseOptionalUserType(raw string) (*types.UserType, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	u, err := types.ParseUserType(raw)
	if err != nil {
		return nil, &types.InvalidInputError{Field: "user_type", Message: err.Error()}
	}
	return &u, nil
}

func parseSubcategoryFor(raw string, category *types.Category) (types.Subcategory, error) {
	sub, err := types.ParseSubcategory(raw)
	if err != nil {
		return "", &types.InvalidInputError{Field: "subcategory", Message: err.Error()}
	}
	if category == nil {
		return "", &types.InvalidInputError{Field: "subcategory", Message: "requires a category"}
	}
	if !types.SubcategoryBelongsTo(sub, *category) {
		return "", &types.InvalidInputError{Field: "subcategory", Message: fmt.Sprintf("%s does not belong to %s", sub, *category)}
	}
	return sub, nil
}

// validationError converts validator output to an InvalidInputError naming the first field.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &types.InvalidInputError{Field: toSnake(fe.Field()), Message: fmt.Sprintf("failed %q validation", fe.Tag())}
	}
	return &types.InvalidInputError{Message: err.Error()}
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func fallback(v *string, def string) *string {
	if v != nil && strings.TrimSpace(*v) != "" {
		return v
	}
	return optional(def)
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func optionalPtr(s *string) *string {
	if s == nil {
		return nil
	}
	return optional(*s)
}
