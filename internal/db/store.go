// Package db provides resource and settings persistence on PostgreSQL or SQLite.
package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/relief-intake/internal/geo"
	"github.com/jonathan/relief-intake/internal/types"
)

// ErrResourceNotFound is returned when no resource has the requested id.
var ErrResourceNotFound = errors.New("resource not found")

// ErrSettingsMissing is returned when the settings row has not been seeded.
var ErrSettingsMissing = errors.New("settings row missing; run migrate")

// Store is the persistence contract used by the service layer.
type Store interface {
	CreateResource(ctx context.Context, in *ResourceInput) (*types.Resource, error)
	// CreateResources stores a batch atomically: all rows or none.
	CreateResources(ctx context.Context, ins []*ResourceInput) ([]types.Resource, error)
	ListResources(ctx context.Context) ([]types.Resource, error)
	GetResource(ctx context.Context, id int64) (*types.Resource, error)
	UpdateResource(ctx context.Context, id int64, upd *ResourceUpdate) (*types.Resource, error)

	GetSettings(ctx context.Context) (*types.Settings, error)
	SetActiveProvider(ctx context.Context, provider string) error
	UpdateSettings(ctx context.Context, s *types.Settings) (*types.Settings, error)

	Migrate(ctx context.Context, seed *types.Settings) error
	Close() error
}

// ResourceInput is a resource ready to be persisted.
type ResourceInput struct {
	Category           *types.Category
	Subcategory        *types.Subcategory
	Name               string
	Quantity           *int
	NumAvailablePeople *int
	LocationGeoJSON    *geo.Point
	LocationText       *string
	DistanceKM         *float64
	PhoneNumber        *string
	Email              *string
	FirstName          *string
	LastName           *string
	SourceText         string
	UserType           *types.UserType
	Flagged            bool
	AbuseReason        *string
}

// InputFromCandidate converts a pipeline candidate for persistence.
func InputFromCandidate(c *types.ResourceCandidate, sourceText string, userType *types.UserType) *ResourceInput {
	cat := c.Category
	return &ResourceInput{
		Category:           &cat,
		Subcategory:        c.Subcategory,
		Name:               c.Name,
		Quantity:           c.Quantity,
		NumAvailablePeople: c.NumAvailablePeople,
		LocationGeoJSON:    c.LocationGeoJSON,
		LocationText:       c.LocationText,
		DistanceKM:         c.DistanceKM,
		PhoneNumber:        c.PhoneNumber,
		Email:              c.Email,
		FirstName:          c.FirstName,
		LastName:           c.LastName,
		SourceText:         sourceText,
		UserType:           userType,
		Flagged:            c.Flagged,
		AbuseReason:        c.AbuseReason,
	}
}

// ResourceUpdate is a partial update. Nil fields are left unchanged; the
// Clear flags set the column to NULL.
type ResourceUpdate struct {
	Category         *types.Category
	Subcategory      *types.Subcategory
	ClearSubcategory bool
	Name             *string
	Quantity         *int
	Flagged          *bool
	AbuseReason      *string
	ClearAbuseReason bool
}

// Empty reports whether the update changes nothing.
func (u *ResourceUpdate) Empty() bool {
	return u.Category == nil && u.Subcategory == nil && !u.ClearSubcategory &&
		u.Name == nil && u.Quantity == nil && u.Flagged == nil &&
		u.AbuseReason == nil && !u.ClearAbuseReason
}

// setClause builds "col = <ph>" assignments in a fixed column order.
func (u *ResourceUpdate) setClause(placeholder func(n int) string) (string, []any) {
	var sets []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = %s", col, placeholder(len(args))))
	}

	if u.Category != nil {
		add("category", string(*u.Category))
	}
	switch {
	case u.ClearSubcategory:
		add("subcategory", nil)
	case u.Subcategory != nil:
		add("subcategory", string(*u.Subcategory))
	}
	if u.Name != nil {
		add("name", *u.Name)
	}
	if u.Quantity != nil {
		add("quantity", *u.Quantity)
	}
	if u.Flagged != nil {
		add("flagged", *u.Flagged)
	}
	switch {
	case u.ClearAbuseReason:
		add("abuse_reason", nil)
	case u.AbuseReason != nil:
		add("abuse_reason", *u.AbuseReason)
	}
	return strings.Join(sets, ", "), args
}

// DefaultSettings is the row written by Migrate when no seed is given.
func DefaultSettings() *types.Settings {
	return &types.Settings{
		ActiveProvider: "openai",
		MatchStrategy:  types.MatchHeuristic,
	}
}

// Open picks the backend from the URL scheme. postgres:// and postgresql://
// use PostgreSQL; sqlite://, file: and bare paths use SQLite.
func Open(ctx context.Context, databaseURL string) (Store, error) {
	switch {
	case databaseURL == "":
		return nil, fmt.Errorf("database URL is empty")
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		pg, err := Connect(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}

	lite, err := OpenSQLite(ctx, strings.TrimPrefix(databaseURL, "sqlite://"))
	if err != nil {
		return nil, err
	}
	return lite, nil
}

const resourceColumns = `id, category, subcategory, name, quantity, num_available_people,
	location_geojson, location_text, distance_km, phone_number, email, first_name, last_name,
	source_text, user_type, flagged, abuse_reason`

// resourceRow holds scan targets shared by both backends. created_at is
// scanned separately because the backends store it differently.
type resourceRow struct {
	r           types.Resource
	category    *string
	subcategory *string
	userType    *string
	geometry    []byte
}

func (rr *resourceRow) dest(createdAt any) []any {
	r := &rr.r
	return []any{
		&r.ID, &rr.category, &rr.subcategory, &r.Name, &r.Quantity, &r.NumAvailablePeople,
		&rr.geometry, &r.LocationText, &r.DistanceKM, &r.PhoneNumber, &r.Email, &r.FirstName, &r.LastName,
		&r.SourceText, &rr.userType, &r.Flagged, &r.AbuseReason, createdAt,
	}
}

func (rr *resourceRow) resource() (*types.Resource, error) {
	r := rr.r
	if rr.category != nil {
		c := types.Category(*rr.category)
		r.Category = &c
	}
	if rr.subcategory != nil {
		s := types.Subcategory(*rr.subcategory)
		r.Subcategory = &s
	}
	if rr.userType != nil {
		u := types.UserType(*rr.userType)
		r.UserType = &u
	}
	if len(rr.geometry) > 0 && string(rr.geometry) != "null" {
		p, err := geo.ParsePoint(rr.geometry)
		if err != nil {
			return nil, fmt.Errorf("resource %d has unreadable geometry: %w", r.ID, err)
		}
		r.LocationGeoJSON = p
	}
	return &r, nil
}

// insertArgs returns the column values for an insert, in resourceColumns order without id.
func insertArgs(in *ResourceInput) ([]any, error) {
	// Raw GeoJSON text, or untyped nil for NULL on both drivers.
	var geometry any
	if in.LocationGeoJSON != nil {
		data, err := json.Marshal(in.LocationGeoJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal geometry: %w", err)
		}
		geometry = string(data)
	}
	return []any{
		enumPtr(in.Category), enumPtr(in.Subcategory), in.Name, in.Quantity, in.NumAvailablePeople,
		geometry, in.LocationText, in.DistanceKM, in.PhoneNumber, in.Email, in.FirstName, in.LastName,
		in.SourceText, enumPtr(in.UserType), in.Flagged, in.AbuseReason,
	}, nil
}

func enumPtr[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

// settingsRow holds settings scan targets.
type settingsRow struct {
	s        types.Settings
	strategy string
}

func (sr *settingsRow) dest(updatedAt any) []any {
	s := &sr.s
	return []any{&s.ActiveProvider, &s.FallbackProvider, &s.OpenAIModel, &s.GeminiModel, &s.LocalModel, &sr.strategy, updatedAt}
}

func (sr *settingsRow) settings() *types.Settings {
	s := sr.s
	s.MatchStrategy = types.MatchStrategy(sr.strategy)
	return &s
}

const settingsColumns = `active_provider, fallback_provider, openai_model, gemini_model, local_model, match_strategy, updated_at`

func settingsArgs(s *types.Settings) []any {
	strategy := s.MatchStrategy
	if !strategy.Valid() {
		strategy = types.MatchHeuristic
	}
	return []any{s.ActiveProvider, s.FallbackProvider, s.OpenAIModel, s.GeminiModel, s.LocalModel, string(strategy)}
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
