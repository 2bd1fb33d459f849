package types

import (
	"github.com/go-playground/validator/v10"

	"github.com/jonathan/relief-intake/internal/geo"
)

// MessageMetadata accompanies a free-text or audio report.
type MessageMetadata struct {
	IncidentLocation *geo.Point `json:"incident_location,omitempty"`
	UserLocation     *geo.Point `json:"user_location,omitempty"`
	UserType         string     `json:"user_type,omitempty" validate:"omitempty,oneof=CIVILIAN NGO GOVERNMENT_AGENCY CORPORATE_ENTITY LOCAL_AUTHORITY"`
	PhoneNumber      string     `json:"phone_number,omitempty" validate:"omitempty,max=64"`
	Email            string     `json:"email,omitempty" validate:"omitempty,email,max=255"`
	FirstName        string     `json:"first_name,omitempty" validate:"omitempty,max=120"`
	LastName         string     `json:"last_name,omitempty" validate:"omitempty,max=120"`
}

// ProcessMessageRequest is the intake request for a free-text report.
type ProcessMessageRequest struct {
	Text     string          `json:"text" validate:"required"`
	Metadata MessageMetadata `json:"metadata"`
}

// CreateResourceRequest is a manual resource entry.
type CreateResourceRequest struct {
	Category           string     `json:"category,omitempty"`
	Subcategory        string     `json:"subcategory,omitempty"`
	Name               string     `json:"name" validate:"required,min=1,max=200"`
	Quantity           *int       `json:"quantity,omitempty" validate:"omitempty,min=0"`
	NumAvailablePeople *int       `json:"num_available_people,omitempty" validate:"omitempty,min=0"`
	LocationGeoJSON    *geo.Point `json:"location_geojson,omitempty"`
	LocationText       string     `json:"location_text,omitempty" validate:"omitempty,max=255"`
	DistanceKM         *float64   `json:"distance_km,omitempty" validate:"omitempty,min=0"`
	PhoneNumber        string     `json:"phone_number,omitempty" validate:"omitempty,max=64"`
	Email              string     `json:"email,omitempty" validate:"omitempty,email,max=255"`
	FirstName          string     `json:"first_name,omitempty" validate:"omitempty,max=120"`
	LastName           string     `json:"last_name,omitempty" validate:"omitempty,max=120"`
	UserType           string     `json:"user_type,omitempty"`
	SourceText         string     `json:"source_text,omitempty"`
}

// UpdateResourceRequest is a partial update. Nil fields are left unchanged.
type UpdateResourceRequest struct {
	Category    *string `json:"category,omitempty"`
	Subcategory *string `json:"subcategory,omitempty"`
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Quantity    *int    `json:"quantity,omitempty" validate:"omitempty,min=0"`
	Flagged     *bool   `json:"flagged,omitempty"`
	AbuseReason *string `json:"abuse_reason,omitempty"`
}

// Empty reports whether the update carries no fields.
func (r *UpdateResourceRequest) Empty() bool {
	return r.Category == nil && r.Subcategory == nil && r.Name == nil &&
		r.Quantity == nil && r.Flagged == nil && r.AbuseReason == nil
}

// Validate validates the ProcessMessageRequest using the validator.
func (r *ProcessMessageRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Validate validates the CreateResourceRequest using the validator.
func (r *CreateResourceRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Validate validates the UpdateResourceRequest using the validator.
func (r *UpdateResourceRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
