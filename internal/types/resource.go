package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/relief-intake/internal/geo"
)

// ResourceCandidate is a not-yet-persisted resource record moving through the
// extraction pipeline. Optional fields are pointers: nil means "unspecified".
type ResourceCandidate struct {
	// Index is the ordinal assigned at extraction time and threaded through audit.
	Index int `json:"index"`

	Category           Category     `json:"category" validate:"required"`
	Subcategory        *Subcategory `json:"subcategory,omitempty"`
	Name               string       `json:"name" validate:"required,min=1,max=200"`
	Quantity           *int         `json:"quantity,omitempty" validate:"omitempty,min=0"`
	NumAvailablePeople *int         `json:"num_available_people,omitempty" validate:"omitempty,min=0"`

	LocationText    *string    `json:"location_text,omitempty" validate:"omitempty,max=255"`
	LocationGeoJSON *geo.Point `json:"location_geojson,omitempty"`
	DistanceKM      *float64   `json:"distance_km,omitempty" validate:"omitempty,min=0"`

	PhoneNumber *string `json:"phone_number,omitempty" validate:"omitempty,max=64"`
	Email       *string `json:"email,omitempty" validate:"omitempty,max=255"`
	FirstName   *string `json:"first_name,omitempty" validate:"omitempty,max=120"`
	LastName    *string `json:"last_name,omitempty" validate:"omitempty,max=120"`

	Flagged     bool    `json:"flagged"`
	AbuseReason *string `json:"abuse_reason"`
}

// Located reports whether the candidate has a usable geometry.
func (c *ResourceCandidate) Located() bool {
	return geo.ValidPtr(c.LocationGeoJSON)
}

// SetVerdict applies an audit verdict. A reason is kept only when flagged and non-blank.
func (c *ResourceCandidate) SetVerdict(flagged bool, reason string) {
	c.Flagged = flagged
	c.AbuseReason = nil
	if flagged {
		if r := strings.TrimSpace(reason); r != "" {
			c.AbuseReason = &r
		}
	}
}

// Normalize enforces the flagged/abuse_reason invariant and trims the name.
func (c *ResourceCandidate) Normalize() {
	c.Name = strings.TrimSpace(c.Name)
	if !c.Flagged {
		c.AbuseReason = nil
	}
}

// Resource is a persisted resource record.
type Resource struct {
	ID int64 `json:"id"`

	Category           *Category    `json:"category"`
	Subcategory        *Subcategory `json:"subcategory"`
	Name               string       `json:"name"`
	Quantity           *int         `json:"quantity"`
	NumAvailablePeople *int         `json:"num_available_people"`

	LocationGeoJSON *geo.Point `json:"location_geojson"`
	LocationText    *string    `json:"location_text"`
	DistanceKM      *float64   `json:"distance_km"`

	PhoneNumber *string `json:"phone_number"`
	Email       *string `json:"email"`
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`

	SourceText string    `json:"source_text"`
	UserType   *UserType `json:"user_type"`
	CreatedAt  time.Time `json:"created_at"`

	Flagged     bool    `json:"flagged"`
	AbuseReason *string `json:"abuse_reason"`
}

// MatchResult is one ranked resource for a situation. Never persisted.
type MatchResult struct {
	ResourceID     int64     `json:"resource_id"`
	RelevanceScore float64   `json:"relevance_score"`
	Reason         string    `json:"reason,omitempty"`
	Resource       *Resource `json:"resource,omitempty"`
}

// ValidateCandidate checks struct constraints plus taxonomy membership.
func ValidateCandidate(c *ResourceCandidate) error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	if !c.Category.Valid() {
		return fmt.Errorf("category %q is not in the taxonomy", c.Category)
	}
	if c.Subcategory != nil {
		if !c.Subcategory.Valid() {
			return fmt.Errorf("subcategory %q is not in the taxonomy", *c.Subcategory)
		}
		if !SubcategoryBelongsTo(*c.Subcategory, c.Category) {
			return fmt.Errorf("subcategory %q does not belong to category %q", *c.Subcategory, c.Category)
		}
	}
	if !c.Flagged && c.AbuseReason != nil {
		return fmt.Errorf("abuse_reason set on unflagged candidate")
	}
	return nil
}
