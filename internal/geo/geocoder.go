package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// ErrNotFound is returned when a place name has no geocoding hit.
var ErrNotFound = errors.New("geocode: no match")

// Place is a resolved location.
type Place struct {
	Point       Point  `json:"point"`
	DisplayName string `json:"display_name"`
}

// Geocoder resolves free-text place names to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, place string) (*Place, error)
}

// GeocodeError represents a failed lookup (transport, status, or decode failure).
type GeocodeError struct {
	Query   string
	Message string
	Cause   error
}

func (e *GeocodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("geocode %q: %s: %v", e.Query, e.Message, e.Cause)
	}
	return fmt.Sprintf("geocode %q: %s", e.Query, e.Message)
}

func (e *GeocodeError) Unwrap() error {
	return e.Cause
}

// DefaultNominatimURL is the public OpenStreetMap Nominatim search endpoint.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org/search"

// NominatimConfig configures a NominatimGeocoder.
type NominatimConfig struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	// RatePerSecond bounds outbound requests. The public instance allows one per second.
	RatePerSecond float64
}

// DefaultNominatimConfig returns settings suitable for the public Nominatim instance.
func DefaultNominatimConfig() NominatimConfig {
	return NominatimConfig{
		BaseURL:       DefaultNominatimURL,
		UserAgent:     "relief-intake/1.0",
		Timeout:       10 * time.Second,
		RatePerSecond: 1,
	}
}

// NominatimGeocoder implements Geocoder against a Nominatim search API.
// It is safe for concurrent use; identical in-flight lookups share one request.
type NominatimGeocoder struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
	client    *http.Client
	limiter   *rate.Limiter
	group     singleflight.Group
}

// NewNominatimGeocoder creates a geocoder. Empty BaseURL, UserAgent and Timeout fall back
// to defaults; a zero RatePerSecond disables outbound limiting.
func NewNominatimGeocoder(cfg NominatimConfig) *NominatimGeocoder {
	def := DefaultNominatimConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	return &NominatimGeocoder{
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
		client:    &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(limit, 1),
	}
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode looks up place and returns the best hit, ErrNotFound, or a *GeocodeError.
func (g *NominatimGeocoder) Geocode(ctx context.Context, place string) (*Place, error) {
	query := strings.TrimSpace(place)
	if query == "" {
		return nil, ErrNotFound
	}

	// The shared lookup is detached from the caller that started it, so one
	// cancelled caller does not fail the others waiting on the same query.
	ch := g.group.DoChan(strings.ToLower(query), func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
		defer cancel()
		return g.lookup(lookupCtx, query)
	})

	select {
	case <-ctx.Done():
		return nil, &GeocodeError{Query: query, Message: "cancelled", Cause: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		p := *res.Val.(*Place)
		return &p, nil
	}
}

func (g *NominatimGeocoder) lookup(ctx context.Context, query string) (*Place, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, &GeocodeError{Query: query, Message: "rate limiter", Cause: err}
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "jsonv2")
	params.Set("limit", "1")
	params.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &GeocodeError{Query: query, Message: "create request", Cause: err}
	}
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &GeocodeError{Query: query, Message: "request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &GeocodeError{Query: query, Message: fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, &GeocodeError{Query: query, Message: "decode response", Cause: err}
	}
	if len(results) == 0 {
		return nil, ErrNotFound
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, &GeocodeError{Query: query, Message: "invalid latitude", Cause: err}
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, &GeocodeError{Query: query, Message: "invalid longitude", Cause: err}
	}

	point := NewPoint(lat, lon)
	if !point.Valid() {
		return nil, &GeocodeError{Query: query, Message: "coordinates out of range"}
	}

	return &Place{Point: point, DisplayName: results[0].DisplayName}, nil
}
