// Package enrichment resolves candidate place names to coordinates and
// computes distances to the incident.
package enrichment

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/relief-intake/internal/geo"
	"github.com/jonathan/relief-intake/internal/types"
)

// DefaultTimeout bounds each geocoding call.
const DefaultTimeout = 10 * time.Second

// Enricher attaches geometry and incident distance to candidates.
type Enricher struct {
	geocoder geo.Geocoder
	logger   *zap.Logger
	timeout  time.Duration
}

// NewEnricher creates an Enricher. A zero timeout uses DefaultTimeout.
func NewEnricher(geocoder geo.Geocoder, logger *zap.Logger, timeout time.Duration) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Enricher{geocoder: geocoder, logger: logger, timeout: timeout}
}

// Enrich returns a copy of candidates with location_geojson set for every
// geocodable location_text, and distance_km set when incident is a valid point.
// Lookup failures leave the candidate unlocated and never abort the batch.
func (e *Enricher) Enrich(ctx context.Context, candidates []types.ResourceCandidate, incident *geo.Point) []types.ResourceCandidate {
	haveIncident := geo.ValidPtr(incident)
	out := make([]types.ResourceCandidate, len(candidates))

	for i, c := range candidates {
		c.LocationGeoJSON = nil
		c.DistanceKM = nil

		if c.LocationText == nil || *c.LocationText == "" {
			out[i] = c
			continue
		}

		place, err := e.lookup(ctx, *c.LocationText)
		if err != nil {
			if errors.Is(err, geo.ErrNotFound) {
				e.logger.Info("location not found",
					zap.Int("index", c.Index),
					zap.String("location_text", *c.LocationText))
			} else {
				e.logger.Warn("geocoding failed",
					zap.Int("index", c.Index),
					zap.String("location_text", *c.LocationText),
					zap.Error(err))
			}
			out[i] = c
			continue
		}

		point := place.Point
		c.LocationGeoJSON = &point
		if haveIncident {
			d := geo.RoundKM(geo.Haversine(*incident, point))
			c.DistanceKM = &d
		}
		out[i] = c
	}

	return out
}

func (e *Enricher) lookup(ctx context.Context, place string) (*geo.Place, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.geocoder.Geocode(ctx, place)
}
