// Package geo provides GeoJSON point handling, great-circle distance, and geocoding.
package geo

import (
	"encoding/json"
	"fmt"
	"math"
)

// earthRadiusKM is the mean Earth radius used by Haversine.
const earthRadiusKM = 6371.0

// Point is a GeoJSON Point geometry. Coordinates are [lon, lat].
type Point struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// NewPoint builds a Point from latitude and longitude.
func NewPoint(lat, lon float64) Point {
	return Point{Type: "Point", Coordinates: []float64{lon, lat}}
}

// Lon returns the longitude. Only meaningful when Valid.
func (p Point) Lon() float64 {
	if len(p.Coordinates) < 2 {
		return 0
	}
	return p.Coordinates[0]
}

// Lat returns the latitude. Only meaningful when Valid.
func (p Point) Lat() float64 {
	if len(p.Coordinates) < 2 {
		return 0
	}
	return p.Coordinates[1]
}

// Valid reports whether p is a "Point" with exactly two finite, in-range coordinates.
func (p Point) Valid() bool {
	if p.Type != "Point" || len(p.Coordinates) != 2 {
		return false
	}
	lon, lat := p.Coordinates[0], p.Coordinates[1]
	if math.IsNaN(lon) || math.IsNaN(lat) || math.IsInf(lon, 0) || math.IsInf(lat, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// ValidPtr is Valid for an optional point.
func ValidPtr(p *Point) bool {
	return p != nil && p.Valid()
}

// feature is the subset of a GeoJSON Feature we accept when reading stored geometry.
type feature struct {
	Type     string `json:"type"`
	Geometry *Point `json:"geometry"`
}

// ParsePoint decodes either a bare Point or a Feature wrapping a Point.
// The returned point is always validated.
func ParsePoint(data []byte) (*Point, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("invalid geometry JSON: %w", err)
	}

	var p Point
	switch probe.Type {
	case "Point":
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("invalid point: %w", err)
		}
	case "Feature":
		var f feature
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("invalid feature: %w", err)
		}
		if f.Geometry == nil {
			return nil, fmt.Errorf("feature has no geometry")
		}
		p = *f.Geometry
	default:
		return nil, fmt.Errorf("unsupported geometry type %q", probe.Type)
	}

	if !p.Valid() {
		return nil, fmt.Errorf("geometry is not a valid point")
	}
	return &p, nil
}

// Haversine returns the great-circle distance between a and b in kilometres.
func Haversine(a, b Point) float64 {
	lat1 := toRadians(a.Lat())
	lat2 := toRadians(b.Lat())
	dLat := toRadians(b.Lat() - a.Lat())
	dLon := toRadians(b.Lon() - a.Lon())

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKM * c
}

// RoundKM rounds a distance to one decimal place.
func RoundKM(d float64) float64 {
	return math.Round(d*10) / 10
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
