package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoint_Valid(t *testing.T) {
	tests := []struct {
		name  string
		point Point
		valid bool
	}{
		{name: "tampere", point: NewPoint(61.4981, 23.7610), valid: true},
		{name: "poles and antimeridian", point: NewPoint(-90, 180), valid: true},
		{name: "wrong type", point: Point{Type: "LineString", Coordinates: []float64{23.7, 61.4}}},
		{name: "one coordinate", point: Point{Type: "Point", Coordinates: []float64{23.7}}},
		{name: "three coordinates", point: Point{Type: "Point", Coordinates: []float64{23.7, 61.4, 100}}},
		{name: "latitude out of range", point: NewPoint(91, 0)},
		{name: "longitude out of range", point: NewPoint(0, -181)},
		{name: "nan", point: NewPoint(math.NaN(), 0)},
		{name: "inf", point: NewPoint(0, math.Inf(1))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.point.Valid())
		})
	}

	assert.False(t, ValidPtr(nil))
}

func TestNewPoint_CoordinateOrder(t *testing.T) {
	p := NewPoint(61.4981, 23.7610)
	assert.Equal(t, []float64{23.7610, 61.4981}, p.Coordinates)
	assert.Equal(t, 61.4981, p.Lat())
	assert.Equal(t, 23.7610, p.Lon())
}

func TestParsePoint(t *testing.T) {
	p, err := ParsePoint([]byte(`{"type": "Point", "coordinates": [23.761, 61.4981]}`))
	require.NoError(t, err)
	assert.Equal(t, 61.4981, p.Lat())

	p, err = ParsePoint([]byte(`{"type": "Feature", "geometry": {"type": "Point", "coordinates": [24.9384, 60.1699]}, "properties": {"display_name": "Helsinki"}}`))
	require.NoError(t, err)
	assert.Equal(t, 60.1699, p.Lat())

	bad := []string{
		`not json`,
		`{"type": "Polygon", "coordinates": []}`,
		`{"type": "Feature", "properties": {}}`,
		`{"type": "Point", "coordinates": [200, 10]}`,
	}
	for _, b := range bad {
		_, err := ParsePoint([]byte(b))
		assert.Error(t, err, b)
	}
}

func TestHaversine(t *testing.T) {
	tampere := NewPoint(61.4981, 23.7610)
	helsinki := NewPoint(60.1699, 24.9384)

	assert.Equal(t, 0.0, Haversine(tampere, tampere))

	d := Haversine(tampere, helsinki)
	assert.InDelta(t, 160.0, d, 3.0)
	assert.InDelta(t, d, Haversine(helsinki, tampere), 1e-9)

	// One degree of latitude on a 6371 km sphere
	assert.InDelta(t, 111.19, Haversine(NewPoint(0, 0), NewPoint(1, 0)), 0.01)
}

func TestRoundKM(t *testing.T) {
	assert.Equal(t, 12.3, RoundKM(12.34))
	assert.Equal(t, 12.4, RoundKM(12.36))
	assert.Equal(t, 0.0, RoundKM(0.04))
}
