package enrichment

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/relief-intake/internal/geo"
	"github.com/jonathan/relief-intake/internal/types"
)

// fakeGeocoder resolves from a fixed table
type fakeGeocoder struct {
	places map[string]geo.Point
	fail   map[string]error
	calls  []string
}

func (f *fakeGeocoder) Geocode(ctx context.Context, place string) (*geo.Place, error) {
	f.calls = append(f.calls, place)
	if err, ok := f.fail[place]; ok {
		return nil, err
	}
	p, ok := f.places[strings.ToLower(place)]
	if !ok {
		return nil, geo.ErrNotFound
	}
	return &geo.Place{Point: p, DisplayName: place}, nil
}

func strPtr(s string) *string { return &s }

func candidate(index int, name string, location *string) types.ResourceCandidate {
	return types.ResourceCandidate{Index: index, Category: types.CategoryWater, Name: name, LocationText: location}
}

var tampere = geo.NewPoint(61.4981, 23.7610)

func TestEnrich_GeocodesAndMeasuresDistance(t *testing.T) {
	gc := &fakeGeocoder{places: map[string]geo.Point{
		"tampere":  geo.NewPoint(61.4980, 23.7603),
		"helsinki": geo.NewPoint(60.1699, 24.9384),
	}}
	e := NewEnricher(gc, nil, 0)

	in := []types.ResourceCandidate{
		candidate(0, "bottled water", strPtr("Tampere")),
		candidate(1, "tent", strPtr("Helsinki")),
	}
	incident := tampere
	out := e.Enrich(context.Background(), in, &incident)
	require.Len(t, out, 2)

	require.NotNil(t, out[0].LocationGeoJSON)
	require.NotNil(t, out[0].DistanceKM)
	assert.Less(t, *out[0].DistanceKM, 1.0)

	require.NotNil(t, out[1].DistanceKM)
	assert.InDelta(t, 160.0, *out[1].DistanceKM, 3.0)
	// One decimal place
	assert.Equal(t, geo.RoundKM(*out[1].DistanceKM), *out[1].DistanceKM)

	// Input is not mutated
	assert.Nil(t, in[0].LocationGeoJSON)
}

func TestEnrich_MissesAndErrorsLeaveCandidateUnlocated(t *testing.T) {
	gc := &fakeGeocoder{
		places: map[string]geo.Point{"pori": geo.NewPoint(61.4851, 21.7974)},
		fail:   map[string]error{"Kuopio": &geo.GeocodeError{Query: "Kuopio", Message: "status 503"}},
	}
	e := NewEnricher(gc, nil, time.Second)

	in := []types.ResourceCandidate{
		candidate(0, "generator", strPtr("behind the old barn")),
		candidate(1, "boat", strPtr("Kuopio")),
		candidate(2, "blanket", nil),
		candidate(3, "radio", strPtr("Pori")),
	}
	out := e.Enrich(context.Background(), in, &tampere)
	require.Len(t, out, 4)

	for _, i := range []int{0, 1, 2} {
		assert.Nil(t, out[i].LocationGeoJSON, "index %d", i)
		assert.Nil(t, out[i].DistanceKM, "index %d", i)
	}
	assert.NotNil(t, out[3].LocationGeoJSON)
	assert.NotNil(t, out[3].DistanceKM)

	// No lookup for a candidate without location_text
	assert.Equal(t, []string{"behind the old barn", "Kuopio", "Pori"}, gc.calls)
}

func TestEnrich_WithoutIncidentSkipsDistances(t *testing.T) {
	gc := &fakeGeocoder{places: map[string]geo.Point{"tampere": tampere}}
	e := NewEnricher(gc, nil, 0)
	in := []types.ResourceCandidate{candidate(0, "water", strPtr("Tampere"))}

	for name, incident := range map[string]*geo.Point{
		"absent":    nil,
		"malformed": {Type: "Point", Coordinates: []float64{500, 500}},
	} {
		t.Run(name, func(t *testing.T) {
			out := e.Enrich(context.Background(), in, incident)
			assert.NotNil(t, out[0].LocationGeoJSON)
			assert.Nil(t, out[0].DistanceKM)
		})
	}
}

func TestEnrich_PerCallTimeout(t *testing.T) {
	slow := geocoderFunc(func(ctx context.Context, _ string) (*geo.Place, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	e := NewEnricher(slow, nil, 20*time.Millisecond)

	start := time.Now()
	out := e.Enrich(context.Background(), []types.ResourceCandidate{candidate(0, "water", strPtr("Tampere"))}, nil)
	assert.Less(t, time.Since(start), time.Second)
	assert.Nil(t, out[0].LocationGeoJSON)
}

type geocoderFunc func(ctx context.Context, place string) (*geo.Place, error)

func (f geocoderFunc) Geocode(ctx context.Context, place string) (*geo.Place, error) {
	return f(ctx, place)
}

func TestEnrich_Empty(t *testing.T) {
	e := NewEnricher(&fakeGeocoder{}, nil, 0)
	assert.Empty(t, e.Enrich(context.Background(), nil, nil))
}
