package geo

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNominatimGeocoder_Geocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Tampere", r.URL.Query().Get("q"))
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "relief-intake-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"lat": "61.4980214", "lon": "23.7603118", "display_name": "Tampere, Finland"}]`)
	}))
	defer srv.Close()

	g := NewNominatimGeocoder(NominatimConfig{BaseURL: srv.URL, UserAgent: "relief-intake-test"})
	place, err := g.Geocode(context.Background(), " Tampere ")
	require.NoError(t, err)
	assert.Equal(t, "Tampere, Finland", place.DisplayName)
	assert.True(t, place.Point.Valid())
	assert.InDelta(t, 61.498, place.Point.Lat(), 1e-3)
	assert.InDelta(t, 23.760, place.Point.Lon(), 1e-3)
}

func TestNominatimGeocoder_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	g := NewNominatimGeocoder(NominatimConfig{BaseURL: srv.URL})
	_, err := g.Geocode(context.Background(), "Atlantis")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = g.Geocode(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNominatimGeocoder_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{name: "server error", status: http.StatusBadGateway, body: "upstream down", message: "status 502"},
		{name: "bad json", status: http.StatusOK, body: "{", message: "decode response"},
		{name: "bad latitude", status: http.StatusOK, body: `[{"lat": "north", "lon": "1"}]`, message: "invalid latitude"},
		{name: "out of range", status: http.StatusOK, body: `[{"lat": "95", "lon": "1"}]`, message: "out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			g := NewNominatimGeocoder(NominatimConfig{BaseURL: srv.URL})
			_, err := g.Geocode(context.Background(), "Pori")

			var ge *GeocodeError
			require.ErrorAs(t, err, &ge)
			assert.Equal(t, "Pori", ge.Query)
			assert.Contains(t, ge.Error(), tt.message)
			assert.False(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestNominatimGeocoder_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	g := NewNominatimGeocoder(NominatimConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := g.Geocode(context.Background(), "Oulu")
	var ge *GeocodeError
	assert.ErrorAs(t, err, &ge)
}

func TestNominatimGeocoder_CoalescesConcurrentLookups(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		<-release
		_, _ = io.WriteString(w, `[{"lat": "65.0121", "lon": "25.4651", "display_name": "Oulu"}]`)
	}))
	defer srv.Close()

	g := NewNominatimGeocoder(NominatimConfig{BaseURL: srv.URL})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			place, err := g.Geocode(context.Background(), "Oulu")
			assert.NoError(t, err)
			if place != nil {
				assert.Equal(t, "Oulu", place.DisplayName)
			}
		}()
	}

	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), hits.Load())
}

func TestNominatimGeocoder_CancelledCallerDoesNotFailOthers(t *testing.T) {
	var hits atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			close(started)
		}
		<-release
		_, _ = io.WriteString(w, `[{"lat": "60.4518", "lon": "22.2666", "display_name": "Turku"}]`)
	}))
	defer srv.Close()

	g := NewNominatimGeocoder(NominatimConfig{BaseURL: srv.URL})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := g.Geocode(firstCtx, "Turku")
		firstErr <- err
	}()
	<-started

	type result struct {
		place *Place
		err   error
	}
	second := make(chan result, 1)
	go func() {
		place, err := g.Geocode(context.Background(), "turku")
		second <- result{place, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	err := <-firstErr
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, "Turku", got.place.DisplayName)
	assert.Equal(t, int32(1), hits.Load())
}

func TestDefaultNominatimConfig(t *testing.T) {
	cfg := DefaultNominatimConfig()
	assert.Equal(t, DefaultNominatimURL, cfg.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, 1.0, cfg.RatePerSecond)
	assert.NotEmpty(t, cfg.UserAgent)
}
