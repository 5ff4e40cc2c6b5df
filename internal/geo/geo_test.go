package geo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eventdesk/eventdesk/internal/geo"
)

var (
	london = geo.Point{Lat: 51.5074, Lon: -0.1278}
	paris  = geo.Point{Lat: 48.8566, Lon: 2.3522}
)

func TestHaversineDistanceKm_LondonParis(t *testing.T) {
	d := geo.HaversineDistanceKm(london, paris)
	assert.InDelta(t, 343.5, d, 1.5)
}

func TestHaversineDistanceKm_SamePoint(t *testing.T) {
	assert.InDelta(t, 0, geo.HaversineDistanceKm(london, london), 1e-9)
}

func TestFlatEarthApproxDistanceKm_LondonParis(t *testing.T) {
	d := geo.FlatEarthApproxDistanceKm(london, paris)
	assert.InEpsilon(t, 343.0, d, 0.02)
}

func TestFlatEarthApproxDistanceKm_Symmetric(t *testing.T) {
	a := geo.Point{Lat: 10, Lon: 10}
	b := geo.Point{Lat: 10, Lon: 11}
	// Same latitude, so the cosine factor is identical in both directions.
	assert.InDelta(t, geo.FlatEarthApproxDistanceKm(a, b), geo.FlatEarthApproxDistanceKm(b, a), 1e-9)
}

func TestBearingDegrees(t *testing.T) {
	origin := geo.Point{Lat: 0, Lon: 0}

	tests := []struct {
		name string
		to   geo.Point
		want float64
	}{
		{"north", geo.Point{Lat: 1, Lon: 0}, 0},
		{"east", geo.Point{Lat: 0, Lon: 1}, 90},
		{"south", geo.Point{Lat: -1, Lon: 0}, 180},
		{"west", geo.Point{Lat: 0, Lon: -1}, 270},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, geo.BearingDegrees(origin, tt.to), 1e-6)
		})
	}
}

func TestCompassLabel(t *testing.T) {
	tests := []struct {
		bearing float64
		want    string
	}{
		{0, "North"},
		{22.4, "North"},
		{22.5, "Northeast"},
		{90, "East"},
		{135, "Southeast"},
		{180, "South"},
		{225, "Southwest"},
		{270, "West"},
		{315, "Northwest"},
		{337.4, "Northwest"},
		{337.5, "North"},
		{359, "North"},
		{360, "North"},
		{-45, "Northwest"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, geo.CompassLabel(tt.bearing), "bearing %v", tt.bearing)
	}
}

func TestBearingCompassLabel_LondonParis(t *testing.T) {
	assert.Equal(t, "Southeast", geo.BearingCompassLabel(london, paris))
}

func TestPointValidate(t *testing.T) {
	assert.NoError(t, london.Validate())
	assert.ErrorIs(t, geo.Point{Lat: 91, Lon: 0}.Validate(), geo.ErrInvalidCoordinates)
	assert.ErrorIs(t, geo.Point{Lat: 0, Lon: -181}.Validate(), geo.ErrInvalidCoordinates)
}
