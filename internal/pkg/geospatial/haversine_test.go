package geospatial

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversine_KnownDistance(t *testing.T) {
	// Paris -> London, roughly 343.5 km.
	d := Haversine(48.8566, 2.3522, 51.5074, -0.1278)
	assert.InDelta(t, 343_500, d, 1_500)
}

func TestHaversine_SymmetricAndZero(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		lat1, lon1 := rng.Float64()*180-90, rng.Float64()*360-180
		lat2, lon2 := rng.Float64()*180-90, rng.Float64()*360-180

		assert.Equal(t, Haversine(lat1, lon1, lat2, lon2), Haversine(lat2, lon2, lat1, lon1))
		assert.Zero(t, Haversine(lat1, lon1, lat1, lon1))
	}
}

func TestInitialBearing_Cardinal(t *testing.T) {
	tests := []struct {
		name       string
		lat2, lon2 float64
		want       float64
	}{
		{"north", 1, 0, 0},
		{"east", 0, 1, 90},
		{"south", -1, 0, 180},
		{"west", 0, -1, 270},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, InitialBearing(0, 0, tt.lat2, tt.lon2), 1e-9)
		})
	}
}

func TestInitialBearing_Range(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		lat1, lon1 := rng.Float64()*170-85, rng.Float64()*360-180
		lat2, lon2 := rng.Float64()*170-85, rng.Float64()*360-180
		if lat1 == lat2 && lon1 == lon2 {
			continue
		}
		b := InitialBearing(lat1, lon1, lat2, lon2)
		assert.GreaterOrEqual(t, b, 0.0)
		assert.Less(t, b, 360.0)
	}
}

func TestInitialBearing_SamePoint(t *testing.T) {
	assert.Equal(t, 0.0, InitialBearing(43.26, -2.93, 43.26, -2.93))
}

func TestNormalizeBearing(t *testing.T) {
	assert.Equal(t, 0.0, NormalizeBearing(360))
	assert.Equal(t, 350.0, NormalizeBearing(-10))
	assert.Equal(t, 10.0, NormalizeBearing(730))
	assert.False(t, math.IsNaN(NormalizeBearing(-1e-18)))
}

func TestBoundingBox_ContainsRadius(t *testing.T) {
	minLat, minLon, maxLat, maxLon := BoundingBox(43.26, -2.93, 1000)
	assert.InDelta(t, 1000, Haversine(43.26, -2.93, maxLat, -2.93), 5)
	assert.Less(t, minLat, 43.26)
	assert.Less(t, minLon, -2.93)
	assert.Greater(t, maxLon, -2.93)
}
