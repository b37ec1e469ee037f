package mapjson

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/pedalnav/internal/core/domain"
)

const sample = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": 101, "geometry": {"type": "Point", "coordinates": [-2.9350, 43.2630]},
     "properties": {"name": "Bizkaibus parking", "category": "bicycle_parking", "capacity": "12", "covered": "yes"}},
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [-2.9300, 43.2610]},
     "properties": {"kind": "community_poi", "id": "c1", "name": "Pump", "category": "repair_station",
                    "created_by": "ane", "time": "2026-05-01T10:00:00Z"}},
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [-2.9310, 43.2620]},
     "properties": {"kind": "warning", "id": "w1", "category": "roadworks", "severity": "high"}}
  ]
}`

func TestFeaturesFromGeoJSON(t *testing.T) {
	set, err := FeaturesFromGeoJSON([]byte(sample))
	require.NoError(t, err)
	require.Len(t, set.OSM, 1)
	require.Len(t, set.Community, 1)
	require.Len(t, set.Warnings, 1)

	osm := set.OSM[0]
	assert.Equal(t, "101", osm.ID)
	assert.Equal(t, "bicycle_parking", osm.Category)
	assert.InDelta(t, 43.2630, osm.Location.Lat, 1e-9)
	assert.InDelta(t, -2.9350, osm.Location.Lon, 1e-9)
	assert.Equal(t, map[string]string{"capacity": "12", "covered": "yes"}, osm.Tags)

	c := set.Community[0]
	assert.Equal(t, "ane", c.CreatedBy)
	assert.Equal(t, time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC), c.CreatedAt)

	assert.Equal(t, "high", set.Warnings[0].Severity)
}

func TestFeaturesFromGeoJSON_Rejects(t *testing.T) {
	cases := map[string]string{
		"not json":     `nope`,
		"line":         `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]},"properties":{}}]}`,
		"bad kind":     `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[0,0]},"properties":{"kind":"bus_stop"}}]}`,
		"out of range": `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[0,95]},"properties":{}}]}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FeaturesFromGeoJSON([]byte(in))
			assert.Error(t, err)
		})
	}
}

func TestFeaturesToGeoJSON_RoundTripsKinds(t *testing.T) {
	in, err := FeaturesFromGeoJSON([]byte(sample))
	require.NoError(t, err)

	data, err := json.Marshal(FeaturesToGeoJSON(in))
	require.NoError(t, err)

	out, err := FeaturesFromGeoJSON(data)
	require.NoError(t, err)
	assert.Equal(t, in.OSM, out.OSM)
	assert.Equal(t, in.Community, out.Community)
	assert.Equal(t, in.Warnings, out.Warnings)
}

func TestRoutesToGeoJSON(t *testing.T) {
	routes := []domain.RouteResult{{
		Type:        domain.RouteSafest,
		DistanceKm:  2.5,
		DurationMin: 11,
		Points:      []domain.Coordinate{{Lat: 43.26, Lon: -2.93}, {Lat: 43.27, Lon: -2.92}},
	}}

	fc := RoutesToGeoJSON(routes)
	require.Len(t, fc.Features, 1)
	f := fc.Features[0]
	assert.Equal(t, orb.LineString{{-2.93, 43.26}, {-2.92, 43.27}}, f.Geometry)
	assert.Equal(t, "safest", f.Properties["type"])
	assert.Equal(t, 2.5, f.Properties["distance_km"])
}
