package valhalla

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/pedalnav/internal/core/domain"
)

// encodePolyline is the inverse of DecodePolyline, used to build fixtures.
func encodePolyline(points []domain.Coordinate, precision int) string {
	factor := math.Pow10(precision)
	var sb strings.Builder
	var prevLat, prevLon int64
	for _, p := range points {
		lat := int64(math.Round(p.Lat * factor))
		lon := int64(math.Round(p.Lon * factor))
		encodeValue(&sb, lat-prevLat)
		encodeValue(&sb, lon-prevLon)
		prevLat, prevLon = lat, lon
	}
	return sb.String()
}

func encodeValue(sb *strings.Builder, v int64) {
	u := v << 1
	if v < 0 {
		u = ^u
	}
	for u >= 0x20 {
		sb.WriteByte(byte((0x20 | (u & 0x1f)) + 63))
		u >>= 5
	}
	sb.WriteByte(byte(u + 63))
}

func TestDecodePolyline_KnownVector(t *testing.T) {
	pts, err := DecodePolyline("_p~iF~ps|U_ulLnnqC_mqNvxq`@", Precision5)
	require.NoError(t, err)
	require.Len(t, pts, 3)

	want := []domain.Coordinate{{Lat: 38.5, Lon: -120.2}, {Lat: 40.7, Lon: -120.95}, {Lat: 43.252, Lon: -126.453}}
	for i := range want {
		assert.InDelta(t, want[i].Lat, pts[i].Lat, 1e-6)
		assert.InDelta(t, want[i].Lon, pts[i].Lon, 1e-6)
	}
}

func TestDecodePolyline_Precision6RoundTrip(t *testing.T) {
	in := []domain.Coordinate{
		{Lat: 43.263012, Lon: -2.935021},
		{Lat: 43.264100, Lon: -2.930000},
		{Lat: 43.258877, Lon: -2.921456},
	}
	pts, err := DecodePolyline(encodePolyline(in, Precision6), Precision6)
	require.NoError(t, err)
	require.Len(t, pts, len(in))
	for i := range in {
		assert.InDelta(t, in[i].Lat, pts[i].Lat, 1e-7)
		assert.InDelta(t, in[i].Lon, pts[i].Lon, 1e-7)
	}
}

func TestDecodePolyline_Empty(t *testing.T) {
	pts, err := DecodePolyline("", Precision6)
	require.NoError(t, err)
	assert.Empty(t, pts)
}

func TestDecodePolyline_Truncated(t *testing.T) {
	_, err := DecodePolyline("_p~iF~ps|U_ulL", Precision5)
	require.Error(t, err)

	_, err = DecodePolyline("_p~iF~ps|U_", Precision5)
	require.Error(t, err)
}
