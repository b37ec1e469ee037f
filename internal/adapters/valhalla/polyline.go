package valhalla

import (
	"fmt"
	"math"

	"github.com/samirrijal/pedalnav/internal/core/domain"
)

// Valhalla encodes shapes with six decimal digits; Google-style polylines
// use five.
const (
	Precision6 = 6
	Precision5 = 5
)

// DecodePolyline decodes an encoded polyline into coordinates.
func DecodePolyline(encoded string, precision int) ([]domain.Coordinate, error) {
	factor := math.Pow10(precision)
	points := make([]domain.Coordinate, 0, len(encoded)/4)

	var lat, lon int64
	for i := 0; i < len(encoded); {
		dLat, next, err := decodeValue(encoded, i)
		if err != nil {
			return nil, err
		}
		dLon, next, err := decodeValue(encoded, next)
		if err != nil {
			return nil, err
		}
		i = next

		lat += dLat
		lon += dLon
		points = append(points, domain.Coordinate{
			Lat: float64(lat) / factor,
			Lon: float64(lon) / factor,
		})
	}
	return points, nil
}

// decodeValue reads one zigzag varint starting at i.
func decodeValue(s string, i int) (int64, int, error) {
	var result int64
	var shift uint
	for {
		if i >= len(s) {
			return 0, i, fmt.Errorf("polyline: truncated at offset %d", i)
		}
		b := int64(s[i]) - 63
		if b < 0 || b > 0x3f+0x20 {
			return 0, i, fmt.Errorf("polyline: invalid byte %q at offset %d", s[i], i)
		}
		i++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
		if shift > 60 {
			return 0, i, fmt.Errorf("polyline: value overflow at offset %d", i)
		}
	}
	if result&1 != 0 {
		return ^(result >> 1), i, nil
	}
	return result >> 1, i, nil
}
