package domain

import (
	"fmt"
	"math"

	"github.com/samirrijal/pedalnav/internal/pkg/geospatial"
)

// Coordinate is a WGS 84 position. It is an immutable value type.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate reports whether the coordinate is finite and within range.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
		return fmt.Errorf("%w: not a finite number", ErrInvalidCoordinate)
	}
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude %.6f out of range (-90..90)", ErrInvalidCoordinate, c.Lat)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("%w: longitude %.6f out of range (-180..180)", ErrInvalidCoordinate, c.Lon)
	}
	return nil
}

// DistanceTo returns the great-circle distance in meters.
func (c Coordinate) DistanceTo(o Coordinate) float64 {
	return geospatial.Haversine(c.Lat, c.Lon, o.Lat, o.Lon)
}

// BearingTo returns the initial bearing in [0, 360) towards o.
// When both coordinates are equal the bearing is 0.
func (c Coordinate) BearingTo(o Coordinate) float64 {
	return geospatial.InitialBearing(c.Lat, c.Lon, o.Lat, o.Lon)
}

// BoundingBox represents a rectangular geographic extent in degrees.
// Extents crossing the antimeridian are not supported.
type BoundingBox struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// Validate checks south < north and west < east within coordinate ranges.
func (b BoundingBox) Validate() error {
	if err := (Coordinate{Lat: b.South, Lon: b.West}).Validate(); err != nil {
		return fmt.Errorf("%w: south-west corner: %v", ErrInvalidBounds, err)
	}
	if err := (Coordinate{Lat: b.North, Lon: b.East}).Validate(); err != nil {
		return fmt.Errorf("%w: north-east corner: %v", ErrInvalidBounds, err)
	}
	if b.South >= b.North {
		return fmt.Errorf("%w: south %.6f must be below north %.6f", ErrInvalidBounds, b.South, b.North)
	}
	if b.West >= b.East {
		return fmt.Errorf("%w: west %.6f must be below east %.6f", ErrInvalidBounds, b.West, b.East)
	}
	return nil
}

// Height is the north-south extent in degrees.
func (b BoundingBox) Height() float64 { return b.North - b.South }

// Width is the west-east extent in degrees.
func (b BoundingBox) Width() float64 { return b.East - b.West }

// Center returns the midpoint of the box.
func (b BoundingBox) Center() Coordinate {
	return Coordinate{Lat: (b.South + b.North) / 2, Lon: (b.West + b.East) / 2}
}

// Contains reports whether inner lies entirely within b (edges inclusive).
func (b BoundingBox) Contains(inner BoundingBox) bool {
	return inner.South >= b.South && inner.North <= b.North &&
		inner.West >= b.West && inner.East <= b.East
}

// ContainsPoint reports whether c lies within b (edges inclusive).
func (b BoundingBox) ContainsPoint(c Coordinate) bool {
	return c.Lat >= b.South && c.Lat <= b.North && c.Lon >= b.West && c.Lon <= b.East
}

// BoundsAround returns the box enclosing a circle of radiusMeters around c.
func BoundsAround(c Coordinate, radiusMeters float64) BoundingBox {
	minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(c.Lat, c.Lon, radiusMeters)
	return BoundingBox{South: minLat, West: minLon, North: maxLat, East: maxLon}
}
