package usecases_test

import (
	"math"
	"time"

	"github.com/samirrijal/pedalnav/internal/core/domain"
	"github.com/samirrijal/pedalnav/internal/pkg/geospatial"
)

// metersPerDegreeLat matches the haversine Earth radius.
var metersPerDegreeLat = geospatial.EarthRadiusMeters * math.Pi / 180

var (
	bilbao = domain.Coordinate{Lat: 43.2630, Lon: -2.9350}
	t0     = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
)

// offset moves c by the given meters north and east.
func offset(c domain.Coordinate, north, east float64) domain.Coordinate {
	return domain.Coordinate{
		Lat: c.Lat + north/metersPerDegreeLat,
		Lon: c.Lon + east/(metersPerDegreeLat*math.Cos(c.Lat*math.Pi/180)),
	}
}

func fixAt(c domain.Coordinate, at time.Duration) domain.LocationFix {
	return domain.LocationFix{Coordinate: c, Timestamp: t0.Add(at)}
}

func fixWithSpeed(c domain.Coordinate, at time.Duration, mps float64) domain.LocationFix {
	f := fixAt(c, at)
	f.Speed = &mps
	return f
}

func straightRoute(t domain.RouteType, from domain.Coordinate, northMeters float64) domain.RouteResult {
	return domain.RouteResult{
		Points: []domain.Coordinate{
			from,
			offset(from, northMeters/2, 0),
			offset(from, northMeters, 0),
		},
		DistanceKm:  northMeters / 1000,
		DurationMin: northMeters / 250,
		Type:        t,
	}
}
