// Package gpx replays recorded GPX tracks as a location source.
package gpx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tkrajina/gpxgo/gpx"

	"github.com/samirrijal/pedalnav/internal/core/domain"
)

// ErrEmptyTrack is returned when a GPX document holds no track points.
var ErrEmptyTrack = errors.New("gpx: no track points")

// Points without a timestamp are spaced this far apart.
const defaultSpacing = time.Second

// Track is a parsed GPX track flattened into location fixes.
type Track struct {
	Name           string
	Fixes          []domain.LocationFix
	DistanceMeters float64
}

// Duration is the time between the first and last fix.
func (t *Track) Duration() time.Duration {
	if len(t.Fixes) < 2 {
		return 0
	}
	return t.Fixes[len(t.Fixes)-1].Timestamp.Sub(t.Fixes[0].Timestamp)
}

// Start returns the first fix position.
func (t *Track) Start() domain.Coordinate { return t.Fixes[0].Coordinate }

// End returns the last fix position.
func (t *Track) End() domain.Coordinate { return t.Fixes[len(t.Fixes)-1].Coordinate }

// ParseFile reads a GPX file.
func ParseFile(path string) (*Track, error) {
	g, err := gpx.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parse gpx %s: %w", path, err)
	}
	return fromGPX(g)
}

// Parse reads a GPX document.
func Parse(data []byte) (*Track, error) {
	g, err := gpx.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse gpx: %w", err)
	}
	return fromGPX(g)
}

// fromGPX joins every segment of every track. Speed and heading are derived
// from consecutive points since GPX 1.1 does not carry them.
func fromGPX(g *gpx.GPX) (*Track, error) {
	t := &Track{Name: g.Name}
	var base time.Time
	for _, track := range g.Tracks {
		if t.Name == "" {
			t.Name = track.Name
		}
		for _, segment := range track.Segments {
			for _, p := range segment.Points {
				fix := domain.LocationFix{
					Coordinate: domain.Coordinate{Lat: p.Latitude, Lon: p.Longitude},
					Timestamp:  p.Timestamp.UTC(),
				}
				if fix.Timestamp.IsZero() {
					if base.IsZero() {
						base = time.Now().UTC().Truncate(time.Second)
					}
					fix.Timestamp = base.Add(time.Duration(len(t.Fixes)) * defaultSpacing)
				}
				if err := fix.Coordinate.Validate(); err != nil {
					return nil, fmt.Errorf("point %d: %w", len(t.Fixes), err)
				}
				if n := len(t.Fixes); n > 0 {
					prev := t.Fixes[n-1]
					d := prev.DistanceTo(fix.Coordinate)
					t.DistanceMeters += d
					if dt := fix.Timestamp.Sub(prev.Timestamp).Seconds(); dt > 0 {
						speed := d / dt
						fix.Speed = &speed
					}
					if d > 0 {
						heading := prev.BearingTo(fix.Coordinate)
						fix.Heading = &heading
					}
				}
				t.Fixes = append(t.Fixes, fix)
			}
		}
	}
	if len(t.Fixes) == 0 {
		return nil, ErrEmptyTrack
	}
	return t, nil
}

// Replayer implements ports.LocationSource by emitting a track's fixes with
// their recorded spacing divided by SpeedFactor.
type Replayer struct {
	track       *Track
	speedFactor float64
}

// NewReplayer creates a replayer. A speedFactor of zero or less emits the
// fixes back to back.
func NewReplayer(track *Track, speedFactor float64) *Replayer {
	return &Replayer{track: track, speedFactor: speedFactor}
}

// Stream emits every fix, then returns nil.
func (r *Replayer) Stream(ctx context.Context, fixes chan<- domain.LocationFix) error {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for i, fix := range r.track.Fixes {
		if i > 0 && r.speedFactor > 0 {
			gap := fix.Timestamp.Sub(r.track.Fixes[i-1].Timestamp)
			wait := time.Duration(float64(gap) / r.speedFactor)
			if wait > 0 {
				if timer == nil {
					timer = time.NewTimer(wait)
				} else {
					timer.Reset(wait)
				}
				select {
				case <-timer.C:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
		select {
		case fixes <- fix:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
