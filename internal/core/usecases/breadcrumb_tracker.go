package usecases

import (
	"math"
	"time"

	"github.com/samirrijal/pedalnav/internal/core/domain"
)

// TrackerConfig tunes the breadcrumb tracker.
type TrackerConfig struct {
	MaxAge                time.Duration
	MinSpacingMeters      float64
	Capacity              int
	MinDisplacementMeters float64
	// NewBearingWeight is the share of the fresh bearing in the blend; the
	// previously reported bearing gets the rest.
	NewBearingWeight float64
}

// DefaultTrackerConfig returns the standard tracker tuning.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		MaxAge:                20 * time.Second,
		MinSpacingMeters:      5,
		Capacity:              5,
		MinDisplacementMeters: 8,
		NewBearingWeight:      0.7,
	}
}

// BreadcrumbTracker keeps a short, time-windowed history of accepted fixes
// and derives a smoothed travel bearing from it. Not safe for concurrent use;
// a session's event loop is its only writer.
type BreadcrumbTracker struct {
	cfg    TrackerConfig
	crumbs []domain.Breadcrumb

	bearing    float64
	hasBearing bool
	// dirty is set when a crumb was stored since the bearing was last computed.
	dirty bool
}

// NewBreadcrumbTracker creates an empty tracker.
func NewBreadcrumbTracker(cfg TrackerConfig) *BreadcrumbTracker {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultTrackerConfig().Capacity
	}
	return &BreadcrumbTracker{cfg: cfg, crumbs: make([]domain.Breadcrumb, 0, cfg.Capacity+1)}
}

// AddFix purges expired crumbs and stores fix unless it lies within the
// minimum spacing of the last stored crumb. It reports whether fix was stored.
func (t *BreadcrumbTracker) AddFix(fix domain.LocationFix) bool {
	t.purge(fix.Timestamp)

	if n := len(t.crumbs); n > 0 {
		if t.crumbs[n-1].DistanceTo(fix.Coordinate) < t.cfg.MinSpacingMeters {
			return false
		}
	}

	t.crumbs = append(t.crumbs, domain.Breadcrumb{
		Coordinate: fix.Coordinate,
		Timestamp:  fix.Timestamp,
		Speed:      fix.Speed,
	})
	if len(t.crumbs) > t.cfg.Capacity {
		t.crumbs = append(t.crumbs[:0], t.crumbs[len(t.crumbs)-t.cfg.Capacity:]...)
	}
	t.dirty = true
	return true
}

func (t *BreadcrumbTracker) purge(now time.Time) {
	keep := 0
	for keep < len(t.crumbs) && now.Sub(t.crumbs[keep].Timestamp) > t.cfg.MaxAge {
		keep++
	}
	if keep > 0 {
		t.crumbs = append(t.crumbs[:0], t.crumbs[keep:]...)
	}
}

// TravelBearing returns the smoothed direction of travel. It reports false
// when fewer than two crumbs are held or the oldest-to-newest displacement is
// below the minimum. When no crumb was stored since the previous call the
// previously reported bearing is returned unchanged.
func (t *BreadcrumbTracker) TravelBearing() (float64, bool) {
	n := len(t.crumbs)
	if n < 2 {
		return 0, false
	}
	oldest, newest := t.crumbs[0].Coordinate, t.crumbs[n-1].Coordinate
	if oldest.DistanceTo(newest) < t.cfg.MinDisplacementMeters {
		return 0, false
	}
	if !t.dirty && t.hasBearing {
		return t.bearing, true
	}

	raw := oldest.BearingTo(newest)
	switch {
	case !t.hasBearing:
		t.bearing = raw
	case math.Abs(raw-t.bearing) > 180:
		// Blending across north would point the wrong way; take the fresh value.
		t.bearing = raw
	default:
		w := t.cfg.NewBearingWeight
		t.bearing = w*raw + (1-w)*t.bearing
	}
	t.hasBearing = true
	t.dirty = false
	return t.bearing, true
}

// LastBearing returns the most recently reported bearing, if any.
func (t *BreadcrumbTracker) LastBearing() (float64, bool) {
	return t.bearing, t.hasBearing
}

// EstimatedSpeed derives speed in m/s from the two newest crumbs.
func (t *BreadcrumbTracker) EstimatedSpeed() (float64, bool) {
	n := len(t.crumbs)
	if n < 2 {
		return 0, false
	}
	a, b := t.crumbs[n-2], t.crumbs[n-1]
	dt := b.Timestamp.Sub(a.Timestamp).Seconds()
	if dt <= 0 {
		return 0, false
	}
	return a.DistanceTo(b.Coordinate) / dt, true
}

// Breadcrumbs returns a copy of the stored crumbs, oldest first.
func (t *BreadcrumbTracker) Breadcrumbs() []domain.Breadcrumb {
	return append([]domain.Breadcrumb(nil), t.crumbs...)
}

// Len returns the number of stored crumbs.
func (t *BreadcrumbTracker) Len() int { return len(t.crumbs) }

// Reset drops all crumbs and the retained bearing.
func (t *BreadcrumbTracker) Reset() {
	t.crumbs = t.crumbs[:0]
	t.bearing = 0
	t.hasBearing = false
	t.dirty = false
}
