package usecases

import (
	"math"
	"time"

	"github.com/samirrijal/pedalnav/internal/core/domain"
)

// ZoomBand maps speeds below MaxKmh to Zoom.
type ZoomBand struct {
	MaxKmh float64
	Zoom   float64
}

// DefaultZoomBands steps the zoom out by half a level every 5 km/h.
var DefaultZoomBands = []ZoomBand{
	{MaxKmh: 1, Zoom: 18},
	{MaxKmh: 5, Zoom: 17.5},
	{MaxKmh: 10, Zoom: 17},
	{MaxKmh: 15, Zoom: 16.5},
	{MaxKmh: 20, Zoom: 16},
	{MaxKmh: 25, Zoom: 15.5},
	{MaxKmh: math.Inf(1), Zoom: 15},
}

// ZoomForSpeed returns the zoom of the first band whose upper bound exceeds
// kmh. Bands must be sorted by MaxKmh with non-increasing Zoom.
func ZoomForSpeed(bands []ZoomBand, kmh float64) float64 {
	if len(bands) == 0 {
		bands = DefaultZoomBands
	}
	if kmh < 0 || math.IsNaN(kmh) {
		kmh = 0
	}
	for _, b := range bands {
		if kmh < b.MaxKmh {
			return b.Zoom
		}
	}
	return bands[len(bands)-1].Zoom
}

// CameraConfig tunes the camera-intent policy.
type CameraConfig struct {
	ZoomBands                []ZoomBand
	ZoomThrottle             time.Duration
	MinZoomStep              float64
	NavigatingPitch          float64
	ExploringPitch           float64
	RecenterNavigatingMeters float64
	RecenterExploringMeters  float64
}

// DefaultCameraConfig returns the standard camera tuning.
func DefaultCameraConfig() CameraConfig {
	return CameraConfig{
		ZoomBands:                DefaultZoomBands,
		ZoomThrottle:             3 * time.Second,
		MinZoomStep:              0.5,
		NavigatingPitch:          45,
		ExploringPitch:           0,
		RecenterNavigatingMeters: 15,
		RecenterExploringMeters:  100,
	}
}

// CameraInput is everything the policy looks at for one tick.
type CameraInput struct {
	Now      time.Time
	Mode     domain.NavigationMode
	Position domain.Coordinate
	SpeedKmh float64
	HasSpeed bool
	// TravelBearing comes from the breadcrumb tracker.
	TravelBearing float64
	HasBearing    bool
}

// CameraState is the policy memory carried between ticks.
type CameraState struct {
	Intent         domain.CameraIntent
	Mode           domain.NavigationMode
	LastZoomChange time.Time
	Initialized    bool
}

// ComputeCameraIntent derives the next camera state. It has no side effects.
func ComputeCameraIntent(cfg CameraConfig, prev CameraState, in CameraInput) CameraState {
	next := CameraState{Mode: in.Mode, LastZoomChange: prev.LastZoomChange, Initialized: true}
	modeChanged := !prev.Initialized || prev.Mode != in.Mode

	// Zoom, throttled unless this is the first tick or the mode just changed.
	zoom := prev.Intent.Zoom
	switch {
	case !in.HasSpeed && prev.Initialized:
		// Keep the current zoom until speed is known again.
	case modeChanged:
		zoom = ZoomForSpeed(cfg.ZoomBands, in.SpeedKmh)
		next.LastZoomChange = in.Now
	default:
		target := ZoomForSpeed(cfg.ZoomBands, in.SpeedKmh)
		if in.Now.Sub(prev.LastZoomChange) >= cfg.ZoomThrottle && math.Abs(target-zoom) >= cfg.MinZoomStep {
			zoom = target
			next.LastZoomChange = in.Now
		}
	}

	// Bearing follows travel direction only while on a route.
	bearing := prev.Intent.Bearing
	override := in.Mode.FollowsRoute()
	if override && in.HasBearing {
		bearing = in.TravelBearing
	}

	pitch := cfg.ExploringPitch
	if in.Mode == domain.ModeNavigating {
		pitch = cfg.NavigatingPitch
	}

	threshold := cfg.RecenterExploringMeters
	if in.Mode.FollowsRoute() {
		threshold = cfg.RecenterNavigatingMeters
	}
	center := prev.Intent.Center
	recenter := modeChanged || center.DistanceTo(in.Position) > threshold
	if recenter {
		center = in.Position
	}

	next.Intent = domain.CameraIntent{
		Center:          center,
		Zoom:            zoom,
		Bearing:         bearing,
		OverrideBearing: override,
		Pitch:           pitch,
		ShouldRecenter:  recenter,
	}
	return next
}

// CameraPolicy holds the camera state for one session.
type CameraPolicy struct {
	cfg   CameraConfig
	state CameraState
}

// NewCameraPolicy creates a policy with no camera history.
func NewCameraPolicy(cfg CameraConfig) *CameraPolicy {
	if len(cfg.ZoomBands) == 0 {
		cfg.ZoomBands = DefaultZoomBands
	}
	return &CameraPolicy{cfg: cfg}
}

// Update computes and remembers the intent for in.
func (p *CameraPolicy) Update(in CameraInput) domain.CameraIntent {
	p.state = ComputeCameraIntent(p.cfg, p.state, in)
	return p.state.Intent
}

// Current returns the last intent and whether one was computed yet.
func (p *CameraPolicy) Current() (domain.CameraIntent, bool) {
	return p.state.Intent, p.state.Initialized
}

// Reset forgets the camera history.
func (p *CameraPolicy) Reset() { p.state = CameraState{} }
