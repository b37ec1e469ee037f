package usecases_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/pedalnav/internal/core/domain"
	"github.com/samirrijal/pedalnav/internal/core/usecases"
)

func TestZoomForSpeed_Bands(t *testing.T) {
	tests := []struct {
		kmh  float64
		want float64
	}{
		{0, 18}, {0.9, 18}, {1, 17.5}, {4.9, 17.5}, {5, 17}, {12, 16.5},
		{15, 16}, {22, 15.5}, {25, 15}, {60, 15}, {-3, 18},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, usecases.ZoomForSpeed(usecases.DefaultZoomBands, tt.kmh), "speed %.1f km/h", tt.kmh)
	}
}

func TestZoomForSpeed_MonotonicNonIncreasing(t *testing.T) {
	prev := usecases.ZoomForSpeed(nil, 0)
	for kmh := 0.0; kmh <= 80; kmh += 0.25 {
		z := usecases.ZoomForSpeed(nil, kmh)
		assert.LessOrEqual(t, z, prev, "zoom rose at %.2f km/h", kmh)
		prev = z
	}

	stationary := usecases.ZoomForSpeed(nil, 0)
	at10 := usecases.ZoomForSpeed(nil, 10)
	at30 := usecases.ZoomForSpeed(nil, 30)
	assert.GreaterOrEqual(t, stationary, at10)
	assert.GreaterOrEqual(t, at10, at30)
}

func navInput(at time.Duration, kmh float64, pos domain.Coordinate) usecases.CameraInput {
	return usecases.CameraInput{
		Now:      t0.Add(at),
		Mode:     domain.ModeNavigating,
		Position: pos,
		SpeedKmh: kmh,
		HasSpeed: true,
	}
}

func TestCameraPolicy_FirstIntentAppliesImmediately(t *testing.T) {
	p := usecases.NewCameraPolicy(usecases.DefaultCameraConfig())
	intent := p.Update(navInput(0, 22, bilbao))

	assert.Equal(t, 15.5, intent.Zoom)
	assert.Equal(t, 45.0, intent.Pitch)
	assert.True(t, intent.ShouldRecenter)
	assert.Equal(t, bilbao, intent.Center)
}

func TestCameraPolicy_ZoomThrottle(t *testing.T) {
	p := usecases.NewCameraPolicy(usecases.DefaultCameraConfig())
	p.Update(navInput(0, 0, bilbao))

	// Too soon: speed jumped but only one second passed.
	intent := p.Update(navInput(time.Second, 22, bilbao))
	assert.Equal(t, 18.0, intent.Zoom)

	// Enough time, large step.
	intent = p.Update(navInput(3*time.Second, 22, bilbao))
	assert.Equal(t, 15.5, intent.Zoom)

	// Enough time, but the target differs by less than the minimum step.
	cfg := usecases.DefaultCameraConfig()
	cfg.MinZoomStep = 1
	p = usecases.NewCameraPolicy(cfg)
	p.Update(navInput(0, 12, bilbao))
	intent = p.Update(navInput(10*time.Second, 16, bilbao))
	assert.Equal(t, 16.5, intent.Zoom)
}

func TestCameraPolicy_ThrottleRestartsAfterChange(t *testing.T) {
	p := usecases.NewCameraPolicy(usecases.DefaultCameraConfig())
	p.Update(navInput(0, 0, bilbao))
	p.Update(navInput(4*time.Second, 12, bilbao))

	intent := p.Update(navInput(5*time.Second, 30, bilbao))
	assert.Equal(t, 16.5, intent.Zoom, "last change was one second ago")

	intent = p.Update(navInput(7*time.Second, 30, bilbao))
	assert.Equal(t, 15.0, intent.Zoom)
}

func TestCameraPolicy_ModeChangeBypassesThrottle(t *testing.T) {
	p := usecases.NewCameraPolicy(usecases.DefaultCameraConfig())
	in := navInput(0, 0, bilbao)
	in.Mode = domain.ModeIdle
	p.Update(in)

	intent := p.Update(navInput(500*time.Millisecond, 22, bilbao))
	assert.Equal(t, 15.5, intent.Zoom)
	assert.True(t, intent.ShouldRecenter)
}

func TestCameraPolicy_UnknownSpeedKeepsZoom(t *testing.T) {
	p := usecases.NewCameraPolicy(usecases.DefaultCameraConfig())
	p.Update(navInput(0, 22, bilbao))

	in := navInput(10*time.Second, 0, bilbao)
	in.HasSpeed = false
	assert.Equal(t, 15.5, p.Update(in).Zoom)
}

func TestCameraPolicy_BearingRetainedWhenTrackerHasNone(t *testing.T) {
	p := usecases.NewCameraPolicy(usecases.DefaultCameraConfig())

	in := navInput(0, 15, bilbao)
	in.TravelBearing, in.HasBearing = 87, true
	intent := p.Update(in)
	assert.Equal(t, 87.0, intent.Bearing)
	assert.True(t, intent.OverrideBearing)

	in = navInput(time.Second, 0, bilbao)
	intent = p.Update(in)
	assert.Equal(t, 87.0, intent.Bearing, "stationary rider keeps last bearing instead of snapping north")
}

func TestCameraPolicy_ExplorationLeavesBearingToUser(t *testing.T) {
	p := usecases.NewCameraPolicy(usecases.DefaultCameraConfig())
	in := navInput(0, 15, bilbao)
	in.Mode = domain.ModeIdle
	in.TravelBearing, in.HasBearing = 120, true

	intent := p.Update(in)
	assert.False(t, intent.OverrideBearing)
	assert.Equal(t, 0.0, intent.Bearing)
	assert.Equal(t, 0.0, intent.Pitch)
}

func TestCameraPolicy_RecenterThresholds(t *testing.T) {
	p := usecases.NewCameraPolicy(usecases.DefaultCameraConfig())
	p.Update(navInput(0, 15, bilbao))

	intent := p.Update(navInput(time.Second, 15, offset(bilbao, 10, 0)))
	assert.False(t, intent.ShouldRecenter)
	assert.Equal(t, bilbao, intent.Center)

	intent = p.Update(navInput(2*time.Second, 15, offset(bilbao, 20, 0)))
	assert.True(t, intent.ShouldRecenter)
	assert.Equal(t, offset(bilbao, 20, 0), intent.Center)

	explore := usecases.NewCameraPolicy(usecases.DefaultCameraConfig())
	in := navInput(0, 0, bilbao)
	in.Mode = domain.ModeIdle
	explore.Update(in)

	in = navInput(time.Second, 0, offset(bilbao, 60, 0))
	in.Mode = domain.ModeIdle
	assert.False(t, explore.Update(in).ShouldRecenter)

	in = navInput(2*time.Second, 0, offset(bilbao, 120, 0))
	in.Mode = domain.ModeIdle
	assert.True(t, explore.Update(in).ShouldRecenter)
}

func TestComputeCameraIntent_IsPure(t *testing.T) {
	cfg := usecases.DefaultCameraConfig()
	prev := usecases.CameraState{}
	in := navInput(0, 12, bilbao)

	a := usecases.ComputeCameraIntent(cfg, prev, in)
	b := usecases.ComputeCameraIntent(cfg, prev, in)
	require.Equal(t, a, b)
	assert.Equal(t, usecases.CameraState{}, prev)
}
