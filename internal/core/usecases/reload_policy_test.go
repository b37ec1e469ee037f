package usecases_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/pedalnav/internal/core/domain"
	"github.com/samirrijal/pedalnav/internal/core/usecases"
)

var bilbaoView = domain.BoundingBox{South: 43.25, West: -2.96, North: 43.27, East: -2.92}

func strictlyInside(outer, inner domain.BoundingBox) bool {
	return inner.South > outer.South && inner.North < outer.North &&
		inner.West > outer.West && inner.East < outer.East
}

func TestExtendedBounds(t *testing.T) {
	ext := usecases.ExtendedBounds(bilbaoView)

	assert.InDelta(t, 43.23, ext.South, 1e-9)
	assert.InDelta(t, 43.29, ext.North, 1e-9)
	assert.InDelta(t, -3.00, ext.West, 1e-9)
	assert.InDelta(t, -2.88, ext.East, 1e-9)
	assert.InDelta(t, 3*bilbaoView.Height(), ext.Height(), 1e-9)
	assert.InDelta(t, 3*bilbaoView.Width(), ext.Width(), 1e-9)
}

func TestExtendedBounds_ClampsAtPoles(t *testing.T) {
	ext := usecases.ExtendedBounds(domain.BoundingBox{South: 80, West: 170, North: 89, East: 179})
	assert.Equal(t, 90.0, ext.North)
	assert.Equal(t, 180.0, ext.East)
	require.NoError(t, ext.Validate())
}

func TestTriggerBounds(t *testing.T) {
	trig := usecases.TriggerBounds(bilbaoView, usecases.DefaultTriggerShrink)

	assert.InDelta(t, 43.252, trig.South, 1e-9)
	assert.InDelta(t, 43.268, trig.North, 1e-9)
	assert.InDelta(t, -2.956, trig.West, 1e-9)
	assert.InDelta(t, -2.924, trig.East, 1e-9)
}

func TestBounds_ContainmentProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 500; i++ {
		south := rng.Float64()*120 - 60
		west := rng.Float64()*300 - 150
		b := domain.BoundingBox{
			South: south,
			West:  west,
			North: south + 0.001 + rng.Float64()*5,
			East:  west + 0.001 + rng.Float64()*5,
		}

		ext := usecases.ExtendedBounds(b)
		assert.True(t, ext.Contains(b), "extended bounds must contain %+v", b)

		trig := usecases.TriggerBounds(ext, usecases.DefaultTriggerShrink)
		assert.True(t, strictlyInside(ext, trig), "trigger must be strictly inside %+v", ext)
	}
}

func TestShouldReload_FirstCallAlwaysTrue(t *testing.T) {
	assert.True(t, usecases.ShouldReload(bilbaoView, nil))

	p := usecases.NewBoundsReloadPolicy(usecases.DefaultTriggerShrink)
	assert.True(t, p.ShouldReload(bilbaoView))
	assert.Nil(t, p.Loaded())
	assert.Nil(t, p.Trigger())
}

func TestShouldReload_UnchangedViewAfterLoad(t *testing.T) {
	p := usecases.NewBoundsReloadPolicy(usecases.DefaultTriggerShrink)

	require.True(t, p.ShouldReload(bilbaoView))
	p.MarkLoaded(p.FetchWindow(bilbaoView))

	assert.False(t, p.ShouldReload(bilbaoView))
}

func TestShouldReload_EdgeEscapes(t *testing.T) {
	p := usecases.NewBoundsReloadPolicy(usecases.DefaultTriggerShrink)
	p.MarkLoaded(p.FetchWindow(bilbaoView))

	// Small pan stays within the trigger zone.
	small := bilbaoView
	small.North += 0.005
	small.South += 0.005
	assert.False(t, p.ShouldReload(small))

	// Panning a full view height north crosses the trigger's north edge.
	far := bilbaoView
	far.North += 0.02
	far.South += 0.02
	assert.True(t, p.ShouldReload(far))

	// Zooming out past the loaded window reloads too.
	zoomed := domain.BoundingBox{South: 43.20, West: -3.05, North: 43.32, East: -2.80}
	assert.True(t, p.ShouldReload(zoomed))
}

func TestBoundsReloadPolicy_MarkLoadedReplaces(t *testing.T) {
	p := usecases.NewBoundsReloadPolicy(0)
	first := p.FetchWindow(bilbaoView)
	p.MarkLoaded(first)

	moved := domain.BoundingBox{South: 43.30, West: -2.90, North: 43.32, East: -2.86}
	second := p.FetchWindow(moved)
	p.MarkLoaded(second)

	require.NotNil(t, p.Loaded())
	assert.Equal(t, second, *p.Loaded())
	assert.Equal(t, usecases.TriggerBounds(second, usecases.DefaultTriggerShrink), *p.Trigger())
	assert.True(t, p.ShouldReload(bilbaoView))
}
