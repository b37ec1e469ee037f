package usecases_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/pedalnav/internal/core/domain"
	"github.com/samirrijal/pedalnav/internal/core/usecases"
)

func newTracker() *usecases.BreadcrumbTracker {
	return usecases.NewBreadcrumbTracker(usecases.DefaultTrackerConfig())
}

func TestBreadcrumbTracker_SmallDisplacementHasNoBearing(t *testing.T) {
	tr := newTracker()
	paris := domain.Coordinate{Lat: 48.8566, Lon: 2.3522}

	require.True(t, tr.AddFix(fixAt(paris, 0)))
	require.True(t, tr.AddFix(fixAt(offset(paris, 6, 0), 2*time.Second)))
	assert.Equal(t, 2, tr.Len())

	_, ok := tr.TravelBearing()
	assert.False(t, ok, "6 m of displacement is below the 8 m minimum")
}

func TestBreadcrumbTracker_StraightNorth(t *testing.T) {
	tr := newTracker()
	for i := 0; i < 3; i++ {
		tr.AddFix(fixAt(offset(bilbao, float64(i)*20, 0), time.Duration(i)*time.Second))
	}

	b, ok := tr.TravelBearing()
	require.True(t, ok)
	assert.InDelta(t, 0, b, 0.5)
}

func TestBreadcrumbTracker_RejectsJitter(t *testing.T) {
	tr := newTracker()
	require.True(t, tr.AddFix(fixAt(bilbao, 0)))

	for i := 1; i <= 10; i++ {
		before := tr.Len()
		accepted := tr.AddFix(fixAt(offset(bilbao, 2, 2), time.Duration(i)*time.Second))
		assert.False(t, accepted)
		assert.Equal(t, before, tr.Len())
	}
}

func TestBreadcrumbTracker_DuplicateTimestampRejected(t *testing.T) {
	tr := newTracker()
	tr.AddFix(fixAt(bilbao, 0))
	assert.False(t, tr.AddFix(fixAt(bilbao, 0)))
	assert.Equal(t, 1, tr.Len())
}

func TestBreadcrumbTracker_PurgesOldCrumbs(t *testing.T) {
	tr := newTracker()
	tr.AddFix(fixAt(bilbao, 0))
	tr.AddFix(fixAt(offset(bilbao, 10, 0), 5*time.Second))
	require.Equal(t, 2, tr.Len())

	tr.AddFix(fixAt(offset(bilbao, 20, 0), 22*time.Second))

	crumbs := tr.Breadcrumbs()
	require.Len(t, crumbs, 2)
	assert.Equal(t, t0.Add(5*time.Second), crumbs[0].Timestamp)
}

func TestBreadcrumbTracker_StaleHistoryExpires(t *testing.T) {
	tr := newTracker()
	tr.AddFix(fixAt(bilbao, 0))
	tr.AddFix(fixAt(offset(bilbao, 10, 0), time.Second))

	// 30 s later every stored crumb has expired, so even a nearby fix starts
	// a fresh history.
	assert.True(t, tr.AddFix(fixAt(offset(bilbao, 10, 1), 31*time.Second)))
	assert.Equal(t, 1, tr.Len())
	_, ok := tr.TravelBearing()
	assert.False(t, ok)
}

func TestBreadcrumbTracker_CapacityBound(t *testing.T) {
	tr := newTracker()
	rng := rand.New(rand.NewSource(3))
	pos := bilbao
	for i := 0; i < 200; i++ {
		pos = offset(pos, rng.Float64()*30-10, rng.Float64()*30-10)
		tr.AddFix(fixAt(pos, time.Duration(i)*time.Second))
		assert.LessOrEqual(t, tr.Len(), 5)

		if b, ok := tr.TravelBearing(); ok {
			assert.GreaterOrEqual(t, b, 0.0)
			assert.Less(t, b, 360.0)
		}
	}
}

func TestBreadcrumbTracker_BlendsWithPrevious(t *testing.T) {
	tr := newTracker()
	tr.AddFix(fixAt(bilbao, 0))
	tr.AddFix(fixAt(offset(bilbao, 10, 0), time.Second))

	first, ok := tr.TravelBearing()
	require.True(t, ok)

	next := offset(bilbao, 20, 10)
	tr.AddFix(fixAt(next, 2*time.Second))

	raw := bilbao.BearingTo(next)
	got, ok := tr.TravelBearing()
	require.True(t, ok)
	assert.InDelta(t, 0.7*raw+0.3*first, got, 1e-9)
}

func TestBreadcrumbTracker_SkipsBlendAcrossWrap(t *testing.T) {
	tr := newTracker()
	tr.AddFix(fixAt(bilbao, 0))
	tr.AddFix(fixAt(offset(bilbao, 20, 3), time.Second))
	first, ok := tr.TravelBearing()
	require.True(t, ok)
	require.Less(t, first, 20.0)

	next := offset(bilbao, 40, -10)
	tr.AddFix(fixAt(next, 2*time.Second))

	raw := bilbao.BearingTo(next)
	require.Greater(t, raw, 340.0)

	got, ok := tr.TravelBearing()
	require.True(t, ok)
	assert.InDelta(t, raw, got, 1e-9)
}

func TestBreadcrumbTracker_RetainsBearingWithoutNewCrumb(t *testing.T) {
	tr := newTracker()
	tr.AddFix(fixAt(bilbao, 0))
	tr.AddFix(fixAt(offset(bilbao, 0, 15), time.Second))

	first, ok := tr.TravelBearing()
	require.True(t, ok)

	// Jitter is rejected, so the bearing must not drift towards itself again.
	tr.AddFix(fixAt(offset(bilbao, 1, 15), 2*time.Second))
	second, ok := tr.TravelBearing()
	require.True(t, ok)
	assert.Equal(t, first, second)

	last, ok := tr.LastBearing()
	assert.True(t, ok)
	assert.Equal(t, first, last)
}

func TestBreadcrumbTracker_EstimatedSpeed(t *testing.T) {
	tr := newTracker()
	_, ok := tr.EstimatedSpeed()
	assert.False(t, ok)

	tr.AddFix(fixAt(bilbao, 0))
	tr.AddFix(fixAt(offset(bilbao, 20, 0), 4*time.Second))

	v, ok := tr.EstimatedSpeed()
	require.True(t, ok)
	assert.InDelta(t, 5.0, v, 0.01)
}

func TestBreadcrumbTracker_Reset(t *testing.T) {
	tr := newTracker()
	tr.AddFix(fixAt(bilbao, 0))
	tr.AddFix(fixAt(offset(bilbao, 20, 0), time.Second))
	_, ok := tr.TravelBearing()
	require.True(t, ok)

	tr.Reset()

	assert.Zero(t, tr.Len())
	_, ok = tr.TravelBearing()
	assert.False(t, ok)
	_, ok = tr.LastBearing()
	assert.False(t, ok)
}
